package storage

import (
	"context"
	"errors"
	"fmt"

	"secret-game-be/internal/service/dto"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
)

var ErrUnexpectedDatabase = errors.New("数据库异常")

const schema = `
CREATE TABLE IF NOT EXISTS game_results (
	instance_id       TEXT        NOT NULL,
	room_id           BIGINT      NOT NULL,
	generation        BIGINT      NOT NULL,
	arbiter           TEXT        NOT NULL,
	winner            TEXT,
	win_type          TEXT,
	closest_distance  SMALLINT,
	secret            SMALLINT,
	total_guess_count INTEGER     NOT NULL,
	finished_at       TIMESTAMPTZ NOT NULL,
	PRIMARY KEY (instance_id, room_id, generation)
)`

// PostgresRepo 保存已结束对局的结果。
// 房间 ID 和代数在每次启动后从头计数，所以每个进程带一个实例 ID 区分各自写入的行。
type PostgresRepo struct {
	pool     *pgxpool.Pool
	instance string
}

func NewPostgresRepo(ctx context.Context, connString string) (*PostgresRepo, error) {
	pool, err := pgxpool.New(ctx, connString)
	if err != nil {
		return nil, err
	}

	if err := pool.Ping(ctx); err != nil {
		pool.Close()
		return nil, fmt.Errorf("连接数据库失败: %w", err)
	}

	instance, err := uuid.NewV7()
	if err != nil {
		pool.Close()
		return nil, fmt.Errorf("生成实例 ID 失败: %w", err)
	}

	return &PostgresRepo{pool: pool, instance: instance.String()}, nil
}

func (r *PostgresRepo) Instance() string {
	return r.instance
}

func (r *PostgresRepo) EnsureSchema(ctx context.Context) error {
	if _, err := r.pool.Exec(ctx, schema); err != nil {
		return wrapErr(err)
	}

	return nil
}

// SaveResult 写入一局结果，本实例对同一房间同一代重复写入时覆盖
func (r *PostgresRepo) SaveResult(ctx context.Context, res dto.GameResult) error {
	var closest, secret *int16
	if res.ClosestDistance != nil {
		v := int16(*res.ClosestDistance)
		closest = &v
	}
	if res.Secret != nil {
		v := int16(*res.Secret)
		secret = &v
	}

	_, err := r.pool.Exec(ctx, `
		INSERT INTO game_results
			(instance_id, room_id, generation, arbiter, winner, win_type, closest_distance, secret, total_guess_count, finished_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10)
		ON CONFLICT (instance_id, room_id, generation) DO UPDATE SET
			arbiter = EXCLUDED.arbiter,
			winner = EXCLUDED.winner,
			win_type = EXCLUDED.win_type,
			closest_distance = EXCLUDED.closest_distance,
			secret = EXCLUDED.secret,
			total_guess_count = EXCLUDED.total_guess_count,
			finished_at = EXCLUDED.finished_at`,
		r.instance,
		int64(res.RoomID),
		int64(res.Generation),
		res.Arbiter,
		res.Winner,
		res.WinType,
		closest,
		secret,
		int64(res.TotalGuessCount),
		res.FinishedAt,
	)
	if err != nil {
		return wrapErr(err)
	}

	return nil
}

// RecentResults 按结束时间倒序返回最近的结果
func (r *PostgresRepo) RecentResults(ctx context.Context, limit int) ([]dto.GameResult, error) {
	if limit <= 0 {
		limit = 20
	}

	rows, err := r.pool.Query(ctx, `
		SELECT instance_id, room_id, generation, arbiter, winner, win_type, closest_distance, secret, total_guess_count, finished_at
		FROM game_results
		ORDER BY finished_at DESC, room_id DESC
		LIMIT $1`, limit)
	if err != nil {
		return nil, wrapErr(err)
	}

	results, err := pgx.CollectRows(rows, scanResult)
	if err != nil {
		return nil, wrapErr(err)
	}

	return results, nil
}

func scanResult(row pgx.CollectableRow) (dto.GameResult, error) {
	var (
		res                  dto.GameResult
		roomID, generation   int64
		totalGuesses         int64
		closest, secretValue *int16
	)

	err := row.Scan(
		&res.InstanceID,
		&roomID,
		&generation,
		&res.Arbiter,
		&res.Winner,
		&res.WinType,
		&closest,
		&secretValue,
		&totalGuesses,
		&res.FinishedAt,
	)
	if err != nil {
		return dto.GameResult{}, err
	}

	res.RoomID = uint64(roomID)
	res.Generation = uint64(generation)
	res.TotalGuessCount = uint32(totalGuesses)

	if closest != nil {
		v := uint8(*closest)
		res.ClosestDistance = &v
	}
	if secretValue != nil {
		v := uint8(*secretValue)
		res.Secret = &v
	}

	return res, nil
}

func (r *PostgresRepo) Close() {
	r.pool.Close()
}

func wrapErr(err error) error {
	if errors.Is(err, context.Canceled) || errors.Is(err, context.DeadlineExceeded) {
		return err
	}

	return fmt.Errorf("%w: %w", ErrUnexpectedDatabase, err)
}
