package service

import (
	"context"
	"errors"

	"secret-game-be/internal/service/dto"
	"secret-game-be/internal/service/game"

	"go.uber.org/zap"
)

var ErrHistoryDisabled = errors.New("未配置历史记录存储")

type HistoryStore interface {
	SaveResult(ctx context.Context, result dto.GameResult) error
	RecentResults(ctx context.Context, limit int) ([]dto.GameResult, error)
}

func (gs *GameService) historyLoop(ctx context.Context) {
	for {
		select {
		case <-ctx.Done():
			gs.drainHistory()
			return

		case ev := <-gs.state.historyCh:
			gs.saveResult(context.Background(), ev)
		}
	}
}

// drainHistory 在退出前写完已排队的结果
func (gs *GameService) drainHistory() {
	for {
		select {
		case ev := <-gs.state.historyCh:
			gs.saveResult(context.Background(), ev)
		default:
			return
		}
	}
}

func (gs *GameService) saveResult(parent context.Context, ev game.Event) {
	result, ok := resultFromEvent(ev)
	if !ok {
		return
	}

	ctx, cancel := context.WithTimeout(parent, HISTORY_TIMEOUT)
	defer cancel()

	if err := gs.state.history.SaveResult(ctx, result); err != nil {
		zap.L().Error(
			"保存游戏结果失败",
			zap.Uint64("room_id", result.RoomID),
			zap.Error(err),
		)
		return
	}

	zap.L().Debug("已保存游戏结果", zap.Uint64("room_id", result.RoomID))
}

func resultFromEvent(ev game.Event) (dto.GameResult, bool) {
	data, ok := ev.Data.(game.GameEndedEvent)
	if !ok {
		return dto.GameResult{}, false
	}

	result := dto.GameResult{
		RoomID:          uint64(ev.RoomID),
		Generation:      ev.Generation,
		Arbiter:         string(data.Arbiter),
		Secret:          data.Secret,
		TotalGuessCount: data.TotalGuessCount,
		FinishedAt:      ev.At,
	}

	if data.Outcome != nil {
		winner := string(data.Outcome.Winner)
		winType := string(data.Outcome.WinType)

		result.Winner = &winner
		result.WinType = &winType
		result.ClosestDistance = data.Outcome.ClosestDistance
	}

	return result, true
}

func (gs *GameService) History(ctx context.Context, limit int) ([]dto.GameResult, error) {
	if gs.state.history == nil {
		return nil, ErrHistoryDisabled
	}

	return gs.state.history.RecentResults(ctx, limit)
}
