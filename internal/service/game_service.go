package service

import (
	"context"
	"errors"
	"sync"
	"time"

	"secret-game-be/internal/service/game"
	"secret-game-be/internal/service/randomness"

	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"
)

const (
	// 请求进入事件循环的超时时间
	REQUEST_TIMEOUT = 5 * time.Second
	// 请求通道缓冲
	REQUEST_BUFFER = 64
	// 写入历史记录的缓冲与单次超时
	HISTORY_BUFFER  = 64
	HISTORY_TIMEOUT = 5 * time.Second
)

var (
	ErrServiceBusy   = errors.New("服务繁忙，请稍后再试")
	ErrServiceClosed = errors.New("服务已关闭")
)

type Options struct {
	// 承诺窗口的检查周期
	CommitTick time.Duration
	// 清理结束房间的周期，以及结束后保留多久
	PurgeInterval time.Duration
	Retention     time.Duration

	Clock func() time.Time
}

func (o Options) withDefaults() Options {
	if o.CommitTick <= 0 {
		o.CommitTick = time.Second
	}

	if o.PurgeInterval <= 0 {
		o.PurgeInterval = time.Minute
	}

	if o.Retention <= 0 {
		o.Retention = time.Hour
	}

	if o.Clock == nil {
		o.Clock = time.Now
	}

	return o
}

// GameService 把所有对引擎的读写排进同一个事件循环，保证全局唯一的执行顺序
type GameService struct {
	state *gameServiceState
}

type gameServiceState struct {
	engine *game.Engine
	oracle randomness.Oracle
	opts   Options

	reqCh chan gameRequest
	hub   *eventHub

	history   HistoryStore
	historyCh chan game.Event

	doneCh    chan struct{}
	closeOnce sync.Once
}

type gameRequest struct {
	run  func(e *game.Engine)
	done chan struct{}
}

// NewGameService 创建服务，history 为 nil 时不记录历史
func NewGameService(oracle randomness.Oracle, history HistoryStore, opts Options) *GameService {
	opts = opts.withDefaults()

	state := &gameServiceState{
		oracle:  oracle,
		opts:    opts,
		reqCh:   make(chan gameRequest, REQUEST_BUFFER),
		hub:     newEventHub(),
		history: history,
		doneCh:  make(chan struct{}),
	}

	if history != nil {
		state.historyCh = make(chan game.Event, HISTORY_BUFFER)
	}

	state.engine = game.NewEngine(
		oracle,
		game.WithClock(opts.Clock),
		game.WithEventSink(game.EventSinkFunc(state.publish)),
	)

	return &GameService{
		state: state,
	}
}

// Run 运行事件循环、承诺窗口检查和清理任务，直到 ctx 结束
func (gs *GameService) Run(ctx context.Context) error {
	g, ctx := errgroup.WithContext(ctx)

	g.Go(func() error {
		gs.loop(ctx)
		return nil
	})

	if gs.state.history != nil {
		g.Go(func() error {
			gs.historyLoop(ctx)
			return nil
		})
	}

	zap.L().Info("游戏服务已启动")

	err := g.Wait()

	zap.L().Info("游戏服务已停止")

	return err
}

func (gs *GameService) loop(ctx context.Context) {
	state := gs.state

	commitTicker := time.NewTicker(state.opts.CommitTick)
	defer commitTicker.Stop()

	purgeTicker := time.NewTicker(state.opts.PurgeInterval)
	defer purgeTicker.Stop()

	defer gs.close()

	for {
		select {
		case <-ctx.Done():
			zap.L().Info("事件循环收到退出信号")
			return

		case req := <-state.reqCh:
			execute(state.engine, req)

		case <-commitTicker.C:
			state.engine.Tick()

		case <-purgeTicker.C:
			purged := state.engine.Purge(state.opts.Clock().Add(-state.opts.Retention))
			if len(purged) > 0 {
				zap.L().Info("清理结束的房间", zap.Int("count", len(purged)))
			}
		}
	}
}

func execute(engine *game.Engine, req gameRequest) {
	defer close(req.done)

	req.run(engine)
}

func (gs *GameService) close() {
	gs.state.closeOnce.Do(func() {
		close(gs.state.doneCh)
		gs.state.hub.closeAll()
	})
}

// submit 把一次引擎调用交给事件循环，并等待其执行完成
func (gs *GameService) submit(ctx context.Context, fn func(e *game.Engine)) error {
	if err := ctx.Err(); err != nil {
		return err
	}

	req := gameRequest{
		run:  fn,
		done: make(chan struct{}),
	}

	reqTimer := time.NewTimer(REQUEST_TIMEOUT)
	defer reqTimer.Stop()

	select {
	case gs.state.reqCh <- req:
	case <-gs.state.doneCh:
		return ErrServiceClosed
	case <-ctx.Done():
		return ctx.Err()
	case <-reqTimer.C:
		zap.L().Warn("事件循环无法及时接收请求")
		return ErrServiceBusy
	}

	// 请求一旦入队就一定会被执行，此后只等待完成，不再因超时或 ctx 取消提前返回
	select {
	case <-req.done:
		return nil
	case <-gs.state.doneCh:
		// 循环退出前可能已经执行完毕
		select {
		case <-req.done:
			return nil
		default:
			return ErrServiceClosed
		}
	}
}

func call[T any](ctx context.Context, gs *GameService, fn func(e *game.Engine) (T, error)) (T, error) {
	var (
		res   T
		opErr error
	)

	err := gs.submit(ctx, func(e *game.Engine) {
		res, opErr = fn(e)
	})
	if err != nil {
		var zero T
		return zero, err
	}

	return res, opErr
}

func exec(ctx context.Context, gs *GameService, fn func(e *game.Engine) error) error {
	_, err := call(ctx, gs, func(e *game.Engine) (struct{}, error) {
		return struct{}{}, fn(e)
	})
	return err
}

// publish 在事件循环内被引擎调用
func (state *gameServiceState) publish(ev game.Event) {
	state.hub.publish(ev)

	if ev.Type == game.EVENT_ROOM_PURGED {
		state.hub.closeRoom(ev.RoomID)
	}

	if ev.Type == game.EVENT_GAME_ENDED && state.historyCh != nil {
		select {
		case state.historyCh <- ev:
		default:
			zap.L().Warn("历史记录队列已满，丢弃结果", zap.Uint64("room_id", uint64(ev.RoomID)))
		}
	}
}

// Subscribe 订阅房间事件，返回的取消函数可以重复调用
func (gs *GameService) Subscribe(roomID game.RoomID) (<-chan game.Event, func()) {
	return gs.state.hub.subscribe(roomID)
}

// HandleFulfillment 是本地预言机的回调
func (gs *GameService) HandleFulfillment(id randomness.RequestID, value uint64) {
	roomID, err := gs.FulfillRandomness(context.Background(), id, value)
	if err != nil {
		zap.L().Warn(
			"随机数回调未被采纳",
			zap.String("request_id", string(id)),
			zap.Error(err),
		)
		return
	}

	zap.L().Info(
		"随机数已送达",
		zap.String("request_id", string(id)),
		zap.Uint64("room_id", uint64(roomID)),
	)
}

func (gs *GameService) FulfillRandomness(ctx context.Context, id randomness.RequestID, value uint64) (game.RoomID, error) {
	roomID, err := call(ctx, gs, func(e *game.Engine) (game.RoomID, error) {
		return e.OnRandomnessFulfilled(id, value)
	})

	// 已处理（包括过期）的请求不再需要外部预言机应答
	if ext, ok := gs.state.oracle.(*randomness.ExternalOracle); ok && (err == nil || game.CodeOf(err) != game.CODE_INTERNAL) {
		ext.Forget(id)
	}

	return roomID, err
}
