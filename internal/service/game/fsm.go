package game

import (
	"time"

	"secret-game-be/internal/service/invite"
	"secret-game-be/internal/service/randomness"

	"go.uber.org/zap"
)

// Engine 是所有房间的状态机。它本身不加锁，调用方必须保证所有操作串行执行
// （见 service.GameService 的事件循环），因此同一房间的猜测顺序即为提交序号。
type Engine struct {
	rooms  map[RoomID]*Room
	nextID RoomID

	directory *Directory
	invites   *invite.Registry
	requests  *randomness.Table
	oracle    randomness.Oracle

	sink EventSink
	now  func() time.Time
}

type EngineOption func(*Engine)

func WithClock(now func() time.Time) EngineOption {
	return func(e *Engine) {
		e.now = now
	}
}

func WithEventSink(sink EventSink) EngineOption {
	return func(e *Engine) {
		e.sink = sink
	}
}

func NewEngine(oracle randomness.Oracle, opts ...EngineOption) *Engine {
	e := &Engine{
		rooms:     make(map[RoomID]*Room),
		nextID:    1,
		directory: NewDirectory(),
		invites:   invite.NewRegistry(),
		oracle:    oracle,
		now:       time.Now,
	}

	for _, opt := range opts {
		opt(e)
	}

	e.requests = randomness.NewTable(e.now)

	return e
}

func (e *Engine) handlerFor(status RoomStatus) StageHandler {
	switch status {
	case STATUS_WAITING:
		return NewWaitStageHandler()
	case STATUS_AWAITING_RANDOMNESS:
		return NewAwaitStageHandler()
	case STATUS_COMMIT_PHASE:
		return NewCommitStageHandler()
	case STATUS_ACTIVE:
		return NewActiveStageHandler()
	case STATUS_FINISHED:
		return NewFinishStageHandler()
	default:
		zap.L().Error("未知的房间状态", zap.String("status", string(status)))
		return nil
	}
}

// dispatch 把动作交给房间当前阶段的处理器，并在状态变化后执行阶段切换
func (e *Engine) dispatch(room *Room, act action) error {
	e.expireCommitWindow(room)

	handler := e.handlerFor(room.Status)
	if handler == nil {
		return reject(ErrRoomNotInExpectedState, "未知状态 %s", room.Status)
	}

	if err := handler.OnHandle(e, room, act); err != nil {
		zap.L().Debug(
			"处理请求失败",
			zap.Uint64("room_id", uint64(room.ID)),
			zap.String("stage", string(handler.Stage())),
			zap.String("action", act.name()),
			zap.Error(err),
		)
		return err
	}

	e.settle(room, handler)

	return nil
}

// settle 在处理器修改了 room.Status 之后依次执行旧阶段的 OnExit 和新阶段的 OnEnter，
// 直到状态稳定（OnEnter 本身也可能再次切换）
func (e *Engine) settle(room *Room, handler StageHandler) {
	for room.Status != handler.Stage() {
		from := handler.Stage()
		handler.OnExit(e, room)

		next := e.handlerFor(room.Status)
		if next == nil {
			return
		}

		zap.L().Info(
			"房间状态切换",
			zap.Uint64("room_id", uint64(room.ID)),
			zap.String("from", string(from)),
			zap.String("to", string(room.Status)),
		)

		next.OnEnter(e, room)

		e.emit(room, EVENT_STATUS_CHANGED, StatusChangedEvent{From: from, To: next.Stage()})

		handler = next
	}
}

func (e *Engine) switchStage(room *Room, next RoomStatus) {
	room.Status = next
}

// expireCommitWindow 在承诺窗口结束后把房间推进到进行阶段
func (e *Engine) expireCommitWindow(room *Room) {
	if room.Status != STATUS_COMMIT_PHASE || room.CommitPeriodEnd == nil {
		return
	}

	if e.now().Before(*room.CommitPeriodEnd) {
		return
	}

	handler := e.handlerFor(room.Status)
	e.switchStage(room, STATUS_ACTIVE)
	e.settle(room, handler)
}

// Tick 推进所有已到期的承诺窗口
func (e *Engine) Tick() {
	for _, room := range e.rooms {
		e.expireCommitWindow(room)
	}
}
