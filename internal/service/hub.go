package service

import (
	"sync"

	"secret-game-be/internal/service/game"

	"go.uber.org/zap"
)

// 每个订阅者的事件缓冲，写满后新事件会被丢弃
const SUBSCRIBER_BUFFER = 32

// eventHub 按房间把事件分发给订阅者，发送不阻塞事件循环
type eventHub struct {
	mu     sync.RWMutex
	subs   map[game.RoomID]map[chan game.Event]struct{}
	closed bool
}

func newEventHub() *eventHub {
	return &eventHub{
		subs: make(map[game.RoomID]map[chan game.Event]struct{}),
	}
}

func (h *eventHub) subscribe(roomID game.RoomID) (<-chan game.Event, func()) {
	ch := make(chan game.Event, SUBSCRIBER_BUFFER)

	h.mu.Lock()
	if h.closed {
		h.mu.Unlock()
		close(ch)
		return ch, func() {}
	}

	if h.subs[roomID] == nil {
		h.subs[roomID] = make(map[chan game.Event]struct{})
	}
	h.subs[roomID][ch] = struct{}{}
	h.mu.Unlock()

	var once sync.Once
	unsubscribe := func() {
		once.Do(func() {
			h.mu.Lock()
			defer h.mu.Unlock()

			// 房间被清理或服务关闭时通道已经关闭
			if _, ok := h.subs[roomID][ch]; !ok {
				return
			}

			delete(h.subs[roomID], ch)
			if len(h.subs[roomID]) == 0 {
				delete(h.subs, roomID)
			}
			close(ch)
		})
	}

	return ch, unsubscribe
}

func (h *eventHub) publish(ev game.Event) {
	h.mu.RLock()
	defer h.mu.RUnlock()

	for ch := range h.subs[ev.RoomID] {
		select {
		case ch <- ev:
		default:
			zap.L().Warn(
				"订阅者处理过慢，丢弃事件",
				zap.Uint64("room_id", uint64(ev.RoomID)),
				zap.String("event_type", ev.Type),
			)
		}
	}
}

func (h *eventHub) closeRoom(roomID game.RoomID) {
	h.mu.Lock()
	defer h.mu.Unlock()

	for ch := range h.subs[roomID] {
		close(ch)
	}
	delete(h.subs, roomID)
}

func (h *eventHub) closeAll() {
	h.mu.Lock()
	defer h.mu.Unlock()

	for roomID, subs := range h.subs {
		for ch := range subs {
			close(ch)
		}
		delete(h.subs, roomID)
	}

	h.closed = true
}

func (h *eventHub) count(roomID game.RoomID) int {
	h.mu.RLock()
	defer h.mu.RUnlock()

	return len(h.subs[roomID])
}
