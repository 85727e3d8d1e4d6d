package randomness

import (
	"context"
	"errors"
	"fmt"
	"time"
)

type RequestID string

var ErrStale = errors.New("过期或未知的随机数回调")

type pendingRequest struct {
	roomID     uint64
	generation uint64
	issuedAt   time.Time
}

// Table 将发往预言机的请求与发起请求的房间及其代数关联起来。
// 房间重置后代数递增，旧请求的回调因此可以被识别为过期。
type Table struct {
	pending map[RequestID]pendingRequest
	now     func() time.Time
}

// NewTable 创建请求表，now 为空时使用系统时间
func NewTable(now func() time.Time) *Table {
	if now == nil {
		now = time.Now
	}

	return &Table{
		pending: make(map[RequestID]pendingRequest),
		now:     now,
	}
}

// RequestSecret 向预言机申请随机数，并记录请求与房间的对应关系
func (t *Table) RequestSecret(ctx context.Context, oracle Oracle, roomID, generation uint64) (RequestID, error) {
	id, err := oracle.RequestRandomness(ctx)
	if err != nil {
		return "", fmt.Errorf("请求随机数失败: %w", err)
	}

	t.Track(id, roomID, generation)

	return id, nil
}

func (t *Table) Track(id RequestID, roomID, generation uint64) {
	t.pending[id] = pendingRequest{
		roomID:     roomID,
		generation: generation,
		issuedAt:   t.now(),
	}
}

// Fulfill 消费一个请求记录。current 返回房间当前仍在等待该请求时的代数；
// 房间不存在、不再等待或代数不一致时返回 ErrStale，随机值应被丢弃。
func (t *Table) Fulfill(id RequestID, current func(roomID uint64) (uint64, bool)) (uint64, error) {
	req, ok := t.pending[id]
	if !ok {
		return 0, ErrStale
	}

	delete(t.pending, id)

	generation, ok := current(req.roomID)
	if !ok || generation != req.generation {
		return 0, ErrStale
	}

	return req.roomID, nil
}

func (t *Table) Cancel(id RequestID) {
	delete(t.pending, id)
}

func (t *Table) Pending() int {
	return len(t.pending)
}

// Age 返回请求已等待的时长，未知请求返回 false
func (t *Table) Age(id RequestID) (time.Duration, bool) {
	req, ok := t.pending[id]
	if !ok {
		return 0, false
	}

	return t.now().Sub(req.issuedAt), true
}
