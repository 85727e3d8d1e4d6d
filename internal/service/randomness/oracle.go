package randomness

import (
	"context"
	"crypto/rand"
	"encoding/binary"
	"errors"
	"math/big"
	"slices"
	"sync"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"
)

var ErrOracleClosed = errors.New("随机数预言机已关闭")

// Oracle 是外部随机数来源。RequestRandomness 立即返回请求 ID，
// 随机值稍后通过回调异步送达。
type Oracle interface {
	RequestRandomness(ctx context.Context) (RequestID, error)
}

type FulfillFunc func(id RequestID, value uint64)

func newRequestID() (RequestID, error) {
	id, err := uuid.NewV7()
	if err != nil {
		return "", err
	}

	return RequestID(id.String()), nil
}

// LocalOracle 在进程内模拟预言机：延迟一段随机时间后用 crypto/rand 生成随机值并回调
type LocalOracle struct {
	minDelay time.Duration
	maxDelay time.Duration

	mu       sync.Mutex
	callback FulfillFunc
	closed   bool

	doneCh chan struct{}
	wg     sync.WaitGroup
}

func NewLocalOracle(minDelay, maxDelay time.Duration) *LocalOracle {
	if maxDelay < minDelay {
		maxDelay = minDelay
	}

	return &LocalOracle{
		minDelay: minDelay,
		maxDelay: maxDelay,
		doneCh:   make(chan struct{}),
	}
}

func (o *LocalOracle) SetCallback(fn FulfillFunc) {
	o.mu.Lock()
	defer o.mu.Unlock()

	o.callback = fn
}

func (o *LocalOracle) RequestRandomness(ctx context.Context) (RequestID, error) {
	if err := ctx.Err(); err != nil {
		return "", err
	}

	o.mu.Lock()
	defer o.mu.Unlock()

	if o.closed {
		return "", ErrOracleClosed
	}

	id, err := newRequestID()
	if err != nil {
		return "", err
	}

	delay, err := o.pickDelay()
	if err != nil {
		return "", err
	}

	o.wg.Add(1)
	go o.deliver(id, delay)

	return id, nil
}

func (o *LocalOracle) deliver(id RequestID, delay time.Duration) {
	defer o.wg.Done()

	timer := time.NewTimer(delay)
	defer timer.Stop()

	select {
	case <-o.doneCh:
		zap.L().Debug("预言机关闭，放弃回调", zap.String("request_id", string(id)))
		return
	case <-timer.C:
	}

	var b [8]byte
	if _, err := rand.Read(b[:]); err != nil {
		zap.L().Error("生成随机数失败", zap.String("request_id", string(id)), zap.Error(err))
		return
	}

	o.mu.Lock()
	callback := o.callback
	o.mu.Unlock()

	if callback == nil {
		zap.L().Warn("预言机未设置回调，随机数被丢弃", zap.String("request_id", string(id)))
		return
	}

	callback(id, binary.BigEndian.Uint64(b[:]))
}

func (o *LocalOracle) pickDelay() (time.Duration, error) {
	span := o.maxDelay - o.minDelay
	if span <= 0 {
		return o.minDelay, nil
	}

	n, err := rand.Int(rand.Reader, big.NewInt(int64(span)+1))
	if err != nil {
		return 0, err
	}

	return o.minDelay + time.Duration(n.Int64()), nil
}

// Close 停止所有尚未送达的回调并等待相关协程退出
func (o *LocalOracle) Close() {
	o.mu.Lock()
	if o.closed {
		o.mu.Unlock()
		return
	}
	o.closed = true
	close(o.doneCh)
	o.mu.Unlock()

	o.wg.Wait()
}

// ExternalOracle 只负责分配请求 ID，随机值由外部服务通过回调接口提交
type ExternalOracle struct {
	mu          sync.Mutex
	outstanding []RequestID
}

func NewExternalOracle() *ExternalOracle {
	return &ExternalOracle{}
}

func (o *ExternalOracle) RequestRandomness(ctx context.Context) (RequestID, error) {
	if err := ctx.Err(); err != nil {
		return "", err
	}

	id, err := newRequestID()
	if err != nil {
		return "", err
	}

	o.mu.Lock()
	o.outstanding = append(o.outstanding, id)
	o.mu.Unlock()

	return id, nil
}

// Outstanding 返回尚未被回调的请求 ID 列表副本
func (o *ExternalOracle) Outstanding() []RequestID {
	o.mu.Lock()
	defer o.mu.Unlock()

	return slices.Clone(o.outstanding)
}

func (o *ExternalOracle) Forget(id RequestID) {
	o.mu.Lock()
	defer o.mu.Unlock()

	o.outstanding = slices.DeleteFunc(o.outstanding, func(x RequestID) bool {
		return x == id
	})
}
