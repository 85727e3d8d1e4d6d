package ratelimit

import (
	"sync"
	"time"

	"golang.org/x/time/rate"
)

const (
	// 超过该数量时清理长时间未活动的身份
	SWEEP_THRESHOLD = 1024
	IDLE_TIMEOUT    = 10 * time.Minute
)

type entry struct {
	limiter  *rate.Limiter
	lastSeen time.Time
}

// Limiter 为每个身份维护独立的令牌桶
type Limiter struct {
	mu      sync.Mutex
	entries map[string]*entry
	limit   rate.Limit
	burst   int
	now     func() time.Time
}

// New 创建限流器，perSecond 为 0 时不限流
func New(perSecond float64, burst int) *Limiter {
	if burst <= 0 {
		burst = 1
	}

	return &Limiter{
		entries: make(map[string]*entry),
		limit:   rate.Limit(perSecond),
		burst:   burst,
		now:     time.Now,
	}
}

func (l *Limiter) Enabled() bool {
	return l != nil && l.limit > 0
}

func (l *Limiter) Allow(identity string) bool {
	if !l.Enabled() {
		return true
	}

	l.mu.Lock()
	defer l.mu.Unlock()

	now := l.now()

	e, ok := l.entries[identity]
	if !ok {
		if len(l.entries) >= SWEEP_THRESHOLD {
			l.sweep(now)
		}

		e = &entry{limiter: rate.NewLimiter(l.limit, l.burst)}
		l.entries[identity] = e
	}

	e.lastSeen = now

	return e.limiter.AllowN(now, 1)
}

func (l *Limiter) sweep(now time.Time) {
	for id, e := range l.entries {
		if now.Sub(e.lastSeen) > IDLE_TIMEOUT {
			delete(l.entries, id)
		}
	}
}

func (l *Limiter) Len() int {
	l.mu.Lock()
	defer l.mu.Unlock()

	return len(l.entries)
}
