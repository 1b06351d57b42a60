package ratelimit

import (
	"context"
	"math"
	"sync"
	"time"
)

type bucketState struct {
	tokens float64
	ts     time.Time
}

// MemoryBucket runs the same refill rule as TokenBucket inside one process.
type MemoryBucket struct {
	mu      sync.Mutex
	buckets map[string]*bucketState
	rate    float64
	burst   int
	now     func() time.Time
}

func NewMemoryBucket(rate float64, burst int, now func() time.Time) (*MemoryBucket, error) {
	if err := validate(rate, burst); err != nil {
		return nil, err
	}
	if now == nil {
		now = time.Now
	}
	return &MemoryBucket{
		buckets: make(map[string]*bucketState),
		rate:    rate,
		burst:   burst,
		now:     now,
	}, nil
}

func (m *MemoryBucket) Allow(_ context.Context, key string) (Result, error) {
	if key == "" {
		return Result{}, ErrEmptyKey
	}

	m.mu.Lock()
	defer m.mu.Unlock()

	now := m.now()
	state, ok := m.buckets[key]
	if !ok {
		state = &bucketState{tokens: float64(m.burst), ts: now}
		m.buckets[key] = state
	} else {
		delta := now.Sub(state.ts).Seconds()
		if delta < 0 {
			delta = 0
		}
		state.tokens = math.Min(float64(m.burst), state.tokens+delta*m.rate)
		state.ts = now
	}

	allowed := state.tokens >= 1
	if allowed {
		state.tokens--
	}
	m.sweep(now)
	return newResult(allowed, state.tokens, m.rate, m.burst), nil
}

// sweep drops buckets that have fully refilled; they are indistinguishable
// from new ones.
func (m *MemoryBucket) sweep(now time.Time) {
	if len(m.buckets) < 1024 {
		return
	}
	full := time.Duration(float64(m.burst) / m.rate * float64(time.Second))
	for key, state := range m.buckets {
		if now.Sub(state.ts) >= full {
			delete(m.buckets, key)
		}
	}
}
