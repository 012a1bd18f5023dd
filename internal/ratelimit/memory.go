package ratelimit

import (
	"context"
	"fmt"
	"hash/fnv"
	"sync"
	"time"

	"go.uber.org/zap"
)

const (
	shardCount           = 32
	defaultSweepInterval = 5 * time.Minute
)

type record struct {
	count   int
	resetAt time.Time
}

type shard struct {
	mu      sync.Mutex
	records map[string]*record
}

// MemoryOption customizes a MemoryLimiter.
type MemoryOption func(*MemoryLimiter)

// WithClock overrides the time source.
func WithClock(now func() time.Time) MemoryOption {
	return func(l *MemoryLimiter) { l.now = now }
}

// WithSweepInterval sets how often elapsed records are removed.
func WithSweepInterval(d time.Duration) MemoryOption {
	return func(l *MemoryLimiter) {
		if d > 0 {
			l.sweepInterval = d
		}
	}
}

// WithLogger attaches a logger to the sweep loop.
func WithLogger(logger *zap.Logger) MemoryOption {
	return func(l *MemoryLimiter) {
		if logger != nil {
			l.logger = logger
		}
	}
}

// MemoryLimiter is a process-local fixed-window limiter. Keys are spread
// over shards; each shard's lock covers the whole check-and-increment.
type MemoryLimiter struct {
	shards        [shardCount]shard
	now           func() time.Time
	sweepInterval time.Duration
	logger        *zap.Logger

	lifecycle sync.Mutex
	cancel    context.CancelFunc
	done      chan struct{}
}

// NewMemoryLimiter builds a limiter. Call Start to run the background sweep.
func NewMemoryLimiter(opts ...MemoryOption) *MemoryLimiter {
	l := &MemoryLimiter{
		now:           time.Now,
		sweepInterval: defaultSweepInterval,
		logger:        zap.NewNop(),
	}
	for i := range l.shards {
		l.shards[i].records = make(map[string]*record)
	}
	for _, opt := range opts {
		opt(l)
	}
	return l
}

// CheckAndIncrement implements Limiter.
func (l *MemoryLimiter) CheckAndIncrement(ctx context.Context, key string, maxAttempts int, window time.Duration) (Decision, error) {
	if err := ctx.Err(); err != nil {
		return Decision{}, err
	}
	if maxAttempts <= 0 || window <= 0 {
		return Decision{}, fmt.Errorf("ratelimit: invalid budget %d per %s", maxAttempts, window)
	}

	s := l.shardFor(key)
	s.mu.Lock()
	defer s.mu.Unlock()

	now := l.now()
	rec, ok := s.records[key]
	if !ok || !now.Before(rec.resetAt) {
		rec = &record{count: 1, resetAt: now.Add(window)}
		s.records[key] = rec
	} else {
		rec.count++
	}
	return decide(rec.count, maxAttempts, rec.resetAt)
}

// Sweep deletes every record whose window has elapsed and returns how many were removed.
func (l *MemoryLimiter) Sweep() int {
	now := l.now()
	removed := 0
	for i := range l.shards {
		s := &l.shards[i]
		s.mu.Lock()
		for key, rec := range s.records {
			if !now.Before(rec.resetAt) {
				delete(s.records, key)
				removed++
			}
		}
		s.mu.Unlock()
	}
	return removed
}

// Len returns the number of tracked keys, elapsed or not.
func (l *MemoryLimiter) Len() int {
	n := 0
	for i := range l.shards {
		s := &l.shards[i]
		s.mu.Lock()
		n += len(s.records)
		s.mu.Unlock()
	}
	return n
}

// Start launches the sweep loop. It is a no-op if already running.
func (l *MemoryLimiter) Start(ctx context.Context) {
	l.lifecycle.Lock()
	defer l.lifecycle.Unlock()
	if l.cancel != nil {
		return
	}

	ctx, cancel := context.WithCancel(ctx)
	l.cancel = cancel
	l.done = make(chan struct{})

	go l.sweepLoop(ctx, l.done)
}

// Stop halts the sweep loop and waits for it to exit.
func (l *MemoryLimiter) Stop() {
	l.lifecycle.Lock()
	cancel, done := l.cancel, l.done
	l.cancel, l.done = nil, nil
	l.lifecycle.Unlock()

	if cancel == nil {
		return
	}
	cancel()
	<-done
}

func (l *MemoryLimiter) sweepLoop(ctx context.Context, done chan struct{}) {
	defer close(done)

	ticker := time.NewTicker(l.sweepInterval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			if removed := l.Sweep(); removed > 0 {
				l.logger.Debug("rate limit sweep", zap.Int("removed", removed))
			}
		}
	}
}

func (l *MemoryLimiter) shardFor(key string) *shard {
	h := fnv.New32a()
	_, _ = h.Write([]byte(key))
	return &l.shards[h.Sum32()%shardCount]
}
