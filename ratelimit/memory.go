package ratelimit

import (
	"context"
	"hash/fnv"
	"sync"
	"time"
)

const (
	defaultShards  = 32
	defaultMaxKeys = 100_000
)

// MemoryLimiter keeps a sliding log of allowed requests per key. Keys are
// spread across shards so unrelated clients never contend on one mutex.
// Only allowed requests are logged, so a key never holds more than
// MaxRequests timestamps.
type MemoryLimiter struct {
	cfg           Config
	shards        []*shard
	mask          uint32
	maxKeysShard  int
	sweepInterval time.Duration
	now           func() time.Time

	stopOnce sync.Once
	stop     chan struct{}
	done     chan struct{}
}

type shard struct {
	mu      sync.Mutex
	entries map[string]*entry
}

type entry struct {
	hits     []time.Time
	lastSeen time.Time
}

type MemoryOption func(*MemoryLimiter)

// WithShards sets the shard count, rounded up to a power of two.
func WithShards(n int) MemoryOption {
	return func(l *MemoryLimiter) {
		size := 1
		for size < n {
			size <<= 1
		}
		l.shards = make([]*shard, size)
	}
}

// WithMaxKeys caps the number of tracked keys across all shards.
func WithMaxKeys(n int) MemoryOption {
	return func(l *MemoryLimiter) {
		l.maxKeysShard = n
	}
}

func WithClock(now func() time.Time) MemoryOption {
	return func(l *MemoryLimiter) {
		l.now = now
	}
}

func WithSweepInterval(d time.Duration) MemoryOption {
	return func(l *MemoryLimiter) {
		l.sweepInterval = d
	}
}

func NewMemoryLimiter(cfg Config, opts ...MemoryOption) *MemoryLimiter {
	l := &MemoryLimiter{
		cfg:          cfg,
		shards:       make([]*shard, defaultShards),
		maxKeysShard: defaultMaxKeys,
		now:          time.Now,
		stop:         make(chan struct{}),
		done:         make(chan struct{}),
	}
	for _, opt := range opts {
		opt(l)
	}

	// maxKeysShard holds the global cap until here.
	perShard := l.maxKeysShard / len(l.shards)
	if perShard < 1 {
		perShard = 1
	}
	l.maxKeysShard = perShard

	for i := range l.shards {
		l.shards[i] = &shard{entries: make(map[string]*entry)}
	}
	l.mask = uint32(len(l.shards) - 1)

	if l.sweepInterval <= 0 {
		l.sweepInterval = cfg.Window
		if l.sweepInterval > time.Minute {
			l.sweepInterval = time.Minute
		}
	}
	return l
}

func (l *MemoryLimiter) Allow(_ context.Context, key string) (Decision, error) {
	if !l.cfg.valid() {
		return Decision{Allowed: true}, nil
	}

	now := l.now()
	sh := l.shardFor(key)

	sh.mu.Lock()
	defer sh.mu.Unlock()

	e, ok := sh.entries[key]
	if !ok {
		if len(sh.entries) >= l.maxKeysShard {
			sh.evictLeastRecent()
		}
		e = &entry{}
		sh.entries[key] = e
	}
	e.prune(now, l.cfg.Window)
	e.lastSeen = now

	if len(e.hits) >= l.cfg.MaxRequests {
		return Decision{
			Allowed:    false,
			Limit:      l.cfg.MaxRequests,
			Remaining:  0,
			RetryAfter: e.hits[0].Add(l.cfg.Window).Sub(now),
		}, nil
	}

	e.hits = append(e.hits, now)
	return Decision{
		Allowed:   true,
		Limit:     l.cfg.MaxRequests,
		Remaining: l.cfg.MaxRequests - len(e.hits),
	}, nil
}

// Sweep drops keys with no request inside the window and reports how many
// were removed.
func (l *MemoryLimiter) Sweep() int {
	now := l.now()
	removed := 0
	for _, sh := range l.shards {
		sh.mu.Lock()
		for key, e := range sh.entries {
			e.prune(now, l.cfg.Window)
			if len(e.hits) == 0 {
				delete(sh.entries, key)
				removed++
			}
		}
		sh.mu.Unlock()
	}
	return removed
}

// Len reports the number of tracked keys.
func (l *MemoryLimiter) Len() int {
	n := 0
	for _, sh := range l.shards {
		sh.mu.Lock()
		n += len(sh.entries)
		sh.mu.Unlock()
	}
	return n
}

// Start runs the sweeper until ctx is cancelled or Close is called.
func (l *MemoryLimiter) Start(ctx context.Context) {
	go func() {
		defer close(l.done)

		ticker := time.NewTicker(l.sweepInterval)
		defer ticker.Stop()

		for {
			select {
			case <-ctx.Done():
				return
			case <-l.stop:
				return
			case <-ticker.C:
				l.Sweep()
			}
		}
	}()
}

// Close stops the sweeper started by Start.
func (l *MemoryLimiter) Close() {
	l.stopOnce.Do(func() {
		close(l.stop)
	})
}

// Done is closed once the sweeper started by Start has exited.
func (l *MemoryLimiter) Done() <-chan struct{} {
	return l.done
}

func (l *MemoryLimiter) shardFor(key string) *shard {
	h := fnv.New32a()
	_, _ = h.Write([]byte(key))
	return l.shards[h.Sum32()&l.mask]
}

func (e *entry) prune(now time.Time, window time.Duration) {
	i := 0
	for i < len(e.hits) && now.Sub(e.hits[i]) >= window {
		i++
	}
	if i > 0 {
		e.hits = append(e.hits[:0], e.hits[i:]...)
	}
}

func (sh *shard) evictLeastRecent() {
	var (
		oldestKey string
		oldest    time.Time
		found     bool
	)
	for key, e := range sh.entries {
		if !found || e.lastSeen.Before(oldest) {
			oldestKey, oldest, found = key, e.lastSeen, true
		}
	}
	if found {
		delete(sh.entries, oldestKey)
	}
}
