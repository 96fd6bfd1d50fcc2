package ratelimit

import (
	"sync"
	"time"

	"github.com/jellydator/ttlcache/v3"
	"github.com/peerdrop/relay/pkg/config"
)

// Op names a rate-limited operation class, each with its own policy.
type Op uint8

const (
	// Join guards session join attempts; keyed by caller IP to blunt
	// session id enumeration.
	Join Op = iota
	// Signal guards general signaling messages; keyed by connection.
	Signal
	// Ice guards high-frequency ICE candidate messages; keyed by connection.
	Ice
)

func (o Op) String() string {
	switch o {
	case Join:
		return "join"
	case Signal:
		return "signal"
	case Ice:
		return "ice"
	}
	return "?"
}

var ops = []Op{Join, Signal, Ice}

// Result is the verdict of one admission check.
type Result struct {
	Allowed bool
	// RetryAfter is the back-off hint on denial; it never shrinks
	// while violations keep coming.
	RetryAfter time.Duration
	// Remaining is the number of operations left before throttling.
	Remaining int
}

type entryKey struct {
	key string
	op  Op
}

type entry struct {
	bucket     *bucket
	violations int64
	deniedAt   time.Time
	lastRetry  time.Duration
}

// idleTTL evicts counters whose key went quiet without an explicit
// ClearKey, e.g. join attempts from IPs that never connected.
const idleTTL = 10 * time.Minute

// Limiter answers "allowed now?" per (key, operation) pair.
// Accounting is independent per pair; memory is bounded by ClearKey
// on disconnect plus TTL eviction of idle entries.
type Limiter struct {
	clock    Clock
	policies map[Op]config.Policy

	mu      sync.Mutex
	entries *ttlcache.Cache[entryKey, *entry]
}

func NewLimiter(conf config.RateLimit) *Limiter {
	return newLimiter(conf, RealClock{})
}

func newLimiter(conf config.RateLimit, clock Clock) *Limiter {
	l := &Limiter{
		clock: clock,
		policies: map[Op]config.Policy{
			Join:   conf.Join,
			Signal: conf.Signal,
			Ice:    conf.Ice,
		},
		entries: ttlcache.New[entryKey, *entry](
			ttlcache.WithTTL[entryKey, *entry](idleTTL),
		),
	}
	go l.entries.Start()
	return l
}

// IsAllowed checks and accounts one operation for the key.
// Repeated denials within the retry window report a monotonically
// non-decreasing RetryAfter so clients can back off.
func (l *Limiter) IsAllowed(key string, op Op) Result {
	policy := l.policies[op]
	now := l.clock.Now()

	l.mu.Lock()
	defer l.mu.Unlock()

	k := entryKey{key: key, op: op}
	var e *entry
	if item := l.entries.Get(k); item != nil {
		e = item.Value()
	} else {
		e = &entry{bucket: newBucket(now, int64(policy.Burst), int64(policy.Rate))}
		l.entries.Set(k, e, ttlcache.DefaultTTL)
	}

	ok, remaining, wait := e.bucket.take(now)
	if ok {
		e.violations = 0
		e.lastRetry = 0
		return Result{Allowed: true, Remaining: int(remaining)}
	}

	if !e.deniedAt.IsZero() && now.Sub(e.deniedAt) > policy.RetryAfter*2 {
		// the violation streak went stale
		e.violations = 0
		e.lastRetry = 0
	}
	e.violations++
	e.deniedAt = now

	retry := wait + time.Duration(e.violations-1)*policy.RetryAfter
	if retry < policy.RetryAfter {
		retry = policy.RetryAfter
	}
	if retry < e.lastRetry {
		retry = e.lastRetry
	}
	e.lastRetry = retry
	return Result{RetryAfter: retry}
}

// ClearKey drops all per-operation counters of the key,
// called when the key's connection goes away.
func (l *Limiter) ClearKey(key string) {
	l.mu.Lock()
	defer l.mu.Unlock()
	for _, op := range ops {
		l.entries.Delete(entryKey{key: key, op: op})
	}
}

// Close stops the idle-entry janitor.
func (l *Limiter) Close() { l.entries.Stop() }
