package ratelimit

import "time"

const nano = int64(time.Second)

// Clock abstracts the time source, for deterministic tests.
type Clock interface {
	Now() time.Time
}

type RealClock struct{}

func (RealClock) Now() time.Time { return time.Now() }

// bucket is a fixed-point token bucket: one token is 1e9 nano-tokens,
// so a rate of X tokens/sec adds X nano-tokens per elapsed nanosecond
// without float rounding. Not safe for concurrent use; the Limiter
// serializes access.
type bucket struct {
	capacity int64 // tokens
	rate     int64 // tokens/sec

	available int64 // nano-tokens
	last      time.Time
}

func newBucket(now time.Time, capacity, rate int64) *bucket {
	if capacity < 0 {
		capacity = 0
	}
	if rate < 0 {
		rate = 0
	}
	return &bucket{
		capacity:  capacity,
		rate:      rate,
		available: capacity * nano,
		last:      now,
	}
}

// take consumes one token when available and reports the leftover
// token count; when starved it reports the wait until the next token.
func (b *bucket) take(now time.Time) (ok bool, remaining int64, wait time.Duration) {
	b.refill(now)
	if b.available < nano {
		missing := nano - b.available
		if b.rate > 0 {
			wait = time.Duration(missing / b.rate)
		} else {
			wait = time.Duration(missing)
		}
		return false, 0, wait
	}
	b.available -= nano
	return true, b.available / nano, 0
}

func (b *bucket) refill(now time.Time) {
	if now.Before(b.last) {
		// time went backwards, move the reference point only
		b.last = now
		return
	}
	elapsed := now.Sub(b.last).Nanoseconds()
	b.last = now
	if elapsed <= 0 || b.rate <= 0 {
		return
	}
	max := b.capacity * nano
	if b.available >= max {
		return
	}
	need := max - b.available
	if fill := need / b.rate; elapsed >= fill {
		b.available = max
		return
	}
	b.available += elapsed * b.rate
}
