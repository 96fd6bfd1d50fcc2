package ratelimit

import (
	"testing"
	"time"

	"github.com/peerdrop/relay/pkg/config"
)

type fakeClock struct{ now time.Time }

func (c *fakeClock) Now() time.Time          { return c.now }
func (c *fakeClock) advance(d time.Duration) { c.now = c.now.Add(d) }

var testConf = config.RateLimit{
	Join:   config.Policy{Burst: 3, Rate: 1, RetryAfter: time.Second},
	Signal: config.Policy{Burst: 10, Rate: 5, RetryAfter: time.Second},
	Ice:    config.Policy{Burst: 30, Rate: 20, RetryAfter: 500 * time.Millisecond},
}

func newTestLimiter() (*Limiter, *fakeClock) {
	clock := &fakeClock{now: time.Unix(1700000000, 0)}
	l := newLimiter(testConf, clock)
	return l, clock
}

func TestBurstThenDeny(t *testing.T) {
	l, _ := newTestLimiter()
	defer l.Close()

	for i := 0; i < 3; i++ {
		if r := l.IsAllowed("1.2.3.4", Join); !r.Allowed {
			t.Fatalf("call %v within burst should pass", i+1)
		}
	}
	r := l.IsAllowed("1.2.3.4", Join)
	if r.Allowed {
		t.Fatalf("burst+1 call should be denied")
	}
	if r.RetryAfter <= 0 {
		t.Errorf("denial should carry a positive retry hint, got %v", r.RetryAfter)
	}
}

func TestRemainingCountsDown(t *testing.T) {
	l, _ := newTestLimiter()
	defer l.Close()

	want := []int{2, 1, 0}
	for i, w := range want {
		if r := l.IsAllowed("k", Join); r.Remaining != w {
			t.Errorf("call %v: expected remaining %v, got %v", i+1, w, r.Remaining)
		}
	}
}

func TestRetryAfterGrows(t *testing.T) {
	l, _ := newTestLimiter()
	defer l.Close()

	for i := 0; i < 3; i++ {
		l.IsAllowed("k", Join)
	}
	prev := time.Duration(0)
	for i := 0; i < 5; i++ {
		r := l.IsAllowed("k", Join)
		if r.Allowed {
			t.Fatalf("denial %v unexpectedly passed", i+1)
		}
		if r.RetryAfter < prev {
			t.Errorf("retry hint shrank: %v < %v", r.RetryAfter, prev)
		}
		prev = r.RetryAfter
	}
}

func TestRefill(t *testing.T) {
	l, clock := newTestLimiter()
	defer l.Close()

	for i := 0; i < 3; i++ {
		l.IsAllowed("k", Join)
	}
	if r := l.IsAllowed("k", Join); r.Allowed {
		t.Fatalf("expected denial before refill")
	}

	clock.advance(2 * time.Second) // rate 1/s
	if r := l.IsAllowed("k", Join); !r.Allowed {
		t.Errorf("expected an allowance after refill")
	}
}

func TestIndependentKeysAndOps(t *testing.T) {
	l, _ := newTestLimiter()
	defer l.Close()

	for i := 0; i < 3; i++ {
		l.IsAllowed("a", Join)
	}
	if r := l.IsAllowed("a", Join); r.Allowed {
		t.Fatalf("key a should be throttled")
	}
	if r := l.IsAllowed("b", Join); !r.Allowed {
		t.Errorf("key b should be unaffected by key a")
	}
	if r := l.IsAllowed("a", Signal); !r.Allowed {
		t.Errorf("signal op should be accounted apart from join")
	}
}

func TestClearKeyResets(t *testing.T) {
	l, _ := newTestLimiter()
	defer l.Close()

	for i := 0; i < 4; i++ {
		l.IsAllowed("k", Join)
	}
	l.ClearKey("k")
	if r := l.IsAllowed("k", Join); !r.Allowed {
		t.Errorf("cleared key should start from a full bucket")
	}
}
