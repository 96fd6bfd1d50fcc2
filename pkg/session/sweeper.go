package session

import (
	"context"
	"time"

	"github.com/peerdrop/relay/pkg/logger"
)

// Sweeper periodically reaps expired and long-empty sessions.
// It doesn't notify connections: they find the session gone on
// the next lookup.
type Sweeper struct {
	store    *Store
	interval time.Duration
	log      *logger.Logger
	stop     chan struct{}
	done     chan struct{}
}

func NewSweeper(store *Store, interval time.Duration, log *logger.Logger) *Sweeper {
	return &Sweeper{
		store:    store,
		interval: interval,
		log:      log,
		stop:     make(chan struct{}),
		done:     make(chan struct{}),
	}
}

func (s *Sweeper) Run() { go s.loop() }

func (s *Sweeper) loop() {
	defer close(s.done)
	ticker := time.NewTicker(s.interval)
	defer ticker.Stop()
	for {
		select {
		case <-ticker.C:
			if n := s.store.Sweep(s.store.clock()); n > 0 {
				s.log.Debug().Msgf("Reaped %v expired sessions, %v left", n, s.store.Len())
			}
		case <-s.stop:
			return
		}
	}
}

func (s *Sweeper) Shutdown(ctx context.Context) error {
	close(s.stop)
	select {
	case <-s.done:
	case <-ctx.Done():
		return ctx.Err()
	}
	return nil
}

func (s *Sweeper) String() string { return "sweeper" }
