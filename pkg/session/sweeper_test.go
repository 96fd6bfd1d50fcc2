package session

import (
	"context"
	"testing"
	"time"

	"github.com/peerdrop/relay/pkg/logger"
)

func TestSweeperReapsInBackground(t *testing.T) {
	conf := testConf
	conf.EmptyGrace = time.Millisecond
	store := NewStore(conf)
	if _, err := store.CreateSession("", 0); err != nil {
		t.Fatal(err)
	}

	sw := NewSweeper(store, 5*time.Millisecond, logger.Default())
	sw.Run()
	defer func() {
		ctx, cancel := context.WithTimeout(context.Background(), time.Second)
		defer cancel()
		if err := sw.Shutdown(ctx); err != nil {
			t.Error(err)
		}
	}()

	deadline := time.Now().Add(2 * time.Second)
	for store.Len() > 0 {
		if time.Now().After(deadline) {
			t.Fatal("empty session was never reaped")
		}
		time.Sleep(5 * time.Millisecond)
	}
}
