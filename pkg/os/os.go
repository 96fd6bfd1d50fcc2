package os

import (
	"os"
	"os/signal"
	"syscall"
)

// ExpectTermination returns a channel that closes over on
// SIGINT or SIGTERM from the OS.
func ExpectTermination() chan struct{} {
	signals := make(chan os.Signal, 1)
	signal.Notify(signals, os.Interrupt, syscall.SIGTERM)
	done := make(chan struct{}, 1)
	go func() {
		<-signals
		done <- struct{}{}
	}()
	return done
}
