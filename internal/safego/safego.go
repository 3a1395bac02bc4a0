// Package safego provides panic-recovering goroutine launchers for background work:
// last-used key refreshes, audit writes and periodic jobs.
package safego

import (
	"context"
	"log/slog"
	"sync"
)

// Go launches fn in a new goroutine. If fn panics, the panic is recovered and
// logged rather than crashing the process.
func Go(fn func()) {
	go func() {
		defer func() {
			if r := recover(); r != nil {
				slog.Error("recovered panic in background goroutine", "panic", r)
			}
		}()
		fn()
	}()
}

// Group launches panic-safe goroutines and lets shutdown wait for the in-flight ones.
// The zero value is ready to use.
type Group struct {
	wg sync.WaitGroup
}

// Go runs fn in a tracked goroutine
func (g *Group) Go(fn func()) {
	g.wg.Add(1)
	Go(func() {
		defer g.wg.Done()
		fn()
	})
}

// Wait blocks until every tracked goroutine has returned or ctx is done,
// in which case ctx.Err() is returned
func (g *Group) Wait(ctx context.Context) error {
	done := make(chan struct{})
	go func() {
		g.wg.Wait()
		close(done)
	}()

	select {
	case <-done:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}
