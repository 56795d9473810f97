package job

import (
	"context"
	"sync"
)

// pauseGate blocks searchers at batch boundaries while paused. Waiters park
// on a channel that is closed on resume.
type pauseGate struct {
	mu      sync.Mutex
	paused  bool
	resumed chan struct{}
}

func newPauseGate() *pauseGate {
	resumed := make(chan struct{})
	close(resumed)

	return &pauseGate{resumed: resumed}
}

// Pause makes subsequent Wait calls block. It returns false if the gate was
// already paused.
func (g *pauseGate) Pause() bool {
	g.mu.Lock()
	defer g.mu.Unlock()

	if g.paused {
		return false
	}
	g.paused = true
	g.resumed = make(chan struct{})

	return true
}

// Resume releases every blocked waiter. It returns false if the gate was not
// paused.
func (g *pauseGate) Resume() bool {
	g.mu.Lock()
	defer g.mu.Unlock()

	if !g.paused {
		return false
	}
	g.paused = false
	close(g.resumed)

	return true
}

// Wait implements generator.Gate.
func (g *pauseGate) Wait(ctx context.Context) error {
	g.mu.Lock()
	resumed := g.resumed
	g.mu.Unlock()

	select {
	case <-resumed:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}
