// Package job runs vanity searches on behalf of a single session. A
// Controller owns the job state machine, turns lifecycle commands into
// search cancellation and pause gating, and streams throttled events to its
// consumer.
package job

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/lightningnetwork/lnd/queue"

	"github.com/Amr-9/btcvanity/pkg/generator"
)

var (
	// ErrNoActiveJob is returned by Pause, Resume and Stop when nothing
	// is running.
	ErrNoActiveJob = errors.New("no running job")

	// ErrControllerClosed is returned by Start after Close.
	ErrControllerClosed = errors.New("job controller closed")
)

const (
	// DefaultEventBuffer is the initial capacity of the event queue.
	DefaultEventBuffer = 20

	// DefaultJoinTimeout bounds how long Stop waits for a cancelled search
	// to return before finishing the job without it.
	DefaultJoinTimeout = 2 * time.Second
)

// Config holds the controller dependencies.
type Config struct {
	// Searcher runs every job started on the controller.
	Searcher generator.Searcher

	// EventBuffer sizes the event queue. Zero selects
	// DefaultEventBuffer.
	EventBuffer int

	// JoinTimeout bounds the wait for a cancelled search. Zero selects
	// DefaultJoinTimeout.
	JoinTimeout time.Duration
}

// run is the bookkeeping of one started job.
type run struct {
	id      uint64
	req     *generator.Request
	gate    *pauseGate
	cancel  context.CancelFunc
	started time.Time

	// done is closed once the search has returned. outcome and err are
	// valid afterwards.
	done    chan struct{}
	outcome generator.Outcome
	err     error

	// stopping hands the terminal transition to Stop.
	stopping bool
}

// Controller is the per-session job state machine. At most one search is
// active at a time.
type Controller struct {
	searcher    generator.Searcher
	joinTimeout time.Duration

	// cmdMu serializes Start, Stop and Close so that a new job never
	// overlaps the one it replaces.
	cmdMu sync.Mutex

	mu       sync.Mutex
	state    State
	nextID   uint64
	current  *run
	attempts uint64
	closed   bool

	events *queue.ConcurrentQueue
	out    chan Event

	quit chan struct{}
	wg   sync.WaitGroup
}

// NewController creates an idle controller and starts its event pump.
func NewController(cfg Config) *Controller {
	buffer := cfg.EventBuffer
	if buffer <= 0 {
		buffer = DefaultEventBuffer
	}

	joinTimeout := cfg.JoinTimeout
	if joinTimeout <= 0 {
		joinTimeout = DefaultJoinTimeout
	}

	c := &Controller{
		searcher:    cfg.Searcher,
		joinTimeout: joinTimeout,
		events:      queue.NewConcurrentQueue(buffer),
		out:         make(chan Event),
		quit:        make(chan struct{}),
	}
	c.events.Start()

	c.wg.Add(1)
	go c.forwardEvents()

	return c
}

// Events returns the stream of job events. It is closed by Close.
func (c *Controller) Events() <-chan Event {
	return c.out
}

// forwardEvents moves events from the unbounded queue to the typed output
// channel.
//
// NOTE: MUST be run as a goroutine.
func (c *Controller) forwardEvents() {
	defer c.wg.Done()
	defer close(c.out)

	for {
		select {
		case item, ok := <-c.events.ChanOut():
			if !ok {
				return
			}

			select {
			case c.out <- item.(Event):
			case <-c.quit:
				return
			}

		case <-c.quit:
			return
		}
	}
}

// Start validates req, cancels and joins any active job, and launches a new
// search. It returns the new job id.
func (c *Controller) Start(req *generator.Request) (uint64, error) {
	if req == nil {
		return 0, fmt.Errorf("nil search request")
	}
	if !req.Format.Valid() {
		return 0, fmt.Errorf("%w: %d", generator.ErrUnsupportedFormat,
			req.Format)
	}

	c.cmdMu.Lock()
	defer c.cmdMu.Unlock()

	c.mu.Lock()
	closed := c.closed
	c.mu.Unlock()
	if closed {
		return 0, ErrControllerClosed
	}

	if c.stopCurrent() {
		log.Debugf("Superseded previous job before starting a new one")
	}

	ctx, cancel := context.WithCancel(context.Background())

	c.mu.Lock()
	c.nextID++
	r := &run{
		id:      c.nextID,
		req:     req,
		gate:    newPauseGate(),
		cancel:  cancel,
		started: time.Now(),
		done:    make(chan struct{}),
	}
	c.current = r
	c.state = StateRunning
	c.attempts = 0
	c.mu.Unlock()

	log.InfoS(ctx, "Job started",
		slog.Uint64("job_id", r.id),
		slog.String("format", req.Format.String()),
		slog.String("pattern", req.Pattern),
		slog.String("position", req.Position.String()),
		slog.String("searcher", c.searcher.Name()))

	go c.execute(ctx, r)

	return r.id, nil
}

// execute runs the search for r and records its outcome.
//
// NOTE: MUST be run as a goroutine.
func (c *Controller) execute(ctx context.Context, r *run) {
	hooks := generator.Hooks{
		Progress: func(attempts uint64, sample string) {
			c.progress(r, attempts, sample)
		},
		Gate: r.gate,
	}

	outcome, err := c.searcher.Search(ctx, r.req, hooks)

	c.mu.Lock()
	defer c.mu.Unlock()

	r.outcome, r.err = outcome, err
	close(r.done)

	if r.stopping || c.current != r {
		return
	}
	c.finishLocked(r)
}

// progress forwards a throttled progress report unless the job is no longer
// current.
func (c *Controller) progress(r *run, attempts uint64, sample string) {
	c.mu.Lock()
	defer c.mu.Unlock()

	if c.current != r || r.stopping || !c.state.active() {
		return
	}
	if attempts > c.attempts {
		c.attempts = attempts
	}

	c.emitLocked(Event{
		Type:     EventProgress,
		JobID:    r.id,
		Request:  r.req,
		Attempts: c.attempts,
		Elapsed:  time.Since(r.started),
		Sample:   sample,
	})
}

// finishLocked applies the terminal transition for r's outcome.
//
// NOTE: c.mu must be held.
func (c *Controller) finishLocked(r *run) {
	c.attempts = max(c.attempts, r.outcome.Attempts)

	event := Event{
		JobID:    r.id,
		Request:  r.req,
		Attempts: c.attempts,
		Elapsed:  time.Since(r.started),
		Note:     r.outcome.Note,
	}

	switch {
	case r.err != nil:
		c.state = StateCompleted
		event.Type = EventFailed
		event.Note = r.err.Error()

	case r.outcome.Status == generator.StatusFound:
		c.state = StateCompleted
		event.Type = EventFound
		event.Result = r.outcome.Result

	case r.outcome.Status == generator.StatusNotFound:
		c.state = StateCompleted
		event.Type = EventNotFound

	default:
		c.state = StateCancelled
		event.Type = EventCancelled
	}

	log.InfoS(context.Background(), "Job finished",
		slog.Uint64("job_id", r.id),
		slog.String("event", event.Type.String()),
		slog.Uint64("attempts", event.Attempts),
		slog.Duration("elapsed", event.Elapsed))

	c.emitLocked(event)
}

// emitLocked enqueues ev. The queue is unbounded so this only blocks until
// the queue goroutine accepts the item.
//
// NOTE: c.mu must be held.
func (c *Controller) emitLocked(ev Event) {
	select {
	case c.events.ChanIn() <- ev:
	case <-c.quit:
	}
}

// Pause blocks the active search at its next batch boundary.
func (c *Controller) Pause() error {
	c.mu.Lock()
	defer c.mu.Unlock()

	if c.current == nil || !c.state.active() {
		return ErrNoActiveJob
	}
	if c.current.gate.Pause() {
		log.Debugf("Job %d paused", c.current.id)
	}
	c.state = StatePaused

	return nil
}

// Resume releases a paused search.
func (c *Controller) Resume() error {
	c.mu.Lock()
	defer c.mu.Unlock()

	if c.current == nil || !c.state.active() {
		return ErrNoActiveJob
	}
	if c.current.gate.Resume() {
		log.Debugf("Job %d resumed", c.current.id)
	}
	c.state = StateRunning

	return nil
}

// Stop cancels the active search and waits, up to the join timeout, for it
// to exit. A match produced before the search observed cancellation is still
// reported. A search that outlives the timeout is abandoned: the job ends as
// cancelled and anything the search reports later is dropped.
func (c *Controller) Stop() error {
	c.cmdMu.Lock()
	defer c.cmdMu.Unlock()

	if !c.stopCurrent() {
		return ErrNoActiveJob
	}

	return nil
}

// stopCurrent cancels and joins the active job, then emits its terminal
// event. It reports whether there was an active job.
//
// NOTE: c.cmdMu must be held.
func (c *Controller) stopCurrent() bool {
	c.mu.Lock()
	r := c.current
	if r == nil || !c.state.active() {
		c.mu.Unlock()
		return false
	}
	r.stopping = true
	c.state = StateCancelled
	c.mu.Unlock()

	r.cancel()
	joined := c.join(r)

	c.mu.Lock()
	defer c.mu.Unlock()

	found := joined && r.err == nil &&
		r.outcome.Status == generator.StatusFound
	if !found {
		r.err = nil
		r.outcome = generator.Cancelled(
			max(r.outcome.Attempts, c.attempts),
		)
	}
	c.finishLocked(r)

	return true
}

// join waits for r's search to return and reports whether it did so within
// the join timeout.
func (c *Controller) join(r *run) bool {
	select {
	case <-r.done:
		return true

	case <-time.After(c.joinTimeout):
	}

	log.WarnS(context.Background(), "Cancelled job did not exit, "+
		"abandoning it", nil,
		slog.Uint64("job_id", r.id),
		slog.Duration("waited", c.joinTimeout))

	return false
}

// Snapshot returns the current state of the controller.
func (c *Controller) Snapshot() Snapshot {
	c.mu.Lock()
	defer c.mu.Unlock()

	snap := Snapshot{
		State:    c.state,
		Attempts: c.attempts,
	}
	if c.current != nil {
		snap.JobID = c.current.id
		snap.Request = c.current.req
		snap.Elapsed = time.Since(c.current.started)
	}

	return snap
}

// Close stops the active job and shuts the event stream down. Events not
// yet consumed are dropped.
func (c *Controller) Close() {
	c.cmdMu.Lock()
	defer c.cmdMu.Unlock()

	c.mu.Lock()
	if c.closed {
		c.mu.Unlock()
		return
	}
	c.mu.Unlock()

	c.stopCurrent()

	c.mu.Lock()
	c.closed = true
	close(c.quit)
	c.mu.Unlock()

	c.events.Stop()
	c.wg.Wait()
}
