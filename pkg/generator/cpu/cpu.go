// Package cpu implements the goroutine based search strategies: a
// sequential batch loop and a parallel coordinator running one batch loop
// per worker.
package cpu

import (
	"context"
	"fmt"
	"io"
	"runtime"
	"sync/atomic"
	"time"

	"github.com/lightningnetwork/lnd/fn/v2"

	"github.com/Amr-9/btcvanity/pkg/generator"
	"github.com/Amr-9/btcvanity/pkg/generator/bitcoin"
)

const (
	// DefaultBatchSize is the number of candidates generated between two
	// cancellation/pause checkpoints.
	DefaultBatchSize = 1000

	// DefaultProgressEvery is the sequential progress throttle in
	// attempts.
	DefaultProgressEvery = 500

	// MaxWorkers caps the default parallel worker count.
	MaxWorkers = 8

	// UnboundedSpan is the per-worker attempt offset used when a search
	// has no attempt limit.
	UnboundedSpan = 1_000_000

	// DefaultPollInterval is how often the parallel coordinator wakes up
	// to report progress.
	DefaultPollInterval = 500 * time.Millisecond

	// DefaultJoinTimeout bounds how long the coordinator waits for
	// cancelled workers before returning without them.
	DefaultJoinTimeout = 2 * time.Second
)

// Config parameterizes both search strategies.
type Config struct {
	// BatchSize is the number of candidates between checkpoints.
	BatchSize int

	// ProgressEvery throttles sequential progress reports.
	ProgressEvery int

	// Workers is the parallel worker count. Zero selects
	// min(runtime.NumCPU(), MaxWorkers).
	Workers int

	// PollInterval is the parallel progress interval.
	PollInterval time.Duration

	// JoinTimeout bounds the wait for cancelled parallel workers.
	JoinTimeout time.Duration

	// Rand is the key entropy source. Nil selects crypto/rand.
	Rand io.Reader
}

// DefaultConfig returns sensible defaults.
func DefaultConfig() Config {
	return Config{
		BatchSize:     DefaultBatchSize,
		ProgressEvery: DefaultProgressEvery,
		PollInterval:  DefaultPollInterval,
		JoinTimeout:   DefaultJoinTimeout,
	}
}

func (c Config) withDefaults() Config {
	if c.BatchSize <= 0 {
		c.BatchSize = DefaultBatchSize
	}
	if c.ProgressEvery <= 0 {
		c.ProgressEvery = DefaultProgressEvery
	}
	if c.PollInterval <= 0 {
		c.PollInterval = DefaultPollInterval
	}
	if c.JoinTimeout <= 0 {
		c.JoinTimeout = DefaultJoinTimeout
	}
	return c
}

// workerCount returns the number of parallel workers to launch.
func (c Config) workerCount() int {
	if c.Workers > 0 {
		return c.Workers
	}
	return min(runtime.NumCPU(), MaxWorkers)
}

// candidateFunc produces one candidate. Tests swap it to inject failures.
type candidateFunc func(io.Reader, generator.AddressFormat) (bitcoin.Candidate, error)

// validateRequest rejects requests that can never start.
func validateRequest(req *generator.Request) error {
	if req == nil {
		return fmt.Errorf("nil search request")
	}
	if !req.Format.Valid() {
		return fmt.Errorf("%w: %d", generator.ErrUnsupportedFormat,
			req.Format)
	}
	return nil
}

// batchLoop generates candidates in fixed-size batches, consulting the
// hooks between batches. One loop is never shared between goroutines.
type batchLoop struct {
	batchSize int
	rand      io.Reader
	format    generator.AddressFormat
	matcher   *bitcoin.Matcher
	hooks     generator.Hooks
	budget    fn.Option[uint64]
	generate  candidateFunc

	// counter, when set, accumulates attempts shared with a
	// coordinator. It is updated once per batch.
	counter *atomic.Uint64

	// sample, when set, receives the last address of every batch.
	sample *atomic.Pointer[string]

	// onAttempt, when set, is called after every candidate.
	onAttempt func(attempts uint64, address string)
}

// run returns the matching candidate together with its 1-based attempt
// number, or nil once the budget is spent. A non-nil error is either the
// context error or a generation failure.
func (l *batchLoop) run(ctx context.Context) (*bitcoin.Candidate, uint64, error) {
	var attempts, flushed uint64
	flush := func() {
		if l.counter != nil {
			l.counter.Add(attempts - flushed)
		}
		flushed = attempts
	}
	defer flush()

	limited := l.budget.IsSome()
	limit := l.budget.UnwrapOr(0)

	for {
		size := uint64(l.batchSize)
		if limited {
			if attempts >= limit {
				return nil, attempts, nil
			}
			size = min(size, limit-attempts)
		}

		if err := l.hooks.Checkpoint(ctx); err != nil {
			return nil, attempts, err
		}

		var last string
		for i := uint64(0); i < size; i++ {
			c, err := l.generate(l.rand, l.format)
			if err != nil {
				return nil, attempts, err
			}
			attempts++
			last = c.Address

			if l.onAttempt != nil {
				l.onAttempt(attempts, c.Address)
			}
			if l.matcher.Matches(c.Address) {
				return &c, attempts, nil
			}
		}

		flush()
		if l.sample != nil {
			l.sample.Store(&last)
		}
	}
}
