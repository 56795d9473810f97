package cpu

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"sync/atomic"
	"time"

	"github.com/lightningnetwork/lnd/fn/v2"
	"github.com/lightningnetwork/lnd/ticker"

	"github.com/Amr-9/btcvanity/pkg/generator"
	"github.com/Amr-9/btcvanity/pkg/generator/bitcoin"
)

// Parallel fans the search out over a fixed set of workers, each running
// its own batch loop. The coordinator reports aggregate progress on a
// ticker and returns as soon as one worker finds a match.
type Parallel struct {
	cfg      Config
	generate candidateFunc
}

// NewParallel creates a parallel searcher.
func NewParallel(cfg Config) *Parallel {
	return &Parallel{
		cfg:      cfg.withDefaults(),
		generate: bitcoin.NewCandidate,
	}
}

// Name returns the implementation name.
func (p *Parallel) Name() string {
	return "parallel"
}

// workerPlan is the slice of the search assigned to one worker.
type workerPlan struct {
	index int

	// offset is added to the worker's local attempt counter to give
	// reported attempt numbers a global meaning.
	offset uint64

	budget fn.Option[uint64]
}

// planWorkers splits an attempt limit across n workers so that the budgets
// sum to exactly the limit, handing the remainder to the lowest indices.
// Workers left with nothing to do are omitted. Without a limit every worker
// is unbounded and offset by UnboundedSpan.
func planWorkers(limit fn.Option[uint64], n int) []workerPlan {
	plans := make([]workerPlan, 0, n)

	if limit.IsNone() {
		for i := 0; i < n; i++ {
			plans = append(plans, workerPlan{
				index:  i,
				offset: uint64(i) * UnboundedSpan,
				budget: fn.None[uint64](),
			})
		}
		return plans
	}

	total := limit.UnwrapOr(0)
	base, rem := total/uint64(n), total%uint64(n)

	var offset uint64
	for i := 0; i < n; i++ {
		budget := base
		if uint64(i) < rem {
			budget++
		}
		if budget == 0 {
			continue
		}

		plans = append(plans, workerPlan{
			index:  i,
			offset: offset,
			budget: fn.Some(budget),
		})
		offset += budget
	}

	return plans
}

// workerResult is the single message a worker sends to the coordinator.
type workerResult struct {
	index     int
	candidate *bitcoin.Candidate
	attempt   uint64
	err       error
}

// failed reports whether the worker ended abnormally, as opposed to
// exhausting its budget or being cancelled.
func (r workerResult) failed() bool {
	return errors.Is(r.err, generator.ErrWorkerFailure)
}

// Search implements generator.Searcher.
func (p *Parallel) Search(ctx context.Context, req *generator.Request,
	hooks generator.Hooks) (generator.Outcome, error) {

	if err := validateRequest(req); err != nil {
		return generator.Outcome{}, err
	}

	plans := planWorkers(req.AttemptLimit, p.cfg.workerCount())
	if len(plans) == 0 {
		return generator.NotFound(0), nil
	}

	var (
		total  atomic.Uint64
		sample atomic.Pointer[string]
	)

	workCtx, cancel := context.WithCancel(ctx)
	defer cancel()

	// The buffer lets every worker deliver its result without waiting on
	// the coordinator, so joining can never deadlock.
	results := make(chan workerResult, len(plans))
	workers := fn.NewGoroutineManager()

	matcher := bitcoin.NewMatcher(req.Pattern, req.Position)
	launched := 0
	for _, plan := range plans {
		plan := plan
		loop := &batchLoop{
			batchSize: p.cfg.BatchSize,
			rand:      p.cfg.Rand,
			format:    req.Format,
			matcher:   matcher,
			hooks:     hooks,
			budget:    plan.budget,
			generate:  p.generate,
			counter:   &total,
			sample:    &sample,
		}

		ok := workers.Go(workCtx, func(ctx context.Context) {
			results <- runWorker(ctx, plan, loop)
		})
		if !ok {
			break
		}
		launched++
	}

	log.DebugS(ctx, "Parallel search started",
		slog.Int("workers", launched),
		slog.String("format", req.Format.String()),
		slog.String("pattern", req.Pattern),
		slog.String("position", req.Position.String()))

	progress := ticker.New(p.cfg.PollInterval)
	progress.Resume()
	defer progress.Stop()

	var (
		found    *workerResult
		failures []workerResult
		reported uint64
	)
	collect := func(res workerResult) {
		switch {
		case res.candidate != nil:
			if found == nil {
				found = &res
			}
		case res.failed():
			log.WarnS(ctx, "Search worker failed", res.err,
				slog.Int("worker", res.index))
			failures = append(failures, res)
		}
	}

	pending := launched
wait:
	for pending > 0 && found == nil {
		select {
		case res := <-results:
			pending--
			collect(res)

		case <-progress.Ticks():
			attempts := total.Load()
			if attempts == reported {
				continue
			}
			reported = attempts

			var last string
			if s := sample.Load(); s != nil {
				last = *s
			}
			hooks.Report(attempts, last)

		case <-ctx.Done():
			break wait
		}
	}

	// Release the remaining workers and wait for them before reading the
	// final counters. Workers that outlive the join timeout are abandoned
	// and the search ends as cancelled.
	cancel()
	joined := p.join(ctx, workers)

	for drained := false; !drained; {
		select {
		case res := <-results:
			collect(res)
		default:
			drained = true
		}
	}

	attempts := total.Load()
	switch {
	case found != nil:
		return generator.Found(&generator.Result{
			Format:     req.Format,
			Address:    found.candidate.Address,
			PrivateKey: found.candidate.WIF(),
			Attempts:   found.attempt,
		}), nil

	case ctx.Err() != nil, !joined:
		return generator.Cancelled(attempts), nil
	}

	outcome := generator.NotFound(attempts)
	if len(failures) > 0 {
		outcome.Note = failureNote(failures, launched)
	}

	return outcome, nil
}

// join stops the worker manager and reports whether every worker exited
// within the join timeout. On timeout the stragglers keep being joined in
// the background.
func (p *Parallel) join(ctx context.Context,
	workers *fn.GoroutineManager) bool {

	joined := make(chan struct{})
	go func() {
		workers.Stop()
		close(joined)
	}()

	select {
	case <-joined:
		return true

	case <-time.After(p.cfg.JoinTimeout):
		log.WarnS(ctx, "Search workers did not exit, abandoning them",
			nil, slog.Duration("waited", p.cfg.JoinTimeout))

		return false
	}
}

// runWorker executes one worker's batch loop, converting panics and
// generation errors into ErrWorkerFailure.
func runWorker(ctx context.Context, plan workerPlan,
	loop *batchLoop) (res workerResult) {

	res.index = plan.index

	defer func() {
		if r := recover(); r != nil {
			res.candidate = nil
			res.err = fmt.Errorf("%w: worker %d panicked: %v",
				generator.ErrWorkerFailure, plan.index, r)
		}
	}()

	candidate, attempts, err := loop.run(ctx)
	res.candidate = candidate
	res.attempt = plan.offset + attempts

	switch {
	case err == nil, errors.Is(err, context.Canceled),
		errors.Is(err, context.DeadlineExceeded):

		res.err = err

	default:
		res.err = fmt.Errorf("%w: worker %d: %v",
			generator.ErrWorkerFailure, plan.index, err)
	}

	return res
}

// failureNote summarizes failed workers for a NotFound outcome.
func failureNote(failures []workerResult, launched int) string {
	msgs := make([]string, 0, len(failures))
	for _, f := range failures {
		msgs = append(msgs, f.err.Error())
	}

	prefix := fmt.Sprintf("%d of %d workers failed", len(failures),
		launched)
	if len(failures) == launched {
		prefix = fmt.Sprintf("all %d workers failed", launched)
	}

	return prefix + ": " + strings.Join(msgs, "; ")
}
