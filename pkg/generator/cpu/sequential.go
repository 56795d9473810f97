package cpu

import (
	"context"
	"errors"
	"log/slog"

	"golang.org/x/time/rate"

	"github.com/Amr-9/btcvanity/pkg/generator"
	"github.com/Amr-9/btcvanity/pkg/generator/bitcoin"
)

// Sequential searches on the calling goroutine. It is the cheaper choice for
// short patterns that are expected to match within a few batches.
type Sequential struct {
	cfg      Config
	generate candidateFunc
}

// NewSequential creates a sequential searcher.
func NewSequential(cfg Config) *Sequential {
	return &Sequential{
		cfg:      cfg.withDefaults(),
		generate: bitcoin.NewCandidate,
	}
}

// Name returns the implementation name.
func (s *Sequential) Name() string {
	return "sequential"
}

// Search implements generator.Searcher. Progress is reported on the first
// attempt and then on every multiple of ProgressEvery.
func (s *Sequential) Search(ctx context.Context, req *generator.Request,
	hooks generator.Hooks) (generator.Outcome, error) {

	if err := validateRequest(req); err != nil {
		return generator.Outcome{}, err
	}

	loop := &batchLoop{
		batchSize: s.cfg.BatchSize,
		rand:      s.cfg.Rand,
		format:    req.Format,
		matcher:   bitcoin.NewMatcher(req.Pattern, req.Position),
		hooks:     hooks,
		budget:    req.AttemptLimit,
		generate:  s.generate,
	}
	if hooks.Progress != nil {
		// Report the first attempt and every multiple of ProgressEvery.
		// The discarded call lines up call k with attempt k.
		throttle := &rate.Sometimes{First: 2, Every: s.cfg.ProgressEvery}
		throttle.Do(func() {})
		loop.onAttempt = func(attempts uint64, address string) {
			throttle.Do(func() { hooks.Report(attempts, address) })
		}
	}

	log.DebugS(ctx, "Sequential search started",
		slog.String("format", req.Format.String()),
		slog.String("pattern", req.Pattern),
		slog.String("position", req.Position.String()))

	candidate, attempts, err := loop.run(ctx)
	switch {
	case candidate != nil:
		return generator.Found(&generator.Result{
			Format:     req.Format,
			Address:    candidate.Address,
			PrivateKey: candidate.WIF(),
			Attempts:   attempts,
		}), nil

	case err == nil:
		return generator.NotFound(attempts), nil

	case errors.Is(err, context.Canceled),
		errors.Is(err, context.DeadlineExceeded):

		return generator.Cancelled(attempts), nil

	default:
		log.WarnS(ctx, "Sequential search aborted", err,
			slog.Uint64("attempts", attempts))

		outcome := generator.NotFound(attempts)
		outcome.Note = err.Error()

		return outcome, nil
	}
}
