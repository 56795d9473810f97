package cpu

import (
	"context"

	"github.com/Amr-9/btcvanity/pkg/generator"
)

// DefaultParallelThreshold is the pattern length from which the parallel
// strategy is selected.
const DefaultParallelThreshold = 4

// Strategy identifies one of the search implementations.
type Strategy int

const (
	StrategySequential Strategy = iota
	StrategyParallel
)

// String returns the strategy name.
func (s Strategy) String() string {
	switch s {
	case StrategySequential:
		return "sequential"
	case StrategyParallel:
		return "parallel"
	default:
		return "unknown"
	}
}

// SelectStrategy picks parallel search for patterns of at least threshold
// characters. A non-positive threshold selects DefaultParallelThreshold.
func SelectStrategy(pattern string, threshold int) Strategy {
	if threshold <= 0 {
		threshold = DefaultParallelThreshold
	}
	if len(pattern) >= threshold {
		return StrategyParallel
	}
	return StrategySequential
}

// Engine is a Searcher that dispatches each request to the strategy chosen
// by SelectStrategy.
type Engine struct {
	threshold  int
	sequential *Sequential
	parallel   *Parallel
}

// NewEngine creates an engine sharing cfg between both strategies.
func NewEngine(cfg Config, threshold int) *Engine {
	return &Engine{
		threshold:  threshold,
		sequential: NewSequential(cfg),
		parallel:   NewParallel(cfg),
	}
}

// Name returns the implementation name.
func (e *Engine) Name() string {
	return "auto"
}

// Strategy returns the searcher that would handle pattern.
func (e *Engine) Strategy(pattern string) generator.Searcher {
	if SelectStrategy(pattern, e.threshold) == StrategyParallel {
		return e.parallel
	}
	return e.sequential
}

// Search implements generator.Searcher.
func (e *Engine) Search(ctx context.Context, req *generator.Request,
	hooks generator.Hooks) (generator.Outcome, error) {

	if err := validateRequest(req); err != nil {
		return generator.Outcome{}, err
	}

	return e.Strategy(req.Pattern).Search(ctx, req, hooks)
}
