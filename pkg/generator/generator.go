// Package generator defines the shared types for Bitcoin vanity address
// search. Concrete search strategies live in the cpu package and the
// address pipeline lives in the bitcoin package, so both can be swapped
// without touching callers.
package generator

import (
	"context"
	"errors"
	"time"

	"github.com/lightningnetwork/lnd/fn/v2"
)

var (
	// ErrInvalidScalar is returned when a private key is zero or not below
	// the secp256k1 group order.
	ErrInvalidScalar = errors.New("private key is not a valid secp256k1 scalar")

	// ErrUnsupportedFormat is returned for address formats outside the
	// closed AddressFormat set.
	ErrUnsupportedFormat = errors.New("unsupported address format")

	// ErrWorkerFailure marks a parallel worker that terminated abnormally.
	ErrWorkerFailure = errors.New("search worker failed")
)

// AddressFormat represents the Bitcoin address encoding to search in.
type AddressFormat int

const (
	FormatLegacy       AddressFormat = iota // P2PKH - Legacy (1...)
	FormatNestedSegWit                      // P2SH-P2WPKH - Nested SegWit (3...)
	FormatNativeSegWit                      // P2WPKH - Native SegWit (bc1q...)
	FormatTaproot                           // P2TR - Taproot-shaped (bc1p...), untweaked
)

// Formats lists every supported format in display order.
var Formats = []AddressFormat{
	FormatLegacy, FormatNestedSegWit, FormatNativeSegWit, FormatTaproot,
}

// String returns the wire name of the format.
func (f AddressFormat) String() string {
	switch f {
	case FormatLegacy:
		return "p2pkh"
	case FormatNestedSegWit:
		return "p2sh-p2wpkh"
	case FormatNativeSegWit:
		return "p2wpkh"
	case FormatTaproot:
		return "p2tr"
	default:
		return "unknown"
	}
}

// Valid reports whether f is one of the four supported formats.
func (f AddressFormat) Valid() bool {
	return f >= FormatLegacy && f <= FormatTaproot
}

// Position selects where in the address the pattern has to appear.
type Position int

const (
	PositionStart Position = iota
	PositionMiddle
	PositionEnd
)

// String returns the wire name of the position.
func (p Position) String() string {
	switch p {
	case PositionStart:
		return "start"
	case PositionMiddle:
		return "middle"
	case PositionEnd:
		return "end"
	default:
		return "unknown"
	}
}

// ParsePosition maps a wire name onto a Position. An empty string selects
// PositionStart.
func ParsePosition(s string) (Position, error) {
	switch s {
	case "", "start":
		return PositionStart, nil
	case "middle":
		return PositionMiddle, nil
	case "end":
		return PositionEnd, nil
	default:
		return 0, errors.New("unknown pattern position: " + s)
	}
}

// Request describes a single vanity search. It must not be modified once a
// search has started.
type Request struct {
	Format   AddressFormat
	Pattern  string
	Position Position

	// AttemptLimit caps the total number of candidates. None means the
	// search runs until a match or cancellation.
	AttemptLimit fn.Option[uint64]
}

// Result contains a successfully found vanity address and its private key.
type Result struct {
	Format     AddressFormat
	Address    string
	PrivateKey string // WIF, compressed
	Attempts   uint64
}

// Status is the terminal state of a search.
type Status int

const (
	StatusFound Status = iota
	StatusNotFound
	StatusCancelled
)

// String returns a lowercase status name.
func (s Status) String() string {
	switch s {
	case StatusFound:
		return "found"
	case StatusNotFound:
		return "not_found"
	case StatusCancelled:
		return "cancelled"
	default:
		return "unknown"
	}
}

// Outcome is what a Searcher returns. Result is only set for StatusFound.
type Outcome struct {
	Status   Status
	Result   *Result
	Attempts uint64

	// Note carries a human readable explanation for degraded outcomes,
	// e.g. failed workers.
	Note string
}

// Found builds a StatusFound outcome.
func Found(r *Result) Outcome {
	return Outcome{Status: StatusFound, Result: r, Attempts: r.Attempts}
}

// NotFound builds a StatusNotFound outcome.
func NotFound(attempts uint64) Outcome {
	return Outcome{Status: StatusNotFound, Attempts: attempts}
}

// Cancelled builds a StatusCancelled outcome.
func Cancelled(attempts uint64) Outcome {
	return Outcome{Status: StatusCancelled, Attempts: attempts}
}

// ProgressFunc receives throttled progress reports. It may be called from
// any goroutine.
type ProgressFunc func(attempts uint64, sample string)

// Gate is consulted at every batch boundary. Wait blocks while the search is
// paused and returns the context error if the context ends first.
type Gate interface {
	Wait(ctx context.Context) error
}

// Hooks are the optional callbacks a Searcher reports through.
type Hooks struct {
	Progress ProgressFunc
	Gate     Gate
}

// Report calls the progress callback if one is set.
func (h Hooks) Report(attempts uint64, sample string) {
	if h.Progress != nil {
		h.Progress(attempts, sample)
	}
}

// Checkpoint runs the cancellation check and the pause gate.
func (h Hooks) Checkpoint(ctx context.Context) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	if h.Gate != nil {
		return h.Gate.Wait(ctx)
	}
	return nil
}

// Stats holds real-time performance statistics.
type Stats struct {
	Attempts    uint64  // Total number of addresses generated
	HashRate    float64 // Addresses per second
	ElapsedSecs float64 // Time elapsed since start
}

// NewStats derives the hash rate from an attempt count and elapsed time.
func NewStats(attempts uint64, elapsed time.Duration) Stats {
	secs := elapsed.Seconds()

	var rate float64
	if secs > 0 {
		rate = float64(attempts) / secs
	}

	return Stats{
		Attempts:    attempts,
		HashRate:    rate,
		ElapsedSecs: secs,
	}
}

// Searcher defines the contract for search strategies.
type Searcher interface {
	// Search runs until a match, exhaustion of the attempt limit, or
	// cancellation of ctx. Only an invalid request yields an error.
	Search(ctx context.Context, req *Request, hooks Hooks) (Outcome, error)

	// Name returns the implementation name (e.g. "sequential").
	Name() string
}
