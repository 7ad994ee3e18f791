package crawl

import (
	"errors"
	"fmt"
)

// ErrExhausted is returned by the retrier when every attempt failed. The
// final underlying error is wrapped alongside it.
var ErrExhausted = errors.New("retry attempts exhausted")

// ErrTooManyFailures aborts a run once the consecutive-failure circuit
// breaker trips.
var ErrTooManyFailures = errors.New("too many consecutive item failures")

// BlockSignalError reports that the source is actively refusing the current
// identity: a denial page, an HTTP 403/429, or a configured body marker.
// It is produced at the fetcher boundary, never inferred downstream.
// The retrier reacts by force-rotating the identity instead of backing off.
type BlockSignalError struct {
	URL    string
	Marker string
}

func (e *BlockSignalError) Error() string {
	return fmt.Sprintf("blocked fetching %s (marker %q)", e.URL, e.Marker)
}

// FatalError marks a failure that retrying cannot fix within the current
// attempt loop: unextractable content, a failed challenge solve. The item is
// counted as failed; the run continues.
type FatalError struct {
	Op  string
	Err error
}

func (e *FatalError) Error() string {
	if e.Err == nil {
		return e.Op
	}
	return fmt.Sprintf("%s: %v", e.Op, e.Err)
}

func (e *FatalError) Unwrap() error { return e.Err }

// CheckpointError wraps a checkpoint or cursor persistence failure. It is
// always fatal to the run: without durable progress the engine cannot
// guarantee resume correctness.
type CheckpointError struct {
	Op  string
	Err error
}

func (e *CheckpointError) Error() string {
	return fmt.Sprintf("checkpoint %s: %v", e.Op, e.Err)
}

func (e *CheckpointError) Unwrap() error { return e.Err }

// IsBlockSignal reports whether err carries a block signal.
func IsBlockSignal(err error) bool {
	var b *BlockSignalError
	return errors.As(err, &b)
}

// IsFatal reports whether err is a non-retryable item failure.
func IsFatal(err error) bool {
	var f *FatalError
	return errors.As(err, &f)
}
