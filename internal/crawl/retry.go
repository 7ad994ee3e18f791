package crawl

import (
	"context"
	"errors"
	"fmt"
	"time"

	"go.uber.org/zap"
)

// RetrierConfig bounds the retry state machine.
type RetrierConfig struct {
	// MaxAttempts caps total attempts of any kind, block retries included.
	MaxAttempts int
	// BaseDelay seeds the exponential backoff applied after transient
	// failures: BaseDelay * 2^(n-1) after the n-th transient failure.
	BaseDelay time.Duration
}

func (c RetrierConfig) withDefaults() RetrierConfig {
	if c.MaxAttempts <= 0 {
		c.MaxAttempts = 3
	}
	if c.BaseDelay <= 0 {
		c.BaseDelay = 5 * time.Second
	}
	return c
}

// Retrier runs identity-bound operations under the shared retry policy:
// block signals force-rotate the identity and retry without a backoff
// penalty, transient errors back off exponentially, fatal errors return
// immediately. Total attempts never exceed MaxAttempts, so total suspension
// is bounded by BaseDelay * (2^MaxAttempts - 1) plus rotation cooldowns.
type Retrier struct {
	rotator Rotator
	pause   Pauser
	cfg     RetrierConfig
	logger  *zap.Logger
}

// NewRetrier constructs a Retrier. pause and logger may be nil.
func NewRetrier(rotator Rotator, pause Pauser, cfg RetrierConfig, logger *zap.Logger) *Retrier {
	if pause == nil {
		pause = NewTimerPauser()
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Retrier{
		rotator: rotator,
		pause:   pause,
		cfg:     cfg.withDefaults(),
		logger:  logger,
	}
}

// Do runs op under the retry policy. label identifies the operation in logs.
func (r *Retrier) Do(ctx context.Context, label string, op func(ctx context.Context, handle IdentityHandle) error) error {
	var lastErr error
	transientFailures := 0

	for attempt := 1; attempt <= r.cfg.MaxAttempts; attempt++ {
		if err := ctx.Err(); err != nil {
			return err
		}
		TotalFetchAttempts.Inc()
		if attempt > 1 {
			TotalRetries.Inc()
		}

		err := op(ctx, r.rotator.Handle())
		if err == nil {
			return nil
		}
		lastErr = err

		var block *BlockSignalError
		switch {
		case errors.As(err, &block):
			// An identity problem, not a load problem: fix the identity
			// before retrying, and skip the backoff penalty.
			TotalBlockSignals.Inc()
			r.logger.Warn("block signal, rotating identity",
				zap.String("op", label),
				zap.String("marker", block.Marker),
				zap.Int("attempt", attempt),
			)
			if rerr := r.rotator.Rotate(ctx, true); rerr != nil {
				r.logger.Warn("identity rotation unavailable, retrying on current identity",
					zap.String("op", label),
					zap.Error(rerr),
				)
			}
		case IsFatal(err):
			return err
		default:
			transientFailures++
			if attempt == r.cfg.MaxAttempts {
				break
			}
			delay := r.cfg.BaseDelay << (transientFailures - 1)
			r.logger.Warn("transient failure, backing off",
				zap.String("op", label),
				zap.Int("attempt", attempt),
				zap.Duration("delay", delay),
				zap.Error(err),
			)
			r.pause.Pause(ctx, delay)
		}
	}

	return fmt.Errorf("%s: %w after %d attempts: %w", label, ErrExhausted, r.cfg.MaxAttempts, lastErr)
}

// RetryingFetcher binds a Retrier to a raw Fetcher, yielding the PageFetcher
// the schedulers consume.
type RetryingFetcher struct {
	retrier *Retrier
	fetcher Fetcher
}

// NewRetryingFetcher wraps fetcher with the retry policy.
func NewRetryingFetcher(retrier *Retrier, fetcher Fetcher) *RetryingFetcher {
	return &RetryingFetcher{retrier: retrier, fetcher: fetcher}
}

// Fetch retrieves url, retrying per the policy.
func (f *RetryingFetcher) Fetch(ctx context.Context, url string) ([]byte, error) {
	var body []byte
	err := f.retrier.Do(ctx, url, func(ctx context.Context, handle IdentityHandle) error {
		b, ferr := f.fetcher.Fetch(ctx, url, handle)
		if ferr != nil {
			return ferr
		}
		body = b
		return nil
	})
	if err != nil {
		return nil, err
	}
	return body, nil
}
