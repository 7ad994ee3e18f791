package crawl

import (
	"context"
	"time"

	"go.uber.org/zap"
)

// ItemFunc is one end-to-end attempt for a single input key: navigate,
// solve a challenge if present, submit, extract. Block signals and fatal
// errors must be tagged the same way a Fetcher tags them.
type ItemFunc func(ctx context.Context, key string, handle IdentityHandle) (Fields, error)

// SequencerConfig controls the single-key lookup workflow.
type SequencerConfig struct {
	// SourceKey identifies the input list (typically its file path); the
	// resume cursor is stored under it.
	SourceKey string
	// ItemDelay is the suspension between consecutive keys.
	ItemDelay time.Duration
	// RotateEvery requests a cadence rotation after every n-th success.
	RotateEvery int
}

// Sequencer processes an ordered list of input keys, one fetch-and-extract
// cycle each, persisting a cursor after every key so a crash loses at most
// the in-flight one. It is the single-key counterpart of the Scheduler's
// fetch phase and shares its retry policy through a Retrier.
type Sequencer struct {
	cfg     SequencerConfig
	retrier *Retrier
	rotator Rotator
	store   Store
	pause   Pauser
	logger  *zap.Logger
}

// NewSequencer wires a Sequencer. pause and logger may be nil.
func NewSequencer(
	cfg SequencerConfig,
	retrier *Retrier,
	rotator Rotator,
	store Store,
	pause Pauser,
	logger *zap.Logger,
) *Sequencer {
	if pause == nil {
		pause = NewTimerPauser()
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Sequencer{
		cfg:     cfg,
		retrier: retrier,
		rotator: rotator,
		store:   store,
		pause:   pause,
		logger:  logger,
	}
}

// Run processes keys starting at the persisted cursor. An interrupt between
// keys persists the cursor at the last fully completed index and stops;
// the in-flight key is never recorded as completed.
func (s *Sequencer) Run(ctx context.Context, keys []string, fn ItemFunc) (Stats, error) {
	var stats Stats
	start, err := s.store.GetCursor(ctx, s.cfg.SourceKey)
	if err != nil {
		return stats, &CheckpointError{Op: "load cursor", Err: err}
	}
	if start > len(keys) {
		start = len(keys)
	}
	stats.Skipped = start
	if start > 0 {
		s.logger.Info("resuming from cursor",
			zap.String("source", s.cfg.SourceKey),
			zap.Int("index", start),
		)
	}

	successCount := 0
	for idx := start; idx < len(keys); idx++ {
		if err := ctx.Err(); err != nil {
			return stats, err
		}
		key := keys[idx]

		fields, itemErr := s.attempt(ctx, key, fn)
		if ctx.Err() != nil {
			// Interrupted mid-attempt: the cursor still points at this key.
			return stats, ctx.Err()
		}
		if itemErr != nil {
			stats.Failed++
			observeItemFailure()
			s.logger.Warn("key failed permanently",
				zap.String("key", key),
				zap.Int("index", idx),
				zap.Error(itemErr),
			)
		} else {
			class, uerr := s.store.Upsert(ctx, key, fields, Fingerprint(fields))
			if uerr != nil {
				return stats, &CheckpointError{Op: "upsert " + key, Err: uerr}
			}
			stats.Observe(class)
			observeItem(class)
			successCount++
			if ShouldRotate(successCount, s.cfg.RotateEvery) {
				if rerr := s.rotator.Rotate(ctx, false); rerr != nil {
					s.logger.Warn("cadence rotation unavailable", zap.Error(rerr))
				}
			}
			s.logger.Info("key processed",
				zap.String("key", key),
				zap.Int("index", idx),
				zap.Int("total", len(keys)),
				zap.String("result", string(class)),
			)
		}

		// Success or exhaustion, the key is complete; never revisit it.
		if err := s.store.SetCursor(context.WithoutCancel(ctx), s.cfg.SourceKey, idx+1); err != nil {
			return stats, &CheckpointError{Op: "save cursor", Err: err}
		}

		if idx < len(keys)-1 {
			s.pause.Pause(ctx, s.cfg.ItemDelay)
		}
	}
	return stats, nil
}

func (s *Sequencer) attempt(ctx context.Context, key string, fn ItemFunc) (Fields, error) {
	var fields Fields
	err := s.retrier.Do(ctx, "lookup "+key, func(ctx context.Context, handle IdentityHandle) error {
		f, ferr := fn(ctx, key, handle)
		if ferr != nil {
			return ferr
		}
		fields = f
		return nil
	})
	if err != nil {
		return nil, err
	}
	return fields, nil
}
