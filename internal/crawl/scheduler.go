package crawl

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"
)

// SchedulerConfig controls the scan-then-fetch crawl.
type SchedulerConfig struct {
	// CheckpointKey names the durable checkpoint for this crawl.
	CheckpointKey string
	// ListingURLTemplate must contain exactly one %d verb for the page
	// number.
	ListingURLTemplate string
	// MaxPages caps the scan phase; 0 relies on EmptyPageThreshold alone.
	MaxPages int
	// EmptyPageThreshold ends the scan after this many consecutive pages
	// that yield no new item URLs; 0 relies on MaxPages alone.
	EmptyPageThreshold int
	// PageDelay is the suspension between listing page fetches.
	PageDelay time.Duration
	// BatchSize is the number of items between batch checkpoints during the
	// fetch phase; 0 checkpoints only at the end.
	BatchSize int
	// BatchDelay is the suspension after each batch checkpoint.
	BatchDelay time.Duration
	// RotateEvery requests a cadence rotation after every n-th success.
	RotateEvery int
	// MaxConsecutiveFailures aborts the run when this many items fail
	// permanently in a row; 0 disables the breaker.
	MaxConsecutiveFailures int
}

func (c SchedulerConfig) validate() error {
	if c.CheckpointKey == "" {
		return errors.New("checkpoint key is required")
	}
	if c.ListingURLTemplate == "" {
		return errors.New("listing url template is required")
	}
	if strings.Count(c.ListingURLTemplate, "%d") != 1 {
		return fmt.Errorf("listing url template %q must contain exactly one %%d verb", c.ListingURLTemplate)
	}
	if c.MaxPages <= 0 && c.EmptyPageThreshold <= 0 {
		return errors.New("either max pages or empty page threshold must be set")
	}
	return nil
}

// Scheduler drives a full crawl: a scan phase that walks paginated listing
// pages to discover item URLs, then a fetch phase that processes every
// discovered item. Progress persists through a checkpoint after every page
// and every batch, so an interrupted run resumes where it left off.
type Scheduler struct {
	cfg     SchedulerConfig
	fetch   PageFetcher
	rotator Rotator
	listing ListingExtractor
	detail  DetailExtractor
	store   Store
	clock   Clock
	pause   Pauser
	logger  *zap.Logger

	successCount int
}

// NewScheduler wires a Scheduler. pause and logger may be nil.
func NewScheduler(
	cfg SchedulerConfig,
	fetch PageFetcher,
	rotator Rotator,
	listing ListingExtractor,
	detail DetailExtractor,
	store Store,
	clock Clock,
	pause Pauser,
	logger *zap.Logger,
) (*Scheduler, error) {
	if err := cfg.validate(); err != nil {
		return nil, err
	}
	if pause == nil {
		pause = NewTimerPauser()
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Scheduler{
		cfg:     cfg,
		fetch:   fetch,
		rotator: rotator,
		listing: listing,
		detail:  detail,
		store:   store,
		clock:   clock,
		pause:   pause,
		logger:  logger,
	}, nil
}

// Run executes the crawl from whatever state the checkpoint records. The
// returned stats cover only work done in this invocation.
func (s *Scheduler) Run(ctx context.Context) (Stats, error) {
	var stats Stats
	runID := uuid.NewString()
	logger := s.logger.With(zap.String("run_id", runID), zap.String("crawl", s.cfg.CheckpointKey))

	cp, err := s.store.LoadCheckpoint(ctx, s.cfg.CheckpointKey)
	if err != nil {
		return stats, &CheckpointError{Op: "load", Err: err}
	}
	if cp == nil {
		cp = NewCheckpoint(s.clock.Now())
		logger.Info("starting new crawl")
	} else {
		logger.Info("resuming crawl",
			zap.String("phase", string(cp.Phase)),
			zap.Int("last_scanned_page", cp.LastScannedPage),
			zap.Int("discovered", len(cp.Discovered)),
			zap.Int("processed", len(cp.Processed)),
		)
	}

	if cp.Phase == PhaseScanning {
		if err := s.scan(ctx, logger, cp); err != nil {
			return stats, err
		}
	}

	if err := s.fetchAll(ctx, logger, cp, &stats); err != nil {
		return stats, err
	}

	if err := s.store.DeleteCheckpoint(ctx, s.cfg.CheckpointKey); err != nil {
		return stats, &CheckpointError{Op: "delete", Err: err}
	}
	logger.Info("crawl complete",
		zap.Int("added", stats.Added),
		zap.Int("modified", stats.Modified),
		zap.Int("unchanged", stats.Unchanged),
		zap.Int("failed", stats.Failed),
	)
	return stats, nil
}

func (s *Scheduler) scan(ctx context.Context, logger *zap.Logger, cp *Checkpoint) error {
	emptyRun := 0
	for {
		page := cp.LastScannedPage + 1
		if s.cfg.MaxPages > 0 && page > s.cfg.MaxPages {
			logger.Info("scan ended by page limit", zap.Int("max_pages", s.cfg.MaxPages))
			break
		}
		if err := ctx.Err(); err != nil {
			return s.saveAndReturn(context.WithoutCancel(ctx), cp, err)
		}

		url := fmt.Sprintf(s.cfg.ListingURLTemplate, page)
		newURLs := 0
		body, err := s.fetch.Fetch(ctx, url)
		if ctx.Err() != nil {
			return s.saveAndReturn(context.WithoutCancel(ctx), cp, ctx.Err())
		}
		if err != nil {
			// A page that cannot be fetched counts as empty so a dead
			// tail of the listing still ends the scan.
			logger.Warn("listing page fetch failed", zap.Int("page", page), zap.Error(err))
		} else {
			urls, exErr := s.listing.ItemURLs(body)
			if exErr != nil {
				logger.Warn("listing extraction failed", zap.Int("page", page), zap.Error(exErr))
			} else {
				newURLs = cp.AddDiscovered(urls)
				s.successCount++
				s.maybeRotate(ctx, logger)
			}
		}

		if newURLs == 0 {
			emptyRun++
		} else {
			emptyRun = 0
		}
		cp.LastScannedPage = page
		if err := s.store.SaveCheckpoint(ctx, s.cfg.CheckpointKey, cp); err != nil {
			return &CheckpointError{Op: "save", Err: err}
		}
		PagesScanned.Inc()
		logger.Debug("listing page scanned",
			zap.Int("page", page),
			zap.Int("new_urls", newURLs),
			zap.Int("discovered", len(cp.Discovered)),
		)

		if s.cfg.EmptyPageThreshold > 0 && emptyRun >= s.cfg.EmptyPageThreshold {
			logger.Info("scan ended by consecutive empty pages",
				zap.Int("threshold", s.cfg.EmptyPageThreshold),
				zap.Int("last_page", page),
			)
			break
		}
		s.pause.Pause(ctx, s.cfg.PageDelay)
	}

	cp.Phase = PhaseFetching
	if err := s.store.SaveCheckpoint(ctx, s.cfg.CheckpointKey, cp); err != nil {
		return &CheckpointError{Op: "save", Err: err}
	}
	logger.Info("scan phase done",
		zap.Int("pages", cp.LastScannedPage),
		zap.Int("discovered", len(cp.Discovered)),
	)
	return nil
}

func (s *Scheduler) fetchAll(ctx context.Context, logger *zap.Logger, cp *Checkpoint, stats *Stats) error {
	remaining := cp.Remaining()
	logger.Info("fetch phase starting",
		zap.Int("remaining", len(remaining)),
		zap.Int("already_processed", len(cp.Processed)),
	)

	batch := 0
	consecutiveFailures := 0
	for _, url := range remaining {
		if err := ctx.Err(); err != nil {
			return s.saveAndReturn(context.WithoutCancel(ctx), cp, err)
		}

		class, itemErr := s.processItem(ctx, url)
		if ctx.Err() != nil {
			// Interrupted mid-item: leave it pending for the next run.
			return s.saveAndReturn(context.WithoutCancel(ctx), cp, ctx.Err())
		}
		if itemErr != nil {
			var cpErr *CheckpointError
			if errors.As(itemErr, &cpErr) {
				return itemErr
			}
			stats.Failed++
			consecutiveFailures++
			observeItemFailure()
			logger.Warn("item failed permanently", zap.String("url", url), zap.Error(itemErr))
		} else {
			stats.Observe(class)
			consecutiveFailures = 0
			s.successCount++
			observeItem(class)
			s.maybeRotate(ctx, logger)
		}

		cp.MarkProcessed(url)
		batch++

		if s.cfg.MaxConsecutiveFailures > 0 && consecutiveFailures >= s.cfg.MaxConsecutiveFailures {
			return s.saveAndReturn(ctx, cp,
				fmt.Errorf("%w: %d in a row", ErrTooManyFailures, consecutiveFailures))
		}

		if s.cfg.BatchSize > 0 && batch%s.cfg.BatchSize == 0 {
			if err := s.store.SaveCheckpoint(ctx, s.cfg.CheckpointKey, cp); err != nil {
				return &CheckpointError{Op: "save", Err: err}
			}
			logger.Debug("batch checkpoint saved", zap.Int("processed", len(cp.Processed)))
			s.pause.Pause(ctx, s.cfg.BatchDelay)
		}
	}

	if err := s.store.SaveCheckpoint(ctx, s.cfg.CheckpointKey, cp); err != nil {
		return &CheckpointError{Op: "save", Err: err}
	}
	return nil
}

func (s *Scheduler) processItem(ctx context.Context, url string) (Classification, error) {
	body, err := s.fetch.Fetch(ctx, url)
	if err != nil {
		return "", err
	}
	key, fields, ok := s.detail.Record(body, url)
	if !ok {
		return "", &FatalError{Op: "extract " + url}
	}
	class, err := s.store.Upsert(ctx, key, fields, Fingerprint(fields))
	if err != nil {
		// Record persistence shares the checkpoint's integrity guarantee.
		return "", &CheckpointError{Op: "upsert " + key, Err: err}
	}
	return class, nil
}

func (s *Scheduler) maybeRotate(ctx context.Context, logger *zap.Logger) {
	if !ShouldRotate(s.successCount, s.cfg.RotateEvery) {
		return
	}
	if err := s.rotator.Rotate(ctx, false); err != nil {
		logger.Warn("cadence rotation unavailable", zap.Error(err))
	}
}

func (s *Scheduler) saveAndReturn(ctx context.Context, cp *Checkpoint, cause error) error {
	if err := s.store.SaveCheckpoint(ctx, s.cfg.CheckpointKey, cp); err != nil {
		return &CheckpointError{Op: "save", Err: err}
	}
	return cause
}
