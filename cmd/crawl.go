package cmd

import (
	"context"
	"errors"
	"fmt"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/guidewatch/guidewatch/internal/crawl"
	"github.com/guidewatch/guidewatch/internal/extract"
	collyfetcher "github.com/guidewatch/guidewatch/internal/fetcher/colly"
)

// newCrawlCmd creates and configures the 'crawl' subcommand.
func newCrawlCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "crawl",
		Short: "Run the listing crawl",
		Long: `Walks the guide's paginated listing to discover entry URLs, then fetches
every discovered entry and ingests it. Progress persists in a checkpoint:
an interrupted crawl resumes exactly where it stopped.`,
		RunE: runCrawlCommand,
	}
	cmd.Flags().Bool("reset", false, "discard the saved checkpoint and start over")
	return cmd
}

func runCrawlCommand(cmd *cobra.Command, _ []string) error {
	ctx, stop := signal.NotifyContext(cmd.Context(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	rt, err := newRuntime(ctx)
	if err != nil {
		return err
	}
	defer rt.Close()

	if reset, _ := cmd.Flags().GetBool("reset"); reset {
		if err := rt.store.DeleteCheckpoint(ctx, rt.cfg.Crawl.CheckpointKey); err != nil {
			return fmt.Errorf("reset checkpoint: %w", err)
		}
		rt.logger.Info("checkpoint discarded", zap.String("crawl", rt.cfg.Crawl.CheckpointKey))
	}

	scheduler, err := buildScheduler(rt)
	if err != nil {
		return err
	}

	stats, runErr := scheduler.Run(ctx)
	rt.logger.Info("crawl run finished",
		zap.Int("added", stats.Added),
		zap.Int("modified", stats.Modified),
		zap.Int("unchanged", stats.Unchanged),
		zap.Int("failed", stats.Failed),
	)
	if runErr != nil && !errors.Is(runErr, context.Canceled) {
		return fmt.Errorf("run crawl: %w", runErr)
	}
	return nil
}

func buildScheduler(rt *runtime) (*crawl.Scheduler, error) {
	fetcher := collyfetcher.New(collyfetcher.Config{
		UserAgents:   rt.cfg.Fetch.UserAgents,
		Timeout:      rt.cfg.FetchTimeout(),
		BlockMarkers: rt.cfg.Fetch.BlockMarkers,
	})
	retryFetch := crawl.NewRetryingFetcher(rt.newRetrier(), fetcher)

	listing, err := extract.NewListing(rt.cfg.Crawl.BaseURL, rt.cfg.Crawl.ItemSelector)
	if err != nil {
		return nil, fmt.Errorf("init listing extractor: %w", err)
	}
	detail, err := extract.NewDetail(rt.cfg.Crawl.FieldSelectors, rt.cfg.Crawl.KeyPattern)
	if err != nil {
		return nil, fmt.Errorf("init detail extractor: %w", err)
	}

	scheduler, err := crawl.NewScheduler(crawl.SchedulerConfig{
		CheckpointKey:          rt.cfg.Crawl.CheckpointKey,
		ListingURLTemplate:     rt.cfg.Crawl.ListingURLTemplate,
		MaxPages:               rt.cfg.Crawl.MaxPages,
		EmptyPageThreshold:     rt.cfg.Crawl.EmptyPageThreshold,
		PageDelay:              secondsToDuration(rt.cfg.Crawl.PageDelaySec),
		BatchSize:              rt.cfg.Crawl.BatchSize,
		BatchDelay:             secondsToDuration(rt.cfg.Crawl.BatchDelaySec),
		RotateEvery:            rt.cfg.Crawl.RotateEvery,
		MaxConsecutiveFailures: rt.cfg.Crawl.MaxConsecutiveFailures,
	}, retryFetch, rt.rotator, listing, detail, rt.store, rt.clock, nil, rt.logger)
	if err != nil {
		return nil, fmt.Errorf("init scheduler: %w", err)
	}
	return scheduler, nil
}
