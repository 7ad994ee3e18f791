package cmd

import (
	"context"
	"errors"
	"fmt"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/guidewatch/guidewatch/internal/captcha"
	"github.com/guidewatch/guidewatch/internal/crawl"
	"github.com/guidewatch/guidewatch/internal/extract"
	"github.com/guidewatch/guidewatch/internal/fetcher/headless"
	"github.com/guidewatch/guidewatch/internal/input"
	"github.com/guidewatch/guidewatch/internal/lookup"
)

// newLookupCmd creates and configures the 'lookup' subcommand.
func newLookupCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "lookup <keys-file>",
		Short: "Run the sequential lookup workflow",
		Long: `Processes a CSV file of lookup keys one at a time through the guide's
search form in a headless browser, solving challenges when a solver is
configured. A cursor persists after every key, so an interrupted run
resumes at the first unprocessed one.`,
		Args: cobra.ExactArgs(1),
		RunE: runLookupCommand,
	}
	cmd.Flags().Bool("reset", false, "discard the saved cursor and start from the first key")
	return cmd
}

func runLookupCommand(cmd *cobra.Command, args []string) error {
	ctx, stop := signal.NotifyContext(cmd.Context(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	rt, err := newRuntime(ctx)
	if err != nil {
		return err
	}
	defer rt.Close()

	keysFile := args[0]
	if reset, _ := cmd.Flags().GetBool("reset"); reset {
		if err := rt.store.SetCursor(ctx, keysFile, 0); err != nil {
			return fmt.Errorf("reset cursor: %w", err)
		}
		rt.logger.Info("cursor discarded", zap.String("source", keysFile))
	}

	reader, err := input.NewReader(rt.cfg.Lookup.KeyPattern, rt.logger)
	if err != nil {
		return fmt.Errorf("init key reader: %w", err)
	}
	keys, err := reader.ReadFile(keysFile)
	if err != nil {
		return err
	}
	if len(keys) == 0 {
		rt.logger.Warn("no valid keys in input", zap.String("source", keysFile))
		return nil
	}

	pipeline, driver, err := buildLookupPipeline(rt)
	if err != nil {
		return err
	}
	defer driver.Close()

	sequencer := crawl.NewSequencer(crawl.SequencerConfig{
		SourceKey:   keysFile,
		ItemDelay:   secondsToDuration(rt.cfg.Lookup.ItemDelaySec),
		RotateEvery: rt.cfg.Lookup.RotateEvery,
	}, rt.newRetrier(), rt.rotator, rt.store, nil, rt.logger)

	stats, runErr := sequencer.Run(ctx, keys, pipeline.Process)
	rt.logger.Info("lookup run finished",
		zap.Int("added", stats.Added),
		zap.Int("modified", stats.Modified),
		zap.Int("unchanged", stats.Unchanged),
		zap.Int("failed", stats.Failed),
		zap.Int("skipped", stats.Skipped),
	)
	if runErr != nil && !errors.Is(runErr, context.Canceled) {
		return fmt.Errorf("run lookup: %w", runErr)
	}
	return nil
}

func buildLookupPipeline(rt *runtime) (*lookup.Pipeline, *headless.Driver, error) {
	driver, err := headless.NewDriver(headless.Config{
		ProxyAddr:         rt.rotator.Handle().SocksAddr,
		NavigationTimeout: secondsToDuration(rt.cfg.Fetch.NavTimeoutSec),
	})
	if err != nil {
		return nil, nil, fmt.Errorf("init headless driver: %w", err)
	}

	parser, err := extract.NewLookupParser(rt.cfg.Lookup.FieldPatterns)
	if err != nil {
		driver.Close()
		return nil, nil, fmt.Errorf("init lookup parser: %w", err)
	}

	var solver lookup.ChallengeSolver
	if rt.cfg.Captcha.Enabled {
		solver = captcha.NewSolver(captcha.Config{
			APIKey:       rt.cfg.Captcha.APIKey,
			BaseURL:      rt.cfg.Captcha.BaseURL,
			PollInterval: secondsToDuration(rt.cfg.Captcha.PollSeconds),
			Timeout:      secondsToDuration(rt.cfg.Captcha.TimeoutSeconds),
		}, nil)
	}

	pipeline := lookup.NewPipeline(lookup.Config{
		URL:           rt.cfg.Lookup.URL,
		InputSelector: rt.cfg.Lookup.InputSelector,
		SubmitScript:  rt.cfg.Lookup.SubmitScript,
		UserAgents:    rt.cfg.Fetch.UserAgents,
		BlockMarkers:  rt.cfg.Fetch.BlockMarkers,
	}, driver, solver, parser, rt.logger)
	return pipeline, driver, nil
}
