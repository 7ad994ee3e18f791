package cmd

import (
	"context"
	"fmt"
	"time"

	"go.uber.org/zap"

	"github.com/guidewatch/guidewatch/internal/clock/system"
	"github.com/guidewatch/guidewatch/internal/config"
	"github.com/guidewatch/guidewatch/internal/crawl"
	"github.com/guidewatch/guidewatch/internal/identity"
	"github.com/guidewatch/guidewatch/internal/logging"
	"github.com/guidewatch/guidewatch/internal/server"
	"github.com/guidewatch/guidewatch/internal/storage/memory"
	"github.com/guidewatch/guidewatch/internal/storage/postgres"
	"github.com/guidewatch/guidewatch/internal/storage/sqlite"
)

// runtime bundles the collaborators every command needs. Close releases
// them in reverse construction order.
type runtime struct {
	cfg     config.Config
	logger  *zap.Logger
	clock   crawl.Clock
	store   crawl.Store
	rotator *identity.Rotator
	closers []func()
}

// newRuntime loads configuration and wires the shared service graph: the
// logger, the persistence backend, the Tor identity (embedded or external),
// and the metrics listener when enabled.
func newRuntime(ctx context.Context) (*runtime, error) {
	cfg, err := config.Load(cfgFile)
	if err != nil {
		return nil, fmt.Errorf("load config: %w", err)
	}

	logger, err := logging.New(cfg.Logging.Development)
	if err != nil {
		return nil, fmt.Errorf("init logger: %w", err)
	}

	rt := &runtime{cfg: cfg, logger: logger, clock: system.New()}
	rt.closers = append(rt.closers, func() {
		_ = logger.Sync()
	})

	if err := rt.initStore(ctx); err != nil {
		rt.Close()
		return nil, err
	}
	if err := rt.initIdentity(); err != nil {
		rt.Close()
		return nil, err
	}

	if cfg.Server.Enabled {
		srv := server.New(cfg.Server.Port, logger)
		srv.Start(ctx)
	}

	return rt, nil
}

func (rt *runtime) initStore(ctx context.Context) error {
	switch rt.cfg.Store.Backend {
	case "sqlite":
		st, err := sqlite.Open(rt.cfg.Store.Path, rt.clock)
		if err != nil {
			return fmt.Errorf("open sqlite store: %w", err)
		}
		rt.store = st
		rt.closers = append(rt.closers, func() {
			if cerr := st.Close(); cerr != nil {
				rt.logger.Warn("close store", zap.Error(cerr))
			}
		})
	case "postgres":
		st, err := postgres.New(ctx, rt.cfg.Store.DSN, rt.clock)
		if err != nil {
			return fmt.Errorf("open postgres store: %w", err)
		}
		rt.store = st
		rt.closers = append(rt.closers, st.Close)
	case "memory":
		rt.store = memory.New(rt.clock)
	default:
		return fmt.Errorf("unknown store backend %q", rt.cfg.Store.Backend)
	}
	return nil
}

func (rt *runtime) initIdentity() error {
	icfg := rt.cfg.Identity
	socksAddr := icfg.SocksAddr
	controlAddr := icfg.ControlAddr

	if icfg.Embedded {
		tor := identity.NewEmbeddedTor(secondsToDuration(icfg.StartupTimeoutSec), rt.logger)
		if err := tor.Start(); err != nil {
			return fmt.Errorf("start embedded tor: %w", err)
		}
		rt.closers = append(rt.closers, func() {
			if serr := tor.Stop(); serr != nil {
				rt.logger.Warn("stop embedded tor", zap.Error(serr))
			}
		})
		socksAddr = tor.SocksAddr()
		controlAddr = tor.ControlAddr()
	}

	control := identity.NewTorControl(controlAddr, icfg.ControlPassword, rt.cfg.FetchTimeout())
	rt.rotator = identity.NewRotator(control, rt.clock, nil, identity.Config{
		SocksAddr:           socksAddr,
		MinRotationInterval: secondsToDuration(icfg.MinRotationIntervalSec),
	}, rt.logger)
	return nil
}

// newRetrier builds the shared retry policy bound to the runtime's rotator.
func (rt *runtime) newRetrier() *crawl.Retrier {
	return crawl.NewRetrier(rt.rotator, nil, crawl.RetrierConfig{
		MaxAttempts: rt.cfg.Fetch.MaxAttempts,
		BaseDelay:   secondsToDuration(rt.cfg.Fetch.BaseDelaySec),
	}, rt.logger)
}

func secondsToDuration(s int) time.Duration {
	return time.Duration(s) * time.Second
}

// Close releases resources in reverse construction order.
func (rt *runtime) Close() {
	for i := len(rt.closers) - 1; i >= 0; i-- {
		rt.closers[i]()
	}
}
