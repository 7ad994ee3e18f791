package identity

import (
	"fmt"
	"time"

	"github.com/nao1215/tornago"
	"go.uber.org/zap"
)

// EmbeddedTor launches and owns a Tor daemon for runs where no external one
// is configured. Ports are picked by the OS.
type EmbeddedTor struct {
	process        *tornago.TorProcess
	startupTimeout time.Duration
	logger         *zap.Logger
}

// NewEmbeddedTor prepares an embedded daemon. logger may be nil.
func NewEmbeddedTor(startupTimeout time.Duration, logger *zap.Logger) *EmbeddedTor {
	if startupTimeout <= 0 {
		startupTimeout = 3 * time.Minute
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	return &EmbeddedTor{startupTimeout: startupTimeout, logger: logger}
}

// Start launches the daemon and blocks until it is bootstrapped.
func (e *EmbeddedTor) Start() error {
	cfg, err := tornago.NewTorLaunchConfig(
		tornago.WithTorSocksAddr(":0"),
		tornago.WithTorControlAddr(":0"),
		tornago.WithTorStartupTimeout(e.startupTimeout),
	)
	if err != nil {
		return fmt.Errorf("tor launch config: %w", err)
	}
	proc, err := tornago.StartTorDaemon(cfg)
	if err != nil {
		return fmt.Errorf("start tor daemon: %w", err)
	}
	e.process = proc
	e.logger.Info("embedded tor ready",
		zap.String("socks_addr", proc.SocksAddr()),
		zap.String("control_addr", proc.ControlAddr()),
	)
	return nil
}

// Stop terminates the daemon. Safe to call when Start never ran.
func (e *EmbeddedTor) Stop() error {
	if e.process == nil {
		return nil
	}
	return e.process.Stop()
}

// SocksAddr returns the daemon's SOCKS address, empty before Start.
func (e *EmbeddedTor) SocksAddr() string {
	if e.process == nil {
		return ""
	}
	return e.process.SocksAddr()
}

// ControlAddr returns the daemon's control port address, empty before Start.
func (e *EmbeddedTor) ControlAddr() string {
	if e.process == nil {
		return ""
	}
	return e.process.ControlAddr()
}
