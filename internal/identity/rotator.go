// Package identity manages the rotating Tor egress identity: the cooldown
// between rotations, the NEWNYM control channel, and optionally the
// lifecycle of an embedded Tor daemon.
package identity

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"go.uber.org/zap"

	"github.com/guidewatch/guidewatch/internal/crawl"
)

// ErrRotationUnavailable marks rotation requests the control channel could
// not serve. The current identity stays in place.
var ErrRotationUnavailable = errors.New("identity rotation unavailable")

// ControlChannel issues a new-identity request to the Tor control port.
type ControlChannel interface {
	Signal(ctx context.Context) error
}

// Config holds the rotation policy.
type Config struct {
	// SocksAddr is the SOCKS5 proxy address fetches travel through.
	SocksAddr string
	// MinRotationInterval is the minimum spacing between rotations;
	// requests arriving earlier wait out the remainder.
	MinRotationInterval time.Duration
}

func (c Config) withDefaults() Config {
	if c.MinRotationInterval <= 0 {
		c.MinRotationInterval = 10 * time.Second
	}
	return c
}

// Rotator serializes identity rotations behind a cooldown. A forced
// rotation (after a block signal) follows the same cooldown as a cadence
// one; force only distinguishes the log context.
type Rotator struct {
	control ControlChannel
	clock   crawl.Clock
	pause   crawl.Pauser
	cfg     Config
	logger  *zap.Logger

	mu          sync.Mutex
	lastRotated time.Time
	generation  int
}

// NewRotator wires a Rotator. pause and logger may be nil.
func NewRotator(control ControlChannel, clock crawl.Clock, pause crawl.Pauser, cfg Config, logger *zap.Logger) *Rotator {
	if pause == nil {
		pause = crawl.NewTimerPauser()
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Rotator{
		control: control,
		clock:   clock,
		pause:   pause,
		cfg:     cfg.withDefaults(),
		logger:  logger,
	}
}

// Handle returns the current identity.
func (r *Rotator) Handle() crawl.IdentityHandle {
	r.mu.Lock()
	defer r.mu.Unlock()
	return crawl.IdentityHandle{
		SocksAddr:  r.cfg.SocksAddr,
		RotatedAt:  r.lastRotated,
		Generation: r.generation,
	}
}

// Rotate requests a fresh identity, waiting out the cooldown first. On a
// control failure the current identity stays in place and the error carries
// ErrRotationUnavailable.
func (r *Rotator) Rotate(ctx context.Context, force bool) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	if !r.lastRotated.IsZero() {
		elapsed := r.clock.Now().Sub(r.lastRotated)
		if remaining := r.cfg.MinRotationInterval - elapsed; remaining > 0 {
			r.logger.Debug("waiting out rotation cooldown", zap.Duration("remaining", remaining))
			r.pause.Pause(ctx, remaining)
			if err := ctx.Err(); err != nil {
				return err
			}
		}
	}

	if err := r.control.Signal(ctx); err != nil {
		crawl.TotalRotationFailures.Inc()
		r.logger.Warn("identity rotation failed, continuing on current identity", zap.Error(err))
		return fmt.Errorf("%w: %w", ErrRotationUnavailable, err)
	}

	r.lastRotated = r.clock.Now()
	r.generation++
	crawl.TotalRotations.Inc()
	r.logger.Info("identity rotated",
		zap.Bool("forced", force),
		zap.Int("generation", r.generation),
	)
	return nil
}
