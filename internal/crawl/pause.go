package crawl

import (
	"context"
	"time"
)

// TimerPauser implements Pauser with a real timer.
type TimerPauser struct{}

// NewTimerPauser returns the production Pauser.
func NewTimerPauser() *TimerPauser {
	return &TimerPauser{}
}

// Pause blocks for d or until the context finishes, whichever comes first.
func (p *TimerPauser) Pause(ctx context.Context, d time.Duration) {
	if d <= 0 {
		return
	}
	timer := time.NewTimer(d)
	defer timer.Stop()
	select {
	case <-ctx.Done():
	case <-timer.C:
	}
}
