// Package headless drives a real browser for pages that only render under
// JavaScript, the lookup form flow in particular.
package headless

import (
	"context"
	"fmt"
	"time"

	"github.com/chromedp/chromedp"
)

// Config controls the behavior of the headless driver.
type Config struct {
	// ProxyAddr is the SOCKS5 address browser traffic travels through;
	// empty disables the proxy.
	ProxyAddr         string
	NavigationTimeout time.Duration
}

// Driver owns a shared browser allocator and runs action sequences in fresh
// tabs. Tabs never share cookies or page state between runs.
type Driver struct {
	cfg         Config
	allocator   context.Context
	allocCancel context.CancelFunc
}

// NewDriver creates a headless driver backed by chromedp.
func NewDriver(cfg Config) (*Driver, error) {
	if cfg.NavigationTimeout <= 0 {
		cfg.NavigationTimeout = 45 * time.Second
	}

	opts := append(chromedp.DefaultExecAllocatorOptions[:],
		chromedp.Flag("headless", "new"),
		chromedp.Flag("disable-gpu", true),
		chromedp.Flag("hide-scrollbars", true),
		chromedp.Flag("enable-automation", false),
	)
	if cfg.ProxyAddr != "" {
		opts = append(opts, chromedp.ProxyServer("socks5://"+cfg.ProxyAddr))
	}
	allocCtx, allocCancel := chromedp.NewExecAllocator(context.Background(), opts...)

	return &Driver{
		cfg:         cfg,
		allocator:   allocCtx,
		allocCancel: allocCancel,
	}, nil
}

// Close cancels the allocator context, shutting the browser down.
func (d *Driver) Close() {
	d.allocCancel()
}

// Run executes actions in a fresh tab bounded by the navigation timeout and
// the caller's context.
func (d *Driver) Run(ctx context.Context, actions ...chromedp.Action) error {
	taskCtx, taskCancel := chromedp.NewContext(d.allocator)
	defer taskCancel()

	taskCtx, cancel := context.WithTimeout(taskCtx, d.cfg.NavigationTimeout)
	defer cancel()

	done := make(chan error, 1)
	go func() {
		done <- chromedp.Run(taskCtx, actions...)
	}()

	select {
	case <-ctx.Done():
		return fmt.Errorf("headless run canceled: %w", ctx.Err())
	case err := <-done:
		if err != nil {
			return fmt.Errorf("chromedp run: %w", err)
		}
		return nil
	}
}
