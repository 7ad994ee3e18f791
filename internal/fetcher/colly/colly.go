// Package collyfetcher implements the raw page fetcher using gocolly.
package collyfetcher

import (
	"context"
	"fmt"
	"net"
	"net/http"
	"strings"
	"time"

	"github.com/gocolly/colly/v2"

	"github.com/guidewatch/guidewatch/internal/crawl"
)

// Config controls collector behavior.
type Config struct {
	// UserAgents is rotated with the identity generation; leave empty for
	// colly's default.
	UserAgents []string
	Timeout    time.Duration
	// BlockMarkers are lowercase substrings whose presence in a response
	// body classifies it as a block page.
	BlockMarkers []string
}

// Fetcher implements crawl.Fetcher using the Colly collector. Every Fetch
// clones the base collector so per-identity proxy settings never leak
// between requests.
type Fetcher struct {
	cfg           Config
	baseCollector *colly.Collector
}

// New builds a Fetcher.
func New(cfg Config) *Fetcher {
	if cfg.Timeout == 0 {
		cfg.Timeout = 30 * time.Second
	}
	c := colly.NewCollector(colly.Async(false))
	c.IgnoreRobotsTxt = true
	c.WithTransport(newHTTPTransport())
	return &Fetcher{cfg: cfg, baseCollector: c}
}

// Fetch executes a single GET through the identity's SOCKS proxy. Block
// pages surface as *crawl.BlockSignalError.
func (f *Fetcher) Fetch(ctx context.Context, url string, handle crawl.IdentityHandle) ([]byte, error) {
	collector := f.baseCollector.Clone()
	collector.SetRequestTimeout(f.cfg.Timeout)
	if ua := f.userAgent(handle); ua != "" {
		collector.UserAgent = ua
	}
	if proxy := handle.ProxyURL(); proxy != "" {
		if err := collector.SetProxy(proxy); err != nil {
			return nil, fmt.Errorf("set proxy: %w", err)
		}
	}

	var (
		body       []byte
		statusCode int
		fetchErr   error
	)
	collector.OnResponse(func(r *colly.Response) {
		statusCode = r.StatusCode
		body = append([]byte(nil), r.Body...)
	})
	collector.OnError(func(r *colly.Response, err error) {
		if r != nil {
			statusCode = r.StatusCode
		}
		fetchErr = err
	})

	done := make(chan error, 1)
	go func() {
		done <- collector.Visit(url)
	}()

	select {
	case <-ctx.Done():
		return nil, fmt.Errorf("fetch canceled: %w", ctx.Err())
	case err := <-done:
		if blockErr := f.classifyBlock(url, statusCode, body); blockErr != nil {
			return nil, blockErr
		}
		if err != nil {
			return nil, fmt.Errorf("visit %s: %w", url, err)
		}
		if fetchErr != nil {
			return nil, fmt.Errorf("fetch %s: %w", url, fetchErr)
		}
		return body, nil
	}
}

// classifyBlock maps a response to a block signal when the status or body
// looks like an anti-bot page.
func (f *Fetcher) classifyBlock(url string, statusCode int, body []byte) error {
	if statusCode == http.StatusForbidden || statusCode == http.StatusTooManyRequests {
		return &crawl.BlockSignalError{URL: url, Marker: http.StatusText(statusCode)}
	}
	if len(body) == 0 {
		return nil
	}
	lower := strings.ToLower(string(body))
	for _, marker := range f.cfg.BlockMarkers {
		if strings.Contains(lower, marker) {
			return &crawl.BlockSignalError{URL: url, Marker: marker}
		}
	}
	return nil
}

func (f *Fetcher) userAgent(handle crawl.IdentityHandle) string {
	if len(f.cfg.UserAgents) == 0 {
		return ""
	}
	return f.cfg.UserAgents[handle.Generation%len(f.cfg.UserAgents)]
}

func newHTTPTransport() *http.Transport {
	return &http.Transport{
		Proxy: http.ProxyFromEnvironment,
		DialContext: (&net.Dialer{
			Timeout:   10 * time.Second,
			KeepAlive: 30 * time.Second,
		}).DialContext,
		TLSHandshakeTimeout:   15 * time.Second,
		ExpectContinueTimeout: 1 * time.Second,
		MaxIdleConns:          100,
		IdleConnTimeout:       90 * time.Second,
	}
}
