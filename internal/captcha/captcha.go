// Package captcha integrates an external challenge solving service for
// pages gated behind a reCAPTCHA widget.
package captcha

import (
	"context"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"time"
)

// ErrUnsolvable marks challenges the service reported as unsolvable.
var ErrUnsolvable = errors.New("captcha unsolvable")

// Config controls the solving client.
type Config struct {
	APIKey string
	// BaseURL is the service endpoint, default https://2captcha.com.
	BaseURL string
	// PollInterval is the spacing between result polls.
	PollInterval time.Duration
	// Timeout bounds the whole submit-and-poll cycle.
	Timeout time.Duration
}

func (c Config) withDefaults() Config {
	if c.BaseURL == "" {
		c.BaseURL = "https://2captcha.com"
	}
	if c.PollInterval <= 0 {
		c.PollInterval = 5 * time.Second
	}
	if c.Timeout <= 0 {
		c.Timeout = 3 * time.Minute
	}
	return c
}

// Solver submits reCAPTCHA tasks and polls for tokens.
type Solver struct {
	cfg    Config
	client *http.Client
}

// NewSolver builds a Solver. client may be nil for http.DefaultClient.
func NewSolver(cfg Config, client *http.Client) *Solver {
	if client == nil {
		client = http.DefaultClient
	}
	return &Solver{cfg: cfg.withDefaults(), client: client}
}

// Solve submits the sitekey and page URL, then polls until the service
// returns a token or the timeout lapses.
func (s *Solver) Solve(ctx context.Context, siteKey, pageURL string) (string, error) {
	ctx, cancel := context.WithTimeout(ctx, s.cfg.Timeout)
	defer cancel()

	taskID, err := s.submit(ctx, siteKey, pageURL)
	if err != nil {
		return "", err
	}
	return s.poll(ctx, taskID)
}

func (s *Solver) submit(ctx context.Context, siteKey, pageURL string) (string, error) {
	params := url.Values{
		"key":       {s.cfg.APIKey},
		"method":    {"userrecaptcha"},
		"googlekey": {siteKey},
		"pageurl":   {pageURL},
	}
	body, err := s.get(ctx, "/in.php", params)
	if err != nil {
		return "", fmt.Errorf("submit captcha: %w", err)
	}
	id, ok := strings.CutPrefix(body, "OK|")
	if !ok {
		return "", fmt.Errorf("submit captcha: service said %q", body)
	}
	return id, nil
}

func (s *Solver) poll(ctx context.Context, taskID string) (string, error) {
	params := url.Values{
		"key":    {s.cfg.APIKey},
		"action": {"get"},
		"id":     {taskID},
	}
	ticker := time.NewTicker(s.cfg.PollInterval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return "", fmt.Errorf("captcha poll: %w", ctx.Err())
		case <-ticker.C:
		}

		body, err := s.get(ctx, "/res.php", params)
		if err != nil {
			return "", fmt.Errorf("poll captcha: %w", err)
		}
		switch {
		case body == "CAPCHA_NOT_READY":
			continue
		case strings.HasPrefix(body, "OK|"):
			return strings.TrimPrefix(body, "OK|"), nil
		case body == "ERROR_CAPTCHA_UNSOLVABLE":
			return "", fmt.Errorf("task %s: %w", taskID, ErrUnsolvable)
		default:
			return "", fmt.Errorf("poll captcha: service said %q", body)
		}
	}
}

func (s *Solver) get(ctx context.Context, path string, params url.Values) (string, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, s.cfg.BaseURL+path+"?"+params.Encode(), nil)
	if err != nil {
		return "", err
	}
	resp, err := s.client.Do(req)
	if err != nil {
		return "", err
	}
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		return "", fmt.Errorf("unexpected status %d", resp.StatusCode)
	}
	raw, err := io.ReadAll(resp.Body)
	if err != nil {
		return "", err
	}
	return strings.TrimSpace(string(raw)), nil
}
