// Package lookup implements the sequential single-key workflow: drive the
// lookup form in a real browser, clear a challenge when one appears, and
// parse the result page into a record.
package lookup

import (
	"context"
	"fmt"
	"strings"

	"github.com/chromedp/cdproto/emulation"
	"github.com/chromedp/chromedp"
	"go.uber.org/zap"

	"github.com/guidewatch/guidewatch/internal/captcha"
	"github.com/guidewatch/guidewatch/internal/crawl"
	"github.com/guidewatch/guidewatch/internal/extract"
	"github.com/guidewatch/guidewatch/internal/fetcher/headless"
)

// Config describes the lookup form and its result page.
type Config struct {
	// URL is the form page.
	URL string
	// InputSelector addresses the key input field.
	InputSelector string
	// SubmitScript is the JavaScript that submits the form once the input
	// is filled and any challenge token is in place.
	SubmitScript string
	// UserAgents is rotated with the identity generation.
	UserAgents []string
	// BlockMarkers are lowercase substrings marking a block page.
	BlockMarkers []string
}

// ChallengeSolver clears a reCAPTCHA challenge, returning the token.
type ChallengeSolver interface {
	Solve(ctx context.Context, siteKey, pageURL string) (string, error)
}

// Pipeline is one end-to-end lookup per key. Its Process method satisfies
// crawl.ItemFunc, so the Sequencer owns retries, rotation, and persistence.
type Pipeline struct {
	cfg    Config
	driver *headless.Driver
	solver ChallengeSolver
	parser *extract.LookupParser
	logger *zap.Logger
}

// NewPipeline wires a Pipeline. solver may be nil when challenge solving is
// disabled; logger may be nil.
func NewPipeline(cfg Config, driver *headless.Driver, solver ChallengeSolver, parser *extract.LookupParser, logger *zap.Logger) *Pipeline {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Pipeline{
		cfg:    cfg,
		driver: driver,
		solver: solver,
		parser: parser,
		logger: logger,
	}
}

// Process drives one lookup for key through the given identity.
func (p *Pipeline) Process(ctx context.Context, key string, handle crawl.IdentityHandle) (crawl.Fields, error) {
	var formHTML string
	actions := []chromedp.Action{
		chromedp.Navigate(p.cfg.URL),
		chromedp.WaitReady("body", chromedp.ByQuery),
		chromedp.SendKeys(p.cfg.InputSelector, key, chromedp.ByQuery),
		chromedp.OuterHTML("html", &formHTML, chromedp.ByQuery),
	}
	if ua := p.userAgent(handle); ua != "" {
		actions = append([]chromedp.Action{emulation.SetUserAgentOverride(ua)}, actions...)
	}
	if err := p.driver.Run(ctx, actions...); err != nil {
		return nil, fmt.Errorf("open lookup form: %w", err)
	}
	if err := p.checkBlocked(formHTML); err != nil {
		return nil, err
	}

	submitActions := []chromedp.Action{
		chromedp.Navigate(p.cfg.URL),
		chromedp.WaitReady("body", chromedp.ByQuery),
		chromedp.SendKeys(p.cfg.InputSelector, key, chromedp.ByQuery),
	}
	if siteKey, ok := captcha.DetectSitekey(formHTML); ok {
		token, err := p.solveChallenge(ctx, siteKey)
		if err != nil {
			return nil, err
		}
		submitActions = append(submitActions,
			chromedp.Evaluate(injectTokenScript(token), nil))
	}
	var resultHTML string
	submitActions = append(submitActions,
		chromedp.Evaluate(p.cfg.SubmitScript, nil),
		chromedp.WaitReady("body", chromedp.ByQuery),
		chromedp.OuterHTML("html", &resultHTML, chromedp.ByQuery),
	)
	if err := p.driver.Run(ctx, submitActions...); err != nil {
		return nil, fmt.Errorf("submit lookup: %w", err)
	}
	if err := p.checkBlocked(resultHTML); err != nil {
		return nil, err
	}

	fields, ok := p.parser.Parse([]byte(resultHTML))
	if !ok {
		return nil, &crawl.FatalError{Op: "no result for key " + key}
	}
	return fields, nil
}

func (p *Pipeline) solveChallenge(ctx context.Context, siteKey string) (string, error) {
	if p.solver == nil {
		// Without a solver a challenge page is just another block signal.
		return "", &crawl.BlockSignalError{URL: p.cfg.URL, Marker: "recaptcha"}
	}
	p.logger.Info("solving challenge", zap.String("sitekey", siteKey))
	token, err := p.solver.Solve(ctx, siteKey, p.cfg.URL)
	if err != nil {
		return "", &crawl.FatalError{Op: "solve challenge", Err: err}
	}
	return token, nil
}

func (p *Pipeline) checkBlocked(html string) error {
	lower := strings.ToLower(html)
	for _, marker := range p.cfg.BlockMarkers {
		if strings.Contains(lower, marker) {
			return &crawl.BlockSignalError{URL: p.cfg.URL, Marker: marker}
		}
	}
	return nil
}

func (p *Pipeline) userAgent(handle crawl.IdentityHandle) string {
	if len(p.cfg.UserAgents) == 0 {
		return ""
	}
	return p.cfg.UserAgents[handle.Generation%len(p.cfg.UserAgents)]
}

// injectTokenScript plants a solved token in every response field the
// widget watches, then fires the widget's own callback so the page treats
// the challenge as completed.
func injectTokenScript(token string) string {
	return fmt.Sprintf(`(function() {
	var token = %q;
	document.querySelectorAll('textarea[name="g-recaptcha-response"]').forEach(function(el) {
		el.style.display = 'block';
		el.value = token;
	});
	var cfg = window.___grecaptcha_cfg;
	if (!cfg || !cfg.clients) { return; }
	Object.keys(cfg.clients).forEach(function(id) {
		var client = cfg.clients[id];
		Object.keys(client).forEach(function(a) {
			var obj = client[a];
			if (!obj || typeof obj !== 'object') { return; }
			Object.keys(obj).forEach(function(b) {
				var inner = obj[b];
				if (inner && typeof inner.callback === 'function') {
					inner.callback(token);
				}
			});
		});
	});
})();`, token)
}
