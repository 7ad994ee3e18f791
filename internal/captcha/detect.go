package captcha

import "regexp"

// The widget shows up in three shapes across the target pages: an explicit
// data-sitekey attribute, a grecaptcha.render call, or a bare iframe embed.
var sitekeyPatterns = []*regexp.Regexp{
	regexp.MustCompile(`data-sitekey=["']([0-9A-Za-z_-]{30,60})["']`),
	regexp.MustCompile(`grecaptcha\.render\([^)]*["']sitekey["']\s*:\s*["']([0-9A-Za-z_-]{30,60})["']`),
	regexp.MustCompile(`google\.com/recaptcha/api2?/anchor\?[^"']*k=([0-9A-Za-z_-]{30,60})`),
}

// DetectSitekey scans page HTML for a reCAPTCHA sitekey. ok is false when
// the page carries no widget.
func DetectSitekey(html string) (string, bool) {
	for _, re := range sitekeyPatterns {
		if m := re.FindStringSubmatch(html); len(m) > 1 {
			return m[1], true
		}
	}
	return "", false
}
