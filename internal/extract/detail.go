package extract

import (
	"bytes"
	"regexp"
	"strings"

	"github.com/PuerkitoBio/goquery"

	"github.com/guidewatch/guidewatch/internal/crawl"
)

// Detail extracts a single record from an item detail page.
type Detail struct {
	// fieldSelectors maps domain field names to CSS selectors.
	fieldSelectors map[string]string
	// keyPattern captures the natural key from the page URL; its first
	// capture group wins. Nil falls back to the last path segment.
	keyPattern *regexp.Regexp
}

// NewDetail builds a detail extractor. keyPattern may be empty.
func NewDetail(fieldSelectors map[string]string, keyPattern string) (*Detail, error) {
	d := &Detail{fieldSelectors: fieldSelectors}
	if keyPattern != "" {
		re, err := regexp.Compile(keyPattern)
		if err != nil {
			return nil, err
		}
		d.keyPattern = re
	}
	return d, nil
}

// Record pulls the configured fields out of the page. ok is false when no
// field yields any text, which marks the page as carrying no record.
func (d *Detail) Record(content []byte, pageURL string) (string, crawl.Fields, bool) {
	doc, err := goquery.NewDocumentFromReader(bytes.NewReader(content))
	if err != nil {
		return "", nil, false
	}

	fields := make(crawl.Fields, len(d.fieldSelectors))
	for name, selector := range d.fieldSelectors {
		text := strings.TrimSpace(doc.Find(selector).First().Text())
		if text != "" {
			fields[name] = text
		}
	}
	if len(fields) == 0 {
		return "", nil, false
	}

	key := d.keyFromURL(pageURL)
	if key == "" {
		return "", nil, false
	}
	return key, fields, true
}

func (d *Detail) keyFromURL(pageURL string) string {
	if d.keyPattern != nil {
		if m := d.keyPattern.FindStringSubmatch(pageURL); len(m) > 1 {
			return m[1]
		}
		return ""
	}
	trimmed := strings.TrimRight(pageURL, "/")
	if idx := strings.LastIndex(trimmed, "/"); idx >= 0 {
		return trimmed[idx+1:]
	}
	return trimmed
}
