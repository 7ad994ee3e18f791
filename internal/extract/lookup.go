package extract

import (
	"fmt"
	"regexp"

	"github.com/guidewatch/guidewatch/internal/crawl"
)

// LookupParser extracts fields from a lookup result page using regular
// expression patterns rather than CSS selectors; the result markup is too
// irregular for structural selection.
type LookupParser struct {
	patterns map[string]*regexp.Regexp
}

// NewLookupParser compiles one pattern per field. Each pattern's first
// capture group carries the field value.
func NewLookupParser(fieldPatterns map[string]string) (*LookupParser, error) {
	patterns := make(map[string]*regexp.Regexp, len(fieldPatterns))
	for name, expr := range fieldPatterns {
		re, err := regexp.Compile(expr)
		if err != nil {
			return nil, fmt.Errorf("compile pattern for %s: %w", name, err)
		}
		patterns[name] = re
	}
	return &LookupParser{patterns: patterns}, nil
}

// Parse runs every pattern over the page. ok is false when nothing matched,
// which marks the key as carrying no extractable result.
func (p *LookupParser) Parse(content []byte) (crawl.Fields, bool) {
	fields := make(crawl.Fields, len(p.patterns))
	for name, re := range p.patterns {
		if m := re.FindSubmatch(content); len(m) > 1 {
			fields[name] = string(m[1])
		}
	}
	if len(fields) == 0 {
		return nil, false
	}
	return fields, true
}
