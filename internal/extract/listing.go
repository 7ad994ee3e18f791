// Package extract turns fetched HTML into item URLs and domain records.
// Extractors are pure: they never perform I/O.
package extract

import (
	"bytes"
	"fmt"
	"net/url"

	"github.com/PuerkitoBio/goquery"
)

// Listing extracts item links from paginated listing pages.
type Listing struct {
	base     *url.URL
	selector string
}

// NewListing builds a listing extractor. selector addresses the anchor
// elements whose href points at item detail pages; baseURL resolves
// relative hrefs.
func NewListing(baseURL, selector string) (*Listing, error) {
	base, err := url.Parse(baseURL)
	if err != nil {
		return nil, fmt.Errorf("parse base url: %w", err)
	}
	return &Listing{base: base, selector: selector}, nil
}

// ItemURLs returns the absolute item URLs found on the page, in document
// order, duplicates included (the checkpoint dedups downstream).
func (l *Listing) ItemURLs(content []byte) ([]string, error) {
	doc, err := goquery.NewDocumentFromReader(bytes.NewReader(content))
	if err != nil {
		return nil, fmt.Errorf("parse listing page: %w", err)
	}

	var urls []string
	doc.Find(l.selector).Each(func(_ int, sel *goquery.Selection) {
		href, ok := sel.Attr("href")
		if !ok || href == "" {
			return
		}
		ref, err := url.Parse(href)
		if err != nil {
			return
		}
		urls = append(urls, l.base.ResolveReference(ref).String())
	})
	return urls, nil
}
