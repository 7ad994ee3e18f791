package extract

import (
	"testing"

	"github.com/stretchr/testify/require"
)

const listingPage = `<html><body>
<div class="results">
  <article class="entry"><a class="entry-link" href="/restaurant/chez-nous-123">Chez Nous</a></article>
  <article class="entry"><a class="entry-link" href="/restaurant/aubergine-456">Aubergine</a></article>
  <article class="entry"><a class="entry-link" href="https://other.test/restaurant/far-away-789">Far Away</a></article>
  <article class="entry"><a class="entry-link">no href</a></article>
</div>
</body></html>`

func TestListingItemURLs(t *testing.T) {
	t.Parallel()

	l, err := NewListing("https://guide.test", "a.entry-link")
	require.NoError(t, err)

	urls, err := l.ItemURLs([]byte(listingPage))
	require.NoError(t, err)
	require.Equal(t, []string{
		"https://guide.test/restaurant/chez-nous-123",
		"https://guide.test/restaurant/aubergine-456",
		"https://other.test/restaurant/far-away-789",
	}, urls)
}

func TestListingEmptyPage(t *testing.T) {
	t.Parallel()

	l, err := NewListing("https://guide.test", "a.entry-link")
	require.NoError(t, err)

	urls, err := l.ItemURLs([]byte("<html><body><p>No results</p></body></html>"))
	require.NoError(t, err)
	require.Empty(t, urls)
}

const detailPage = `<html><body>
  <h1 class="name"> Chez Nous </h1>
  <span class="stars">2</span>
  <div class="address">12 Rue de la Paix, Lyon</div>
  <div class="empty"></div>
</body></html>`

func TestDetailRecord(t *testing.T) {
	t.Parallel()

	d, err := NewDetail(map[string]string{
		"name":    "h1.name",
		"stars":   "span.stars",
		"address": "div.address",
		"chef":    "div.chef",
	}, `/restaurant/([a-z0-9-]+)`)
	require.NoError(t, err)

	key, fields, ok := d.Record([]byte(detailPage), "https://guide.test/restaurant/chez-nous-123")
	require.True(t, ok)
	require.Equal(t, "chez-nous-123", key)
	require.Equal(t, "Chez Nous", fields["name"])
	require.Equal(t, "2", fields["stars"])
	require.Equal(t, "12 Rue de la Paix, Lyon", fields["address"])

	// Selectors that match nothing stay absent rather than empty.
	_, present := fields["chef"]
	require.False(t, present)
}

func TestDetailRecordNoFields(t *testing.T) {
	t.Parallel()

	d, err := NewDetail(map[string]string{"name": "h1.name"}, "")
	require.NoError(t, err)

	_, _, ok := d.Record([]byte("<html><body></body></html>"), "https://guide.test/restaurant/x")
	require.False(t, ok)
}

func TestDetailKeyFallsBackToPathSegment(t *testing.T) {
	t.Parallel()

	d, err := NewDetail(map[string]string{"name": "h1.name"}, "")
	require.NoError(t, err)

	key, _, ok := d.Record([]byte(detailPage), "https://guide.test/restaurant/chez-nous-123/")
	require.True(t, ok)
	require.Equal(t, "chez-nous-123", key)
}

func TestDetailKeyPatternMiss(t *testing.T) {
	t.Parallel()

	d, err := NewDetail(map[string]string{"name": "h1.name"}, `/restaurant/(\d+)`)
	require.NoError(t, err)

	_, _, ok := d.Record([]byte(detailPage), "https://guide.test/about")
	require.False(t, ok)
}

func TestLookupParser(t *testing.T) {
	t.Parallel()

	p, err := NewLookupParser(map[string]string{
		"status":  `Status:\s*<b>([^<]+)</b>`,
		"expires": `Expires:\s*<b>([^<]+)</b>`,
	})
	require.NoError(t, err)

	page := []byte(`<html><body>Status: <b>Active</b> Expires: <b>2027-01-31</b></body></html>`)
	fields, ok := p.Parse(page)
	require.True(t, ok)
	require.Equal(t, "Active", fields["status"])
	require.Equal(t, "2027-01-31", fields["expires"])

	_, ok = p.Parse([]byte("<html><body>nothing here</body></html>"))
	require.False(t, ok)
}

func TestLookupParserRejectsBadPattern(t *testing.T) {
	t.Parallel()

	_, err := NewLookupParser(map[string]string{"broken": `(`})
	require.Error(t, err)
}
