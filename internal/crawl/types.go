package crawl

import "time"

// Fields holds the extracted domain fields of a single record, keyed by
// field name. Volatile bookkeeping values (timestamps, run IDs) must never
// be stored here; the content fingerprint is computed over every entry.
type Fields map[string]string

// Clone returns an independent copy of the field map.
func (f Fields) Clone() Fields {
	if f == nil {
		return nil
	}
	out := make(Fields, len(f))
	for k, v := range f {
		out[k] = v
	}
	return out
}

// Classification is the outcome of comparing a fetched record against the
// stored prior version.
type Classification string

// Classification values returned by Classify and Store.Upsert.
const (
	ClassificationAdded     Classification = "added"
	ClassificationModified  Classification = "modified"
	ClassificationUnchanged Classification = "unchanged"
)

// Stats aggregates the outcome counters of a single run. It is ephemeral;
// checkpoints are the durable truth after a crash.
type Stats struct {
	Added     int
	Modified  int
	Unchanged int
	Failed    int
	Skipped   int
}

// Observe increments the counter matching the classification.
func (s *Stats) Observe(c Classification) {
	switch c {
	case ClassificationAdded:
		s.Added++
	case ClassificationModified:
		s.Modified++
	case ClassificationUnchanged:
		s.Unchanged++
	}
}

// Total returns the number of items accounted for in this run, excluding
// items skipped by a resume cursor.
func (s Stats) Total() int {
	return s.Added + s.Modified + s.Unchanged + s.Failed
}

// IdentityHandle describes the current network egress identity. It is a
// value type: holders keep whatever handle they were given until they ask
// the rotator for a fresh one.
type IdentityHandle struct {
	// SocksAddr is the SOCKS5 proxy in host:port form routing traffic
	// through the identity. Empty means direct egress.
	SocksAddr string
	// RotatedAt is when the identity was last established. Zero for the
	// default identity of a rotator that has never rotated.
	RotatedAt time.Time
	// Generation increments on every successful rotation.
	Generation int
}

// ProxyURL renders the handle as a socks5:// URL, or "" for direct egress.
func (h IdentityHandle) ProxyURL() string {
	if h.SocksAddr == "" {
		return ""
	}
	return "socks5://" + h.SocksAddr
}

// Phase is one of the two ordered stages of a listing crawl.
type Phase string

// Crawl phases persisted inside a checkpoint.
const (
	PhaseScanning Phase = "scanning"
	PhaseFetching Phase = "fetching"
)
