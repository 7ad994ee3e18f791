package crawl

import "time"

// Checkpoint is the durable record of crawl progress. It is the sole source
// of truth for resume: no in-memory state is needed to reconstruct a run.
// Invariant: every processed URL is also a discovered URL.
type Checkpoint struct {
	Phase           Phase           `json:"phase"`
	LastScannedPage int             `json:"last_scanned_page"`
	Discovered      []string        `json:"discovered_urls"`
	Processed       map[string]bool `json:"processed_urls"`
	StartedAt       time.Time       `json:"started_at"`

	// seen mirrors Discovered for O(1) dedup; rebuilt lazily after JSON
	// round-trips.
	seen map[string]bool
}

// NewCheckpoint returns a fresh checkpoint at the start of the scan phase.
func NewCheckpoint(startedAt time.Time) *Checkpoint {
	return &Checkpoint{
		Phase:     PhaseScanning,
		Processed: make(map[string]bool),
		StartedAt: startedAt,
		seen:      make(map[string]bool),
	}
}

func (c *Checkpoint) ensure() {
	if c.Processed == nil {
		c.Processed = make(map[string]bool)
	}
	if c.seen == nil {
		c.seen = make(map[string]bool, len(c.Discovered))
		for _, u := range c.Discovered {
			c.seen[u] = true
		}
	}
}

// AddDiscovered appends URLs not seen before, preserving order, and returns
// how many were new.
func (c *Checkpoint) AddDiscovered(urls []string) int {
	c.ensure()
	added := 0
	for _, u := range urls {
		if u == "" || c.seen[u] {
			continue
		}
		c.seen[u] = true
		c.Discovered = append(c.Discovered, u)
		added++
	}
	return added
}

// MarkProcessed records that a discovered URL terminated, successfully or
// not. Unknown URLs are ignored to preserve the subset invariant.
func (c *Checkpoint) MarkProcessed(url string) {
	c.ensure()
	if c.seen[url] {
		c.Processed[url] = true
	}
}

// Remaining returns the discovered URLs not yet processed, in discovery
// order.
func (c *Checkpoint) Remaining() []string {
	c.ensure()
	// A damaged checkpoint can carry processed entries that were never
	// discovered, so the difference is not a safe capacity.
	capacity := len(c.Discovered) - len(c.Processed)
	if capacity < 0 {
		capacity = 0
	}
	out := make([]string, 0, capacity)
	for _, u := range c.Discovered {
		if !c.Processed[u] {
			out = append(out, u)
		}
	}
	return out
}

// Clone returns a deep copy, letting stores hand out snapshots without
// sharing mutable state with the scheduler.
func (c *Checkpoint) Clone() *Checkpoint {
	if c == nil {
		return nil
	}
	cp := &Checkpoint{
		Phase:           c.Phase,
		LastScannedPage: c.LastScannedPage,
		Discovered:      append([]string(nil), c.Discovered...),
		Processed:       make(map[string]bool, len(c.Processed)),
		StartedAt:       c.StartedAt,
	}
	for u := range c.Processed {
		cp.Processed[u] = true
	}
	return cp
}
