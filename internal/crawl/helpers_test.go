package crawl

import (
	"context"
	"sync"
	"time"
)

type fakeClock struct {
	mu  sync.Mutex
	now time.Time
}

func newFakeClock() *fakeClock {
	return &fakeClock{now: time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)}
}

func (c *fakeClock) Now() time.Time {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.now
}

func (c *fakeClock) Advance(d time.Duration) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.now = c.now.Add(d)
}

// recordingPauser records requested pauses without sleeping.
type recordingPauser struct {
	mu     sync.Mutex
	pauses []time.Duration
}

func (p *recordingPauser) Pause(_ context.Context, d time.Duration) {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.pauses = append(p.pauses, d)
}

func (p *recordingPauser) recorded() []time.Duration {
	p.mu.Lock()
	defer p.mu.Unlock()
	return append([]time.Duration(nil), p.pauses...)
}

type fakeRotator struct {
	mu         sync.Mutex
	generation int
	forced     []bool
	err        error
}

func (r *fakeRotator) Handle() IdentityHandle {
	r.mu.Lock()
	defer r.mu.Unlock()
	return IdentityHandle{SocksAddr: "127.0.0.1:9050", Generation: r.generation}
}

func (r *fakeRotator) Rotate(_ context.Context, force bool) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.forced = append(r.forced, force)
	if r.err != nil {
		return r.err
	}
	r.generation++
	return nil
}

func (r *fakeRotator) rotations() int {
	r.mu.Lock()
	defer r.mu.Unlock()
	return len(r.forced)
}

// fakeStore implements Store over maps, with optional injected errors.
type fakeStore struct {
	mu           sync.Mutex
	fingerprints map[string]string
	upserts      []string
	checkpoints  map[string]*Checkpoint
	cursors      map[string]int

	upsertErr error
	saveErr   error
}

func newFakeStore() *fakeStore {
	return &fakeStore{
		fingerprints: make(map[string]string),
		checkpoints:  make(map[string]*Checkpoint),
		cursors:      make(map[string]int),
	}
}

func (s *fakeStore) GetFingerprint(_ context.Context, key string) (string, bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	fp, ok := s.fingerprints[key]
	return fp, ok, nil
}

func (s *fakeStore) Upsert(_ context.Context, key string, _ Fields, fingerprint string) (Classification, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.upsertErr != nil {
		return "", s.upsertErr
	}
	prior, ok := s.fingerprints[key]
	class := Classify(prior, ok, fingerprint)
	if class != ClassificationUnchanged {
		s.fingerprints[key] = fingerprint
	}
	s.upserts = append(s.upserts, key)
	return class, nil
}

func (s *fakeStore) LoadCheckpoint(_ context.Context, key string) (*Checkpoint, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.checkpoints[key].Clone(), nil
}

func (s *fakeStore) SaveCheckpoint(_ context.Context, key string, cp *Checkpoint) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.saveErr != nil {
		return s.saveErr
	}
	s.checkpoints[key] = cp.Clone()
	return nil
}

func (s *fakeStore) DeleteCheckpoint(_ context.Context, key string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	delete(s.checkpoints, key)
	return nil
}

func (s *fakeStore) GetCursor(_ context.Context, sourceKey string) (int, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.cursors[sourceKey], nil
}

func (s *fakeStore) SetCursor(_ context.Context, sourceKey string, index int) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.cursors[sourceKey] = index
	return nil
}

// scriptedFetcher returns canned bodies or errors per URL, in call order.
type scriptedFetcher struct {
	mu        sync.Mutex
	responses map[string][]byte
	errs      map[string]error
	calls     []string
}

func newScriptedFetcher() *scriptedFetcher {
	return &scriptedFetcher{
		responses: make(map[string][]byte),
		errs:      make(map[string]error),
	}
}

func (f *scriptedFetcher) Fetch(_ context.Context, url string) ([]byte, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.calls = append(f.calls, url)
	if err, ok := f.errs[url]; ok {
		return nil, err
	}
	if body, ok := f.responses[url]; ok {
		return body, nil
	}
	return []byte("<html></html>"), nil
}

// mapListing maps page bodies to item URL lists.
type mapListing struct {
	urls map[string][]string
}

func (l *mapListing) ItemURLs(content []byte) ([]string, error) {
	return l.urls[string(content)], nil
}

// mapDetail maps page bodies to records.
type mapDetail struct {
	records map[string]Fields
	keys    map[string]string
}

func (d *mapDetail) Record(content []byte, pageURL string) (string, Fields, bool) {
	fields, ok := d.records[string(content)]
	if !ok {
		return "", nil, false
	}
	key := d.keys[string(content)]
	if key == "" {
		key = pageURL
	}
	return key, fields, true
}
