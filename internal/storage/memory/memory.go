// Package memory provides an in-memory store for tests and dry runs.
package memory

import (
	"context"
	"sync"
	"time"

	"github.com/guidewatch/guidewatch/internal/crawl"
)

type record struct {
	fields      crawl.Fields
	fingerprint string
	updatedAt   time.Time
}

// Snapshot is one archived prior version of a record.
type Snapshot struct {
	Key         string
	Fields      crawl.Fields
	Fingerprint string
	ArchivedAt  time.Time
}

// Store implements crawl.Store with mutex-guarded maps. Checkpoints are
// deep-copied on both save and load so the scheduler never shares state
// with the store.
type Store struct {
	clock crawl.Clock

	mu          sync.Mutex
	records     map[string]record
	history     []Snapshot
	checkpoints map[string]*crawl.Checkpoint
	cursors     map[string]int
}

// New creates an empty Store.
func New(clock crawl.Clock) *Store {
	return &Store{
		clock:       clock,
		records:     make(map[string]record),
		checkpoints: make(map[string]*crawl.Checkpoint),
		cursors:     make(map[string]int),
	}
}

// GetFingerprint returns the stored fingerprint for key.
func (s *Store) GetFingerprint(_ context.Context, key string) (string, bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	rec, ok := s.records[key]
	if !ok {
		return "", false, nil
	}
	return rec.fingerprint, true, nil
}

// Upsert classifies and applies fields for key.
func (s *Store) Upsert(_ context.Context, key string, fields crawl.Fields, fingerprint string) (crawl.Classification, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	prior, ok := s.records[key]
	class := crawl.Classify(prior.fingerprint, ok, fingerprint)
	switch class {
	case crawl.ClassificationUnchanged:
		return class, nil
	case crawl.ClassificationModified:
		s.history = append(s.history, Snapshot{
			Key:         key,
			Fields:      prior.fields,
			Fingerprint: prior.fingerprint,
			ArchivedAt:  s.clock.Now(),
		})
	}
	s.records[key] = record{
		fields:      fields.Clone(),
		fingerprint: fingerprint,
		updatedAt:   s.clock.Now(),
	}
	return class, nil
}

// LoadCheckpoint returns a copy of the checkpoint for key, or nil.
func (s *Store) LoadCheckpoint(_ context.Context, key string) (*crawl.Checkpoint, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.checkpoints[key].Clone(), nil
}

// SaveCheckpoint stores a copy of cp under key.
func (s *Store) SaveCheckpoint(_ context.Context, key string, cp *crawl.Checkpoint) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.checkpoints[key] = cp.Clone()
	return nil
}

// DeleteCheckpoint removes the checkpoint for key.
func (s *Store) DeleteCheckpoint(_ context.Context, key string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	delete(s.checkpoints, key)
	return nil
}

// GetCursor returns the cursor for sourceKey, zero when absent.
func (s *Store) GetCursor(_ context.Context, sourceKey string) (int, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.cursors[sourceKey], nil
}

// SetCursor stores index for sourceKey.
func (s *Store) SetCursor(_ context.Context, sourceKey string, index int) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.cursors[sourceKey] = index
	return nil
}

// Fields returns a copy of the current fields for key; nil when absent.
func (s *Store) Fields(key string) crawl.Fields {
	s.mu.Lock()
	defer s.mu.Unlock()
	rec, ok := s.records[key]
	if !ok {
		return nil
	}
	return rec.fields.Clone()
}

// History returns all archived snapshots in archive order.
func (s *Store) History() []Snapshot {
	s.mu.Lock()
	defer s.mu.Unlock()
	return append([]Snapshot(nil), s.history...)
}
