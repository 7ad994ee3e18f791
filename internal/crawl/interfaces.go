package crawl

import (
	"context"
	"time"
)

// Fetcher retrieves raw page content through the given identity. A blocked
// response must surface as *BlockSignalError; anything else non-nil is
// treated as transient by the retrier.
type Fetcher interface {
	Fetch(ctx context.Context, url string, handle IdentityHandle) ([]byte, error)
}

// PageFetcher is the retry-wrapped fetch the schedulers consume.
type PageFetcher interface {
	Fetch(ctx context.Context, url string) ([]byte, error)
}

// Rotator manages the single rotating egress identity.
type Rotator interface {
	// Handle never fails; it returns the last-established identity, or the
	// default one if no rotation has happened yet.
	Handle() IdentityHandle
	// Rotate requests a fresh identity, waiting out the rotation cooldown
	// first. On a control-channel failure it returns an error and leaves
	// the current identity in place; callers log and continue.
	Rotate(ctx context.Context, force bool) error
}

// ListingExtractor pulls item URLs out of a listing page. Pure: no I/O.
type ListingExtractor interface {
	ItemURLs(content []byte) ([]string, error)
}

// DetailExtractor pulls a record out of a detail page. Pure: no I/O.
// ok is false when the page carries no extractable record.
type DetailExtractor interface {
	Record(content []byte, pageURL string) (key string, fields Fields, ok bool)
}

// Store is the persistence collaborator: record upserts with history
// snapshots, crawl checkpoints, and sequential-workflow cursors.
type Store interface {
	// GetFingerprint returns the stored content fingerprint for a natural
	// key. ok is false when the record does not exist.
	GetFingerprint(ctx context.Context, key string) (fingerprint string, ok bool, err error)
	// Upsert classifies fields against the stored prior and applies the
	// result: added inserts, modified archives the prior version as a
	// history snapshot and overwrites, unchanged writes nothing.
	Upsert(ctx context.Context, key string, fields Fields, fingerprint string) (Classification, error)

	// LoadCheckpoint returns the persisted checkpoint for key, or nil when
	// none exists.
	LoadCheckpoint(ctx context.Context, key string) (*Checkpoint, error)
	SaveCheckpoint(ctx context.Context, key string, cp *Checkpoint) error
	DeleteCheckpoint(ctx context.Context, key string) error

	// GetCursor returns the next index to process for a source key; zero
	// when no cursor exists.
	GetCursor(ctx context.Context, sourceKey string) (int, error)
	SetCursor(ctx context.Context, sourceKey string, index int) error
}

// Clock returns the current time (swapped for a fake in tests).
type Clock interface {
	Now() time.Time
}

// Pauser abstracts timed suspensions so tests never sleep for real. A pause
// ends early when the context finishes.
type Pauser interface {
	Pause(ctx context.Context, d time.Duration)
}
