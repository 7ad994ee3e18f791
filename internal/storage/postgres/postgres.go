// Package postgres provides the Postgres-backed persistence backend for
// deployments that share one database across crawlers.
package postgres

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/guidewatch/guidewatch/internal/crawl"
)

// querier is the pool surface the store needs; pgxmock satisfies it too.
type querier interface {
	Exec(ctx context.Context, sql string, args ...any) (pgconn.CommandTag, error)
	QueryRow(ctx context.Context, sql string, args ...any) pgx.Row
	Begin(ctx context.Context) (pgx.Tx, error)
	Close()
}

// Store implements crawl.Store on a pgx connection pool.
type Store struct {
	pool  querier
	clock crawl.Clock
}

// New connects to dsn and ensures the schema.
func New(ctx context.Context, dsn string, clock crawl.Clock) (*Store, error) {
	pool, err := pgxpool.New(ctx, dsn)
	if err != nil {
		return nil, fmt.Errorf("create connection pool: %w", err)
	}
	s := &Store{pool: pool, clock: clock}
	if err := s.EnsureSchema(ctx); err != nil {
		pool.Close()
		return nil, err
	}
	return s, nil
}

// NewWithPool wraps an existing pool without touching the schema. Tests use
// it with a mock pool.
func NewWithPool(pool querier, clock crawl.Clock) *Store {
	return &Store{pool: pool, clock: clock}
}

// Close closes the underlying connection pool.
func (s *Store) Close() {
	s.pool.Close()
}

// EnsureSchema creates the tables when they do not exist.
func (s *Store) EnsureSchema(ctx context.Context) error {
	schema := `
	CREATE TABLE IF NOT EXISTS records (
		key TEXT PRIMARY KEY,
		fields JSONB NOT NULL,
		fingerprint TEXT NOT NULL,
		first_seen TIMESTAMPTZ NOT NULL,
		updated_at TIMESTAMPTZ NOT NULL
	);

	CREATE TABLE IF NOT EXISTS record_history (
		id BIGSERIAL PRIMARY KEY,
		key TEXT NOT NULL,
		fields JSONB NOT NULL,
		fingerprint TEXT NOT NULL,
		archived_at TIMESTAMPTZ NOT NULL
	);

	CREATE INDEX IF NOT EXISTS idx_history_key ON record_history(key);

	CREATE TABLE IF NOT EXISTS checkpoints (
		key TEXT PRIMARY KEY,
		state JSONB NOT NULL,
		updated_at TIMESTAMPTZ NOT NULL
	);

	CREATE TABLE IF NOT EXISTS cursors (
		source_key TEXT PRIMARY KEY,
		next_index INTEGER NOT NULL,
		updated_at TIMESTAMPTZ NOT NULL
	);
	`
	if _, err := s.pool.Exec(ctx, schema); err != nil {
		return fmt.Errorf("ensure schema: %w", err)
	}
	return nil
}

// GetFingerprint returns the stored fingerprint for key.
func (s *Store) GetFingerprint(ctx context.Context, key string) (string, bool, error) {
	var fp string
	err := s.pool.QueryRow(ctx,
		`SELECT fingerprint FROM records WHERE key = $1`, key).Scan(&fp)
	if errors.Is(err, pgx.ErrNoRows) {
		return "", false, nil
	}
	if err != nil {
		return "", false, fmt.Errorf("get fingerprint: %w", err)
	}
	return fp, true, nil
}

// Upsert classifies fields against the stored prior and applies the result
// in one transaction.
func (s *Store) Upsert(ctx context.Context, key string, fields crawl.Fields, fingerprint string) (crawl.Classification, error) {
	tx, err := s.pool.Begin(ctx)
	if err != nil {
		return "", fmt.Errorf("begin upsert: %w", err)
	}
	defer tx.Rollback(ctx) //nolint:errcheck // no-op after commit

	var (
		priorFP     string
		priorFields []byte
	)
	hasPrior := true
	err = tx.QueryRow(ctx,
		`SELECT fingerprint, fields FROM records WHERE key = $1 FOR UPDATE`, key).
		Scan(&priorFP, &priorFields)
	if errors.Is(err, pgx.ErrNoRows) {
		hasPrior = false
	} else if err != nil {
		return "", fmt.Errorf("read prior: %w", err)
	}

	class := crawl.Classify(priorFP, hasPrior, fingerprint)
	if class == crawl.ClassificationUnchanged {
		return class, nil
	}

	fieldsJSON, err := json.Marshal(fields)
	if err != nil {
		return "", fmt.Errorf("encode fields: %w", err)
	}
	now := s.clock.Now()

	if class == crawl.ClassificationModified {
		if _, err := tx.Exec(ctx,
			`INSERT INTO record_history (key, fields, fingerprint, archived_at) VALUES ($1, $2, $3, $4)`,
			key, priorFields, priorFP, now); err != nil {
			return "", fmt.Errorf("archive prior: %w", err)
		}
		if _, err := tx.Exec(ctx,
			`UPDATE records SET fields = $1, fingerprint = $2, updated_at = $3 WHERE key = $4`,
			fieldsJSON, fingerprint, now, key); err != nil {
			return "", fmt.Errorf("update record: %w", err)
		}
	} else {
		if _, err := tx.Exec(ctx,
			`INSERT INTO records (key, fields, fingerprint, first_seen, updated_at) VALUES ($1, $2, $3, $4, $5)`,
			key, fieldsJSON, fingerprint, now, now); err != nil {
			return "", fmt.Errorf("insert record: %w", err)
		}
	}

	if err := tx.Commit(ctx); err != nil {
		return "", fmt.Errorf("commit upsert: %w", err)
	}
	return class, nil
}

// LoadCheckpoint returns the checkpoint for key, nil when none exists.
func (s *Store) LoadCheckpoint(ctx context.Context, key string) (*crawl.Checkpoint, error) {
	var state []byte
	err := s.pool.QueryRow(ctx,
		`SELECT state FROM checkpoints WHERE key = $1`, key).Scan(&state)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("load checkpoint: %w", err)
	}
	var cp crawl.Checkpoint
	if err := json.Unmarshal(state, &cp); err != nil {
		return nil, fmt.Errorf("decode checkpoint: %w", err)
	}
	return &cp, nil
}

// SaveCheckpoint stores cp under key, replacing any prior state.
func (s *Store) SaveCheckpoint(ctx context.Context, key string, cp *crawl.Checkpoint) error {
	state, err := json.Marshal(cp)
	if err != nil {
		return fmt.Errorf("encode checkpoint: %w", err)
	}
	_, err = s.pool.Exec(ctx, `
		INSERT INTO checkpoints (key, state, updated_at) VALUES ($1, $2, $3)
		ON CONFLICT (key) DO UPDATE SET state = EXCLUDED.state, updated_at = EXCLUDED.updated_at`,
		key, state, s.clock.Now())
	if err != nil {
		return fmt.Errorf("save checkpoint: %w", err)
	}
	return nil
}

// DeleteCheckpoint removes the checkpoint for key.
func (s *Store) DeleteCheckpoint(ctx context.Context, key string) error {
	if _, err := s.pool.Exec(ctx,
		`DELETE FROM checkpoints WHERE key = $1`, key); err != nil {
		return fmt.Errorf("delete checkpoint: %w", err)
	}
	return nil
}

// GetCursor returns the cursor for sourceKey, zero when absent.
func (s *Store) GetCursor(ctx context.Context, sourceKey string) (int, error) {
	var idx int
	err := s.pool.QueryRow(ctx,
		`SELECT next_index FROM cursors WHERE source_key = $1`, sourceKey).Scan(&idx)
	if errors.Is(err, pgx.ErrNoRows) {
		return 0, nil
	}
	if err != nil {
		return 0, fmt.Errorf("get cursor: %w", err)
	}
	return idx, nil
}

// SetCursor stores index for sourceKey.
func (s *Store) SetCursor(ctx context.Context, sourceKey string, index int) error {
	_, err := s.pool.Exec(ctx, `
		INSERT INTO cursors (source_key, next_index, updated_at) VALUES ($1, $2, $3)
		ON CONFLICT (source_key) DO UPDATE SET next_index = EXCLUDED.next_index, updated_at = EXCLUDED.updated_at`,
		sourceKey, index, s.clock.Now())
	if err != nil {
		return fmt.Errorf("set cursor: %w", err)
	}
	return nil
}
