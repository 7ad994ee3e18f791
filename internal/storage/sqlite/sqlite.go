// Package sqlite provides the embedded persistence backend.
package sqlite

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	_ "modernc.org/sqlite" // SQLite driver

	"github.com/guidewatch/guidewatch/internal/crawl"
)

// Store implements crawl.Store on a local SQLite file.
type Store struct {
	db    *sql.DB
	clock crawl.Clock
}

// Open opens or creates the database at path and ensures the schema.
func Open(path string, clock crawl.Clock) (*Store, error) {
	// modernc.org/sqlite uses query-parameter connection options; mode=rwc
	// creates the file when missing.
	db, err := sql.Open("sqlite", path+"?mode=rwc")
	if err != nil {
		return nil, fmt.Errorf("open database: %w", err)
	}

	// SQLite only supports one writer.
	db.SetMaxOpenConns(1)
	db.SetMaxIdleConns(1)
	db.SetConnMaxLifetime(time.Hour)

	if _, err := db.ExecContext(context.Background(), "PRAGMA journal_mode=WAL"); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("enable WAL mode: %w", err)
	}

	s := &Store{db: db, clock: clock}
	if err := s.createTables(); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("create tables: %w", err)
	}
	return s, nil
}

// Close closes the database connection.
func (s *Store) Close() error {
	return s.db.Close()
}

func (s *Store) createTables() error {
	schema := `
	-- Current version of every known record, one row per natural key
	CREATE TABLE IF NOT EXISTS records (
		key TEXT PRIMARY KEY,
		fields TEXT NOT NULL,
		fingerprint TEXT NOT NULL,
		first_seen DATETIME NOT NULL,
		updated_at DATETIME NOT NULL
	);

	-- Prior versions, archived before each overwrite
	CREATE TABLE IF NOT EXISTS record_history (
		id INTEGER PRIMARY KEY AUTOINCREMENT,
		key TEXT NOT NULL,
		fields TEXT NOT NULL,
		fingerprint TEXT NOT NULL,
		archived_at DATETIME NOT NULL
	);

	CREATE INDEX IF NOT EXISTS idx_history_key ON record_history(key);

	-- Crawl progress, one row per named crawl
	CREATE TABLE IF NOT EXISTS checkpoints (
		key TEXT PRIMARY KEY,
		state TEXT NOT NULL,
		updated_at DATETIME NOT NULL
	);

	-- Sequential workflow cursors, one row per input list
	CREATE TABLE IF NOT EXISTS cursors (
		source_key TEXT PRIMARY KEY,
		next_index INTEGER NOT NULL,
		updated_at DATETIME NOT NULL
	);
	`
	_, err := s.db.ExecContext(context.Background(), schema)
	return err
}

// GetFingerprint returns the stored fingerprint for key.
func (s *Store) GetFingerprint(ctx context.Context, key string) (string, bool, error) {
	var fp string
	err := s.db.QueryRowContext(ctx,
		`SELECT fingerprint FROM records WHERE key = ?`, key).Scan(&fp)
	if errors.Is(err, sql.ErrNoRows) {
		return "", false, nil
	}
	if err != nil {
		return "", false, fmt.Errorf("get fingerprint: %w", err)
	}
	return fp, true, nil
}

// Upsert classifies fields against the stored prior and applies the result
// in one transaction. A modified record's prior version is archived first.
func (s *Store) Upsert(ctx context.Context, key string, fields crawl.Fields, fingerprint string) (crawl.Classification, error) {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return "", fmt.Errorf("begin upsert: %w", err)
	}
	defer tx.Rollback() //nolint:errcheck // no-op after commit

	var (
		priorFP     string
		priorFields string
	)
	hasPrior := true
	err = tx.QueryRowContext(ctx,
		`SELECT fingerprint, fields FROM records WHERE key = ?`, key).
		Scan(&priorFP, &priorFields)
	if errors.Is(err, sql.ErrNoRows) {
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
		if _, err := tx.ExecContext(ctx,
			`INSERT INTO record_history (key, fields, fingerprint, archived_at) VALUES (?, ?, ?, ?)`,
			key, priorFields, priorFP, now); err != nil {
			return "", fmt.Errorf("archive prior: %w", err)
		}
		if _, err := tx.ExecContext(ctx,
			`UPDATE records SET fields = ?, fingerprint = ?, updated_at = ? WHERE key = ?`,
			string(fieldsJSON), fingerprint, now, key); err != nil {
			return "", fmt.Errorf("update record: %w", err)
		}
	} else {
		if _, err := tx.ExecContext(ctx,
			`INSERT INTO records (key, fields, fingerprint, first_seen, updated_at) VALUES (?, ?, ?, ?, ?)`,
			key, string(fieldsJSON), fingerprint, now, now); err != nil {
			return "", fmt.Errorf("insert record: %w", err)
		}
	}

	if err := tx.Commit(); err != nil {
		return "", fmt.Errorf("commit upsert: %w", err)
	}
	return class, nil
}

// LoadCheckpoint returns the checkpoint for key, nil when none exists.
func (s *Store) LoadCheckpoint(ctx context.Context, key string) (*crawl.Checkpoint, error) {
	var state string
	err := s.db.QueryRowContext(ctx,
		`SELECT state FROM checkpoints WHERE key = ?`, key).Scan(&state)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("load checkpoint: %w", err)
	}
	var cp crawl.Checkpoint
	if err := json.Unmarshal([]byte(state), &cp); err != nil {
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
	_, err = s.db.ExecContext(ctx, `
		INSERT INTO checkpoints (key, state, updated_at) VALUES (?, ?, ?)
		ON CONFLICT(key) DO UPDATE SET state = excluded.state, updated_at = excluded.updated_at`,
		key, string(state), s.clock.Now())
	if err != nil {
		return fmt.Errorf("save checkpoint: %w", err)
	}
	return nil
}

// DeleteCheckpoint removes the checkpoint for key.
func (s *Store) DeleteCheckpoint(ctx context.Context, key string) error {
	if _, err := s.db.ExecContext(ctx,
		`DELETE FROM checkpoints WHERE key = ?`, key); err != nil {
		return fmt.Errorf("delete checkpoint: %w", err)
	}
	return nil
}

// GetCursor returns the cursor for sourceKey, zero when absent.
func (s *Store) GetCursor(ctx context.Context, sourceKey string) (int, error) {
	var idx int
	err := s.db.QueryRowContext(ctx,
		`SELECT next_index FROM cursors WHERE source_key = ?`, sourceKey).Scan(&idx)
	if errors.Is(err, sql.ErrNoRows) {
		return 0, nil
	}
	if err != nil {
		return 0, fmt.Errorf("get cursor: %w", err)
	}
	return idx, nil
}

// SetCursor stores index for sourceKey.
func (s *Store) SetCursor(ctx context.Context, sourceKey string, index int) error {
	_, err := s.db.ExecContext(ctx, `
		INSERT INTO cursors (source_key, next_index, updated_at) VALUES (?, ?, ?)
		ON CONFLICT(source_key) DO UPDATE SET next_index = excluded.next_index, updated_at = excluded.updated_at`,
		sourceKey, index, s.clock.Now())
	if err != nil {
		return fmt.Errorf("set cursor: %w", err)
	}
	return nil
}
