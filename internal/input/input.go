// Package input reads lookup keys from delimited input files.
package input

import (
	"encoding/csv"
	"fmt"
	"io"
	"os"
	"regexp"

	"go.uber.org/zap"
)

// Reader loads keys from single-column CSV files, validating and deduping
// them while preserving first-seen order.
type Reader struct {
	pattern *regexp.Regexp
	logger  *zap.Logger
}

// NewReader builds a Reader. keyPattern validates each key; empty accepts
// everything. logger may be nil.
func NewReader(keyPattern string, logger *zap.Logger) (*Reader, error) {
	if logger == nil {
		logger = zap.NewNop()
	}
	r := &Reader{logger: logger}
	if keyPattern != "" {
		re, err := regexp.Compile(keyPattern)
		if err != nil {
			return nil, fmt.Errorf("compile key pattern: %w", err)
		}
		r.pattern = re
	}
	return r, nil
}

// ReadFile loads keys from path. Invalid keys are logged and skipped, never
// fatal; a malformed file is.
func (r *Reader) ReadFile(path string) ([]string, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("open input: %w", err)
	}
	defer f.Close()
	keys, err := r.Read(f)
	if err != nil {
		return nil, fmt.Errorf("read %s: %w", path, err)
	}
	return keys, nil
}

// Read loads keys from an open reader.
func (r *Reader) Read(src io.Reader) ([]string, error) {
	cr := csv.NewReader(src)
	cr.FieldsPerRecord = -1
	cr.TrimLeadingSpace = true

	var keys []string
	seen := make(map[string]bool)
	line := 0
	for {
		record, err := cr.Read()
		if err == io.EOF {
			break
		}
		if err != nil {
			return nil, err
		}
		line++
		if len(record) == 0 || record[0] == "" {
			continue
		}
		key := record[0]
		if r.pattern != nil && !r.pattern.MatchString(key) {
			r.logger.Warn("skipping invalid key",
				zap.String("key", key),
				zap.Int("line", line),
			)
			continue
		}
		if seen[key] {
			continue
		}
		seen[key] = true
		keys = append(keys, key)
	}
	return keys, nil
}
