package store

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"sync"
	"time"

	"imageref/internal/platform/metrics"
	"imageref/internal/registration/models"
	dErrors "imageref/pkg/domain-errors"
	"imageref/pkg/platform/sentinel"
)

// CSVStore persists the ledger as a single CSV file. Every mutation rewrites
// the whole file through a temp file and rename, and Update serializes
// read-modify-write cycles so concurrent submissions cannot lose updates.
type CSVStore struct {
	path    string
	metrics *metrics.Metrics

	mu     sync.Mutex
	header []string
}

// Option configures a CSVStore.
type Option func(*CSVStore)

// WithMetrics records ledger operation latency and size.
func WithMetrics(m *metrics.Metrics) Option {
	return func(s *CSVStore) {
		s.metrics = m
	}
}

// NewCSV returns a store for the ledger at path. The file is not opened
// until the first operation.
func NewCSV(path string, opts ...Option) *CSVStore {
	s := &CSVStore{path: path}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// Path returns the ledger location.
func (s *CSVStore) Path() string {
	return s.path
}

func (s *CSVStore) LoadAll(ctx context.Context) ([]models.Record, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.load(ctx)
}

func (s *CSVStore) SaveAll(ctx context.Context, records []models.Record) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.save(ctx, records)
}

// Update runs load, fn and save as one critical section.
func (s *CSVStore) Update(ctx context.Context, fn MutateFunc) error {
	start := time.Now()
	defer s.observe("update", start)

	s.mu.Lock()
	defer s.mu.Unlock()

	records, err := s.load(ctx)
	if err != nil {
		return err
	}
	changed, err := fn(records)
	if err != nil {
		return err
	}
	if !changed {
		return nil
	}
	return s.save(ctx, records)
}

func (s *CSVStore) load(ctx context.Context) ([]models.Record, error) {
	start := time.Now()
	defer s.observe("load", start)

	if err := ctx.Err(); err != nil {
		return nil, dErrors.Wrap(err, dErrors.CodeTimeout, "ledger load aborted")
	}

	data, err := os.ReadFile(s.path)
	if errors.Is(err, fs.ErrNotExist) {
		return nil, dErrors.Wrap(fmt.Errorf("%w: %s", sentinel.ErrNotFound, s.path), dErrors.CodeLedgerUnreadable, "ledger file is missing")
	}
	if err != nil {
		return nil, dErrors.Wrap(err, dErrors.CodeLedgerUnreadable, "ledger file could not be read")
	}

	records, header, err := Decode(bytes.NewReader(data))
	if err != nil {
		return nil, dErrors.Wrap(fmt.Errorf("%w: %w", sentinel.ErrMalformed, err), dErrors.CodeLedgerUnreadable, "ledger file is malformed")
	}
	s.header = header
	if s.metrics != nil {
		s.metrics.SetLedgerRecords(len(records))
	}
	return records, nil
}

func (s *CSVStore) save(ctx context.Context, records []models.Record) error {
	start := time.Now()
	defer s.observe("save", start)

	if err := ctx.Err(); err != nil {
		return dErrors.Wrap(err, dErrors.CodeLedgerWriteFailed, "ledger save aborted")
	}

	header := s.header
	if header != nil {
		header = withExtraColumns(header, records)
	}
	var buf bytes.Buffer
	if err := Encode(&buf, header, records); err != nil {
		return dErrors.Wrap(err, dErrors.CodeLedgerWriteFailed, "ledger could not be encoded")
	}
	if err := writeAtomic(s.path, buf.Bytes()); err != nil {
		return dErrors.Wrap(err, dErrors.CodeLedgerWriteFailed, "ledger could not be written")
	}
	return nil
}

func (s *CSVStore) observe(op string, start time.Time) {
	if s.metrics != nil {
		s.metrics.ObserveLedgerOperation(op, time.Since(start).Seconds())
	}
}

// withExtraColumns appends extra columns present in records but absent from
// header, so SaveAll with new extras never drops data.
func withExtraColumns(header []string, records []models.Record) []string {
	present := make(map[string]bool, len(header))
	for _, h := range header {
		present[h] = true
	}
	out := header
	for _, col := range DefaultHeader(records) {
		if !present[col] {
			if len(out) == len(header) {
				out = append([]string(nil), header...)
			}
			out = append(out, col)
			present[col] = true
		}
	}
	return out
}

// writeAtomic replaces path with data via a temp file in the same directory.
func writeAtomic(path string, data []byte) (err error) {
	dir := filepath.Dir(path)
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return fmt.Errorf("create ledger dir: %w", err)
	}

	mode := fs.FileMode(0o644)
	if info, statErr := os.Stat(path); statErr == nil {
		mode = info.Mode().Perm()
	}

	tmp, err := os.CreateTemp(dir, ".ledger-*.csv.tmp")
	if err != nil {
		return fmt.Errorf("create temp ledger: %w", err)
	}
	tmpName := tmp.Name()
	defer func() {
		if err != nil {
			_ = os.Remove(tmpName)
		}
	}()

	if _, err = tmp.Write(data); err != nil {
		_ = tmp.Close()
		return fmt.Errorf("write temp ledger: %w", err)
	}
	if err = tmp.Sync(); err != nil {
		_ = tmp.Close()
		return fmt.Errorf("sync temp ledger: %w", err)
	}
	if err = tmp.Close(); err != nil {
		return fmt.Errorf("close temp ledger: %w", err)
	}
	if err = os.Chmod(tmpName, mode); err != nil {
		return fmt.Errorf("chmod temp ledger: %w", err)
	}
	if err = os.Rename(tmpName, path); err != nil {
		return fmt.Errorf("replace ledger: %w", err)
	}
	return nil
}
