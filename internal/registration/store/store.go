package store

import (
	"context"

	"imageref/internal/registration/models"
)

// Error Contract:
// - LoadAll returns a CodeLedgerUnreadable domain error when the ledger is
//   missing or malformed (wrapping sentinel.ErrNotFound / sentinel.ErrMalformed)
// - SaveAll returns a CodeLedgerWriteFailed domain error on I/O failure; the
//   previous ledger contents are left intact
// - Update returns load/save errors as above, or fn's error unchanged

// MutateFunc edits records in place. It reports whether anything changed;
// an unchanged ledger is not rewritten.
type MutateFunc func(records []models.Record) (changed bool, err error)

// Store is the ledger persistence contract shared by the CSV and in-memory
// implementations.
type Store interface {
	LoadAll(ctx context.Context) ([]models.Record, error)
	SaveAll(ctx context.Context, records []models.Record) error
	Update(ctx context.Context, fn MutateFunc) error
}
