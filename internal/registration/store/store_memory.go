package store

import (
	"context"
	"sync"

	"imageref/internal/registration/models"
)

// InMemoryStore holds the ledger in memory for tests.
type InMemoryStore struct {
	mu      sync.Mutex
	records []models.Record
	saves   int
}

// NewInMemory seeds a store with a copy of records.
func NewInMemory(records []models.Record) *InMemoryStore {
	return &InMemoryStore{records: models.CloneAll(records)}
}

func (s *InMemoryStore) LoadAll(_ context.Context) ([]models.Record, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return models.CloneAll(s.records), nil
}

func (s *InMemoryStore) SaveAll(_ context.Context, records []models.Record) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.records = models.CloneAll(records)
	s.saves++
	return nil
}

func (s *InMemoryStore) Update(_ context.Context, fn MutateFunc) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	working := models.CloneAll(s.records)
	changed, err := fn(working)
	if err != nil {
		return err
	}
	if changed {
		s.records = working
		s.saves++
	}
	return nil
}

// Saves returns how many times the ledger was rewritten.
func (s *InMemoryStore) Saves() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.saves
}
