package db

import (
	"context"
	"sync"

	"medassist/pkg"
)

// MemoryStore is a process-local Store.  Records are deep-copied on the way
// in and out so callers cannot alias stored state.
type MemoryStore struct {
	mu       sync.Mutex
	patients []pkg.Patient
	saves    int
	loadErr  error
}

// NewMemoryStore returns a store seeded with the given patients.
func NewMemoryStore(seed ...pkg.Patient) *MemoryStore {
	return &MemoryStore{patients: clonePatients(seed)}
}

func (s *MemoryStore) LoadAll(ctx context.Context) ([]pkg.Patient, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.loadErr != nil {
		return nil, s.loadErr
	}
	out := clonePatients(s.patients)
	if out == nil {
		out = []pkg.Patient{}
	}
	return out, nil
}

func (s *MemoryStore) Save(ctx context.Context, all []pkg.Patient) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.patients = clonePatients(all)
	s.saves++
	return nil
}

// Saves reports how many times Save was called.
func (s *MemoryStore) Saves() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.saves
}

// FailLoads makes every following LoadAll return err; nil restores it.
func (s *MemoryStore) FailLoads(err error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.loadErr = err
}

func clonePatients(in []pkg.Patient) []pkg.Patient {
	if in == nil {
		return nil
	}
	out := make([]pkg.Patient, len(in))
	for i, p := range in {
		out[i] = p.Clone()
	}
	return out
}
