package wallet

import (
	"context"
	"sync"
)

type inMemoryStore struct {
	mu      sync.RWMutex
	wallets map[string]Wallet
	entries map[string]Entry // keyed by operation track id
}

// NewInMemory creates a concurrency-safe in-memory store useful for unit
// tests and local development without Postgres.
func NewInMemory() Store {
	return &inMemoryStore{
		wallets: make(map[string]Wallet),
		entries: make(map[string]Entry),
	}
}

func (s *inMemoryStore) Create(_ context.Context, w Wallet) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, exists := s.wallets[w.ID]; exists {
		return ErrWalletExists
	}
	s.wallets[w.ID] = w
	return nil
}

func (s *inMemoryStore) Get(_ context.Context, id string) (Wallet, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	w, ok := s.wallets[id]
	if !ok {
		return Wallet{}, ErrNotFound
	}
	return w, nil
}

func (s *inMemoryStore) ApplyOperation(_ context.Context, walletID string, expectedVersion, newBalance int64, entry Entry) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	w, ok := s.wallets[walletID]
	if !ok {
		return ErrNotFound
	}
	if w.Version != expectedVersion {
		return ErrVersionConflict
	}
	if _, exists := s.entries[entry.TrackID]; exists {
		return ErrDuplicateOperation
	}
	if newBalance < 0 {
		// Mirrors the CHECK constraint on the wallets table.
		return ErrInsufficientBalance
	}

	w.Balance = newBalance
	w.Version++
	w.UpdatedAt = entry.CreatedAt
	s.wallets[walletID] = w
	s.entries[entry.TrackID] = entry
	return nil
}

func (s *inMemoryStore) HasOperation(_ context.Context, trackID string) (bool, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	_, exists := s.entries[trackID]
	return exists, nil
}

func (s *inMemoryStore) EntryByTrackID(_ context.Context, trackID string) (Entry, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	e, ok := s.entries[trackID]
	if !ok {
		return Entry{}, ErrNotFound
	}
	return e, nil
}
