package location

import (
	"context"
	"sync"

	"github.com/Forken21/botsat/internal/transform"
)

// MemoryStore is an in-process Store. Locations are lost on restart.
type MemoryStore struct {
	mu        sync.RWMutex
	locations map[string]transform.Observer
}

// NewMemoryStore creates an empty MemoryStore.
func NewMemoryStore() *MemoryStore {
	return &MemoryStore{locations: make(map[string]transform.Observer)}
}

func (s *MemoryStore) Get(_ context.Context, userID string) (transform.Observer, error) {
	if err := ValidateUserID(userID); err != nil {
		return transform.Observer{}, err
	}
	s.mu.RLock()
	defer s.mu.RUnlock()
	obs, ok := s.locations[userID]
	if !ok {
		return transform.Observer{}, ErrNotFound
	}
	return obs, nil
}

func (s *MemoryStore) Set(_ context.Context, userID string, obs transform.Observer) error {
	if err := ValidateUserID(userID); err != nil {
		return err
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	s.locations[userID] = obs
	return nil
}

// Delete removes a user's location. Deleting an absent location is not an error.
func (s *MemoryStore) Delete(_ context.Context, userID string) error {
	if err := ValidateUserID(userID); err != nil {
		return err
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	delete(s.locations, userID)
	return nil
}

// Len returns the number of stored locations.
func (s *MemoryStore) Len() int {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return len(s.locations)
}
