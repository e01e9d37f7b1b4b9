package memory

import (
	"context"
	"sync"

	"prepquiz-service/internal/domain"
)

// ProgressionStore keeps user progression records in memory. Apply runs the
// update function under the store lock so experience, level and streak move
// together even when two sessions complete in overlapping requests.
type ProgressionStore struct {
	mu    sync.RWMutex
	users map[string]domain.Progression
}

func NewProgressionStore() *ProgressionStore {
	return &ProgressionStore{users: make(map[string]domain.Progression)}
}

// Put seeds or replaces a user's record.
func (s *ProgressionStore) Put(_ context.Context, p domain.Progression) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.users[p.UserID] = p
	return nil
}

func (s *ProgressionStore) Get(_ context.Context, userID string) (domain.Progression, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	p, ok := s.users[userID]
	if !ok {
		return domain.Progression{}, domain.ErrProgressionNotFound
	}
	return p, nil
}

func (s *ProgressionStore) Apply(_ context.Context, userID string, update func(domain.Progression) domain.Progression) (domain.Progression, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	p, ok := s.users[userID]
	if !ok {
		return domain.Progression{}, domain.ErrProgressionNotFound
	}
	p = update(p)
	s.users[userID] = p
	return p, nil
}
