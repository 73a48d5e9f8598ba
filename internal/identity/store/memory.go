package store

import (
	"context"
	"strings"
	"sync"

	"qualitrack/internal/identity/models"
	"qualitrack/pkg/domain"
	"qualitrack/pkg/platform/sentinel"
)

// InMemory is a map-backed user store for tests and local development.
type InMemory struct {
	mu    sync.RWMutex
	users map[domain.UserID]*models.User
}

func NewInMemory() *InMemory {
	return &InMemory{users: make(map[domain.UserID]*models.User)}
}

func (s *InMemory) Save(_ context.Context, user *models.User) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	for _, existing := range s.users {
		if existing.ID != user.ID && strings.EqualFold(existing.Email, user.Email) {
			return sentinel.ErrAlreadyUsed
		}
	}
	clone := *user
	s.users[user.ID] = &clone
	return nil
}

func (s *InMemory) FindByID(_ context.Context, id domain.UserID) (*models.User, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	user, ok := s.users[id]
	if !ok {
		return nil, sentinel.ErrNotFound
	}
	clone := *user
	return &clone, nil
}

func (s *InMemory) FindByEmail(_ context.Context, email string) (*models.User, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	for _, user := range s.users {
		if strings.EqualFold(user.Email, email) {
			clone := *user
			return &clone, nil
		}
	}
	return nil, sentinel.ErrNotFound
}

// ListByRoleNot returns every user whose role differs from the given one,
// used by the assignment picker to exclude administrators.
func (s *InMemory) ListByRoleNot(_ context.Context, role domain.Role) ([]*models.User, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	out := make([]*models.User, 0, len(s.users))
	for _, user := range s.users {
		if user.Role != role {
			clone := *user
			out = append(out, &clone)
		}
	}
	return out, nil
}
