package store

import (
	"context"
	"strings"
	"sync"

	"qualitrack/internal/refdata/models"
	"qualitrack/pkg/domain"
	"qualitrack/pkg/platform/sentinel"
)

// InMemory holds reference data in maps for tests and local development.
type InMemory struct {
	mu          sync.RWMutex
	departments map[domain.DepartmentID]*models.Department
	plants      map[domain.PlantID]*models.Plant
	languages   map[domain.LanguageID]*models.Language
}

func NewInMemory() *InMemory {
	return &InMemory{
		departments: make(map[domain.DepartmentID]*models.Department),
		plants:      make(map[domain.PlantID]*models.Plant),
		languages:   make(map[domain.LanguageID]*models.Language),
	}
}

// CreateDepartmentIfNameAvailable inserts the department unless another one
// already holds the name (case-insensitive).
func (s *InMemory) CreateDepartmentIfNameAvailable(_ context.Context, d *models.Department) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	for _, existing := range s.departments {
		if strings.EqualFold(existing.Name, d.Name) {
			return sentinel.ErrAlreadyUsed
		}
	}
	clone := *d
	s.departments[d.ID] = &clone
	return nil
}

func (s *InMemory) UpdateDepartment(_ context.Context, d *models.Department) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if _, ok := s.departments[d.ID]; !ok {
		return sentinel.ErrNotFound
	}
	for _, existing := range s.departments {
		if existing.ID != d.ID && strings.EqualFold(existing.Name, d.Name) {
			return sentinel.ErrAlreadyUsed
		}
	}
	clone := *d
	s.departments[d.ID] = &clone
	return nil
}

func (s *InMemory) DeleteDepartment(_ context.Context, id domain.DepartmentID) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if _, ok := s.departments[id]; !ok {
		return sentinel.ErrNotFound
	}
	delete(s.departments, id)
	return nil
}

func (s *InMemory) FindDepartment(_ context.Context, id domain.DepartmentID) (*models.Department, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	d, ok := s.departments[id]
	if !ok {
		return nil, sentinel.ErrNotFound
	}
	clone := *d
	return &clone, nil
}

func (s *InMemory) FindDepartmentByName(_ context.Context, name string) (*models.Department, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	for _, d := range s.departments {
		if strings.EqualFold(d.Name, name) {
			clone := *d
			return &clone, nil
		}
	}
	return nil, sentinel.ErrNotFound
}

func (s *InMemory) ListDepartments(_ context.Context) ([]*models.Department, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	out := make([]*models.Department, 0, len(s.departments))
	for _, d := range s.departments {
		clone := *d
		out = append(out, &clone)
	}
	return out, nil
}

func (s *InMemory) SavePlant(_ context.Context, p *models.Plant) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	clone := *p
	s.plants[p.ID] = &clone
	return nil
}

func (s *InMemory) ListPlants(_ context.Context) ([]*models.Plant, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	out := make([]*models.Plant, 0, len(s.plants))
	for _, p := range s.plants {
		clone := *p
		out = append(out, &clone)
	}
	return out, nil
}

func (s *InMemory) SaveLanguage(_ context.Context, l *models.Language) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	clone := *l
	s.languages[l.ID] = &clone
	return nil
}

func (s *InMemory) ListLanguages(_ context.Context) ([]*models.Language, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	out := make([]*models.Language, 0, len(s.languages))
	for _, l := range s.languages {
		clone := *l
		out = append(out, &clone)
	}
	return out, nil
}

func (s *InMemory) FindLanguageByCode(_ context.Context, code string) (*models.Language, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	for _, l := range s.languages {
		if strings.EqualFold(l.Code, code) {
			clone := *l
			return &clone, nil
		}
	}
	return nil, sentinel.ErrNotFound
}

func (s *InMemory) FindDefaultLanguage(_ context.Context) (*models.Language, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	for _, l := range s.languages {
		if l.IsDefault {
			clone := *l
			return &clone, nil
		}
	}
	return nil, sentinel.ErrNotFound
}
