package store

import (
	"context"
	"sync"

	"qualitrack/internal/protocol/models"
	"qualitrack/pkg/domain"
	"qualitrack/pkg/platform/sentinel"
)

// InMemory keeps protocols and the standard criteria catalog in maps for
// tests and local development.
type InMemory struct {
	mu        sync.RWMutex
	protocols map[domain.ProtocolID]*models.Protocol
	standard  map[domain.CriterionID]*models.StandardCriterion
}

func NewInMemory() *InMemory {
	return &InMemory{
		protocols: make(map[domain.ProtocolID]*models.Protocol),
		standard:  make(map[domain.CriterionID]*models.StandardCriterion),
	}
}

func (s *InMemory) SaveProtocol(_ context.Context, p *models.Protocol) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.protocols[p.ID] = cloneProtocol(p)
	return nil
}

func (s *InMemory) FindProtocol(_ context.Context, id domain.ProtocolID) (*models.Protocol, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	p, ok := s.protocols[id]
	if !ok {
		return nil, sentinel.ErrNotFound
	}
	return cloneProtocol(p), nil
}

func (s *InMemory) ListProtocols(_ context.Context) ([]*models.Protocol, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	out := make([]*models.Protocol, 0, len(s.protocols))
	for _, p := range s.protocols {
		out = append(out, cloneProtocol(p))
	}
	return out, nil
}

func (s *InMemory) SaveStandardCriterion(_ context.Context, c *models.StandardCriterion) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	clone := *c
	s.standard[c.ID] = &clone
	return nil
}

func (s *InMemory) ListStandardCriteria(_ context.Context) ([]*models.StandardCriterion, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	out := make([]*models.StandardCriterion, 0, len(s.standard))
	for _, c := range s.standard {
		clone := *c
		out = append(out, &clone)
	}
	return out, nil
}

func cloneProtocol(p *models.Protocol) *models.Protocol {
	clone := *p
	clone.SpecificCriteria = make([]*models.SpecificCriterion, 0, len(p.SpecificCriteria))
	for _, c := range p.SpecificCriteria {
		cc := *c
		cc.ImplementationDepartmentIDs = append([]domain.DepartmentID(nil), c.ImplementationDepartmentIDs...)
		cc.CheckDepartmentIDs = append([]domain.DepartmentID(nil), c.CheckDepartmentIDs...)
		clone.SpecificCriteria = append(clone.SpecificCriteria, &cc)
	}
	return &clone
}
