package directory

import (
	"context"
	"fmt"
	"sync"

	id "civreg/pkg/domain"
	"civreg/pkg/platform/sentinel"
)

// InMemory is a seedable directory for tests and dev mode.
type InMemory struct {
	mu      sync.RWMutex
	offices map[id.OfficeID]Location
}

func NewInMemory() *InMemory {
	return &InMemory{offices: make(map[id.OfficeID]Location)}
}

// Seed registers an office and its location.
func (s *InMemory) Seed(loc Location) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.offices[loc.Office.ID] = loc
}

func (s *InMemory) Resolve(_ context.Context, officeID id.OfficeID) (Location, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	loc, ok := s.offices[officeID]
	if !ok {
		return Location{}, fmt.Errorf("office %s: %w", officeID, sentinel.ErrNotFound)
	}
	return loc, nil
}
