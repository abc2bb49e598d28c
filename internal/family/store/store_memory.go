package store

import (
	"context"
	"fmt"
	"sync"

	"civreg/internal/family/models"
	id "civreg/pkg/domain"
	"civreg/pkg/platform/sentinel"
)

// InMemory keeps family records behind a mutex for tests and dev mode.
type InMemory struct {
	mu       sync.RWMutex
	families map[id.FamilyID]*models.FamilyRecord
}

func NewInMemory() *InMemory {
	return &InMemory{families: make(map[id.FamilyID]*models.FamilyRecord)}
}

// Put seeds or replaces a family record.
func (s *InMemory) Put(_ context.Context, record *models.FamilyRecord) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	clone := *record
	s.families[record.ID] = &clone
	return nil
}

// Get returns a copy of the family record or sentinel.ErrNotFound.
func (s *InMemory) Get(_ context.Context, familyID id.FamilyID) (*models.FamilyRecord, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	record, ok := s.families[familyID]
	if !ok {
		return nil, fmt.Errorf("family %s: %w", familyID, sentinel.ErrNotFound)
	}
	clone := *record
	return &clone, nil
}

// GetOfficeOfRecord returns the office currently responsible for the family.
func (s *InMemory) GetOfficeOfRecord(ctx context.Context, familyID id.FamilyID) (id.OfficeID, error) {
	record, err := s.Get(ctx, familyID)
	if err != nil {
		return "", err
	}
	return record.OfficeOfRecord, nil
}

// SetOfficeOfRecord moves the family to a new office. Only CompleteTransfer
// calls this, so the transferred marker is set here as well.
func (s *InMemory) SetOfficeOfRecord(ctx context.Context, familyID id.FamilyID, officeID id.OfficeID, clearPending bool) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	record, ok := s.families[familyID]
	if !ok {
		return fmt.Errorf("family %s: %w", familyID, sentinel.ErrNotFound)
	}
	record.OfficeOfRecord = officeID
	record.Transferred = true
	if clearPending {
		record.TransferPending = false
	}
	return nil
}

// SetPendingFlag flips the transfer-pending marker on the family record.
func (s *InMemory) SetPendingFlag(_ context.Context, familyID id.FamilyID, pending bool) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	record, ok := s.families[familyID]
	if !ok {
		return fmt.Errorf("family %s: %w", familyID, sentinel.ErrNotFound)
	}
	record.TransferPending = pending
	return nil
}
