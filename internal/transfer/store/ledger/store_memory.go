package ledger

import (
	"context"
	"fmt"
	"sort"
	"sync"

	"civreg/internal/transfer/models"
	id "civreg/pkg/domain"
	"civreg/pkg/platform/sentinel"
)

// InMemory holds the transfer ledger behind a mutex. Used by unit tests and
// single-node development mode; the Postgres store is the durable twin.
type InMemory struct {
	mu   sync.RWMutex
	rows map[id.TransferID]*models.TransferRequest
	// active tracks the one non-terminal request per family, mirroring the
	// partial unique index the Postgres store relies on.
	active map[id.FamilyID]id.TransferID
}

func NewInMemory() *InMemory {
	return &InMemory{
		rows:   make(map[id.TransferID]*models.TransferRequest),
		active: make(map[id.FamilyID]id.TransferID),
	}
}

// Create inserts a new pending request. Returns sentinel.ErrAlreadyUsed on a
// transfer-id collision and sentinel.ErrConflict when the family already has
// a non-terminal request.
func (s *InMemory) Create(_ context.Context, req *models.TransferRequest) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if _, exists := s.rows[req.ID]; exists {
		return fmt.Errorf("transfer %s: %w", req.ID, sentinel.ErrAlreadyUsed)
	}
	if _, exists := s.active[req.FamilyID]; exists {
		return fmt.Errorf("family %s has an active transfer: %w", req.FamilyID, sentinel.ErrConflict)
	}

	s.rows[req.ID] = req.Clone()
	if req.IsActive() {
		s.active[req.FamilyID] = req.ID
	}
	return nil
}

// Get returns a copy of the stored row or sentinel.ErrNotFound.
func (s *InMemory) Get(_ context.Context, transferID id.TransferID) (*models.TransferRequest, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	row, ok := s.rows[transferID]
	if !ok {
		return nil, fmt.Errorf("transfer %s: %w", transferID, sentinel.ErrNotFound)
	}
	return row.Clone(), nil
}

// CompareAndTransition atomically checks the stored status against expected
// before applying mutate. A mismatch returns sentinel.ErrInvalidState so a
// losing racer can re-read instead of retrying blindly. The mutation runs on
// a copy; the row is only replaced when mutate succeeds.
func (s *InMemory) CompareAndTransition(_ context.Context, transferID id.TransferID, expected models.Status, mutate func(*models.TransferRequest) error) (*models.TransferRequest, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	row, ok := s.rows[transferID]
	if !ok {
		return nil, fmt.Errorf("transfer %s: %w", transferID, sentinel.ErrNotFound)
	}
	if row.Status != expected {
		return nil, fmt.Errorf("transfer %s is %s, expected %s: %w", transferID, row.Status, expected, sentinel.ErrInvalidState)
	}

	next := row.Clone()
	if err := mutate(next); err != nil {
		return nil, err
	}

	s.rows[transferID] = next
	if !next.IsActive() {
		delete(s.active, next.FamilyID)
	}
	return next.Clone(), nil
}

// ListForOffice returns requests where the office is origin or destination,
// most recent request first.
func (s *InMemory) ListForOffice(_ context.Context, officeID id.OfficeID, filter models.ListFilter) ([]*models.TransferRequest, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	var out []*models.TransferRequest
	for _, row := range s.rows {
		if row.FromOfficeID != officeID && row.ToOfficeID != officeID {
			continue
		}
		if filter.Status != "" && row.Status != filter.Status {
			continue
		}
		out = append(out, row.Clone())
	}

	sort.Slice(out, func(i, j int) bool {
		return out[i].RequestDate.After(out[j].RequestDate)
	})
	if filter.Limit > 0 && len(out) > filter.Limit {
		out = out[:filter.Limit]
	}
	return out, nil
}
