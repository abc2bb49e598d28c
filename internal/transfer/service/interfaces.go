package service

import (
	"context"

	"civreg/internal/directory"
	familymodels "civreg/internal/family/models"
	"civreg/internal/notify"
	"civreg/internal/transfer/models"
	id "civreg/pkg/domain"
)

// Ledger is durable storage for transfer requests. Implementations return
// pkg/platform/sentinel errors; the service translates them into domain
// errors.
type Ledger interface {
	// Create inserts a pending request, failing with sentinel.ErrConflict
	// when the family already has a non-terminal request and
	// sentinel.ErrAlreadyUsed on a transfer-id collision.
	Create(ctx context.Context, req *models.TransferRequest) error

	// Get returns the stored row or sentinel.ErrNotFound.
	Get(ctx context.Context, transferID id.TransferID) (*models.TransferRequest, error)

	// CompareAndTransition atomically checks the stored status against
	// expected before applying mutate, returning sentinel.ErrInvalidState on
	// mismatch. This is the single point that prevents double-processing of
	// a transition under concurrent requests.
	CompareAndTransition(ctx context.Context, transferID id.TransferID, expected models.Status, mutate func(*models.TransferRequest) error) (*models.TransferRequest, error)

	// ListForOffice returns requests touching the office, most recent first.
	ListForOffice(ctx context.Context, officeID id.OfficeID, filter models.ListFilter) ([]*models.TransferRequest, error)
}

// FamilyStore is the engine's window onto the family record system. The
// office-of-record field is foreign, single-writer state: the engine updates
// it only inside CompleteTransfer's transaction.
type FamilyStore interface {
	Get(ctx context.Context, familyID id.FamilyID) (*familymodels.FamilyRecord, error)
	GetOfficeOfRecord(ctx context.Context, familyID id.FamilyID) (id.OfficeID, error)
	SetOfficeOfRecord(ctx context.Context, familyID id.FamilyID, officeID id.OfficeID, clearPending bool) error
	SetPendingFlag(ctx context.Context, familyID id.FamilyID, pending bool) error
}

// Directory resolves offices to their administrative hierarchy.
type Directory = directory.Resolver

// Notifier receives workflow events. Failures are logged, never propagated.
type Notifier = notify.Notifier

// StoreTx provides the transactional boundary for a workflow transition and
// its side effects on the family record. Implementations may wrap a database
// transaction or, in-memory, a coarse lock.
type StoreTx interface {
	RunInTx(ctx context.Context, fn func(txCtx context.Context) error) error
}
