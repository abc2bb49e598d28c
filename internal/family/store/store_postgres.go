package store

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	"civreg/internal/family/models"
	id "civreg/pkg/domain"
	"civreg/pkg/platform/sentinel"
	txcontext "civreg/pkg/platform/tx"
)

// Postgres persists family records. Writes join the transaction carried in
// context so office-of-record changes commit with the ledger transition that
// caused them.
type Postgres struct {
	db *sql.DB
}

func NewPostgres(db *sql.DB) *Postgres {
	return &Postgres{db: db}
}

type execer interface {
	ExecContext(ctx context.Context, query string, args ...any) (sql.Result, error)
	QueryRowContext(ctx context.Context, query string, args ...any) *sql.Row
}

func (s *Postgres) execer(ctx context.Context) execer {
	if tx, ok := txcontext.From(ctx); ok {
		return tx
	}
	return s.db
}

// Put seeds or replaces a family record.
func (s *Postgres) Put(ctx context.Context, record *models.FamilyRecord) error {
	query := `
		INSERT INTO families (id, office_of_record, transfer_pending, transferred, updated_at)
		VALUES ($1, $2, $3, $4, NOW())
		ON CONFLICT (id) DO UPDATE
		SET office_of_record = EXCLUDED.office_of_record,
		    transfer_pending = EXCLUDED.transfer_pending,
		    transferred      = EXCLUDED.transferred,
		    updated_at       = NOW()
	`
	_, err := s.execer(ctx).ExecContext(ctx, query,
		string(record.ID), string(record.OfficeOfRecord), record.TransferPending, record.Transferred)
	if err != nil {
		return fmt.Errorf("put family: %w", err)
	}
	return nil
}

// Get returns the family record or sentinel.ErrNotFound.
func (s *Postgres) Get(ctx context.Context, familyID id.FamilyID) (*models.FamilyRecord, error) {
	query := `
		SELECT id, office_of_record, transfer_pending, transferred, updated_at
		FROM families WHERE id = $1
	`
	var record models.FamilyRecord
	var rowID, officeID string
	err := s.execer(ctx).QueryRowContext(ctx, query, string(familyID)).Scan(
		&rowID, &officeID, &record.TransferPending, &record.Transferred, &record.UpdatedAt)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, fmt.Errorf("family %s: %w", familyID, sentinel.ErrNotFound)
	}
	if err != nil {
		return nil, fmt.Errorf("get family: %w", err)
	}
	record.ID = id.FamilyID(rowID)
	record.OfficeOfRecord = id.OfficeID(officeID)
	return &record, nil
}

// GetOfficeOfRecord returns the office currently responsible for the family.
func (s *Postgres) GetOfficeOfRecord(ctx context.Context, familyID id.FamilyID) (id.OfficeID, error) {
	record, err := s.Get(ctx, familyID)
	if err != nil {
		return "", err
	}
	return record.OfficeOfRecord, nil
}

// SetOfficeOfRecord moves the family to a new office and marks it as having
// been transferred. Only CompleteTransfer calls this.
func (s *Postgres) SetOfficeOfRecord(ctx context.Context, familyID id.FamilyID, officeID id.OfficeID, clearPending bool) error {
	query := `
		UPDATE families
		SET office_of_record = $1,
		    transferred      = TRUE,
		    transfer_pending = CASE WHEN $2 THEN FALSE ELSE transfer_pending END,
		    updated_at       = NOW()
		WHERE id = $3
	`
	return s.mutate(ctx, query, string(officeID), clearPending, string(familyID))
}

// SetPendingFlag flips the transfer-pending marker on the family record.
func (s *Postgres) SetPendingFlag(ctx context.Context, familyID id.FamilyID, pending bool) error {
	query := `UPDATE families SET transfer_pending = $1, updated_at = NOW() WHERE id = $2`
	return s.mutate(ctx, query, pending, string(familyID))
}

func (s *Postgres) mutate(ctx context.Context, query string, args ...any) error {
	res, err := s.execer(ctx).ExecContext(ctx, query, args...)
	if err != nil {
		return fmt.Errorf("update family: %w", err)
	}
	affected, err := res.RowsAffected()
	if err != nil {
		return fmt.Errorf("update family: %w", err)
	}
	if affected == 0 {
		return fmt.Errorf("family not found: %w", sentinel.ErrNotFound)
	}
	return nil
}
