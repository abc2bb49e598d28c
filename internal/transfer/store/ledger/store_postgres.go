package ledger

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/lib/pq"

	"civreg/internal/transfer/models"
	id "civreg/pkg/domain"
	"civreg/pkg/platform/sentinel"
	txcontext "civreg/pkg/platform/tx"
)

// Constraint names from internal/db/schema.go, used to tell an id collision
// apart from the one-active-transfer-per-family violation.
const (
	pkeyConstraint        = "transfer_requests_pkey"
	activePerFamilyIndex  = "transfer_requests_one_active_per_family"
	uniqueViolationPqCode = "23505"
)

// Postgres persists the transfer ledger. Transitions join the transaction
// carried in context (pkg/platform/tx) so the family update committed by
// CompleteTransfer shares the ledger's atomic unit.
type Postgres struct {
	db *sql.DB
}

func NewPostgres(db *sql.DB) *Postgres {
	return &Postgres{db: db}
}

type querier interface {
	ExecContext(ctx context.Context, query string, args ...any) (sql.Result, error)
	QueryContext(ctx context.Context, query string, args ...any) (*sql.Rows, error)
	QueryRowContext(ctx context.Context, query string, args ...any) *sql.Row
}

func (s *Postgres) execer(ctx context.Context) querier {
	if tx, ok := txcontext.From(ctx); ok {
		return tx
	}
	return s.db
}

const transferColumns = `
	id, family_id, from_office_id, to_office_id, status, reason, notes,
	requested_by, approved_by, rejected_by, completed_by,
	request_date, approval_date, rejection_date, completed_date,
	rejection_reason, completion_notes`

// Create inserts a pending request. The partial unique index enforces the
// one-active-transfer invariant; a violation surfaces as sentinel.ErrConflict
// and a primary-key collision as sentinel.ErrAlreadyUsed.
func (s *Postgres) Create(ctx context.Context, req *models.TransferRequest) error {
	query := `
		INSERT INTO transfer_requests (` + transferColumns + `)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12, $13, $14, $15, $16, $17)
	`
	_, err := s.execer(ctx).ExecContext(ctx, query,
		uuid.UUID(req.ID), string(req.FamilyID), string(req.FromOfficeID), string(req.ToOfficeID),
		string(req.Status), req.Reason, req.Notes,
		string(req.RequestedBy), nullActor(req.ApprovedBy), nullActor(req.RejectedBy), nullActor(req.CompletedBy),
		req.RequestDate, nullTime(req.ApprovalDate), nullTime(req.RejectionDate), nullTime(req.CompletedDate),
		req.RejectionReason, req.CompletionNotes,
	)
	if err != nil {
		var pqErr *pq.Error
		if errors.As(err, &pqErr) && string(pqErr.Code) == uniqueViolationPqCode {
			switch pqErr.Constraint {
			case pkeyConstraint:
				return fmt.Errorf("transfer %s: %w", req.ID, sentinel.ErrAlreadyUsed)
			case activePerFamilyIndex:
				return fmt.Errorf("family %s has an active transfer: %w", req.FamilyID, sentinel.ErrConflict)
			}
		}
		return fmt.Errorf("create transfer request: %w", err)
	}
	return nil
}

// Get returns the stored row or sentinel.ErrNotFound.
func (s *Postgres) Get(ctx context.Context, transferID id.TransferID) (*models.TransferRequest, error) {
	query := `SELECT ` + transferColumns + ` FROM transfer_requests WHERE id = $1`
	row := s.execer(ctx).QueryRowContext(ctx, query, uuid.UUID(transferID))
	req, err := scanTransfer(row)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, fmt.Errorf("transfer %s: %w", transferID, sentinel.ErrNotFound)
	}
	if err != nil {
		return nil, fmt.Errorf("get transfer request: %w", err)
	}
	return req, nil
}

// CompareAndTransition locks the row, verifies the stored status equals
// expected, applies mutate, and writes the result back. The guard repeats in
// the UPDATE's WHERE clause so a status change between releases of the row
// lock can never be double-applied.
//
// When the context carries a transaction the transition joins it; otherwise a
// local transaction wraps the read-modify-write.
func (s *Postgres) CompareAndTransition(ctx context.Context, transferID id.TransferID, expected models.Status, mutate func(*models.TransferRequest) error) (*models.TransferRequest, error) {
	if tx, ok := txcontext.From(ctx); ok {
		return s.transition(ctx, tx, transferID, expected, mutate)
	}

	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return nil, fmt.Errorf("begin transition: %w", err)
	}
	defer func() {
		_ = tx.Rollback()
	}()

	req, err := s.transition(ctx, tx, transferID, expected, mutate)
	if err != nil {
		return nil, err
	}
	if err := tx.Commit(); err != nil {
		return nil, fmt.Errorf("commit transition: %w", err)
	}
	return req, nil
}

func (s *Postgres) transition(ctx context.Context, tx *sql.Tx, transferID id.TransferID, expected models.Status, mutate func(*models.TransferRequest) error) (*models.TransferRequest, error) {
	query := `SELECT ` + transferColumns + ` FROM transfer_requests WHERE id = $1 FOR UPDATE`
	req, err := scanTransfer(tx.QueryRowContext(ctx, query, uuid.UUID(transferID)))
	if errors.Is(err, sql.ErrNoRows) {
		return nil, fmt.Errorf("transfer %s: %w", transferID, sentinel.ErrNotFound)
	}
	if err != nil {
		return nil, fmt.Errorf("lock transfer request: %w", err)
	}
	if req.Status != expected {
		return nil, fmt.Errorf("transfer %s is %s, expected %s: %w", transferID, req.Status, expected, sentinel.ErrInvalidState)
	}

	if err := mutate(req); err != nil {
		return nil, err
	}

	update := `
		UPDATE transfer_requests
		SET status = $1, notes = $2,
		    approved_by = $3, rejected_by = $4, completed_by = $5,
		    approval_date = $6, rejection_date = $7, completed_date = $8,
		    rejection_reason = $9, completion_notes = $10
		WHERE id = $11 AND status = $12
	`
	res, err := tx.ExecContext(ctx, update,
		string(req.Status), req.Notes,
		nullActor(req.ApprovedBy), nullActor(req.RejectedBy), nullActor(req.CompletedBy),
		nullTime(req.ApprovalDate), nullTime(req.RejectionDate), nullTime(req.CompletedDate),
		req.RejectionReason, req.CompletionNotes,
		uuid.UUID(transferID), string(expected),
	)
	if err != nil {
		return nil, fmt.Errorf("apply transition: %w", err)
	}
	affected, err := res.RowsAffected()
	if err != nil {
		return nil, fmt.Errorf("apply transition: %w", err)
	}
	if affected == 0 {
		return nil, fmt.Errorf("transfer %s changed under us: %w", transferID, sentinel.ErrInvalidState)
	}
	return req, nil
}

// ListForOffice returns requests where the office is origin or destination,
// most recent request first.
func (s *Postgres) ListForOffice(ctx context.Context, officeID id.OfficeID, filter models.ListFilter) ([]*models.TransferRequest, error) {
	query := `
		SELECT ` + transferColumns + `
		FROM transfer_requests
		WHERE (from_office_id = $1 OR to_office_id = $1)
		  AND ($2 = '' OR status = $2)
		ORDER BY request_date DESC
	`
	args := []any{string(officeID), string(filter.Status)}
	if filter.Limit > 0 {
		query += ` LIMIT $3`
		args = append(args, filter.Limit)
	}

	rows, err := s.execer(ctx).QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("list transfer requests: %w", err)
	}
	defer rows.Close()

	var out []*models.TransferRequest
	for rows.Next() {
		req, err := scanTransfer(rows)
		if err != nil {
			return nil, fmt.Errorf("scan transfer request: %w", err)
		}
		out = append(out, req)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("list transfer requests: %w", err)
	}
	return out, nil
}

type rowScanner interface {
	Scan(dest ...any) error
}

func scanTransfer(row rowScanner) (*models.TransferRequest, error) {
	var (
		req                                 models.TransferRequest
		transferID                          uuid.UUID
		familyID, fromOffice, toOffice      string
		status, requestedBy                 string
		approvedBy, rejectedBy, completedBy sql.NullString
		approvalDate, rejectionDate         sql.NullTime
		completedDate                       sql.NullTime
	)
	err := row.Scan(
		&transferID, &familyID, &fromOffice, &toOffice, &status, &req.Reason, &req.Notes,
		&requestedBy, &approvedBy, &rejectedBy, &completedBy,
		&req.RequestDate, &approvalDate, &rejectionDate, &completedDate,
		&req.RejectionReason, &req.CompletionNotes,
	)
	if err != nil {
		return nil, err
	}

	req.ID = id.TransferID(transferID)
	req.FamilyID = id.FamilyID(familyID)
	req.FromOfficeID = id.OfficeID(fromOffice)
	req.ToOfficeID = id.OfficeID(toOffice)
	req.Status = models.Status(status)
	req.RequestedBy = id.ActorID(requestedBy)
	req.ApprovedBy = actorFromNull(approvedBy)
	req.RejectedBy = actorFromNull(rejectedBy)
	req.CompletedBy = actorFromNull(completedBy)
	req.ApprovalDate = timeFromNull(approvalDate)
	req.RejectionDate = timeFromNull(rejectionDate)
	req.CompletedDate = timeFromNull(completedDate)
	return &req, nil
}

func nullActor(actor id.ActorID) sql.NullString {
	if actor == "" {
		return sql.NullString{}
	}
	return sql.NullString{String: string(actor), Valid: true}
}

func actorFromNull(value sql.NullString) id.ActorID {
	if !value.Valid {
		return ""
	}
	return id.ActorID(value.String)
}

func nullTime(value *time.Time) sql.NullTime {
	if value == nil {
		return sql.NullTime{}
	}
	return sql.NullTime{Time: *value, Valid: true}
}

func timeFromNull(value sql.NullTime) *time.Time {
	if !value.Valid {
		return nil
	}
	t := value.Time
	return &t
}
