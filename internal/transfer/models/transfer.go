package models

import (
	"strings"
	"time"

	id "civreg/pkg/domain"
	dErrors "civreg/pkg/domain-errors"
)

// Free-text bounds for operator-entered fields.
const (
	MaxReasonLength = 500
	MaxNotesLength  = 1000
)

// DefaultCancellationReason is recorded when a requester cancels without
// giving a note.
const DefaultCancellationReason = "cancelled by requesting officer"

// TransferRequest is the aggregate root for one inter-office family transfer.
// It is permanent audit history: rows are never physically deleted, and once
// the status is terminal the row is immutable.
//
// Invariants:
//   - ToOfficeID differs from FromOfficeID
//   - Reason is non-empty and at most MaxReasonLength characters
//   - Status transitions follow the edge set in status.go; each transition
//     fires at most once and stamps its actor/date pair exactly once
//   - At most one of ApprovedBy/RejectedBy is ever set
//   - At most one non-terminal request exists per family (enforced by the
//     ledger, not by this type)
type TransferRequest struct {
	ID           id.TransferID `json:"transfer_id"`
	FamilyID     id.FamilyID   `json:"family_id"`
	FromOfficeID id.OfficeID   `json:"from_office_id"`
	ToOfficeID   id.OfficeID   `json:"to_office_id"`
	Status       Status        `json:"status"`
	Reason       string        `json:"reason"`
	Notes        string        `json:"notes,omitempty"`

	RequestedBy id.ActorID `json:"requested_by"`
	ApprovedBy  id.ActorID `json:"approved_by,omitempty"`
	RejectedBy  id.ActorID `json:"rejected_by,omitempty"`
	CompletedBy id.ActorID `json:"completed_by,omitempty"`

	RequestDate   time.Time  `json:"request_date"`
	ApprovalDate  *time.Time `json:"approval_date,omitempty"`
	RejectionDate *time.Time `json:"rejection_date,omitempty"`
	CompletedDate *time.Time `json:"completed_date,omitempty"`

	RejectionReason string `json:"rejection_reason,omitempty"`
	CompletionNotes string `json:"completion_notes,omitempty"`
}

// NewTransferRequest validates inputs and builds a pending request.
func NewTransferRequest(transferID id.TransferID, familyID id.FamilyID, from, to id.OfficeID, requestedBy id.ActorID, reason, notes string, now time.Time) (*TransferRequest, error) {
	reason = strings.TrimSpace(reason)
	notes = strings.TrimSpace(notes)

	if transferID.IsNil() {
		return nil, dErrors.New(dErrors.CodeInvariantViolation, "transfer id is required")
	}
	if familyID == "" {
		return nil, dErrors.New(dErrors.CodeInvalidInput, "family id is required")
	}
	if from == "" || to == "" {
		return nil, dErrors.New(dErrors.CodeInvalidInput, "origin and destination offices are required")
	}
	if from == to {
		return nil, dErrors.New(dErrors.CodeSameOffice, "destination office must differ from the family's current office")
	}
	if reason == "" {
		return nil, dErrors.New(dErrors.CodeInvalidInput, "transfer reason is required")
	}
	if len(reason) > MaxReasonLength {
		return nil, dErrors.New(dErrors.CodeInvalidInput, "transfer reason exceeds maximum length")
	}
	if len(notes) > MaxNotesLength {
		return nil, dErrors.New(dErrors.CodeInvalidInput, "transfer notes exceed maximum length")
	}
	if requestedBy == "" {
		return nil, dErrors.New(dErrors.CodeInvariantViolation, "requesting actor is required")
	}

	return &TransferRequest{
		ID:           transferID,
		FamilyID:     familyID,
		FromOfficeID: from,
		ToOfficeID:   to,
		Status:       StatusPending,
		Reason:       reason,
		Notes:        notes,
		RequestedBy:  requestedBy,
		RequestDate:  now,
	}, nil
}

// IsActive reports whether the request still blocks new transfers for its
// family.
func (t *TransferRequest) IsActive() bool {
	return !t.Status.IsTerminal()
}

// CanApprove checks the pending -> approved edge.
// Use with ApplyApproval in CompareAndTransition callbacks.
func (t *TransferRequest) CanApprove() error {
	if !t.Status.CanTransitionTo(StatusApproved) {
		return dErrors.New(dErrors.CodeInvariantViolation, "only a pending transfer can be approved")
	}
	return nil
}

// ApplyApproval transitions the request to approved, stamping the approving
// actor and date. An optional note is appended to the request notes.
// Call CanApprove first to validate the transition.
func (t *TransferRequest) ApplyApproval(actor id.ActorID, note string, now time.Time) {
	t.Status = StatusApproved
	t.ApprovedBy = actor
	t.ApprovalDate = &now
	t.appendNote(note)
}

// CanReject checks the pending -> rejected edge.
func (t *TransferRequest) CanReject() error {
	if !t.Status.CanTransitionTo(StatusRejected) {
		return dErrors.New(dErrors.CodeInvariantViolation, "only a pending transfer can be rejected")
	}
	return nil
}

// ApplyRejection transitions the request to rejected with the divisional
// officer's reason.
func (t *TransferRequest) ApplyRejection(actor id.ActorID, reason string, now time.Time) {
	t.Status = StatusRejected
	t.RejectedBy = actor
	t.RejectionDate = &now
	t.RejectionReason = reason
}

// CanCancel checks the pending -> cancelled edge. Approved transfers cannot
// be self-cancelled; they go back through the divisional process or complete.
func (t *TransferRequest) CanCancel() error {
	if !t.Status.CanTransitionTo(StatusCancelled) {
		return dErrors.New(dErrors.CodeInvariantViolation, "only a pending transfer can be cancelled")
	}
	return nil
}

// ApplyCancellation transitions the request to cancelled. The cancelling
// requester is recorded in the rejection fields so the audit trail has one
// place to look for who ended a transfer and why.
func (t *TransferRequest) ApplyCancellation(actor id.ActorID, note string, now time.Time) {
	if strings.TrimSpace(note) == "" {
		note = DefaultCancellationReason
	}
	t.Status = StatusCancelled
	t.RejectedBy = actor
	t.RejectionDate = &now
	t.RejectionReason = note
}

// CanComplete checks the approved -> completed edge.
func (t *TransferRequest) CanComplete() error {
	if !t.Status.CanTransitionTo(StatusCompleted) {
		return dErrors.New(dErrors.CodeInvariantViolation, "only an approved transfer can be completed")
	}
	return nil
}

// ApplyCompletion transitions the request to completed, stamping the
// receiving clerk and their verification notes.
func (t *TransferRequest) ApplyCompletion(actor id.ActorID, notes string, now time.Time) {
	t.Status = StatusCompleted
	t.CompletedBy = actor
	t.CompletedDate = &now
	t.CompletionNotes = strings.TrimSpace(notes)
}

// Clone returns a deep copy so in-memory stores never hand out aliased rows.
func (t *TransferRequest) Clone() *TransferRequest {
	clone := *t
	clone.ApprovalDate = cloneTime(t.ApprovalDate)
	clone.RejectionDate = cloneTime(t.RejectionDate)
	clone.CompletedDate = cloneTime(t.CompletedDate)
	return &clone
}

func (t *TransferRequest) appendNote(note string) {
	note = strings.TrimSpace(note)
	if note == "" {
		return
	}
	if t.Notes == "" {
		t.Notes = note
		return
	}
	t.Notes = t.Notes + "\n" + note
}

func cloneTime(t *time.Time) *time.Time {
	if t == nil {
		return nil
	}
	c := *t
	return &c
}
