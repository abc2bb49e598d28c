package handler

import (
	"strings"

	"civreg/internal/transfer/models"
	id "civreg/pkg/domain"
	dErrors "civreg/pkg/domain-errors"
)

// CreateTransferRequest is the HTTP request body for POST /transfers.
type CreateTransferRequest struct {
	FamilyID   string `json:"family_id"`
	ToOfficeID string `json:"to_office_id"`
	Reason     string `json:"reason"`
	Notes      string `json:"notes,omitempty"`

	// Parsed values (populated by Validate)
	parsedFamilyID id.FamilyID
	parsedToOffice id.OfficeID
}

// Validate validates and parses the request.
func (r *CreateTransferRequest) Validate() error {
	if r == nil {
		return dErrors.New(dErrors.CodeInvalidInput, "request body is required")
	}

	familyID, err := id.ParseFamilyID(r.FamilyID)
	if err != nil {
		return err
	}
	r.parsedFamilyID = familyID

	toOffice, err := id.ParseOfficeID(r.ToOfficeID)
	if err != nil {
		return err
	}
	r.parsedToOffice = toOffice

	r.Reason = strings.TrimSpace(r.Reason)
	if r.Reason == "" {
		return dErrors.New(dErrors.CodeInvalidInput, "reason is required")
	}
	if len(r.Reason) > models.MaxReasonLength {
		return dErrors.New(dErrors.CodeInvalidInput, "reason exceeds maximum length")
	}
	if len(r.Notes) > models.MaxNotesLength {
		return dErrors.New(dErrors.CodeInvalidInput, "notes exceed maximum length")
	}

	return nil
}

// ParsedFamilyID returns the validated family id.
func (r *CreateTransferRequest) ParsedFamilyID() id.FamilyID { return r.parsedFamilyID }

// ParsedToOffice returns the validated destination office.
func (r *CreateTransferRequest) ParsedToOffice() id.OfficeID { return r.parsedToOffice }

// ActionRequest is the body for approve, cancel, and complete. The note is
// optional for all three.
type ActionRequest struct {
	Note string `json:"note,omitempty"`
}

func (r *ActionRequest) Validate() error {
	if r == nil {
		return nil
	}
	if len(r.Note) > models.MaxNotesLength {
		return dErrors.New(dErrors.CodeInvalidInput, "note exceeds maximum length")
	}
	return nil
}

// RejectRequest is the body for POST /transfers/{transferID}/reject. The
// reason is mandatory; the service enforces it again.
type RejectRequest struct {
	Reason string `json:"reason"`
}

func (r *RejectRequest) Validate() error {
	if r == nil {
		return dErrors.New(dErrors.CodeInvalidInput, "request body is required")
	}
	r.Reason = strings.TrimSpace(r.Reason)
	if r.Reason == "" {
		return dErrors.New(dErrors.CodeInvalidInput, "reason is required")
	}
	if len(r.Reason) > models.MaxReasonLength {
		return dErrors.New(dErrors.CodeInvalidInput, "reason exceeds maximum length")
	}
	return nil
}
