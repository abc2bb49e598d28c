// Package domain defines the typed identifiers and role values shared across
// the registry. Registry-assigned identifiers (families, offices, actors) are
// opaque strings issued by the national numbering scheme; transfer identifiers
// are UUIDs generated at creation time.
package domain

import (
	"strings"

	"github.com/google/uuid"

	dErrors "civreg/pkg/domain-errors"
)

// TransferID identifies one row in the transfer ledger.
type TransferID uuid.UUID

// NewTransferID generates a fresh transfer identifier.
func NewTransferID() TransferID {
	return TransferID(uuid.New())
}

// ParseTransferID constructs a TransferID from external input.
//
// Errors: returns CodeInvalidInput when the value is empty, malformed, or the
// nil UUID; no other errors are expected.
func ParseTransferID(s string) (TransferID, error) {
	if s == "" {
		return TransferID{}, dErrors.New(dErrors.CodeInvalidInput, "transfer id cannot be empty")
	}
	u, err := uuid.Parse(s)
	if err != nil {
		return TransferID{}, dErrors.New(dErrors.CodeInvalidInput, "transfer id must be a valid UUID")
	}
	if u == uuid.Nil {
		return TransferID{}, dErrors.New(dErrors.CodeInvalidInput, "transfer id cannot be the nil UUID")
	}
	return TransferID(u), nil
}

func (t TransferID) String() string {
	return uuid.UUID(t).String()
}

// IsNil returns true when the identifier is the zero value.
func (t TransferID) IsNil() bool {
	return uuid.UUID(t) == uuid.Nil
}

// MarshalText renders the canonical UUID form so JSON carries a string, not
// a byte array.
func (t TransferID) MarshalText() ([]byte, error) {
	return []byte(t.String()), nil
}

func (t *TransferID) UnmarshalText(b []byte) error {
	u, err := uuid.Parse(string(b))
	if err != nil {
		return err
	}
	*t = TransferID(u)
	return nil
}

// FamilyID is the registry number of a family record (e.g. "F001").
type FamilyID string

// OfficeID identifies an administrative office (e.g. "O-A").
type OfficeID string

// DivisionID identifies the administrative tier above an office.
type DivisionID string

// DistrictID identifies the tier above a division.
type DistrictID string

// ProvinceID identifies the top administrative tier.
type ProvinceID string

// ActorID is the authenticated identity invoking an operation.
type ActorID string

// ParseFamilyID validates a family registry number from external input.
func ParseFamilyID(s string) (FamilyID, error) {
	s = strings.TrimSpace(s)
	if s == "" {
		return "", dErrors.New(dErrors.CodeInvalidInput, "family id cannot be empty")
	}
	return FamilyID(s), nil
}

// ParseOfficeID validates an office identifier from external input.
func ParseOfficeID(s string) (OfficeID, error) {
	s = strings.TrimSpace(s)
	if s == "" {
		return "", dErrors.New(dErrors.CodeInvalidInput, "office id cannot be empty")
	}
	return OfficeID(s), nil
}

func (f FamilyID) String() string   { return string(f) }
func (o OfficeID) String() string   { return string(o) }
func (d DivisionID) String() string { return string(d) }
func (a ActorID) String() string    { return string(a) }
