package models

import (
	"time"

	id "civreg/pkg/domain"
)

// FamilyRecord is the workflow engine's view of a family registration. The
// full record (members, land, documents) lives with the registry CRUD system;
// the engine only reads and writes the fields the transfer workflow owns.
//
// OfficeOfRecord has a single writer: CompleteTransfer, inside the same
// transaction as the ledger's approved -> completed transition.
type FamilyRecord struct {
	ID             id.FamilyID `json:"family_id"`
	OfficeOfRecord id.OfficeID `json:"office_of_record"`
	// TransferPending mirrors the existence of a non-terminal transfer so
	// registry screens can flag the family without joining the ledger.
	TransferPending bool `json:"transfer_pending"`
	// Transferred marks a family that has moved offices at least once.
	Transferred bool      `json:"transferred"`
	UpdatedAt   time.Time `json:"updated_at"`
}
