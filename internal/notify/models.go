package notify

import (
	"time"

	id "civreg/pkg/domain"
)

// Kind names a workflow event emitted to the notification/audit sink.
type Kind string

const (
	KindTransferRequested Kind = "transfer_requested"
	KindTransferApproved  Kind = "transfer_approved"
	KindTransferRejected  Kind = "transfer_rejected"
	KindTransferCancelled Kind = "transfer_cancelled"
	KindTransferCompleted Kind = "transfer_completed"
)

// Event is emitted from the workflow engine after a committed transition.
// Keep it transport-agnostic so sinks (Kafka, log, test capture) can fan out.
// Delivery is best effort; the ledger is the source of truth.
type Event struct {
	Kind         Kind          `json:"kind"`
	TransferID   id.TransferID `json:"transfer_id"`
	FamilyID     id.FamilyID   `json:"family_id"`
	FromOfficeID id.OfficeID   `json:"from_office_id"`
	ToOfficeID   id.OfficeID   `json:"to_office_id"`
	Actor        id.ActorID    `json:"actor"`
	Note         string        `json:"note,omitempty"`
	RequestID    string        `json:"request_id,omitempty"`
	Timestamp    time.Time     `json:"timestamp"`
}
