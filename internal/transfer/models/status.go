package models

// Status is the closed set of transfer-request states. Illegal values are
// unrepresentable outside this package's edge set; construct via
// ParseStatus at trust boundaries.
type Status string

const (
	StatusPending   Status = "pending"
	StatusApproved  Status = "approved"
	StatusRejected  Status = "rejected"
	StatusCompleted Status = "completed"
	StatusCancelled Status = "cancelled"
)

// statusEdges is the single source of truth for legal transitions:
//
//	pending  -> approved | rejected | cancelled
//	approved -> completed
//
// Terminal states have no outgoing edges.
var statusEdges = map[Status]map[Status]bool{
	StatusPending: {
		StatusApproved:  true,
		StatusRejected:  true,
		StatusCancelled: true,
	},
	StatusApproved: {
		StatusCompleted: true,
	},
	StatusRejected:  {},
	StatusCompleted: {},
	StatusCancelled: {},
}

// IsValid checks if the status is one of the supported enum values.
func (s Status) IsValid() bool {
	_, ok := statusEdges[s]
	return ok
}

// IsTerminal reports whether the status permits no further transition.
// Only pending and approved requests are still in flight.
func (s Status) IsTerminal() bool {
	edges, ok := statusEdges[s]
	return ok && len(edges) == 0
}

// CanTransitionTo reports whether the state machine has an edge from s to
// target.
func (s Status) CanTransitionTo(target Status) bool {
	return statusEdges[s][target]
}

// String returns the string representation of the status.
func (s Status) String() string {
	return string(s)
}

// ParseStatus constructs a Status from external input (query filters, stored
// rows). Returns false for anything outside the enum.
func ParseStatus(s string) (Status, bool) {
	st := Status(s)
	return st, st.IsValid()
}
