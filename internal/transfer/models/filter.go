package models

// ListFilter narrows office-scoped ledger queries. The zero value matches
// every request touching the office.
type ListFilter struct {
	// Status keeps only rows in the given state when non-empty.
	Status Status
	// Limit caps the number of rows returned; zero means no cap.
	Limit int
}
