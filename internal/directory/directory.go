// Package directory resolves administrative offices to their place in the
// province -> district -> division -> office hierarchy. Reference data is
// read-only from the workflow's point of view and safe to cache.
package directory

import (
	"context"

	id "civreg/pkg/domain"
)

// Resolver looks up an office's hierarchical location. Implementations return
// sentinel.ErrNotFound for unknown offices.
type Resolver interface {
	Resolve(ctx context.Context, officeID id.OfficeID) (Location, error)
}

// Location places one office in the administrative hierarchy.
type Location struct {
	Office   Office   `json:"office"`
	Division Division `json:"division"`
	District District `json:"district"`
	Province Province `json:"province"`
}

type Office struct {
	ID   id.OfficeID `json:"id"`
	Name string      `json:"name"`
}

type Division struct {
	ID   id.DivisionID `json:"id"`
	Name string        `json:"name"`
}

type District struct {
	ID   id.DistrictID `json:"id"`
	Name string        `json:"name"`
}

type Province struct {
	ID   id.ProvinceID `json:"id"`
	Name string        `json:"name"`
}
