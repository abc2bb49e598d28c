package directory

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	id "civreg/pkg/domain"
	"civreg/pkg/platform/sentinel"
)

// Postgres resolves offices from the reference tables.
type Postgres struct {
	db *sql.DB
}

func NewPostgres(db *sql.DB) *Postgres {
	return &Postgres{db: db}
}

func (s *Postgres) Resolve(ctx context.Context, officeID id.OfficeID) (Location, error) {
	query := `
		SELECT o.id, o.name,
		       dv.id, dv.name,
		       dt.id, dt.name,
		       p.id, p.name
		FROM offices o
		JOIN divisions dv ON dv.id = o.division_id
		JOIN districts dt ON dt.id = dv.district_id
		JOIN provinces p  ON p.id = dt.province_id
		WHERE o.id = $1
	`
	var loc Location
	var office, division, district, province string
	err := s.db.QueryRowContext(ctx, query, string(officeID)).Scan(
		&office, &loc.Office.Name,
		&division, &loc.Division.Name,
		&district, &loc.District.Name,
		&province, &loc.Province.Name,
	)
	if errors.Is(err, sql.ErrNoRows) {
		return Location{}, fmt.Errorf("office %s: %w", officeID, sentinel.ErrNotFound)
	}
	if err != nil {
		return Location{}, fmt.Errorf("resolve office: %w", err)
	}

	loc.Office.ID = id.OfficeID(office)
	loc.Division.ID = id.DivisionID(division)
	loc.District.ID = id.DistrictID(district)
	loc.Province.ID = id.ProvinceID(province)
	return loc, nil
}
