//go:build integration

package directory_test

import (
	"context"
	"testing"

	"github.com/stretchr/testify/require"

	"civreg/internal/directory"
	id "civreg/pkg/domain"
	"civreg/pkg/platform/sentinel"
	"civreg/pkg/testutil/containers"
)

func TestPostgresResolve(t *testing.T) {
	if testing.Short() {
		t.Skip("skipping integration test in short mode")
	}

	pg := containers.NewPostgresContainer(t)
	ctx := context.Background()

	stmts := []string{
		`INSERT INTO provinces (id, name) VALUES ('P-1', 'Western')`,
		`INSERT INTO districts (id, name, province_id) VALUES ('DT-1', 'Colombo', 'P-1')`,
		`INSERT INTO divisions (id, name, district_id) VALUES ('D-1', 'Colombo Central', 'DT-1')`,
		`INSERT INTO offices (id, name, division_id) VALUES ('O-A', 'Fort Office', 'D-1')`,
	}
	for _, stmt := range stmts {
		_, err := pg.DB.ExecContext(ctx, stmt)
		require.NoError(t, err)
	}

	resolver := directory.NewPostgres(pg.DB)

	t.Run("resolves the full hierarchy", func(t *testing.T) {
		loc, err := resolver.Resolve(ctx, "O-A")
		require.NoError(t, err)
		require.Equal(t, id.OfficeID("O-A"), loc.Office.ID)
		require.Equal(t, "Fort Office", loc.Office.Name)
		require.Equal(t, id.DivisionID("D-1"), loc.Division.ID)
		require.Equal(t, id.DistrictID("DT-1"), loc.District.ID)
		require.Equal(t, id.ProvinceID("P-1"), loc.Province.ID)
	})

	t.Run("returns ErrNotFound for an unknown office", func(t *testing.T) {
		_, err := resolver.Resolve(ctx, "O-ZZ")
		require.ErrorIs(t, err, sentinel.ErrNotFound)
	})
}
