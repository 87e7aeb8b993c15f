package infrastructure

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	entschema "lawwarden.io/warden/ent/schema"
	"lawwarden.io/warden/internal/repository/sqlc"
	"lawwarden.io/warden/internal/testutil"
)

func TestSchemaDrift(t *testing.T) {
	tables := []entschema.Table{
		{Name: "patrols", Columns: []string{"id", "phase", "route_id"}},
		{Name: "laws", Columns: []string{"id", "name"}},
	}

	tests := []struct {
		name string
		live map[string]map[string]bool
		want []string
	}{
		{
			name: "in step",
			live: map[string]map[string]bool{
				"patrols": {"id": true, "phase": true, "route_id": true},
				"laws":    {"id": true, "name": true, "legacy": true},
			},
		},
		{
			name: "missing table and columns",
			live: map[string]map[string]bool{
				"patrols": {"id": true},
			},
			want: []string{
				"table patrols lacks phase, route_id",
				"table laws is missing",
			},
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, schemaDrift(tt.live, tables))
		})
	}
}

func TestVerifySchema(t *testing.T) {
	ctx := context.Background()

	t.Run("applied schema matches the data model", func(t *testing.T) {
		db := &DatabaseClients{Pool: testutil.OpenPGXPool(t, "infra_verify", sqlc.Schema)}
		require.NoError(t, db.VerifySchema(ctx))
	})

	t.Run("empty database is rejected", func(t *testing.T) {
		db := &DatabaseClients{Pool: testutil.OpenPGXPool(t, "infra_verify_empty")}
		err := db.VerifySchema(ctx)
		require.Error(t, err)
		assert.Contains(t, err.Error(), "table patrols is missing")
	})
}
