package schema_test

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/TheMichaelB/casevault/internal/engine"
	"github.com/TheMichaelB/casevault/internal/engine/sqlite"
	"github.com/TheMichaelB/casevault/internal/events"
	"github.com/TheMichaelB/casevault/internal/schema"
)

func newEngine(t *testing.T) engine.Engine {
	t.Helper()
	ctx := context.Background()

	rt, err := sqlite.Loader(events.Nop())(ctx)
	require.NoError(t, err)
	e, err := rt.New(ctx)
	require.NoError(t, err)
	t.Cleanup(func() { e.Close() })
	return e
}

func TestBootstrapTables(t *testing.T) {
	tests := []struct {
		name      string
		bootstrap schema.Bootstrap
		want      []string
	}{
		{
			name:      "core",
			bootstrap: schema.Core,
			want: []string{
				"beobachtung", "historie", "indikator", "kontakt", "plan", "rilz_fach",
				"status_flag", "student", "student_status", "teilziel", "ziel",
			},
		},
		{
			name:      "vault",
			bootstrap: schema.Vault,
			want:      []string{"dokument", "foto"},
		},
		{
			name:      "none",
			bootstrap: schema.None,
			want:      nil,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			ctx := context.Background()
			e := newEngine(t)

			require.NoError(t, tt.bootstrap(ctx, e))

			tables, err := schema.Tables(ctx, e)
			require.NoError(t, err)
			assert.Equal(t, tt.want, tables)
		})
	}
}

func TestBootstrapUserVersion(t *testing.T) {
	ctx := context.Background()

	for name, bootstrap := range map[string]schema.Bootstrap{"core": schema.Core, "vault": schema.Vault} {
		t.Run(name, func(t *testing.T) {
			e := newEngine(t)
			require.NoError(t, bootstrap(ctx, e))

			v, err := schema.UserVersion(ctx, e)
			require.NoError(t, err)
			assert.Equal(t, schema.Version, v)
		})
	}
}

func TestBootstrapIsRepeatable(t *testing.T) {
	ctx := context.Background()
	e := newEngine(t)

	require.NoError(t, schema.Core(ctx, e))
	require.NoError(t, schema.Core(ctx, e))
}

func TestCoreConstraints(t *testing.T) {
	ctx := context.Background()
	e := newEngine(t)
	require.NoError(t, schema.Core(ctx, e))

	require.NoError(t, e.Exec(ctx,
		`INSERT INTO student (id, vorname, name, created_at) VALUES ('s1', 'Mia', 'Keller', 0)`))

	t.Run("foreign key", func(t *testing.T) {
		err := e.Exec(ctx, `INSERT INTO kontakt (id, student_id, rolle, name) VALUES ('k1', 'missing', 'Mutter', 'Anna')`)
		assert.Error(t, err)
	})

	t.Run("plan status", func(t *testing.T) {
		err := e.Exec(ctx, `INSERT INTO plan (id, student_id, titel, status, created_at) VALUES ('p1', 's1', 'Lesen', 'unbekannt', 0)`)
		assert.Error(t, err)

		err = e.Exec(ctx, `INSERT INTO plan (id, student_id, titel, status, created_at) VALUES ('p1', 's1', 'Lesen', ?, 0)`, schema.StatusActive)
		assert.NoError(t, err)
	})

	t.Run("observation visibility", func(t *testing.T) {
		require.NoError(t, e.Exec(ctx,
			`INSERT INTO ziel (id, plan_id, titel, status, created_at) VALUES ('z1', 'p1', 'Silben', ?, 0)`, schema.StatusDraft))

		err := e.Exec(ctx, `INSERT INTO beobachtung (id, ziel_id, text, sichtbarkeit, created_at) VALUES ('b1', 'z1', 'x', 'alle', 0)`)
		assert.Error(t, err)

		err = e.Exec(ctx, `INSERT INTO beobachtung (id, ziel_id, text, sichtbarkeit, created_at) VALUES ('b1', 'z1', 'x', ?, 0)`, schema.VisibilityTeam)
		assert.NoError(t, err)
	})
}
