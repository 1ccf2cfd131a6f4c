package postgres

import (
	"strings"
	"testing"
	"testing/fstest"

	"github.com/stretchr/testify/require"
)

func TestEmbeddedMigrations(t *testing.T) {
	t.Parallel()

	migrations, err := loadMigrationsFromFS(migrationsFS)
	require.NoError(t, err)

	names := make([]string, 0, len(migrations))
	for i, m := range migrations {
		require.Equal(t, int64(i+1), m.Version, "versions must be contiguous")
		names = append(names, m.Name)
	}
	require.Equal(t, []string{"marketplace_core", "outbox", "idempotency_keys", "promotions"}, names)

	last := migrations[len(migrations)-1]
	require.Contains(t, last.UpSQL, "CREATE TABLE IF NOT EXISTS promotions")
	require.Contains(t, last.DownSQL, "DROP TABLE IF EXISTS promotions")
}

func TestLoadMigrationsFromFS_Errors(t *testing.T) {
	t.Parallel()

	const (
		up   = "CREATE TABLE promotions (id TEXT PRIMARY KEY);"
		down = "DROP TABLE IF EXISTS promotions;"
	)

	cases := []struct {
		name    string
		files   fstest.MapFS
		wantErr string
	}{
		{
			name:    "no files",
			files:   fstest.MapFS{},
			wantErr: "no migration files",
		},
		{
			name: "missing down",
			files: fstest.MapFS{
				"sql/migrations/004_promotions.up.sql": {Data: []byte(up)},
			},
			wantErr: "both up and down",
		},
		{
			name: "bad file name",
			files: fstest.MapFS{
				"sql/migrations/promotions.sql": {Data: []byte(up)},
			},
			wantErr: "invalid migration file name",
		},
		{
			name: "blank body",
			files: fstest.MapFS{
				"sql/migrations/004_promotions.up.sql":   {Data: []byte(" \n\t")},
				"sql/migrations/004_promotions.down.sql": {Data: []byte(down)},
			},
			wantErr: "empty",
		},
		{
			name: "name differs between directions",
			files: fstest.MapFS{
				"sql/migrations/004_promotions.up.sql": {Data: []byte(up)},
				"sql/migrations/004_promos.down.sql":   {Data: []byte(down)},
			},
			wantErr: "name mismatch",
		},
	}

	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			t.Parallel()

			_, err := loadMigrationsFromFS(tc.files)
			require.Error(t, err)
			require.True(t, strings.Contains(err.Error(), tc.wantErr), err.Error())
		})
	}
}

func TestLoadMigrationsFromFS_SortsByVersion(t *testing.T) {
	t.Parallel()

	fsys := fstest.MapFS{
		"sql/migrations/010_outbox.up.sql":             {Data: []byte("CREATE TABLE outbox_messages (id TEXT);")},
		"sql/migrations/010_outbox.down.sql":           {Data: []byte("DROP TABLE outbox_messages;")},
		"sql/migrations/002_marketplace_core.up.sql":   {Data: []byte("CREATE TABLE orders (id TEXT);")},
		"sql/migrations/002_marketplace_core.down.sql": {Data: []byte("DROP TABLE orders;")},
	}

	migrations, err := loadMigrationsFromFS(fsys)
	require.NoError(t, err)
	require.Len(t, migrations, 2)
	require.Equal(t, int64(2), migrations[0].Version)
	require.Equal(t, int64(10), migrations[1].Version)
	require.Equal(t, "DROP TABLE outbox_messages;", migrations[1].DownSQL)
}
