package postgres

import (
	"strings"
	"testing"
	"testing/fstest"
)

func TestLoadMigrationsFromFS_SortedByVersion(t *testing.T) {
	t.Parallel()

	fsys := fstest.MapFS{
		"sql/migrations/0002_outbox.up.sql": {
			Data: []byte("CREATE TABLE outbox_demo (id TEXT);"),
		},
		"sql/migrations/0002_outbox.down.sql": {
			Data: []byte("DROP TABLE IF EXISTS outbox_demo;"),
		},
		"sql/migrations/0001_orders.up.sql": {
			Data: []byte("CREATE TABLE orders_demo (id TEXT);"),
		},
		"sql/migrations/0001_orders.down.sql": {
			Data: []byte("DROP TABLE IF EXISTS orders_demo;"),
		},
	}

	migrations, err := loadMigrationsFromFS(fsys)
	if err != nil {
		t.Fatalf("loadMigrationsFromFS failed: %v", err)
	}
	if len(migrations) != 2 {
		t.Fatalf("expected 2 migrations, got %d", len(migrations))
	}
	if migrations[0].Version != 1 || migrations[0].Name != "orders" {
		t.Fatalf("migrations must be sorted by version: %+v", migrations[0])
	}
	if migrations[1].Version != 2 || migrations[1].Name != "outbox" {
		t.Fatalf("unexpected second migration: %+v", migrations[1])
	}
}

func TestLoadMigrationsFromFS_Rejections(t *testing.T) {
	t.Parallel()

	cases := []struct {
		name    string
		fsys    fstest.MapFS
		wantErr string
	}{
		{
			name: "missing down pair",
			fsys: fstest.MapFS{
				"sql/migrations/0001_orders.up.sql": {Data: []byte("CREATE TABLE t (id TEXT);")},
			},
			wantErr: "both up and down",
		},
		{
			name: "invalid file name",
			fsys: fstest.MapFS{
				"sql/migrations/not_a_migration.sql": {Data: []byte("SELECT 1;")},
			},
			wantErr: "invalid migration file name",
		},
		{
			name: "empty body",
			fsys: fstest.MapFS{
				"sql/migrations/0001_orders.up.sql":   {Data: []byte("  \n")},
				"sql/migrations/0001_orders.down.sql": {Data: []byte("DROP TABLE IF EXISTS t;")},
			},
			wantErr: "migration file is empty",
		},
		{
			name: "name mismatch within version",
			fsys: fstest.MapFS{
				"sql/migrations/0001_orders.up.sql":   {Data: []byte("CREATE TABLE t (id TEXT);")},
				"sql/migrations/0001_listings.down.sql": {Data: []byte("DROP TABLE IF EXISTS t;")},
			},
			wantErr: "migration name mismatch",
		},
	}

	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			_, err := loadMigrationsFromFS(tc.fsys)
			if err == nil {
				t.Fatal("expected an error")
			}
			if !strings.Contains(err.Error(), tc.wantErr) {
				t.Fatalf("error %q does not mention %q", err, tc.wantErr)
			}
		})
	}
}
