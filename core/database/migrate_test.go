package database

import (
	"testing"
	"testing/fstest"
)

func TestListMigrationFiles(t *testing.T) {
	fsys := fstest.MapFS{
		"000002_campaigns.up.sql":   {Data: []byte("--")},
		"000001_users.up.sql":       {Data: []byte("--")},
		"000001_users.down.sql":     {Data: []byte("--")},
		"000003_invitations.up.sql": {Data: []byte("--")},
		"embed.go":                  {Data: []byte("package migrations")},
	}
	files := listMigrationFiles(fsys)
	want := []string{"000001_users.up.sql", "000002_campaigns.up.sql", "000003_invitations.up.sql"}
	if len(files) != len(want) {
		t.Fatalf("files = %v, want %v", files, want)
	}
	for i := range want {
		if files[i] != want[i] {
			t.Fatalf("files[%d] = %s, want %s", i, files[i], want[i])
		}
	}

	if n := countApplied(files, 1, 3); n != 2 {
		t.Fatalf("countApplied(1,3) = %d, want 2", n)
	}
	if n := countApplied(files, 3, 3); n != 0 {
		t.Fatalf("countApplied(3,3) = %d, want 0", n)
	}
	if got := selectApplied(files, 0, 1); len(got) != 1 || got[0] != "000001_users.up.sql" {
		t.Fatalf("selectApplied(0,1) = %v", got)
	}
}
