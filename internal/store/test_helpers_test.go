package store

import (
	"context"
	"path/filepath"
	"testing"

	"github.com/roach88/criteria/internal/ir"
	"github.com/roach88/criteria/internal/testutil"
)

// createTestStore creates a file-backed store with deterministic IDs and
// seq values.
func createTestStore(t *testing.T) *Store {
	t.Helper()
	path := filepath.Join(t.TempDir(), "test.db")
	s, err := Open(path,
		WithIDGenerator(testutil.NewSequentialIDGenerator("q")),
		WithClock(testutil.NewClock()))
	if err != nil {
		t.Fatalf("Open() failed: %v", err)
	}
	t.Cleanup(func() { s.Close() })
	return s
}

func userSchema() ir.SchemaSpec {
	return ir.SchemaSpec{
		Name:  "User",
		Table: "users",
		Fields: []ir.FieldSpec{
			{Name: "active", Column: "active", Type: "bool"},
			{Name: "age", Column: "age", Type: "int"},
			{Name: "id", Column: "id", Type: "int", Key: true},
			{Name: "status", Column: "status", Type: "string"},
		},
	}
}

// seedUsers creates the users table with three rows.
func seedUsers(t *testing.T, s *Store) {
	t.Helper()
	rows := map[string][]ir.IRObject{
		"User": {
			{"id": ir.IRInt(1), "status": ir.IRString("active"), "age": ir.IRInt(30), "active": ir.IRBool(true)},
			{"id": ir.IRInt(2), "status": ir.IRString("active"), "age": ir.IRInt(17), "active": ir.IRBool(true)},
			{"id": ir.IRInt(3), "status": ir.IRString("banned"), "active": ir.IRBool(false)},
		},
	}
	if err := s.Load(context.Background(), []ir.SchemaSpec{userSchema()}, rows); err != nil {
		t.Fatalf("Load() failed: %v", err)
	}
}
