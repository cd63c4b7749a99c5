// Package testutil provides shared test helpers for setting up schema
// directories and catalog databases.
package testutil

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/starford/modelstore/internal/catalog"
	"github.com/starford/modelstore/internal/storage"
)

// PersonSchema declares a person with a defaulted age and a pets relationship.
const PersonSchema = `model: person
attributes:
  name: {type: string}
  age: {type: number, default: 0}
relationships:
  pets: {kind: hasMany, type: pet}
`

// TestDB creates a temporary SQLite catalog that is automatically cleaned up.
func TestDB(t *testing.T) *catalog.DB {
	t.Helper()
	dbFile, err := os.CreateTemp("", "modelstore-test-*.db")
	if err != nil {
		t.Fatal(err)
	}
	dbFile.Close()
	t.Cleanup(func() { os.Remove(dbFile.Name()) })

	db, err := catalog.Open(dbFile.Name())
	if err != nil {
		t.Fatal(err)
	}
	t.Cleanup(func() { db.Close() })
	return db
}

// TestSchemaDir creates a temporary schema directory holding files (relative
// path to content) and returns it with a storage.Provider over it.
func TestSchemaDir(t *testing.T, files map[string]string) (string, *storage.FS) {
	t.Helper()
	dir := t.TempDir()
	for rel, content := range files {
		p := filepath.Join(dir, filepath.FromSlash(rel))
		if err := os.MkdirAll(filepath.Dir(p), 0o755); err != nil {
			t.Fatal(err)
		}
		if err := os.WriteFile(p, []byte(content), 0o644); err != nil {
			t.Fatal(err)
		}
	}
	src, err := storage.NewFS(dir)
	if err != nil {
		t.Fatal(err)
	}
	return dir, src
}
