package catalog

import "github.com/starford/modelstore/internal/models"

// SchemaIndex defines the persistence operations the loader needs.
// Consumers should depend on this interface rather than the concrete *DB type.
type SchemaIndex interface {
	ReplaceSource(path, checksum string, decls []models.Declaration) error
	DeleteSource(path string) error
	SourceChecksums() (map[string]string, error)
	ModelNames() ([]string, error)
	Close() error
}

// Verify *DB satisfies SchemaIndex at compile time.
var _ SchemaIndex = (*DB)(nil)
