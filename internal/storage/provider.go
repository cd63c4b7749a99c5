// Package storage defines the schema directory abstraction.
package storage

import "github.com/starford/modelstore/internal/models"

// Provider is the interface for schema source file operations. Paths are
// relative to the schema root.
type Provider interface {
	// List returns metadata for every schema source under dir.
	List(dir string) ([]models.SourceMetadata, error)
	Read(path string) ([]byte, error)
	// Write atomically replaces the file at path.
	Write(path string, content []byte) error
	Delete(path string) error
}
