package catalog

import (
	"github.com/starford/modelstore/internal/models"
	"github.com/starford/modelstore/internal/parser"
)

// ListSources returns metadata for every schema source on disk.
func (l *Loader) ListSources() ([]models.SourceMetadata, error) {
	return l.src.List("")
}

// WriteSource validates content, writes it to path and indexes it. Invalid
// content is rejected before anything is written.
func (l *Loader) WriteSource(path string, content []byte) ([]string, error) {
	if _, err := parser.Parse(path, content); err != nil {
		return nil, err
	}
	if err := l.src.Write(path, content); err != nil {
		return nil, err
	}
	return l.IndexSource(path, content)
}

// DeleteSourceFile removes the source file at path and drops its models.
func (l *Loader) DeleteSourceFile(path string) error {
	if err := l.src.Delete(path); err != nil {
		return err
	}
	return l.RemoveSource(path)
}
