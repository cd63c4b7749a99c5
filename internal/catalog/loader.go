package catalog

import (
	"fmt"
	"log/slog"

	"github.com/starford/modelstore/internal/checksum"
	"github.com/starford/modelstore/internal/models"
	"github.com/starford/modelstore/internal/parser"
	"github.com/starford/modelstore/internal/storage"
)

// Registrar receives the declarations of each schema source. It is
// implemented by *registry.Registry.
type Registrar interface {
	RegisterDeclarations(source string, decls []models.Declaration) []string
	RemoveSource(source string) []string
}

// Loader keeps the catalog and the factory registry in step with the schema
// directory.
type Loader struct {
	db       SchemaIndex
	src      storage.Provider
	registry Registrar
	logger   *slog.Logger
}

// NewLoader creates a Loader. registry may be nil when only the catalog is kept.
func NewLoader(db SchemaIndex, src storage.Provider, registry Registrar, logger *slog.Logger) *Loader {
	if logger == nil {
		logger = slog.Default()
	}
	return &Loader{db: db, src: src, registry: registry, logger: logger}
}

// IndexSource parses data as the source at path, stores it and registers
// its models. It returns the declared model names.
func (l *Loader) IndexSource(path string, data []byte) ([]string, error) {
	decls, err := parser.Parse(path, data)
	if err != nil {
		return nil, err
	}
	if err := l.db.ReplaceSource(path, checksum.Sum(data), decls); err != nil {
		return nil, err
	}
	return l.register(path, decls), nil
}

func (l *Loader) register(path string, decls []models.Declaration) []string {
	if l.registry == nil {
		names := make([]string, 0, len(decls))
		for _, d := range decls {
			names = append(names, d.Name)
		}
		return names
	}
	return l.registry.RegisterDeclarations(path, decls)
}

// RemoveSource drops the source at path from the catalog and the registry.
func (l *Loader) RemoveSource(path string) error {
	if err := l.db.DeleteSource(path); err != nil {
		return err
	}
	if l.registry != nil {
		l.registry.RemoveSource(path)
	}
	return nil
}

// Sync walks the schema directory and brings the catalog up to date:
//   - every source is parsed and registered
//   - new/changed sources are rewritten in the catalog
//   - sources removed from disk are deleted from the catalog
func (l *Loader) Sync() error {
	metas, err := l.src.List("")
	if err != nil {
		return err
	}

	checksums, err := l.db.SourceChecksums()
	if err != nil {
		return err
	}

	disk := make(map[string]struct{}, len(metas))
	for _, m := range metas {
		disk[m.Path] = struct{}{}

		data, err := l.src.Read(m.Path)
		if err != nil {
			l.logger.Warn("sync: read failed", slog.String("path", m.Path), slog.String("error", err.Error()))
			continue
		}
		decls, err := parser.Parse(m.Path, data)
		if err != nil {
			l.logger.Warn("sync: parse failed", slog.String("path", m.Path), slog.String("error", err.Error()))
			continue
		}
		if !checksum.Verify(data, checksums[m.Path]) {
			if err := l.db.ReplaceSource(m.Path, checksum.Sum(data), decls); err != nil {
				l.logger.Warn("sync: index failed", slog.String("path", m.Path), slog.String("error", err.Error()))
				continue
			}
			l.logger.Debug("sync: indexed", slog.String("path", m.Path))
		}
		l.register(m.Path, decls)
	}

	for p := range checksums {
		if _, ok := disk[p]; ok {
			continue
		}
		if err := l.RemoveSource(p); err != nil {
			l.logger.Warn("sync: delete failed", slog.String("path", p), slog.String("error", err.Error()))
		} else {
			l.logger.Debug("sync: removed stale", slog.String("path", p))
		}
	}

	return nil
}

// indexFromDisk reads and indexes the source at rel.
func (l *Loader) indexFromDisk(rel string) ([]string, error) {
	data, err := l.src.Read(rel)
	if err != nil {
		return nil, fmt.Errorf("read: %w", err)
	}
	return l.IndexSource(rel, data)
}
