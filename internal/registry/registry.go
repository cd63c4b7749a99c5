// Package registry holds the factories the store resolves model names
// against, and the ambient services handed to every record.
package registry

import (
	"slices"
	"sync"

	"github.com/starford/modelstore/internal/models"
	"github.com/starford/modelstore/internal/naming"
	"github.com/starford/modelstore/internal/record"
)

// Option configures a Registry.
type Option func(*Registry)

// WithNormalizer replaces the default dasherizing normalizer. Pass the same
// function the store uses so both key model names identically.
func WithNormalizer(fn func(raw string) string) Option {
	return func(r *Registry) {
		if fn != nil {
			r.normalize = fn
		}
	}
}

// Registry maps normalized model names to factories.
type Registry struct {
	normalize func(raw string) string

	mu sync.RWMutex

	// factories maps model names to factories: "blog-post" → *record.Template
	factories map[string]record.Factory

	// bySource maps a schema source path to the model names it declared.
	bySource map[string][]string

	// owner maps a declared model name to the source that currently owns it.
	owner map[string]string
}

// New creates an empty registry.
func New(opts ...Option) *Registry {
	r := &Registry{
		normalize: naming.Normalize,
		factories: make(map[string]record.Factory),
		bySource:  make(map[string][]string),
		owner:     make(map[string]string),
	}
	for _, opt := range opts {
		opt(r)
	}
	return r
}

// Register adds f under the normalized form of name, replacing any factory
// already registered there.
func (r *Registry) Register(name string, f record.Factory) {
	r.mu.Lock()
	defer r.mu.Unlock()
	key := r.normalize(name)
	r.factories[key] = f
	delete(r.owner, key)
}

// RegisterDeclarations replaces the models previously declared by source
// with a Template per declaration. It returns the registered names.
func (r *Registry) RegisterDeclarations(source string, decls []models.Declaration) []string {
	r.mu.Lock()
	defer r.mu.Unlock()

	r.removeLocked(source)
	names := make([]string, 0, len(decls))
	for _, d := range decls {
		d = r.canonicalDecl(d)
		r.factories[d.Name] = record.NewTemplate(d)
		r.owner[d.Name] = source
		names = append(names, d.Name)
	}
	if len(names) > 0 {
		r.bySource[source] = names
	}
	return names
}

// canonicalDecl rewrites the model names in d to registry keys.
func (r *Registry) canonicalDecl(d models.Declaration) models.Declaration {
	d.Name = r.normalize(d.Name)
	if len(d.Relationships) == 0 {
		return d
	}
	rels := make([]models.RelationshipMeta, len(d.Relationships))
	for i, rel := range d.Relationships {
		rel.Type = r.normalize(rel.Type)
		rel.ParentModelName = d.Name
		rels[i] = rel
	}
	d.Relationships = rels
	return d
}

// RemoveSource unregisters every model declared by source and returns their names.
func (r *Registry) RemoveSource(source string) []string {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.removeLocked(source)
}

func (r *Registry) removeLocked(source string) []string {
	names := r.bySource[source]
	for _, n := range names {
		if r.owner[n] != source {
			continue
		}
		delete(r.factories, n)
		delete(r.owner, n)
	}
	delete(r.bySource, source)
	return names
}

// LookupFactory implements store.FactoryLookup. name is already normalized.
func (r *Registry) LookupFactory(name string) (record.Factory, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	f, ok := r.factories[name]
	return f, ok
}

// Names returns every registered model name, sorted.
func (r *Registry) Names() []string {
	r.mu.RLock()
	defer r.mu.RUnlock()
	names := make([]string, 0, len(r.factories))
	for n := range r.factories {
		names = append(names, n)
	}
	slices.Sort(names)
	return names
}

// SourceOf returns the schema source that declared name, if any.
func (r *Registry) SourceOf(name string) (string, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	src, ok := r.owner[name]
	return src, ok
}
