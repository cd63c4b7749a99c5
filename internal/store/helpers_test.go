package store

import (
	"context"
	"log/slog"
	"sync"

	"github.com/starford/modelstore/internal/models"
	"github.com/starford/modelstore/internal/notify"
	"github.com/starford/modelstore/internal/record"
)

type mapLookup struct {
	mu        sync.Mutex
	factories map[string]record.Factory
	calls     int
}

func newLookup() *mapLookup {
	return &mapLookup{factories: make(map[string]record.Factory)}
}

func (l *mapLookup) add(name string, f record.Factory) {
	l.mu.Lock()
	defer l.mu.Unlock()
	l.factories[name] = f
}

func (l *mapLookup) LookupFactory(name string) (record.Factory, bool) {
	l.mu.Lock()
	defer l.mu.Unlock()
	l.calls++
	f, ok := l.factories[name]
	return f, ok
}

func (l *mapLookup) lookups() int {
	l.mu.Lock()
	defer l.mu.Unlock()
	return l.calls
}

type stubRecord struct {
	mu        sync.Mutex
	id        models.Identifier
	args      record.Args
	changes   []notify.Change
	destroyed int
}

func (r *stubRecord) Identifier() models.Identifier { return r.id }

func (r *stubRecord) NotifyChange(c notify.Change) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.changes = append(r.changes, c)
}

func (r *stubRecord) Destroy() {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.destroyed++
}

// plainFactory is a factory that is not a first-class record type.
type plainFactory struct {
	err  error
	last *stubRecord
}

func (f *plainFactory) Create(args record.Args) (record.Record, error) {
	if f.err != nil {
		return nil, f.err
	}
	id, _ := args.Identifier()
	f.last = &stubRecord{id: id, args: args}
	return f.last, nil
}

// singletonFactory hands out the same record for every identifier.
type singletonFactory struct {
	rec *stubRecord
}

func (f *singletonFactory) Create(args record.Args) (record.Record, error) {
	id, _ := args.Identifier()
	f.rec.mu.Lock()
	f.rec.id = id
	f.rec.mu.Unlock()
	return f.rec, nil
}

// countingClass records how often its class-level maps are read.
type countingClass struct {
	*record.Template
	mu        sync.Mutex
	attrReads int
	relReads  int
}

func (c *countingClass) AttributesByName() map[string]models.AttributeMeta {
	c.mu.Lock()
	c.attrReads++
	c.mu.Unlock()
	return c.Template.AttributesByName()
}

func (c *countingClass) RelationshipsByName() map[string]models.RelationshipMeta {
	c.mu.Lock()
	c.relReads++
	c.mu.Unlock()
	return c.Template.RelationshipsByName()
}

type staticOwner map[string]any

func (o staticOwner) LookupService(name string) (any, bool) {
	v, ok := o[name]
	return v, ok
}

type staticSchema struct {
	attrs map[string]models.AttributesDefinition
	rels  map[string]models.RelationshipsDefinition
}

func (s *staticSchema) AttributesDefinitionFor(name string) (models.AttributesDefinition, error) {
	return s.attrs[name], nil
}

func (s *staticSchema) RelationshipsDefinitionFor(name string) (models.RelationshipsDefinition, error) {
	return s.rels[name], nil
}

func (s *staticSchema) DoesTypeExist(name string) bool {
	_, ok := s.attrs[name]
	return ok
}

// recordingHandler is a slog.Handler that keeps every record it receives.
type recordingHandler struct {
	mu      sync.Mutex
	records []slog.Record
}

func (h *recordingHandler) Enabled(context.Context, slog.Level) bool { return true }

func (h *recordingHandler) Handle(_ context.Context, r slog.Record) error {
	h.mu.Lock()
	defer h.mu.Unlock()
	h.records = append(h.records, r.Clone())
	return nil
}

func (h *recordingHandler) WithAttrs([]slog.Attr) slog.Handler { return h }
func (h *recordingHandler) WithGroup(string) slog.Handler      { return h }

func (h *recordingHandler) warnings() []slog.Record {
	h.mu.Lock()
	defer h.mu.Unlock()
	var out []slog.Record
	for _, r := range h.records {
		if r.Level == slog.LevelWarn {
			out = append(out, r)
		}
	}
	return out
}

func attrValue(r slog.Record, key string) string {
	var v string
	r.Attrs(func(a slog.Attr) bool {
		if a.Key == key {
			v = a.Value.String()
			return false
		}
		return true
	})
	return v
}

func personDecl() models.Declaration {
	return models.Declaration{
		Name: "person",
		Attributes: []models.AttributeMeta{
			{Name: "name", Type: "string"},
			{Name: "age", Type: "number", DefaultValue: 0},
		},
		Relationships: []models.RelationshipMeta{
			{Key: "pets", Kind: models.HasMany, Type: "pet", Inverse: "owner"},
		},
	}
}
