package record

import (
	"sync"

	"github.com/starford/modelstore/internal/models"
)

// Template is the first-class record type built from a schema declaration.
// It is both a Factory and a ModelClass.
type Template struct {
	mu   sync.RWMutex
	name string

	attributes    map[string]models.AttributeMeta
	relationships map[string]models.RelationshipMeta
}

var (
	_ Factory    = (*Template)(nil)
	_ ModelClass = (*Template)(nil)
	_ Nameable   = (*Template)(nil)
)

// NewTemplate builds a Template from decl.
func NewTemplate(decl models.Declaration) *Template {
	t := &Template{
		name:       decl.Name,
		attributes: make(map[string]models.AttributeMeta, len(decl.Attributes)),
	}
	for _, a := range decl.Attributes {
		t.attributes[a.Name] = a
	}
	if len(decl.Relationships) > 0 {
		t.relationships = make(map[string]models.RelationshipMeta, len(decl.Relationships))
		for _, r := range decl.Relationships {
			if r.ParentModelName == "" {
				r.ParentModelName = decl.Name
			}
			t.relationships[r.Key] = r
		}
	}
	return t
}

// ModelName implements ModelClass.
func (t *Template) ModelName() string {
	t.mu.RLock()
	defer t.mu.RUnlock()
	return t.name
}

// SetModelName implements Nameable. The store assigns the name on first
// resolution while other goroutines may already be reading it.
func (t *Template) SetModelName(name string) {
	t.mu.Lock()
	defer t.mu.Unlock()
	t.name = name
}

// AttributesByName returns the live class-level attribute map.
func (t *Template) AttributesByName() map[string]models.AttributeMeta {
	return t.attributes
}

// RelationshipsByName returns the live class-level relationship map, nil when
// the type declares no relationships.
func (t *Template) RelationshipsByName() map[string]models.RelationshipMeta {
	return t.relationships
}

// Create implements Factory.
func (t *Template) Create(args Args) (Record, error) {
	m, err := NewModel(t, args)
	if err != nil {
		return nil, err
	}
	return m, nil
}
