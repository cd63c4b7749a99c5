package record

import (
	"fmt"
	"maps"
	"reflect"
	"slices"
	"sync"

	"github.com/starford/modelstore/internal/models"
	"github.com/starford/modelstore/internal/notify"
)

// Observer is called with the name of every property that changed on a Model.
// "id" and "currentState" are reported for identity and state changes.
type Observer func(m *Model, key string)

// Model is the live record produced by a Template.
type Model struct {
	class ModelClass
	id    models.Identifier
	store StoreRef
	owner Owner
	data  RecordData
	props map[string]any

	mu            sync.Mutex
	internalModel *models.InternalModel
	currentState  string
	seen          map[string]any
	observers     map[int]Observer
	nextObserver  int
	destroyed     bool
}

var _ Record = (*Model)(nil)

// NewModel constructs a live record of class from args.
func NewModel(class ModelClass, args Args) (*Model, error) {
	id, ok := args.Identifier()
	if !ok {
		return nil, fmt.Errorf("record: create %s: identifier is required", class.ModelName())
	}
	data := args.RecordData()
	if data == nil {
		data = NewMemoryData(nil)
	}
	return &Model{
		class:         class,
		id:            id,
		store:         args.Store(),
		owner:         OwnerOf(args),
		data:          data,
		props:         args.Properties(),
		internalModel: args.InternalModel(),
		currentState:  args.CurrentState(),
		seen:          make(map[string]any),
		observers:     make(map[int]Observer),
	}, nil
}

// Identifier implements Record.
func (m *Model) Identifier() models.Identifier { return m.id }

// ModelName returns the model name of the record's class.
func (m *Model) ModelName() string { return m.class.ModelName() }

// Class returns the record's model class.
func (m *Model) Class() ModelClass { return m.class }

// Store returns the store back-reference.
func (m *Model) Store() StoreRef { return m.store }

// Owner returns the owner propagated at construction.
func (m *Model) Owner() Owner { return m.owner }

// InternalModel returns the bookkeeping record back-reference.
func (m *Model) InternalModel() *models.InternalModel { return m.internalModel }

// CurrentState returns the lifecycle state last observed.
func (m *Model) CurrentState() string {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.currentState
}

// Prop returns a construction property that is not a well-known argument.
func (m *Model) Prop(key string) (any, bool) {
	v, ok := m.props[key]
	return v, ok
}

// Get returns the value of attribute name, falling back to its default.
func (m *Model) Get(name string) (any, error) {
	attrs, err := m.attributeDefs()
	if err != nil {
		return nil, err
	}
	meta, ok := attrs[name]
	if !ok {
		return nil, fmt.Errorf("record: %s has no attribute %q", m.class.ModelName(), name)
	}
	if v, ok := m.data.GetAttr(name); ok {
		m.mu.Lock()
		m.seen[name] = v
		m.mu.Unlock()
		return v, nil
	}
	return defaultValue(meta, m.id)
}

// Set writes attribute name through to the raw data and notifies observers.
func (m *Model) Set(name string, value any) error {
	attrs, err := m.attributeDefs()
	if err != nil {
		return err
	}
	if _, ok := attrs[name]; !ok {
		return fmt.Errorf("record: %s has no attribute %q", m.class.ModelName(), name)
	}
	if m.IsDestroyed() {
		return fmt.Errorf("record: set %s on destroyed record %s", name, m.id)
	}
	m.data.SetAttr(name, value)
	m.NotifyChange(notify.Change{Identifier: m.id, Kind: notify.ChangeAttributes, Keys: []string{name}})
	return nil
}

// Attributes returns every attribute value, defaults applied.
func (m *Model) Attributes() (map[string]any, error) {
	attrs, err := m.attributeDefs()
	if err != nil {
		return nil, err
	}
	out := make(map[string]any, len(attrs))
	for name, meta := range attrs {
		if v, ok := m.data.GetAttr(name); ok {
			m.mu.Lock()
			m.seen[name] = v
			m.mu.Unlock()
			out[name] = v
			continue
		}
		v, err := defaultValue(meta, m.id)
		if err != nil {
			return nil, err
		}
		out[name] = v
	}
	return out, nil
}

// RelatedClass resolves the model class on the other side of relationship key.
func (m *Model) RelatedClass(key string) (ModelClass, error) {
	rels, err := m.relationshipDefs()
	if err != nil {
		return nil, err
	}
	meta, ok := rels[key]
	if !ok {
		return nil, fmt.Errorf("record: %s has no relationship %q", m.class.ModelName(), key)
	}
	if m.store == nil {
		return nil, fmt.Errorf("record: %s is not attached to a store", m.id)
	}
	return m.store.ModelFor(meta.Type)
}

// Observe registers fn for property changes and returns a func that removes it.
func (m *Model) Observe(fn Observer) func() {
	m.mu.Lock()
	defer m.mu.Unlock()
	key := m.nextObserver
	m.nextObserver++
	m.observers[key] = fn
	return func() {
		m.mu.Lock()
		delete(m.observers, key)
		m.mu.Unlock()
	}
}

// NotifyChange implements Record. It translates a hub change into the
// property names that changed and reports them to observers.
func (m *Model) NotifyChange(change notify.Change) {
	var all []string
	switch change.Kind {
	case notify.ChangeAttributes:
		all = m.attributeNames()
	case notify.ChangeRelationships:
		all = m.relationshipNames()
	}

	m.mu.Lock()
	if m.destroyed {
		m.mu.Unlock()
		return
	}

	var changed []string
	switch change.Kind {
	case notify.ChangeAttributes:
		for _, name := range m.keysFor(change.Keys, all) {
			cur, ok := m.data.GetAttr(name)
			prev, had := m.seen[name]
			if ok == had && reflect.DeepEqual(prev, cur) {
				continue
			}
			if ok {
				m.seen[name] = cur
			} else {
				delete(m.seen, name)
			}
			changed = append(changed, name)
		}
	case notify.ChangeRelationships:
		changed = m.keysFor(change.Keys, all)
	case notify.ChangeIdentity:
		changed = []string{"id"}
	case notify.ChangeState:
		if m.internalModel != nil {
			m.currentState = m.internalModel.CurrentState
		}
		changed = []string{"currentState"}
	}

	observers := make([]Observer, 0, len(m.observers))
	for _, fn := range m.observers {
		observers = append(observers, fn)
	}
	m.mu.Unlock()

	for _, key := range changed {
		for _, fn := range observers {
			fn(m, key)
		}
	}
}

// Destroy implements Record.
func (m *Model) Destroy() {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.destroyed = true
	clear(m.observers)
}

// IsDestroyed reports whether Destroy has run.
func (m *Model) IsDestroyed() bool {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.destroyed
}

// attributeDefs returns the attributes the record accepts. A pluggable store
// answers with its current definitions; otherwise the class map is used.
func (m *Model) attributeDefs() (map[string]models.AttributeMeta, error) {
	if m.store != nil && m.store.PluggableSchema() {
		return m.store.AttributesDefinitionFor(m.class.ModelName())
	}
	return m.class.AttributesByName(), nil
}

func (m *Model) relationshipDefs() (map[string]models.RelationshipMeta, error) {
	if m.store != nil && m.store.PluggableSchema() {
		return m.store.RelationshipsDefinitionFor(m.class.ModelName())
	}
	return m.class.RelationshipsByName(), nil
}

// attributeNames falls back to the class map when the store cannot answer.
func (m *Model) attributeNames() []string {
	attrs, err := m.attributeDefs()
	if err != nil {
		attrs = m.class.AttributesByName()
	}
	return slices.Sorted(maps.Keys(attrs))
}

func (m *Model) relationshipNames() []string {
	rels, err := m.relationshipDefs()
	if err != nil {
		rels = m.class.RelationshipsByName()
	}
	return slices.Sorted(maps.Keys(rels))
}

// keysFor narrows all to the requested keys, ignoring unknown ones.
func (m *Model) keysFor(requested, all []string) []string {
	if len(requested) == 0 {
		return all
	}
	out := make([]string, 0, len(requested))
	for _, k := range requested {
		if slices.Contains(all, k) {
			out = append(out, k)
		}
	}
	return out
}
