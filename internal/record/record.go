// Package record defines the contracts between the store and the record types
// it materializes, together with the default first-class record type
// (Template) and its live object (Model).
package record

import (
	"github.com/starford/modelstore/internal/models"
	"github.com/starford/modelstore/internal/notify"
)

// Record is a live, user-facing object bound to one identifier.
type Record interface {
	Identifier() models.Identifier
	// NotifyChange applies a change delivered by the notification hub.
	NotifyChange(change notify.Change)
	// Destroy releases the record. The store calls it at most once.
	Destroy()
}

// Factory is a constructible template for records of one model type.
type Factory interface {
	Create(args Args) (Record, error)
}

// ModelClass is the introspection surface of a model type. Factories that
// also implement ModelClass are first-class record types.
type ModelClass interface {
	ModelName() string
	// AttributesByName returns the class-level attribute map.
	AttributesByName() map[string]models.AttributeMeta
	// RelationshipsByName returns the class-level relationship map, or nil
	// when the type declares none.
	RelationshipsByName() map[string]models.RelationshipMeta
}

// Nameable is implemented by factories whose model name may be assigned
// after construction.
type Nameable interface {
	ModelName() string
	SetModelName(name string)
}

// Owner resolves ambient services for the store and for every record built
// by it.
type Owner interface {
	LookupService(name string) (any, bool)
}

// RecordData gives field-level access to a record's raw data.
type RecordData interface {
	GetAttr(key string) (any, bool)
	SetAttr(key string, value any)
}

// RecordDataFor returns the raw data accessor for an identifier.
type RecordDataFor func(id models.Identifier) RecordData

// StoreRef is the slice of the store a record may call back into.
type StoreRef interface {
	ModelFor(modelName string) (ModelClass, error)
	// PluggableSchema reports whether definitions come from the store's
	// schema definition service rather than from the record class.
	PluggableSchema() bool
	AttributesDefinitionFor(modelName string) (models.AttributesDefinition, error)
	RelationshipsDefinitionFor(modelName string) (models.RelationshipsDefinition, error)
}
