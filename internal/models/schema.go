package models

// RelationshipKind is the cardinality of a relationship.
type RelationshipKind string

const (
	BelongsTo RelationshipKind = "belongsTo"
	HasMany   RelationshipKind = "hasMany"
)

// AttributeMeta describes a single attribute of a model type.
type AttributeMeta struct {
	Name string `json:"name"`
	// Type is the transform tag, e.g. "string", "number", "date".
	Type string `json:"type,omitempty"`
	// DefaultValue is used when the raw data has no value for the attribute.
	DefaultValue any `json:"default_value,omitempty"`
	// DefaultExpr, when set, is evaluated per read and wins over DefaultValue.
	DefaultExpr string         `json:"default_expr,omitempty"`
	Options     map[string]any `json:"options,omitempty"`
}

// RelationshipMeta describes a single relationship of a model type.
type RelationshipMeta struct {
	Key             string           `json:"key"`
	Kind            RelationshipKind `json:"kind"`
	Type            string           `json:"type"`
	Inverse         string           `json:"inverse,omitempty"`
	ParentModelName string           `json:"parent_model_name,omitempty"`
	Options         map[string]any   `json:"options,omitempty"`
}

// IsCollection reports whether the relationship is to-many.
func (m RelationshipMeta) IsCollection() bool {
	return m.Kind == HasMany
}

// AttributesDefinition maps attribute names to their metadata.
type AttributesDefinition map[string]AttributeMeta

// RelationshipsDefinition maps relationship keys to their metadata. A nil
// definition means the type declares no relationships.
type RelationshipsDefinition map[string]RelationshipMeta

// Declaration is a model type as written in a schema source.
type Declaration struct {
	Name          string             `json:"name"`
	Attributes    []AttributeMeta    `json:"attributes"`
	Relationships []RelationshipMeta `json:"relationships"`
}
