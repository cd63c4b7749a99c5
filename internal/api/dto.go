package api

import (
	"github.com/starford/modelstore/internal/models"
	"github.com/starford/modelstore/internal/recordservice"
)

// ModelListResponse lists the known model names.
type ModelListResponse struct {
	Models []string `json:"models" validate:"required"`
}

// ModelDescription is the full introspection of one model type.
type ModelDescription struct {
	Name          string                         `json:"name" example:"blog-post" validate:"required"`
	FirstClass    bool                           `json:"first_class"`
	Attributes    models.AttributesDefinition    `json:"attributes" validate:"required"`
	Relationships models.RelationshipsDefinition `json:"relationships"`
}

// ExistsResponse reports whether a model type exists.
type ExistsResponse struct {
	Name   string `json:"name" example:"blog-post"`
	Exists bool   `json:"exists"`
}

// SchemaListResponse lists the schema sources on disk.
type SchemaListResponse struct {
	Schemas []models.SourceMetadata `json:"schemas" validate:"required"`
}

// SchemaWriteResponse is returned after a schema source was written.
type SchemaWriteResponse struct {
	Path   string   `json:"path" example:"blog/post.yaml" validate:"required"`
	Models []string `json:"models" validate:"required"`
}

// RecordRequest is the body of record create and update requests.
type RecordRequest struct {
	ID         string         `json:"id,omitempty" example:"1"`
	Attributes map[string]any `json:"attributes"`
}

// RecordDetail is the record response type (aliased from the domain layer).
type RecordDetail = recordservice.RecordDetail

// RecordListResponse lists loaded identifiers.
type RecordListResponse struct {
	Records []models.Identifier `json:"records" validate:"required"`
}
