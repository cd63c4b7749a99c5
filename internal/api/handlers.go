package api

import (
	"net/http"
	"net/url"
	"strings"

	"github.com/go-chi/chi/v5"

	"github.com/starford/modelstore/internal/apperr"
	"github.com/starford/modelstore/internal/models"
	"github.com/starford/modelstore/internal/recordservice"
	"github.com/starford/modelstore/internal/store"
)

// ModelLister reports the model names known to the environment.
type ModelLister interface {
	Names() []string
}

// SchemaSources manages the schema source files.
type SchemaSources interface {
	ListSources() ([]models.SourceMetadata, error)
	WriteSource(path string, content []byte) ([]string, error)
	DeleteSourceFile(path string) error
}

// Handler holds API route handlers.
type Handler struct {
	store   *store.Store
	records *recordservice.Service
	models  ModelLister
	schemas SchemaSources
}

// NewHandler creates a new Handler. schemas may be nil, which disables the
// schema source routes.
func NewHandler(st *store.Store, records *recordservice.Service, lister ModelLister, schemas SchemaSources) *Handler {
	return &Handler{store: st, records: records, models: lister, schemas: schemas}
}

// wildcardPath extracts the path after the route prefix.
// Supports encoded slashes from OpenAPI clients (e.g. blog%2Fpost.yaml).
func wildcardPath(r *http.Request) string {
	raw := strings.TrimPrefix(chi.URLParam(r, "*"), "/")
	if raw == "" {
		return ""
	}
	decoded, err := url.PathUnescape(raw)
	if err != nil {
		return raw
	}
	return decoded
}

// ListModels handles GET /api/models.
//
//	@Summary		List registered model names
//	@Tags			models
//	@Produce		json
//	@Success		200	{object}	ModelListResponse
//	@Security		BearerAuth
//	@Router			/models [get]
func (h *Handler) ListModels(w http.ResponseWriter, _ *http.Request) {
	names := h.models.Names()
	if names == nil {
		names = []string{}
	}
	writeJSON(w, http.StatusOK, ModelListResponse{Models: names})
}

// DescribeModel handles GET /api/models/{type}.
//
//	@Summary		Describe a model type
//	@Tags			models
//	@Produce		json
//	@Param			type	path		string	true	"Model name"
//	@Success		200		{object}	ModelDescription
//	@Failure		404		{object}	errResponse
//	@Security		BearerAuth
//	@Router			/models/{type} [get]
func (h *Handler) DescribeModel(w http.ResponseWriter, r *http.Request) {
	mc, err := h.store.ModelFor(chi.URLParam(r, "type"))
	if err != nil {
		writeError(w, "model for", err)
		return
	}
	name := mc.ModelName()
	attrs, err := h.store.AttributesDefinitionFor(name)
	if err != nil {
		writeError(w, "attributes definition", err)
		return
	}
	rels, err := h.store.RelationshipsDefinitionFor(name)
	if err != nil {
		writeError(w, "relationships definition", err)
		return
	}
	_, shim := mc.(*store.ShimModelClass)
	writeJSON(w, http.StatusOK, ModelDescription{
		Name:          name,
		FirstClass:    !shim,
		Attributes:    attrs,
		Relationships: rels,
	})
}

// ModelExists handles GET /api/models/{type}/exists.
//
//	@Summary		Check whether a model type exists
//	@Tags			models
//	@Produce		json
//	@Param			type	path		string	true	"Model name"
//	@Success		200		{object}	ExistsResponse
//	@Security		BearerAuth
//	@Router			/models/{type}/exists [get]
func (h *Handler) ModelExists(w http.ResponseWriter, r *http.Request) {
	raw := chi.URLParam(r, "type")
	name, err := h.store.NormalizeModelName(raw)
	if err != nil {
		writeError(w, "normalize", err)
		return
	}
	ok, err := h.store.DoesTypeExist(name)
	if err != nil {
		writeError(w, "does type exist", err)
		return
	}
	writeJSON(w, http.StatusOK, ExistsResponse{Name: name, Exists: ok})
}

// Attributes handles GET /api/models/{type}/attributes.
//
//	@Summary		Attribute definitions of a model type
//	@Tags			models
//	@Produce		json
//	@Param			type	path		string	true	"Model name"
//	@Success		200		{object}	models.AttributesDefinition
//	@Failure		404		{object}	errResponse
//	@Security		BearerAuth
//	@Router			/models/{type}/attributes [get]
func (h *Handler) Attributes(w http.ResponseWriter, r *http.Request) {
	attrs, err := h.store.AttributesDefinitionFor(chi.URLParam(r, "type"))
	if err != nil {
		writeError(w, "attributes definition", err)
		return
	}
	writeJSON(w, http.StatusOK, attrs)
}

// Relationships handles GET /api/models/{type}/relationships. A model
// without relationships yields null.
//
//	@Summary		Relationship definitions of a model type
//	@Tags			models
//	@Produce		json
//	@Param			type	path		string	true	"Model name"
//	@Success		200		{object}	models.RelationshipsDefinition
//	@Failure		404		{object}	errResponse
//	@Security		BearerAuth
//	@Router			/models/{type}/relationships [get]
func (h *Handler) Relationships(w http.ResponseWriter, r *http.Request) {
	rels, err := h.store.RelationshipsDefinitionFor(chi.URLParam(r, "type"))
	if err != nil {
		writeError(w, "relationships definition", err)
		return
	}
	writeJSON(w, http.StatusOK, rels)
}

// RelationshipMeta handles GET /api/models/{type}/relationships/{key}.
//
//	@Summary		Metadata of one relationship
//	@Tags			models
//	@Produce		json
//	@Param			type	path		string	true	"Model name"
//	@Param			key		path		string	true	"Relationship key"
//	@Success		200		{object}	models.RelationshipMeta
//	@Failure		404		{object}	errResponse
//	@Security		BearerAuth
//	@Router			/models/{type}/relationships/{key} [get]
func (h *Handler) RelationshipMeta(w http.ResponseWriter, r *http.Request) {
	name, key := chi.URLParam(r, "type"), chi.URLParam(r, "key")
	meta, ok, err := h.store.RelationshipMetaFor(name, key)
	if err != nil {
		writeError(w, "relationship meta", err)
		return
	}
	if !ok {
		writeError(w, "relationship meta", &apperr.Error{Op: "relationshipMetaFor", Model: key, Msg: "no relationship named", Err: apperr.ErrNotFound})
		return
	}
	writeJSON(w, http.StatusOK, meta)
}
