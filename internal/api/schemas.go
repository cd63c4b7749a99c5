package api

import (
	"io"
	"net/http"

	"github.com/starford/modelstore/internal/models"
)

const maxSchemaSize = 1 << 20

func (h *Handler) schemasEnabled(w http.ResponseWriter) bool {
	if h.schemas == nil {
		writeJSON(w, http.StatusNotImplemented, errorBody("schema sources are not managed by this server"))
		return false
	}
	return true
}

// ListSchemas handles GET /api/schemas.
//
//	@Summary		List schema sources
//	@Tags			schemas
//	@Produce		json
//	@Success		200	{object}	SchemaListResponse
//	@Security		BearerAuth
//	@Router			/schemas [get]
func (h *Handler) ListSchemas(w http.ResponseWriter, _ *http.Request) {
	if !h.schemasEnabled(w) {
		return
	}
	list, err := h.schemas.ListSources()
	if err != nil {
		writeError(w, "list schemas", err)
		return
	}
	if list == nil {
		list = []models.SourceMetadata{}
	}
	writeJSON(w, http.StatusOK, SchemaListResponse{Schemas: list})
}

// PutSchema handles PUT /api/schemas/*. The raw body is the source content.
//
//	@Summary		Write a schema source
//	@Tags			schemas
//	@Accept			plain
//	@Produce		json
//	@Param			path	path		string	true	"Source path (e.g. blog/post.yaml)"
//	@Success		200		{object}	SchemaWriteResponse
//	@Failure		400		{object}	errResponse
//	@Security		BearerAuth
//	@Router			/schemas/{path} [put]
func (h *Handler) PutSchema(w http.ResponseWriter, r *http.Request) {
	if !h.schemasEnabled(w) {
		return
	}
	path := wildcardPath(r)
	if path == "" {
		writeJSON(w, http.StatusBadRequest, errorBody("path required"))
		return
	}
	content, err := io.ReadAll(http.MaxBytesReader(w, r.Body, maxSchemaSize))
	if err != nil {
		writeJSON(w, http.StatusRequestEntityTooLarge, errorBody("schema source too large"))
		return
	}
	names, err := h.schemas.WriteSource(path, content)
	if err != nil {
		writeError(w, "write schema", err)
		return
	}
	if names == nil {
		names = []string{}
	}
	writeJSON(w, http.StatusOK, SchemaWriteResponse{Path: path, Models: names})
}

// DeleteSchema handles DELETE /api/schemas/*.
//
//	@Summary		Delete a schema source
//	@Tags			schemas
//	@Param			path	path	string	true	"Source path"
//	@Success		204
//	@Failure		404	{object}	errResponse
//	@Security		BearerAuth
//	@Router			/schemas/{path} [delete]
func (h *Handler) DeleteSchema(w http.ResponseWriter, r *http.Request) {
	if !h.schemasEnabled(w) {
		return
	}
	path := wildcardPath(r)
	if path == "" {
		writeJSON(w, http.StatusBadRequest, errorBody("path required"))
		return
	}
	if err := h.schemas.DeleteSourceFile(path); err != nil {
		writeError(w, "delete schema", err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}
