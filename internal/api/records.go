package api

import (
	"encoding/json"
	"net/http"

	"github.com/go-chi/chi/v5"

	"github.com/starford/modelstore/internal/models"
)

func recordID(r *http.Request) models.Identifier {
	return models.Identifier{Type: chi.URLParam(r, "type"), ID: chi.URLParam(r, "id")}
}

func decodeRecordRequest(w http.ResponseWriter, r *http.Request) (RecordRequest, bool) {
	var req RecordRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeJSON(w, http.StatusBadRequest, errorBody("invalid JSON"))
		return req, false
	}
	return req, true
}

// ListRecords handles GET /api/records.
//
//	@Summary		List loaded record identifiers
//	@Tags			records
//	@Produce		json
//	@Success		200	{object}	RecordListResponse
//	@Security		BearerAuth
//	@Router			/records [get]
func (h *Handler) ListRecords(w http.ResponseWriter, _ *http.Request) {
	ids := h.records.Loaded()
	if ids == nil {
		ids = []models.Identifier{}
	}
	writeJSON(w, http.StatusOK, RecordListResponse{Records: ids})
}

// CreateRecord handles POST /api/records/{type}. A missing id is generated.
//
//	@Summary		Create a record
//	@Tags			records
//	@Accept			json
//	@Produce		json
//	@Param			type	path		string			true	"Model name"
//	@Param			body	body		RecordRequest	true	"Record data"
//	@Success		201		{object}	RecordDetail
//	@Failure		400		{object}	errResponse
//	@Failure		404		{object}	errResponse
//	@Security		BearerAuth
//	@Router			/records/{type} [post]
func (h *Handler) CreateRecord(w http.ResponseWriter, r *http.Request) {
	req, ok := decodeRecordRequest(w, r)
	if !ok {
		return
	}
	var (
		detail *RecordDetail
		err    error
	)
	if req.ID == "" {
		detail, err = h.records.Create(r.Context(), chi.URLParam(r, "type"), req.Attributes)
	} else {
		id := models.Identifier{Type: chi.URLParam(r, "type"), ID: req.ID}
		detail, err = h.records.Push(r.Context(), id, req.Attributes)
	}
	if err != nil {
		writeError(w, "create record", err)
		return
	}
	writeJSON(w, http.StatusCreated, detail)
}

// GetRecord handles GET /api/records/{type}/{id}.
//
//	@Summary		Materialize and read a record
//	@Tags			records
//	@Produce		json
//	@Param			type	path		string	true	"Model name"
//	@Param			id		path		string	true	"Record id"
//	@Success		200		{object}	RecordDetail
//	@Failure		404		{object}	errResponse
//	@Security		BearerAuth
//	@Router			/records/{type}/{id} [get]
func (h *Handler) GetRecord(w http.ResponseWriter, r *http.Request) {
	detail, err := h.records.Describe(r.Context(), recordID(r))
	if err != nil {
		writeError(w, "get record", err)
		return
	}
	writeJSON(w, http.StatusOK, detail)
}

// PushRecord handles PUT /api/records/{type}/{id}. The attributes are merged
// into the raw record data.
//
//	@Summary		Push raw record data
//	@Tags			records
//	@Accept			json
//	@Produce		json
//	@Param			type	path		string			true	"Model name"
//	@Param			id		path		string			true	"Record id"
//	@Param			body	body		RecordRequest	true	"Record data"
//	@Success		200		{object}	RecordDetail
//	@Failure		400		{object}	errResponse
//	@Failure		404		{object}	errResponse
//	@Security		BearerAuth
//	@Router			/records/{type}/{id} [put]
func (h *Handler) PushRecord(w http.ResponseWriter, r *http.Request) {
	req, ok := decodeRecordRequest(w, r)
	if !ok {
		return
	}
	detail, err := h.records.Push(r.Context(), recordID(r), req.Attributes)
	if err != nil {
		writeError(w, "push record", err)
		return
	}
	writeJSON(w, http.StatusOK, detail)
}

// UpdateRecord handles PATCH /api/records/{type}/{id}. Values are written
// through the live record and must name declared attributes.
//
//	@Summary		Update record attributes
//	@Tags			records
//	@Accept			json
//	@Produce		json
//	@Param			type	path		string			true	"Model name"
//	@Param			id		path		string			true	"Record id"
//	@Param			body	body		RecordRequest	true	"Record data"
//	@Success		200		{object}	RecordDetail
//	@Failure		400		{object}	errResponse
//	@Failure		404		{object}	errResponse
//	@Security		BearerAuth
//	@Router			/records/{type}/{id} [patch]
func (h *Handler) UpdateRecord(w http.ResponseWriter, r *http.Request) {
	req, ok := decodeRecordRequest(w, r)
	if !ok {
		return
	}
	detail, err := h.records.Update(r.Context(), recordID(r), req.Attributes)
	if err != nil {
		writeError(w, "update record", err)
		return
	}
	writeJSON(w, http.StatusOK, detail)
}

// UnloadRecord handles DELETE /api/records/{type}/{id}.
//
//	@Summary		Unload a record
//	@Tags			records
//	@Param			type	path	string	true	"Model name"
//	@Param			id		path	string	true	"Record id"
//	@Success		204
//	@Failure		404	{object}	errResponse
//	@Security		BearerAuth
//	@Router			/records/{type}/{id} [delete]
func (h *Handler) UnloadRecord(w http.ResponseWriter, r *http.Request) {
	if err := h.records.Unload(r.Context(), recordID(r)); err != nil {
		writeError(w, "unload record", err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}
