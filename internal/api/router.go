package api

import (
	"net/http"

	"github.com/go-chi/chi/v5"
)

// NewRouter creates a chi router with all API routes mounted.
// authEnabled controls whether Bearer token auth is enforced.
// sseHandler, if non-nil, is mounted at GET /events inside the auth group.
func NewRouter(h *Handler, authEnabled bool, token string, sseHandler http.Handler) chi.Router {
	r := chi.NewRouter()
	r.Use(AuthMiddleware(authEnabled, token))

	// Model introspection.
	r.Get("/models", h.ListModels)
	r.Route("/models/{type}", func(r chi.Router) {
		r.Get("/", h.DescribeModel)
		r.Get("/exists", h.ModelExists)
		r.Get("/attributes", h.Attributes)
		r.Get("/relationships", h.Relationships)
		r.Get("/relationships/{key}", h.RelationshipMeta)
	})

	// Schema sources.
	r.Get("/schemas", h.ListSchemas)
	r.Put("/schemas/*", h.PutSchema)
	r.Delete("/schemas/*", h.DeleteSchema)

	// Records.
	r.Get("/records", h.ListRecords)
	r.Post("/records/{type}", h.CreateRecord)
	r.Get("/records/{type}/{id}", h.GetRecord)
	r.Put("/records/{type}/{id}", h.PushRecord)
	r.Patch("/records/{type}/{id}", h.UpdateRecord)
	r.Delete("/records/{type}/{id}", h.UnloadRecord)

	// SSE endpoint (protected by same auth middleware).
	if sseHandler != nil {
		r.Get("/events", sseHandler.ServeHTTP)
	}

	return r
}
