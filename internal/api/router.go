package api

import (
	"net/http"

	"github.com/go-chi/chi/v5"

	"github.com/starford/moodlog/internal/recordservice"
	"github.com/starford/moodlog/internal/stats"
)

// NewRouter creates a chi router with all API routes mounted.
// authEnabled controls whether Bearer token auth is enforced.
// sseHandler, if non-nil, is mounted at GET /events inside the auth group.
func NewRouter(records *recordservice.Service, statistics *stats.Service, authEnabled bool, token string, sseHandler http.Handler) chi.Router {
	h := NewHandler(records, statistics)

	r := chi.NewRouter()
	r.Use(AuthMiddleware(authEnabled, token))

	// Records CRUD.
	r.Get("/records", h.ListRecords)
	r.Post("/records", h.CreateRecord)
	r.Get("/records/{id}", h.GetRecord)
	r.Put("/records/{id}", h.UpdateRecord)
	r.Delete("/records/{id}", h.DeleteRecord)
	r.Post("/records/{id}/activities", h.AddActivities)
	r.Post("/records/{id}/files", h.UploadFile)

	r.Get("/attachments/{key}", h.ServeAttachment)

	r.Get("/search", h.Search)

	// Activity catalog.
	r.Get("/activities", h.ListActivities)
	r.Put("/activities/{id}", h.NameActivity)

	// Statistics.
	r.Get("/statistics/mood", h.MoodStatistics)
	r.Get("/statistics/activity", h.ActivityStatistics)

	if sseHandler != nil {
		r.Get("/events", sseHandler.ServeHTTP)
	}

	return r
}
