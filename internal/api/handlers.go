package api

import (
	"net/http"
	"strconv"

	"github.com/go-chi/chi/v5"

	"github.com/starford/moodlog/internal/models"
	"github.com/starford/moodlog/internal/recordservice"
	"github.com/starford/moodlog/internal/stats"
)

// Handler holds API route handlers.
type Handler struct {
	records *recordservice.Service
	stats   *stats.Service
}

// NewHandler creates a new Handler.
func NewHandler(records *recordservice.Service, statistics *stats.Service) *Handler {
	return &Handler{records: records, stats: statistics}
}

func recordID(r *http.Request) (int64, error) {
	return positiveID("id", chi.URLParam(r, "id"))
}

// optionalUserID reads user_id when present; zero means unscoped.
func optionalUserID(r *http.Request) (int64, error) {
	raw := r.URL.Query().Get("user_id")
	if raw == "" {
		return 0, nil
	}
	return positiveID("user_id", raw)
}

// ListRecords handles GET /api/records.
//
//	@Summary		List a user's records, newest first
//	@Tags			records
//	@Produce		json
//	@Param			user_id	query		int	true	"Owner"
//	@Success		200		{object}	RecordListResponse
//	@Failure		400		{object}	errResponse
//	@Security		BearerAuth
//	@Router			/records [get]
func (h *Handler) ListRecords(w http.ResponseWriter, r *http.Request) {
	userID, err := positiveID("user_id", r.URL.Query().Get("user_id"))
	if err != nil {
		writeError(w, r, err)
		return
	}
	items, err := h.records.List(r.Context(), userID)
	if err != nil {
		writeError(w, r, err)
		return
	}
	if items == nil {
		items = []models.Record{}
	}
	writeJSON(w, http.StatusOK, RecordListResponse{Records: items, Total: len(items)})
}

// GetRecord handles GET /api/records/{id}.
//
//	@Summary		Get a single record with its activities and files
//	@Tags			records
//	@Produce		json
//	@Param			id		path		int	true	"Record id"
//	@Param			user_id	query		int	false	"Owner; other users' records are not found"
//	@Success		200		{object}	models.Record
//	@Failure		404		{object}	errResponse
//	@Security		BearerAuth
//	@Router			/records/{id} [get]
func (h *Handler) GetRecord(w http.ResponseWriter, r *http.Request) {
	id, err := recordID(r)
	if err != nil {
		writeError(w, r, err)
		return
	}
	userID, err := optionalUserID(r)
	if err != nil {
		writeError(w, r, err)
		return
	}
	rec, err := h.records.Get(r.Context(), id, userID)
	if err != nil {
		writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, rec)
}

// CreateRecord handles POST /api/records.
//
//	@Summary		Create a record
//	@Tags			records
//	@Accept			json
//	@Produce		json
//	@Param			body	body		CreateRecordRequest	true	"Record to create"
//	@Success		201		{object}	models.Record
//	@Failure		400		{object}	errResponse
//	@Security		BearerAuth
//	@Router			/records [post]
func (h *Handler) CreateRecord(w http.ResponseWriter, r *http.Request) {
	var req CreateRecordRequest
	if err := decodeJSON(w, r, &req); err != nil {
		writeError(w, r, err)
		return
	}
	rec, err := h.records.Create(r.Context(), req)
	if err != nil {
		writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusCreated, rec)
}

// UpdateRecord handles PUT /api/records/{id}.
//
//	@Summary		Partially update a record
//	@Tags			records
//	@Accept			json
//	@Produce		json
//	@Param			id		path		int					true	"Record id"
//	@Param			body	body		UpdateRecordRequest	true	"Fields to change"
//	@Success		200		{object}	models.Record
//	@Failure		400		{object}	errResponse
//	@Failure		404		{object}	errResponse
//	@Security		BearerAuth
//	@Router			/records/{id} [put]
func (h *Handler) UpdateRecord(w http.ResponseWriter, r *http.Request) {
	id, err := recordID(r)
	if err != nil {
		writeError(w, r, err)
		return
	}
	var req UpdateRecordRequest
	if err := decodeJSON(w, r, &req); err != nil {
		writeError(w, r, err)
		return
	}
	rec, err := h.records.Update(r.Context(), id, req)
	if err != nil {
		writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, rec)
}

// DeleteRecord handles DELETE /api/records/{id}.
//
//	@Summary		Delete a record and its attachments
//	@Tags			records
//	@Param			id	path	int	true	"Record id"
//	@Success		204	"Record deleted"
//	@Failure		404	{object}	errResponse
//	@Security		BearerAuth
//	@Router			/records/{id} [delete]
func (h *Handler) DeleteRecord(w http.ResponseWriter, r *http.Request) {
	id, err := recordID(r)
	if err != nil {
		writeError(w, r, err)
		return
	}
	if err := h.records.Delete(r.Context(), id); err != nil {
		writeError(w, r, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

// AddActivities handles POST /api/records/{id}/activities.
//
//	@Summary		Tag a record with activities; existing tags are skipped
//	@Tags			records
//	@Accept			json
//	@Produce		json
//	@Param			id		path		int						true	"Record id"
//	@Param			body	body		AddActivitiesRequest	true	"Activity ids"
//	@Success		201		{object}	ActivityTagsResponse
//	@Failure		400		{object}	errResponse
//	@Failure		404		{object}	errResponse
//	@Security		BearerAuth
//	@Router			/records/{id}/activities [post]
func (h *Handler) AddActivities(w http.ResponseWriter, r *http.Request) {
	id, err := recordID(r)
	if err != nil {
		writeError(w, r, err)
		return
	}
	var req AddActivitiesRequest
	if err := decodeJSON(w, r, &req); err != nil {
		writeError(w, r, err)
		return
	}
	tags, err := h.records.AddActivities(r.Context(), id, req.ActivityIDs)
	if err != nil {
		writeError(w, r, err)
		return
	}
	if tags == nil {
		tags = []models.ActivityTag{}
	}
	writeJSON(w, http.StatusCreated, ActivityTagsResponse{Added: tags})
}

// Search handles GET /api/search.
//
//	@Summary		Full-text search across a user's records
//	@Tags			search
//	@Produce		json
//	@Param			user_id	query		int		true	"Owner"
//	@Param			q		query		string	true	"Search query"
//	@Param			limit	query		int		false	"Max results"
//	@Success		200		{object}	SearchResponse
//	@Failure		400		{object}	errResponse
//	@Security		BearerAuth
//	@Router			/search [get]
func (h *Handler) Search(w http.ResponseWriter, r *http.Request) {
	q := r.URL.Query()
	userID, err := positiveID("user_id", q.Get("user_id"))
	if err != nil {
		writeError(w, r, err)
		return
	}
	limit, _ := strconv.Atoi(q.Get("limit"))
	hits, err := h.records.Search(r.Context(), userID, q.Get("q"), limit)
	if err != nil {
		writeError(w, r, err)
		return
	}
	if hits == nil {
		hits = []models.SearchHit{}
	}
	writeJSON(w, http.StatusOK, SearchResponse{Results: hits})
}

// ListActivities handles GET /api/activities.
//
//	@Summary		List the activity catalog
//	@Tags			activities
//	@Produce		json
//	@Success		200	{object}	ActivityListResponse
//	@Security		BearerAuth
//	@Router			/activities [get]
func (h *Handler) ListActivities(w http.ResponseWriter, r *http.Request) {
	items, err := h.records.Activities(r.Context())
	if err != nil {
		writeError(w, r, err)
		return
	}
	if items == nil {
		items = []models.Activity{}
	}
	writeJSON(w, http.StatusOK, ActivityListResponse{Activities: items})
}

// NameActivity handles PUT /api/activities/{id}.
//
//	@Summary		Create or rename a catalog activity
//	@Tags			activities
//	@Accept			json
//	@Produce		json
//	@Param			id		path		int						true	"Activity id"
//	@Param			body	body		NameActivityRequest		true	"Display name"
//	@Success		200		{object}	models.Activity
//	@Failure		400		{object}	errResponse
//	@Security		BearerAuth
//	@Router			/activities/{id} [put]
func (h *Handler) NameActivity(w http.ResponseWriter, r *http.Request) {
	id, err := positiveID("id", chi.URLParam(r, "id"))
	if err != nil {
		writeError(w, r, err)
		return
	}
	var req NameActivityRequest
	if err := decodeJSON(w, r, &req); err != nil {
		writeError(w, r, err)
		return
	}
	a := models.Activity{ID: id, Name: req.Name}
	if err := h.records.NameActivity(r.Context(), a); err != nil {
		writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, a)
}
