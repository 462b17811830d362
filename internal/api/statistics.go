package api

import (
	"net/http"

	"github.com/starford/moodlog/internal/stats"
)

func statsRequest(r *http.Request) (stats.Request, error) {
	q := r.URL.Query()
	return stats.ParseRequest(q.Get("user_id"), q.Get("timezone"), q.Get("month"), q.Get("year"))
}

// MoodStatistics handles GET /api/statistics/mood.
//
//	@Summary		Weekly and monthly mood distribution in the user's timezone
//	@Tags			statistics
//	@Produce		json
//	@Param			user_id		query		int		true	"User"
//	@Param			timezone	query		string	false	"IANA zone, default UTC"
//	@Param			month		query		int		false	"1-12, default current"
//	@Param			year		query		int		false	"Default current"
//	@Success		200			{object}	stats.MoodReport
//	@Failure		400			{object}	errResponse
//	@Failure		503			{object}	errResponse
//	@Security		BearerAuth
//	@Router			/statistics/mood [get]
func (h *Handler) MoodStatistics(w http.ResponseWriter, r *http.Request) {
	req, err := statsRequest(r)
	if err != nil {
		writeError(w, r, err)
		return
	}
	report, err := h.stats.MoodStatistics(r.Context(), req)
	if err != nil {
		writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, report)
}

// ActivityStatistics handles GET /api/statistics/activity.
//
//	@Summary		Per-day activity counts for a month in the user's timezone
//	@Tags			statistics
//	@Produce		json
//	@Param			user_id		query		int		true	"User"
//	@Param			timezone	query		string	false	"IANA zone, default UTC"
//	@Param			month		query		int		false	"1-12, default current"
//	@Param			year		query		int		false	"Default current"
//	@Success		200			{object}	stats.ActivityReport
//	@Failure		400			{object}	errResponse
//	@Failure		503			{object}	errResponse
//	@Security		BearerAuth
//	@Router			/statistics/activity [get]
func (h *Handler) ActivityStatistics(w http.ResponseWriter, r *http.Request) {
	req, err := statsRequest(r)
	if err != nil {
		writeError(w, r, err)
		return
	}
	report, err := h.stats.ActivityStatistics(r.Context(), req)
	if err != nil {
		writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, report)
}
