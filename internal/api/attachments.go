package api

import (
	"bytes"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"

	"github.com/starford/moodlog/internal/apperr"
	"github.com/starford/moodlog/internal/recordservice"
)

// multipart overhead allowed on top of the file itself
const uploadSlack = 1 << 20

// UploadFile handles POST /api/records/{id}/files (multipart/form-data, field "file").
//
//	@Summary		Attach a file to a record
//	@Tags			attachments
//	@Accept			multipart/form-data
//	@Produce		json
//	@Param			id		path		int		true	"Record id"
//	@Param			file	formData	file	true	"File to attach"
//	@Success		201		{object}	models.File
//	@Failure		400		{object}	errResponse
//	@Failure		404		{object}	errResponse
//	@Security		BearerAuth
//	@Router			/records/{id}/files [post]
func (h *Handler) UploadFile(w http.ResponseWriter, r *http.Request) {
	id, err := recordID(r)
	if err != nil {
		writeError(w, r, err)
		return
	}
	r.Body = http.MaxBytesReader(w, r.Body, recordservice.MaxAttachmentBytes+uploadSlack)
	if err := r.ParseMultipartForm(32 << 20); err != nil {
		writeError(w, r, apperr.Invalid("file", "file too large or invalid multipart"))
		return
	}
	file, header, err := r.FormFile("file")
	if err != nil {
		writeError(w, r, apperr.Invalid("file", "missing 'file' field in multipart form"))
		return
	}
	defer file.Close()

	f, err := h.records.AttachFile(r.Context(), id, header.Filename, header.Header.Get("Content-Type"), file)
	if err != nil {
		writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusCreated, f)
}

// ServeAttachment handles GET /api/attachments/{key}.
func (h *Handler) ServeAttachment(w http.ResponseWriter, r *http.Request) {
	key := chi.URLParam(r, "key")
	data, err := h.records.ReadAttachment(key)
	if err != nil {
		writeError(w, r, err)
		return
	}
	http.ServeContent(w, r, key, time.Time{}, bytes.NewReader(data))
}
