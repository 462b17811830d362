// Package recordservice coordinates journal record persistence, attachment
// blobs and change notifications.
package recordservice

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"
	"time"

	validation "github.com/go-ozzo/ozzo-validation/v4"
	"github.com/google/uuid"

	"github.com/starford/moodlog/internal/apperr"
	"github.com/starford/moodlog/internal/checksum"
	"github.com/starford/moodlog/internal/entryfmt"
	"github.com/starford/moodlog/internal/models"
	"github.com/starford/moodlog/internal/observability"
	"github.com/starford/moodlog/internal/recordstore"
	"github.com/starford/moodlog/internal/storage"
)

// MaxAttachmentBytes caps a single uploaded file.
const MaxAttachmentBytes = 50 << 20 // 50 MB

// AttachmentURLPrefix is where blobs are served.
const AttachmentURLPrefix = "/api/attachments/"

// Notifier receives record change events.
type Notifier func(ev models.RecordEvent)

// Service coordinates the record store and blob storage.
type Service struct {
	db     recordstore.Store
	blobs  storage.Provider
	notify Notifier
	now    func() time.Time
}

// Option configures a Service.
type Option func(*Service)

// WithNotifier registers a change listener. Multiple notifiers are all called.
func WithNotifier(n Notifier) Option {
	return func(s *Service) {
		if n == nil {
			return
		}
		prev := s.notify
		s.notify = func(ev models.RecordEvent) {
			if prev != nil {
				prev(ev)
			}
			n(ev)
		}
	}
}

// WithClock overrides the source of "now".
func WithClock(now func() time.Time) Option {
	return func(s *Service) { s.now = now }
}

// NewService creates a new record service.
func NewService(db recordstore.Store, blobs storage.Provider, opts ...Option) *Service {
	s := &Service{db: db, blobs: blobs, now: time.Now}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// CreateInput is the payload of a new record.
type CreateInput struct {
	UserID      int64      `json:"user_id"`
	MoodID      *int64     `json:"mood_id"`
	Date        *time.Time `json:"date"`
	Title       string     `json:"title"`
	Content     string     `json:"content"`
	Status      string     `json:"status"`
	ActivityIDs []int64    `json:"activity_ids"`
}

// Validate checks the input.
func (in *CreateInput) Validate() error {
	return validation.ValidateStruct(in,
		validation.Field(&in.UserID, validation.Required.Error("user ID is required"), validation.Min(int64(1))),
		validation.Field(&in.MoodID, validation.Min(int64(1))),
		validation.Field(&in.Title, validation.Length(0, 255)),
		validation.Field(&in.Status, validation.In(models.StatusActive, models.StatusInactive)),
		validation.Field(&in.ActivityIDs, validation.Each(validation.Min(int64(1)))),
	)
}

// UpdateInput is a partial update. Nil fields are left untouched.
type UpdateInput struct {
	MoodID      *int64        `json:"mood_id"`
	Date        *time.Time    `json:"date"`
	Title       *string       `json:"title"`
	Content     *string       `json:"content"`
	Status      *string       `json:"status"`
	ActivityIDs []int64       `json:"activity_ids"`
	NewFiles    []models.File `json:"new_files"`
}

// Validate checks the input.
func (in *UpdateInput) Validate() error {
	return validation.ValidateStruct(in,
		validation.Field(&in.MoodID, validation.Min(int64(1))),
		validation.Field(&in.Title, validation.Length(0, 255)),
		validation.Field(&in.Status, validation.In(models.StatusActive, models.StatusInactive)),
		validation.Field(&in.ActivityIDs, validation.Each(validation.Min(int64(1)))),
	)
}

func invalid(err error) error {
	return &apperr.ValidationError{Err: err}
}

// Create stores a new record.
func (s *Service) Create(ctx context.Context, in CreateInput) (*models.Record, error) {
	in.Status = strings.ToUpper(strings.TrimSpace(in.Status))
	if err := in.Validate(); err != nil {
		return nil, invalid(err)
	}
	r := &models.Record{
		UserID:      in.UserID,
		MoodID:      in.MoodID,
		Title:       in.Title,
		Content:     in.Content,
		Status:      in.Status,
		ActivityIDs: in.ActivityIDs,
	}
	if in.Date != nil {
		r.Date = *in.Date
	} else {
		r.Date = s.now().UTC()
	}
	if err := s.db.CreateRecord(ctx, r); err != nil {
		return nil, err
	}
	s.changed(models.EventRecordCreated, r)
	return r, nil
}

// CreateFromEntry parses a Markdown entry and stores it for userID. Dates in
// the entry without an offset are read in loc.
func (s *Service) CreateFromEntry(ctx context.Context, userID int64, data []byte, loc *time.Location) (*models.Record, error) {
	e, err := entryfmt.Parse(data, loc)
	if err != nil {
		return nil, err
	}
	in := CreateInput{
		UserID:      userID,
		MoodID:      e.MoodID,
		Title:       e.Title,
		Content:     e.Body,
		Status:      e.Status,
		ActivityIDs: e.ActivityIDs,
	}
	if !e.Date.IsZero() {
		in.Date = &e.Date
	}
	return s.Create(ctx, in)
}

// List returns the user's records, newest first.
func (s *Service) List(ctx context.Context, userID int64) ([]models.Record, error) {
	return s.db.ListRecords(ctx, userID)
}

// Get returns a record. When userID is non-zero, records owned by someone
// else are reported as not found.
func (s *Service) Get(ctx context.Context, id, userID int64) (*models.Record, error) {
	r, err := s.db.GetRecord(ctx, id)
	if err != nil {
		return nil, err
	}
	if userID != 0 && r.UserID != userID {
		return nil, apperr.ErrNotFound
	}
	return r, nil
}

// Update applies a partial update.
func (s *Service) Update(ctx context.Context, id int64, in UpdateInput) (*models.Record, error) {
	if in.Status != nil {
		st := strings.ToUpper(strings.TrimSpace(*in.Status))
		in.Status = &st
	}
	if err := in.Validate(); err != nil {
		return nil, invalid(err)
	}
	r, err := s.db.UpdateRecord(ctx, id, models.RecordPatch{
		MoodID:      in.MoodID,
		Date:        in.Date,
		Status:      in.Status,
		Title:       in.Title,
		Content:     in.Content,
		ActivityIDs: in.ActivityIDs,
		NewFiles:    in.NewFiles,
	})
	if err != nil {
		return nil, err
	}
	s.changed(models.EventRecordUpdated, r)
	return r, nil
}

// Delete removes a record and the blobs of its files.
func (s *Service) Delete(ctx context.Context, id int64) error {
	r, err := s.db.GetRecord(ctx, id)
	if err != nil {
		return err
	}
	files, err := s.db.DeleteRecord(ctx, id)
	if err != nil {
		return err
	}
	for _, f := range files {
		if f.Key == "" || !s.blobs.Exists(f.Key) {
			continue
		}
		if err := s.blobs.Delete(f.Key); err != nil {
			return fmt.Errorf("recordservice: delete blob %s: %w", f.Key, err)
		}
	}
	s.changed(models.EventRecordDeleted, r)
	return nil
}

// AddActivities tags a record, skipping tags it already has.
func (s *Service) AddActivities(ctx context.Context, id int64, activityIDs []int64) ([]models.ActivityTag, error) {
	if err := validation.Validate(activityIDs,
		validation.Required.Error("activity_ids is required"),
		validation.Each(validation.Min(int64(1))),
	); err != nil {
		return nil, &apperr.ValidationError{Field: "activity_ids", Err: err}
	}
	tags, err := s.db.AddActivities(ctx, id, activityIDs)
	if err != nil {
		return nil, err
	}
	if len(tags) > 0 {
		if r, getErr := s.db.GetRecord(ctx, id); getErr == nil {
			s.changed(models.EventRecordUpdated, r)
		}
	}
	return tags, nil
}

// AttachFile stores the content of src as a blob under a fresh key and links
// it to the record.
func (s *Service) AttachFile(ctx context.Context, recordID int64, name, contentType string, src io.Reader) (*models.File, error) {
	r, err := s.db.GetRecord(ctx, recordID)
	if err != nil {
		return nil, err
	}

	var buf bytes.Buffer
	sum, n, err := checksum.Copy(&buf, io.LimitReader(src, MaxAttachmentBytes+1))
	if err != nil {
		return nil, fmt.Errorf("recordservice: read upload: %w", err)
	}
	if n > MaxAttachmentBytes {
		return nil, apperr.Invalid("file", fmt.Sprintf("file too large (max %d bytes)", MaxAttachmentBytes))
	}
	if n == 0 {
		return nil, apperr.Invalid("file", "file is empty")
	}

	ext := strings.ToLower(filepath.Ext(filepath.Base(name)))
	if contentType == "" {
		contentType, _ = AttachmentKind(ext)
	}
	key := uuid.NewString() + ext
	if err := s.blobs.Write(key, buf.Bytes()); err != nil {
		return nil, fmt.Errorf("recordservice: store blob: %w", err)
	}

	f := &models.File{
		RecordID: recordID,
		UserID:   r.UserID,
		Name:     filepath.Base(name),
		Type:     contentType,
		URL:      AttachmentURLPrefix + key,
		Key:      key,
		Size:     n,
		Checksum: sum,
	}
	if err := s.db.AddFile(ctx, f); err != nil {
		_ = s.blobs.Delete(key)
		return nil, err
	}
	r.Files = append(r.Files, *f)
	s.changed(models.EventRecordUpdated, r)
	return f, nil
}

// ReadAttachment returns a stored blob.
func (s *Service) ReadAttachment(key string) ([]byte, error) {
	data, err := s.blobs.Read(key)
	if errors.Is(err, os.ErrNotExist) {
		return nil, apperr.ErrNotFound
	}
	if err != nil {
		return nil, apperr.Invalid("key", err.Error())
	}
	return data, nil
}

// Search runs a full-text search over the user's records.
func (s *Service) Search(ctx context.Context, userID int64, query string, limit int) ([]models.SearchHit, error) {
	if strings.TrimSpace(query) == "" {
		return nil, apperr.Invalid("q", "query is required")
	}
	return s.db.Search(ctx, userID, query, limit)
}

// Activities returns the activity catalog.
func (s *Service) Activities(ctx context.Context) ([]models.Activity, error) {
	return s.db.ListActivities(ctx)
}

// NameActivity creates or renames a catalog entry.
func (s *Service) NameActivity(ctx context.Context, a models.Activity) error {
	if err := validation.ValidateStruct(&a,
		validation.Field(&a.ID, validation.Required, validation.Min(int64(1))),
		validation.Field(&a.Name, validation.Required, validation.Length(1, 100)),
	); err != nil {
		return invalid(err)
	}
	return s.db.UpsertActivity(ctx, a)
}

func (s *Service) changed(kind string, r *models.Record) {
	observability.RecordWritten(s.now())
	if s.notify == nil {
		return
	}
	s.notify(models.RecordEvent{
		Kind:       kind,
		RecordID:   r.ID,
		UserID:     r.UserID,
		OccurredAt: s.now().UTC(),
	})
}
