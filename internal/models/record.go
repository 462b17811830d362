// Package models defines the domain types for moodlog.
package models

import "time"

// Record statuses.
const (
	StatusActive   = "ACTIVE"
	StatusInactive = "INACTIVE"
)

// Record is one journal entry: a dated mood plus the activities done around it.
type Record struct {
	ID          int64     `json:"id"`
	UserID      int64     `json:"user_id"`
	MoodID      *int64    `json:"mood_id"`
	Date        time.Time `json:"date"`
	Status      string    `json:"status"`
	Title       string    `json:"title"`
	Content     string    `json:"content"`
	ActivityIDs []int64   `json:"activity_ids"`
	Files       []File    `json:"files,omitempty"`
	CreatedAt   time.Time `json:"created_at"`
	UpdatedAt   time.Time `json:"updated_at"`
}

// HasMood reports whether the record carries a mood.
func (r Record) HasMood() bool { return r.MoodID != nil }

// RecordPatch carries a partial update. Nil fields are left untouched.
// A non-empty ActivityIDs replaces the record's tag set; NewFiles are appended.
type RecordPatch struct {
	MoodID      *int64
	Date        *time.Time
	Status      *string
	Title       *string
	Content     *string
	ActivityIDs []int64
	NewFiles    []File
}

// RecordQuery selects a user's records inside the half-open window [From, To).
type RecordQuery struct {
	UserID            int64
	From              time.Time
	To                time.Time
	IncludeActivities bool
}

// ActivityTag links a record to an activity.
type ActivityTag struct {
	RecordID   int64 `json:"record_id"`
	ActivityID int64 `json:"activity_id"`
}

// Activity is a catalog entry naming an activity id.
type Activity struct {
	ID   int64  `json:"id"`
	Name string `json:"name"`
}

// File is the bookkeeping row for an attachment blob.
type File struct {
	ID       int64    `json:"id"`
	RecordID int64    `json:"record_id"`
	UserID   int64    `json:"user_id"`
	Name     string   `json:"fname"`
	Type     string   `json:"type"`
	URL      string   `json:"url"`
	Key      string   `json:"fkey"`
	Size     int64    `json:"size"`
	Duration *float64 `json:"duration,omitempty"`
	Checksum string   `json:"checksum,omitempty"`
}

// BlobMetadata describes an attachment blob on disk.
type BlobMetadata struct {
	Key       string    `json:"key"`
	Checksum  string    `json:"checksum"`
	Size      int64     `json:"size"`
	UpdatedAt time.Time `json:"updated_at"`
}

// Record change kinds.
const (
	EventRecordCreated = "record.created"
	EventRecordUpdated = "record.updated"
	EventRecordDeleted = "record.deleted"
	EventFileDeleted   = "file.deleted"
)

// RecordEvent describes a change to a user's journal.
type RecordEvent struct {
	Kind       string    `json:"kind"`
	RecordID   int64     `json:"recordId"`
	UserID     int64     `json:"userId"`
	OccurredAt time.Time `json:"occurredAt"`
}

// SearchHit is one full-text search match.
type SearchHit struct {
	RecordID int64     `json:"record_id"`
	Title    string    `json:"title"`
	Snippet  string    `json:"snippet"`
	Date     time.Time `json:"date"`
}
