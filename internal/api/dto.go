package api

import (
	"github.com/starford/moodlog/internal/models"
	"github.com/starford/moodlog/internal/recordservice"
)

// CreateRecordRequest is the request body for creating a record.
type CreateRecordRequest = recordservice.CreateInput

// UpdateRecordRequest is the request body for a partial record update.
type UpdateRecordRequest = recordservice.UpdateInput

// RecordListResponse wraps a user's records.
type RecordListResponse struct {
	Records []models.Record `json:"records" validate:"required"`
	Total   int             `json:"total" example:"42" validate:"required"`
}

// AddActivitiesRequest is the request body for tagging a record.
type AddActivitiesRequest struct {
	ActivityIDs []int64 `json:"activity_ids" example:"1,4" validate:"required"`
}

// ActivityTagsResponse lists the tags that were actually added.
type ActivityTagsResponse struct {
	Added []models.ActivityTag `json:"added" validate:"required"`
}

// NameActivityRequest is the request body for naming a catalog activity.
type NameActivityRequest struct {
	Name string `json:"name" example:"Running" validate:"required"`
}

// ActivityListResponse wraps the activity catalog.
type ActivityListResponse struct {
	Activities []models.Activity `json:"activities" validate:"required"`
}

// SearchResponse wraps search results.
type SearchResponse struct {
	Results []models.SearchHit `json:"results" validate:"required"`
}
