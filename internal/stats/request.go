package stats

import (
	"errors"
	"regexp"
	"strconv"
	"time"

	validation "github.com/go-ozzo/ozzo-validation/v4"

	"github.com/starford/moodlog/internal/apperr"
	"github.com/starford/moodlog/internal/calendar"
)

// DefaultTimezone applies when a request names no timezone.
const DefaultTimezone = "UTC"

var digitsRe = regexp.MustCompile(`^[0-9]+$`)

// Request identifies whose statistics to compute and for which local month.
// A zero Year or Month means "the current one in Location".
type Request struct {
	UserID   int64
	Location *time.Location
	Year     int
	Month    time.Month
}

// ParseRequest validates raw request values. month is 1-12 and both month and
// year may be empty. An empty timezone means UTC.
func ParseRequest(userID, timezone, month, year string) (Request, error) {
	var req Request

	if err := validation.Validate(userID,
		validation.Required.Error("user ID is required"),
		validation.Match(digitsRe).Error("invalid user ID format"),
	); err != nil {
		return Request{}, &apperr.ValidationError{Field: "user_id", Err: err}
	}
	id, err := strconv.ParseInt(userID, 10, 64)
	if err != nil {
		return Request{}, &apperr.ValidationError{Field: "user_id", Err: errors.New("invalid user ID format")}
	}
	req.UserID = id

	if month != "" {
		m, err := parseBounded(month, 1, 12, "month must be between 1 and 12")
		if err != nil {
			return Request{}, &apperr.ValidationError{Field: "month", Err: err}
		}
		req.Month = time.Month(m)
	}
	if year != "" {
		y, err := parseBounded(year, 1, 9999, "year must be between 1 and 9999")
		if err != nil {
			return Request{}, &apperr.ValidationError{Field: "year", Err: err}
		}
		req.Year = y
	}

	if timezone == "" {
		timezone = DefaultTimezone
	}
	loc, err := calendar.LoadZone(timezone)
	if err != nil {
		return Request{}, err
	}
	req.Location = loc
	return req, nil
}

func parseBounded(raw string, lo, hi int, msg string) (int, error) {
	if err := validation.Validate(raw, validation.Match(digitsRe).Error(msg)); err != nil {
		return 0, err
	}
	n, err := strconv.Atoi(raw)
	if err != nil {
		return 0, errors.New(msg)
	}
	if err := validation.Validate(n,
		validation.Required.Error(msg),
		validation.Min(lo).Error(msg),
		validation.Max(hi).Error(msg),
	); err != nil {
		return 0, err
	}
	return n, nil
}
