package stats

import (
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"github.com/starford/moodlog/internal/apperr"
)

func TestParseRequest(t *testing.T) {
	req, err := ParseRequest("42", "Asia/Ho_Chi_Minh", "3", "2024")
	require.NoError(t, err)
	require.Equal(t, int64(42), req.UserID)
	require.Equal(t, time.March, req.Month)
	require.Equal(t, 2024, req.Year)
	require.Equal(t, "Asia/Ho_Chi_Minh", req.Location.String())
}

func TestParseRequest_Defaults(t *testing.T) {
	req, err := ParseRequest("7", "", "", "")
	require.NoError(t, err)
	require.Equal(t, time.UTC, req.Location)
	require.Zero(t, req.Month)
	require.Zero(t, req.Year)
}

func TestParseRequest_Invalid(t *testing.T) {
	cases := []struct {
		name                  string
		user, tz, month, year string
		field, msg            string
	}{
		{name: "missing user", user: "", field: "user_id", msg: "user ID is required"},
		{name: "non numeric user", user: "abc", field: "user_id", msg: "invalid user ID format"},
		{name: "negative user", user: "-1", field: "user_id", msg: "invalid user ID format"},
		{name: "month zero", user: "1", month: "0", field: "month", msg: "month must be between 1 and 12"},
		{name: "month 13", user: "1", month: "13", field: "month", msg: "month must be between 1 and 12"},
		{name: "month text", user: "1", month: "march", field: "month", msg: "month must be between 1 and 12"},
		{name: "year zero", user: "1", year: "0", field: "year", msg: "year must be between 1 and 9999"},
		{name: "year too big", user: "1", year: "10000", field: "year", msg: "year must be between 1 and 9999"},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			_, err := ParseRequest(tc.user, tc.tz, tc.month, tc.year)
			require.Error(t, err)
			var ve *apperr.ValidationError
			require.True(t, errors.As(err, &ve), "got %T", err)
			require.Equal(t, tc.field, ve.Field)
			require.Equal(t, tc.msg, ve.Err.Error())
			require.True(t, apperr.IsClientError(err))
		})
	}
}

func TestParseRequest_UnknownTimezone(t *testing.T) {
	_, err := ParseRequest("1", "Nowhere/Atlantis", "", "")
	var ce *apperr.ConfigurationError
	require.True(t, errors.As(err, &ce), "got %T", err)
	require.True(t, apperr.IsClientError(err))
}
