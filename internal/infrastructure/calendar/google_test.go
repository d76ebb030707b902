package calendar

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/mshogin/assistant/internal/infrastructure/googleauth"
	"github.com/mshogin/assistant/internal/infrastructure/logging"
)

func testTokenSource(t *testing.T) *googleauth.TokenSource {
	t.Helper()
	path := filepath.Join(t.TempDir(), "token.json")
	content := fmt.Sprintf(`{"access_token": "test-token", "expiry": %q}`,
		time.Now().Add(time.Hour).Format(time.RFC3339))
	require.NoError(t, os.WriteFile(path, []byte(content), 0o600))
	return googleauth.NewTokenSource(path)
}

func testCalendar(t *testing.T, handler http.HandlerFunc) *GoogleCalendar {
	t.Helper()
	server := httptest.NewServer(handler)
	t.Cleanup(server.Close)

	c := NewGoogleCalendar("primary", testTokenSource(t),
		logging.NewStructuredLogger(io.Discard, logging.ErrorLevel))
	c.baseURL = server.URL
	return c
}

func TestCreateEvent(t *testing.T) {
	var gotQuery string
	var gotEvent wireEvent

	c := testCalendar(t, func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, http.MethodPost, r.Method)
		assert.Equal(t, "/calendars/primary/events", r.URL.Path)
		assert.Equal(t, "Bearer test-token", r.Header.Get("Authorization"))
		gotQuery = r.URL.RawQuery

		data, _ := io.ReadAll(r.Body)
		json.Unmarshal(data, &gotEvent)

		json.NewEncoder(w).Encode(wireEvent{
			ID:       "evt-42",
			HTMLLink: "https://calendar.google.com/event?eid=42",
		})
	})

	start := time.Date(2025, 3, 11, 15, 0, 0, 0, time.UTC)
	result, err := c.CreateEvent(context.Background(), "Meeting with Dana",
		start, start.Add(30*time.Minute), "notes", "HQ", []string{"dana@example.com"}, true)
	require.NoError(t, err)

	assert.True(t, result.Success)
	assert.Equal(t, "evt-42", result.EventID)
	assert.Equal(t, "https://calendar.google.com/event?eid=42", result.Link)

	assert.Equal(t, "sendUpdates=all", gotQuery)
	assert.Equal(t, "Meeting with Dana", gotEvent.Summary)
	assert.Equal(t, "2025-03-11T15:00:00Z", gotEvent.Start.DateTime)
	require.Len(t, gotEvent.Attendees, 1)
	assert.Equal(t, "dana@example.com", gotEvent.Attendees[0].Email)
}

func TestCreateEventAPIFailureIsAResult(t *testing.T) {
	c := testCalendar(t, func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusForbidden)
	})

	start := time.Date(2025, 3, 11, 15, 0, 0, 0, time.UTC)
	result, err := c.CreateEvent(context.Background(), "x",
		start, start.Add(time.Hour), "", "", nil, false)

	// API-level failure is part of the result, not a transport error.
	require.NoError(t, err)
	assert.False(t, result.Success)
	assert.Contains(t, result.Error, "status 403")
}

func TestListEvents(t *testing.T) {
	c := testCalendar(t, func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "true", r.URL.Query().Get("singleEvents"))
		assert.Equal(t, "startTime", r.URL.Query().Get("orderBy"))
		assert.Equal(t, "10", r.URL.Query().Get("maxResults"))

		json.NewEncoder(w).Encode(wireEventList{Items: []wireEvent{
			{
				ID:      "e1",
				Summary: "Standup",
				Start:   wireEventTime{DateTime: "2025-03-11T10:00:00Z"},
				End:     wireEventTime{DateTime: "2025-03-11T10:30:00Z"},
			},
			{
				ID:      "e2",
				Summary: "Offsite",
				Start:   wireEventTime{Date: "2025-03-11"},
				End:     wireEventTime{Date: "2025-03-12"},
			},
			{
				ID:      "broken",
				Summary: "No start",
			},
		}})
	})

	start := time.Date(2025, 3, 11, 0, 0, 0, 0, time.UTC)
	events, err := c.ListEvents(context.Background(), start, start.Add(24*time.Hour), 10)
	require.NoError(t, err)

	// The entry without a parseable start is dropped.
	require.Len(t, events, 2)
	assert.Equal(t, "Standup", events[0].Summary)
	assert.Equal(t, time.Date(2025, 3, 11, 10, 0, 0, 0, time.UTC), events[0].Start)
	assert.Equal(t, "Offsite", events[1].Summary)
}

func TestListEventsAPIError(t *testing.T) {
	c := testCalendar(t, func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusInternalServerError)
	})

	start := time.Date(2025, 3, 11, 0, 0, 0, 0, time.UTC)
	_, err := c.ListEvents(context.Background(), start, start.Add(time.Hour), 10)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "status 500")
}

func TestNextEventEmpty(t *testing.T) {
	c := testCalendar(t, func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "1", r.URL.Query().Get("maxResults"))
		json.NewEncoder(w).Encode(wireEventList{})
	})

	event, err := c.NextEvent(context.Background())
	require.NoError(t, err)
	assert.Nil(t, event)
}
