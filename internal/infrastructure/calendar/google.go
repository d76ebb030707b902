package calendar

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strconv"
	"time"

	"github.com/mshogin/assistant/internal/domain/models"
	"github.com/mshogin/assistant/internal/infrastructure/googleauth"
	"github.com/mshogin/assistant/internal/infrastructure/logging"
)

const defaultBaseURL = "https://www.googleapis.com/calendar/v3"

// GoogleCalendar implements the Calendar boundary against the Google
// Calendar REST API.
type GoogleCalendar struct {
	baseURL    string
	calendarID string
	tokens     *googleauth.TokenSource
	httpClient *http.Client
	logger     *logging.StructuredLogger
}

// NewGoogleCalendar creates a calendar client. calendarID is usually
// "primary".
func NewGoogleCalendar(calendarID string, tokens *googleauth.TokenSource, logger *logging.StructuredLogger) *GoogleCalendar {
	if calendarID == "" {
		calendarID = "primary"
	}
	if logger == nil {
		logger = logging.GetDefaultLogger()
	}
	return &GoogleCalendar{
		baseURL:    defaultBaseURL,
		calendarID: calendarID,
		tokens:     tokens,
		httpClient: &http.Client{Timeout: 30 * time.Second},
		logger:     logger,
	}
}

type wireEventTime struct {
	DateTime string `json:"dateTime,omitempty"`
	Date     string `json:"date,omitempty"`
	TimeZone string `json:"timeZone,omitempty"`
}

type wireAttendee struct {
	Email string `json:"email"`
}

type wireEvent struct {
	ID          string         `json:"id,omitempty"`
	Summary     string         `json:"summary,omitempty"`
	Description string         `json:"description,omitempty"`
	Location    string         `json:"location,omitempty"`
	HTMLLink    string         `json:"htmlLink,omitempty"`
	Start       wireEventTime  `json:"start"`
	End         wireEventTime  `json:"end"`
	Attendees   []wireAttendee `json:"attendees,omitempty"`
}

type wireEventList struct {
	Items []wireEvent `json:"items"`
}

// CreateEvent inserts an event. API-level failures are reported in the
// result; only request construction and transport failures return an
// error.
func (c *GoogleCalendar) CreateEvent(ctx context.Context, summary string, start, end time.Time, description, location string, attendees []string, notify bool) (*models.CreateEventResult, error) {
	event := wireEvent{
		Summary:     summary,
		Description: description,
		Location:    location,
		Start:       wireEventTime{DateTime: start.Format(time.RFC3339)},
		End:         wireEventTime{DateTime: end.Format(time.RFC3339)},
	}
	for _, email := range attendees {
		event.Attendees = append(event.Attendees, wireAttendee{Email: email})
	}

	sendUpdates := "none"
	if notify {
		sendUpdates = "all"
	}
	endpoint := fmt.Sprintf("%s/calendars/%s/events?sendUpdates=%s",
		c.baseURL, url.PathEscape(c.calendarID), sendUpdates)

	body, err := json.Marshal(event)
	if err != nil {
		return nil, err
	}

	data, status, err := c.do(ctx, http.MethodPost, endpoint, bytes.NewReader(body))
	if err != nil {
		return nil, err
	}
	if status != http.StatusOK {
		c.logger.Error("event insert failed", fmt.Errorf("status %d", status), map[string]interface{}{
			"body": string(data),
		})
		return &models.CreateEventResult{
			Success: false,
			Error:   fmt.Sprintf("Calendar API error: status %d", status),
		}, nil
	}

	var created wireEvent
	if err := json.Unmarshal(data, &created); err != nil {
		return nil, fmt.Errorf("failed to decode created event: %w", err)
	}
	return &models.CreateEventResult{
		Success: true,
		EventID: created.ID,
		Link:    created.HTMLLink,
	}, nil
}

// ListEvents returns events overlapping [start, end), ordered by start.
func (c *GoogleCalendar) ListEvents(ctx context.Context, start, end time.Time, maxResults int) ([]models.Event, error) {
	if maxResults <= 0 {
		maxResults = 10
	}

	query := url.Values{}
	query.Set("timeMin", start.Format(time.RFC3339))
	query.Set("timeMax", end.Format(time.RFC3339))
	query.Set("maxResults", strconv.Itoa(maxResults))
	query.Set("singleEvents", "true")
	query.Set("orderBy", "startTime")

	return c.listEvents(ctx, query)
}

// NextEvent returns the next upcoming event, or nil when there is none.
func (c *GoogleCalendar) NextEvent(ctx context.Context) (*models.Event, error) {
	query := url.Values{}
	query.Set("timeMin", time.Now().Format(time.RFC3339))
	query.Set("maxResults", "1")
	query.Set("singleEvents", "true")
	query.Set("orderBy", "startTime")

	events, err := c.listEvents(ctx, query)
	if err != nil {
		return nil, err
	}
	if len(events) == 0 {
		return nil, nil
	}
	return &events[0], nil
}

func (c *GoogleCalendar) listEvents(ctx context.Context, query url.Values) ([]models.Event, error) {
	endpoint := fmt.Sprintf("%s/calendars/%s/events?%s",
		c.baseURL, url.PathEscape(c.calendarID), query.Encode())

	data, status, err := c.do(ctx, http.MethodGet, endpoint, nil)
	if err != nil {
		return nil, err
	}
	if status != http.StatusOK {
		return nil, fmt.Errorf("calendar API error: status %d", status)
	}

	var list wireEventList
	if err := json.Unmarshal(data, &list); err != nil {
		return nil, fmt.Errorf("failed to decode event list: %w", err)
	}

	events := make([]models.Event, 0, len(list.Items))
	for _, item := range list.Items {
		start, ok := parseEventTime(item.Start)
		if !ok {
			continue
		}
		end, ok := parseEventTime(item.End)
		if !ok {
			end = start
		}
		events = append(events, models.Event{
			ID:          item.ID,
			Summary:     item.Summary,
			Start:       start,
			End:         end,
			Description: item.Description,
			Location:    item.Location,
			Link:        item.HTMLLink,
		})
	}
	return events, nil
}

func (c *GoogleCalendar) do(ctx context.Context, method, endpoint string, body io.Reader) ([]byte, int, error) {
	token, err := c.tokens.Token()
	if err != nil {
		return nil, 0, err
	}

	req, err := http.NewRequestWithContext(ctx, method, endpoint, body)
	if err != nil {
		return nil, 0, err
	}
	req.Header.Set("Authorization", "Bearer "+token)
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return nil, 0, err
	}
	defer resp.Body.Close()

	data, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, resp.StatusCode, err
	}
	return data, resp.StatusCode, nil
}

// parseEventTime handles both timed events (dateTime) and all-day
// events (date).
func parseEventTime(t wireEventTime) (time.Time, bool) {
	if t.DateTime != "" {
		parsed, err := time.Parse(time.RFC3339, t.DateTime)
		if err == nil {
			return parsed, true
		}
	}
	if t.Date != "" {
		parsed, err := time.ParseInLocation("2006-01-02", t.Date, time.Local)
		if err == nil {
			return parsed, true
		}
	}
	return time.Time{}, false
}
