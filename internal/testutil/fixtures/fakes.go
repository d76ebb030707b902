// Package fixtures provides in-memory fakes for the collaborator
// boundaries, used across the test suites.
package fixtures

import (
	"context"
	"strings"
	"sync"
	"time"

	"github.com/mshogin/assistant/internal/domain/models"
)

// FakeProvider is a scriptable LanguageProvider.
type FakeProvider struct {
	ProviderName string
	ClassifyFn   func(ctx context.Context, message string) (*models.IntentResult, error)
	ExtractFn    func(ctx context.Context, message string, intent models.Intent) (*models.EntityBag, error)
	HealthErr    error
}

func (p *FakeProvider) Name() string {
	if p.ProviderName == "" {
		return "fake"
	}
	return p.ProviderName
}

func (p *FakeProvider) ClassifyIntent(ctx context.Context, message string) (*models.IntentResult, error) {
	if p.ClassifyFn == nil {
		return nil, nil
	}
	return p.ClassifyFn(ctx, message)
}

func (p *FakeProvider) ExtractEntities(ctx context.Context, message string, intent models.Intent) (*models.EntityBag, error) {
	if p.ExtractFn == nil {
		return nil, nil
	}
	return p.ExtractFn(ctx, message, intent)
}

func (p *FakeProvider) CheckHealth(ctx context.Context) error {
	return p.HealthErr
}

// CreatedEvent records one CreateEvent call.
type CreatedEvent struct {
	Summary     string
	Start       time.Time
	End         time.Time
	Description string
	Location    string
	Attendees   []string
	Notify      bool
}

// FakeCalendar is an in-memory Calendar with scriptable failures.
type FakeCalendar struct {
	mu      sync.Mutex
	Events  []models.Event
	ListErr error

	CreateResult *models.CreateEventResult
	CreateErr    error
	Created      []CreatedEvent

	Next    *models.Event
	NextErr error
}

func (c *FakeCalendar) CreateEvent(_ context.Context, summary string, start, end time.Time, description, location string, attendees []string, notify bool) (*models.CreateEventResult, error) {
	c.mu.Lock()
	defer c.mu.Unlock()

	c.Created = append(c.Created, CreatedEvent{
		Summary:     summary,
		Start:       start,
		End:         end,
		Description: description,
		Location:    location,
		Attendees:   attendees,
		Notify:      notify,
	})
	if c.CreateErr != nil {
		return nil, c.CreateErr
	}
	if c.CreateResult != nil {
		return c.CreateResult, nil
	}
	return &models.CreateEventResult{Success: true, EventID: "evt-1", Link: "https://calendar.example/evt-1"}, nil
}

func (c *FakeCalendar) ListEvents(_ context.Context, start, end time.Time, maxResults int) ([]models.Event, error) {
	c.mu.Lock()
	defer c.mu.Unlock()

	if c.ListErr != nil {
		return nil, c.ListErr
	}
	window := models.TimeSlot{Start: start, End: end}
	var matched []models.Event
	for _, event := range c.Events {
		if window.Overlaps(models.TimeSlot{Start: event.Start, End: event.End}) {
			matched = append(matched, event)
			if maxResults > 0 && len(matched) >= maxResults {
				break
			}
		}
	}
	return matched, nil
}

func (c *FakeCalendar) NextEvent(_ context.Context) (*models.Event, error) {
	if c.NextErr != nil {
		return nil, c.NextErr
	}
	return c.Next, nil
}

// FakeContacts is an in-memory ContactSource keyed by lowercased name.
type FakeContacts struct {
	Contacts map[string]models.ContactRef
	Err      error
}

func (c *FakeContacts) FindByName(_ context.Context, name string) (*models.ContactRef, error) {
	if c.Err != nil {
		return nil, c.Err
	}
	if contact, ok := c.Contacts[strings.ToLower(name)]; ok {
		return &contact, nil
	}
	return nil, nil
}

func (c *FakeContacts) Search(_ context.Context, query string) ([]models.ContactRef, error) {
	if c.Err != nil {
		return nil, c.Err
	}
	var results []models.ContactRef
	lower := strings.ToLower(query)
	for name, contact := range c.Contacts {
		if strings.Contains(name, lower) {
			results = append(results, contact)
		}
	}
	return results, nil
}

// SentEmail records one Send call.
type SentEmail struct {
	To      string
	Subject string
	Body    string
}

// FakeEmail is a recording EmailSender.
type FakeEmail struct {
	mu     sync.Mutex
	Sent   []SentEmail
	Result *models.SendEmailResult
	Err    error
}

func (e *FakeEmail) Send(_ context.Context, to, subject, body string) (*models.SendEmailResult, error) {
	e.mu.Lock()
	defer e.mu.Unlock()

	e.Sent = append(e.Sent, SentEmail{To: to, Subject: subject, Body: body})
	if e.Err != nil {
		return nil, e.Err
	}
	if e.Result != nil {
		return e.Result, nil
	}
	return &models.SendEmailResult{Success: true}, nil
}

// FakeSyncer returns a scripted synchronization result.
type FakeSyncer struct {
	Result models.SyncResult
	Calls  int
}

func (s *FakeSyncer) SyncContacts(_ context.Context) models.SyncResult {
	s.Calls++
	return s.Result
}

// FakeTransport records every delivered message.
type FakeTransport struct {
	mu        sync.Mutex
	Delivered []string
	Err       error
}

func (t *FakeTransport) Deliver(_ context.Context, recipientID, text string) error {
	t.mu.Lock()
	defer t.mu.Unlock()

	t.Delivered = append(t.Delivered, text)
	return t.Err
}

// Last returns the most recently delivered message, or "".
func (t *FakeTransport) Last() string {
	t.mu.Lock()
	defer t.mu.Unlock()

	if len(t.Delivered) == 0 {
		return ""
	}
	return t.Delivered[len(t.Delivered)-1]
}

// Count returns the number of delivered messages.
func (t *FakeTransport) Count() int {
	t.mu.Lock()
	defer t.mu.Unlock()
	return len(t.Delivered)
}
