package services

import (
	"context"
	"time"

	"github.com/mshogin/assistant/internal/domain/models"
)

// LanguageProvider defines the interface for remote language understanding
// services. This interface follows the Dependency Inversion Principle (DIP) -
// it's defined in the domain layer and implemented in the infrastructure layer.
//
// Key design principles:
// - Small, focused interface (Interface Segregation Principle)
// - Easy to mock for testing
// - Provider-agnostic (supports OpenAI-compatible APIs, Ollama, etc.)
//
// Both methods are best-effort: a (nil, nil) return means the provider
// declined to answer and the caller must fall back to local strategies.
// A non-nil error is treated exactly like a decline by the NLP cascades;
// it exists only so callers can record the failure for diagnostics.
type LanguageProvider interface {
	// Name returns the provider's identifier (e.g., "openai", "ollama").
	Name() string

	// ClassifyIntent asks the provider to classify a message.
	ClassifyIntent(ctx context.Context, message string) (*models.IntentResult, error)

	// ExtractEntities asks the provider to extract entities from a message,
	// optionally scoped by a previously detected intent.
	ExtractEntities(ctx context.Context, message string, intent models.Intent) (*models.EntityBag, error)

	// CheckHealth verifies the provider is operational and credentials are valid.
	CheckHealth(ctx context.Context) error
}

// Calendar is the calendar collaborator boundary.
type Calendar interface {
	// CreateEvent inserts an event and optionally notifies attendees.
	// Failures are reported in the result, never as a panic.
	CreateEvent(ctx context.Context, summary string, start, end time.Time, description, location string, attendees []string, notify bool) (*models.CreateEventResult, error)

	// ListEvents returns events overlapping [start, end), ordered by start time.
	ListEvents(ctx context.Context, start, end time.Time, maxResults int) ([]models.Event, error)

	// NextEvent returns the next upcoming event, or nil when there is none.
	NextEvent(ctx context.Context) (*models.Event, error)
}

// ContactSource is a single source of contact records. The engine chains
// a primary remote source and a secondary local source; the first hit
// carrying an email address wins.
type ContactSource interface {
	// FindByName returns the best match for a name, or nil when not found.
	FindByName(ctx context.Context, name string) (*models.ContactRef, error)

	// Search returns every contact matching the query.
	Search(ctx context.Context, query string) ([]models.ContactRef, error)
}

// EmailSender is the outbound email collaborator boundary.
type EmailSender interface {
	Send(ctx context.Context, to, subject, body string) (*models.SendEmailResult, error)
}

// Transport delivers outbound text to a recipient. Delivery is
// fire-and-forget from the core's perspective: failures are the
// transport's concern and are only logged.
type Transport interface {
	Deliver(ctx context.Context, recipientID, text string) error
}

// AddressValidator validates email addresses and proposes corrections
// for common typos.
type AddressValidator interface {
	Validate(address string) models.AddressValidation
}

// ContactsSyncer copies contacts from a remote source into the local
// cache. Large sources may sync in batches; Complete reports whether a
// follow-up run is needed.
type ContactsSyncer interface {
	SyncContacts(ctx context.Context) models.SyncResult
}
