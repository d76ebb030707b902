package services

import (
	"context"

	"github.com/mshogin/assistant/internal/domain/models"
	"github.com/mshogin/assistant/internal/domain/services"
	"github.com/mshogin/assistant/internal/infrastructure/logging"
)

// ContactLookup chains contact sources in priority order.
//
// The primary source is typically remote (Google People) and the
// secondary a local cache. Each source yields an explicit outcome; the
// first hit that carries an email address wins, and source failures
// only advance the chain, they never abort it.
type ContactLookup struct {
	sources []services.ContactSource
	logger  *logging.StructuredLogger
}

// NewContactLookup creates a lookup chain over the given sources, tried
// in order.
func NewContactLookup(logger *logging.StructuredLogger, sources ...services.ContactSource) *ContactLookup {
	if logger == nil {
		logger = logging.GetDefaultLogger()
	}
	return &ContactLookup{sources: sources, logger: logger}
}

// ResolveEmail resolves a name to a contact with an email address.
// Returns models.ErrContactNotFound when no source produced one.
func (c *ContactLookup) ResolveEmail(ctx context.Context, name string) (*models.ContactRef, error) {
	for _, source := range c.sources {
		contact, err := source.FindByName(ctx, name)
		if err != nil {
			c.logger.Warn("contact source lookup failed", map[string]interface{}{
				"error": err.Error(),
			})
			continue
		}
		if contact != nil && contact.Email != "" {
			return contact, nil
		}
	}
	return nil, models.ErrContactNotFound
}

// Search returns every contact matching the query from the first source
// that answers with results.
func (c *ContactLookup) Search(ctx context.Context, query string) []models.ContactRef {
	for _, source := range c.sources {
		contacts, err := source.Search(ctx, query)
		if err != nil {
			c.logger.Warn("contact search failed", map[string]interface{}{
				"error": err.Error(),
			})
			continue
		}
		if len(contacts) > 0 {
			return contacts
		}
	}
	return nil
}
