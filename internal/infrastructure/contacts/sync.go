package contacts

import (
	"context"
	"sync"
	"time"

	"github.com/mshogin/assistant/internal/domain/models"
	"github.com/mshogin/assistant/internal/infrastructure/logging"
)

// syncBudget bounds one synchronization run. The People API pages at
// 200 contacts; a large address book syncs across several runs, each
// resuming from the saved page token.
const syncBudget = 50 * time.Second

// Syncer copies contacts from the remote People source into the local
// SQLite cache. It implements the ContactsSyncer boundary.
type Syncer struct {
	source *GooglePeople
	store  *SQLiteStore
	logger *logging.StructuredLogger

	mu            sync.Mutex
	nextPageToken string
}

// NewSyncer creates a contacts synchronizer.
func NewSyncer(source *GooglePeople, store *SQLiteStore, logger *logging.StructuredLogger) *Syncer {
	if logger == nil {
		logger = logging.GetDefaultLogger()
	}
	return &Syncer{source: source, store: store, logger: logger}
}

// SyncContacts pulls pages from the remote source into the cache until
// the source is exhausted or the run budget is spent. A partial run
// reports Complete=false; the next run resumes where this one stopped.
func (s *Syncer) SyncContacts(ctx context.Context) models.SyncResult {
	s.mu.Lock()
	defer s.mu.Unlock()

	deadline := time.Now().Add(syncBudget)
	pageToken := s.nextPageToken
	synced := 0

	for {
		contacts, next, err := s.source.ListPage(ctx, pageToken)
		if err != nil {
			s.logger.Error("contacts page fetch failed", err, nil)
			if synced > 0 {
				s.nextPageToken = pageToken
				return models.SyncResult{Success: true, Complete: false, ContactsSynced: synced}
			}
			return models.SyncResult{Success: false, Error: err.Error()}
		}

		if err := s.store.Upsert(ctx, contacts); err != nil {
			s.logger.Error("contacts cache write failed", err, nil)
			return models.SyncResult{Success: false, Error: err.Error()}
		}
		synced += len(contacts)

		if next == "" {
			s.nextPageToken = ""
			s.logger.Info("contacts synchronized", map[string]interface{}{
				"contacts_synced": synced,
			})
			return models.SyncResult{Success: true, Complete: true, ContactsSynced: synced}
		}

		pageToken = next
		if time.Now().After(deadline) {
			s.nextPageToken = pageToken
			return models.SyncResult{Success: true, Complete: false, ContactsSynced: synced}
		}
	}
}
