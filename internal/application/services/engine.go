package services

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"

	"github.com/mshogin/assistant/internal/domain/models"
	"github.com/mshogin/assistant/internal/domain/services"
	"github.com/mshogin/assistant/internal/domain/services/nlp"
	"github.com/mshogin/assistant/internal/infrastructure/logging"
	"github.com/mshogin/assistant/internal/infrastructure/metrics"
)

// Options tunes the dialogue engine.
type Options struct {
	// DefaultMeetingMinutes is the meeting length used when the user
	// never states one.
	DefaultMeetingMinutes int

	// FreeSlotWindowStart/End bound the availability listing for the
	// check_free_slots intent.
	FreeSlotWindowStart models.ClockTime
	FreeSlotWindowEnd   models.ClockTime

	// ConflictWindowStart/End bound the alternative-slot search after a
	// scheduling conflict. Deliberately wider than the listing window.
	ConflictWindowStart models.ClockTime
	ConflictWindowEnd   models.ClockTime

	// MaxAlternatives caps how many alternative slots are offered.
	MaxAlternatives int

	// IdleTimeout expires a conversation with no activity for this
	// long. Zero disables expiry.
	IdleTimeout time.Duration
}

func (o *Options) setDefaults() {
	if o.DefaultMeetingMinutes == 0 {
		o.DefaultMeetingMinutes = 30
	}
	zero := models.ClockTime{}
	if o.FreeSlotWindowStart == zero && o.FreeSlotWindowEnd == zero {
		o.FreeSlotWindowStart = models.NewClockTime(9, 0)
		o.FreeSlotWindowEnd = models.NewClockTime(17, 0)
	}
	if o.ConflictWindowStart == zero && o.ConflictWindowEnd == zero {
		o.ConflictWindowStart = models.NewClockTime(8, 0)
		o.ConflictWindowEnd = models.NewClockTime(18, 0)
	}
	if o.MaxAlternatives == 0 {
		o.MaxAlternatives = 5
	}
}

// Deps collects the engine's collaborators. Syncer and Metrics are
// optional; everything else is required.
type Deps struct {
	Classifier   *nlp.IntentClassifier
	Extractor    *nlp.EntityExtractor
	Availability *AvailabilityResolver
	Contacts     *ContactLookup
	Calendar     services.Calendar
	Email        services.EmailSender
	Transport    services.Transport
	Validator    services.AddressValidator
	Syncer       services.ContactsSyncer
	Metrics      *metrics.Collector
	Logger       *logging.StructuredLogger
	Now          func() time.Time
}

// Engine drives multi-turn conversations, one state per sender.
//
// Design Principles:
// - Ongoing conversations always take priority over fresh intent
//   classification
// - Per-sender exclusive sections: messages from one sender are handled
//   strictly in order, different senders in parallel
// - Every failure is translated to user-facing text; no error detail
//   ever reaches the end user
type Engine struct {
	classifier   *nlp.IntentClassifier
	extractor    *nlp.EntityExtractor
	availability *AvailabilityResolver
	contacts     *ContactLookup
	calendar     services.Calendar
	email        services.EmailSender
	transport    services.Transport
	validator    services.AddressValidator
	syncer       services.ContactsSyncer
	metrics      *metrics.Collector
	logger       *logging.StructuredLogger
	now          func() time.Time
	opts         Options

	sessions *sessionRegistry
}

// NewEngine creates the dialogue engine.
func NewEngine(deps Deps, opts Options) *Engine {
	opts.setDefaults()
	if deps.Logger == nil {
		deps.Logger = logging.GetDefaultLogger()
	}
	if deps.Now == nil {
		deps.Now = time.Now
	}
	if deps.Metrics == nil {
		deps.Metrics = metrics.NewCollector()
	}

	e := &Engine{
		classifier:   deps.Classifier,
		extractor:    deps.Extractor,
		availability: deps.Availability,
		contacts:     deps.Contacts,
		calendar:     deps.Calendar,
		email:        deps.Email,
		transport:    deps.Transport,
		validator:    deps.Validator,
		syncer:       deps.Syncer,
		metrics:      deps.Metrics,
		logger:       deps.Logger,
		now:          deps.Now,
		opts:         opts,
		sessions:     newSessionRegistry(),
	}
	e.classifier.SetStrategyObserver(e.metrics.RecordStrategyHit)
	return e
}

// OpenConversations returns the number of senders mid-flow. Used by the
// health endpoint.
func (e *Engine) OpenConversations() int {
	return e.sessions.openCount()
}

// HandleMessage is the single inbound entry point: one call per message
// received from the transport.
func (e *Engine) HandleMessage(ctx context.Context, senderID, text string, receivedAt time.Time) {
	started := e.now()
	trace := uuid.NewString()
	log := e.logger.NewContext(map[string]interface{}{
		"sender_id": senderID,
		"trace_id":  trace,
	})

	sess := e.sessions.acquire(senderID)
	defer e.sessions.release(senderID, sess)

	defer func() {
		if r := recover(); r != nil {
			log.Error("message handling panicked", nil, map[string]interface{}{
				"panic": r,
			})
			sess.state = nil
			e.respond(ctx, senderID,
				"I'm sorry, I encountered an error while processing your request. "+
					"Please try again or rephrase your request.")
		}
	}()

	log.Info("message received", map[string]interface{}{
		"received_at": receivedAt.Format(time.RFC3339),
	})

	e.expireIfIdle(sess, log)
	sess.lastActivity = started

	trimmed := strings.TrimSpace(text)

	if strings.EqualFold(trimmed, "sync contacts") {
		e.handleSyncContacts(ctx, senderID)
		return
	}

	// Ongoing flows take priority over new-intent detection.
	if sess.state != nil {
		if e.continueConversation(ctx, senderID, sess, trimmed, log) {
			e.metrics.RecordMessage("continuation", e.now().Sub(started))
			return
		}
	}

	result := e.classifier.Classify(ctx, trimmed)
	entities := e.extractor.Extract(ctx, trimmed, result.Intent)

	log.Info("message classified", map[string]interface{}{
		"intent":     string(result.Intent),
		"confidence": result.Confidence,
	})

	switch result.Intent {
	case models.IntentSendEmail:
		e.handleSendEmail(ctx, senderID, sess, entities)
	case models.IntentScheduleMeeting:
		e.handleScheduleMeeting(ctx, senderID, sess, entities)
	case models.IntentCheckCalendar:
		e.handleCheckCalendar(ctx, senderID, trimmed, entities)
	case models.IntentFindContact:
		e.handleFindContact(ctx, senderID, trimmed, entities)
	case models.IntentCheckFreeSlots:
		e.handleCheckFreeSlots(ctx, senderID, entities)
	default:
		e.respond(ctx, senderID,
			"I'm not sure what you're asking for. I can help you with:\n"+
				"- Sending emails\n"+
				"- Scheduling meetings\n"+
				"- Checking your calendar\n"+
				"- Finding contacts\n"+
				"- Checking your availability\n\n"+
				"Please try phrasing your request differently.")
	}

	e.metrics.RecordMessage(string(result.Intent), e.now().Sub(started))
}

// expireIfIdle drops a conversation that has been idle past the
// configured timeout. Expiry is lazy: it only happens when the sender's
// next message arrives.
func (e *Engine) expireIfIdle(sess *session, log *logging.LoggerContext) {
	if e.opts.IdleTimeout <= 0 || sess.state == nil || sess.lastActivity.IsZero() {
		return
	}
	if e.now().Sub(sess.lastActivity) > e.opts.IdleTimeout {
		log.Info("conversation expired", map[string]interface{}{
			"kind": string(sess.state.Kind),
		})
		sess.state = nil
		e.metrics.RecordConversationExpired()
	}
}

// continueConversation routes a message through the open flow. It
// returns false only when the current (kind, step) pair has no matching
// case, in which case the caller proceeds as if no state existed.
func (e *Engine) continueConversation(ctx context.Context, senderID string, sess *session, text string, log *logging.LoggerContext) bool {
	state := sess.state

	switch state.Kind {
	case models.ConversationEmail:
		return e.continueEmail(ctx, senderID, sess, text)
	case models.ConversationMeeting:
		return e.continueMeeting(ctx, senderID, sess, text)
	default:
		log.Warn("unhandled conversation kind", map[string]interface{}{
			"kind": string(state.Kind),
		})
		return false
	}
}

func (e *Engine) handleSyncContacts(ctx context.Context, senderID string) {
	if e.syncer == nil {
		e.respond(ctx, senderID, "❌ Failed to synchronize contacts. Please try again later.")
		return
	}

	result := e.syncer.SyncContacts(ctx)
	switch {
	case result.Success && result.Complete:
		e.respond(ctx, senderID, "✅ Contacts synchronized successfully!")
	case result.Success:
		e.respond(ctx, senderID, fmt.Sprintf(
			"Partially synchronized %d contacts. Run 'sync contacts' again after 1-2 minutes to continue.",
			result.ContactsSynced))
	default:
		e.respond(ctx, senderID, "❌ Failed to synchronize contacts. Please try again later.")
	}
}

// respond delivers outbound text. Delivery is fire-and-forget: failures
// are recorded, never propagated.
func (e *Engine) respond(ctx context.Context, senderID, text string) {
	if err := e.transport.Deliver(ctx, senderID, text); err != nil {
		e.metrics.RecordDeliveryFailure()
		e.logger.Error("outbound delivery failed", err, map[string]interface{}{
			"sender_id": senderID,
		})
	}
}

// isCancel reports whether the message is the literal cancellation token.
func isCancel(text string) bool {
	return strings.EqualFold(strings.TrimSpace(text), "cancel")
}

func matchesToken(text string, tokens []string) bool {
	lower := strings.ToLower(strings.TrimSpace(text))
	for _, token := range tokens {
		if lower == token {
			return true
		}
	}
	return false
}

func formatDate(t time.Time) string {
	return t.Format("Monday, January 2, 2006")
}
