package services

import (
	"context"
	"errors"
	"fmt"
	"io"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/mshogin/assistant/internal/domain/models"
	domainservices "github.com/mshogin/assistant/internal/domain/services"
	"github.com/mshogin/assistant/internal/domain/services/nlp"
	"github.com/mshogin/assistant/internal/infrastructure/logging"
	"github.com/mshogin/assistant/internal/infrastructure/metrics"
	"github.com/mshogin/assistant/internal/testutil/fixtures"
)

// meetingRequest is the canonical fully-specified scheduling message used
// across the flow tests, with the entity bag a provider would return for
// it.
const meetingRequest = "schedule a meeting with john@example.com tomorrow at 3pm"

func meetingRequestBag() *models.EntityBag {
	return &models.EntityBag{
		Email:    []string{"john@example.com"},
		DateText: "tomorrow",
		TimeText: "3pm",
	}
}

type engineFixture struct {
	engine    *Engine
	transport *fixtures.FakeTransport
	calendar  *fixtures.FakeCalendar
	email     *fixtures.FakeEmail
	contacts  *fixtures.FakeContacts
	syncer    *fixtures.FakeSyncer
	collector *metrics.Collector

	// clock is the injected wall clock; tests advance it directly.
	clock time.Time
}

// newEngineFixture builds an engine over fakes. extractBags scripts the
// remote entity provider per exact message; messages not in the map fall
// through to local extraction.
func newEngineFixture(opts Options, extractBags map[string]*models.EntityBag) *engineFixture {
	f := &engineFixture{
		transport: &fixtures.FakeTransport{},
		calendar:  &fixtures.FakeCalendar{},
		email:     &fixtures.FakeEmail{},
		contacts:  &fixtures.FakeContacts{Contacts: map[string]models.ContactRef{}},
		syncer:    &fixtures.FakeSyncer{},
		collector: metrics.NewCollector(),
		clock:     time.Date(2025, 3, 10, 8, 0, 0, 0, time.UTC), // Monday 08:00
	}

	logger := logging.NewStructuredLogger(io.Discard, logging.ErrorLevel)
	now := func() time.Time { return f.clock }

	var extractProvider domainservices.LanguageProvider
	if extractBags != nil {
		extractProvider = &fixtures.FakeProvider{
			ExtractFn: func(_ context.Context, message string, _ models.Intent) (*models.EntityBag, error) {
				if bag, ok := extractBags[message]; ok {
					clone := *bag
					return &clone, nil
				}
				return nil, nil
			},
		}
	}

	parser := nlp.NewDateTimeParser()
	f.engine = NewEngine(Deps{
		Classifier:   nlp.NewIntentClassifier(nil, logger),
		Extractor:    nlp.NewEntityExtractor(extractProvider, parser, now, logger),
		Availability: NewAvailabilityResolver(f.calendar, logger),
		Contacts:     NewContactLookup(logger, f.contacts),
		Calendar:     f.calendar,
		Email:        f.email,
		Transport:    f.transport,
		Validator:    nlp.NewAddressChecker(),
		Syncer:       f.syncer,
		Metrics:      f.collector,
		Logger:       logger,
		Now:          now,
	}, opts)

	return f
}

// send delivers one inbound message and returns the engine's reply.
func (f *engineFixture) send(senderID, text string) string {
	f.engine.HandleMessage(context.Background(), senderID, text, f.clock)
	return f.transport.Last()
}

func (f *engineFixture) state(senderID string) *models.ConversationState {
	s := f.engine.sessions.acquire(senderID)
	defer f.engine.sessions.release(senderID, s)
	return s.state
}

func (f *engineFixture) seedState(senderID string, state *models.ConversationState) {
	s := f.engine.sessions.acquire(senderID)
	s.state = state
	s.lastActivity = f.clock
	f.engine.sessions.release(senderID, s)
}

func TestScheduleMeetingDirect(t *testing.T) {
	f := newEngineFixture(Options{}, map[string]*models.EntityBag{
		meetingRequest: meetingRequestBag(),
	})

	reply := f.send("u1", meetingRequest)
	assert.Equal(t,
		"I'll schedule a 30-minute meeting with john@example.com on Tuesday, March 11, 2025 at 3:00 PM. Is that correct? (yes/no)",
		reply)

	reply = f.send("u1", "yes")
	assert.Contains(t, reply, "✅ Meeting scheduled successfully!")
	assert.Contains(t, reply, "Meeting with john@example.com")
	assert.Contains(t, reply, "Time: 3:00 PM - 3:30 PM")

	require.Len(t, f.calendar.Created, 1)
	created := f.calendar.Created[0]
	assert.Equal(t, time.Date(2025, 3, 11, 15, 0, 0, 0, time.UTC), created.Start)
	assert.Equal(t, time.Date(2025, 3, 11, 15, 30, 0, 0, time.UTC), created.End)
	assert.Equal(t, []string{"john@example.com"}, created.Attendees)
	assert.True(t, created.Notify)

	assert.Nil(t, f.state("u1"))
	snap := f.collector.GetSnapshot()
	assert.Equal(t, int64(1), snap.ConversationsStarted)
	assert.Equal(t, int64(1), snap.ConversationsCompleted)
}

func TestScheduleMeetingConflictOffersAlternatives(t *testing.T) {
	f := newEngineFixture(Options{}, map[string]*models.EntityBag{
		meetingRequest: meetingRequestBag(),
	})
	f.calendar.Events = []models.Event{{
		ID:      "busy",
		Summary: "Standup",
		Start:   time.Date(2025, 3, 11, 15, 0, 0, 0, time.UTC),
		End:     time.Date(2025, 3, 11, 16, 0, 0, 0, time.UTC),
	}}

	reply := f.send("u1", meetingRequest)
	assert.Contains(t, reply, "You already have a meeting at 3:00 PM on Tuesday, March 11, 2025.")
	assert.Contains(t, reply, "1. 8:00 AM - 8:30 AM")
	assert.Contains(t, reply, "5. 10:00 AM - 10:30 AM")
	assert.NotContains(t, reply, "6.")

	// "2" books the second listed slot.
	reply = f.send("u1", "2")
	assert.Contains(t, reply, "✅ Meeting scheduled successfully!")
	assert.Contains(t, reply, "Time: 8:30 AM - 9:00 AM")

	require.Len(t, f.calendar.Created, 1)
	assert.Equal(t, time.Date(2025, 3, 11, 8, 30, 0, 0, time.UTC), f.calendar.Created[0].Start)
}

func TestMeetingAlternativeOneSelectsFirstSlot(t *testing.T) {
	f := newEngineFixture(Options{}, map[string]*models.EntityBag{
		meetingRequest: meetingRequestBag(),
	})
	f.calendar.Events = []models.Event{{
		ID:    "busy",
		Start: time.Date(2025, 3, 11, 15, 0, 0, 0, time.UTC),
		End:   time.Date(2025, 3, 11, 16, 0, 0, 0, time.UTC),
	}}

	f.send("u1", meetingRequest)
	// With alternatives on the table, "1" selects slot 1, it is not an
	// affirmative for the conflicted original time.
	f.send("u1", "1")

	require.Len(t, f.calendar.Created, 1)
	assert.Equal(t, time.Date(2025, 3, 11, 8, 0, 0, 0, time.UTC), f.calendar.Created[0].Start)
}

func TestMeetingDirectConfirmAcceptsOne(t *testing.T) {
	f := newEngineFixture(Options{}, map[string]*models.EntityBag{
		meetingRequest: meetingRequestBag(),
	})

	f.send("u1", meetingRequest)
	// No alternatives listed: "1" counts as an affirmative.
	f.send("u1", "1")

	require.Len(t, f.calendar.Created, 1)
	assert.Equal(t, time.Date(2025, 3, 11, 15, 0, 0, 0, time.UTC), f.calendar.Created[0].Start)
}

func TestMeetingInvalidAlternativeSelection(t *testing.T) {
	f := newEngineFixture(Options{}, map[string]*models.EntityBag{
		meetingRequest: meetingRequestBag(),
	})
	f.calendar.Events = []models.Event{{
		ID:    "busy",
		Start: time.Date(2025, 3, 11, 15, 0, 0, 0, time.UTC),
		End:   time.Date(2025, 3, 11, 16, 0, 0, 0, time.UTC),
	}}

	f.send("u1", meetingRequest)
	reply := f.send("u1", "9")
	assert.Equal(t,
		"Invalid selection. Please choose a number from the list or type 'cancel' to abort.",
		reply)

	// The flow survives the bad input.
	state := f.state("u1")
	require.NotNil(t, state)
	assert.Equal(t, models.MeetingStepConfirm, state.Meeting.Step)
}

func TestMeetingNoFreeSlotsOnDate(t *testing.T) {
	f := newEngineFixture(Options{}, map[string]*models.EntityBag{
		meetingRequest: meetingRequestBag(),
	})
	f.calendar.Events = []models.Event{{
		ID:    "allday",
		Start: time.Date(2025, 3, 11, 8, 0, 0, 0, time.UTC),
		End:   time.Date(2025, 3, 11, 18, 0, 0, 0, time.UTC),
	}}

	reply := f.send("u1", meetingRequest)
	assert.Contains(t, reply, "you don't have any free 30-minute slots on Tuesday, March 11, 2025")

	state := f.state("u1")
	require.NotNil(t, state)
	assert.Equal(t, models.MeetingStepDate, state.Meeting.Step)
}

func TestMeetingEmailTypoSuggestion(t *testing.T) {
	f := newEngineFixture(Options{}, nil)

	reply := f.send("u1", "schedule a meeting")
	assert.Equal(t, "Who would you like to schedule a meeting with? (name or email address)", reply)

	reply = f.send("u1", "bob@gmai.com")
	assert.Contains(t, reply, "appears to be invalid")
	assert.Contains(t, reply, "Did you mean 'bob@gmail.com'?")

	state := f.state("u1")
	require.NotNil(t, state)
	assert.Equal(t, models.MeetingStepConfirmEmail, state.Meeting.Step)

	reply = f.send("u1", "yes")
	assert.Equal(t, "What date? (or type 'cancel' to abort)", reply)

	state = f.state("u1")
	require.NotNil(t, state)
	assert.Equal(t, "bob@gmail.com", state.Meeting.Person)
	assert.Equal(t, models.MeetingStepDate, state.Meeting.Step)
}

func TestMeetingFlowWithContactResolution(t *testing.T) {
	f := newEngineFixture(Options{}, nil)
	f.contacts.Contacts["dana"] = models.ContactRef{Name: "Dana", Email: "dana@example.com"}

	f.send("u1", "schedule a meeting")
	reply := f.send("u1", "Dana")
	assert.Equal(t, "What date? (or type 'cancel' to abort)", reply)

	reply = f.send("u1", "yesterday")
	assert.Equal(t, "The date Sunday, March 9, 2025 has already passed. Please provide a future date.", reply)

	reply = f.send("u1", "tomorrow")
	assert.Equal(t, "What time on Tuesday, March 11, 2025? (or type 'cancel' to abort)", reply)

	reply = f.send("u1", "10am")
	assert.Equal(t,
		"I'll schedule a 30-minute meeting with Dana (dana@example.com) on Tuesday, March 11, 2025 at 10:00 AM. Is that correct? (yes/no)",
		reply)

	f.send("u1", "yes")
	require.Len(t, f.calendar.Created, 1)
	assert.Equal(t, "Meeting with Dana", f.calendar.Created[0].Summary)
	assert.Equal(t, []string{"dana@example.com"}, f.calendar.Created[0].Attendees)
}

func TestMeetingPastTimeRejected(t *testing.T) {
	f := newEngineFixture(Options{}, nil)

	today := time.Date(2025, 3, 10, 0, 0, 0, 0, time.UTC)
	state := models.NewMeetingConversation(models.MeetingStepTime)
	state.Meeting.Person = "Dana"
	state.Meeting.Date = &today
	f.seedState("u1", state)

	reply := f.send("u1", "7am")
	assert.Contains(t, reply, "has already passed. Current time is 08:00.")

	got := f.state("u1")
	require.NotNil(t, got)
	assert.Equal(t, models.MeetingStepTime, got.Meeting.Step)
}

func TestMeetingUnparseableDateAndTime(t *testing.T) {
	f := newEngineFixture(Options{}, nil)

	state := models.NewMeetingConversation(models.MeetingStepDate)
	state.Meeting.Person = "Dana"
	f.seedState("u1", state)

	reply := f.send("u1", "whenever works")
	assert.Contains(t, reply, "I couldn't understand that date.")

	date := time.Date(2025, 3, 11, 0, 0, 0, 0, time.UTC)
	state = models.NewMeetingConversation(models.MeetingStepTime)
	state.Meeting.Person = "Dana"
	state.Meeting.Date = &date
	f.seedState("u1", state)

	reply = f.send("u1", "sometime later")
	assert.Contains(t, reply, "I couldn't understand that time.")
}

func TestCancellationAtEveryStep(t *testing.T) {
	meetingSteps := []models.MeetingStep{
		models.MeetingStepPerson,
		models.MeetingStepConfirmEmail,
		models.MeetingStepDate,
		models.MeetingStepTime,
		models.MeetingStepConfirm,
	}
	for _, step := range meetingSteps {
		t.Run("meeting_"+string(step), func(t *testing.T) {
			f := newEngineFixture(Options{}, nil)
			f.seedState("u1", models.NewMeetingConversation(step))

			reply := f.send("u1", "cancel")
			assert.Equal(t, "Meeting scheduling canceled.", reply)
			assert.Nil(t, f.state("u1"))
			assert.Equal(t, int64(1), f.collector.GetSnapshot().ConversationsCancelled)
		})
	}

	emailSteps := []models.EmailStep{
		models.EmailStepRecipient,
		models.EmailStepSubject,
		models.EmailStepBody,
		models.EmailStepConfirm,
	}
	for _, step := range emailSteps {
		t.Run("email_"+string(step), func(t *testing.T) {
			f := newEngineFixture(Options{}, nil)
			f.seedState("u1", models.NewEmailConversation(step))

			reply := f.send("u1", "cancel")
			assert.Equal(t, "Email canceled.", reply)
			assert.Nil(t, f.state("u1"))
			assert.Equal(t, int64(1), f.collector.GetSnapshot().ConversationsCancelled)
		})
	}
}

func TestEmailFullFlow(t *testing.T) {
	f := newEngineFixture(Options{}, nil)
	f.contacts.Contacts["alice"] = models.ContactRef{Name: "Alice", Email: "alice@example.com"}

	reply := f.send("u1", "send an email")
	assert.Equal(t, "Who would you like to send an email to? (email address)", reply)

	reply = f.send("u1", "Alice")
	assert.Equal(t, "What's the subject of the email? (or type 'cancel' to abort)", reply)

	reply = f.send("u1", "Lunch plans")
	assert.Equal(t, "What's the content of the email? (or type 'cancel' to abort)", reply)

	reply = f.send("u1", "See you at noon")
	assert.Contains(t, reply, "To: Alice")
	assert.Contains(t, reply, "Subject: Lunch plans")
	assert.Contains(t, reply, "Send it? (yes/no)")

	reply = f.send("u1", "yes")
	assert.Equal(t, "Email sent successfully!", reply)

	require.Len(t, f.email.Sent, 1)
	assert.Equal(t, "alice@example.com", f.email.Sent[0].To)
	assert.Equal(t, "Lunch plans", f.email.Sent[0].Subject)
	assert.Equal(t, "See you at noon", f.email.Sent[0].Body)

	assert.Nil(t, f.state("u1"))
	snap := f.collector.GetSnapshot()
	assert.Equal(t, int64(1), snap.ConversationsStarted)
	assert.Equal(t, int64(1), snap.ConversationsCompleted)
	assert.Equal(t, int64(4), snap.MessagesByIntent["continuation"])
}

func TestEmailRecipientResolutionRevert(t *testing.T) {
	f := newEngineFixture(Options{}, nil) // no contacts configured

	f.send("u1", "send an email")
	f.send("u1", "Bob")
	f.send("u1", "Hello")
	f.send("u1", "Hi there")

	reply := f.send("u1", "yes")
	assert.Equal(t,
		"I couldn't find an email for 'Bob'. Please provide a valid email address or contact name.",
		reply)

	// The draft survives: the flow reverted to the recipient step.
	state := f.state("u1")
	require.NotNil(t, state)
	assert.Equal(t, models.EmailStepRecipient, state.Email.Step)

	f.send("u1", "bob@example.com")
	f.send("u1", "Hello")
	f.send("u1", "Hi there")
	reply = f.send("u1", "yes")
	assert.Equal(t, "Email sent successfully!", reply)

	require.Len(t, f.email.Sent, 1)
	assert.Equal(t, "bob@example.com", f.email.Sent[0].To)
}

func TestEmailConfirmRejectionCancels(t *testing.T) {
	f := newEngineFixture(Options{}, nil)

	state := models.NewEmailConversation(models.EmailStepConfirm)
	state.Email.Recipient = "bob@example.com"
	state.Email.Subject = "Hello"
	state.Email.Body = "Hi"
	f.seedState("u1", state)

	reply := f.send("u1", "no")
	assert.Equal(t, "Email canceled.", reply)
	assert.Empty(t, f.email.Sent)
	assert.Nil(t, f.state("u1"))
}

func TestCheckCalendarTodayForced(t *testing.T) {
	f := newEngineFixture(Options{}, nil)
	f.calendar.Events = []models.Event{{
		ID:      "e1",
		Summary: "Design review",
		Start:   time.Date(2025, 3, 10, 14, 0, 0, 0, time.UTC),
		End:     time.Date(2025, 3, 10, 15, 0, 0, 0, time.UTC),
	}}

	reply := f.send("u1", "What's on my calendar today?")
	assert.Contains(t, reply, "📅 Events for today:")
	assert.Contains(t, reply, "🕒 2:00 PM - Design review")
}

func TestCheckCalendarEmptyDay(t *testing.T) {
	f := newEngineFixture(Options{}, nil)

	reply := f.send("u1", "What's on my calendar today?")
	assert.Equal(t, "You don't have any events scheduled for today.", reply)
}

func TestCheckCalendarNextEvent(t *testing.T) {
	f := newEngineFixture(Options{}, nil)

	reply := f.send("u1", "show my calendar")
	assert.Equal(t, "You don't have any upcoming events on your calendar.", reply)

	f.calendar.Next = &models.Event{
		Summary:     "Board sync",
		Start:       time.Date(2025, 3, 12, 9, 30, 0, 0, time.UTC),
		End:         time.Date(2025, 3, 12, 10, 30, 0, 0, time.UTC),
		Location:    "HQ",
		Description: "Quarterly numbers",
	}
	reply = f.send("u1", "show my calendar")
	assert.Contains(t, reply, "Your next event is:")
	assert.Contains(t, reply, "📅 Board sync")
	assert.Contains(t, reply, "📆 Wednesday, March 12, 2025")
	assert.Contains(t, reply, "🕒 9:30 AM")
	assert.Contains(t, reply, "📍 HQ")
	assert.Contains(t, reply, "📝 Quarterly numbers")
}

func TestCheckFreeSlots(t *testing.T) {
	f := newEngineFixture(Options{}, nil)

	reply := f.send("u1", "when am i free tomorrow")
	assert.Contains(t, reply, "📅 Free 30-minute slots for Tuesday, March 11, 2025:")
	assert.Contains(t, reply, "🕒 9:00 AM - 9:30 AM")
	assert.Contains(t, reply, "🕒 4:30 PM - 5:00 PM")
}

func TestCheckFreeSlotsNoneAvailable(t *testing.T) {
	f := newEngineFixture(Options{}, nil)
	f.calendar.Events = []models.Event{{
		ID:    "allday",
		Start: time.Date(2025, 3, 11, 0, 0, 0, 0, time.UTC),
		End:   time.Date(2025, 3, 12, 0, 0, 0, 0, time.UTC),
	}}

	reply := f.send("u1", "when am i free tomorrow")
	assert.Equal(t, "You don't have any free 30-minute slots on Tuesday, March 11, 2025.", reply)
}

func TestFindContactSingleMatch(t *testing.T) {
	f := newEngineFixture(Options{}, nil)
	f.contacts.Contacts["dana"] = models.ContactRef{
		Name:  "Dana",
		Email: "dana@example.com",
		Phone: "+1 555 0101",
	}

	reply := f.send("u1", "find contact for Dana")
	assert.Contains(t, reply, "📇 Contact information for Dana:")
	assert.Contains(t, reply, "📧 Email: dana@example.com")
	assert.Contains(t, reply, "📱 Phone: +1 555 0101")
}

func TestFindContactNoMatch(t *testing.T) {
	f := newEngineFixture(Options{}, nil)

	reply := f.send("u1", "find contact for Zed")
	assert.Equal(t, "No contacts found for 'Zed'.", reply)
}

func TestUnknownIntentListsCapabilities(t *testing.T) {
	f := newEngineFixture(Options{}, nil)

	reply := f.send("u1", "turn on the lights")
	assert.Contains(t, reply, "I'm not sure what you're asking for.")
	assert.Contains(t, reply, "- Sending emails")
	assert.Contains(t, reply, "- Checking your availability")
}

func TestSyncContactsCommand(t *testing.T) {
	f := newEngineFixture(Options{}, nil)

	f.syncer.Result = models.SyncResult{Success: true, Complete: true, ContactsSynced: 200}
	reply := f.send("u1", "sync contacts")
	assert.Equal(t, "✅ Contacts synchronized successfully!", reply)

	f.syncer.Result = models.SyncResult{Success: true, Complete: false, ContactsSynced: 120}
	reply = f.send("u1", "Sync Contacts")
	assert.Equal(t,
		"Partially synchronized 120 contacts. Run 'sync contacts' again after 1-2 minutes to continue.",
		reply)

	f.syncer.Result = models.SyncResult{Success: false, Error: "people api unreachable"}
	reply = f.send("u1", "sync contacts")
	assert.Equal(t, "❌ Failed to synchronize contacts. Please try again later.", reply)
}

func TestSyncContactsWithoutSyncer(t *testing.T) {
	f := newEngineFixture(Options{}, nil)
	f.engine.syncer = nil

	reply := f.send("u1", "sync contacts")
	assert.Equal(t, "❌ Failed to synchronize contacts. Please try again later.", reply)
}

func TestIdleConversationExpires(t *testing.T) {
	f := newEngineFixture(Options{IdleTimeout: time.Minute}, nil)

	f.send("u1", "send an email")
	require.NotNil(t, f.state("u1"))

	f.clock = f.clock.Add(2 * time.Minute)

	// The stale flow is dropped; the message is treated as a fresh one.
	reply := f.send("u1", "Zorblatt")
	assert.Contains(t, reply, "I'm not sure what you're asking for.")
	assert.Nil(t, f.state("u1"))
	assert.Equal(t, int64(1), f.collector.GetSnapshot().ConversationsExpired)
}

func TestIdleTimeoutDisabledByDefault(t *testing.T) {
	f := newEngineFixture(Options{}, nil)

	f.send("u1", "send an email")
	f.clock = f.clock.Add(48 * time.Hour)

	reply := f.send("u1", "bob@example.com")
	assert.Equal(t, "What's the subject of the email? (or type 'cancel' to abort)", reply)
}

func TestOpenConversations(t *testing.T) {
	f := newEngineFixture(Options{}, nil)
	assert.Equal(t, 0, f.engine.OpenConversations())

	f.send("u1", "send an email")
	f.send("u2", "schedule a meeting")
	assert.Equal(t, 2, f.engine.OpenConversations())

	f.send("u1", "cancel")
	assert.Equal(t, 1, f.engine.OpenConversations())
}

func TestDeliveryFailureRecorded(t *testing.T) {
	f := newEngineFixture(Options{}, nil)
	f.transport.Err = errors.New("network down")

	f.send("u1", "turn on the lights")
	assert.GreaterOrEqual(t, f.collector.GetSnapshot().DeliveryFailures, int64(1))
}

func TestPanicRecoveryApologizesAndClearsState(t *testing.T) {
	f := newEngineFixture(Options{}, nil)

	logger := logging.NewStructuredLogger(io.Discard, logging.ErrorLevel)
	f.engine.classifier = nlp.NewIntentClassifier(&fixtures.FakeProvider{
		ClassifyFn: func(_ context.Context, _ string) (*models.IntentResult, error) {
			panic("boom")
		},
	}, logger)

	reply := f.send("u1", "anything")
	assert.Equal(t,
		"I'm sorry, I encountered an error while processing your request. Please try again or rephrase your request.",
		reply)
	assert.Nil(t, f.state("u1"))
}

func TestSendersHandledIndependently(t *testing.T) {
	f := newEngineFixture(Options{}, nil)

	// An open flow for one sender never leaks into another's.
	f.send("u1", "send an email")
	reply := f.send("u2", "turn on the lights")
	assert.Contains(t, reply, "I'm not sure what you're asking for.")

	state := f.state("u1")
	require.NotNil(t, state)
	assert.Equal(t, models.ConversationEmail, state.Kind)
	assert.Nil(t, f.state("u2"))
}

func TestConcurrentSendersNoLostMessages(t *testing.T) {
	f := newEngineFixture(Options{}, nil)

	const perSender = 10
	var wg sync.WaitGroup
	for s := 0; s < 4; s++ {
		wg.Add(1)
		go func(s int) {
			defer wg.Done()
			sender := fmt.Sprintf("sender-%d", s)
			for i := 0; i < perSender; i++ {
				f.engine.HandleMessage(context.Background(), sender, "turn on the lights", f.clock)
			}
		}(s)
	}
	wg.Wait()

	assert.Equal(t, 4*perSender, f.transport.Count())
}

func TestEmailSendErrorNeverReachesUser(t *testing.T) {
	f := newEngineFixture(Options{}, nil)
	f.email.Err = errors.New(`Post "https://gmail.googleapis.com/gmail/v1/users/me/messages/send": dial tcp 10.0.0.1:443: connect: connection refused`)

	state := models.NewEmailConversation(models.EmailStepConfirm)
	state.Email.Recipient = "bob@example.com"
	state.Email.Subject = "Hello"
	state.Email.Body = "Hi"
	f.seedState("u1", state)

	reply := f.send("u1", "yes")
	assert.Equal(t, "Failed to send email. Please try again later.", reply)
	assert.NotContains(t, reply, "dial tcp")
	assert.NotContains(t, reply, "https://")
	assert.Nil(t, f.state("u1"))
}

func TestEmailFastPathSendErrorNeverReachesUser(t *testing.T) {
	message := "email bob@example.com subject: Hi body: Checking in"
	f := newEngineFixture(Options{}, map[string]*models.EntityBag{
		message: {
			Email:   []string{"bob@example.com"},
			Subject: "Hi",
			Body:    "Checking in",
		},
	})
	f.email.Err = errors.New(`Post "https://gmail.googleapis.com": connection refused`)

	reply := f.send("u1", message)
	assert.Equal(t, "Failed to send email. Please try again later.", reply)
	assert.NotContains(t, reply, "https://")
}

func TestMeetingBookingErrorNeverReachesUser(t *testing.T) {
	f := newEngineFixture(Options{}, map[string]*models.EntityBag{
		meetingRequest: meetingRequestBag(),
	})
	f.calendar.CreateErr = errors.New(`Post "https://www.googleapis.com/calendar/v3/calendars/primary/events": dial tcp: connection refused`)

	reply := f.send("u1", meetingRequest)
	assert.Contains(t, reply, "Is that correct? (yes/no)")

	reply = f.send("u1", "yes")
	assert.Equal(t, "Failed to schedule meeting. Please try again later.", reply)
	assert.NotContains(t, reply, "dial tcp")
	assert.NotContains(t, reply, "https://")
	assert.Nil(t, f.state("u1"))
}

func TestStatelessSendersDoNotAccumulate(t *testing.T) {
	f := newEngineFixture(Options{}, nil)

	for i := 0; i < 20; i++ {
		f.send(fmt.Sprintf("sender-%d", i), "turn on the lights")
	}
	assert.Equal(t, 0, f.engine.sessions.size())

	// A sender mid-flow stays tracked.
	f.send("u1", "send an email")
	assert.Equal(t, 1, f.engine.sessions.size())
}

func TestFlowAdvancesAtMostOneStepPerMessage(t *testing.T) {
	f := newEngineFixture(Options{}, nil)

	state := models.NewMeetingConversation(models.MeetingStepDate)
	state.Meeting.Person = "john@example.com"
	f.seedState("u1", state)

	// Date and time arrive in one message; only the date slot is
	// consumed, the time is asked for separately.
	reply := f.send("u1", "tomorrow at 3pm")
	assert.Equal(t, "What time on Tuesday, March 11, 2025? (or type 'cancel' to abort)", reply)
	st := f.state("u1")
	require.NotNil(t, st)
	assert.Equal(t, models.MeetingStepTime, st.Meeting.Step)

	// An uninterpretable reply leaves the step untouched, however often
	// it is repeated.
	first := f.send("u1", "hmm")
	again := f.send("u1", "hmm")
	assert.Equal(t, first, again)
	st = f.state("u1")
	require.NotNil(t, st)
	assert.Equal(t, models.MeetingStepTime, st.Meeting.Step)
}
