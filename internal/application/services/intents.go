package services

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/mshogin/assistant/internal/domain/models"
)

// handleSendEmail seeds the email flow from the initial entity bag. When
// recipient, subject and body are all already known, the email is sent
// immediately with no conversation at all.
func (e *Engine) handleSendEmail(ctx context.Context, senderID string, sess *session, entities *models.EntityBag) {
	// Fast path: everything present, send directly.
	if (len(entities.Person) > 0 || len(entities.Email) > 0) && entities.Subject != "" && entities.Body != "" {
		recipient := ""
		if len(entities.Email) > 0 {
			recipient = entities.Email[0]
		} else if contact, err := e.contacts.ResolveEmail(ctx, entities.Person[0]); err == nil {
			recipient = contact.Email
		}

		if recipient != "" {
			result, err := e.email.Send(ctx, recipient, entities.Subject, entities.Body)
			switch {
			case err != nil:
				e.logger.Error("email send failed", err, map[string]interface{}{
					"sender_id": senderID,
				})
				e.respond(ctx, senderID, "Failed to send email. Please try again later.")
			case result.Success:
				e.respond(ctx, senderID, fmt.Sprintf("Email sent successfully to %s!", recipient))
			default:
				e.respond(ctx, senderID, fmt.Sprintf("Failed to send email: %s", errorOrUnknown(result.Error)))
			}
			return
		}
	}

	// Gather what we can and open a conversation for the rest.
	recipient := ""
	if len(entities.Email) > 0 {
		recipient = entities.Email[0]
	} else if len(entities.Person) > 0 {
		if contact, err := e.contacts.ResolveEmail(ctx, entities.Person[0]); err == nil {
			recipient = contact.Email
		} else {
			recipient = entities.Person[0]
		}
	}

	state := models.NewEmailConversation(models.EmailStepRecipient)
	draft := state.Email
	draft.Recipient = recipient
	draft.Subject = entities.Subject
	draft.Body = entities.Body
	if recipient != "" {
		draft.Step = models.EmailStepSubject
	}

	sess.state = state
	e.metrics.RecordConversationStarted()

	switch {
	case recipient == "":
		e.respond(ctx, senderID, "Who would you like to send an email to? (email address)")
	case draft.Subject == "":
		e.respond(ctx, senderID, fmt.Sprintf("What's the subject of the email to %s?", recipient))
	default:
		draft.Step = models.EmailStepBody
		e.respond(ctx, senderID, fmt.Sprintf("What's the content of the email to %s?", recipient))
	}
}

// handleScheduleMeeting seeds the meeting flow from the initial entity
// bag. A lone email address counts as the person when no name was
// extracted.
func (e *Engine) handleScheduleMeeting(ctx context.Context, senderID string, sess *session, entities *models.EntityBag) {
	person := ""
	if len(entities.Person) > 0 {
		person = entities.Person[0]
	} else if len(entities.Email) > 0 {
		person = entities.Email[0]
	}

	state := models.NewMeetingConversation(models.MeetingStepPerson)
	draft := state.Meeting
	draft.Person = person
	draft.Date = entities.Date
	draft.Time = entities.Time
	draft.Duration = entities.Duration
	draft.Location = entities.Location
	draft.Description = entities.Subject

	if person != "" {
		if draft.Date == nil {
			draft.Step = models.MeetingStepDate
		} else {
			draft.Step = models.MeetingStepTime
		}
	}

	sess.state = state
	e.metrics.RecordConversationStarted()

	switch {
	case person == "":
		e.respond(ctx, senderID, "Who would you like to schedule a meeting with? (name or email address)")
	case draft.Date == nil:
		e.respond(ctx, senderID, fmt.Sprintf(
			"When would you like to schedule the meeting with %s? (date)", person))
	case draft.Time == nil:
		e.respond(ctx, senderID, fmt.Sprintf(
			"What time on %s would you like to schedule the meeting?", formatDate(*draft.Date)))
	default:
		e.checkMeetingAvailability(ctx, senderID, sess)
	}
}

// handleCheckCalendar answers a calendar query. Any "today" reference in
// the raw text forces the date to the current day regardless of what
// the extractor parsed; with no date at all, the next upcoming event is
// shown instead.
func (e *Engine) handleCheckCalendar(ctx context.Context, senderID, message string, entities *models.EntityBag) {
	date := entities.Date

	lower := strings.ToLower(message)
	for _, keyword := range []string{"today's", "todays", "today"} {
		if strings.Contains(lower, keyword) {
			today := truncateToDay(e.now())
			date = &today
			break
		}
	}

	if date == nil {
		event, err := e.calendar.NextEvent(ctx)
		if err != nil {
			e.logger.Error("next-event lookup failed", err, map[string]interface{}{
				"sender_id": senderID,
			})
			event = nil
		}
		if event == nil {
			e.respond(ctx, senderID, "You don't have any upcoming events on your calendar.")
			return
		}

		text := fmt.Sprintf("Your next event is:\n\n📅 %s\n📆 %s, %s\n🕒 %s\n",
			event.Summary,
			event.Start.Format("Monday"),
			event.Start.Format("January 2, 2006"),
			event.Start.Format("3:04 PM"))
		if event.Location != "" {
			text += fmt.Sprintf("📍 %s\n", event.Location)
		}
		if event.Description != "" {
			text += fmt.Sprintf("📝 %s", event.Description)
		}
		e.respond(ctx, senderID, text)
		return
	}

	dayStart := truncateToDay(*date)
	dayEnd := dayStart.Add(24 * time.Hour)
	events, err := e.calendar.ListEvents(ctx, dayStart, dayEnd, 10)
	if err != nil {
		e.logger.Error("calendar listing failed", err, map[string]interface{}{
			"sender_id": senderID,
		})
		events = nil
	}

	dateLabel := formatDate(*date)
	if dayStart.Equal(truncateToDay(e.now())) {
		dateLabel = "today"
	}

	if len(events) == 0 {
		e.respond(ctx, senderID, fmt.Sprintf("You don't have any events scheduled for %s.", dateLabel))
		return
	}

	lines := make([]string, 0, len(events))
	for _, event := range events {
		lines = append(lines, fmt.Sprintf("🕒 %s - %s", event.Start.Format("3:04 PM"), event.Summary))
	}
	e.respond(ctx, senderID, fmt.Sprintf("📅 Events for %s:\n\n%s", dateLabel, strings.Join(lines, "\n")))
}

// handleFindContact searches the contact sources and formats matches.
func (e *Engine) handleFindContact(ctx context.Context, senderID, message string, entities *models.EntityBag) {
	query := ""
	if len(entities.Person) > 0 {
		query = entities.Person[0]
	} else {
		// Take everything after a trigger word as the query.
		words := strings.Fields(message)
		for i, word := range words {
			switch strings.ToLower(word) {
			case "for", "about", "contact", "email", "address", "phone":
				if i+1 < len(words) {
					query = strings.Join(words[i+1:], " ")
				}
			}
			if query != "" {
				break
			}
		}
	}

	if query == "" {
		e.respond(ctx, senderID, "Who would you like to find contact information for?")
		return
	}

	contacts := e.contacts.Search(ctx, query)
	if len(contacts) == 0 {
		e.respond(ctx, senderID, fmt.Sprintf("No contacts found for '%s'.", query))
		return
	}

	if len(contacts) == 1 {
		e.respond(ctx, senderID, formatContactDetails(contacts[0]))
		return
	}

	var b strings.Builder
	fmt.Fprintf(&b, "Found %d contacts for '%s':\n\n", len(contacts), query)
	for i, contact := range contacts {
		fmt.Fprintf(&b, "%d. %s", i+1, contact.Name)
		if contact.Email != "" {
			fmt.Fprintf(&b, " (%s)", contact.Email)
		}
		if contact.Phone != "" {
			fmt.Fprintf(&b, " - %s", contact.Phone)
		}
		b.WriteString("\n")
	}
	e.respond(ctx, senderID, b.String())
}

func formatContactDetails(contact models.ContactRef) string {
	var b strings.Builder
	fmt.Fprintf(&b, "📇 Contact information for %s:\n\n", contact.Name)
	if contact.Email != "" {
		fmt.Fprintf(&b, "📧 Email: %s\n", contact.Email)
	}
	if contact.Phone != "" {
		fmt.Fprintf(&b, "📱 Phone: %s\n", contact.Phone)
	}
	if contact.Organization != "" {
		fmt.Fprintf(&b, "🏢 Organization: %s\n", contact.Organization)
	}
	if contact.Address != "" {
		fmt.Fprintf(&b, "📍 Address: %s", contact.Address)
	}
	return b.String()
}

// handleCheckFreeSlots lists free slots for the requested day, or today
// when no date was given.
func (e *Engine) handleCheckFreeSlots(ctx context.Context, senderID string, entities *models.EntityBag) {
	date := entities.Date
	if date == nil {
		today := truncateToDay(e.now())
		date = &today
	}

	slots, err := e.availability.FreeSlots(ctx, *date,
		e.opts.FreeSlotWindowStart, e.opts.FreeSlotWindowEnd, e.opts.DefaultMeetingMinutes)
	if err != nil {
		// Fail closed for listings: report nothing on a backend error.
		slots = nil
	}

	if len(slots) == 0 {
		e.respond(ctx, senderID, fmt.Sprintf(
			"You don't have any free %d-minute slots on %s.",
			e.opts.DefaultMeetingMinutes, formatDate(*date)))
		return
	}

	lines := make([]string, 0, len(slots))
	for _, slot := range slots {
		lines = append(lines, fmt.Sprintf("🕒 %s - %s",
			models.ClockTimeOf(slot.Start).Display(),
			models.ClockTimeOf(slot.End).Display()))
	}
	e.respond(ctx, senderID, fmt.Sprintf(
		"📅 Free %d-minute slots for %s:\n\n%s",
		e.opts.DefaultMeetingMinutes, formatDate(*date), strings.Join(lines, "\n")))
}
