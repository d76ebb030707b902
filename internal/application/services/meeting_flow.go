package services

import (
	"context"
	"fmt"
	"strconv"
	"strings"
	"time"

	"github.com/mshogin/assistant/internal/domain/models"
	"github.com/mshogin/assistant/internal/domain/services/nlp"
)

var (
	// meetingBookTokens confirm the proposed slot at the final step.
	meetingBookTokens = []string{"yes", "y", "sure", "ok", "book", "1"}

	// meetingRejectTokens abort at the final step.
	meetingRejectTokens = []string{"no", "n", "nope", "cancel"}

	// suggestionConfirmTokens accept a suggested address correction.
	suggestionConfirmTokens = []string{"yes", "y", "correct", "confirm", "right"}
)

// continueMeeting advances the meeting slot-filling flow by one step.
func (e *Engine) continueMeeting(ctx context.Context, senderID string, sess *session, text string) bool {
	draft := sess.state.Meeting

	switch draft.Step {
	case models.MeetingStepPerson:
		return e.meetingPersonStep(ctx, senderID, sess, text)
	case models.MeetingStepConfirmEmail:
		return e.meetingConfirmEmailStep(ctx, senderID, sess, text)
	case models.MeetingStepDate:
		return e.meetingDateStep(ctx, senderID, sess, text)
	case models.MeetingStepTime:
		return e.meetingTimeStep(ctx, senderID, sess, text)
	case models.MeetingStepConfirm:
		return e.meetingConfirmStep(ctx, senderID, sess, text)
	}

	return false
}

func (e *Engine) meetingPersonStep(ctx context.Context, senderID string, sess *session, text string) bool {
	draft := sess.state.Meeting

	if isCancel(text) {
		e.cancelMeeting(ctx, senderID, sess)
		return true
	}

	// Address-shaped input is validated before being accepted.
	if nlp.LooksLikeAddress(text) {
		validation := e.validator.Validate(text)
		if !validation.Valid {
			response := fmt.Sprintf("The email '%s' appears to be invalid. %s", text, validation.ErrorMessage)
			if validation.SuggestedCorrection != "" {
				response += fmt.Sprintf(
					"\n\nDid you mean '%s'? Please confirm or provide a correct email.",
					validation.SuggestedCorrection)
				draft.SuggestedEmail = validation.SuggestedCorrection
				draft.Step = models.MeetingStepConfirmEmail
			} else {
				response += "\n\nPlease provide a valid email address."
			}
			e.respond(ctx, senderID, response)
			return true
		}
	}

	draft.Person = text
	e.askMeetingDateOrTime(ctx, senderID, draft)
	return true
}

func (e *Engine) meetingConfirmEmailStep(ctx context.Context, senderID string, sess *session, text string) bool {
	draft := sess.state.Meeting

	switch {
	case isCancel(text):
		e.cancelMeeting(ctx, senderID, sess)

	case matchesToken(text, suggestionConfirmTokens):
		draft.Person = draft.SuggestedEmail
		draft.SuggestedEmail = ""
		e.askMeetingDateOrTime(ctx, senderID, draft)

	case strings.Contains(text, "@"):
		validation := e.validator.Validate(text)
		if !validation.Valid {
			response := fmt.Sprintf("The email '%s' still appears to be invalid. %s", text, validation.ErrorMessage)
			if validation.SuggestedCorrection != "" {
				response += fmt.Sprintf("\n\nDid you mean '%s'?", validation.SuggestedCorrection)
				draft.SuggestedEmail = validation.SuggestedCorrection
			} else {
				response += "\n\nPlease provide a valid email address."
			}
			e.respond(ctx, senderID, response)
			return true
		}
		draft.Person = text
		draft.SuggestedEmail = ""
		e.askMeetingDateOrTime(ctx, senderID, draft)

	default:
		e.respond(ctx, senderID, "Please provide a valid email address or type 'cancel' to abort.")
	}

	return true
}

// askMeetingDateOrTime prompts for whichever of date and time is still
// missing after the person slot was filled.
func (e *Engine) askMeetingDateOrTime(ctx context.Context, senderID string, draft *models.MeetingDraft) {
	if draft.Date != nil {
		e.respond(ctx, senderID, fmt.Sprintf(
			"What time on %s? (or type 'cancel' to abort)", formatDate(*draft.Date)))
		draft.Step = models.MeetingStepTime
		return
	}
	e.respond(ctx, senderID, "What date? (or type 'cancel' to abort)")
	draft.Step = models.MeetingStepDate
}

func (e *Engine) meetingDateStep(ctx context.Context, senderID string, sess *session, text string) bool {
	draft := sess.state.Meeting

	if isCancel(text) {
		e.cancelMeeting(ctx, senderID, sess)
		return true
	}

	entities := e.extractor.Extract(ctx, text, models.IntentUnknown)
	if entities.Date == nil {
		e.respond(ctx, senderID,
			"I couldn't understand that date. Please provide a specific date "+
				"like 'tomorrow', 'next Friday', or 'May 15th'.")
		return true
	}

	today := truncateToDay(e.now())
	if entities.Date.Before(today) {
		e.respond(ctx, senderID, fmt.Sprintf(
			"The date %s has already passed. Please provide a future date.",
			formatDate(*entities.Date)))
		return true
	}

	draft.Date = entities.Date

	if draft.Time != nil {
		return e.checkMeetingAvailability(ctx, senderID, sess)
	}

	e.respond(ctx, senderID, fmt.Sprintf(
		"What time on %s? (or type 'cancel' to abort)", formatDate(*draft.Date)))
	draft.Step = models.MeetingStepTime
	return true
}

func (e *Engine) meetingTimeStep(ctx context.Context, senderID string, sess *session, text string) bool {
	draft := sess.state.Meeting

	if isCancel(text) {
		e.cancelMeeting(ctx, senderID, sess)
		return true
	}

	entities := e.extractor.Extract(ctx, text, models.IntentUnknown)
	if entities.Time == nil {
		e.respond(ctx, senderID,
			"I couldn't understand that time. Please provide a specific time "+
				"like '3pm', '15:30', or 'at 2 o'clock'.")
		return true
	}

	draft.Time = entities.Time
	return e.checkMeetingAvailability(ctx, senderID, sess)
}

func (e *Engine) meetingConfirmStep(ctx context.Context, senderID string, sess *session, text string) bool {
	draft := sess.state.Meeting
	trimmed := strings.TrimSpace(text)

	// When alternatives are listed, every digit selects a slot. Only a
	// direct confirmation prompt treats "1" as an affirmative.
	if n, err := strconv.Atoi(trimmed); err == nil && len(draft.Alternatives) > 0 {
		index := n - 1
		if index < 0 || index >= len(draft.Alternatives) {
			e.respond(ctx, senderID,
				"Invalid selection. Please choose a number from the list or type 'cancel' to abort.")
			return true
		}
		slot := draft.Alternatives[index]
		date := truncateToDay(slot.Start)
		start := models.ClockTimeOf(slot.Start)
		end := models.ClockTimeOf(slot.End)
		draft.Date = &date
		draft.Time = &start
		draft.EndTime = &end
		return e.bookMeeting(ctx, senderID, sess)
	}

	switch {
	case matchesToken(trimmed, meetingBookTokens):
		return e.bookMeeting(ctx, senderID, sess)
	case matchesToken(trimmed, meetingRejectTokens):
		e.cancelMeeting(ctx, senderID, sess)
		return true
	default:
		e.respond(ctx, senderID,
			"I didn't understand your response. Please answer with 'yes', 'no', "+
				"or the number of an alternative slot.")
		return true
	}
}

// checkMeetingAvailability validates the proposed slot against the
// calendar and moves the flow to the confirm step, either with a direct
// question or a numbered list of alternatives.
func (e *Engine) checkMeetingAvailability(ctx context.Context, senderID string, sess *session) bool {
	draft := sess.state.Meeting

	start := draft.Time.On(*draft.Date)
	now := e.now()

	if start.Before(now) {
		e.respond(ctx, senderID, fmt.Sprintf(
			"The time %s on %s has already passed. Current time is %s. Please provide a future time.",
			draft.Time.String(), formatDate(*draft.Date), now.Format("15:04")))
		draft.Step = models.MeetingStepTime
		return true
	}

	duration := draft.Duration
	if duration <= 0 {
		duration = e.opts.DefaultMeetingMinutes
	}
	end := start.Add(time.Duration(duration) * time.Minute)
	endClock := models.ClockTimeOf(end)
	draft.EndTime = &endClock

	if !e.availability.HasConflict(ctx, models.TimeSlot{Start: start, End: end}) {
		draft.Alternatives = nil
		contactInfo := ""
		if !strings.Contains(draft.Person, "@") {
			if contact, err := e.contacts.ResolveEmail(ctx, draft.Person); err == nil {
				contactInfo = fmt.Sprintf(" (%s)", contact.Email)
			}
		}
		e.respond(ctx, senderID, fmt.Sprintf(
			"I'll schedule a %d-minute meeting with %s%s on %s at %s. Is that correct? (yes/no)",
			duration, draft.Person, contactInfo, formatDate(*draft.Date), draft.Time.Display()))
		draft.Step = models.MeetingStepConfirm
		return true
	}

	free, err := e.availability.FreeSlots(ctx, *draft.Date, e.opts.ConflictWindowStart, e.opts.ConflictWindowEnd, duration)
	if err != nil {
		free = nil
	}

	if len(free) == 0 {
		e.respond(ctx, senderID, fmt.Sprintf(
			"I'm sorry, you don't have any free %d-minute slots on %s. Would you like to try another date?",
			duration, formatDate(*draft.Date)))
		draft.Step = models.MeetingStepDate
		return true
	}

	if len(free) > e.opts.MaxAlternatives {
		free = free[:e.opts.MaxAlternatives]
	}
	draft.Alternatives = free

	lines := make([]string, 0, len(free))
	for i, slot := range free {
		lines = append(lines, fmt.Sprintf("%d. %s - %s",
			i+1,
			models.ClockTimeOf(slot.Start).Display(),
			models.ClockTimeOf(slot.End).Display()))
	}

	e.respond(ctx, senderID, fmt.Sprintf(
		"You already have a meeting at %s on %s. Here are some free %d-minute slots:\n\n%s\n\nPlease choose a slot by number, or type 'cancel' to abort.",
		draft.Time.Display(), formatDate(*draft.Date), duration, strings.Join(lines, "\n")))
	draft.Step = models.MeetingStepConfirm
	return true
}

// bookMeeting creates the calendar event after confirmation. Attendee
// addresses are re-validated right before booking.
func (e *Engine) bookMeeting(ctx context.Context, senderID string, sess *session) bool {
	draft := sess.state.Meeting

	person := draft.Person
	start := draft.Time.On(*draft.Date)
	end := draft.EndTime.On(*draft.Date)

	var attendees []string
	if strings.Contains(person, "@") {
		attendees = append(attendees, person)
	} else {
		if contact, err := e.contacts.ResolveEmail(ctx, person); err == nil {
			person = contact.Name
			attendees = append(attendees, contact.Email)
		}
	}

	for _, attendee := range attendees {
		validation := e.validator.Validate(attendee)
		if validation.Valid {
			continue
		}
		e.respond(ctx, senderID, fmt.Sprintf(
			"Cannot schedule meeting: Invalid email '%s'. %s", attendee, validation.ErrorMessage))
		if validation.SuggestedCorrection != "" {
			e.respond(ctx, senderID, fmt.Sprintf(
				"Did you mean '%s'? Please try again with the correct email.",
				validation.SuggestedCorrection))
		}
		sess.state = nil
		return true
	}

	result, err := e.calendar.CreateEvent(ctx,
		fmt.Sprintf("Meeting with %s", person),
		start, end, draft.Description, draft.Location, attendees, true)

	switch {
	case err != nil:
		e.logger.Error("calendar insert failed", err, map[string]interface{}{
			"sender_id": senderID,
		})
		e.respond(ctx, senderID, "Failed to schedule meeting. Please try again later.")
	case result.Success:
		link := result.Link
		if link == "" {
			link = "Not available"
		}
		e.respond(ctx, senderID, fmt.Sprintf(
			"✅ Meeting scheduled successfully!\n\nMeeting with %s\nDate: %s\nTime: %s - %s\nCalendar link: %s",
			person, formatDate(*draft.Date), draft.Time.Display(), draft.EndTime.Display(), link))
		e.metrics.RecordConversationCompleted()
	default:
		e.respond(ctx, senderID, fmt.Sprintf("Failed to schedule meeting: %s", errorOrUnknown(result.Error)))
	}

	sess.state = nil
	return true
}

func (e *Engine) cancelMeeting(ctx context.Context, senderID string, sess *session) {
	e.respond(ctx, senderID, "Meeting scheduling canceled.")
	sess.state = nil
	e.metrics.RecordConversationCancelled()
}

func truncateToDay(t time.Time) time.Time {
	return time.Date(t.Year(), t.Month(), t.Day(), 0, 0, 0, 0, t.Location())
}
