package services

import (
	"context"
	"fmt"
	"strings"

	"github.com/mshogin/assistant/internal/domain/models"
)

// emailSendTokens confirm the email at the final step.
var emailSendTokens = []string{"yes", "y", "sure", "ok", "send"}

// continueEmail advances the email slot-filling flow by one step.
func (e *Engine) continueEmail(ctx context.Context, senderID string, sess *session, text string) bool {
	draft := sess.state.Email

	switch draft.Step {
	case models.EmailStepRecipient:
		if isCancel(text) {
			e.cancelEmail(ctx, senderID, sess)
			return true
		}
		draft.Recipient = text
		e.respond(ctx, senderID, "What's the subject of the email? (or type 'cancel' to abort)")
		draft.Step = models.EmailStepSubject
		return true

	case models.EmailStepSubject:
		if isCancel(text) {
			e.cancelEmail(ctx, senderID, sess)
			return true
		}
		draft.Subject = text
		e.respond(ctx, senderID, "What's the content of the email? (or type 'cancel' to abort)")
		draft.Step = models.EmailStepBody
		return true

	case models.EmailStepBody:
		if isCancel(text) {
			e.cancelEmail(ctx, senderID, sess)
			return true
		}
		draft.Body = text
		e.respond(ctx, senderID, fmt.Sprintf(
			"I'll send an email with:\nTo: %s\nSubject: %s\nBody: %s\n\nSend it? (yes/no)",
			draft.Recipient, draft.Subject, draft.Body))
		draft.Step = models.EmailStepConfirm
		return true

	case models.EmailStepConfirm:
		if !matchesToken(text, emailSendTokens) {
			e.cancelEmail(ctx, senderID, sess)
			return true
		}

		recipient := draft.Recipient
		if !strings.Contains(recipient, "@") {
			contact, err := e.contacts.ResolveEmail(ctx, recipient)
			if err != nil {
				// Recoverable: revert to the recipient step instead of
				// destroying the draft.
				e.respond(ctx, senderID, fmt.Sprintf(
					"I couldn't find an email for '%s'. Please provide a valid email address or contact name.",
					recipient))
				draft.Step = models.EmailStepRecipient
				return true
			}
			recipient = contact.Email
		}

		result, err := e.email.Send(ctx, recipient, draft.Subject, draft.Body)
		switch {
		case err != nil:
			// Transport-level detail stays in the logs.
			e.logger.Error("email send failed", err, map[string]interface{}{
				"sender_id": senderID,
			})
			e.respond(ctx, senderID, "Failed to send email. Please try again later.")
		case result.Success:
			e.respond(ctx, senderID, "Email sent successfully!")
			e.metrics.RecordConversationCompleted()
		default:
			e.respond(ctx, senderID, fmt.Sprintf("Failed to send email: %s", errorOrUnknown(result.Error)))
		}

		// Success and failure both terminate the flow.
		sess.state = nil
		return true
	}

	return false
}

func (e *Engine) cancelEmail(ctx context.Context, senderID string, sess *session) {
	e.respond(ctx, senderID, "Email canceled.")
	sess.state = nil
	e.metrics.RecordConversationCancelled()
}

func errorOrUnknown(message string) string {
	if message == "" {
		return "Unknown error"
	}
	return message
}
