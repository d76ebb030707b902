package models

import "time"

// ConversationKind discriminates the multi-step flow a sender is in.
type ConversationKind string

const (
	ConversationEmail   ConversationKind = "email"
	ConversationMeeting ConversationKind = "meeting"
)

// EmailStep enumerates the email flow states.
type EmailStep string

const (
	EmailStepRecipient EmailStep = "recipient"
	EmailStepSubject   EmailStep = "subject"
	EmailStepBody      EmailStep = "body"
	EmailStepConfirm   EmailStep = "confirm"
)

// MeetingStep enumerates the meeting flow states.
type MeetingStep string

const (
	MeetingStepPerson       MeetingStep = "person"
	MeetingStepConfirmEmail MeetingStep = "confirm_email"
	MeetingStepDate         MeetingStep = "date"
	MeetingStepTime         MeetingStep = "time"
	MeetingStepConfirm      MeetingStep = "confirm"
)

// EmailDraft is the slot set gathered by the email flow.
type EmailDraft struct {
	Step      EmailStep
	Recipient string
	Subject   string
	Body      string
}

// MeetingDraft is the slot set gathered by the meeting flow.
//
// Alternatives holds the numbered free slots offered after a conflict;
// it is only populated while Step is MeetingStepConfirm.
type MeetingDraft struct {
	Step           MeetingStep
	Person         string
	SuggestedEmail string
	Date           *time.Time
	Time           *ClockTime
	EndTime        *ClockTime
	Duration       int // minutes; 0 means unset
	Location       string
	Description    string
	Alternatives   []TimeSlot
}

// ConversationState is the per-sender state of an open multi-step flow.
//
// It is a tagged union: Kind selects which draft is populated; the other
// draft pointer is always nil. At most one ConversationState exists per
// sender at any time, an invariant enforced by the dialogue engine's
// session registry.
type ConversationState struct {
	Kind    ConversationKind
	Email   *EmailDraft
	Meeting *MeetingDraft
}

// NewEmailConversation opens an email flow at the given step.
func NewEmailConversation(step EmailStep) *ConversationState {
	return &ConversationState{
		Kind:  ConversationEmail,
		Email: &EmailDraft{Step: step},
	}
}

// NewMeetingConversation opens a meeting flow at the given step.
func NewMeetingConversation(step MeetingStep) *ConversationState {
	return &ConversationState{
		Kind:    ConversationMeeting,
		Meeting: &MeetingDraft{Step: step},
	}
}
