package models

// Intent represents the categorical action a user message is requesting.
//
// The set is fixed: the classifier never invents new intents, and every
// message resolves to exactly one of these values.
type Intent string

const (
	IntentSendEmail       Intent = "send_email"
	IntentScheduleMeeting Intent = "schedule_meeting"
	IntentCheckCalendar   Intent = "check_calendar"
	IntentFindContact     Intent = "find_contact"
	IntentCheckFreeSlots  Intent = "check_free_slots"
	IntentUnknown         Intent = "unknown"
)

// AllIntents lists every actionable intent in classification order.
// IntentUnknown is excluded: it is a fallback, never a candidate label.
var AllIntents = []Intent{
	IntentSendEmail,
	IntentScheduleMeeting,
	IntentCheckCalendar,
	IntentFindContact,
	IntentCheckFreeSlots,
}

// IntentResult is the outcome of a single classification pass.
//
// Confidence lies in [0,1]. It expresses classifier certainty, not a
// calibrated probability. Results are produced fresh per message and
// never persisted beyond the current resolution step.
type IntentResult struct {
	Intent     Intent  `json:"intent"`
	Confidence float64 `json:"confidence"`
}
