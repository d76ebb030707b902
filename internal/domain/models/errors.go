package models

import "errors"

// Domain-level errors for validation and business logic.
// These errors are defined in the domain layer and can be used
// throughout the application.

var (
	// Provider errors
	ErrProviderNotFound  = errors.New("provider not found")
	ErrProviderDisabled  = errors.New("provider is disabled")
	ErrProviderDeclined  = errors.New("provider declined the request")
	ErrProviderUnhealthy = errors.New("provider health check failed")

	// Contact lookup errors
	ErrContactNotFound = errors.New("contact not found")
	ErrNoContactEmail  = errors.New("contact has no email address")

	// Conversation errors
	ErrNoConversation      = errors.New("no open conversation for sender")
	ErrUnhandledStep       = errors.New("conversation step not handled")
	ErrConversationExpired = errors.New("conversation expired")

	// Calendar errors
	ErrCalendarUnavailable = errors.New("calendar service unavailable")
	ErrEventNotCreated     = errors.New("event creation failed")

	// Transport errors
	ErrDeliveryFailed = errors.New("message delivery failed")
)
