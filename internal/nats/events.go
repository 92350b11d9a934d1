package nats

import (
	"time"

	"github.com/google/uuid"
)

// FetchTimeout is the default timeout for batch fetching messages from consumers.
const FetchTimeout = 2 * time.Second

// Stream names.
const (
	StreamEvents = "FLASHNOTES_EVENTS"
	StreamMail   = "FLASHNOTES_MAIL"
)

// Subject constants.
const (
	SubjectQuotaEvent   = "flashnotes.events.quota"
	SubjectAuthEvent    = "flashnotes.events.auth"
	SubjectOutboundMail = "flashnotes.mail.outbound"
)

// Quota event types.
const (
	QuotaEventWindowReset = "window_reset"
	QuotaEventExhausted   = "quota_exhausted"
)

// Auth event types.
const (
	AuthEventPasswordResetRequested = "password_reset_requested"
	AuthEventPasswordResetCompleted = "password_reset_completed"
)

// QuotaEvent is published by the AI usage ledger.
type QuotaEvent struct {
	UserID     uuid.UUID `json:"user_id"`
	EventType  string    `json:"event_type"`
	UsageLimit int       `json:"usage_limit"`
	Timestamp  time.Time `json:"timestamp"`
}

// AuthEvent is published for account security events.
type AuthEvent struct {
	UserID    uuid.UUID `json:"user_id"`
	EventType string    `json:"event_type"`
	Timestamp time.Time `json:"timestamp"`
}

// OutboundMail is a plain-text email queued for delivery by the mail consumer.
type OutboundMail struct {
	ID       string    `json:"id"`
	From     string    `json:"from"`
	To       string    `json:"to"`
	Subject  string    `json:"subject"`
	Body     string    `json:"body"`
	QueuedAt time.Time `json:"queued_at"`
}
