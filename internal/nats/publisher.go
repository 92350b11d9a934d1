package nats

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/nats-io/nats.go/jetstream"
)

// Publisher provides typed methods for publishing events to NATS JetStream.
type Publisher struct {
	js jetstream.JetStream
}

// NewPublisher creates a new Publisher.
func NewPublisher(js jetstream.JetStream) *Publisher {
	return &Publisher{js: js}
}

// PublishQuotaEvent publishes an AI usage quota event.
func (p *Publisher) PublishQuotaEvent(ctx context.Context, event QuotaEvent) error {
	return p.publish(ctx, SubjectQuotaEvent, event)
}

// PublishAuthEvent publishes an account security event.
func (p *Publisher) PublishAuthEvent(ctx context.Context, event AuthEvent) error {
	return p.publish(ctx, SubjectAuthEvent, event)
}

// PublishMail queues an email for the mail consumer.
func (p *Publisher) PublishMail(ctx context.Context, mail OutboundMail) error {
	return p.publish(ctx, SubjectOutboundMail, mail)
}

func (p *Publisher) publish(ctx context.Context, subject string, data any) error {
	payload, err := json.Marshal(data)
	if err != nil {
		return fmt.Errorf("marshaling event for %s: %w", subject, err)
	}
	_, err = p.js.Publish(ctx, subject, payload)
	if err != nil {
		return fmt.Errorf("publishing to %s: %w", subject, err)
	}
	return nil
}
