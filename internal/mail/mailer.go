package mail

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/google/uuid"

	"github.com/flashnotes/flashnotes/internal/metrics"
	inats "github.com/flashnotes/flashnotes/internal/nats"
)

// DirectMailer sends password reset mail synchronously.
type DirectMailer struct {
	sender Sender
	from   string
}

func NewDirectMailer(sender Sender, from string) *DirectMailer {
	return &DirectMailer{sender: sender, from: from}
}

func (m *DirectMailer) SendPasswordReset(ctx context.Context, to, resetURL string) error {
	err := m.sender.Send(ctx, PasswordResetMessage(m.from, to, resetURL))
	if err != nil {
		metrics.MailsSentTotal.WithLabelValues("failed").Inc()
		slog.Error("sending password reset email", "error", err, "to", to)
		return err
	}
	metrics.MailsSentTotal.WithLabelValues("sent").Inc()
	slog.Info("password reset email sent", "to", to)
	return nil
}

// MailPublisher is satisfied by *nats.Publisher.
type MailPublisher interface {
	PublishMail(ctx context.Context, mail inats.OutboundMail) error
}

// QueuedMailer hands password reset mail to JetStream; Consumer delivers it.
type QueuedMailer struct {
	publisher MailPublisher
	from      string
}

func NewQueuedMailer(publisher MailPublisher, from string) *QueuedMailer {
	return &QueuedMailer{publisher: publisher, from: from}
}

func (m *QueuedMailer) SendPasswordReset(ctx context.Context, to, resetURL string) error {
	msg := PasswordResetMessage(m.from, to, resetURL)
	if err := msg.Validate(); err != nil {
		return err
	}

	out := inats.OutboundMail{
		ID:       uuid.NewString(),
		From:     msg.From,
		To:       msg.To,
		Subject:  msg.Subject,
		Body:     msg.Body,
		QueuedAt: time.Now().UTC(),
	}
	if err := m.publisher.PublishMail(ctx, out); err != nil {
		metrics.MailsSentTotal.WithLabelValues("failed").Inc()
		return fmt.Errorf("queueing mail: %w", err)
	}

	metrics.MailsSentTotal.WithLabelValues("queued").Inc()
	slog.Debug("password reset email queued", "mail_id", out.ID, "to", to)
	return nil
}
