package mail

import (
	"context"
	"encoding/json"
	"log/slog"
	"time"

	"github.com/nats-io/nats.go/jetstream"

	"github.com/flashnotes/flashnotes/internal/metrics"
	inats "github.com/flashnotes/flashnotes/internal/nats"
)

const (
	consumerName = "mail-sender"
	maxDeliver   = 5
	sendTimeout  = 30 * time.Second
)

// Consumer delivers mail queued on the outbound mail subject.
type Consumer struct {
	sender      Sender
	consumerMgr *inats.ConsumerManager
}

func NewConsumer(sender Sender, consumerMgr *inats.ConsumerManager) *Consumer {
	return &Consumer{
		sender:      sender,
		consumerMgr: consumerMgr,
	}
}

// Start begins the consume loop. Blocks until ctx is cancelled.
func (c *Consumer) Start(ctx context.Context) error {
	consumer, err := c.consumerMgr.EnsureConsumer(ctx, inats.StreamMail, consumerName, inats.SubjectOutboundMail, maxDeliver)
	if err != nil {
		return err
	}

	slog.Info("mail consumer started", "consumer", consumerName)

	for {
		msgs, err := consumer.Fetch(10, jetstream.FetchMaxWait(inats.FetchTimeout))
		if err != nil {
			if ctx.Err() != nil {
				return nil
			}
			slog.Debug("mail consumer: fetching messages", "error", err)
			continue
		}

		for msg := range msgs.Messages() {
			c.handleMessage(ctx, msg)
		}

		if ctx.Err() != nil {
			return nil
		}
	}
}

func (c *Consumer) handleMessage(ctx context.Context, msg jetstream.Msg) {
	var out inats.OutboundMail
	if err := json.Unmarshal(msg.Data(), &out); err != nil {
		// Redelivery cannot fix a malformed payload.
		slog.Error("mail consumer: unmarshaling mail", "error", err)
		_ = msg.Term()
		return
	}

	sendCtx, cancel := context.WithTimeout(ctx, sendTimeout)
	defer cancel()

	err := c.sender.Send(sendCtx, Message{From: out.From, To: out.To, Subject: out.Subject, Body: out.Body})
	if err != nil {
		metrics.MailsSentTotal.WithLabelValues("failed").Inc()
		slog.Error("mail consumer: sending mail", "error", err, "mail_id", out.ID, "to", out.To)
		_ = msg.Nak()
		return
	}

	_ = msg.Ack()
	metrics.MailsSentTotal.WithLabelValues("sent").Inc()
	slog.Info("mail consumer: mail sent", "mail_id", out.ID, "to", out.To)
}
