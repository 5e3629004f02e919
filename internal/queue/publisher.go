package queue

import (
	"context"
	"encoding/json"
	"time"

	amqp "github.com/rabbitmq/amqp091-go"
	"github.com/sirupsen/logrus"
)

// Publisher delivers receipt events.  Callers treat failures as
// best-effort: a lost event never fails a booking.
type Publisher interface {
	PublishReceiptIssued(ctx context.Context, ev ReceiptIssuedEvent) error
}

// NopPublisher drops every event.  It is used when AMQP is disabled.
type NopPublisher struct{}

func (NopPublisher) PublishReceiptIssued(context.Context, ReceiptIssuedEvent) error { return nil }

// AMQPPublisher dials the broker per publish.
type AMQPPublisher struct {
	URL string
	Log logrus.FieldLogger
}

func NewAMQPPublisher(url string, logger logrus.FieldLogger) *AMQPPublisher {
	if logger == nil {
		logger = logrus.StandardLogger()
	}
	return &AMQPPublisher{URL: url, Log: logger.WithField("component", "amqp_publisher")}
}

// PublishReceiptIssued publishes ev to the receipt.issued queue as a
// persistent JSON message.  Errors are logged and returned.
func (p *AMQPPublisher) PublishReceiptIssued(ctx context.Context, ev ReceiptIssuedEvent) error {
	entry := p.Log.WithField("receipt_id", ev.ReceiptID)

	conn, err := amqp.Dial(p.URL)
	if err != nil {
		entry.WithError(err).Warn("rabbitmq: dial failed")
		return err
	}
	defer func() { _ = conn.Close() }()

	ch, err := conn.Channel()
	if err != nil {
		entry.WithError(err).Warn("rabbitmq: channel open failed")
		return err
	}
	defer func() { _ = ch.Close() }()

	// durable so messages survive broker restarts
	if _, err := ch.QueueDeclare(ReceiptQueueName, true, false, false, false, nil); err != nil {
		entry.WithError(err).Warn("rabbitmq: queue declare failed")
		return err
	}

	body, err := json.Marshal(ev)
	if err != nil {
		return err
	}
	pub := amqp.Publishing{
		ContentType:  "application/json",
		DeliveryMode: amqp.Persistent,
		Timestamp:    time.Now().UTC(),
		MessageId:    ev.ReceiptID,
		Body:         body,
	}
	if err := ch.PublishWithContext(ctx, "", ReceiptQueueName, false, false, pub); err != nil {
		entry.WithError(err).Warn("rabbitmq: publish failed")
		return err
	}
	entry.Debug("receipt event published")
	return nil
}
