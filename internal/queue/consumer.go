// Package queue moves booking events from the Scheduler to the notification
// dispatcher, over RabbitMQ or in process.
package queue

import (
	"context"
	"errors"
	"fmt"
	"time"

	amqp "github.com/rabbitmq/amqp091-go"

	"github.com/iliyamo/salon-appointment-scheduler/pkg/logging"
)

// MessageHandler processes one delivery body.
type MessageHandler interface {
	HandleMessage(ctx context.Context, body []byte) error
}

// Consumer reads the events queue and feeds the dispatcher. Failed
// deliveries go back through the retry queue until the topology's
// redelivery limit, then to the parking queue. It reconnects with backoff
// until the context is cancelled.
type Consumer struct {
	url      string
	topology Topology
	handler  MessageHandler
	logger   *logging.Logger
}

func NewConsumer(url string, topology Topology, h MessageHandler, logger *logging.Logger) *Consumer {
	if logger == nil {
		logger = logging.Default()
	}
	return &Consumer{url: url, topology: topology, handler: h, logger: logger}
}

// Run blocks until ctx is done.
func (c *Consumer) Run(ctx context.Context) error {
	backoff := time.Second
	for {
		conn, err := amqp.Dial(c.url)
		if err != nil {
			c.logger.Warn("event consumer dial failed", "error", err, "retry_in", backoff)
			if err := sleepCtx(ctx, backoff); err != nil {
				return nil
			}
			if backoff < 30*time.Second {
				backoff *= 2
			}
			continue
		}
		backoff = time.Second

		err = c.consume(ctx, conn)
		_ = conn.Close()
		if ctx.Err() != nil {
			return nil
		}
		c.logger.Warn("event consumer loop ended, reconnecting", "error", err)
		if err := sleepCtx(ctx, 2*time.Second); err != nil {
			return nil
		}
	}
}

func (c *Consumer) consume(ctx context.Context, conn *amqp.Connection) error {
	ch, err := conn.Channel()
	if err != nil {
		return fmt.Errorf("channel open: %w", err)
	}
	defer func() { _ = ch.Close() }()

	if err := ch.Qos(50, 0, false); err != nil {
		c.logger.Warn("event consumer qos failed", "error", err)
	}
	if err := c.topology.declare(ch); err != nil {
		return err
	}
	msgs, err := ch.Consume(c.topology.Queue, "", false, false, false, false, nil)
	if err != nil {
		return fmt.Errorf("queue consume: %w", err)
	}
	c.logger.Info("event consumer started",
		"queue", c.topology.Queue,
		"retry_delay", c.topology.RetryDelay,
		"max_redeliveries", c.topology.MaxRedeliveries,
	)
	park := func(ctx context.Context, d amqp.Delivery) error { return c.park(ctx, ch, d) }

	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case d, ok := <-msgs:
			if !ok {
				return errors.New("deliveries channel closed")
			}
			c.handle(ctx, d, park)
		}
	}
}

func (c *Consumer) handle(ctx context.Context, d amqp.Delivery, park func(context.Context, amqp.Delivery) error) {
	err := c.handler.HandleMessage(ctx, d.Body)
	rejections := deathCount(d.Headers, c.topology.Queue)
	switch c.topology.verdict(err, rejections) {
	case verdictAck:
		_ = d.Ack(false)
	case verdictRetry:
		c.logger.Warn("event handling failed, redelivering later",
			"message_id", d.MessageId,
			"type", d.Type,
			"redeliveries", rejections,
			"retry_in", c.topology.RetryDelay,
			"error", err,
		)
		_ = d.Nack(false, false) // dead-lettered to the retry queue
	case verdictPark:
		c.logger.Error("event parked",
			"message_id", d.MessageId,
			"type", d.Type,
			"redeliveries", rejections,
			"queue", c.topology.ParkingQueue(),
			"error", err,
		)
		if perr := park(ctx, d); perr != nil {
			c.logger.Error("event parking failed", "message_id", d.MessageId, "error", perr)
			_ = d.Nack(false, true)
			return
		}
		_ = d.Ack(false)
	}
}

// park copies the delivery to the parking queue, keeping its headers.
func (c *Consumer) park(ctx context.Context, ch *amqp.Channel, d amqp.Delivery) error {
	return ch.PublishWithContext(ctx, "", c.topology.ParkingQueue(), false, false, amqp.Publishing{
		Headers:      d.Headers,
		ContentType:  d.ContentType,
		DeliveryMode: amqp.Persistent,
		MessageId:    d.MessageId,
		Type:         d.Type,
		Timestamp:    d.Timestamp,
		Body:         d.Body,
	})
}
