package queue

import (
	"errors"
	"fmt"
	"time"

	amqp "github.com/rabbitmq/amqp091-go"
)

// Topology describes the queues around the events queue. A rejected
// delivery is dead-lettered to the retry queue, held there for RetryDelay,
// then dead-lettered back to the events queue. Events that fail
// MaxRedeliveries times, or can never be delivered, are moved to the
// parking queue for an operator to inspect.
type Topology struct {
	Queue           string
	RetryDelay      time.Duration
	MaxRedeliveries int
}

func (t Topology) RetryQueue() string   { return t.Queue + ".retry" }
func (t Topology) ParkingQueue() string { return t.Queue + ".dead" }

// declare creates the three queues. Arguments of an existing queue cannot
// be changed in place, so a queue declared without them must be deleted
// once before upgrading.
func (t Topology) declare(ch *amqp.Channel) error {
	queues := []struct {
		name string
		args amqp.Table
	}{
		{t.Queue, amqp.Table{
			"x-dead-letter-exchange":    "",
			"x-dead-letter-routing-key": t.RetryQueue(),
		}},
		{t.RetryQueue(), amqp.Table{
			"x-dead-letter-exchange":    "",
			"x-dead-letter-routing-key": t.Queue,
			"x-message-ttl":             t.RetryDelay.Milliseconds(),
		}},
		{t.ParkingQueue(), nil},
	}
	for _, q := range queues {
		if _, err := ch.QueueDeclare(q.name, true, false, false, false, q.args); err != nil {
			return fmt.Errorf("queue declare %s: %w", q.name, err)
		}
	}
	return nil
}

type verdict int

const (
	verdictAck verdict = iota
	verdictRetry
	verdictPark
)

func (v verdict) String() string {
	switch v {
	case verdictAck:
		return "ack"
	case verdictRetry:
		return "retry"
	default:
		return "park"
	}
}

// verdict decides what happens to a delivery that has already been
// rejected from the events queue `rejections` times.
func (t Topology) verdict(err error, rejections int64) verdict {
	switch {
	case err == nil:
		return verdictAck
	case errors.Is(err, ErrUndeliverable), rejections >= int64(t.MaxRedeliveries):
		return verdictPark
	default:
		return verdictRetry
	}
}

// deathCount reads how often the broker dead-lettered the message out of
// queue after a rejection, from the x-death header.
func deathCount(headers amqp.Table, queue string) int64 {
	deaths, ok := headers["x-death"].([]interface{})
	if !ok {
		return 0
	}
	for _, raw := range deaths {
		entry, ok := raw.(amqp.Table)
		if !ok {
			continue
		}
		if q, _ := entry["queue"].(string); q != queue {
			continue
		}
		if r, _ := entry["reason"].(string); r != "rejected" {
			continue
		}
		if n, ok := entry["count"].(int64); ok {
			return n
		}
	}
	return 0
}
