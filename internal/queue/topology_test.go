package queue

import (
	"context"
	"errors"
	"fmt"
	"io"
	"testing"
	"time"

	amqp "github.com/rabbitmq/amqp091-go"
	"github.com/stretchr/testify/assert"

	"github.com/iliyamo/salon-appointment-scheduler/pkg/logging"
)

func testTopology() Topology {
	return Topology{Queue: "booking.events", RetryDelay: time.Minute, MaxRedeliveries: 3}
}

func xDeath(entries ...amqp.Table) amqp.Table {
	list := make([]interface{}, len(entries))
	for i, e := range entries {
		list[i] = e
	}
	return amqp.Table{"x-death": list}
}

func TestDeathCount(t *testing.T) {
	headers := xDeath(
		amqp.Table{"queue": "booking.events.retry", "reason": "expired", "count": int64(2)},
		amqp.Table{"queue": "booking.events", "reason": "rejected", "count": int64(2)},
	)
	assert.Equal(t, int64(2), deathCount(headers, "booking.events"))
	assert.Zero(t, deathCount(headers, "other.queue"))
	assert.Zero(t, deathCount(nil, "booking.events"))
	assert.Zero(t, deathCount(amqp.Table{"x-death": "garbage"}, "booking.events"))
}

func TestVerdict(t *testing.T) {
	topo := testTopology()
	transient := errors.New("smtp unavailable")
	cases := []struct {
		name       string
		err        error
		rejections int64
		want       verdict
	}{
		{"success", nil, 0, verdictAck},
		{"success after retries", nil, 2, verdictAck},
		{"first failure", transient, 0, verdictRetry},
		{"below limit", transient, 2, verdictRetry},
		{"limit reached", transient, 3, verdictPark},
		{"malformed", fmt.Errorf("%w: unmarshal", ErrUndeliverable), 0, verdictPark},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			assert.Equal(t, tc.want, topo.verdict(tc.err, tc.rejections), tc.want.String())
		})
	}
}

type recordingAcker struct {
	acks, nacks int
	requeued    bool
}

func (a *recordingAcker) Ack(uint64, bool) error { a.acks++; return nil }
func (a *recordingAcker) Nack(_ uint64, _ bool, requeue bool) error {
	a.nacks++
	a.requeued = requeue
	return nil
}
func (a *recordingAcker) Reject(uint64, bool) error { return nil }

type handlerFunc func(ctx context.Context, body []byte) error

func (f handlerFunc) HandleMessage(ctx context.Context, body []byte) error { return f(ctx, body) }

func TestConsumerHandleRoutesDeliveries(t *testing.T) {
	transient := errors.New("smtp unavailable")
	cases := []struct {
		name       string
		err        error
		headers    amqp.Table
		parkErr    error
		wantAcks   int
		wantNacks  int
		wantParked bool
		requeued   bool
	}{
		{name: "delivered", wantAcks: 1},
		{name: "retried through the retry queue", err: transient, wantNacks: 1},
		{name: "parked after the redelivery limit", err: transient,
			headers:  xDeath(amqp.Table{"queue": "booking.events", "reason": "rejected", "count": int64(3)}),
			wantAcks: 1, wantParked: true},
		{name: "undeliverable parked at once", err: ErrUndeliverable, wantAcks: 1, wantParked: true},
		{name: "parking failure requeues", err: ErrUndeliverable, parkErr: errors.New("channel closed"),
			wantNacks: 1, wantParked: true, requeued: true},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			c := NewConsumer("amqp://unused", testTopology(),
				handlerFunc(func(context.Context, []byte) error { return tc.err }),
				logging.NewWithWriter(io.Discard, "error"))
			acker := &recordingAcker{}
			parked := false
			park := func(context.Context, amqp.Delivery) error {
				parked = true
				return tc.parkErr
			}

			c.handle(context.Background(), amqp.Delivery{Acknowledger: acker, Headers: tc.headers, Body: []byte("{}")}, park)

			assert.Equal(t, tc.wantAcks, acker.acks)
			assert.Equal(t, tc.wantNacks, acker.nacks)
			assert.Equal(t, tc.wantParked, parked)
			assert.Equal(t, tc.requeued, acker.requeued)
		})
	}
}
