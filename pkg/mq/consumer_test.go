package mq

import (
	"errors"
	"testing"

	"github.com/rabbitmq/amqp091-go"
	"go.uber.org/zap"
)

type fakeAcknowledger struct {
	acks     int
	nacks    int
	requeues int
}

func (a *fakeAcknowledger) Ack(tag uint64, multiple bool) error {
	a.acks++
	return nil
}

func (a *fakeAcknowledger) Nack(tag uint64, multiple bool, requeue bool) error {
	a.nacks++
	if requeue {
		a.requeues++
	}
	return nil
}

func (a *fakeAcknowledger) Reject(tag uint64, requeue bool) error {
	a.nacks++
	return nil
}

type fakeDeadLetterer struct {
	published [][]byte
	err       error
}

func (d *fakeDeadLetterer) PublishToDLQ(routingKey string, payload []byte, originalError string) error {
	if d.err != nil {
		return d.err
	}
	d.published = append(d.published, payload)
	return nil
}

func newTestConsumer(dlq deadLetterer) *Consumer {
	return &Consumer{
		routingKey: "trigger.fired",
		dlq:        dlq,
		logger:     zap.NewNop(),
	}
}

func delivery(ack amqp091.Acknowledger, redelivered bool) amqp091.Delivery {
	return amqp091.Delivery{
		Acknowledger: ack,
		Redelivered:  redelivered,
		Body:         []byte(`{"trigger_id":"t1"}`),
	}
}

func TestRejectFirstFailureRequeues(t *testing.T) {
	ack := &fakeAcknowledger{}
	dlq := &fakeDeadLetterer{}
	c := newTestConsumer(dlq)

	c.reject(delivery(ack, false), errors.New("scheduler down"))

	if ack.nacks != 1 || ack.requeues != 1 {
		t.Errorf("nacks/requeues = %d/%d, want 1/1", ack.nacks, ack.requeues)
	}
	if len(dlq.published) != 0 {
		t.Error("first failure must not dead-letter")
	}
}

func TestRejectRedeliveredGoesToDLQ(t *testing.T) {
	ack := &fakeAcknowledger{}
	dlq := &fakeDeadLetterer{}
	c := newTestConsumer(dlq)

	c.reject(delivery(ack, true), errors.New("scheduler down"))

	if len(dlq.published) != 1 {
		t.Fatalf("dead-lettered = %d messages, want 1", len(dlq.published))
	}
	if ack.acks != 1 {
		t.Errorf("acks = %d, want the dead-lettered message acked", ack.acks)
	}
	if ack.nacks != 0 {
		t.Errorf("nacks = %d, want none", ack.nacks)
	}
}

func TestRejectRedeliveredWithoutDLQRequeues(t *testing.T) {
	ack := &fakeAcknowledger{}
	c := newTestConsumer(nil)

	c.reject(delivery(ack, true), errors.New("scheduler down"))

	if ack.nacks != 1 || ack.requeues != 1 {
		t.Errorf("nacks/requeues = %d/%d, want 1/1", ack.nacks, ack.requeues)
	}
}

func TestRejectDLQPublishFailureFallsBackToRequeue(t *testing.T) {
	ack := &fakeAcknowledger{}
	dlq := &fakeDeadLetterer{err: errors.New("mq down")}
	c := newTestConsumer(dlq)

	c.reject(delivery(ack, true), errors.New("scheduler down"))

	if ack.nacks != 1 || ack.requeues != 1 {
		t.Errorf("nacks/requeues = %d/%d, want 1/1", ack.nacks, ack.requeues)
	}
	if ack.acks != 0 {
		t.Error("a message that failed to dead-letter must not be acked")
	}
}
