package notify

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/rs/zerolog"
)

type scriptedSender struct {
	failures int
	sent     []Message
}

func (s *scriptedSender) Send(_ context.Context, msg Message) error {
	if s.failures > 0 {
		s.failures--
		return errors.New("channel unavailable")
	}
	s.sent = append(s.sent, msg)
	return nil
}

func TestDeliverSuccess(t *testing.T) {
	q, _ := newTestQueue(t)
	ctx := context.Background()

	if err := q.Enqueue(ctx, Message{ID: "m1", JobID: 1, Kind: KindOTP, Phone: "98", Code: "111111"}); err != nil {
		t.Fatal(err)
	}
	msg, ok, _ := q.DequeueWithLease(ctx)
	if !ok {
		t.Fatal("dequeue failed")
	}

	sender := &scriptedSender{}
	d := NewDispatcher(q, sender, zerolog.Nop(), 3, time.Second, time.Second, time.Minute)
	d.deliver(ctx, msg)

	if len(sender.sent) != 1 || sender.sent[0].ID != "m1" {
		t.Fatalf("message not delivered: %+v", sender.sent)
	}
	if _, ok, _ := q.DequeueWithLease(ctx); ok {
		t.Fatal("delivered message must be acked away")
	}
}

func TestDeliverFailureSchedulesRetry(t *testing.T) {
	q, _ := newTestQueue(t)
	ctx := context.Background()

	if err := q.Enqueue(ctx, Message{ID: "m1", JobID: 1, Kind: KindOTP, Phone: "98"}); err != nil {
		t.Fatal(err)
	}
	msg, ok, _ := q.DequeueWithLease(ctx)
	if !ok {
		t.Fatal("dequeue failed")
	}

	sender := &scriptedSender{failures: 1}
	d := NewDispatcher(q, sender, zerolog.Nop(), 3, time.Second, time.Second, time.Minute)
	d.deliver(ctx, msg)

	// Retry is parked in the scheduled set, not immediately ready.
	if _, ok, _ := q.DequeueWithLease(ctx); ok {
		t.Fatal("failed message must not be immediately ready")
	}
	n, err := q.PromoteScheduled(ctx, time.Now().Add(2*time.Minute), 100)
	if err != nil || n != 1 {
		t.Fatalf("want 1 promoted retry, got %d (%v)", n, err)
	}
	retry, ok, _ := q.DequeueWithLease(ctx)
	if !ok {
		t.Fatal("retry not dequeued")
	}
	if retry.Attempts != 1 {
		t.Fatalf("want attempts=1 on retry, got %d", retry.Attempts)
	}
}

func TestDeliverExhaustionDeadLetters(t *testing.T) {
	q, _ := newTestQueue(t)
	ctx := context.Background()

	if err := q.Enqueue(ctx, Message{ID: "m1", JobID: 1, Kind: KindThankYou, Phone: "98", Attempts: 2}); err != nil {
		t.Fatal(err)
	}
	msg, ok, _ := q.DequeueWithLease(ctx)
	if !ok {
		t.Fatal("dequeue failed")
	}

	sender := &scriptedSender{failures: 1}
	d := NewDispatcher(q, sender, zerolog.Nop(), 3, time.Second, time.Second, time.Minute)
	d.deliver(ctx, msg)

	dead, err := q.DLQPeek(ctx, 10)
	if err != nil {
		t.Fatal(err)
	}
	if len(dead) != 1 || dead[0].ID != "m1" || dead[0].Attempts != 3 {
		t.Fatalf("dlq mismatch: %+v", dead)
	}
	if n, _ := q.PromoteScheduled(ctx, time.Now().Add(time.Hour), 100); n != 0 {
		t.Fatal("dead-lettered message must not be scheduled for retry")
	}
}
