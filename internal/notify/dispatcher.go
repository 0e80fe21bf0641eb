package notify

import (
	"context"
	"math"
	"math/rand"
	"time"

	"github.com/rs/zerolog"

	"printshop-workflow/internal/telemetry"
)

// Sender delivers a single message over the external channel.
type Sender interface {
	Send(ctx context.Context, msg Message) error
}

// Dispatcher drives the outbound delivery loop: dequeue with lease, send,
// retry with backoff, dead-letter after max attempts. A failed send never
// touches job state; the workflow transition it belongs to already happened.
type Dispatcher struct {
	queue          *Queue
	sender         Sender
	log            zerolog.Logger
	maxAttempts    int
	pollInterval   time.Duration
	backoffInitial time.Duration
	backoffMax     time.Duration
}

func NewDispatcher(queue *Queue, sender Sender, log zerolog.Logger, maxAttempts int, poll, backoffInitial, backoffMax time.Duration) *Dispatcher {
	if maxAttempts <= 0 {
		maxAttempts = 5
	}
	if poll <= 0 {
		poll = time.Second
	}
	return &Dispatcher{
		queue:          queue,
		sender:         sender,
		log:            log,
		maxAttempts:    maxAttempts,
		pollInterval:   poll,
		backoffInitial: backoffInitial,
		backoffMax:     backoffMax,
	}
}

// Run loops until context cancellation.
func (d *Dispatcher) Run(ctx context.Context) error {
	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		default:
		}

		_, _ = d.queue.PromoteScheduled(ctx, time.Now(), 100)
		if reclaimed, _ := d.queue.RequeueExpired(ctx, time.Now(), 100); len(reclaimed) > 0 {
			d.log.Warn().Int("count", len(reclaimed)).Msg("reclaimed expired notification leases")
		}
		if depth, err := d.queue.ReadyDepth(ctx); err == nil {
			telemetry.NotifyQueueDepth.Set(float64(depth))
		}

		msg, ok, err := d.queue.DequeueWithLease(ctx)
		if err != nil || !ok {
			select {
			case <-ctx.Done():
				return ctx.Err()
			case <-time.After(d.pollInterval):
			}
			continue
		}

		d.deliver(ctx, msg)
	}
}

func (d *Dispatcher) deliver(ctx context.Context, msg Message) {
	err := d.sender.Send(ctx, msg)
	if err == nil {
		_ = d.queue.Ack(ctx, msg.ID)
		telemetry.NotifySent.Inc()
		d.log.Info().Str("msg_id", msg.ID).Int64("job_id", msg.JobID).Str("kind", msg.Kind).Msg("notification delivered")
		return
	}

	msg.Attempts++
	if msg.Attempts >= d.maxAttempts {
		_ = d.queue.Release(ctx, msg.ID)
		_ = d.queue.DLQPush(ctx, msg)
		telemetry.NotifyDeadLetter.Inc()
		d.log.Error().Err(err).Str("msg_id", msg.ID).Int64("job_id", msg.JobID).Msg("notification dead-lettered")
		return
	}

	backoff := backoffWithJitter(d.backoffInitial, d.backoffMax, msg.Attempts)
	_ = d.queue.Release(ctx, msg.ID)
	_ = d.queue.Schedule(ctx, msg, time.Now().Add(backoff))
	telemetry.NotifyFailures.Inc()
	d.log.Warn().Err(err).Str("msg_id", msg.ID).Dur("retry_in", backoff).Msg("notification send failed")
}

func backoffWithJitter(base, max time.Duration, attempt int) time.Duration {
	if base <= 0 {
		base = 2 * time.Second
	}
	if max <= 0 {
		max = 5 * time.Minute
	}
	if attempt <= 0 {
		return base
	}
	exp := float64(base) * math.Pow(2, float64(attempt-1))
	wait := time.Duration(exp)
	if wait > max {
		wait = max
	}
	jitter := time.Duration(rand.Int63n(int64(wait / 2)))
	return wait/2 + jitter
}
