package notify

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/redis/go-redis/v9"

	"printshop-workflow/internal/models"
)

// Message kinds dispatched over the WhatsApp channel.
const (
	KindOTP      = "OTP"
	KindThankYou = "THANK_YOU"
)

// Message is one outbound notification. The OTP code rides along so a retry
// delivers the same code the store holds.
type Message struct {
	ID        string    `json:"id"`
	JobID     int64     `json:"job_id"`
	Kind      string    `json:"kind"`
	Phone     string    `json:"phone"`
	Code      string    `json:"code,omitempty"`
	Attempts  int       `json:"attempts"`
	CreatedAt time.Time `json:"created_at"`
}

// Queue coordinates ready, in-flight, and scheduled outbound notifications
// in Redis. Message bodies live under notify:msg:<id>; the queues carry ids.
type Queue struct {
	client        *redis.Client
	readyKey      string
	inflightKey   string
	scheduledKey  string
	dlqKey        string
	msgPrefix     string
	visibilityTTL time.Duration
}

// NewQueue builds a queue client.
func NewQueue(client *redis.Client, visibility time.Duration) *Queue {
	if visibility == 0 {
		visibility = 30 * time.Second
	}
	return &Queue{
		client:        client,
		readyKey:      "notify:ready",
		inflightKey:   "notify:inflight",
		scheduledKey:  "notify:scheduled",
		dlqKey:        "notify:dlq",
		msgPrefix:     "notify:msg:",
		visibilityTTL: visibility,
	}
}

func (q *Queue) msgKey(id string) string {
	return q.msgPrefix + id
}

// EnqueueOTP queues an OTP delivery for a job. Implements the OTP service's
// sender contract.
func (q *Queue) EnqueueOTP(ctx context.Context, job models.Job, code string) error {
	return q.Enqueue(ctx, Message{
		JobID: job.ID,
		Kind:  KindOTP,
		Phone: job.Phone,
		Code:  code,
	})
}

// EnqueueThankYou queues the post-completion courtesy message.
func (q *Queue) EnqueueThankYou(ctx context.Context, job models.Job) error {
	return q.Enqueue(ctx, Message{
		JobID: job.ID,
		Kind:  KindThankYou,
		Phone: job.Phone,
	})
}

// Enqueue stores the message body and pushes its id onto the ready list.
func (q *Queue) Enqueue(ctx context.Context, msg Message) error {
	if msg.ID == "" {
		msg.ID = uuid.New().String()
	}
	if msg.CreatedAt.IsZero() {
		msg.CreatedAt = time.Now().UTC()
	}
	body, err := json.Marshal(msg)
	if err != nil {
		return fmt.Errorf("marshal message: %w", err)
	}
	pipe := q.client.TxPipeline()
	pipe.Set(ctx, q.msgKey(msg.ID), body, 0)
	pipe.RPush(ctx, q.readyKey, msg.ID)
	_, err = pipe.Exec(ctx)
	return err
}

// Schedule parks a message for a deferred retry.
func (q *Queue) Schedule(ctx context.Context, msg Message, runAt time.Time) error {
	body, err := json.Marshal(msg)
	if err != nil {
		return fmt.Errorf("marshal message: %w", err)
	}
	pipe := q.client.TxPipeline()
	pipe.Set(ctx, q.msgKey(msg.ID), body, 0)
	pipe.ZAdd(ctx, q.scheduledKey, redis.Z{Score: float64(runAt.UnixMilli()), Member: msg.ID})
	_, err = pipe.Exec(ctx)
	return err
}

// PromoteScheduled moves due retries back into the ready list.
func (q *Queue) PromoteScheduled(ctx context.Context, now time.Time, limit int64) (int, error) {
	ids, err := q.client.ZRangeByScore(ctx, q.scheduledKey, &redis.ZRangeBy{
		Min:    "-inf",
		Max:    fmt.Sprintf("%d", now.UnixMilli()),
		Offset: 0,
		Count:  limit,
	}).Result()
	if err != nil {
		return 0, err
	}
	if len(ids) == 0 {
		return 0, nil
	}
	pipe := q.client.TxPipeline()
	for _, id := range ids {
		pipe.ZRem(ctx, q.scheduledKey, id)
		pipe.RPush(ctx, q.readyKey, id)
	}
	if _, err := pipe.Exec(ctx); err != nil {
		return 0, err
	}
	return len(ids), nil
}

// DequeueWithLease pops a message id and places it into inflight with a
// visibility timeout.
func (q *Queue) DequeueWithLease(ctx context.Context) (Message, bool, error) {
	res, err := dequeueScript.Run(ctx, q.client,
		[]string{q.readyKey, q.inflightKey},
		time.Now().Add(q.visibilityTTL).UnixMilli()).Result()
	if err == redis.Nil {
		return Message{}, false, nil
	}
	if err != nil {
		return Message{}, false, err
	}
	id, ok := res.(string)
	if !ok {
		return Message{}, false, fmt.Errorf("unexpected type from dequeue script: %T", res)
	}
	msg, err := q.load(ctx, id)
	if errors.Is(err, redis.Nil) {
		// Body vanished; drop the lease.
		_ = q.client.ZRem(ctx, q.inflightKey, id).Err()
		return Message{}, false, nil
	}
	if err != nil {
		return Message{}, false, err
	}
	return msg, true, nil
}

func (q *Queue) load(ctx context.Context, id string) (Message, error) {
	body, err := q.client.Get(ctx, q.msgKey(id)).Bytes()
	if err != nil {
		return Message{}, err
	}
	var msg Message
	if err := json.Unmarshal(body, &msg); err != nil {
		return Message{}, fmt.Errorf("unmarshal message %s: %w", id, err)
	}
	return msg, nil
}

// Ack removes a delivered message from in-flight tracking and deletes its
// body.
func (q *Queue) Ack(ctx context.Context, id string) error {
	pipe := q.client.TxPipeline()
	pipe.ZRem(ctx, q.inflightKey, id)
	pipe.Del(ctx, q.msgKey(id))
	_, err := pipe.Exec(ctx)
	return err
}

// Release drops the lease without deleting the body (the message is being
// rescheduled or dead-lettered).
func (q *Queue) Release(ctx context.Context, id string) error {
	return q.client.ZRem(ctx, q.inflightKey, id).Err()
}

// RequeueExpired reclaims leases that timed out.
func (q *Queue) RequeueExpired(ctx context.Context, now time.Time, limit int64) ([]string, error) {
	ids, err := q.client.ZRangeByScore(ctx, q.inflightKey, &redis.ZRangeBy{
		Min:    "-inf",
		Max:    fmt.Sprintf("%d", now.UnixMilli()),
		Offset: 0,
		Count:  limit,
	}).Result()
	if err != nil {
		return nil, err
	}
	if len(ids) == 0 {
		return nil, nil
	}
	pipe := q.client.TxPipeline()
	for _, id := range ids {
		pipe.ZRem(ctx, q.inflightKey, id)
		pipe.RPush(ctx, q.readyKey, id)
	}
	if _, err := pipe.Exec(ctx); err != nil {
		return nil, err
	}
	return ids, nil
}

// DLQPush parks a message that exhausted its attempts.
func (q *Queue) DLQPush(ctx context.Context, msg Message) error {
	body, err := json.Marshal(msg)
	if err != nil {
		return fmt.Errorf("marshal message: %w", err)
	}
	pipe := q.client.TxPipeline()
	pipe.RPush(ctx, q.dlqKey, body)
	pipe.Del(ctx, q.msgKey(msg.ID))
	_, err = pipe.Exec(ctx)
	return err
}

// DLQPeek reads dead-lettered messages for operational inspection.
func (q *Queue) DLQPeek(ctx context.Context, count int64) ([]Message, error) {
	raws, err := q.client.LRange(ctx, q.dlqKey, 0, count-1).Result()
	if err != nil {
		return nil, err
	}
	msgs := make([]Message, 0, len(raws))
	for _, raw := range raws {
		var msg Message
		if err := json.Unmarshal([]byte(raw), &msg); err != nil {
			continue
		}
		msgs = append(msgs, msg)
	}
	return msgs, nil
}

// ReadyDepth returns the pending notification count.
func (q *Queue) ReadyDepth(ctx context.Context) (int64, error) {
	return q.client.LLen(ctx, q.readyKey).Result()
}

var dequeueScript = redis.NewScript(`
local msg = redis.call('LPOP', KEYS[1])
if msg then
  redis.call('ZADD', KEYS[2], ARGV[1], msg)
  return msg
end
return nil
`)
