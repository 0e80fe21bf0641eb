package changefeed

import (
	"context"
	"strconv"

	"github.com/redis/go-redis/v9"
)

const channel = "jobs.changed"

// Feed broadcasts "job changed" hints over Redis pub/sub. Delivery is
// at-most-once; dashboards treat a hint as "re-fetch now", never as
// authoritative state.
type Feed struct {
	client *redis.Client
}

func New(client *redis.Client) *Feed {
	return &Feed{client: client}
}

// Publish announces that a job's workflow fields changed.
func (f *Feed) Publish(ctx context.Context, jobID int64) error {
	return f.client.Publish(ctx, channel, strconv.FormatInt(jobID, 10)).Err()
}

// Subscribe returns a channel of changed job ids. The subscription ends when
// the context is cancelled.
func (f *Feed) Subscribe(ctx context.Context) (<-chan int64, func(), error) {
	sub := f.client.Subscribe(ctx, channel)
	if _, err := sub.Receive(ctx); err != nil {
		_ = sub.Close()
		return nil, nil, err
	}

	out := make(chan int64)
	go func() {
		defer close(out)
		for msg := range sub.Channel() {
			id, err := strconv.ParseInt(msg.Payload, 10, 64)
			if err != nil {
				continue
			}
			select {
			case out <- id:
			case <-ctx.Done():
				return
			}
		}
	}()

	cancel := func() { _ = sub.Close() }
	return out, cancel, nil
}
