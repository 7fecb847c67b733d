package cache

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/gofrs/uuid"
	"github.com/redis/go-redis/v9"
)

// InvalidationChannel carries L1 evictions between instances sharing one
// Redis.
const InvalidationChannel = "cache:invalidate"

type invalidation struct {
	Origin  string `json:"origin"`
	Key     string `json:"key,omitempty"`
	Pattern string `json:"pattern,omitempty"`
}

// EnableInvalidation subscribes c to InvalidationChannel on client. From
// then on every local Set, Delete and DeletePattern is announced, and
// announcements from other instances evict the matching L1 entries.
// It returns once the subscription is confirmed.
func (c *MultiLevelCache) EnableInvalidation(ctx context.Context, client *redis.Client) error {
	if client == nil {
		return fmt.Errorf("invalidation needs a redis client")
	}

	pubsub := client.Subscribe(ctx, InvalidationChannel)
	if _, err := pubsub.Receive(ctx); err != nil {
		_ = pubsub.Close()
		return fmt.Errorf("failed to subscribe to %s: %w", InvalidationChannel, err)
	}

	c.origin = uuid.Must(uuid.NewV4()).String()
	c.bus = client
	c.pubsub = pubsub
	c.listening = make(chan struct{})
	go c.listen(pubsub.Channel(), c.listening)
	return nil
}

func (c *MultiLevelCache) listen(messages <-chan *redis.Message, done chan<- struct{}) {
	defer close(done)
	ctx := context.Background()

	for msg := range messages {
		var inv invalidation
		if err := json.Unmarshal([]byte(msg.Payload), &inv); err != nil {
			c.log.Warn().Err(err).Msg("ignoring malformed cache invalidation")
			continue
		}
		if inv.Origin == c.origin {
			continue
		}
		if inv.Key != "" {
			_ = c.l1.Delete(ctx, inv.Key)
		}
		if inv.Pattern != "" {
			if err := c.l1.DeletePattern(ctx, inv.Pattern); err != nil {
				c.log.Warn().Err(err).Str("pattern", inv.Pattern).Msg("failed to apply cache invalidation")
			}
		}
		c.metrics.RecordRemoteEviction()
	}
}

func (c *MultiLevelCache) announce(ctx context.Context, inv invalidation) {
	if c.bus == nil {
		return
	}
	inv.Origin = c.origin
	payload, err := json.Marshal(inv)
	if err != nil {
		return
	}

	err = c.breaker.Execute(func() error {
		return c.bus.Publish(ctx, InvalidationChannel, payload).Err()
	})
	if err != nil {
		c.l2Failed("publish", inv.Key+inv.Pattern, err)
	}
}

func (c *MultiLevelCache) stopInvalidation() {
	if c.pubsub == nil {
		return
	}
	_ = c.pubsub.Close()
	<-c.listening
}
