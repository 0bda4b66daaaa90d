package redis

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/fitbuddy/fitbuddy-hub/internal/infrastructure/messaging"
)

// PubSub adapts Client to messaging.RedisClient.
type PubSub struct {
	client *Client
}

// NewPubSub creates the adapter.
func NewPubSub(client *Client) *PubSub {
	return &PubSub{client: client}
}

// Publish sends message to channel. Strings and bytes go out as-is, anything
// else is JSON encoded.
func (p *PubSub) Publish(ctx context.Context, channel string, message interface{}) error {
	if channel == "" {
		return ErrKeyEmpty
	}

	var payload interface{}
	switch m := message.(type) {
	case string, []byte:
		payload = m
	default:
		data, err := json.Marshal(m)
		if err != nil {
			return fmt.Errorf("redis: marshal message: %w", err)
		}
		payload = data
	}

	return p.client.rdb.Publish(ctx, channel, payload).Err()
}

// Subscribe forwards messages from channels until ctx is cancelled.
func (p *PubSub) Subscribe(ctx context.Context, channels ...string) (<-chan messaging.RedisMessage, error) {
	sub := p.client.rdb.Subscribe(ctx, channels...)

	// Receive blocks until the subscription is confirmed.
	if _, err := sub.Receive(ctx); err != nil {
		_ = sub.Close()
		return nil, fmt.Errorf("redis: subscribe: %w", err)
	}

	out := make(chan messaging.RedisMessage, 64)
	go func() {
		defer close(out)
		defer sub.Close()

		in := sub.Channel()
		for {
			select {
			case <-ctx.Done():
				return
			case msg, ok := <-in:
				if !ok {
					return
				}
				select {
				case out <- messaging.RedisMessage{Channel: msg.Channel, Payload: msg.Payload}:
				case <-ctx.Done():
					return
				}
			}
		}
	}()

	return out, nil
}

// Close is a no-op; the Client is closed by its owner.
func (p *PubSub) Close() error {
	return nil
}
