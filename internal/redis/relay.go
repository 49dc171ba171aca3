package redisclient

import (
	"context"
	"fmt"

	"github.com/redis/go-redis/v9"
	"github.com/rs/zerolog"
)

// Relay carries fanout frames between api-server instances over a Redis
// pub/sub channel. Every instance, including the publisher, receives each
// frame through its own subscription.
type Relay struct {
	client  *redis.Client
	channel string
	log     zerolog.Logger
}

func NewRelay(client *redis.Client, channel string, log zerolog.Logger) *Relay {
	return &Relay{
		client:  client,
		channel: channel,
		log:     log.With().Str("component", "fanout_relay").Logger(),
	}
}

func (r *Relay) Publish(ctx context.Context, frame []byte) error {
	if err := r.client.Publish(ctx, r.channel, frame).Err(); err != nil {
		return fmt.Errorf("publish fanout frame: %w", err)
	}
	return nil
}

// Run subscribes to the channel and hands every received frame to deliver
// until ctx is cancelled.
func (r *Relay) Run(ctx context.Context, deliver func(frame []byte)) error {
	sub := r.client.Subscribe(ctx, r.channel)
	defer func() {
		if err := sub.Close(); err != nil {
			r.log.Warn().Err(err).Msg("close subscription")
		}
	}()

	if _, err := sub.Receive(ctx); err != nil {
		return fmt.Errorf("subscribe %s: %w", r.channel, err)
	}
	r.log.Info().Str("channel", r.channel).Msg("relay subscribed")

	ch := sub.Channel()
	for {
		select {
		case <-ctx.Done():
			return nil
		case msg, ok := <-ch:
			if !ok {
				return nil
			}
			deliver([]byte(msg.Payload))
		}
	}
}
