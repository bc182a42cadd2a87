package gateway

import (
	"context"

	"github.com/redis/go-redis/v9"
	"github.com/sirupsen/logrus"
)

const DefaultRelayChannel = "agent:broadcast"

// RedisRelay lets several gateway instances share one agent session: the
// session publishes to a channel and every instance fans out to its own hub.
type RedisRelay struct {
	Redis   *redis.Client
	Hub     *Hub
	Channel string
	Logger  *logrus.Logger

	pubsub *redis.PubSub
}

func (r *RedisRelay) channel() string {
	if r.Channel == "" {
		return DefaultRelayChannel
	}
	return r.Channel
}

// Broadcast publishes payload for every subscribed instance.
func (r *RedisRelay) Broadcast(ctx context.Context, payload []byte) error {
	return r.Redis.Publish(ctx, r.channel(), payload).Err()
}

// Subscribe registers on the channel and waits for the server to confirm,
// so nothing published after it returns is missed. Run calls it when needed.
func (r *RedisRelay) Subscribe(ctx context.Context) error {
	if r.Logger == nil {
		r.Logger = logrus.New()
	}
	if r.pubsub != nil {
		return nil
	}

	pubsub := r.Redis.Subscribe(ctx, r.channel())
	if _, err := pubsub.Receive(ctx); err != nil {
		_ = pubsub.Close()
		return err
	}
	r.pubsub = pubsub
	r.Logger.WithField("channel", r.channel()).Info("redis relay subscribed")
	return nil
}

// Run forwards channel messages to the local hub until ctx is done.
func (r *RedisRelay) Run(ctx context.Context) error {
	if err := r.Subscribe(ctx); err != nil {
		return err
	}
	defer r.pubsub.Close()

	ch := r.pubsub.Channel()
	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case m, ok := <-ch:
			if !ok {
				return nil
			}
			_ = r.Hub.Broadcast(ctx, []byte(m.Payload))
		}
	}
}
