package pubsub

import (
	"context"
	"fmt"
	"sync"

	"github.com/go-redis/redis/v8"

	"github.com/thereayou/ritual-union/pkg/log"
)

const channelPrefix = "bodydoubling:session:"

func Channel(sessionID uint) string {
	return fmt.Sprintf("%s%d", channelPrefix, sessionID)
}

// RedisNotifier fans session change nudges out to every instance through
// Redis pub/sub.
type RedisNotifier struct {
	client *redis.Client
}

func NewRedisNotifier(client *redis.Client) *RedisNotifier {
	return &RedisNotifier{client: client}
}

// Notify publishes a nudge. Subscribers still poll on their own tick, so a
// failed publish is logged and dropped.
func (n *RedisNotifier) Notify(ctx context.Context, sessionID uint) {
	if err := n.client.Publish(ctx, Channel(sessionID), "changed").Err(); err != nil {
		l := log.Ctx(ctx)
		l.Warn().Err(err).Uint(log.FieldSessionID, sessionID).Msg("publish session nudge")
	}
}

func (n *RedisNotifier) Subscribe(ctx context.Context, sessionID uint) (<-chan struct{}, func()) {
	sub := n.client.Subscribe(ctx, Channel(sessionID))
	out := make(chan struct{}, 1)
	done := make(chan struct{})

	go func() {
		msgs := sub.Channel()
		for {
			select {
			case <-done:
				return
			case _, ok := <-msgs:
				if !ok {
					return
				}
				select {
				case out <- struct{}{}:
				default:
				}
			}
		}
	}()

	var once sync.Once
	return out, func() {
		once.Do(func() {
			close(done)
			if err := sub.Close(); err != nil {
				l := log.Ctx(ctx)
				l.Debug().Err(err).Uint(log.FieldSessionID, sessionID).Msg("close session subscription")
			}
		})
	}
}
