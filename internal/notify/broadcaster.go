package notify

import (
	"context"
	"encoding/json"
	"log"

	"github.com/redis/go-redis/v9"
	"github.com/saeid-a/coachmatch/internal/models"
)

// BroadcastChannel carries every stored notification to all API instances
// so each can push it to the websocket clients it holds.
const BroadcastChannel = "coachmatch:notifications"

type Broadcaster struct {
	redis *redis.Client
}

func NewBroadcaster(client *redis.Client) *Broadcaster {
	return &Broadcaster{redis: client}
}

func (b *Broadcaster) Publish(ctx context.Context, notification models.Notification) error {
	data, err := json.Marshal(notification)
	if err != nil {
		return err
	}
	return b.redis.Publish(ctx, BroadcastChannel, data).Err()
}

// Subscribe delivers notifications published by any instance to handle until
// ctx is done.
func (b *Broadcaster) Subscribe(ctx context.Context, handle func(models.Notification)) {
	pubsub := b.redis.Subscribe(ctx, BroadcastChannel)
	defer pubsub.Close()

	messages := pubsub.Channel()
	for {
		select {
		case <-ctx.Done():
			return
		case message, ok := <-messages:
			if !ok {
				return
			}
			var notification models.Notification
			if err := json.Unmarshal([]byte(message.Payload), &notification); err != nil {
				log.Printf("bad notification broadcast: %v", err)
				continue
			}
			handle(notification)
		}
	}
}
