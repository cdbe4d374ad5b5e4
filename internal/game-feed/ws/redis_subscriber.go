package ws

import (
	"context"
	"encoding/json"

	"github.com/redis/go-redis/v9"
	"go.uber.org/zap"
)

// StartSubscriber escuta o canal Redis Pub/Sub alimentado pelo
// game-events-worker e repassa cada frame aos clientes via Hub. O gameId é
// extraído apenas para roteamento; o payload segue intacto.
func StartSubscriber(ctx context.Context, r *redis.Client, hub *Hub, channel string, log *zap.Logger) {
	sub := r.Subscribe(ctx, channel)
	ch := sub.Channel()
	go func() {
		for {
			select {
			case <-ctx.Done():
				_ = sub.Close()
				return
			case msg := <-ch:
				if msg == nil {
					continue
				}
				var head struct {
					GameID string `json:"gameId"`
				}
				if err := json.Unmarshal([]byte(msg.Payload), &head); err != nil {
					log.Warn("feed subscriber unmarshal error", zap.Error(err))
					continue
				}
				hub.Broadcast(FeedUpdate{
					GameID:  head.GameID,
					Payload: json.RawMessage(msg.Payload),
				})
			}
		}
	}()
}
