package cache

import (
	"context"
	"encoding/json"
	"sort"

	"github.com/redis/go-redis/v9"

	"github.com/radieske/rps-duel-platform-poc/pkg/contracts/events"
)

// Chaves gravadas pelo game-events-worker.
const activeSetKey = "game:active"

func keyCurrent(gameID string) string { return "game:current:" + gameID }

type Cache struct{ R *redis.Client }

func New(r *redis.Client) *Cache { return &Cache{R: r} }

// ActiveIDs lista os jogos ainda não liquidados, em ordem estável.
func (c *Cache) ActiveIDs(ctx context.Context) ([]string, error) {
	ids, err := c.R.SMembers(ctx, activeSetKey).Result()
	if err != nil {
		return nil, err
	}
	sort.Strings(ids)
	return ids, nil
}

// GetCurrent carrega o snapshot corrente de um jogo. O segundo retorno indica
// se a chave existia.
func (c *Cache) GetCurrent(ctx context.Context, gameID string) (events.GameEvent, bool, error) {
	b, err := c.R.Get(ctx, keyCurrent(gameID)).Bytes()
	if err == redis.Nil {
		return events.GameEvent{}, false, nil
	}
	if err != nil {
		return events.GameEvent{}, false, err
	}
	var e events.GameEvent
	if err := json.Unmarshal(b, &e); err != nil {
		return events.GameEvent{}, false, err
	}
	return e, true, nil
}
