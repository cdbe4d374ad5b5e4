package cache

import (
	"context"
	"encoding/json"
	"time"

	"github.com/redis/go-redis/v9"

	"github.com/radieske/rps-duel-platform-poc/pkg/contracts/events"
)

// Chaves mantidas por este worker; o game-feed-service lê as mesmas chaves.
const activeSetKey = "game:active"

func currentKey(gameID string) string { return "game:current:" + gameID }

// RedisCache mantém a visão corrente dos jogos no Redis.
// Client: cliente Redis
// TTL: expiração de game:current:<id>; precisa cobrir a vida útil de um jogo
type RedisCache struct {
	Client *redis.Client
	TTL    time.Duration
}

// NewRedisCache cria a visão Redis com TTL configurável.
func NewRedisCache(c *redis.Client, ttl time.Duration) *RedisCache {
	return &RedisCache{Client: c, TTL: ttl}
}

// SetCurrent grava o último evento do jogo como snapshot corrente.
func (r *RedisCache) SetCurrent(ctx context.Context, e events.GameEvent) error {
	b, err := json.Marshal(e)
	if err != nil {
		return err
	}
	return r.Client.Set(ctx, currentKey(e.GameID), b, r.TTL).Err()
}

// MarkActive inclui o jogo no índice de ativos.
func (r *RedisCache) MarkActive(ctx context.Context, gameID string) error {
	return r.Client.SAdd(ctx, activeSetKey, gameID).Err()
}

// DropActive retira o jogo do índice de ativos.
func (r *RedisCache) DropActive(ctx context.Context, gameID string) error {
	return r.Client.SRem(ctx, activeSetKey, gameID).Err()
}
