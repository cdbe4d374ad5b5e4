package main

import (
	"context"
	"os/signal"
	"syscall"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"go.uber.org/zap"

	"github.com/radieske/rps-duel-platform-poc/internal/game-events/cache"
	"github.com/radieske/rps-duel-platform-poc/internal/game-events/consumer"
	"github.com/radieske/rps-duel-platform-poc/internal/game-events/pubsub"
	"github.com/radieske/rps-duel-platform-poc/internal/game-events/repository"
	sharedcache "github.com/radieske/rps-duel-platform-poc/internal/shared/cache"
	"github.com/radieske/rps-duel-platform-poc/internal/shared/config"
	"github.com/radieske/rps-duel-platform-poc/internal/shared/db"
	skafka "github.com/radieske/rps-duel-platform-poc/internal/shared/kafka"
	"github.com/radieske/rps-duel-platform-poc/internal/shared/logger"
	"github.com/radieske/rps-duel-platform-poc/internal/shared/metrics"
)

func main() {
	cfg := config.Load()
	log, err := logger.New(cfg.ServiceName, cfg.Env)
	if err != nil {
		panic(err)
	}
	defer log.Sync()

	pg, err := db.ConnectPostgres(cfg.PostgresDSN)
	if err != nil {
		log.Fatal("postgres connect", zap.Error(err))
	}
	defer pg.Close()

	redisClient, err := sharedcache.ConnectRedis(cfg.RedisAddr)
	if err != nil {
		log.Fatal("redis connect", zap.Error(err))
	}
	defer redisClient.Close()

	repo := repository.NewPostgresRepo(pg)
	{
		ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer cancel()
		if err := repo.EnsureSchema(ctx); err != nil {
			log.Fatal("ensure schema", zap.Error(err))
		}
	}

	if cfg.Env == "local" {
		if err := skafka.EnsureTopic(context.Background(), cfg.KafkaBrokers, cfg.TopicGameEvents); err != nil {
			log.Warn("ensure topic failed", zap.String("topic", cfg.TopicGameEvents), zap.Error(err))
		}
	}

	reader := skafka.NewReader(cfg.KafkaBrokers, cfg.TopicGameEvents, "game-events-worker")
	defer reader.Close()

	// TTL da visão corrente; maior que a carência de refund (24h)
	rcache := cache.NewRedisCache(redisClient, 48*time.Hour)
	broadcaster := pubsub.NewRedisBroadcaster(redisClient)

	// métricas
	consumed := prometheus.NewCounter(prometheus.CounterOpts{Name: "game_events_consumed_total", Help: "eventos consumidos"})
	cached := prometheus.NewCounter(prometheus.CounterOpts{Name: "game_events_cache_sets_total", Help: "atualizações da visão corrente"})
	persisted := prometheus.NewCounter(prometheus.CounterOpts{Name: "game_events_persisted_total", Help: "eventos gravados no histórico"})
	broadcast := prometheus.NewCounter(prometheus.CounterOpts{Name: "game_events_broadcast_total", Help: "frames repassados ao feed"})
	errorsBy := prometheus.NewCounterVec(prometheus.CounterOpts{Name: "game_events_errors_total", Help: "erros por estágio"}, []string{"stage"})
	prometheus.MustRegister(consumed, cached, persisted, broadcast, errorsBy)

	proc := &consumer.Processor{
		Log:         log,
		Reader:      reader,
		Cache:       rcache,
		Repo:        repo,
		Broadcaster: broadcaster,
		Channel:     cfg.RedisPubSubChannel,

		OnConsumed:  consumed.Inc,
		OnCached:    cached.Inc,
		OnPersist:   persisted.Inc,
		OnBroadcast: broadcast.Inc,
		OnError:     func(stage string) { errorsBy.WithLabelValues(stage).Inc() },
	}

	metrics.StartServer(cfg.MetricsPort,
		metrics.Check{Name: "pg", Probe: pg.PingContext},
		metrics.Check{Name: "redis", Probe: func(ctx context.Context) error { return redisClient.Ping(ctx).Err() }},
	)

	ctx, cancel := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer cancel()

	log.Info("game-events-worker started", zap.String("topic", cfg.TopicGameEvents), zap.String("channel", cfg.RedisPubSubChannel))
	if err := proc.Run(ctx); err != nil && ctx.Err() == nil {
		log.Fatal("processor stopped with error", zap.Error(err))
	}
	log.Info("game-events-worker stopped")
}
