package main

import (
	"context"
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/prometheus/client_golang/prometheus"
	"go.uber.org/zap"

	feedcache "github.com/radieske/rps-duel-platform-poc/internal/game-feed/cache"
	httpapi "github.com/radieske/rps-duel-platform-poc/internal/game-feed/http"
	"github.com/radieske/rps-duel-platform-poc/internal/game-feed/repo"
	"github.com/radieske/rps-duel-platform-poc/internal/game-feed/ws"
	sharedcache "github.com/radieske/rps-duel-platform-poc/internal/shared/cache"
	"github.com/radieske/rps-duel-platform-poc/internal/shared/config"
	"github.com/radieske/rps-duel-platform-poc/internal/shared/db"
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

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	api := &httpapi.API{
		Log:      log,
		Cache:    feedcache.New(redisClient),
		ReadRepo: &repo.ReadRepo{DB: pg},
	}

	// métricas
	wsConnections := prometheus.NewGauge(prometheus.GaugeOpts{Name: "feed_ws_connections", Help: "clientes WebSocket conectados"})
	prometheus.MustRegister(wsConnections)

	// PoC: aceita qualquer origem
	hub := ws.NewHub(func(*http.Request) bool { return true })
	hub.OnConnect = wsConnections.Inc
	hub.OnDisconnect = wsConnections.Dec
	ws.StartSubscriber(ctx, redisClient, hub, cfg.RedisPubSubChannel, log)

	root := chi.NewRouter()
	root.Get("/ws/feed", hub.HandleWS)
	root.Mount("/", api.Router())

	metrics.StartServer(cfg.MetricsPort,
		metrics.Check{Name: "pg", Probe: pg.PingContext},
		metrics.Check{Name: "redis", Probe: func(ctx context.Context) error { return redisClient.Ping(ctx).Err() }},
	)

	addr := ":" + cfg.HTTPPort
	log.Info("game-feed-service listening", zap.String("addr", addr), zap.String("channel", cfg.RedisPubSubChannel))
	if err := http.ListenAndServe(addr, root); err != nil && err != http.ErrServerClosed {
		log.Fatal("http server failed", zap.Error(err))
	}
}
