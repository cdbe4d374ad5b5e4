package main

import (
	"context"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"go.uber.org/zap"

	"github.com/radieske/rps-duel-platform-poc/internal/shared/config"
	skafka "github.com/radieske/rps-duel-platform-poc/internal/shared/kafka"
	"github.com/radieske/rps-duel-platform-poc/internal/shared/logger"
	"github.com/radieske/rps-duel-platform-poc/internal/shared/metrics"
	"github.com/radieske/rps-duel-platform-poc/internal/swap-ingest/publisher"
	"github.com/radieske/rps-duel-platform-poc/internal/swap-ingest/service"
)

func main() {
	cfg := config.Load()
	log, err := logger.New(cfg.ServiceName, cfg.Env)
	if err != nil {
		panic(err)
	}
	defer log.Sync()

	log.Info("Kafka brokers", zap.String("brokers", cfg.KafkaBrokers))

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	if cfg.Env == "local" {
		if err := skafka.EnsureTopic(ctx, cfg.KafkaBrokers, cfg.TopicSwapCompleted); err != nil {
			log.Warn("ensure topic failed", zap.String("topic", cfg.TopicSwapCompleted), zap.Error(err))
		}
	}

	writer := skafka.NewWriter(cfg.KafkaBrokers, cfg.TopicSwapCompleted)
	pub := publisher.NewSwapPublisher(writer, log)
	defer pub.Close()

	// métricas
	published := prometheus.NewCounter(prometheus.CounterOpts{Name: "ingest_swaps_published_total", Help: "swaps publicados no tópico"})
	invalid := prometheus.NewCounter(prometheus.CounterOpts{Name: "ingest_swaps_invalid_total", Help: "frames descartados na decodificação"})
	streamErrors := prometheus.NewCounter(prometheus.CounterOpts{Name: "ingest_stream_errors_total", Help: "quedas de conexão e falhas de publicação"})
	prometheus.MustRegister(published, invalid, streamErrors)

	wsClient := &service.WSClient{
		URL:         cfg.DexWSURL,
		Log:         log,
		Publisher:   pub,
		OnPublished: published.Inc,
		OnInvalid:   invalid.Inc,
		OnError:     streamErrors.Inc,
	}
	go wsClient.Start(ctx)

	metrics.StartServer(cfg.MetricsPort)

	log.Info("swap-ingest-service running", zap.String("dex_ws", cfg.DexWSURL))

	// graceful shutdown
	sig := make(chan os.Signal, 1)
	signal.Notify(sig, syscall.SIGINT, syscall.SIGTERM)
	<-sig
	log.Info("shutdown signal received")
	cancel()
	time.Sleep(2 * time.Second)
}
