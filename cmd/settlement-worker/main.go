package main

import (
	"context"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	kafkago "github.com/segmentio/kafka-go"
	"go.uber.org/zap"

	"github.com/radieske/rps-duel-platform-poc/internal/settlement-worker/relay"
	"github.com/radieske/rps-duel-platform-poc/internal/shared/auth"
	"github.com/radieske/rps-duel-platform-poc/internal/shared/config"
	skafka "github.com/radieske/rps-duel-platform-poc/internal/shared/kafka"
	"github.com/radieske/rps-duel-platform-poc/internal/shared/logger"
	"github.com/radieske/rps-duel-platform-poc/internal/shared/metrics"
)

func main() {
	cfg := config.Load()
	log, _ := logger.New(cfg.ServiceName, cfg.Env)
	defer log.Sync()

	ctx := context.Background()

	if cfg.Env == "local" {
		for _, t := range []string{cfg.TopicSettlementExecuted, cfg.TopicSettlementExecutedDLQ} {
			if err := skafka.EnsureTopic(ctx, cfg.KafkaBrokers, t); err != nil {
				log.Warn("ensure topic", zap.String("topic", t), zap.Error(err))
			}
		}
	}
	reader := skafka.NewReader(cfg.KafkaBrokers, cfg.TopicSettlementExecuted, "settlement-worker")
	defer reader.Close()
	dlqWriter := skafka.NewWriter(cfg.KafkaBrokers, cfg.TopicSettlementExecutedDLQ)
	defer dlqWriter.Close()

	// token interno pro callback; PoC sem rotação
	svcToken, err := auth.MintServiceToken(cfg.JWTSecret, cfg.ServiceName, 30*24*time.Hour)
	if err != nil {
		log.Fatal("service token", zap.Error(err))
	}

	// métricas
	delivered := prometheus.NewCounter(prometheus.CounterOpts{Name: "settlement_callbacks_delivered_total", Help: "callbacks entregues"})
	acked := prometheus.NewCounter(prometheus.CounterOpts{Name: "settlement_callbacks_replayed_total", Help: "replays absorvidos com 409"})
	relayErrors := prometheus.NewCounterVec(prometheus.CounterOpts{Name: "settlement_relay_errors_total", Help: "erros por estágio"}, []string{"stage"})
	dlq := prometheus.NewCounter(prometheus.CounterOpts{Name: "settlement_relay_dlq_total", Help: "mensagens enviadas à DLQ"})
	prometheus.MustRegister(delivered, acked, relayErrors, dlq)

	rl := relay.New(log, cfg.GameServiceURL, svcToken)
	rl.OnDelivered = func() { delivered.Inc() }
	rl.OnAcked = func() { acked.Inc() }
	rl.OnError = func(stage string) { relayErrors.WithLabelValues(stage).Inc() }

	metrics.StartServer(cfg.MetricsPort)

	log.Info("settlement-worker started",
		zap.String("consume", cfg.TopicSettlementExecuted),
		zap.String("callback", cfg.GameServiceURL+"/internal/settlements/callback"))

	for {
		msg, err := reader.ReadMessage(ctx)
		if err != nil {
			log.Warn("kafka read", zap.Error(err))
			time.Sleep(time.Second)
			continue
		}
		if err := processOne(ctx, rl, msg); err != nil {
			log.Error("callback failed, sending to dlq", zap.Error(err))
			if derr := skafka.WriteJSON(ctx, dlqWriter, string(msg.Key), msg.Value); derr != nil {
				log.Error("dlq write", zap.Error(derr))
			}
			dlq.Inc()
		}
	}
}

// processOne tenta algumas vezes antes de mandar pra DLQ.
func processOne(ctx context.Context, rl *relay.Relay, msg kafkago.Message) error {
	var err error
	for i := 0; i < 3; i++ {
		if err = rl.Handle(ctx, msg.Value); err == nil {
			return nil
		}
		time.Sleep(time.Duration(300*(i+1)) * time.Millisecond)
	}
	return err
}
