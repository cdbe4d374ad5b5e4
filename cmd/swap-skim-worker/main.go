package main

import (
	"context"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	kafkago "github.com/segmentio/kafka-go"
	"go.uber.org/zap"

	"github.com/radieske/rps-duel-platform-poc/internal/shared/auth"
	"github.com/radieske/rps-duel-platform-poc/internal/shared/config"
	skafka "github.com/radieske/rps-duel-platform-poc/internal/shared/kafka"
	"github.com/radieske/rps-duel-platform-poc/internal/shared/logger"
	"github.com/radieske/rps-duel-platform-poc/internal/shared/metrics"
	"github.com/radieske/rps-duel-platform-poc/internal/swap-skim-worker/relay"
)

func main() {
	cfg := config.Load()
	log, _ := logger.New(cfg.ServiceName, cfg.Env)
	defer log.Sync()

	ctx := context.Background()

	if cfg.Env == "local" {
		for _, t := range []string{cfg.TopicSwapCompleted, cfg.TopicSwapCompletedDLQ} {
			if err := skafka.EnsureTopic(ctx, cfg.KafkaBrokers, t); err != nil {
				log.Warn("ensure topic", zap.String("topic", t), zap.Error(err))
			}
		}
	}
	reader := skafka.NewReader(cfg.KafkaBrokers, cfg.TopicSwapCompleted, "swap-skim-worker")
	defer reader.Close()
	dlqWriter := skafka.NewWriter(cfg.KafkaBrokers, cfg.TopicSwapCompletedDLQ)
	defer dlqWriter.Close()

	// token interno pra rota de skim; PoC sem rotação
	svcToken, err := auth.MintServiceToken(cfg.JWTSecret, cfg.ServiceName, 30*24*time.Hour)
	if err != nil {
		log.Fatal("service token", zap.Error(err))
	}

	// métricas
	skimmed := prometheus.NewCounterVec(prometheus.CounterOpts{Name: "skim_swaps_processed_total", Help: "swaps processados por ação"}, []string{"action"})
	relayErrors := prometheus.NewCounterVec(prometheus.CounterOpts{Name: "skim_relay_errors_total", Help: "erros por estágio"}, []string{"stage"})
	dlq := prometheus.NewCounter(prometheus.CounterOpts{Name: "skim_relay_dlq_total", Help: "swaps enviados à DLQ"})
	prometheus.MustRegister(skimmed, relayErrors, dlq)

	rl := relay.New(log, cfg.GameServiceURL, svcToken)
	rl.OnSkimmed = func(action string) { skimmed.WithLabelValues(action).Inc() }
	rl.OnError = func(stage string) { relayErrors.WithLabelValues(stage).Inc() }

	metrics.StartServer(cfg.MetricsPort)

	log.Info("swap-skim-worker started",
		zap.String("consume", cfg.TopicSwapCompleted),
		zap.String("skim", cfg.GameServiceURL+"/internal/skim"))

	for {
		msg, err := reader.ReadMessage(ctx)
		if err != nil {
			log.Warn("kafka read", zap.Error(err))
			time.Sleep(time.Second)
			continue
		}
		if err := processOne(ctx, rl, msg); err != nil {
			log.Error("swap rejected, sending to dlq", zap.Error(err))
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
