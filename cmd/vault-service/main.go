package main

import (
	"context"
	"fmt"
	"net/http"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"go.uber.org/zap"

	"github.com/radieske/rps-duel-platform-poc/internal/shared/config"
	"github.com/radieske/rps-duel-platform-poc/internal/shared/db"
	skafka "github.com/radieske/rps-duel-platform-poc/internal/shared/kafka"
	"github.com/radieske/rps-duel-platform-poc/internal/shared/logger"
	"github.com/radieske/rps-duel-platform-poc/internal/shared/metrics"
	"github.com/radieske/rps-duel-platform-poc/internal/vault-service/executor"
	vhttp "github.com/radieske/rps-duel-platform-poc/internal/vault-service/http"
	kpub "github.com/radieske/rps-duel-platform-poc/internal/vault-service/producer"
	"github.com/radieske/rps-duel-platform-poc/internal/vault-service/repo"
)

func main() {
	cfg := config.Load()
	log, _ := logger.New(cfg.ServiceName, cfg.Env)
	defer log.Sync()

	ctx := context.Background()

	// Postgres
	pg, err := db.ConnectPostgres(cfg.PostgresDSN)
	if err != nil {
		log.Fatal("pg", zap.Error(err))
	}
	defer pg.Close()

	repository := repo.NewPostgres(pg)
	if err := repository.EnsureSchema(ctx); err != nil {
		log.Fatal("schema", zap.Error(err))
	}

	// Kafka: consome settlement_requested, publica settlement_executed
	if cfg.Env == "local" {
		for _, t := range []string{cfg.TopicSettlementRequested, cfg.TopicSettlementExecuted} {
			if err := skafka.EnsureTopic(ctx, cfg.KafkaBrokers, t); err != nil {
				log.Warn("ensure topic", zap.String("topic", t), zap.Error(err))
			}
		}
	}
	reader := skafka.NewReader(cfg.KafkaBrokers, cfg.TopicSettlementRequested, "vault-service")
	defer reader.Close()
	writer := skafka.NewWriter(cfg.KafkaBrokers, cfg.TopicSettlementExecuted)
	defer writer.Close()

	// métricas
	executed := prometheus.NewCounter(prometheus.CounterOpts{Name: "vault_settlements_executed_total", Help: "instruções executadas"})
	execErrors := prometheus.NewCounterVec(prometheus.CounterOpts{Name: "vault_executor_errors_total", Help: "erros por estágio"}, []string{"stage"})
	dropped := prometheus.NewCounter(prometheus.CounterOpts{Name: "vault_settlements_dropped_total", Help: "instruções descartadas após retries"})
	prometheus.MustRegister(executed, execErrors, dropped)

	exec := executor.New(log, repository, kpub.NewSettlementExecutedPublisher(writer))
	exec.OnExecuted = func() { executed.Inc() }
	exec.OnError = func(stage string) { execErrors.WithLabelValues(stage).Inc() }

	// metrics/health
	metrics.StartServer(cfg.MetricsPort, metrics.Check{Name: "pg", Probe: pg.PingContext})

	// loop de consumo; um descarte não perde a liquidação: a intenção segue
	// REQUESTED no game-service, que republica no próximo boot
	go func() {
		log.Info("settlement executor consuming", zap.String("topic", cfg.TopicSettlementRequested))
		for {
			_, value, err := skafka.ReadNext(ctx, reader)
			if err != nil {
				log.Warn("kafka read", zap.Error(err))
				time.Sleep(time.Second)
				continue
			}
			if err := processOne(ctx, exec, value); err != nil {
				log.Error("settlement dropped after retries", zap.Error(err))
				dropped.Inc()
			}
		}
	}()

	// HTTP (contas + escrow)
	api := vhttp.NewServer(log, repository, cfg.JWTSecret)
	apiSrv := &http.Server{
		Addr:    fmt.Sprintf(":%s", cfg.HTTPPort),
		Handler: api.Router(),
	}

	log.Info("vault-service listening", zap.String("addr", fmt.Sprintf(":%s", cfg.HTTPPort)))
	if err := apiSrv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
		log.Fatal("api", zap.Error(err))
	}
}

// processOne tenta algumas vezes antes de descartar a mensagem.
func processOne(ctx context.Context, exec *executor.Executor, value []byte) error {
	var err error
	for i := 0; i < 3; i++ {
		if err = exec.Handle(ctx, value); err == nil {
			return nil
		}
		time.Sleep(time.Duration(300*(i+1)) * time.Millisecond)
	}
	return err
}
