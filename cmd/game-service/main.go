package main

import (
	"context"
	"fmt"
	"net/http"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"go.uber.org/zap"

	"github.com/radieske/rps-duel-platform-poc/internal/game-service/engine"
	ghttp "github.com/radieske/rps-duel-platform-poc/internal/game-service/http"
	kpub "github.com/radieske/rps-duel-platform-poc/internal/game-service/producer"
	"github.com/radieske/rps-duel-platform-poc/internal/game-service/proof"
	"github.com/radieske/rps-duel-platform-poc/internal/game-service/repo"
	"github.com/radieske/rps-duel-platform-poc/internal/game-service/vault"
	"github.com/radieske/rps-duel-platform-poc/internal/shared/auth"
	"github.com/radieske/rps-duel-platform-poc/internal/shared/config"
	"github.com/radieske/rps-duel-platform-poc/internal/shared/db"
	skafka "github.com/radieske/rps-duel-platform-poc/internal/shared/kafka"
	"github.com/radieske/rps-duel-platform-poc/internal/shared/logger"
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

	// Kafka writers (game_events e settlement_requested)
	if cfg.Env == "local" {
		for _, t := range []string{cfg.TopicGameEvents, cfg.TopicSettlementRequested} {
			if err := skafka.EnsureTopic(ctx, cfg.KafkaBrokers, t); err != nil {
				log.Warn("ensure topic", zap.String("topic", t), zap.Error(err))
			}
		}
	}
	eventsWriter := skafka.NewWriter(cfg.KafkaBrokers, cfg.TopicGameEvents)
	defer eventsWriter.Close()
	settleWriter := skafka.NewWriter(cfg.KafkaBrokers, cfg.TopicSettlementRequested)
	defer settleWriter.Close()

	// deps
	notifier := kpub.NewGameEventPublisher(eventsWriter)
	settlements := kpub.NewSettlementPublisher(settleWriter)

	policy, err := engine.ParseProofPolicy(cfg.ProofPolicy)
	if err != nil {
		log.Fatal("proof policy", zap.Error(err))
	}
	var verifier engine.Verifier
	if policy != engine.ProofDisabled {
		gate, err := proof.NewGateFromHex(cfg.ProverPubKey)
		if err != nil {
			log.Fatal("prover pubkey", zap.Error(err))
		}
		verifier = gate
	} else {
		log.Warn("proof gate disabled, reveals pass on hash check only")
	}

	eng, err := engine.New(engine.Config{
		RevealWindow:    cfg.RevealWindow,
		JoinGraceWindow: cfg.JoinGraceWindow,
		StakeCurrency:   cfg.StakeCurrency,
		ProofPolicy:     policy,
	}, engine.Deps{
		Store:       repository,
		Verifier:    verifier,
		Notifier:    notifier,
		Settlements: settlements,
		Log:         log,
	})
	if err != nil {
		log.Fatal("engine", zap.Error(err))
	}
	if err := eng.Rehydrate(ctx); err != nil {
		log.Fatal("rehydrate", zap.Error(err))
	}

	adapter, err := engine.NewSkimAdapter(eng, cfg.SkimRate)
	if err != nil {
		log.Fatal("skim rate", zap.Error(err))
	}

	// token interno pro vault; PoC sem rotação
	svcToken, err := auth.MintServiceToken(cfg.JWTSecret, cfg.ServiceName, 30*24*time.Hour)
	if err != nil {
		log.Fatal("service token", zap.Error(err))
	}
	vcli := vault.New(cfg.VaultURL, svcToken)

	// métricas
	transitions := prometheus.NewCounterVec(prometheus.CounterOpts{
		Name: "game_engine_transitions_total",
		Help: "transições do engine por operação e resultado",
	}, []string{"op", "result"})
	prometheus.MustRegister(transitions)

	// HTTP público
	api := ghttp.NewServer(log, eng, adapter, vcli, cfg.JWTSecret)
	api.OnTransition = func(op, result string) {
		transitions.WithLabelValues(op, result).Inc()
	}
	apiSrv := &http.Server{
		Addr:    fmt.Sprintf(":%s", cfg.HTTPPort),
		Handler: api.Router(),
	}

	// metrics/health
	metricsMux := http.NewServeMux()
	metricsMux.Handle("/metrics", promhttp.Handler())
	metricsMux.HandleFunc("/healthz", func(w http.ResponseWriter, r *http.Request) {
		if err := pg.PingContext(r.Context()); err != nil {
			http.Error(w, "pg", http.StatusServiceUnavailable)
			return
		}
		w.WriteHeader(http.StatusOK)
		_, _ = w.Write([]byte("ok"))
	})
	go func() {
		addr := fmt.Sprintf(":%s", cfg.MetricsPort)
		log.Info("metrics/health", zap.String("addr", addr))
		_ = http.ListenAndServe(addr, metricsMux)
	}()

	log.Info("game-service listening",
		zap.String("addr", fmt.Sprintf(":%s", cfg.HTTPPort)),
		zap.String("proof_policy", string(policy)))
	if err := apiSrv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
		log.Fatal("api", zap.Error(err))
	}
}
