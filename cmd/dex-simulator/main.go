package main

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"math/rand"
	"net/http"
	"sync"
	"time"

	"github.com/gorilla/websocket"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"go.uber.org/zap"

	"github.com/radieske/rps-duel-platform-poc/internal/dex-simulator/duel"
	"github.com/radieske/rps-duel-platform-poc/internal/game-service/proof"
	"github.com/radieske/rps-duel-platform-poc/internal/shared/config"
	"github.com/radieske/rps-duel-platform-poc/internal/shared/logger"
	"github.com/radieske/rps-duel-platform-poc/pkg/contracts/events"

	vdto "github.com/radieske/rps-duel-platform-poc/internal/vault-service/dto"
)

var (
	upgrader = websocket.Upgrader{
		ReadBufferSize:  1024,
		WriteBufferSize: 1024,
		CheckOrigin:     func(r *http.Request) bool { return true },
	}

	// Catálogo fixo de traders e pools do DEX simulado
	traderCatalog = []string{"alice", "bob", "carol", "dave", "erin", "frank"}
	poolCatalog   = []string{"POOL-A", "POOL-B", "POOL-C"}

	// Saldo inicial creditado no vault para cada trader
	faucetAmount = int64(1_000_000)

	// Métricas Prometheus para monitoramento de conexões, swaps e duelos
	wsConnections = prometheus.NewGauge(prometheus.GaugeOpts{
		Name: "dex_ws_connections",
		Help: "Clientes WebSocket conectados",
	})
	wsMessagesSent = prometheus.NewCounter(prometheus.CounterOpts{
		Name: "dex_ws_messages_sent_total",
		Help: "Total de mensagens WS enviadas",
	})
	swapsEmitted = prometheus.NewCounterVec(prometheus.CounterOpts{
		Name: "dex_swaps_emitted_total",
		Help: "Swaps emitidos no feed, por tipo",
	}, []string{"kind"})
	duelsRevealed = prometheus.NewCounterVec(prometheus.CounterOpts{
		Name: "dex_duels_revealed_total",
		Help: "Duelos revelados com sucesso, por resultado",
	}, []string{"outcome"})
	duelErrors = prometheus.NewCounter(prometheus.CounterOpts{
		Name: "dex_duel_errors_total",
		Help: "Duelos abandonados por erro de reveal",
	})
)

// Representa uma conexão de cliente WebSocket
// id: identificador único da conexão
// conn: ponteiro para a conexão WebSocket
type clientConn struct {
	id   string
	conn *websocket.Conn
}

// Estrutura responsável por gerenciar os clientes conectados via WebSocket
// e realizar broadcast de mensagens para todos eles.
type hub struct {
	mu      sync.Mutex
	clients map[string]*clientConn
	log     *zap.Logger
}

// Cria uma nova instância de hub para gerenciar conexões
func newHub(log *zap.Logger) *hub {
	return &hub{
		clients: make(map[string]*clientConn),
		log:     log,
	}
}

// Adiciona um novo cliente ao hub e incrementa a métrica de conexões
func (h *hub) add(c *clientConn) {
	h.mu.Lock()
	defer h.mu.Unlock()
	h.clients[c.id] = c
	wsConnections.Inc()
	h.log.Info("ws client connected", zap.String("client_id", c.id))
}

// Remove um cliente do hub e decrementa a métrica de conexões
func (h *hub) remove(id string) {
	h.mu.Lock()
	defer h.mu.Unlock()
	if _, ok := h.clients[id]; ok {
		delete(h.clients, id)
		wsConnections.Dec()
		h.log.Info("ws client disconnected", zap.String("client_id", id))
	}
}

// Envia uma mensagem para todos os clientes conectados. Lock exclusivo:
// o ticker de swaps e as goroutines de duelo transmitem em paralelo e o
// gorilla não tolera escrita concorrente no mesmo socket.
func (h *hub) broadcast(v any) {
	h.mu.Lock()
	defer h.mu.Unlock()
	msg, _ := json.Marshal(v)
	for id, c := range h.clients {
		c.conn.SetWriteDeadline(time.Now().Add(2 * time.Second))
		if err := c.conn.WriteMessage(websocket.TextMessage, msg); err != nil {
			h.log.Warn("ws write failed", zap.String("client_id", id), zap.Error(err))
			_ = c.conn.Close()
		} else {
			wsMessagesSent.Inc()
		}
	}
}

// Credita o saldo inicial dos traders no vault. Insiste até o vault
// responder; sem saldo nenhum duelo passa do commit.
func seedFaucet(log *zap.Logger, httpc *http.Client, vaultURL, currency string, traders []string, amount int64) {
	pending := make(map[string]bool, len(traders))
	for _, tr := range traders {
		pending[tr] = true
	}
	for len(pending) > 0 {
		for tr := range pending {
			body, _ := json.Marshal(vdto.DepositRequest{Address: tr, Currency: currency, Amount: amount})
			resp, err := httpc.Post(vaultURL+"/v1/vault/accounts/deposit", "application/json", bytes.NewReader(body))
			if err != nil {
				log.Warn("faucet deposit failed", zap.String("trader", tr), zap.Error(err))
				continue
			}
			_, _ = io.Copy(io.Discard, resp.Body)
			_ = resp.Body.Close()
			if resp.StatusCode != http.StatusOK {
				log.Warn("faucet deposit rejected", zap.String("trader", tr), zap.Int("status", resp.StatusCode))
				continue
			}
			delete(pending, tr)
			log.Info("trader funded", zap.String("trader", tr), zap.Int64("amount", amount))
		}
		if len(pending) > 0 {
			time.Sleep(3 * time.Second)
		}
	}
	log.Info("faucet seeding done", zap.Int("traders", len(traders)))
}

// gera um swap comum (sem payload de duelo); só alimenta o skim
func plainSwap(currency string) events.SwapCompleted {
	return events.SwapCompleted{
		SwapID:       fmt.Sprintf("swap-%d", time.Now().UnixNano()),
		Trader:       traderCatalog[rand.Intn(len(traderCatalog))],
		Pool:         poolCatalog[rand.Intn(len(poolCatalog))],
		Currency:     currency,
		OutputAmount: int64(rand.Intn(90_000) + 10_000),
		Source:       "dex-simulator",
		TsUnixMs:     time.Now().UnixMilli(),
	}
}

func main() {
	cfg := config.Load()
	log, err := logger.New(cfg.ServiceName, cfg.Env)
	if err != nil {
		panic(err)
	}
	defer log.Sync()

	prometheus.MustRegister(wsConnections, wsMessagesSent, swapsEmitted, duelsRevealed, duelErrors)

	// Prover só quando a chave privada está configurada; sem ela o reveal
	// segue sem prova (exige PROOF_POLICY != mandatory no game-service).
	var prover *proof.Prover
	if cfg.ProverPrivKey != "" {
		prover, err = proof.NewProverFromHex(cfg.ProverPrivKey)
		if err != nil {
			log.Fatal("invalid PROVER_PRIVKEY", zap.Error(err))
		}
		pub, _ := prover.PublicKeyHex()
		log.Info("duel prover enabled", zap.String("pubkey", pub))
	} else {
		log.Info("duel prover disabled, reveals carry no proof")
	}

	h := newHub(log)
	httpc := &http.Client{Timeout: 5 * time.Second}
	driver := &duel.Driver{
		Log:     log,
		BaseURL: cfg.GameServiceURL,
		Secret:  cfg.JWTSecret,
		Prover:  prover,
		HTTP:    httpc,
	}

	go seedFaucet(log, httpc, cfg.VaultURL, cfg.StakeCurrency, traderCatalog, faucetAmount)

	// Emite swaps comuns a cada 2 segundos para movimentar o skim
	go func() {
		ticker := time.NewTicker(2 * time.Second)
		defer ticker.Stop()
		for range ticker.C {
			n := rand.Intn(3) + 1
			for i := 0; i < n; i++ {
				h.broadcast(plainSwap(cfg.StakeCurrency))
				swapsEmitted.WithLabelValues("plain").Inc()
			}
		}
	}()

	// Encena um duelo completo a cada 8 segundos: commit do primeiro
	// jogador, join do segundo e reveal via REST no game-service.
	go func() {
		ticker := time.NewTicker(8 * time.Second)
		defer ticker.Stop()
		for range ticker.C {
			output := int64(rand.Intn(9_000) + 1_000)
			plan, err := duel.NewPlan(poolCatalog, traderCatalog, cfg.StakeCurrency, output)
			if err != nil {
				log.Error("duel plan failed", zap.Error(err))
				continue
			}
			h.broadcast(plan.CreateSwap())
			swapsEmitted.WithLabelValues("duel_create").Inc()
			log.Info("duel committed",
				zap.String("game_id", plan.GameID),
				zap.String("first", plan.First),
				zap.String("second", plan.Second),
				zap.Int64("output", plan.Output),
			)

			go func(p duel.Plan) {
				// espera o commit atravessar o pipeline antes do join
				time.Sleep(3 * time.Second)
				h.broadcast(p.JoinSwap())
				swapsEmitted.WithLabelValues("duel_join").Inc()

				game, err := driver.Reveal(context.Background(), p)
				if err != nil {
					duelErrors.Inc()
					log.Warn("duel reveal failed", zap.String("game_id", p.GameID), zap.Error(err))
					return
				}
				duelsRevealed.WithLabelValues(game.Outcome).Inc()
				log.Info("duel revealed",
					zap.String("game_id", p.GameID),
					zap.String("outcome", game.Outcome),
					zap.Int64("total_pool", game.TotalPool),
				)
			}(plan)
		}
	}()

	// ==== MUX PÚBLICO (HTTP principal): /ws/swaps
	appMux := http.NewServeMux()

	appMux.HandleFunc("/ws/swaps", func(w http.ResponseWriter, r *http.Request) {
		conn, err := upgrader.Upgrade(w, r, nil)
		if err != nil {
			log.Warn("ws upgrade failed", zap.Error(err))
			return
		}
		id := fmt.Sprintf("%d", time.Now().UnixNano())
		c := &clientConn{id: id, conn: conn}
		h.add(c)

		// Goroutine para manter a conexão viva e remover cliente ao desconectar
		go func() {
			defer func() {
				h.remove(id)
				_ = conn.Close()
			}()
			_ = conn.SetReadDeadline(time.Time{})
			for {
				// Lê e descarta mensagens do cliente para manter o socket limpo
				if _, _, err := conn.ReadMessage(); err != nil {
					return
				}
			}
		}()
	})

	// ==== MUX DE MÉTRICAS (/healthz, /metrics)
	metricsMux := http.NewServeMux()
	metricsMux.HandleFunc("/healthz", func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusOK)
		_, _ = w.Write([]byte("ok"))
	})
	metricsMux.Handle("/metrics", promhttp.Handler())

	// Servidor de métricas em goroutine
	go func() {
		metricsAddr := fmt.Sprintf(":%s", cfg.MetricsPort)
		log.Info("dex simulator (metrics) running",
			zap.String("addr", metricsAddr),
			zap.String("paths", "/healthz,/metrics"),
		)
		if err := http.ListenAndServe(metricsAddr, metricsMux); err != nil {
			log.Fatal("metrics server error", zap.Error(err))
		}
	}()

	// Servidor público (feed de swaps)
	publicAddr := fmt.Sprintf(":%s", cfg.HTTPPort)
	log.Info("dex simulator (public) running",
		zap.String("addr", publicAddr),
		zap.String("paths", "/ws/swaps"),
	)
	if err := http.ListenAndServe(publicAddr, appMux); err != nil {
		log.Fatal("public server error", zap.Error(err))
	}
}
