package main

import (
	"net/http"
	"net/http/httputil"
	"net/url"

	"go.uber.org/zap"

	"github.com/radieske/rps-duel-platform-poc/internal/shared/config"
	"github.com/radieske/rps-duel-platform-poc/internal/shared/logger"
)

func rp(to string) *httputil.ReverseProxy {
	u, _ := url.Parse(to)
	return httputil.NewSingleHostReverseProxy(u)
}

func main() {
	cfg := config.Load()
	log, _ := logger.New(cfg.ServiceName, cfg.Env)
	defer log.Sync()

	game := rp(cfg.GameServiceURL)
	vault := rp(cfg.VaultURL)
	feed := rp(cfg.FeedURL)

	mux := http.NewServeMux()

	// duelos (ex.: /api/games/v1/games/reveal -> game-service)
	mux.Handle("/api/games/", http.StripPrefix("/api/games", game))

	// ledger de skim (ex.: /api/ledger/v1/ledger/balance -> game-service)
	mux.Handle("/api/ledger/", http.StripPrefix("/api/ledger", game))

	// vault (ex.: /api/vault/v1/vault/accounts/balance -> vault-service)
	mux.Handle("/api/vault/", http.StripPrefix("/api/vault", vault))

	// leitura de jogos (ex.: /api/feed/v1/feed/games/active -> game-feed-service)
	mux.Handle("/api/feed/", http.StripPrefix("/api/feed", feed))

	// stream de eventos; o ReverseProxy repassa o upgrade de WebSocket
	mux.Handle("/ws/feed", feed)

	addr := ":" + cfg.HTTPPort
	log.Info("api-gateway listening", zap.String("addr", addr))
	if err := http.ListenAndServe(addr, withCORS(mux)); err != nil && err != http.ErrServerClosed {
		log.Fatal("gateway failed", zap.Error(err))
	}
}

func withCORS(h http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Access-Control-Allow-Origin", "*")
		w.Header().Set("Access-Control-Allow-Headers", "Content-Type, Authorization")
		if r.Method == "OPTIONS" {
			w.WriteHeader(http.StatusNoContent)
			return
		}
		h.ServeHTTP(w, r)
	})
}
