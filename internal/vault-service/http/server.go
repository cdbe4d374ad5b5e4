package http

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"

	"go.uber.org/zap"

	"github.com/radieske/rps-duel-platform-poc/internal/shared/auth"
	"github.com/radieske/rps-duel-platform-poc/internal/vault-service/dto"
	"github.com/radieske/rps-duel-platform-poc/internal/vault-service/repo"
)

// Repo define as operações de vault que o handler consome.
type Repo interface {
	Deposit(ctx context.Context, address, currency string, amount int64) (newBalance int64, err error)
	AccountBalance(ctx context.Context, address, currency string) (int64, error)
	EscrowDeposit(ctx context.Context, address, pool, currency string, amount int64, externalRef string) (escrowAccount string, err error)
	EscrowRelease(ctx context.Context, externalRef string) error
	EscrowBalance(ctx context.Context, pool, currency string) (int64, error)
}

// Server expõe a API do vault: contas (faucet aberto) e escrow (JWT de
// serviço; só o game-service e o simulador movem escrow).
type Server struct {
	log    *zap.Logger
	repo   Repo
	secret string
}

func NewServer(log *zap.Logger, repo Repo, jwtSecret string) *Server {
	return &Server{log: log, repo: repo, secret: jwtSecret}
}

func (s *Server) Router() http.Handler {
	mux := http.NewServeMux()
	mux.HandleFunc("/v1/vault/accounts/deposit", s.deposit)        // POST
	mux.HandleFunc("/v1/vault/accounts/balance", s.accountBalance) // GET ?address&currency
	mux.HandleFunc("/v1/vault/escrow/deposit", s.escrowDeposit)    // POST (service JWT)
	mux.HandleFunc("/v1/vault/escrow/release", s.escrowRelease)    // POST (service JWT)
	mux.HandleFunc("/v1/vault/escrow/balance", s.escrowBalance)    // GET ?pool&currency
	return mux
}

// deposit credita uma conta (faucet da demo)
func (s *Server) deposit(w http.ResponseWriter, r *http.Request) {
	var req dto.DepositRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		http.Error(w, "bad json", http.StatusBadRequest)
		return
	}
	if req.Address == "" || req.Currency == "" || req.Amount <= 0 {
		http.Error(w, "invalid payload", http.StatusBadRequest)
		return
	}
	balance, err := s.repo.Deposit(r.Context(), req.Address, req.Currency, req.Amount)
	if err != nil {
		s.log.Error("deposit failed", zap.String("address", req.Address), zap.Error(err))
		http.Error(w, err.Error(), http.StatusInternalServerError)
		return
	}
	writeJSON(w, dto.AccountResponse{Address: req.Address, Currency: req.Currency, Balance: balance})
}

func (s *Server) accountBalance(w http.ResponseWriter, r *http.Request) {
	address := r.URL.Query().Get("address")
	currency := r.URL.Query().Get("currency")
	if address == "" || currency == "" {
		http.Error(w, "address and currency required", http.StatusBadRequest)
		return
	}
	balance, err := s.repo.AccountBalance(r.Context(), address, currency)
	if err != nil {
		http.Error(w, err.Error(), http.StatusInternalServerError)
		return
	}
	writeJSON(w, dto.AccountResponse{Address: address, Currency: currency, Balance: balance})
}

// escrowDeposit move o stake pra conta escrow do pool (padrão reserva do
// game-service: deposita antes da transição, libera se o engine recusar)
func (s *Server) escrowDeposit(w http.ResponseWriter, r *http.Request) {
	if !s.requireService(w, r) {
		return
	}
	var req dto.EscrowDepositRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		http.Error(w, "bad json", http.StatusBadRequest)
		return
	}
	if req.Address == "" || req.Pool == "" || req.Currency == "" || req.Amount <= 0 || req.ExternalRef == "" {
		http.Error(w, "invalid payload", http.StatusBadRequest)
		return
	}

	escrow, err := s.repo.EscrowDeposit(r.Context(), req.Address, req.Pool, req.Currency, req.Amount, req.ExternalRef)
	if err != nil {
		switch {
		case errors.Is(err, repo.ErrInsufficientFunds):
			http.Error(w, err.Error(), http.StatusPaymentRequired)
		case errors.Is(err, repo.ErrRefConflict):
			http.Error(w, err.Error(), http.StatusConflict)
		default:
			s.log.Error("escrow deposit failed", zap.String("external_ref", req.ExternalRef), zap.Error(err))
			http.Error(w, err.Error(), http.StatusInternalServerError)
		}
		return
	}
	writeJSON(w, dto.EscrowDepositResponse{EscrowAccount: escrow, Status: "CONFIRMED"})
}

func (s *Server) escrowRelease(w http.ResponseWriter, r *http.Request) {
	if !s.requireService(w, r) {
		return
	}
	var req dto.EscrowReleaseRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil || req.ExternalRef == "" {
		http.Error(w, "invalid payload", http.StatusBadRequest)
		return
	}
	if err := s.repo.EscrowRelease(r.Context(), req.ExternalRef); err != nil {
		s.log.Error("escrow release failed", zap.String("external_ref", req.ExternalRef), zap.Error(err))
		http.Error(w, err.Error(), http.StatusInternalServerError)
		return
	}
	writeJSON(w, dto.EscrowReleaseResponse{Status: "RELEASED"})
}

func (s *Server) escrowBalance(w http.ResponseWriter, r *http.Request) {
	pool := r.URL.Query().Get("pool")
	currency := r.URL.Query().Get("currency")
	if pool == "" || currency == "" {
		http.Error(w, "pool and currency required", http.StatusBadRequest)
		return
	}
	balance, err := s.repo.EscrowBalance(r.Context(), pool, currency)
	if err != nil {
		http.Error(w, err.Error(), http.StatusInternalServerError)
		return
	}
	writeJSON(w, dto.EscrowBalanceResponse{Pool: pool, Currency: currency, Balance: balance})
}

func (s *Server) requireService(w http.ResponseWriter, r *http.Request) bool {
	if _, err := auth.RequireService(s.secret, r); err != nil {
		http.Error(w, "service token required", http.StatusUnauthorized)
		return false
	}
	return true
}

// writeJSON serializa e envia resposta JSON
func writeJSON(w http.ResponseWriter, v any) {
	w.Header().Set("Content-Type", "application/json")
	_ = json.NewEncoder(w).Encode(v)
}
