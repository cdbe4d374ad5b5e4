package http

import (
	"context"
	"encoding/hex"
	"encoding/json"
	"errors"
	"net/http"
	"strings"
	"time"

	"go.uber.org/zap"

	"github.com/radieske/rps-duel-platform-poc/internal/game-service/dto"
	"github.com/radieske/rps-duel-platform-poc/internal/game-service/engine"
	"github.com/radieske/rps-duel-platform-poc/internal/shared/auth"
	"github.com/radieske/rps-duel-platform-poc/pkg/contracts/events"
)

// Engine é a fatia do state machine que a API consome.
type Engine interface {
	Create(ctx context.Context, actor, commitment, pool, currency string, amount int64) (engine.Game, error)
	Join(ctx context.Context, actor, gameID string, move engine.Move, amount int64) (engine.Game, error)
	Reveal(ctx context.Context, actor, gameID string, move engine.Move, salt []byte, proof []byte) (engine.Game, error)
	Forfeit(ctx context.Context, actor, gameID string) (engine.Game, error)
	RefundFirst(ctx context.Context, actor, gameID string) (engine.Game, error)
	OnSettle(ctx context.Context, instr events.SettlementInstruction) (engine.Game, error)
	GetGame(id string) (engine.Game, error)
	ActiveGames() []engine.Game
	Balance(pool, currency string) int64
	Contribution(address, pool, currency string) int64
	CanRefund(id string) (bool, time.Duration, error)
}

// Skimmer entrega swaps concluídos ao engine (rota interna).
type Skimmer interface {
	HandleSwap(ctx context.Context, in engine.SwapInput) (engine.SkimResult, error)
}

// Escrow é o cliente do vault usado no padrão reserva: deposita antes da
// transição e libera quando o engine recusa.
type Escrow interface {
	EscrowDeposit(ctx context.Context, address, pool, currency string, amount int64, externalRef string) error
	EscrowRelease(ctx context.Context, externalRef string) error
}

type Server struct {
	log    *zap.Logger
	eng    Engine
	skim   Skimmer
	vault  Escrow
	secret string

	OnTransition func(op, result string) // métricas (counter++)
}

func NewServer(log *zap.Logger, eng Engine, skim Skimmer, vault Escrow, jwtSecret string) *Server {
	return &Server{log: log, eng: eng, skim: skim, vault: vault, secret: jwtSecret}
}

func (s *Server) Router() http.Handler {
	mux := http.NewServeMux()
	mux.HandleFunc("/v1/games", s.games)                              // POST create | GET lista ativos
	mux.HandleFunc("/v1/games/join", s.join)                          // POST
	mux.HandleFunc("/v1/games/reveal", s.reveal)                      // POST
	mux.HandleFunc("/v1/games/forfeit", s.forfeit)                    // POST
	mux.HandleFunc("/v1/games/refund-first", s.refundFirst)           // POST
	mux.HandleFunc("/v1/games/", s.gameByID)                          // GET /v1/games/{id}[/refundable]
	mux.HandleFunc("/v1/ledger/balance", s.balance)                   // GET ?pool&currency
	mux.HandleFunc("/v1/ledger/contribution", s.contribution)         // GET ?address&pool&currency
	mux.HandleFunc("/internal/skim", s.skimSwap)                      // POST (service JWT)
	mux.HandleFunc("/internal/settlements/callback", s.settleResult)  // POST (service JWT)
	return mux
}

// --- rotas de jogador ---

func (s *Server) games(w http.ResponseWriter, r *http.Request) {
	switch r.Method {
	case http.MethodPost:
		s.create(w, r)
	case http.MethodGet:
		s.listActive(w, r)
	default:
		writeError(w, http.StatusMethodNotAllowed, "method not allowed")
	}
}

func (s *Server) create(w http.ResponseWriter, r *http.Request) {
	actor, ok := s.player(w, r)
	if !ok {
		return
	}
	var req dto.CreateGameRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "bad json")
		return
	}
	if req.CommitmentID == "" || req.Pool == "" || req.Currency == "" || req.Stake <= 0 {
		writeError(w, http.StatusBadRequest, "invalid payload")
		return
	}

	// 1) escrow no vault (reserva síncrona), 2) transição no engine,
	// 3) release compensatório se o engine recusar
	if err := s.vault.EscrowDeposit(r.Context(), actor, req.Pool, req.Currency, req.Stake, req.CommitmentID); err != nil {
		s.log.Warn("vault escrow deposit refused", zap.String("actor", actor), zap.Error(err))
		s.track("create", "vault_refused")
		writeError(w, http.StatusPaymentRequired, "vault escrow deposit refused")
		return
	}

	g, err := s.eng.Create(r.Context(), actor, req.CommitmentID, req.Pool, req.Currency, req.Stake)
	if err != nil {
		s.release(r.Context(), req.CommitmentID)
		s.fail(w, "create", err)
		return
	}
	s.track("create", "ok")
	writeJSON(w, dto.FromGame(g))
}

func (s *Server) join(w http.ResponseWriter, r *http.Request) {
	actor, ok := s.player(w, r)
	if !ok {
		return
	}
	var req dto.JoinGameRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "bad json")
		return
	}
	if req.GameID == "" || req.Move == "" || req.Stake <= 0 {
		writeError(w, http.StatusBadRequest, "invalid payload")
		return
	}
	move, err := engine.ParseMove(req.Move)
	if err != nil {
		s.fail(w, "join", err)
		return
	}

	// o bucket do join é o do próprio jogo
	g, err := s.eng.GetGame(req.GameID)
	if err != nil {
		s.fail(w, "join", err)
		return
	}

	ref := req.GameID + ":" + actor
	if err := s.vault.EscrowDeposit(r.Context(), actor, g.Pool, g.Currency, req.Stake, ref); err != nil {
		s.log.Warn("vault escrow deposit refused", zap.String("actor", actor), zap.Error(err))
		s.track("join", "vault_refused")
		writeError(w, http.StatusPaymentRequired, "vault escrow deposit refused")
		return
	}

	joined, err := s.eng.Join(r.Context(), actor, req.GameID, move, req.Stake)
	if err != nil {
		s.release(r.Context(), ref)
		s.fail(w, "join", err)
		return
	}
	s.track("join", "ok")
	writeJSON(w, dto.FromGame(joined))
}

func (s *Server) reveal(w http.ResponseWriter, r *http.Request) {
	actor, ok := s.player(w, r)
	if !ok {
		return
	}
	var req dto.RevealRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "bad json")
		return
	}
	if req.GameID == "" || req.Move == "" || req.Salt == "" {
		writeError(w, http.StatusBadRequest, "invalid payload")
		return
	}
	move, err := engine.ParseMove(req.Move)
	if err != nil {
		s.fail(w, "reveal", err)
		return
	}
	salt, err := hex.DecodeString(req.Salt)
	if err != nil {
		writeError(w, http.StatusBadRequest, "salt must be hex")
		return
	}
	var proof []byte
	if req.Proof != "" {
		if proof, err = hex.DecodeString(req.Proof); err != nil {
			writeError(w, http.StatusBadRequest, "proof must be hex")
			return
		}
	}

	g, err := s.eng.Reveal(r.Context(), actor, req.GameID, move, salt, proof)
	if err != nil {
		s.fail(w, "reveal", err)
		return
	}
	s.track("reveal", "ok")
	writeJSON(w, dto.FromGame(g))
}

func (s *Server) forfeit(w http.ResponseWriter, r *http.Request) {
	actor, ok := s.player(w, r)
	if !ok {
		return
	}
	var req dto.ForfeitRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil || req.GameID == "" {
		writeError(w, http.StatusBadRequest, "invalid payload")
		return
	}
	g, err := s.eng.Forfeit(r.Context(), actor, req.GameID)
	if err != nil {
		s.fail(w, "forfeit", err)
		return
	}
	s.track("forfeit", "ok")
	writeJSON(w, dto.FromGame(g))
}

func (s *Server) refundFirst(w http.ResponseWriter, r *http.Request) {
	actor, ok := s.player(w, r)
	if !ok {
		return
	}
	var req dto.RefundRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil || req.GameID == "" {
		writeError(w, http.StatusBadRequest, "invalid payload")
		return
	}
	g, err := s.eng.RefundFirst(r.Context(), actor, req.GameID)
	if err != nil {
		s.fail(w, "refund_first", err)
		return
	}
	s.track("refund_first", "ok")
	writeJSON(w, dto.FromGame(g))
}

// --- rotas de leitura (abertas) ---

func (s *Server) listActive(w http.ResponseWriter, _ *http.Request) {
	games := s.eng.ActiveGames()
	out := dto.GameListResponse{Games: make([]dto.GameResponse, 0, len(games)), Count: len(games)}
	for _, g := range games {
		out.Games = append(out.Games, dto.FromGame(g))
	}
	writeJSON(w, out)
}

func (s *Server) gameByID(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		writeError(w, http.StatusMethodNotAllowed, "method not allowed")
		return
	}
	id := strings.TrimPrefix(r.URL.Path, "/v1/games/")
	if rest, found := strings.CutSuffix(id, "/refundable"); found {
		s.refundable(w, rest)
		return
	}
	if id == "" || strings.Contains(id, "/") {
		writeError(w, http.StatusBadRequest, "gameId required")
		return
	}
	g, err := s.eng.GetGame(id)
	if err != nil {
		s.fail(w, "get", err)
		return
	}
	writeJSON(w, dto.FromGame(g))
}

func (s *Server) refundable(w http.ResponseWriter, id string) {
	refundable, remaining, err := s.eng.CanRefund(id)
	if err != nil {
		s.fail(w, "refundable", err)
		return
	}
	writeJSON(w, dto.RefundableResponse{
		GameID:          id,
		Refundable:      refundable,
		TimeRemainingMs: remaining.Milliseconds(),
	})
}

func (s *Server) balance(w http.ResponseWriter, r *http.Request) {
	pool := r.URL.Query().Get("pool")
	currency := r.URL.Query().Get("currency")
	if pool == "" || currency == "" {
		writeError(w, http.StatusBadRequest, "pool and currency required")
		return
	}
	writeJSON(w, dto.BalanceResponse{Pool: pool, Currency: currency, Balance: s.eng.Balance(pool, currency)})
}

func (s *Server) contribution(w http.ResponseWriter, r *http.Request) {
	address := r.URL.Query().Get("address")
	pool := r.URL.Query().Get("pool")
	currency := r.URL.Query().Get("currency")
	if address == "" || pool == "" || currency == "" {
		writeError(w, http.StatusBadRequest, "address, pool and currency required")
		return
	}
	writeJSON(w, dto.ContributionResponse{
		Address: address, Pool: pool, Currency: currency,
		Amount: s.eng.Contribution(address, pool, currency),
	})
}

// --- rotas internas (JWT de serviço) ---

func (s *Server) skimSwap(w http.ResponseWriter, r *http.Request) {
	if !s.service(w, r) {
		return
	}
	var ev events.SwapCompleted
	if err := json.NewDecoder(r.Body).Decode(&ev); err != nil {
		writeError(w, http.StatusBadRequest, "bad json")
		return
	}
	if ev.SwapID == "" || ev.Trader == "" {
		writeError(w, http.StatusBadRequest, "invalid payload")
		return
	}

	res, err := s.skim.HandleSwap(r.Context(), engine.SwapInput{
		SwapID:       ev.SwapID,
		Trader:       ev.Trader,
		Pool:         ev.Pool,
		Currency:     ev.Currency,
		OutputAmount: ev.OutputAmount,
		Payload:      ev.Payload,
	})
	if err != nil {
		s.fail(w, "skim", err)
		return
	}
	s.track("skim", "ok")

	out := dto.SkimResponse{Action: res.Action, Skimmed: res.Skimmed}
	if res.Game != nil {
		g := dto.FromGame(*res.Game)
		out.Game = &g
	}
	writeJSON(w, out)
}

func (s *Server) settleResult(w http.ResponseWriter, r *http.Request) {
	if !s.service(w, r) {
		return
	}
	var ev events.SettlementExecuted
	if err := json.NewDecoder(r.Body).Decode(&ev); err != nil {
		writeError(w, http.StatusBadRequest, "bad json")
		return
	}
	if ev.Instruction.ID == "" || ev.Instruction.GameID == "" {
		writeError(w, http.StatusBadRequest, "invalid payload")
		return
	}

	g, err := s.eng.OnSettle(r.Context(), ev.Instruction)
	if err != nil {
		s.fail(w, "settle", err)
		return
	}
	s.track("settle", "ok")
	s.log.Info("settlement confirmed",
		zap.String("game_id", g.ID),
		zap.String("settlement_id", ev.Instruction.ID),
		zap.String("vault_ref", ev.VaultRef))
	writeJSON(w, dto.SettleResponse{
		GameID:          g.ID,
		SettlementID:    ev.Instruction.ID,
		Status:          "SETTLED",
		SettledAtUnixMs: g.SettledAt.UnixMilli(),
	})
}

// --- auth ---

// player extrai o endereço do token de jogador; responde 401 quando ausente
// ou inválido.
func (s *Server) player(w http.ResponseWriter, r *http.Request) (string, bool) {
	claims, err := auth.ParseBearer(s.secret, r)
	if err != nil || claims.Subject == "" {
		writeError(w, http.StatusUnauthorized, "missing or invalid token")
		return "", false
	}
	return claims.Subject, true
}

// service exige role=service (workers internos).
func (s *Server) service(w http.ResponseWriter, r *http.Request) bool {
	claims, err := auth.ParseBearer(s.secret, r)
	if err != nil {
		writeError(w, http.StatusUnauthorized, "missing or invalid token")
		return false
	}
	if claims.Role != auth.RoleService {
		writeError(w, http.StatusForbidden, "service token required")
		return false
	}
	return true
}

// --- helpers ---

func (s *Server) release(ctx context.Context, ref string) {
	if err := s.vault.EscrowRelease(ctx, ref); err != nil {
		// o vault reconcilia releases pendentes; aqui só registra
		s.log.Error("vault escrow release failed", zap.String("external_ref", ref), zap.Error(err))
	}
}

func (s *Server) fail(w http.ResponseWriter, op string, err error) {
	status := statusFor(err)
	if status >= 500 {
		s.log.Error("engine operation failed", zap.String("op", op), zap.Error(err))
	}
	s.track(op, "error")
	writeError(w, status, err.Error())
}

func (s *Server) track(op, result string) {
	if s.OnTransition != nil {
		s.OnTransition(op, result)
	}
}

// statusFor traduz os sentinelas do engine para HTTP.
func statusFor(err error) int {
	switch {
	case errors.Is(err, engine.ErrGameNotFound):
		return http.StatusNotFound
	case errors.Is(err, engine.ErrUnauthorized), errors.Is(err, engine.ErrSelfJoin):
		return http.StatusForbidden
	case errors.Is(err, engine.ErrDuplicateCommitment),
		errors.Is(err, engine.ErrAlreadyJoined),
		errors.Is(err, engine.ErrSecondPlayerPresent),
		errors.Is(err, engine.ErrAlreadyResolved):
		return http.StatusConflict
	case errors.Is(err, engine.ErrStakeMismatch), errors.Is(err, engine.ErrInvalidProof):
		return http.StatusUnprocessableEntity
	case errors.Is(err, engine.ErrTooEarly):
		return http.StatusTooEarly
	case errors.Is(err, engine.ErrDeadlinePassed):
		return http.StatusGone
	case errors.Is(err, engine.ErrInvalidCommitment),
		errors.Is(err, engine.ErrInvalidMove),
		errors.Is(err, engine.ErrInvalidStake),
		errors.Is(err, engine.ErrUnsupportedCurrency),
		errors.Is(err, engine.ErrInvalidReveal):
		return http.StatusBadRequest
	default:
		return http.StatusInternalServerError
	}
}

func writeJSON(w http.ResponseWriter, v any) {
	w.Header().Set("Content-Type", "application/json")
	_ = json.NewEncoder(w).Encode(v)
}

func writeError(w http.ResponseWriter, status int, msg string) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(dto.ErrorResponse{Error: msg})
}
