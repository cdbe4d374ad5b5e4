package httpapi

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"go.uber.org/zap"

	"github.com/radieske/rps-duel-platform-poc/internal/game-feed/dto"
	"github.com/radieske/rps-duel-platform-poc/pkg/contracts/events"
)

// ViewReader lê a visão corrente mantida pelo game-events-worker no Redis.
type ViewReader interface {
	ActiveIDs(ctx context.Context) ([]string, error)
	GetCurrent(ctx context.Context, gameID string) (events.GameEvent, bool, error)
}

// HistoryReader consulta o histórico append-only no Postgres.
type HistoryReader interface {
	GameHistory(ctx context.Context, gameID string) ([]dto.HistoryEntry, error)
	LatestByGame(ctx context.Context, gameID string) (dto.GameSummary, error)
}

// API expõe os endpoints REST de consulta do feed de duelos.
type API struct {
	Log      *zap.Logger
	Cache    ViewReader
	ReadRepo HistoryReader
}

// Router retorna o roteador HTTP com os endpoints REST.
func (a *API) Router() http.Handler {
	r := chi.NewRouter()
	r.Get("/v1/feed/games/active", a.listActive)    // jogos ainda não liquidados
	r.Get("/v1/feed/games/{id}", a.getGame)         // resumo de um jogo
	r.Get("/v1/feed/games/{id}/events", a.listGame) // histórico completo de um jogo
	return r
}

// writeJSON serializa a resposta em JSON e define o status HTTP.
func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}

// listActive resume os jogos do índice ativo. Snapshots já expirados do
// Redis são omitidos da listagem; o jogo continua acessível por id.
func (a *API) listActive(w http.ResponseWriter, r *http.Request) {
	ids, err := a.Cache.ActiveIDs(r.Context())
	if err != nil {
		writeJSON(w, http.StatusInternalServerError, map[string]string{"error": err.Error()})
		return
	}

	out := make([]dto.GameSummary, 0, len(ids))
	for _, id := range ids {
		ev, ok, err := a.Cache.GetCurrent(r.Context(), id)
		if err != nil {
			a.Log.Warn("feed snapshot read failed", zap.String("game_id", id), zap.Error(err))
			continue
		}
		if !ok {
			continue
		}
		out = append(out, summaryFromEvent(ev))
	}
	writeJSON(w, http.StatusOK, out)
}

// getGame devolve o resumo de um jogo, preferencialmente do cache.
func (a *API) getGame(w http.ResponseWriter, r *http.Request) {
	id := chi.URLParam(r, "id")

	ev, ok, err := a.Cache.GetCurrent(r.Context(), id)
	if err != nil {
		a.Log.Warn("feed snapshot read failed", zap.String("game_id", id), zap.Error(err))
	}
	if ok {
		writeJSON(w, http.StatusOK, summaryFromEvent(ev))
		return
	}

	s, err := a.ReadRepo.LatestByGame(r.Context(), id)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			writeJSON(w, http.StatusNotFound, map[string]string{"error": "not found"})
			return
		}
		writeJSON(w, http.StatusInternalServerError, map[string]string{"error": err.Error()})
		return
	}
	writeJSON(w, http.StatusOK, s)
}

// listGame devolve o histórico de eventos de um jogo na ordem de gravação.
func (a *API) listGame(w http.ResponseWriter, r *http.Request) {
	id := chi.URLParam(r, "id")

	hist, err := a.ReadRepo.GameHistory(r.Context(), id)
	if err != nil {
		writeJSON(w, http.StatusInternalServerError, map[string]string{"error": err.Error()})
		return
	}
	if len(hist) == 0 {
		writeJSON(w, http.StatusNotFound, map[string]string{"error": "not found"})
		return
	}
	writeJSON(w, http.StatusOK, hist)
}

// summaryFromEvent projeta o último evento de um jogo no resumo do feed.
func summaryFromEvent(e events.GameEvent) dto.GameSummary {
	return dto.GameSummary{
		GameID:    e.GameID,
		Pool:      e.Pool,
		Currency:  e.Currency,
		Phase:     e.Phase,
		LastEvent: e.Type,
		Outcome:   e.Outcome,
		UpdatedAt: e.Ts.UTC().Format(time.RFC3339),
	}
}
