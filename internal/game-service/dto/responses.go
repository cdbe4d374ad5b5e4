package dto

import (
	"github.com/radieske/rps-duel-platform-poc/internal/game-service/engine"
)

type GameResponse struct {
	GameID           string `json:"gameId"`
	Pool             string `json:"pool"`
	Currency         string `json:"currency"`
	FirstPlayer      string `json:"firstPlayer"`
	SecondPlayer     string `json:"secondPlayer,omitempty"`
	Stake            int64  `json:"stake"`
	TotalPool        int64  `json:"total_pool"`
	Phase            string `json:"phase"`
	SecondMove       string `json:"secondMove,omitempty"`
	FirstMove        string `json:"firstMove,omitempty"`
	Outcome          string `json:"outcome,omitempty"`
	SettlementID     string `json:"settlementId,omitempty"`
	CreatedAtUnixMs  int64  `json:"createdAtUnixMs"`
	RevealDeadlineMs int64  `json:"revealDeadlineUnixMs,omitempty"`
	SettledAtUnixMs  int64  `json:"settledAtUnixMs,omitempty"`
}

// FromGame adapta o estado do engine para a representação externa. A jogada
// do primeiro jogador só aparece depois do reveal (antes disso só existe o
// commitment, que é o próprio gameId).
func FromGame(g engine.Game) GameResponse {
	out := GameResponse{
		GameID:          g.ID,
		Pool:            g.Pool,
		Currency:        g.Currency,
		FirstPlayer:     g.FirstPlayer,
		SecondPlayer:    g.SecondPlayer,
		Stake:           g.FirstContribution,
		TotalPool:       g.TotalPool(),
		Phase:           string(g.Phase),
		SettlementID:    g.SettlementID,
		CreatedAtUnixMs: g.CreatedAt.UnixMilli(),
	}
	if g.SecondMove != nil {
		out.SecondMove = g.SecondMove.String()
	}
	if g.FirstMove != nil {
		out.FirstMove = g.FirstMove.String()
	}
	if g.Outcome != nil {
		out.Outcome = g.Outcome.String()
	}
	if g.RevealDeadline != nil {
		out.RevealDeadlineMs = g.RevealDeadline.UnixMilli()
	}
	if g.SettledAt != nil {
		out.SettledAtUnixMs = g.SettledAt.UnixMilli()
	}
	return out
}

type GameListResponse struct {
	Games []GameResponse `json:"games"`
	Count int            `json:"count"`
}

type RefundableResponse struct {
	GameID          string `json:"gameId"`
	Refundable      bool   `json:"refundable"`
	TimeRemainingMs int64  `json:"time_remaining_ms"`
}

type BalanceResponse struct {
	Pool     string `json:"pool"`
	Currency string `json:"currency"`
	Balance  int64  `json:"balance"`
}

type ContributionResponse struct {
	Address  string `json:"address"`
	Pool     string `json:"pool"`
	Currency string `json:"currency"`
	Amount   int64  `json:"amount"`
}

type SkimResponse struct {
	Action  string        `json:"action"` // NONE | CREDIT | CREATE | JOIN
	Skimmed int64         `json:"skimmed"`
	Game    *GameResponse `json:"game,omitempty"`
}

type SettleResponse struct {
	GameID          string `json:"gameId"`
	SettlementID    string `json:"settlementId"`
	Status          string `json:"status"` // SETTLED
	SettledAtUnixMs int64  `json:"settledAtUnixMs"`
}

type ErrorResponse struct {
	Error string `json:"error"`
}
