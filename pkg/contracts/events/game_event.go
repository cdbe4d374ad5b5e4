package events

import "time"

// Tipos de GameEvent publicados no tópico "game_events".
const (
	GameCreated   = "GAME_CREATED"
	GameJoined    = "GAME_JOINED"
	GameResolved  = "GAME_RESOLVED"
	GameForfeited = "GAME_FORFEITED"
	GameRefunded  = "GAME_REFUNDED"
	GameSettled   = "GAME_SETTLED"
	SkimCredited  = "SKIM_CREDITED" // crédito de skim sem jogo associado
)

// Evento emitido pelo game-service a cada transição de estado de um jogo.
// Carrega o suficiente para reconstruir a transição em indexadores externos.
type GameEvent struct {
	Type           string    `json:"type"`
	GameID         string    `json:"gameId,omitempty"` // vazio em SKIM_CREDITED
	Actor          string    `json:"actor,omitempty"`
	Pool           string    `json:"pool"`
	Currency       string    `json:"currency"`
	Amount         int64     `json:"amount,omitempty"` // stake ou total liquidado
	Move           string    `json:"move,omitempty"`
	Outcome        string    `json:"outcome,omitempty"` // "TIE" | "FIRST" | "SECOND"
	Phase          string    `json:"phase,omitempty"`
	RevealDeadline int64     `json:"revealDeadlineUnixMs,omitempty"`
	SettlementID   string    `json:"settlementId,omitempty"`
	Ts             time.Time `json:"ts"`
}
