package dto

// GameSummary é a visão de um duelo exposta pelo feed.
type GameSummary struct {
	GameID    string `json:"gameId"`
	Pool      string `json:"pool"`
	Currency  string `json:"currency"`
	Phase     string `json:"phase"`
	LastEvent string `json:"lastEvent"`
	Outcome   string `json:"outcome,omitempty"`
	UpdatedAt string `json:"updatedAt"`
}

// HistoryEntry é uma linha do histórico de eventos de um jogo.
type HistoryEntry struct {
	Seq          int64  `json:"seq"`
	Type         string `json:"type"`
	Actor        string `json:"actor,omitempty"`
	Amount       int64  `json:"amount,omitempty"`
	Move         string `json:"move,omitempty"`
	Outcome      string `json:"outcome,omitempty"`
	Phase        string `json:"phase,omitempty"`
	SettlementID string `json:"settlementId,omitempty"`
	Ts           string `json:"ts"`
}
