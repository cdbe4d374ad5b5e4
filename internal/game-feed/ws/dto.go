package ws

import "encoding/json"

// AllGames é a assinatura curinga: recebe todos os eventos do feed,
// inclusive os que não referenciam jogo (créditos de skim).
const AllGames = "*"

// ClientMsg representa uma mensagem recebida do cliente WebSocket
// Type: subscribe | unsubscribe | ping
// GameID: opcional em subscribe/unsubscribe; vazio equivale a AllGames
type ClientMsg struct {
	Type   string `json:"type"`
	GameID string `json:"gameId,omitempty"`
}

// FeedUpdate é o frame enviado aos clientes. Payload carrega o evento de
// jogo byte a byte como foi publicado pelo game-service.
type FeedUpdate struct {
	GameID  string          `json:"gameId,omitempty"`
	Payload json.RawMessage `json:"payload"`
}
