package ws

import (
	"encoding/json"
	"net/http"
	"sync"

	"github.com/gorilla/websocket"
)

var pongFrame = []byte(`{"type":"pong"}`)

// client embrulha a conexão com um mutex de escrita. O reader da conexão e o
// broadcast escrevem concorrentemente no mesmo socket.
type client struct {
	conn *websocket.Conn
	mu   sync.Mutex
}

func (c *client) send(b []byte) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.conn.WriteMessage(websocket.TextMessage, b)
}

// Hub gerencia conexões WebSocket e assinaturas do feed de duelos
// subs: mapeia gameID (ou AllGames) para o conjunto de clientes inscritos
type Hub struct {
	upgrader websocket.Upgrader
	mu       sync.RWMutex
	subs     map[string]map[*client]struct{}

	// callbacks de métricas; nil desliga.
	OnConnect    func()
	OnDisconnect func()
}

// NewHub cria uma instância de Hub com política customizada de origem (CORS).
func NewHub(allowOrigin func(r *http.Request) bool) *Hub {
	return &Hub{
		upgrader: websocket.Upgrader{CheckOrigin: allowOrigin},
		subs:     make(map[string]map[*client]struct{}),
	}
}

// HandleWS gerencia o ciclo de vida de uma conexão WebSocket.
// Permite subscribe/unsubscribe por jogo (ou curinga) e responde a pings.
func (h *Hub) HandleWS(w http.ResponseWriter, r *http.Request) {
	conn, err := h.upgrader.Upgrade(w, r, nil)
	if err != nil {
		return
	}
	c := &client{conn: conn}
	defer conn.Close()

	if h.OnConnect != nil {
		h.OnConnect()
	}
	defer func() {
		h.detach(c)
		if h.OnDisconnect != nil {
			h.OnDisconnect()
		}
	}()

	for {
		var msg ClientMsg
		if err := conn.ReadJSON(&msg); err != nil {
			return
		}
		switch msg.Type {
		case "subscribe":
			h.subscribe(c, subKey(msg.GameID))
		case "unsubscribe":
			h.unsubscribe(c, subKey(msg.GameID))
		case "ping":
			_ = c.send(pongFrame)
		}
	}
}

// subKey normaliza a chave de assinatura; vazio vira o curinga.
func subKey(gameID string) string {
	if gameID == "" {
		return AllGames
	}
	return gameID
}

func (h *Hub) subscribe(c *client, key string) {
	h.mu.Lock()
	defer h.mu.Unlock()
	if _, ok := h.subs[key]; !ok {
		h.subs[key] = make(map[*client]struct{})
	}
	h.subs[key][c] = struct{}{}
}

func (h *Hub) unsubscribe(c *client, key string) {
	h.mu.Lock()
	defer h.mu.Unlock()
	if set, ok := h.subs[key]; ok {
		delete(set, c)
		if len(set) == 0 {
			delete(h.subs, key)
		}
	}
}

// detach remove o cliente de todas as assinaturas ao desconectar.
func (h *Hub) detach(c *client) {
	h.mu.Lock()
	defer h.mu.Unlock()
	for key, set := range h.subs {
		delete(set, c)
		if len(set) == 0 {
			delete(h.subs, key)
		}
	}
}

// Broadcast entrega o update aos inscritos no jogo e aos curingas. Cada
// cliente recebe o frame uma única vez mesmo com assinatura dupla.
func (h *Hub) Broadcast(update FeedUpdate) {
	targets := make(map[*client]struct{})
	h.mu.RLock()
	for c := range h.subs[AllGames] {
		targets[c] = struct{}{}
	}
	if update.GameID != "" {
		for c := range h.subs[update.GameID] {
			targets[c] = struct{}{}
		}
	}
	h.mu.RUnlock()
	if len(targets) == 0 {
		return
	}

	b, _ := json.Marshal(update)
	for c := range targets {
		_ = c.send(b)
	}
}
