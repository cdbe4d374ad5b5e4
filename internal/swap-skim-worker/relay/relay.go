package relay

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"time"

	"go.uber.org/zap"

	"github.com/radieske/rps-duel-platform-poc/pkg/contracts/events"
)

// Relay entrega cada swap_completed à rota interna de skim do game-service.
// O engine decide sozinho o que fazer com o swap (crédito, create ou join);
// aqui só se repassa e se conta o resultado. Um 409 significa que o create
// ou join daquele swap já foi aplicado (replay do tópico), então conta como
// entregue e a mensagem é confirmada.
type Relay struct {
	log   *zap.Logger
	base  string // URL do game-service
	token string // JWT de serviço
	http  *http.Client

	// callbacks de métricas; nil-safe
	OnSkimmed func(action string)
	OnError   func(stage string)
}

func New(log *zap.Logger, gameServiceURL, serviceToken string) *Relay {
	return &Relay{
		log:   log,
		base:  gameServiceURL,
		token: serviceToken,
		http:  &http.Client{Timeout: 5 * time.Second},
	}
}

// Handle repassa uma mensagem crua do tópico swap_completed.
func (r *Relay) Handle(ctx context.Context, value []byte) error {
	var ev events.SwapCompleted
	if err := json.Unmarshal(value, &ev); err != nil {
		r.fail("decode")
		return fmt.Errorf("decode swap_completed: %w", err)
	}
	if ev.SwapID == "" || ev.Trader == "" {
		r.fail("decode")
		return fmt.Errorf("swap_completed without swap id")
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost,
		r.base+"/internal/skim", bytes.NewReader(value))
	if err != nil {
		r.fail("deliver")
		return err
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("Authorization", "Bearer "+r.token)

	res, err := r.http.Do(req)
	if err != nil {
		r.fail("deliver")
		return fmt.Errorf("skim call: %w", err)
	}
	defer res.Body.Close()

	if res.StatusCode == http.StatusConflict {
		// commitment duplicado ou jogo já com segundo jogador; replay absorvido
		if r.OnSkimmed != nil {
			r.OnSkimmed("REPLAY")
		}
		r.log.Info("swap already applied",
			zap.String("swap_id", ev.SwapID),
			zap.String("trader", ev.Trader))
		return nil
	}
	if res.StatusCode >= 300 {
		r.fail("deliver")
		return fmt.Errorf("skim http %d for swap %s", res.StatusCode, ev.SwapID)
	}

	var out struct {
		Action  string `json:"action"`
		Skimmed int64  `json:"skimmed"`
	}
	if err := json.NewDecoder(res.Body).Decode(&out); err != nil {
		out.Action = "UNKNOWN"
	}

	if r.OnSkimmed != nil {
		r.OnSkimmed(out.Action)
	}
	r.log.Info("swap skimmed",
		zap.String("swap_id", ev.SwapID),
		zap.String("trader", ev.Trader),
		zap.String("action", out.Action),
		zap.Int64("skimmed", out.Skimmed))
	return nil
}

func (r *Relay) fail(stage string) {
	if r.OnError != nil {
		r.OnError(stage)
	}
}
