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

// Relay entrega settlement_executed ao callback interno do game-service.
// Um 409 significa que o engine já aplicou aquela liquidação (replay), então
// conta como entregue e a mensagem é confirmada.
type Relay struct {
	log   *zap.Logger
	base  string // URL do game-service
	token string // JWT de serviço
	http  *http.Client

	// callbacks de métricas; nil-safe
	OnDelivered func()
	OnAcked     func() // replays absorvidos com 409
	OnError     func(stage string)
}

func New(log *zap.Logger, gameServiceURL, serviceToken string) *Relay {
	return &Relay{
		log:   log,
		base:  gameServiceURL,
		token: serviceToken,
		http:  &http.Client{Timeout: 5 * time.Second},
	}
}

// Handle repassa uma mensagem crua do tópico settlement_executed.
func (r *Relay) Handle(ctx context.Context, value []byte) error {
	var ev events.SettlementExecuted
	if err := json.Unmarshal(value, &ev); err != nil {
		r.fail("decode")
		return fmt.Errorf("decode settlement_executed: %w", err)
	}
	if ev.Instruction.ID == "" || ev.Instruction.GameID == "" {
		r.fail("decode")
		return fmt.Errorf("settlement_executed without instruction id")
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost,
		r.base+"/internal/settlements/callback", bytes.NewReader(value))
	if err != nil {
		r.fail("deliver")
		return err
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("Authorization", "Bearer "+r.token)

	res, err := r.http.Do(req)
	if err != nil {
		r.fail("deliver")
		return fmt.Errorf("callback: %w", err)
	}
	defer res.Body.Close()

	switch {
	case res.StatusCode < 300:
		if r.OnDelivered != nil {
			r.OnDelivered()
		}
		r.log.Info("settlement delivered",
			zap.String("game_id", ev.Instruction.GameID),
			zap.String("instruction_id", ev.Instruction.ID))
		return nil
	case res.StatusCode == http.StatusConflict:
		// o engine já liquidou este jogo; replay absorvido
		if r.OnAcked != nil {
			r.OnAcked()
		}
		r.log.Info("settlement already applied",
			zap.String("game_id", ev.Instruction.GameID),
			zap.String("instruction_id", ev.Instruction.ID))
		return nil
	default:
		r.fail("deliver")
		return fmt.Errorf("callback http %d for settlement %s", res.StatusCode, ev.Instruction.ID)
	}
}

func (r *Relay) fail(stage string) {
	if r.OnError != nil {
		r.OnError(stage)
	}
}
