package producer

import (
	"context"
	"encoding/json"
	"time"

	kafkago "github.com/segmentio/kafka-go"

	"github.com/radieske/rps-duel-platform-poc/internal/shared/kafka"
	"github.com/radieske/rps-duel-platform-poc/pkg/contracts/events"
)

// GameEventPublisher publica cada transição no tópico game_events, chaveada
// pelo gameId para manter a ordem por jogo na partição.
type GameEventPublisher struct {
	Writer *kafkago.Writer
}

func NewGameEventPublisher(w *kafkago.Writer) *GameEventPublisher {
	return &GameEventPublisher{Writer: w}
}

func (p *GameEventPublisher) GameEvent(ctx context.Context, e events.GameEvent) error {
	if e.Ts.IsZero() {
		e.Ts = time.Now()
	}
	b, _ := json.Marshal(e)
	return kafka.WriteJSON(ctx, p.Writer, e.GameID, b)
}

// SettlementPublisher entrega a intenção de liquidação ao vault pelo tópico
// settlement_requested.
type SettlementPublisher struct {
	Writer *kafkago.Writer
}

func NewSettlementPublisher(w *kafkago.Writer) *SettlementPublisher {
	return &SettlementPublisher{Writer: w}
}

func (p *SettlementPublisher) RequestSettlement(ctx context.Context, instr events.SettlementInstruction) error {
	e := events.SettlementRequested{
		Instruction: instr,
		TsUnixMs:    time.Now().UnixMilli(),
	}
	b, _ := json.Marshal(e)
	return kafka.WriteJSON(ctx, p.Writer, instr.GameID, b)
}
