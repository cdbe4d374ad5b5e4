package producer

import (
	"context"
	"encoding/json"
	"time"

	kafkago "github.com/segmentio/kafka-go"

	"github.com/radieske/rps-duel-platform-poc/internal/shared/kafka"
	"github.com/radieske/rps-duel-platform-poc/pkg/contracts/events"
)

// SettlementExecutedPublisher publica o resultado de cada execução no tópico
// settlement_executed, chaveado pelo gameId para manter a ordem por jogo.
type SettlementExecutedPublisher struct {
	Writer *kafkago.Writer
}

func NewSettlementExecutedPublisher(w *kafkago.Writer) *SettlementExecutedPublisher {
	return &SettlementExecutedPublisher{Writer: w}
}

func (p *SettlementExecutedPublisher) SettlementExecuted(ctx context.Context, e events.SettlementExecuted) error {
	if e.TsUnixMs == 0 {
		e.TsUnixMs = time.Now().UnixMilli()
	}
	b, _ := json.Marshal(e)
	return kafka.WriteJSON(ctx, p.Writer, e.Instruction.GameID, b)
}
