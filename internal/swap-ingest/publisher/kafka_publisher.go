package publisher

import (
	"context"
	"encoding/json"
	"time"

	kafkago "github.com/segmentio/kafka-go"
	"go.uber.org/zap"

	"github.com/radieske/rps-duel-platform-poc/internal/shared/kafka"
	"github.com/radieske/rps-duel-platform-poc/pkg/contracts/events"
)

// SwapPublisher publica cada swap recebido do DEX no tópico swap_completed,
// chaveado pelo swapId.
type SwapPublisher struct {
	writer *kafkago.Writer
	log    *zap.Logger
}

func NewSwapPublisher(w *kafkago.Writer, log *zap.Logger) *SwapPublisher {
	return &SwapPublisher{writer: w, log: log}
}

func (p *SwapPublisher) Publish(ctx context.Context, e events.SwapCompleted) error {
	if e.TsUnixMs == 0 {
		e.TsUnixMs = time.Now().UnixMilli()
	}
	b, err := json.Marshal(e)
	if err != nil {
		return err
	}
	if err := kafka.WriteJSON(ctx, p.writer, e.SwapID, b); err != nil {
		p.log.Error("publish swap_completed", zap.String("swap_id", e.SwapID), zap.Error(err))
		return err
	}
	return nil
}

func (p *SwapPublisher) Close() error { return p.writer.Close() }
