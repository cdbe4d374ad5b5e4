package consumer

import (
	"context"
	"encoding/json"
	"time"

	"github.com/segmentio/kafka-go"
	"go.uber.org/zap"

	"github.com/radieske/rps-duel-platform-poc/pkg/contracts/events"
)

// View é a visão corrente dos jogos mantida no Redis.
type View interface {
	SetCurrent(ctx context.Context, e events.GameEvent) error
	MarkActive(ctx context.Context, gameID string) error
	DropActive(ctx context.Context, gameID string) error
}

// History é o registro append-only dos eventos no Postgres.
type History interface {
	InsertHistory(ctx context.Context, e events.GameEvent) error
}

// Broadcaster repassa o frame original ao canal Pub/Sub do feed.
type Broadcaster interface {
	Publish(ctx context.Context, channel string, payload []byte) error
}

// Processor consome eventos de jogo do Kafka, atualiza a visão corrente no
// Redis, grava o histórico e repassa o frame ao feed.
// Callbacks de métricas podem ser usadas para monitoramento de cada etapa
type Processor struct {
	Log         *zap.Logger
	Reader      *kafka.Reader
	Cache       View
	Repo        History
	Broadcaster Broadcaster
	Channel     string

	OnConsumed  func()       // métricas (counter++)
	OnCached    func()       // métricas
	OnPersist   func()       // métricas
	OnBroadcast func()       // métricas
	OnError     func(string) // métricas por fase
}

// Run inicia o loop principal de consumo e processamento das mensagens Kafka.
func (p *Processor) Run(ctx context.Context) error {
	for {
		m, err := p.Reader.ReadMessage(ctx)
		if err != nil {
			if ctx.Err() != nil {
				return ctx.Err() // encerra se o contexto for cancelado
			}
			p.Log.Warn("kafka read failed", zap.Error(err))
			p.fail("read")
			time.Sleep(500 * time.Millisecond)
			continue
		}

		if p.OnConsumed != nil {
			p.OnConsumed()
		}
		p.Handle(ctx, m.Value)
	}
}

// Handle processa um frame do tópico game_events. Erros são contabilizados e
// o frame é descartado; o estado autoritativo continua no game-service.
func (p *Processor) Handle(ctx context.Context, raw []byte) {
	var ev events.GameEvent
	if err := json.Unmarshal(raw, &ev); err != nil {
		p.Log.Warn("invalid game event", zap.Error(err))
		p.fail("decode")
		return
	}
	if ev.Type == "" {
		p.Log.Warn("game event without type")
		p.fail("decode")
		return
	}

	// SKIM_CREDITED não referencia jogo; segue direto para histórico e feed.
	if ev.GameID != "" {
		if err := p.updateView(ctx, ev); err != nil {
			p.Log.Warn("redis view update failed", zap.Error(err))
			p.fail("cache")
			// não bloqueia persistência se falhar o cache
		} else if p.OnCached != nil {
			p.OnCached()
		}
	}

	if err := p.Repo.InsertHistory(ctx, ev); err != nil {
		p.Log.Warn("db insert history failed", zap.Error(err))
		p.fail("db_history")
		return
	}
	if p.OnPersist != nil {
		p.OnPersist()
	}

	if err := p.Broadcaster.Publish(ctx, p.Channel, raw); err != nil {
		p.Log.Warn("feed broadcast failed", zap.Error(err))
		p.fail("broadcast")
		return
	}
	if p.OnBroadcast != nil {
		p.OnBroadcast()
	}
}

// updateView grava o snapshot corrente e mantém o índice de ativos. Um jogo
// só sai do índice quando o vault confirma a liquidação.
func (p *Processor) updateView(ctx context.Context, ev events.GameEvent) error {
	if err := p.Cache.SetCurrent(ctx, ev); err != nil {
		return err
	}
	switch ev.Type {
	case events.GameCreated, events.GameJoined:
		return p.Cache.MarkActive(ctx, ev.GameID)
	case events.GameSettled:
		return p.Cache.DropActive(ctx, ev.GameID)
	}
	return nil
}

func (p *Processor) fail(stage string) {
	if p.OnError != nil {
		p.OnError(stage)
	}
}
