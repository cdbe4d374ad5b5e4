package service

import (
	"context"
	"encoding/json"
	"errors"
	"time"

	"github.com/gorilla/websocket"
	"go.uber.org/zap"

	"github.com/radieske/rps-duel-platform-poc/pkg/contracts/events"
)

// Publisher encaminha um swap decodificado para o tópico swap_completed.
type Publisher interface {
	Publish(ctx context.Context, e events.SwapCompleted) error
}

// WSClient consome o stream de swaps do dex-simulator via WebSocket e repassa
// cada swap válido ao publisher. A conexão é refeita em loop até o contexto
// ser cancelado.
type WSClient struct {
	URL       string      // endpoint WS do dex-simulator
	Log       *zap.Logger // logger estruturado
	Publisher Publisher   // destino dos swaps decodificados

	// callbacks de métricas; nil desliga.
	OnPublished func()
	OnInvalid   func()
	OnError     func()
}

// Start mantém o loop de conexão e escuta. Em caso de queda, reconecta com
// uma pausa fixa entre tentativas.
func (c *WSClient) Start(ctx context.Context) {
	for {
		select {
		case <-ctx.Done():
			c.Log.Info("context canceled, stopping swap stream client")
			return
		default:
			if err := c.connectAndListen(ctx); err != nil {
				c.Log.Warn("swap stream closed, retrying", zap.Error(err))
				if c.OnError != nil {
					c.OnError()
				}
				time.Sleep(3 * time.Second)
			}
		}
	}
}

// connectAndListen estabelece a conexão e processa frames até a queda.
// Frames inválidos são descartados sem derrubar a conexão.
func (c *WSClient) connectAndListen(ctx context.Context) error {
	conn, _, err := websocket.DefaultDialer.DialContext(ctx, c.URL, nil)
	if err != nil {
		return err
	}
	defer conn.Close()
	c.Log.Info("connected to dex swap stream", zap.String("url", c.URL))

	// desbloqueia o ReadMessage quando o contexto morre.
	done := make(chan struct{})
	defer close(done)
	go func() {
		select {
		case <-ctx.Done():
			conn.Close()
		case <-done:
		}
	}()

	for {
		_, raw, err := conn.ReadMessage()
		if err != nil {
			if websocket.IsCloseError(err, websocket.CloseNormalClosure) || errors.Is(err, context.Canceled) || ctx.Err() != nil {
				return nil
			}
			c.Log.Error("read swap frame failed", zap.Error(err))
			return err
		}

		var swap events.SwapCompleted
		if err := json.Unmarshal(raw, &swap); err != nil {
			c.Log.Warn("invalid swap frame, skipping", zap.Error(err))
			if c.OnInvalid != nil {
				c.OnInvalid()
			}
			continue
		}
		if swap.SwapID == "" || swap.Trader == "" {
			c.Log.Warn("swap without id or trader, skipping")
			if c.OnInvalid != nil {
				c.OnInvalid()
			}
			continue
		}

		if err := c.Publisher.Publish(ctx, swap); err != nil {
			c.Log.Error("publish swap failed", zap.String("swap_id", swap.SwapID), zap.Error(err))
			if c.OnError != nil {
				c.OnError()
			}
			continue
		}
		if c.OnPublished != nil {
			c.OnPublished()
		}
	}
}
