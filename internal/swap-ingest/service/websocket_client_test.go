package service

import (
	"context"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/gorilla/websocket"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/radieske/rps-duel-platform-poc/pkg/contracts/events"
)

type capturingPublisher struct {
	mu    sync.Mutex
	swaps []events.SwapCompleted
}

func (p *capturingPublisher) Publish(_ context.Context, e events.SwapCompleted) error {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.swaps = append(p.swaps, e)
	return nil
}

func (p *capturingPublisher) published() []events.SwapCompleted {
	p.mu.Lock()
	defer p.mu.Unlock()
	out := make([]events.SwapCompleted, len(p.swaps))
	copy(out, p.swaps)
	return out
}

// fakeDexServer sobe um WS que emite os frames dados e fecha com close normal.
func fakeDexServer(t *testing.T, frames []string) *httptest.Server {
	t.Helper()
	up := websocket.Upgrader{}
	return httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		conn, err := up.Upgrade(w, r, nil)
		require.NoError(t, err)
		defer conn.Close()
		for _, f := range frames {
			require.NoError(t, conn.WriteMessage(websocket.TextMessage, []byte(f)))
		}
		deadline := time.Now().Add(time.Second)
		msg := websocket.FormatCloseMessage(websocket.CloseNormalClosure, "done")
		require.NoError(t, conn.WriteControl(websocket.CloseMessage, msg, deadline))
		// aguarda o close de resposta do cliente antes de derrubar o socket.
		conn.ReadMessage()
	}))
}

func TestConnectAndListenPublishesValidSwaps(t *testing.T) {
	frames := []string{
		`{not json`,
		`{"swap_id":"","trader":"alice","pool":"POOL-A"}`,
		`{"swap_id":"sw-1","trader":"alice","pool":"POOL-A","currency":"USDT","output_amount":1000,"source":"dex-simulator"}`,
		`{"swap_id":"sw-2","trader":"bob","pool":"POOL-A","currency":"USDT","output_amount":400,"payload":{"commitment":"abc"}}`,
	}
	srv := fakeDexServer(t, frames)
	defer srv.Close()

	pub := &capturingPublisher{}
	var invalid, published int
	client := &WSClient{
		URL:         strings.Replace(srv.URL, "http", "ws", 1),
		Log:         zap.NewNop(),
		Publisher:   pub,
		OnPublished: func() { published++ },
		OnInvalid:   func() { invalid++ },
	}

	err := client.connectAndListen(context.Background())
	require.NoError(t, err)

	got := pub.published()
	require.Len(t, got, 2)
	assert.Equal(t, "sw-1", got[0].SwapID)
	assert.Equal(t, int64(1000), got[0].OutputAmount)
	assert.Equal(t, "sw-2", got[1].SwapID)
	require.NotNil(t, got[1].Payload)
	assert.Equal(t, "abc", got[1].Payload.Commitment)

	assert.Equal(t, 2, invalid)
	assert.Equal(t, 2, published)
}

func TestConnectAndListenFailsWhenServerUnreachable(t *testing.T) {
	client := &WSClient{
		URL:       "ws://127.0.0.1:1/ws/swaps",
		Log:       zap.NewNop(),
		Publisher: &capturingPublisher{},
	}
	err := client.connectAndListen(context.Background())
	require.Error(t, err)
}

func TestStartStopsOnContextCancel(t *testing.T) {
	up := websocket.Upgrader{}
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		conn, err := up.Upgrade(w, r, nil)
		require.NoError(t, err)
		defer conn.Close()
		// segura a conexão aberta até o cliente derrubar o socket.
		conn.ReadMessage()
	}))
	defer srv.Close()

	client := &WSClient{
		URL:       strings.Replace(srv.URL, "http", "ws", 1),
		Log:       zap.NewNop(),
		Publisher: &capturingPublisher{},
	}

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan struct{})
	go func() {
		client.Start(ctx)
		close(done)
	}()

	cancel()
	select {
	case <-done:
	case <-time.After(5 * time.Second):
		t.Fatal("Start did not return after cancel")
	}
}
