package relay

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/radieske/rps-duel-platform-poc/pkg/contracts/events"
)

func swapPayload(t *testing.T) []byte {
	t.Helper()
	raw, err := json.Marshal(events.SwapCompleted{
		SwapID:       "sw-7",
		Trader:       "carol",
		Pool:         "POOL-A",
		Currency:     "HBD",
		OutputAmount: 1000,
		Source:       "dex-simulator",
	})
	require.NoError(t, err)
	return raw
}

func TestHandleForwardsSwap(t *testing.T) {
	var gotAuth string
	var gotSwap events.SwapCompleted
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		gotAuth = r.Header.Get("Authorization")
		require.NoError(t, json.NewDecoder(r.Body).Decode(&gotSwap))
		w.Header().Set("Content-Type", "application/json")
		_, _ = w.Write([]byte(`{"action":"CREDIT","skimmed":20}`))
	}))
	defer srv.Close()

	rl := New(zap.NewNop(), srv.URL, "tok-skim")
	var actions []string
	rl.OnSkimmed = func(action string) { actions = append(actions, action) }

	require.NoError(t, rl.Handle(context.Background(), swapPayload(t)))
	assert.Equal(t, "Bearer tok-skim", gotAuth)
	assert.Equal(t, "sw-7", gotSwap.SwapID)
	assert.Equal(t, []string{"CREDIT"}, actions)
}

func TestHandleFailsOnRejectedSwap(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		w.WriteHeader(http.StatusUnprocessableEntity)
	}))
	defer srv.Close()

	rl := New(zap.NewNop(), srv.URL, "tok")
	var stages []string
	rl.OnError = func(stage string) { stages = append(stages, stage) }

	assert.Error(t, rl.Handle(context.Background(), swapPayload(t)))
	assert.Equal(t, []string{"deliver"}, stages)
}

func TestHandleTreatsConflictAsReplay(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		w.WriteHeader(http.StatusConflict)
	}))
	defer srv.Close()

	rl := New(zap.NewNop(), srv.URL, "tok")
	var actions []string
	rl.OnSkimmed = func(action string) { actions = append(actions, action) }
	var stages []string
	rl.OnError = func(stage string) { stages = append(stages, stage) }

	require.NoError(t, rl.Handle(context.Background(), swapPayload(t)))
	assert.Equal(t, []string{"REPLAY"}, actions)
	assert.Empty(t, stages)
}

func TestHandleRejectsGarbageWithoutCalling(t *testing.T) {
	var calls int
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		calls++
	}))
	defer srv.Close()

	rl := New(zap.NewNop(), srv.URL, "tok")
	assert.Error(t, rl.Handle(context.Background(), []byte("not json")))
	assert.Error(t, rl.Handle(context.Background(), []byte(`{"swap_id":""}`)))
	assert.Zero(t, calls)
}

func TestHandleToleratesUnparseableResponse(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		_, _ = w.Write([]byte("ok"))
	}))
	defer srv.Close()

	rl := New(zap.NewNop(), srv.URL, "tok")
	var actions []string
	rl.OnSkimmed = func(action string) { actions = append(actions, action) }

	require.NoError(t, rl.Handle(context.Background(), swapPayload(t)))
	assert.Equal(t, []string{"UNKNOWN"}, actions)
}
