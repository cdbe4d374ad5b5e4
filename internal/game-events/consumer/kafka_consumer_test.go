package consumer

import (
	"context"
	"encoding/json"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/radieske/rps-duel-platform-poc/pkg/contracts/events"
)

type fakeView struct {
	current map[string]events.GameEvent
	marked  []string
	dropped []string
	fail    bool
}

func (f *fakeView) SetCurrent(_ context.Context, e events.GameEvent) error {
	if f.fail {
		return errors.New("redis down")
	}
	if f.current == nil {
		f.current = map[string]events.GameEvent{}
	}
	f.current[e.GameID] = e
	return nil
}

func (f *fakeView) MarkActive(_ context.Context, gameID string) error {
	f.marked = append(f.marked, gameID)
	return nil
}

func (f *fakeView) DropActive(_ context.Context, gameID string) error {
	f.dropped = append(f.dropped, gameID)
	return nil
}

type fakeHistory struct {
	rows []events.GameEvent
	fail bool
}

func (f *fakeHistory) InsertHistory(_ context.Context, e events.GameEvent) error {
	if f.fail {
		return errors.New("pg down")
	}
	f.rows = append(f.rows, e)
	return nil
}

type fakeBroadcaster struct {
	channels []string
	payloads [][]byte
}

func (f *fakeBroadcaster) Publish(_ context.Context, channel string, payload []byte) error {
	f.channels = append(f.channels, channel)
	f.payloads = append(f.payloads, payload)
	return nil
}

type procFixture struct {
	proc   *Processor
	view   *fakeView
	hist   *fakeHistory
	bcast  *fakeBroadcaster
	stages []string
	cached int
}

func newProcFixture() *procFixture {
	f := &procFixture{
		view:  &fakeView{},
		hist:  &fakeHistory{},
		bcast: &fakeBroadcaster{},
	}
	f.proc = &Processor{
		Log:         zap.NewNop(),
		Cache:       f.view,
		Repo:        f.hist,
		Broadcaster: f.bcast,
		Channel:     "game_events_broadcast",
		OnCached:    func() { f.cached++ },
		OnError:     func(stage string) { f.stages = append(f.stages, stage) },
	}
	return f
}

func frame(t *testing.T, e events.GameEvent) []byte {
	t.Helper()
	b, err := json.Marshal(e)
	require.NoError(t, err)
	return b
}

func TestHandleProjectsLifecycleEvent(t *testing.T) {
	f := newProcFixture()
	raw := frame(t, events.GameEvent{
		Type:     events.GameJoined,
		GameID:   "g1",
		Actor:    "bob",
		Pool:     "POOL-A",
		Currency: "HBD",
		Amount:   100,
		Move:     "SCISSORS",
		Phase:    "JOINED",
		Ts:       time.Now().UTC(),
	})

	f.proc.Handle(context.Background(), raw)

	require.Contains(t, f.view.current, "g1")
	assert.Equal(t, events.GameJoined, f.view.current["g1"].Type)
	assert.Equal(t, []string{"g1"}, f.view.marked)
	assert.Empty(t, f.view.dropped)

	require.Len(t, f.hist.rows, 1)
	assert.Equal(t, "bob", f.hist.rows[0].Actor)

	require.Len(t, f.bcast.payloads, 1)
	assert.Equal(t, raw, f.bcast.payloads[0])
	assert.Equal(t, []string{"game_events_broadcast"}, f.bcast.channels)

	assert.Equal(t, 1, f.cached)
	assert.Empty(t, f.stages)
}

func TestHandleSettledLeavesActiveIndex(t *testing.T) {
	f := newProcFixture()
	f.proc.Handle(context.Background(), frame(t, events.GameEvent{
		Type: events.GameSettled, GameID: "g2", Pool: "POOL-A", Currency: "HBD", Ts: time.Now().UTC(),
	}))

	assert.Equal(t, []string{"g2"}, f.view.dropped)
	assert.Empty(t, f.view.marked)
	assert.Len(t, f.hist.rows, 1)
}

func TestHandleResolvedStaysInActiveIndex(t *testing.T) {
	// RESOLVED ainda aguarda o vault; o jogo permanece indexado até SETTLED.
	f := newProcFixture()
	f.proc.Handle(context.Background(), frame(t, events.GameEvent{
		Type: events.GameResolved, GameID: "g3", Pool: "POOL-A", Currency: "HBD", Outcome: "FIRST", Ts: time.Now().UTC(),
	}))

	assert.Empty(t, f.view.marked)
	assert.Empty(t, f.view.dropped)
	require.Contains(t, f.view.current, "g3")
	assert.Len(t, f.hist.rows, 1)
	assert.Len(t, f.bcast.payloads, 1)
}

func TestHandleSkimCreditSkipsView(t *testing.T) {
	f := newProcFixture()
	f.proc.Handle(context.Background(), frame(t, events.GameEvent{
		Type: events.SkimCredited, Pool: "POOL-A", Currency: "HBD", Actor: "carol", Amount: 20, Ts: time.Now().UTC(),
	}))

	assert.Empty(t, f.view.current)
	assert.Empty(t, f.view.marked)
	assert.Zero(t, f.cached)
	require.Len(t, f.hist.rows, 1)
	assert.Equal(t, int64(20), f.hist.rows[0].Amount)
	assert.Len(t, f.bcast.payloads, 1)
}

func TestHandleRejectsGarbage(t *testing.T) {
	f := newProcFixture()
	f.proc.Handle(context.Background(), []byte(`{broken`))
	f.proc.Handle(context.Background(), []byte(`{"gameId":"g4"}`)) // sem type

	assert.Empty(t, f.view.current)
	assert.Empty(t, f.hist.rows)
	assert.Empty(t, f.bcast.payloads)
	assert.Equal(t, []string{"decode", "decode"}, f.stages)
}

func TestHandleHistoryFailureSkipsBroadcast(t *testing.T) {
	f := newProcFixture()
	f.hist.fail = true
	f.proc.Handle(context.Background(), frame(t, events.GameEvent{
		Type: events.GameCreated, GameID: "g5", Pool: "POOL-A", Currency: "HBD", Ts: time.Now().UTC(),
	}))

	assert.Empty(t, f.bcast.payloads)
	assert.Equal(t, []string{"db_history"}, f.stages)
	// a visão corrente já foi atualizada antes da falha de persistência
	assert.Contains(t, f.view.current, "g5")
}

func TestHandleViewFailureStillPersists(t *testing.T) {
	f := newProcFixture()
	f.view.fail = true
	f.proc.Handle(context.Background(), frame(t, events.GameEvent{
		Type: events.GameCreated, GameID: "g6", Pool: "POOL-A", Currency: "HBD", Ts: time.Now().UTC(),
	}))

	assert.Zero(t, f.cached)
	assert.Equal(t, []string{"cache"}, f.stages)
	require.Len(t, f.hist.rows, 1)
	assert.Len(t, f.bcast.payloads, 1)
}
