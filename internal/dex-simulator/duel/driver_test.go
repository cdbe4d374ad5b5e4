package duel

import (
	"context"
	"encoding/hex"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/radieske/rps-duel-platform-poc/internal/game-service/dto"
	"github.com/radieske/rps-duel-platform-poc/internal/game-service/engine"
	"github.com/radieske/rps-duel-platform-poc/internal/game-service/proof"
	"github.com/radieske/rps-duel-platform-poc/internal/shared/auth"
)

const testSecret = "test-secret"

func fixedPlan() Plan {
	salt := []byte("0123456789abcdef")
	p := Plan{
		Pool:       "POOL-A",
		Currency:   "HBD",
		First:      "alice",
		FirstMove:  engine.MoveRock,
		Salt:       salt,
		Second:     "bob",
		SecondMove: engine.MoveScissors,
		Output:     5000,
	}
	p.GameID = engine.ComputeCommitment(p.FirstMove, salt)
	return p
}

func TestNewPlanShape(t *testing.T) {
	pools := []string{"POOL-A", "POOL-B"}
	traders := []string{"alice", "bob", "carol"}

	p, err := NewPlan(pools, traders, "HBD", 7000)
	require.NoError(t, err)

	assert.NotEqual(t, p.First, p.Second)
	assert.Contains(t, pools, p.Pool)
	assert.True(t, p.FirstMove.Valid())
	assert.True(t, p.SecondMove.Valid())

	norm, err := engine.NormalizeCommitment(p.GameID)
	require.NoError(t, err)
	assert.Equal(t, norm, p.GameID)
	assert.Equal(t, p.GameID, engine.ComputeCommitment(p.FirstMove, p.Salt))

	create := p.CreateSwap()
	require.NotNil(t, create.Payload)
	assert.Equal(t, p.GameID, create.Payload.Commitment)
	assert.Empty(t, create.Payload.Move)
	assert.Equal(t, p.First, create.Trader)

	join := p.JoinSwap()
	require.NotNil(t, join.Payload)
	assert.Equal(t, p.GameID, join.Payload.Commitment)
	assert.Equal(t, p.SecondMove.String(), join.Payload.Move)
	assert.Equal(t, p.Second, join.Trader)

	// stakes iguais dependem de outputs iguais
	assert.Equal(t, create.OutputAmount, join.OutputAmount)
	assert.NotEqual(t, create.SwapID, join.SwapID)

	_, err = NewPlan(pools, []string{"alice"}, "HBD", 7000)
	require.Error(t, err)
}

func TestRevealRetriesUntilJoinApplied(t *testing.T) {
	p := fixedPlan()

	var calls int
	var gotAuth string
	var gotReq dto.RevealRequest
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		calls++
		require.Equal(t, "/v1/games/reveal", r.URL.Path)
		gotAuth = r.Header.Get("Authorization")
		require.NoError(t, json.NewDecoder(r.Body).Decode(&gotReq))

		switch calls {
		case 1:
			http.Error(w, "not found", http.StatusNotFound) // create ainda não chegou
		case 2:
			http.Error(w, "too early", http.StatusTooEarly) // join ainda não chegou
		default:
			w.Header().Set("Content-Type", "application/json")
			_ = json.NewEncoder(w).Encode(dto.GameResponse{
				GameID: p.GameID, Phase: "RESOLVED", Outcome: "FIRST",
			})
		}
	}))
	defer srv.Close()

	d := &Driver{
		Log:      zap.NewNop(),
		BaseURL:  srv.URL,
		Secret:   testSecret,
		HTTP:     srv.Client(),
		Attempts: 5,
		Backoff:  time.Millisecond,
	}

	game, err := d.Reveal(context.Background(), p)
	require.NoError(t, err)
	assert.Equal(t, 3, calls)
	assert.Equal(t, "FIRST", game.Outcome)

	// o token é do primeiro jogador
	require.True(t, strings.HasPrefix(gotAuth, "Bearer "))
	authReq := httptest.NewRequest(http.MethodPost, "/", nil)
	authReq.Header.Set("Authorization", gotAuth)
	claims, err := auth.ParseBearer(testSecret, authReq)
	require.NoError(t, err)
	assert.Equal(t, "alice", claims.Subject)

	// o corpo reconstrói o commitment
	move, err := engine.ParseMove(gotReq.Move)
	require.NoError(t, err)
	salt, err := hex.DecodeString(gotReq.Salt)
	require.NoError(t, err)
	assert.Equal(t, p.GameID, engine.ComputeCommitment(move, salt))
	assert.Empty(t, gotReq.Proof)
}

func TestRevealAttachesVerifiableProof(t *testing.T) {
	p := fixedPlan()
	prover := proof.NewProver()

	var gotReq dto.RevealRequest
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		require.NoError(t, json.NewDecoder(r.Body).Decode(&gotReq))
		w.Header().Set("Content-Type", "application/json")
		_ = json.NewEncoder(w).Encode(dto.GameResponse{GameID: p.GameID, Outcome: "FIRST"})
	}))
	defer srv.Close()

	d := &Driver{
		Log:      zap.NewNop(),
		BaseURL:  srv.URL,
		Secret:   testSecret,
		Prover:   prover,
		HTTP:     srv.Client(),
		Attempts: 1,
		Backoff:  time.Millisecond,
	}

	_, err := d.Reveal(context.Background(), p)
	require.NoError(t, err)
	require.NotEmpty(t, gotReq.Proof)

	sig, err := hex.DecodeString(gotReq.Proof)
	require.NoError(t, err)
	outcome := engine.Winner(p.FirstMove, p.SecondMove)
	require.NoError(t, prover.Gate().Verify(sig, p.FirstMove, p.SecondMove, outcome))
}

func TestRevealStopsOnHardError(t *testing.T) {
	var calls int
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		calls++
		http.Error(w, "forbidden", http.StatusForbidden)
	}))
	defer srv.Close()

	d := &Driver{
		Log: zap.NewNop(), BaseURL: srv.URL, Secret: testSecret,
		HTTP: srv.Client(), Attempts: 5, Backoff: time.Millisecond,
	}

	_, err := d.Reveal(context.Background(), fixedPlan())
	require.Error(t, err)
	assert.Contains(t, err.Error(), "http 403")
	assert.Equal(t, 1, calls)
}

func TestRevealGivesUpAfterAttempts(t *testing.T) {
	var calls int
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		calls++
		http.Error(w, "too early", http.StatusTooEarly)
	}))
	defer srv.Close()

	d := &Driver{
		Log: zap.NewNop(), BaseURL: srv.URL, Secret: testSecret,
		HTTP: srv.Client(), Attempts: 3, Backoff: time.Millisecond,
	}

	_, err := d.Reveal(context.Background(), fixedPlan())
	require.Error(t, err)
	assert.Contains(t, err.Error(), "gave up after 3 attempts")
	assert.Equal(t, 3, calls)
}
