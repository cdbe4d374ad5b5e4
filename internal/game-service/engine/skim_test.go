package engine

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/radieske/rps-duel-platform-poc/pkg/contracts/events"
)

func TestSkimAdapterRate(t *testing.T) {
	eng, _, _ := newTestEngine(t, testConfig(), Deps{})

	t.Run("should reject rates outside [0,1)", func(t *testing.T) {
		for _, rate := range []string{"1", "1.5", "-0.1", "two percent"} {
			_, err := NewSkimAdapter(eng, rate)
			assert.Error(t, err, "rate %q", rate)
		}
	})

	t.Run("should floor the slice", func(t *testing.T) {
		a, err := NewSkimAdapter(eng, "0.02")
		require.NoError(t, err)

		cases := map[int64]int64{
			1000: 20,
			999:  19, // 19.98 arredonda para baixo
			50:   1,
			49:   0,
			1:    0,
			0:    0,
			-5:   0,
		}
		for output, want := range cases {
			assert.Equal(t, want, a.Slice(output), "output %d", output)
		}
	})

	t.Run("zero rate never skims", func(t *testing.T) {
		a, err := NewSkimAdapter(eng, "0")
		require.NoError(t, err)
		assert.Zero(t, a.Slice(1_000_000))
	})
}

func TestSkimCreditOnly(t *testing.T) {
	eng, s, _ := newTestEngine(t, testConfig(), Deps{})
	ctx := context.Background()

	res, err := eng.Skim(ctx, SwapInput{
		SwapID: "sw-c1", Trader: "dave", Pool: testPool, Currency: testCurrency,
		OutputAmount: 1000,
	}, 20)
	require.NoError(t, err)
	assert.Equal(t, SkimActionCredit, res.Action)
	assert.Equal(t, int64(20), res.Skimmed)
	assert.Nil(t, res.Game)

	assert.Equal(t, int64(20), eng.Balance(testPool, testCurrency))
	assert.Equal(t, int64(20), eng.Contribution("dave", testPool, testCurrency))
	require.Len(t, s.events, 1)
	assert.Equal(t, events.SkimCredited, s.events[0].Type)
	assert.Equal(t, "dave", s.events[0].Actor)
	auditOK(t, eng)

	t.Run("should no-op when the slice is zero", func(t *testing.T) {
		res, err := eng.Skim(ctx, SwapInput{
			SwapID: "sw-c2", Trader: "dave", Pool: testPool, Currency: testCurrency,
			OutputAmount: 10,
		}, 0)
		require.NoError(t, err)
		assert.Equal(t, SkimActionNone, res.Action)
		assert.Zero(t, res.Skimmed)
		assert.Equal(t, int64(20), eng.Balance(testPool, testCurrency))
		assert.Len(t, s.events, 1, "no-op não publica evento")
	})

	t.Run("should reject anonymous swaps", func(t *testing.T) {
		_, err := eng.Skim(ctx, SwapInput{SwapID: "sw-c3", Pool: testPool,
			Currency: testCurrency, OutputAmount: 1000}, 20)
		assert.ErrorIs(t, err, ErrUnauthorized)
	})

	t.Run("should reject negative slices", func(t *testing.T) {
		_, err := eng.Skim(ctx, SwapInput{SwapID: "sw-c4", Trader: "dave",
			Pool: testPool, Currency: testCurrency, OutputAmount: 1000}, -1)
		assert.ErrorIs(t, err, ErrInvalidStake)
	})
}

func TestSkimDrivenDuel(t *testing.T) {
	st := &memStore{}
	eng, s, _ := newTestEngine(t, testConfig(), Deps{Store: st})
	ctx := context.Background()

	commitment := ComputeCommitment(MoveScissors, []byte("skim-salt"))

	// swap do primeiro jogador carrega só o commitment: abre o jogo
	created, err := eng.Skim(ctx, SwapInput{
		SwapID: "sw-d1", Trader: alice, Pool: testPool, Currency: testCurrency,
		OutputAmount: 5000,
		Payload:      &events.DuelPayload{Commitment: commitment},
	}, 100)
	require.NoError(t, err)
	assert.Equal(t, SkimActionCreate, created.Action)
	require.NotNil(t, created.Game)
	assert.Equal(t, PhaseCreated, created.Game.Phase)
	assert.Equal(t, int64(100), created.Game.FirstContribution)
	require.Len(t, st.applied, 1)
	assert.Equal(t, "SKIM_CREATE", st.applied[0].Op)

	t.Run("should reject a second-player skim on the trader's own game", func(t *testing.T) {
		_, err := eng.Skim(ctx, SwapInput{
			SwapID: "sw-d2", Trader: alice, Pool: testPool, Currency: testCurrency,
			OutputAmount: 5000,
			Payload:      &events.DuelPayload{Commitment: commitment, Move: "rock"},
		}, 100)
		assert.ErrorIs(t, err, ErrSelfJoin)
	})

	t.Run("should pin the join to the game's bucket", func(t *testing.T) {
		_, err := eng.Skim(ctx, SwapInput{
			SwapID: "sw-d3", Trader: bob, Pool: "POOL-OTHER", Currency: testCurrency,
			OutputAmount: 5000,
			Payload:      &events.DuelPayload{Commitment: commitment, Move: "rock"},
		}, 100)
		assert.ErrorIs(t, err, ErrStakeMismatch)
	})

	t.Run("should reject a garbled move", func(t *testing.T) {
		_, err := eng.Skim(ctx, SwapInput{
			SwapID: "sw-d4", Trader: bob, Pool: testPool, Currency: testCurrency,
			OutputAmount: 5000,
			Payload:      &events.DuelPayload{Commitment: commitment, Move: "lizard"},
		}, 100)
		assert.ErrorIs(t, err, ErrInvalidMove)
	})

	t.Run("should enforce equal stakes on skim joins", func(t *testing.T) {
		_, err := eng.Skim(ctx, SwapInput{
			SwapID: "sw-d5", Trader: bob, Pool: testPool, Currency: testCurrency,
			OutputAmount: 3000,
			Payload:      &events.DuelPayload{Commitment: commitment, Move: "rock"},
		}, 60)
		assert.ErrorIs(t, err, ErrStakeMismatch)
	})

	// swap do segundo jogador com commitment já usado: entra no duelo
	joined, err := eng.Skim(ctx, SwapInput{
		SwapID: "sw-d6", Trader: bob, Pool: testPool, Currency: testCurrency,
		OutputAmount: 5000,
		Payload:      &events.DuelPayload{Commitment: commitment, Move: "paper"},
	}, 100)
	require.NoError(t, err)
	assert.Equal(t, SkimActionJoin, joined.Action)
	require.NotNil(t, joined.Game)
	assert.Equal(t, PhaseJoined, joined.Game.Phase)
	assert.Equal(t, "SKIM_JOIN", st.applied[len(st.applied)-1].Op)
	auditOK(t, eng)

	// o duelo segue o fluxo normal: tesoura corta papel
	revealed, err := eng.Reveal(ctx, alice, commitment, MoveScissors, []byte("skim-salt"), nil)
	require.NoError(t, err)
	assert.Equal(t, OutcomeFirst, *revealed.Outcome)

	_, err = eng.OnSettle(ctx, s.lastInstr(t))
	require.NoError(t, err)
	assert.Zero(t, eng.Balance(testPool, testCurrency))
	auditOK(t, eng)
}

func TestSkimDuelGuards(t *testing.T) {
	eng, _, _ := newTestEngine(t, testConfig(), Deps{})
	ctx := context.Background()

	t.Run("should reject a dust swap carrying a duel payload", func(t *testing.T) {
		// fatia zero não banca stake: o payload vira erro, não crédito
		_, err := eng.Skim(ctx, SwapInput{
			SwapID: "sw-g1", Trader: alice, Pool: testPool, Currency: testCurrency,
			OutputAmount: 10,
			Payload:      &events.DuelPayload{Commitment: ComputeCommitment(MoveRock, []byte("dust"))},
		}, 0)
		assert.ErrorIs(t, err, ErrInvalidStake)
	})

	t.Run("should reject a malformed commitment in the payload", func(t *testing.T) {
		_, err := eng.Skim(ctx, SwapInput{
			SwapID: "sw-g2", Trader: alice, Pool: testPool, Currency: testCurrency,
			OutputAmount: 5000,
			Payload:      &events.DuelPayload{Commitment: "xyz"},
		}, 100)
		assert.ErrorIs(t, err, ErrInvalidCommitment)
	})

	t.Run("should reject an off-currency duel swap", func(t *testing.T) {
		_, err := eng.Skim(ctx, SwapInput{
			SwapID: "sw-g3", Trader: alice, Pool: testPool, Currency: "BRL",
			OutputAmount: 5000,
			Payload:      &events.DuelPayload{Commitment: ComputeCommitment(MoveRock, []byte("brl"))},
		}, 100)
		assert.ErrorIs(t, err, ErrUnsupportedCurrency)
	})
}

func TestHandleSwapWiresSliceAndSkim(t *testing.T) {
	eng, _, _ := newTestEngine(t, testConfig(), Deps{})
	a, err := NewSkimAdapter(eng, "0.02")
	require.NoError(t, err)

	res, err := a.HandleSwap(context.Background(), SwapInput{
		SwapID: "sw-h1", Trader: "dave", Pool: testPool, Currency: testCurrency,
		OutputAmount: 999,
	})
	require.NoError(t, err)
	assert.Equal(t, SkimActionCredit, res.Action)
	assert.Equal(t, int64(19), res.Skimmed)
	assert.Equal(t, int64(19), eng.Balance(testPool, testCurrency))
}
