package proof

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/radieske/rps-duel-platform-poc/internal/game-service/engine"
)

func TestAttestAndVerify(t *testing.T) {
	p := NewProver()
	gate := p.Gate()

	sig, err := p.Attest(engine.MoveRock, engine.MoveScissors, engine.OutcomeFirst)
	require.NoError(t, err)
	require.NotEmpty(t, sig)

	assert.NoError(t, gate.Verify(sig, engine.MoveRock, engine.MoveScissors, engine.OutcomeFirst))

	t.Run("should bind the attestation to the outcome", func(t *testing.T) {
		assert.Error(t, gate.Verify(sig, engine.MoveRock, engine.MoveScissors, engine.OutcomeSecond))
		assert.Error(t, gate.Verify(sig, engine.MoveRock, engine.MoveScissors, engine.OutcomeTie))
	})

	t.Run("should bind the attestation to the moves", func(t *testing.T) {
		assert.Error(t, gate.Verify(sig, engine.MovePaper, engine.MoveScissors, engine.OutcomeFirst))
		assert.Error(t, gate.Verify(sig, engine.MoveScissors, engine.MoveRock, engine.OutcomeFirst))
	})

	t.Run("should reject a mangled signature", func(t *testing.T) {
		bad := append([]byte(nil), sig...)
		bad[0] ^= 0x01
		assert.Error(t, gate.Verify(bad, engine.MoveRock, engine.MoveScissors, engine.OutcomeFirst))
		assert.Error(t, gate.Verify(nil, engine.MoveRock, engine.MoveScissors, engine.OutcomeFirst))
	})

	t.Run("should reject a signature from another prover", func(t *testing.T) {
		other := NewProver()
		otherSig, err := other.Attest(engine.MoveRock, engine.MoveScissors, engine.OutcomeFirst)
		require.NoError(t, err)
		assert.Error(t, gate.Verify(otherSig, engine.MoveRock, engine.MoveScissors, engine.OutcomeFirst))
	})
}

func TestKeyRoundTrip(t *testing.T) {
	p := NewProver()

	pubHex, err := p.PublicKeyHex()
	require.NoError(t, err)
	privHex, err := p.PrivateKeyHex()
	require.NoError(t, err)

	gate, err := NewGateFromHex(pubHex)
	require.NoError(t, err)

	reloaded, err := NewProverFromHex(privHex)
	require.NoError(t, err)

	// prover recarregado assina provas que o gate da chave exportada aceita
	sig, err := reloaded.Attest(engine.MovePaper, engine.MovePaper, engine.OutcomeTie)
	require.NoError(t, err)
	assert.NoError(t, gate.Verify(sig, engine.MovePaper, engine.MovePaper, engine.OutcomeTie))
}

func TestNewGateFromHexRejectsGarbage(t *testing.T) {
	_, err := NewGateFromHex("not hex")
	assert.Error(t, err)

	_, err = NewGateFromHex("abcd")
	assert.Error(t, err, "tamanho errado para um ponto ed25519")
}

// O gate satisfaz o contrato de verificador do engine.
var _ engine.Verifier = (*Gate)(nil)

func TestGatePluggedIntoEngine(t *testing.T) {
	p := NewProver()

	cfg := engine.Config{
		RevealWindow:    time.Hour,
		JoinGraceWindow: 24 * time.Hour,
		StakeCurrency:   "HBD",
		ProofPolicy:     engine.ProofMandatory,
	}
	eng, err := engine.New(cfg, engine.Deps{Verifier: p.Gate()})
	require.NoError(t, err)

	ctx := context.Background()
	commitment := engine.ComputeCommitment(engine.MoveRock, []byte("gate-salt"))
	_, err = eng.Create(ctx, "alice", commitment, "POOL-HBD-DLX", "HBD", 100)
	require.NoError(t, err)
	_, err = eng.Join(ctx, "bob", commitment, engine.MoveScissors, 100)
	require.NoError(t, err)

	t.Run("should reject an attestation for the wrong result", func(t *testing.T) {
		sig, err := p.Attest(engine.MoveRock, engine.MoveScissors, engine.OutcomeSecond)
		require.NoError(t, err)
		_, err = eng.Reveal(ctx, "alice", commitment, engine.MoveRock, []byte("gate-salt"), sig)
		assert.ErrorIs(t, err, engine.ErrInvalidProof)
	})

	sig, err := p.Attest(engine.MoveRock, engine.MoveScissors, engine.OutcomeFirst)
	require.NoError(t, err)
	revealed, err := eng.Reveal(ctx, "alice", commitment, engine.MoveRock, []byte("gate-salt"), sig)
	require.NoError(t, err)
	assert.Equal(t, engine.PhaseResolved, revealed.Phase)
}
