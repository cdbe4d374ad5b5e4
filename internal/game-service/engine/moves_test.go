package engine

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestWinnerRule(t *testing.T) {
	t.Run("should tie iff moves are equal", func(t *testing.T) {
		for _, m := range []Move{MoveRock, MoveScissors, MovePaper} {
			assert.Equal(t, OutcomeTie, Winner(m, m), "%s vs %s", m, m)
		}
	})

	t.Run("should follow the dominance cycle", func(t *testing.T) {
		cases := []struct {
			first, second Move
			want          Outcome
		}{
			{MoveRock, MoveScissors, OutcomeFirst},
			{MoveScissors, MovePaper, OutcomeFirst},
			{MovePaper, MoveRock, OutcomeFirst},
			{MoveScissors, MoveRock, OutcomeSecond},
			{MovePaper, MoveScissors, OutcomeSecond},
			{MoveRock, MovePaper, OutcomeSecond},
		}
		for _, c := range cases {
			assert.Equal(t, c.want, Winner(c.first, c.second), "%s vs %s", c.first, c.second)
		}
	})

	t.Run("should be a full 3-cycle", func(t *testing.T) {
		moves := []Move{MoveRock, MoveScissors, MovePaper}
		for _, a := range moves {
			beats := 0
			beatenBy := 0
			for _, b := range moves {
				switch Winner(a, b) {
				case OutcomeFirst:
					beats++
				case OutcomeSecond:
					beatenBy++
				}
			}
			// cada jogada vence exatamente uma e perde exatamente de uma
			assert.Equal(t, 1, beats, "%s", a)
			assert.Equal(t, 1, beatenBy, "%s", a)
		}
	})
}

func TestParseMove(t *testing.T) {
	m, err := ParseMove(" rock ")
	require.NoError(t, err)
	assert.Equal(t, MoveRock, m)

	m, err = ParseMove("SCISSORS")
	require.NoError(t, err)
	assert.Equal(t, MoveScissors, m)

	m, err = ParseMove("Paper")
	require.NoError(t, err)
	assert.Equal(t, MovePaper, m)

	_, err = ParseMove("lizard")
	assert.ErrorIs(t, err, ErrInvalidMove)

	assert.False(t, Move(3).Valid())
}

func TestCommitment(t *testing.T) {
	salt := []byte("some-random-salt")
	id := ComputeCommitment(MoveRock, salt)
	require.Len(t, id, 64)

	// determinístico e sensível a jogada e salt
	assert.Equal(t, id, ComputeCommitment(MoveRock, salt))
	assert.NotEqual(t, id, ComputeCommitment(MovePaper, salt))
	assert.NotEqual(t, id, ComputeCommitment(MoveRock, []byte("other-salt")))

	norm, err := NormalizeCommitment("  " + string(toUpperASCII(id)) + " ")
	require.NoError(t, err)
	assert.Equal(t, id, norm)

	_, err = NormalizeCommitment("abc")
	assert.ErrorIs(t, err, ErrInvalidCommitment)

	_, err = NormalizeCommitment("zz" + id[2:])
	assert.ErrorIs(t, err, ErrInvalidCommitment)
}

func toUpperASCII(s string) []byte {
	out := []byte(s)
	for i, c := range out {
		if c >= 'a' && c <= 'z' {
			out[i] = c - 32
		}
	}
	return out
}
