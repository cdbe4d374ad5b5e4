package engine

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func regGame(id string) *Game {
	return &Game{ID: id, Phase: PhaseCreated}
}

func TestRegistryActiveIndex(t *testing.T) {
	r := newRegistry()
	for _, id := range []string{"a", "b", "c", "d"} {
		r.insert(regGame(id))
	}
	require.Equal(t, []string{"a", "b", "c", "d"}, r.activeIDs())
	require.Equal(t, 4, r.activeCount())

	// remoção do meio: o último assume a posição liberada
	r.removeActive("b")
	assert.Equal(t, []string{"a", "d", "c"}, r.activeIDs())

	// remoção do último elemento
	r.removeActive("c")
	assert.Equal(t, []string{"a", "d"}, r.activeIDs())

	// remoção repetida é inócua
	r.removeActive("b")
	assert.Equal(t, []string{"a", "d"}, r.activeIDs())

	r.removeActive("a")
	r.removeActive("d")
	assert.Empty(t, r.activeIDs())
	assert.Zero(t, r.activeCount())

	// o jogo e o commitment sobrevivem à saída do índice
	_, ok := r.get("b")
	assert.True(t, ok)
	assert.True(t, r.usedCommitment("b"))
}

func TestRegistryActiveIDsIsACopy(t *testing.T) {
	r := newRegistry()
	r.insert(regGame("a"))
	r.insert(regGame("b"))

	ids := r.activeIDs()
	ids[0] = "mutated"
	assert.Equal(t, []string{"a", "b"}, r.activeIDs())
}

func TestRegistryReAddAfterRemoval(t *testing.T) {
	// rehydrate de um jogo terminal ainda não liquidado passa por aqui
	r := newRegistry()
	r.insert(regGame("a"))
	r.removeActive("a")
	r.addActive("a")
	assert.Equal(t, []string{"a"}, r.activeIDs())

	// addActive repetido não duplica
	r.addActive("a")
	assert.Equal(t, []string{"a"}, r.activeIDs())
}
