package engine

// registry guarda os jogos por id de commitment, o conjunto append-only de
// commitments já usados e o índice de jogos ativos. O índice permite
// enumeração e remoção O(1) (swap com o último elemento e truncamento).
type registry struct {
	games     map[string]*Game
	used      map[string]struct{}
	active    []string
	activeIdx map[string]int
}

func newRegistry() *registry {
	return &registry{
		games:     make(map[string]*Game),
		used:      make(map[string]struct{}),
		activeIdx: make(map[string]int),
	}
}

func (r *registry) usedCommitment(id string) bool {
	_, ok := r.used[id]
	return ok
}

func (r *registry) get(id string) (*Game, bool) {
	g, ok := r.games[id]
	return g, ok
}

// insert registra um jogo novo, marca o commitment como usado e o coloca
// no índice ativo. O chamador já validou a unicidade do commitment.
func (r *registry) insert(g *Game) {
	r.games[g.ID] = g
	r.used[g.ID] = struct{}{}
	r.addActive(g.ID)
}

func (r *registry) addActive(id string) {
	if _, ok := r.activeIdx[id]; ok {
		return
	}
	r.activeIdx[id] = len(r.active)
	r.active = append(r.active, id)
}

// removeActive tira o jogo do índice em O(1): move o último para a posição
// liberada e trunca o slice.
func (r *registry) removeActive(id string) {
	pos, ok := r.activeIdx[id]
	if !ok {
		return
	}
	last := len(r.active) - 1
	moved := r.active[last]
	r.active[pos] = moved
	r.activeIdx[moved] = pos
	r.active = r.active[:last]
	delete(r.activeIdx, id)
}

func (r *registry) activeIDs() []string {
	out := make([]string, len(r.active))
	copy(out, r.active)
	return out
}

func (r *registry) activeCount() int {
	return len(r.active)
}
