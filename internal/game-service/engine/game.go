package engine

import "time"

type Phase string

const (
	PhaseCreated   Phase = "CREATED"
	PhaseJoined    Phase = "JOINED"
	PhaseResolved  Phase = "RESOLVED"
	PhaseForfeited Phase = "FORFEITED"
	PhaseRefunded  Phase = "REFUNDED"
)

// Terminal informa se a fase é final. Fases terminais são mutuamente
// exclusivas e definitivas; o jogo ainda aguarda o callback do vault
// para ser retirado do índice ativo.
func (p Phase) Terminal() bool {
	switch p {
	case PhaseResolved, PhaseForfeited, PhaseRefunded:
		return true
	}
	return false
}

// Game é o registro de um duelo. A chave é o identificador do commitment
// do primeiro jogador. Valores em menor unidade da moeda.
type Game struct {
	ID                 string
	Pool               string
	Currency           string
	FirstPlayer        string
	SecondPlayer       string // vazio até o join
	FirstContribution  int64
	SecondContribution int64
	SecondMove         *Move // postado em claro no join
	FirstMove          *Move // definido apenas no reveal
	Phase              Phase
	Outcome            *Outcome
	CreatedAt          time.Time
	JoinedAt           *time.Time
	RevealDeadline     *time.Time // join + RevealWindow
	SettlementID       string     // instrução pendente após fase terminal
	SettledAt          *time.Time // preenchido pelo callback do vault
}

// clone devolve uma cópia profunda para não vazar ponteiros internos.
func (g *Game) clone() Game {
	out := *g
	if g.SecondMove != nil {
		m := *g.SecondMove
		out.SecondMove = &m
	}
	if g.FirstMove != nil {
		m := *g.FirstMove
		out.FirstMove = &m
	}
	if g.Outcome != nil {
		o := *g.Outcome
		out.Outcome = &o
	}
	if g.JoinedAt != nil {
		t := *g.JoinedAt
		out.JoinedAt = &t
	}
	if g.RevealDeadline != nil {
		t := *g.RevealDeadline
		out.RevealDeadline = &t
	}
	if g.SettledAt != nil {
		t := *g.SettledAt
		out.SettledAt = &t
	}
	return out
}

// TotalPool soma as contribuições registradas no jogo.
func (g *Game) TotalPool() int64 {
	return g.FirstContribution + g.SecondContribution
}
