package engine

import "strings"

// Move é uma das três jogadas. Os valores formam o ciclo de dominância:
// o valor i vence i+1 mod 3 (pedra vence tesoura, tesoura vence papel,
// papel vence pedra).
type Move uint8

const (
	MoveRock     Move = 0
	MoveScissors Move = 1
	MovePaper    Move = 2
)

func (m Move) Valid() bool {
	return m <= MovePaper
}

func (m Move) String() string {
	switch m {
	case MoveRock:
		return "ROCK"
	case MoveScissors:
		return "SCISSORS"
	case MovePaper:
		return "PAPER"
	default:
		return "INVALID"
	}
}

// ParseMove aceita o nome da jogada (case-insensitive).
func ParseMove(s string) (Move, error) {
	switch strings.ToUpper(strings.TrimSpace(s)) {
	case "ROCK":
		return MoveRock, nil
	case "SCISSORS":
		return MoveScissors, nil
	case "PAPER":
		return MovePaper, nil
	default:
		return 0, ErrInvalidMove
	}
}

// Outcome é o resultado do duelo do ponto de vista da ordem dos jogadores.
type Outcome uint8

const (
	OutcomeTie    Outcome = 0
	OutcomeFirst  Outcome = 1
	OutcomeSecond Outcome = 2
)

func (o Outcome) String() string {
	switch o {
	case OutcomeTie:
		return "TIE"
	case OutcomeFirst:
		return "FIRST"
	case OutcomeSecond:
		return "SECOND"
	default:
		return "INVALID"
	}
}

// Winner computa o vencedor entre a jogada do primeiro e do segundo jogador.
// Função pura e total; é a mesma relação que o proof gate atesta, então
// qualquer mudança aqui quebra a verificação de provas.
func Winner(first, second Move) Outcome {
	if first == second {
		return OutcomeTie
	}
	if (first+1)%3 == second {
		return OutcomeFirst
	}
	return OutcomeSecond
}
