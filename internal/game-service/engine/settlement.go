package engine

import (
	"time"

	"github.com/google/uuid"

	"github.com/radieske/rps-duel-platform-poc/pkg/contracts/events"
)

// buildSettlement monta a instrução opaca que o vault executa. Os valores
// saem sempre das contribuições registradas no jogo, nunca de input do
// chamador.
func buildSettlement(g *Game, kind string, payouts []events.Payout, now time.Time) events.SettlementInstruction {
	var total int64
	for _, p := range payouts {
		total += p.Amount
	}
	return events.SettlementInstruction{
		ID:       uuid.NewString(),
		GameID:   g.ID,
		Kind:     kind,
		Pool:     g.Pool,
		Currency: g.Currency,
		Payouts:  payouts,
		Total:    total,
		IssuedAt: now.UnixMilli(),
	}
}

// settlementForResolve: pool inteiro para o vencedor, ou devolução das
// contribuições originais no empate.
func settlementForResolve(g *Game, outcome Outcome, now time.Time) events.SettlementInstruction {
	switch outcome {
	case OutcomeFirst:
		return buildSettlement(g, events.SettlementPayout,
			[]events.Payout{{Address: g.FirstPlayer, Amount: g.TotalPool()}}, now)
	case OutcomeSecond:
		return buildSettlement(g, events.SettlementPayout,
			[]events.Payout{{Address: g.SecondPlayer, Amount: g.TotalPool()}}, now)
	default:
		return buildSettlement(g, events.SettlementSplit, []events.Payout{
			{Address: g.FirstPlayer, Amount: g.FirstContribution},
			{Address: g.SecondPlayer, Amount: g.SecondContribution},
		}, now)
	}
}

func settlementForForfeit(g *Game, now time.Time) events.SettlementInstruction {
	return buildSettlement(g, events.SettlementForfeit,
		[]events.Payout{{Address: g.SecondPlayer, Amount: g.TotalPool()}}, now)
}

func settlementForRefund(g *Game, now time.Time) events.SettlementInstruction {
	return buildSettlement(g, events.SettlementRefund,
		[]events.Payout{{Address: g.FirstPlayer, Amount: g.FirstContribution}}, now)
}

// instructionsEqual reconcilia a instrução devolvida pelo vault com a
// intenção emitida. Qualquer divergência é rejeitada.
func instructionsEqual(a, b events.SettlementInstruction) bool {
	if a.ID != b.ID || a.GameID != b.GameID || a.Kind != b.Kind ||
		a.Pool != b.Pool || a.Currency != b.Currency || a.Total != b.Total ||
		len(a.Payouts) != len(b.Payouts) {
		return false
	}
	for i := range a.Payouts {
		if a.Payouts[i] != b.Payouts[i] {
			return false
		}
	}
	return true
}
