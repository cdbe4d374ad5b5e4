package engine

import (
	"context"
	"time"

	"github.com/radieske/rps-duel-platform-poc/pkg/contracts/events"
)

// BalanceChange carrega o valor FINAL do bucket após a transição (upsert).
type BalanceChange struct {
	Pool     string
	Currency string
	Balance  int64
}

// ContributionChange carrega o valor final da contribuição do endereço.
type ContributionChange struct {
	Address  string
	Pool     string
	Currency string
	Amount   int64
}

const (
	SettlementStatusRequested = "REQUESTED"
	SettlementStatusSettled   = "SETTLED"
)

type SettlementRecord struct {
	Instruction events.SettlementInstruction
	Status      string
	RequestedAt time.Time
	SettledAt   *time.Time
}

// Changeset descreve todas as mutações de uma transição. O store aplica
// tudo numa transação só; se falhar, o engine não toca a memória e a
// operação inteira aborta sem efeito parcial.
type Changeset struct {
	Op            string // CREATE, JOIN, REVEAL, FORFEIT, REFUND, SKIM, SETTLE
	Game          *Game  // cópia já com o estado pós-transição
	NewCommitment string // preenchido quando a transição registra commitment novo
	Balances      []BalanceChange
	Contributions []ContributionChange
	Settlement    *SettlementRecord
}

// Snapshot é o estado durável carregado no boot.
type Snapshot struct {
	Games           []Game
	UsedCommitments []string
	Balances        []BalanceChange
	Contributions   []ContributionChange
	Settlements     []SettlementRecord
}

// Store é a camada de durabilidade do engine. O engine é o único escritor;
// o store não precisa de lock próprio além da transação SQL.
type Store interface {
	Apply(ctx context.Context, cs Changeset) error
	Load(ctx context.Context) (Snapshot, error)
}
