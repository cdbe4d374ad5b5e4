package events

// Tipos de instrução de liquidação.
const (
	SettlementPayout  = "PAYOUT"  // pool inteiro para o vencedor
	SettlementSplit   = "SPLIT"   // empate: cada jogador recebe a própria contribuição
	SettlementForfeit = "FORFEIT" // pool inteiro para o segundo jogador
	SettlementRefund  = "REFUND"  // devolve o stake do primeiro jogador
)

type Payout struct {
	Address string `json:"address"`
	Amount  int64  `json:"amount"`
}

// Instrução opaca computada pelo game-service na transição terminal e
// executada pelo vault exatamente uma vez. O callback devolve a instrução
// intacta para o engine reconciliar.
type SettlementInstruction struct {
	ID       string   `json:"id"` // uuid
	GameID   string   `json:"gameId"`
	Kind     string   `json:"kind"`
	Pool     string   `json:"pool"`
	Currency string   `json:"currency"`
	Payouts  []Payout `json:"payouts"`
	Total    int64    `json:"total"`
	IssuedAt int64    `json:"issuedAtUnixMs"`
}

type SettlementRequested struct {
	Instruction SettlementInstruction `json:"instruction"`
	TsUnixMs    int64                 `json:"ts_unix_ms"`
}

// Evento publicado pelo vault-service após mover os saldos.
type SettlementExecuted struct {
	Instruction SettlementInstruction `json:"instruction"`
	VaultRef    string                `json:"vaultRef"` // id do lançamento no vault
	TsUnixMs    int64                 `json:"ts_unix_ms"`
}
