package dto

// DepositRequest credita uma conta (faucet de demonstração).
type DepositRequest struct {
	Address  string `json:"address"`
	Currency string `json:"currency"`
	Amount   int64  `json:"amount"`
}

// EscrowDepositRequest move o stake do jogador pra conta escrow:<pool>.
// O external_ref vem do game-service (gameId ou gameId:actor) e dá a
// idempotência do padrão reserva.
type EscrowDepositRequest struct {
	Address     string `json:"address"`
	Pool        string `json:"pool"`
	Currency    string `json:"currency"`
	Amount      int64  `json:"amount"`
	ExternalRef string `json:"external_ref"`
}

type EscrowReleaseRequest struct {
	ExternalRef string `json:"external_ref"`
}
