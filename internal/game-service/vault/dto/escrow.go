package dto

type EscrowDepositRequest struct {
	Address     string `json:"address"`
	Pool        string `json:"pool"`
	Currency    string `json:"currency"`
	Amount      int64  `json:"amount"`
	ExternalRef string `json:"external_ref"` // ex: gameId ou gameId:actor
}

type EscrowDepositResponse struct {
	EscrowAccount string `json:"escrow_account"`
	Status        string `json:"status"` // CONFIRMED
}

type EscrowReleaseRequest struct {
	ExternalRef string `json:"external_ref"`
}

type EscrowReleaseResponse struct {
	Status string `json:"status"` // RELEASED
}
