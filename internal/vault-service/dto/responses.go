package dto

type AccountResponse struct {
	Address  string `json:"address"`
	Currency string `json:"currency"`
	Balance  int64  `json:"balance"`
}

type EscrowDepositResponse struct {
	EscrowAccount string `json:"escrow_account"`
	Status        string `json:"status"` // CONFIRMED
}

type EscrowReleaseResponse struct {
	Status string `json:"status"` // RELEASED
}

type EscrowBalanceResponse struct {
	Pool     string `json:"pool"`
	Currency string `json:"currency"`
	Balance  int64  `json:"balance"`
}
