package dto

type CreateGameRequest struct {
	CommitmentID string `json:"commitmentId"` // sha256(move||salt) em hex, vira o gameId
	Pool         string `json:"pool"`
	Currency     string `json:"currency"`
	Stake        int64  `json:"stake"` // unidade mínima da moeda
}

type JoinGameRequest struct {
	GameID string `json:"gameId"`
	Move   string `json:"move"` // "rock" | "scissors" | "paper", postada em claro
	Stake  int64  `json:"stake"`
}

type RevealRequest struct {
	GameID string `json:"gameId"`
	Move   string `json:"move"`
	Salt   string `json:"salt"`            // hex
	Proof  string `json:"proof,omitempty"` // hex, conforme a política de prova
}

type ForfeitRequest struct {
	GameID string `json:"gameId"`
}

type RefundRequest struct {
	GameID string `json:"gameId"`
}
