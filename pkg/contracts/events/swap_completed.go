package events

// Payload opcional de duelo carregado junto do swap. Se presente, o adapter
// de skim cria um jogo novo (commitment inédito) ou entra num jogo existente.
type DuelPayload struct {
	Commitment string `json:"commitment"`
	Move       string `json:"move,omitempty"` // obrigatório apenas no join
}

type SwapCompleted struct {
	SwapID       string       `json:"swap_id"`
	Trader       string       `json:"trader"`
	Pool         string       `json:"pool"`
	Currency     string       `json:"currency"`
	OutputAmount int64        `json:"output_amount"` // menor unidade da moeda
	Payload      *DuelPayload `json:"payload,omitempty"`
	Source       string       `json:"source"` // "dex-simulator"
	TsUnixMs     int64        `json:"ts_unix_ms"`
}
