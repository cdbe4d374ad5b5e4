package topics

const (
	// Swaps (feed do DEX)
	SwapCompleted = "swap_completed"

	// Jogos
	GameEvents = "game_events"

	// Liquidação em duas fases (intenção -> execução no vault)
	SettlementRequested = "settlement_requested"
	SettlementExecuted  = "settlement_executed"

	// DLQs
	SwapCompletedDLQ      = "swap_completed_dlq"
	SettlementExecutedDLQ = "settlement_executed_dlq"
)
