package executor

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"go.uber.org/zap"

	"github.com/radieske/rps-duel-platform-poc/pkg/contracts/events"
)

// Repo é a fatia do repositório que o executor usa.
type Repo interface {
	ExecuteSettlement(ctx context.Context, instr events.SettlementInstruction) (vaultRef string, err error)
}

// Publisher publica o evento de execução que o settlement-worker entrega de
// volta ao game-service.
type Publisher interface {
	SettlementExecuted(ctx context.Context, e events.SettlementExecuted) error
}

// Executor consome settlement_requested e move os saldos no vault. A
// idempotência mora no repositório (vault_settlements): reprocessar a mesma
// instrução não move saldo de novo e republica o evento com o mesmo
// vault_ref, que o OnSettle do game-service absorve.
type Executor struct {
	log  *zap.Logger
	repo Repo
	pub  Publisher

	// callbacks de métricas; nil-safe
	OnExecuted func()
	OnError    func(stage string)
}

func New(log *zap.Logger, repo Repo, pub Publisher) *Executor {
	return &Executor{log: log, repo: repo, pub: pub}
}

// Handle processa uma mensagem crua do tópico settlement_requested.
func (e *Executor) Handle(ctx context.Context, value []byte) error {
	var ev events.SettlementRequested
	if err := json.Unmarshal(value, &ev); err != nil {
		e.fail("decode")
		return fmt.Errorf("decode settlement_requested: %w", err)
	}
	instr := ev.Instruction
	if instr.ID == "" || instr.GameID == "" {
		e.fail("decode")
		return fmt.Errorf("settlement_requested without instruction id")
	}

	vaultRef, err := e.repo.ExecuteSettlement(ctx, instr)
	if err != nil {
		e.fail("execute")
		return fmt.Errorf("execute settlement %s: %w", instr.ID, err)
	}

	out := events.SettlementExecuted{
		Instruction: instr,
		VaultRef:    vaultRef,
		TsUnixMs:    time.Now().UnixMilli(),
	}
	if err := e.pub.SettlementExecuted(ctx, out); err != nil {
		e.fail("publish")
		return fmt.Errorf("publish settlement_executed: %w", err)
	}

	if e.OnExecuted != nil {
		e.OnExecuted()
	}
	e.log.Info("settlement executed",
		zap.String("game_id", instr.GameID),
		zap.String("instruction_id", instr.ID),
		zap.String("kind", instr.Kind),
		zap.Int64("total", instr.Total),
		zap.String("vault_ref", vaultRef))
	return nil
}

func (e *Executor) fail(stage string) {
	if e.OnError != nil {
		e.OnError(stage)
	}
}
