package engine

import (
	"context"
	"fmt"

	"github.com/shopspring/decimal"
	"go.uber.org/zap"

	"github.com/radieske/rps-duel-platform-poc/pkg/contracts/events"
)

// SwapInput é a notificação de exchange concluída, já traduzida do evento
// do DEX. Payload presente transforma o skim em create ou join.
type SwapInput struct {
	SwapID       string
	Trader       string
	Pool         string
	Currency     string
	OutputAmount int64
	Payload      *events.DuelPayload
}

type SkimResult struct {
	Action  string // NONE | CREDIT | CREATE | JOIN
	Skimmed int64
	Game    *Game // preenchido em CREATE/JOIN
}

const (
	SkimActionNone   = "NONE"
	SkimActionCredit = "CREDIT"
	SkimActionCreate = "CREATE"
	SkimActionJoin   = "JOIN"
)

// SkimAdapter observa exchanges concluídas e desvia a fatia configurada
// para o escrow. Não tem invariantes próprias: toda a correção vem do
// ledger e do state machine; qualquer erro aborta a chamada inteira.
type SkimAdapter struct {
	eng  *Engine
	rate decimal.Decimal
}

func NewSkimAdapter(eng *Engine, rate string) (*SkimAdapter, error) {
	d, err := decimal.NewFromString(rate)
	if err != nil {
		return nil, fmt.Errorf("parse skim rate %q: %w", rate, err)
	}
	if d.IsNegative() || d.GreaterThanOrEqual(decimal.NewFromInt(1)) {
		return nil, fmt.Errorf("skim rate %q out of range [0,1)", rate)
	}
	return &SkimAdapter{eng: eng, rate: d}, nil
}

// Slice calcula a fatia do output desviada para o escrow (arredonda para
// baixo; nunca desvia mais do que a taxa).
func (a *SkimAdapter) Slice(output int64) int64 {
	if output <= 0 {
		return 0
	}
	return decimal.NewFromInt(output).Mul(a.rate).Floor().IntPart()
}

func (a *SkimAdapter) HandleSwap(ctx context.Context, in SwapInput) (SkimResult, error) {
	return a.eng.Skim(ctx, in, a.Slice(in.OutputAmount))
}

// Skim credita a fatia no bucket do pool da exchange, atribui ao trader e,
// quando o swap carrega um payload de duelo, cria o jogo (commitment
// inédito) ou entra num jogo existente de outro jogador.
func (e *Engine) Skim(ctx context.Context, in SwapInput, slice int64) (SkimResult, error) {
	e.mu.Lock()
	defer e.mu.Unlock()

	if in.Trader == "" {
		return SkimResult{}, ErrUnauthorized
	}
	if slice < 0 {
		return SkimResult{}, ErrInvalidStake
	}
	if slice == 0 && in.Payload == nil {
		return SkimResult{Action: SkimActionNone}, nil
	}

	if in.Payload == nil {
		if err := e.creditSkimLocked(ctx, in, slice); err != nil {
			return SkimResult{}, err
		}
		return SkimResult{Action: SkimActionCredit, Skimmed: slice}, nil
	}

	id, err := NormalizeCommitment(in.Payload.Commitment)
	if err != nil {
		return SkimResult{}, err
	}

	if !e.reg.usedCommitment(id) {
		g, err := e.createLocked(ctx, in.Trader, id, in.Pool, in.Currency, slice, "SKIM_CREATE")
		if err != nil {
			return SkimResult{}, err
		}
		return SkimResult{Action: SkimActionCreate, Skimmed: slice, Game: &g}, nil
	}

	g, ok := e.reg.get(id)
	if !ok {
		return SkimResult{}, ErrDuplicateCommitment
	}
	// o stake do join precisa cair no mesmo bucket do jogo
	if in.Pool != g.Pool || in.Currency != g.Currency {
		return SkimResult{}, ErrStakeMismatch
	}
	move, err := ParseMove(in.Payload.Move)
	if err != nil {
		return SkimResult{}, err
	}
	joined, err := e.joinLocked(ctx, g, in.Trader, move, slice, "SKIM_JOIN")
	if err != nil {
		return SkimResult{}, err
	}
	return SkimResult{Action: SkimActionJoin, Skimmed: slice, Game: &joined}, nil
}

func (e *Engine) creditSkimLocked(ctx context.Context, in SwapInput, slice int64) error {
	cs := Changeset{
		Op: "SKIM",
		Balances: []BalanceChange{{
			Pool: in.Pool, Currency: in.Currency,
			Balance: e.led.balance(in.Pool, in.Currency) + slice,
		}},
		Contributions: []ContributionChange{{
			Address: in.Trader, Pool: in.Pool, Currency: in.Currency,
			Amount: e.led.contribution(in.Trader, in.Pool, in.Currency) + slice,
		}},
	}
	if err := e.apply(ctx, cs); err != nil {
		return err
	}
	e.led.credit(in.Pool, in.Currency, slice)
	e.led.attribute(in.Trader, in.Pool, in.Currency, slice)

	e.emit(ctx, events.GameEvent{
		Type:     events.SkimCredited,
		Actor:    in.Trader,
		Pool:     in.Pool,
		Currency: in.Currency,
		Amount:   slice,
		Ts:       e.now(),
	})
	e.log.Debug("swap skim credited",
		zap.String("swap_id", in.SwapID), zap.String("trader", in.Trader), zap.Int64("slice", slice))
	return nil
}
