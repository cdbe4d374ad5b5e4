package engine

import (
	"context"
	"fmt"
	"sync"
	"time"

	"go.uber.org/zap"

	"github.com/radieske/rps-duel-platform-poc/pkg/contracts/events"
)

// Notifier publica o evento de cada transição bem-sucedida (tópico
// game_events). Falha de publicação não desfaz a transição.
type Notifier interface {
	GameEvent(ctx context.Context, ev events.GameEvent) error
}

// SettlementRequester entrega a intenção de liquidação ao vault
// (fire-and-forget; o boot republica pendências).
type SettlementRequester interface {
	RequestSettlement(ctx context.Context, instr events.SettlementInstruction) error
}

type Deps struct {
	Store       Store               // opcional; nil = só memória (testes)
	Verifier    Verifier            // exigido quando ProofPolicy != disabled
	Notifier    Notifier            // opcional
	Settlements SettlementRequester // opcional
	Log         *zap.Logger
	Now         func() time.Time
}

// Engine é o state machine de duelos. Um único mutex serializa todas as
// transações: uma termina por completo antes da próxima começar, então
// nenhuma transição sobre o mesmo jogo ou bucket se entrelaça e toda
// invariante é revalidada dentro da própria chamada.
type Engine struct {
	mu  sync.Mutex
	cfg Config

	reg     *registry
	led     *ledger
	pending map[string]events.SettlementInstruction // intenções aguardando o vault

	store       Store
	verifier    Verifier
	notifier    Notifier
	settlements SettlementRequester

	log *zap.Logger
	now func() time.Time
}

func New(cfg Config, deps Deps) (*Engine, error) {
	if err := cfg.validate(); err != nil {
		return nil, fmt.Errorf("engine config: %w", err)
	}
	if cfg.ProofPolicy != ProofDisabled && deps.Verifier == nil {
		return nil, fmt.Errorf("engine config: proof policy %q requires a verifier", cfg.ProofPolicy)
	}

	log := deps.Log
	if log == nil {
		log = zap.NewNop()
	}
	now := deps.Now
	if now == nil {
		now = time.Now
	}

	if cfg.ProofPolicy == ProofDisabled {
		log.Warn("proof gate disabled: only the hash commitment protects against a cheating first player")
	}

	return &Engine{
		cfg:         cfg,
		reg:         newRegistry(),
		led:         newLedger(),
		pending:     make(map[string]events.SettlementInstruction),
		store:       deps.Store,
		verifier:    deps.Verifier,
		notifier:    deps.Notifier,
		settlements: deps.Settlements,
		log:         log,
		now:         now,
	}, nil
}

// Rehydrate recarrega o estado durável no boot e republica as intenções de
// liquidação que o vault ainda não executou.
func (e *Engine) Rehydrate(ctx context.Context) error {
	if e.store == nil {
		return nil
	}
	snap, err := e.store.Load(ctx)
	if err != nil {
		return fmt.Errorf("load engine state: %w", err)
	}

	e.mu.Lock()
	for i := range snap.Games {
		g := snap.Games[i]
		e.reg.games[g.ID] = &g
		e.reg.used[g.ID] = struct{}{}
		if g.SettledAt == nil {
			e.reg.addActive(g.ID)
		}
	}
	for _, c := range snap.UsedCommitments {
		e.reg.used[c] = struct{}{}
	}
	for _, b := range snap.Balances {
		if b.Balance != 0 {
			e.led.balances[bucketKey{b.Pool, b.Currency}] = b.Balance
		}
	}
	for _, c := range snap.Contributions {
		if c.Amount != 0 {
			e.led.contribs[contribKey{c.Address, c.Pool, c.Currency}] = c.Amount
		}
	}
	var republish []events.SettlementInstruction
	for _, s := range snap.Settlements {
		if s.Status == SettlementStatusRequested {
			e.pending[s.Instruction.ID] = s.Instruction
			republish = append(republish, s.Instruction)
		}
	}
	e.mu.Unlock()

	e.log.Info("engine state rehydrated",
		zap.Int("games", len(snap.Games)),
		zap.Int("pending_settlements", len(republish)))

	for _, instr := range republish {
		e.requestSettlement(ctx, instr)
	}
	return nil
}

// Create registra um commitment inédito e abre o jogo com o stake do
// chamador já escrow-ado no vault pela camada HTTP.
func (e *Engine) Create(ctx context.Context, actor, commitment, pool, currency string, amount int64) (Game, error) {
	e.mu.Lock()
	defer e.mu.Unlock()

	id, err := NormalizeCommitment(commitment)
	if err != nil {
		return Game{}, err
	}
	return e.createLocked(ctx, actor, id, pool, currency, amount, "CREATE")
}

func (e *Engine) createLocked(ctx context.Context, actor, id, pool, currency string, amount int64, op string) (Game, error) {
	if actor == "" {
		return Game{}, ErrUnauthorized
	}
	if amount <= 0 {
		return Game{}, ErrInvalidStake
	}
	if currency != e.cfg.StakeCurrency {
		return Game{}, ErrUnsupportedCurrency
	}
	if e.reg.usedCommitment(id) {
		return Game{}, ErrDuplicateCommitment
	}

	now := e.now()
	g := &Game{
		ID:                id,
		Pool:              pool,
		Currency:          currency,
		FirstPlayer:       actor,
		FirstContribution: amount,
		Phase:             PhaseCreated,
		CreatedAt:         now,
	}
	clone := g.clone()

	cs := Changeset{
		Op:            op,
		Game:          &clone,
		NewCommitment: id,
		Balances:      []BalanceChange{{Pool: pool, Currency: currency, Balance: e.led.balance(pool, currency) + amount}},
		Contributions: []ContributionChange{{Address: actor, Pool: pool, Currency: currency, Amount: e.led.contribution(actor, pool, currency) + amount}},
	}
	if err := e.apply(ctx, cs); err != nil {
		return Game{}, err
	}

	e.led.credit(pool, currency, amount)
	e.led.attribute(actor, pool, currency, amount)
	e.reg.insert(g)

	ev := e.newGameEvent(events.GameCreated, g, actor, amount)
	e.emit(ctx, ev)
	e.log.Info("game created",
		zap.String("game_id", id), zap.String("pool", pool), zap.Int64("stake", amount))
	return g.clone(), nil
}

// Join coloca o segundo jogador no duelo com jogada postada em claro e
// stake idêntico ao do primeiro. Abre a janela de reveal.
func (e *Engine) Join(ctx context.Context, actor, gameID string, move Move, amount int64) (Game, error) {
	e.mu.Lock()
	defer e.mu.Unlock()

	g, ok := e.reg.get(normalizeID(gameID))
	if !ok {
		return Game{}, ErrGameNotFound
	}
	return e.joinLocked(ctx, g, actor, move, amount, "JOIN")
}

func (e *Engine) joinLocked(ctx context.Context, g *Game, actor string, move Move, amount int64, op string) (Game, error) {
	// fase primeiro: tentativas duplicadas colapsam em AlreadyJoined
	if g.Phase != PhaseCreated {
		return Game{}, ErrAlreadyJoined
	}
	if !move.Valid() {
		return Game{}, ErrInvalidMove
	}
	if actor == "" {
		return Game{}, ErrUnauthorized
	}
	if actor == g.FirstPlayer {
		return Game{}, ErrSelfJoin
	}
	if amount != g.FirstContribution {
		return Game{}, ErrStakeMismatch
	}

	now := e.now()
	deadline := now.Add(e.cfg.RevealWindow)

	clone := g.clone()
	clone.SecondPlayer = actor
	m := move
	clone.SecondMove = &m
	clone.SecondContribution = amount
	clone.Phase = PhaseJoined
	clone.JoinedAt = &now
	clone.RevealDeadline = &deadline

	cs := Changeset{
		Op:            op,
		Game:          &clone,
		Balances:      []BalanceChange{{Pool: g.Pool, Currency: g.Currency, Balance: e.led.balance(g.Pool, g.Currency) + amount}},
		Contributions: []ContributionChange{{Address: actor, Pool: g.Pool, Currency: g.Currency, Amount: e.led.contribution(actor, g.Pool, g.Currency) + amount}},
	}
	if err := e.apply(ctx, cs); err != nil {
		return Game{}, err
	}

	e.led.credit(g.Pool, g.Currency, amount)
	e.led.attribute(actor, g.Pool, g.Currency, amount)
	*g = clone

	ev := e.newGameEvent(events.GameJoined, g, actor, amount)
	ev.Move = move.String()
	e.emit(ctx, ev)
	e.log.Info("game joined",
		zap.String("game_id", g.ID), zap.String("second_player", actor))
	return g.clone(), nil
}

// Reveal é a transição do primeiro jogador: reabre o commitment, recomputa
// o vencedor e emite a intenção de liquidação. O hash precisa bater
// exatamente; prova é avaliada conforme a política e reprova sem mutação
// (o jogo segue revelável até o deadline e confiscável depois).
func (e *Engine) Reveal(ctx context.Context, actor, gameID string, move Move, salt []byte, proof []byte) (Game, error) {
	e.mu.Lock()
	defer e.mu.Unlock()

	g, ok := e.reg.get(normalizeID(gameID))
	if !ok {
		return Game{}, ErrGameNotFound
	}
	if g.Phase != PhaseJoined {
		if g.Phase == PhaseCreated {
			return Game{}, ErrTooEarly
		}
		return Game{}, ErrAlreadyResolved
	}
	if actor != g.FirstPlayer {
		return Game{}, ErrUnauthorized
	}
	if !move.Valid() {
		return Game{}, ErrInvalidMove
	}
	now := e.now()
	if !now.Before(*g.RevealDeadline) {
		return Game{}, ErrDeadlinePassed
	}
	if ComputeCommitment(move, salt) != g.ID {
		return Game{}, ErrInvalidReveal
	}

	outcome := Winner(move, *g.SecondMove)

	switch e.cfg.ProofPolicy {
	case ProofMandatory:
		if len(proof) == 0 {
			return Game{}, ErrInvalidProof
		}
		if err := e.verifier.Verify(proof, move, *g.SecondMove, outcome); err != nil {
			return Game{}, fmt.Errorf("%w: %v", ErrInvalidProof, err)
		}
	case ProofOptional:
		if len(proof) > 0 {
			if err := e.verifier.Verify(proof, move, *g.SecondMove, outcome); err != nil {
				return Game{}, fmt.Errorf("%w: %v", ErrInvalidProof, err)
			}
		}
	}

	clone := g.clone()
	m := move
	clone.FirstMove = &m
	o := outcome
	clone.Outcome = &o
	clone.Phase = PhaseResolved

	instr := settlementForResolve(&clone, outcome, now)
	clone.SettlementID = instr.ID

	rec := &SettlementRecord{Instruction: instr, Status: SettlementStatusRequested, RequestedAt: now}
	cs := Changeset{Op: "REVEAL", Game: &clone, Settlement: rec}
	if err := e.apply(ctx, cs); err != nil {
		return Game{}, err
	}

	*g = clone
	e.pending[instr.ID] = instr

	ev := e.newGameEvent(events.GameResolved, g, actor, g.TotalPool())
	ev.Move = move.String()
	ev.Outcome = outcome.String()
	e.emit(ctx, ev)
	e.requestSettlement(ctx, instr)
	e.log.Info("game resolved",
		zap.String("game_id", g.ID), zap.String("outcome", outcome.String()))
	return g.clone(), nil
}

// Forfeit pode ser chamado por qualquer um depois do deadline: o primeiro
// jogador que não revelou perde por omissão e o pool vai para o segundo.
func (e *Engine) Forfeit(ctx context.Context, actor, gameID string) (Game, error) {
	e.mu.Lock()
	defer e.mu.Unlock()

	g, ok := e.reg.get(normalizeID(gameID))
	if !ok {
		return Game{}, ErrGameNotFound
	}
	if g.Phase != PhaseJoined {
		if g.Phase == PhaseCreated {
			return Game{}, ErrTooEarly
		}
		return Game{}, ErrAlreadyResolved
	}
	now := e.now()
	if now.Before(*g.RevealDeadline) {
		return Game{}, ErrTooEarly
	}

	clone := g.clone()
	clone.Phase = PhaseForfeited

	instr := settlementForForfeit(&clone, now)
	clone.SettlementID = instr.ID

	rec := &SettlementRecord{Instruction: instr, Status: SettlementStatusRequested, RequestedAt: now}
	cs := Changeset{Op: "FORFEIT", Game: &clone, Settlement: rec}
	if err := e.apply(ctx, cs); err != nil {
		return Game{}, err
	}

	*g = clone
	e.pending[instr.ID] = instr

	ev := e.newGameEvent(events.GameForfeited, g, actor, g.TotalPool())
	e.emit(ctx, ev)
	e.requestSettlement(ctx, instr)
	e.log.Info("game forfeited", zap.String("game_id", g.ID))
	return g.clone(), nil
}

// RefundFirst devolve o stake quando ninguém entrou no jogo dentro da
// carência. Só o primeiro jogador pode pedir.
func (e *Engine) RefundFirst(ctx context.Context, actor, gameID string) (Game, error) {
	e.mu.Lock()
	defer e.mu.Unlock()

	g, ok := e.reg.get(normalizeID(gameID))
	if !ok {
		return Game{}, ErrGameNotFound
	}
	if g.Phase != PhaseCreated {
		if g.Phase == PhaseJoined {
			return Game{}, ErrSecondPlayerPresent
		}
		return Game{}, ErrAlreadyResolved
	}
	if actor != g.FirstPlayer {
		return Game{}, ErrUnauthorized
	}
	now := e.now()
	if now.Before(g.CreatedAt.Add(e.cfg.JoinGraceWindow)) {
		return Game{}, ErrTooEarly
	}

	clone := g.clone()
	clone.Phase = PhaseRefunded

	instr := settlementForRefund(&clone, now)
	clone.SettlementID = instr.ID

	rec := &SettlementRecord{Instruction: instr, Status: SettlementStatusRequested, RequestedAt: now}
	cs := Changeset{Op: "REFUND", Game: &clone, Settlement: rec}
	if err := e.apply(ctx, cs); err != nil {
		return Game{}, err
	}

	*g = clone
	e.pending[instr.ID] = instr

	ev := e.newGameEvent(events.GameRefunded, g, actor, g.FirstContribution)
	e.emit(ctx, ev)
	e.requestSettlement(ctx, instr)
	e.log.Info("game refunded", zap.String("game_id", g.ID))
	return g.clone(), nil
}

// OnSettle é o callback do vault. Idempotente: a instrução precisa bater
// com uma intenção pendente e o jogo precisa estar na fase terminal
// correspondente; replays encontram o jogo já retirado e recebem
// AlreadyResolved. Débitos do ledger e retirada do índice acontecem na
// mesma transação, antes de qualquer resposta externa.
func (e *Engine) OnSettle(ctx context.Context, instr events.SettlementInstruction) (Game, error) {
	e.mu.Lock()
	defer e.mu.Unlock()

	pend, ok := e.pending[instr.ID]
	if !ok {
		return Game{}, ErrAlreadyResolved
	}
	if !instructionsEqual(pend, instr) {
		return Game{}, ErrUnauthorized
	}
	g, ok := e.reg.get(instr.GameID)
	if !ok {
		return Game{}, ErrAlreadyResolved
	}
	if g.SettledAt != nil || !g.Phase.Terminal() || g.SettlementID != instr.ID {
		return Game{}, ErrAlreadyResolved
	}

	parts := []contribPart{{address: g.FirstPlayer, amount: g.FirstContribution}}
	if g.SecondPlayer != "" {
		parts = append(parts, contribPart{address: g.SecondPlayer, amount: g.SecondContribution})
	}
	if err := e.led.canSettle(g.Pool, g.Currency, instr.Total, parts); err != nil {
		return Game{}, err
	}

	now := e.now()
	clone := g.clone()
	clone.SettledAt = &now

	balances := []BalanceChange{{
		Pool: g.Pool, Currency: g.Currency,
		Balance: e.led.balance(g.Pool, g.Currency) - instr.Total,
	}}
	contribs := make([]ContributionChange, 0, len(parts))
	for _, p := range parts {
		contribs = append(contribs, ContributionChange{
			Address: p.address, Pool: g.Pool, Currency: g.Currency,
			Amount: e.led.contribution(p.address, g.Pool, g.Currency) - p.amount,
		})
	}
	rec := &SettlementRecord{
		Instruction: instr,
		Status:      SettlementStatusSettled,
		RequestedAt: time.UnixMilli(instr.IssuedAt),
		SettledAt:   &now,
	}
	cs := Changeset{Op: "SETTLE", Game: &clone, Balances: balances, Contributions: contribs, Settlement: rec}
	if err := e.apply(ctx, cs); err != nil {
		return Game{}, err
	}

	// efeitos: ledger primeiro, depois o jogo sai do índice ativo
	if err := e.led.debit(g.Pool, g.Currency, instr.Total); err != nil {
		return Game{}, err // inalcançável após canSettle; mantido por segurança
	}
	for _, p := range parts {
		_ = e.led.unattribute(p.address, g.Pool, g.Currency, p.amount)
	}
	*g = clone
	delete(e.pending, instr.ID)
	e.reg.removeActive(g.ID)

	ev := e.newGameEvent(events.GameSettled, g, "", instr.Total)
	ev.Outcome = outcomeString(g.Outcome)
	e.emit(ctx, ev)
	e.log.Info("game settled",
		zap.String("game_id", g.ID), zap.String("settlement_id", instr.ID),
		zap.Int64("total", instr.Total))
	return g.clone(), nil
}

// --- consultas (read-only, devolvem cópias) ---

func (e *Engine) GetGame(id string) (Game, error) {
	e.mu.Lock()
	defer e.mu.Unlock()
	g, ok := e.reg.get(normalizeID(id))
	if !ok {
		return Game{}, ErrGameNotFound
	}
	return g.clone(), nil
}

func (e *Engine) Balance(pool, currency string) int64 {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.led.balance(pool, currency)
}

func (e *Engine) Contribution(address, pool, currency string) int64 {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.led.contribution(address, pool, currency)
}

// ActiveGames enumera os jogos ainda não liquidados, na ordem do índice.
func (e *Engine) ActiveGames() []Game {
	e.mu.Lock()
	defer e.mu.Unlock()
	ids := e.reg.activeIDs()
	out := make([]Game, 0, len(ids))
	for _, id := range ids {
		if g, ok := e.reg.get(id); ok {
			out = append(out, g.clone())
		}
	}
	return out
}

// CanRefund informa se o refund do primeiro jogador já está liberado e,
// quando ainda não, quanto tempo falta.
func (e *Engine) CanRefund(id string) (bool, time.Duration, error) {
	e.mu.Lock()
	defer e.mu.Unlock()
	g, ok := e.reg.get(normalizeID(id))
	if !ok {
		return false, 0, ErrGameNotFound
	}
	if g.Phase != PhaseCreated {
		return false, 0, nil
	}
	eligibleAt := g.CreatedAt.Add(e.cfg.JoinGraceWindow)
	now := e.now()
	if now.Before(eligibleAt) {
		return false, eligibleAt.Sub(now), nil
	}
	return true, 0, nil
}

// --- internos ---

func (e *Engine) apply(ctx context.Context, cs Changeset) error {
	if e.store == nil {
		return nil
	}
	if err := e.store.Apply(ctx, cs); err != nil {
		return fmt.Errorf("persist %s: %w", cs.Op, err)
	}
	return nil
}

// emit publica dentro da seção crítica para preservar a ordem dos eventos.
func (e *Engine) emit(ctx context.Context, ev events.GameEvent) {
	if e.notifier == nil {
		return
	}
	if err := e.notifier.GameEvent(ctx, ev); err != nil {
		e.log.Warn("failed to publish game event",
			zap.String("type", ev.Type), zap.String("game_id", ev.GameID), zap.Error(err))
	}
}

func (e *Engine) requestSettlement(ctx context.Context, instr events.SettlementInstruction) {
	if e.settlements == nil {
		return
	}
	if err := e.settlements.RequestSettlement(ctx, instr); err != nil {
		// a intenção já está durável como REQUESTED; o boot republica
		e.log.Error("failed to request settlement",
			zap.String("settlement_id", instr.ID), zap.Error(err))
	}
}

func (e *Engine) newGameEvent(typ string, g *Game, actor string, amount int64) events.GameEvent {
	ev := events.GameEvent{
		Type:         typ,
		GameID:       g.ID,
		Actor:        actor,
		Pool:         g.Pool,
		Currency:     g.Currency,
		Amount:       amount,
		Phase:        string(g.Phase),
		SettlementID: g.SettlementID,
		Ts:           e.now(),
	}
	if g.RevealDeadline != nil {
		ev.RevealDeadline = g.RevealDeadline.UnixMilli()
	}
	return ev
}

func normalizeID(id string) string {
	n, err := NormalizeCommitment(id)
	if err != nil {
		return id // lookup falha com GameNotFound adiante
	}
	return n
}

func outcomeString(o *Outcome) string {
	if o == nil {
		return ""
	}
	return o.String()
}
