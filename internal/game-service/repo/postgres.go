package repo

import (
	"context"
	"database/sql"
	"encoding/json"
	"fmt"

	"github.com/radieske/rps-duel-platform-poc/internal/game-service/engine"
	"github.com/radieske/rps-duel-platform-poc/pkg/contracts/events"
)

// Postgres é a camada de durabilidade do engine (write-through). O engine é
// o único escritor, então não há contenção entre transações daqui.
type Postgres struct{ db *sql.DB }

func NewPostgres(db *sql.DB) *Postgres { return &Postgres{db: db} }

// EnsureSchema cria as tabelas na subida (idempotente). Mantém o boot
// auto-contido em dev; em prod a migração roda fora do serviço.
func (p *Postgres) EnsureSchema(ctx context.Context) error {
	stmts := []string{
		`CREATE TABLE IF NOT EXISTS games (
			id TEXT PRIMARY KEY,
			pool TEXT NOT NULL,
			currency TEXT NOT NULL,
			first_player TEXT NOT NULL,
			second_player TEXT,
			first_contribution BIGINT NOT NULL,
			second_contribution BIGINT NOT NULL DEFAULT 0,
			first_move SMALLINT,
			second_move SMALLINT,
			phase TEXT NOT NULL,
			outcome SMALLINT,
			settlement_id TEXT,
			created_at TIMESTAMPTZ NOT NULL,
			joined_at TIMESTAMPTZ,
			reveal_deadline TIMESTAMPTZ,
			settled_at TIMESTAMPTZ
		)`,
		`CREATE TABLE IF NOT EXISTS used_commitments (
			id TEXT PRIMARY KEY
		)`,
		`CREATE TABLE IF NOT EXISTS ledger_balances (
			pool TEXT NOT NULL,
			currency TEXT NOT NULL,
			balance BIGINT NOT NULL,
			PRIMARY KEY (pool, currency)
		)`,
		`CREATE TABLE IF NOT EXISTS ledger_contributions (
			address TEXT NOT NULL,
			pool TEXT NOT NULL,
			currency TEXT NOT NULL,
			amount BIGINT NOT NULL,
			PRIMARY KEY (address, pool, currency)
		)`,
		`CREATE TABLE IF NOT EXISTS game_settlements (
			id TEXT PRIMARY KEY,
			game_id TEXT NOT NULL,
			instruction JSONB NOT NULL,
			status TEXT NOT NULL,
			requested_at TIMESTAMPTZ NOT NULL,
			settled_at TIMESTAMPTZ
		)`,
	}
	for _, s := range stmts {
		if _, err := p.db.ExecContext(ctx, s); err != nil {
			return fmt.Errorf("ensure schema: %w", err)
		}
	}
	return nil
}

// Apply grava todas as mutações de uma transição numa única transação SQL.
// Os valores de saldo/contribuição chegam absolutos (upsert), então replays
// de um mesmo changeset são inofensivos.
func (p *Postgres) Apply(ctx context.Context, cs engine.Changeset) error {
	tx, err := p.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("begin %s: %w", cs.Op, err)
	}
	defer tx.Rollback()

	if cs.NewCommitment != "" {
		if _, err = tx.ExecContext(ctx,
			`INSERT INTO used_commitments (id) VALUES ($1) ON CONFLICT (id) DO NOTHING`,
			cs.NewCommitment); err != nil {
			return fmt.Errorf("insert commitment: %w", err)
		}
	}

	if cs.Game != nil {
		g := cs.Game
		if _, err = tx.ExecContext(ctx, `
			INSERT INTO games (id, pool, currency, first_player, second_player,
				first_contribution, second_contribution, first_move, second_move,
				phase, outcome, settlement_id, created_at, joined_at, reveal_deadline, settled_at)
			VALUES ($1,$2,$3,$4,$5,$6,$7,$8,$9,$10,$11,$12,$13,$14,$15,$16)
			ON CONFLICT (id) DO UPDATE SET
				second_player = EXCLUDED.second_player,
				second_contribution = EXCLUDED.second_contribution,
				first_move = EXCLUDED.first_move,
				second_move = EXCLUDED.second_move,
				phase = EXCLUDED.phase,
				outcome = EXCLUDED.outcome,
				settlement_id = EXCLUDED.settlement_id,
				joined_at = EXCLUDED.joined_at,
				reveal_deadline = EXCLUDED.reveal_deadline,
				settled_at = EXCLUDED.settled_at`,
			g.ID, g.Pool, g.Currency, g.FirstPlayer, nullStr(g.SecondPlayer),
			g.FirstContribution, g.SecondContribution, nullMove(g.FirstMove), nullMove(g.SecondMove),
			string(g.Phase), nullOutcome(g.Outcome), nullStr(g.SettlementID),
			g.CreatedAt, nullTime(g.JoinedAt), nullTime(g.RevealDeadline), nullTime(g.SettledAt),
		); err != nil {
			return fmt.Errorf("upsert game: %w", err)
		}
	}

	for _, b := range cs.Balances {
		if _, err = tx.ExecContext(ctx, `
			INSERT INTO ledger_balances (pool, currency, balance) VALUES ($1,$2,$3)
			ON CONFLICT (pool, currency) DO UPDATE SET balance = EXCLUDED.balance`,
			b.Pool, b.Currency, b.Balance); err != nil {
			return fmt.Errorf("upsert balance: %w", err)
		}
	}

	for _, c := range cs.Contributions {
		if _, err = tx.ExecContext(ctx, `
			INSERT INTO ledger_contributions (address, pool, currency, amount) VALUES ($1,$2,$3,$4)
			ON CONFLICT (address, pool, currency) DO UPDATE SET amount = EXCLUDED.amount`,
			c.Address, c.Pool, c.Currency, c.Amount); err != nil {
			return fmt.Errorf("upsert contribution: %w", err)
		}
	}

	if cs.Settlement != nil {
		rec := cs.Settlement
		raw, jerr := json.Marshal(rec.Instruction)
		if jerr != nil {
			return fmt.Errorf("marshal instruction: %w", jerr)
		}
		if _, err = tx.ExecContext(ctx, `
			INSERT INTO game_settlements (id, game_id, instruction, status, requested_at, settled_at)
			VALUES ($1,$2,$3,$4,$5,$6)
			ON CONFLICT (id) DO UPDATE SET status = EXCLUDED.status, settled_at = EXCLUDED.settled_at`,
			rec.Instruction.ID, rec.Instruction.GameID, raw, rec.Status,
			rec.RequestedAt, nullTime(rec.SettledAt)); err != nil {
			return fmt.Errorf("upsert settlement: %w", err)
		}
	}

	if err = tx.Commit(); err != nil {
		return fmt.Errorf("commit %s: %w", cs.Op, err)
	}
	return nil
}

// Load recarrega o estado completo para o rehydrate do boot.
func (p *Postgres) Load(ctx context.Context) (engine.Snapshot, error) {
	var snap engine.Snapshot

	rows, err := p.db.QueryContext(ctx, `
		SELECT id, pool, currency, first_player, second_player,
			first_contribution, second_contribution, first_move, second_move,
			phase, outcome, settlement_id, created_at, joined_at, reveal_deadline, settled_at
		FROM games`)
	if err != nil {
		return snap, fmt.Errorf("load games: %w", err)
	}
	defer rows.Close()
	for rows.Next() {
		var r gameRow
		if err := rows.Scan(&r.id, &r.pool, &r.currency, &r.firstPlayer, &r.secondPlayer,
			&r.firstContribution, &r.secondContribution, &r.firstMove, &r.secondMove,
			&r.phase, &r.outcome, &r.settlementID, &r.createdAt, &r.joinedAt,
			&r.revealDeadline, &r.settledAt); err != nil {
			return snap, fmt.Errorf("scan game: %w", err)
		}
		snap.Games = append(snap.Games, r.toGame())
	}
	if err := rows.Err(); err != nil {
		return snap, fmt.Errorf("iterate games: %w", err)
	}

	used, err := p.db.QueryContext(ctx, `SELECT id FROM used_commitments`)
	if err != nil {
		return snap, fmt.Errorf("load commitments: %w", err)
	}
	defer used.Close()
	for used.Next() {
		var id string
		if err := used.Scan(&id); err != nil {
			return snap, fmt.Errorf("scan commitment: %w", err)
		}
		snap.UsedCommitments = append(snap.UsedCommitments, id)
	}
	if err := used.Err(); err != nil {
		return snap, fmt.Errorf("iterate commitments: %w", err)
	}

	bals, err := p.db.QueryContext(ctx, `SELECT pool, currency, balance FROM ledger_balances`)
	if err != nil {
		return snap, fmt.Errorf("load balances: %w", err)
	}
	defer bals.Close()
	for bals.Next() {
		var b engine.BalanceChange
		if err := bals.Scan(&b.Pool, &b.Currency, &b.Balance); err != nil {
			return snap, fmt.Errorf("scan balance: %w", err)
		}
		snap.Balances = append(snap.Balances, b)
	}
	if err := bals.Err(); err != nil {
		return snap, fmt.Errorf("iterate balances: %w", err)
	}

	contribs, err := p.db.QueryContext(ctx, `SELECT address, pool, currency, amount FROM ledger_contributions`)
	if err != nil {
		return snap, fmt.Errorf("load contributions: %w", err)
	}
	defer contribs.Close()
	for contribs.Next() {
		var c engine.ContributionChange
		if err := contribs.Scan(&c.Address, &c.Pool, &c.Currency, &c.Amount); err != nil {
			return snap, fmt.Errorf("scan contribution: %w", err)
		}
		snap.Contributions = append(snap.Contributions, c)
	}
	if err := contribs.Err(); err != nil {
		return snap, fmt.Errorf("iterate contributions: %w", err)
	}

	setts, err := p.db.QueryContext(ctx, `SELECT instruction, status, requested_at, settled_at FROM game_settlements`)
	if err != nil {
		return snap, fmt.Errorf("load settlements: %w", err)
	}
	defer setts.Close()
	for setts.Next() {
		var raw []byte
		var rec engine.SettlementRecord
		var settledAt sql.NullTime
		if err := setts.Scan(&raw, &rec.Status, &rec.RequestedAt, &settledAt); err != nil {
			return snap, fmt.Errorf("scan settlement: %w", err)
		}
		var instr events.SettlementInstruction
		if err := json.Unmarshal(raw, &instr); err != nil {
			return snap, fmt.Errorf("unmarshal instruction: %w", err)
		}
		rec.Instruction = instr
		if settledAt.Valid {
			t := settledAt.Time
			rec.SettledAt = &t
		}
		snap.Settlements = append(snap.Settlements, rec)
	}
	if err := setts.Err(); err != nil {
		return snap, fmt.Errorf("iterate settlements: %w", err)
	}

	return snap, nil
}
