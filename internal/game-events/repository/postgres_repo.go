package repository

import (
	"context"
	"database/sql"

	"github.com/radieske/rps-duel-platform-poc/pkg/contracts/events"
)

// PostgresRepo grava o histórico append-only de eventos de jogo.
// DB: conexão com o banco de dados
type PostgresRepo struct {
	DB *sql.DB
}

// NewPostgresRepo retorna uma instância de repositório Postgres.
func NewPostgresRepo(db *sql.DB) *PostgresRepo {
	return &PostgresRepo{DB: db}
}

// EnsureSchema cria a tabela de histórico quando ausente. Idempotente.
func (r *PostgresRepo) EnsureSchema(ctx context.Context) error {
	const ddl = `
	CREATE TABLE IF NOT EXISTS game_event_history (
		id            BIGSERIAL PRIMARY KEY,
		game_id       TEXT NOT NULL DEFAULT '',
		event_type    TEXT NOT NULL,
		actor         TEXT NOT NULL DEFAULT '',
		pool          TEXT NOT NULL,
		currency      TEXT NOT NULL,
		amount        BIGINT NOT NULL DEFAULT 0,
		move          TEXT NOT NULL DEFAULT '',
		outcome       TEXT NOT NULL DEFAULT '',
		phase         TEXT NOT NULL DEFAULT '',
		settlement_id TEXT NOT NULL DEFAULT '',
		ts            TIMESTAMPTZ NOT NULL,
		recorded_at   TIMESTAMPTZ NOT NULL DEFAULT now()
	);
	CREATE INDEX IF NOT EXISTS idx_game_event_history_game ON game_event_history (game_id, id);
	`
	_, err := r.DB.ExecContext(ctx, ddl)
	return err
}

// InsertHistory registra um evento. Linhas existentes nunca são alteradas.
func (r *PostgresRepo) InsertHistory(ctx context.Context, e events.GameEvent) error {
	const q = `
		INSERT INTO game_event_history
		  (game_id, event_type, actor, pool, currency, amount, move, outcome, phase, settlement_id, ts)
		VALUES
		  ($1,$2,$3,$4,$5,$6,$7,$8,$9,$10,$11)
	`
	_, err := r.DB.ExecContext(ctx, q,
		e.GameID, e.Type, e.Actor, e.Pool, e.Currency,
		e.Amount, e.Move, e.Outcome, e.Phase, e.SettlementID, e.Ts,
	)
	return err
}
