package repo

import (
	"context"
	"database/sql"

	"github.com/radieske/rps-duel-platform-poc/internal/game-feed/dto"
)

// ReadRepo consulta o histórico gravado pelo game-events-worker.
type ReadRepo struct {
	DB *sql.DB
}

// GameHistory retorna os eventos de um jogo na ordem de gravação.
func (r *ReadRepo) GameHistory(ctx context.Context, gameID string) ([]dto.HistoryEntry, error) {
	const q = `
		SELECT id, event_type, actor, amount, move, outcome, phase, settlement_id,
		       to_char(ts, 'YYYY-MM-DD"T"HH24:MI:SSZ')
		FROM game_event_history
		WHERE game_id = $1
		ORDER BY id;
	`
	rows, err := r.DB.QueryContext(ctx, q, gameID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	var out []dto.HistoryEntry
	for rows.Next() {
		var e dto.HistoryEntry
		if err := rows.Scan(&e.Seq, &e.Type, &e.Actor, &e.Amount, &e.Move, &e.Outcome, &e.Phase, &e.SettlementID, &e.Ts); err != nil {
			return nil, err
		}
		out = append(out, e)
	}
	return out, rows.Err()
}

// LatestByGame reconstrói o resumo de um jogo a partir da última linha do
// histórico. Usado quando o snapshot no Redis expirou.
func (r *ReadRepo) LatestByGame(ctx context.Context, gameID string) (dto.GameSummary, error) {
	const q = `
		SELECT game_id, pool, currency, phase, event_type, outcome,
		       to_char(ts, 'YYYY-MM-DD"T"HH24:MI:SSZ')
		FROM game_event_history
		WHERE game_id = $1
		ORDER BY id DESC
		LIMIT 1;
	`
	var s dto.GameSummary
	err := r.DB.QueryRowContext(ctx, q, gameID).Scan(
		&s.GameID, &s.Pool, &s.Currency, &s.Phase, &s.LastEvent, &s.Outcome, &s.UpdatedAt,
	)
	if err != nil {
		return dto.GameSummary{}, err
	}
	return s, nil
}
