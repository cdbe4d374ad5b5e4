package repo

import (
	"database/sql"
	"time"

	"github.com/radieske/rps-duel-platform-poc/internal/game-service/engine"
)

// gameRow espelha a tabela games com os campos anuláveis do ciclo de vida.
type gameRow struct {
	id                 string
	pool               string
	currency           string
	firstPlayer        string
	secondPlayer       sql.NullString
	firstContribution  int64
	secondContribution int64
	firstMove          sql.NullInt64
	secondMove         sql.NullInt64
	phase              string
	outcome            sql.NullInt64
	settlementID       sql.NullString
	createdAt          time.Time
	joinedAt           sql.NullTime
	revealDeadline     sql.NullTime
	settledAt          sql.NullTime
}

func (r gameRow) toGame() engine.Game {
	g := engine.Game{
		ID:                 r.id,
		Pool:               r.pool,
		Currency:           r.currency,
		FirstPlayer:        r.firstPlayer,
		SecondPlayer:       r.secondPlayer.String,
		FirstContribution:  r.firstContribution,
		SecondContribution: r.secondContribution,
		Phase:              engine.Phase(r.phase),
		SettlementID:       r.settlementID.String,
		CreatedAt:          r.createdAt,
	}
	if r.firstMove.Valid {
		m := engine.Move(r.firstMove.Int64)
		g.FirstMove = &m
	}
	if r.secondMove.Valid {
		m := engine.Move(r.secondMove.Int64)
		g.SecondMove = &m
	}
	if r.outcome.Valid {
		o := engine.Outcome(r.outcome.Int64)
		g.Outcome = &o
	}
	if r.joinedAt.Valid {
		t := r.joinedAt.Time
		g.JoinedAt = &t
	}
	if r.revealDeadline.Valid {
		t := r.revealDeadline.Time
		g.RevealDeadline = &t
	}
	if r.settledAt.Valid {
		t := r.settledAt.Time
		g.SettledAt = &t
	}
	return g
}

// conversores para os parâmetros anuláveis do upsert

func nullMove(m *engine.Move) any {
	if m == nil {
		return nil
	}
	return int64(*m)
}

func nullOutcome(o *engine.Outcome) any {
	if o == nil {
		return nil
	}
	return int64(*o)
}

func nullTime(t *time.Time) any {
	if t == nil {
		return nil
	}
	return *t
}

func nullStr(s string) any {
	if s == "" {
		return nil
	}
	return s
}
