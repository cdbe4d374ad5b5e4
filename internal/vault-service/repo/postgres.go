package repo

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	"github.com/google/uuid"

	"github.com/radieske/rps-duel-platform-poc/pkg/contracts/events"
)

// Postgres executa as operações do vault em banco. Todo movimento de saldo
// roda numa única transação com lock pessimista nas contas envolvidas.
type Postgres struct{ db *sql.DB }

func NewPostgres(db *sql.DB) *Postgres { return &Postgres{db: db} }

var (
	ErrInsufficientFunds = errors.New("insufficient funds")
	ErrRefConflict       = errors.New("external ref already used with a different amount")
)

// EscrowAddress é a conta que guarda o pool em jogo.
func EscrowAddress(pool string) string { return "escrow:" + pool }

// EnsureSchema cria as tabelas na subida (idempotente). Mantém o boot
// auto-contido em dev; em prod a migração roda fora do serviço.
func (p *Postgres) EnsureSchema(ctx context.Context) error {
	stmts := []string{
		`CREATE TABLE IF NOT EXISTS vault_accounts (
			address TEXT NOT NULL,
			currency TEXT NOT NULL,
			balance BIGINT NOT NULL DEFAULT 0,
			PRIMARY KEY (address, currency)
		)`,
		`CREATE TABLE IF NOT EXISTS vault_ledger (
			id BIGSERIAL PRIMARY KEY,
			ref TEXT NOT NULL,
			address TEXT NOT NULL,
			currency TEXT NOT NULL,
			op TEXT NOT NULL,
			amount BIGINT NOT NULL,
			description TEXT NOT NULL DEFAULT '',
			created_at TIMESTAMPTZ NOT NULL DEFAULT now()
		)`,
		`CREATE TABLE IF NOT EXISTS vault_escrow_deposits (
			external_ref TEXT PRIMARY KEY,
			address TEXT NOT NULL,
			pool TEXT NOT NULL,
			currency TEXT NOT NULL,
			amount BIGINT NOT NULL,
			status TEXT NOT NULL,
			updated_at TIMESTAMPTZ NOT NULL DEFAULT now()
		)`,
		`CREATE TABLE IF NOT EXISTS vault_settlements (
			instruction_id TEXT PRIMARY KEY,
			game_id TEXT NOT NULL,
			vault_ref TEXT NOT NULL,
			executed_at TIMESTAMPTZ NOT NULL DEFAULT now()
		)`,
	}
	for _, s := range stmts {
		if _, err := p.db.ExecContext(ctx, s); err != nil {
			return fmt.Errorf("ensure vault schema: %w", err)
		}
	}
	return nil
}

// Deposit credita a conta do endereço (faucet da demo) e devolve o saldo novo.
func (p *Postgres) Deposit(ctx context.Context, address, currency string, amount int64) (int64, error) {
	tx, err := p.db.BeginTx(ctx, nil)
	if err != nil {
		return 0, err
	}
	defer tx.Rollback()

	if err := credit(ctx, tx, address, currency, amount, "deposit", uuid.New().String()); err != nil {
		return 0, err
	}

	var balance int64
	if err := tx.QueryRowContext(ctx,
		`SELECT balance FROM vault_accounts WHERE address=$1 AND currency=$2`,
		address, currency).Scan(&balance); err != nil {
		return 0, err
	}

	if err := tx.Commit(); err != nil {
		return 0, err
	}
	return balance, nil
}

// AccountBalance devolve o saldo; conta inexistente vale zero.
func (p *Postgres) AccountBalance(ctx context.Context, address, currency string) (int64, error) {
	var balance int64
	err := p.db.QueryRowContext(ctx,
		`SELECT balance FROM vault_accounts WHERE address=$1 AND currency=$2`,
		address, currency).Scan(&balance)
	if err == sql.ErrNoRows {
		return 0, nil
	}
	if err != nil {
		return 0, err
	}
	return balance, nil
}

// EscrowDeposit move o stake do pagador para escrow:<pool>. Idempotente por
// external_ref: repetir com o mesmo valor não move nada; repetir com valor
// diferente é conflito. Uma ref já liberada aceita depósito de novo (retry
// do game-service depois de um release compensatório).
func (p *Postgres) EscrowDeposit(ctx context.Context, address, pool, currency string, amount int64, externalRef string) (string, error) {
	escrow := EscrowAddress(pool)

	tx, err := p.db.BeginTx(ctx, nil)
	if err != nil {
		return "", err
	}
	defer tx.Rollback()

	var prevAmount int64
	var status string
	err = tx.QueryRowContext(ctx,
		`SELECT amount, status FROM vault_escrow_deposits WHERE external_ref=$1 FOR UPDATE`,
		externalRef).Scan(&prevAmount, &status)
	switch {
	case err == sql.ErrNoRows:
		// primeira vez desta ref
	case err != nil:
		return "", err
	case status == "DEPOSITED" && prevAmount == amount:
		return escrow, tx.Commit() // replay
	case status == "DEPOSITED":
		return "", ErrRefConflict
	}

	ref := uuid.New().String()
	if err := debit(ctx, tx, address, currency, amount, "escrow:"+externalRef, ref); err != nil {
		return "", err
	}
	if err := credit(ctx, tx, escrow, currency, amount, "escrow:"+externalRef, ref); err != nil {
		return "", err
	}

	if _, err := tx.ExecContext(ctx, `
		INSERT INTO vault_escrow_deposits (external_ref, address, pool, currency, amount, status)
		VALUES ($1,$2,$3,$4,$5,'DEPOSITED')
		ON CONFLICT (external_ref) DO UPDATE
		SET address = EXCLUDED.address, pool = EXCLUDED.pool, currency = EXCLUDED.currency,
			amount = EXCLUDED.amount, status = 'DEPOSITED', updated_at = now()`,
		externalRef, address, pool, currency, amount); err != nil {
		return "", err
	}

	return escrow, tx.Commit()
}

// EscrowRelease devolve o depósito ao pagador. Ref ausente ou já liberada é
// no-op: o game-service chama sem saber se o depósito chegou a acontecer.
func (p *Postgres) EscrowRelease(ctx context.Context, externalRef string) error {
	tx, err := p.db.BeginTx(ctx, nil)
	if err != nil {
		return err
	}
	defer tx.Rollback()

	var address, pool, currency, status string
	var amount int64
	err = tx.QueryRowContext(ctx,
		`SELECT address, pool, currency, amount, status FROM vault_escrow_deposits WHERE external_ref=$1 FOR UPDATE`,
		externalRef).Scan(&address, &pool, &currency, &amount, &status)
	if err == sql.ErrNoRows {
		return nil
	}
	if err != nil {
		return err
	}
	if status != "DEPOSITED" {
		return nil
	}

	ref := uuid.New().String()
	if err := debit(ctx, tx, EscrowAddress(pool), currency, amount, "release:"+externalRef, ref); err != nil {
		return err
	}
	if err := credit(ctx, tx, address, currency, amount, "release:"+externalRef, ref); err != nil {
		return err
	}
	if _, err := tx.ExecContext(ctx,
		`UPDATE vault_escrow_deposits SET status='RELEASED', updated_at=now() WHERE external_ref=$1`,
		externalRef); err != nil {
		return err
	}

	return tx.Commit()
}

// EscrowBalance devolve o saldo da conta escrow do pool.
func (p *Postgres) EscrowBalance(ctx context.Context, pool, currency string) (int64, error) {
	return p.AccountBalance(ctx, EscrowAddress(pool), currency)
}

// ExecuteSettlement aplica a instrução: debita escrow:<pool> e credita cada
// payee, numa única transação. Idempotente por instruction_id; o replay
// devolve o mesmo vault_ref sem mover saldo de novo.
func (p *Postgres) ExecuteSettlement(ctx context.Context, instr events.SettlementInstruction) (string, error) {
	var sum int64
	for _, po := range instr.Payouts {
		sum += po.Amount
	}
	if sum != instr.Total {
		return "", fmt.Errorf("settlement %s: payout sum %d != total %d", instr.ID, sum, instr.Total)
	}

	tx, err := p.db.BeginTx(ctx, nil)
	if err != nil {
		return "", err
	}
	defer tx.Rollback()

	var existing string
	err = tx.QueryRowContext(ctx,
		`SELECT vault_ref FROM vault_settlements WHERE instruction_id=$1`,
		instr.ID).Scan(&existing)
	if err == nil {
		return existing, tx.Commit() // replay
	}
	if err != sql.ErrNoRows {
		return "", err
	}

	vaultRef := uuid.New().String()
	if instr.Total > 0 {
		if err := debit(ctx, tx, EscrowAddress(instr.Pool), instr.Currency, instr.Total, "settle:"+instr.GameID, vaultRef); err != nil {
			return "", err
		}
	}
	for _, po := range instr.Payouts {
		if err := credit(ctx, tx, po.Address, instr.Currency, po.Amount, "settle:"+instr.GameID, vaultRef); err != nil {
			return "", err
		}
	}

	if _, err := tx.ExecContext(ctx,
		`INSERT INTO vault_settlements (instruction_id, game_id, vault_ref) VALUES ($1,$2,$3)`,
		instr.ID, instr.GameID, vaultRef); err != nil {
		return "", err
	}

	return vaultRef, tx.Commit()
}

// credit soma na conta, criando a linha se não existir, e registra no journal.
func credit(ctx context.Context, tx *sql.Tx, address, currency string, amount int64, desc, ref string) error {
	if _, err := tx.ExecContext(ctx, `
		INSERT INTO vault_accounts (address, currency, balance) VALUES ($1,$2,$3)
		ON CONFLICT (address, currency) DO UPDATE SET balance = vault_accounts.balance + EXCLUDED.balance`,
		address, currency, amount); err != nil {
		return err
	}
	_, err := tx.ExecContext(ctx,
		`INSERT INTO vault_ledger (ref, address, currency, op, amount, description) VALUES ($1,$2,$3,'CREDIT',$4,$5)`,
		ref, address, currency, amount, desc)
	return err
}

// debit trava a linha, exige saldo suficiente e registra no journal.
func debit(ctx context.Context, tx *sql.Tx, address, currency string, amount int64, desc, ref string) error {
	var balance int64
	err := tx.QueryRowContext(ctx,
		`SELECT balance FROM vault_accounts WHERE address=$1 AND currency=$2 FOR UPDATE`,
		address, currency).Scan(&balance)
	if err == sql.ErrNoRows {
		return ErrInsufficientFunds
	}
	if err != nil {
		return err
	}
	if balance < amount {
		return ErrInsufficientFunds
	}

	if _, err := tx.ExecContext(ctx,
		`UPDATE vault_accounts SET balance = balance - $1 WHERE address=$2 AND currency=$3`,
		amount, address, currency); err != nil {
		return err
	}
	_, err = tx.ExecContext(ctx,
		`INSERT INTO vault_ledger (ref, address, currency, op, amount, description) VALUES ($1,$2,$3,'DEBIT',$4,$5)`,
		ref, address, currency, amount, desc)
	return err
}
