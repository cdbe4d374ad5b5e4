package engine

import "errors"

// Erros estáveis do engine. Toda precondição violada aborta a transação
// inteira antes de qualquer mutação; retry é responsabilidade do chamador.
var (
	ErrDuplicateCommitment = errors.New("duplicate commitment")
	ErrInvalidCommitment   = errors.New("invalid commitment identifier")
	ErrInvalidStake        = errors.New("invalid stake amount")
	ErrUnsupportedCurrency = errors.New("unsupported stake currency")
	ErrInvalidMove         = errors.New("invalid move")
	ErrSelfJoin            = errors.New("cannot join own game")
	ErrStakeMismatch       = errors.New("stake mismatch")
	ErrAlreadyJoined       = errors.New("game already joined")
	ErrSecondPlayerPresent = errors.New("second player present")
	ErrInvalidReveal       = errors.New("reveal does not match commitment")
	ErrInvalidProof        = errors.New("proof verification failed")
	ErrTooEarly            = errors.New("too early")
	ErrDeadlinePassed      = errors.New("reveal deadline passed")
	ErrAlreadyResolved     = errors.New("game already resolved")
	ErrUnauthorized        = errors.New("unauthorized caller")
	ErrGameNotFound        = errors.New("game not found")

	// ErrInsufficientBalance indica quebra de invariante do ledger.
	// Nunca deve acontecer em operação correta: é bug, não erro de usuário.
	ErrInsufficientBalance = errors.New("insufficient ledger balance")
)
