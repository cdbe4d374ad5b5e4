package engine

import "fmt"

type bucketKey struct {
	pool     string
	currency string
}

type contribKey struct {
	address  string
	pool     string
	currency string
}

// ledger mantém os saldos agregados por bucket (pool+moeda) e as
// contribuições por endereço. Invariante: o saldo de cada bucket é igual
// à soma das contribuições atribuídas a ele. Mutações acontecem somente
// dentro de uma transição do state machine, nunca isoladas.
type ledger struct {
	balances map[bucketKey]int64
	contribs map[contribKey]int64
}

func newLedger() *ledger {
	return &ledger{
		balances: make(map[bucketKey]int64),
		contribs: make(map[contribKey]int64),
	}
}

func (l *ledger) balance(pool, currency string) int64 {
	return l.balances[bucketKey{pool, currency}]
}

func (l *ledger) contribution(address, pool, currency string) int64 {
	return l.contribs[contribKey{address, pool, currency}]
}

func (l *ledger) credit(pool, currency string, amount int64) {
	l.balances[bucketKey{pool, currency}] += amount
}

func (l *ledger) debit(pool, currency string, amount int64) error {
	k := bucketKey{pool, currency}
	if l.balances[k] < amount {
		return ErrInsufficientBalance
	}
	l.balances[k] -= amount
	return nil
}

func (l *ledger) attribute(address, pool, currency string, amount int64) {
	l.contribs[contribKey{address, pool, currency}] += amount
}

func (l *ledger) unattribute(address, pool, currency string, amount int64) error {
	k := contribKey{address, pool, currency}
	if l.contribs[k] < amount {
		return ErrInsufficientBalance
	}
	l.contribs[k] -= amount
	if l.contribs[k] == 0 {
		delete(l.contribs, k)
	}
	return nil
}

// canSettle verifica as precondições de débito de uma liquidação sem mutar
// nada (validação completa antes de qualquer efeito).
func (l *ledger) canSettle(pool, currency string, total int64, parts []contribPart) error {
	if l.balance(pool, currency) < total {
		return ErrInsufficientBalance
	}
	for _, p := range parts {
		if l.contribution(p.address, pool, currency) < p.amount {
			return ErrInsufficientBalance
		}
	}
	return nil
}

type contribPart struct {
	address string
	amount  int64
}

// audit confere a invariante saldo == soma das contribuições, bucket a bucket.
func (l *ledger) audit() error {
	sums := make(map[bucketKey]int64, len(l.balances))
	for k, v := range l.contribs {
		sums[bucketKey{k.pool, k.currency}] += v
	}
	for k, bal := range l.balances {
		if sums[k] != bal {
			return fmt.Errorf("ledger out of balance on %s/%s: balance=%d attributed=%d",
				k.pool, k.currency, bal, sums[k])
		}
	}
	for k, sum := range sums {
		if _, ok := l.balances[k]; !ok && sum != 0 {
			return fmt.Errorf("attributed funds without bucket on %s/%s: %d", k.pool, k.currency, sum)
		}
	}
	return nil
}
