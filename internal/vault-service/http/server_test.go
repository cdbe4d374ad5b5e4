package http

import (
	"bytes"
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/radieske/rps-duel-platform-poc/internal/shared/auth"
	"github.com/radieske/rps-duel-platform-poc/internal/vault-service/dto"
	"github.com/radieske/rps-duel-platform-poc/internal/vault-service/repo"
)

const testSecret = "vault-test-secret"

// fakeRepo guarda saldos em memória só pro roteiro HTTP; a semântica real
// de escrow/settlement é coberta nos testes do repositório e do executor.
type fakeRepo struct {
	balances map[string]int64
	escrowed map[string]int64 // external_ref -> amount
	refuse   bool
	released []string
}

func newFakeRepo() *fakeRepo {
	return &fakeRepo{balances: map[string]int64{}, escrowed: map[string]int64{}}
}

func (f *fakeRepo) Deposit(_ context.Context, address, currency string, amount int64) (int64, error) {
	f.balances[address+"/"+currency] += amount
	return f.balances[address+"/"+currency], nil
}

func (f *fakeRepo) AccountBalance(_ context.Context, address, currency string) (int64, error) {
	return f.balances[address+"/"+currency], nil
}

func (f *fakeRepo) EscrowDeposit(_ context.Context, address, pool, currency string, amount int64, externalRef string) (string, error) {
	if f.refuse {
		return "", repo.ErrInsufficientFunds
	}
	if prev, ok := f.escrowed[externalRef]; ok && prev != amount {
		return "", repo.ErrRefConflict
	}
	f.escrowed[externalRef] = amount
	f.balances[repo.EscrowAddress(pool)+"/"+currency] += amount
	return repo.EscrowAddress(pool), nil
}

func (f *fakeRepo) EscrowRelease(_ context.Context, externalRef string) error {
	f.released = append(f.released, externalRef)
	return nil
}

func (f *fakeRepo) EscrowBalance(_ context.Context, pool, currency string) (int64, error) {
	return f.balances[repo.EscrowAddress(pool)+"/"+currency], nil
}

func newTestServer(t *testing.T) (*httptest.Server, *fakeRepo) {
	t.Helper()
	fr := newFakeRepo()
	srv := httptest.NewServer(NewServer(zap.NewNop(), fr, testSecret).Router())
	t.Cleanup(srv.Close)
	return srv, fr
}

func post(t *testing.T, url, token string, body any) *http.Response {
	t.Helper()
	raw, err := json.Marshal(body)
	require.NoError(t, err)
	req, err := http.NewRequest(http.MethodPost, url, bytes.NewReader(raw))
	require.NoError(t, err)
	req.Header.Set("Content-Type", "application/json")
	if token != "" {
		req.Header.Set("Authorization", "Bearer "+token)
	}
	res, err := http.DefaultClient.Do(req)
	require.NoError(t, err)
	return res
}

func serviceToken(t *testing.T) string {
	t.Helper()
	tok, err := auth.MintServiceToken(testSecret, "game-service", time.Hour)
	require.NoError(t, err)
	return tok
}

func TestAccountRoutes(t *testing.T) {
	srv, _ := newTestServer(t)

	t.Run("should deposit and answer the new balance", func(t *testing.T) {
		res := post(t, srv.URL+"/v1/vault/accounts/deposit", "", dto.DepositRequest{
			Address: "alice", Currency: "HBD", Amount: 500,
		})
		require.Equal(t, http.StatusOK, res.StatusCode)
		var out dto.AccountResponse
		require.NoError(t, json.NewDecoder(res.Body).Decode(&out))
		res.Body.Close()
		assert.Equal(t, int64(500), out.Balance)
	})

	t.Run("should reject a non-positive amount", func(t *testing.T) {
		res := post(t, srv.URL+"/v1/vault/accounts/deposit", "", dto.DepositRequest{
			Address: "alice", Currency: "HBD", Amount: 0,
		})
		assert.Equal(t, http.StatusBadRequest, res.StatusCode)
		res.Body.Close()
	})

	t.Run("should read the balance without auth", func(t *testing.T) {
		res, err := http.Get(srv.URL + "/v1/vault/accounts/balance?address=alice&currency=HBD")
		require.NoError(t, err)
		require.Equal(t, http.StatusOK, res.StatusCode)
		var out dto.AccountResponse
		require.NoError(t, json.NewDecoder(res.Body).Decode(&out))
		res.Body.Close()
		assert.Equal(t, int64(500), out.Balance)
	})

	t.Run("should demand both query params", func(t *testing.T) {
		res, err := http.Get(srv.URL + "/v1/vault/accounts/balance?address=alice")
		require.NoError(t, err)
		assert.Equal(t, http.StatusBadRequest, res.StatusCode)
		res.Body.Close()
	})
}

func TestEscrowRoutes(t *testing.T) {
	srv, fr := newTestServer(t)
	depositReq := dto.EscrowDepositRequest{
		Address: "alice", Pool: "POOL-A", Currency: "HBD", Amount: 100, ExternalRef: "game-1",
	}

	t.Run("should demand a service token", func(t *testing.T) {
		res := post(t, srv.URL+"/v1/vault/escrow/deposit", "", depositReq)
		assert.Equal(t, http.StatusUnauthorized, res.StatusCode)
		res.Body.Close()

		playerTok, err := auth.MintPlayerToken(testSecret, "alice", time.Hour)
		require.NoError(t, err)
		res = post(t, srv.URL+"/v1/vault/escrow/deposit", playerTok, depositReq)
		assert.Equal(t, http.StatusUnauthorized, res.StatusCode)
		res.Body.Close()
	})

	t.Run("should confirm a deposit", func(t *testing.T) {
		res := post(t, srv.URL+"/v1/vault/escrow/deposit", serviceToken(t), depositReq)
		require.Equal(t, http.StatusOK, res.StatusCode)
		var out dto.EscrowDepositResponse
		require.NoError(t, json.NewDecoder(res.Body).Decode(&out))
		res.Body.Close()
		assert.Equal(t, "escrow:POOL-A", out.EscrowAccount)
		assert.Equal(t, "CONFIRMED", out.Status)
	})

	t.Run("should map a ref conflict to 409", func(t *testing.T) {
		conflicting := depositReq
		conflicting.Amount = 250
		res := post(t, srv.URL+"/v1/vault/escrow/deposit", serviceToken(t), conflicting)
		assert.Equal(t, http.StatusConflict, res.StatusCode)
		res.Body.Close()
	})

	t.Run("should map insufficient funds to 402", func(t *testing.T) {
		fr.refuse = true
		defer func() { fr.refuse = false }()
		res := post(t, srv.URL+"/v1/vault/escrow/deposit", serviceToken(t), dto.EscrowDepositRequest{
			Address: "broke", Pool: "POOL-A", Currency: "HBD", Amount: 100, ExternalRef: "game-2",
		})
		assert.Equal(t, http.StatusPaymentRequired, res.StatusCode)
		res.Body.Close()
	})

	t.Run("should release by external ref", func(t *testing.T) {
		res := post(t, srv.URL+"/v1/vault/escrow/release", serviceToken(t), dto.EscrowReleaseRequest{
			ExternalRef: "game-1",
		})
		require.Equal(t, http.StatusOK, res.StatusCode)
		var out dto.EscrowReleaseResponse
		require.NoError(t, json.NewDecoder(res.Body).Decode(&out))
		res.Body.Close()
		assert.Equal(t, "RELEASED", out.Status)
		assert.Equal(t, []string{"game-1"}, fr.released)
	})

	t.Run("should reject release without ref", func(t *testing.T) {
		res := post(t, srv.URL+"/v1/vault/escrow/release", serviceToken(t), dto.EscrowReleaseRequest{})
		assert.Equal(t, http.StatusBadRequest, res.StatusCode)
		res.Body.Close()
	})

	t.Run("should expose the escrow balance", func(t *testing.T) {
		res, err := http.Get(srv.URL + "/v1/vault/escrow/balance?pool=POOL-A&currency=HBD")
		require.NoError(t, err)
		require.Equal(t, http.StatusOK, res.StatusCode)
		var out dto.EscrowBalanceResponse
		require.NoError(t, json.NewDecoder(res.Body).Decode(&out))
		res.Body.Close()
		assert.Equal(t, int64(100), out.Balance)
	})
}
