package vault

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"time"

	vaultdto "github.com/radieske/rps-duel-platform-poc/internal/game-service/vault/dto"
)

// Client fala com o vault-service. O depósito de escrow acontece ANTES da
// transição do engine (padrão reserva) e o release compensa quando o engine
// recusa a transição já paga.
type Client struct {
	BaseURL string
	HTTP    *http.Client
	token   string // JWT de serviço
}

func New(base, serviceToken string) *Client {
	return &Client{
		BaseURL: base,
		HTTP:    &http.Client{Timeout: 2 * time.Second},
		token:   serviceToken,
	}
}

func (c *Client) EscrowDeposit(ctx context.Context, address, pool, currency string, amount int64, externalRef string) error {
	body, _ := json.Marshal(vaultdto.EscrowDepositRequest{
		Address:     address,
		Pool:        pool,
		Currency:    currency,
		Amount:      amount,
		ExternalRef: externalRef,
	})
	return c.post(ctx, "/v1/vault/escrow/deposit", body)
}

func (c *Client) EscrowRelease(ctx context.Context, externalRef string) error {
	body, _ := json.Marshal(vaultdto.EscrowReleaseRequest{ExternalRef: externalRef})
	return c.post(ctx, "/v1/vault/escrow/release", body)
}

func (c *Client) post(ctx context.Context, path string, body []byte) error {
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.BaseURL+path, bytes.NewReader(body))
	if err != nil {
		return err
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("Authorization", "Bearer "+c.token)

	res, err := c.HTTP.Do(req)
	if err != nil {
		return err
	}
	defer res.Body.Close()
	if res.StatusCode >= 300 {
		return fmt.Errorf("vault %s http %d", path, res.StatusCode)
	}
	return nil
}
