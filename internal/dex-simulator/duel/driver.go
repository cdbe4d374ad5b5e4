package duel

import (
	"bytes"
	"context"
	crand "crypto/rand"
	"encoding/hex"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"math/rand"
	"net/http"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/radieske/rps-duel-platform-poc/internal/game-service/dto"
	"github.com/radieske/rps-duel-platform-poc/internal/game-service/engine"
	"github.com/radieske/rps-duel-platform-poc/internal/game-service/proof"
	"github.com/radieske/rps-duel-platform-poc/internal/shared/auth"
	"github.com/radieske/rps-duel-platform-poc/pkg/contracts/events"
)

// Plan é um duelo orquestrado de ponta a ponta: o simulador conhece as duas
// jogadas e o salt, então consegue emitir os swaps de commit e join e depois
// revelar como o primeiro jogador.
type Plan struct {
	GameID     string // commitment do primeiro jogador
	Pool       string
	Currency   string
	First      string
	FirstMove  engine.Move
	Salt       []byte
	Second     string
	SecondMove engine.Move
	Output     int64 // mesmo output nos dois swaps, pra casar os stakes
}

// NewPlan sorteia pool, dupla de traders e jogadas, e computa o commitment.
func NewPlan(pools, traders []string, currency string, output int64) (Plan, error) {
	if len(traders) < 2 {
		return Plan{}, errors.New("duel plan needs at least two traders")
	}
	if len(pools) == 0 {
		return Plan{}, errors.New("duel plan needs at least one pool")
	}

	first := traders[rand.Intn(len(traders))]
	second := first
	for second == first {
		second = traders[rand.Intn(len(traders))]
	}

	salt := make([]byte, 16)
	if _, err := crand.Read(salt); err != nil {
		return Plan{}, err
	}

	p := Plan{
		Pool:       pools[rand.Intn(len(pools))],
		Currency:   currency,
		First:      first,
		FirstMove:  engine.Move(rand.Intn(3)),
		Salt:       salt,
		Second:     second,
		SecondMove: engine.Move(rand.Intn(3)),
		Output:     output,
	}
	p.GameID = engine.ComputeCommitment(p.FirstMove, salt)
	return p, nil
}

// CreateSwap é o swap do primeiro jogador carregando só o commitment.
func (p Plan) CreateSwap() events.SwapCompleted {
	return events.SwapCompleted{
		SwapID:       uuid.NewString(),
		Trader:       p.First,
		Pool:         p.Pool,
		Currency:     p.Currency,
		OutputAmount: p.Output,
		Payload:      &events.DuelPayload{Commitment: p.GameID},
		Source:       "dex-simulator",
		TsUnixMs:     time.Now().UnixMilli(),
	}
}

// JoinSwap é o swap do segundo jogador com a jogada em claro.
func (p Plan) JoinSwap() events.SwapCompleted {
	return events.SwapCompleted{
		SwapID:       uuid.NewString(),
		Trader:       p.Second,
		Pool:         p.Pool,
		Currency:     p.Currency,
		OutputAmount: p.Output,
		Payload:      &events.DuelPayload{Commitment: p.GameID, Move: p.SecondMove.String()},
		Source:       "dex-simulator",
		TsUnixMs:     time.Now().UnixMilli(),
	}
}

const (
	defaultAttempts = 12
	defaultBackoff  = 2 * time.Second
)

// Driver revela duelos no game-service como se fosse o primeiro jogador.
type Driver struct {
	Log     *zap.Logger
	BaseURL string        // game-service
	Secret  string        // segredo JWT compartilhado
	Prover  *proof.Prover // nil envia reveal sem prova
	HTTP    *http.Client

	Attempts int           // tentativas de reveal; 0 usa o default
	Backoff  time.Duration // espera entre tentativas; 0 usa o default
}

// Reveal revela a jogada do primeiro jogador. O commit e o join correm por
// Kafka, então 404 (create ainda não aplicado) e 425 (join ainda não
// aplicado) valem nova tentativa.
func (d *Driver) Reveal(ctx context.Context, p Plan) (dto.GameResponse, error) {
	token, err := auth.MintPlayerToken(d.Secret, p.First, time.Hour)
	if err != nil {
		return dto.GameResponse{}, err
	}

	req := dto.RevealRequest{
		GameID: p.GameID,
		Move:   p.FirstMove.String(),
		Salt:   hex.EncodeToString(p.Salt),
	}
	if d.Prover != nil {
		sig, err := d.Prover.Attest(p.FirstMove, p.SecondMove, engine.Winner(p.FirstMove, p.SecondMove))
		if err != nil {
			return dto.GameResponse{}, err
		}
		req.Proof = hex.EncodeToString(sig)
	}
	body, err := json.Marshal(req)
	if err != nil {
		return dto.GameResponse{}, err
	}

	attempts := d.Attempts
	if attempts <= 0 {
		attempts = defaultAttempts
	}
	backoff := d.Backoff
	if backoff <= 0 {
		backoff = defaultBackoff
	}

	lastStatus := 0
	for i := 0; i < attempts; i++ {
		if i > 0 {
			select {
			case <-ctx.Done():
				return dto.GameResponse{}, ctx.Err()
			case <-time.After(backoff):
			}
		}

		game, status, err := d.post(ctx, body, token)
		if err != nil {
			d.Log.Warn("reveal request failed", zap.String("game_id", p.GameID), zap.Error(err))
			lastStatus = 0
			continue
		}
		switch status {
		case http.StatusOK:
			return game, nil
		case http.StatusNotFound, http.StatusTooEarly:
			lastStatus = status
			continue
		default:
			return dto.GameResponse{}, fmt.Errorf("reveal %s: http %d", p.GameID, status)
		}
	}
	return dto.GameResponse{}, fmt.Errorf("reveal %s: gave up after %d attempts (last http %d)", p.GameID, attempts, lastStatus)
}

func (d *Driver) post(ctx context.Context, body []byte, token string) (dto.GameResponse, int, error) {
	httpReq, err := http.NewRequestWithContext(ctx, http.MethodPost, d.BaseURL+"/v1/games/reveal", bytes.NewReader(body))
	if err != nil {
		return dto.GameResponse{}, 0, err
	}
	httpReq.Header.Set("Content-Type", "application/json")
	httpReq.Header.Set("Authorization", "Bearer "+token)

	resp, err := d.HTTP.Do(httpReq)
	if err != nil {
		return dto.GameResponse{}, 0, err
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		_, _ = io.Copy(io.Discard, resp.Body)
		return dto.GameResponse{}, resp.StatusCode, nil
	}
	var game dto.GameResponse
	if err := json.NewDecoder(resp.Body).Decode(&game); err != nil {
		return dto.GameResponse{}, resp.StatusCode, err
	}
	return game, resp.StatusCode, nil
}
