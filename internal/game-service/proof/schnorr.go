// Package proof implementa o gate de prova criptográfica do reveal: uma
// assinatura Schnorr sobre o par de jogadas e o resultado, emitida por um
// prover confiável (o simulador em dev, o provador real em produção). O
// engine recomputa o vencedor e o gate confirma que o prover atestou
// exatamente a mesma relação.
package proof

import (
	"encoding/hex"
	"fmt"

	"go.dedis.ch/kyber/v4"
	"go.dedis.ch/kyber/v4/sign/schnorr"
	"go.dedis.ch/kyber/v4/suites"

	"github.com/radieske/rps-duel-platform-poc/internal/game-service/engine"
)

var suite suites.Suite = suites.MustFind("Ed25519")

// message canoniza a afirmação atestada. Os três campos saem do estado do
// jogo no momento do reveal, nunca do input do cliente, então assinatura
// válida sobre outra partida não cola aqui.
func message(first, second engine.Move, outcome engine.Outcome) []byte {
	return []byte(fmt.Sprintf("duel/v1|%s|%s|%s", first, second, outcome))
}

// Gate valida provas contra a chave pública do prover. Implementa o
// verificador que o engine consome.
type Gate struct {
	pub kyber.Point
}

// NewGateFromHex monta o gate a partir da chave pública em hex (formato do
// env PROVER_PUBLIC_KEY).
func NewGateFromHex(pubHex string) (*Gate, error) {
	raw, err := hex.DecodeString(pubHex)
	if err != nil {
		return nil, fmt.Errorf("decode prover public key: %w", err)
	}
	pub := suite.Point()
	if err := pub.UnmarshalBinary(raw); err != nil {
		return nil, fmt.Errorf("unmarshal prover public key: %w", err)
	}
	return &Gate{pub: pub}, nil
}

func (g *Gate) Verify(sig []byte, first, second engine.Move, outcome engine.Outcome) error {
	return schnorr.Verify(suite, g.pub, message(first, second, outcome), sig)
}

// Prover assina atestados de resultado. Vive no lado que observa o duelo
// (o simulador de DEX); o serviço de jogos só conhece a chave pública.
type Prover struct {
	priv kyber.Scalar
	pub  kyber.Point
}

// NewProver gera um par de chaves efêmero (dev e testes).
func NewProver() *Prover {
	priv := suite.Scalar().Pick(suite.RandomStream())
	return &Prover{priv: priv, pub: suite.Point().Mul(priv, nil)}
}

// NewProverFromHex carrega a chave privada do env PROVER_PRIVATE_KEY.
func NewProverFromHex(privHex string) (*Prover, error) {
	raw, err := hex.DecodeString(privHex)
	if err != nil {
		return nil, fmt.Errorf("decode prover private key: %w", err)
	}
	priv := suite.Scalar()
	if err := priv.UnmarshalBinary(raw); err != nil {
		return nil, fmt.Errorf("unmarshal prover private key: %w", err)
	}
	return &Prover{priv: priv, pub: suite.Point().Mul(priv, nil)}, nil
}

func (p *Prover) Attest(first, second engine.Move, outcome engine.Outcome) ([]byte, error) {
	sig, err := schnorr.Sign(suite, p.priv, message(first, second, outcome))
	if err != nil {
		return nil, fmt.Errorf("sign duel attestation: %w", err)
	}
	return sig, nil
}

// PublicKeyHex exporta a chave pública no formato aceito por NewGateFromHex.
func (p *Prover) PublicKeyHex() (string, error) {
	raw, err := p.pub.MarshalBinary()
	if err != nil {
		return "", fmt.Errorf("marshal prover public key: %w", err)
	}
	return hex.EncodeToString(raw), nil
}

// PrivateKeyHex exporta a chave privada (seed de config para dev).
func (p *Prover) PrivateKeyHex() (string, error) {
	raw, err := p.priv.MarshalBinary()
	if err != nil {
		return "", fmt.Errorf("marshal prover private key: %w", err)
	}
	return hex.EncodeToString(raw), nil
}

// Gate direto do prover, para processos que assinam e verificam no mesmo
// binário (simulador em modo standalone).
func (p *Prover) Gate() *Gate {
	return &Gate{pub: p.pub}
}
