package engine

import (
	"errors"
	"fmt"
	"strings"
	"time"
)

// ProofPolicy controla o gate de verificação de prova no reveal.
type ProofPolicy string

const (
	// ProofMandatory exige prova válida em todo reveal.
	ProofMandatory ProofPolicy = "mandatory"
	// ProofOptional aceita reveal sem prova; prova enviada precisa verificar.
	ProofOptional ProofPolicy = "optional"
	// ProofDisabled ignora provas: só o hash do commitment protege contra
	// trapaça do primeiro jogador. Modo de garantia reduzida, sempre
	// explícito na configuração.
	ProofDisabled ProofPolicy = "disabled"
)

func ParseProofPolicy(s string) (ProofPolicy, error) {
	switch ProofPolicy(strings.ToLower(strings.TrimSpace(s))) {
	case ProofMandatory:
		return ProofMandatory, nil
	case ProofOptional:
		return ProofOptional, nil
	case ProofDisabled:
		return ProofDisabled, nil
	default:
		return "", fmt.Errorf("unknown proof policy %q", s)
	}
}

// Verifier é a capacidade externa de verificação de prova, opaca para o
// engine. Retorno != nil reprova; o engine nunca passa winner vindo do
// chamador, sempre o recomputado.
type Verifier interface {
	Verify(proof []byte, first, second Move, outcome Outcome) error
}

// Config parametriza o engine único (sem variantes de contrato).
type Config struct {
	RevealWindow    time.Duration // janela de reveal após o join
	JoinGraceWindow time.Duration // carência de refund; >= RevealWindow
	StakeCurrency   string        // única moeda aceita para stakes
	ProofPolicy     ProofPolicy
}

func (c Config) validate() error {
	if c.RevealWindow <= 0 {
		return errors.New("reveal window must be positive")
	}
	if c.JoinGraceWindow < c.RevealWindow {
		return errors.New("join grace window must be >= reveal window")
	}
	if c.StakeCurrency == "" {
		return errors.New("stake currency required")
	}
	switch c.ProofPolicy {
	case ProofMandatory, ProofOptional, ProofDisabled:
	default:
		return fmt.Errorf("unknown proof policy %q", c.ProofPolicy)
	}
	return nil
}
