package engine

import (
	"crypto/sha256"
	"encoding/hex"
	"strings"
)

const commitmentHexLen = sha256.Size * 2

// ComputeCommitment produz o identificador do commitment: sha256 sobre o
// byte da jogada seguido do salt, em hex minúsculo. O identificador também
// é a chave do jogo.
func ComputeCommitment(move Move, salt []byte) string {
	h := sha256.New()
	h.Write([]byte{byte(move)})
	h.Write(salt)
	return hex.EncodeToString(h.Sum(nil))
}

// NormalizeCommitment valida o formato (64 chars hex) e normaliza para
// minúsculo. Não prova nada sobre o conteúdo, só o formato.
func NormalizeCommitment(s string) (string, error) {
	id := strings.ToLower(strings.TrimSpace(s))
	if len(id) != commitmentHexLen {
		return "", ErrInvalidCommitment
	}
	if _, err := hex.DecodeString(id); err != nil {
		return "", ErrInvalidCommitment
	}
	return id, nil
}
