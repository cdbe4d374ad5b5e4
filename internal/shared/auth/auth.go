package auth

import (
	"errors"
	"net/http"
	"strings"
	"time"

	"github.com/golang-jwt/jwt/v5"
)

const RoleService = "service"

var (
	ErrMissingToken = errors.New("missing bearer token")
	ErrInvalidToken = errors.New("invalid token")
)

// Claims dos tokens HS256 usados entre serviços e por jogadores.
// Subject carrega o endereço do jogador (ou o nome do serviço).
type Claims struct {
	Role string `json:"role,omitempty"`
	jwt.RegisteredClaims
}

// MintPlayerToken emite um token de jogador (subject = endereço).
func MintPlayerToken(secret, address string, ttl time.Duration) (string, error) {
	now := time.Now()
	claims := Claims{
		RegisteredClaims: jwt.RegisteredClaims{
			Subject:   address,
			IssuedAt:  jwt.NewNumericDate(now),
			ExpiresAt: jwt.NewNumericDate(now.Add(ttl)),
		},
	}
	return jwt.NewWithClaims(jwt.SigningMethodHS256, claims).SignedString([]byte(secret))
}

// MintServiceToken emite um token com role=service para chamadas internas
// (skim worker e settlement worker -> game-service).
func MintServiceToken(secret, serviceName string, ttl time.Duration) (string, error) {
	now := time.Now()
	claims := Claims{
		Role: RoleService,
		RegisteredClaims: jwt.RegisteredClaims{
			Subject:   serviceName,
			IssuedAt:  jwt.NewNumericDate(now),
			ExpiresAt: jwt.NewNumericDate(now.Add(ttl)),
		},
	}
	return jwt.NewWithClaims(jwt.SigningMethodHS256, claims).SignedString([]byte(secret))
}

// ParseBearer valida o header Authorization e devolve as claims.
func ParseBearer(secret string, r *http.Request) (*Claims, error) {
	header := r.Header.Get("Authorization")
	if header == "" {
		return nil, ErrMissingToken
	}

	tokenString := strings.TrimPrefix(header, "Bearer ")
	if tokenString == header {
		return nil, ErrInvalidToken
	}

	claims := &Claims{}
	token, err := jwt.ParseWithClaims(tokenString, claims, func(t *jwt.Token) (interface{}, error) {
		if _, ok := t.Method.(*jwt.SigningMethodHMAC); !ok {
			return nil, ErrInvalidToken
		}
		return []byte(secret), nil
	})
	if err != nil || !token.Valid {
		return nil, ErrInvalidToken
	}
	return claims, nil
}

// RequireService valida um token interno com role=service.
func RequireService(secret string, r *http.Request) (*Claims, error) {
	claims, err := ParseBearer(secret, r)
	if err != nil {
		return nil, err
	}
	if claims.Role != RoleService {
		return nil, ErrInvalidToken
	}
	return claims, nil
}
