package serverutils

import (
	"errors"
	"time"

	"github.com/golang-jwt/jwt/v5"
)

var (
	ErrSocketUnauthorized = errors.New("socket token invalid or expired")
	ErrSocketForbidden    = errors.New("socket token is for another document")
)

const SocketTokenTTL = time.Hour

// SocketClaims authorize one user on one document's sockets.
type SocketClaims struct {
	UserID     string `json:"user_id"`
	DocumentID string `json:"document_id"`
	jwt.RegisteredClaims
}

func IssueSocketToken(secret []byte, userID, documentID string, ttl time.Duration) (string, time.Time, error) {
	expires := time.Now().Add(ttl)
	claims := SocketClaims{
		UserID:     userID,
		DocumentID: documentID,
		RegisteredClaims: jwt.RegisteredClaims{
			ExpiresAt: jwt.NewNumericDate(expires),
			IssuedAt:  jwt.NewNumericDate(time.Now()),
		},
	}
	signed, err := jwt.NewWithClaims(jwt.SigningMethodHS256, claims).SignedString(secret)
	if err != nil {
		return "", time.Time{}, err
	}
	return signed, expires, nil
}

// VerifySocketToken checks signature and expiry, then that the token was
// issued for documentID when one is given.
func VerifySocketToken(secret []byte, token, documentID string) (*SocketClaims, error) {
	var claims SocketClaims
	parsed, err := jwt.ParseWithClaims(token, &claims, keyFunc(secret))
	if err != nil || !parsed.Valid || claims.UserID == "" {
		return nil, ErrSocketUnauthorized
	}
	if documentID != "" && claims.DocumentID != documentID {
		return nil, ErrSocketForbidden
	}
	return &claims, nil
}

// SecretFromEnv is the secret shared by REST and socket tokens.
func SecretFromEnv() []byte {
	return jwtSecret()
}
