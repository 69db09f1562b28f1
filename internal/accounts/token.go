package accounts

import (
	"errors"
	"fmt"
	"time"

	"github.com/golang-jwt/jwt"
)

const (
	DefaultTokenExp = time.Hour * 24

	usernameClaim = "username"
	expClaim      = "exp"
)

var ErrInvalidToken = errors.New("invalid token")

// Tokens signs and verifies login tokens handed to a session after it
// authenticates, so a reconnecting client can resume without a password.
type Tokens struct {
	key []byte
	exp time.Duration
}

func NewTokens(signingKey []byte, exp time.Duration) *Tokens {
	if exp <= 0 {
		exp = DefaultTokenExp
	}
	return &Tokens{key: signingKey, exp: exp}
}

func (t *Tokens) Issue(username string) (string, error) {
	token := jwt.NewWithClaims(jwt.SigningMethodHS256, jwt.MapClaims{
		usernameClaim: username,
		expClaim:      time.Now().Add(t.exp).Unix(),
	})

	return token.SignedString(t.key)
}

// Username verifies tokenString and returns the username it was issued for.
func (t *Tokens) Username(tokenString string) (string, error) {
	token, err := jwt.Parse(tokenString, func(tok *jwt.Token) (interface{}, error) {
		if _, ok := tok.Method.(*jwt.SigningMethodHMAC); !ok {
			return nil, fmt.Errorf("unexpected signing method %v", tok.Header["alg"])
		}
		return t.key, nil
	})
	if err != nil {
		return "", fmt.Errorf("%w: %v", ErrInvalidToken, err)
	}

	if !token.Valid {
		return "", ErrInvalidToken
	}

	claims, ok := token.Claims.(jwt.MapClaims)
	if !ok {
		return "", fmt.Errorf("%w: invalid token claims", ErrInvalidToken)
	}

	username, ok := claims[usernameClaim].(string)
	if !ok || username == "" {
		return "", fmt.Errorf("%w: invalid username claim", ErrInvalidToken)
	}

	return username, nil
}
