package utils

import (
	"errors"
	"sync"
	"time"

	"github.com/dgrijalva/jwt-go"
)

const tokenTTL = 24 * time.Hour

var (
	keyMu  sync.RWMutex
	jwtKey = []byte("scilems-dev-secret")
)

// SetSecret replaces the HMAC signing key. Empty secrets are ignored.
func SetSecret(secret string) {
	if secret == "" {
		return
	}
	keyMu.Lock()
	jwtKey = []byte(secret)
	keyMu.Unlock()
}

func key() []byte {
	keyMu.RLock()
	defer keyMu.RUnlock()
	return jwtKey
}

type JWTClaim struct {
	ID   string `json:"id"`
	Role string `json:"role"`
	jwt.StandardClaims
}

func GenerateToken(id string, role string) (string, error) {
	expirationTime := time.Now().Add(tokenTTL)
	claims := &JWTClaim{
		ID:   id,
		Role: role,
		StandardClaims: jwt.StandardClaims{
			ExpiresAt: expirationTime.Unix(),
		},
	}

	token := jwt.NewWithClaims(jwt.SigningMethodHS256, claims)
	return token.SignedString(key())
}

func ValidateToken(signedToken string) (*JWTClaim, error) {
	token, err := jwt.ParseWithClaims(
		signedToken,
		&JWTClaim{},
		func(token *jwt.Token) (interface{}, error) {
			if _, ok := token.Method.(*jwt.SigningMethodHMAC); !ok {
				return nil, errors.New("unexpected signing method")
			}
			return key(), nil
		},
	)
	if err != nil {
		return nil, err
	}

	claims, ok := token.Claims.(*JWTClaim)
	if !ok || !token.Valid {
		return nil, errors.New("invalid token")
	}

	return claims, nil
}
