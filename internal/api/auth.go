package api

import (
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/google/uuid"
)

// Claims is the JWT payload accepted by the API.
type Claims struct {
	jwt.RegisteredClaims
}

// Authenticator issues and validates HS256 bearer tokens.
type Authenticator struct {
	secret     []byte
	issuer     string
	defaultTTL time.Duration
	now        func() time.Time
}

// NewAuthenticator constructs an authenticator using the provided secret and issuer.
func NewAuthenticator(secret []byte, issuer string, defaultTTL time.Duration) (*Authenticator, error) {
	if len(secret) == 0 {
		return nil, errors.New("jwt secret must not be empty")
	}
	issuer = strings.TrimSpace(issuer)
	if issuer == "" {
		return nil, errors.New("jwt issuer must not be empty")
	}
	if defaultTTL <= 0 {
		defaultTTL = time.Hour
	}
	return &Authenticator{secret: secret, issuer: issuer, defaultTTL: defaultTTL, now: time.Now}, nil
}

// Mint signs a token for subject. ttl is capped at 24h; zero uses the default.
func (a *Authenticator) Mint(subject string, ttl time.Duration) (string, time.Time, error) {
	subject = strings.TrimSpace(subject)
	if subject == "" {
		return "", time.Time{}, errors.New("subject is required")
	}
	if ttl <= 0 {
		ttl = a.defaultTTL
	}
	if ttl > 24*time.Hour {
		ttl = 24 * time.Hour
	}
	now := a.now().UTC().Truncate(time.Second)
	expires := now.Add(ttl)
	claims := Claims{RegisteredClaims: jwt.RegisteredClaims{
		Issuer:    a.issuer,
		Subject:   subject,
		IssuedAt:  jwt.NewNumericDate(now),
		ExpiresAt: jwt.NewNumericDate(expires),
		ID:        uuid.NewString(),
	}}
	signed, err := jwt.NewWithClaims(jwt.SigningMethodHS256, claims).SignedString(a.secret)
	if err != nil {
		return "", time.Time{}, fmt.Errorf("sign token: %w", err)
	}
	return signed, expires, nil
}

// Validate parses token and checks signature, issuer and expiry.
func (a *Authenticator) Validate(token string) (*Claims, error) {
	token = strings.TrimSpace(token)
	if token == "" {
		return nil, errors.New("token is required")
	}
	claims := &Claims{}
	_, err := jwt.ParseWithClaims(token, claims, func(t *jwt.Token) (interface{}, error) {
		if _, ok := t.Method.(*jwt.SigningMethodHMAC); !ok {
			return nil, fmt.Errorf("unexpected signing method: %v", t.Header["alg"])
		}
		return a.secret, nil
	},
		jwt.WithValidMethods([]string{jwt.SigningMethodHS256.Alg()}),
		jwt.WithIssuer(a.issuer),
		jwt.WithExpirationRequired(),
		jwt.WithTimeFunc(a.now),
	)
	if err != nil {
		return nil, err
	}
	return claims, nil
}
