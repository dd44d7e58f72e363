// Package auth turns bearer tokens into dispatch origins.
package auth

import (
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/golang-jwt/jwt/v5"

	"github.com/oxygenesis/signing-node/internal/domain"
)

var ErrInvalidToken = errors.New("invalid token")

// Authenticator issues and verifies HS256 tokens whose subject is the hex
// account id of the caller.
type Authenticator struct {
	secret []byte
	issuer string
	now    func() time.Time
}

func NewAuthenticator(secret []byte, issuer string) (*Authenticator, error) {
	if len(secret) < 16 {
		return nil, errors.New("token secret must be at least 16 bytes")
	}
	return &Authenticator{secret: append([]byte(nil), secret...), issuer: issuer, now: time.Now}, nil
}

// Issue returns a signed token for who, valid for ttl.
func (a *Authenticator) Issue(who domain.AccountID, ttl time.Duration) (string, error) {
	if len(who) == 0 {
		return "", fmt.Errorf("%w: account id is required", domain.ErrInvalidInput)
	}
	now := a.now()
	claims := jwt.RegisteredClaims{
		Issuer:    a.issuer,
		Subject:   who.Hex(),
		IssuedAt:  jwt.NewNumericDate(now),
		NotBefore: jwt.NewNumericDate(now),
		ExpiresAt: jwt.NewNumericDate(now.Add(ttl)),
	}
	return jwt.NewWithClaims(jwt.SigningMethodHS256, claims).SignedString(a.secret)
}

// Verify parses token and returns the account it was issued for.
func (a *Authenticator) Verify(token string) (domain.AccountID, error) {
	var claims jwt.RegisteredClaims
	opts := []jwt.ParserOption{
		jwt.WithValidMethods([]string{jwt.SigningMethodHS256.Alg()}),
		jwt.WithTimeFunc(a.now),
		jwt.WithExpirationRequired(),
	}
	if a.issuer != "" {
		opts = append(opts, jwt.WithIssuer(a.issuer))
	}
	_, err := jwt.ParseWithClaims(token, &claims, func(*jwt.Token) (any, error) {
		return a.secret, nil
	}, opts...)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrInvalidToken, err)
	}
	who, err := domain.ParseAccountID(claims.Subject)
	if err != nil {
		return nil, fmt.Errorf("%w: subject: %v", ErrInvalidToken, err)
	}
	return who, nil
}

// Origin maps an Authorization header to a dispatch origin. Missing or
// invalid credentials yield the unsigned origin, which dispatch rejects.
func (a *Authenticator) Origin(header string) domain.Origin {
	token, ok := bearerToken(header)
	if !ok {
		return domain.NoneOrigin()
	}
	who, err := a.Verify(token)
	if err != nil {
		return domain.NoneOrigin()
	}
	return domain.SignedOrigin(who)
}

func bearerToken(header string) (string, bool) {
	header = strings.TrimSpace(header)
	const prefix = "bearer "
	if len(header) <= len(prefix) || !strings.EqualFold(header[:len(prefix)], prefix) {
		return "", false
	}
	token := strings.TrimSpace(header[len(prefix):])
	return token, token != ""
}
