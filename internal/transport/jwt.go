package transport

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/rpggio/blossom/internal/ledger"
)

type claims struct {
	MSP string `json:"msp"`
	jwt.RegisteredClaims
}

// JWTResolver verifies HS256 tokens whose "msp" claim names the caller's
// organization.
type JWTResolver struct {
	secret []byte
	issuer string
}

// NewJWTResolver creates a resolver. An empty issuer skips the iss check.
func NewJWTResolver(secret, issuer string) (*JWTResolver, error) {
	if secret == "" {
		return nil, errors.New("jwt secret is required")
	}
	return &JWTResolver{secret: []byte(secret), issuer: issuer}, nil
}

// ResolveIdentity implements IdentityResolver.
func (r *JWTResolver) ResolveIdentity(_ context.Context, token string) (ledger.Identity, error) {
	opts := []jwt.ParserOption{jwt.WithValidMethods([]string{jwt.SigningMethodHS256.Alg()})}
	if r.issuer != "" {
		opts = append(opts, jwt.WithIssuer(r.issuer))
	}

	var c claims
	_, err := jwt.ParseWithClaims(token, &c, func(*jwt.Token) (any, error) {
		return r.secret, nil
	}, opts...)
	if err != nil {
		return ledger.Identity{}, fmt.Errorf("%w: %v", ErrUnauthorized, err)
	}
	if c.MSP == "" {
		return ledger.Identity{}, fmt.Errorf("%w: token has no msp claim", ErrUnauthorized)
	}
	return ledger.Identity{MSPID: c.MSP, Subject: c.Subject}, nil
}

// Sign issues a token for caller valid for ttl.
func (r *JWTResolver) Sign(caller ledger.Identity, ttl time.Duration) (string, error) {
	now := time.Now()
	c := claims{
		MSP: caller.MSPID,
		RegisteredClaims: jwt.RegisteredClaims{
			Subject:   caller.Subject,
			Issuer:    r.issuer,
			IssuedAt:  jwt.NewNumericDate(now),
			ExpiresAt: jwt.NewNumericDate(now.Add(ttl)),
		},
	}
	return jwt.NewWithClaims(jwt.SigningMethodHS256, c).SignedString(r.secret)
}
