// ABOUTME: JWT trust-token verification and minting. HS256 with a shared secret;
// ABOUTME: the "sub" claim is the identity, the "trust" claim the declared level.

package auth

import (
	"errors"
	"fmt"
	"time"

	"github.com/golang-jwt/jwt/v5"

	"github.com/conclave-mesh/conclave-gateway/internal/trust"
)

// Token errors.
var (
	ErrInvalidToken = errors.New("invalid token")
	ErrExpiredToken = errors.New("token expired")
	ErrMissingClaim = errors.New("missing required claim")
)

// Claims is what a verified trust token asserts. The assertion is only as
// strong as the issuing collaborator; the gateway just consumes it.
type Claims struct {
	Identity string
	Trust    trust.Level
}

// TokenVerifier validates a bearer token and extracts its trust claims.
type TokenVerifier interface {
	Verify(tokenString string) (Claims, error)
}

// JWTVerifier implements TokenVerifier using HS256 signed JWTs.
type JWTVerifier struct {
	secret []byte
}

// NewJWTVerifier creates a verifier with the given shared secret.
func NewJWTVerifier(secret []byte) (*JWTVerifier, error) {
	if len(secret) == 0 {
		return nil, errors.New("jwt secret must not be empty")
	}
	return &JWTVerifier{secret: secret}, nil
}

// Verify validates the token and extracts identity and trust level. An
// unparseable trust claim fails verification rather than defaulting.
func (v *JWTVerifier) Verify(tokenString string) (Claims, error) {
	token, err := jwt.Parse(tokenString, func(token *jwt.Token) (interface{}, error) {
		if _, ok := token.Method.(*jwt.SigningMethodHMAC); !ok {
			return nil, fmt.Errorf("unexpected signing method: %v", token.Header["alg"])
		}
		return v.secret, nil
	})
	if err != nil {
		if errors.Is(err, jwt.ErrTokenExpired) {
			return Claims{}, ErrExpiredToken
		}
		return Claims{}, fmt.Errorf("%w: %v", ErrInvalidToken, err)
	}
	if !token.Valid {
		return Claims{}, ErrInvalidToken
	}

	claims, ok := token.Claims.(jwt.MapClaims)
	if !ok {
		return Claims{}, ErrInvalidToken
	}

	sub, ok := claims["sub"].(string)
	if !ok || sub == "" {
		return Claims{}, fmt.Errorf("%w: sub", ErrMissingClaim)
	}

	rawTrust, ok := claims["trust"].(string)
	if !ok || rawTrust == "" {
		return Claims{}, fmt.Errorf("%w: trust", ErrMissingClaim)
	}
	level, ok := trust.Parse(rawTrust)
	if !ok {
		return Claims{}, fmt.Errorf("%w: unknown trust level %q", ErrInvalidToken, rawTrust)
	}

	return Claims{Identity: sub, Trust: level}, nil
}

// Generate mints a trust token for an identity with an expiration. Used by
// the admin CLI; real deployments mint these in the identity collaborator.
func (v *JWTVerifier) Generate(identity string, level trust.Level, expiresIn time.Duration) (string, error) {
	if !trust.Valid(level) {
		return "", fmt.Errorf("unknown trust level %q", level)
	}

	now := time.Now()
	claims := jwt.MapClaims{
		"sub":   identity,
		"trust": string(level),
		"iat":   now.Unix(),
		"exp":   now.Add(expiresIn).Unix(),
	}

	token := jwt.NewWithClaims(jwt.SigningMethodHS256, claims)
	return token.SignedString(v.secret)
}
