// Package jwttest signs tokens the way the console does, for tests that
// exercise the ledger's verifier.
package jwttest

import (
	"crypto/rsa"
	"errors"
	"time"

	ledgerjwt "edu-ledger-service/internal/pkg/jwt"

	"github.com/golang-jwt/jwt/v5"
	"github.com/oklog/ulid/v2"
)

type Generator struct {
	priv     *rsa.PrivateKey
	issuer   string
	audience string
	kid      string
	ttl      time.Duration
}

func NewGenerator(priv *rsa.PrivateKey, issuer, audience, kid string, ttl time.Duration) *Generator {
	return &Generator{
		priv:     priv,
		issuer:   issuer,
		audience: audience,
		kid:      kid,
		ttl:      ttl,
	}
}

// Generate signs a token for identityID and returns it with its jti.
func (g *Generator) Generate(identityID, name string, roles []string, purpose string) (string, string, error) {
	if g.priv == nil {
		return "", "", errors.New("jwt generator has nil private key")
	}

	now := time.Now()
	jti := ulid.Make().String()

	tok := jwt.NewWithClaims(jwt.SigningMethodRS256, &ledgerjwt.Claims{
		IdentityID:     identityID,
		Name:           name,
		Roles:          roles,
		SessionPurpose: purpose,
		RegisteredClaims: jwt.RegisteredClaims{
			Issuer:    g.issuer,
			Subject:   identityID,
			Audience:  jwt.ClaimStrings{g.audience},
			ExpiresAt: jwt.NewNumericDate(now.Add(g.ttl)),
			IssuedAt:  jwt.NewNumericDate(now),
			ID:        jti,
		},
	})
	if g.kid != "" {
		tok.Header["kid"] = g.kid
	}

	signed, err := tok.SignedString(g.priv)
	if err != nil {
		return "", "", err
	}
	return signed, jti, nil
}

func (g *Generator) GenerateAccessToken(identityID, name string, roles ...string) (string, error) {
	signed, _, err := g.Generate(identityID, name, roles, ledgerjwt.PurposeAccess)
	return signed, err
}
