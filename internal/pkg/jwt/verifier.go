// internal/pkg/jwt/verifier.go
package jwt

import (
	"crypto/rsa"
	"errors"
	"fmt"
	"time"

	xerrors "edu-ledger-service/internal/pkg/errors"

	"github.com/golang-jwt/jwt/v5"
)

// Verifier checks RS256 tokens minted by the console. Every failure wraps
// xerrors.ErrUnauthorized.
type Verifier struct {
	pub    *rsa.PublicKey
	parser *jwt.Parser
}

func NewVerifier(pub *rsa.PublicKey, issuer, audience string) *Verifier {
	return &Verifier{
		pub: pub,
		parser: jwt.NewParser(
			jwt.WithValidMethods([]string{jwt.SigningMethodRS256.Alg()}),
			jwt.WithIssuer(issuer),
			jwt.WithAudience(audience),
			jwt.WithExpirationRequired(),
			jwt.WithLeeway(30*time.Second),
		),
	}
}

// Verify validates signature, issuer, audience and expiry and returns the claims
func (v *Verifier) Verify(tokenString string) (*Claims, error) {
	if v.pub == nil {
		return nil, errors.New("jwt verifier has nil public key")
	}

	claims := &Claims{}
	_, err := v.parser.ParseWithClaims(tokenString, claims, func(*jwt.Token) (interface{}, error) {
		return v.pub, nil
	})
	if err != nil {
		return nil, fmt.Errorf("%w: %v", xerrors.ErrUnauthorized, err)
	}

	if claims.IdentityID == "" {
		return nil, fmt.Errorf("%w: token has no identity", xerrors.ErrUnauthorized)
	}
	return claims, nil
}

// VerifyAccessToken additionally requires the access purpose, so refresh or
// reset tokens from the console cannot call the ledger.
func (v *Verifier) VerifyAccessToken(tokenString string) (*Claims, error) {
	claims, err := v.Verify(tokenString)
	if err != nil {
		return nil, err
	}
	if claims.SessionPurpose != PurposeAccess {
		return nil, fmt.Errorf("%w: not an access token", xerrors.ErrUnauthorized)
	}
	return claims, nil
}
