package identity

import (
	"context"
	"fmt"

	"github.com/lestrrat-go/jwx/v2/jwt"
)

// Verifier checks bearer tokens against the IdP's signing keys and issuer.
// The verified subject is what sync trusts over the posted user id.
type Verifier struct {
	keys   *KeySource
	issuer string
}

// NewVerifier creates a verifier for tokens issued by the given issuer.
func NewVerifier(issuer, jwksURL string) *Verifier {
	return &Verifier{
		keys:   NewKeySource(jwksURL),
		issuer: issuer,
	}
}

// Verify parses and verifies a token, returning its subject. Signature,
// expiry and issuer are all checked; any failure means the token carries no
// identity at all.
func (v *Verifier) Verify(ctx context.Context, tokenString string) (string, error) {
	keys, err := v.keys.Keys(ctx)
	if err != nil {
		return "", fmt.Errorf("failed to get JWKS: %w", err)
	}

	token, err := jwt.Parse([]byte(tokenString),
		jwt.WithKeySet(keys),
		jwt.WithValidate(true),
		jwt.WithIssuer(v.issuer),
	)
	if err != nil {
		return "", fmt.Errorf("failed to parse/verify token: %w", err)
	}

	sub := token.Subject()
	if sub == "" {
		return "", fmt.Errorf("token missing subject claim")
	}

	return sub, nil
}
