// Package hint implements the signed session-hint token.
//
// Token format: base64url(JSON payload) + "." + base64url(HMAC-SHA256(payload)).
// The payload carries {uid, tier, iat, exp} with millisecond-epoch timestamps.
// Signing and verification share one server-side secret; the codec performs no
// I/O and is safe for concurrent use.
package hint

import (
	"crypto/hmac"
	"crypto/sha256"
	"encoding/base64"
	"encoding/json"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/viziersvault/vault-session/internal/models"
)

var (
	// ErrMalformed means the token does not have the payload.signature shape
	// or the payload fields cannot be parsed.
	ErrMalformed = errors.New("hint: malformed token")
	// ErrBadSignature means the MAC does not match the payload.
	ErrBadSignature = errors.New("hint: bad signature")
	// ErrExpired means the signature is valid but the hint's window passed.
	ErrExpired = errors.New("hint: expired")
)

// payload is the canonical wire form of a Hint. Field order is fixed by the
// struct definition so signing is order-stable.
type payload struct {
	UID  string `json:"uid"`
	Tier string `json:"tier"`
	Iat  int64  `json:"iat"`
	Exp  int64  `json:"exp"`
}

// Codec signs and verifies session hints with a dedicated secret.
type Codec struct {
	secret []byte
}

// NewCodec creates a codec. An empty secret is a configuration error: the
// server must refuse to mint hints rather than mint unsigned ones.
func NewCodec(secret string) (*Codec, error) {
	if secret == "" {
		return nil, fmt.Errorf("hint: signing secret is required")
	}
	return &Codec{secret: []byte(secret)}, nil
}

// Sign serializes the hint and appends its MAC.
func (c *Codec) Sign(h models.Hint) (string, error) {
	if !h.ExpiresAt.After(h.IssuedAt) {
		return "", fmt.Errorf("hint: expiry %v must be after issue time %v", h.ExpiresAt, h.IssuedAt)
	}
	p := payload{
		UID:  h.Subject,
		Tier: h.Tier.String(),
		Iat:  h.IssuedAt.UnixMilli(),
		Exp:  h.ExpiresAt.UnixMilli(),
	}
	data, err := json.Marshal(p)
	if err != nil {
		return "", fmt.Errorf("hint: marshal payload: %w", err)
	}
	return encode(data) + "." + encode(c.mac(data)), nil
}

// Verify checks the token's shape, MAC, and expiry at now, and returns the
// decoded hint. Failures are reported via the sentinel errors above; callers
// on request paths degrade to anonymous rather than surfacing them.
func (c *Codec) Verify(token string, now time.Time) (models.Hint, error) {
	payloadB64, sigB64, ok := strings.Cut(token, ".")
	if !ok || payloadB64 == "" || sigB64 == "" {
		return models.Hint{}, ErrMalformed
	}
	data, err := decode(payloadB64)
	if err != nil {
		return models.Hint{}, ErrMalformed
	}
	sig, err := decode(sigB64)
	if err != nil {
		return models.Hint{}, ErrMalformed
	}
	// hmac.Equal is constant-time; never compare MACs byte-by-byte.
	if !hmac.Equal(sig, c.mac(data)) {
		return models.Hint{}, ErrBadSignature
	}

	var p payload
	if err := json.Unmarshal(data, &p); err != nil {
		return models.Hint{}, ErrMalformed
	}
	if p.UID == "" || p.Iat == 0 || p.Exp == 0 {
		return models.Hint{}, ErrMalformed
	}
	h := models.Hint{
		Subject:   p.UID,
		Tier:      models.ResolveTier(p.Tier),
		IssuedAt:  time.UnixMilli(p.Iat),
		ExpiresAt: time.UnixMilli(p.Exp),
	}
	if h.Expired(now) {
		return models.Hint{}, ErrExpired
	}
	return h, nil
}

func (c *Codec) mac(data []byte) []byte {
	m := hmac.New(sha256.New, c.secret)
	m.Write(data)
	return m.Sum(nil)
}

func encode(b []byte) string {
	return base64.RawURLEncoding.EncodeToString(b)
}

func decode(s string) ([]byte, error) {
	return base64.RawURLEncoding.DecodeString(s)
}
