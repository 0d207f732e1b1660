package middleware

import (
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"go.uber.org/zap"

	"github.com/viziersvault/vault-session/internal/hint"
	"github.com/viziersvault/vault-session/internal/models"
	"github.com/viziersvault/vault-session/internal/request"
)

func eligibilityHandler(t *testing.T, codec *hint.Codec) (http.Handler, *models.Hint, *bool) {
	t.Helper()

	var seen models.Hint
	var found bool
	handler := Eligibility(codec, zap.NewNop())(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		seen, found = request.HintFromContext(r)
		w.WriteHeader(http.StatusOK)
	}))
	return handler, &seen, &found
}

func TestEligibility_AttachesVerifiedHint(t *testing.T) {
	t.Parallel()

	codec, err := hint.NewCodec("secret-secret-secret-secret")
	if err != nil {
		t.Fatalf("NewCodec: %v", err)
	}

	now := time.Now()
	token, err := codec.Sign(models.Hint{
		Subject:   "u1",
		Tier:      models.TierPro,
		IssuedAt:  now,
		ExpiresAt: now.Add(time.Hour),
	})
	if err != nil {
		t.Fatalf("Sign: %v", err)
	}

	handler, seen, found := eligibilityHandler(t, codec)
	req := httptest.NewRequest("POST", "/gate/generations", nil)
	req.AddCookie(&http.Cookie{Name: hint.CookieName, Value: token})
	rec := httptest.NewRecorder()
	handler.ServeHTTP(rec, req)

	if rec.Code != http.StatusOK {
		t.Fatalf("Expected 200, got %d", rec.Code)
	}
	if !*found {
		t.Fatal("Expected hint in context")
	}
	if seen.Subject != "u1" || seen.Tier != models.TierPro {
		t.Errorf("Unexpected hint: %+v", *seen)
	}
}

func TestEligibility_DegradesToAnonymous(t *testing.T) {
	t.Parallel()

	codec, err := hint.NewCodec("secret-secret-secret-secret")
	if err != nil {
		t.Fatalf("NewCodec: %v", err)
	}
	other, err := hint.NewCodec("a-different-secret-entirely")
	if err != nil {
		t.Fatalf("NewCodec: %v", err)
	}

	now := time.Now()
	forged, err := other.Sign(models.Hint{
		Subject:   "u1",
		Tier:      models.TierPro,
		IssuedAt:  now,
		ExpiresAt: now.Add(time.Hour),
	})
	if err != nil {
		t.Fatalf("Sign: %v", err)
	}
	expired, err := codec.Sign(models.Hint{
		Subject:   "u1",
		Tier:      models.TierPro,
		IssuedAt:  now.Add(-2 * time.Hour),
		ExpiresAt: now.Add(-time.Hour),
	})
	if err != nil {
		t.Fatalf("Sign: %v", err)
	}

	tests := []struct {
		name   string
		cookie *http.Cookie
	}{
		{name: "no cookie", cookie: nil},
		{name: "empty cookie", cookie: &http.Cookie{Name: hint.CookieName, Value: ""}},
		{name: "malformed token", cookie: &http.Cookie{Name: hint.CookieName, Value: "garbage"}},
		{name: "forged signature", cookie: &http.Cookie{Name: hint.CookieName, Value: forged}},
		{name: "expired hint", cookie: &http.Cookie{Name: hint.CookieName, Value: expired}},
		{name: "tampered payload", cookie: &http.Cookie{Name: hint.CookieName, Value: tamper(t, forged)}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()

			handler, _, found := eligibilityHandler(t, codec)
			req := httptest.NewRequest("POST", "/gate/generations", nil)
			if tt.cookie != nil {
				req.AddCookie(tt.cookie)
			}
			rec := httptest.NewRecorder()
			handler.ServeHTTP(rec, req)

			if rec.Code != http.StatusOK {
				t.Errorf("Expected the request to proceed, got %d", rec.Code)
			}
			if *found {
				t.Error("Expected anonymous caller, got a hint in context")
			}
		})
	}
}

func TestEligibility_NilCodecPassesThrough(t *testing.T) {
	t.Parallel()

	handler, _, found := eligibilityHandler(t, nil)
	req := httptest.NewRequest("POST", "/gate/generations", nil)
	req.AddCookie(&http.Cookie{Name: hint.CookieName, Value: "anything"})
	rec := httptest.NewRecorder()
	handler.ServeHTTP(rec, req)

	if rec.Code != http.StatusOK {
		t.Fatalf("Expected 200, got %d", rec.Code)
	}
	if *found {
		t.Error("Expected no hint without a configured codec")
	}
}

// tamper flips a character inside the payload segment of a token.
func tamper(t *testing.T, token string) string {
	t.Helper()
	payload, sig, ok := strings.Cut(token, ".")
	if !ok {
		t.Fatal("token has no separator")
	}
	b := []byte(payload)
	if b[0] == 'A' {
		b[0] = 'B'
	} else {
		b[0] = 'A'
	}
	return string(b) + "." + sig
}
