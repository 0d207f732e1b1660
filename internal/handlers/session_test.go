package handlers

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/gorilla/mux"
	"go.uber.org/zap"

	"github.com/viziersvault/vault-session/internal/hint"
	"github.com/viziersvault/vault-session/internal/models"
)

type fakePlanStore struct {
	plans map[string]string
	err   error
}

func (f *fakePlanStore) GetPlan(_ context.Context, userID string) (string, error) {
	if f.err != nil {
		return "", f.err
	}
	if plan, ok := f.plans[userID]; ok {
		return plan, nil
	}
	return "free", nil
}

type fakeVerifier struct {
	subject string
	err     error
}

func (f *fakeVerifier) Verify(_ context.Context, _ string) (string, error) {
	return f.subject, f.err
}

func newTestCodec(t *testing.T) *hint.Codec {
	t.Helper()
	codec, err := hint.NewCodec("test-secret-test-secret-test-secret")
	if err != nil {
		t.Fatalf("NewCodec: %v", err)
	}
	return codec
}

func sessionRouter(h *SessionHandler) *mux.Router {
	r := mux.NewRouter()
	h.RegisterRoutes(r.PathPrefix("/session").Subrouter())
	return r
}

func findCookie(t *testing.T, resp *http.Response, name string) *http.Cookie {
	t.Helper()
	for _, c := range resp.Cookies() {
		if c.Name == name {
			return c
		}
	}
	return nil
}

func TestSync_MintsHintCookie(t *testing.T) {
	t.Parallel()

	codec := newTestCodec(t)
	plans := &fakePlanStore{plans: map[string]string{"u1": "plus"}}
	h := NewSessionHandler(codec, plans, 72*time.Hour, false, zap.NewNop())

	req := httptest.NewRequest("POST", "/session/sync", strings.NewReader(`{"userId":"u1"}`))
	rec := httptest.NewRecorder()
	sessionRouter(h).ServeHTTP(rec, req)

	if rec.Code != http.StatusOK {
		t.Fatalf("Expected 200, got %d: %s", rec.Code, rec.Body.String())
	}

	var resp SyncResponse
	if err := json.Unmarshal(rec.Body.Bytes(), &resp); err != nil {
		t.Fatalf("Unmarshal response: %v", err)
	}
	if !resp.OK || !resp.Minted {
		t.Errorf("Expected ok and minted, got %+v", resp)
	}
	if resp.Tier != models.TierPlus {
		t.Errorf("Expected tier plus, got %q", resp.Tier)
	}

	cookie := findCookie(t, rec.Result(), hint.CookieName)
	if cookie == nil {
		t.Fatal("Expected hint cookie to be set")
	}
	if !cookie.HttpOnly {
		t.Error("Expected hint cookie to be HttpOnly")
	}
	if cookie.SameSite != http.SameSiteStrictMode {
		t.Errorf("Expected SameSite=Strict, got %v", cookie.SameSite)
	}
	if cookie.MaxAge != int((72 * time.Hour).Seconds()) {
		t.Errorf("Expected MaxAge of 72h, got %d", cookie.MaxAge)
	}

	decoded, err := codec.Verify(cookie.Value, time.Now())
	if err != nil {
		t.Fatalf("Verify minted cookie: %v", err)
	}
	if decoded.Subject != "u1" || decoded.Tier != models.TierPlus {
		t.Errorf("Unexpected hint contents: %+v", decoded)
	}
	if got := decoded.ExpiresAt.Sub(decoded.IssuedAt); got != 72*time.Hour {
		t.Errorf("Expected 72h validity window, got %v", got)
	}
}

func TestSync_ExpiresLegacyCookies(t *testing.T) {
	t.Parallel()

	h := NewSessionHandler(newTestCodec(t), &fakePlanStore{}, time.Hour, false, zap.NewNop())

	req := httptest.NewRequest("POST", "/session/sync", strings.NewReader(`{"userId":"u1"}`))
	req.AddCookie(&http.Cookie{Name: hint.LegacyUIDCookie, Value: "u1"})
	req.AddCookie(&http.Cookie{Name: hint.LegacyPlanCookie, Value: "plus"})
	rec := httptest.NewRecorder()
	sessionRouter(h).ServeHTTP(rec, req)

	if rec.Code != http.StatusOK {
		t.Fatalf("Expected 200, got %d", rec.Code)
	}
	for _, name := range []string{hint.LegacyUIDCookie, hint.LegacyPlanCookie} {
		cookie := findCookie(t, rec.Result(), name)
		if cookie == nil {
			t.Fatalf("Expected %s to be expired in response", name)
		}
		if cookie.MaxAge >= 0 || cookie.Value != "" {
			t.Errorf("Expected %s to be expired, got MaxAge=%d Value=%q", name, cookie.MaxAge, cookie.Value)
		}
	}
}

func TestSync_UnknownPlanMapsToFree(t *testing.T) {
	t.Parallel()

	codec := newTestCodec(t)
	plans := &fakePlanStore{plans: map[string]string{"u1": "enterprise"}}
	h := NewSessionHandler(codec, plans, time.Hour, false, zap.NewNop())

	req := httptest.NewRequest("POST", "/session/sync", strings.NewReader(`{"userId":"u1"}`))
	rec := httptest.NewRecorder()
	sessionRouter(h).ServeHTTP(rec, req)

	var resp SyncResponse
	if err := json.Unmarshal(rec.Body.Bytes(), &resp); err != nil {
		t.Fatalf("Unmarshal response: %v", err)
	}
	if resp.Tier != models.TierFree {
		t.Errorf("Expected unknown plan to resolve to free, got %q", resp.Tier)
	}
}

func TestSync_NoCodecIsNoOp(t *testing.T) {
	t.Parallel()

	h := NewSessionHandler(nil, &fakePlanStore{}, time.Hour, false, zap.NewNop())

	req := httptest.NewRequest("POST", "/session/sync", strings.NewReader(`{"userId":"u1"}`))
	rec := httptest.NewRecorder()
	sessionRouter(h).ServeHTTP(rec, req)

	if rec.Code != http.StatusOK {
		t.Fatalf("Expected 200, got %d", rec.Code)
	}
	var resp SyncResponse
	if err := json.Unmarshal(rec.Body.Bytes(), &resp); err != nil {
		t.Fatalf("Unmarshal response: %v", err)
	}
	if !resp.OK || resp.Minted {
		t.Errorf("Expected ok with no mint, got %+v", resp)
	}
	if len(rec.Result().Cookies()) != 0 {
		t.Errorf("Expected no cookies, got %d", len(rec.Result().Cookies()))
	}
}

func TestSync_InvalidBody(t *testing.T) {
	t.Parallel()

	h := NewSessionHandler(newTestCodec(t), &fakePlanStore{}, time.Hour, false, zap.NewNop())

	tests := []struct {
		name string
		body string
	}{
		{name: "not json", body: "not json"},
		{name: "missing userId", body: `{}`},
		{name: "empty userId", body: `{"userId":""}`},
		{name: "whitespace userId", body: `{"userId":"   "}`},
		{name: "oversized userId", body: `{"userId":"` + strings.Repeat("x", 200) + `"}`},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()

			req := httptest.NewRequest("POST", "/session/sync", strings.NewReader(tt.body))
			rec := httptest.NewRecorder()
			sessionRouter(h).ServeHTTP(rec, req)

			if rec.Code != http.StatusBadRequest {
				t.Errorf("Expected 400, got %d", rec.Code)
			}
			if len(rec.Result().Cookies()) != 0 {
				t.Error("Expected no cookies on rejected sync")
			}
		})
	}
}

func TestSync_StoreFailure(t *testing.T) {
	t.Parallel()

	plans := &fakePlanStore{err: errors.New("connection refused")}
	h := NewSessionHandler(newTestCodec(t), plans, time.Hour, false, zap.NewNop())

	req := httptest.NewRequest("POST", "/session/sync", strings.NewReader(`{"userId":"u1"}`))
	rec := httptest.NewRecorder()
	sessionRouter(h).ServeHTTP(rec, req)

	if rec.Code != http.StatusBadGateway {
		t.Fatalf("Expected 502, got %d", rec.Code)
	}
	if findCookie(t, rec.Result(), hint.CookieName) != nil {
		t.Error("Expected no hint cookie on store failure")
	}
}

func TestSync_IdentityVerification(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name       string
		verifier   *fakeVerifier
		authHeader string
		wantStatus int
	}{
		{
			name:       "matching subject",
			verifier:   &fakeVerifier{subject: "u1"},
			authHeader: "Bearer token",
			wantStatus: http.StatusOK,
		},
		{
			name:       "subject mismatch",
			verifier:   &fakeVerifier{subject: "u2"},
			authHeader: "Bearer token",
			wantStatus: http.StatusUnauthorized,
		},
		{
			name:       "verification error",
			verifier:   &fakeVerifier{err: errors.New("bad token")},
			authHeader: "Bearer token",
			wantStatus: http.StatusUnauthorized,
		},
		{
			name:       "missing bearer",
			verifier:   &fakeVerifier{subject: "u1"},
			authHeader: "",
			wantStatus: http.StatusUnauthorized,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()

			h := NewSessionHandler(newTestCodec(t), &fakePlanStore{}, time.Hour, false, zap.NewNop()).
				WithIdentityVerifier(tt.verifier)

			req := httptest.NewRequest("POST", "/session/sync", strings.NewReader(`{"userId":"u1"}`))
			if tt.authHeader != "" {
				req.Header.Set("Authorization", tt.authHeader)
			}
			rec := httptest.NewRecorder()
			sessionRouter(h).ServeHTTP(rec, req)

			if rec.Code != tt.wantStatus {
				t.Errorf("Expected %d, got %d: %s", tt.wantStatus, rec.Code, rec.Body.String())
			}
		})
	}
}

func TestClear_ExpiresAllCookies(t *testing.T) {
	t.Parallel()

	h := NewSessionHandler(newTestCodec(t), &fakePlanStore{}, time.Hour, false, zap.NewNop())

	req := httptest.NewRequest("POST", "/session/clear", nil)
	rec := httptest.NewRecorder()
	sessionRouter(h).ServeHTTP(rec, req)

	if rec.Code != http.StatusOK {
		t.Fatalf("Expected 200, got %d", rec.Code)
	}
	for _, name := range []string{hint.CookieName, hint.LegacyUIDCookie, hint.LegacyPlanCookie} {
		cookie := findCookie(t, rec.Result(), name)
		if cookie == nil {
			t.Fatalf("Expected %s cookie in response", name)
		}
		if cookie.MaxAge >= 0 {
			t.Errorf("Expected %s to be expired, got MaxAge=%d", name, cookie.MaxAge)
		}
	}
}
