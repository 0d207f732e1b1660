package middleware

import (
	"net/http"
	"net/http/httptest"
	"testing"

	"go.uber.org/zap"
)

func originMiddleware(allowed ...string) http.Handler {
	origins := func() []string { return allowed }
	return OriginCheck(origins, zap.NewNop())(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		w.WriteHeader(http.StatusOK)
	}))
}

func TestOriginCheck(t *testing.T) {
	t.Parallel()

	allowed := []string{"http://localhost:3000", "https://viziersvault.com"}

	tests := []struct {
		name       string
		origin     string
		referer    string
		wantStatus int
	}{
		{
			name:       "allowed origin",
			origin:     "http://localhost:3000",
			wantStatus: http.StatusOK,
		},
		{
			name:       "second allowed origin",
			origin:     "https://viziersvault.com",
			wantStatus: http.StatusOK,
		},
		{
			name:       "origin is case-insensitive",
			origin:     "HTTPS://ViziersVault.com",
			wantStatus: http.StatusOK,
		},
		{
			name:       "disallowed origin",
			origin:     "https://evil.example.com",
			wantStatus: http.StatusForbidden,
		},
		{
			name:       "origin prefix is not enough",
			origin:     "https://viziersvault.com.evil.example.com",
			wantStatus: http.StatusForbidden,
		},
		{
			name:       "referer fallback when origin absent",
			referer:    "https://viziersvault.com/party/123",
			wantStatus: http.StatusOK,
		},
		{
			name:       "disallowed referer",
			referer:    "https://evil.example.com/page",
			wantStatus: http.StatusForbidden,
		},
		{
			name:       "bad origin wins over good referer",
			origin:     "https://evil.example.com",
			referer:    "https://viziersvault.com/party/123",
			wantStatus: http.StatusForbidden,
		},
		{
			name:       "neither header",
			wantStatus: http.StatusForbidden,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()

			req := httptest.NewRequest("POST", "/session/sync", nil)
			if tt.origin != "" {
				req.Header.Set("Origin", tt.origin)
			}
			if tt.referer != "" {
				req.Header.Set("Referer", tt.referer)
			}

			rec := httptest.NewRecorder()
			originMiddleware(allowed...).ServeHTTP(rec, req)

			if rec.Code != tt.wantStatus {
				t.Errorf("Expected %d, got %d", tt.wantStatus, rec.Code)
			}
			if tt.wantStatus == http.StatusForbidden {
				if len(rec.Result().Cookies()) != 0 {
					t.Error("Expected no cookies on a rejected request")
				}
				if ct := rec.Header().Get("Content-Type"); ct != "application/json" {
					t.Errorf("Expected JSON error body, got Content-Type %q", ct)
				}
			}
		})
	}
}

func TestOriginCheck_SafeMethodsPassThrough(t *testing.T) {
	t.Parallel()

	for _, method := range []string{"GET", "HEAD", "OPTIONS"} {
		req := httptest.NewRequest(method, "/session/me", nil)
		rec := httptest.NewRecorder()
		originMiddleware("http://localhost:3000").ServeHTTP(rec, req)

		if rec.Code != http.StatusOK {
			t.Errorf("%s: expected 200 without origin headers, got %d", method, rec.Code)
		}
	}
}

func TestOriginCheck_PicksUpReloadedList(t *testing.T) {
	t.Parallel()

	current := []string{"http://localhost:3000"}
	origins := func() []string { return current }
	handler := OriginCheck(origins, zap.NewNop())(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		w.WriteHeader(http.StatusOK)
	}))

	req := httptest.NewRequest("POST", "/session/sync", nil)
	req.Header.Set("Origin", "https://staging.viziersvault.com")
	rec := httptest.NewRecorder()
	handler.ServeHTTP(rec, req)
	if rec.Code != http.StatusForbidden {
		t.Fatalf("Expected 403 before reload, got %d", rec.Code)
	}

	current = append(current, "https://staging.viziersvault.com")
	rec = httptest.NewRecorder()
	handler.ServeHTTP(rec, req)
	if rec.Code != http.StatusOK {
		t.Errorf("Expected 200 after reload, got %d", rec.Code)
	}
}
