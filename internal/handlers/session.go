package handlers

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"strings"
	"time"

	"github.com/gorilla/mux"
	"go.uber.org/zap"

	"github.com/viziersvault/vault-session/internal/hint"
	"github.com/viziersvault/vault-session/internal/logger"
	"github.com/viziersvault/vault-session/internal/models"
	"github.com/viziersvault/vault-session/internal/request"
	"github.com/viziersvault/vault-session/internal/validation"
)

var errMissingBearer = errors.New("missing bearer token")

// PlanStore reads the stored plan for a user from the account store.
// Implementations return "free" for users without a stored plan.
type PlanStore interface {
	GetPlan(ctx context.Context, userID string) (string, error)
}

// IdentityVerifier checks a bearer credential and returns the subject it was
// issued to. Optional; when absent, sync trusts the posted user id.
type IdentityVerifier interface {
	Verify(ctx context.Context, token string) (string, error)
}

// SessionHandler handles session sync and teardown requests
type SessionHandler struct {
	codec    *hint.Codec // nil when no cookie secret is configured
	plans    PlanStore
	verifier IdentityVerifier
	ttl      time.Duration
	secure   bool
	logger   *zap.Logger
}

// NewSessionHandler creates a new session handler. codec may be nil, in which
// case sync degrades to a no-op that sets no cookie.
func NewSessionHandler(codec *hint.Codec, plans PlanStore, ttl time.Duration, secure bool, log *zap.Logger) *SessionHandler {
	return &SessionHandler{
		codec:  codec,
		plans:  plans,
		ttl:    ttl,
		secure: secure,
		logger: log,
	}
}

// WithIdentityVerifier enables bearer-token verification on sync.
func (h *SessionHandler) WithIdentityVerifier(v IdentityVerifier) *SessionHandler {
	h.verifier = v
	return h
}

// RegisterRoutes registers session routes on the given router
// The router should already have the /session prefix
func (h *SessionHandler) RegisterRoutes(r *mux.Router) {
	r.HandleFunc("/sync", h.Sync).Methods("POST")
	r.HandleFunc("/clear", h.Clear).Methods("POST")
	r.HandleFunc("/me", h.Me).Methods("GET")
}

// SyncRequest represents a session sync request
type SyncRequest struct {
	UserID string `json:"userId" validate:"required,min=1,max=128"`
}

// SyncResponse represents a session sync response
type SyncResponse struct {
	OK     bool        `json:"ok"`
	Minted bool        `json:"minted"`
	Tier   models.Tier `json:"tier,omitempty"`
}

// Sync looks up the caller's plan, mints a signed tier hint and installs it as
// a cookie, replacing any plaintext legacy cookies in the same response.
func (h *SessionHandler) Sync(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()

	var req SyncRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		respondJSONError(w, http.StatusBadRequest, "Invalid request body")
		return
	}
	req.UserID = validation.SanitizeText(req.UserID)
	if err := validation.Validate.Struct(&req); err != nil {
		respondJSONError(w, http.StatusBadRequest, "userId is required")
		return
	}

	if h.verifier != nil {
		subject, err := h.verifySubject(ctx, r)
		if err != nil {
			h.logger.Warn("identity_verification_failed",
				zap.String("user_id", logger.SanitizeUserID(req.UserID)),
				zap.Error(err))
			respondJSONError(w, http.StatusUnauthorized, "Unauthorized")
			return
		}
		if subject != req.UserID {
			h.logger.Warn("identity_subject_mismatch",
				zap.String("user_id", logger.SanitizeUserID(req.UserID)))
			respondJSONError(w, http.StatusUnauthorized, "Unauthorized")
			return
		}
	}

	if h.codec == nil {
		// No signing secret configured: nothing to mint, and failing the
		// request would break callers that treat sync as best-effort.
		h.logger.Debug("hint_minting_disabled")
		respondJSON(w, http.StatusOK, SyncResponse{OK: true, Minted: false})
		return
	}

	plan, err := h.plans.GetPlan(ctx, req.UserID)
	if err != nil {
		h.logger.Error("plan_lookup_failed",
			zap.String("user_id", logger.SanitizeUserID(req.UserID)),
			zap.Error(err))
		respondJSONError(w, http.StatusBadGateway, "Account store unavailable")
		return
	}

	tier := models.ResolveTier(plan)
	now := time.Now()
	token, err := h.codec.Sign(models.Hint{
		Subject:   req.UserID,
		Tier:      tier,
		IssuedAt:  now,
		ExpiresAt: now.Add(h.ttl),
	})
	if err != nil {
		h.logger.Error("hint_sign_failed", zap.Error(err))
		respondJSONError(w, http.StatusInternalServerError, "Internal server error")
		return
	}

	// Legacy cookies carried the uid and plan in cleartext; expire them in
	// the same response that installs the signed hint.
	expireCookie(w, hint.LegacyUIDCookie, h.secure)
	expireCookie(w, hint.LegacyPlanCookie, h.secure)
	http.SetCookie(w, &http.Cookie{
		Name:     hint.CookieName,
		Value:    token,
		Path:     "/",
		MaxAge:   int(h.ttl.Seconds()),
		HttpOnly: true,
		Secure:   h.secure,
		SameSite: http.SameSiteStrictMode,
	})

	h.logger.Info("session_synced",
		zap.String("user_id", logger.SanitizeUserID(req.UserID)),
		zap.String("tier", tier.String()))
	respondJSON(w, http.StatusOK, SyncResponse{OK: true, Minted: true, Tier: tier})
}

// Clear expires the hint cookie and both legacy cookies.
func (h *SessionHandler) Clear(w http.ResponseWriter, _ *http.Request) {
	expireCookie(w, hint.CookieName, h.secure)
	expireCookie(w, hint.LegacyUIDCookie, h.secure)
	expireCookie(w, hint.LegacyPlanCookie, h.secure)
	respondJSON(w, http.StatusOK, map[string]any{"ok": true})
}

// MeResponse describes the caller's session as seen by the service.
type MeResponse struct {
	Authenticated bool        `json:"authenticated"`
	UserID        string      `json:"userId,omitempty"`
	Tier          models.Tier `json:"tier"`
	ExpiresAt     *time.Time  `json:"expiresAt,omitempty"`
}

// Me reports the verified hint attached to the request, if any. Anonymous
// callers get the free tier rather than an error.
func (h *SessionHandler) Me(w http.ResponseWriter, r *http.Request) {
	hd, ok := request.HintFromContext(r)
	if !ok {
		respondJSON(w, http.StatusOK, MeResponse{Authenticated: false, Tier: models.TierFree})
		return
	}
	respondJSON(w, http.StatusOK, MeResponse{
		Authenticated: true,
		UserID:        hd.Subject,
		Tier:          hd.Tier,
		ExpiresAt:     &hd.ExpiresAt,
	})
}

func (h *SessionHandler) verifySubject(ctx context.Context, r *http.Request) (string, error) {
	auth := r.Header.Get("Authorization")
	token, ok := strings.CutPrefix(auth, "Bearer ")
	if !ok || token == "" {
		return "", errMissingBearer
	}
	return h.verifier.Verify(ctx, token)
}

// expireCookie overwrites a cookie with an immediately-expiring one. Attributes
// must match the original set for browsers to drop it.
func expireCookie(w http.ResponseWriter, name string, secure bool) {
	http.SetCookie(w, &http.Cookie{
		Name:     name,
		Value:    "",
		Path:     "/",
		MaxAge:   -1,
		HttpOnly: true,
		Secure:   secure,
		SameSite: http.SameSiteStrictMode,
	})
}
