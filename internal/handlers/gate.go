package handlers

import (
	"context"
	"errors"
	"net/http"
	"strconv"
	"time"

	"github.com/gorilla/mux"
	"go.uber.org/zap"

	"github.com/viziersvault/vault-session/internal/logger"
	"github.com/viziersvault/vault-session/internal/models"
	"github.com/viziersvault/vault-session/internal/ratelimit"
	"github.com/viziersvault/vault-session/internal/request"
)

// GateHandler admits or denies quota-gated actions
type GateHandler struct {
	limiter *ratelimit.Limiter
	logger  *zap.Logger
}

// NewGateHandler creates a new gate handler
func NewGateHandler(l *ratelimit.Limiter, log *zap.Logger) *GateHandler {
	return &GateHandler{limiter: l, logger: log}
}

// RegisterRoutes registers gate routes on the given router
// The router should already have the /gate prefix
func (h *GateHandler) RegisterRoutes(r *mux.Router) {
	r.HandleFunc("/{action}", h.Admit).Methods("POST")
	r.HandleFunc("/{action}", h.Peek).Methods("GET")
}

// GateResponse reports an admission decision together with the budget state
// that the rate limit headers also carry.
type GateResponse struct {
	OK        bool        `json:"ok"`
	Allowed   bool        `json:"allowed"`
	Tier      models.Tier `json:"tier"`
	Limit     int64       `json:"limit"`
	Remaining int64       `json:"remaining"`
	Reset     int64       `json:"reset"`
}

// Admit consumes one slot of the caller's quota for the named action. A denial
// is reported as 429 with a Retry-After; the consumed-slot bookkeeping is
// identical either way.
func (h *GateHandler) Admit(w http.ResponseWriter, r *http.Request) {
	h.decide(w, r, h.limiter.Admit)
}

// Peek reports the caller's remaining budget without consuming a slot.
func (h *GateHandler) Peek(w http.ResponseWriter, r *http.Request) {
	h.decide(w, r, h.limiter.Peek)
}

type decideFunc func(ctx context.Context, tier models.Tier, callerKey string, action ratelimit.Action) (ratelimit.Decision, error)

func (h *GateHandler) decide(w http.ResponseWriter, r *http.Request, fn decideFunc) {
	action := ratelimit.Action(mux.Vars(r)["action"])
	tier := request.Tier(r)
	callerKey := request.CallerKey(r)

	decision, err := fn(r.Context(), tier, callerKey, action)
	if err != nil {
		if errors.Is(err, ratelimit.ErrUnknownAction) {
			respondJSONError(w, http.StatusBadRequest, "Unknown action")
			return
		}
		h.logger.Error("rate_limit_check_failed",
			zap.String("action", string(action)),
			zap.Error(err))
		respondJSONError(w, http.StatusInternalServerError, "Internal server error")
		return
	}

	writeRateLimitHeaders(w, tier, action, decision)

	if !decision.Allowed {
		retryAfter := time.Until(decision.ResetAt).Seconds()
		if retryAfter < 1 {
			retryAfter = 1
		}
		w.Header().Set("Retry-After", strconv.Itoa(int(retryAfter)))
		h.logger.Info("rate_limit_exceeded",
			zap.String("action", string(action)),
			zap.String("tier", tier.String()),
			zap.String("caller", logger.SanitizeUserID(callerKey)))
		respondJSONError(w, http.StatusTooManyRequests, "Rate limit exceeded. Please try again later.")
		return
	}

	respondJSON(w, http.StatusOK, GateResponse{
		OK:        true,
		Allowed:   true,
		Tier:      tier,
		Limit:     decision.Limit,
		Remaining: decision.Remaining,
		Reset:     decision.ResetAt.Unix(),
	})
}

func writeRateLimitHeaders(w http.ResponseWriter, tier models.Tier, action ratelimit.Action, d ratelimit.Decision) {
	w.Header().Set("X-RateLimit-Limit", strconv.FormatInt(d.Limit, 10))
	w.Header().Set("X-RateLimit-Remaining", strconv.FormatInt(d.Remaining, 10))
	w.Header().Set("X-RateLimit-Reset", strconv.FormatInt(d.ResetAt.Unix(), 10))
	w.Header().Set("X-RateLimit-Tier", tier.String())
	w.Header().Set("X-RateLimit-Action", string(action))
}
