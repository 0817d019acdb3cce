package apiv1

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/rs/zerolog"

	"habit-ai-billing/internal/domain"
	"habit-ai-billing/internal/infra/api"
	"habit-ai-billing/internal/infra/logging"
	"habit-ai-billing/internal/infra/metrics"
	red "habit-ai-billing/internal/infra/redis"
	"habit-ai-billing/internal/usecase"
)

// RateLimit bounds per-user request rates on the payment endpoints.
type RateLimit struct {
	Requests int
	Window   time.Duration
}

// Server exposes the payment verification and cancellation endpoints.
//
// Verify deliberately answers every outcome with HTTP 200 and puts failures
// in an `error` field: some client fetch wrappers treat non-2xx bodies as
// unreadable, and the client must be able to branch on the failure cause.
// Cancel answers failures with 400 and an `error` field.
type Server struct {
	verifyUC usecase.VerifyUseCase
	cancelUC usecase.CancelUseCase
	auth     *api.AuthManager
	limiter  *red.RateLimiter
	rl       RateLimit
	log      *zerolog.Logger
}

func NewServer(
	verifyUC usecase.VerifyUseCase,
	cancelUC usecase.CancelUseCase,
	auth *api.AuthManager,
	limiter *red.RateLimiter,
	rl RateLimit,
	logger *zerolog.Logger,
) *Server {
	return &Server{verifyUC: verifyUC, cancelUC: cancelUC, auth: auth, limiter: limiter, rl: rl, log: logger}
}

// Register mounts the payment routes. CORS (including OPTIONS preflights) is
// handled by api.CORS on the parent router.
func (s *Server) Register(r chi.Router) {
	r.Route("/api/v1/payment", func(r chi.Router) {
		r.Post("/verify", s.handleVerify)
		r.Post("/cancel", s.handleCancel)
	})
}

type verifyRequest struct {
	ImpUID      string `json:"imp_uid"`
	MerchantUID string `json:"merchant_uid"`
	Mode        string `json:"mode"`
	PaymentID   string `json:"payment_id"`
}

type cancelRequest struct {
	ImpUID         string `json:"imp_uid"`
	MerchantUID    string `json:"merchant_uid"`
	Reason         string `json:"reason"`
	CancelAmount   int64  `json:"cancel_amount"`
	Action         string `json:"action"`
	SubscriptionID string `json:"subscription_id"`
	PaymentID      string `json:"payment_id"`
}

func (s *Server) handleVerify(w http.ResponseWriter, r *http.Request) {
	start := time.Now()
	ctx := r.Context()

	userID, err := s.auth.UserFromRequest(r)
	if err != nil {
		s.verifyFail(w, start, "unauthorized", "Unauthorized", err.Error())
		return
	}
	ctx = logging.WithUserID(ctx, userID)

	if !s.allow(ctx, userID, "verify") {
		s.verifyFail(w, start, "rate_limited", "Too Many Requests", "rate limit exceeded")
		return
	}

	var req verifyRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		s.verifyFail(w, start, "bad_request", "Bad Request", "invalid JSON body")
		return
	}
	if req.Mode != "" {
		logging.With(ctx, s.log).Debug().Str("mode", req.Mode).Msg("client-reported payment mode")
	}

	payload, err := s.verifyUC.Verify(ctx, req.ImpUID, req.PaymentID)
	if err != nil {
		s.verifyFail(w, start, failReason(err), errorLabel(err), err.Error())
		return
	}

	metrics.PaymentVerifyRequests.WithLabelValues("ok", "").Inc()
	metrics.PaymentVerifyDuration.WithLabelValues("ok").Observe(time.Since(start).Seconds())
	writeJSON(w, http.StatusOK, map[string]any{"success": true, "payment": payload})
}

func (s *Server) handleCancel(w http.ResponseWriter, r *http.Request) {
	start := time.Now()
	ctx := r.Context()

	userID, err := s.auth.UserFromRequest(r)
	if err != nil {
		s.cancelFail(w, start, "unauthorized", err.Error())
		return
	}
	ctx = logging.WithUserID(ctx, userID)

	if !s.allow(ctx, userID, "cancel") {
		s.cancelFail(w, start, "rate_limited", "rate limit exceeded")
		return
	}

	var req cancelRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		s.cancelFail(w, start, "bad_request", "invalid JSON body")
		return
	}

	result, err := s.cancelUC.Cancel(ctx, usecase.CancelInput{
		ImpUID:         req.ImpUID,
		MerchantUID:    req.MerchantUID,
		PaymentID:      req.PaymentID,
		SubscriptionID: req.SubscriptionID,
		Reason:         req.Reason,
		Action:         req.Action,
		CancelAmount:   req.CancelAmount,
	})
	if err != nil {
		s.cancelFail(w, start, failReason(err), err.Error())
		return
	}

	metrics.PaymentCancelRequests.WithLabelValues("ok", "").Inc()
	metrics.PaymentCancelDuration.WithLabelValues("ok").Observe(time.Since(start).Seconds())
	writeJSON(w, http.StatusOK, result)
}

// allow is best-effort: a broken limiter never blocks payments.
func (s *Server) allow(ctx context.Context, userID, endpoint string) bool {
	if s.limiter == nil || s.rl.Requests <= 0 {
		return true
	}
	ok, err := s.limiter.Allow(ctx, red.UserEndpointKey(userID, endpoint), s.rl.Requests, s.rl.Window)
	if err != nil {
		logging.With(ctx, s.log).Warn().Err(err).Msg("rate limiter unavailable; allowing request")
		return true
	}
	return ok
}

func (s *Server) verifyFail(w http.ResponseWriter, start time.Time, reason, label, details string) {
	metrics.PaymentVerifyRequests.WithLabelValues("fail", reason).Inc()
	metrics.PaymentVerifyDuration.WithLabelValues("fail").Observe(time.Since(start).Seconds())
	writeJSON(w, http.StatusOK, map[string]any{"error": label, "details": details})
}

func (s *Server) cancelFail(w http.ResponseWriter, start time.Time, reason, details string) {
	metrics.PaymentCancelRequests.WithLabelValues("fail", reason).Inc()
	metrics.PaymentCancelDuration.WithLabelValues("fail").Observe(time.Since(start).Seconds())
	writeJSON(w, http.StatusBadRequest, map[string]any{"error": details})
}

// failReason maps domain errors onto the bounded metric label set.
func failReason(err error) string {
	switch {
	case errors.Is(err, domain.ErrUnauthorized):
		return "unauthorized"
	case errors.Is(err, domain.ErrInvalidArgument):
		return "bad_request"
	case errors.Is(err, domain.ErrConfiguration):
		return "config"
	case errors.Is(err, domain.ErrGateway):
		return "gateway"
	case errors.Is(err, domain.ErrLedger), errors.Is(err, domain.ErrNotFound):
		return "ledger"
	default:
		return "unknown"
	}
}

// errorLabel is the short, client-facing error class for the verify body.
func errorLabel(err error) string {
	switch {
	case errors.Is(err, domain.ErrUnauthorized):
		return "Unauthorized"
	case errors.Is(err, domain.ErrInvalidArgument):
		return "Bad Request"
	case errors.Is(err, domain.ErrConfiguration):
		return "Server Configuration Error"
	case errors.Is(err, domain.ErrGateway):
		return "Payment Verification Failed"
	default:
		return "Internal Error"
	}
}

func writeJSON(w http.ResponseWriter, status int, body any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(body)
}
