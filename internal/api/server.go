package api

import (
	"encoding/json"
	"errors"
	"net/http"
	"strconv"

	"github.com/go-chi/chi/v5"
	"github.com/rs/zerolog"

	"printshop-workflow/internal/artifacts"
	"printshop-workflow/internal/auth"
	"printshop-workflow/internal/changefeed"
	"printshop-workflow/internal/config"
	"printshop-workflow/internal/notify"
	"printshop-workflow/internal/otp"
	"printshop-workflow/internal/store"
	"printshop-workflow/internal/telemetry"
	"printshop-workflow/internal/workflow"
)

// Server wires HTTP handlers for the workflow service.
type Server struct {
	cfg       config.Config
	store     *store.Store
	engine    *workflow.Engine
	otp       *otp.Service
	queue     *notify.Queue
	feed      *changefeed.Feed
	artifacts *artifacts.Service
	log       zerolog.Logger
}

// New constructs the API server.
func New(cfg config.Config, st *store.Store, engine *workflow.Engine, otpSvc *otp.Service, queue *notify.Queue, feed *changefeed.Feed, art *artifacts.Service, log zerolog.Logger) *Server {
	return &Server{
		cfg:       cfg,
		store:     st,
		engine:    engine,
		otp:       otpSvc,
		queue:     queue,
		feed:      feed,
		artifacts: art,
		log:       log,
	}
}

// Router builds the HTTP router.
func (s *Server) Router() http.Handler {
	r := chi.NewRouter()

	r.Get("/healthz", func(w http.ResponseWriter, _ *http.Request) {
		w.WriteHeader(http.StatusOK)
		_, _ = w.Write([]byte(`{"status":"ok"}`))
	})
	r.Mount("/metrics", telemetry.Handler())

	r.Group(func(r chi.Router) {
		r.Use(auth.Middleware(s.cfg.JWTSecret))

		r.Post("/jobs", s.handleCreateJob)
		r.Get("/jobs/{id}", s.handleGetJob)
		r.Get("/jobs/{id}/logs", s.handleJobLogs)

		r.Get("/pool", s.handlePool)
		r.Get("/active", s.handleActive)
		r.Post("/jobs/{id}/claim", s.handleClaim)
		r.Post("/jobs/{id}/advance", s.handleAdvance)
		r.Post("/jobs/{id}/approve", s.handleAdvance)
		r.Post("/jobs/{id}/rework", s.handleRework)
		r.Post("/jobs/{id}/payment", s.handlePayment)

		r.Post("/jobs/{id}/otp/send", s.handleOTPSend)
		r.Post("/jobs/{id}/otp/verify", s.handleOTPVerify)
		r.Post("/jobs/{id}/notify/resend", s.handleNotifyResend)

		r.Post("/jobs/{id}/artifacts", s.handleArtifactUpload)

		r.Get("/events", s.handleEvents)
		r.Get("/notify/dlq", s.handleNotifyDLQ)
	})

	return r
}

func jobID(r *http.Request) (int64, error) {
	return strconv.ParseInt(chi.URLParam(r, "id"), 10, 64)
}

func identity(r *http.Request) (auth.Identity, bool) {
	return auth.FromContext(r.Context())
}

func writeJSON(w http.ResponseWriter, code int, payload any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(code)
	_ = json.NewEncoder(w).Encode(payload)
}

type apiError struct {
	Code    string `json:"code"`
	Message string `json:"message"`
}

// writeError maps domain sentinels to HTTP statuses and machine-readable
// codes so dashboards can show the specific corrective action.
func writeError(w http.ResponseWriter, err error) {
	var status int
	var code string

	switch {
	case errors.Is(err, workflow.ErrAlreadyTaken):
		status, code = http.StatusConflict, "ALREADY_TAKEN"
	case errors.Is(err, workflow.ErrGuardViolation):
		status, code = http.StatusConflict, "GUARD_VIOLATION"
	case errors.Is(err, workflow.ErrStaleState):
		status, code = http.StatusConflict, "STALE_STATE"
	case errors.Is(err, workflow.ErrInvalidStage):
		status, code = http.StatusConflict, "INVALID_STAGE"
	case errors.Is(err, workflow.ErrNotOwner):
		status, code = http.StatusForbidden, "NOT_OWNER"
	case errors.Is(err, workflow.ErrWrongRole):
		status, code = http.StatusForbidden, "WRONG_ROLE"
	case errors.Is(err, workflow.ErrMissingArtifact):
		status, code = http.StatusUnprocessableEntity, "MISSING_ARTIFACT"
	case errors.Is(err, workflow.ErrPaymentModeRequired):
		status, code = http.StatusUnprocessableEntity, "PAYMENT_MODE_REQUIRED"
	case errors.Is(err, workflow.ErrOTPRequired):
		status, code = http.StatusUnprocessableEntity, "OTP_REQUIRED"
	case errors.Is(err, otp.ErrCooldownActive):
		status, code = http.StatusTooManyRequests, "COOLDOWN_ACTIVE"
	case errors.Is(err, otp.ErrRateLimited):
		status, code = http.StatusTooManyRequests, "RATE_LIMITED"
	case errors.Is(err, otp.ErrTooManyAttempts):
		status, code = http.StatusTooManyRequests, "TOO_MANY_ATTEMPTS"
	case errors.Is(err, otp.ErrExpired):
		status, code = http.StatusGone, "EXPIRED"
	case errors.Is(err, otp.ErrInvalidCode):
		status, code = http.StatusBadRequest, "INVALID_CODE"
	case errors.Is(err, otp.ErrNotFound):
		status, code = http.StatusNotFound, "OTP_NOT_FOUND"
	case errors.Is(err, otp.ErrDispatchFailed):
		status, code = http.StatusBadGateway, "DISPATCH_FAILED"
	case errors.Is(err, store.ErrJobNotFound):
		status, code = http.StatusNotFound, "JOB_NOT_FOUND"
	default:
		status, code = http.StatusInternalServerError, "INTERNAL"
	}

	writeJSON(w, status, apiError{Code: code, Message: err.Error()})
}
