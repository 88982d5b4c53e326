// Package httptransport is the thin HTTP adapter over the engine services.
// Handlers decode and validate requests, pull caller identity from the
// request context and delegate; no business rules live here.
package httptransport

import (
	"errors"
	"log/slog"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	chimw "github.com/go-chi/chi/v5/middleware"
	"github.com/go-playground/validator/v10"

	platformmetrics "bastion/internal/platform/metrics"
	rlmw "bastion/internal/ratelimit/middleware"
	rlmodels "bastion/internal/ratelimit/models"
	dErrors "bastion/pkg/domain-errors"
	"bastion/pkg/platform/httputil"
	adminmw "bastion/pkg/platform/middleware/admin"
	auth "bastion/pkg/platform/middleware/auth"
	metadata "bastion/pkg/platform/middleware/metadata"
	request "bastion/pkg/platform/middleware/request"
	"bastion/pkg/platform/middleware/requesttime"
	"bastion/pkg/requestcontext"
)

const (
	RoleAdmin             = "admin"
	RoleComplianceOfficer = "compliance_officer"

	DefaultRequestTimeout = 30 * time.Second
)

// Deps are the services behind the API. KYC and ESign are optional; their
// routes are not mounted when nil.
type Deps struct {
	Credentials CredentialService
	Tokens      TokenService
	Audit       AuditService
	Compliance  ComplianceService
	Blocks      BlockService
	KYC         KYCService
	ESign       ESignService

	Limiter        *rlmw.Middleware
	Health         http.Handler
	Metrics        http.Handler
	HTTPMetrics    *platformmetrics.Metrics
	AdminToken     string
	RequestTimeout time.Duration
}

type Handler struct {
	Deps
	logger   *slog.Logger
	verifier auth.TokenVerifier
	validate *validator.Validate
}

func New(deps Deps, logger *slog.Logger) (*Handler, error) {
	switch {
	case deps.Credentials == nil:
		return nil, errors.New("credential service is required")
	case deps.Tokens == nil:
		return nil, errors.New("token service is required")
	case deps.Audit == nil:
		return nil, errors.New("audit service is required")
	case deps.Compliance == nil:
		return nil, errors.New("compliance service is required")
	case deps.Blocks == nil:
		return nil, errors.New("block service is required")
	case deps.Limiter == nil:
		return nil, errors.New("rate limit middleware is required")
	}
	if deps.RequestTimeout <= 0 {
		deps.RequestTimeout = DefaultRequestTimeout
	}
	if logger == nil {
		logger = slog.Default()
	}
	return &Handler{
		Deps:     deps,
		logger:   logger,
		verifier: NewBearerVerifier(deps.Tokens),
		validate: newValidator(),
	}, nil
}

// Routes builds the router. The rate limiter runs before authentication on
// public routes and right after it on authenticated ones, so subject keyed
// limits see the caller.
func (h *Handler) Routes() http.Handler {
	r := chi.NewRouter()
	r.Use(chimw.Recoverer)
	r.Use(request.RequestID)
	r.Use(requesttime.Middleware)
	r.Use(metadata.ClientMetadata)
	if h.HTTPMetrics != nil {
		r.Use(h.HTTPMetrics.Middleware)
	}
	r.Use(h.accessLog)
	r.Use(chimw.Timeout(h.RequestTimeout))

	if h.Health != nil {
		r.Method(http.MethodGet, "/health", h.Health)
	}
	if h.Metrics != nil {
		r.Method(http.MethodGet, "/metrics", h.Metrics)
	}

	requireAuth := auth.RequireAuth(h.verifier, h.logger)

	r.Route("/v1", func(r chi.Router) {
		r.Group(func(r chi.Router) {
			r.Use(h.Limiter.Limit(rlmodels.RouteGeneral))
			r.Post("/passwords/validate", h.handleValidatePassword)
		})

		r.Group(func(r chi.Router) {
			r.Use(h.Limiter.RejectBlocked)
			r.Use(requireAuth)
			r.Use(h.Limiter.Limit(rlmodels.RouteAuth))
			r.Post("/codes/totp/verify", h.handleVerifyTOTP)
		})

		if h.KYC != nil {
			r.Group(func(r chi.Router) {
				r.Use(h.Limiter.RejectBlocked)
				r.Use(requireAuth)
				r.Use(h.Limiter.Limit(rlmodels.RouteKYC))
				r.Post("/kyc/verifications", h.handleKYCVerify)
			})
		}

		r.Group(func(r chi.Router) {
			r.Use(h.Limiter.RejectBlocked)
			r.Use(requireAuth)
			r.Use(h.Limiter.Limit(rlmodels.RouteAPI))

			r.Post("/tokens/revoke", h.handleRevokeToken)
			r.Post("/encrypt", h.handleEncrypt)
			r.Post("/decrypt", h.handleDecrypt)
			r.Post("/codes", h.handleGenerateCode)
			r.Post("/codes/totp", h.handleEnrollTOTP)

			r.Post("/consents", h.handleRecordConsent)
			r.Get("/consents", h.handleListConsents)
			r.Post("/consents/withdraw", h.handleWithdrawConsent)
			r.Post("/dsr", h.handleSubmitDSR)
			r.Get("/dsr/{requestID}", h.handleGetDSR)
			r.Post("/compliance/assess", h.handleAssess)

			if h.KYC != nil {
				r.Post("/kyc/requirements", h.handleKYCRequirements)
				r.Get("/kyc/profile", h.handleKYCProfile)
			}
			if h.ESign != nil {
				r.Post("/esign/envelopes", h.handleCreateEnvelope)
				r.Get("/esign/envelopes/{envelopeID}", h.handleEnvelopeStatus)
			}

			r.Group(func(r chi.Router) {
				r.Use(auth.RequireRole(RoleAdmin, h.logger))
				r.Get("/security/summary", h.handleSecuritySummary)
				r.Get("/audit/subjects/{subjectID}", h.handleAuditTrail)
			})
			r.Group(func(r chi.Router) {
				r.Use(auth.RequireRole(RoleComplianceOfficer, h.logger))
				r.Patch("/dsr/{requestID}/status", h.handleUpdateDSRStatus)
				r.Get("/dsr/overdue", h.handleOverdueDSR)
				r.Post("/breaches", h.handleRecordBreach)
				r.Get("/breaches", h.handleListBreaches)
			})
		})
	})

	r.Route("/admin", func(r chi.Router) {
		r.Use(h.Limiter.Limit(rlmodels.RouteGeneral))
		r.Use(adminmw.RequireAdminToken(h.AdminToken, h.logger))
		r.Post("/tokens", h.handleIssueToken)
		r.Post("/tokens/revoke-all", h.handleRevokeAll)
		r.Post("/ip-blocks", h.handleBlockIP)
		r.Get("/ip-blocks/{ip}", h.handleBlockStatus)
		r.Delete("/ip-blocks/{ip}", h.handleUnblockIP)
	})

	return r
}

func (h *Handler) accessLog(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		start := time.Now()
		ww := chimw.NewWrapResponseWriter(w, r.ProtoMajor)
		next.ServeHTTP(ww, r)
		ctx := r.Context()
		h.logger.InfoContext(ctx, "http request",
			"method", r.Method,
			"path", r.URL.Path,
			"status", ww.Status(),
			"duration_ms", time.Since(start).Milliseconds(),
			"request_id", requestcontext.RequestID(ctx),
		)
	})
}

// fail logs server side failures and renders err.
func (h *Handler) fail(w http.ResponseWriter, r *http.Request, err error, msg string) {
	ctx := r.Context()
	if httputil.StatusFor(dErrors.CodeOf(err)) >= http.StatusInternalServerError {
		h.logger.ErrorContext(ctx, msg,
			"error", err,
			"request_id", requestcontext.RequestID(ctx),
		)
	} else {
		h.logger.DebugContext(ctx, msg,
			"error", err,
			"request_id", requestcontext.RequestID(ctx),
		)
	}
	httputil.WriteError(w, err)
}

// subject returns the authenticated caller. RequireAuth guarantees it is set.
func (h *Handler) subject(w http.ResponseWriter, r *http.Request) (string, bool) {
	id := requestcontext.SubjectID(r.Context())
	if id == "" {
		h.logger.ErrorContext(r.Context(), "subject missing from context despite auth middleware",
			"request_id", requestcontext.RequestID(r.Context()),
		)
		httputil.WriteError(w, dErrors.New(dErrors.CodeInternal, "authentication context error"))
		return "", false
	}
	return id, true
}
