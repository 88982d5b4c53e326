package httptransport

import (
	"net/http"
	"strings"
	"time"

	"github.com/go-chi/chi/v5"

	"bastion/internal/token"
	dErrors "bastion/pkg/domain-errors"
	"bastion/pkg/platform/httputil"
)

func (h *Handler) handleValidatePassword(w http.ResponseWriter, r *http.Request) {
	var req validatePasswordRequest
	if err := httputil.DecodeJSON(r, &req); err != nil {
		httputil.WriteError(w, err)
		return
	}
	httputil.WriteJSON(w, http.StatusOK, h.Credentials.ValidatePassword(req.Password))
}

func (h *Handler) handleEncrypt(w http.ResponseWriter, r *http.Request) {
	var req encryptRequest
	if err := h.decode(r, &req); err != nil {
		httputil.WriteError(w, err)
		return
	}
	payload, err := h.Credentials.Encrypt(r.Context(), []byte(req.Plaintext), []byte(req.AAD))
	if err != nil {
		h.fail(w, r, err, "encryption failed")
		return
	}
	httputil.WriteJSON(w, http.StatusOK, encryptResponse{Payload: payload})
}

func (h *Handler) handleDecrypt(w http.ResponseWriter, r *http.Request) {
	var req decryptRequest
	if err := h.decode(r, &req); err != nil {
		httputil.WriteError(w, err)
		return
	}
	plaintext, err := h.Credentials.Decrypt(r.Context(), &req.Payload, []byte(req.AAD))
	if err != nil {
		h.fail(w, r, err, "decryption failed")
		return
	}
	httputil.WriteJSON(w, http.StatusOK, decryptResponse{Plaintext: string(plaintext)})
}

func (h *Handler) handleGenerateCode(w http.ResponseWriter, r *http.Request) {
	code, err := h.Credentials.GenerateCode(r.Context())
	if err != nil {
		h.fail(w, r, err, "code generation failed")
		return
	}
	httputil.WriteJSON(w, http.StatusOK, codeResponse{Code: code})
}

func (h *Handler) handleEnrollTOTP(w http.ResponseWriter, r *http.Request) {
	subjectID, ok := h.subject(w, r)
	if !ok {
		return
	}
	enrollment, err := h.Credentials.EnrollTOTP(r.Context(), subjectID)
	if err != nil {
		h.fail(w, r, err, "totp enrolment failed")
		return
	}
	httputil.WriteJSON(w, http.StatusCreated, enrollment)
}

// handleVerifyTOTP answers 401 on a wrong code so the auth route limit
// counts it; correct codes are refunded by the limiter.
func (h *Handler) handleVerifyTOTP(w http.ResponseWriter, r *http.Request) {
	var req verifyTOTPRequest
	if err := h.decode(r, &req); err != nil {
		httputil.WriteError(w, err)
		return
	}
	if !h.Credentials.VerifyTOTP(r.Context(), req.Code, req.Secret) {
		httputil.WriteError(w, dErrors.New(dErrors.CodeUnauthorized, "Unauthorized: invalid code"))
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

func (h *Handler) handleIssueToken(w http.ResponseWriter, r *http.Request) {
	var req issueTokenRequest
	if err := h.decode(r, &req); err != nil {
		httputil.WriteError(w, err)
		return
	}
	tok, err := h.Tokens.Issue(r.Context(), token.IssueRequest{
		SubjectID: req.SubjectID,
		Roles:     req.Roles,
		Scope:     req.Scope,
	}, time.Duration(req.TTLSeconds)*time.Second)
	if err != nil {
		h.fail(w, r, err, "token issuance failed")
		return
	}
	httputil.WriteJSON(w, http.StatusCreated, tok)
}

func (h *Handler) handleRevokeToken(w http.ResponseWriter, r *http.Request) {
	var req revokeTokenRequest
	if r.ContentLength != 0 {
		if err := httputil.DecodeJSON(r, &req); err != nil {
			httputil.WriteError(w, err)
			return
		}
	}
	raw := strings.TrimSpace(req.Token)
	if raw == "" {
		raw, _ = strings.CutPrefix(r.Header.Get("Authorization"), "Bearer ")
		raw = strings.TrimSpace(raw)
	}
	if err := h.Tokens.Revoke(r.Context(), raw); err != nil {
		h.fail(w, r, err, "token revocation failed")
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

func (h *Handler) handleRevokeAll(w http.ResponseWriter, r *http.Request) {
	var req revokeAllRequest
	if err := h.decode(r, &req); err != nil {
		httputil.WriteError(w, err)
		return
	}
	n, err := h.Tokens.RevokeAll(r.Context(), req.Tokens)
	if err != nil {
		h.fail(w, r, err, "batch revocation failed")
		return
	}
	httputil.WriteJSON(w, http.StatusOK, revokeAllResponse{Revoked: n})
}

func (h *Handler) handleSecuritySummary(w http.ResponseWriter, r *http.Request) {
	summary, err := h.Audit.GetSecuritySummary(r.Context(), r.URL.Query().Get("timeframe"))
	if err != nil {
		h.fail(w, r, err, "security summary failed")
		return
	}
	httputil.WriteJSON(w, http.StatusOK, summary)
}

func (h *Handler) handleAuditTrail(w http.ResponseWriter, r *http.Request) {
	trail, err := h.Audit.Trail(r.Context(), chi.URLParam(r, "subjectID"))
	if err != nil {
		h.fail(w, r, err, "audit trail failed")
		return
	}
	httputil.WriteJSON(w, http.StatusOK, trail)
}
