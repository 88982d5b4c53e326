package httptransport

import (
	"net/http"

	"github.com/go-chi/chi/v5"

	"bastion/internal/kyc"
	"bastion/pkg/platform/httputil"
)

func (h *Handler) handleKYCRequirements(w http.ResponseWriter, r *http.Request) {
	subjectID, ok := h.subject(w, r)
	if !ok {
		return
	}
	var req kycRequirementsRequest
	if err := h.decode(r, &req); err != nil {
		httputil.WriteError(w, err)
		return
	}
	tier, docs := h.KYC.Requirements(kyc.SubjectContext{
		SubjectID:                subjectID,
		ExpectedTransactionValue: req.ExpectedTransactionValue,
		IsBusinessOwner:          req.IsBusinessOwner,
	})
	httputil.WriteJSON(w, http.StatusOK, kycRequirementsResponse{Tier: tier, RequiredDocuments: docs})
}

func (h *Handler) handleKYCVerify(w http.ResponseWriter, r *http.Request) {
	subjectID, ok := h.subject(w, r)
	if !ok {
		return
	}
	var req kycVerifyRequest
	if err := h.decode(r, &req); err != nil {
		httputil.WriteError(w, err)
		return
	}
	profile, err := h.KYC.Verify(r.Context(), kyc.SubjectContext{
		SubjectID:                subjectID,
		ExpectedTransactionValue: req.ExpectedTransactionValue,
		IsBusinessOwner:          req.IsBusinessOwner,
		Country:                  req.Country,
	}, kyc.VerificationRequest{Documents: req.Documents, SubjectData: req.SubjectData})
	if err != nil {
		h.fail(w, r, err, "identity verification failed")
		return
	}
	httputil.WriteJSON(w, http.StatusOK, profile)
}

func (h *Handler) handleKYCProfile(w http.ResponseWriter, r *http.Request) {
	subjectID, ok := h.subject(w, r)
	if !ok {
		return
	}
	profile, err := h.KYC.GetProfile(r.Context(), subjectID)
	if err != nil {
		h.fail(w, r, err, "failed to load kyc profile")
		return
	}
	httputil.WriteJSON(w, http.StatusOK, profile)
}

func (h *Handler) handleCreateEnvelope(w http.ResponseWriter, r *http.Request) {
	var req envelopeRequest
	if err := h.decode(r, &req); err != nil {
		httputil.WriteError(w, err)
		return
	}
	id, err := h.ESign.CreateEnvelope(r.Context(), req.Signers, req.Document)
	if err != nil {
		h.fail(w, r, err, "failed to create envelope")
		return
	}
	httputil.WriteJSON(w, http.StatusCreated, envelopeResponse{EnvelopeID: id})
}

func (h *Handler) handleEnvelopeStatus(w http.ResponseWriter, r *http.Request) {
	status, err := h.ESign.GetStatus(r.Context(), chi.URLParam(r, "envelopeID"))
	if err != nil {
		h.fail(w, r, err, "failed to fetch envelope status")
		return
	}
	httputil.WriteJSON(w, http.StatusOK, status)
}
