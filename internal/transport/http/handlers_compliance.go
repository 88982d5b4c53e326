package httptransport

import (
	"net/http"

	"github.com/go-chi/chi/v5"

	"bastion/internal/compliance"
	dErrors "bastion/pkg/domain-errors"
	"bastion/pkg/platform/httputil"
	"bastion/pkg/requestcontext"
)

func (h *Handler) handleAssess(w http.ResponseWriter, r *http.Request) {
	var bc compliance.BusinessContext
	if err := h.decode(r, &bc); err != nil {
		httputil.WriteError(w, err)
		return
	}
	httputil.WriteJSON(w, http.StatusOK, h.Compliance.Assess(r.Context(), bc))
}

func (h *Handler) handleRecordConsent(w http.ResponseWriter, r *http.Request) {
	subjectID, ok := h.subject(w, r)
	if !ok {
		return
	}
	var req consentRequest
	if err := h.decode(r, &req); err != nil {
		httputil.WriteError(w, err)
		return
	}
	record, err := h.Compliance.RecordConsent(r.Context(), subjectID, compliance.ConsentData{
		ConsentTypes: req.ConsentTypes,
		LegalBasis:   compliance.LegalBasis(req.LegalBasis),
		Source:       req.Source,
	})
	if err != nil {
		h.fail(w, r, err, "failed to record consent")
		return
	}
	httputil.WriteJSON(w, http.StatusCreated, record)
}

func (h *Handler) handleListConsents(w http.ResponseWriter, r *http.Request) {
	subjectID, ok := h.subject(w, r)
	if !ok {
		return
	}
	records, err := h.Compliance.ListConsents(r.Context(), subjectID)
	if err != nil {
		h.fail(w, r, err, "failed to list consents")
		return
	}
	httputil.WriteJSON(w, http.StatusOK, records)
}

func (h *Handler) handleWithdrawConsent(w http.ResponseWriter, r *http.Request) {
	subjectID, ok := h.subject(w, r)
	if !ok {
		return
	}
	var req withdrawConsentRequest
	if err := h.decode(r, &req); err != nil {
		httputil.WriteError(w, err)
		return
	}
	n, err := h.Compliance.WithdrawConsent(r.Context(), subjectID, req.ConsentTypes)
	if err != nil {
		h.fail(w, r, err, "failed to withdraw consent")
		return
	}
	httputil.WriteJSON(w, http.StatusOK, withdrawConsentResponse{Withdrawn: n})
}

func (h *Handler) handleSubmitDSR(w http.ResponseWriter, r *http.Request) {
	subjectID, ok := h.subject(w, r)
	if !ok {
		return
	}
	var req dsrRequest
	if err := h.decode(r, &req); err != nil {
		httputil.WriteError(w, err)
		return
	}
	dsr, err := h.Compliance.ProcessDataSubjectRequest(r.Context(), compliance.RequestData{
		RequestID: req.RequestID,
		SubjectID: subjectID,
		Type:      compliance.DSRType(req.Type),
		Details:   req.Details,
	})
	if err != nil {
		h.fail(w, r, err, "failed to submit data subject request")
		return
	}
	httputil.WriteJSON(w, http.StatusAccepted, dsr)
}

// handleGetDSR lets subjects read their own requests; compliance officers
// may read any. Other subjects see 404 so ids cannot be probed.
func (h *Handler) handleGetDSR(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	dsr, err := h.Compliance.GetRequest(ctx, chi.URLParam(r, "requestID"))
	if err != nil {
		h.fail(w, r, err, "failed to load data subject request")
		return
	}
	if dsr.SubjectID != requestcontext.SubjectID(ctx) && !requestcontext.HasRole(ctx, RoleComplianceOfficer) {
		httputil.WriteError(w, dErrors.New(dErrors.CodeNotFound, "data subject request not found"))
		return
	}
	httputil.WriteJSON(w, http.StatusOK, dsr)
}

func (h *Handler) handleUpdateDSRStatus(w http.ResponseWriter, r *http.Request) {
	var req dsrStatusRequest
	if err := h.decode(r, &req); err != nil {
		httputil.WriteError(w, err)
		return
	}
	dsr, err := h.Compliance.UpdateRequestStatus(r.Context(), chi.URLParam(r, "requestID"), compliance.DSRStatus(req.Status))
	if err != nil {
		h.fail(w, r, err, "failed to update data subject request")
		return
	}
	httputil.WriteJSON(w, http.StatusOK, dsr)
}

func (h *Handler) handleOverdueDSR(w http.ResponseWriter, r *http.Request) {
	reqs, err := h.Compliance.OverdueRequests(r.Context())
	if err != nil {
		h.fail(w, r, err, "failed to list overdue requests")
		return
	}
	httputil.WriteJSON(w, http.StatusOK, reqs)
}

func (h *Handler) handleRecordBreach(w http.ResponseWriter, r *http.Request) {
	var req breachRequest
	if err := h.decode(r, &req); err != nil {
		httputil.WriteError(w, err)
		return
	}
	record, err := h.Compliance.RecordBreach(r.Context(), compliance.Breach{
		Description:         req.Description,
		AffectedRecordCount: req.AffectedRecordCount,
		AffectedDataTypes:   req.AffectedDataTypes,
		DiscoveredAt:        req.DiscoveredAt,
	})
	if err != nil {
		h.fail(w, r, err, "failed to record breach")
		return
	}
	httputil.WriteJSON(w, http.StatusCreated, record)
}

func (h *Handler) handleListBreaches(w http.ResponseWriter, r *http.Request) {
	records, err := h.Compliance.ListBreaches(r.Context())
	if err != nil {
		h.fail(w, r, err, "failed to list breaches")
		return
	}
	httputil.WriteJSON(w, http.StatusOK, records)
}
