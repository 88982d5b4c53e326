package httptransport

import (
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"

	rlmodels "bastion/internal/ratelimit/models"
	"bastion/pkg/platform/httputil"
)

func (h *Handler) handleBlockIP(w http.ResponseWriter, r *http.Request) {
	var req blockRequest
	if err := h.decode(r, &req); err != nil {
		httputil.WriteError(w, err)
		return
	}
	block, err := h.Blocks.BlockIP(r.Context(), req.IP, req.Reason, time.Duration(req.DurationSeconds)*time.Second)
	if err != nil {
		h.fail(w, r, err, "failed to block address")
		return
	}
	httputil.WriteJSON(w, http.StatusCreated, blockResponse(block.IP, block))
}

func (h *Handler) handleBlockStatus(w http.ResponseWriter, r *http.Request) {
	ip := chi.URLParam(r, "ip")
	block, err := h.Blocks.BlockStatus(r.Context(), ip)
	if err != nil {
		h.fail(w, r, err, "failed to check address")
		return
	}
	httputil.WriteJSON(w, http.StatusOK, blockResponse(ip, block))
}

func (h *Handler) handleUnblockIP(w http.ResponseWriter, r *http.Request) {
	if err := h.Blocks.UnblockIP(r.Context(), chi.URLParam(r, "ip")); err != nil {
		h.fail(w, r, err, "failed to unblock address")
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

func blockResponse(ip string, block *rlmodels.Block) rlmodels.BlockResponse {
	if block == nil {
		return rlmodels.BlockResponse{IP: ip}
	}
	return rlmodels.BlockResponse{IP: block.IP, Blocked: true, Reason: block.Reason, ExpiresAt: &block.ExpiresAt}
}
