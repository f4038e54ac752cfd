package handler

import (
	"net/http"

	"github.com/xenking/pod-ledger/internal/reconcile"
)

type syncRequest struct {
	Limit int  `json:"limit,omitempty"`
	Force bool `json:"force,omitempty"`
}

// runSync triggers a reconciliation pass and returns its summary. The body
// is optional.
func (h *Handler) runSync(w http.ResponseWriter, r *http.Request) {
	var req syncRequest
	if r.ContentLength != 0 {
		if err := h.decode(w, r, &req); err != nil {
			writeError(w, http.StatusBadRequest, "bad_request", err.Error())
			return
		}
	}
	sum, err := h.reconciler.Run(r.Context(), reconcile.Options{Limit: req.Limit, Force: req.Force})
	if err != nil {
		respondError(r.Context(), w, err)
		return
	}
	writeJSON(w, http.StatusOK, sum)
}
