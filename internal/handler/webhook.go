package handler

import (
	"io"
	"net/http"

	"github.com/go-faster/errors"
	"github.com/go-faster/sdk/zctx"
	"go.uber.org/zap"

	"github.com/xenking/pod-ledger/internal/carrier"
	"github.com/xenking/pod-ledger/internal/domain/order"
)

// WebhookTokenHeader carries the shared webhook secret. The carrier may
// also send it as the "token" query parameter.
const WebhookTokenHeader = "X-Webhook-Token"

type webhookResponse struct {
	OrderNumber string       `json:"order_number"`
	Status      order.Status `json:"status"`
	Changed     bool         `json:"changed"`
	Credited    bool         `json:"credited"`
}

// carrierWebhook applies a pushed carrier status. Rejections never mutate
// state and log the body so payload drift can be diagnosed.
func (h *Handler) carrierWebhook(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	lg := zctx.From(ctx)

	token := r.Header.Get(WebhookTokenHeader)
	if token == "" {
		token = r.URL.Query().Get("token")
	}
	if !carrier.VerifyToken(h.webhookToken, token) {
		h.metrics.webhook(ctx, outcomeUnauthorized)
		lg.Warn("Webhook rejected: bad token", zap.String("remote_addr", r.RemoteAddr))
		writeError(w, http.StatusUnauthorized, "unauthorized", "invalid webhook token")
		return
	}

	body, err := io.ReadAll(http.MaxBytesReader(w, r.Body, h.maxBody))
	if err != nil {
		h.metrics.webhook(ctx, outcomeMalformed)
		writeError(w, http.StatusBadRequest, "malformed_payload", "cannot read body")
		return
	}
	upd, err := carrier.ParseWebhook(body)
	if err != nil {
		h.metrics.webhook(ctx, outcomeMalformed)
		lg.Warn("Webhook rejected: malformed payload",
			zap.Error(err), zap.ByteString("body", clip(body)))
		writeError(w, http.StatusBadRequest, "malformed_payload", err.Error())
		return
	}

	res, err := h.orders.ApplyCarrierStatus(ctx, order.SourceWebhook, upd.TrackingCode, upd.Status)
	switch {
	case errors.Is(err, order.ErrNotFound):
		h.metrics.webhook(ctx, outcomeUnknown)
		lg.Warn("Webhook rejected: unknown tracking code",
			zap.String("tracking_code", upd.TrackingCode),
			zap.String("raw_status", upd.Status),
			zap.ByteString("body", clip(body)))
		writeError(w, http.StatusNotFound, "not_found", "no order with this tracking code")
		return
	case err != nil:
		h.metrics.webhook(ctx, outcomeError)
		respondError(ctx, w, err)
		return
	}

	h.metrics.webhook(ctx, outcomeApplied)
	writeJSON(w, http.StatusOK, webhookResponse{
		OrderNumber: res.Order.Number,
		Status:      res.Order.Status,
		Changed:     res.Change.Changed(),
		Credited:    res.Change.Credit,
	})
}

func clip(b []byte) []byte {
	if len(b) > maxLoggedBody {
		return b[:maxLoggedBody]
	}
	return b
}
