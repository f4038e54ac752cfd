package handler

import (
	"context"
	"encoding/json"
	"net/http"

	"github.com/go-faster/errors"
	"github.com/go-faster/sdk/zctx"
	"go.uber.org/zap"

	"github.com/xenking/pod-ledger/internal/carrier"
	"github.com/xenking/pod-ledger/internal/domain/ledger"
	"github.com/xenking/pod-ledger/internal/domain/order"
	"github.com/xenking/pod-ledger/internal/domain/pricing"
	"github.com/xenking/pod-ledger/internal/reconcile"
)

// errorBody is the JSON shape of every error response.
type errorBody struct {
	Code    string          `json:"code"`
	Message string          `json:"message"`
	Issues  []pricing.Issue `json:"issues,omitempty"`
	// Required and Available are set for insufficient balance.
	Required  string `json:"required,omitempty"`
	Available string `json:"available,omitempty"`
	// CarrierPayload is the raw carrier response of a failed shipment.
	CarrierPayload json.RawMessage `json:"carrier_payload,omitempty"`
}

func writeError(w http.ResponseWriter, status int, code, message string) {
	writeJSON(w, status, errorBody{Code: code, Message: message})
}

// respondError maps domain errors to HTTP responses. Unknown errors are
// logged and hidden behind a 500.
func respondError(ctx context.Context, w http.ResponseWriter, err error) {
	status, body := mapError(err)
	if status == http.StatusInternalServerError {
		zctx.From(ctx).Error("Request failed", zap.Error(err))
	}
	writeJSON(w, status, body)
}

func mapError(err error) (int, errorBody) {
	var (
		verr     *pricing.ValidationError
		balErr   *ledger.InsufficientBalanceError
		ptsErr   *ledger.InsufficientPointsError
		reErr    *order.ReorderConflictError
		shipErr  *carrier.ShippingError
		msg      = err.Error()
		bodyWith = func(code string) errorBody { return errorBody{Code: code, Message: msg} }
	)
	switch {
	case errors.As(err, &verr):
		b := bodyWith("validation_failed")
		b.Issues = verr.Issues
		return http.StatusUnprocessableEntity, b
	case errors.As(err, &balErr):
		b := bodyWith("insufficient_balance")
		b.Required = balErr.Required.StringFixed(2)
		b.Available = balErr.Available.StringFixed(2)
		return http.StatusPaymentRequired, b
	case errors.As(err, &ptsErr):
		return http.StatusUnprocessableEntity, bodyWith("insufficient_points")
	case errors.As(err, &reErr):
		return http.StatusConflict, bodyWith("reorder_conflict")
	case errors.As(err, &shipErr):
		b := bodyWith("shipping_failed")
		b.CarrierPayload = rawPayload(shipErr.Payload)
		return http.StatusBadGateway, b
	case errors.Is(err, ledger.ErrAccountNotActivated):
		return http.StatusForbidden, bodyWith("account_not_activated")
	case errors.Is(err, ledger.ErrAccountNotFound):
		return http.StatusNotFound, bodyWith("account_not_found")
	case errors.Is(err, ledger.ErrInvalidAmount),
		errors.Is(err, ledger.ErrPointsNotMultiple),
		errors.Is(err, order.ErrInvalidStatus):
		return http.StatusUnprocessableEntity, bodyWith("invalid_input")
	case errors.Is(err, order.ErrNotFound):
		return http.StatusNotFound, bodyWith("not_found")
	case errors.Is(err, order.ErrForbidden):
		return http.StatusForbidden, bodyWith("forbidden")
	case errors.Is(err, order.ErrAlreadyShipped),
		errors.Is(err, order.ErrReshippingDisabled),
		errors.Is(err, order.ErrNotShipped):
		return http.StatusConflict, bodyWith("invalid_state")
	case errors.Is(err, order.ErrShipInProgress):
		return http.StatusConflict, bodyWith("ship_in_progress")
	case errors.Is(err, reconcile.ErrRunInProgress):
		return http.StatusConflict, bodyWith("sync_in_progress")
	case errors.Is(err, context.DeadlineExceeded):
		return http.StatusGatewayTimeout, bodyWith("timeout")
	default:
		return http.StatusInternalServerError, errorBody{Code: "internal", Message: "internal server error"}
	}
}

// rawPayload embeds a carrier response as JSON when it is JSON, and as a
// string otherwise.
func rawPayload(p []byte) json.RawMessage {
	if len(p) == 0 {
		return nil
	}
	if json.Valid(p) {
		return p
	}
	s, _ := json.Marshal(string(p))
	return s
}
