package handler

import (
	"context"
	"encoding/json"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/shopspring/decimal"

	"github.com/xenking/pod-ledger/internal/domain/order"
	"github.com/xenking/pod-ledger/internal/domain/pricing"
)

type customerDTO struct {
	Name  string `json:"name"`
	Email string `json:"email,omitempty"`
	Phone string `json:"phone"`
}

type addressDTO struct {
	Street     string `json:"street"`
	City       string `json:"city"`
	PostalCode string `json:"postal_code,omitempty"`
	Country    string `json:"country,omitempty"`
}

type itemDTO struct {
	ProductID          string `json:"product_id,omitempty"`
	TemplateID         string `json:"template_id,omitempty"`
	Color              string `json:"color,omitempty"`
	Size               string `json:"size,omitempty"`
	Quantity           int    `json:"quantity"`
	ReorderFromOrderID string `json:"reorder_from_order_id,omitempty"`
}

type createOrderRequest struct {
	// SellerID is honored for privileged callers only.
	SellerID      string          `json:"seller_id,omitempty"`
	Customer      customerDTO     `json:"customer"`
	Address       addressDTO      `json:"address"`
	Items         []itemDTO       `json:"items"`
	WithPackaging bool            `json:"with_packaging"`
	TotalPrice    decimal.Decimal `json:"total_price"`
	Note          string          `json:"note,omitempty"`
}

func (req createOrderRequest) toDomain(actor order.Actor) order.CreateRequest {
	sellerID := actor.ID
	if actor.Privileged && req.SellerID != "" {
		sellerID = req.SellerID
	}
	items := make([]pricing.Item, len(req.Items))
	for i, it := range req.Items {
		items[i] = pricing.Item{
			ProductID:          it.ProductID,
			TemplateID:         it.TemplateID,
			Color:              it.Color,
			Size:               it.Size,
			Quantity:           it.Quantity,
			ReorderFromOrderID: it.ReorderFromOrderID,
		}
	}
	return order.CreateRequest{
		SellerID:      sellerID,
		Recipient:     order.Recipient{Name: req.Customer.Name, Email: req.Customer.Email, Phone: req.Customer.Phone},
		Address:       order.Address(req.Address),
		Items:         items,
		WithPackaging: req.WithPackaging,
		TotalPrice:    req.TotalPrice,
		Note:          req.Note,
	}
}

type orderItemResponse struct {
	ProductID          string `json:"product_id,omitempty"`
	TemplateID         string `json:"template_id,omitempty"`
	Name               string `json:"name"`
	Color              string `json:"color,omitempty"`
	Size               string `json:"size,omitempty"`
	Quantity           int    `json:"quantity"`
	UnitCost           string `json:"unit_cost"`
	ReorderFromOrderID string `json:"reorder_from_order_id,omitempty"`
}

type orderResponse struct {
	ID              string              `json:"id"`
	Number          string              `json:"number"`
	SellerID        string              `json:"seller_id"`
	CustomerID      string              `json:"customer_id,omitempty"`
	ProductID       string              `json:"product_id,omitempty"`
	TemplateID      string              `json:"template_id,omitempty"`
	Items           []orderItemResponse `json:"items"`
	UnitPrice       string              `json:"unit_price"`
	TotalAmount     string              `json:"total_amount"`
	Status          order.Status        `json:"status"`
	ShippingStatus  string              `json:"shipping_status,omitempty"`
	TrackingNumber  string              `json:"tracking_number,omitempty"`
	AllowReshipping bool                `json:"allow_reshipping"`
	IsReordered     bool                `json:"is_reordered"`
	WithPackaging   bool                `json:"with_packaging"`
	Customer        customerDTO         `json:"customer"`
	Address         addressDTO          `json:"address"`
	Note            string              `json:"note,omitempty"`
	CreditedAt      *time.Time          `json:"credited_at,omitempty"`
	LastSyncedAt    *time.Time          `json:"last_synced_at,omitempty"`
	CreatedAt       time.Time           `json:"created_at"`
	UpdatedAt       time.Time           `json:"updated_at"`
}

func toOrderResponse(o *order.Order) orderResponse {
	items := make([]orderItemResponse, len(o.Items))
	for i, it := range o.Items {
		items[i] = orderItemResponse{
			ProductID:          it.ProductID,
			TemplateID:         it.TemplateID,
			Name:               it.Name,
			Color:              it.Color,
			Size:               it.Size,
			Quantity:           it.Quantity,
			UnitCost:           it.UnitCost.StringFixed(2),
			ReorderFromOrderID: it.ReorderFromOrderID,
		}
	}
	return orderResponse{
		ID:              o.ID,
		Number:          o.Number,
		SellerID:        o.SellerID,
		CustomerID:      o.CustomerID,
		ProductID:       o.ProductID,
		TemplateID:      o.TemplateID,
		Items:           items,
		UnitPrice:       o.UnitPrice.StringFixed(2),
		TotalAmount:     o.TotalAmount.StringFixed(2),
		Status:          o.Status,
		ShippingStatus:  o.ShippingStatus,
		TrackingNumber:  o.TrackingNumber,
		AllowReshipping: o.AllowReshipping,
		IsReordered:     o.IsReordered,
		WithPackaging:   o.WithPackaging,
		Customer:        customerDTO{Name: o.Recipient.Name, Email: o.Recipient.Email, Phone: o.Recipient.Phone},
		Address:         addressDTO(o.Address),
		Note:            o.Note,
		CreditedAt:      o.CreditedAt,
		LastSyncedAt:    o.LastSyncedAt,
		CreatedAt:       o.CreatedAt,
		UpdatedAt:       o.UpdatedAt,
	}
}

func (h *Handler) createFromProduct(w http.ResponseWriter, r *http.Request) {
	h.create(w, r, h.orders.CreateFromProduct)
}

func (h *Handler) createFromTemplate(w http.ResponseWriter, r *http.Request) {
	h.create(w, r, h.orders.CreateFromTemplate)
}

func (h *Handler) create(w http.ResponseWriter, r *http.Request, fn func(ctx context.Context, req order.CreateRequest) (*order.Order, error)) {
	var req createOrderRequest
	if err := h.decode(w, r, &req); err != nil {
		writeError(w, http.StatusBadRequest, "bad_request", err.Error())
		return
	}
	o, err := fn(r.Context(), req.toDomain(actorOf(r)))
	if err != nil {
		respondError(r.Context(), w, err)
		return
	}
	writeJSON(w, http.StatusCreated, toOrderResponse(o))
}

func (h *Handler) getOrder(w http.ResponseWriter, r *http.Request) {
	o, err := h.orders.Get(r.Context(), actorOf(r), chi.URLParam(r, "orderID"))
	if err != nil {
		respondError(r.Context(), w, err)
		return
	}
	writeJSON(w, http.StatusOK, toOrderResponse(o))
}

type updateStatusRequest struct {
	Status string `json:"status"`
}

type statusUpdateResponse struct {
	Order    orderResponse `json:"order"`
	Changed  bool          `json:"changed"`
	Credited bool          `json:"credited"`
}

func (h *Handler) updateStatus(w http.ResponseWriter, r *http.Request) {
	var req updateStatusRequest
	if err := h.decode(w, r, &req); err != nil {
		writeError(w, http.StatusBadRequest, "bad_request", err.Error())
		return
	}
	res, err := h.orders.UpdateStatus(r.Context(), actorOf(r), chi.URLParam(r, "orderID"), order.Status(req.Status))
	if err != nil {
		respondError(r.Context(), w, err)
		return
	}
	writeJSON(w, http.StatusOK, statusUpdateResponse{
		Order:    toOrderResponse(res.Order),
		Changed:  res.Change.Changed(),
		Credited: res.Change.Credit,
	})
}

type shipRequest struct {
	Note string `json:"note,omitempty"`
}

type shipResponse struct {
	Order          orderResponse   `json:"order"`
	TrackingCode   string          `json:"tracking_code"`
	CarrierPayload json.RawMessage `json:"carrier_payload,omitempty"`
}

func (h *Handler) ship(w http.ResponseWriter, r *http.Request) {
	var req shipRequest
	if r.ContentLength != 0 {
		if err := h.decode(w, r, &req); err != nil {
			writeError(w, http.StatusBadRequest, "bad_request", err.Error())
			return
		}
	}
	res, err := h.orders.Ship(r.Context(), actorOf(r), chi.URLParam(r, "orderID"), req.Note)
	if err != nil {
		respondError(r.Context(), w, err)
		return
	}
	writeJSON(w, http.StatusOK, shipResponse{
		Order:          toOrderResponse(res.Order),
		TrackingCode:   res.TrackingCode,
		CarrierPayload: rawPayload(res.Payload),
	})
}

type trackingDTO struct {
	TrackingCode string          `json:"tracking_code"`
	Status       string          `json:"status"`
	Payload      json.RawMessage `json:"payload,omitempty"`
}

type trackResponse struct {
	Order    orderResponse `json:"order"`
	Tracking trackingDTO   `json:"tracking"`
}

func (h *Handler) track(w http.ResponseWriter, r *http.Request) {
	res, err := h.orders.Track(r.Context(), actorOf(r), chi.URLParam(r, "orderID"))
	if err != nil {
		respondError(r.Context(), w, err)
		return
	}
	writeJSON(w, http.StatusOK, trackResponse{
		Order: toOrderResponse(res.Order),
		Tracking: trackingDTO{
			TrackingCode: res.Tracking.TrackingCode,
			Status:       res.Tracking.Status,
			Payload:      rawPayload(res.Tracking.Payload),
		},
	})
}

type toggleResponse struct {
	AllowReshipping bool `json:"allow_reshipping"`
}

func (h *Handler) toggleReshipping(w http.ResponseWriter, r *http.Request) {
	allowed, err := h.orders.ToggleReshipping(r.Context(), actorOf(r), chi.URLParam(r, "orderID"))
	if err != nil {
		respondError(r.Context(), w, err)
		return
	}
	writeJSON(w, http.StatusOK, toggleResponse{AllowReshipping: allowed})
}
