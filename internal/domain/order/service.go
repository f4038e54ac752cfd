package order

import (
	"context"
	"time"

	"github.com/go-faster/errors"
	"github.com/google/uuid"
	"github.com/shopspring/decimal"

	"github.com/xenking/pod-ledger/internal/carrier"
	"github.com/xenking/pod-ledger/internal/domain/ledger"
	"github.com/xenking/pod-ledger/internal/domain/pricing"
)

// maxNumberAttempts bounds retries of a creation that lost an order number
// race.
const maxNumberAttempts = 3

// Pricer resolves the cost of an order request.
type Pricer interface {
	Resolve(ctx context.Context, req pricing.Request) (*pricing.Quote, error)
}

// Carrier is the delivery provider.
type Carrier interface {
	CreateParcel(ctx context.Context, p carrier.Parcel) (*carrier.Created, error)
	TrackParcel(ctx context.Context, trackingCode string) (*carrier.Tracking, error)
}

// CreateRequest holds the input for creating an order.
type CreateRequest struct {
	SellerID      string
	Recipient     Recipient
	Address       Address
	Items         []pricing.Item
	WithPackaging bool
	// TotalPrice is the amount collected from the customer.
	TotalPrice decimal.Decimal
	Note       string
}

// Service is the order orchestrator.
type Service struct {
	store   Store
	pricer  Pricer
	ledger  *ledger.Ledger
	carrier Carrier
	metrics *Metrics
	now     func() time.Time
}

// Option configures a Service.
type Option func(*Service)

// WithMetrics sets the instruments the service records to.
func WithMetrics(m *Metrics) Option {
	return func(s *Service) { s.metrics = m }
}

// WithClock overrides the time source.
func WithClock(now func() time.Time) Option {
	return func(s *Service) { s.now = now }
}

// NewService creates an order Service.
func NewService(store Store, pricer Pricer, l *ledger.Ledger, c Carrier, opts ...Option) *Service {
	s := &Service{
		store:   store,
		pricer:  pricer,
		ledger:  l,
		carrier: c,
		now:     time.Now,
	}
	for _, o := range opts {
		o(s)
	}
	if s.metrics == nil {
		s.metrics = noopMetrics()
	}
	return s
}

type flavor int

const (
	fromProduct flavor = iota
	fromTemplate
)

// CreateFromProduct creates an order of catalog products.
func (s *Service) CreateFromProduct(ctx context.Context, req CreateRequest) (*Order, error) {
	return s.create(ctx, req, fromProduct)
}

// CreateFromTemplate creates an order of seller templates.
func (s *Service) CreateFromTemplate(ctx context.Context, req CreateRequest) (*Order, error) {
	return s.create(ctx, req, fromTemplate)
}

func (s *Service) create(ctx context.Context, req CreateRequest, f flavor) (*Order, error) {
	if err := validateRequest(req, f); err != nil {
		return nil, err
	}

	quote, err := s.pricer.Resolve(ctx, pricing.Request{
		SellerID:      req.SellerID,
		Items:         req.Items,
		WithPackaging: req.WithPackaging,
		City:          req.Address.City,
		TotalPrice:    req.TotalPrice,
	})
	if err != nil {
		return nil, err
	}

	var o *Order
	for attempt := 1; ; attempt++ {
		o, err = s.createTx(ctx, req, quote)
		if !errors.Is(err, ErrDuplicateNumber) || attempt == maxNumberAttempts {
			break
		}
	}
	if err != nil {
		return nil, err
	}
	s.metrics.orderCreated(ctx, o)
	return o, nil
}

// createTx funds and persists the order in one transaction.
func (s *Service) createTx(ctx context.Context, req CreateRequest, quote *pricing.Quote) (*Order, error) {
	now := s.now()
	o := &Order{
		ID:              uuid.New().String(),
		SellerID:        req.SellerID,
		Items:           itemsFromQuote(req.Items, quote),
		UnitPrice:       quote.ProductionCost,
		TotalAmount:     quote.CustomerTotal,
		Status:          StatusPending,
		AllowReshipping: true,
		WithPackaging:   req.WithPackaging,
		Recipient:       req.Recipient,
		Address:         req.Address,
		Note:            req.Note,
		CreatedAt:       now,
		UpdatedAt:       now,
	}
	if len(o.Items) > 0 {
		o.ProductID = o.Items[0].ProductID
		o.TemplateID = o.Items[0].TemplateID
	}

	err := s.store.InTx(ctx, func(ctx context.Context, tx Tx) error {
		// Order rows are locked before the seller row, matching the
		// status update path.
		sources, err := checkReorderSources(ctx, tx.Orders(), req.SellerID, req.Items)
		if err != nil {
			return err
		}

		acct, err := s.ledger.RequireActive(ctx, tx.Accounts(), req.SellerID)
		if err != nil {
			return err
		}

		if err := s.ledger.Reserve(ctx, tx.Accounts(), req.SellerID, o.UnitPrice, o.ID); err != nil {
			return err
		}

		period := Period(now)
		seq, err := tx.Orders().NextSequence(ctx, period)
		if err != nil {
			return errors.Wrap(err, "next sequence")
		}
		o.Number = FormatNumber(period, seq)

		cust, err := tx.Customers().Upsert(ctx, &Customer{
			SellerID: req.SellerID,
			Name:     req.Recipient.Name,
			Email:    req.Recipient.Email,
			Phone:    req.Recipient.Phone,
			Address:  req.Address,
		}, o.TotalAmount, now)
		if err != nil {
			return errors.Wrap(err, "upsert customer")
		}
		o.CustomerID = cust.ID

		if err := tx.Orders().Create(ctx, o); err != nil {
			return err
		}
		if len(sources) > 0 {
			if err := tx.Orders().MarkReordered(ctx, sources); err != nil {
				return errors.Wrap(err, "mark reordered")
			}
		}

		count, err := tx.Orders().CountBySeller(ctx, req.SellerID)
		if err != nil {
			return errors.Wrap(err, "count orders")
		}
		return s.ledger.AwardOrderPoints(ctx, tx.Accounts(), acct, o.ID, count)
	})
	if err != nil {
		return nil, err
	}
	return o, nil
}

// checkReorderSources locks every referenced source order and returns
// their ids. Items of one request may share a source.
func checkReorderSources(ctx context.Context, repo Repository, sellerID string, items []pricing.Item) ([]string, error) {
	var ids []string
	seen := make(map[string]bool)
	for i, item := range items {
		if !item.IsReorder() || seen[item.ReorderFromOrderID] {
			continue
		}
		src, err := repo.GetForUpdate(ctx, item.ReorderFromOrderID)
		switch {
		case errors.Is(err, ErrNotFound):
			return nil, &ReorderConflictError{Index: i, OrderID: item.ReorderFromOrderID, Reason: "order not found"}
		case err != nil:
			return nil, errors.Wrap(err, "get reorder source")
		case src.SellerID != sellerID:
			return nil, &ReorderConflictError{Index: i, OrderID: item.ReorderFromOrderID, Reason: "order belongs to another seller"}
		case src.IsReordered:
			return nil, &ReorderConflictError{Index: i, OrderID: item.ReorderFromOrderID, Reason: "order was already reordered"}
		}
		seen[item.ReorderFromOrderID] = true
		ids = append(ids, item.ReorderFromOrderID)
	}
	return ids, nil
}

func itemsFromQuote(req []pricing.Item, q *pricing.Quote) []Item {
	items := make([]Item, len(q.Lines))
	for i, l := range q.Lines {
		items[i] = Item{
			ProductID:          l.ProductID,
			TemplateID:         l.TemplateID,
			Name:               l.Name,
			Color:              l.Color,
			Size:               l.Size,
			Quantity:           l.Quantity,
			UnitCost:           l.UnitCost,
			ReorderFromOrderID: req[l.Index].ReorderFromOrderID,
		}
	}
	return items
}

func validateRequest(req CreateRequest, f flavor) error {
	verr := &pricing.ValidationError{}
	if req.SellerID == "" {
		verr.Add(pricing.OrderLevel, "seller_id", "seller is required")
	}
	if req.Recipient.Name == "" {
		verr.Add(pricing.OrderLevel, "customer.name", "customer name is required")
	}
	if req.Recipient.Phone == "" {
		verr.Add(pricing.OrderLevel, "customer.phone", "customer phone is required")
	}
	if req.Address.Street == "" {
		verr.Add(pricing.OrderLevel, "address.street", "street is required")
	}
	if req.Address.City == "" {
		verr.Add(pricing.OrderLevel, "address.city", "city is required")
	}
	for i, item := range req.Items {
		switch {
		case f == fromProduct && item.TemplateID != "":
			verr.Add(i, "template_id", "template items must be ordered from a template")
		case f == fromTemplate && item.TemplateID == "":
			verr.Add(i, "template_id", "template is required")
		}
	}
	return verr.Err()
}

// Get returns an order visible to the actor.
func (s *Service) Get(ctx context.Context, actor Actor, id string) (*Order, error) {
	o, err := s.store.Orders().Get(ctx, id)
	if err != nil {
		return nil, err
	}
	if !actor.canAccess(o) {
		return nil, ErrForbidden
	}
	return o, nil
}
