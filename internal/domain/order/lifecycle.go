package order

import (
	"context"
	"strings"
	"time"

	"github.com/go-faster/errors"
	"github.com/go-faster/sdk/zctx"
	"go.uber.org/zap"

	"github.com/xenking/pod-ledger/internal/carrier"
	"github.com/xenking/pod-ledger/internal/domain/ledger"
)

// Status update sources, used in logs and metrics.
const (
	SourceWebhook = "webhook"
	SourcePoll    = "poll"
	SourceTrack   = "track"
	SourceManual  = "manual"
)

// StatusUpdate is the result of applying a status to an order.
type StatusUpdate struct {
	Order  *Order
	Change Change
}

// ApplyCarrierStatus applies a raw carrier status to the order holding
// trackingNumber. The old status is read under a row lock so concurrent
// notifications credit the seller at most once.
func (s *Service) ApplyCarrierStatus(ctx context.Context, source, trackingNumber, raw string) (*StatusUpdate, error) {
	var res StatusUpdate
	err := s.store.InTx(ctx, func(ctx context.Context, tx Tx) error {
		o, err := tx.Orders().GetByTrackingForUpdate(ctx, trackingNumber)
		if err != nil {
			return err
		}
		now := s.now()
		res.Change = o.ApplyCarrierStatus(raw, now)
		o.LastSyncedAt = &now
		if err := s.persist(ctx, tx, o, res.Change); err != nil {
			return err
		}
		res.Order = o
		return nil
	})
	if err != nil {
		return nil, err
	}

	s.metrics.statusUpdated(ctx, source, res.Change, res.Order.TotalAmount)
	lg := zctx.From(ctx).With(
		zap.String("source", source),
		zap.String("order_number", res.Order.Number),
		zap.String("tracking_code", trackingNumber),
		zap.String("raw_status", raw),
	)
	if _, ok := Classify(raw); !ok {
		lg.Warn("Unrecognized carrier status")
	} else if res.Change.Changed() {
		lg.Info("Order status changed",
			zap.String("from", string(res.Change.From)),
			zap.String("to", string(res.Change.To)),
			zap.Bool("credited", res.Change.Credit),
		)
	}
	return &res, nil
}

// UpdateStatus is the manual override for privileged actors.
func (s *Service) UpdateStatus(ctx context.Context, actor Actor, id string, status Status) (*StatusUpdate, error) {
	if !actor.Privileged {
		return nil, ErrForbidden
	}
	status = Status(strings.TrimSpace(string(status)))
	if status == "" {
		return nil, ErrInvalidStatus
	}

	var res StatusUpdate
	err := s.store.InTx(ctx, func(ctx context.Context, tx Tx) error {
		o, err := tx.Orders().GetForUpdate(ctx, id)
		if err != nil {
			return err
		}
		res.Change = o.Override(status, s.now())
		if err := s.persist(ctx, tx, o, res.Change); err != nil {
			return err
		}
		res.Order = o
		return nil
	})
	if err != nil {
		return nil, err
	}
	s.metrics.statusUpdated(ctx, SourceManual, res.Change, res.Order.TotalAmount)
	zctx.From(ctx).Info("Order status overridden",
		zap.String("order_number", res.Order.Number),
		zap.String("actor", actor.ID),
		zap.String("from", string(res.Change.From)),
		zap.String("to", string(res.Change.To)),
	)
	return &res, nil
}

func (s *Service) persist(ctx context.Context, tx Tx, o *Order, c Change) error {
	if err := tx.Orders().Save(ctx, o); err != nil {
		return errors.Wrap(err, "save order")
	}
	if !c.Credit {
		return nil
	}
	return s.ledger.Credit(ctx, tx.Accounts(), o.SellerID, o.TotalAmount, ledger.EntryDeliveryCredit, o.ID)
}

// ToggleReshipping flips the reshipping gate and returns its new value.
func (s *Service) ToggleReshipping(ctx context.Context, actor Actor, id string) (bool, error) {
	if !actor.Privileged {
		return false, ErrForbidden
	}
	var allowed bool
	err := s.store.InTx(ctx, func(ctx context.Context, tx Tx) error {
		o, err := tx.Orders().GetForUpdate(ctx, id)
		if err != nil {
			return err
		}
		allowed = o.ToggleReshipping(s.now())
		return tx.Orders().Save(ctx, o)
	})
	return allowed, err
}

// ShipResult is the outcome of a successful parcel creation.
type ShipResult struct {
	Order        *Order
	TrackingCode string
	Payload      []byte
}

// shipClaimTTL bounds how long an unfinished parcel creation blocks other
// ship requests. It must exceed the carrier timeout.
const shipClaimTTL = 2 * time.Minute

// Ship hands the order to the carrier. The order is claimed in a short
// transaction first, so concurrent requests cannot create two parcels; no
// transaction is held during the carrier call.
func (s *Service) Ship(ctx context.Context, actor Actor, id, note string) (*ShipResult, error) {
	o, err := s.claimShipment(ctx, actor, id)
	if err != nil {
		return nil, err
	}

	lg := zctx.From(ctx).With(zap.String("order_number", o.Number))
	if note == "" {
		note = o.Note
	}
	created, err := s.carrier.CreateParcel(ctx, parcelOf(o, note))
	if err != nil {
		s.metrics.shipAttempt(ctx, false)
		lg.Warn("Parcel creation failed", zap.Error(err))
		s.releaseShipment(context.WithoutCancel(ctx), id)
		return nil, err
	}
	s.metrics.shipAttempt(ctx, true)

	err = s.store.InTx(ctx, func(ctx context.Context, tx Tx) error {
		cur, err := tx.Orders().GetForUpdate(ctx, id)
		if err != nil {
			return err
		}
		if !actor.Privileged && cur.TrackingNumber != "" {
			return ErrAlreadyShipped
		}
		cur.TrackingNumber = created.TrackingCode
		cur.Status = StatusPrinted
		cur.Note = note
		cur.ShipRequestedAt = nil
		cur.UpdatedAt = s.now()
		o = cur
		return tx.Orders().Save(ctx, cur)
	})
	if err != nil {
		lg.Error("Parcel created but order not updated",
			zap.String("tracking_code", created.TrackingCode), zap.Error(err))
		return nil, errors.Wrap(err, "record tracking code")
	}
	lg.Info("Order shipped", zap.String("tracking_code", created.TrackingCode))
	return &ShipResult{Order: o, TrackingCode: created.TrackingCode, Payload: created.Payload}, nil
}

// claimShipment checks the ship guards under a row lock and marks the
// order as being shipped.
func (s *Service) claimShipment(ctx context.Context, actor Actor, id string) (*Order, error) {
	var o *Order
	err := s.store.InTx(ctx, func(ctx context.Context, tx Tx) error {
		cur, err := tx.Orders().GetForUpdate(ctx, id)
		if err != nil {
			return err
		}
		if !actor.canAccess(cur) {
			return ErrForbidden
		}
		if !actor.Privileged {
			if cur.TrackingNumber != "" {
				return ErrAlreadyShipped
			}
			if !cur.AllowReshipping {
				return ErrReshippingDisabled
			}
		}
		now := s.now()
		if cur.ShipRequestedAt != nil && now.Sub(*cur.ShipRequestedAt) < shipClaimTTL {
			return ErrShipInProgress
		}
		cur.ShipRequestedAt = &now
		cur.UpdatedAt = now
		o = cur
		return tx.Orders().Save(ctx, cur)
	})
	if err != nil {
		return nil, err
	}
	return o, nil
}

// releaseShipment clears the claim after a failed carrier call. A claim
// that cannot be cleared expires after shipClaimTTL.
func (s *Service) releaseShipment(ctx context.Context, id string) {
	err := s.store.InTx(ctx, func(ctx context.Context, tx Tx) error {
		cur, err := tx.Orders().GetForUpdate(ctx, id)
		if err != nil {
			return err
		}
		cur.ShipRequestedAt = nil
		return tx.Orders().Save(ctx, cur)
	})
	if err != nil {
		zctx.From(ctx).Warn("Release ship claim", zap.String("order_id", id), zap.Error(err))
	}
}

// TrackResult is the carrier view of an order after re-syncing it.
type TrackResult struct {
	Order    *Order
	Tracking *carrier.Tracking
}

// Track pulls the parcel status and applies it to the order.
func (s *Service) Track(ctx context.Context, actor Actor, id string) (*TrackResult, error) {
	o, err := s.store.Orders().Get(ctx, id)
	if err != nil {
		return nil, err
	}
	if !actor.canAccess(o) {
		return nil, ErrForbidden
	}
	if o.TrackingNumber == "" {
		return nil, ErrNotShipped
	}

	t, err := s.carrier.TrackParcel(ctx, o.TrackingNumber)
	if err != nil {
		return nil, errors.Wrap(err, "track parcel")
	}
	if t.Status == "" {
		return &TrackResult{Order: o, Tracking: t}, nil
	}
	upd, err := s.ApplyCarrierStatus(ctx, SourceTrack, o.TrackingNumber, t.Status)
	if err != nil {
		return nil, err
	}
	return &TrackResult{Order: upd.Order, Tracking: t}, nil
}

// SyncCandidates lists orders the reconciliation job should poll.
func (s *Service) SyncCandidates(ctx context.Context, limit int, minAge time.Duration) ([]Order, error) {
	return s.store.Orders().ListSyncCandidates(ctx, limit, s.now().Add(-minAge))
}

func parcelOf(o *Order, note string) carrier.Parcel {
	lines := make([]carrier.Line, len(o.Items))
	for i, it := range o.Items {
		lines[i] = carrier.Line{Name: it.Name, Size: it.Size, Color: it.Color, Quantity: it.Quantity}
	}
	address := o.Address.Street
	if o.Address.PostalCode != "" {
		address += ", " + o.Address.PostalCode
	}
	return carrier.Parcel{
		Reference: o.Number,
		Recipient: o.Recipient.Name,
		Phone:     o.Recipient.Phone,
		City:      o.Address.City,
		Address:   address,
		Price:     o.TotalAmount,
		Lines:     lines,
		Note:      note,
	}
}
