package order

import "time"

// Change is the outcome of a status update.
type Change struct {
	From Status
	To   Status
	// Credit is set when the seller must be credited TotalAmount.
	Credit bool
}

// Changed reports whether the stored status moved.
func (c Change) Changed() bool {
	return c.From != c.To
}

// ApplyCarrierStatus records raw and moves the order to its
// classification. Unknown text leaves the status untouched. Carrier
// updates never leave PAID and only leave RETURNED for PAID, so late or
// duplicate notifications cannot regress the order.
func (o *Order) ApplyCarrierStatus(raw string, now time.Time) Change {
	o.ShippingStatus = raw
	next, ok := Classify(raw)
	if !ok {
		return Change{From: o.Status, To: o.Status}
	}
	if cur, ok := o.Status.Canonical(); ok {
		switch {
		case cur == StatusPaid:
			next = o.Status
		case cur == StatusReturned && next != StatusPaid:
			next = o.Status
		}
	}
	return o.setStatus(next, now)
}

// Override sets the status verbatim, still applying the return and credit
// side effects of its classification.
func (o *Order) Override(status Status, now time.Time) Change {
	return o.setStatus(status, now)
}

func (o *Order) setStatus(next Status, now time.Time) Change {
	c := Change{From: o.Status, To: next}
	prev, _ := o.Status.Canonical()
	o.Status = next
	o.UpdatedAt = now

	canon, _ := next.Canonical()
	if canon == StatusReturned {
		o.AllowReshipping = false
	}
	if canon == StatusPaid && prev != StatusPaid && o.CreditedAt == nil {
		c.Credit = true
		at := now
		o.CreditedAt = &at
	}
	return c
}

// ToggleReshipping flips AllowReshipping. Returned orders stay blocked.
func (o *Order) ToggleReshipping(now time.Time) bool {
	if canon, _ := o.Status.Canonical(); canon == StatusReturned {
		o.AllowReshipping = false
		return false
	}
	o.AllowReshipping = !o.AllowReshipping
	o.UpdatedAt = now
	return o.AllowReshipping
}
