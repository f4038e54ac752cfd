package pricing

import (
	"github.com/shopspring/decimal"
)

// Item is one requested order line. Exactly one of ProductID or TemplateID
// identifies what is printed; template items may repeat the template's
// product id.
type Item struct {
	ProductID          string
	TemplateID         string
	Color              string
	Size               string
	Quantity           int
	ReorderFromOrderID string
}

// IsReorder reports whether the item reuses the production of a prior order.
func (i Item) IsReorder() bool {
	return i.ReorderFromOrderID != ""
}

// Request is the pricing input for one order.
type Request struct {
	SellerID      string
	Items         []Item
	WithPackaging bool
	City          string
	// TotalPrice is what the end customer pays (carrier COD amount).
	TotalPrice decimal.Decimal
}

// Snapshot is the catalog data a quote is computed from.
type Snapshot struct {
	Products     map[string]Product
	Templates    map[string]Template
	SellerPrices map[string]decimal.Decimal
}

// Line is the priced form of an Item.
type Line struct {
	Index      int
	ProductID  string
	TemplateID string
	Name       string
	Color      string
	Size       string
	Quantity   int
	// UnitCost is the per-unit production cost including view surcharges.
	UnitCost decimal.Decimal
	// Cost is UnitCost * Quantity, or zero for reorder lines.
	Cost    decimal.Decimal
	Reorder bool
}

// Quote is the frozen pricing snapshot of an order.
type Quote struct {
	Lines     []Line
	ItemsCost decimal.Decimal
	Packaging decimal.Decimal
	Shipping  decimal.Decimal
	// ProductionCost is the amount debited from the seller balance.
	ProductionCost decimal.Decimal
	// CustomerTotal is the customer-facing amount collected on delivery.
	CustomerTotal decimal.Decimal
}

// Compute prices req against the snapshot and settings. It has no side
// effects; every invalid item is reported in a single *ValidationError.
func Compute(req Request, snap Snapshot, s Settings) (*Quote, error) {
	verr := &ValidationError{}
	if len(req.Items) == 0 {
		verr.Add(OrderLevel, "items", "at least one item is required")
	}
	if req.TotalPrice.IsNegative() {
		verr.Add(OrderLevel, "total_price", "total price must not be negative")
	}

	q := &Quote{
		Lines:     make([]Line, 0, len(req.Items)),
		ItemsCost: decimal.Zero,
		Packaging: decimal.Zero,
	}
	for i, item := range req.Items {
		line, ok := priceItem(i, item, req.SellerID, snap, verr)
		if !ok {
			continue
		}
		q.Lines = append(q.Lines, line)
		q.ItemsCost = q.ItemsCost.Add(line.Cost)
	}
	if err := verr.Err(); err != nil {
		return nil, err
	}

	if req.WithPackaging {
		q.Packaging = s.PackagingPrice
	}
	q.Shipping = s.ShippingFee(req.City)
	q.ItemsCost = q.ItemsCost.Round(2)
	q.ProductionCost = q.ItemsCost.Add(q.Packaging).Add(q.Shipping).Round(2)
	q.CustomerTotal = req.TotalPrice.Round(2)
	return q, nil
}

func priceItem(i int, item Item, sellerID string, snap Snapshot, verr *ValidationError) (Line, bool) {
	if item.Quantity <= 0 {
		verr.Add(i, "quantity", "quantity must be greater than 0")
		return Line{}, false
	}

	line := Line{
		Index:      i,
		ProductID:  item.ProductID,
		TemplateID: item.TemplateID,
		Color:      item.Color,
		Size:       item.Size,
		Quantity:   item.Quantity,
		Reorder:    item.IsReorder(),
	}

	var (
		product        Product
		colors, sizes  []string
		viewSurcharges = decimal.Zero
	)
	switch {
	case item.TemplateID != "":
		tpl, ok := snap.Templates[item.TemplateID]
		if !ok {
			verr.Add(i, "template_id", "template %s not found", item.TemplateID)
			return Line{}, false
		}
		if tpl.OwnerID != sellerID {
			verr.Add(i, "template_id", "template %s does not belong to the seller", item.TemplateID)
			return Line{}, false
		}
		if !tpl.Approved() {
			verr.Add(i, "template_id", "template %s is not approved", item.TemplateID)
			return Line{}, false
		}
		if item.ProductID != "" && item.ProductID != tpl.ProductID {
			verr.Add(i, "product_id", "product %s does not match template %s", item.ProductID, item.TemplateID)
			return Line{}, false
		}
		product, ok = snap.Products[tpl.ProductID]
		if !ok {
			verr.Add(i, "template_id", "product %s of template %s not found", tpl.ProductID, item.TemplateID)
			return Line{}, false
		}
		colors, sizes = tpl.Colors, tpl.Sizes
		for _, v := range product.Views {
			if ViewHasContent(tpl.Design[v.Key]) {
				viewSurcharges = viewSurcharges.Add(v.Price)
			}
		}
		line.ProductID = tpl.ProductID
		line.Name = tpl.Name
	case item.ProductID != "":
		var ok bool
		product, ok = snap.Products[item.ProductID]
		if !ok {
			verr.Add(i, "product_id", "product %s not found", item.ProductID)
			return Line{}, false
		}
		colors, sizes = product.Colors, product.Sizes
		line.Name = product.Name
	default:
		verr.Add(i, "product_id", "product or template is required")
		return Line{}, false
	}
	if line.Name == "" {
		line.Name = product.Name
	}

	valid := true
	if !product.IsActive || !product.InStock {
		verr.Add(i, "product_id", "product %s is not available", product.ID)
		valid = false
	}
	if !optionAllowed(colors, item.Color) {
		verr.Add(i, "color", "color %q is not available", item.Color)
		valid = false
	}
	if !optionAllowed(sizes, item.Size) {
		verr.Add(i, "size", "size %q is not available", item.Size)
		valid = false
	}
	if !valid {
		return Line{}, false
	}

	unit := product.BasePrice
	if override, ok := snap.SellerPrices[product.ID]; ok {
		unit = override
	}
	line.UnitCost = unit.Add(viewSurcharges)
	if line.Reorder {
		line.Cost = decimal.Zero
	} else {
		line.Cost = line.UnitCost.Mul(decimal.NewFromInt(int64(item.Quantity)))
	}
	return line, true
}

// optionAllowed checks a color or size against its allowed set. Products
// without variants accept only an empty value.
func optionAllowed(set []string, v string) bool {
	if len(set) == 0 {
		return v == ""
	}
	return allowed(set, v)
}
