package pricing

import (
	"context"
	"encoding/json"
	"slices"

	"github.com/shopspring/decimal"
)

// TemplateStatusApproved is the only template status that may be ordered.
const TemplateStatusApproved = "approved"

// Product is the catalog view of a printable blank (t-shirt, mug, ...).
type Product struct {
	ID        string
	Name      string
	BasePrice decimal.Decimal
	Colors    []string
	Sizes     []string
	IsActive  bool
	InStock   bool
	// Views lists the printable sides of the product with their surcharge.
	Views []View
}

// View is a mockup side ("front", "back", "sleeve") that can carry a design.
type View struct {
	Key   string
	Price decimal.Decimal
}

// Template is a seller design placed on a product.
type Template struct {
	ID        string
	OwnerID   string
	ProductID string
	Name      string
	Status    string
	Colors    []string
	Sizes     []string
	// Design holds the saved canvas state per view key.
	Design map[string]json.RawMessage
}

// Approved reports whether the template can be ordered.
func (t Template) Approved() bool {
	return t.Status == TemplateStatusApproved
}

// Catalog provides read access to products, templates and seller price overrides.
type Catalog interface {
	ProductsByIDs(ctx context.Context, ids []string) ([]Product, error)
	TemplatesByIDs(ctx context.Context, ids []string) ([]Template, error)
	// SellerPrices returns override prices keyed by product id. Products
	// without an override are absent from the map.
	SellerPrices(ctx context.Context, sellerID string, productIDs []string) (map[string]decimal.Decimal, error)
}

func allowed(set []string, v string) bool {
	return slices.Contains(set, v)
}
