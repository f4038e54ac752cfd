package pricing

import (
	"context"
	"slices"

	"github.com/go-faster/errors"
)

// Resolver loads catalog data for a request and prices it.
type Resolver struct {
	catalog  Catalog
	settings SettingsProvider
}

// NewResolver creates a Resolver over the given catalog and settings.
func NewResolver(catalog Catalog, settings SettingsProvider) *Resolver {
	return &Resolver{catalog: catalog, settings: settings}
}

// Resolve returns the quote for req. Validation problems are returned as
// *ValidationError; lookup failures are wrapped.
func (r *Resolver) Resolve(ctx context.Context, req Request) (*Quote, error) {
	snap, err := r.Snapshot(ctx, req)
	if err != nil {
		return nil, err
	}
	s, err := r.settings.Settings(ctx)
	if err != nil {
		return nil, errors.Wrap(err, "load settings")
	}
	return Compute(req, snap, s)
}

// Snapshot fetches every product, template and seller override the request
// references. Missing entries are simply absent; Compute reports them.
func (r *Resolver) Snapshot(ctx context.Context, req Request) (Snapshot, error) {
	var templateIDs, productIDs []string
	for _, item := range req.Items {
		if item.TemplateID != "" {
			templateIDs = appendUnique(templateIDs, item.TemplateID)
		}
		if item.ProductID != "" {
			productIDs = appendUnique(productIDs, item.ProductID)
		}
	}

	snap := Snapshot{
		Products:  make(map[string]Product),
		Templates: make(map[string]Template),
	}
	if len(templateIDs) > 0 {
		templates, err := r.catalog.TemplatesByIDs(ctx, templateIDs)
		if err != nil {
			return Snapshot{}, errors.Wrap(err, "get templates")
		}
		for _, t := range templates {
			snap.Templates[t.ID] = t
			productIDs = appendUnique(productIDs, t.ProductID)
		}
	}
	if len(productIDs) == 0 {
		return snap, nil
	}

	products, err := r.catalog.ProductsByIDs(ctx, productIDs)
	if err != nil {
		return Snapshot{}, errors.Wrap(err, "get products")
	}
	for _, p := range products {
		snap.Products[p.ID] = p
	}

	snap.SellerPrices, err = r.catalog.SellerPrices(ctx, req.SellerID, productIDs)
	if err != nil {
		return Snapshot{}, errors.Wrap(err, "get seller prices")
	}
	return snap, nil
}

func appendUnique(ids []string, id string) []string {
	if slices.Contains(ids, id) {
		return ids
	}
	return append(ids, id)
}
