package pricing

import (
	"testing"

	"github.com/leanovate/gopter"
	"github.com/leanovate/gopter/gen"
	"github.com/leanovate/gopter/prop"
	"github.com/shopspring/decimal"
)

func TestComputeProperties(t *testing.T) {
	parameters := gopter.DefaultTestParameters()
	parameters.MinSuccessfulTests = 200
	properties := gopter.NewProperties(parameters)

	snapWithPrice := func(cents int64) Snapshot {
		snap := testSnapshot()
		tee := snap.Products["tee"]
		tee.BasePrice = decimal.New(cents, -2)
		snap.Products["tee"] = tee
		return snap
	}

	properties.Property("reorder lines never cost anything", prop.ForAll(
		func(cents int64, qty int) bool {
			q, err := Compute(Request{
				SellerID: "seller-1",
				Items: []Item{{
					ProductID: "tee", Color: "white", Size: "L",
					Quantity: qty, ReorderFromOrderID: "ord-src",
				}},
				City: "Tangier",
			}, snapWithPrice(cents), testSettings())
			if err != nil {
				return false
			}
			return q.Lines[0].Cost.IsZero() && q.ItemsCost.IsZero()
		},
		gen.Int64Range(0, 10_000_000),
		gen.IntRange(1, 500),
	))

	properties.Property("production cost is items plus packaging plus shipping", prop.ForAll(
		func(cents int64, qty int, packaging bool, hub bool) bool {
			city := "Agadir"
			if hub {
				city = "casablanca"
			}
			s := testSettings()
			q, err := Compute(Request{
				SellerID:      "seller-1",
				Items:         []Item{{ProductID: "tee", Color: "black", Size: "M", Quantity: qty}},
				WithPackaging: packaging,
				City:          city,
			}, snapWithPrice(cents), s)
			if err != nil {
				return false
			}
			want := decimal.New(cents, -2).Mul(decimal.NewFromInt(int64(qty))).Add(s.ShippingFee(city))
			if packaging {
				want = want.Add(s.PackagingPrice)
			}
			return q.ProductionCost.Equal(want.Round(2))
		},
		gen.Int64Range(0, 10_000_000),
		gen.IntRange(1, 500),
		gen.Bool(),
		gen.Bool(),
	))

	properties.TestingRun(t)
}
