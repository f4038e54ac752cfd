package pricing

import (
	"encoding/json"
	"testing"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func d(v string) decimal.Decimal {
	return decimal.RequireFromString(v)
}

func testSettings() Settings {
	return Settings{
		PackagingPrice: d("5"),
		ShippingHub:    d("20"),
		ShippingOther:  d("35"),
		HubCity:        "Casablanca",
	}
}

func testSnapshot() Snapshot {
	tee := Product{
		ID:        "tee",
		Name:      "Classic Tee",
		BasePrice: d("75"),
		Colors:    []string{"black", "white"},
		Sizes:     []string{"M", "L"},
		IsActive:  true,
		InStock:   true,
		Views: []View{
			{Key: "front", Price: d("10")},
			{Key: "back", Price: d("12.50")},
		},
	}
	mug := Product{
		ID:        "mug",
		Name:      "Mug",
		BasePrice: d("40"),
		Colors:    []string{"white"},
		IsActive:  true,
		InStock:   true,
	}
	retired := Product{ID: "old", Name: "Old", BasePrice: d("10"), IsActive: false, InStock: true}

	return Snapshot{
		Products: map[string]Product{"tee": tee, "mug": mug, "old": retired},
		Templates: map[string]Template{
			"tpl-1": {
				ID: "tpl-1", OwnerID: "seller-1", ProductID: "tee", Name: "Sunset Tee",
				Status: TemplateStatusApproved,
				Colors: []string{"black"}, Sizes: []string{"L"},
				Design: map[string]json.RawMessage{
					"front": json.RawMessage(`{"objects":[{"type":"image"}]}`),
					"back":  json.RawMessage(`{"objects":[]}`),
				},
			},
			"tpl-draft": {
				ID: "tpl-draft", OwnerID: "seller-1", ProductID: "tee",
				Status: "pending", Colors: []string{"black"}, Sizes: []string{"L"},
			},
			"tpl-foreign": {
				ID: "tpl-foreign", OwnerID: "seller-2", ProductID: "tee",
				Status: TemplateStatusApproved, Colors: []string{"black"}, Sizes: []string{"L"},
			},
		},
		SellerPrices: map[string]decimal.Decimal{"mug": d("30")},
	}
}

func TestCompute_ProductOrderAtHub(t *testing.T) {
	q, err := Compute(Request{
		SellerID:      "seller-1",
		Items:         []Item{{ProductID: "tee", Color: "black", Size: "M", Quantity: 1}},
		WithPackaging: true,
		City:          "  CASABLANCA ",
		TotalPrice:    d("180"),
	}, testSnapshot(), testSettings())

	require.NoError(t, err)
	assert.True(t, d("75").Equal(q.ItemsCost), "items cost %s", q.ItemsCost)
	assert.True(t, d("5").Equal(q.Packaging))
	assert.True(t, d("20").Equal(q.Shipping))
	assert.True(t, d("100").Equal(q.ProductionCost), "production cost %s", q.ProductionCost)
	assert.True(t, d("180").Equal(q.CustomerTotal))
}

func TestCompute_SellerOverrideAndOtherCity(t *testing.T) {
	q, err := Compute(Request{
		SellerID: "seller-1",
		Items:    []Item{{ProductID: "mug", Color: "white", Quantity: 3}},
		City:     "Rabat",
	}, testSnapshot(), testSettings())

	require.NoError(t, err)
	require.Len(t, q.Lines, 1)
	assert.True(t, d("30").Equal(q.Lines[0].UnitCost))
	assert.True(t, d("90").Equal(q.ItemsCost))
	assert.True(t, decimal.Zero.Equal(q.Packaging))
	assert.True(t, d("125").Equal(q.ProductionCost))
}

func TestCompute_TemplateViewSurcharge(t *testing.T) {
	q, err := Compute(Request{
		SellerID: "seller-1",
		Items:    []Item{{TemplateID: "tpl-1", Color: "black", Size: "L", Quantity: 2}},
		City:     "casablanca",
	}, testSnapshot(), testSettings())

	require.NoError(t, err)
	line := q.Lines[0]
	// Only the front view carries placed objects.
	assert.True(t, d("85").Equal(line.UnitCost), "unit cost %s", line.UnitCost)
	assert.True(t, d("170").Equal(line.Cost))
	assert.Equal(t, "tee", line.ProductID)
	assert.Equal(t, "Sunset Tee", line.Name)
	assert.True(t, d("190").Equal(q.ProductionCost))
}

func TestCompute_ReorderLineIsFree(t *testing.T) {
	q, err := Compute(Request{
		SellerID: "seller-1",
		Items: []Item{
			{TemplateID: "tpl-1", Color: "black", Size: "L", Quantity: 4, ReorderFromOrderID: "ord-1"},
		},
		City: "Fes",
	}, testSnapshot(), testSettings())

	require.NoError(t, err)
	assert.True(t, q.Lines[0].Reorder)
	assert.True(t, decimal.Zero.Equal(q.Lines[0].Cost))
	assert.True(t, d("35").Equal(q.ProductionCost))
}

func TestCompute_ValidationErrors(t *testing.T) {
	tests := []struct {
		name      string
		item      Item
		wantField string
		wantText  string
	}{
		{
			name:      "unknown product",
			item:      Item{ProductID: "nope", Quantity: 1},
			wantField: "product_id",
			wantText:  "not found",
		},
		{
			name:      "unknown template",
			item:      Item{TemplateID: "nope", Quantity: 1},
			wantField: "template_id",
			wantText:  "not found",
		},
		{
			name:      "zero quantity",
			item:      Item{ProductID: "tee", Color: "black", Size: "M"},
			wantField: "quantity",
			wantText:  "greater than 0",
		},
		{
			name:      "color not allowed",
			item:      Item{ProductID: "tee", Color: "pink", Size: "M", Quantity: 1},
			wantField: "color",
			wantText:  "pink",
		},
		{
			name:      "size not allowed by template",
			item:      Item{TemplateID: "tpl-1", Color: "black", Size: "M", Quantity: 1},
			wantField: "size",
			wantText:  "\"M\"",
		},
		{
			name:      "template not approved",
			item:      Item{TemplateID: "tpl-draft", Color: "black", Size: "L", Quantity: 1},
			wantField: "template_id",
			wantText:  "not approved",
		},
		{
			name:      "foreign template",
			item:      Item{TemplateID: "tpl-foreign", Color: "black", Size: "L", Quantity: 1},
			wantField: "template_id",
			wantText:  "does not belong",
		},
		{
			name:      "inactive product",
			item:      Item{ProductID: "old", Quantity: 1},
			wantField: "product_id",
			wantText:  "not available",
		},
		{
			name:      "reorder still validates options",
			item:      Item{ProductID: "tee", Color: "green", Size: "M", Quantity: 1, ReorderFromOrderID: "ord-1"},
			wantField: "color",
			wantText:  "green",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := Compute(Request{
				SellerID: "seller-1",
				Items:    []Item{{ProductID: "mug", Color: "white", Quantity: 1}, tt.item},
			}, testSnapshot(), testSettings())

			var verr *ValidationError
			require.ErrorAs(t, err, &verr)
			require.Len(t, verr.Issues, 1)
			assert.Equal(t, 1, verr.Issues[0].Index)
			assert.Equal(t, tt.wantField, verr.Issues[0].Field)
			assert.Contains(t, verr.Issues[0].Message, tt.wantText)
			assert.Contains(t, err.Error(), "item 1:")
		})
	}
}

func TestCompute_OrderLevelErrors(t *testing.T) {
	_, err := Compute(Request{TotalPrice: d("-1")}, testSnapshot(), testSettings())

	var verr *ValidationError
	require.ErrorAs(t, err, &verr)
	require.Len(t, verr.Issues, 2)
	for _, issue := range verr.Issues {
		assert.Equal(t, OrderLevel, issue.Index)
	}
}

func TestShippingFee_DefaultHub(t *testing.T) {
	s := DefaultSettings()
	s.HubCity = ""

	assert.True(t, s.ShippingHub.Equal(s.ShippingFee("Casablanca")))
	assert.True(t, s.ShippingOther.Equal(s.ShippingFee("Marrakech")))
}
