package stock

import (
	"errors"
	"math"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"liquorpos/backend/internal/domain"
)

func beerFamily() []domain.Product {
	return []domain.Product{
		{ID: "p-b1", SKU: "B1", Name: "Beer-Single", BaseProductSKU: "B1", ContainedUnits: 1, Stock: 100, Threshold: 10},
		{ID: "p-b6", SKU: "B6", Name: "Beer-SixPack", BaseProductSKU: "B1", ContainedUnits: 6, Stock: 16, Threshold: 2},
	}
}

func writesBySKU(ws WriteSet) map[string]StockWrite {
	out := make(map[string]StockWrite, len(ws.Writes))
	for _, w := range ws.Writes {
		out[w.SKU] = w
	}
	return out
}

func TestDeriveStatus(t *testing.T) {
	cases := []struct {
		stock     int
		threshold int
		want      domain.StockStatus
	}{
		{stock: 11, threshold: 10, want: domain.StatusInStock},
		{stock: 10, threshold: 10, want: domain.StatusLowStock},
		{stock: 1, threshold: 10, want: domain.StatusLowStock},
		{stock: 0, threshold: 10, want: domain.StatusOutOfStock},
		{stock: -3, threshold: 0, want: domain.StatusOutOfStock},
		{stock: 1, threshold: 0, want: domain.StatusInStock},
	}
	for _, tc := range cases {
		assert.Equal(t, tc.want, DeriveStatus(tc.stock, tc.threshold), "stock=%d threshold=%d", tc.stock, tc.threshold)
	}
}

func TestNewDemandAccumulatesPerBaseSKU(t *testing.T) {
	products := beerFamily()
	demand, err := NewDemand([]Line{
		{Product: products[1], Quantity: 2},
		{Product: products[0], Quantity: 3},
		{Product: domain.Product{ID: "p-w1", SKU: "W1", ContainedUnits: 0}, Quantity: 4},
	})
	require.NoError(t, err)

	assert.Equal(t, 15, demand["B1"])
	assert.Equal(t, 4, demand["W1"], "contained units below one count as one")
	assert.Equal(t, []string{"B1", "W1"}, demand.BaseSKUs())
}

func TestNewDemandRejectsNonPositiveQuantity(t *testing.T) {
	_, err := NewDemand([]Line{{Product: beerFamily()[0], Quantity: 0}})
	require.ErrorIs(t, err, ErrInvalidQuantity)
}

func TestNewDemandRejectsOverflowingQuantity(t *testing.T) {
	products := beerFamily()

	_, err := NewDemand([]Line{{Product: products[1], Quantity: math.MaxInt/6 + 1}})
	require.ErrorIs(t, err, ErrInvalidQuantity)

	_, err = NewDemand([]Line{
		{Product: products[0], Quantity: math.MaxInt - 1},
		{Product: products[1], Quantity: 1},
	})
	require.ErrorIs(t, err, ErrInvalidQuantity)

	demand, err := NewDemand([]Line{{Product: products[1], Quantity: math.MaxInt / 6}})
	require.NoError(t, err)
	assert.Positive(t, demand["B1"])
}

func TestPlanSixPackSale(t *testing.T) {
	products := beerFamily()
	demand, err := NewDemand([]Line{{Product: products[1], Quantity: 2}})
	require.NoError(t, err)

	rs, err := NewReadSet(demand.BaseSKUs(), products)
	require.NoError(t, err)

	plan, err := rs.Plan(demand, Remove)
	require.NoError(t, err)
	require.Len(t, plan.Writes, 2)

	got := writesBySKU(plan)
	assert.Equal(t, 88, got["B1"].Stock)
	assert.Equal(t, domain.StatusInStock, got["B1"].Status)
	assert.Equal(t, 14, got["B6"].Stock)
	assert.Equal(t, domain.StatusInStock, got["B6"].Status)
	assert.Equal(t, 16, got["B6"].PreviousStock)
}

func TestPlanUsesEachProductsOwnThreshold(t *testing.T) {
	products := beerFamily()
	demand, err := NewDemand([]Line{
		{Product: products[1], Quantity: 15},
		{Product: products[0], Quantity: 2},
	})
	require.NoError(t, err)

	rs, err := NewReadSet(demand.BaseSKUs(), products)
	require.NoError(t, err)
	plan, err := rs.Plan(demand, Remove)
	require.NoError(t, err)

	got := writesBySKU(plan)
	assert.Equal(t, 8, got["B1"].Stock)
	assert.Equal(t, domain.StatusLowStock, got["B1"].Status)
	assert.Equal(t, 1, got["B6"].Stock)
	assert.Equal(t, domain.StatusLowStock, got["B6"].Status)
}

func TestPlanRejectsOversell(t *testing.T) {
	products := beerFamily()
	demand, err := NewDemand([]Line{{Product: products[0], Quantity: 101}})
	require.NoError(t, err)

	rs, err := NewReadSet(demand.BaseSKUs(), products)
	require.NoError(t, err)

	plan, err := rs.Plan(demand, Remove)
	require.ErrorIs(t, err, ErrInsufficientStock)
	assert.Empty(t, plan.Writes)

	var insufficient *InsufficientStockError
	require.True(t, errors.As(err, &insufficient))
	assert.Equal(t, "B1", insufficient.BaseSKU)
	assert.Equal(t, 101, insufficient.Requested)
	assert.Equal(t, 100, insufficient.Available)
	assert.Equal(t, 1, insufficient.Shortfall())
}

func TestPlanRestoreNeverFailsStockCheck(t *testing.T) {
	products := beerFamily()
	products[0].Stock = 0
	products[1].Stock = 0

	demand, err := NewDemand([]Line{{Product: products[1], Quantity: 2}})
	require.NoError(t, err)
	rs, err := NewReadSet(demand.BaseSKUs(), products)
	require.NoError(t, err)

	plan, err := rs.Plan(demand, Restore)
	require.NoError(t, err)

	got := writesBySKU(plan)
	assert.Equal(t, 12, got["B1"].Stock)
	assert.Equal(t, 2, got["B6"].Stock)
	assert.Equal(t, domain.StatusLowStock, got["B6"].Status)
	assert.Equal(t, Restore, plan.Direction)
}

func TestNewReadSetRequiresBaseProduct(t *testing.T) {
	variantOnly := []domain.Product{beerFamily()[1]}
	_, err := NewReadSet([]string{"B1"}, variantOnly)
	require.ErrorIs(t, err, ErrBaseProductNotFound)

	var notFound *BaseProductNotFoundError
	require.True(t, errors.As(err, &notFound))
	assert.Equal(t, "B1", notFound.BaseSKU)
}

func TestNewReadSetRejectsMislinkedBase(t *testing.T) {
	products := beerFamily()
	products[0].BaseProductSKU = "X1"

	_, err := NewReadSet([]string{"B1"}, products)
	require.ErrorIs(t, err, ErrBaseProductNotFound)
}

func TestNewReadSetCollapsesDuplicates(t *testing.T) {
	products := beerFamily()
	doubled := append(append([]domain.Product{}, products...), products...)

	rs, err := NewReadSet([]string{"B1"}, doubled)
	require.NoError(t, err)

	family, ok := rs.Family("B1")
	require.True(t, ok)
	assert.Equal(t, "B1", family.Base.SKU)
	assert.Len(t, family.Members, 2)
}

func TestPlanBaseOnlyFamily(t *testing.T) {
	vodka := domain.Product{ID: "p-v1", SKU: "V1", Stock: 5, Threshold: 5}
	demand, err := NewDemand([]Line{{Product: vodka, Quantity: 1}})
	require.NoError(t, err)
	rs, err := NewReadSet(demand.BaseSKUs(), []domain.Product{vodka})
	require.NoError(t, err)

	plan, err := rs.Plan(demand, Remove)
	require.NoError(t, err)
	require.Len(t, plan.Writes, 1)
	assert.Equal(t, 4, plan.Writes[0].Stock)
	assert.Equal(t, domain.StatusLowStock, plan.Writes[0].Status)
}

func TestPlanRejectsDemandOutsideReadSet(t *testing.T) {
	rs, err := NewReadSet([]string{"B1"}, beerFamily())
	require.NoError(t, err)

	_, err = rs.Plan(Demand{"W1": 1}, Remove)
	require.ErrorIs(t, err, ErrBaseProductNotFound)
}

func TestSaleThenRestoreConservesBaseUnits(t *testing.T) {
	products := beerFamily()
	demand, err := NewDemand([]Line{
		{Product: products[1], Quantity: 3},
		{Product: products[0], Quantity: 5},
	})
	require.NoError(t, err)

	rs, err := NewReadSet(demand.BaseSKUs(), products)
	require.NoError(t, err)
	sold, err := rs.Plan(demand, Remove)
	require.NoError(t, err)

	after := make([]domain.Product, len(products))
	copy(after, products)
	got := writesBySKU(sold)
	for i := range after {
		after[i].Stock = got[after[i].SKU].Stock
	}
	assert.Equal(t, 100-23, after[0].Stock)

	rs, err = NewReadSet(demand.BaseSKUs(), after)
	require.NoError(t, err)
	restored, err := rs.Plan(demand, Restore)
	require.NoError(t, err)

	back := writesBySKU(restored)
	assert.Equal(t, 100, back["B1"].Stock)
	for _, p := range products {
		assert.Equal(t, back["B1"].Stock/p.Units(), back[p.SKU].Stock, "family invariant for %s", p.SKU)
	}
}
