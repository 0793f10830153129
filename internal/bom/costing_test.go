package bom

import (
	"testing"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/require"
)

func dec(t *testing.T, s string) decimal.Decimal {
	t.Helper()
	d, err := decimal.NewFromString(s)
	require.NoError(t, err)
	return d
}

func ndec(t *testing.T, s string) decimal.NullDecimal {
	t.Helper()
	return decimal.NullDecimal{Decimal: dec(t, s), Valid: true}
}

func TestQuantityWithLoss(t *testing.T) {
	item := Item{Quantity: dec(t, "10"), LossPercentage: dec(t, "5")}
	require.True(t, dec(t, "10.5").Equal(item.QuantityWithLoss()))

	item = Item{Quantity: dec(t, "10"), LossPercentage: decimal.Zero}
	require.True(t, dec(t, "10").Equal(item.QuantityWithLoss()))

	// Division by 100 keeps four fractional digits, half-up.
	item = Item{Quantity: dec(t, "3"), LossPercentage: dec(t, "0.125")}
	require.True(t, dec(t, "3.0039").Equal(item.QuantityWithLoss().Round(costScale)))
}

func TestCalculateTotalCost(t *testing.T) {
	item := Item{
		Quantity:       dec(t, "10"),
		LossPercentage: dec(t, "5"),
		UnitCost:       ndec(t, "2.00"),
	}
	item.CalculateTotalCost()
	require.True(t, item.TotalCost.Valid)
	require.True(t, dec(t, "21.0000").Equal(item.TotalCost.Decimal))
}

func TestCalculateTotalCostUnknownUnitCost(t *testing.T) {
	item := Item{Quantity: dec(t, "10"), LossPercentage: dec(t, "5")}
	item.CalculateTotalCost()
	require.False(t, item.TotalCost.Valid)
}

func TestCalculateTotalCostIdempotent(t *testing.T) {
	item := Item{
		Quantity:       dec(t, "7.3333"),
		LossPercentage: dec(t, "12.5"),
		UnitCost:       ndec(t, "0.0199"),
	}
	item.CalculateTotalCost()
	first := item.TotalCost
	item.CalculateTotalCost()
	require.True(t, first.Decimal.Equal(item.TotalCost.Decimal))
}

func TestSumItemCostsSkipsUncosted(t *testing.T) {
	items := []Item{
		{TotalCost: ndec(t, "21.0000")},
		{},
		{TotalCost: ndec(t, "5.5000")},
	}
	require.True(t, dec(t, "26.5000").Equal(SumItemCosts(items)))
}

func TestSummarize(t *testing.T) {
	compositionID := uuid.New()
	items := []Item{
		{
			ID:             uuid.New(),
			ItemType:       ItemTypeRawMaterial,
			Quantity:       dec(t, "10"),
			LossPercentage: dec(t, "5"),
			UnitCost:       ndec(t, "2.00"),
		},
		{
			ID:       uuid.New(),
			ItemType: ItemTypeService,
			Quantity: dec(t, "1"),
		},
	}
	items[0].CalculateTotalCost()
	items[1].CalculateTotalCost()

	summary := Summarize(compositionID, items)
	require.Equal(t, compositionID, summary.CompositionID)
	require.Equal(t, 2, summary.TotalItems)
	require.True(t, dec(t, "21.0000").Equal(summary.TotalCost))
	require.Len(t, summary.Items, 2)
	require.True(t, dec(t, "10.5").Equal(summary.Items[0].QuantityWithLoss))
	require.False(t, summary.Items[1].TotalCost.Valid)
}
