package bom

import (
	"github.com/google/uuid"
	"github.com/shopspring/decimal"
)

// Quantities and unit costs carry four fractional digits; rounding is
// half-up throughout.
const costScale = 4

var hundred = decimal.NewFromInt(100)

// QuantityWithLoss returns the item quantity inflated by its expected
// wastage: quantity * (1 + lossPercentage/100). The division is
// performed at four decimal places, half-up.
func (i *Item) QuantityWithLoss() decimal.Decimal {
	if i.LossPercentage.IsZero() {
		return i.Quantity
	}
	multiplier := decimal.NewFromInt(1).Add(i.LossPercentage.DivRound(hundred, costScale))
	return i.Quantity.Mul(multiplier)
}

// CalculateTotalCost recomputes the item's cost snapshot. When the
// unit cost is unknown the total is left unset; costing never fails on
// an uncosted item. Called immediately before every persist so the
// stored total is always in sync with quantity, loss and unit cost.
func (i *Item) CalculateTotalCost() {
	if !i.UnitCost.Valid {
		i.TotalCost = decimal.NullDecimal{}
		return
	}
	total := i.UnitCost.Decimal.Mul(i.QuantityWithLoss()).Round(costScale)
	i.TotalCost = decimal.NullDecimal{Decimal: total, Valid: true}
}

// SumItemCosts totals the cost snapshots of the given items, treating
// unset totals as zero.
func SumItemCosts(items []Item) decimal.Decimal {
	total := decimal.Zero
	for _, item := range items {
		if item.TotalCost.Valid {
			total = total.Add(item.TotalCost.Decimal)
		}
	}
	return total
}

// Summarize builds the costed view of a composition's items.
func Summarize(compositionID uuid.UUID, items []Item) CostSummary {
	summary := CostSummary{
		CompositionID: compositionID,
		TotalItems:    len(items),
		TotalCost:     SumItemCosts(items),
		Items:         make([]ItemCost, 0, len(items)),
	}
	for _, item := range items {
		summary.Items = append(summary.Items, ItemCost{
			ItemID:           item.ID,
			ItemType:         item.ItemType,
			ReferenceID:      item.ReferenceID,
			Quantity:         item.Quantity,
			QuantityWithLoss: item.QuantityWithLoss(),
			UnitCost:         item.UnitCost,
			TotalCost:        item.TotalCost,
		})
	}
	return summary
}
