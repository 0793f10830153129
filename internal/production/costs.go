package production

import (
	"context"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
)

// AddCostInput describes a new ledger entry.
type AddCostInput struct {
	TenantID    uuid.UUID
	CompanyID   uuid.UUID
	OrderID     uuid.UUID
	CostType    CostType
	ReferenceID *uuid.UUID
	CostDate    *time.Time
	Quantity    decimal.Decimal
	UnitCost    decimal.Decimal
	TotalCost   *decimal.Decimal
	Notes       string
}

// UpdateCostInput carries partial cost updates; nil fields are left
// untouched.
type UpdateCostInput struct {
	CostType    *CostType
	ReferenceID *uuid.UUID
	CostDate    *time.Time
	Quantity    *decimal.Decimal
	UnitCost    *decimal.Decimal
	TotalCost   *decimal.Decimal
	Notes       *string
}

// AddCost appends one ledger entry and refreshes the order's cost
// total in the same transaction. The entry total defaults to
// unit cost times quantity at two decimal places.
func (s *Service) AddCost(ctx context.Context, input AddCostInput, actor string) (Cost, error) {
	if !input.CostType.Valid() {
		return Cost{}, ErrInvalidCostType
	}
	if input.Quantity.IsNegative() {
		return Cost{}, ErrInvalidQuantity
	}
	if input.UnitCost.IsNegative() {
		return Cost{}, ErrInvalidUnitCost
	}
	now := s.clock()
	costDate := now
	if input.CostDate != nil {
		costDate = *input.CostDate
	}
	total := input.UnitCost.Mul(input.Quantity).Round(moneyScale)
	if input.TotalCost != nil {
		total = input.TotalCost.Round(moneyScale)
	}
	cost := Cost{
		ID:          uuid.New(),
		TenantID:    input.TenantID,
		CompanyID:   input.CompanyID,
		OrderID:     input.OrderID,
		CostType:    input.CostType,
		ReferenceID: input.ReferenceID,
		CostDate:    costDate,
		Quantity:    input.Quantity,
		UnitCost:    input.UnitCost,
		TotalCost:   total,
		Notes:       input.Notes,
	}
	cost.StampCreated(now, actor)

	err := s.repo.WithTx(ctx, func(ctx context.Context, tx TxRepository) error {
		if _, err := tx.GetOrderForUpdate(ctx, input.OrderID); err != nil {
			return err
		}
		if err := tx.InsertCost(ctx, cost); err != nil {
			return err
		}
		return s.refreshOrderCost(ctx, tx, input.OrderID, actor)
	})
	if err != nil {
		return Cost{}, err
	}
	s.record(ctx, actor, "production:cost_add", cost.ID, map[string]any{
		"order_id":  input.OrderID.String(),
		"cost_type": string(input.CostType),
	})
	return cost, nil
}

// UpdateCost overwrites ledger fields in place and refreshes the
// order's cost total in the same transaction.
func (s *Service) UpdateCost(ctx context.Context, id uuid.UUID, input UpdateCostInput, actor string) (Cost, error) {
	var updated Cost
	err := s.repo.WithTx(ctx, func(ctx context.Context, tx TxRepository) error {
		cost, err := tx.GetCostForUpdate(ctx, id)
		if err != nil {
			return err
		}
		if input.CostType != nil {
			if !input.CostType.Valid() {
				return ErrInvalidCostType
			}
			cost.CostType = *input.CostType
		}
		if input.ReferenceID != nil {
			cost.ReferenceID = input.ReferenceID
		}
		if input.CostDate != nil {
			cost.CostDate = *input.CostDate
		}
		if input.Quantity != nil {
			if input.Quantity.IsNegative() {
				return ErrInvalidQuantity
			}
			cost.Quantity = *input.Quantity
		}
		if input.UnitCost != nil {
			if input.UnitCost.IsNegative() {
				return ErrInvalidUnitCost
			}
			cost.UnitCost = *input.UnitCost
		}
		if input.TotalCost != nil {
			cost.TotalCost = input.TotalCost.Round(moneyScale)
		} else {
			cost.TotalCost = cost.UnitCost.Mul(cost.Quantity).Round(moneyScale)
		}
		if input.Notes != nil {
			cost.Notes = *input.Notes
		}
		cost.StampUpdated(s.clock(), actor)
		if err := tx.UpdateCost(ctx, cost); err != nil {
			return err
		}
		if err := s.refreshOrderCost(ctx, tx, cost.OrderID, actor); err != nil {
			return err
		}
		updated = cost
		return nil
	})
	if err != nil {
		return Cost{}, err
	}
	s.record(ctx, actor, "production:cost_update", id, nil)
	return updated, nil
}

// DeleteCost tombstones a ledger entry and refreshes the order's cost
// total in the same transaction.
func (s *Service) DeleteCost(ctx context.Context, id uuid.UUID, actor string) error {
	err := s.repo.WithTx(ctx, func(ctx context.Context, tx TxRepository) error {
		cost, err := tx.GetCostForUpdate(ctx, id)
		if err != nil {
			return err
		}
		cost.StampDeleted(s.clock(), actor)
		if err := tx.UpdateCost(ctx, cost); err != nil {
			return err
		}
		return s.refreshOrderCost(ctx, tx, cost.OrderID, actor)
	})
	if err != nil {
		return err
	}
	s.record(ctx, actor, "production:cost_delete", id, nil)
	return nil
}

// ApproveCost stamps the approval pair. Repeatable, last write wins.
func (s *Service) ApproveCost(ctx context.Context, id uuid.UUID, actor string) (Cost, error) {
	var approved Cost
	err := s.repo.WithTx(ctx, func(ctx context.Context, tx TxRepository) error {
		cost, err := tx.GetCostForUpdate(ctx, id)
		if err != nil {
			return err
		}
		now := s.clock()
		cost.ApprovedBy = actor
		cost.ApprovedAt = &now
		cost.StampUpdated(now, actor)
		if err := tx.UpdateCost(ctx, cost); err != nil {
			return err
		}
		approved = cost
		return nil
	})
	if err != nil {
		return Cost{}, err
	}
	s.record(ctx, actor, "production:cost_approve", id, nil)
	return approved, nil
}

// GetCost loads a ledger entry by id.
func (s *Service) GetCost(ctx context.Context, id uuid.UUID) (Cost, error) {
	return s.repo.GetCost(ctx, id)
}

// ListCosts lists the non-deleted ledger entries of one order.
func (s *Service) ListCosts(ctx context.Context, orderID uuid.UUID) ([]Cost, error) {
	return s.repo.ListCosts(ctx, orderID)
}

// SumCostsByType buckets an order's ledger by cost type.
func SumCostsByType(costs []Cost) map[CostType]decimal.Decimal {
	sums := map[CostType]decimal.Decimal{}
	for _, cost := range costs {
		sums[cost.CostType] = sums[cost.CostType].Add(cost.TotalCost)
	}
	return sums
}

// refreshOrderCost must run inside the same transaction as the cost
// mutation that made the stored total stale.
func (s *Service) refreshOrderCost(ctx context.Context, tx TxRepository, orderID uuid.UUID, actor string) error {
	order, err := tx.GetOrderForUpdate(ctx, orderID)
	if err != nil {
		return err
	}
	costs, err := tx.ListCosts(ctx, orderID)
	if err != nil {
		return err
	}
	total := decimal.Zero
	for _, cost := range costs {
		total = total.Add(cost.TotalCost)
	}
	order.CostTotal = total.Round(moneyScale)
	order.StampUpdated(s.clock(), actor)
	return tx.UpdateOrder(ctx, order)
}
