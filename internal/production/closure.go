package production

import (
	"context"
	"errors"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
)

// CreateClosureInput describes the final cost snapshot of one order.
// Absent buckets count as zero; the grand total is always recomputed
// server-side.
type CreateClosureInput struct {
	TenantID      uuid.UUID
	CompanyID     uuid.UUID
	OrderID       uuid.UUID
	TotalMaterial *decimal.Decimal
	TotalService  *decimal.Decimal
	TotalLabor    *decimal.Decimal
	TotalIndirect *decimal.Decimal
	ClosureDate   *time.Time
	Notes         string
}

// CreateClosure records the one-per-order snapshot. A second closure
// for the same order fails; the explicit lookup catches the common
// case and the unique index on order_id backstops the race.
func (s *Service) CreateClosure(ctx context.Context, input CreateClosureInput, actor string) (Closure, error) {
	now := s.clock()
	closureDate := now
	if input.ClosureDate != nil {
		closureDate = *input.ClosureDate
	}
	closure := Closure{
		ID:            uuid.New(),
		TenantID:      input.TenantID,
		CompanyID:     input.CompanyID,
		OrderID:       input.OrderID,
		TotalMaterial: bucketOrZero(input.TotalMaterial),
		TotalService:  bucketOrZero(input.TotalService),
		TotalLabor:    bucketOrZero(input.TotalLabor),
		TotalIndirect: bucketOrZero(input.TotalIndirect),
		ClosureDate:   closureDate,
		ClosedAt:      now,
		ClosedBy:      actor,
		Notes:         input.Notes,
	}
	closure.RecomputeTotal()
	closure.StampCreated(now, actor)

	err := s.repo.WithTx(ctx, func(ctx context.Context, tx TxRepository) error {
		if _, err := tx.GetOrderForUpdate(ctx, input.OrderID); err != nil {
			return err
		}
		_, err := tx.GetClosureByOrder(ctx, input.OrderID)
		if err == nil {
			return ErrClosureExists
		}
		if !errors.Is(err, ErrClosureNotFound) {
			return err
		}
		return tx.InsertClosure(ctx, closure)
	})
	if err != nil {
		return Closure{}, err
	}
	s.record(ctx, actor, "production:closure_create", closure.ID, map[string]any{
		"order_id": input.OrderID.String(),
	})
	return closure, nil
}

// CloseFromLedger creates the closure with buckets taken from the
// order's cost ledger instead of caller-supplied totals.
func (s *Service) CloseFromLedger(ctx context.Context, tenantID, companyID, orderID uuid.UUID, notes, actor string) (Closure, error) {
	costs, err := s.repo.ListCosts(ctx, orderID)
	if err != nil {
		return Closure{}, err
	}
	sums := SumCostsByType(costs)
	material := sums[CostMaterial]
	service := sums[CostService]
	labor := sums[CostLabor]
	indirect := sums[CostIndirect]
	return s.CreateClosure(ctx, CreateClosureInput{
		TenantID:      tenantID,
		CompanyID:     companyID,
		OrderID:       orderID,
		TotalMaterial: &material,
		TotalService:  &service,
		TotalLabor:    &labor,
		TotalIndirect: &indirect,
		Notes:         notes,
	}, actor)
}

// ExportToFinancial marks the closure as handed to the financial
// system. At most once; a second call is an illegal state.
func (s *Service) ExportToFinancial(ctx context.Context, closureID uuid.UUID, financialDocumentID string, actor string) (Closure, error) {
	var exported Closure
	err := s.repo.WithTx(ctx, func(ctx context.Context, tx TxRepository) error {
		closure, err := tx.GetClosureForUpdate(ctx, closureID)
		if err != nil {
			return err
		}
		if closure.ExportedToFinancial {
			return ErrAlreadyExported
		}
		now := s.clock()
		closure.ExportedToFinancial = true
		closure.FinancialExportDate = &now
		closure.FinancialDocumentID = financialDocumentID
		closure.StampUpdated(now, actor)
		if err := tx.UpdateClosure(ctx, closure); err != nil {
			return err
		}
		exported = closure
		return nil
	})
	if err != nil {
		return Closure{}, err
	}
	s.record(ctx, actor, "production:closure_export", closureID, map[string]any{
		"financial_document_id": financialDocumentID,
	})
	return exported, nil
}

// GetClosure loads a closure by id.
func (s *Service) GetClosure(ctx context.Context, id uuid.UUID) (Closure, error) {
	return s.repo.GetClosure(ctx, id)
}

// GetClosureByOrder loads the closure of one order.
func (s *Service) GetClosureByOrder(ctx context.Context, orderID uuid.UUID) (Closure, error) {
	return s.repo.GetClosureByOrder(ctx, orderID)
}

// ListClosures lists a company's closures.
func (s *Service) ListClosures(ctx context.Context, companyID uuid.UUID) ([]Closure, error) {
	return s.repo.ListClosures(ctx, companyID)
}

func bucketOrZero(d *decimal.Decimal) decimal.Decimal {
	if d == nil {
		return decimal.Zero
	}
	return d.Round(moneyScale)
}
