package production

import (
	"context"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
)

// ExecutionInput describes a work record against one order step.
type ExecutionInput struct {
	TenantID        uuid.UUID
	CompanyID       uuid.UUID
	OrderID         uuid.UUID
	StepID          *uuid.UUID
	StartTime       *time.Time
	EndTime         *time.Time
	QuantityDone    decimal.Decimal
	LossQuantity    decimal.Decimal
	EmployeeID      *uuid.UUID
	MachineID       *uuid.UUID
	QualityStatus   QualityStatus
	RejectionReason string
	Notes           string
}

// CreateExecution records work done on an order.
func (s *Service) CreateExecution(ctx context.Context, input ExecutionInput, actor string) (Execution, error) {
	if input.QualityStatus != "" && !input.QualityStatus.Valid() {
		return Execution{}, ErrInvalidQuality
	}
	if input.QuantityDone.IsNegative() || input.LossQuantity.IsNegative() {
		return Execution{}, ErrInvalidQuantity
	}
	exec := Execution{
		ID:              uuid.New(),
		TenantID:        input.TenantID,
		CompanyID:       input.CompanyID,
		OrderID:         input.OrderID,
		StepID:          input.StepID,
		StartTime:       input.StartTime,
		EndTime:         input.EndTime,
		QuantityDone:    input.QuantityDone,
		LossQuantity:    input.LossQuantity,
		EmployeeID:      input.EmployeeID,
		MachineID:       input.MachineID,
		QualityStatus:   input.QualityStatus,
		RejectionReason: input.RejectionReason,
		Notes:           input.Notes,
	}
	exec.StampCreated(s.clock(), actor)

	err := s.repo.WithTx(ctx, func(ctx context.Context, tx TxRepository) error {
		if _, err := tx.GetOrderForUpdate(ctx, input.OrderID); err != nil {
			return err
		}
		return tx.InsertExecution(ctx, exec)
	})
	if err != nil {
		return Execution{}, err
	}
	s.record(ctx, actor, "production:execution_create", exec.ID, map[string]any{
		"order_id": input.OrderID.String(),
	})
	return exec, nil
}

// UpdateExecution overwrites a work record in place.
func (s *Service) UpdateExecution(ctx context.Context, id uuid.UUID, input ExecutionInput, actor string) (Execution, error) {
	if input.QualityStatus != "" && !input.QualityStatus.Valid() {
		return Execution{}, ErrInvalidQuality
	}
	if input.QuantityDone.IsNegative() || input.LossQuantity.IsNegative() {
		return Execution{}, ErrInvalidQuantity
	}
	var updated Execution
	err := s.repo.WithTx(ctx, func(ctx context.Context, tx TxRepository) error {
		exec, err := tx.GetExecutionForUpdate(ctx, id)
		if err != nil {
			return err
		}
		exec.StepID = input.StepID
		exec.StartTime = input.StartTime
		exec.EndTime = input.EndTime
		exec.QuantityDone = input.QuantityDone
		exec.LossQuantity = input.LossQuantity
		exec.EmployeeID = input.EmployeeID
		exec.MachineID = input.MachineID
		exec.QualityStatus = input.QualityStatus
		exec.RejectionReason = input.RejectionReason
		exec.Notes = input.Notes
		exec.StampUpdated(s.clock(), actor)
		if err := tx.UpdateExecution(ctx, exec); err != nil {
			return err
		}
		updated = exec
		return nil
	})
	if err != nil {
		return Execution{}, err
	}
	s.record(ctx, actor, "production:execution_update", id, nil)
	return updated, nil
}

// DeleteExecution tombstones a work record.
func (s *Service) DeleteExecution(ctx context.Context, id uuid.UUID, actor string) error {
	err := s.repo.WithTx(ctx, func(ctx context.Context, tx TxRepository) error {
		exec, err := tx.GetExecutionForUpdate(ctx, id)
		if err != nil {
			return err
		}
		exec.StampDeleted(s.clock(), actor)
		return tx.UpdateExecution(ctx, exec)
	})
	if err != nil {
		return err
	}
	s.record(ctx, actor, "production:execution_delete", id, nil)
	return nil
}

// GetExecution loads a work record by id.
func (s *Service) GetExecution(ctx context.Context, id uuid.UUID) (Execution, error) {
	return s.repo.GetExecution(ctx, id)
}

// ListExecutions lists the work records of one order.
func (s *Service) ListExecutions(ctx context.Context, orderID uuid.UUID) ([]Execution, error) {
	return s.repo.ListExecutions(ctx, orderID)
}

// StepInput describes a routing step create or full update.
type StepInput struct {
	TenantID         uuid.UUID
	CompanyID        uuid.UUID
	Name             string
	Sequence         int
	EstimatedTime    int
	CostCenterID     *uuid.UUID
	IsOutsourced     bool
	RequiresApproval bool
	IsActive         *bool
}

// CreateStep registers a routing step.
func (s *Service) CreateStep(ctx context.Context, input StepInput, actor string) (Step, error) {
	if input.Name == "" {
		return Step{}, ErrCodeRequired
	}
	active := true
	if input.IsActive != nil {
		active = *input.IsActive
	}
	step := Step{
		ID:               uuid.New(),
		TenantID:         input.TenantID,
		CompanyID:        input.CompanyID,
		Name:             input.Name,
		Sequence:         input.Sequence,
		EstimatedTime:    input.EstimatedTime,
		CostCenterID:     input.CostCenterID,
		IsOutsourced:     input.IsOutsourced,
		RequiresApproval: input.RequiresApproval,
		IsActive:         active,
	}
	step.StampCreated(s.clock(), actor)

	err := s.repo.WithTx(ctx, func(ctx context.Context, tx TxRepository) error {
		return tx.InsertStep(ctx, step)
	})
	if err != nil {
		return Step{}, err
	}
	s.record(ctx, actor, "production:step_create", step.ID, nil)
	return step, nil
}

// UpdateStep overwrites a routing step in place.
func (s *Service) UpdateStep(ctx context.Context, id uuid.UUID, input StepInput, actor string) (Step, error) {
	var updated Step
	err := s.repo.WithTx(ctx, func(ctx context.Context, tx TxRepository) error {
		step, err := tx.GetStepForUpdate(ctx, id)
		if err != nil {
			return err
		}
		if input.Name != "" {
			step.Name = input.Name
		}
		if input.Sequence > 0 {
			step.Sequence = input.Sequence
		}
		if input.EstimatedTime > 0 {
			step.EstimatedTime = input.EstimatedTime
		}
		if input.CostCenterID != nil {
			step.CostCenterID = input.CostCenterID
		}
		step.IsOutsourced = input.IsOutsourced
		step.RequiresApproval = input.RequiresApproval
		if input.IsActive != nil {
			step.IsActive = *input.IsActive
		}
		step.StampUpdated(s.clock(), actor)
		if err := tx.UpdateStep(ctx, step); err != nil {
			return err
		}
		updated = step
		return nil
	})
	if err != nil {
		return Step{}, err
	}
	s.record(ctx, actor, "production:step_update", id, nil)
	return updated, nil
}

// DeleteStep tombstones a routing step.
func (s *Service) DeleteStep(ctx context.Context, id uuid.UUID, actor string) error {
	err := s.repo.WithTx(ctx, func(ctx context.Context, tx TxRepository) error {
		step, err := tx.GetStepForUpdate(ctx, id)
		if err != nil {
			return err
		}
		step.StampDeleted(s.clock(), actor)
		return tx.UpdateStep(ctx, step)
	})
	if err != nil {
		return err
	}
	s.record(ctx, actor, "production:step_delete", id, nil)
	return nil
}

// GetStep loads a routing step by id.
func (s *Service) GetStep(ctx context.Context, id uuid.UUID) (Step, error) {
	return s.repo.GetStep(ctx, id)
}

// ListSteps lists a company's routing steps in sequence order.
func (s *Service) ListSteps(ctx context.Context, companyID uuid.UUID, onlyActive bool) ([]Step, error) {
	return s.repo.ListSteps(ctx, companyID, onlyActive)
}
