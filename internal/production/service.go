package production

import (
	"context"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"

	"github.com/fabriq-erp/fabriq/internal/shared"
)

const moneyScale = 2

// RepositoryPort abstracts repository usage for the service.
type RepositoryPort interface {
	WithTx(ctx context.Context, fn func(context.Context, TxRepository) error) error

	GetOrder(ctx context.Context, id uuid.UUID) (Order, error)
	ListOrders(ctx context.Context, companyID uuid.UUID, status Status) ([]Order, error)

	GetCost(ctx context.Context, id uuid.UUID) (Cost, error)
	ListCosts(ctx context.Context, orderID uuid.UUID) ([]Cost, error)

	GetClosure(ctx context.Context, id uuid.UUID) (Closure, error)
	GetClosureByOrder(ctx context.Context, orderID uuid.UUID) (Closure, error)
	ListClosures(ctx context.Context, companyID uuid.UUID) ([]Closure, error)

	GetExecution(ctx context.Context, id uuid.UUID) (Execution, error)
	ListExecutions(ctx context.Context, orderID uuid.UUID) ([]Execution, error)

	GetStep(ctx context.Context, id uuid.UUID) (Step, error)
	ListSteps(ctx context.Context, companyID uuid.UUID, onlyActive bool) ([]Step, error)
}

// TxRepository exposes transactional operations used by the service.
type TxRepository interface {
	GetOrderForUpdate(ctx context.Context, id uuid.UUID) (Order, error)
	InsertOrder(ctx context.Context, o Order) error
	UpdateOrder(ctx context.Context, o Order) error

	GetCostForUpdate(ctx context.Context, id uuid.UUID) (Cost, error)
	InsertCost(ctx context.Context, c Cost) error
	UpdateCost(ctx context.Context, c Cost) error
	ListCosts(ctx context.Context, orderID uuid.UUID) ([]Cost, error)

	GetClosureByOrder(ctx context.Context, orderID uuid.UUID) (Closure, error)
	GetClosureForUpdate(ctx context.Context, id uuid.UUID) (Closure, error)
	InsertClosure(ctx context.Context, c Closure) error
	UpdateClosure(ctx context.Context, c Closure) error

	GetExecutionForUpdate(ctx context.Context, id uuid.UUID) (Execution, error)
	InsertExecution(ctx context.Context, e Execution) error
	UpdateExecution(ctx context.Context, e Execution) error

	GetStepForUpdate(ctx context.Context, id uuid.UUID) (Step, error)
	InsertStep(ctx context.Context, s Step) error
	UpdateStep(ctx context.Context, s Step) error
}

// AuditPort abstracts audit logging functionality.
type AuditPort interface {
	Record(ctx context.Context, log shared.AuditLog) error
}

// Service runs the production order lifecycle, the cost ledger, and
// the closure rollup.
type Service struct {
	repo  RepositoryPort
	audit AuditPort
	clock shared.Clock
}

// NewService builds Service. A nil clock falls back to the system clock.
func NewService(repo RepositoryPort, audit AuditPort, clock shared.Clock) *Service {
	if clock == nil {
		clock = shared.SystemClock
	}
	return &Service{repo: repo, audit: audit, clock: clock}
}

// CreateOrderInput describes a new production order.
type CreateOrderInput struct {
	TenantID        uuid.UUID
	CompanyID       uuid.UUID
	Code            string
	ProductID       uuid.UUID
	CompositionID   *uuid.UUID
	Priority        Priority
	QuantityPlanned decimal.Decimal
	StartDate       *time.Time
	Deadline        *time.Time
	Notes           string
}

// UpdateOrderInput carries partial order updates; nil fields are left
// untouched. Status is never updated here, only through the lifecycle
// operations.
type UpdateOrderInput struct {
	CompositionID   *uuid.UUID
	Priority        *Priority
	QuantityPlanned *decimal.Decimal
	Deadline        *time.Time
	Notes           *string
}

// CreateOrder registers a planned order.
func (s *Service) CreateOrder(ctx context.Context, input CreateOrderInput, actor string) (Order, error) {
	if input.Code == "" {
		return Order{}, ErrCodeRequired
	}
	if !input.QuantityPlanned.IsPositive() {
		return Order{}, ErrInvalidPlannedQty
	}
	priority := input.Priority
	if priority == "" {
		priority = PriorityMedium
	}
	if !priority.Valid() {
		return Order{}, ErrInvalidPriority
	}
	order := Order{
		ID:               uuid.New(),
		TenantID:         input.TenantID,
		CompanyID:        input.CompanyID,
		Code:             input.Code,
		ProductID:        input.ProductID,
		CompositionID:    input.CompositionID,
		Status:           StatusPlanned,
		Priority:         priority,
		QuantityPlanned:  input.QuantityPlanned,
		QuantityProduced: decimal.Zero,
		StartDate:        input.StartDate,
		Deadline:         input.Deadline,
		CostTotal:        decimal.Zero,
		Notes:            input.Notes,
	}
	order.StampCreated(s.clock(), actor)

	err := s.repo.WithTx(ctx, func(ctx context.Context, tx TxRepository) error {
		return tx.InsertOrder(ctx, order)
	})
	if err != nil {
		return Order{}, err
	}
	s.record(ctx, actor, "production:order_create", order.ID, map[string]any{"code": order.Code})
	return order, nil
}

// UpdateOrder applies a partial update to a non-terminal order.
func (s *Service) UpdateOrder(ctx context.Context, id uuid.UUID, input UpdateOrderInput, actor string) (Order, error) {
	var updated Order
	err := s.repo.WithTx(ctx, func(ctx context.Context, tx TxRepository) error {
		order, err := tx.GetOrderForUpdate(ctx, id)
		if err != nil {
			return err
		}
		if order.Status.Terminal() {
			return transitionError(order.Status, order.Status)
		}
		if input.CompositionID != nil {
			order.CompositionID = input.CompositionID
		}
		if input.Priority != nil {
			if !input.Priority.Valid() {
				return ErrInvalidPriority
			}
			order.Priority = *input.Priority
		}
		if input.QuantityPlanned != nil {
			if !input.QuantityPlanned.IsPositive() {
				return ErrInvalidPlannedQty
			}
			order.QuantityPlanned = *input.QuantityPlanned
		}
		if input.Deadline != nil {
			order.Deadline = input.Deadline
		}
		if input.Notes != nil {
			order.Notes = *input.Notes
		}
		order.StampUpdated(s.clock(), actor)
		if err := tx.UpdateOrder(ctx, order); err != nil {
			return err
		}
		updated = order
		return nil
	})
	if err != nil {
		return Order{}, err
	}
	s.record(ctx, actor, "production:order_update", id, nil)
	return updated, nil
}

// StartOrder moves a planned order into production.
func (s *Service) StartOrder(ctx context.Context, id uuid.UUID, actor string) (Order, error) {
	return s.transition(ctx, id, actor, "production:order_start", func(o *Order, now time.Time) error {
		return o.Start(now, actor)
	})
}

// FinishOrder completes an in-progress order with the produced
// quantity.
func (s *Service) FinishOrder(ctx context.Context, id uuid.UUID, produced decimal.Decimal, actor string) (Order, error) {
	return s.transition(ctx, id, actor, "production:order_finish", func(o *Order, now time.Time) error {
		return o.Finish(produced, now, actor)
	})
}

// CancelOrder aborts a non-terminal order.
func (s *Service) CancelOrder(ctx context.Context, id uuid.UUID, reason string, actor string) (Order, error) {
	if reason == "" {
		return Order{}, ErrCancelReasonRequired
	}
	return s.transition(ctx, id, actor, "production:order_cancel", func(o *Order, now time.Time) error {
		return o.Cancel(reason, now, actor)
	})
}

// ApproveOrder stamps approval on a planned order.
func (s *Service) ApproveOrder(ctx context.Context, id uuid.UUID, actor string) (Order, error) {
	return s.transition(ctx, id, actor, "production:order_approve", func(o *Order, now time.Time) error {
		return o.Approve(now, actor)
	})
}

// DeleteOrder tombstones an order that never entered production.
func (s *Service) DeleteOrder(ctx context.Context, id uuid.UUID, actor string) error {
	err := s.repo.WithTx(ctx, func(ctx context.Context, tx TxRepository) error {
		order, err := tx.GetOrderForUpdate(ctx, id)
		if err != nil {
			return err
		}
		if order.Status != StatusPlanned && order.Status != StatusCanceled {
			return transitionError(order.Status, order.Status)
		}
		order.StampDeleted(s.clock(), actor)
		return tx.UpdateOrder(ctx, order)
	})
	if err != nil {
		return err
	}
	s.record(ctx, actor, "production:order_delete", id, nil)
	return nil
}

// GetOrder loads an order by id.
func (s *Service) GetOrder(ctx context.Context, id uuid.UUID) (Order, error) {
	return s.repo.GetOrder(ctx, id)
}

// ListOrders lists a company's orders, optionally filtered by status.
func (s *Service) ListOrders(ctx context.Context, companyID uuid.UUID, status Status) ([]Order, error) {
	return s.repo.ListOrders(ctx, companyID, status)
}

func (s *Service) transition(ctx context.Context, id uuid.UUID, actor, action string, apply func(*Order, time.Time) error) (Order, error) {
	var updated Order
	err := s.repo.WithTx(ctx, func(ctx context.Context, tx TxRepository) error {
		order, err := tx.GetOrderForUpdate(ctx, id)
		if err != nil {
			return err
		}
		if err := apply(&order, s.clock()); err != nil {
			return err
		}
		if err := tx.UpdateOrder(ctx, order); err != nil {
			return err
		}
		updated = order
		return nil
	})
	if err != nil {
		return Order{}, err
	}
	s.record(ctx, actor, action, id, map[string]any{"status": string(updated.Status)})
	return updated, nil
}

func (s *Service) record(ctx context.Context, actor, action string, entityID uuid.UUID, meta map[string]any) {
	if s.audit == nil {
		return
	}
	_ = s.audit.Record(ctx, shared.AuditLog{
		Actor:    actor,
		Action:   action,
		Entity:   "production",
		EntityID: entityID.String(),
		Meta:     meta,
		At:       s.clock(),
	})
}
