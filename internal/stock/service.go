package stock

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"

	"github.com/fabriq-erp/fabriq/internal/shared"
)

const moneyScale = 2

// RepositoryPort abstracts repository usage for the service.
type RepositoryPort interface {
	WithTx(ctx context.Context, fn func(context.Context, TxRepository) error) error
	GetStock(ctx context.Context, id uuid.UUID) (Stock, error)
	GetByMaterial(ctx context.Context, companyID, rawMaterialID uuid.UUID) (Stock, error)
	ListByCompany(ctx context.Context, companyID uuid.UUID) ([]Stock, error)
	LowStock(ctx context.Context, companyID uuid.UUID, threshold decimal.Decimal) ([]Stock, error)
	ListMovements(ctx context.Context, companyID, rawMaterialID uuid.UUID, page, perPage int) ([]Movement, int, error)
}

// TxRepository exposes transactional operations used by the service.
type TxRepository interface {
	GetStockForUpdate(ctx context.Context, companyID, rawMaterialID uuid.UUID, warehouseID *uuid.UUID) (Stock, error)
	InsertStock(ctx context.Context, s Stock) error
	UpdateStock(ctx context.Context, s Stock) error
	InsertMovement(ctx context.Context, m Movement) error
}

// AuditPort abstracts audit logging functionality.
type AuditPort interface {
	Record(ctx context.Context, log shared.AuditLog) error
}

// IdempotencyPort guards a movement document against double
// application.
type IdempotencyPort interface {
	CheckAndInsert(ctx context.Context, key, module string) error
	Delete(ctx context.Context, key string) error
}

// Service keeps the stock ledger. Positions are created lazily at zero
// and every mutation happens under a row lock inside one transaction.
type Service struct {
	repo          RepositoryPort
	audit         AuditPort
	idem          IdempotencyPort
	clock         shared.Clock
	allowNegative bool
}

// NewService builds Service. A nil clock falls back to the system
// clock; allowNegative controls whether OUT movements may drive the
// on-hand quantity below zero.
func NewService(repo RepositoryPort, audit AuditPort, idem IdempotencyPort, clock shared.Clock, allowNegative bool) *Service {
	if clock == nil {
		clock = shared.SystemClock
	}
	return &Service{repo: repo, audit: audit, idem: idem, clock: clock, allowNegative: allowNegative}
}

// ApplyMovementInput describes a ledger entry to apply.
type ApplyMovementInput struct {
	TenantID       uuid.UUID
	CompanyID      uuid.UUID
	RawMaterialID  uuid.UUID
	WarehouseID    *uuid.UUID
	MovementType   MovementType
	MovementOrigin MovementOrigin
	OriginID       *uuid.UUID
	DocumentNumber string
	MovementDate   *time.Time
	Quantity       decimal.Decimal
	UnitCost       decimal.Decimal
	TotalCost      *decimal.Decimal
	Notes          string
}

// ApplyMovement records a movement and adjusts the position in one
// transaction. A document number, when present, is applied at most
// once across retries.
func (s *Service) ApplyMovement(ctx context.Context, input ApplyMovementInput, actor string) (Movement, error) {
	if !input.MovementType.Valid() {
		return Movement{}, ErrInvalidType
	}
	if !input.MovementOrigin.Valid() {
		return Movement{}, ErrInvalidOrigin
	}
	if !input.Quantity.IsPositive() {
		return Movement{}, ErrInvalidQuantity
	}
	if input.UnitCost.IsNegative() {
		return Movement{}, ErrInvalidUnitCost
	}

	now := s.clock()
	movementDate := now
	if input.MovementDate != nil {
		movementDate = *input.MovementDate
	}
	totalCost := input.UnitCost.Mul(input.Quantity).Round(moneyScale)
	if input.TotalCost != nil {
		totalCost = input.TotalCost.Round(moneyScale)
	}
	movement := Movement{
		ID:             uuid.New(),
		TenantID:       input.TenantID,
		CompanyID:      input.CompanyID,
		RawMaterialID:  input.RawMaterialID,
		WarehouseID:    input.WarehouseID,
		MovementType:   input.MovementType,
		MovementOrigin: input.MovementOrigin,
		OriginID:       input.OriginID,
		DocumentNumber: input.DocumentNumber,
		MovementDate:   movementDate,
		Quantity:       input.Quantity,
		UnitCost:       input.UnitCost,
		TotalCost:      totalCost,
		Notes:          input.Notes,
		CreatedAt:      now,
		CreatedBy:      actor,
	}

	idemKey := ""
	if input.DocumentNumber != "" && s.idem != nil {
		idemKey = fmt.Sprintf("%s:%s", input.CompanyID, input.DocumentNumber)
		if err := s.idem.CheckAndInsert(ctx, idemKey, "stock"); err != nil {
			if errors.Is(err, shared.ErrIdempotencyConflict) {
				return Movement{}, ErrDuplicateDocument
			}
			return Movement{}, err
		}
	}

	err := s.repo.WithTx(ctx, func(ctx context.Context, tx TxRepository) error {
		position, err := s.lockOrCreate(ctx, tx, movement, actor, now)
		if err != nil {
			return err
		}
		switch movement.MovementType {
		case MovementIn:
			position.Quantity = position.Quantity.Add(movement.Quantity)
		case MovementOut:
			next := position.Quantity.Sub(movement.Quantity)
			if !s.allowNegative && next.IsNegative() {
				return ErrInsufficientStock
			}
			position.Quantity = next
		}
		position.LastMovementDate = &movementDate
		position.StampUpdated(now, actor)
		if err := tx.UpdateStock(ctx, position); err != nil {
			return err
		}
		return tx.InsertMovement(ctx, movement)
	})
	if err != nil {
		if idemKey != "" {
			_ = s.idem.Delete(ctx, idemKey)
		}
		return Movement{}, err
	}
	s.record(ctx, actor, "stock:movement_apply", movement.ID, map[string]any{
		"raw_material_id": movement.RawMaterialID.String(),
		"type":            string(movement.MovementType),
		"origin":          string(movement.MovementOrigin),
	})
	return movement, nil
}

// Reserve earmarks quantity for a production order. The position must
// already exist.
func (s *Service) Reserve(ctx context.Context, companyID, rawMaterialID uuid.UUID, quantity decimal.Decimal, actor string) (Stock, error) {
	if !quantity.IsPositive() {
		return Stock{}, ErrInvalidReservation
	}
	var updated Stock
	err := s.repo.WithTx(ctx, func(ctx context.Context, tx TxRepository) error {
		position, err := tx.GetStockForUpdate(ctx, companyID, rawMaterialID, nil)
		if err != nil {
			return err
		}
		position.ReservedQuantity = position.ReservedQuantity.Add(quantity)
		position.StampUpdated(s.clock(), actor)
		if err := tx.UpdateStock(ctx, position); err != nil {
			return err
		}
		updated = position
		return nil
	})
	if err != nil {
		return Stock{}, err
	}
	s.record(ctx, actor, "stock:reserve", updated.ID, nil)
	return updated, nil
}

// ReleaseReservation gives earmarked quantity back. The reservation
// never goes below zero; releasing more than is held clamps at zero.
func (s *Service) ReleaseReservation(ctx context.Context, companyID, rawMaterialID uuid.UUID, quantity decimal.Decimal, actor string) (Stock, error) {
	if !quantity.IsPositive() {
		return Stock{}, ErrInvalidReservation
	}
	var updated Stock
	err := s.repo.WithTx(ctx, func(ctx context.Context, tx TxRepository) error {
		position, err := tx.GetStockForUpdate(ctx, companyID, rawMaterialID, nil)
		if err != nil {
			return err
		}
		next := position.ReservedQuantity.Sub(quantity)
		if next.IsNegative() {
			next = decimal.Zero
		}
		position.ReservedQuantity = next
		position.StampUpdated(s.clock(), actor)
		if err := tx.UpdateStock(ctx, position); err != nil {
			return err
		}
		updated = position
		return nil
	})
	if err != nil {
		return Stock{}, err
	}
	s.record(ctx, actor, "stock:release", updated.ID, nil)
	return updated, nil
}

// GetStock loads a position by id.
func (s *Service) GetStock(ctx context.Context, id uuid.UUID) (Stock, error) {
	return s.repo.GetStock(ctx, id)
}

// GetByMaterial loads a company's position for one raw material.
func (s *Service) GetByMaterial(ctx context.Context, companyID, rawMaterialID uuid.UUID) (Stock, error) {
	return s.repo.GetByMaterial(ctx, companyID, rawMaterialID)
}

// ListByCompany lists a company's positions.
func (s *Service) ListByCompany(ctx context.Context, companyID uuid.UUID) ([]Stock, error) {
	return s.repo.ListByCompany(ctx, companyID)
}

// LowStock lists positions whose available quantity sits below the
// threshold.
func (s *Service) LowStock(ctx context.Context, companyID uuid.UUID, threshold decimal.Decimal) ([]Stock, error) {
	return s.repo.LowStock(ctx, companyID, threshold)
}

// ListMovements pages through the movement ledger of one material,
// newest first.
func (s *Service) ListMovements(ctx context.Context, companyID, rawMaterialID uuid.UUID, page, perPage int) ([]Movement, shared.Pagination, error) {
	p := shared.NewPagination(page, perPage, 0)
	movements, total, err := s.repo.ListMovements(ctx, companyID, rawMaterialID, p.Page, p.PerPage)
	if err != nil {
		return nil, shared.Pagination{}, err
	}
	return movements, shared.NewPagination(p.Page, p.PerPage, total), nil
}

func (s *Service) lockOrCreate(ctx context.Context, tx TxRepository, m Movement, actor string, now time.Time) (Stock, error) {
	position, err := tx.GetStockForUpdate(ctx, m.CompanyID, m.RawMaterialID, m.WarehouseID)
	if err == nil {
		return position, nil
	}
	if !errors.Is(err, ErrStockNotFound) {
		return Stock{}, err
	}
	position = Stock{
		ID:               uuid.New(),
		TenantID:         m.TenantID,
		CompanyID:        m.CompanyID,
		RawMaterialID:    m.RawMaterialID,
		WarehouseID:      m.WarehouseID,
		Quantity:         decimal.Zero,
		ReservedQuantity: decimal.Zero,
	}
	position.StampCreated(now, actor)
	if err := tx.InsertStock(ctx, position); err != nil {
		return Stock{}, err
	}
	return position, nil
}

func (s *Service) record(ctx context.Context, actor, action string, entityID uuid.UUID, meta map[string]any) {
	if s.audit == nil {
		return
	}
	_ = s.audit.Record(ctx, shared.AuditLog{
		Actor:    actor,
		Action:   action,
		Entity:   "stock",
		EntityID: entityID.String(),
		Meta:     meta,
		At:       s.clock(),
	})
}
