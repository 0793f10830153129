package bom

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"

	"github.com/fabriq-erp/fabriq/internal/platform/httpx"
	"github.com/fabriq-erp/fabriq/internal/shared"
)

// RepositoryPort abstracts repository usage for the service.
type RepositoryPort interface {
	WithTx(ctx context.Context, fn func(context.Context, TxRepository) error) error
	GetComposition(ctx context.Context, id uuid.UUID) (Composition, error)
	ListByCompany(ctx context.Context, companyID uuid.UUID, onlyActive bool) ([]Composition, error)
	ListByProduct(ctx context.Context, productID uuid.UUID) ([]Composition, error)
	GetItem(ctx context.Context, id uuid.UUID) (Item, error)
	ListItems(ctx context.Context, compositionID uuid.UUID) ([]Item, error)
}

// TxRepository exposes transactional operations used by the service.
type TxRepository interface {
	GetCompositionForUpdate(ctx context.Context, id uuid.UUID) (Composition, error)
	InsertComposition(ctx context.Context, c Composition) error
	UpdateComposition(ctx context.Context, c Composition) error
	GetItemForUpdate(ctx context.Context, id uuid.UUID) (Item, error)
	InsertItem(ctx context.Context, item Item) error
	UpdateItem(ctx context.Context, item Item) error
	ListItems(ctx context.Context, compositionID uuid.UUID) ([]Item, error)
}

// AuditPort abstracts audit logging functionality.
type AuditPort interface {
	Record(ctx context.Context, log shared.AuditLog) error
}

// Service coordinates composition costing. Every item mutation and the
// owning composition's total-cost snapshot commit in one transaction,
// so the stored total can never go stale relative to its items.
type Service struct {
	repo  RepositoryPort
	audit AuditPort
	cache *Cache
	clock shared.Clock
}

// NewService builds Service. A nil clock falls back to the system clock.
func NewService(repo RepositoryPort, audit AuditPort, cache *Cache, clock shared.Clock) *Service {
	if clock == nil {
		clock = shared.SystemClock
	}
	return &Service{repo: repo, audit: audit, cache: cache, clock: clock}
}

// CreateCompositionInput describes a new bill of materials.
type CreateCompositionInput struct {
	TenantID       uuid.UUID
	CompanyID      uuid.UUID
	ProductID      uuid.UUID
	Name           string
	Version        int
	EffectiveDate  *time.Time
	ExpirationDate *time.Time
	IsActive       *bool
	Notes          string
}

// UpdateCompositionInput carries partial composition updates; nil
// fields are left untouched.
type UpdateCompositionInput struct {
	ProductID      *uuid.UUID
	Name           *string
	Version        *int
	EffectiveDate  *time.Time
	ExpirationDate *time.Time
	IsActive       *bool
	Notes          *string
}

// CreateItemInput describes a new composition line.
type CreateItemInput struct {
	TenantID       uuid.UUID
	CompanyID      uuid.UUID
	CompositionID  uuid.UUID
	ItemType       ItemType
	ReferenceID    uuid.UUID
	Sequence       int
	UnitType       string
	Quantity       decimal.Decimal
	LossPercentage decimal.Decimal
	UnitCost       decimal.NullDecimal
	IsOptional     bool
	Notes          string
}

// UpdateItemInput carries partial item updates; nil fields are left
// untouched.
type UpdateItemInput struct {
	ItemType       *ItemType
	ReferenceID    *uuid.UUID
	Sequence       *int
	UnitType       *string
	Quantity       *decimal.Decimal
	LossPercentage *decimal.Decimal
	UnitCost       *decimal.NullDecimal
	IsOptional     *bool
	Notes          *string
}

// CreateComposition registers a new composition version.
func (s *Service) CreateComposition(ctx context.Context, input CreateCompositionInput, actor string) (Composition, error) {
	if input.Name == "" {
		return Composition{}, fmt.Errorf("bom: name required: %w", httpx.ErrValidation)
	}
	version := input.Version
	if version <= 0 {
		version = 1
	}
	active := true
	if input.IsActive != nil {
		active = *input.IsActive
	}
	now := s.clock()
	comp := Composition{
		ID:             uuid.New(),
		TenantID:       input.TenantID,
		CompanyID:      input.CompanyID,
		ProductID:      input.ProductID,
		Name:           input.Name,
		Version:        version,
		EffectiveDate:  input.EffectiveDate,
		ExpirationDate: input.ExpirationDate,
		IsActive:       active,
		Notes:          input.Notes,
		TotalCost:      decimal.Zero,
	}
	comp.StampCreated(now, actor)

	err := s.repo.WithTx(ctx, func(ctx context.Context, tx TxRepository) error {
		return tx.InsertComposition(ctx, comp)
	})
	if err != nil {
		return Composition{}, err
	}
	s.record(ctx, actor, "bom:composition_create", comp.ID, map[string]any{"name": comp.Name, "version": comp.Version})
	return comp, nil
}

// UpdateComposition applies a partial update.
func (s *Service) UpdateComposition(ctx context.Context, id uuid.UUID, input UpdateCompositionInput, actor string) (Composition, error) {
	var updated Composition
	err := s.repo.WithTx(ctx, func(ctx context.Context, tx TxRepository) error {
		comp, err := tx.GetCompositionForUpdate(ctx, id)
		if err != nil {
			return err
		}
		if input.ProductID != nil {
			comp.ProductID = *input.ProductID
		}
		if input.Name != nil {
			comp.Name = *input.Name
		}
		if input.Version != nil {
			comp.Version = *input.Version
		}
		if input.EffectiveDate != nil {
			comp.EffectiveDate = input.EffectiveDate
		}
		if input.ExpirationDate != nil {
			comp.ExpirationDate = input.ExpirationDate
		}
		if input.IsActive != nil {
			comp.IsActive = *input.IsActive
		}
		if input.Notes != nil {
			comp.Notes = *input.Notes
		}
		comp.StampUpdated(s.clock(), actor)
		if err := tx.UpdateComposition(ctx, comp); err != nil {
			return err
		}
		updated = comp
		return nil
	})
	if err != nil {
		return Composition{}, err
	}
	s.record(ctx, actor, "bom:composition_update", id, nil)
	return updated, nil
}

// DeleteComposition tombstones the composition together with its items.
func (s *Service) DeleteComposition(ctx context.Context, id uuid.UUID, actor string) error {
	now := s.clock()
	err := s.repo.WithTx(ctx, func(ctx context.Context, tx TxRepository) error {
		comp, err := tx.GetCompositionForUpdate(ctx, id)
		if err != nil {
			return err
		}
		comp.StampDeleted(now, actor)
		if err := tx.UpdateComposition(ctx, comp); err != nil {
			return err
		}
		items, err := tx.ListItems(ctx, id)
		if err != nil {
			return err
		}
		for _, item := range items {
			item.StampDeleted(now, actor)
			if err := tx.UpdateItem(ctx, item); err != nil {
				return err
			}
		}
		return nil
	})
	if err != nil {
		return err
	}
	s.bump(ctx)
	s.record(ctx, actor, "bom:composition_delete", id, nil)
	return nil
}

// ApproveComposition stamps the approval pair. Re-approval overwrites
// the previous stamp.
func (s *Service) ApproveComposition(ctx context.Context, id uuid.UUID, actor string) (Composition, error) {
	var approved Composition
	err := s.repo.WithTx(ctx, func(ctx context.Context, tx TxRepository) error {
		comp, err := tx.GetCompositionForUpdate(ctx, id)
		if err != nil {
			return err
		}
		now := s.clock()
		comp.ApprovedBy = actor
		comp.ApprovedAt = &now
		comp.StampUpdated(now, actor)
		if err := tx.UpdateComposition(ctx, comp); err != nil {
			return err
		}
		approved = comp
		return nil
	})
	if err != nil {
		return Composition{}, err
	}
	s.record(ctx, actor, "bom:composition_approve", id, nil)
	return approved, nil
}

// GetComposition loads a composition by id.
func (s *Service) GetComposition(ctx context.Context, id uuid.UUID) (Composition, error) {
	return s.repo.GetComposition(ctx, id)
}

// ListByCompany lists a company's compositions, optionally only the
// active ones.
func (s *Service) ListByCompany(ctx context.Context, companyID uuid.UUID, onlyActive bool) ([]Composition, error) {
	return s.repo.ListByCompany(ctx, companyID, onlyActive)
}

// ListByProduct lists the composition versions of one product.
func (s *Service) ListByProduct(ctx context.Context, productID uuid.UUID) ([]Composition, error) {
	return s.repo.ListByProduct(ctx, productID)
}

// ListItems lists the non-deleted items of a composition in sequence
// order.
func (s *Service) ListItems(ctx context.Context, compositionID uuid.UUID) ([]Item, error) {
	return s.repo.ListItems(ctx, compositionID)
}

// GetItem loads a single item by id.
func (s *Service) GetItem(ctx context.Context, id uuid.UUID) (Item, error) {
	return s.repo.GetItem(ctx, id)
}

// CreateItem adds a line to a composition and refreshes the stored
// total in the same transaction.
func (s *Service) CreateItem(ctx context.Context, input CreateItemInput, actor string) (Item, error) {
	if !input.ItemType.Valid() {
		return Item{}, ErrInvalidItemType
	}
	if err := validateItemAmounts(input.Quantity, input.LossPercentage, input.UnitCost); err != nil {
		return Item{}, err
	}
	sequence := input.Sequence
	if sequence <= 0 {
		sequence = 1
	}
	now := s.clock()
	item := Item{
		ID:             uuid.New(),
		TenantID:       input.TenantID,
		CompanyID:      input.CompanyID,
		CompositionID:  input.CompositionID,
		ItemType:       input.ItemType,
		ReferenceID:    input.ReferenceID,
		Sequence:       sequence,
		UnitType:       input.UnitType,
		Quantity:       input.Quantity,
		LossPercentage: input.LossPercentage,
		UnitCost:       input.UnitCost,
		IsOptional:     input.IsOptional,
		Notes:          input.Notes,
	}
	item.StampCreated(now, actor)
	item.CalculateTotalCost()

	err := s.repo.WithTx(ctx, func(ctx context.Context, tx TxRepository) error {
		if _, err := tx.GetCompositionForUpdate(ctx, input.CompositionID); err != nil {
			return err
		}
		if err := tx.InsertItem(ctx, item); err != nil {
			return err
		}
		_, err := s.refreshTotal(ctx, tx, input.CompositionID, actor)
		return err
	})
	if err != nil {
		return Item{}, err
	}
	s.bump(ctx)
	s.record(ctx, actor, "bom:item_create", item.ID, map[string]any{
		"composition_id": input.CompositionID.String(),
		"item_type":      string(input.ItemType),
	})
	return item, nil
}

// UpdateItem applies a partial update and refreshes the owning
// composition's total in the same transaction.
func (s *Service) UpdateItem(ctx context.Context, id uuid.UUID, input UpdateItemInput, actor string) (Item, error) {
	var updated Item
	err := s.repo.WithTx(ctx, func(ctx context.Context, tx TxRepository) error {
		item, err := tx.GetItemForUpdate(ctx, id)
		if err != nil {
			return err
		}
		if input.ItemType != nil {
			if !input.ItemType.Valid() {
				return ErrInvalidItemType
			}
			item.ItemType = *input.ItemType
		}
		if input.ReferenceID != nil {
			item.ReferenceID = *input.ReferenceID
		}
		if input.Sequence != nil {
			item.Sequence = *input.Sequence
		}
		if input.UnitType != nil {
			item.UnitType = *input.UnitType
		}
		if input.Quantity != nil {
			item.Quantity = *input.Quantity
		}
		if input.LossPercentage != nil {
			item.LossPercentage = *input.LossPercentage
		}
		if input.UnitCost != nil {
			item.UnitCost = *input.UnitCost
		}
		if input.IsOptional != nil {
			item.IsOptional = *input.IsOptional
		}
		if input.Notes != nil {
			item.Notes = *input.Notes
		}
		if err := validateItemAmounts(item.Quantity, item.LossPercentage, item.UnitCost); err != nil {
			return err
		}
		item.StampUpdated(s.clock(), actor)
		item.CalculateTotalCost()
		if err := tx.UpdateItem(ctx, item); err != nil {
			return err
		}
		if _, err := s.refreshTotal(ctx, tx, item.CompositionID, actor); err != nil {
			return err
		}
		updated = item
		return nil
	})
	if err != nil {
		return Item{}, err
	}
	s.bump(ctx)
	s.record(ctx, actor, "bom:item_update", id, nil)
	return updated, nil
}

// DeleteItem tombstones a line and refreshes the owning composition's
// total in the same transaction.
func (s *Service) DeleteItem(ctx context.Context, id uuid.UUID, actor string) error {
	err := s.repo.WithTx(ctx, func(ctx context.Context, tx TxRepository) error {
		item, err := tx.GetItemForUpdate(ctx, id)
		if err != nil {
			return err
		}
		item.StampDeleted(s.clock(), actor)
		if err := tx.UpdateItem(ctx, item); err != nil {
			return err
		}
		_, err = s.refreshTotal(ctx, tx, item.CompositionID, actor)
		return err
	})
	if err != nil {
		return err
	}
	s.bump(ctx)
	s.record(ctx, actor, "bom:item_delete", id, nil)
	return nil
}

// RecalculateTotal recomputes and stores the composition's total cost
// from its non-deleted items. Idempotent: repeated calls without item
// changes yield the same stored total.
func (s *Service) RecalculateTotal(ctx context.Context, compositionID uuid.UUID, actor string) (decimal.Decimal, error) {
	var total decimal.Decimal
	err := s.repo.WithTx(ctx, func(ctx context.Context, tx TxRepository) error {
		var err error
		total, err = s.refreshTotal(ctx, tx, compositionID, actor)
		return err
	})
	if err != nil {
		return decimal.Decimal{}, err
	}
	s.bump(ctx)
	return total, nil
}

// CostSummary returns the costed item view of a composition, served
// from the versioned cache when available.
func (s *Service) CostSummary(ctx context.Context, compositionID uuid.UUID) (CostSummary, error) {
	if _, err := s.repo.GetComposition(ctx, compositionID); err != nil {
		return CostSummary{}, err
	}
	load := func(ctx context.Context) (any, error) {
		items, err := s.repo.ListItems(ctx, compositionID)
		if err != nil {
			return nil, err
		}
		return Summarize(compositionID, items), nil
	}
	if s.cache == nil {
		value, err := load(ctx)
		if err != nil {
			return CostSummary{}, err
		}
		return value.(CostSummary), nil
	}
	key, err := s.cache.BuildKey(ctx, "bom", "costs", compositionID.String())
	if err != nil {
		return CostSummary{}, err
	}
	var summary CostSummary
	if err := s.cache.FetchJSON(ctx, key, &summary, load); err != nil {
		return CostSummary{}, err
	}
	return summary, nil
}

// refreshTotal must run inside the same transaction as the item
// mutation that made the stored total stale.
func (s *Service) refreshTotal(ctx context.Context, tx TxRepository, compositionID uuid.UUID, actor string) (decimal.Decimal, error) {
	comp, err := tx.GetCompositionForUpdate(ctx, compositionID)
	if err != nil {
		return decimal.Decimal{}, err
	}
	items, err := tx.ListItems(ctx, compositionID)
	if err != nil {
		return decimal.Decimal{}, err
	}
	comp.TotalCost = SumItemCosts(items)
	comp.StampUpdated(s.clock(), actor)
	if err := tx.UpdateComposition(ctx, comp); err != nil {
		return decimal.Decimal{}, err
	}
	return comp.TotalCost, nil
}

func (s *Service) bump(ctx context.Context) {
	if s.cache != nil {
		_ = s.cache.Bump(ctx)
	}
}

func (s *Service) record(ctx context.Context, actor, action string, entityID uuid.UUID, meta map[string]any) {
	if s.audit == nil {
		return
	}
	_ = s.audit.Record(ctx, shared.AuditLog{
		Actor:    actor,
		Action:   action,
		Entity:   "bom",
		EntityID: entityID.String(),
		Meta:     meta,
		At:       s.clock(),
	})
}

func validateItemAmounts(quantity, loss decimal.Decimal, unitCost decimal.NullDecimal) error {
	if !quantity.IsPositive() {
		return ErrInvalidQuantity
	}
	if loss.IsNegative() || loss.GreaterThan(hundred) {
		return ErrInvalidLoss
	}
	if unitCost.Valid && unitCost.Decimal.IsNegative() {
		return ErrInvalidUnitCost
	}
	return nil
}
