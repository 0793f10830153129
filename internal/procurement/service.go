package procurement

import (
	"context"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"

	"github.com/fabriq-erp/fabriq/internal/shared"
)

// RepositoryPort abstracts repository usage for the service.
type RepositoryPort interface {
	WithTx(ctx context.Context, fn func(context.Context, TxRepository) error) error
	GetBuyService(ctx context.Context, id uuid.UUID) (BuyService, error)
	ListByCompany(ctx context.Context, companyID uuid.UUID, status Status) ([]BuyService, error)
	GetItem(ctx context.Context, id uuid.UUID) (Item, error)
	ListItems(ctx context.Context, buyServiceID uuid.UUID) ([]Item, error)
}

// TxRepository exposes transactional operations used by the service.
type TxRepository interface {
	GetBuyServiceForUpdate(ctx context.Context, id uuid.UUID) (BuyService, error)
	InsertBuyService(ctx context.Context, b BuyService) error
	UpdateBuyService(ctx context.Context, b BuyService) error
	GetItemForUpdate(ctx context.Context, id uuid.UUID) (Item, error)
	InsertItem(ctx context.Context, item Item) error
	UpdateItem(ctx context.Context, item Item) error
	ListItems(ctx context.Context, buyServiceID uuid.UUID) ([]Item, error)
}

// AuditPort abstracts audit logging functionality.
type AuditPort interface {
	Record(ctx context.Context, log shared.AuditLog) error
}

// Service manages purchase documents for outsourced services. Item
// mutations and the document total commit in one transaction.
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

// CreateInput describes a new buy service.
type CreateInput struct {
	TenantID   uuid.UUID
	CompanyID  uuid.UUID
	Code       string
	SupplierID *uuid.UUID
	Notes      string
}

// ItemInput describes a new purchase line.
type ItemInput struct {
	TenantID     uuid.UUID
	CompanyID    uuid.UUID
	BuyServiceID uuid.UUID
	ServiceID    uuid.UUID
	Quantity     decimal.Decimal
	UnitCost     decimal.Decimal
	Notes        string
}

// UpdateItemInput carries partial line updates; nil fields are left
// untouched.
type UpdateItemInput struct {
	ServiceID *uuid.UUID
	Quantity  *decimal.Decimal
	UnitCost  *decimal.Decimal
	Notes     *string
}

// Create registers an open buy service.
func (s *Service) Create(ctx context.Context, input CreateInput, actor string) (BuyService, error) {
	if input.Code == "" {
		return BuyService{}, ErrCodeRequired
	}
	doc := BuyService{
		ID:          uuid.New(),
		TenantID:    input.TenantID,
		CompanyID:   input.CompanyID,
		Code:        input.Code,
		SupplierID:  input.SupplierID,
		Status:      StatusOpen,
		TotalAmount: decimal.Zero,
		Notes:       input.Notes,
	}
	doc.StampCreated(s.clock(), actor)

	err := s.repo.WithTx(ctx, func(ctx context.Context, tx TxRepository) error {
		return tx.InsertBuyService(ctx, doc)
	})
	if err != nil {
		return BuyService{}, err
	}
	s.record(ctx, actor, "procurement:create", doc.ID, map[string]any{"code": doc.Code})
	return doc, nil
}

// Approve moves an open document to APPROVED.
func (s *Service) Approve(ctx context.Context, id uuid.UUID, actor string) (BuyService, error) {
	return s.transition(ctx, id, actor, "procurement:approve", func(doc *BuyService, now time.Time) error {
		return doc.Approve(now, actor)
	})
}

// Close finalises a document. No further mutations are accepted.
func (s *Service) Close(ctx context.Context, id uuid.UUID, actor string) (BuyService, error) {
	return s.transition(ctx, id, actor, "procurement:close", func(doc *BuyService, now time.Time) error {
		return doc.Close(now, actor)
	})
}

// Delete tombstones a document that is not yet closed.
func (s *Service) Delete(ctx context.Context, id uuid.UUID, actor string) error {
	err := s.repo.WithTx(ctx, func(ctx context.Context, tx TxRepository) error {
		doc, err := tx.GetBuyServiceForUpdate(ctx, id)
		if err != nil {
			return err
		}
		if !doc.Mutable() {
			return ErrDocumentClosed
		}
		doc.StampDeleted(s.clock(), actor)
		return tx.UpdateBuyService(ctx, doc)
	})
	if err != nil {
		return err
	}
	s.record(ctx, actor, "procurement:delete", id, nil)
	return nil
}

// Get loads a document by id.
func (s *Service) Get(ctx context.Context, id uuid.UUID) (BuyService, error) {
	return s.repo.GetBuyService(ctx, id)
}

// ListByCompany lists a company's documents, optionally filtered by
// status.
func (s *Service) ListByCompany(ctx context.Context, companyID uuid.UUID, status Status) ([]BuyService, error) {
	return s.repo.ListByCompany(ctx, companyID, status)
}

// GetItem loads a purchase line by id.
func (s *Service) GetItem(ctx context.Context, id uuid.UUID) (Item, error) {
	return s.repo.GetItem(ctx, id)
}

// ListItems lists the non-deleted lines of one document.
func (s *Service) ListItems(ctx context.Context, buyServiceID uuid.UUID) ([]Item, error) {
	return s.repo.ListItems(ctx, buyServiceID)
}

// AddItem appends a line and refreshes the document total in the same
// transaction.
func (s *Service) AddItem(ctx context.Context, input ItemInput, actor string) (Item, error) {
	if !input.Quantity.IsPositive() {
		return Item{}, ErrInvalidQuantity
	}
	if input.UnitCost.IsNegative() {
		return Item{}, ErrInvalidUnitCost
	}
	item := Item{
		ID:           uuid.New(),
		TenantID:     input.TenantID,
		CompanyID:    input.CompanyID,
		BuyServiceID: input.BuyServiceID,
		ServiceID:    input.ServiceID,
		Quantity:     input.Quantity,
		UnitCost:     input.UnitCost,
		Notes:        input.Notes,
	}
	item.StampCreated(s.clock(), actor)
	item.CalculateTotalCost()

	err := s.repo.WithTx(ctx, func(ctx context.Context, tx TxRepository) error {
		doc, err := tx.GetBuyServiceForUpdate(ctx, input.BuyServiceID)
		if err != nil {
			return err
		}
		if !doc.Mutable() {
			return ErrDocumentClosed
		}
		if err := tx.InsertItem(ctx, item); err != nil {
			return err
		}
		return s.refreshTotal(ctx, tx, doc, actor)
	})
	if err != nil {
		return Item{}, err
	}
	s.record(ctx, actor, "procurement:item_add", item.ID, map[string]any{
		"buy_service_id": input.BuyServiceID.String(),
	})
	return item, nil
}

// UpdateItem applies a partial line update and refreshes the document
// total in the same transaction.
func (s *Service) UpdateItem(ctx context.Context, id uuid.UUID, input UpdateItemInput, actor string) (Item, error) {
	var updated Item
	err := s.repo.WithTx(ctx, func(ctx context.Context, tx TxRepository) error {
		item, err := tx.GetItemForUpdate(ctx, id)
		if err != nil {
			return err
		}
		doc, err := tx.GetBuyServiceForUpdate(ctx, item.BuyServiceID)
		if err != nil {
			return err
		}
		if !doc.Mutable() {
			return ErrDocumentClosed
		}
		if input.ServiceID != nil {
			item.ServiceID = *input.ServiceID
		}
		if input.Quantity != nil {
			if !input.Quantity.IsPositive() {
				return ErrInvalidQuantity
			}
			item.Quantity = *input.Quantity
		}
		if input.UnitCost != nil {
			if input.UnitCost.IsNegative() {
				return ErrInvalidUnitCost
			}
			item.UnitCost = *input.UnitCost
		}
		if input.Notes != nil {
			item.Notes = *input.Notes
		}
		item.StampUpdated(s.clock(), actor)
		item.CalculateTotalCost()
		if err := tx.UpdateItem(ctx, item); err != nil {
			return err
		}
		if err := s.refreshTotal(ctx, tx, doc, actor); err != nil {
			return err
		}
		updated = item
		return nil
	})
	if err != nil {
		return Item{}, err
	}
	s.record(ctx, actor, "procurement:item_update", id, nil)
	return updated, nil
}

// DeleteItem tombstones a line and refreshes the document total in the
// same transaction.
func (s *Service) DeleteItem(ctx context.Context, id uuid.UUID, actor string) error {
	err := s.repo.WithTx(ctx, func(ctx context.Context, tx TxRepository) error {
		item, err := tx.GetItemForUpdate(ctx, id)
		if err != nil {
			return err
		}
		doc, err := tx.GetBuyServiceForUpdate(ctx, item.BuyServiceID)
		if err != nil {
			return err
		}
		if !doc.Mutable() {
			return ErrDocumentClosed
		}
		item.StampDeleted(s.clock(), actor)
		if err := tx.UpdateItem(ctx, item); err != nil {
			return err
		}
		return s.refreshTotal(ctx, tx, doc, actor)
	})
	if err != nil {
		return err
	}
	s.record(ctx, actor, "procurement:item_delete", id, nil)
	return nil
}

func (s *Service) transition(ctx context.Context, id uuid.UUID, actor, action string, apply func(*BuyService, time.Time) error) (BuyService, error) {
	var updated BuyService
	err := s.repo.WithTx(ctx, func(ctx context.Context, tx TxRepository) error {
		doc, err := tx.GetBuyServiceForUpdate(ctx, id)
		if err != nil {
			return err
		}
		if err := apply(&doc, s.clock()); err != nil {
			return err
		}
		if err := tx.UpdateBuyService(ctx, doc); err != nil {
			return err
		}
		updated = doc
		return nil
	})
	if err != nil {
		return BuyService{}, err
	}
	s.record(ctx, actor, action, id, map[string]any{"status": string(updated.Status)})
	return updated, nil
}

// refreshTotal must run inside the same transaction as the item
// mutation that made the stored total stale.
func (s *Service) refreshTotal(ctx context.Context, tx TxRepository, doc BuyService, actor string) error {
	items, err := tx.ListItems(ctx, doc.ID)
	if err != nil {
		return err
	}
	total := decimal.Zero
	for _, item := range items {
		total = total.Add(item.TotalCost)
	}
	doc.TotalAmount = total.Round(2)
	doc.StampUpdated(s.clock(), actor)
	return tx.UpdateBuyService(ctx, doc)
}

func (s *Service) record(ctx context.Context, actor, action string, entityID uuid.UUID, meta map[string]any) {
	if s.audit == nil {
		return
	}
	_ = s.audit.Record(ctx, shared.AuditLog{
		Actor:    actor,
		Action:   action,
		Entity:   "procurement",
		EntityID: entityID.String(),
		Meta:     meta,
		At:       s.clock(),
	})
}
