package procurement

import (
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"

	"github.com/fabriq-erp/fabriq/internal/platform/httpx"
	"github.com/fabriq-erp/fabriq/internal/shared"
)

// Status is the lifecycle state of a buy service.
type Status string

const (
	StatusOpen     Status = "OPEN"
	StatusApproved Status = "APPROVED"
	StatusClosed   Status = "CLOSED"
)

// BuyService is a purchase document for outsourced services. Its code
// is unique per company and its total always equals the sum of its
// non-deleted item totals.
type BuyService struct {
	ID          uuid.UUID       `json:"id"`
	TenantID    uuid.UUID       `json:"tenantId"`
	CompanyID   uuid.UUID       `json:"companyId"`
	Code        string          `json:"code"`
	SupplierID  *uuid.UUID      `json:"supplierId,omitempty"`
	Status      Status          `json:"status"`
	TotalAmount decimal.Decimal `json:"totalAmount"`
	ApprovedBy  string          `json:"approvedBy,omitempty"`
	ApprovedAt  *time.Time      `json:"approvedAt,omitempty"`
	ClosedBy    string          `json:"closedBy,omitempty"`
	ClosedAt    *time.Time      `json:"closedAt,omitempty"`
	Notes       string          `json:"notes,omitempty"`
	shared.Envelope
}

// Mutable reports whether the document still accepts changes.
func (b *BuyService) Mutable() bool {
	return b.Status != StatusClosed
}

// Approve moves the document from OPEN to APPROVED.
func (b *BuyService) Approve(now time.Time, actor string) error {
	if b.Status != StatusOpen {
		return fmt.Errorf("procurement: approve requires an open document, got %s: %w", b.Status, httpx.ErrIllegalState)
	}
	b.Status = StatusApproved
	b.ApprovedBy = actor
	b.ApprovedAt = &now
	b.StampUpdated(now, actor)
	return nil
}

// Close finalises the document. Closing twice is an illegal state.
func (b *BuyService) Close(now time.Time, actor string) error {
	if b.Status == StatusClosed {
		return ErrAlreadyClosed
	}
	b.Status = StatusClosed
	b.ClosedBy = actor
	b.ClosedAt = &now
	b.StampUpdated(now, actor)
	return nil
}

// Item is one purchased service line. TotalCost is derived from unit
// cost and quantity at two decimal places.
type Item struct {
	ID           uuid.UUID       `json:"id"`
	TenantID     uuid.UUID       `json:"tenantId"`
	CompanyID    uuid.UUID       `json:"companyId"`
	BuyServiceID uuid.UUID       `json:"buyServiceId"`
	ServiceID    uuid.UUID       `json:"serviceId"`
	Quantity     decimal.Decimal `json:"quantity"`
	UnitCost     decimal.Decimal `json:"unitCost"`
	TotalCost    decimal.Decimal `json:"totalCost"`
	Notes        string          `json:"notes,omitempty"`
	shared.Envelope
}

// CalculateTotalCost recomputes the line total. Called immediately
// before every persist.
func (i *Item) CalculateTotalCost() {
	i.TotalCost = i.UnitCost.Mul(i.Quantity).Round(2)
}

var (
	ErrBuyServiceNotFound = fmt.Errorf("procurement: buy service %w", httpx.ErrNotFound)
	ErrItemNotFound       = fmt.Errorf("procurement: buy service item %w", httpx.ErrNotFound)
	ErrDuplicateCode      = fmt.Errorf("procurement: document code %w", httpx.ErrDuplicate)
	ErrAlreadyClosed      = fmt.Errorf("procurement: document already closed: %w", httpx.ErrIllegalState)
	ErrDocumentClosed     = fmt.Errorf("procurement: closed document cannot change: %w", httpx.ErrIllegalState)
	ErrCodeRequired       = fmt.Errorf("procurement: code required: %w", httpx.ErrValidation)
	ErrInvalidQuantity    = fmt.Errorf("procurement: quantity must be positive: %w", httpx.ErrValidation)
	ErrInvalidUnitCost    = fmt.Errorf("procurement: unit cost must be >= 0: %w", httpx.ErrValidation)
)
