package stock

import (
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"

	"github.com/fabriq-erp/fabriq/internal/platform/httpx"
	"github.com/fabriq-erp/fabriq/internal/shared"
)

// MovementType is the direction of a stock movement.
type MovementType string

const (
	MovementIn  MovementType = "IN"
	MovementOut MovementType = "OUT"
)

// Valid reports whether the movement type is known.
func (t MovementType) Valid() bool {
	return t == MovementIn || t == MovementOut
}

// MovementOrigin classifies what triggered a movement.
type MovementOrigin string

const (
	OriginPurchase   MovementOrigin = "PURCHASE"
	OriginProduction MovementOrigin = "PRODUCTION"
	OriginAdjustment MovementOrigin = "ADJUSTMENT"
	OriginReturn     MovementOrigin = "RETURN"
	OriginTransfer   MovementOrigin = "TRANSFER"
)

// Valid reports whether the origin is known.
func (o MovementOrigin) Valid() bool {
	switch o {
	case OriginPurchase, OriginProduction, OriginAdjustment, OriginReturn, OriginTransfer:
		return true
	}
	return false
}

// Stock is the on-hand position of one raw material, per company and
// optional warehouse. The row is created lazily at zero on the first
// movement.
type Stock struct {
	ID               uuid.UUID       `json:"id"`
	TenantID         uuid.UUID       `json:"tenantId"`
	CompanyID        uuid.UUID       `json:"companyId"`
	RawMaterialID    uuid.UUID       `json:"rawMaterialId"`
	WarehouseID      *uuid.UUID      `json:"warehouseId,omitempty"`
	Quantity         decimal.Decimal `json:"quantity"`
	ReservedQuantity decimal.Decimal `json:"reservedQuantity"`
	LastMovementDate *time.Time      `json:"lastMovementDate,omitempty"`
	shared.Envelope
}

// AvailableQuantity is on-hand minus reserved. It is computed on read,
// never stored, and may go negative when reservations outrun receipts.
func (s *Stock) AvailableQuantity() decimal.Decimal {
	return s.Quantity.Sub(s.ReservedQuantity)
}

// Movement is one immutable ledger entry. Movements are never updated
// or deleted after insertion; corrections are compensating entries.
type Movement struct {
	ID             uuid.UUID       `json:"id"`
	TenantID       uuid.UUID       `json:"tenantId"`
	CompanyID      uuid.UUID       `json:"companyId"`
	RawMaterialID  uuid.UUID       `json:"rawMaterialId"`
	WarehouseID    *uuid.UUID      `json:"warehouseId,omitempty"`
	MovementType   MovementType    `json:"movementType"`
	MovementOrigin MovementOrigin  `json:"movementOrigin"`
	OriginID       *uuid.UUID      `json:"originId,omitempty"`
	DocumentNumber string          `json:"documentNumber,omitempty"`
	MovementDate   time.Time       `json:"movementDate"`
	Quantity       decimal.Decimal `json:"quantity"`
	UnitCost       decimal.Decimal `json:"unitCost"`
	TotalCost      decimal.Decimal `json:"totalCost"`
	Notes          string          `json:"notes,omitempty"`
	CreatedAt      time.Time       `json:"createdAt"`
	CreatedBy      string          `json:"createdBy,omitempty"`
}

var (
	ErrStockNotFound      = fmt.Errorf("stock: position %w", httpx.ErrNotFound)
	ErrMovementNotFound   = fmt.Errorf("stock: movement %w", httpx.ErrNotFound)
	ErrDuplicateDocument  = fmt.Errorf("stock: document already applied: %w", httpx.ErrDuplicate)
	ErrInvalidType        = fmt.Errorf("stock: unknown movement type: %w", httpx.ErrValidation)
	ErrInvalidOrigin      = fmt.Errorf("stock: unknown movement origin: %w", httpx.ErrValidation)
	ErrInvalidQuantity    = fmt.Errorf("stock: quantity must be positive: %w", httpx.ErrValidation)
	ErrInvalidUnitCost    = fmt.Errorf("stock: unit cost must be >= 0: %w", httpx.ErrValidation)
	ErrInsufficientStock  = fmt.Errorf("stock: insufficient quantity: %w", httpx.ErrIllegalState)
	ErrInvalidReservation = fmt.Errorf("stock: reservation quantity must be positive: %w", httpx.ErrValidation)
)
