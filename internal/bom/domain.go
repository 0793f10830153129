package bom

import (
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"

	"github.com/fabriq-erp/fabriq/internal/platform/httpx"
	"github.com/fabriq-erp/fabriq/internal/shared"
)

// ItemType enumerates what a composition line refers to.
type ItemType string

const (
	// ItemTypeRawMaterial references a raw-material catalog entry.
	ItemTypeRawMaterial ItemType = "RAW_MATERIAL"
	// ItemTypeService references an outsourced-service catalog entry.
	ItemTypeService ItemType = "SERVICE"
)

// Valid reports whether the item type is one of the known values.
func (t ItemType) Valid() bool {
	return t == ItemTypeRawMaterial || t == ItemTypeService
}

// Composition is a versioned bill of materials for one production
// product. TotalCost is a stored snapshot of the item sum and is
// updated in the same transaction as every item mutation.
type Composition struct {
	ID             uuid.UUID        `json:"id"`
	TenantID       uuid.UUID        `json:"tenantId"`
	CompanyID      uuid.UUID        `json:"companyId"`
	ProductID      uuid.UUID        `json:"productId"`
	Name           string           `json:"name"`
	Version        int              `json:"version"`
	EffectiveDate  *time.Time       `json:"effectiveDate,omitempty"`
	ExpirationDate *time.Time       `json:"expirationDate,omitempty"`
	IsActive       bool             `json:"isActive"`
	Notes          string           `json:"notes,omitempty"`
	ApprovedBy     string           `json:"approvedBy,omitempty"`
	ApprovedAt     *time.Time       `json:"approvedAt,omitempty"`
	TotalCost      decimal.Decimal  `json:"totalCost"`
	shared.Envelope
}

// Approved reports whether the composition carries an approval stamp.
func (c *Composition) Approved() bool {
	return c.ApprovedBy != "" && c.ApprovedAt != nil
}

// EffectiveOn reports whether the composition may be used for costing
// on the given date.
func (c *Composition) EffectiveOn(date time.Time) bool {
	if !c.IsActive {
		return false
	}
	if c.EffectiveDate != nil && date.Before(*c.EffectiveDate) {
		return false
	}
	if c.ExpirationDate != nil && date.After(*c.ExpirationDate) {
		return false
	}
	return true
}

// Item is one raw material or outsourced service required by a
// composition. UnitCost may be unknown; costing then leaves TotalCost
// unset instead of failing.
type Item struct {
	ID             uuid.UUID           `json:"id"`
	TenantID       uuid.UUID           `json:"tenantId"`
	CompanyID      uuid.UUID           `json:"companyId"`
	CompositionID  uuid.UUID           `json:"compositionId"`
	ItemType       ItemType            `json:"itemType"`
	ReferenceID    uuid.UUID           `json:"referenceId"`
	Sequence       int                 `json:"sequence"`
	UnitType       string              `json:"unitType"`
	Quantity       decimal.Decimal     `json:"quantity"`
	LossPercentage decimal.Decimal     `json:"lossPercentage"`
	UnitCost       decimal.NullDecimal `json:"unitCost"`
	TotalCost      decimal.NullDecimal `json:"totalCost"`
	IsOptional     bool                `json:"isOptional"`
	Notes          string              `json:"notes,omitempty"`
	shared.Envelope
}

// CostSummary aggregates the costed items of one composition.
type CostSummary struct {
	CompositionID uuid.UUID       `json:"compositionId"`
	TotalItems    int             `json:"totalItems"`
	TotalCost     decimal.Decimal `json:"totalCost"`
	Items         []ItemCost      `json:"items"`
}

// ItemCost is the costed view of a single item.
type ItemCost struct {
	ItemID           uuid.UUID           `json:"itemId"`
	ItemType         ItemType            `json:"itemType"`
	ReferenceID      uuid.UUID           `json:"referenceId"`
	Quantity         decimal.Decimal     `json:"quantity"`
	QuantityWithLoss decimal.Decimal     `json:"quantityWithLoss"`
	UnitCost         decimal.NullDecimal `json:"unitCost"`
	TotalCost        decimal.NullDecimal `json:"totalCost"`
}

// Domain failures, wrapped so the HTTP edge maps them onto response
// classes via errors.Is.
var (
	ErrCompositionNotFound = fmt.Errorf("bom: composition %w", httpx.ErrNotFound)
	ErrItemNotFound        = fmt.Errorf("bom: composition item %w", httpx.ErrNotFound)
	ErrDuplicateVersion    = fmt.Errorf("bom: composition version %w", httpx.ErrDuplicate)
	ErrInvalidQuantity     = fmt.Errorf("bom: quantity must be positive: %w", httpx.ErrValidation)
	ErrInvalidLoss         = fmt.Errorf("bom: loss percentage must be between 0 and 100: %w", httpx.ErrValidation)
	ErrInvalidUnitCost     = fmt.Errorf("bom: unit cost must be >= 0: %w", httpx.ErrValidation)
	ErrInvalidItemType     = fmt.Errorf("bom: unknown item type: %w", httpx.ErrValidation)
)
