package masterdata

import (
	"fmt"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"

	"github.com/fabriq-erp/fabriq/internal/platform/httpx"
	"github.com/fabriq-erp/fabriq/internal/shared"
)

// RawMaterial is a purchasable input tracked by the stock ledger.
// CurrentCost feeds composition item costing; MinimumStock drives the
// low-stock scan.
type RawMaterial struct {
	ID           uuid.UUID       `json:"id"`
	TenantID     uuid.UUID       `json:"tenantId"`
	CompanyID    uuid.UUID       `json:"companyId"`
	Code         string          `json:"code"`
	Name         string          `json:"name"`
	UnitType     string          `json:"unitType"`
	CurrentCost  decimal.Decimal `json:"currentCost"`
	MinimumStock decimal.Decimal `json:"minimumStock"`
	IsActive     bool            `json:"isActive"`
	shared.Envelope
}

// Product is a manufactured good that compositions and production
// orders refer to.
type Product struct {
	ID          uuid.UUID `json:"id"`
	TenantID    uuid.UUID `json:"tenantId"`
	CompanyID   uuid.UUID `json:"companyId"`
	Code        string    `json:"code"`
	SKU         string    `json:"sku,omitempty"`
	Description string    `json:"description"`
	UnitType    string    `json:"unitType"`
	IsActive    bool      `json:"isActive"`
	shared.Envelope
}

// OutsourcedService is third-party work purchasable through buy
// services and referenced by composition items.
type OutsourcedService struct {
	ID          uuid.UUID       `json:"id"`
	TenantID    uuid.UUID       `json:"tenantId"`
	CompanyID   uuid.UUID       `json:"companyId"`
	Code        string          `json:"code"`
	Name        string          `json:"name"`
	CurrentCost decimal.Decimal `json:"currentCost"`
	IsActive    bool            `json:"isActive"`
	shared.Envelope
}

// Codes are unique per company within each catalog.
var (
	ErrRawMaterialNotFound = fmt.Errorf("masterdata: raw material %w", httpx.ErrNotFound)
	ErrProductNotFound     = fmt.Errorf("masterdata: product %w", httpx.ErrNotFound)
	ErrServiceNotFound     = fmt.Errorf("masterdata: outsourced service %w", httpx.ErrNotFound)
	ErrDuplicateCode       = fmt.Errorf("masterdata: code %w", httpx.ErrDuplicate)
	ErrCodeRequired        = fmt.Errorf("masterdata: code required: %w", httpx.ErrValidation)
	ErrNameRequired        = fmt.Errorf("masterdata: name required: %w", httpx.ErrValidation)
	ErrInvalidCost         = fmt.Errorf("masterdata: cost must be >= 0: %w", httpx.ErrValidation)
)
