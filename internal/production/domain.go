package production

import (
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"

	"github.com/fabriq-erp/fabriq/internal/platform/httpx"
	"github.com/fabriq-erp/fabriq/internal/shared"
)

// Status is the lifecycle state of a production order.
type Status string

const (
	StatusPlanned    Status = "PLANNED"
	StatusInProgress Status = "IN_PROGRESS"
	StatusFinished   Status = "FINISHED"
	StatusCanceled   Status = "CANCELED"
)

// Terminal reports whether no further transition is allowed.
func (s Status) Terminal() bool {
	return s == StatusFinished || s == StatusCanceled
}

// Priority orders the production queue.
type Priority string

const (
	PriorityLow    Priority = "LOW"
	PriorityMedium Priority = "MEDIUM"
	PriorityHigh   Priority = "HIGH"
	PriorityUrgent Priority = "URGENT"
)

// Valid reports whether the priority is known.
func (p Priority) Valid() bool {
	switch p {
	case PriorityLow, PriorityMedium, PriorityHigh, PriorityUrgent:
		return true
	}
	return false
}

// CostType buckets ledger entries for the closure aggregation.
type CostType string

const (
	CostMaterial CostType = "MATERIAL"
	CostService  CostType = "SERVICE"
	CostLabor    CostType = "LABOR"
	CostIndirect CostType = "INDIRECT"
)

// Valid reports whether the cost type is known.
func (t CostType) Valid() bool {
	switch t {
	case CostMaterial, CostService, CostLabor, CostIndirect:
		return true
	}
	return false
}

// QualityStatus is the inspection result of an execution.
type QualityStatus string

const (
	QualityApproved QualityStatus = "APPROVED"
	QualityRejected QualityStatus = "REJECTED"
	QualityRework   QualityStatus = "REWORK"
)

// Valid reports whether the quality status is known.
func (q QualityStatus) Valid() bool {
	return q == QualityApproved || q == QualityRejected || q == QualityRework
}

// Order is a production run of one product. Its code is unique per
// company; status changes go through the guard methods only.
type Order struct {
	ID               uuid.UUID       `json:"id"`
	TenantID         uuid.UUID       `json:"tenantId"`
	CompanyID        uuid.UUID       `json:"companyId"`
	Code             string          `json:"code"`
	ProductID        uuid.UUID       `json:"productId"`
	CompositionID    *uuid.UUID      `json:"compositionId,omitempty"`
	Status           Status          `json:"status"`
	Priority         Priority        `json:"priority"`
	QuantityPlanned  decimal.Decimal `json:"quantityPlanned"`
	QuantityProduced decimal.Decimal `json:"quantityProduced"`
	StartDate        *time.Time      `json:"startDate,omitempty"`
	EndDate          *time.Time      `json:"endDate,omitempty"`
	Deadline         *time.Time      `json:"deadline,omitempty"`
	CostTotal        decimal.Decimal `json:"costTotal"`
	ApprovedBy       string          `json:"approvedBy,omitempty"`
	ApprovedAt       *time.Time      `json:"approvedAt,omitempty"`
	FinishedBy       string          `json:"finishedBy,omitempty"`
	FinishedAt       *time.Time      `json:"finishedAt,omitempty"`
	CanceledReason   string          `json:"canceledReason,omitempty"`
	Notes            string          `json:"notes,omitempty"`
	shared.Envelope
}

// Start moves the order into production. Only planned orders start.
func (o *Order) Start(now time.Time, actor string) error {
	if o.Status != StatusPlanned {
		return transitionError(o.Status, StatusInProgress)
	}
	o.Status = StatusInProgress
	if o.StartDate == nil {
		o.StartDate = &now
	}
	o.StampUpdated(now, actor)
	return nil
}

// Finish completes the order with the produced quantity.
func (o *Order) Finish(produced decimal.Decimal, now time.Time, actor string) error {
	if o.Status != StatusInProgress {
		return transitionError(o.Status, StatusFinished)
	}
	if produced.IsNegative() {
		return ErrInvalidQuantity
	}
	o.Status = StatusFinished
	o.QuantityProduced = produced
	if o.EndDate == nil {
		o.EndDate = &now
	}
	o.FinishedBy = actor
	o.FinishedAt = &now
	o.StampUpdated(now, actor)
	return nil
}

// Cancel aborts the order. Terminal orders stay as they are.
func (o *Order) Cancel(reason string, now time.Time, actor string) error {
	if o.Status.Terminal() {
		return transitionError(o.Status, StatusCanceled)
	}
	o.Status = StatusCanceled
	o.CanceledReason = reason
	o.StampUpdated(now, actor)
	return nil
}

// Approve stamps the approval pair without changing status. Only
// planned orders can be approved; a repeated approval overwrites the
// stamp.
func (o *Order) Approve(now time.Time, actor string) error {
	if o.Status != StatusPlanned {
		return fmt.Errorf("production: approve requires a planned order, got %s: %w", o.Status, httpx.ErrIllegalState)
	}
	o.ApprovedBy = actor
	o.ApprovedAt = &now
	o.StampUpdated(now, actor)
	return nil
}

// ProductionPercentage is produced over planned, as a percentage at
// four decimal places. Zero planned yields zero.
func (o *Order) ProductionPercentage() decimal.Decimal {
	if o.QuantityPlanned.IsZero() {
		return decimal.Zero
	}
	return o.QuantityProduced.Mul(hundred).DivRound(o.QuantityPlanned, 4)
}

// Overdue reports whether the deadline passed while the order is still
// open.
func (o *Order) Overdue(now time.Time) bool {
	return o.Deadline != nil && now.After(*o.Deadline) && !o.Status.Terminal()
}

// Cost is one entry in the order's cost ledger.
type Cost struct {
	ID          uuid.UUID       `json:"id"`
	TenantID    uuid.UUID       `json:"tenantId"`
	CompanyID   uuid.UUID       `json:"companyId"`
	OrderID     uuid.UUID       `json:"orderId"`
	CostType    CostType        `json:"costType"`
	ReferenceID *uuid.UUID      `json:"referenceId,omitempty"`
	CostDate    time.Time       `json:"costDate"`
	Quantity    decimal.Decimal `json:"quantity"`
	UnitCost    decimal.Decimal `json:"unitCost"`
	TotalCost   decimal.Decimal `json:"totalCost"`
	ApprovedBy  string          `json:"approvedBy,omitempty"`
	ApprovedAt  *time.Time      `json:"approvedAt,omitempty"`
	Notes       string          `json:"notes,omitempty"`
	shared.Envelope
}

// Closure is the one-per-order cost rollup created when production
// ends. The total is always recomputed from the four buckets.
type Closure struct {
	ID                  uuid.UUID       `json:"id"`
	TenantID            uuid.UUID       `json:"tenantId"`
	CompanyID           uuid.UUID       `json:"companyId"`
	OrderID             uuid.UUID       `json:"orderId"`
	TotalMaterial       decimal.Decimal `json:"totalMaterial"`
	TotalService        decimal.Decimal `json:"totalService"`
	TotalLabor          decimal.Decimal `json:"totalLabor"`
	TotalIndirect       decimal.Decimal `json:"totalIndirect"`
	TotalCost           decimal.Decimal `json:"totalCost"`
	ClosureDate         time.Time       `json:"closureDate"`
	ClosedAt            time.Time       `json:"closedAt"`
	ClosedBy            string          `json:"closedBy,omitempty"`
	ExportedToFinancial bool            `json:"exportedToFinancial"`
	FinancialExportDate *time.Time      `json:"financialExportDate,omitempty"`
	FinancialDocumentID string          `json:"financialDocumentId,omitempty"`
	Notes               string          `json:"notes,omitempty"`
	shared.Envelope
}

// RecomputeTotal refreshes TotalCost from the four buckets.
func (c *Closure) RecomputeTotal() {
	c.TotalCost = c.TotalMaterial.Add(c.TotalService).Add(c.TotalLabor).Add(c.TotalIndirect).Round(2)
}

// Execution records work done against one order step.
type Execution struct {
	ID              uuid.UUID       `json:"id"`
	TenantID        uuid.UUID       `json:"tenantId"`
	CompanyID       uuid.UUID       `json:"companyId"`
	OrderID         uuid.UUID       `json:"orderId"`
	StepID          *uuid.UUID      `json:"stepId,omitempty"`
	StartTime       *time.Time      `json:"startTime,omitempty"`
	EndTime         *time.Time      `json:"endTime,omitempty"`
	QuantityDone    decimal.Decimal `json:"quantityDone"`
	LossQuantity    decimal.Decimal `json:"lossQuantity"`
	EmployeeID      *uuid.UUID      `json:"employeeId,omitempty"`
	MachineID       *uuid.UUID      `json:"machineId,omitempty"`
	QualityStatus   QualityStatus   `json:"qualityStatus,omitempty"`
	RejectionReason string          `json:"rejectionReason,omitempty"`
	Notes           string          `json:"notes,omitempty"`
	shared.Envelope
}

// Step is a catalog entry in the production routing.
type Step struct {
	ID               uuid.UUID  `json:"id"`
	TenantID         uuid.UUID  `json:"tenantId"`
	CompanyID        uuid.UUID  `json:"companyId"`
	Name             string     `json:"name"`
	Sequence         int        `json:"sequence"`
	EstimatedTime    int        `json:"estimatedTime"`
	CostCenterID     *uuid.UUID `json:"costCenterId,omitempty"`
	IsOutsourced     bool       `json:"isOutsourced"`
	RequiresApproval bool       `json:"requiresApproval"`
	IsActive         bool       `json:"isActive"`
	shared.Envelope
}

var hundred = decimal.NewFromInt(100)

func transitionError(from, to Status) error {
	return fmt.Errorf("production: cannot move order from %s to %s: %w", from, to, httpx.ErrIllegalState)
}

var (
	ErrOrderNotFound        = fmt.Errorf("production: order %w", httpx.ErrNotFound)
	ErrCostNotFound         = fmt.Errorf("production: cost %w", httpx.ErrNotFound)
	ErrClosureNotFound      = fmt.Errorf("production: closure %w", httpx.ErrNotFound)
	ErrExecutionNotFound    = fmt.Errorf("production: execution %w", httpx.ErrNotFound)
	ErrStepNotFound         = fmt.Errorf("production: step %w", httpx.ErrNotFound)
	ErrDuplicateCode        = fmt.Errorf("production: order code %w", httpx.ErrDuplicate)
	ErrClosureExists        = fmt.Errorf("production: order already closed: %w", httpx.ErrDuplicate)
	ErrAlreadyExported      = fmt.Errorf("production: closure already exported: %w", httpx.ErrIllegalState)
	ErrInvalidPriority      = fmt.Errorf("production: unknown priority: %w", httpx.ErrValidation)
	ErrInvalidCostType      = fmt.Errorf("production: unknown cost type: %w", httpx.ErrValidation)
	ErrInvalidQuality       = fmt.Errorf("production: unknown quality status: %w", httpx.ErrValidation)
	ErrInvalidQuantity      = fmt.Errorf("production: quantity must be >= 0: %w", httpx.ErrValidation)
	ErrInvalidPlannedQty    = fmt.Errorf("production: planned quantity must be positive: %w", httpx.ErrValidation)
	ErrInvalidUnitCost      = fmt.Errorf("production: unit cost must be >= 0: %w", httpx.ErrValidation)
	ErrCodeRequired         = fmt.Errorf("production: code required: %w", httpx.ErrValidation)
	ErrCancelReasonRequired = fmt.Errorf("production: cancellation reason required: %w", httpx.ErrValidation)
)
