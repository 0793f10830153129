package production

import (
	"log/slog"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-playground/validator/v10"
	"github.com/google/uuid"
	"github.com/shopspring/decimal"

	"github.com/fabriq-erp/fabriq/internal/platform/httpx"
	"github.com/fabriq-erp/fabriq/internal/shared"
)

// Handler wires HTTP endpoints for production orders, costs, closures,
// executions and routing steps.
type Handler struct {
	logger    *slog.Logger
	service   *Service
	validator *validator.Validate
}

// NewHandler constructs the production handler.
func NewHandler(logger *slog.Logger, service *Service) *Handler {
	return &Handler{logger: logger, service: service, validator: validator.New()}
}

// MountRoutes registers production routes.
func (h *Handler) MountRoutes(r chi.Router) {
	r.Route("/orders", func(r chi.Router) {
		r.Post("/", h.handleCreateOrder)
		r.Get("/company/{companyID}", h.handleListOrders)
		r.Get("/{id}", h.handleGetOrder)
		r.Put("/{id}", h.handleUpdateOrder)
		r.Delete("/{id}", h.handleDeleteOrder)
		r.Post("/{id}/start", h.handleStartOrder)
		r.Post("/{id}/finish", h.handleFinishOrder)
		r.Post("/{id}/cancel", h.handleCancelOrder)
		r.Post("/{id}/approve", h.handleApproveOrder)
		r.Get("/{id}/costs", h.handleListCosts)
		r.Get("/{id}/executions", h.handleListExecutions)
		r.Get("/{id}/closure", h.handleGetClosureByOrder)
		r.Post("/{id}/close", h.handleCloseFromLedger)
	})
	r.Route("/costs", func(r chi.Router) {
		r.Post("/", h.handleAddCost)
		r.Get("/{id}", h.handleGetCost)
		r.Put("/{id}", h.handleUpdateCost)
		r.Delete("/{id}", h.handleDeleteCost)
		r.Post("/{id}/approve", h.handleApproveCost)
	})
	r.Route("/closures", func(r chi.Router) {
		r.Post("/", h.handleCreateClosure)
		r.Get("/company/{companyID}", h.handleListClosures)
		r.Get("/{id}", h.handleGetClosure)
		r.Post("/{id}/export", h.handleExportClosure)
	})
	r.Route("/executions", func(r chi.Router) {
		r.Post("/", h.handleCreateExecution)
		r.Get("/{id}", h.handleGetExecution)
		r.Put("/{id}", h.handleUpdateExecution)
		r.Delete("/{id}", h.handleDeleteExecution)
	})
	r.Route("/steps", func(r chi.Router) {
		r.Post("/", h.handleCreateStep)
		r.Get("/company/{companyID}", h.handleListSteps)
		r.Get("/{id}", h.handleGetStep)
		r.Put("/{id}", h.handleUpdateStep)
		r.Delete("/{id}", h.handleDeleteStep)
	})
}

type createOrderRequest struct {
	TenantID        uuid.UUID       `json:"tenantId" validate:"required"`
	CompanyID       uuid.UUID       `json:"companyId" validate:"required"`
	Code            string          `json:"code" validate:"required,max=50"`
	ProductID       uuid.UUID       `json:"productId" validate:"required"`
	CompositionID   *uuid.UUID      `json:"compositionId"`
	Priority        Priority        `json:"priority"`
	QuantityPlanned decimal.Decimal `json:"quantityPlanned"`
	StartDate       *time.Time      `json:"startDate"`
	Deadline        *time.Time      `json:"deadline"`
	Notes           string          `json:"notes"`
}

type updateOrderRequest struct {
	CompositionID   *uuid.UUID       `json:"compositionId"`
	Priority        *Priority        `json:"priority"`
	QuantityPlanned *decimal.Decimal `json:"quantityPlanned"`
	Deadline        *time.Time       `json:"deadline"`
	Notes           *string          `json:"notes"`
}

type finishOrderRequest struct {
	QuantityProduced decimal.Decimal `json:"quantityProduced"`
}

type cancelOrderRequest struct {
	Reason string `json:"reason" validate:"required,max=500"`
}

type costRequest struct {
	TenantID    uuid.UUID        `json:"tenantId"`
	CompanyID   uuid.UUID        `json:"companyId"`
	OrderID     uuid.UUID        `json:"orderId"`
	CostType    CostType         `json:"costType"`
	ReferenceID *uuid.UUID       `json:"referenceId"`
	CostDate    *time.Time       `json:"costDate"`
	Quantity    decimal.Decimal  `json:"quantity"`
	UnitCost    decimal.Decimal  `json:"unitCost"`
	TotalCost   *decimal.Decimal `json:"totalCost"`
	Notes       string           `json:"notes"`
}

type updateCostRequest struct {
	CostType    *CostType        `json:"costType"`
	ReferenceID *uuid.UUID       `json:"referenceId"`
	CostDate    *time.Time       `json:"costDate"`
	Quantity    *decimal.Decimal `json:"quantity"`
	UnitCost    *decimal.Decimal `json:"unitCost"`
	TotalCost   *decimal.Decimal `json:"totalCost"`
	Notes       *string          `json:"notes"`
}

type createClosureRequest struct {
	TenantID      uuid.UUID        `json:"tenantId" validate:"required"`
	CompanyID     uuid.UUID        `json:"companyId" validate:"required"`
	OrderID       uuid.UUID        `json:"orderId" validate:"required"`
	TotalMaterial *decimal.Decimal `json:"totalMaterial"`
	TotalService  *decimal.Decimal `json:"totalService"`
	TotalLabor    *decimal.Decimal `json:"totalLabor"`
	TotalIndirect *decimal.Decimal `json:"totalIndirect"`
	ClosureDate   *time.Time       `json:"closureDate"`
	Notes         string           `json:"notes"`
}

type exportClosureRequest struct {
	FinancialDocumentID string `json:"financialDocumentId" validate:"required,max=100"`
}

type closeFromLedgerRequest struct {
	TenantID  uuid.UUID `json:"tenantId" validate:"required"`
	CompanyID uuid.UUID `json:"companyId" validate:"required"`
	Notes     string    `json:"notes"`
}

type executionRequest struct {
	TenantID        uuid.UUID       `json:"tenantId"`
	CompanyID       uuid.UUID       `json:"companyId"`
	OrderID         uuid.UUID       `json:"orderId"`
	StepID          *uuid.UUID      `json:"stepId"`
	StartTime       *time.Time      `json:"startTime"`
	EndTime         *time.Time      `json:"endTime"`
	QuantityDone    decimal.Decimal `json:"quantityDone"`
	LossQuantity    decimal.Decimal `json:"lossQuantity"`
	EmployeeID      *uuid.UUID      `json:"employeeId"`
	MachineID       *uuid.UUID      `json:"machineId"`
	QualityStatus   QualityStatus   `json:"qualityStatus"`
	RejectionReason string          `json:"rejectionReason"`
	Notes           string          `json:"notes"`
}

type stepRequest struct {
	TenantID         uuid.UUID  `json:"tenantId"`
	CompanyID        uuid.UUID  `json:"companyId"`
	Name             string     `json:"name" validate:"omitempty,max=200"`
	Sequence         int        `json:"sequence"`
	EstimatedTime    int        `json:"estimatedTime"`
	CostCenterID     *uuid.UUID `json:"costCenterId"`
	IsOutsourced     bool       `json:"isOutsourced"`
	RequiresApproval bool       `json:"requiresApproval"`
	IsActive         *bool      `json:"isActive"`
}

func (h *Handler) decode(w http.ResponseWriter, r *http.Request, dest any) bool {
	if err := httpx.DecodeJSON(r, dest); err != nil {
		httpx.Problem(w, http.StatusBadRequest, "Invalid Body", err.Error())
		return false
	}
	if err := h.validator.Struct(dest); err != nil {
		httpx.Problem(w, http.StatusBadRequest, "Validation Failed", err.Error())
		return false
	}
	return true
}

func pathID(w http.ResponseWriter, r *http.Request, name string) (uuid.UUID, bool) {
	id, err := uuid.Parse(chi.URLParam(r, name))
	if err != nil {
		httpx.Problem(w, http.StatusBadRequest, "Invalid ID", err.Error())
		return uuid.Nil, false
	}
	return id, true
}

func (h *Handler) handleCreateOrder(w http.ResponseWriter, r *http.Request) {
	var req createOrderRequest
	if !h.decode(w, r, &req) {
		return
	}
	order, err := h.service.CreateOrder(r.Context(), CreateOrderInput{
		TenantID:        req.TenantID,
		CompanyID:       req.CompanyID,
		Code:            req.Code,
		ProductID:       req.ProductID,
		CompositionID:   req.CompositionID,
		Priority:        req.Priority,
		QuantityPlanned: req.QuantityPlanned,
		StartDate:       req.StartDate,
		Deadline:        req.Deadline,
		Notes:           req.Notes,
	}, shared.ActorFromContext(r.Context()))
	if err != nil {
		h.logger.Error("create production order", slog.Any("error", err))
		httpx.RespondError(w, err)
		return
	}
	httpx.JSON(w, http.StatusCreated, order)
}

func (h *Handler) handleGetOrder(w http.ResponseWriter, r *http.Request) {
	id, ok := pathID(w, r, "id")
	if !ok {
		return
	}
	order, err := h.service.GetOrder(r.Context(), id)
	if err != nil {
		httpx.RespondError(w, err)
		return
	}
	httpx.JSON(w, http.StatusOK, order)
}

func (h *Handler) handleListOrders(w http.ResponseWriter, r *http.Request) {
	companyID, ok := pathID(w, r, "companyID")
	if !ok {
		return
	}
	orders, err := h.service.ListOrders(r.Context(), companyID, Status(r.URL.Query().Get("status")))
	if err != nil {
		httpx.RespondError(w, err)
		return
	}
	httpx.JSON(w, http.StatusOK, orders)
}

func (h *Handler) handleUpdateOrder(w http.ResponseWriter, r *http.Request) {
	id, ok := pathID(w, r, "id")
	if !ok {
		return
	}
	var req updateOrderRequest
	if !h.decode(w, r, &req) {
		return
	}
	order, err := h.service.UpdateOrder(r.Context(), id, UpdateOrderInput{
		CompositionID:   req.CompositionID,
		Priority:        req.Priority,
		QuantityPlanned: req.QuantityPlanned,
		Deadline:        req.Deadline,
		Notes:           req.Notes,
	}, shared.ActorFromContext(r.Context()))
	if err != nil {
		httpx.RespondError(w, err)
		return
	}
	httpx.JSON(w, http.StatusOK, order)
}

func (h *Handler) handleDeleteOrder(w http.ResponseWriter, r *http.Request) {
	id, ok := pathID(w, r, "id")
	if !ok {
		return
	}
	if err := h.service.DeleteOrder(r.Context(), id, shared.ActorFromContext(r.Context())); err != nil {
		httpx.RespondError(w, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

func (h *Handler) handleStartOrder(w http.ResponseWriter, r *http.Request) {
	id, ok := pathID(w, r, "id")
	if !ok {
		return
	}
	order, err := h.service.StartOrder(r.Context(), id, shared.ActorFromContext(r.Context()))
	if err != nil {
		httpx.RespondError(w, err)
		return
	}
	httpx.JSON(w, http.StatusOK, order)
}

func (h *Handler) handleFinishOrder(w http.ResponseWriter, r *http.Request) {
	id, ok := pathID(w, r, "id")
	if !ok {
		return
	}
	var req finishOrderRequest
	if !h.decode(w, r, &req) {
		return
	}
	order, err := h.service.FinishOrder(r.Context(), id, req.QuantityProduced, shared.ActorFromContext(r.Context()))
	if err != nil {
		httpx.RespondError(w, err)
		return
	}
	httpx.JSON(w, http.StatusOK, order)
}

func (h *Handler) handleCancelOrder(w http.ResponseWriter, r *http.Request) {
	id, ok := pathID(w, r, "id")
	if !ok {
		return
	}
	var req cancelOrderRequest
	if !h.decode(w, r, &req) {
		return
	}
	order, err := h.service.CancelOrder(r.Context(), id, req.Reason, shared.ActorFromContext(r.Context()))
	if err != nil {
		httpx.RespondError(w, err)
		return
	}
	httpx.JSON(w, http.StatusOK, order)
}

func (h *Handler) handleApproveOrder(w http.ResponseWriter, r *http.Request) {
	id, ok := pathID(w, r, "id")
	if !ok {
		return
	}
	order, err := h.service.ApproveOrder(r.Context(), id, shared.ActorFromContext(r.Context()))
	if err != nil {
		httpx.RespondError(w, err)
		return
	}
	httpx.JSON(w, http.StatusOK, order)
}

func (h *Handler) handleAddCost(w http.ResponseWriter, r *http.Request) {
	var req costRequest
	if !h.decode(w, r, &req) {
		return
	}
	cost, err := h.service.AddCost(r.Context(), AddCostInput{
		TenantID:    req.TenantID,
		CompanyID:   req.CompanyID,
		OrderID:     req.OrderID,
		CostType:    req.CostType,
		ReferenceID: req.ReferenceID,
		CostDate:    req.CostDate,
		Quantity:    req.Quantity,
		UnitCost:    req.UnitCost,
		TotalCost:   req.TotalCost,
		Notes:       req.Notes,
	}, shared.ActorFromContext(r.Context()))
	if err != nil {
		h.logger.Error("add production cost", slog.Any("error", err))
		httpx.RespondError(w, err)
		return
	}
	httpx.JSON(w, http.StatusCreated, cost)
}

func (h *Handler) handleGetCost(w http.ResponseWriter, r *http.Request) {
	id, ok := pathID(w, r, "id")
	if !ok {
		return
	}
	cost, err := h.service.GetCost(r.Context(), id)
	if err != nil {
		httpx.RespondError(w, err)
		return
	}
	httpx.JSON(w, http.StatusOK, cost)
}

func (h *Handler) handleListCosts(w http.ResponseWriter, r *http.Request) {
	orderID, ok := pathID(w, r, "id")
	if !ok {
		return
	}
	costs, err := h.service.ListCosts(r.Context(), orderID)
	if err != nil {
		httpx.RespondError(w, err)
		return
	}
	httpx.JSON(w, http.StatusOK, costs)
}

func (h *Handler) handleUpdateCost(w http.ResponseWriter, r *http.Request) {
	id, ok := pathID(w, r, "id")
	if !ok {
		return
	}
	var req updateCostRequest
	if !h.decode(w, r, &req) {
		return
	}
	cost, err := h.service.UpdateCost(r.Context(), id, UpdateCostInput{
		CostType:    req.CostType,
		ReferenceID: req.ReferenceID,
		CostDate:    req.CostDate,
		Quantity:    req.Quantity,
		UnitCost:    req.UnitCost,
		TotalCost:   req.TotalCost,
		Notes:       req.Notes,
	}, shared.ActorFromContext(r.Context()))
	if err != nil {
		httpx.RespondError(w, err)
		return
	}
	httpx.JSON(w, http.StatusOK, cost)
}

func (h *Handler) handleDeleteCost(w http.ResponseWriter, r *http.Request) {
	id, ok := pathID(w, r, "id")
	if !ok {
		return
	}
	if err := h.service.DeleteCost(r.Context(), id, shared.ActorFromContext(r.Context())); err != nil {
		httpx.RespondError(w, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

func (h *Handler) handleApproveCost(w http.ResponseWriter, r *http.Request) {
	id, ok := pathID(w, r, "id")
	if !ok {
		return
	}
	cost, err := h.service.ApproveCost(r.Context(), id, shared.ActorFromContext(r.Context()))
	if err != nil {
		httpx.RespondError(w, err)
		return
	}
	httpx.JSON(w, http.StatusOK, cost)
}

func (h *Handler) handleCreateClosure(w http.ResponseWriter, r *http.Request) {
	var req createClosureRequest
	if !h.decode(w, r, &req) {
		return
	}
	closure, err := h.service.CreateClosure(r.Context(), CreateClosureInput{
		TenantID:      req.TenantID,
		CompanyID:     req.CompanyID,
		OrderID:       req.OrderID,
		TotalMaterial: req.TotalMaterial,
		TotalService:  req.TotalService,
		TotalLabor:    req.TotalLabor,
		TotalIndirect: req.TotalIndirect,
		ClosureDate:   req.ClosureDate,
		Notes:         req.Notes,
	}, shared.ActorFromContext(r.Context()))
	if err != nil {
		h.logger.Error("create production closure", slog.Any("error", err))
		httpx.RespondError(w, err)
		return
	}
	httpx.JSON(w, http.StatusCreated, closure)
}

func (h *Handler) handleCloseFromLedger(w http.ResponseWriter, r *http.Request) {
	orderID, ok := pathID(w, r, "id")
	if !ok {
		return
	}
	var req closeFromLedgerRequest
	if !h.decode(w, r, &req) {
		return
	}
	closure, err := h.service.CloseFromLedger(r.Context(), req.TenantID, req.CompanyID, orderID, req.Notes,
		shared.ActorFromContext(r.Context()))
	if err != nil {
		httpx.RespondError(w, err)
		return
	}
	httpx.JSON(w, http.StatusCreated, closure)
}

func (h *Handler) handleGetClosure(w http.ResponseWriter, r *http.Request) {
	id, ok := pathID(w, r, "id")
	if !ok {
		return
	}
	closure, err := h.service.GetClosure(r.Context(), id)
	if err != nil {
		httpx.RespondError(w, err)
		return
	}
	httpx.JSON(w, http.StatusOK, closure)
}

func (h *Handler) handleGetClosureByOrder(w http.ResponseWriter, r *http.Request) {
	orderID, ok := pathID(w, r, "id")
	if !ok {
		return
	}
	closure, err := h.service.GetClosureByOrder(r.Context(), orderID)
	if err != nil {
		httpx.RespondError(w, err)
		return
	}
	httpx.JSON(w, http.StatusOK, closure)
}

func (h *Handler) handleListClosures(w http.ResponseWriter, r *http.Request) {
	companyID, ok := pathID(w, r, "companyID")
	if !ok {
		return
	}
	closures, err := h.service.ListClosures(r.Context(), companyID)
	if err != nil {
		httpx.RespondError(w, err)
		return
	}
	httpx.JSON(w, http.StatusOK, closures)
}

func (h *Handler) handleExportClosure(w http.ResponseWriter, r *http.Request) {
	id, ok := pathID(w, r, "id")
	if !ok {
		return
	}
	var req exportClosureRequest
	if !h.decode(w, r, &req) {
		return
	}
	closure, err := h.service.ExportToFinancial(r.Context(), id, req.FinancialDocumentID, shared.ActorFromContext(r.Context()))
	if err != nil {
		httpx.RespondError(w, err)
		return
	}
	httpx.JSON(w, http.StatusOK, closure)
}

func (h *Handler) handleCreateExecution(w http.ResponseWriter, r *http.Request) {
	var req executionRequest
	if !h.decode(w, r, &req) {
		return
	}
	exec, err := h.service.CreateExecution(r.Context(), executionInput(req), shared.ActorFromContext(r.Context()))
	if err != nil {
		httpx.RespondError(w, err)
		return
	}
	httpx.JSON(w, http.StatusCreated, exec)
}

func (h *Handler) handleGetExecution(w http.ResponseWriter, r *http.Request) {
	id, ok := pathID(w, r, "id")
	if !ok {
		return
	}
	exec, err := h.service.GetExecution(r.Context(), id)
	if err != nil {
		httpx.RespondError(w, err)
		return
	}
	httpx.JSON(w, http.StatusOK, exec)
}

func (h *Handler) handleListExecutions(w http.ResponseWriter, r *http.Request) {
	orderID, ok := pathID(w, r, "id")
	if !ok {
		return
	}
	executions, err := h.service.ListExecutions(r.Context(), orderID)
	if err != nil {
		httpx.RespondError(w, err)
		return
	}
	httpx.JSON(w, http.StatusOK, executions)
}

func (h *Handler) handleUpdateExecution(w http.ResponseWriter, r *http.Request) {
	id, ok := pathID(w, r, "id")
	if !ok {
		return
	}
	var req executionRequest
	if !h.decode(w, r, &req) {
		return
	}
	exec, err := h.service.UpdateExecution(r.Context(), id, executionInput(req), shared.ActorFromContext(r.Context()))
	if err != nil {
		httpx.RespondError(w, err)
		return
	}
	httpx.JSON(w, http.StatusOK, exec)
}

func (h *Handler) handleDeleteExecution(w http.ResponseWriter, r *http.Request) {
	id, ok := pathID(w, r, "id")
	if !ok {
		return
	}
	if err := h.service.DeleteExecution(r.Context(), id, shared.ActorFromContext(r.Context())); err != nil {
		httpx.RespondError(w, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

func (h *Handler) handleCreateStep(w http.ResponseWriter, r *http.Request) {
	var req stepRequest
	if !h.decode(w, r, &req) {
		return
	}
	step, err := h.service.CreateStep(r.Context(), stepInput(req), shared.ActorFromContext(r.Context()))
	if err != nil {
		httpx.RespondError(w, err)
		return
	}
	httpx.JSON(w, http.StatusCreated, step)
}

func (h *Handler) handleGetStep(w http.ResponseWriter, r *http.Request) {
	id, ok := pathID(w, r, "id")
	if !ok {
		return
	}
	step, err := h.service.GetStep(r.Context(), id)
	if err != nil {
		httpx.RespondError(w, err)
		return
	}
	httpx.JSON(w, http.StatusOK, step)
}

func (h *Handler) handleListSteps(w http.ResponseWriter, r *http.Request) {
	companyID, ok := pathID(w, r, "companyID")
	if !ok {
		return
	}
	steps, err := h.service.ListSteps(r.Context(), companyID, r.URL.Query().Get("active") == "true")
	if err != nil {
		httpx.RespondError(w, err)
		return
	}
	httpx.JSON(w, http.StatusOK, steps)
}

func (h *Handler) handleUpdateStep(w http.ResponseWriter, r *http.Request) {
	id, ok := pathID(w, r, "id")
	if !ok {
		return
	}
	var req stepRequest
	if !h.decode(w, r, &req) {
		return
	}
	step, err := h.service.UpdateStep(r.Context(), id, stepInput(req), shared.ActorFromContext(r.Context()))
	if err != nil {
		httpx.RespondError(w, err)
		return
	}
	httpx.JSON(w, http.StatusOK, step)
}

func (h *Handler) handleDeleteStep(w http.ResponseWriter, r *http.Request) {
	id, ok := pathID(w, r, "id")
	if !ok {
		return
	}
	if err := h.service.DeleteStep(r.Context(), id, shared.ActorFromContext(r.Context())); err != nil {
		httpx.RespondError(w, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

func executionInput(req executionRequest) ExecutionInput {
	return ExecutionInput{
		TenantID:        req.TenantID,
		CompanyID:       req.CompanyID,
		OrderID:         req.OrderID,
		StepID:          req.StepID,
		StartTime:       req.StartTime,
		EndTime:         req.EndTime,
		QuantityDone:    req.QuantityDone,
		LossQuantity:    req.LossQuantity,
		EmployeeID:      req.EmployeeID,
		MachineID:       req.MachineID,
		QualityStatus:   req.QualityStatus,
		RejectionReason: req.RejectionReason,
		Notes:           req.Notes,
	}
}

func stepInput(req stepRequest) StepInput {
	return StepInput{
		TenantID:         req.TenantID,
		CompanyID:        req.CompanyID,
		Name:             req.Name,
		Sequence:         req.Sequence,
		EstimatedTime:    req.EstimatedTime,
		CostCenterID:     req.CostCenterID,
		IsOutsourced:     req.IsOutsourced,
		RequiresApproval: req.RequiresApproval,
		IsActive:         req.IsActive,
	}
}
