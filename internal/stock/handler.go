package stock

import (
	"context"
	"log/slog"
	"net/http"
	"strconv"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-playground/validator/v10"
	"github.com/google/uuid"
	"github.com/shopspring/decimal"

	"github.com/fabriq-erp/fabriq/internal/platform/httpx"
	"github.com/fabriq-erp/fabriq/internal/shared"
)

// Handler wires HTTP endpoints for the stock ledger.
type Handler struct {
	logger    *slog.Logger
	service   *Service
	validator *validator.Validate
}

// NewHandler constructs the stock handler.
func NewHandler(logger *slog.Logger, service *Service) *Handler {
	return &Handler{logger: logger, service: service, validator: validator.New()}
}

// MountRoutes registers stock routes.
func (h *Handler) MountRoutes(r chi.Router) {
	r.Post("/movements", h.handleApplyMovement)
	r.Get("/company/{companyID}", h.handleListByCompany)
	r.Get("/company/{companyID}/low", h.handleLowStock)
	r.Get("/company/{companyID}/material/{materialID}", h.handleGetByMaterial)
	r.Get("/company/{companyID}/material/{materialID}/movements", h.handleListMovements)
	r.Post("/reserve", h.handleReserve)
	r.Post("/release", h.handleRelease)
	r.Get("/{id}", h.handleGet)
}

type applyMovementRequest struct {
	TenantID       uuid.UUID        `json:"tenantId" validate:"required"`
	CompanyID      uuid.UUID        `json:"companyId" validate:"required"`
	RawMaterialID  uuid.UUID        `json:"rawMaterialId" validate:"required"`
	WarehouseID    *uuid.UUID       `json:"warehouseId"`
	MovementType   MovementType     `json:"movementType" validate:"required"`
	MovementOrigin MovementOrigin   `json:"movementOrigin" validate:"required"`
	OriginID       *uuid.UUID       `json:"originId"`
	DocumentNumber string           `json:"documentNumber" validate:"omitempty,max=100"`
	MovementDate   *time.Time       `json:"movementDate"`
	Quantity       decimal.Decimal  `json:"quantity"`
	UnitCost       decimal.Decimal  `json:"unitCost"`
	TotalCost      *decimal.Decimal `json:"totalCost"`
	Notes          string           `json:"notes"`
}

type reservationRequest struct {
	CompanyID     uuid.UUID       `json:"companyId" validate:"required"`
	RawMaterialID uuid.UUID       `json:"rawMaterialId" validate:"required"`
	Quantity      decimal.Decimal `json:"quantity"`
}

func (h *Handler) handleApplyMovement(w http.ResponseWriter, r *http.Request) {
	var req applyMovementRequest
	if err := httpx.DecodeJSON(r, &req); err != nil {
		httpx.Problem(w, http.StatusBadRequest, "Invalid Body", err.Error())
		return
	}
	if err := h.validator.Struct(req); err != nil {
		httpx.Problem(w, http.StatusBadRequest, "Validation Failed", err.Error())
		return
	}
	movement, err := h.service.ApplyMovement(r.Context(), ApplyMovementInput{
		TenantID:       req.TenantID,
		CompanyID:      req.CompanyID,
		RawMaterialID:  req.RawMaterialID,
		WarehouseID:    req.WarehouseID,
		MovementType:   req.MovementType,
		MovementOrigin: req.MovementOrigin,
		OriginID:       req.OriginID,
		DocumentNumber: req.DocumentNumber,
		MovementDate:   req.MovementDate,
		Quantity:       req.Quantity,
		UnitCost:       req.UnitCost,
		TotalCost:      req.TotalCost,
		Notes:          req.Notes,
	}, shared.ActorFromContext(r.Context()))
	if err != nil {
		h.logger.Error("apply stock movement", slog.Any("error", err))
		httpx.RespondError(w, err)
		return
	}
	httpx.JSON(w, http.StatusCreated, movement)
}

func (h *Handler) handleGet(w http.ResponseWriter, r *http.Request) {
	id, err := uuid.Parse(chi.URLParam(r, "id"))
	if err != nil {
		httpx.Problem(w, http.StatusBadRequest, "Invalid ID", err.Error())
		return
	}
	position, err := h.service.GetStock(r.Context(), id)
	if err != nil {
		httpx.RespondError(w, err)
		return
	}
	httpx.JSON(w, http.StatusOK, stockView(position))
}

func (h *Handler) handleGetByMaterial(w http.ResponseWriter, r *http.Request) {
	companyID, err := uuid.Parse(chi.URLParam(r, "companyID"))
	if err != nil {
		httpx.Problem(w, http.StatusBadRequest, "Invalid ID", err.Error())
		return
	}
	materialID, err := uuid.Parse(chi.URLParam(r, "materialID"))
	if err != nil {
		httpx.Problem(w, http.StatusBadRequest, "Invalid ID", err.Error())
		return
	}
	position, err := h.service.GetByMaterial(r.Context(), companyID, materialID)
	if err != nil {
		httpx.RespondError(w, err)
		return
	}
	httpx.JSON(w, http.StatusOK, stockView(position))
}

func (h *Handler) handleListByCompany(w http.ResponseWriter, r *http.Request) {
	companyID, err := uuid.Parse(chi.URLParam(r, "companyID"))
	if err != nil {
		httpx.Problem(w, http.StatusBadRequest, "Invalid ID", err.Error())
		return
	}
	positions, err := h.service.ListByCompany(r.Context(), companyID)
	if err != nil {
		h.logger.Error("list stock", slog.Any("error", err))
		httpx.RespondError(w, err)
		return
	}
	httpx.JSON(w, http.StatusOK, stockViews(positions))
}

func (h *Handler) handleLowStock(w http.ResponseWriter, r *http.Request) {
	companyID, err := uuid.Parse(chi.URLParam(r, "companyID"))
	if err != nil {
		httpx.Problem(w, http.StatusBadRequest, "Invalid ID", err.Error())
		return
	}
	threshold := decimal.Zero
	if raw := r.URL.Query().Get("threshold"); raw != "" {
		threshold, err = decimal.NewFromString(raw)
		if err != nil {
			httpx.Problem(w, http.StatusBadRequest, "Invalid Threshold", err.Error())
			return
		}
	}
	positions, err := h.service.LowStock(r.Context(), companyID, threshold)
	if err != nil {
		httpx.RespondError(w, err)
		return
	}
	httpx.JSON(w, http.StatusOK, stockViews(positions))
}

func (h *Handler) handleListMovements(w http.ResponseWriter, r *http.Request) {
	companyID, err := uuid.Parse(chi.URLParam(r, "companyID"))
	if err != nil {
		httpx.Problem(w, http.StatusBadRequest, "Invalid ID", err.Error())
		return
	}
	materialID, err := uuid.Parse(chi.URLParam(r, "materialID"))
	if err != nil {
		httpx.Problem(w, http.StatusBadRequest, "Invalid ID", err.Error())
		return
	}
	page, _ := strconv.Atoi(r.URL.Query().Get("page"))
	perPage, _ := strconv.Atoi(r.URL.Query().Get("perPage"))
	movements, pagination, err := h.service.ListMovements(r.Context(), companyID, materialID, page, perPage)
	if err != nil {
		httpx.RespondError(w, err)
		return
	}
	httpx.JSON(w, http.StatusOK, map[string]any{"movements": movements, "pagination": pagination})
}

func (h *Handler) handleReserve(w http.ResponseWriter, r *http.Request) {
	h.handleReservation(w, r, h.service.Reserve)
}

func (h *Handler) handleRelease(w http.ResponseWriter, r *http.Request) {
	h.handleReservation(w, r, h.service.ReleaseReservation)
}

func (h *Handler) handleReservation(w http.ResponseWriter, r *http.Request,
	apply func(ctx context.Context, companyID, rawMaterialID uuid.UUID, quantity decimal.Decimal, actor string) (Stock, error)) {
	var req reservationRequest
	if err := httpx.DecodeJSON(r, &req); err != nil {
		httpx.Problem(w, http.StatusBadRequest, "Invalid Body", err.Error())
		return
	}
	if err := h.validator.Struct(req); err != nil {
		httpx.Problem(w, http.StatusBadRequest, "Validation Failed", err.Error())
		return
	}
	position, err := apply(r.Context(), req.CompanyID, req.RawMaterialID, req.Quantity, shared.ActorFromContext(r.Context()))
	if err != nil {
		httpx.RespondError(w, err)
		return
	}
	httpx.JSON(w, http.StatusOK, stockView(position))
}

// stockViewModel adds the computed available quantity to API responses.
type stockViewModel struct {
	Stock
	AvailableQuantity decimal.Decimal `json:"availableQuantity"`
}

func stockView(s Stock) stockViewModel {
	return stockViewModel{Stock: s, AvailableQuantity: s.AvailableQuantity()}
}

func stockViews(stocks []Stock) []stockViewModel {
	views := make([]stockViewModel, 0, len(stocks))
	for _, s := range stocks {
		views = append(views, stockView(s))
	}
	return views
}
