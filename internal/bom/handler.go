package bom

import (
	"log/slog"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-playground/validator/v10"
	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"golang.org/x/sync/singleflight"

	"github.com/fabriq-erp/fabriq/internal/platform/httpx"
	"github.com/fabriq-erp/fabriq/internal/shared"
)

// Handler wires HTTP endpoints for the composition module.
type Handler struct {
	logger    *slog.Logger
	service   *Service
	validator *validator.Validate
	summaries singleflight.Group
}

// NewHandler constructs the composition handler.
func NewHandler(logger *slog.Logger, service *Service) *Handler {
	return &Handler{logger: logger, service: service, validator: validator.New()}
}

// MountRoutes registers composition routes.
func (h *Handler) MountRoutes(r chi.Router) {
	r.Get("/company/{companyID}", h.handleListByCompany)
	r.Get("/product/{productID}", h.handleListByProduct)
	r.Post("/", h.handleCreate)
	r.Get("/{id}", h.handleGet)
	r.Put("/{id}", h.handleUpdate)
	r.Delete("/{id}", h.handleDelete)
	r.Post("/{id}/approve", h.handleApprove)
	r.Post("/{id}/recalculate", h.handleRecalculate)
	r.Get("/{id}/costs", h.handleCostSummary)
	r.Get("/{id}/items", h.handleListItems)
	r.Post("/items", h.handleCreateItem)
	r.Get("/items/{itemID}", h.handleGetItem)
	r.Put("/items/{itemID}", h.handleUpdateItem)
	r.Delete("/items/{itemID}", h.handleDeleteItem)
}

type createCompositionRequest struct {
	TenantID       uuid.UUID  `json:"tenantId" validate:"required"`
	CompanyID      uuid.UUID  `json:"companyId" validate:"required"`
	ProductID      uuid.UUID  `json:"productId" validate:"required"`
	Name           string     `json:"name" validate:"required,max=200"`
	Version        int        `json:"version" validate:"omitempty,min=1"`
	EffectiveDate  *time.Time `json:"effectiveDate"`
	ExpirationDate *time.Time `json:"expirationDate"`
	IsActive       *bool      `json:"isActive"`
	Notes          string     `json:"notes"`
}

type updateCompositionRequest struct {
	ProductID      *uuid.UUID `json:"productId"`
	Name           *string    `json:"name" validate:"omitempty,max=200"`
	Version        *int       `json:"version" validate:"omitempty,min=1"`
	EffectiveDate  *time.Time `json:"effectiveDate"`
	ExpirationDate *time.Time `json:"expirationDate"`
	IsActive       *bool      `json:"isActive"`
	Notes          *string    `json:"notes"`
}

type createItemRequest struct {
	TenantID       uuid.UUID        `json:"tenantId" validate:"required"`
	CompanyID      uuid.UUID        `json:"companyId" validate:"required"`
	CompositionID  uuid.UUID        `json:"compositionId" validate:"required"`
	ItemType       ItemType         `json:"itemType" validate:"required"`
	ReferenceID    uuid.UUID        `json:"referenceId" validate:"required"`
	Sequence       int              `json:"sequence" validate:"omitempty,min=1"`
	UnitType       string           `json:"unitType" validate:"required"`
	Quantity       decimal.Decimal  `json:"quantity"`
	LossPercentage decimal.Decimal  `json:"lossPercentage"`
	UnitCost       *decimal.Decimal `json:"unitCost"`
	IsOptional     bool             `json:"isOptional"`
	Notes          string           `json:"notes"`
}

type updateItemRequest struct {
	ItemType       *ItemType        `json:"itemType"`
	ReferenceID    *uuid.UUID       `json:"referenceId"`
	Sequence       *int             `json:"sequence" validate:"omitempty,min=1"`
	UnitType       *string          `json:"unitType"`
	Quantity       *decimal.Decimal `json:"quantity"`
	LossPercentage *decimal.Decimal `json:"lossPercentage"`
	UnitCost       *decimal.Decimal `json:"unitCost"`
	IsOptional     *bool            `json:"isOptional"`
	Notes          *string          `json:"notes"`
}

func (h *Handler) handleCreate(w http.ResponseWriter, r *http.Request) {
	var req createCompositionRequest
	if err := httpx.DecodeJSON(r, &req); err != nil {
		httpx.Problem(w, http.StatusBadRequest, "Invalid Body", err.Error())
		return
	}
	if err := h.validator.Struct(req); err != nil {
		httpx.Problem(w, http.StatusBadRequest, "Validation Failed", err.Error())
		return
	}
	comp, err := h.service.CreateComposition(r.Context(), CreateCompositionInput{
		TenantID:       req.TenantID,
		CompanyID:      req.CompanyID,
		ProductID:      req.ProductID,
		Name:           req.Name,
		Version:        req.Version,
		EffectiveDate:  req.EffectiveDate,
		ExpirationDate: req.ExpirationDate,
		IsActive:       req.IsActive,
		Notes:          req.Notes,
	}, shared.ActorFromContext(r.Context()))
	if err != nil {
		h.logger.Error("create composition", slog.Any("error", err))
		httpx.RespondError(w, err)
		return
	}
	httpx.JSON(w, http.StatusCreated, comp)
}

func (h *Handler) handleGet(w http.ResponseWriter, r *http.Request) {
	id, err := uuid.Parse(chi.URLParam(r, "id"))
	if err != nil {
		httpx.Problem(w, http.StatusBadRequest, "Invalid ID", err.Error())
		return
	}
	comp, err := h.service.GetComposition(r.Context(), id)
	if err != nil {
		httpx.RespondError(w, err)
		return
	}
	httpx.JSON(w, http.StatusOK, comp)
}

func (h *Handler) handleListByCompany(w http.ResponseWriter, r *http.Request) {
	companyID, err := uuid.Parse(chi.URLParam(r, "companyID"))
	if err != nil {
		httpx.Problem(w, http.StatusBadRequest, "Invalid ID", err.Error())
		return
	}
	onlyActive := r.URL.Query().Get("active") == "true"
	comps, err := h.service.ListByCompany(r.Context(), companyID, onlyActive)
	if err != nil {
		h.logger.Error("list compositions", slog.Any("error", err))
		httpx.RespondError(w, err)
		return
	}
	httpx.JSON(w, http.StatusOK, comps)
}

func (h *Handler) handleListByProduct(w http.ResponseWriter, r *http.Request) {
	productID, err := uuid.Parse(chi.URLParam(r, "productID"))
	if err != nil {
		httpx.Problem(w, http.StatusBadRequest, "Invalid ID", err.Error())
		return
	}
	comps, err := h.service.ListByProduct(r.Context(), productID)
	if err != nil {
		httpx.RespondError(w, err)
		return
	}
	httpx.JSON(w, http.StatusOK, comps)
}

func (h *Handler) handleUpdate(w http.ResponseWriter, r *http.Request) {
	id, err := uuid.Parse(chi.URLParam(r, "id"))
	if err != nil {
		httpx.Problem(w, http.StatusBadRequest, "Invalid ID", err.Error())
		return
	}
	var req updateCompositionRequest
	if err := httpx.DecodeJSON(r, &req); err != nil {
		httpx.Problem(w, http.StatusBadRequest, "Invalid Body", err.Error())
		return
	}
	if err := h.validator.Struct(req); err != nil {
		httpx.Problem(w, http.StatusBadRequest, "Validation Failed", err.Error())
		return
	}
	comp, err := h.service.UpdateComposition(r.Context(), id, UpdateCompositionInput{
		ProductID:      req.ProductID,
		Name:           req.Name,
		Version:        req.Version,
		EffectiveDate:  req.EffectiveDate,
		ExpirationDate: req.ExpirationDate,
		IsActive:       req.IsActive,
		Notes:          req.Notes,
	}, shared.ActorFromContext(r.Context()))
	if err != nil {
		httpx.RespondError(w, err)
		return
	}
	httpx.JSON(w, http.StatusOK, comp)
}

func (h *Handler) handleDelete(w http.ResponseWriter, r *http.Request) {
	id, err := uuid.Parse(chi.URLParam(r, "id"))
	if err != nil {
		httpx.Problem(w, http.StatusBadRequest, "Invalid ID", err.Error())
		return
	}
	if err := h.service.DeleteComposition(r.Context(), id, shared.ActorFromContext(r.Context())); err != nil {
		httpx.RespondError(w, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

func (h *Handler) handleApprove(w http.ResponseWriter, r *http.Request) {
	id, err := uuid.Parse(chi.URLParam(r, "id"))
	if err != nil {
		httpx.Problem(w, http.StatusBadRequest, "Invalid ID", err.Error())
		return
	}
	comp, err := h.service.ApproveComposition(r.Context(), id, shared.ActorFromContext(r.Context()))
	if err != nil {
		httpx.RespondError(w, err)
		return
	}
	httpx.JSON(w, http.StatusOK, comp)
}

func (h *Handler) handleRecalculate(w http.ResponseWriter, r *http.Request) {
	id, err := uuid.Parse(chi.URLParam(r, "id"))
	if err != nil {
		httpx.Problem(w, http.StatusBadRequest, "Invalid ID", err.Error())
		return
	}
	total, err := h.service.RecalculateTotal(r.Context(), id, shared.ActorFromContext(r.Context()))
	if err != nil {
		httpx.RespondError(w, err)
		return
	}
	httpx.JSON(w, http.StatusOK, map[string]any{"compositionId": id, "totalCost": total})
}

func (h *Handler) handleCostSummary(w http.ResponseWriter, r *http.Request) {
	id, err := uuid.Parse(chi.URLParam(r, "id"))
	if err != nil {
		httpx.Problem(w, http.StatusBadRequest, "Invalid ID", err.Error())
		return
	}
	// Concurrent requests for the same composition share one build.
	value, err, _ := h.summaries.Do(id.String(), func() (any, error) {
		return h.service.CostSummary(r.Context(), id)
	})
	if err != nil {
		httpx.RespondError(w, err)
		return
	}
	httpx.JSON(w, http.StatusOK, value)
}

func (h *Handler) handleListItems(w http.ResponseWriter, r *http.Request) {
	id, err := uuid.Parse(chi.URLParam(r, "id"))
	if err != nil {
		httpx.Problem(w, http.StatusBadRequest, "Invalid ID", err.Error())
		return
	}
	items, err := h.service.ListItems(r.Context(), id)
	if err != nil {
		httpx.RespondError(w, err)
		return
	}
	httpx.JSON(w, http.StatusOK, items)
}

func (h *Handler) handleGetItem(w http.ResponseWriter, r *http.Request) {
	id, err := uuid.Parse(chi.URLParam(r, "itemID"))
	if err != nil {
		httpx.Problem(w, http.StatusBadRequest, "Invalid ID", err.Error())
		return
	}
	item, err := h.service.GetItem(r.Context(), id)
	if err != nil {
		httpx.RespondError(w, err)
		return
	}
	httpx.JSON(w, http.StatusOK, item)
}

func (h *Handler) handleCreateItem(w http.ResponseWriter, r *http.Request) {
	var req createItemRequest
	if err := httpx.DecodeJSON(r, &req); err != nil {
		httpx.Problem(w, http.StatusBadRequest, "Invalid Body", err.Error())
		return
	}
	if err := h.validator.Struct(req); err != nil {
		httpx.Problem(w, http.StatusBadRequest, "Validation Failed", err.Error())
		return
	}
	item, err := h.service.CreateItem(r.Context(), CreateItemInput{
		TenantID:       req.TenantID,
		CompanyID:      req.CompanyID,
		CompositionID:  req.CompositionID,
		ItemType:       req.ItemType,
		ReferenceID:    req.ReferenceID,
		Sequence:       req.Sequence,
		UnitType:       req.UnitType,
		Quantity:       req.Quantity,
		LossPercentage: req.LossPercentage,
		UnitCost:       nullDecimal(req.UnitCost),
		IsOptional:     req.IsOptional,
		Notes:          req.Notes,
	}, shared.ActorFromContext(r.Context()))
	if err != nil {
		h.logger.Error("create composition item", slog.Any("error", err))
		httpx.RespondError(w, err)
		return
	}
	httpx.JSON(w, http.StatusCreated, item)
}

func (h *Handler) handleUpdateItem(w http.ResponseWriter, r *http.Request) {
	id, err := uuid.Parse(chi.URLParam(r, "itemID"))
	if err != nil {
		httpx.Problem(w, http.StatusBadRequest, "Invalid ID", err.Error())
		return
	}
	var req updateItemRequest
	if err := httpx.DecodeJSON(r, &req); err != nil {
		httpx.Problem(w, http.StatusBadRequest, "Invalid Body", err.Error())
		return
	}
	if err := h.validator.Struct(req); err != nil {
		httpx.Problem(w, http.StatusBadRequest, "Validation Failed", err.Error())
		return
	}
	input := UpdateItemInput{
		ItemType:       req.ItemType,
		ReferenceID:    req.ReferenceID,
		Sequence:       req.Sequence,
		UnitType:       req.UnitType,
		Quantity:       req.Quantity,
		LossPercentage: req.LossPercentage,
		IsOptional:     req.IsOptional,
		Notes:          req.Notes,
	}
	if req.UnitCost != nil {
		cost := nullDecimal(req.UnitCost)
		input.UnitCost = &cost
	}
	item, err := h.service.UpdateItem(r.Context(), id, input, shared.ActorFromContext(r.Context()))
	if err != nil {
		httpx.RespondError(w, err)
		return
	}
	httpx.JSON(w, http.StatusOK, item)
}

func (h *Handler) handleDeleteItem(w http.ResponseWriter, r *http.Request) {
	id, err := uuid.Parse(chi.URLParam(r, "itemID"))
	if err != nil {
		httpx.Problem(w, http.StatusBadRequest, "Invalid ID", err.Error())
		return
	}
	if err := h.service.DeleteItem(r.Context(), id, shared.ActorFromContext(r.Context())); err != nil {
		httpx.RespondError(w, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

func nullDecimal(d *decimal.Decimal) decimal.NullDecimal {
	if d == nil {
		return decimal.NullDecimal{}
	}
	return decimal.NullDecimal{Decimal: *d, Valid: true}
}
