package masterdata

import (
	"log/slog"
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/go-playground/validator/v10"
	"github.com/google/uuid"
	"github.com/shopspring/decimal"

	"github.com/fabriq-erp/fabriq/internal/platform/httpx"
	"github.com/fabriq-erp/fabriq/internal/shared"
)

// Handler wires HTTP endpoints for the catalogs.
type Handler struct {
	logger    *slog.Logger
	service   *Service
	validator *validator.Validate
}

// NewHandler constructs the masterdata handler.
func NewHandler(logger *slog.Logger, service *Service) *Handler {
	return &Handler{logger: logger, service: service, validator: validator.New()}
}

// MountRoutes registers catalog routes.
func (h *Handler) MountRoutes(r chi.Router) {
	r.Route("/raw-materials", func(r chi.Router) {
		r.Post("/", h.handleCreateRawMaterial)
		r.Get("/company/{companyID}", h.handleListRawMaterials)
		r.Get("/{id}", h.handleGetRawMaterial)
		r.Put("/{id}", h.handleUpdateRawMaterial)
		r.Delete("/{id}", h.handleDeleteRawMaterial)
	})
	r.Route("/products", func(r chi.Router) {
		r.Post("/", h.handleCreateProduct)
		r.Get("/company/{companyID}", h.handleListProducts)
		r.Get("/{id}", h.handleGetProduct)
		r.Put("/{id}", h.handleUpdateProduct)
		r.Delete("/{id}", h.handleDeleteProduct)
	})
	r.Route("/services", func(r chi.Router) {
		r.Post("/", h.handleCreateService)
		r.Get("/company/{companyID}", h.handleListServices)
		r.Get("/{id}", h.handleGetService)
		r.Put("/{id}", h.handleUpdateService)
		r.Delete("/{id}", h.handleDeleteService)
	})
}

type rawMaterialRequest struct {
	TenantID     uuid.UUID       `json:"tenantId"`
	CompanyID    uuid.UUID       `json:"companyId"`
	Code         string          `json:"code" validate:"omitempty,max=50"`
	Name         string          `json:"name" validate:"omitempty,max=200"`
	UnitType     string          `json:"unitType" validate:"omitempty,max=20"`
	CurrentCost  decimal.Decimal `json:"currentCost"`
	MinimumStock decimal.Decimal `json:"minimumStock"`
	IsActive     *bool           `json:"isActive"`
}

type productRequest struct {
	TenantID    uuid.UUID `json:"tenantId"`
	CompanyID   uuid.UUID `json:"companyId"`
	Code        string    `json:"code" validate:"omitempty,max=50"`
	SKU         string    `json:"sku" validate:"omitempty,max=50"`
	Description string    `json:"description" validate:"omitempty,max=500"`
	UnitType    string    `json:"unitType" validate:"omitempty,max=20"`
	IsActive    *bool     `json:"isActive"`
}

type serviceRequest struct {
	TenantID    uuid.UUID       `json:"tenantId"`
	CompanyID   uuid.UUID       `json:"companyId"`
	Code        string          `json:"code" validate:"omitempty,max=50"`
	Name        string          `json:"name" validate:"omitempty,max=200"`
	CurrentCost decimal.Decimal `json:"currentCost"`
	IsActive    *bool           `json:"isActive"`
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

func (h *Handler) handleCreateRawMaterial(w http.ResponseWriter, r *http.Request) {
	var req rawMaterialRequest
	if !h.decode(w, r, &req) {
		return
	}
	m, err := h.service.CreateRawMaterial(r.Context(), RawMaterialInput{
		TenantID:     req.TenantID,
		CompanyID:    req.CompanyID,
		Code:         req.Code,
		Name:         req.Name,
		UnitType:     req.UnitType,
		CurrentCost:  req.CurrentCost,
		MinimumStock: req.MinimumStock,
		IsActive:     req.IsActive,
	}, shared.ActorFromContext(r.Context()))
	if err != nil {
		h.logger.Error("create raw material", slog.Any("error", err))
		httpx.RespondError(w, err)
		return
	}
	httpx.JSON(w, http.StatusCreated, m)
}

func (h *Handler) handleGetRawMaterial(w http.ResponseWriter, r *http.Request) {
	id, ok := pathID(w, r, "id")
	if !ok {
		return
	}
	m, err := h.service.GetRawMaterial(r.Context(), id)
	if err != nil {
		httpx.RespondError(w, err)
		return
	}
	httpx.JSON(w, http.StatusOK, m)
}

func (h *Handler) handleListRawMaterials(w http.ResponseWriter, r *http.Request) {
	companyID, ok := pathID(w, r, "companyID")
	if !ok {
		return
	}
	materials, err := h.service.ListRawMaterials(r.Context(), companyID, r.URL.Query().Get("active") == "true")
	if err != nil {
		httpx.RespondError(w, err)
		return
	}
	httpx.JSON(w, http.StatusOK, materials)
}

func (h *Handler) handleUpdateRawMaterial(w http.ResponseWriter, r *http.Request) {
	id, ok := pathID(w, r, "id")
	if !ok {
		return
	}
	var req rawMaterialRequest
	if !h.decode(w, r, &req) {
		return
	}
	m, err := h.service.UpdateRawMaterial(r.Context(), id, RawMaterialInput{
		Code:         req.Code,
		Name:         req.Name,
		UnitType:     req.UnitType,
		CurrentCost:  req.CurrentCost,
		MinimumStock: req.MinimumStock,
		IsActive:     req.IsActive,
	}, shared.ActorFromContext(r.Context()))
	if err != nil {
		httpx.RespondError(w, err)
		return
	}
	httpx.JSON(w, http.StatusOK, m)
}

func (h *Handler) handleDeleteRawMaterial(w http.ResponseWriter, r *http.Request) {
	id, ok := pathID(w, r, "id")
	if !ok {
		return
	}
	if err := h.service.DeleteRawMaterial(r.Context(), id, shared.ActorFromContext(r.Context())); err != nil {
		httpx.RespondError(w, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

func (h *Handler) handleCreateProduct(w http.ResponseWriter, r *http.Request) {
	var req productRequest
	if !h.decode(w, r, &req) {
		return
	}
	p, err := h.service.CreateProduct(r.Context(), ProductInput{
		TenantID:    req.TenantID,
		CompanyID:   req.CompanyID,
		Code:        req.Code,
		SKU:         req.SKU,
		Description: req.Description,
		UnitType:    req.UnitType,
		IsActive:    req.IsActive,
	}, shared.ActorFromContext(r.Context()))
	if err != nil {
		h.logger.Error("create product", slog.Any("error", err))
		httpx.RespondError(w, err)
		return
	}
	httpx.JSON(w, http.StatusCreated, p)
}

func (h *Handler) handleGetProduct(w http.ResponseWriter, r *http.Request) {
	id, ok := pathID(w, r, "id")
	if !ok {
		return
	}
	p, err := h.service.GetProduct(r.Context(), id)
	if err != nil {
		httpx.RespondError(w, err)
		return
	}
	httpx.JSON(w, http.StatusOK, p)
}

func (h *Handler) handleListProducts(w http.ResponseWriter, r *http.Request) {
	companyID, ok := pathID(w, r, "companyID")
	if !ok {
		return
	}
	products, err := h.service.ListProducts(r.Context(), companyID, r.URL.Query().Get("active") == "true")
	if err != nil {
		httpx.RespondError(w, err)
		return
	}
	httpx.JSON(w, http.StatusOK, products)
}

func (h *Handler) handleUpdateProduct(w http.ResponseWriter, r *http.Request) {
	id, ok := pathID(w, r, "id")
	if !ok {
		return
	}
	var req productRequest
	if !h.decode(w, r, &req) {
		return
	}
	p, err := h.service.UpdateProduct(r.Context(), id, ProductInput{
		Code:        req.Code,
		SKU:         req.SKU,
		Description: req.Description,
		UnitType:    req.UnitType,
		IsActive:    req.IsActive,
	}, shared.ActorFromContext(r.Context()))
	if err != nil {
		httpx.RespondError(w, err)
		return
	}
	httpx.JSON(w, http.StatusOK, p)
}

func (h *Handler) handleDeleteProduct(w http.ResponseWriter, r *http.Request) {
	id, ok := pathID(w, r, "id")
	if !ok {
		return
	}
	if err := h.service.DeleteProduct(r.Context(), id, shared.ActorFromContext(r.Context())); err != nil {
		httpx.RespondError(w, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

func (h *Handler) handleCreateService(w http.ResponseWriter, r *http.Request) {
	var req serviceRequest
	if !h.decode(w, r, &req) {
		return
	}
	svc, err := h.service.CreateService(r.Context(), ServiceInput{
		TenantID:    req.TenantID,
		CompanyID:   req.CompanyID,
		Code:        req.Code,
		Name:        req.Name,
		CurrentCost: req.CurrentCost,
		IsActive:    req.IsActive,
	}, shared.ActorFromContext(r.Context()))
	if err != nil {
		h.logger.Error("create outsourced service", slog.Any("error", err))
		httpx.RespondError(w, err)
		return
	}
	httpx.JSON(w, http.StatusCreated, svc)
}

func (h *Handler) handleGetService(w http.ResponseWriter, r *http.Request) {
	id, ok := pathID(w, r, "id")
	if !ok {
		return
	}
	svc, err := h.service.GetService(r.Context(), id)
	if err != nil {
		httpx.RespondError(w, err)
		return
	}
	httpx.JSON(w, http.StatusOK, svc)
}

func (h *Handler) handleListServices(w http.ResponseWriter, r *http.Request) {
	companyID, ok := pathID(w, r, "companyID")
	if !ok {
		return
	}
	services, err := h.service.ListServices(r.Context(), companyID, r.URL.Query().Get("active") == "true")
	if err != nil {
		httpx.RespondError(w, err)
		return
	}
	httpx.JSON(w, http.StatusOK, services)
}

func (h *Handler) handleUpdateService(w http.ResponseWriter, r *http.Request) {
	id, ok := pathID(w, r, "id")
	if !ok {
		return
	}
	var req serviceRequest
	if !h.decode(w, r, &req) {
		return
	}
	svc, err := h.service.UpdateService(r.Context(), id, ServiceInput{
		Code:        req.Code,
		Name:        req.Name,
		CurrentCost: req.CurrentCost,
		IsActive:    req.IsActive,
	}, shared.ActorFromContext(r.Context()))
	if err != nil {
		httpx.RespondError(w, err)
		return
	}
	httpx.JSON(w, http.StatusOK, svc)
}

func (h *Handler) handleDeleteService(w http.ResponseWriter, r *http.Request) {
	id, ok := pathID(w, r, "id")
	if !ok {
		return
	}
	if err := h.service.DeleteService(r.Context(), id, shared.ActorFromContext(r.Context())); err != nil {
		httpx.RespondError(w, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}
