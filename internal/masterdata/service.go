package masterdata

import (
	"context"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"

	"github.com/fabriq-erp/fabriq/internal/shared"
)

// RepositoryPort abstracts catalog persistence.
type RepositoryPort interface {
	InsertRawMaterial(ctx context.Context, m RawMaterial) error
	UpdateRawMaterial(ctx context.Context, m RawMaterial) error
	GetRawMaterial(ctx context.Context, id uuid.UUID) (RawMaterial, error)
	ListRawMaterials(ctx context.Context, companyID uuid.UUID, onlyActive bool) ([]RawMaterial, error)

	InsertProduct(ctx context.Context, p Product) error
	UpdateProduct(ctx context.Context, p Product) error
	GetProduct(ctx context.Context, id uuid.UUID) (Product, error)
	ListProducts(ctx context.Context, companyID uuid.UUID, onlyActive bool) ([]Product, error)

	InsertService(ctx context.Context, s OutsourcedService) error
	UpdateService(ctx context.Context, s OutsourcedService) error
	GetService(ctx context.Context, id uuid.UUID) (OutsourcedService, error)
	ListServices(ctx context.Context, companyID uuid.UUID, onlyActive bool) ([]OutsourcedService, error)
}

// AuditPort abstracts audit logging functionality.
type AuditPort interface {
	Record(ctx context.Context, log shared.AuditLog) error
}

// Service maintains the company catalogs.
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

// RawMaterialInput describes a catalog entry create or full update.
type RawMaterialInput struct {
	TenantID     uuid.UUID
	CompanyID    uuid.UUID
	Code         string
	Name         string
	UnitType     string
	CurrentCost  decimal.Decimal
	MinimumStock decimal.Decimal
	IsActive     *bool
}

// ProductInput describes a product create or full update.
type ProductInput struct {
	TenantID    uuid.UUID
	CompanyID   uuid.UUID
	Code        string
	SKU         string
	Description string
	UnitType    string
	IsActive    *bool
}

// ServiceInput describes an outsourced-service create or full update.
type ServiceInput struct {
	TenantID    uuid.UUID
	CompanyID   uuid.UUID
	Code        string
	Name        string
	CurrentCost decimal.Decimal
	IsActive    *bool
}

func (s *Service) CreateRawMaterial(ctx context.Context, input RawMaterialInput, actor string) (RawMaterial, error) {
	if input.Code == "" {
		return RawMaterial{}, ErrCodeRequired
	}
	if input.Name == "" {
		return RawMaterial{}, ErrNameRequired
	}
	if input.CurrentCost.IsNegative() || input.MinimumStock.IsNegative() {
		return RawMaterial{}, ErrInvalidCost
	}
	m := RawMaterial{
		ID:           uuid.New(),
		TenantID:     input.TenantID,
		CompanyID:    input.CompanyID,
		Code:         input.Code,
		Name:         input.Name,
		UnitType:     input.UnitType,
		CurrentCost:  input.CurrentCost,
		MinimumStock: input.MinimumStock,
		IsActive:     activeOrDefault(input.IsActive),
	}
	m.StampCreated(s.clock(), actor)
	if err := s.repo.InsertRawMaterial(ctx, m); err != nil {
		return RawMaterial{}, err
	}
	s.record(ctx, actor, "masterdata:raw_material_create", m.ID)
	return m, nil
}

func (s *Service) UpdateRawMaterial(ctx context.Context, id uuid.UUID, input RawMaterialInput, actor string) (RawMaterial, error) {
	m, err := s.repo.GetRawMaterial(ctx, id)
	if err != nil {
		return RawMaterial{}, err
	}
	if input.Code != "" {
		m.Code = input.Code
	}
	if input.Name != "" {
		m.Name = input.Name
	}
	if input.UnitType != "" {
		m.UnitType = input.UnitType
	}
	if input.CurrentCost.IsNegative() || input.MinimumStock.IsNegative() {
		return RawMaterial{}, ErrInvalidCost
	}
	m.CurrentCost = input.CurrentCost
	m.MinimumStock = input.MinimumStock
	if input.IsActive != nil {
		m.IsActive = *input.IsActive
	}
	m.StampUpdated(s.clock(), actor)
	if err := s.repo.UpdateRawMaterial(ctx, m); err != nil {
		return RawMaterial{}, err
	}
	s.record(ctx, actor, "masterdata:raw_material_update", id)
	return m, nil
}

func (s *Service) DeleteRawMaterial(ctx context.Context, id uuid.UUID, actor string) error {
	m, err := s.repo.GetRawMaterial(ctx, id)
	if err != nil {
		return err
	}
	m.StampDeleted(s.clock(), actor)
	if err := s.repo.UpdateRawMaterial(ctx, m); err != nil {
		return err
	}
	s.record(ctx, actor, "masterdata:raw_material_delete", id)
	return nil
}

func (s *Service) GetRawMaterial(ctx context.Context, id uuid.UUID) (RawMaterial, error) {
	return s.repo.GetRawMaterial(ctx, id)
}

func (s *Service) ListRawMaterials(ctx context.Context, companyID uuid.UUID, onlyActive bool) ([]RawMaterial, error) {
	return s.repo.ListRawMaterials(ctx, companyID, onlyActive)
}

func (s *Service) CreateProduct(ctx context.Context, input ProductInput, actor string) (Product, error) {
	if input.Code == "" {
		return Product{}, ErrCodeRequired
	}
	if input.Description == "" {
		return Product{}, ErrNameRequired
	}
	p := Product{
		ID:          uuid.New(),
		TenantID:    input.TenantID,
		CompanyID:   input.CompanyID,
		Code:        input.Code,
		SKU:         input.SKU,
		Description: input.Description,
		UnitType:    input.UnitType,
		IsActive:    activeOrDefault(input.IsActive),
	}
	p.StampCreated(s.clock(), actor)
	if err := s.repo.InsertProduct(ctx, p); err != nil {
		return Product{}, err
	}
	s.record(ctx, actor, "masterdata:product_create", p.ID)
	return p, nil
}

func (s *Service) UpdateProduct(ctx context.Context, id uuid.UUID, input ProductInput, actor string) (Product, error) {
	p, err := s.repo.GetProduct(ctx, id)
	if err != nil {
		return Product{}, err
	}
	if input.Code != "" {
		p.Code = input.Code
	}
	if input.SKU != "" {
		p.SKU = input.SKU
	}
	if input.Description != "" {
		p.Description = input.Description
	}
	if input.UnitType != "" {
		p.UnitType = input.UnitType
	}
	if input.IsActive != nil {
		p.IsActive = *input.IsActive
	}
	p.StampUpdated(s.clock(), actor)
	if err := s.repo.UpdateProduct(ctx, p); err != nil {
		return Product{}, err
	}
	s.record(ctx, actor, "masterdata:product_update", id)
	return p, nil
}

func (s *Service) DeleteProduct(ctx context.Context, id uuid.UUID, actor string) error {
	p, err := s.repo.GetProduct(ctx, id)
	if err != nil {
		return err
	}
	p.StampDeleted(s.clock(), actor)
	if err := s.repo.UpdateProduct(ctx, p); err != nil {
		return err
	}
	s.record(ctx, actor, "masterdata:product_delete", id)
	return nil
}

func (s *Service) GetProduct(ctx context.Context, id uuid.UUID) (Product, error) {
	return s.repo.GetProduct(ctx, id)
}

func (s *Service) ListProducts(ctx context.Context, companyID uuid.UUID, onlyActive bool) ([]Product, error) {
	return s.repo.ListProducts(ctx, companyID, onlyActive)
}

func (s *Service) CreateService(ctx context.Context, input ServiceInput, actor string) (OutsourcedService, error) {
	if input.Code == "" {
		return OutsourcedService{}, ErrCodeRequired
	}
	if input.Name == "" {
		return OutsourcedService{}, ErrNameRequired
	}
	if input.CurrentCost.IsNegative() {
		return OutsourcedService{}, ErrInvalidCost
	}
	svc := OutsourcedService{
		ID:          uuid.New(),
		TenantID:    input.TenantID,
		CompanyID:   input.CompanyID,
		Code:        input.Code,
		Name:        input.Name,
		CurrentCost: input.CurrentCost,
		IsActive:    activeOrDefault(input.IsActive),
	}
	svc.StampCreated(s.clock(), actor)
	if err := s.repo.InsertService(ctx, svc); err != nil {
		return OutsourcedService{}, err
	}
	s.record(ctx, actor, "masterdata:service_create", svc.ID)
	return svc, nil
}

func (s *Service) UpdateService(ctx context.Context, id uuid.UUID, input ServiceInput, actor string) (OutsourcedService, error) {
	svc, err := s.repo.GetService(ctx, id)
	if err != nil {
		return OutsourcedService{}, err
	}
	if input.Code != "" {
		svc.Code = input.Code
	}
	if input.Name != "" {
		svc.Name = input.Name
	}
	if input.CurrentCost.IsNegative() {
		return OutsourcedService{}, ErrInvalidCost
	}
	svc.CurrentCost = input.CurrentCost
	if input.IsActive != nil {
		svc.IsActive = *input.IsActive
	}
	svc.StampUpdated(s.clock(), actor)
	if err := s.repo.UpdateService(ctx, svc); err != nil {
		return OutsourcedService{}, err
	}
	s.record(ctx, actor, "masterdata:service_update", id)
	return svc, nil
}

func (s *Service) DeleteService(ctx context.Context, id uuid.UUID, actor string) error {
	svc, err := s.repo.GetService(ctx, id)
	if err != nil {
		return err
	}
	svc.StampDeleted(s.clock(), actor)
	if err := s.repo.UpdateService(ctx, svc); err != nil {
		return err
	}
	s.record(ctx, actor, "masterdata:service_delete", id)
	return nil
}

func (s *Service) GetService(ctx context.Context, id uuid.UUID) (OutsourcedService, error) {
	return s.repo.GetService(ctx, id)
}

func (s *Service) ListServices(ctx context.Context, companyID uuid.UUID, onlyActive bool) ([]OutsourcedService, error) {
	return s.repo.ListServices(ctx, companyID, onlyActive)
}

func activeOrDefault(active *bool) bool {
	if active == nil {
		return true
	}
	return *active
}

func (s *Service) record(ctx context.Context, actor, action string, entityID uuid.UUID) {
	if s.audit == nil {
		return
	}
	_ = s.audit.Record(ctx, shared.AuditLog{
		Actor:    actor,
		Action:   action,
		Entity:   "masterdata",
		EntityID: entityID.String(),
		At:       s.clock(),
	})
}
