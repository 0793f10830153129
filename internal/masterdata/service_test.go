package masterdata

import (
	"context"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/require"

	"github.com/fabriq-erp/fabriq/internal/platform/httpx"
	"github.com/fabriq-erp/fabriq/internal/shared"
)

type memoryRepo struct {
	materials map[uuid.UUID]RawMaterial
	products  map[uuid.UUID]Product
	services  map[uuid.UUID]OutsourcedService
}

func newMemoryRepo() *memoryRepo {
	return &memoryRepo{
		materials: map[uuid.UUID]RawMaterial{},
		products:  map[uuid.UUID]Product{},
		services:  map[uuid.UUID]OutsourcedService{},
	}
}

func (m *memoryRepo) InsertRawMaterial(_ context.Context, mat RawMaterial) error {
	for _, existing := range m.materials {
		if existing.CompanyID == mat.CompanyID && existing.Code == mat.Code && !existing.Deleted() {
			return ErrDuplicateCode
		}
	}
	m.materials[mat.ID] = mat
	return nil
}

func (m *memoryRepo) UpdateRawMaterial(_ context.Context, mat RawMaterial) error {
	if _, ok := m.materials[mat.ID]; !ok {
		return ErrRawMaterialNotFound
	}
	m.materials[mat.ID] = mat
	return nil
}

func (m *memoryRepo) GetRawMaterial(_ context.Context, id uuid.UUID) (RawMaterial, error) {
	mat, ok := m.materials[id]
	if !ok || mat.Deleted() {
		return RawMaterial{}, ErrRawMaterialNotFound
	}
	return mat, nil
}

func (m *memoryRepo) ListRawMaterials(_ context.Context, companyID uuid.UUID, onlyActive bool) ([]RawMaterial, error) {
	materials := []RawMaterial{}
	for _, mat := range m.materials {
		if mat.CompanyID != companyID || mat.Deleted() {
			continue
		}
		if onlyActive && !mat.IsActive {
			continue
		}
		materials = append(materials, mat)
	}
	return materials, nil
}

func (m *memoryRepo) InsertProduct(_ context.Context, p Product) error {
	for _, existing := range m.products {
		if existing.CompanyID == p.CompanyID && existing.Code == p.Code && !existing.Deleted() {
			return ErrDuplicateCode
		}
	}
	m.products[p.ID] = p
	return nil
}

func (m *memoryRepo) UpdateProduct(_ context.Context, p Product) error {
	if _, ok := m.products[p.ID]; !ok {
		return ErrProductNotFound
	}
	m.products[p.ID] = p
	return nil
}

func (m *memoryRepo) GetProduct(_ context.Context, id uuid.UUID) (Product, error) {
	p, ok := m.products[id]
	if !ok || p.Deleted() {
		return Product{}, ErrProductNotFound
	}
	return p, nil
}

func (m *memoryRepo) ListProducts(_ context.Context, companyID uuid.UUID, onlyActive bool) ([]Product, error) {
	products := []Product{}
	for _, p := range m.products {
		if p.CompanyID != companyID || p.Deleted() {
			continue
		}
		if onlyActive && !p.IsActive {
			continue
		}
		products = append(products, p)
	}
	return products, nil
}

func (m *memoryRepo) InsertService(_ context.Context, s OutsourcedService) error {
	for _, existing := range m.services {
		if existing.CompanyID == s.CompanyID && existing.Code == s.Code && !existing.Deleted() {
			return ErrDuplicateCode
		}
	}
	m.services[s.ID] = s
	return nil
}

func (m *memoryRepo) UpdateService(_ context.Context, s OutsourcedService) error {
	if _, ok := m.services[s.ID]; !ok {
		return ErrServiceNotFound
	}
	m.services[s.ID] = s
	return nil
}

func (m *memoryRepo) GetService(_ context.Context, id uuid.UUID) (OutsourcedService, error) {
	s, ok := m.services[id]
	if !ok || s.Deleted() {
		return OutsourcedService{}, ErrServiceNotFound
	}
	return s, nil
}

func (m *memoryRepo) ListServices(_ context.Context, companyID uuid.UUID, onlyActive bool) ([]OutsourcedService, error) {
	services := []OutsourcedService{}
	for _, s := range m.services {
		if s.CompanyID != companyID || s.Deleted() {
			continue
		}
		if onlyActive && !s.IsActive {
			continue
		}
		services = append(services, s)
	}
	return services, nil
}

func newTestService() *Service {
	clock := shared.FixedClock(time.Date(2025, 3, 1, 12, 0, 0, 0, time.UTC))
	return NewService(newMemoryRepo(), nil, clock)
}

func TestCreateRawMaterial(t *testing.T) {
	svc := newTestService()
	m, err := svc.CreateRawMaterial(context.Background(), RawMaterialInput{
		TenantID:     uuid.New(),
		CompanyID:    uuid.New(),
		Code:         "MP-001",
		Name:         "Steel plate",
		UnitType:     "KG",
		CurrentCost:  decimal.RequireFromString("12.3456"),
		MinimumStock: decimal.RequireFromString("50"),
	}, "tester")
	require.NoError(t, err)
	require.True(t, m.IsActive)
	require.Equal(t, "tester", m.CreatedBy)
}

func TestCreateRawMaterialValidation(t *testing.T) {
	svc := newTestService()
	_, err := svc.CreateRawMaterial(context.Background(), RawMaterialInput{Name: "no code"}, "tester")
	require.ErrorIs(t, err, ErrCodeRequired)

	_, err = svc.CreateRawMaterial(context.Background(), RawMaterialInput{Code: "X"}, "tester")
	require.ErrorIs(t, err, ErrNameRequired)

	_, err = svc.CreateRawMaterial(context.Background(), RawMaterialInput{
		Code: "X", Name: "Y", CurrentCost: decimal.RequireFromString("-1"),
	}, "tester")
	require.ErrorIs(t, err, ErrInvalidCost)
}

func TestDuplicateCodePerCompany(t *testing.T) {
	svc := newTestService()
	companyID := uuid.New()
	input := RawMaterialInput{TenantID: uuid.New(), CompanyID: companyID, Code: "MP-001", Name: "Steel"}

	_, err := svc.CreateRawMaterial(context.Background(), input, "tester")
	require.NoError(t, err)
	_, err = svc.CreateRawMaterial(context.Background(), input, "tester")
	require.ErrorIs(t, err, ErrDuplicateCode)
	require.ErrorIs(t, err, httpx.ErrDuplicate)

	// Same code in another company is fine.
	input.CompanyID = uuid.New()
	_, err = svc.CreateRawMaterial(context.Background(), input, "tester")
	require.NoError(t, err)
}

func TestDeleteFreesCode(t *testing.T) {
	svc := newTestService()
	companyID := uuid.New()
	input := RawMaterialInput{TenantID: uuid.New(), CompanyID: companyID, Code: "MP-001", Name: "Steel"}

	m, err := svc.CreateRawMaterial(context.Background(), input, "tester")
	require.NoError(t, err)
	require.NoError(t, svc.DeleteRawMaterial(context.Background(), m.ID, "tester"))

	_, err = svc.GetRawMaterial(context.Background(), m.ID)
	require.ErrorIs(t, err, httpx.ErrNotFound)

	_, err = svc.CreateRawMaterial(context.Background(), input, "tester")
	require.NoError(t, err)
}

func TestListOnlyActiveProducts(t *testing.T) {
	svc := newTestService()
	companyID := uuid.New()
	inactive := false

	_, err := svc.CreateProduct(context.Background(), ProductInput{
		CompanyID: companyID, Code: "P-1", Description: "Widget", UnitType: "UN",
	}, "tester")
	require.NoError(t, err)
	_, err = svc.CreateProduct(context.Background(), ProductInput{
		CompanyID: companyID, Code: "P-2", Description: "Legacy widget", UnitType: "UN", IsActive: &inactive,
	}, "tester")
	require.NoError(t, err)

	all, err := svc.ListProducts(context.Background(), companyID, false)
	require.NoError(t, err)
	require.Len(t, all, 2)

	active, err := svc.ListProducts(context.Background(), companyID, true)
	require.NoError(t, err)
	require.Len(t, active, 1)
	require.Equal(t, "P-1", active[0].Code)
}

func TestUpdateOutsourcedService(t *testing.T) {
	svc := newTestService()
	created, err := svc.CreateService(context.Background(), ServiceInput{
		CompanyID: uuid.New(), Code: "SV-1", Name: "Plating", CurrentCost: decimal.RequireFromString("9.99"),
	}, "tester")
	require.NoError(t, err)

	updated, err := svc.UpdateService(context.Background(), created.ID, ServiceInput{
		Name: "Zinc plating", CurrentCost: decimal.RequireFromString("11.50"),
	}, "editor")
	require.NoError(t, err)
	require.Equal(t, "Zinc plating", updated.Name)
	require.Equal(t, "SV-1", updated.Code)
	require.Equal(t, "editor", updated.UpdatedBy)
	require.True(t, decimal.RequireFromString("11.50").Equal(updated.CurrentCost))
}
