package bom

import (
	"context"
	"sort"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/require"

	"github.com/fabriq-erp/fabriq/internal/platform/httpx"
	"github.com/fabriq-erp/fabriq/internal/shared"
)

type memoryRepo struct {
	compositions map[uuid.UUID]Composition
	items        map[uuid.UUID]Item
}

func newMemoryRepo() *memoryRepo {
	return &memoryRepo{
		compositions: map[uuid.UUID]Composition{},
		items:        map[uuid.UUID]Item{},
	}
}

func (m *memoryRepo) WithTx(ctx context.Context, fn func(context.Context, TxRepository) error) error {
	return fn(ctx, (*memoryTx)(m))
}

func (m *memoryRepo) GetComposition(_ context.Context, id uuid.UUID) (Composition, error) {
	comp, ok := m.compositions[id]
	if !ok || comp.Deleted() {
		return Composition{}, ErrCompositionNotFound
	}
	return comp, nil
}

func (m *memoryRepo) ListByCompany(_ context.Context, companyID uuid.UUID, onlyActive bool) ([]Composition, error) {
	comps := []Composition{}
	for _, comp := range m.compositions {
		if comp.CompanyID != companyID || comp.Deleted() {
			continue
		}
		if onlyActive && !comp.IsActive {
			continue
		}
		comps = append(comps, comp)
	}
	sort.Slice(comps, func(i, j int) bool { return comps[i].Name < comps[j].Name })
	return comps, nil
}

func (m *memoryRepo) ListByProduct(_ context.Context, productID uuid.UUID) ([]Composition, error) {
	comps := []Composition{}
	for _, comp := range m.compositions {
		if comp.ProductID == productID && !comp.Deleted() {
			comps = append(comps, comp)
		}
	}
	sort.Slice(comps, func(i, j int) bool { return comps[i].Version > comps[j].Version })
	return comps, nil
}

func (m *memoryRepo) GetItem(_ context.Context, id uuid.UUID) (Item, error) {
	item, ok := m.items[id]
	if !ok || item.Deleted() {
		return Item{}, ErrItemNotFound
	}
	return item, nil
}

func (m *memoryRepo) ListItems(_ context.Context, compositionID uuid.UUID) ([]Item, error) {
	items := []Item{}
	for _, item := range m.items {
		if item.CompositionID == compositionID && !item.Deleted() {
			items = append(items, item)
		}
	}
	sort.Slice(items, func(i, j int) bool { return items[i].Sequence < items[j].Sequence })
	return items, nil
}

type memoryTx memoryRepo

func (m *memoryTx) GetCompositionForUpdate(ctx context.Context, id uuid.UUID) (Composition, error) {
	return (*memoryRepo)(m).GetComposition(ctx, id)
}

func (m *memoryTx) InsertComposition(_ context.Context, c Composition) error {
	for _, existing := range m.compositions {
		if existing.ProductID == c.ProductID && existing.Version == c.Version && !existing.Deleted() {
			return ErrDuplicateVersion
		}
	}
	m.compositions[c.ID] = c
	return nil
}

func (m *memoryTx) UpdateComposition(_ context.Context, c Composition) error {
	if _, ok := m.compositions[c.ID]; !ok {
		return ErrCompositionNotFound
	}
	m.compositions[c.ID] = c
	return nil
}

func (m *memoryTx) GetItemForUpdate(ctx context.Context, id uuid.UUID) (Item, error) {
	return (*memoryRepo)(m).GetItem(ctx, id)
}

func (m *memoryTx) InsertItem(_ context.Context, item Item) error {
	m.items[item.ID] = item
	return nil
}

func (m *memoryTx) UpdateItem(_ context.Context, item Item) error {
	if _, ok := m.items[item.ID]; !ok {
		return ErrItemNotFound
	}
	m.items[item.ID] = item
	return nil
}

func (m *memoryTx) ListItems(ctx context.Context, compositionID uuid.UUID) ([]Item, error) {
	return (*memoryRepo)(m).ListItems(ctx, compositionID)
}

func newTestService(repo *memoryRepo) *Service {
	clock := shared.FixedClock(time.Date(2025, 3, 1, 12, 0, 0, 0, time.UTC))
	return NewService(repo, nil, nil, clock)
}

func seedComposition(t *testing.T, svc *Service) Composition {
	t.Helper()
	comp, err := svc.CreateComposition(context.Background(), CreateCompositionInput{
		TenantID:  uuid.New(),
		CompanyID: uuid.New(),
		ProductID: uuid.New(),
		Name:      "Widget v1",
	}, "tester")
	require.NoError(t, err)
	return comp
}

func TestCreateCompositionDefaults(t *testing.T) {
	svc := newTestService(newMemoryRepo())
	comp := seedComposition(t, svc)
	require.Equal(t, 1, comp.Version)
	require.True(t, comp.IsActive)
	require.True(t, comp.TotalCost.IsZero())
	require.Equal(t, "tester", comp.CreatedBy)
}

func TestCreateCompositionRequiresName(t *testing.T) {
	svc := newTestService(newMemoryRepo())
	_, err := svc.CreateComposition(context.Background(), CreateCompositionInput{
		TenantID:  uuid.New(),
		CompanyID: uuid.New(),
		ProductID: uuid.New(),
	}, "tester")
	require.ErrorIs(t, err, httpx.ErrValidation)
}

func TestCreateCompositionDuplicateVersion(t *testing.T) {
	svc := newTestService(newMemoryRepo())
	comp := seedComposition(t, svc)
	_, err := svc.CreateComposition(context.Background(), CreateCompositionInput{
		TenantID:  comp.TenantID,
		CompanyID: comp.CompanyID,
		ProductID: comp.ProductID,
		Name:      "Widget v1 again",
		Version:   1,
	}, "tester")
	require.ErrorIs(t, err, ErrDuplicateVersion)
	require.ErrorIs(t, err, httpx.ErrDuplicate)
}

func TestCreateItemRefreshesCompositionTotal(t *testing.T) {
	repo := newMemoryRepo()
	svc := newTestService(repo)
	comp := seedComposition(t, svc)

	item, err := svc.CreateItem(context.Background(), CreateItemInput{
		TenantID:       comp.TenantID,
		CompanyID:      comp.CompanyID,
		CompositionID:  comp.ID,
		ItemType:       ItemTypeRawMaterial,
		ReferenceID:    uuid.New(),
		UnitType:       "KG",
		Quantity:       dec(t, "10"),
		LossPercentage: dec(t, "5"),
		UnitCost:       ndec(t, "2.00"),
	}, "tester")
	require.NoError(t, err)
	require.True(t, item.TotalCost.Valid)
	require.True(t, dec(t, "21.0000").Equal(item.TotalCost.Decimal))

	stored, err := svc.GetComposition(context.Background(), comp.ID)
	require.NoError(t, err)
	require.True(t, dec(t, "21.0000").Equal(stored.TotalCost))
}

func TestCreateItemWithoutUnitCost(t *testing.T) {
	repo := newMemoryRepo()
	svc := newTestService(repo)
	comp := seedComposition(t, svc)

	item, err := svc.CreateItem(context.Background(), CreateItemInput{
		TenantID:      comp.TenantID,
		CompanyID:     comp.CompanyID,
		CompositionID: comp.ID,
		ItemType:      ItemTypeService,
		ReferenceID:   uuid.New(),
		UnitType:      "UN",
		Quantity:      dec(t, "3"),
	}, "tester")
	require.NoError(t, err)
	require.False(t, item.TotalCost.Valid)

	stored, err := svc.GetComposition(context.Background(), comp.ID)
	require.NoError(t, err)
	require.True(t, stored.TotalCost.IsZero())
}

func TestCreateItemValidation(t *testing.T) {
	svc := newTestService(newMemoryRepo())
	comp := seedComposition(t, svc)

	base := CreateItemInput{
		TenantID:      comp.TenantID,
		CompanyID:     comp.CompanyID,
		CompositionID: comp.ID,
		ItemType:      ItemTypeRawMaterial,
		ReferenceID:   uuid.New(),
		UnitType:      "KG",
		Quantity:      dec(t, "1"),
	}

	bad := base
	bad.Quantity = dec(t, "0")
	_, err := svc.CreateItem(context.Background(), bad, "tester")
	require.ErrorIs(t, err, ErrInvalidQuantity)

	bad = base
	bad.LossPercentage = dec(t, "101")
	_, err = svc.CreateItem(context.Background(), bad, "tester")
	require.ErrorIs(t, err, ErrInvalidLoss)

	bad = base
	bad.UnitCost = ndec(t, "-0.01")
	_, err = svc.CreateItem(context.Background(), bad, "tester")
	require.ErrorIs(t, err, ErrInvalidUnitCost)

	bad = base
	bad.ItemType = ItemType("PACKAGING")
	_, err = svc.CreateItem(context.Background(), bad, "tester")
	require.ErrorIs(t, err, ErrInvalidItemType)
}

func TestCreateItemUnknownComposition(t *testing.T) {
	svc := newTestService(newMemoryRepo())
	_, err := svc.CreateItem(context.Background(), CreateItemInput{
		TenantID:      uuid.New(),
		CompanyID:     uuid.New(),
		CompositionID: uuid.New(),
		ItemType:      ItemTypeRawMaterial,
		ReferenceID:   uuid.New(),
		UnitType:      "KG",
		Quantity:      dec(t, "1"),
	}, "tester")
	require.ErrorIs(t, err, httpx.ErrNotFound)
}

func TestUpdateItemRefreshesTotal(t *testing.T) {
	repo := newMemoryRepo()
	svc := newTestService(repo)
	comp := seedComposition(t, svc)

	item, err := svc.CreateItem(context.Background(), CreateItemInput{
		TenantID:      comp.TenantID,
		CompanyID:     comp.CompanyID,
		CompositionID: comp.ID,
		ItemType:      ItemTypeRawMaterial,
		ReferenceID:   uuid.New(),
		UnitType:      "KG",
		Quantity:      dec(t, "2"),
		UnitCost:      ndec(t, "3.00"),
	}, "tester")
	require.NoError(t, err)

	cost := ndec(t, "5.00")
	updated, err := svc.UpdateItem(context.Background(), item.ID, UpdateItemInput{UnitCost: &cost}, "tester")
	require.NoError(t, err)
	require.True(t, dec(t, "10.0000").Equal(updated.TotalCost.Decimal))

	stored, err := svc.GetComposition(context.Background(), comp.ID)
	require.NoError(t, err)
	require.True(t, dec(t, "10.0000").Equal(stored.TotalCost))
}

func TestDeleteItemRemovesFromTotal(t *testing.T) {
	repo := newMemoryRepo()
	svc := newTestService(repo)
	comp := seedComposition(t, svc)

	first, err := svc.CreateItem(context.Background(), CreateItemInput{
		TenantID:      comp.TenantID,
		CompanyID:     comp.CompanyID,
		CompositionID: comp.ID,
		ItemType:      ItemTypeRawMaterial,
		ReferenceID:   uuid.New(),
		UnitType:      "KG",
		Quantity:      dec(t, "1"),
		UnitCost:      ndec(t, "21.0000"),
	}, "tester")
	require.NoError(t, err)

	_, err = svc.CreateItem(context.Background(), CreateItemInput{
		TenantID:      comp.TenantID,
		CompanyID:     comp.CompanyID,
		CompositionID: comp.ID,
		ItemType:      ItemTypeService,
		ReferenceID:   uuid.New(),
		UnitType:      "UN",
		Quantity:      dec(t, "1"),
		UnitCost:      ndec(t, "5.5000"),
		Sequence:      2,
	}, "tester")
	require.NoError(t, err)

	stored, err := svc.GetComposition(context.Background(), comp.ID)
	require.NoError(t, err)
	require.True(t, dec(t, "26.5000").Equal(stored.TotalCost))

	require.NoError(t, svc.DeleteItem(context.Background(), first.ID, "tester"))

	stored, err = svc.GetComposition(context.Background(), comp.ID)
	require.NoError(t, err)
	require.True(t, dec(t, "5.5000").Equal(stored.TotalCost))

	_, err = svc.GetItem(context.Background(), first.ID)
	require.ErrorIs(t, err, httpx.ErrNotFound)
}

func TestRecalculateTotalIdempotent(t *testing.T) {
	repo := newMemoryRepo()
	svc := newTestService(repo)
	comp := seedComposition(t, svc)

	_, err := svc.CreateItem(context.Background(), CreateItemInput{
		TenantID:       comp.TenantID,
		CompanyID:      comp.CompanyID,
		CompositionID:  comp.ID,
		ItemType:       ItemTypeRawMaterial,
		ReferenceID:    uuid.New(),
		UnitType:       "KG",
		Quantity:       dec(t, "10"),
		LossPercentage: dec(t, "5"),
		UnitCost:       ndec(t, "2.00"),
	}, "tester")
	require.NoError(t, err)

	first, err := svc.RecalculateTotal(context.Background(), comp.ID, "tester")
	require.NoError(t, err)
	second, err := svc.RecalculateTotal(context.Background(), comp.ID, "tester")
	require.NoError(t, err)
	require.True(t, first.Equal(second))
	require.True(t, dec(t, "21.0000").Equal(second))
}

func TestApproveComposition(t *testing.T) {
	svc := newTestService(newMemoryRepo())
	comp := seedComposition(t, svc)
	require.False(t, comp.Approved())

	approved, err := svc.ApproveComposition(context.Background(), comp.ID, "supervisor")
	require.NoError(t, err)
	require.True(t, approved.Approved())
	require.Equal(t, "supervisor", approved.ApprovedBy)
	require.NotNil(t, approved.ApprovedAt)
}

func TestDeleteCompositionTombstonesItems(t *testing.T) {
	repo := newMemoryRepo()
	svc := newTestService(repo)
	comp := seedComposition(t, svc)

	item, err := svc.CreateItem(context.Background(), CreateItemInput{
		TenantID:      comp.TenantID,
		CompanyID:     comp.CompanyID,
		CompositionID: comp.ID,
		ItemType:      ItemTypeRawMaterial,
		ReferenceID:   uuid.New(),
		UnitType:      "KG",
		Quantity:      dec(t, "1"),
	}, "tester")
	require.NoError(t, err)

	require.NoError(t, svc.DeleteComposition(context.Background(), comp.ID, "tester"))

	_, err = svc.GetComposition(context.Background(), comp.ID)
	require.ErrorIs(t, err, httpx.ErrNotFound)
	_, err = svc.GetItem(context.Background(), item.ID)
	require.ErrorIs(t, err, httpx.ErrNotFound)
}

func TestCostSummaryWithoutCache(t *testing.T) {
	repo := newMemoryRepo()
	svc := newTestService(repo)
	comp := seedComposition(t, svc)

	_, err := svc.CreateItem(context.Background(), CreateItemInput{
		TenantID:       comp.TenantID,
		CompanyID:      comp.CompanyID,
		CompositionID:  comp.ID,
		ItemType:       ItemTypeRawMaterial,
		ReferenceID:    uuid.New(),
		UnitType:       "KG",
		Quantity:       dec(t, "10"),
		LossPercentage: dec(t, "5"),
		UnitCost:       ndec(t, "2.00"),
	}, "tester")
	require.NoError(t, err)
	_, err = svc.CreateItem(context.Background(), CreateItemInput{
		TenantID:      comp.TenantID,
		CompanyID:     comp.CompanyID,
		CompositionID: comp.ID,
		ItemType:      ItemTypeService,
		ReferenceID:   uuid.New(),
		UnitType:      "UN",
		Quantity:      dec(t, "1"),
		Sequence:      2,
	}, "tester")
	require.NoError(t, err)

	summary, err := svc.CostSummary(context.Background(), comp.ID)
	require.NoError(t, err)
	require.Equal(t, 2, summary.TotalItems)
	require.True(t, dec(t, "21.0000").Equal(summary.TotalCost))

	_, err = svc.CostSummary(context.Background(), uuid.New())
	require.ErrorIs(t, err, httpx.ErrNotFound)
}
