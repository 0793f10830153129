package procurement

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

var testNow = time.Date(2025, 3, 1, 12, 0, 0, 0, time.UTC)

func dec(t *testing.T, s string) decimal.Decimal {
	t.Helper()
	d, err := decimal.NewFromString(s)
	require.NoError(t, err)
	return d
}

type memoryRepo struct {
	docs  map[uuid.UUID]BuyService
	items map[uuid.UUID]Item
}

func newMemoryRepo() *memoryRepo {
	return &memoryRepo{
		docs:  map[uuid.UUID]BuyService{},
		items: map[uuid.UUID]Item{},
	}
}

type memoryTx memoryRepo

func (m *memoryRepo) WithTx(ctx context.Context, fn func(context.Context, TxRepository) error) error {
	return fn(ctx, (*memoryTx)(m))
}

func (m *memoryRepo) GetBuyService(_ context.Context, id uuid.UUID) (BuyService, error) {
	doc, ok := m.docs[id]
	if !ok || doc.Deleted() {
		return BuyService{}, ErrBuyServiceNotFound
	}
	return doc, nil
}

func (m *memoryRepo) ListByCompany(_ context.Context, companyID uuid.UUID, status Status) ([]BuyService, error) {
	docs := []BuyService{}
	for _, doc := range m.docs {
		if doc.CompanyID != companyID || doc.Deleted() {
			continue
		}
		if status != "" && doc.Status != status {
			continue
		}
		docs = append(docs, doc)
	}
	return docs, nil
}

func (m *memoryRepo) GetItem(_ context.Context, id uuid.UUID) (Item, error) {
	item, ok := m.items[id]
	if !ok || item.Deleted() {
		return Item{}, ErrItemNotFound
	}
	return item, nil
}

func (m *memoryRepo) ListItems(_ context.Context, buyServiceID uuid.UUID) ([]Item, error) {
	items := []Item{}
	for _, item := range m.items {
		if item.BuyServiceID == buyServiceID && !item.Deleted() {
			items = append(items, item)
		}
	}
	return items, nil
}

func (m *memoryTx) GetBuyServiceForUpdate(ctx context.Context, id uuid.UUID) (BuyService, error) {
	return (*memoryRepo)(m).GetBuyService(ctx, id)
}

func (m *memoryTx) InsertBuyService(_ context.Context, b BuyService) error {
	for _, existing := range m.docs {
		if existing.CompanyID == b.CompanyID && existing.Code == b.Code && !existing.Deleted() {
			return ErrDuplicateCode
		}
	}
	m.docs[b.ID] = b
	return nil
}

func (m *memoryTx) UpdateBuyService(_ context.Context, b BuyService) error {
	if _, ok := m.docs[b.ID]; !ok {
		return ErrBuyServiceNotFound
	}
	m.docs[b.ID] = b
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

func (m *memoryTx) ListItems(ctx context.Context, buyServiceID uuid.UUID) ([]Item, error) {
	return (*memoryRepo)(m).ListItems(ctx, buyServiceID)
}

func newTestService(repo *memoryRepo) *Service {
	return NewService(repo, nil, shared.FixedClock(testNow))
}

func seedDoc(t *testing.T, svc *Service) BuyService {
	t.Helper()
	doc, err := svc.Create(context.Background(), CreateInput{
		TenantID:  uuid.New(),
		CompanyID: uuid.New(),
		Code:      "BS-2025-001",
	}, "tester")
	require.NoError(t, err)
	return doc
}

func TestCreateBuyServiceDefaults(t *testing.T) {
	svc := newTestService(newMemoryRepo())
	doc := seedDoc(t, svc)

	require.Equal(t, StatusOpen, doc.Status)
	require.True(t, doc.TotalAmount.IsZero())
	require.Equal(t, "tester", doc.CreatedBy)
}

func TestCreateBuyServiceRequiresCode(t *testing.T) {
	svc := newTestService(newMemoryRepo())
	_, err := svc.Create(context.Background(), CreateInput{
		TenantID:  uuid.New(),
		CompanyID: uuid.New(),
	}, "tester")
	require.ErrorIs(t, err, ErrCodeRequired)
	require.ErrorIs(t, err, httpx.ErrValidation)
}

func TestCreateBuyServiceDuplicateCode(t *testing.T) {
	svc := newTestService(newMemoryRepo())
	doc := seedDoc(t, svc)

	_, err := svc.Create(context.Background(), CreateInput{
		TenantID:  doc.TenantID,
		CompanyID: doc.CompanyID,
		Code:      doc.Code,
	}, "tester")
	require.ErrorIs(t, err, ErrDuplicateCode)
	require.ErrorIs(t, err, httpx.ErrDuplicate)
}

func TestAddItemRefreshesTotal(t *testing.T) {
	repo := newMemoryRepo()
	svc := newTestService(repo)
	doc := seedDoc(t, svc)

	item, err := svc.AddItem(context.Background(), ItemInput{
		TenantID:     doc.TenantID,
		CompanyID:    doc.CompanyID,
		BuyServiceID: doc.ID,
		ServiceID:    uuid.New(),
		Quantity:     dec(t, "3"),
		UnitCost:     dec(t, "12.505"),
	}, "tester")
	require.NoError(t, err)
	require.True(t, dec(t, "37.52").Equal(item.TotalCost))

	stored, err := svc.Get(context.Background(), doc.ID)
	require.NoError(t, err)
	require.True(t, dec(t, "37.52").Equal(stored.TotalAmount))
}

func TestItemValidation(t *testing.T) {
	svc := newTestService(newMemoryRepo())
	doc := seedDoc(t, svc)

	_, err := svc.AddItem(context.Background(), ItemInput{
		BuyServiceID: doc.ID,
		Quantity:     dec(t, "0"),
		UnitCost:     dec(t, "1"),
	}, "tester")
	require.ErrorIs(t, err, ErrInvalidQuantity)

	_, err = svc.AddItem(context.Background(), ItemInput{
		BuyServiceID: doc.ID,
		Quantity:     dec(t, "1"),
		UnitCost:     dec(t, "-0.01"),
	}, "tester")
	require.ErrorIs(t, err, ErrInvalidUnitCost)
}

func TestUpdateItemRefreshesTotal(t *testing.T) {
	svc := newTestService(newMemoryRepo())
	doc := seedDoc(t, svc)

	item, err := svc.AddItem(context.Background(), ItemInput{
		TenantID:     doc.TenantID,
		CompanyID:    doc.CompanyID,
		BuyServiceID: doc.ID,
		ServiceID:    uuid.New(),
		Quantity:     dec(t, "2"),
		UnitCost:     dec(t, "10.00"),
	}, "tester")
	require.NoError(t, err)

	quantity := dec(t, "5")
	updated, err := svc.UpdateItem(context.Background(), item.ID, UpdateItemInput{
		Quantity: &quantity,
	}, "tester")
	require.NoError(t, err)
	require.True(t, dec(t, "50.00").Equal(updated.TotalCost))

	stored, err := svc.Get(context.Background(), doc.ID)
	require.NoError(t, err)
	require.True(t, dec(t, "50.00").Equal(stored.TotalAmount))
}

func TestDeleteItemRefreshesTotal(t *testing.T) {
	svc := newTestService(newMemoryRepo())
	doc := seedDoc(t, svc)

	keep, err := svc.AddItem(context.Background(), ItemInput{
		TenantID:     doc.TenantID,
		CompanyID:    doc.CompanyID,
		BuyServiceID: doc.ID,
		ServiceID:    uuid.New(),
		Quantity:     dec(t, "1"),
		UnitCost:     dec(t, "5.50"),
	}, "tester")
	require.NoError(t, err)
	drop, err := svc.AddItem(context.Background(), ItemInput{
		TenantID:     doc.TenantID,
		CompanyID:    doc.CompanyID,
		BuyServiceID: doc.ID,
		ServiceID:    uuid.New(),
		Quantity:     dec(t, "4"),
		UnitCost:     dec(t, "2.00"),
	}, "tester")
	require.NoError(t, err)

	require.NoError(t, svc.DeleteItem(context.Background(), drop.ID, "tester"))

	stored, err := svc.Get(context.Background(), doc.ID)
	require.NoError(t, err)
	require.True(t, dec(t, "5.50").Equal(stored.TotalAmount))

	_, err = svc.GetItem(context.Background(), drop.ID)
	require.ErrorIs(t, err, ErrItemNotFound)
	_, err = svc.GetItem(context.Background(), keep.ID)
	require.NoError(t, err)
}

func TestApproveOnlyFromOpen(t *testing.T) {
	svc := newTestService(newMemoryRepo())
	doc := seedDoc(t, svc)

	approved, err := svc.Approve(context.Background(), doc.ID, "supervisor")
	require.NoError(t, err)
	require.Equal(t, StatusApproved, approved.Status)
	require.Equal(t, "supervisor", approved.ApprovedBy)
	require.True(t, approved.ApprovedAt.Equal(testNow))

	_, err = svc.Approve(context.Background(), doc.ID, "supervisor")
	require.ErrorIs(t, err, httpx.ErrIllegalState)
}

func TestCloseIsFinal(t *testing.T) {
	svc := newTestService(newMemoryRepo())
	doc := seedDoc(t, svc)

	closed, err := svc.Close(context.Background(), doc.ID, "closer")
	require.NoError(t, err)
	require.Equal(t, StatusClosed, closed.Status)
	require.Equal(t, "closer", closed.ClosedBy)

	_, err = svc.Close(context.Background(), doc.ID, "closer")
	require.ErrorIs(t, err, ErrAlreadyClosed)
	require.ErrorIs(t, err, httpx.ErrIllegalState)
}

func TestClosedDocumentRejectsMutations(t *testing.T) {
	svc := newTestService(newMemoryRepo())
	doc := seedDoc(t, svc)

	item, err := svc.AddItem(context.Background(), ItemInput{
		TenantID:     doc.TenantID,
		CompanyID:    doc.CompanyID,
		BuyServiceID: doc.ID,
		ServiceID:    uuid.New(),
		Quantity:     dec(t, "1"),
		UnitCost:     dec(t, "9.99"),
	}, "tester")
	require.NoError(t, err)

	_, err = svc.Close(context.Background(), doc.ID, "closer")
	require.NoError(t, err)

	_, err = svc.AddItem(context.Background(), ItemInput{
		TenantID:     doc.TenantID,
		CompanyID:    doc.CompanyID,
		BuyServiceID: doc.ID,
		ServiceID:    uuid.New(),
		Quantity:     dec(t, "1"),
		UnitCost:     dec(t, "1.00"),
	}, "tester")
	require.ErrorIs(t, err, ErrDocumentClosed)

	quantity := dec(t, "2")
	_, err = svc.UpdateItem(context.Background(), item.ID, UpdateItemInput{Quantity: &quantity}, "tester")
	require.ErrorIs(t, err, ErrDocumentClosed)

	err = svc.DeleteItem(context.Background(), item.ID, "tester")
	require.ErrorIs(t, err, ErrDocumentClosed)

	err = svc.Delete(context.Background(), doc.ID, "tester")
	require.ErrorIs(t, err, ErrDocumentClosed)
}

func TestListByCompanyFiltersStatus(t *testing.T) {
	svc := newTestService(newMemoryRepo())
	doc := seedDoc(t, svc)

	second, err := svc.Create(context.Background(), CreateInput{
		TenantID:  doc.TenantID,
		CompanyID: doc.CompanyID,
		Code:      "BS-2025-002",
	}, "tester")
	require.NoError(t, err)
	_, err = svc.Approve(context.Background(), second.ID, "supervisor")
	require.NoError(t, err)

	open, err := svc.ListByCompany(context.Background(), doc.CompanyID, StatusOpen)
	require.NoError(t, err)
	require.Len(t, open, 1)
	require.Equal(t, doc.ID, open[0].ID)

	all, err := svc.ListByCompany(context.Background(), doc.CompanyID, "")
	require.NoError(t, err)
	require.Len(t, all, 2)
}
