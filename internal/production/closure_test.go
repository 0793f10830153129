package production

import (
	"context"
	"testing"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/require"

	"github.com/fabriq-erp/fabriq/internal/platform/httpx"
)

func TestCreateClosureSumsBuckets(t *testing.T) {
	svc := newTestService(newMemoryRepo())
	order := seedOrder(t, svc)

	material := dec(t, "100.50")
	labor := dec(t, "30.00")
	closure, err := svc.CreateClosure(context.Background(), CreateClosureInput{
		TenantID:      order.TenantID,
		CompanyID:     order.CompanyID,
		OrderID:       order.ID,
		TotalMaterial: &material,
		TotalLabor:    &labor,
	}, "closer")
	require.NoError(t, err)

	require.True(t, dec(t, "130.50").Equal(closure.TotalCost))
	require.True(t, closure.TotalService.IsZero())
	require.True(t, closure.TotalIndirect.IsZero())
	require.Equal(t, "closer", closure.ClosedBy)
	require.True(t, closure.ClosedAt.Equal(testNow))
	require.False(t, closure.ExportedToFinancial)
}

func TestCreateClosureOncePerOrder(t *testing.T) {
	svc := newTestService(newMemoryRepo())
	order := seedOrder(t, svc)

	input := CreateClosureInput{
		TenantID:  order.TenantID,
		CompanyID: order.CompanyID,
		OrderID:   order.ID,
	}
	_, err := svc.CreateClosure(context.Background(), input, "closer")
	require.NoError(t, err)

	_, err = svc.CreateClosure(context.Background(), input, "closer")
	require.ErrorIs(t, err, ErrClosureExists)
	require.ErrorIs(t, err, httpx.ErrDuplicate)
}

func TestCreateClosureUnknownOrder(t *testing.T) {
	svc := newTestService(newMemoryRepo())
	_, err := svc.CreateClosure(context.Background(), CreateClosureInput{
		OrderID: uuid.New(),
	}, "closer")
	require.ErrorIs(t, err, httpx.ErrNotFound)
}

func TestCloseFromLedger(t *testing.T) {
	svc := newTestService(newMemoryRepo())
	order := seedOrder(t, svc)

	for _, entry := range []struct {
		costType CostType
		total    string
	}{
		{CostMaterial, "120.00"},
		{CostMaterial, "30.00"},
		{CostService, "45.50"},
		{CostLabor, "80.00"},
	} {
		total := decimal.RequireFromString(entry.total)
		_, err := svc.AddCost(context.Background(), AddCostInput{
			TenantID:  order.TenantID,
			CompanyID: order.CompanyID,
			OrderID:   order.ID,
			CostType:  entry.costType,
			Quantity:  dec(t, "1"),
			UnitCost:  dec(t, "1"),
			TotalCost: &total,
		}, "tester")
		require.NoError(t, err)
	}

	closure, err := svc.CloseFromLedger(context.Background(), order.TenantID, order.CompanyID, order.ID, "", "closer")
	require.NoError(t, err)
	require.True(t, dec(t, "150.00").Equal(closure.TotalMaterial))
	require.True(t, dec(t, "45.50").Equal(closure.TotalService))
	require.True(t, dec(t, "80.00").Equal(closure.TotalLabor))
	require.True(t, closure.TotalIndirect.IsZero())
	require.True(t, dec(t, "275.50").Equal(closure.TotalCost))
}

func TestExportToFinancialAtMostOnce(t *testing.T) {
	svc := newTestService(newMemoryRepo())
	order := seedOrder(t, svc)

	closure, err := svc.CreateClosure(context.Background(), CreateClosureInput{
		TenantID:  order.TenantID,
		CompanyID: order.CompanyID,
		OrderID:   order.ID,
	}, "closer")
	require.NoError(t, err)

	exported, err := svc.ExportToFinancial(context.Background(), closure.ID, "FIN-001", "exporter")
	require.NoError(t, err)
	require.True(t, exported.ExportedToFinancial)
	require.Equal(t, "FIN-001", exported.FinancialDocumentID)
	require.NotNil(t, exported.FinancialExportDate)

	_, err = svc.ExportToFinancial(context.Background(), closure.ID, "FIN-002", "exporter")
	require.ErrorIs(t, err, ErrAlreadyExported)
	require.ErrorIs(t, err, httpx.ErrIllegalState)

	// The first export's document id sticks.
	stored, err := svc.GetClosure(context.Background(), closure.ID)
	require.NoError(t, err)
	require.Equal(t, "FIN-001", stored.FinancialDocumentID)
}
