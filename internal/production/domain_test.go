package production

import (
	"testing"
	"time"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/require"

	"github.com/fabriq-erp/fabriq/internal/platform/httpx"
)

func dec(t *testing.T, s string) decimal.Decimal {
	t.Helper()
	d, err := decimal.NewFromString(s)
	require.NoError(t, err)
	return d
}

var testNow = time.Date(2025, 3, 1, 12, 0, 0, 0, time.UTC)

func TestOrderStartOnlyFromPlanned(t *testing.T) {
	for _, status := range []Status{StatusInProgress, StatusFinished, StatusCanceled} {
		order := Order{Status: status}
		err := order.Start(testNow, "tester")
		require.ErrorIs(t, err, httpx.ErrIllegalState, "start from %s", status)
	}

	order := Order{Status: StatusPlanned}
	require.NoError(t, order.Start(testNow, "tester"))
	require.Equal(t, StatusInProgress, order.Status)
	require.NotNil(t, order.StartDate)
}

func TestOrderFinishOnlyFromInProgress(t *testing.T) {
	for _, status := range []Status{StatusPlanned, StatusFinished, StatusCanceled} {
		order := Order{Status: status}
		err := order.Finish(dec(t, "10"), testNow, "tester")
		require.ErrorIs(t, err, httpx.ErrIllegalState, "finish from %s", status)
	}

	order := Order{Status: StatusInProgress}
	require.NoError(t, order.Finish(dec(t, "95"), testNow, "tester"))
	require.Equal(t, StatusFinished, order.Status)
	require.True(t, dec(t, "95").Equal(order.QuantityProduced))
	require.Equal(t, "tester", order.FinishedBy)
	require.NotNil(t, order.EndDate)
}

func TestOrderStartKeepsPlannedStartDate(t *testing.T) {
	planned := testNow.AddDate(0, 0, 2)
	order := Order{Status: StatusPlanned, StartDate: &planned}
	require.NoError(t, order.Start(testNow, "tester"))
	require.True(t, order.StartDate.Equal(planned))

	// Without a planned date the start date defaults to now.
	order = Order{Status: StatusPlanned}
	require.NoError(t, order.Start(testNow, "tester"))
	require.True(t, order.StartDate.Equal(testNow))
}

func TestOrderFinishKeepsPresetEndDate(t *testing.T) {
	preset := testNow.AddDate(0, 0, 5)
	order := Order{Status: StatusInProgress, EndDate: &preset}
	require.NoError(t, order.Finish(dec(t, "80"), testNow, "tester"))
	require.True(t, order.EndDate.Equal(preset))
	require.True(t, order.FinishedAt.Equal(testNow))

	order = Order{Status: StatusInProgress}
	require.NoError(t, order.Finish(dec(t, "80"), testNow, "tester"))
	require.True(t, order.EndDate.Equal(testNow))
}

func TestOrderCancelFromNonTerminal(t *testing.T) {
	for _, status := range []Status{StatusPlanned, StatusInProgress} {
		order := Order{Status: status}
		require.NoError(t, order.Cancel("material shortage", testNow, "tester"), "cancel from %s", status)
		require.Equal(t, StatusCanceled, order.Status)
		require.Equal(t, "material shortage", order.CanceledReason)
		require.Nil(t, order.EndDate)
	}
	for _, status := range []Status{StatusFinished, StatusCanceled} {
		order := Order{Status: status}
		err := order.Cancel("too late", testNow, "tester")
		require.ErrorIs(t, err, httpx.ErrIllegalState, "cancel from %s", status)
	}
}

func TestOrderApproveKeepsStatus(t *testing.T) {
	order := Order{Status: StatusPlanned}
	require.NoError(t, order.Approve(testNow, "supervisor"))
	require.Equal(t, StatusPlanned, order.Status)
	require.Equal(t, "supervisor", order.ApprovedBy)
	require.NotNil(t, order.ApprovedAt)

	// Re-approval overwrites the stamp.
	later := testNow.Add(time.Hour)
	require.NoError(t, order.Approve(later, "manager"))
	require.Equal(t, "manager", order.ApprovedBy)
	require.True(t, order.ApprovedAt.Equal(later))

	started := Order{Status: StatusInProgress}
	require.ErrorIs(t, started.Approve(testNow, "supervisor"), httpx.ErrIllegalState)
}

func TestProductionPercentage(t *testing.T) {
	order := Order{QuantityPlanned: dec(t, "200"), QuantityProduced: dec(t, "150")}
	require.True(t, dec(t, "75").Equal(order.ProductionPercentage()))

	order = Order{QuantityPlanned: dec(t, "3"), QuantityProduced: dec(t, "1")}
	require.True(t, dec(t, "33.3333").Equal(order.ProductionPercentage()))

	order = Order{}
	require.True(t, order.ProductionPercentage().IsZero())
}

func TestOrderOverdue(t *testing.T) {
	deadline := testNow.Add(-time.Hour)
	order := Order{Status: StatusInProgress, Deadline: &deadline}
	require.True(t, order.Overdue(testNow))

	order.Status = StatusFinished
	require.False(t, order.Overdue(testNow))

	order = Order{Status: StatusInProgress}
	require.False(t, order.Overdue(testNow))
}

func TestClosureRecomputeTotal(t *testing.T) {
	closure := Closure{
		TotalMaterial: dec(t, "100.50"),
		TotalService:  dec(t, "20.25"),
		TotalLabor:    dec(t, "30.00"),
		TotalIndirect: dec(t, "9.25"),
	}
	closure.RecomputeTotal()
	require.True(t, dec(t, "160.00").Equal(closure.TotalCost))

	// Empty buckets count as zero.
	closure = Closure{TotalMaterial: dec(t, "10")}
	closure.RecomputeTotal()
	require.True(t, dec(t, "10").Equal(closure.TotalCost))
}

func TestSumCostsByType(t *testing.T) {
	costs := []Cost{
		{CostType: CostMaterial, TotalCost: dec(t, "10.00")},
		{CostType: CostMaterial, TotalCost: dec(t, "5.50")},
		{CostType: CostLabor, TotalCost: dec(t, "8.00")},
	}
	sums := SumCostsByType(costs)
	require.True(t, dec(t, "15.50").Equal(sums[CostMaterial]))
	require.True(t, dec(t, "8.00").Equal(sums[CostLabor]))
	require.True(t, sums[CostIndirect].IsZero())
}
