package production

import (
	"context"
	"testing"

	"github.com/google/uuid"
	"github.com/stretchr/testify/require"

	"github.com/fabriq-erp/fabriq/internal/platform/httpx"
	"github.com/fabriq-erp/fabriq/internal/shared"
)

type memoryRepo struct {
	orders     map[uuid.UUID]Order
	costs      map[uuid.UUID]Cost
	closures   map[uuid.UUID]Closure
	executions map[uuid.UUID]Execution
	steps      map[uuid.UUID]Step
}

func newMemoryRepo() *memoryRepo {
	return &memoryRepo{
		orders:     map[uuid.UUID]Order{},
		costs:      map[uuid.UUID]Cost{},
		closures:   map[uuid.UUID]Closure{},
		executions: map[uuid.UUID]Execution{},
		steps:      map[uuid.UUID]Step{},
	}
}

func (m *memoryRepo) WithTx(ctx context.Context, fn func(context.Context, TxRepository) error) error {
	return fn(ctx, (*memoryTx)(m))
}

func (m *memoryRepo) GetOrder(_ context.Context, id uuid.UUID) (Order, error) {
	o, ok := m.orders[id]
	if !ok || o.Deleted() {
		return Order{}, ErrOrderNotFound
	}
	return o, nil
}

func (m *memoryRepo) ListOrders(_ context.Context, companyID uuid.UUID, status Status) ([]Order, error) {
	orders := []Order{}
	for _, o := range m.orders {
		if o.CompanyID != companyID || o.Deleted() {
			continue
		}
		if status != "" && o.Status != status {
			continue
		}
		orders = append(orders, o)
	}
	return orders, nil
}

func (m *memoryRepo) GetCost(_ context.Context, id uuid.UUID) (Cost, error) {
	c, ok := m.costs[id]
	if !ok || c.Deleted() {
		return Cost{}, ErrCostNotFound
	}
	return c, nil
}

func (m *memoryRepo) ListCosts(ctx context.Context, orderID uuid.UUID) ([]Cost, error) {
	return (*memoryTx)(m).ListCosts(ctx, orderID)
}

func (m *memoryRepo) GetClosure(_ context.Context, id uuid.UUID) (Closure, error) {
	c, ok := m.closures[id]
	if !ok || c.Deleted() {
		return Closure{}, ErrClosureNotFound
	}
	return c, nil
}

func (m *memoryRepo) GetClosureByOrder(ctx context.Context, orderID uuid.UUID) (Closure, error) {
	return (*memoryTx)(m).GetClosureByOrder(ctx, orderID)
}

func (m *memoryRepo) ListClosures(_ context.Context, companyID uuid.UUID) ([]Closure, error) {
	closures := []Closure{}
	for _, c := range m.closures {
		if c.CompanyID == companyID && !c.Deleted() {
			closures = append(closures, c)
		}
	}
	return closures, nil
}

func (m *memoryRepo) GetExecution(_ context.Context, id uuid.UUID) (Execution, error) {
	e, ok := m.executions[id]
	if !ok || e.Deleted() {
		return Execution{}, ErrExecutionNotFound
	}
	return e, nil
}

func (m *memoryRepo) ListExecutions(_ context.Context, orderID uuid.UUID) ([]Execution, error) {
	executions := []Execution{}
	for _, e := range m.executions {
		if e.OrderID == orderID && !e.Deleted() {
			executions = append(executions, e)
		}
	}
	return executions, nil
}

func (m *memoryRepo) GetStep(_ context.Context, id uuid.UUID) (Step, error) {
	s, ok := m.steps[id]
	if !ok || s.Deleted() {
		return Step{}, ErrStepNotFound
	}
	return s, nil
}

func (m *memoryRepo) ListSteps(_ context.Context, companyID uuid.UUID, onlyActive bool) ([]Step, error) {
	steps := []Step{}
	for _, s := range m.steps {
		if s.CompanyID != companyID || s.Deleted() {
			continue
		}
		if onlyActive && !s.IsActive {
			continue
		}
		steps = append(steps, s)
	}
	return steps, nil
}

type memoryTx memoryRepo

func (m *memoryTx) GetOrderForUpdate(ctx context.Context, id uuid.UUID) (Order, error) {
	return (*memoryRepo)(m).GetOrder(ctx, id)
}

func (m *memoryTx) InsertOrder(_ context.Context, o Order) error {
	for _, existing := range m.orders {
		if existing.CompanyID == o.CompanyID && existing.Code == o.Code && !existing.Deleted() {
			return ErrDuplicateCode
		}
	}
	m.orders[o.ID] = o
	return nil
}

func (m *memoryTx) UpdateOrder(_ context.Context, o Order) error {
	if _, ok := m.orders[o.ID]; !ok {
		return ErrOrderNotFound
	}
	m.orders[o.ID] = o
	return nil
}

func (m *memoryTx) GetCostForUpdate(ctx context.Context, id uuid.UUID) (Cost, error) {
	return (*memoryRepo)(m).GetCost(ctx, id)
}

func (m *memoryTx) InsertCost(_ context.Context, c Cost) error {
	m.costs[c.ID] = c
	return nil
}

func (m *memoryTx) UpdateCost(_ context.Context, c Cost) error {
	if _, ok := m.costs[c.ID]; !ok {
		return ErrCostNotFound
	}
	m.costs[c.ID] = c
	return nil
}

func (m *memoryTx) ListCosts(_ context.Context, orderID uuid.UUID) ([]Cost, error) {
	costs := []Cost{}
	for _, c := range m.costs {
		if c.OrderID == orderID && !c.Deleted() {
			costs = append(costs, c)
		}
	}
	return costs, nil
}

func (m *memoryTx) GetClosureByOrder(_ context.Context, orderID uuid.UUID) (Closure, error) {
	for _, c := range m.closures {
		if c.OrderID == orderID && !c.Deleted() {
			return c, nil
		}
	}
	return Closure{}, ErrClosureNotFound
}

func (m *memoryTx) GetClosureForUpdate(ctx context.Context, id uuid.UUID) (Closure, error) {
	return (*memoryRepo)(m).GetClosure(ctx, id)
}

func (m *memoryTx) InsertClosure(_ context.Context, c Closure) error {
	for _, existing := range m.closures {
		if existing.OrderID == c.OrderID && !existing.Deleted() {
			return ErrClosureExists
		}
	}
	m.closures[c.ID] = c
	return nil
}

func (m *memoryTx) UpdateClosure(_ context.Context, c Closure) error {
	if _, ok := m.closures[c.ID]; !ok {
		return ErrClosureNotFound
	}
	m.closures[c.ID] = c
	return nil
}

func (m *memoryTx) GetExecutionForUpdate(ctx context.Context, id uuid.UUID) (Execution, error) {
	return (*memoryRepo)(m).GetExecution(ctx, id)
}

func (m *memoryTx) InsertExecution(_ context.Context, e Execution) error {
	m.executions[e.ID] = e
	return nil
}

func (m *memoryTx) UpdateExecution(_ context.Context, e Execution) error {
	if _, ok := m.executions[e.ID]; !ok {
		return ErrExecutionNotFound
	}
	m.executions[e.ID] = e
	return nil
}

func (m *memoryTx) GetStepForUpdate(ctx context.Context, id uuid.UUID) (Step, error) {
	return (*memoryRepo)(m).GetStep(ctx, id)
}

func (m *memoryTx) InsertStep(_ context.Context, s Step) error {
	m.steps[s.ID] = s
	return nil
}

func (m *memoryTx) UpdateStep(_ context.Context, s Step) error {
	if _, ok := m.steps[s.ID]; !ok {
		return ErrStepNotFound
	}
	m.steps[s.ID] = s
	return nil
}

func newTestService(repo *memoryRepo) *Service {
	return NewService(repo, nil, shared.FixedClock(testNow))
}

func seedOrder(t *testing.T, svc *Service) Order {
	t.Helper()
	order, err := svc.CreateOrder(context.Background(), CreateOrderInput{
		TenantID:        uuid.New(),
		CompanyID:       uuid.New(),
		Code:            "OP-2025-001",
		ProductID:       uuid.New(),
		QuantityPlanned: dec(t, "100"),
	}, "tester")
	require.NoError(t, err)
	return order
}

func TestCreateOrderDefaults(t *testing.T) {
	svc := newTestService(newMemoryRepo())
	order := seedOrder(t, svc)
	require.Equal(t, StatusPlanned, order.Status)
	require.Equal(t, PriorityMedium, order.Priority)
	require.True(t, order.CostTotal.IsZero())
	require.True(t, order.QuantityProduced.IsZero())
}

func TestCreateOrderValidation(t *testing.T) {
	svc := newTestService(newMemoryRepo())

	_, err := svc.CreateOrder(context.Background(), CreateOrderInput{
		QuantityPlanned: dec(t, "1"),
	}, "tester")
	require.ErrorIs(t, err, ErrCodeRequired)

	_, err = svc.CreateOrder(context.Background(), CreateOrderInput{
		Code: "OP-1", QuantityPlanned: dec(t, "0"),
	}, "tester")
	require.ErrorIs(t, err, ErrInvalidPlannedQty)

	_, err = svc.CreateOrder(context.Background(), CreateOrderInput{
		Code: "OP-1", QuantityPlanned: dec(t, "1"), Priority: Priority("IMMEDIATE"),
	}, "tester")
	require.ErrorIs(t, err, ErrInvalidPriority)
}

func TestCreateOrderDuplicateCode(t *testing.T) {
	svc := newTestService(newMemoryRepo())
	order := seedOrder(t, svc)

	_, err := svc.CreateOrder(context.Background(), CreateOrderInput{
		TenantID:        order.TenantID,
		CompanyID:       order.CompanyID,
		Code:            order.Code,
		ProductID:       uuid.New(),
		QuantityPlanned: dec(t, "5"),
	}, "tester")
	require.ErrorIs(t, err, ErrDuplicateCode)
	require.ErrorIs(t, err, httpx.ErrDuplicate)
}

func TestOrderLifecycle(t *testing.T) {
	svc := newTestService(newMemoryRepo())
	order := seedOrder(t, svc)

	started, err := svc.StartOrder(context.Background(), order.ID, "operator")
	require.NoError(t, err)
	require.Equal(t, StatusInProgress, started.Status)

	_, err = svc.StartOrder(context.Background(), order.ID, "operator")
	require.ErrorIs(t, err, httpx.ErrIllegalState)

	finished, err := svc.FinishOrder(context.Background(), order.ID, dec(t, "97.5"), "operator")
	require.NoError(t, err)
	require.Equal(t, StatusFinished, finished.Status)
	require.True(t, dec(t, "97.5").Equal(finished.QuantityProduced))

	_, err = svc.CancelOrder(context.Background(), order.ID, "changed our mind", "operator")
	require.ErrorIs(t, err, httpx.ErrIllegalState)
}

func TestCancelRequiresReason(t *testing.T) {
	svc := newTestService(newMemoryRepo())
	order := seedOrder(t, svc)

	_, err := svc.CancelOrder(context.Background(), order.ID, "", "tester")
	require.ErrorIs(t, err, ErrCancelReasonRequired)

	canceled, err := svc.CancelOrder(context.Background(), order.ID, "duplicate order", "tester")
	require.NoError(t, err)
	require.Equal(t, StatusCanceled, canceled.Status)
}

func TestUpdateOrderForbiddenWhenTerminal(t *testing.T) {
	svc := newTestService(newMemoryRepo())
	order := seedOrder(t, svc)
	_, err := svc.CancelOrder(context.Background(), order.ID, "scrapped", "tester")
	require.NoError(t, err)

	notes := "too late"
	_, err = svc.UpdateOrder(context.Background(), order.ID, UpdateOrderInput{Notes: &notes}, "tester")
	require.ErrorIs(t, err, httpx.ErrIllegalState)
}

func TestAddCostRefreshesOrderTotal(t *testing.T) {
	repo := newMemoryRepo()
	svc := newTestService(repo)
	order := seedOrder(t, svc)

	cost, err := svc.AddCost(context.Background(), AddCostInput{
		TenantID:  order.TenantID,
		CompanyID: order.CompanyID,
		OrderID:   order.ID,
		CostType:  CostMaterial,
		Quantity:  dec(t, "10"),
		UnitCost:  dec(t, "2.555"),
	}, "tester")
	require.NoError(t, err)
	require.True(t, dec(t, "25.55").Equal(cost.TotalCost))

	_, err = svc.AddCost(context.Background(), AddCostInput{
		TenantID:  order.TenantID,
		CompanyID: order.CompanyID,
		OrderID:   order.ID,
		CostType:  CostLabor,
		Quantity:  dec(t, "8"),
		UnitCost:  dec(t, "15.00"),
	}, "tester")
	require.NoError(t, err)

	stored, err := svc.GetOrder(context.Background(), order.ID)
	require.NoError(t, err)
	require.True(t, dec(t, "145.55").Equal(stored.CostTotal))

	require.NoError(t, svc.DeleteCost(context.Background(), cost.ID, "tester"))
	stored, err = svc.GetOrder(context.Background(), order.ID)
	require.NoError(t, err)
	require.True(t, dec(t, "120.00").Equal(stored.CostTotal))
}

func TestAddCostSuppliedTotalWins(t *testing.T) {
	svc := newTestService(newMemoryRepo())
	order := seedOrder(t, svc)

	supplied := dec(t, "99.99")
	cost, err := svc.AddCost(context.Background(), AddCostInput{
		TenantID:  order.TenantID,
		CompanyID: order.CompanyID,
		OrderID:   order.ID,
		CostType:  CostIndirect,
		Quantity:  dec(t, "1"),
		UnitCost:  dec(t, "10"),
		TotalCost: &supplied,
	}, "tester")
	require.NoError(t, err)
	require.True(t, supplied.Equal(cost.TotalCost))
}

func TestAddCostValidation(t *testing.T) {
	svc := newTestService(newMemoryRepo())
	order := seedOrder(t, svc)

	_, err := svc.AddCost(context.Background(), AddCostInput{
		OrderID: order.ID, CostType: CostType("OVERHEAD"),
	}, "tester")
	require.ErrorIs(t, err, ErrInvalidCostType)

	_, err = svc.AddCost(context.Background(), AddCostInput{
		OrderID: uuid.New(), CostType: CostMaterial, Quantity: dec(t, "1"), UnitCost: dec(t, "1"),
	}, "tester")
	require.ErrorIs(t, err, httpx.ErrNotFound)
}

func TestApproveCostRepeatable(t *testing.T) {
	svc := newTestService(newMemoryRepo())
	order := seedOrder(t, svc)

	cost, err := svc.AddCost(context.Background(), AddCostInput{
		TenantID: order.TenantID, CompanyID: order.CompanyID, OrderID: order.ID,
		CostType: CostService, Quantity: dec(t, "1"), UnitCost: dec(t, "10"),
	}, "tester")
	require.NoError(t, err)

	first, err := svc.ApproveCost(context.Background(), cost.ID, "supervisor")
	require.NoError(t, err)
	require.Equal(t, "supervisor", first.ApprovedBy)

	second, err := svc.ApproveCost(context.Background(), cost.ID, "manager")
	require.NoError(t, err)
	require.Equal(t, "manager", second.ApprovedBy)
}

func TestExecutionLifecycle(t *testing.T) {
	svc := newTestService(newMemoryRepo())
	order := seedOrder(t, svc)

	exec, err := svc.CreateExecution(context.Background(), ExecutionInput{
		TenantID:      order.TenantID,
		CompanyID:     order.CompanyID,
		OrderID:       order.ID,
		QuantityDone:  dec(t, "50"),
		LossQuantity:  dec(t, "2"),
		QualityStatus: QualityApproved,
	}, "operator")
	require.NoError(t, err)

	executions, err := svc.ListExecutions(context.Background(), order.ID)
	require.NoError(t, err)
	require.Len(t, executions, 1)

	_, err = svc.CreateExecution(context.Background(), ExecutionInput{
		OrderID:       order.ID,
		QualityStatus: QualityStatus("PERFECT"),
	}, "operator")
	require.ErrorIs(t, err, ErrInvalidQuality)

	require.NoError(t, svc.DeleteExecution(context.Background(), exec.ID, "operator"))
	_, err = svc.GetExecution(context.Background(), exec.ID)
	require.ErrorIs(t, err, httpx.ErrNotFound)
}

func TestStepCatalog(t *testing.T) {
	svc := newTestService(newMemoryRepo())
	companyID := uuid.New()

	step, err := svc.CreateStep(context.Background(), StepInput{
		TenantID:  uuid.New(),
		CompanyID: companyID,
		Name:      "Cutting",
		Sequence:  1,
	}, "tester")
	require.NoError(t, err)
	require.True(t, step.IsActive)

	inactive := false
	_, err = svc.UpdateStep(context.Background(), step.ID, StepInput{IsActive: &inactive}, "tester")
	require.NoError(t, err)

	steps, err := svc.ListSteps(context.Background(), companyID, true)
	require.NoError(t, err)
	require.Empty(t, steps)
}
