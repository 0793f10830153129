package production

import (
	"context"
	"errors"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/fabriq-erp/fabriq/internal/platform/db"
)

// Repository persists production entities in PostgreSQL.
type Repository struct {
	pool *pgxpool.Pool
}

// NewRepository constructs Repository.
func NewRepository(pool *pgxpool.Pool) *Repository {
	return &Repository{pool: pool}
}

type txRepository struct {
	tx pgx.Tx
}

// WithTx executes the callback inside a repeatable-read transaction.
func (r *Repository) WithTx(ctx context.Context, fn func(context.Context, TxRepository) error) error {
	if r == nil {
		return errors.New("production repository not initialised")
	}
	return db.WithTx(ctx, r.pool, func(tx pgx.Tx) error {
		return fn(ctx, &txRepository{tx: tx})
	})
}

const orderColumns = `id, tenant_id, company_id, code, product_id, composition_id, status, priority,
quantity_planned, quantity_produced, start_date, end_date, deadline, cost_total,
COALESCE(approved_by,''), approved_at, COALESCE(finished_by,''), finished_at, COALESCE(canceled_reason,''), COALESCE(notes,''),
created_at, COALESCE(created_by,''), updated_at, COALESCE(updated_by,''), deleted_at, COALESCE(deleted_by,'')`

const costColumns = `id, tenant_id, company_id, production_order_id, cost_type, reference_id, cost_date,
quantity, unit_cost, total_cost, COALESCE(approved_by,''), approved_at, COALESCE(notes,''),
created_at, COALESCE(created_by,''), updated_at, COALESCE(updated_by,''), deleted_at, COALESCE(deleted_by,'')`

const closureColumns = `id, tenant_id, company_id, production_order_id, total_material, total_service, total_labor,
total_indirect, total_cost, closure_date, closed_at, COALESCE(closed_by,''), exported_to_financial,
financial_export_date, COALESCE(financial_document_id,''), COALESCE(notes,''),
created_at, COALESCE(created_by,''), updated_at, COALESCE(updated_by,''), deleted_at, COALESCE(deleted_by,'')`

const executionColumns = `id, tenant_id, company_id, production_order_id, step_id, start_time, end_time,
quantity_done, loss_quantity, employee_id, machine_id, COALESCE(quality_status,''), COALESCE(rejection_reason,''), COALESCE(notes,''),
created_at, COALESCE(created_by,''), updated_at, COALESCE(updated_by,''), deleted_at, COALESCE(deleted_by,'')`

const stepColumns = `id, tenant_id, company_id, name, sequence, estimated_time, cost_center_id,
is_outsourced, requires_approval, is_active,
created_at, COALESCE(created_by,''), updated_at, COALESCE(updated_by,''), deleted_at, COALESCE(deleted_by,'')`

func scanOrder(row pgx.Row) (Order, error) {
	var o Order
	err := row.Scan(&o.ID, &o.TenantID, &o.CompanyID, &o.Code, &o.ProductID, &o.CompositionID, &o.Status,
		&o.Priority, &o.QuantityPlanned, &o.QuantityProduced, &o.StartDate, &o.EndDate, &o.Deadline,
		&o.CostTotal, &o.ApprovedBy, &o.ApprovedAt, &o.FinishedBy, &o.FinishedAt, &o.CanceledReason,
		&o.Notes, &o.CreatedAt, &o.CreatedBy, &o.UpdatedAt, &o.UpdatedBy, &o.DeletedAt, &o.DeletedBy)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return Order{}, ErrOrderNotFound
		}
		return Order{}, err
	}
	return o, nil
}

func scanCost(row pgx.Row) (Cost, error) {
	var c Cost
	err := row.Scan(&c.ID, &c.TenantID, &c.CompanyID, &c.OrderID, &c.CostType, &c.ReferenceID, &c.CostDate,
		&c.Quantity, &c.UnitCost, &c.TotalCost, &c.ApprovedBy, &c.ApprovedAt, &c.Notes,
		&c.CreatedAt, &c.CreatedBy, &c.UpdatedAt, &c.UpdatedBy, &c.DeletedAt, &c.DeletedBy)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return Cost{}, ErrCostNotFound
		}
		return Cost{}, err
	}
	return c, nil
}

func scanClosure(row pgx.Row) (Closure, error) {
	var c Closure
	err := row.Scan(&c.ID, &c.TenantID, &c.CompanyID, &c.OrderID, &c.TotalMaterial, &c.TotalService,
		&c.TotalLabor, &c.TotalIndirect, &c.TotalCost, &c.ClosureDate, &c.ClosedAt, &c.ClosedBy,
		&c.ExportedToFinancial, &c.FinancialExportDate, &c.FinancialDocumentID, &c.Notes,
		&c.CreatedAt, &c.CreatedBy, &c.UpdatedAt, &c.UpdatedBy, &c.DeletedAt, &c.DeletedBy)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return Closure{}, ErrClosureNotFound
		}
		return Closure{}, err
	}
	return c, nil
}

func scanExecution(row pgx.Row) (Execution, error) {
	var e Execution
	err := row.Scan(&e.ID, &e.TenantID, &e.CompanyID, &e.OrderID, &e.StepID, &e.StartTime, &e.EndTime,
		&e.QuantityDone, &e.LossQuantity, &e.EmployeeID, &e.MachineID, &e.QualityStatus, &e.RejectionReason,
		&e.Notes, &e.CreatedAt, &e.CreatedBy, &e.UpdatedAt, &e.UpdatedBy, &e.DeletedAt, &e.DeletedBy)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return Execution{}, ErrExecutionNotFound
		}
		return Execution{}, err
	}
	return e, nil
}

func scanStep(row pgx.Row) (Step, error) {
	var s Step
	err := row.Scan(&s.ID, &s.TenantID, &s.CompanyID, &s.Name, &s.Sequence, &s.EstimatedTime, &s.CostCenterID,
		&s.IsOutsourced, &s.RequiresApproval, &s.IsActive,
		&s.CreatedAt, &s.CreatedBy, &s.UpdatedAt, &s.UpdatedBy, &s.DeletedAt, &s.DeletedBy)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return Step{}, ErrStepNotFound
		}
		return Step{}, err
	}
	return s, nil
}

func (r *Repository) GetOrder(ctx context.Context, id uuid.UUID) (Order, error) {
	row := r.pool.QueryRow(ctx, `SELECT `+orderColumns+` FROM production_orders WHERE id=$1 AND deleted_at IS NULL`, id)
	return scanOrder(row)
}

func (r *Repository) ListOrders(ctx context.Context, companyID uuid.UUID, status Status) ([]Order, error) {
	query := `SELECT ` + orderColumns + ` FROM production_orders WHERE company_id=$1 AND deleted_at IS NULL`
	args := []any{companyID}
	if status != "" {
		query += ` AND status=$2`
		args = append(args, string(status))
	}
	rows, err := r.pool.Query(ctx, query+` ORDER BY created_at DESC`, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	orders := []Order{}
	for rows.Next() {
		o, err := scanOrder(rows)
		if err != nil {
			return nil, err
		}
		orders = append(orders, o)
	}
	return orders, rows.Err()
}

func (r *Repository) GetCost(ctx context.Context, id uuid.UUID) (Cost, error) {
	row := r.pool.QueryRow(ctx, `SELECT `+costColumns+` FROM production_costs WHERE id=$1 AND deleted_at IS NULL`, id)
	return scanCost(row)
}

func (r *Repository) ListCosts(ctx context.Context, orderID uuid.UUID) ([]Cost, error) {
	rows, err := r.pool.Query(ctx, `SELECT `+costColumns+` FROM production_costs
WHERE production_order_id=$1 AND deleted_at IS NULL ORDER BY cost_date, created_at`, orderID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	return collectCosts(rows)
}

func (r *Repository) GetClosure(ctx context.Context, id uuid.UUID) (Closure, error) {
	row := r.pool.QueryRow(ctx, `SELECT `+closureColumns+` FROM production_closures WHERE id=$1 AND deleted_at IS NULL`, id)
	return scanClosure(row)
}

func (r *Repository) GetClosureByOrder(ctx context.Context, orderID uuid.UUID) (Closure, error) {
	row := r.pool.QueryRow(ctx, `SELECT `+closureColumns+` FROM production_closures
WHERE production_order_id=$1 AND deleted_at IS NULL`, orderID)
	return scanClosure(row)
}

func (r *Repository) ListClosures(ctx context.Context, companyID uuid.UUID) ([]Closure, error) {
	rows, err := r.pool.Query(ctx, `SELECT `+closureColumns+` FROM production_closures
WHERE company_id=$1 AND deleted_at IS NULL ORDER BY closed_at DESC`, companyID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	closures := []Closure{}
	for rows.Next() {
		c, err := scanClosure(rows)
		if err != nil {
			return nil, err
		}
		closures = append(closures, c)
	}
	return closures, rows.Err()
}

func (r *Repository) GetExecution(ctx context.Context, id uuid.UUID) (Execution, error) {
	row := r.pool.QueryRow(ctx, `SELECT `+executionColumns+` FROM production_executions WHERE id=$1 AND deleted_at IS NULL`, id)
	return scanExecution(row)
}

func (r *Repository) ListExecutions(ctx context.Context, orderID uuid.UUID) ([]Execution, error) {
	rows, err := r.pool.Query(ctx, `SELECT `+executionColumns+` FROM production_executions
WHERE production_order_id=$1 AND deleted_at IS NULL ORDER BY start_time NULLS LAST, created_at`, orderID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	executions := []Execution{}
	for rows.Next() {
		e, err := scanExecution(rows)
		if err != nil {
			return nil, err
		}
		executions = append(executions, e)
	}
	return executions, rows.Err()
}

func (r *Repository) GetStep(ctx context.Context, id uuid.UUID) (Step, error) {
	row := r.pool.QueryRow(ctx, `SELECT `+stepColumns+` FROM production_steps WHERE id=$1 AND deleted_at IS NULL`, id)
	return scanStep(row)
}

func (r *Repository) ListSteps(ctx context.Context, companyID uuid.UUID, onlyActive bool) ([]Step, error) {
	query := `SELECT ` + stepColumns + ` FROM production_steps WHERE company_id=$1 AND deleted_at IS NULL`
	if onlyActive {
		query += ` AND is_active`
	}
	rows, err := r.pool.Query(ctx, query+` ORDER BY sequence, name`, companyID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	steps := []Step{}
	for rows.Next() {
		s, err := scanStep(rows)
		if err != nil {
			return nil, err
		}
		steps = append(steps, s)
	}
	return steps, rows.Err()
}

func (r *txRepository) GetOrderForUpdate(ctx context.Context, id uuid.UUID) (Order, error) {
	row := r.tx.QueryRow(ctx, `SELECT `+orderColumns+` FROM production_orders WHERE id=$1 AND deleted_at IS NULL FOR UPDATE`, id)
	return scanOrder(row)
}

func (r *txRepository) InsertOrder(ctx context.Context, o Order) error {
	_, err := r.tx.Exec(ctx, `INSERT INTO production_orders
(id, tenant_id, company_id, code, product_id, composition_id, status, priority, quantity_planned, quantity_produced,
start_date, end_date, deadline, cost_total, approved_by, approved_at, finished_by, finished_at, canceled_reason, notes,
created_at, created_by)
VALUES ($1,$2,$3,$4,$5,$6,$7,$8,$9,$10,$11,$12,$13,$14,NULLIF($15,''),$16,NULLIF($17,''),$18,NULLIF($19,''),$20,$21,$22)`,
		o.ID, o.TenantID, o.CompanyID, o.Code, o.ProductID, o.CompositionID, string(o.Status), string(o.Priority),
		o.QuantityPlanned, o.QuantityProduced, o.StartDate, o.EndDate, o.Deadline, o.CostTotal,
		o.ApprovedBy, o.ApprovedAt, o.FinishedBy, o.FinishedAt, o.CanceledReason, o.Notes,
		o.CreatedAt, o.CreatedBy)
	if db.IsUniqueViolation(err) {
		return ErrDuplicateCode
	}
	return err
}

func (r *txRepository) UpdateOrder(ctx context.Context, o Order) error {
	tag, err := r.tx.Exec(ctx, `UPDATE production_orders SET
code=$2, product_id=$3, composition_id=$4, status=$5, priority=$6, quantity_planned=$7, quantity_produced=$8,
start_date=$9, end_date=$10, deadline=$11, cost_total=$12, approved_by=NULLIF($13,''), approved_at=$14,
finished_by=NULLIF($15,''), finished_at=$16, canceled_reason=NULLIF($17,''), notes=$18,
updated_at=$19, updated_by=NULLIF($20,''), deleted_at=$21, deleted_by=NULLIF($22,'')
WHERE id=$1`,
		o.ID, o.Code, o.ProductID, o.CompositionID, string(o.Status), string(o.Priority), o.QuantityPlanned,
		o.QuantityProduced, o.StartDate, o.EndDate, o.Deadline, o.CostTotal, o.ApprovedBy, o.ApprovedAt,
		o.FinishedBy, o.FinishedAt, o.CanceledReason, o.Notes, o.UpdatedAt, o.UpdatedBy, o.DeletedAt, o.DeletedBy)
	if db.IsUniqueViolation(err) {
		return ErrDuplicateCode
	}
	if err != nil {
		return err
	}
	if tag.RowsAffected() == 0 {
		return ErrOrderNotFound
	}
	return nil
}

func (r *txRepository) GetCostForUpdate(ctx context.Context, id uuid.UUID) (Cost, error) {
	row := r.tx.QueryRow(ctx, `SELECT `+costColumns+` FROM production_costs WHERE id=$1 AND deleted_at IS NULL FOR UPDATE`, id)
	return scanCost(row)
}

func (r *txRepository) InsertCost(ctx context.Context, c Cost) error {
	_, err := r.tx.Exec(ctx, `INSERT INTO production_costs
(id, tenant_id, company_id, production_order_id, cost_type, reference_id, cost_date, quantity, unit_cost, total_cost,
approved_by, approved_at, notes, created_at, created_by)
VALUES ($1,$2,$3,$4,$5,$6,$7,$8,$9,$10,NULLIF($11,''),$12,$13,$14,$15)`,
		c.ID, c.TenantID, c.CompanyID, c.OrderID, string(c.CostType), c.ReferenceID, c.CostDate,
		c.Quantity, c.UnitCost, c.TotalCost, c.ApprovedBy, c.ApprovedAt, c.Notes, c.CreatedAt, c.CreatedBy)
	return err
}

func (r *txRepository) UpdateCost(ctx context.Context, c Cost) error {
	tag, err := r.tx.Exec(ctx, `UPDATE production_costs SET
cost_type=$2, reference_id=$3, cost_date=$4, quantity=$5, unit_cost=$6, total_cost=$7,
approved_by=NULLIF($8,''), approved_at=$9, notes=$10,
updated_at=$11, updated_by=NULLIF($12,''), deleted_at=$13, deleted_by=NULLIF($14,'')
WHERE id=$1`,
		c.ID, string(c.CostType), c.ReferenceID, c.CostDate, c.Quantity, c.UnitCost, c.TotalCost,
		c.ApprovedBy, c.ApprovedAt, c.Notes, c.UpdatedAt, c.UpdatedBy, c.DeletedAt, c.DeletedBy)
	if err != nil {
		return err
	}
	if tag.RowsAffected() == 0 {
		return ErrCostNotFound
	}
	return nil
}

func (r *txRepository) ListCosts(ctx context.Context, orderID uuid.UUID) ([]Cost, error) {
	rows, err := r.tx.Query(ctx, `SELECT `+costColumns+` FROM production_costs
WHERE production_order_id=$1 AND deleted_at IS NULL ORDER BY cost_date, created_at`, orderID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	return collectCosts(rows)
}

func (r *txRepository) GetClosureByOrder(ctx context.Context, orderID uuid.UUID) (Closure, error) {
	row := r.tx.QueryRow(ctx, `SELECT `+closureColumns+` FROM production_closures
WHERE production_order_id=$1 AND deleted_at IS NULL`, orderID)
	return scanClosure(row)
}

func (r *txRepository) GetClosureForUpdate(ctx context.Context, id uuid.UUID) (Closure, error) {
	row := r.tx.QueryRow(ctx, `SELECT `+closureColumns+` FROM production_closures WHERE id=$1 AND deleted_at IS NULL FOR UPDATE`, id)
	return scanClosure(row)
}

func (r *txRepository) InsertClosure(ctx context.Context, c Closure) error {
	_, err := r.tx.Exec(ctx, `INSERT INTO production_closures
(id, tenant_id, company_id, production_order_id, total_material, total_service, total_labor, total_indirect, total_cost,
closure_date, closed_at, closed_by, exported_to_financial, financial_export_date, financial_document_id, notes,
created_at, created_by)
VALUES ($1,$2,$3,$4,$5,$6,$7,$8,$9,$10,$11,NULLIF($12,''),$13,$14,NULLIF($15,''),$16,$17,$18)`,
		c.ID, c.TenantID, c.CompanyID, c.OrderID, c.TotalMaterial, c.TotalService, c.TotalLabor, c.TotalIndirect,
		c.TotalCost, c.ClosureDate, c.ClosedAt, c.ClosedBy, c.ExportedToFinancial, c.FinancialExportDate,
		c.FinancialDocumentID, c.Notes, c.CreatedAt, c.CreatedBy)
	if db.IsUniqueViolation(err) {
		return ErrClosureExists
	}
	return err
}

func (r *txRepository) UpdateClosure(ctx context.Context, c Closure) error {
	tag, err := r.tx.Exec(ctx, `UPDATE production_closures SET
exported_to_financial=$2, financial_export_date=$3, financial_document_id=NULLIF($4,''), notes=$5,
updated_at=$6, updated_by=NULLIF($7,''), deleted_at=$8, deleted_by=NULLIF($9,'')
WHERE id=$1`,
		c.ID, c.ExportedToFinancial, c.FinancialExportDate, c.FinancialDocumentID, c.Notes,
		c.UpdatedAt, c.UpdatedBy, c.DeletedAt, c.DeletedBy)
	if err != nil {
		return err
	}
	if tag.RowsAffected() == 0 {
		return ErrClosureNotFound
	}
	return nil
}

func (r *txRepository) GetExecutionForUpdate(ctx context.Context, id uuid.UUID) (Execution, error) {
	row := r.tx.QueryRow(ctx, `SELECT `+executionColumns+` FROM production_executions WHERE id=$1 AND deleted_at IS NULL FOR UPDATE`, id)
	return scanExecution(row)
}

func (r *txRepository) InsertExecution(ctx context.Context, e Execution) error {
	_, err := r.tx.Exec(ctx, `INSERT INTO production_executions
(id, tenant_id, company_id, production_order_id, step_id, start_time, end_time, quantity_done, loss_quantity,
employee_id, machine_id, quality_status, rejection_reason, notes, created_at, created_by)
VALUES ($1,$2,$3,$4,$5,$6,$7,$8,$9,$10,$11,NULLIF($12,''),NULLIF($13,''),$14,$15,$16)`,
		e.ID, e.TenantID, e.CompanyID, e.OrderID, e.StepID, e.StartTime, e.EndTime, e.QuantityDone,
		e.LossQuantity, e.EmployeeID, e.MachineID, string(e.QualityStatus), e.RejectionReason, e.Notes,
		e.CreatedAt, e.CreatedBy)
	return err
}

func (r *txRepository) UpdateExecution(ctx context.Context, e Execution) error {
	tag, err := r.tx.Exec(ctx, `UPDATE production_executions SET
step_id=$2, start_time=$3, end_time=$4, quantity_done=$5, loss_quantity=$6, employee_id=$7, machine_id=$8,
quality_status=NULLIF($9,''), rejection_reason=NULLIF($10,''), notes=$11,
updated_at=$12, updated_by=NULLIF($13,''), deleted_at=$14, deleted_by=NULLIF($15,'')
WHERE id=$1`,
		e.ID, e.StepID, e.StartTime, e.EndTime, e.QuantityDone, e.LossQuantity, e.EmployeeID, e.MachineID,
		string(e.QualityStatus), e.RejectionReason, e.Notes, e.UpdatedAt, e.UpdatedBy, e.DeletedAt, e.DeletedBy)
	if err != nil {
		return err
	}
	if tag.RowsAffected() == 0 {
		return ErrExecutionNotFound
	}
	return nil
}

func (r *txRepository) GetStepForUpdate(ctx context.Context, id uuid.UUID) (Step, error) {
	row := r.tx.QueryRow(ctx, `SELECT `+stepColumns+` FROM production_steps WHERE id=$1 AND deleted_at IS NULL FOR UPDATE`, id)
	return scanStep(row)
}

func (r *txRepository) InsertStep(ctx context.Context, s Step) error {
	_, err := r.tx.Exec(ctx, `INSERT INTO production_steps
(id, tenant_id, company_id, name, sequence, estimated_time, cost_center_id, is_outsourced, requires_approval, is_active,
created_at, created_by)
VALUES ($1,$2,$3,$4,$5,$6,$7,$8,$9,$10,$11,$12)`,
		s.ID, s.TenantID, s.CompanyID, s.Name, s.Sequence, s.EstimatedTime, s.CostCenterID,
		s.IsOutsourced, s.RequiresApproval, s.IsActive, s.CreatedAt, s.CreatedBy)
	return err
}

func (r *txRepository) UpdateStep(ctx context.Context, s Step) error {
	tag, err := r.tx.Exec(ctx, `UPDATE production_steps SET
name=$2, sequence=$3, estimated_time=$4, cost_center_id=$5, is_outsourced=$6, requires_approval=$7, is_active=$8,
updated_at=$9, updated_by=NULLIF($10,''), deleted_at=$11, deleted_by=NULLIF($12,'')
WHERE id=$1`,
		s.ID, s.Name, s.Sequence, s.EstimatedTime, s.CostCenterID, s.IsOutsourced, s.RequiresApproval,
		s.IsActive, s.UpdatedAt, s.UpdatedBy, s.DeletedAt, s.DeletedBy)
	if err != nil {
		return err
	}
	if tag.RowsAffected() == 0 {
		return ErrStepNotFound
	}
	return nil
}

func collectCosts(rows pgx.Rows) ([]Cost, error) {
	costs := []Cost{}
	for rows.Next() {
		c, err := scanCost(rows)
		if err != nil {
			return nil, err
		}
		costs = append(costs, c)
	}
	return costs, rows.Err()
}
