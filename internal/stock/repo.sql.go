package stock

import (
	"context"
	"errors"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/shopspring/decimal"

	"github.com/fabriq-erp/fabriq/internal/platform/db"
)

// Repository persists stock positions and movements in PostgreSQL.
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
		return errors.New("stock repository not initialised")
	}
	return db.WithTx(ctx, r.pool, func(tx pgx.Tx) error {
		return fn(ctx, &txRepository{tx: tx})
	})
}

const stockColumns = `id, tenant_id, company_id, raw_material_id, warehouse_id, quantity, reserved_quantity,
last_movement_date, created_at, COALESCE(created_by,''), updated_at, COALESCE(updated_by,''), deleted_at, COALESCE(deleted_by,'')`

const movementColumns = `id, tenant_id, company_id, raw_material_id, warehouse_id, movement_type, movement_origin,
origin_id, COALESCE(document_number,''), movement_date, quantity, unit_cost, total_cost, COALESCE(notes,''),
created_at, COALESCE(created_by,'')`

func scanStock(row pgx.Row) (Stock, error) {
	var s Stock
	err := row.Scan(&s.ID, &s.TenantID, &s.CompanyID, &s.RawMaterialID, &s.WarehouseID, &s.Quantity,
		&s.ReservedQuantity, &s.LastMovementDate, &s.CreatedAt, &s.CreatedBy, &s.UpdatedAt, &s.UpdatedBy,
		&s.DeletedAt, &s.DeletedBy)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return Stock{}, ErrStockNotFound
		}
		return Stock{}, err
	}
	return s, nil
}

func scanMovement(row pgx.Row) (Movement, error) {
	var m Movement
	err := row.Scan(&m.ID, &m.TenantID, &m.CompanyID, &m.RawMaterialID, &m.WarehouseID, &m.MovementType,
		&m.MovementOrigin, &m.OriginID, &m.DocumentNumber, &m.MovementDate, &m.Quantity, &m.UnitCost,
		&m.TotalCost, &m.Notes, &m.CreatedAt, &m.CreatedBy)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return Movement{}, ErrMovementNotFound
		}
		return Movement{}, err
	}
	return m, nil
}

func (r *Repository) GetStock(ctx context.Context, id uuid.UUID) (Stock, error) {
	row := r.pool.QueryRow(ctx, `SELECT `+stockColumns+` FROM raw_material_stocks WHERE id=$1 AND deleted_at IS NULL`, id)
	return scanStock(row)
}

func (r *Repository) GetByMaterial(ctx context.Context, companyID, rawMaterialID uuid.UUID) (Stock, error) {
	row := r.pool.QueryRow(ctx, `SELECT `+stockColumns+` FROM raw_material_stocks
WHERE company_id=$1 AND raw_material_id=$2 AND warehouse_id IS NULL AND deleted_at IS NULL`, companyID, rawMaterialID)
	return scanStock(row)
}

func (r *Repository) ListByCompany(ctx context.Context, companyID uuid.UUID) ([]Stock, error) {
	rows, err := r.pool.Query(ctx, `SELECT `+stockColumns+` FROM raw_material_stocks
WHERE company_id=$1 AND deleted_at IS NULL ORDER BY raw_material_id`, companyID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	return collectStocks(rows)
}

func (r *Repository) LowStock(ctx context.Context, companyID uuid.UUID, threshold decimal.Decimal) ([]Stock, error) {
	rows, err := r.pool.Query(ctx, `SELECT `+stockColumns+` FROM raw_material_stocks
WHERE company_id=$1 AND deleted_at IS NULL AND quantity - reserved_quantity < $2
ORDER BY quantity - reserved_quantity`, companyID, threshold)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	return collectStocks(rows)
}

func (r *Repository) ListMovements(ctx context.Context, companyID, rawMaterialID uuid.UUID, page, perPage int) ([]Movement, int, error) {
	var total int
	err := r.pool.QueryRow(ctx, `SELECT COUNT(*) FROM stock_movements
WHERE company_id=$1 AND raw_material_id=$2`, companyID, rawMaterialID).Scan(&total)
	if err != nil {
		return nil, 0, err
	}
	offset := (page - 1) * perPage
	rows, err := r.pool.Query(ctx, `SELECT `+movementColumns+` FROM stock_movements
WHERE company_id=$1 AND raw_material_id=$2
ORDER BY movement_date DESC, created_at DESC LIMIT $3 OFFSET $4`, companyID, rawMaterialID, perPage, offset)
	if err != nil {
		return nil, 0, err
	}
	defer rows.Close()
	movements := []Movement{}
	for rows.Next() {
		m, err := scanMovement(rows)
		if err != nil {
			return nil, 0, err
		}
		movements = append(movements, m)
	}
	return movements, total, rows.Err()
}

func (r *txRepository) GetStockForUpdate(ctx context.Context, companyID, rawMaterialID uuid.UUID, warehouseID *uuid.UUID) (Stock, error) {
	query := `SELECT ` + stockColumns + ` FROM raw_material_stocks
WHERE company_id=$1 AND raw_material_id=$2 AND deleted_at IS NULL`
	args := []any{companyID, rawMaterialID}
	if warehouseID != nil {
		query += ` AND warehouse_id=$3`
		args = append(args, *warehouseID)
	} else {
		query += ` AND warehouse_id IS NULL`
	}
	row := r.tx.QueryRow(ctx, query+` FOR UPDATE`, args...)
	return scanStock(row)
}

func (r *txRepository) InsertStock(ctx context.Context, s Stock) error {
	_, err := r.tx.Exec(ctx, `INSERT INTO raw_material_stocks
(id, tenant_id, company_id, raw_material_id, warehouse_id, quantity, reserved_quantity, last_movement_date, created_at, created_by)
VALUES ($1,$2,$3,$4,$5,$6,$7,$8,$9,$10)`,
		s.ID, s.TenantID, s.CompanyID, s.RawMaterialID, s.WarehouseID, s.Quantity, s.ReservedQuantity,
		s.LastMovementDate, s.CreatedAt, s.CreatedBy)
	return err
}

func (r *txRepository) UpdateStock(ctx context.Context, s Stock) error {
	tag, err := r.tx.Exec(ctx, `UPDATE raw_material_stocks SET
quantity=$2, reserved_quantity=$3, last_movement_date=$4, updated_at=$5, updated_by=NULLIF($6,''),
deleted_at=$7, deleted_by=NULLIF($8,'')
WHERE id=$1`,
		s.ID, s.Quantity, s.ReservedQuantity, s.LastMovementDate, s.UpdatedAt, s.UpdatedBy, s.DeletedAt, s.DeletedBy)
	if err != nil {
		return err
	}
	if tag.RowsAffected() == 0 {
		return ErrStockNotFound
	}
	return nil
}

func (r *txRepository) InsertMovement(ctx context.Context, m Movement) error {
	_, err := r.tx.Exec(ctx, `INSERT INTO stock_movements
(id, tenant_id, company_id, raw_material_id, warehouse_id, movement_type, movement_origin, origin_id, document_number, movement_date, quantity, unit_cost, total_cost, notes, created_at, created_by)
VALUES ($1,$2,$3,$4,$5,$6,$7,$8,NULLIF($9,''),$10,$11,$12,$13,$14,$15,$16)`,
		m.ID, m.TenantID, m.CompanyID, m.RawMaterialID, m.WarehouseID, string(m.MovementType),
		string(m.MovementOrigin), m.OriginID, m.DocumentNumber, m.MovementDate, m.Quantity, m.UnitCost,
		m.TotalCost, m.Notes, m.CreatedAt, m.CreatedBy)
	if db.IsUniqueViolation(err) {
		return ErrDuplicateDocument
	}
	return err
}

func collectStocks(rows pgx.Rows) ([]Stock, error) {
	stocks := []Stock{}
	for rows.Next() {
		s, err := scanStock(rows)
		if err != nil {
			return nil, err
		}
		stocks = append(stocks, s)
	}
	return stocks, rows.Err()
}
