package procurement

import (
	"context"
	"errors"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/fabriq-erp/fabriq/internal/platform/db"
)

// Repository persists buy services in PostgreSQL. Document codes carry
// a partial unique index on (company_id, code) WHERE deleted_at IS NULL.
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
		return errors.New("procurement repository not initialised")
	}
	return db.WithTx(ctx, r.pool, func(tx pgx.Tx) error {
		return fn(ctx, &txRepository{tx: tx})
	})
}

const buyServiceColumns = `id, tenant_id, company_id, code, supplier_id, status, total_amount,
COALESCE(approved_by,''), approved_at, COALESCE(closed_by,''), closed_at, COALESCE(notes,''),
created_at, COALESCE(created_by,''), updated_at, COALESCE(updated_by,''), deleted_at, COALESCE(deleted_by,'')`

const itemColumns = `id, tenant_id, company_id, buy_service_id, service_id, quantity, unit_cost, total_cost,
COALESCE(notes,''), created_at, COALESCE(created_by,''), updated_at, COALESCE(updated_by,''), deleted_at, COALESCE(deleted_by,'')`

func scanBuyService(row pgx.Row) (BuyService, error) {
	var b BuyService
	err := row.Scan(&b.ID, &b.TenantID, &b.CompanyID, &b.Code, &b.SupplierID, &b.Status, &b.TotalAmount,
		&b.ApprovedBy, &b.ApprovedAt, &b.ClosedBy, &b.ClosedAt, &b.Notes,
		&b.CreatedAt, &b.CreatedBy, &b.UpdatedAt, &b.UpdatedBy, &b.DeletedAt, &b.DeletedBy)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return BuyService{}, ErrBuyServiceNotFound
		}
		return BuyService{}, err
	}
	return b, nil
}

func scanItem(row pgx.Row) (Item, error) {
	var i Item
	err := row.Scan(&i.ID, &i.TenantID, &i.CompanyID, &i.BuyServiceID, &i.ServiceID,
		&i.Quantity, &i.UnitCost, &i.TotalCost, &i.Notes,
		&i.CreatedAt, &i.CreatedBy, &i.UpdatedAt, &i.UpdatedBy, &i.DeletedAt, &i.DeletedBy)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return Item{}, ErrItemNotFound
		}
		return Item{}, err
	}
	return i, nil
}

func (r *Repository) GetBuyService(ctx context.Context, id uuid.UUID) (BuyService, error) {
	row := r.pool.QueryRow(ctx, `SELECT `+buyServiceColumns+` FROM buy_services WHERE id=$1 AND deleted_at IS NULL`, id)
	return scanBuyService(row)
}

func (r *Repository) ListByCompany(ctx context.Context, companyID uuid.UUID, status Status) ([]BuyService, error) {
	query := `SELECT ` + buyServiceColumns + ` FROM buy_services WHERE company_id=$1 AND deleted_at IS NULL`
	args := []any{companyID}
	if status != "" {
		query += ` AND status=$2`
		args = append(args, string(status))
	}
	query += ` ORDER BY created_at DESC`
	rows, err := r.pool.Query(ctx, query, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	return collectBuyServices(rows)
}

func (r *Repository) GetItem(ctx context.Context, id uuid.UUID) (Item, error) {
	row := r.pool.QueryRow(ctx, `SELECT `+itemColumns+` FROM buy_service_items WHERE id=$1 AND deleted_at IS NULL`, id)
	return scanItem(row)
}

func (r *Repository) ListItems(ctx context.Context, buyServiceID uuid.UUID) ([]Item, error) {
	rows, err := r.pool.Query(ctx, `SELECT `+itemColumns+` FROM buy_service_items
WHERE buy_service_id=$1 AND deleted_at IS NULL ORDER BY created_at`, buyServiceID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	return collectItems(rows)
}

func (r *txRepository) GetBuyServiceForUpdate(ctx context.Context, id uuid.UUID) (BuyService, error) {
	row := r.tx.QueryRow(ctx, `SELECT `+buyServiceColumns+` FROM buy_services WHERE id=$1 AND deleted_at IS NULL FOR UPDATE`, id)
	return scanBuyService(row)
}

func (r *txRepository) InsertBuyService(ctx context.Context, b BuyService) error {
	_, err := r.tx.Exec(ctx, `INSERT INTO buy_services
(id, tenant_id, company_id, code, supplier_id, status, total_amount, notes, created_at, created_by)
VALUES ($1,$2,$3,$4,$5,$6,$7,NULLIF($8,''),$9,$10)`,
		b.ID, b.TenantID, b.CompanyID, b.Code, b.SupplierID, string(b.Status), b.TotalAmount,
		b.Notes, b.CreatedAt, b.CreatedBy)
	if db.IsUniqueViolation(err) {
		return ErrDuplicateCode
	}
	return err
}

func (r *txRepository) UpdateBuyService(ctx context.Context, b BuyService) error {
	tag, err := r.tx.Exec(ctx, `UPDATE buy_services SET
supplier_id=$2, status=$3, total_amount=$4, approved_by=NULLIF($5,''), approved_at=$6,
closed_by=NULLIF($7,''), closed_at=$8, notes=NULLIF($9,''), updated_at=$10, updated_by=NULLIF($11,''),
deleted_at=$12, deleted_by=NULLIF($13,'')
WHERE id=$1`,
		b.ID, b.SupplierID, string(b.Status), b.TotalAmount, b.ApprovedBy, b.ApprovedAt,
		b.ClosedBy, b.ClosedAt, b.Notes, b.UpdatedAt, b.UpdatedBy, b.DeletedAt, b.DeletedBy)
	if err != nil {
		return err
	}
	if tag.RowsAffected() == 0 {
		return ErrBuyServiceNotFound
	}
	return nil
}

func (r *txRepository) GetItemForUpdate(ctx context.Context, id uuid.UUID) (Item, error) {
	row := r.tx.QueryRow(ctx, `SELECT `+itemColumns+` FROM buy_service_items WHERE id=$1 AND deleted_at IS NULL FOR UPDATE`, id)
	return scanItem(row)
}

func (r *txRepository) InsertItem(ctx context.Context, item Item) error {
	_, err := r.tx.Exec(ctx, `INSERT INTO buy_service_items
(id, tenant_id, company_id, buy_service_id, service_id, quantity, unit_cost, total_cost, notes, created_at, created_by)
VALUES ($1,$2,$3,$4,$5,$6,$7,$8,NULLIF($9,''),$10,$11)`,
		item.ID, item.TenantID, item.CompanyID, item.BuyServiceID, item.ServiceID,
		item.Quantity, item.UnitCost, item.TotalCost, item.Notes, item.CreatedAt, item.CreatedBy)
	return err
}

func (r *txRepository) UpdateItem(ctx context.Context, item Item) error {
	tag, err := r.tx.Exec(ctx, `UPDATE buy_service_items SET
service_id=$2, quantity=$3, unit_cost=$4, total_cost=$5, notes=NULLIF($6,''),
updated_at=$7, updated_by=NULLIF($8,''), deleted_at=$9, deleted_by=NULLIF($10,'')
WHERE id=$1`,
		item.ID, item.ServiceID, item.Quantity, item.UnitCost, item.TotalCost, item.Notes,
		item.UpdatedAt, item.UpdatedBy, item.DeletedAt, item.DeletedBy)
	if err != nil {
		return err
	}
	if tag.RowsAffected() == 0 {
		return ErrItemNotFound
	}
	return nil
}

func (r *txRepository) ListItems(ctx context.Context, buyServiceID uuid.UUID) ([]Item, error) {
	rows, err := r.tx.Query(ctx, `SELECT `+itemColumns+` FROM buy_service_items
WHERE buy_service_id=$1 AND deleted_at IS NULL ORDER BY created_at`, buyServiceID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	return collectItems(rows)
}

func collectBuyServices(rows pgx.Rows) ([]BuyService, error) {
	docs := []BuyService{}
	for rows.Next() {
		b, err := scanBuyService(rows)
		if err != nil {
			return nil, err
		}
		docs = append(docs, b)
	}
	return docs, rows.Err()
}

func collectItems(rows pgx.Rows) ([]Item, error) {
	items := []Item{}
	for rows.Next() {
		i, err := scanItem(rows)
		if err != nil {
			return nil, err
		}
		items = append(items, i)
	}
	return items, rows.Err()
}
