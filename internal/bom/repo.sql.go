package bom

import (
	"context"
	"errors"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/fabriq-erp/fabriq/internal/platform/db"
)

// Repository persists compositions in PostgreSQL.
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
		return errors.New("bom repository not initialised")
	}
	return db.WithTx(ctx, r.pool, func(tx pgx.Tx) error {
		return fn(ctx, &txRepository{tx: tx})
	})
}

const compositionColumns = `id, tenant_id, company_id, product_id, name, version, effective_date, expiration_date,
is_active, COALESCE(notes,''), COALESCE(approved_by,''), approved_at, total_cost,
created_at, COALESCE(created_by,''), updated_at, COALESCE(updated_by,''), deleted_at, COALESCE(deleted_by,'')`

const itemColumns = `id, tenant_id, company_id, composition_id, item_type, reference_id, sequence, unit_type,
quantity, loss_percentage, unit_cost, total_cost, is_optional, COALESCE(notes,''),
created_at, COALESCE(created_by,''), updated_at, COALESCE(updated_by,''), deleted_at, COALESCE(deleted_by,'')`

func scanComposition(row pgx.Row) (Composition, error) {
	var c Composition
	err := row.Scan(&c.ID, &c.TenantID, &c.CompanyID, &c.ProductID, &c.Name, &c.Version,
		&c.EffectiveDate, &c.ExpirationDate, &c.IsActive, &c.Notes, &c.ApprovedBy, &c.ApprovedAt,
		&c.TotalCost, &c.CreatedAt, &c.CreatedBy, &c.UpdatedAt, &c.UpdatedBy, &c.DeletedAt, &c.DeletedBy)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return Composition{}, ErrCompositionNotFound
		}
		return Composition{}, err
	}
	return c, nil
}

func scanItem(row pgx.Row) (Item, error) {
	var i Item
	err := row.Scan(&i.ID, &i.TenantID, &i.CompanyID, &i.CompositionID, &i.ItemType, &i.ReferenceID,
		&i.Sequence, &i.UnitType, &i.Quantity, &i.LossPercentage, &i.UnitCost, &i.TotalCost,
		&i.IsOptional, &i.Notes, &i.CreatedAt, &i.CreatedBy, &i.UpdatedAt, &i.UpdatedBy, &i.DeletedAt, &i.DeletedBy)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return Item{}, ErrItemNotFound
		}
		return Item{}, err
	}
	return i, nil
}

func (r *Repository) GetComposition(ctx context.Context, id uuid.UUID) (Composition, error) {
	row := r.pool.QueryRow(ctx, `SELECT `+compositionColumns+` FROM compositions WHERE id=$1 AND deleted_at IS NULL`, id)
	return scanComposition(row)
}

func (r *Repository) ListByCompany(ctx context.Context, companyID uuid.UUID, onlyActive bool) ([]Composition, error) {
	query := `SELECT ` + compositionColumns + ` FROM compositions WHERE company_id=$1 AND deleted_at IS NULL`
	if onlyActive {
		query += ` AND is_active`
	}
	query += ` ORDER BY name, version`
	rows, err := r.pool.Query(ctx, query, companyID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	return collectCompositions(rows)
}

func (r *Repository) ListByProduct(ctx context.Context, productID uuid.UUID) ([]Composition, error) {
	rows, err := r.pool.Query(ctx, `SELECT `+compositionColumns+` FROM compositions
WHERE product_id=$1 AND deleted_at IS NULL ORDER BY version DESC`, productID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	return collectCompositions(rows)
}

func (r *Repository) GetItem(ctx context.Context, id uuid.UUID) (Item, error) {
	row := r.pool.QueryRow(ctx, `SELECT `+itemColumns+` FROM composition_items WHERE id=$1 AND deleted_at IS NULL`, id)
	return scanItem(row)
}

func (r *Repository) ListItems(ctx context.Context, compositionID uuid.UUID) ([]Item, error) {
	rows, err := r.pool.Query(ctx, `SELECT `+itemColumns+` FROM composition_items
WHERE composition_id=$1 AND deleted_at IS NULL ORDER BY sequence, created_at`, compositionID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	return collectItems(rows)
}

func (r *txRepository) GetCompositionForUpdate(ctx context.Context, id uuid.UUID) (Composition, error) {
	row := r.tx.QueryRow(ctx, `SELECT `+compositionColumns+` FROM compositions WHERE id=$1 AND deleted_at IS NULL FOR UPDATE`, id)
	return scanComposition(row)
}

func (r *txRepository) InsertComposition(ctx context.Context, c Composition) error {
	_, err := r.tx.Exec(ctx, `INSERT INTO compositions
(id, tenant_id, company_id, product_id, name, version, effective_date, expiration_date, is_active, notes, approved_by, approved_at, total_cost, created_at, created_by)
VALUES ($1,$2,$3,$4,$5,$6,$7,$8,$9,$10,NULLIF($11,''),$12,$13,$14,$15)`,
		c.ID, c.TenantID, c.CompanyID, c.ProductID, c.Name, c.Version, c.EffectiveDate, c.ExpirationDate,
		c.IsActive, c.Notes, c.ApprovedBy, c.ApprovedAt, c.TotalCost, c.CreatedAt, c.CreatedBy)
	if db.IsUniqueViolation(err) {
		return ErrDuplicateVersion
	}
	return err
}

func (r *txRepository) UpdateComposition(ctx context.Context, c Composition) error {
	tag, err := r.tx.Exec(ctx, `UPDATE compositions SET
product_id=$2, name=$3, version=$4, effective_date=$5, expiration_date=$6, is_active=$7, notes=$8,
approved_by=NULLIF($9,''), approved_at=$10, total_cost=$11, updated_at=$12, updated_by=NULLIF($13,''),
deleted_at=$14, deleted_by=NULLIF($15,'')
WHERE id=$1`,
		c.ID, c.ProductID, c.Name, c.Version, c.EffectiveDate, c.ExpirationDate, c.IsActive, c.Notes,
		c.ApprovedBy, c.ApprovedAt, c.TotalCost, c.UpdatedAt, c.UpdatedBy, c.DeletedAt, c.DeletedBy)
	if db.IsUniqueViolation(err) {
		return ErrDuplicateVersion
	}
	if err != nil {
		return err
	}
	if tag.RowsAffected() == 0 {
		return ErrCompositionNotFound
	}
	return nil
}

func (r *txRepository) GetItemForUpdate(ctx context.Context, id uuid.UUID) (Item, error) {
	row := r.tx.QueryRow(ctx, `SELECT `+itemColumns+` FROM composition_items WHERE id=$1 AND deleted_at IS NULL FOR UPDATE`, id)
	return scanItem(row)
}

func (r *txRepository) InsertItem(ctx context.Context, item Item) error {
	_, err := r.tx.Exec(ctx, `INSERT INTO composition_items
(id, tenant_id, company_id, composition_id, item_type, reference_id, sequence, unit_type, quantity, loss_percentage, unit_cost, total_cost, is_optional, notes, created_at, created_by)
VALUES ($1,$2,$3,$4,$5,$6,$7,$8,$9,$10,$11,$12,$13,$14,$15,$16)`,
		item.ID, item.TenantID, item.CompanyID, item.CompositionID, string(item.ItemType), item.ReferenceID,
		item.Sequence, item.UnitType, item.Quantity, item.LossPercentage, item.UnitCost, item.TotalCost,
		item.IsOptional, item.Notes, item.CreatedAt, item.CreatedBy)
	return err
}

func (r *txRepository) UpdateItem(ctx context.Context, item Item) error {
	tag, err := r.tx.Exec(ctx, `UPDATE composition_items SET
item_type=$2, reference_id=$3, sequence=$4, unit_type=$5, quantity=$6, loss_percentage=$7,
unit_cost=$8, total_cost=$9, is_optional=$10, notes=$11, updated_at=$12, updated_by=NULLIF($13,''),
deleted_at=$14, deleted_by=NULLIF($15,'')
WHERE id=$1`,
		item.ID, string(item.ItemType), item.ReferenceID, item.Sequence, item.UnitType, item.Quantity,
		item.LossPercentage, item.UnitCost, item.TotalCost, item.IsOptional, item.Notes,
		item.UpdatedAt, item.UpdatedBy, item.DeletedAt, item.DeletedBy)
	if err != nil {
		return err
	}
	if tag.RowsAffected() == 0 {
		return ErrItemNotFound
	}
	return nil
}

func (r *txRepository) ListItems(ctx context.Context, compositionID uuid.UUID) ([]Item, error) {
	rows, err := r.tx.Query(ctx, `SELECT `+itemColumns+` FROM composition_items
WHERE composition_id=$1 AND deleted_at IS NULL ORDER BY sequence, created_at`, compositionID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	return collectItems(rows)
}

func collectCompositions(rows pgx.Rows) ([]Composition, error) {
	comps := []Composition{}
	for rows.Next() {
		c, err := scanComposition(rows)
		if err != nil {
			return nil, err
		}
		comps = append(comps, c)
	}
	return comps, rows.Err()
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
