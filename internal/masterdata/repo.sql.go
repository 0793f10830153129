package masterdata

import (
	"context"
	"errors"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/fabriq-erp/fabriq/internal/platform/db"
)

// Repository persists the catalogs in PostgreSQL. Each table carries a
// partial unique index on (company_id, code) WHERE deleted_at IS NULL.
type Repository struct {
	pool *pgxpool.Pool
}

// NewRepository constructs Repository.
func NewRepository(pool *pgxpool.Pool) *Repository {
	return &Repository{pool: pool}
}

const rawMaterialColumns = `id, tenant_id, company_id, code, name, unit_type, current_cost, minimum_stock, is_active,
created_at, COALESCE(created_by,''), updated_at, COALESCE(updated_by,''), deleted_at, COALESCE(deleted_by,'')`

const productColumns = `id, tenant_id, company_id, code, COALESCE(sku,''), description, unit_type, is_active,
created_at, COALESCE(created_by,''), updated_at, COALESCE(updated_by,''), deleted_at, COALESCE(deleted_by,'')`

const serviceColumns = `id, tenant_id, company_id, code, name, current_cost, is_active,
created_at, COALESCE(created_by,''), updated_at, COALESCE(updated_by,''), deleted_at, COALESCE(deleted_by,'')`

func (r *Repository) InsertRawMaterial(ctx context.Context, m RawMaterial) error {
	_, err := r.pool.Exec(ctx, `INSERT INTO raw_materials
(id, tenant_id, company_id, code, name, unit_type, current_cost, minimum_stock, is_active, created_at, created_by)
VALUES ($1,$2,$3,$4,$5,$6,$7,$8,$9,$10,$11)`,
		m.ID, m.TenantID, m.CompanyID, m.Code, m.Name, m.UnitType, m.CurrentCost, m.MinimumStock,
		m.IsActive, m.CreatedAt, m.CreatedBy)
	if db.IsUniqueViolation(err) {
		return ErrDuplicateCode
	}
	return err
}

func (r *Repository) UpdateRawMaterial(ctx context.Context, m RawMaterial) error {
	tag, err := r.pool.Exec(ctx, `UPDATE raw_materials SET
code=$2, name=$3, unit_type=$4, current_cost=$5, minimum_stock=$6, is_active=$7,
updated_at=$8, updated_by=NULLIF($9,''), deleted_at=$10, deleted_by=NULLIF($11,'')
WHERE id=$1`,
		m.ID, m.Code, m.Name, m.UnitType, m.CurrentCost, m.MinimumStock, m.IsActive,
		m.UpdatedAt, m.UpdatedBy, m.DeletedAt, m.DeletedBy)
	if db.IsUniqueViolation(err) {
		return ErrDuplicateCode
	}
	if err != nil {
		return err
	}
	if tag.RowsAffected() == 0 {
		return ErrRawMaterialNotFound
	}
	return nil
}

func (r *Repository) GetRawMaterial(ctx context.Context, id uuid.UUID) (RawMaterial, error) {
	var m RawMaterial
	err := r.pool.QueryRow(ctx, `SELECT `+rawMaterialColumns+` FROM raw_materials WHERE id=$1 AND deleted_at IS NULL`, id).
		Scan(&m.ID, &m.TenantID, &m.CompanyID, &m.Code, &m.Name, &m.UnitType, &m.CurrentCost, &m.MinimumStock,
			&m.IsActive, &m.CreatedAt, &m.CreatedBy, &m.UpdatedAt, &m.UpdatedBy, &m.DeletedAt, &m.DeletedBy)
	if errors.Is(err, pgx.ErrNoRows) {
		return RawMaterial{}, ErrRawMaterialNotFound
	}
	return m, err
}

func (r *Repository) ListRawMaterials(ctx context.Context, companyID uuid.UUID, onlyActive bool) ([]RawMaterial, error) {
	query := `SELECT ` + rawMaterialColumns + ` FROM raw_materials WHERE company_id=$1 AND deleted_at IS NULL`
	if onlyActive {
		query += ` AND is_active`
	}
	rows, err := r.pool.Query(ctx, query+` ORDER BY code`, companyID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	materials := []RawMaterial{}
	for rows.Next() {
		var m RawMaterial
		if err := rows.Scan(&m.ID, &m.TenantID, &m.CompanyID, &m.Code, &m.Name, &m.UnitType, &m.CurrentCost,
			&m.MinimumStock, &m.IsActive, &m.CreatedAt, &m.CreatedBy, &m.UpdatedAt, &m.UpdatedBy,
			&m.DeletedAt, &m.DeletedBy); err != nil {
			return nil, err
		}
		materials = append(materials, m)
	}
	return materials, rows.Err()
}

func (r *Repository) InsertProduct(ctx context.Context, p Product) error {
	_, err := r.pool.Exec(ctx, `INSERT INTO products
(id, tenant_id, company_id, code, sku, description, unit_type, is_active, created_at, created_by)
VALUES ($1,$2,$3,$4,NULLIF($5,''),$6,$7,$8,$9,$10)`,
		p.ID, p.TenantID, p.CompanyID, p.Code, p.SKU, p.Description, p.UnitType, p.IsActive,
		p.CreatedAt, p.CreatedBy)
	if db.IsUniqueViolation(err) {
		return ErrDuplicateCode
	}
	return err
}

func (r *Repository) UpdateProduct(ctx context.Context, p Product) error {
	tag, err := r.pool.Exec(ctx, `UPDATE products SET
code=$2, sku=NULLIF($3,''), description=$4, unit_type=$5, is_active=$6,
updated_at=$7, updated_by=NULLIF($8,''), deleted_at=$9, deleted_by=NULLIF($10,'')
WHERE id=$1`,
		p.ID, p.Code, p.SKU, p.Description, p.UnitType, p.IsActive,
		p.UpdatedAt, p.UpdatedBy, p.DeletedAt, p.DeletedBy)
	if db.IsUniqueViolation(err) {
		return ErrDuplicateCode
	}
	if err != nil {
		return err
	}
	if tag.RowsAffected() == 0 {
		return ErrProductNotFound
	}
	return nil
}

func (r *Repository) GetProduct(ctx context.Context, id uuid.UUID) (Product, error) {
	var p Product
	err := r.pool.QueryRow(ctx, `SELECT `+productColumns+` FROM products WHERE id=$1 AND deleted_at IS NULL`, id).
		Scan(&p.ID, &p.TenantID, &p.CompanyID, &p.Code, &p.SKU, &p.Description, &p.UnitType, &p.IsActive,
			&p.CreatedAt, &p.CreatedBy, &p.UpdatedAt, &p.UpdatedBy, &p.DeletedAt, &p.DeletedBy)
	if errors.Is(err, pgx.ErrNoRows) {
		return Product{}, ErrProductNotFound
	}
	return p, err
}

func (r *Repository) ListProducts(ctx context.Context, companyID uuid.UUID, onlyActive bool) ([]Product, error) {
	query := `SELECT ` + productColumns + ` FROM products WHERE company_id=$1 AND deleted_at IS NULL`
	if onlyActive {
		query += ` AND is_active`
	}
	rows, err := r.pool.Query(ctx, query+` ORDER BY code`, companyID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	products := []Product{}
	for rows.Next() {
		var p Product
		if err := rows.Scan(&p.ID, &p.TenantID, &p.CompanyID, &p.Code, &p.SKU, &p.Description, &p.UnitType,
			&p.IsActive, &p.CreatedAt, &p.CreatedBy, &p.UpdatedAt, &p.UpdatedBy, &p.DeletedAt, &p.DeletedBy); err != nil {
			return nil, err
		}
		products = append(products, p)
	}
	return products, rows.Err()
}

func (r *Repository) InsertService(ctx context.Context, s OutsourcedService) error {
	_, err := r.pool.Exec(ctx, `INSERT INTO outsourced_services
(id, tenant_id, company_id, code, name, current_cost, is_active, created_at, created_by)
VALUES ($1,$2,$3,$4,$5,$6,$7,$8,$9)`,
		s.ID, s.TenantID, s.CompanyID, s.Code, s.Name, s.CurrentCost, s.IsActive, s.CreatedAt, s.CreatedBy)
	if db.IsUniqueViolation(err) {
		return ErrDuplicateCode
	}
	return err
}

func (r *Repository) UpdateService(ctx context.Context, s OutsourcedService) error {
	tag, err := r.pool.Exec(ctx, `UPDATE outsourced_services SET
code=$2, name=$3, current_cost=$4, is_active=$5,
updated_at=$6, updated_by=NULLIF($7,''), deleted_at=$8, deleted_by=NULLIF($9,'')
WHERE id=$1`,
		s.ID, s.Code, s.Name, s.CurrentCost, s.IsActive,
		s.UpdatedAt, s.UpdatedBy, s.DeletedAt, s.DeletedBy)
	if db.IsUniqueViolation(err) {
		return ErrDuplicateCode
	}
	if err != nil {
		return err
	}
	if tag.RowsAffected() == 0 {
		return ErrServiceNotFound
	}
	return nil
}

func (r *Repository) GetService(ctx context.Context, id uuid.UUID) (OutsourcedService, error) {
	var s OutsourcedService
	err := r.pool.QueryRow(ctx, `SELECT `+serviceColumns+` FROM outsourced_services WHERE id=$1 AND deleted_at IS NULL`, id).
		Scan(&s.ID, &s.TenantID, &s.CompanyID, &s.Code, &s.Name, &s.CurrentCost, &s.IsActive,
			&s.CreatedAt, &s.CreatedBy, &s.UpdatedAt, &s.UpdatedBy, &s.DeletedAt, &s.DeletedBy)
	if errors.Is(err, pgx.ErrNoRows) {
		return OutsourcedService{}, ErrServiceNotFound
	}
	return s, err
}

func (r *Repository) ListServices(ctx context.Context, companyID uuid.UUID, onlyActive bool) ([]OutsourcedService, error) {
	query := `SELECT ` + serviceColumns + ` FROM outsourced_services WHERE company_id=$1 AND deleted_at IS NULL`
	if onlyActive {
		query += ` AND is_active`
	}
	rows, err := r.pool.Query(ctx, query+` ORDER BY code`, companyID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	services := []OutsourcedService{}
	for rows.Next() {
		var s OutsourcedService
		if err := rows.Scan(&s.ID, &s.TenantID, &s.CompanyID, &s.Code, &s.Name, &s.CurrentCost, &s.IsActive,
			&s.CreatedAt, &s.CreatedBy, &s.UpdatedAt, &s.UpdatedBy, &s.DeletedAt, &s.DeletedBy); err != nil {
			return nil, err
		}
		services = append(services, s)
	}
	return services, rows.Err()
}
