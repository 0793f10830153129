package jobs

import (
	"context"
	"encoding/json"
	"errors"
	"log/slog"
	"time"

	"github.com/hibiken/asynq"
	"github.com/jackc/pgx/v5/pgxpool"
)

// LowStockScanJob walks raw material positions and logs every material
// whose available quantity sits below its configured minimum.
type LowStockScanJob struct {
	Pool   *pgxpool.Pool
	Logger *slog.Logger
	clock  func() time.Time
}

// NewLowStockScanJob initialises the low stock scan handler.
func NewLowStockScanJob(pool *pgxpool.Pool, logger *slog.Logger) *LowStockScanJob {
	return &LowStockScanJob{
		Pool:   pool,
		Logger: logger,
		clock: func() time.Time {
			return time.Now().UTC()
		},
	}
}

type lowStockRow struct {
	CompanyID    string
	MaterialID   string
	MaterialCode string
	MaterialName string
	Available    string
	MinimumStock string
}

// Handle executes the low stock scan.
func (j *LowStockScanJob) Handle(ctx context.Context, t *asynq.Task) error {
	if j == nil {
		return errors.New("low stock scan: handler not configured")
	}
	var payload LowStockScanPayload
	if err := json.Unmarshal(t.Payload(), &payload); err != nil {
		return asynq.SkipRetry
	}

	start := j.now()
	logger := j.logger()
	logger.Info("starting low stock scan", slog.String("tenant_id", payload.TenantID))

	rows, err := j.scan(ctx, payload.TenantID)
	if err != nil {
		logger.Error("scan failed", slog.Any("error", err))
		return err
	}

	for _, row := range rows {
		logger.Warn("raw material below minimum stock",
			slog.String("company_id", row.CompanyID),
			slog.String("material_id", row.MaterialID),
			slog.String("material_code", row.MaterialCode),
			slog.String("material_name", row.MaterialName),
			slog.String("available", row.Available),
			slog.String("minimum_stock", row.MinimumStock),
		)
	}

	logger.Info("completed low stock scan",
		slog.Int("flagged", len(rows)),
		slog.Duration("duration", time.Since(start)),
	)
	return nil
}

func (j *LowStockScanJob) scan(ctx context.Context, tenantID string) ([]lowStockRow, error) {
	if j.Pool == nil {
		return nil, errors.New("low stock scan: pool not configured")
	}
	query := `SELECT s.company_id, m.id, m.code, m.name,
(s.quantity - s.reserved_quantity)::text, m.minimum_stock::text
FROM raw_material_stocks s
JOIN raw_materials m ON m.id = s.raw_material_id
WHERE s.deleted_at IS NULL AND m.deleted_at IS NULL AND m.is_active
AND s.quantity - s.reserved_quantity < m.minimum_stock`
	args := []any{}
	if tenantID != "" {
		query += ` AND s.tenant_id = $1`
		args = append(args, tenantID)
	}
	rows, err := j.Pool.Query(ctx, query, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	flagged := []lowStockRow{}
	for rows.Next() {
		var row lowStockRow
		if err := rows.Scan(&row.CompanyID, &row.MaterialID, &row.MaterialCode,
			&row.MaterialName, &row.Available, &row.MinimumStock); err != nil {
			return nil, err
		}
		flagged = append(flagged, row)
	}
	return flagged, rows.Err()
}

func (j *LowStockScanJob) logger() *slog.Logger {
	if j.Logger != nil {
		return j.Logger.With(slog.String("job", TaskLowStockScan))
	}
	return slog.Default().With(slog.String("job", TaskLowStockScan))
}

func (j *LowStockScanJob) now() time.Time {
	if j.clock != nil {
		return j.clock()
	}
	return time.Now().UTC()
}
