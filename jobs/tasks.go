package jobs

import (
	"encoding/json"

	"github.com/hibiken/asynq"
)

const (
	// QueueDefault is the default queue name for background jobs.
	QueueDefault = "default"
	// TaskLowStockScan flags raw materials whose available quantity fell
	// below their minimum stock.
	TaskLowStockScan = "stock:low_scan"
	// TaskIdempotencyCleanup purges processed movement document keys past
	// their retention.
	TaskIdempotencyCleanup = "maintenance:idempotency_gc"
)

// LowStockScanPayload scopes a scan to one tenant, or all when zero.
type LowStockScanPayload struct {
	TenantID string `json:"tenantId,omitempty"`
}

// NewLowStockScanTask constructs an Asynq task.
func NewLowStockScanTask(payload LowStockScanPayload) (*asynq.Task, error) {
	data, err := json.Marshal(payload)
	if err != nil {
		return nil, err
	}
	return asynq.NewTask(TaskLowStockScan, data), nil
}

// IdempotencyCleanupPayload controls the retention window in hours.
type IdempotencyCleanupPayload struct {
	RetentionHours int `json:"retentionHours"`
}

// NewIdempotencyCleanupTask constructs an Asynq task.
func NewIdempotencyCleanupTask(payload IdempotencyCleanupPayload) (*asynq.Task, error) {
	data, err := json.Marshal(payload)
	if err != nil {
		return nil, err
	}
	return asynq.NewTask(TaskIdempotencyCleanup, data), nil
}
