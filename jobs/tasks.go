package jobs

import (
	"encoding/json"

	"github.com/hibiken/asynq"

	jobmetrics "github.com/kegline/kegline/internal/jobs"
)

var defaultJobMetrics = jobmetrics.NewMetrics(nil)

const (
	// QueueDefault is the queue all background tasks run on.
	QueueDefault = "default"

	// TaskLedgerIntegrity replays customer credit chains and reports
	// entries whose recorded balance disagrees with the replay.
	TaskLedgerIntegrity = "ledger:integrity"

	// TaskIdempotencyCleanup purges idempotency keys past their retention.
	TaskIdempotencyCleanup = "idempotency:cleanup"
)

// LedgerIntegrityPayload scopes an integrity scan. CustomerID zero means
// scan every customer with ledger entries.
type LedgerIntegrityPayload struct {
	CustomerID int64 `json:"customer_id,omitempty"`
}

// IdempotencyCleanupPayload optionally overrides the configured retention.
type IdempotencyCleanupPayload struct {
	RetentionHours int `json:"retention_hours,omitempty"`
}

// NewLedgerIntegrityTask builds the asynq task for a ledger scan.
func NewLedgerIntegrityTask(payload LedgerIntegrityPayload) (*asynq.Task, error) {
	data, err := json.Marshal(payload)
	if err != nil {
		return nil, err
	}
	return asynq.NewTask(TaskLedgerIntegrity, data), nil
}

// NewIdempotencyCleanupTask builds the asynq task for key cleanup.
func NewIdempotencyCleanupTask(payload IdempotencyCleanupPayload) (*asynq.Task, error) {
	data, err := json.Marshal(payload)
	if err != nil {
		return nil, err
	}
	return asynq.NewTask(TaskIdempotencyCleanup, data), nil
}
