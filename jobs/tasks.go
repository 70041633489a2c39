package jobs

import (
	"encoding/json"
	"errors"
	"sort"
	"strings"

	"github.com/google/uuid"
	"github.com/hibiken/asynq"

	"github.com/odyssey-erp/koperasi/internal/integration"
)

const (
	// QueueDefault is the default queue name for background jobs.
	QueueDefault = "default"
	// TaskLedgerSyncBatch syncs a batch of cooperative transactions into the ledger.
	TaskLedgerSyncBatch = "ledger:sync_batch"
	// TaskGLIntegrity verifies the general ledger invariants.
	TaskGLIntegrity = "ledger:gl_integrity"
)

// batchNamespace seeds deterministic batch task ids.
var batchNamespace = uuid.MustParse("6f1c3e0a-8d7b-4b61-9a55-2f3f0f8e51c4")

// SyncBatchPayload carries the transactions of one batch.
type SyncBatchPayload struct {
	Transactions []integration.Transaction `json:"transactions"`
}

// GLIntegrityPayload selects the period to verify. Empty means the current period.
type GLIntegrityPayload struct {
	Period string `json:"period,omitempty"`
}

// BatchTaskID derives a stable task id from the batch's event ids, so
// enqueueing the same batch twice while the first is pending is rejected by
// asynq instead of running twice.
func BatchTaskID(txs []integration.Transaction) string {
	ids := make([]string, 0, len(txs))
	for _, tx := range txs {
		ids = append(ids, tx.EventID())
	}
	sort.Strings(ids)
	return "sync-" + uuid.NewSHA1(batchNamespace, []byte(strings.Join(ids, "\n"))).String()
}

// NewSyncBatchTask constructs the batch sync task.
func NewSyncBatchTask(txs []integration.Transaction) (*asynq.Task, error) {
	if len(txs) == 0 {
		return nil, errors.New("sync batch: no transactions")
	}
	data, err := json.Marshal(SyncBatchPayload{Transactions: txs})
	if err != nil {
		return nil, err
	}
	return asynq.NewTask(TaskLedgerSyncBatch, data, asynq.TaskID(BatchTaskID(txs)), asynq.MaxRetry(3)), nil
}

// NewGLIntegrityTask constructs the integrity check task.
func NewGLIntegrityTask(period string) (*asynq.Task, error) {
	data, err := json.Marshal(GLIntegrityPayload{Period: period})
	if err != nil {
		return nil, err
	}
	return asynq.NewTask(TaskGLIntegrity, data, asynq.MaxRetry(1)), nil
}
