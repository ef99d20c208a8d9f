package jobs

import (
	"encoding/json"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/hibiken/asynq"
)

const (
	// QueueDefault is the default queue name for background jobs.
	QueueDefault = "default"
	// TaskDatasetRefresh re-fetches both ledgers and invalidates stale cache entries.
	TaskDatasetRefresh = "receivables:dataset:refresh"
)

// Refresh reasons recorded in the payload.
const (
	ReasonSchedule = "schedule"
	ReasonManual   = "manual"
)

// refreshWindow collapses manual refresh requests issued within the same
// window into one task.
const refreshWindow = time.Minute

// DatasetRefreshPayload describes why a refresh was requested.
type DatasetRefreshPayload struct {
	Reason      string    `json:"reason"`
	RequestedAt time.Time `json:"requested_at"`
}

// NewDatasetRefreshTask constructs the refresh task.
func NewDatasetRefreshTask(reason string, requestedAt time.Time) (*asynq.Task, error) {
	reason = strings.TrimSpace(reason)
	if reason == "" {
		reason = ReasonSchedule
	}
	data, err := json.Marshal(DatasetRefreshPayload{Reason: reason, RequestedAt: requestedAt.UTC()})
	if err != nil {
		return nil, err
	}
	return asynq.NewTask(TaskDatasetRefresh, data), nil
}

// RefreshTaskID derives a stable task identifier for requests falling in the
// same minute, so that asynq rejects duplicates.
func RefreshTaskID(requestedAt time.Time) string {
	slot := requestedAt.UTC().Truncate(refreshWindow).Format(time.RFC3339)
	return uuid.NewSHA1(uuid.Nil, []byte(fmt.Sprintf("REFRESH:%s", slot))).String()
}
