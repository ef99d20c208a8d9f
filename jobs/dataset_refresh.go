package jobs

import (
	"context"
	"encoding/json"
	"errors"
	"log/slog"
	"time"

	"github.com/hibiken/asynq"

	"github.com/odyssey-erp/odyssey-receivables/internal/ingest"
	jobmetrics "github.com/odyssey-erp/odyssey-receivables/internal/jobs"
)

var defaultJobMetrics = jobmetrics.NewMetrics(nil)

const refreshTimeout = 2 * time.Minute

// DatasetRefresher reloads the ledgers.
type DatasetRefresher interface {
	Refresh(ctx context.Context) (ingest.RefreshResult, error)
}

// DatasetRefreshJob reloads both ledgers and bumps the cache version when
// their content changed.
type DatasetRefreshJob struct {
	Refresher DatasetRefresher
	Logger    *slog.Logger
	Metrics   *jobmetrics.Metrics
}

// NewDatasetRefreshJob wires dependencies for the refresh handler.
func NewDatasetRefreshJob(refresher DatasetRefresher, logger *slog.Logger, metrics *jobmetrics.Metrics) *DatasetRefreshJob {
	return &DatasetRefreshJob{Refresher: refresher, Logger: logger, Metrics: metrics}
}

// Handle processes TaskDatasetRefresh tasks.
func (j *DatasetRefreshJob) Handle(ctx context.Context, t *asynq.Task) error {
	if j == nil || j.Refresher == nil {
		return errors.New("dataset refresh: handler not configured")
	}
	var payload DatasetRefreshPayload
	if err := json.Unmarshal(t.Payload(), &payload); err != nil {
		return asynq.SkipRetry
	}

	tracker := j.metrics().Track(TaskDatasetRefresh)
	var resultErr error
	defer func() {
		resultErr = tracker.End(resultErr)
	}()

	logger := j.logger().With(slog.String("reason", payload.Reason))
	start := time.Now()

	refreshCtx, cancel := context.WithTimeout(ctx, refreshTimeout)
	defer cancel()
	result, err := j.Refresher.Refresh(refreshCtx)
	if err != nil {
		resultErr = err
		logger.Error("refresh dataset", slog.Any("error", err))
		return resultErr
	}
	j.metrics().ObserveRefresh(result.Changed, result.Rows)

	logger.Info("completed dataset refresh",
		slog.Bool("changed", result.Changed),
		slog.String("fingerprint", result.Fingerprint),
		slog.Int64("version", result.Version),
		slog.Int("rows", result.Rows),
		slog.Duration("duration", time.Since(start)),
	)
	return resultErr
}

func (j *DatasetRefreshJob) logger() *slog.Logger {
	if j.Logger != nil {
		return j.Logger.With(slog.String("job", TaskDatasetRefresh))
	}
	return slog.Default().With(slog.String("job", TaskDatasetRefresh))
}

func (j *DatasetRefreshJob) metrics() *jobmetrics.Metrics {
	if j.Metrics != nil {
		return j.Metrics
	}
	return defaultJobMetrics
}
