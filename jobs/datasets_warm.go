package jobs

import (
	"context"
	"encoding/json"
	"errors"
	"log/slog"
	"time"

	"github.com/hibiken/asynq"

	jobmetrics "github.com/odyssey-erp/userdash/internal/jobs"
)

var defaultJobMetrics = jobmetrics.NewMetrics(nil)

// DatasetWarmer refreshes cached datasets.
type DatasetWarmer interface {
	Warm(ctx context.Context, names ...string) error
}

// DatasetsWarmJob keeps the dataset cache hot so page loads rarely wait on
// the remote backends.
type DatasetsWarmJob struct {
	Warmer  DatasetWarmer
	Logger  *slog.Logger
	Metrics *jobmetrics.Metrics
	Timeout time.Duration
}

// NewDatasetsWarmJob wires dependencies for the warmup handler.
func NewDatasetsWarmJob(warmer DatasetWarmer, logger *slog.Logger, metrics *jobmetrics.Metrics) *DatasetsWarmJob {
	return &DatasetsWarmJob{Warmer: warmer, Logger: logger, Metrics: metrics, Timeout: 30 * time.Second}
}

// Handle processes TaskDatasetsWarm tasks.
func (j *DatasetsWarmJob) Handle(ctx context.Context, t *asynq.Task) (resultErr error) {
	if j == nil || j.Warmer == nil {
		return errors.New("datasets warm: handler not configured")
	}
	var payload DatasetsWarmPayload
	if len(t.Payload()) > 0 {
		if err := json.Unmarshal(t.Payload(), &payload); err != nil {
			return asynq.SkipRetry
		}
	}

	tracker := j.metrics().Track(TaskDatasetsWarm)
	defer func() {
		resultErr = tracker.End(resultErr)
	}()

	logger := j.logger().With(slog.Any("datasets", payload.Datasets))
	start := time.Now()
	logger.Info("starting datasets warmup")

	timeout := j.Timeout
	if timeout <= 0 {
		timeout = 30 * time.Second
	}
	warmCtx, cancel := context.WithTimeout(ctx, timeout)
	defer cancel()

	if err := j.Warmer.Warm(warmCtx, payload.Datasets...); err != nil {
		logger.Error("datasets warmup failed", slog.Any("error", err))
		return err
	}
	logger.Info("completed datasets warmup", slog.Duration("duration", time.Since(start)))
	return nil
}

func (j *DatasetsWarmJob) logger() *slog.Logger {
	if j.Logger != nil {
		return j.Logger.With(slog.String("job", TaskDatasetsWarm))
	}
	return slog.Default().With(slog.String("job", TaskDatasetsWarm))
}

func (j *DatasetsWarmJob) metrics() *jobmetrics.Metrics {
	if j.Metrics != nil {
		return j.Metrics
	}
	return defaultJobMetrics
}
