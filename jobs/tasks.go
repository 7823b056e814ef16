package jobs

import (
	"context"
	"encoding/json"

	"github.com/hibiken/asynq"

	"github.com/wildhaven/wildhaven/internal/audit"
	jobmetrics "github.com/wildhaven/wildhaven/internal/jobs"
)

const (
	// QueueDefault is the default queue name for background jobs.
	QueueDefault = "default"
	// TaskTypeAuditWrite is the task type for persisting audit entries.
	TaskTypeAuditWrite = "audit:write"
)

// NewAuditWriteTask constructs an Asynq task carrying one audit entry.
func NewAuditWriteTask(e audit.Entry) (*asynq.Task, error) {
	data, err := json.Marshal(e)
	if err != nil {
		return nil, err
	}
	return asynq.NewTask(TaskTypeAuditWrite, data), nil
}

// AuditWriteHandler processes TaskTypeAuditWrite tasks through the sink.
func AuditWriteHandler(sink *audit.Sink, metrics *jobmetrics.Metrics) asynq.HandlerFunc {
	return func(ctx context.Context, t *asynq.Task) error {
		tracker := metrics.Track(TaskTypeAuditWrite)
		var e audit.Entry
		if err := json.Unmarshal(t.Payload(), &e); err != nil {
			_ = tracker.End(err)
			return asynq.SkipRetry
		}
		sink.Write(ctx, e)
		return tracker.End(nil)
	}
}
