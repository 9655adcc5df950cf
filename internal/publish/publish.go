// Package publish submits a channel publish job and polls it to a terminal state.
package publish

import (
	"context"
	"fmt"
	"time"

	"go.uber.org/zap"

	"github.com/oracle/content-and-experience-toolkit-sub002/internal/cms"
	"github.com/oracle/content-and-experience-toolkit-sub002/internal/metrics"
	"github.com/oracle/content-and-experience-toolkit-sub002/internal/poll"
)

// DefaultInterval is the cadence of job status polls.
const DefaultInterval = 5 * time.Second

// Monitor drives publish jobs through the broker's pseudo-RPC surface.
type Monitor struct {
	runner   cms.JobRunner
	interval time.Duration
	logger   *zap.Logger
}

// New constructs a Monitor. interval <= 0 selects DefaultInterval.
func New(runner cms.JobRunner, interval time.Duration, logger *zap.Logger) *Monitor {
	if interval <= 0 {
		interval = DefaultInterval
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Monitor{runner: runner, interval: interval, logger: logger}
}

// Publish submits a publish job for the channel and polls until a terminal
// state. An empty item set is a no-op success. A failed job surfaces the
// remote-provided detail as a *cms.JobError.
func (m *Monitor) Publish(ctx context.Context, channelID string, itemIDs []string) error {
	if len(itemIDs) == 0 {
		m.logger.Info("nothing to publish")
		return nil
	}
	jobID, err := m.runner.SubmitPublish(ctx, channelID, itemIDs)
	if err != nil {
		return fmt.Errorf("submit publish job: %w", err)
	}
	m.logger.Info("publish job submitted",
		zap.String("job_id", jobID), zap.Int("items", len(itemIDs)))

	job, err := poll.Until(ctx, poll.Config{Interval: m.interval}, func(ctx context.Context) (cms.PublishJob, bool, error) {
		metrics.ObserveJobPoll()
		job, err := m.runner.JobStatus(ctx, jobID)
		if err != nil {
			return cms.PublishJob{}, false, fmt.Errorf("poll publish job %s: %w", jobID, err)
		}
		if !job.Status.Terminal() {
			m.logger.Info("publish in progress",
				zap.String("job_id", jobID), zap.Int("percent", job.Percent))
			return job, false, nil
		}
		return job, true, nil
	})
	if err != nil {
		return err
	}
	if job.Status == cms.JobStatusFailed {
		return &cms.JobError{JobID: jobID, Message: job.Message}
	}
	m.logger.Info("publish job finished", zap.String("job_id", jobID))
	return nil
}
