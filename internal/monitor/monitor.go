// Package monitor watches the job store for stuck jobs and failure spikes
// and records alerts. It never changes job state.
package monitor

import (
	"context"
	"encoding/json"
	"fmt"
	"sync"
	"time"

	"github.com/joshu-sajeev/wastewise/internal/config"
	"github.com/joshu-sajeev/wastewise/internal/logger"
	"github.com/joshu-sajeev/wastewise/internal/models"
	"github.com/sirupsen/logrus"
	"gorm.io/datatypes"
	"k8s.io/apimachinery/pkg/util/wait"
)

type JobSource interface {
	ListStuck(ctx context.Context, threshold time.Duration) ([]models.Job, error)
	CountOutcomes(ctx context.Context, since time.Time) (models.JobOutcomeCounts, error)
	Now() time.Time
}

type AlertSink interface {
	Append(ctx context.Context, alert *models.Alert) error
}

// Liveness answers whether a worker is still heartbeating.
type Liveness interface {
	Alive(ctx context.Context, workerID string) (bool, error)
}

type Config struct {
	StuckThreshold      time.Duration
	StuckInterval       time.Duration
	ErrorRateWindow     time.Duration
	ErrorRateInterval   time.Duration
	ErrorRateThreshold  float64
	ErrorRateMinSamples int
}

// ConfigFrom maps the worker process settings onto the monitor.
func ConfigFrom(c *config.WorkerConfig) Config {
	return Config{
		StuckThreshold:      c.StuckThreshold,
		StuckInterval:       c.StuckSweepInterval,
		ErrorRateWindow:     c.ErrorRateWindow,
		ErrorRateInterval:   c.ErrorRateSweepInterval,
		ErrorRateThreshold:  c.ErrorRateThreshold,
		ErrorRateMinSamples: c.ErrorRateMinSamples,
	}
}

type Monitor struct {
	cfg      Config
	jobs     JobSource
	sink     AlertSink
	liveness Liveness
	log      logrus.FieldLogger
}

// New builds a monitor. liveness may be nil when no heartbeat store is
// configured.
func New(cfg Config, jobs JobSource, sink AlertSink, liveness Liveness, log logrus.FieldLogger) *Monitor {
	return &Monitor{
		cfg:      cfg,
		jobs:     jobs,
		sink:     sink,
		liveness: liveness,
		log:      logger.WithComponent(log, "monitor"),
	}
}

// Run sweeps on both intervals until ctx is cancelled.
func (m *Monitor) Run(ctx context.Context) {
	m.log.WithFields(logrus.Fields{
		"stuck_threshold": m.cfg.StuckThreshold,
		"error_window":    m.cfg.ErrorRateWindow,
	}).Info("monitor started")

	var wg sync.WaitGroup
	wg.Add(2)
	go func() {
		defer wg.Done()
		wait.UntilWithContext(ctx, func(ctx context.Context) {
			if _, err := m.CheckStuck(ctx); err != nil && ctx.Err() == nil {
				m.log.WithError(err).Warn("stuck job sweep failed")
			}
		}, m.cfg.StuckInterval)
	}()
	go func() {
		defer wg.Done()
		wait.UntilWithContext(ctx, func(ctx context.Context) {
			if _, err := m.CheckErrorRate(ctx); err != nil && ctx.Err() == nil {
				m.log.WithError(err).Warn("error rate sweep failed")
			}
		}, m.cfg.ErrorRateInterval)
	}()
	wg.Wait()

	m.log.Info("monitor stopped")
}

// CheckStuck appends one stuck_job alert per job processing longer than the
// threshold and returns how many it raised.
func (m *Monitor) CheckStuck(ctx context.Context) (int, error) {
	stuck, err := m.jobs.ListStuck(ctx, m.cfg.StuckThreshold)
	if err != nil {
		return 0, err
	}

	now := m.jobs.Now()
	raised := 0
	for _, j := range stuck {
		since := now.Sub(*j.StartedAt)
		meta := map[string]any{
			"workerId":        j.WorkerID,
			"startedAt":       j.StartedAt.UTC(),
			"stuckForSeconds": int64(since.Seconds()),
			"currentStep":     j.CurrentStep,
			"percent":         j.Percent,
		}
		if alive, ok := m.workerAlive(ctx, j.WorkerID); ok {
			meta["workerAlive"] = alive
		}

		id := j.ID
		alert := &models.Alert{
			Type:     config.AlertTypeStuckJob,
			Severity: config.SeverityWarning,
			Message:  fmt.Sprintf("job %s has been processing for %s", j.ID, since.Round(time.Second)),
			JobID:    &id,
			Metadata: mustJSON(meta),
		}
		if err := m.sink.Append(ctx, alert); err != nil {
			return raised, err
		}
		raised++

		logger.WithJob(m.log, j.ID, string(j.JobType)).WithFields(logrus.Fields{
			"worker_id":    j.WorkerID,
			"stuck_for":    since.Round(time.Second),
			"alert_id":     alert.ID,
			"step":         j.CurrentStep,
			"worker_alive": meta["workerAlive"],
		}).Warn("stuck job detected")
	}
	return raised, nil
}

func (m *Monitor) workerAlive(ctx context.Context, workerID string) (bool, bool) {
	if m.liveness == nil || workerID == "" {
		return false, false
	}
	alive, err := m.liveness.Alive(ctx, workerID)
	if err != nil {
		m.log.WithError(err).WithField("worker_id", workerID).Debug("heartbeat lookup failed")
		return false, false
	}
	return alive, true
}

// CheckErrorRate raises a high_error_rate alert when enough jobs finished in
// the window and the failure share reaches the threshold. It returns the
// alert or nil.
func (m *Monitor) CheckErrorRate(ctx context.Context) (*models.Alert, error) {
	since := m.jobs.Now().Add(-m.cfg.ErrorRateWindow)
	counts, err := m.jobs.CountOutcomes(ctx, since)
	if err != nil {
		return nil, err
	}

	if counts.Total() < int64(m.cfg.ErrorRateMinSamples) {
		return nil, nil
	}
	rate := counts.FailureRate()
	if rate < m.cfg.ErrorRateThreshold {
		return nil, nil
	}

	alert := &models.Alert{
		Type:     config.AlertTypeHighErrorRate,
		Severity: config.SeverityCritical,
		Message: fmt.Sprintf("%.0f%% of jobs failed in the last %s (%d failed, %d completed)",
			rate*100, m.cfg.ErrorRateWindow, counts.Failed, counts.Completed),
		Metadata: mustJSON(map[string]any{
			"failed":        counts.Failed,
			"completed":     counts.Completed,
			"rate":          rate,
			"windowSeconds": int64(m.cfg.ErrorRateWindow.Seconds()),
		}),
	}
	if err := m.sink.Append(ctx, alert); err != nil {
		return nil, err
	}

	m.log.WithFields(logrus.Fields{
		"rate":      rate,
		"failed":    counts.Failed,
		"completed": counts.Completed,
		"alert_id":  alert.ID,
	}).Error("job failure rate above threshold")
	return alert, nil
}

// mustJSON encodes alert metadata, which only ever holds plain values.
func mustJSON(v map[string]any) datatypes.JSON {
	raw, err := json.Marshal(v)
	if err != nil {
		panic(fmt.Sprintf("encode alert metadata: %v", err))
	}
	return datatypes.JSON(raw)
}
