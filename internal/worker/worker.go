package worker

import (
	"context"
	"math"
	"time"

	"github.com/joshu-sajeev/wastewise/internal/logger"
	"github.com/joshu-sajeev/wastewise/internal/models"
	"github.com/sirupsen/logrus"
	"k8s.io/apimachinery/pkg/util/wait"
)

// JobProcessor runs one claimed job to a final state.
type JobProcessor interface {
	Process(ctx context.Context, job *models.Job)
}

type Worker struct {
	ID        string
	queue     JobQueue
	processor JobProcessor
	poll      time.Duration
	maxIdle   time.Duration
	log       logrus.FieldLogger
}

func NewWorker(id string, queue JobQueue, processor JobProcessor, poll, maxIdle time.Duration, log logrus.FieldLogger) *Worker {
	return &Worker{
		ID:        id,
		queue:     queue,
		processor: processor,
		poll:      poll,
		maxIdle:   maxIdle,
		log:       logger.WithWorker(log, id),
	}
}

// idleBackoff doubles the wait between empty claims from poll up to max.
func idleBackoff(poll, max time.Duration) wait.Backoff {
	return wait.Backoff{
		Duration: poll,
		Factor:   2,
		Steps:    math.MaxInt32,
		Cap:      max,
	}
}

// Run claims and processes jobs until ctx is cancelled. A job in flight is
// finalized before Run returns.
func (w *Worker) Run(ctx context.Context) {
	w.log.Info("worker started")
	defer w.log.Info("worker stopped")

	backoff := idleBackoff(w.poll, w.maxIdle)
	for {
		if ctx.Err() != nil {
			return
		}

		job, err := w.queue.ClaimNext(ctx, w.ID)
		if err != nil && ctx.Err() == nil {
			w.log.WithError(err).Warn("failed to claim job")
		}

		if job != nil {
			w.processor.Process(ctx, job)
			backoff = idleBackoff(w.poll, w.maxIdle)
			continue
		}

		timer := time.NewTimer(backoff.Step())
		select {
		case <-timer.C:
		case <-ctx.Done():
			timer.Stop()
			return
		}
	}
}
