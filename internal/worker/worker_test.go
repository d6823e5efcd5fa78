package worker

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/joshu-sajeev/wastewise/internal/models"
	"github.com/sirupsen/logrus/hooks/test"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gorm.io/datatypes"
)

func TestIdleBackoff(t *testing.T) {
	b := idleBackoff(time.Second, 30*time.Second)

	var got []time.Duration
	for range 7 {
		got = append(got, b.Step())
	}
	assert.Equal(t, []time.Duration{
		time.Second,
		2 * time.Second,
		4 * time.Second,
		8 * time.Second,
		16 * time.Second,
		30 * time.Second,
		30 * time.Second,
	}, got)
}

// scriptedQueue hands out queued jobs and then reports an empty queue.
type scriptedQueue struct {
	mu     sync.Mutex
	jobs   []*models.Job
	claims int
	err    error
}

func (q *scriptedQueue) ClaimNext(_ context.Context, workerID string) (*models.Job, error) {
	q.mu.Lock()
	defer q.mu.Unlock()
	q.claims++
	if q.err != nil {
		return nil, q.err
	}
	if len(q.jobs) == 0 {
		return nil, nil
	}
	j := q.jobs[0]
	q.jobs = q.jobs[1:]
	j.WorkerID = workerID
	return j, nil
}

func (q *scriptedQueue) claimCount() int {
	q.mu.Lock()
	defer q.mu.Unlock()
	return q.claims
}

func (q *scriptedQueue) UpdateProgress(context.Context, string, models.Progress) error { return nil }
func (q *scriptedQueue) Complete(context.Context, string, datatypes.JSON) error         { return nil }
func (q *scriptedQueue) Fail(context.Context, string, string, string) error             { return nil }
func (q *scriptedQueue) FailTerminal(context.Context, string, string, string) error     { return nil }
func (q *scriptedQueue) IsCancelRequested(context.Context, string) (bool, error)        { return false, nil }
func (q *scriptedQueue) MarkCancelled(context.Context, string) error                    { return nil }
func (q *scriptedQueue) Release(context.Context, string) error                          { return nil }

type recordingProcessor struct {
	mu  sync.Mutex
	ids []string
}

func (p *recordingProcessor) Process(_ context.Context, job *models.Job) {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.ids = append(p.ids, job.ID+"@"+job.WorkerID)
}

func (p *recordingProcessor) processed() []string {
	p.mu.Lock()
	defer p.mu.Unlock()
	return append([]string(nil), p.ids...)
}

func runWorker(t *testing.T, w *Worker) (stop func()) {
	t.Helper()

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan struct{})
	go func() {
		defer close(done)
		w.Run(ctx)
	}()

	return func() {
		cancel()
		select {
		case <-done:
		case <-time.After(5 * time.Second):
			t.Fatal("worker did not stop")
		}
	}
}

func TestWorker_Run(t *testing.T) {
	queue := &scriptedQueue{jobs: []*models.Job{{ID: "a"}, {ID: "b"}, {ID: "c"}}}
	proc := &recordingProcessor{}
	log, hook := test.NewNullLogger()

	stop := runWorker(t, NewWorker("host-1-abcd1234", queue, proc, 5*time.Millisecond, 20*time.Millisecond, log))

	require.Eventually(t, func() bool { return len(proc.processed()) == 3 }, 2*time.Second, 5*time.Millisecond)
	// keeps polling the empty queue
	require.Eventually(t, func() bool { return queue.claimCount() >= 5 }, 2*time.Second, 5*time.Millisecond)
	stop()

	assert.Equal(t, []string{"a@host-1-abcd1234", "b@host-1-abcd1234", "c@host-1-abcd1234"}, proc.processed())

	last := hook.LastEntry()
	require.NotNil(t, last)
	assert.Equal(t, "worker stopped", last.Message)
	assert.Equal(t, "host-1-abcd1234", last.Data["worker_id"])
}

func TestWorker_ClaimErrorsAreLogged(t *testing.T) {
	queue := &scriptedQueue{err: errors.New("database is locked")}
	proc := &recordingProcessor{}
	log, hook := test.NewNullLogger()

	stop := runWorker(t, NewWorker("w-1", queue, proc, 5*time.Millisecond, 10*time.Millisecond, log))
	require.Eventually(t, func() bool { return queue.claimCount() >= 2 }, 2*time.Second, 5*time.Millisecond)
	stop()

	var warned bool
	for _, e := range hook.AllEntries() {
		if e.Message == "failed to claim job" {
			warned = true
		}
	}
	assert.True(t, warned)
	assert.Empty(t, proc.processed())
}

func TestWorker_StopsWhenCancelledBeforeStart(t *testing.T) {
	queue := &scriptedQueue{jobs: []*models.Job{{ID: "a"}}}
	proc := &recordingProcessor{}
	log, _ := test.NewNullLogger()

	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	NewWorker("w-1", queue, proc, time.Second, time.Second, log).Run(ctx)

	assert.Zero(t, queue.claimCount())
	assert.Empty(t, proc.processed())
}
