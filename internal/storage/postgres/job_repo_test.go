package postgres

import (
	"context"
	"encoding/json"
	"sync"
	"testing"
	"time"

	"github.com/joshu-sajeev/wastewise/internal/config"
	"github.com/joshu-sajeev/wastewise/internal/models"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gorm.io/datatypes"
)

func TestJobRepository_Create(t *testing.T) {
	tests := []struct {
		name    string
		job     *models.Job
		setup   func(e *testEnv)
		wantErr bool
	}{
		{
			name: "defaults applied",
			job: &models.Job{
				JobType:     config.JobTypeInvoiceExtraction,
				PrincipalID: "user-1",
				PropertyID:  "property-1",
				MaxRetries:  3,
				InputData:   datatypes.JSON(`{"reportYear":2025}`),
			},
		},
		{
			name: "db error on duplicate primary key",
			job:  &models.Job{ID: "dup", JobType: config.JobTypeInvoiceExtraction},
			setup: func(e *testEnv) {
				_ = e.db.Create(&models.Job{ID: "dup", JobType: config.JobTypeInvoiceExtraction}).Error
			},
			wantErr: true,
		},
		{
			name: "error when db connection is closed",
			job:  &models.Job{JobType: config.JobTypeInvoiceExtraction},
			setup: func(e *testEnv) {
				sqlDB, _ := e.db.DB()
				sqlDB.Close()
			},
			wantErr: true,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			env := SetupTestDB(t)
			if tt.setup != nil {
				tt.setup(env)
			}

			err := env.jobs.Create(context.Background(), tt.job)

			if tt.wantErr {
				require.Error(t, err)
				assert.Contains(t, err.Error(), "create job")
				return
			}
			require.NoError(t, err)

			saved := env.reload(t, tt.job.ID)
			assert.Len(t, saved.ID, 36)
			assert.Equal(t, config.JobStatusPending, saved.Status)
			assert.Equal(t, config.DefaultPriority, saved.Priority)
			assert.Equal(t, testEpoch, saved.CreatedAt.UTC())
			assert.NotNil(t, saved.RetryErrorLog)
			assert.Empty(t, saved.RetryErrorLog)

			var input map[string]any
			require.NoError(t, json.Unmarshal(saved.InputData, &input))
			assert.EqualValues(t, 2025, input["reportYear"])
		})
	}
}

func TestJobRepository_GetNotFound(t *testing.T) {
	env := SetupTestDB(t)

	_, err := env.jobs.Get(context.Background(), "missing")
	assert.ErrorIs(t, err, models.ErrJobNotFound)
}

func TestJobRepository_ClaimNext_PriorityOrder(t *testing.T) {
	env := SetupTestDB(t)

	for _, p := range []int{3, 7, 1, 5} {
		env.insertJob(t, p, 3)
	}

	var got []int
	for range 4 {
		j := env.claim(t)
		require.NotNil(t, j)
		got = append(got, j.Priority)
	}
	assert.Equal(t, []int{1, 3, 5, 7}, got)

	assert.Nil(t, env.claim(t), "queue should be drained")
}

func TestJobRepository_ClaimNext_FIFOWithinPriority(t *testing.T) {
	env := SetupTestDB(t)

	first := env.insertJob(t, 5, 3)
	second := env.insertJob(t, 5, 3)

	assert.Equal(t, first.ID, env.claim(t).ID)
	assert.Equal(t, second.ID, env.claim(t).ID)
}

func TestJobRepository_ClaimNext_SetsClaimFields(t *testing.T) {
	env := SetupTestDB(t)
	created := env.insertJob(t, 5, 3)

	claimed, err := env.jobs.ClaimNext(context.Background(), "host-1-abc")
	require.NoError(t, err)
	require.NotNil(t, claimed)

	stored := env.reload(t, created.ID)
	assert.Equal(t, config.JobStatusProcessing, stored.Status)
	assert.Equal(t, "host-1-abc", stored.WorkerID)
	require.NotNil(t, stored.StartedAt)
	require.NotNil(t, stored.ClaimedAt)
	assert.Equal(t, env.clock.Now(), stored.StartedAt.UTC())
	assert.Nil(t, stored.RetryAfter)
}

func TestJobRepository_ClaimNext_Concurrent(t *testing.T) {
	env := SetupTestDB(t)

	const total = 20
	for range total {
		env.insertJob(t, 5, 3)
	}

	var (
		mu     sync.Mutex
		seen   = map[string]int{}
		wg     sync.WaitGroup
		errs   []error
		claims int
	)
	for w := range 5 {
		wg.Add(1)
		go func(worker int) {
			defer wg.Done()
			for {
				j, err := env.jobs.ClaimNext(context.Background(), "worker")
				mu.Lock()
				if err != nil {
					errs = append(errs, err)
					mu.Unlock()
					return
				}
				if j == nil {
					mu.Unlock()
					return
				}
				seen[j.ID]++
				claims++
				mu.Unlock()
			}
		}(w)
	}
	wg.Wait()

	require.Empty(t, errs)
	assert.Equal(t, total, claims)
	assert.Len(t, seen, total)
	for id, n := range seen {
		assert.Equal(t, 1, n, "job %s claimed more than once", id)
	}
}

func TestJobRepository_Fail_RetryPath(t *testing.T) {
	env := SetupTestDB(t)
	ctx := context.Background()

	created := env.insertJob(t, 5, 3)
	require.NotNil(t, env.claim(t))

	failedAt := env.clock.Now()
	require.NoError(t, env.jobs.Fail(ctx, created.ID, "database unavailable", "INFRASTRUCTURE"))

	stored := env.reload(t, created.ID)
	assert.Equal(t, config.JobStatusPending, stored.Status)
	assert.Equal(t, 1, stored.RetryCount)
	require.NotNil(t, stored.RetryAfter)
	assert.Equal(t, failedAt.Add(time.Minute), stored.RetryAfter.UTC())
	assert.Equal(t, "database unavailable", stored.ErrorMessage)
	assert.Equal(t, "INFRASTRUCTURE", stored.ErrorCode)
	assert.Equal(t, 0, stored.Percent)
	assert.Empty(t, stored.WorkerID)
	require.Len(t, stored.RetryErrorLog, 1)
	assert.Equal(t, 1, stored.RetryErrorLog[0].Attempt)

	assert.Nil(t, env.claim(t), "job must wait for retryAfter")

	env.clock.Advance(59 * time.Second)
	assert.Nil(t, env.claim(t))

	env.clock.Advance(time.Second)
	reclaimed := env.claim(t)
	require.NotNil(t, reclaimed)
	assert.Equal(t, created.ID, reclaimed.ID)
}

func TestJobRepository_Fail_Exhaustion(t *testing.T) {
	env := SetupTestDB(t)
	ctx := context.Background()

	created := env.insertJob(t, 5, 3)

	wantBackoff := []time.Duration{time.Minute, 5 * time.Minute, 15 * time.Minute}
	for attempt := range 4 {
		claimed := env.claim(t)
		require.NotNil(t, claimed, "attempt %d", attempt+1)

		require.NoError(t, env.jobs.Fail(ctx, created.ID, "boom", "INFRASTRUCTURE"))

		stored := env.reload(t, created.ID)
		if attempt < 3 {
			assert.Equal(t, config.JobStatusPending, stored.Status)
			require.NotNil(t, stored.RetryAfter)
			assert.Equal(t, env.clock.Now().Add(wantBackoff[attempt]), stored.RetryAfter.UTC())
			env.clock.Advance(wantBackoff[attempt])
		}
	}

	stored := env.reload(t, created.ID)
	assert.Equal(t, config.JobStatusFailed, stored.Status)
	assert.Equal(t, 3, stored.RetryCount)
	assert.NotNil(t, stored.CompletedAt)
	require.Len(t, stored.RetryErrorLog, 4)
	for i, entry := range stored.RetryErrorLog {
		assert.Equal(t, i+1, entry.Attempt)
		assert.Equal(t, "boom", entry.Message)
	}

	assert.Nil(t, env.claim(t), "failed jobs are never reclaimed")
}

func TestJobRepository_FailTerminal(t *testing.T) {
	env := SetupTestDB(t)
	ctx := context.Background()

	created := env.insertJob(t, 5, 3)
	require.NotNil(t, env.claim(t))

	env.clock.Advance(3 * time.Second)
	require.NoError(t, env.jobs.FailTerminal(ctx, created.ID, "property has no invoices", "VALIDATION"))

	stored := env.reload(t, created.ID)
	assert.Equal(t, config.JobStatusFailed, stored.Status)
	assert.Equal(t, 3, stored.RetryCount)
	assert.Equal(t, "VALIDATION", stored.ErrorCode)
	require.NotNil(t, stored.DurationSeconds)
	assert.InDelta(t, 3.0, *stored.DurationSeconds, 0.001)
	require.Len(t, stored.RetryErrorLog, 1)

	err := env.jobs.Fail(ctx, created.ID, "again", "X")
	assert.ErrorIs(t, err, models.ErrInvalidTransition)
}

func TestJobRepository_Fail_CancelRequested(t *testing.T) {
	tests := []struct {
		name string
		fail func(r *JobRepository, ctx context.Context, id string) error
	}{
		{
			name: "retryable failure",
			fail: func(r *JobRepository, ctx context.Context, id string) error {
				return r.Fail(ctx, id, "upstream timeout", "INFRASTRUCTURE")
			},
		},
		{
			name: "terminal failure",
			fail: func(r *JobRepository, ctx context.Context, id string) error {
				return r.FailTerminal(ctx, id, "bad input", "VALIDATION")
			},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			env := SetupTestDB(t)
			ctx := context.Background()

			created := env.insertJob(t, 5, 3)
			require.NotNil(t, env.claim(t))

			outcome, err := env.jobs.Cancel(ctx, created.ID)
			require.NoError(t, err)
			require.Equal(t, models.CancelOutcomeRequested, outcome)

			env.clock.Advance(2 * time.Second)
			require.NoError(t, tt.fail(env.jobs, ctx, created.ID))

			stored := env.reload(t, created.ID)
			assert.Equal(t, config.JobStatusCancelled, stored.Status)
			assert.Equal(t, 0, stored.RetryCount)
			assert.Nil(t, stored.RetryAfter)
			require.NotNil(t, stored.CompletedAt)
			require.NotNil(t, stored.DurationSeconds)
			assert.InDelta(t, 2.0, *stored.DurationSeconds, 0.001)
			require.Len(t, stored.RetryErrorLog, 1)

			assert.Nil(t, env.claim(t), "cancelled jobs are never reclaimed")
		})
	}
}

func TestJobRepository_Fail_RetryClearsCancelFlag(t *testing.T) {
	env := SetupTestDB(t)
	ctx := context.Background()

	created := env.insertJob(t, 5, 3)
	require.NotNil(t, env.claim(t))
	require.NoError(t, env.jobs.Fail(ctx, created.ID, "boom", "INFRASTRUCTURE"))

	stored := env.reload(t, created.ID)
	assert.Equal(t, config.JobStatusPending, stored.Status)
	assert.False(t, stored.CancelRequested)
	assert.Zero(t, stored.StepsCompleted)
	assert.Empty(t, stored.CurrentStep)
}

func TestJobRepository_Release(t *testing.T) {
	tests := []struct {
		name       string
		maxRetries int
		cancel     bool
		wantStatus config.JobStatus
	}{
		{name: "requeued with retries left", maxRetries: 3, wantStatus: config.JobStatusPending},
		{name: "requeued with no retries configured", maxRetries: 0, wantStatus: config.JobStatusPending},
		{name: "accepted cancel wins", maxRetries: 3, cancel: true, wantStatus: config.JobStatusCancelled},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			env := SetupTestDB(t)
			ctx := context.Background()

			created := env.insertJob(t, 5, tt.maxRetries)
			require.NotNil(t, env.claim(t))
			require.NoError(t, env.jobs.UpdateProgress(ctx, created.ID, models.Progress{
				Percent:        40,
				CurrentStep:    "extract",
				StepsCompleted: 1,
			}))
			if tt.cancel {
				_, err := env.jobs.Cancel(ctx, created.ID)
				require.NoError(t, err)
			}

			require.NoError(t, env.jobs.Release(ctx, created.ID))

			stored := env.reload(t, created.ID)
			assert.Equal(t, tt.wantStatus, stored.Status)
			assert.Equal(t, 0, stored.RetryCount)
			assert.Nil(t, stored.RetryAfter)
			assert.Empty(t, stored.ErrorMessage)
			assert.Empty(t, stored.ErrorCode)
			assert.Empty(t, stored.RetryErrorLog)

			if tt.cancel {
				assert.NotNil(t, stored.CompletedAt)
				assert.Nil(t, env.claim(t))
				return
			}

			assert.Nil(t, stored.CompletedAt)
			assert.Zero(t, stored.Percent)
			assert.Empty(t, stored.WorkerID)
			assert.False(t, stored.CancelRequested)

			reclaimed := env.claim(t)
			require.NotNil(t, reclaimed, "released job is claimable immediately")
			assert.Equal(t, created.ID, reclaimed.ID)
		})
	}

	t.Run("only processing jobs", func(t *testing.T) {
		env := SetupTestDB(t)
		ctx := context.Background()

		created := env.insertJob(t, 5, 3)
		assert.ErrorIs(t, env.jobs.Release(ctx, created.ID), models.ErrInvalidTransition)
		assert.ErrorIs(t, env.jobs.Release(ctx, "missing"), models.ErrJobNotFound)
	})
}

func TestJobRepository_UpdateProgress(t *testing.T) {
	env := SetupTestDB(t)
	ctx := context.Background()

	created := env.insertJob(t, 5, 3)
	require.NotNil(t, env.claim(t))

	steps := []struct {
		progress    models.Progress
		wantPercent int
		wantStep    string
	}{
		{models.Progress{Percent: 20, CurrentStep: "Extracting invoices", StepsCompleted: 1, TotalSteps: 6}, 20, "Extracting invoices"},
		{models.Progress{Percent: 10, CurrentStep: "stale", StepsCompleted: 0, TotalSteps: 6}, 20, "Extracting invoices"},
		{models.Progress{Percent: 20, CurrentStep: "Parsing contract", StepsCompleted: 1, TotalSteps: 6}, 20, "Parsing contract"},
		{models.Progress{Percent: 100, CurrentStep: "Generating report", StepsCompleted: 6, TotalSteps: 6}, 99, "Generating report"},
	}
	for _, s := range steps {
		require.NoError(t, env.jobs.UpdateProgress(ctx, created.ID, s.progress))
		stored := env.reload(t, created.ID)
		assert.Equal(t, s.wantPercent, stored.Percent)
		assert.Equal(t, s.wantStep, stored.CurrentStep)
	}

	require.NoError(t, env.jobs.Complete(ctx, created.ID, datatypes.JSON(`{}`)))
	require.NoError(t, env.jobs.UpdateProgress(ctx, created.ID, models.Progress{Percent: 50}))
	assert.Equal(t, 100, env.reload(t, created.ID).Percent)

	err := env.jobs.UpdateProgress(ctx, "missing", models.Progress{Percent: 10})
	assert.ErrorIs(t, err, models.ErrJobNotFound)
}

func TestJobRepository_Complete(t *testing.T) {
	env := SetupTestDB(t)
	ctx := context.Background()

	created := env.insertJob(t, 5, 3)
	require.NotNil(t, env.claim(t))
	env.clock.Advance(90 * time.Second)

	first := datatypes.JSON(`{"summary":{"headline":"first"}}`)
	require.NoError(t, env.jobs.Complete(ctx, created.ID, first))
	require.NoError(t, env.jobs.Complete(ctx, created.ID, datatypes.JSON(`{"summary":{"headline":"second"}}`)))

	stored := env.reload(t, created.ID)
	assert.Equal(t, config.JobStatusCompleted, stored.Status)
	assert.Equal(t, 100, stored.Percent)
	assert.JSONEq(t, string(first), string(stored.ResultData))
	require.NotNil(t, stored.DurationSeconds)
	assert.InDelta(t, 90.0, *stored.DurationSeconds, 0.001)

	pending := env.insertJob(t, 5, 3)
	assert.ErrorIs(t, env.jobs.Complete(ctx, pending.ID, nil), models.ErrInvalidTransition)
	assert.ErrorIs(t, env.jobs.Complete(ctx, "missing", nil), models.ErrJobNotFound)
}

func TestJobRepository_Cancel(t *testing.T) {
	ctx := context.Background()

	t.Run("pending job cancelled immediately", func(t *testing.T) {
		env := SetupTestDB(t)
		created := env.insertJob(t, 5, 3)

		outcome, err := env.jobs.Cancel(ctx, created.ID)
		require.NoError(t, err)
		assert.Equal(t, models.CancelOutcomeCancelled, outcome)

		stored := env.reload(t, created.ID)
		assert.Equal(t, config.JobStatusCancelled, stored.Status)
		assert.NotNil(t, stored.CompletedAt)
		assert.Empty(t, stored.ErrorMessage)
		assert.Nil(t, env.claim(t))
	})

	t.Run("processing job flagged then marked", func(t *testing.T) {
		env := SetupTestDB(t)
		created := env.insertJob(t, 5, 3)
		require.NotNil(t, env.claim(t))

		requested, err := env.jobs.IsCancelRequested(ctx, created.ID)
		require.NoError(t, err)
		assert.False(t, requested)

		outcome, err := env.jobs.Cancel(ctx, created.ID)
		require.NoError(t, err)
		assert.Equal(t, models.CancelOutcomeRequested, outcome)
		assert.Equal(t, config.JobStatusProcessing, env.reload(t, created.ID).Status)

		requested, err = env.jobs.IsCancelRequested(ctx, created.ID)
		require.NoError(t, err)
		assert.True(t, requested)

		require.NoError(t, env.jobs.MarkCancelled(ctx, created.ID))
		require.NoError(t, env.jobs.MarkCancelled(ctx, created.ID))
		stored := env.reload(t, created.ID)
		assert.Equal(t, config.JobStatusCancelled, stored.Status)
		assert.NotNil(t, stored.CompletedAt)
	})

	t.Run("terminal job rejected", func(t *testing.T) {
		env := SetupTestDB(t)
		created := env.insertJob(t, 5, 3)
		require.NotNil(t, env.claim(t))
		require.NoError(t, env.jobs.Complete(ctx, created.ID, nil))

		_, err := env.jobs.Cancel(ctx, created.ID)
		assert.ErrorIs(t, err, models.ErrInvalidTransition)
	})

	t.Run("unknown job", func(t *testing.T) {
		env := SetupTestDB(t)
		_, err := env.jobs.Cancel(ctx, "missing")
		assert.ErrorIs(t, err, models.ErrJobNotFound)
	})
}

func TestJobRepository_List(t *testing.T) {
	env := SetupTestDB(t)
	ctx := context.Background()

	a := env.insertJob(t, 5, 3)
	b := env.insertJob(t, 5, 3)
	other := &models.Job{JobType: config.JobTypeInvoiceExtraction, PrincipalID: "user-2", PropertyID: "property-2", MaxRetries: 3}
	require.NoError(t, env.jobs.Create(ctx, other))
	require.NotNil(t, env.claim(t))

	tests := []struct {
		name    string
		filter  models.JobFilter
		wantIDs []string
	}{
		{name: "newest first", filter: models.JobFilter{PropertyID: "property-1"}, wantIDs: []string{b.ID, a.ID}},
		{name: "by status", filter: models.JobFilter{PropertyID: "property-1", Status: config.JobStatusProcessing}, wantIDs: []string{a.ID}},
		{name: "by principal", filter: models.JobFilter{PrincipalID: "user-2"}, wantIDs: []string{other.ID}},
		{name: "limit", filter: models.JobFilter{Limit: 1}, wantIDs: []string{other.ID}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			jobs, err := env.jobs.List(ctx, tt.filter)
			require.NoError(t, err)

			var ids []string
			for _, j := range jobs {
				ids = append(ids, j.ID)
			}
			assert.Equal(t, tt.wantIDs, ids)
		})
	}
}

func TestJobRepository_ListStuck(t *testing.T) {
	env := SetupTestDB(t)
	ctx := context.Background()

	stuck := env.insertJob(t, 1, 3)
	require.NotNil(t, env.claim(t))

	env.clock.Advance(20 * time.Minute)
	env.insertJob(t, 1, 3)
	require.NotNil(t, env.claim(t))

	env.clock.Advance(11 * time.Minute)

	jobs, err := env.jobs.ListStuck(ctx, 30*time.Minute)
	require.NoError(t, err)
	require.Len(t, jobs, 1)
	assert.Equal(t, stuck.ID, jobs[0].ID)

	stored := env.reload(t, stuck.ID)
	assert.Equal(t, config.JobStatusProcessing, stored.Status)
	assert.Equal(t, "worker-1", stored.WorkerID)
}

func TestJobRepository_CountOutcomes(t *testing.T) {
	env := SetupTestDB(t)
	ctx := context.Background()

	finish := func(fail bool) {
		j := env.insertJob(t, 5, 0)
		require.NotNil(t, env.claim(t))
		if fail {
			require.NoError(t, env.jobs.Fail(ctx, j.ID, "boom", "X"))
		} else {
			require.NoError(t, env.jobs.Complete(ctx, j.ID, nil))
		}
	}

	finish(false)
	env.clock.Advance(time.Hour)
	since := env.clock.Now()

	finish(false)
	finish(true)
	finish(true)
	env.insertJob(t, 5, 0)

	counts, err := env.jobs.CountOutcomes(ctx, since)
	require.NoError(t, err)
	assert.Equal(t, int64(1), counts.Completed)
	assert.Equal(t, int64(2), counts.Failed)
	assert.InDelta(t, 2.0/3.0, counts.FailureRate(), 1e-9)
}
