package postgres

import (
	"context"
	"testing"
	"time"

	"github.com/joshu-sajeev/wastewise/internal/config"
	"github.com/joshu-sajeev/wastewise/internal/models"
	"github.com/joshu-sajeev/wastewise/internal/testutil"
	"github.com/stretchr/testify/require"
	"gorm.io/gorm"
)

var testEpoch = time.Date(2026, 3, 1, 9, 0, 0, 0, time.UTC)

type testEnv struct {
	db    *gorm.DB
	clock *testutil.Clock
	jobs  *JobRepository
}

func SetupTestDB(t *testing.T) *testEnv {
	t.Helper()

	db := testutil.NewDB(t)
	clock := testutil.NewClock(testEpoch)
	return &testEnv{
		db:    db,
		clock: clock,
		jobs:  NewJobRepository(db, WithClock(clock.Now)),
	}
}

// insertJob creates a pending job and advances the clock one second so
// creation order is strict.
func (e *testEnv) insertJob(t *testing.T, priority, maxRetries int) *models.Job {
	t.Helper()

	j := &models.Job{
		JobType:     config.JobTypeCompleteAnalysis,
		Priority:    priority,
		PrincipalID: "user-1",
		PropertyID:  "property-1",
		MaxRetries:  maxRetries,
	}
	require.NoError(t, e.jobs.Create(context.Background(), j))
	e.clock.Advance(time.Second)
	return j
}

func (e *testEnv) reload(t *testing.T, id string) *models.Job {
	t.Helper()

	j, err := e.jobs.Get(context.Background(), id)
	require.NoError(t, err)
	return j
}

func (e *testEnv) claim(t *testing.T) *models.Job {
	t.Helper()

	j, err := e.jobs.ClaimNext(context.Background(), "worker-1")
	require.NoError(t, err)
	return j
}
