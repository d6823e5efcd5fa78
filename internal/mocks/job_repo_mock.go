package mocks

import (
	"context"

	"github.com/joshu-sajeev/wastewise/internal/models"
	"github.com/stretchr/testify/mock"
)

type JobRepoMock struct {
	mock.Mock
}

func (m *JobRepoMock) Create(ctx context.Context, job *models.Job) error {
	args := m.Called(ctx, job)
	return args.Error(0)
}

func (m *JobRepoMock) Get(ctx context.Context, id string) (*models.Job, error) {
	args := m.Called(ctx, id)

	job, _ := args.Get(0).(*models.Job)
	return job, args.Error(1)
}

func (m *JobRepoMock) List(ctx context.Context, filter models.JobFilter) ([]models.Job, error) {
	args := m.Called(ctx, filter)

	jobs, _ := args.Get(0).([]models.Job)
	return jobs, args.Error(1)
}

func (m *JobRepoMock) Cancel(ctx context.Context, id string) (models.CancelOutcome, error) {
	args := m.Called(ctx, id)

	outcome, _ := args.Get(0).(models.CancelOutcome)
	return outcome, args.Error(1)
}

type PropertyLookupMock struct {
	mock.Mock
}

func (m *PropertyLookupMock) PropertyExists(ctx context.Context, id string) (bool, error) {
	args := m.Called(ctx, id)
	return args.Bool(0), args.Error(1)
}
