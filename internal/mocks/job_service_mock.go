package mocks

import (
	"context"

	"github.com/joshu-sajeev/wastewise/internal/dto"
	"github.com/joshu-sajeev/wastewise/internal/models"
	"github.com/stretchr/testify/mock"
)

type JobServiceMock struct {
	mock.Mock
}

func (m *JobServiceMock) CreateJob(ctx context.Context, principalID string, in *dto.JobCreateDTO) (*dto.JobStatusDTO, error) {
	args := m.Called(ctx, principalID, in)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*dto.JobStatusDTO), args.Error(1)
}

func (m *JobServiceMock) GetJobByID(ctx context.Context, id string) (*dto.JobStatusDTO, error) {
	args := m.Called(ctx, id)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*dto.JobStatusDTO), args.Error(1)
}

func (m *JobServiceMock) ListJobs(ctx context.Context, query dto.JobListQuery) ([]dto.JobStatusDTO, error) {
	args := m.Called(ctx, query)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).([]dto.JobStatusDTO), args.Error(1)
}

func (m *JobServiceMock) CancelJob(ctx context.Context, id string) (models.CancelOutcome, error) {
	args := m.Called(ctx, id)
	outcome, _ := args.Get(0).(models.CancelOutcome)
	return outcome, args.Error(1)
}
