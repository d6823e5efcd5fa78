package mocks

import (
	"context"

	"github.com/joshu-sajeev/wastewise/internal/dto"
	"github.com/joshu-sajeev/wastewise/internal/models"
	"github.com/stretchr/testify/mock"
)

type AlertRepoMock struct {
	mock.Mock
}

func (m *AlertRepoMock) List(ctx context.Context, filter models.AlertFilter) ([]models.Alert, error) {
	args := m.Called(ctx, filter)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).([]models.Alert), args.Error(1)
}

func (m *AlertRepoMock) Acknowledge(ctx context.Context, id, by string) (*models.Alert, error) {
	args := m.Called(ctx, id, by)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*models.Alert), args.Error(1)
}

type AlertServiceMock struct {
	mock.Mock
}

func (m *AlertServiceMock) ListAlerts(ctx context.Context, query dto.AlertListQuery) ([]dto.AlertDTO, error) {
	args := m.Called(ctx, query)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).([]dto.AlertDTO), args.Error(1)
}

func (m *AlertServiceMock) AcknowledgeAlert(ctx context.Context, id string, in *dto.AlertAckDTO) error {
	args := m.Called(ctx, id, in)
	return args.Error(0)
}
