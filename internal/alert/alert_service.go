package alert

import (
	"context"
	"errors"
	"net/http"
	"strings"

	"github.com/joshu-sajeev/wastewise/common"
	"github.com/joshu-sajeev/wastewise/internal/dto"
	"github.com/joshu-sajeev/wastewise/internal/models"
)

type AlertService struct {
	repo AlertRepoInterface
}

func NewAlertService(repo AlertRepoInterface) *AlertService {
	return &AlertService{repo: repo}
}

var _ AlertServiceInterface = (*AlertService)(nil)

// ListAlerts returns alerts newest first, optionally only the
// unacknowledged ones.
func (s *AlertService) ListAlerts(ctx context.Context, query dto.AlertListQuery) ([]dto.AlertDTO, error) {
	if err := ctx.Err(); err != nil {
		return nil, common.Errf(http.StatusRequestTimeout, "request timed out")
	}

	alerts, err := s.repo.List(ctx, models.AlertFilter{
		UnacknowledgedOnly: query.Unacknowledged,
		Limit:              query.Limit,
	})
	if err != nil {
		return nil, common.Internal(err, "failed to list alerts")
	}

	dtos := make([]dto.AlertDTO, len(alerts))
	for i := range alerts {
		dtos[i] = dto.NewAlertDTO(&alerts[i])
	}
	return dtos, nil
}

// AcknowledgeAlert records who acknowledged an alert. Acknowledging twice
// succeeds and keeps the first acknowledgement.
func (s *AlertService) AcknowledgeAlert(ctx context.Context, id string, in *dto.AlertAckDTO) error {
	if err := ctx.Err(); err != nil {
		return common.Errf(http.StatusRequestTimeout, "request timed out")
	}

	by := strings.TrimSpace(in.AcknowledgedBy)
	if by == "" {
		return common.Errf(http.StatusBadRequest, "acknowledgedBy is required")
	}

	if _, err := s.repo.Acknowledge(ctx, id, by); err != nil {
		if errors.Is(err, models.ErrAlertNotFound) {
			return common.Errf(http.StatusNotFound, "alert not found")
		}
		return common.Internal(err, "failed to acknowledge alert")
	}
	return nil
}
