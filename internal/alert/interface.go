package alert

import (
	"context"

	"github.com/gin-gonic/gin"
	"github.com/joshu-sajeev/wastewise/internal/dto"
	"github.com/joshu-sajeev/wastewise/internal/models"
)

// AlertRepoInterface defines the alert store operations the API needs.
type AlertRepoInterface interface {
	List(ctx context.Context, filter models.AlertFilter) ([]models.Alert, error)
	Acknowledge(ctx context.Context, id, by string) (*models.Alert, error)
}

type AlertServiceInterface interface {
	ListAlerts(ctx context.Context, query dto.AlertListQuery) ([]dto.AlertDTO, error)
	AcknowledgeAlert(ctx context.Context, id string, in *dto.AlertAckDTO) error
}

type AlertHandlerInterface interface {
	List(c *gin.Context)
	Acknowledge(c *gin.Context)
}
