package alert

import (
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/joshu-sajeev/wastewise/common"
	"github.com/joshu-sajeev/wastewise/internal/dto"
	"github.com/joshu-sajeev/wastewise/middleware"
)

type AlertHandler struct {
	service AlertServiceInterface
}

func NewAlertHandler(s AlertServiceInterface) *AlertHandler {
	return &AlertHandler{service: s}
}

var _ AlertHandlerInterface = (*AlertHandler)(nil)

func (h *AlertHandler) RegisterRoutes(rg *gin.RouterGroup) {
	alerts := rg.Group("/alerts")
	alerts.GET("", h.List)
	alerts.POST("/:id/ack", h.Acknowledge)
}

// List handles GET /alerts?unacknowledged=true&limit=.
func (h *AlertHandler) List(c *gin.Context) {
	var query dto.AlertListQuery
	if !middleware.BindQuery(c, &query) {
		return
	}

	alerts, err := h.service.ListAlerts(c.Request.Context(), query)
	if err != nil {
		c.Error(err)
		return
	}

	c.JSON(http.StatusOK, alerts)
}

// Acknowledge handles POST /alerts/:id/ack and answers 204.
func (h *AlertHandler) Acknowledge(c *gin.Context) {
	id := c.Param("id")
	if id == "" || len(id) > 36 {
		c.Error(common.Errf(http.StatusBadRequest, "invalid ID"))
		return
	}

	var req dto.AlertAckDTO
	if !middleware.Bind(c, &req) {
		return
	}

	if err := h.service.AcknowledgeAlert(c.Request.Context(), id, &req); err != nil {
		c.Error(err)
		return
	}

	c.Status(http.StatusNoContent)
}
