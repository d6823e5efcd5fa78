package job

import (
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/joshu-sajeev/wastewise/common"
	"github.com/joshu-sajeev/wastewise/internal/dto"
	"github.com/joshu-sajeev/wastewise/internal/models"
	"github.com/joshu-sajeev/wastewise/middleware"
)

// PrincipalHeader carries the caller identity recorded on created jobs.
const PrincipalHeader = "X-Principal-ID"

type JobHandler struct {
	service JobServiceInterface
}

func NewJobHandler(s JobServiceInterface) *JobHandler {
	return &JobHandler{service: s}
}

var _ JobHandlerInterface = (*JobHandler)(nil)

// RegisterRoutes mounts the job endpoints on rg.
func (h *JobHandler) RegisterRoutes(rg *gin.RouterGroup) {
	jobs := rg.Group("/jobs")
	jobs.POST("", h.Create)
	jobs.GET("", h.List)
	jobs.GET("/:id", h.Get)
	jobs.POST("/:id/cancel", h.Cancel)
}

// Create handles HTTP requests for creating a new job.
// It validates and binds the request body, delegates business logic
// to the JobService, and returns HTTP 201 with the job status document.
func (h *JobHandler) Create(c *gin.Context) {
	var req dto.JobCreateDTO

	if !middleware.Bind(c, &req) {
		c.Abort()
		return
	}

	resp, err := h.service.CreateJob(c.Request.Context(), c.GetHeader(PrincipalHeader), &req)
	if err != nil {
		c.Error(err)
		c.Abort()
		return
	}

	c.JSON(http.StatusCreated, resp)
}

// Get handles HTTP requests to fetch a job's status document by ID.
func (h *JobHandler) Get(c *gin.Context) {
	id := c.Param("id")
	if id == "" || len(id) > 36 {
		c.Error(common.Errf(http.StatusBadRequest, "invalid ID"))
		return
	}

	resp, err := h.service.GetJobByID(c.Request.Context(), id)
	if err != nil {
		c.Error(err)
		return
	}

	c.JSON(http.StatusOK, resp)
}

// List handles HTTP requests to list jobs filtered by property, status and
// the caller's principal when one is supplied.
func (h *JobHandler) List(c *gin.Context) {
	var query dto.JobListQuery
	if !middleware.BindQuery(c, &query) {
		return
	}
	query.PrincipalID = c.GetHeader(PrincipalHeader)

	jobs, err := h.service.ListJobs(c.Request.Context(), query)
	if err != nil {
		c.Error(err)
		return
	}

	c.JSON(http.StatusOK, jobs)
}

// Cancel handles HTTP requests to cancel a job. Pending jobs are cancelled
// at once (200); processing jobs are flagged and stop at the next step
// boundary (202).
func (h *JobHandler) Cancel(c *gin.Context) {
	id := c.Param("id")
	if id == "" || len(id) > 36 {
		c.Error(common.Errf(http.StatusBadRequest, "invalid ID"))
		return
	}

	outcome, err := h.service.CancelJob(c.Request.Context(), id)
	if err != nil {
		c.Error(err)
		return
	}

	status := http.StatusOK
	if outcome == models.CancelOutcomeRequested {
		status = http.StatusAccepted
	}
	c.JSON(status, dto.CancelResponseDTO{ID: id, Status: string(outcome)})
}
