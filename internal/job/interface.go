package job

import (
	"context"

	"github.com/gin-gonic/gin"
	"github.com/joshu-sajeev/wastewise/internal/dto"
	"github.com/joshu-sajeev/wastewise/internal/models"
)

// JobRepoInterface defines the job store operations the API needs.
type JobRepoInterface interface {
	Create(ctx context.Context, job *models.Job) error
	Get(ctx context.Context, id string) (*models.Job, error)
	List(ctx context.Context, filter models.JobFilter) ([]models.Job, error)
	Cancel(ctx context.Context, id string) (models.CancelOutcome, error)
}

// PropertyLookup reports whether a property exists.
type PropertyLookup interface {
	PropertyExists(ctx context.Context, id string) (bool, error)
}

// JobServiceInterface defines the contract for job business logic operations.
type JobServiceInterface interface {
	CreateJob(ctx context.Context, principalID string, dto *dto.JobCreateDTO) (*dto.JobStatusDTO, error)
	GetJobByID(ctx context.Context, id string) (*dto.JobStatusDTO, error)
	ListJobs(ctx context.Context, query dto.JobListQuery) ([]dto.JobStatusDTO, error)
	CancelJob(ctx context.Context, id string) (models.CancelOutcome, error)
}

// JobHandlerInterface defines the contract for HTTP request handlers.
type JobHandlerInterface interface {
	Create(c *gin.Context)
	Get(c *gin.Context)
	List(c *gin.Context)
	Cancel(c *gin.Context)
}
