package job

import (
	"context"
	"errors"
	"net/http"
	"strings"

	"github.com/joshu-sajeev/wastewise/common"
	"github.com/joshu-sajeev/wastewise/internal/config"
	"github.com/joshu-sajeev/wastewise/internal/dto"
	"github.com/joshu-sajeev/wastewise/internal/models"
	"gorm.io/datatypes"
)

type JobService struct {
	repo       JobRepoInterface
	properties PropertyLookup
}

func NewJobService(repo JobRepoInterface, properties PropertyLookup) *JobService {
	return &JobService{repo: repo, properties: properties}
}

var _ JobServiceInterface = (*JobService)(nil)

// CreateJob validates job creation input, applies defaults, checks the
// property exists and persists a pending job. It returns a typed API error
// for validation failures and an internal error for persistence failures.
func (s *JobService) CreateJob(ctx context.Context, principalID string, in *dto.JobCreateDTO) (*dto.JobStatusDTO, error) {
	if err := ctx.Err(); err != nil {
		return nil, common.Errf(http.StatusRequestTimeout, "request canceled or timed out")
	}

	principalID = strings.TrimSpace(principalID)
	if principalID == "" {
		return nil, common.Errf(http.StatusBadRequest, "X-Principal-ID header is required")
	}

	jobType := config.JobType(in.JobType)
	if !config.IsAllowedJobType(jobType) {
		return nil, common.NewAPIError(
			http.StatusBadRequest,
			"invalid job type",
			map[string]any{
				"provided": in.JobType,
				"allowed":  config.AllowedJobTypes,
			},
		)
	}

	priority := config.DefaultPriority
	if in.Priority != nil {
		priority = *in.Priority
	}
	if priority < config.MinPriority || priority > config.MaxPriority {
		return nil, common.Errf(http.StatusBadRequest, "priority must be between %d and %d", config.MinPriority, config.MaxPriority)
	}

	maxRetries := config.DefaultMaxRetries
	if in.MaxRetries != nil {
		maxRetries = *in.MaxRetries
	}
	if maxRetries < 0 || maxRetries > config.MaxAllowedRetries {
		return nil, common.Errf(http.StatusBadRequest, "maxRetries must be between 0 and %d", config.MaxAllowedRetries)
	}

	if err := validateInput(jobType, in.InputData); err != nil {
		return nil, err
	}

	exists, err := s.properties.PropertyExists(ctx, in.PropertyID)
	if err != nil {
		return nil, common.Internal(err, "failed to look up property")
	}
	if !exists {
		return nil, common.Errf(http.StatusNotFound, "property not found")
	}

	job := models.Job{
		JobType:     jobType,
		Priority:    priority,
		Status:      config.JobStatusPending,
		PrincipalID: principalID,
		PropertyID:  in.PropertyID,
		MaxRetries:  maxRetries,
	}
	if len(in.InputData) > 0 && string(in.InputData) != "null" {
		job.InputData = datatypes.JSON(in.InputData)
	}

	if err := s.repo.Create(ctx, &job); err != nil {
		return nil, common.Internal(err, "failed to add job to database")
	}

	out := dto.NewJobStatusDTO(&job)
	return &out, nil
}

// GetJobByID retrieves a job by its ID and maps it to the poll document.
// Repository errors become not found, timeout or internal API errors.
func (s *JobService) GetJobByID(ctx context.Context, id string) (*dto.JobStatusDTO, error) {
	if err := ctx.Err(); err != nil {
		return nil, common.Errf(http.StatusRequestTimeout, "request timed out")
	}

	job, err := s.repo.Get(ctx, id)
	if err != nil {
		if errors.Is(err, models.ErrJobNotFound) {
			return nil, common.Errf(http.StatusNotFound, "job not found")
		}
		return nil, common.Internal(err, "failed to get job")
	}

	out := dto.NewJobStatusDTO(job)
	return &out, nil
}

// ListJobs returns jobs matching the query, newest first.
func (s *JobService) ListJobs(ctx context.Context, query dto.JobListQuery) ([]dto.JobStatusDTO, error) {
	if err := ctx.Err(); err != nil {
		return nil, common.Errf(http.StatusRequestTimeout, "request timed out")
	}

	status := config.JobStatus(query.Status)
	if status != "" && !config.IsAllowedJobStatus(status) {
		return nil, common.NewAPIError(
			http.StatusBadRequest,
			"invalid status",
			map[string]any{
				"provided": query.Status,
				"allowed":  config.AllowedJobStatuses,
			},
		)
	}

	jobs, err := s.repo.List(ctx, models.JobFilter{
		PropertyID:  query.PropertyID,
		PrincipalID: query.PrincipalID,
		Status:      status,
		Limit:       query.Limit,
	})
	if err != nil {
		return nil, common.Internal(err, "failed to list jobs")
	}

	dtos := make([]dto.JobStatusDTO, len(jobs))
	for i := range jobs {
		dtos[i] = dto.NewJobStatusDTO(&jobs[i])
	}
	return dtos, nil
}

// CancelJob cancels a pending job or flags a processing one for
// cooperative cancellation. Terminal jobs yield a conflict.
func (s *JobService) CancelJob(ctx context.Context, id string) (models.CancelOutcome, error) {
	if err := ctx.Err(); err != nil {
		return "", common.Errf(http.StatusRequestTimeout, "request timed out")
	}

	outcome, err := s.repo.Cancel(ctx, id)
	if err != nil {
		switch {
		case errors.Is(err, models.ErrJobNotFound):
			return "", common.Errf(http.StatusNotFound, "job not found")
		case errors.Is(err, models.ErrInvalidTransition):
			return "", common.Errf(http.StatusConflict, "job already finished")
		default:
			return "", common.Internal(err, "failed to cancel job")
		}
	}
	return outcome, nil
}
