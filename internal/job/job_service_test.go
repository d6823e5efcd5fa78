package job

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"testing"
	"time"

	"github.com/joshu-sajeev/wastewise/common"
	"github.com/joshu-sajeev/wastewise/internal/config"
	"github.com/joshu-sajeev/wastewise/internal/dto"
	"github.com/joshu-sajeev/wastewise/internal/mocks"
	"github.com/joshu-sajeev/wastewise/internal/models"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"
	"gorm.io/datatypes"
)

const testPropertyID = "7d0f1c7e-2c61-4d5c-9a43-1f4b0c6f8e21"

func intPtr(v int) *int { return &v }

func TestJobService_CreateJob(t *testing.T) {
	tests := []struct {
		name          string
		principal     string
		dto           *dto.JobCreateDTO
		setupProps    func(*mocks.PropertyLookupMock)
		setupMock     func(*mocks.JobRepoMock)
		setupCtx      func() context.Context
		wantStatus    int
		errContains   string
		skipRepoCall  bool
		checkResponse func(*testing.T, *dto.JobStatusDTO)
	}{
		{
			name:      "defaults applied",
			principal: "user-1",
			dto: &dto.JobCreateDTO{
				JobType:    "complete_analysis",
				PropertyID: testPropertyID,
			},
			setupProps: func(m *mocks.PropertyLookupMock) {
				m.On("PropertyExists", mock.Anything, testPropertyID).Return(true, nil)
			},
			setupMock: func(m *mocks.JobRepoMock) {
				m.On("Create", mock.Anything, mock.MatchedBy(func(job *models.Job) bool {
					return job.JobType == config.JobTypeCompleteAnalysis &&
						job.Priority == config.DefaultPriority &&
						job.MaxRetries == config.DefaultMaxRetries &&
						job.Status == config.JobStatusPending &&
						job.PrincipalID == "user-1" &&
						job.InputData == nil
				})).Return(nil).Run(func(args mock.Arguments) {
					args.Get(1).(*models.Job).ID = "job-1"
				})
			},
			checkResponse: func(t *testing.T, resp *dto.JobStatusDTO) {
				assert.Equal(t, "job-1", resp.ID)
				assert.Equal(t, "pending", resp.Status)
				assert.Equal(t, 0, resp.Progress.Percent)
				assert.Nil(t, resp.Error)
			},
		},
		{
			name:      "explicit priority, retries and input",
			principal: "user-2",
			dto: &dto.JobCreateDTO{
				JobType:    "report_generation",
				PropertyID: testPropertyID,
				Priority:   intPtr(1),
				MaxRetries: intPtr(0),
				InputData:  []byte(`{"reportYear":2025}`),
			},
			setupProps: func(m *mocks.PropertyLookupMock) {
				m.On("PropertyExists", mock.Anything, testPropertyID).Return(true, nil)
			},
			setupMock: func(m *mocks.JobRepoMock) {
				m.On("Create", mock.Anything, mock.MatchedBy(func(job *models.Job) bool {
					return job.Priority == 1 &&
						job.MaxRetries == 0 &&
						string(job.InputData) == `{"reportYear":2025}`
				})).Return(nil)
			},
		},
		{
			name: "missing principal",
			dto: &dto.JobCreateDTO{
				JobType:    "complete_analysis",
				PropertyID: testPropertyID,
			},
			wantStatus:   http.StatusBadRequest,
			errContains:  "X-Principal-ID",
			skipRepoCall: true,
		},
		{
			name:      "invalid job type",
			principal: "user-1",
			dto: &dto.JobCreateDTO{
				JobType:    "send_email",
				PropertyID: testPropertyID,
			},
			wantStatus:   http.StatusBadRequest,
			errContains:  "invalid job type",
			skipRepoCall: true,
		},
		{
			name:      "priority out of range",
			principal: "user-1",
			dto: &dto.JobCreateDTO{
				JobType:    "invoice_extraction",
				PropertyID: testPropertyID,
				Priority:   intPtr(11),
			},
			wantStatus:   http.StatusBadRequest,
			errContains:  "priority",
			skipRepoCall: true,
		},
		{
			name:      "max retries out of range",
			principal: "user-1",
			dto: &dto.JobCreateDTO{
				JobType:    "invoice_extraction",
				PropertyID: testPropertyID,
				MaxRetries: intPtr(-1),
			},
			wantStatus:   http.StatusBadRequest,
			errContains:  "maxRetries",
			skipRepoCall: true,
		},
		{
			name:      "malformed input data",
			principal: "user-1",
			dto: &dto.JobCreateDTO{
				JobType:    "complete_analysis",
				PropertyID: testPropertyID,
				InputData:  []byte(`{invalid}`),
			},
			wantStatus:   http.StatusBadRequest,
			errContains:  "inputData must be valid JSON",
			skipRepoCall: true,
		},
		{
			name:      "input fails validation",
			principal: "user-1",
			dto: &dto.JobCreateDTO{
				JobType:    "regulatory_research",
				PropertyID: testPropertyID,
				InputData:  []byte(`{"state":"texas"}`),
			},
			wantStatus:   http.StatusBadRequest,
			errContains:  "inputData validation failed",
			skipRepoCall: true,
		},
		{
			name:      "unknown property",
			principal: "user-1",
			dto: &dto.JobCreateDTO{
				JobType:    "complete_analysis",
				PropertyID: testPropertyID,
			},
			setupProps: func(m *mocks.PropertyLookupMock) {
				m.On("PropertyExists", mock.Anything, testPropertyID).Return(false, nil)
			},
			wantStatus:   http.StatusNotFound,
			errContains:  "property not found",
			skipRepoCall: true,
		},
		{
			name:      "repository failure",
			principal: "user-1",
			dto: &dto.JobCreateDTO{
				JobType:    "complete_analysis",
				PropertyID: testPropertyID,
			},
			setupProps: func(m *mocks.PropertyLookupMock) {
				m.On("PropertyExists", mock.Anything, testPropertyID).Return(true, nil)
			},
			setupMock: func(m *mocks.JobRepoMock) {
				m.On("Create", mock.Anything, mock.Anything).Return(errors.New("connection reset"))
			},
			wantStatus:  http.StatusInternalServerError,
			errContains: "failed to add job",
		},
		{
			name:      "context timeout before repo call",
			principal: "user-1",
			dto: &dto.JobCreateDTO{
				JobType:    "complete_analysis",
				PropertyID: testPropertyID,
			},
			setupCtx: func() context.Context {
				ctx, cancel := context.WithTimeout(context.Background(), time.Nanosecond)
				defer cancel()
				time.Sleep(5 * time.Millisecond)
				return ctx
			},
			wantStatus:   http.StatusRequestTimeout,
			errContains:  "request",
			skipRepoCall: true,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			repo := new(mocks.JobRepoMock)
			props := new(mocks.PropertyLookupMock)
			if tt.setupMock != nil {
				tt.setupMock(repo)
			}
			if tt.setupProps != nil {
				tt.setupProps(props)
			}

			ctx := context.Background()
			if tt.setupCtx != nil {
				ctx = tt.setupCtx()
			}

			s := NewJobService(repo, props)
			resp, err := s.CreateJob(ctx, tt.principal, tt.dto)

			if tt.wantStatus != 0 {
				require.Error(t, err)
				var apiErr common.APIError
				require.ErrorAs(t, err, &apiErr)
				assert.Equal(t, tt.wantStatus, apiErr.Status)
				assert.Contains(t, err.Error(), tt.errContains)
			} else {
				require.NoError(t, err)
				require.NotNil(t, resp)
				if tt.checkResponse != nil {
					tt.checkResponse(t, resp)
				}
			}

			repo.AssertExpectations(t)
			props.AssertExpectations(t)
			if tt.skipRepoCall {
				repo.AssertNumberOfCalls(t, "Create", 0)
			}
		})
	}
}

func TestJobService_GetJobByID(t *testing.T) {
	started := time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)
	retryAfter := started.Add(time.Minute)

	tests := []struct {
		name       string
		setupMock  func(*mocks.JobRepoMock)
		wantStatus int
		check      func(*testing.T, *dto.JobStatusDTO)
	}{
		{
			name: "pending retry still shows last error",
			setupMock: func(m *mocks.JobRepoMock) {
				m.On("Get", mock.Anything, "job-1").Return(&models.Job{
					ID:           "job-1",
					JobType:      config.JobTypeCompleteAnalysis,
					Status:       config.JobStatusPending,
					ErrorMessage: "database unavailable",
					ErrorCode:    "INFRASTRUCTURE",
					RetryCount:   1,
					MaxRetries:   3,
					RetryAfter:   &retryAfter,
					StartedAt:    &started,
				}, nil)
			},
			check: func(t *testing.T, resp *dto.JobStatusDTO) {
				require.NotNil(t, resp.Error)
				assert.Equal(t, "database unavailable", resp.Error.Message)
				assert.Equal(t, "INFRASTRUCTURE", resp.Error.Code)
				assert.Equal(t, 1, resp.RetryCount)
				assert.Equal(t, &retryAfter, resp.Timing.RetryAfter)
			},
		},
		{
			name: "completed job exposes result summary",
			setupMock: func(m *mocks.JobRepoMock) {
				m.On("Get", mock.Anything, "job-1").Return(&models.Job{
					ID:         "job-1",
					Status:     config.JobStatusCompleted,
					Percent:    100,
					ResultData: datatypes.JSON(`{"jobType":"complete_analysis","steps":{},"summary":{"headline":"x"}}`),
				}, nil)
			},
			check: func(t *testing.T, resp *dto.JobStatusDTO) {
				assert.Equal(t, 100, resp.Progress.Percent)
				assert.JSONEq(t, `{"headline":"x"}`, string(resp.ResultSummary))
			},
		},
		{
			name: "not found",
			setupMock: func(m *mocks.JobRepoMock) {
				m.On("Get", mock.Anything, "job-1").
					Return(nil, fmt.Errorf("get job job-1: %w", models.ErrJobNotFound))
			},
			wantStatus: http.StatusNotFound,
		},
		{
			name: "deadline exceeded",
			setupMock: func(m *mocks.JobRepoMock) {
				m.On("Get", mock.Anything, "job-1").
					Return(nil, fmt.Errorf("get job: %w", context.DeadlineExceeded))
			},
			wantStatus: http.StatusRequestTimeout,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			repo := new(mocks.JobRepoMock)
			tt.setupMock(repo)

			s := NewJobService(repo, new(mocks.PropertyLookupMock))
			resp, err := s.GetJobByID(context.Background(), "job-1")

			if tt.wantStatus != 0 {
				var apiErr common.APIError
				require.ErrorAs(t, err, &apiErr)
				assert.Equal(t, tt.wantStatus, apiErr.Status)
				return
			}
			require.NoError(t, err)
			tt.check(t, resp)
			repo.AssertExpectations(t)
		})
	}
}

func TestJobService_ListJobs(t *testing.T) {
	t.Run("passes filter through", func(t *testing.T) {
		repo := new(mocks.JobRepoMock)
		repo.On("List", mock.Anything, models.JobFilter{
			PropertyID:  testPropertyID,
			PrincipalID: "user-1",
			Status:      config.JobStatusFailed,
			Limit:       10,
		}).Return([]models.Job{{ID: "a"}, {ID: "b"}}, nil)

		s := NewJobService(repo, new(mocks.PropertyLookupMock))
		jobs, err := s.ListJobs(context.Background(), dto.JobListQuery{
			PropertyID:  testPropertyID,
			PrincipalID: "user-1",
			Status:      "failed",
			Limit:       10,
		})

		require.NoError(t, err)
		require.Len(t, jobs, 2)
		assert.Equal(t, "a", jobs[0].ID)
		repo.AssertExpectations(t)
	})

	t.Run("rejects unknown status", func(t *testing.T) {
		repo := new(mocks.JobRepoMock)
		s := NewJobService(repo, new(mocks.PropertyLookupMock))

		_, err := s.ListJobs(context.Background(), dto.JobListQuery{Status: "queued"})

		var apiErr common.APIError
		require.ErrorAs(t, err, &apiErr)
		assert.Equal(t, http.StatusBadRequest, apiErr.Status)
		repo.AssertNumberOfCalls(t, "List", 0)
	})
}

func TestJobService_CancelJob(t *testing.T) {
	tests := []struct {
		name        string
		repoOutcome models.CancelOutcome
		repoErr     error
		want        models.CancelOutcome
		wantStatus  int
	}{
		{name: "pending cancelled", repoOutcome: models.CancelOutcomeCancelled, want: models.CancelOutcomeCancelled},
		{name: "processing flagged", repoOutcome: models.CancelOutcomeRequested, want: models.CancelOutcomeRequested},
		{name: "terminal conflict", repoErr: fmt.Errorf("cancel job: %w", models.ErrInvalidTransition), wantStatus: http.StatusConflict},
		{name: "unknown job", repoErr: fmt.Errorf("cancel job: %w", models.ErrJobNotFound), wantStatus: http.StatusNotFound},
		{name: "store failure", repoErr: errors.New("boom"), wantStatus: http.StatusInternalServerError},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			repo := new(mocks.JobRepoMock)
			repo.On("Cancel", mock.Anything, "job-1").Return(tt.repoOutcome, tt.repoErr)

			s := NewJobService(repo, new(mocks.PropertyLookupMock))
			got, err := s.CancelJob(context.Background(), "job-1")

			if tt.wantStatus != 0 {
				var apiErr common.APIError
				require.ErrorAs(t, err, &apiErr)
				assert.Equal(t, tt.wantStatus, apiErr.Status)
				return
			}
			require.NoError(t, err)
			assert.Equal(t, tt.want, got)
		})
	}
}
