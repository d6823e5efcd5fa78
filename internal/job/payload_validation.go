package job

import (
	"encoding/json"
	"net/http"

	"github.com/go-playground/validator/v10"
	"github.com/joshu-sajeev/wastewise/common"
	"github.com/joshu-sajeev/wastewise/internal/config"
	"github.com/joshu-sajeev/wastewise/internal/dto"
	"github.com/joshu-sajeev/wastewise/middleware"
)

var validate = validator.New()

func validatePayload[T any](raw json.RawMessage) error {
	var payload T

	if err := json.Unmarshal(raw, &payload); err != nil {
		return common.APIError{
			Status:  http.StatusBadRequest,
			Message: "invalid inputData format",
		}
	}

	if err := validate.Struct(payload); err != nil {
		return common.APIError{
			Status:  http.StatusBadRequest,
			Message: "inputData validation failed",
			Fields:  middleware.FormatValidationErrors(err),
		}
	}

	return nil
}

// validateInput checks inputData against the shape its job type reads. An
// absent inputData is always accepted.
func validateInput(jobType config.JobType, raw json.RawMessage) error {
	if len(raw) == 0 || string(raw) == "null" {
		return nil
	}
	if !json.Valid(raw) {
		return common.Errf(http.StatusBadRequest, "inputData must be valid JSON")
	}

	switch jobType {
	case config.JobTypeRegulatoryResearch:
		return validatePayload[dto.RegulatoryInput](raw)
	case config.JobTypeCompleteAnalysis,
		config.JobTypeInvoiceExtraction,
		config.JobTypeReportGeneration:
		return validatePayload[dto.AnalysisInput](raw)
	}
	return nil
}
