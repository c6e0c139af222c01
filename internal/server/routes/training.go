package routes

import (
	"errors"
	"net/http"
	"strings"

	"github.com/OFFIS-RIT/kgops/internal/server/middleware"
	"github.com/OFFIS-RIT/kgops/pkg/ai"
	"github.com/OFFIS-RIT/kgops/pkg/finetune"
	"github.com/OFFIS-RIT/kgops/pkg/training"

	"github.com/labstack/echo/v4"
)

// CollectHandler writes a training corpus. Fields left out of the body
// keep the configured defaults.
func CollectHandler(c echo.Context) error {
	type collectBody struct {
		MinQualityScore         *float64 `json:"min_quality_score" validate:"omitempty,min=0,max=1"`
		MaxSamples              *int     `json:"max_samples" validate:"omitempty,min=1"`
		IncludeNegativeExamples *bool    `json:"include_negative_examples"`
		TimeRangeDays           *int     `json:"time_range_days" validate:"omitempty,min=1"`
	}

	data := new(collectBody)
	if c.Request().ContentLength > 0 {
		if err := c.Bind(data); err != nil {
			return c.JSON(http.StatusBadRequest, map[string]string{"error": "Invalid request body"})
		}
		if err := c.Validate(data); err != nil {
			return c.JSON(http.StatusBadRequest, map[string]string{"error": "Invalid request body"})
		}
	}

	cc := c.(*middleware.AppContext)
	cfg := cc.App.Collect.Defaults()
	if data.MinQualityScore != nil {
		cfg.MinQualityScore = *data.MinQualityScore
	}
	if data.MaxSamples != nil {
		cfg.MaxSamples = *data.MaxSamples
	}
	if data.IncludeNegativeExamples != nil {
		cfg.IncludeNegativeExamples = *data.IncludeNegativeExamples
	}
	if data.TimeRangeDays != nil {
		cfg.TimeRangeDays = *data.TimeRangeDays
	}

	res, err := cc.App.Collect.Collect(c.Request().Context(), c.Param("userId"), cfg)
	if err != nil {
		return internalError(c, "Failed to collect training data", err)
	}
	return c.JSON(http.StatusOK, res)
}

func SubmitJobHandler(c echo.Context) error {
	type submitBody struct {
		TrainingPath    string  `json:"training_path" validate:"required"`
		ModelName       string  `json:"model_name" validate:"required"`
		BaseModel       string  `json:"base_model"`
		Epochs          int     `json:"epochs" validate:"omitempty,min=1"`
		LearningRate    float64 `json:"learning_rate" validate:"omitempty,gt=0"`
		BatchSize       int     `json:"batch_size" validate:"omitempty,min=1"`
		ValidationSplit float64 `json:"validation_split" validate:"omitempty,gte=0,lt=1"`
	}

	data := new(submitBody)
	if err := c.Bind(data); err != nil {
		return c.JSON(http.StatusBadRequest, map[string]string{"error": "Invalid request body"})
	}
	if err := c.Validate(data); err != nil {
		return c.JSON(http.StatusBadRequest, map[string]string{"error": "Invalid request body"})
	}

	userID := c.Param("userId")
	if !strings.HasPrefix(data.TrainingPath, training.CorpusPrefix+userID+"/") {
		return c.JSON(http.StatusForbidden, map[string]string{"error": "Forbidden: corpus belongs to another user"})
	}

	cc := c.(*middleware.AppContext)
	job, err := cc.App.FineTune.Submit(c.Request().Context(), finetune.SubmitRequest{
		UserID:          userID,
		TrainingPath:    data.TrainingPath,
		ModelName:       data.ModelName,
		BaseModel:       data.BaseModel,
		Epochs:          data.Epochs,
		LearningRate:    data.LearningRate,
		BatchSize:       data.BatchSize,
		ValidationSplit: data.ValidationSplit,
	})
	if errors.Is(err, finetune.ErrMissingInput) {
		return c.JSON(http.StatusBadRequest, map[string]string{"error": err.Error()})
	}
	if err != nil {
		return internalError(c, "Failed to submit fine-tune job", err)
	}
	return c.JSON(http.StatusCreated, job)
}

func ListJobsHandler(c echo.Context) error {
	cc := c.(*middleware.AppContext)
	jobs, err := cc.App.FineTune.ListJobs(c.Request().Context(), c.Param("userId"))
	if err != nil {
		return internalError(c, "Failed to list fine-tune jobs", err)
	}
	if jobs == nil {
		jobs = []ai.JobStatus{}
	}
	return c.JSON(http.StatusOK, jobs)
}

// JobStatusHandler answers 404 for a job that belongs to another user.
func JobStatusHandler(c echo.Context) error {
	cc := c.(*middleware.AppContext)
	st, err := cc.App.FineTune.Status(c.Request().Context(), c.Param("jobId"))
	if err != nil {
		return internalError(c, "Failed to get fine-tune job status", err)
	}
	if st.UserID != c.Param("userId") {
		return c.JSON(http.StatusNotFound, map[string]string{"error": "Fine-tune job not found"})
	}
	return c.JSON(http.StatusOK, st)
}

func EvaluateHandler(c echo.Context) error {
	type evaluateBody struct {
		ModelID string `json:"model_id" validate:"required"`
	}

	data := new(evaluateBody)
	if err := c.Bind(data); err != nil {
		return c.JSON(http.StatusBadRequest, map[string]string{"error": "Invalid request body"})
	}
	if err := c.Validate(data); err != nil {
		return c.JSON(http.StatusBadRequest, map[string]string{"error": "Invalid request body"})
	}

	cc := c.(*middleware.AppContext)
	ev, err := cc.App.FineTune.Evaluate(c.Request().Context(), data.ModelID, c.Param("userId"))
	switch {
	case errors.Is(err, ai.ErrModelNotReady):
		return c.JSON(http.StatusConflict, map[string]string{"error": err.Error()})
	case errors.Is(err, finetune.ErrNoTestData):
		return c.JSON(http.StatusUnprocessableEntity, map[string]string{"error": err.Error()})
	case err != nil:
		return internalError(c, "Failed to evaluate model", err)
	}
	return c.JSON(http.StatusOK, ev)
}
