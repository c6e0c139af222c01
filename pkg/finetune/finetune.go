// Package finetune drives model fine-tuning jobs on an external provider.
package finetune

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"math"
	"strings"
	"time"

	"github.com/OFFIS-RIT/kgops/pkg/ai"
	"github.com/OFFIS-RIT/kgops/pkg/common"
	"github.com/OFFIS-RIT/kgops/pkg/logger"
	"github.com/OFFIS-RIT/kgops/pkg/store"
	"github.com/OFFIS-RIT/kgops/pkg/training"
)

var (
	ErrMissingInput     = errors.New("training corpus path is required")
	ErrNoTestData       = errors.New("no held-out samples available for evaluation")
	ErrInvalidRetention = errors.New("retention days must be positive")
)

// Collector is the part of training.Collector the controller needs.
type Collector interface {
	Collect(ctx context.Context, userID string, cfg training.Config) (training.Result, error)
	CountInteractions(ctx context.Context, userID string, days int) (int, error)
	HeldOutSet(ctx context.Context, userID string, n int) ([]ai.EvaluationSample, error)
}

type Controller struct {
	provider  ai.FineTuneProvider
	jobs      store.JobStore
	artifacts store.ArtifactStore
	collector Collector

	evalSamples int
	now         func() time.Time
}

type NewControllerParams struct {
	Provider  ai.FineTuneProvider
	Jobs      store.JobStore
	Artifacts store.ArtifactStore
	Collector Collector

	// EvalSamples is the size of the held-out set. Defaults to 50.
	EvalSamples int
	Now         func() time.Time
}

func NewController(params NewControllerParams) *Controller {
	c := &Controller{
		provider:    params.Provider,
		jobs:        params.Jobs,
		artifacts:   params.Artifacts,
		collector:   params.Collector,
		evalSamples: params.EvalSamples,
		now:         params.Now,
	}
	if c.evalSamples <= 0 {
		c.evalSamples = 50
	}
	if c.now == nil {
		c.now = time.Now
	}
	return c
}

// SubmitRequest describes a training job. Zero numeric fields leave the
// choice to the provider.
type SubmitRequest struct {
	UserID          string  `json:"userId"`
	TrainingPath    string  `json:"trainingPath"`
	ModelName       string  `json:"modelName"`
	BaseModel       string  `json:"baseModel,omitempty"`
	Epochs          int     `json:"epochs,omitempty"`
	LearningRate    float64 `json:"learningRate,omitempty"`
	BatchSize       int     `json:"batchSize,omitempty"`
	ValidationSplit float64 `json:"validationSplit,omitempty"`
}

// splitCorpus moves the last ceil(n*split) lines into the validation set,
// keeping at least one training line.
func splitCorpus(corpus []byte, split float64) (train, validation []byte) {
	var lines [][]byte
	for line := range bytes.SplitSeq(corpus, []byte("\n")) {
		if len(bytes.TrimSpace(line)) > 0 {
			lines = append(lines, line)
		}
	}
	n := 0
	if split > 0 && len(lines) > 1 {
		n = min(int(math.Ceil(float64(len(lines))*split)), len(lines)-1)
	}
	join := func(ls [][]byte) []byte {
		if len(ls) == 0 {
			return nil
		}
		return append(bytes.Join(ls, []byte("\n")), '\n')
	}
	cut := len(lines) - n
	return join(lines[:cut]), join(lines[cut:])
}

// Submit reads the corpus at TrainingPath, splits off the validation set
// and starts a job. The job is recorded locally with the provider's
// initial status.
func (c *Controller) Submit(ctx context.Context, req SubmitRequest) (common.FineTuneJob, error) {
	if strings.TrimSpace(req.TrainingPath) == "" {
		return common.FineTuneJob{}, ErrMissingInput
	}
	corpus, err := c.artifacts.Get(ctx, req.TrainingPath)
	if err != nil {
		if errors.Is(err, store.ErrNotFound) {
			return common.FineTuneJob{}, fmt.Errorf("%w: %s does not exist", ErrMissingInput, req.TrainingPath)
		}
		return common.FineTuneJob{}, fmt.Errorf("failed to read corpus: %w", err)
	}
	train, validation := splitCorpus(corpus, req.ValidationSplit)
	if len(train) == 0 {
		return common.FineTuneJob{}, fmt.Errorf("%w: %s is empty", ErrMissingInput, req.TrainingPath)
	}

	submitted, err := c.provider.Submit(ctx, ai.FineTuneRequest{
		TrainingPath: req.TrainingPath,
		Training:     train,
		Validation:   validation,
		Config: ai.FineTuneConfig{
			UserID:       req.UserID,
			ModelName:    req.ModelName,
			BaseModel:    req.BaseModel,
			Epochs:       req.Epochs,
			LearningRate: req.LearningRate,
			BatchSize:    req.BatchSize,
		},
	})
	if err != nil {
		return common.FineTuneJob{}, fmt.Errorf("failed to submit job: %w", err)
	}

	job := common.FineTuneJob{
		ID:             submitted.JobID,
		UserID:         req.UserID,
		ModelName:      req.ModelName,
		BaseModel:      req.BaseModel,
		Status:         submitted.Status,
		TrainingSize:   submitted.TrainingSize,
		ValidationSize: submitted.ValidationSize,
		CorpusKey:      req.TrainingPath,
		CreatedAt:      c.now().UTC(),
	}
	if err := c.jobs.SaveJob(ctx, job); err != nil {
		return job, fmt.Errorf("job %s submitted but not recorded: %w", job.ID, err)
	}
	logger.Info("[FineTune] Job submitted", "job", job.ID, "user_id", req.UserID, "training", job.TrainingSize, "validation", job.ValidationSize)
	return job, nil
}

// Status returns the provider's view of jobID without touching local state.
func (c *Controller) Status(ctx context.Context, jobID string) (ai.JobStatus, error) {
	return c.provider.Status(ctx, jobID)
}

// ListJobs returns every job the provider knows for userID.
func (c *Controller) ListJobs(ctx context.Context, userID string) ([]ai.JobStatus, error) {
	return c.provider.ListJobs(ctx, userID)
}

// Refresh polls the provider for every unfinished local job of userID and
// records status changes. It returns the number of jobs updated.
func (c *Controller) Refresh(ctx context.Context, userID string) (int, error) {
	jobs, err := c.jobs.ListJobs(ctx, userID)
	if err != nil {
		return 0, fmt.Errorf("failed to list jobs: %w", err)
	}
	updated := 0
	for _, job := range jobs {
		if ai.IsTerminalStatus(job.Status) {
			continue
		}
		st, err := c.provider.Status(ctx, job.ID)
		if err != nil {
			logger.Warn("[FineTune] Status poll failed", "job", job.ID, "err", err)
			continue
		}
		if st.Status == job.Status && st.FineTunedModel == job.FineTunedModel {
			continue
		}
		job.Status = st.Status
		job.FineTunedModel = st.FineTunedModel
		job.FinishedAt = st.FinishedAt
		if job.FinishedAt == nil && ai.IsTerminalStatus(st.Status) {
			t := c.now().UTC()
			job.FinishedAt = &t
		}
		if err := c.jobs.SaveJob(ctx, job); err != nil {
			return updated, fmt.Errorf("failed to record job %s: %w", job.ID, err)
		}
		updated++
	}
	return updated, nil
}

// Evaluation is the result of running a model over a held-out set.
type Evaluation struct {
	ModelID     string               `json:"modelId"`
	UserID      string               `json:"userId"`
	TestSamples int                  `json:"testSamples"`
	Metrics     ai.EvaluationMetrics `json:"metrics"`
}

// Evaluate runs modelID over the user's held-out samples. It returns
// ai.ErrModelNotReady when the provider cannot serve the model yet.
func (c *Controller) Evaluate(ctx context.Context, modelID, userID string) (Evaluation, error) {
	if modelID == "" {
		return Evaluation{}, ErrMissingInput
	}
	ready, err := c.provider.ModelReady(ctx, modelID)
	if err != nil {
		return Evaluation{}, fmt.Errorf("failed to check model: %w", err)
	}
	if !ready {
		return Evaluation{}, fmt.Errorf("%w: %s", ai.ErrModelNotReady, modelID)
	}

	samples, err := c.collector.HeldOutSet(ctx, userID, c.evalSamples)
	if err != nil {
		return Evaluation{}, err
	}
	if len(samples) == 0 {
		return Evaluation{}, ErrNoTestData
	}

	metrics, err := c.provider.Evaluate(ctx, modelID, samples)
	if err != nil {
		return Evaluation{}, fmt.Errorf("failed to evaluate model: %w", err)
	}
	logger.Info("[FineTune] Model evaluated", "model", modelID, "accuracy", metrics.Accuracy, "samples", len(samples))
	return Evaluation{ModelID: modelID, UserID: userID, TestSamples: len(samples), Metrics: metrics}, nil
}
