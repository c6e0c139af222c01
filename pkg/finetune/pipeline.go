package finetune

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/OFFIS-RIT/kgops/pkg/common"
	"github.com/OFFIS-RIT/kgops/pkg/logger"
	"github.com/OFFIS-RIT/kgops/pkg/training"
)

type PipelineOutcome string

const (
	OutcomeInsufficientData    PipelineOutcome = "insufficient_data"
	OutcomeInsufficientSamples PipelineOutcome = "insufficient_samples"
	OutcomeSubmitted           PipelineOutcome = "submitted"
)

// PipelineConfig gates an automated run. Submit supplies the job settings;
// its UserID and TrainingPath are filled in by the pipeline.
type PipelineConfig struct {
	MinInteractions int             `toml:"min_interactions"`
	MinSamples      int             `toml:"min_samples"`
	WindowDays      int             `toml:"window_days"`
	Training        training.Config `toml:"-"`
	Submit          SubmitRequest   `toml:"-"`
}

func DefaultPipelineConfig() PipelineConfig {
	return PipelineConfig{
		MinInteractions: 100,
		MinSamples:      50,
		WindowDays:      30,
		Training:        training.DefaultConfig(),
	}
}

type PipelineResult struct {
	UserID       string              `json:"userId"`
	Outcome      PipelineOutcome     `json:"outcome"`
	Interactions int                 `json:"interactions"`
	Collection   *training.Result    `json:"collection,omitempty"`
	Job          *common.FineTuneJob `json:"job,omitempty"`
}

// RunPipeline collects and submits when both data gates pass. A gate that
// is not met ends the run with the matching outcome and a nil error.
func (c *Controller) RunPipeline(ctx context.Context, userID string, cfg PipelineConfig) (PipelineResult, error) {
	res := PipelineResult{UserID: userID}

	n, err := c.collector.CountInteractions(ctx, userID, cfg.WindowDays)
	if err != nil {
		return res, err
	}
	res.Interactions = n
	if n < cfg.MinInteractions {
		res.Outcome = OutcomeInsufficientData
		logger.Info("[FineTune] Pipeline stopped", "user_id", userID, "outcome", res.Outcome, "interactions", n, "required", cfg.MinInteractions)
		return res, nil
	}

	collected, err := c.collector.Collect(ctx, userID, cfg.Training)
	if err != nil {
		return res, fmt.Errorf("failed to collect training data: %w", err)
	}
	res.Collection = &collected
	if collected.HighQualityCount < cfg.MinSamples {
		res.Outcome = OutcomeInsufficientSamples
		logger.Info("[FineTune] Pipeline stopped", "user_id", userID, "outcome", res.Outcome, "samples", collected.HighQualityCount, "required", cfg.MinSamples)
		return res, nil
	}

	req := cfg.Submit
	req.UserID = userID
	req.TrainingPath = collected.CorpusKey
	if req.ModelName == "" {
		req.ModelName = fmt.Sprintf("%s-%s", sanitize(userID), collected.CollectedAt.UTC().Format("20060102"))
	}
	if req.ValidationSplit == 0 {
		req.ValidationSplit = cfg.Training.ValidationSplit
	}
	job, err := c.Submit(ctx, req)
	if err != nil {
		return res, err
	}
	res.Job = &job
	res.Outcome = OutcomeSubmitted
	return res, nil
}

func sanitize(s string) string {
	return strings.Map(func(r rune) rune {
		if (r >= 'a' && r <= 'z') || (r >= '0' && r <= '9') || r == '-' {
			return r
		}
		if r >= 'A' && r <= 'Z' {
			return r + ('a' - 'A')
		}
		return '-'
	}, s)
}

type CleanupResult struct {
	ArtifactsDeleted int       `json:"artifactsDeleted"`
	JobsDeleted      int       `json:"jobsDeleted"`
	Cutoff           time.Time `json:"cutoff"`
}

// Cleanup deletes corpus artifacts last modified before now minus
// retentionDays and job records that finished before the same cutoff.
// Running it twice with the same retention deletes nothing the second time.
func (c *Controller) Cleanup(ctx context.Context, retentionDays int) (CleanupResult, error) {
	if retentionDays <= 0 {
		return CleanupResult{}, ErrInvalidRetention
	}
	cutoff := c.now().UTC().AddDate(0, 0, -retentionDays)
	res := CleanupResult{Cutoff: cutoff}

	artifacts, err := c.artifacts.List(ctx, training.CorpusPrefix)
	if err != nil {
		return res, fmt.Errorf("failed to list artifacts: %w", err)
	}
	for _, a := range artifacts {
		if !a.LastModified.Before(cutoff) {
			continue
		}
		if err := c.artifacts.Delete(ctx, a.Key); err != nil {
			return res, fmt.Errorf("failed to delete %s: %w", a.Key, err)
		}
		res.ArtifactsDeleted++
	}

	jobs, err := c.jobs.DeleteFinishedJobsBefore(ctx, cutoff)
	if err != nil {
		return res, fmt.Errorf("failed to delete jobs: %w", err)
	}
	res.JobsDeleted = jobs

	logger.Info("[FineTune] Cleanup finished", "artifacts", res.ArtifactsDeleted, "jobs", res.JobsDeleted, "cutoff", cutoff)
	return res, nil
}
