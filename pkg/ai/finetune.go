package ai

import (
	"context"
	"errors"
	"time"
)

// ErrModelNotReady is returned when a fine-tuned model cannot be used yet.
var ErrModelNotReady = errors.New("model not ready")

// Terminal provider statuses. Everything else is treated as in progress.
const (
	JobStatusSucceeded = "succeeded"
	JobStatusFailed    = "failed"
	JobStatusCancelled = "cancelled"
)

func IsTerminalStatus(status string) bool {
	switch status {
	case JobStatusSucceeded, JobStatusFailed, JobStatusCancelled:
		return true
	}
	return false
}

// FineTuneConfig describes the job to run. Zero numeric values let the
// provider choose.
type FineTuneConfig struct {
	UserID       string
	ModelName    string
	BaseModel    string
	Epochs       int
	LearningRate float64
	BatchSize    int
}

// FineTuneRequest carries an already split corpus in JSONL form.
type FineTuneRequest struct {
	TrainingPath string
	Training     []byte
	Validation   []byte
	Config       FineTuneConfig
}

type SubmittedJob struct {
	JobID          string
	ModelName      string
	Status         string
	TrainingSize   int
	ValidationSize int
}

// JobStatus is the provider's view of a job. UserID is the owner recorded
// at submit time, empty when the provider has none.
type JobStatus struct {
	JobID          string     `json:"jobId"`
	UserID         string     `json:"userId,omitempty"`
	ModelName      string     `json:"modelName,omitempty"`
	Status         string     `json:"status"`
	FineTunedModel string     `json:"fineTunedModel,omitempty"`
	CreatedAt      time.Time  `json:"createdAt"`
	FinishedAt     *time.Time `json:"finishedAt,omitempty"`
	Error          string     `json:"error,omitempty"`
}

type EvaluationSample struct {
	Prompt   string `json:"prompt"`
	Expected string `json:"expected"`
}

type EvaluationMetrics struct {
	Accuracy          float64 `json:"accuracy"`
	AverageConfidence float64 `json:"averageConfidence"`
	CorrectAnswers    int     `json:"correctAnswers"`
	TotalQuestions    int     `json:"totalQuestions"`
}

// FineTuneProvider is the external model-training backend.
type FineTuneProvider interface {
	Submit(ctx context.Context, req FineTuneRequest) (SubmittedJob, error)
	Status(ctx context.Context, jobID string) (JobStatus, error)
	ListJobs(ctx context.Context, userID string) ([]JobStatus, error)
	ModelReady(ctx context.Context, modelID string) (bool, error)
	Evaluate(ctx context.Context, modelID string, samples []EvaluationSample) (EvaluationMetrics, error)
}
