package openai

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"math"
	"net/http"
	"path"
	"strings"
	"time"
	"unicode"

	"github.com/OFFIS-RIT/kgops/pkg/ai"
	"github.com/OFFIS-RIT/kgops/pkg/logger"

	"github.com/openai/openai-go/v3"
	"github.com/openai/openai-go/v3/shared"
	"golang.org/x/sync/errgroup"
)

// Answers whose token overlap with the expected answer reaches this
// Jaccard index count as correct.
const correctOverlap = 0.5

// FineTuneProvider submits and tracks fine-tuning jobs on the OpenAI API.
type FineTuneProvider struct {
	client          *openai.Client
	baseModel       string
	evalConcurrency int
	systemPrompt    string
}

type NewFineTuneProviderParams struct {
	URL       string
	Key       string
	BaseModel string

	// EvalConcurrency bounds parallel evaluation requests. Defaults to 4.
	EvalConcurrency int
}

func NewFineTuneProvider(params NewFineTuneProviderParams) *FineTuneProvider {
	conc := params.EvalConcurrency
	if conc <= 0 {
		conc = 4
	}
	return &FineTuneProvider{
		client:          newOpenaiClient(params.URL, params.Key),
		baseModel:       params.BaseModel,
		evalConcurrency: conc,
		systemPrompt:    ai.CorpusSystemPrompt,
	}
}

func (p *FineTuneProvider) ready() error {
	if p.client == nil {
		return errNoClient
	}
	return nil
}

func (p *FineTuneProvider) upload(ctx context.Context, name string, data []byte) (string, error) {
	file, err := p.client.Files.New(ctx, openai.FileNewParams{
		File:    openai.File(bytes.NewReader(data), name, "application/jsonl"),
		Purpose: openai.FilePurposeFineTune,
	})
	if err != nil {
		return "", fmt.Errorf("upload %s: %w", name, err)
	}
	return file.ID, nil
}

// Submit uploads the training and validation corpora and creates the job.
// The job carries the user id as metadata so ListJobs can filter on it.
func (p *FineTuneProvider) Submit(ctx context.Context, req ai.FineTuneRequest) (ai.SubmittedJob, error) {
	if err := p.ready(); err != nil {
		return ai.SubmittedJob{}, err
	}
	cfg := req.Config
	baseModel := cfg.BaseModel
	if baseModel == "" {
		baseModel = p.baseModel
	}
	if baseModel == "" {
		return ai.SubmittedJob{}, errors.New("no base model configured")
	}

	stem := strings.TrimSuffix(path.Base(req.TrainingPath), path.Ext(req.TrainingPath))
	if stem == "" || stem == "." {
		stem = "corpus"
	}
	trainingID, err := p.upload(ctx, stem+"-train.jsonl", req.Training)
	if err != nil {
		return ai.SubmittedJob{}, err
	}

	params := openai.FineTuningJobNewParams{
		Model:        openai.FineTuningJobNewParamsModel(baseModel),
		TrainingFile: trainingID,
		Metadata:     shared.Metadata{"user_id": cfg.UserID, "model_name": cfg.ModelName},
	}
	if cfg.ModelName != "" {
		params.Suffix = openai.String(fineTuneSuffix(cfg.ModelName))
	}
	if len(bytes.TrimSpace(req.Validation)) > 0 {
		validationID, err := p.upload(ctx, stem+"-validation.jsonl", req.Validation)
		if err != nil {
			return ai.SubmittedJob{}, err
		}
		params.ValidationFile = openai.String(validationID)
	}

	hp := openai.FineTuningJobNewParamsHyperparameters{}
	if cfg.Epochs > 0 {
		hp.NEpochs = openai.FineTuningJobNewParamsHyperparametersNEpochsUnion{OfInt: openai.Int(int64(cfg.Epochs))}
	}
	if cfg.BatchSize > 0 {
		hp.BatchSize = openai.FineTuningJobNewParamsHyperparametersBatchSizeUnion{OfInt: openai.Int(int64(cfg.BatchSize))}
	}
	if cfg.LearningRate > 0 {
		hp.LearningRateMultiplier = openai.FineTuningJobNewParamsHyperparametersLearningRateMultiplierUnion{OfFloat: openai.Float(cfg.LearningRate)}
	}
	params.Hyperparameters = hp

	job, err := p.client.FineTuning.Jobs.New(ctx, params)
	if err != nil {
		return ai.SubmittedJob{}, fmt.Errorf("create fine-tuning job: %w", err)
	}

	logger.Info("Fine-tuning job submitted", "job", job.ID, "model", cfg.ModelName, "base", baseModel)
	return ai.SubmittedJob{
		JobID:          job.ID,
		ModelName:      cfg.ModelName,
		Status:         string(job.Status),
		TrainingSize:   countLines(req.Training),
		ValidationSize: countLines(req.Validation),
	}, nil
}

func (p *FineTuneProvider) Status(ctx context.Context, jobID string) (ai.JobStatus, error) {
	if err := p.ready(); err != nil {
		return ai.JobStatus{}, err
	}
	job, err := p.client.FineTuning.Jobs.Get(ctx, jobID)
	if err != nil {
		return ai.JobStatus{}, err
	}
	return jobStatusFrom(job.ID, string(job.Status), job.FineTunedModel, job.Metadata, job.CreatedAt, job.FinishedAt, job.Error.Message), nil
}

func (p *FineTuneProvider) ListJobs(ctx context.Context, userID string) ([]ai.JobStatus, error) {
	if err := p.ready(); err != nil {
		return nil, err
	}
	iter := p.client.FineTuning.Jobs.ListAutoPaging(ctx, openai.FineTuningJobListParams{
		Metadata: map[string]string{"user_id": userID},
	})
	var out []ai.JobStatus
	for iter.Next() {
		job := iter.Current()
		out = append(out, jobStatusFrom(job.ID, string(job.Status), job.FineTunedModel, job.Metadata, job.CreatedAt, job.FinishedAt, job.Error.Message))
	}
	if err := iter.Err(); err != nil {
		return nil, err
	}
	return out, nil
}

// ModelReady reports whether modelID can be used for completions.
func (p *FineTuneProvider) ModelReady(ctx context.Context, modelID string) (bool, error) {
	if err := p.ready(); err != nil {
		return false, err
	}
	_, err := p.client.Models.Get(ctx, modelID)
	if err == nil {
		return true, nil
	}
	var apiErr *openai.Error
	if errors.As(err, &apiErr) && apiErr.StatusCode == http.StatusNotFound {
		return false, nil
	}
	return false, err
}

// Evaluate asks modelID every sample prompt. Confidence is the geometric
// mean token probability of the answer.
func (p *FineTuneProvider) Evaluate(ctx context.Context, modelID string, samples []ai.EvaluationSample) (ai.EvaluationMetrics, error) {
	if err := p.ready(); err != nil {
		return ai.EvaluationMetrics{}, err
	}

	type scored struct {
		correct    bool
		confidence float64
	}
	results := make([]scored, len(samples))

	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(p.evalConcurrency)
	for i, sample := range samples {
		g.Go(func() error {
			resp, err := p.client.Chat.Completions.New(gctx, openai.ChatCompletionNewParams{
				Model: openai.ChatModel(modelID),
				Messages: []openai.ChatCompletionMessageParamUnion{
					openai.SystemMessage(p.systemPrompt),
					openai.UserMessage(fmt.Sprintf(ai.EvaluationPrompt, sample.Prompt)),
				},
				Temperature: openai.Float(0),
				Logprobs:    openai.Bool(true),
			})
			if err != nil {
				return fmt.Errorf("evaluate sample %d: %w", i, err)
			}
			if len(resp.Choices) == 0 {
				return fmt.Errorf("evaluate sample %d: no choices", i)
			}
			choice := resp.Choices[0]
			logprobs := make([]float64, 0, len(choice.Logprobs.Content))
			for _, lp := range choice.Logprobs.Content {
				logprobs = append(logprobs, lp.Logprob)
			}
			results[i] = scored{
				correct:    tokenOverlap(choice.Message.Content, sample.Expected) >= correctOverlap,
				confidence: meanProbability(logprobs),
			}
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return ai.EvaluationMetrics{}, err
	}

	correct := make([]bool, len(results))
	confidence := make([]float64, len(results))
	for i, r := range results {
		correct[i] = r.correct
		confidence[i] = r.confidence
	}
	return summarize(correct, confidence), nil
}

func summarize(correct []bool, confidence []float64) ai.EvaluationMetrics {
	m := ai.EvaluationMetrics{TotalQuestions: len(correct)}
	if m.TotalQuestions == 0 {
		return m
	}
	var conf float64
	for i, ok := range correct {
		if ok {
			m.CorrectAnswers++
		}
		conf += confidence[i]
	}
	m.Accuracy = float64(m.CorrectAnswers) / float64(m.TotalQuestions)
	m.AverageConfidence = conf / float64(m.TotalQuestions)
	return m
}

func jobStatusFrom(id, status, fineTuned string, metadata map[string]string, createdAt, finishedAt int64, errMsg string) ai.JobStatus {
	js := ai.JobStatus{
		JobID:          id,
		UserID:         metadata["user_id"],
		ModelName:      metadata["model_name"],
		Status:         status,
		FineTunedModel: fineTuned,
		Error:          errMsg,
	}
	if createdAt > 0 {
		js.CreatedAt = time.Unix(createdAt, 0).UTC()
	}
	if finishedAt > 0 {
		t := time.Unix(finishedAt, 0).UTC()
		js.FinishedAt = &t
	}
	return js
}

// fineTuneSuffix keeps the characters OpenAI accepts in a model suffix.
func fineTuneSuffix(name string) string {
	var b strings.Builder
	for _, r := range strings.ToLower(name) {
		switch {
		case r >= 'a' && r <= 'z', r >= '0' && r <= '9', r == '-', r == '_':
			b.WriteRune(r)
		case unicode.IsSpace(r) || r == '.':
			b.WriteRune('-')
		}
		if b.Len() >= 64 {
			break
		}
	}
	return b.String()
}

func countLines(data []byte) int {
	n := 0
	for line := range bytes.SplitSeq(data, []byte("\n")) {
		if len(bytes.TrimSpace(line)) > 0 {
			n++
		}
	}
	return n
}

func normalizeTokens(s string) map[string]struct{} {
	fields := strings.FieldsFunc(strings.ToLower(s), func(r rune) bool {
		return !unicode.IsLetter(r) && !unicode.IsDigit(r)
	})
	set := make(map[string]struct{}, len(fields))
	for _, f := range fields {
		set[f] = struct{}{}
	}
	return set
}

// tokenOverlap is the Jaccard index of the word sets of a and b.
func tokenOverlap(a, b string) float64 {
	sa, sb := normalizeTokens(a), normalizeTokens(b)
	if len(sa) == 0 && len(sb) == 0 {
		return 1
	}
	inter := 0
	for t := range sa {
		if _, ok := sb[t]; ok {
			inter++
		}
	}
	union := len(sa) + len(sb) - inter
	return float64(inter) / float64(union)
}

func meanProbability(logprobs []float64) float64 {
	if len(logprobs) == 0 {
		return 0
	}
	var sum float64
	for _, lp := range logprobs {
		sum += lp
	}
	return math.Exp(sum / float64(len(logprobs)))
}
