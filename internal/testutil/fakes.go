package testutil

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"sync"

	"github.com/OFFIS-RIT/kgops/pkg/ai"
	"github.com/OFFIS-RIT/kgops/pkg/common"
)

// FakeAI answers structured requests by encoding Respond's result into out.
type FakeAI struct {
	mu sync.Mutex

	Respond    func(prompt string) (any, error)
	Completion func(prompt string) (string, error)

	Calls int
}

func (f *FakeAI) GenerateCompletion(_ context.Context, prompt string, _ ...ai.GenerateOption) (string, error) {
	f.mu.Lock()
	f.Calls++
	f.mu.Unlock()
	if f.Completion == nil {
		return "", nil
	}
	return f.Completion(prompt)
}

func (f *FakeAI) GenerateCompletionWithFormat(_ context.Context, _, _ string, prompt string, out any, _ ...ai.GenerateOption) error {
	f.mu.Lock()
	f.Calls++
	f.mu.Unlock()
	if f.Respond == nil {
		return fmt.Errorf("testutil: no response configured")
	}
	v, err := f.Respond(prompt)
	if err != nil {
		return err
	}
	raw, err := json.Marshal(v)
	if err != nil {
		return err
	}
	return json.Unmarshal(raw, out)
}

func (f *FakeAI) ResetMetrics()               {}
func (f *FakeAI) GetMetrics() ai.ModelMetrics { return ai.ModelMetrics{} }

// FakeExtractor stands in for the knowledge-graph service. Fail lists raw
// payloads whose extraction fails.
type FakeExtractor struct {
	mu sync.Mutex

	Fail  map[string]error
	Stats common.GraphStatistics

	// OnExtract runs at the start of every extraction.
	OnExtract func(ctx context.Context, raw string)

	Calls  []string
	closed bool
}

func (f *FakeExtractor) CreateKnowledgeGraph(ctx context.Context, raw, sourceID, userID string) (*common.KnowledgeGraphResult, error) {
	if f.OnExtract != nil {
		f.OnExtract(ctx, raw)
	}
	f.mu.Lock()
	f.Calls = append(f.Calls, sourceID)
	n := len(f.Calls)
	f.mu.Unlock()

	if err, ok := f.Fail[raw]; ok {
		return nil, err
	}
	return &common.KnowledgeGraphResult{
		GraphID:  fmt.Sprintf("kg-%s-%d", sourceID, n),
		Metadata: &common.TextStats{WordCount: len(raw), SentenceCount: 1},
		Entities: []common.Entity{{Name: "ACME", Type: "ORGANIZATION"}},
	}, nil
}

func (f *FakeExtractor) GetGraphStatistics(context.Context, string) (common.GraphStatistics, error) {
	return f.Stats, nil
}

func (f *FakeExtractor) Close() error {
	f.mu.Lock()
	f.closed = true
	f.mu.Unlock()
	return nil
}

// CallCount returns how many extractions ran.
func (f *FakeExtractor) CallCount() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return len(f.Calls)
}

// FakeProvider records fine-tuning calls.
type FakeProvider struct {
	mu sync.Mutex

	Submitted []ai.FineTuneRequest
	Jobs      map[string]ai.JobStatus
	Ready     map[string]bool
	Metrics   ai.EvaluationMetrics
	Evaluated [][]ai.EvaluationSample

	SubmitErr error
}

func NewFakeProvider() *FakeProvider {
	return &FakeProvider{Jobs: map[string]ai.JobStatus{}, Ready: map[string]bool{}}
}

func (p *FakeProvider) Submit(_ context.Context, req ai.FineTuneRequest) (ai.SubmittedJob, error) {
	p.mu.Lock()
	defer p.mu.Unlock()
	if p.SubmitErr != nil {
		return ai.SubmittedJob{}, p.SubmitErr
	}
	p.Submitted = append(p.Submitted, req)
	id := fmt.Sprintf("ftjob-%d", len(p.Submitted))
	p.Jobs[id] = ai.JobStatus{JobID: id, UserID: req.Config.UserID, ModelName: req.Config.ModelName, Status: "validating_files"}
	return ai.SubmittedJob{
		JobID:          id,
		ModelName:      req.Config.ModelName,
		Status:         "validating_files",
		TrainingSize:   countJSONL(req.Training),
		ValidationSize: countJSONL(req.Validation),
	}, nil
}

func (p *FakeProvider) Status(_ context.Context, jobID string) (ai.JobStatus, error) {
	p.mu.Lock()
	defer p.mu.Unlock()
	js, ok := p.Jobs[jobID]
	if !ok {
		return ai.JobStatus{}, fmt.Errorf("job %s not found", jobID)
	}
	return js, nil
}

func (p *FakeProvider) ListJobs(context.Context, string) ([]ai.JobStatus, error) {
	p.mu.Lock()
	defer p.mu.Unlock()
	out := make([]ai.JobStatus, 0, len(p.Jobs))
	for _, js := range p.Jobs {
		out = append(out, js)
	}
	return out, nil
}

func (p *FakeProvider) ModelReady(_ context.Context, modelID string) (bool, error) {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.Ready[modelID], nil
}

func (p *FakeProvider) Evaluate(_ context.Context, _ string, samples []ai.EvaluationSample) (ai.EvaluationMetrics, error) {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.Evaluated = append(p.Evaluated, samples)
	m := p.Metrics
	m.TotalQuestions = len(samples)
	return m, nil
}

// SubmitCount returns the number of Submit calls that succeeded.
func (p *FakeProvider) SubmitCount() int {
	p.mu.Lock()
	defer p.mu.Unlock()
	return len(p.Submitted)
}

func countJSONL(b []byte) int {
	n := 0
	for _, line := range bytes.Split(b, []byte("\n")) {
		if len(bytes.TrimSpace(line)) > 0 {
			n++
		}
	}
	return n
}

var (
	_ ai.GraphAIClient    = (*FakeAI)(nil)
	_ ai.FineTuneProvider = (*FakeProvider)(nil)
)
