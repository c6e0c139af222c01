package finetune

import (
	"context"
	"fmt"
	"strings"
	"testing"
	"time"

	"github.com/OFFIS-RIT/kgops/internal/testutil"
	"github.com/OFFIS-RIT/kgops/pkg/ai"
	"github.com/OFFIS-RIT/kgops/pkg/common"
	"github.com/OFFIS-RIT/kgops/pkg/training"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

var now = time.Date(2025, 6, 30, 12, 0, 0, 0, time.UTC)

type spyCollector struct {
	inner *training.Collector

	collects int
}

func (s *spyCollector) Collect(ctx context.Context, userID string, cfg training.Config) (training.Result, error) {
	s.collects++
	return s.inner.Collect(ctx, userID, cfg)
}

func (s *spyCollector) CountInteractions(ctx context.Context, userID string, days int) (int, error) {
	return s.inner.CountInteractions(ctx, userID, days)
}

func (s *spyCollector) HeldOutSet(ctx context.Context, userID string, n int) ([]ai.EvaluationSample, error) {
	return s.inner.HeldOutSet(ctx, userID, n)
}

type fixture struct {
	store     *testutil.MemStore
	artifacts *testutil.MemArtifacts
	provider  *testutil.FakeProvider
	collector *spyCollector
	ctrl      *Controller
}

func newFixture() *fixture {
	f := &fixture{
		store:     testutil.NewMemStore(),
		artifacts: testutil.NewMemArtifacts(),
		provider:  testutil.NewFakeProvider(),
	}
	f.artifacts.Clock = func() time.Time { return now }
	f.collector = &spyCollector{inner: training.NewCollector(training.NewCollectorParams{
		Interactions: f.store,
		Graphs:       f.store,
		Artifacts:    f.artifacts,
		Now:          func() time.Time { return now },
		NewID:        func() string { return "run" },
	})}
	f.ctrl = NewController(NewControllerParams{
		Provider:  f.provider,
		Jobs:      f.store,
		Artifacts: f.artifacts,
		Collector: f.collector,
		Now:       func() time.Time { return now },
	})
	return f
}

// addInteractions records n interactions in the last days, of which the
// first good ones are won deals and the rest lost.
func (f *fixture) addInteractions(n, good int) {
	for i := range n {
		outcome := common.OutcomeLost
		if i < good {
			outcome = common.OutcomeWon
		}
		f.store.AddInteractions(common.Interaction{
			ID:        fmt.Sprintf("i%04d", i),
			UserID:    "u1",
			Prompt:    fmt.Sprintf("question %d", i),
			Response:  fmt.Sprintf("answer %d", i),
			Outcome:   outcome,
			CreatedAt: now.Add(-time.Duration(n-i) * time.Minute),
		})
	}
}

func corpus(lines int) []byte {
	var b strings.Builder
	for i := range lines {
		fmt.Fprintf(&b, "{\"n\":%d}\n", i)
	}
	return []byte(b.String())
}

func TestSplitCorpus(t *testing.T) {
	tests := []struct {
		name        string
		lines       int
		split       float64
		train, vals int
	}{
		{"ten percent", 10, 0.1, 9, 1},
		{"rounds up", 11, 0.1, 9, 2},
		{"no split", 5, 0, 5, 0},
		{"keeps one training line", 2, 0.9, 1, 1},
		{"single line", 1, 0.5, 1, 0},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			train, val := splitCorpus(corpus(tt.lines), tt.split)
			assert.Equal(t, tt.train, strings.Count(string(train), "\n"))
			assert.Equal(t, tt.vals, strings.Count(string(val), "\n"))
		})
	}
}

func TestSubmit(t *testing.T) {
	f := newFixture()
	ctx := context.Background()

	_, err := f.ctrl.Submit(ctx, SubmitRequest{UserID: "u1"})
	require.ErrorIs(t, err, ErrMissingInput)

	_, err = f.ctrl.Submit(ctx, SubmitRequest{UserID: "u1", TrainingPath: "training/u1/missing.jsonl"})
	require.ErrorIs(t, err, ErrMissingInput)

	f.artifacts.PutAt("training/u1/c.jsonl", corpus(10), now)
	job, err := f.ctrl.Submit(ctx, SubmitRequest{
		UserID:          "u1",
		TrainingPath:    "training/u1/c.jsonl",
		ModelName:       "acme-sales",
		Epochs:          3,
		ValidationSplit: 0.1,
	})
	require.NoError(t, err)
	assert.Equal(t, "ftjob-1", job.ID)
	assert.Equal(t, 9, job.TrainingSize)
	assert.Equal(t, 1, job.ValidationSize)
	assert.Equal(t, "validating_files", job.Status)

	require.Len(t, f.provider.Submitted, 1)
	assert.Equal(t, 3, f.provider.Submitted[0].Config.Epochs)
	assert.Equal(t, "u1", f.provider.Submitted[0].Config.UserID)

	jobs, err := f.store.ListJobs(ctx, "u1")
	require.NoError(t, err)
	require.Len(t, jobs, 1)
	assert.Equal(t, "training/u1/c.jsonl", jobs[0].CorpusKey)
}

func TestStatusIsReadOnlyAndRefreshRecords(t *testing.T) {
	f := newFixture()
	ctx := context.Background()
	f.artifacts.PutAt("training/u1/c.jsonl", corpus(4), now)
	job, err := f.ctrl.Submit(ctx, SubmitRequest{UserID: "u1", TrainingPath: "training/u1/c.jsonl"})
	require.NoError(t, err)

	finished := now.Add(time.Hour)
	f.provider.Jobs[job.ID] = ai.JobStatus{JobID: job.ID, Status: ai.JobStatusSucceeded, FineTunedModel: "ft:acme", FinishedAt: &finished}

	st, err := f.ctrl.Status(ctx, job.ID)
	require.NoError(t, err)
	assert.Equal(t, ai.JobStatusSucceeded, st.Status)
	stored, _ := f.store.ListJobs(ctx, "u1")
	assert.Equal(t, "validating_files", stored[0].Status)

	n, err := f.ctrl.Refresh(ctx, "u1")
	require.NoError(t, err)
	assert.Equal(t, 1, n)
	stored, _ = f.store.ListJobs(ctx, "u1")
	assert.Equal(t, ai.JobStatusSucceeded, stored[0].Status)
	assert.Equal(t, "ft:acme", stored[0].FineTunedModel)
	require.NotNil(t, stored[0].FinishedAt)

	n, err = f.ctrl.Refresh(ctx, "u1")
	require.NoError(t, err)
	assert.Equal(t, 0, n)
}

func TestEvaluate(t *testing.T) {
	f := newFixture()
	ctx := context.Background()

	_, err := f.ctrl.Evaluate(ctx, "ft:pending", "u1")
	require.ErrorIs(t, err, ai.ErrModelNotReady)

	f.provider.Ready["ft:acme"] = true
	_, err = f.ctrl.Evaluate(ctx, "ft:acme", "u1")
	require.ErrorIs(t, err, ErrNoTestData)

	f.addInteractions(5, 3)
	f.provider.Metrics = ai.EvaluationMetrics{Accuracy: 0.5, CorrectAnswers: 1, AverageConfidence: 0.8}
	ev, err := f.ctrl.Evaluate(ctx, "ft:acme", "u1")
	require.NoError(t, err)
	assert.Equal(t, 3, ev.TestSamples)
	assert.Equal(t, 3, ev.Metrics.TotalQuestions)
	assert.Equal(t, 0.5, ev.Metrics.Accuracy)
	require.Len(t, f.provider.Evaluated, 1)
	assert.Equal(t, "answer 0", f.provider.Evaluated[0][0].Expected)
}

func TestPipelineGates(t *testing.T) {
	t.Run("insufficient data", func(t *testing.T) {
		f := newFixture()
		f.addInteractions(80, 80)

		res, err := f.ctrl.RunPipeline(context.Background(), "u1", DefaultPipelineConfig())
		require.NoError(t, err)
		assert.Equal(t, OutcomeInsufficientData, res.Outcome)
		assert.Equal(t, 80, res.Interactions)
		assert.Equal(t, 0, f.collector.collects)
		assert.Equal(t, 0, f.provider.SubmitCount())
	})

	t.Run("insufficient samples", func(t *testing.T) {
		f := newFixture()
		f.addInteractions(120, 30)

		res, err := f.ctrl.RunPipeline(context.Background(), "u1", DefaultPipelineConfig())
		require.NoError(t, err)
		assert.Equal(t, OutcomeInsufficientSamples, res.Outcome)
		assert.Equal(t, 1, f.collector.collects)
		require.NotNil(t, res.Collection)
		assert.Equal(t, 30, res.Collection.HighQualityCount)
		assert.Equal(t, 0, f.provider.SubmitCount())
	})

	t.Run("submitted", func(t *testing.T) {
		f := newFixture()
		f.addInteractions(150, 60)

		res, err := f.ctrl.RunPipeline(context.Background(), "u1", DefaultPipelineConfig())
		require.NoError(t, err)
		assert.Equal(t, OutcomeSubmitted, res.Outcome)
		require.NotNil(t, res.Job)
		assert.Equal(t, "u1-20250630", res.Job.ModelName)
		assert.Equal(t, 54, res.Job.TrainingSize)
		assert.Equal(t, 6, res.Job.ValidationSize)
		assert.Equal(t, 1, f.provider.SubmitCount())
	})
}

func TestCleanupIsIdempotent(t *testing.T) {
	f := newFixture()
	ctx := context.Background()
	f.artifacts.PutAt("training/u1/old.jsonl", corpus(1), now.AddDate(0, 0, -45))
	f.artifacts.PutAt("training/u1/new.jsonl", corpus(1), now.AddDate(0, 0, -5))
	f.artifacts.PutAt("exports/u1.json", corpus(1), now.AddDate(0, 0, -90))

	oldFinish := now.AddDate(0, 0, -40)
	newFinish := now.AddDate(0, 0, -2)
	require.NoError(t, f.store.SaveJob(ctx, common.FineTuneJob{ID: "j-old", UserID: "u1", Status: ai.JobStatusSucceeded, FinishedAt: &oldFinish}))
	require.NoError(t, f.store.SaveJob(ctx, common.FineTuneJob{ID: "j-new", UserID: "u1", Status: ai.JobStatusFailed, FinishedAt: &newFinish}))
	require.NoError(t, f.store.SaveJob(ctx, common.FineTuneJob{ID: "j-running", UserID: "u1", Status: "running"}))

	_, err := f.ctrl.Cleanup(ctx, 0)
	require.ErrorIs(t, err, ErrInvalidRetention)

	first, err := f.ctrl.Cleanup(ctx, 30)
	require.NoError(t, err)
	assert.Equal(t, 1, first.ArtifactsDeleted)
	assert.Equal(t, 1, first.JobsDeleted)
	assert.Equal(t, []string{"exports/u1.json", "training/u1/new.jsonl"}, f.artifacts.Keys())

	second, err := f.ctrl.Cleanup(ctx, 30)
	require.NoError(t, err)
	assert.Equal(t, 0, second.ArtifactsDeleted)
	assert.Equal(t, 0, second.JobsDeleted)

	jobs, _ := f.store.ListJobs(ctx, "u1")
	assert.Len(t, jobs, 2)
}
