package openai

import (
	"math"
	"testing"
	"time"
)

func TestTokenOverlap(t *testing.T) {
	tests := []struct {
		name string
		a, b string
		want float64
	}{
		{"identical", "Offer the annual plan", "offer the annual plan", 1},
		{"punctuation ignored", "Offer the plan!", "offer, the plan", 1},
		{"half", "a b", "a c", 1.0 / 3.0},
		{"disjoint", "yes", "no", 0},
		{"both empty", "", "  ", 1},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := tokenOverlap(tt.a, tt.b)
			if math.Abs(got-tt.want) > 1e-9 {
				t.Fatalf("tokenOverlap(%q, %q) = %v, want %v", tt.a, tt.b, got, tt.want)
			}
		})
	}
}

func TestMeanProbability(t *testing.T) {
	if got := meanProbability(nil); got != 0 {
		t.Fatalf("expected 0 for no tokens, got %v", got)
	}
	got := meanProbability([]float64{math.Log(0.5), math.Log(0.5)})
	if math.Abs(got-0.5) > 1e-9 {
		t.Fatalf("expected 0.5, got %v", got)
	}
}

func TestSummarize(t *testing.T) {
	m := summarize([]bool{true, false, true, true}, []float64{1, 0, 0.5, 0.5})
	if m.TotalQuestions != 4 || m.CorrectAnswers != 3 {
		t.Fatalf("unexpected counts: %+v", m)
	}
	if m.Accuracy != 0.75 || m.AverageConfidence != 0.5 {
		t.Fatalf("unexpected ratios: %+v", m)
	}

	empty := summarize(nil, nil)
	if empty.Accuracy != 0 || empty.TotalQuestions != 0 {
		t.Fatalf("expected zero metrics, got %+v", empty)
	}
}

func TestJobStatusFrom(t *testing.T) {
	meta := map[string]string{"user_id": "u1", "model_name": "acme"}
	js := jobStatusFrom("ftjob-1", "running", "", meta, 1700000000, 0, "")
	if js.UserID != "u1" || js.ModelName != "acme" {
		t.Fatalf("expected owner and model from metadata, got %+v", js)
	}
	if js.FinishedAt != nil {
		t.Fatalf("expected no finish time, got %v", js.FinishedAt)
	}
	if !js.CreatedAt.Equal(time.Unix(1700000000, 0)) {
		t.Fatalf("unexpected created at %v", js.CreatedAt)
	}

	done := jobStatusFrom("ftjob-1", "succeeded", "ft:gpt:acme", meta, 1700000000, 1700003600, "")
	if done.FinishedAt == nil || done.FinishedAt.Sub(done.CreatedAt) != time.Hour {
		t.Fatalf("unexpected finish time %v", done.FinishedAt)
	}
}

func TestFineTuneSuffixAndLines(t *testing.T) {
	if got := fineTuneSuffix("Acme Sales.v2!"); got != "acme-sales-v2" {
		t.Fatalf("unexpected suffix %q", got)
	}
	if got := countLines([]byte("{}\n\n{}\n  \n{}")); got != 3 {
		t.Fatalf("expected 3 lines, got %d", got)
	}
}
