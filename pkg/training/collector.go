package training

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"sort"
	"time"

	"github.com/OFFIS-RIT/kgops/pkg/ai"
	"github.com/OFFIS-RIT/kgops/pkg/common"
	"github.com/OFFIS-RIT/kgops/pkg/logger"
	"github.com/OFFIS-RIT/kgops/pkg/store"

	"github.com/google/uuid"
)

// CorpusPrefix is the artifact key prefix of every training corpus.
const CorpusPrefix = "training/"

// Config controls sample selection. MaxSamples <= 0 means no cap and
// TimeRangeDays <= 0 means the whole history. ValidationSplit is carried
// for the submit step.
type Config struct {
	MinQualityScore         float64 `toml:"min_quality_score"`
	MaxSamples              int     `toml:"max_samples"`
	IncludeNegativeExamples bool    `toml:"include_negative_examples"`
	TimeRangeDays           int     `toml:"time_range_days"`
	ValidationSplit         float64 `toml:"validation_split"`
}

func DefaultConfig() Config {
	return Config{
		MinQualityScore:         0.7,
		MaxSamples:              1000,
		IncludeNegativeExamples: false,
		TimeRangeDays:           30,
		ValidationSplit:         0.1,
	}
}

// Result describes one collected corpus. CorpusKey is empty when no sample
// qualified and nothing was written.
type Result struct {
	UserID           string                 `json:"userId"`
	CorpusKey        string                 `json:"corpusKey,omitempty"`
	SampleCount      int                    `json:"sampleCount"`
	HighQualityCount int                    `json:"highQualityCount"`
	NegativeCount    int                    `json:"negativeCount"`
	Candidates       int                    `json:"candidates"`
	GraphStats       common.GraphStatistics `json:"graphStats"`
	CollectedAt      time.Time              `json:"collectedAt"`
	From             time.Time              `json:"from"`
	To               time.Time              `json:"to"`
}

// GraphStats reports what is stored in a user's knowledge graphs.
type GraphStats interface {
	GraphStatistics(ctx context.Context, userID string) (common.GraphStatistics, error)
}

type Collector struct {
	interactions store.InteractionStore
	graphs       GraphStats
	artifacts    store.ArtifactStore
	defaults     Config

	now   func() time.Time
	newID func() string
}

type NewCollectorParams struct {
	Interactions store.InteractionStore
	Graphs       GraphStats
	Artifacts    store.ArtifactStore
	Defaults     Config
	Now          func() time.Time
	NewID        func() string
}

func NewCollector(params NewCollectorParams) *Collector {
	c := &Collector{
		interactions: params.Interactions,
		graphs:       params.Graphs,
		artifacts:    params.Artifacts,
		defaults:     params.Defaults,
		now:          params.Now,
		newID:        params.NewID,
	}
	if c.defaults == (Config{}) {
		c.defaults = DefaultConfig()
	}
	if c.now == nil {
		c.now = time.Now
	}
	if c.newID == nil {
		c.newID = uuid.NewString
	}
	return c
}

// Defaults returns the configuration used when callers pass none.
func (c *Collector) Defaults() Config { return c.defaults }

func (c *Collector) window(days int) (time.Time, time.Time) {
	to := c.now().UTC()
	if days <= 0 {
		return time.Time{}, to
	}
	return to.AddDate(0, 0, -days), to
}

// CountInteractions counts interactions of userID in the trailing days.
func (c *Collector) CountInteractions(ctx context.Context, userID string, days int) (int, error) {
	from, _ := c.window(days)
	n, err := c.interactions.CountInteractions(ctx, userID, from)
	if err != nil {
		return 0, fmt.Errorf("failed to count interactions: %w", err)
	}
	return n, nil
}

func (c *Collector) score(ctx context.Context, userID string, days int) ([]Sample, time.Time, time.Time, error) {
	from, to := c.window(days)
	list, err := c.interactions.ListInteractions(ctx, userID, from, to)
	if err != nil {
		return nil, from, to, fmt.Errorf("failed to load interactions: %w", err)
	}
	samples := make([]Sample, len(list))
	for i, in := range list {
		samples[i] = Sample{Interaction: in, Score: ScoreInteraction(in)}
	}
	return samples, from, to, nil
}

type selected struct {
	pos    int
	sample Sample
	weight int
	target string
}

// selectSamples picks positives first, then negatives up to the cap, and
// returns them in interaction order. A sample at or above the threshold is
// a positive even when corrected; the correction becomes its target.
func selectSamples(samples []Sample, cfg Config) (picked []selected, positives, negatives int) {
	var pos, neg []selected
	for i, s := range samples {
		switch {
		case s.Score >= cfg.MinQualityScore:
			pos = append(pos, selected{pos: i, sample: s, weight: 1, target: s.target()})
		case s.corrected():
			neg = append(neg, selected{pos: i, sample: s, weight: 1, target: s.Interaction.CorrectedResponse})
		default:
			neg = append(neg, selected{pos: i, sample: s, weight: 0, target: s.Interaction.Response})
		}
	}

	limit := cfg.MaxSamples
	if limit <= 0 {
		limit = len(samples)
	}
	if len(pos) > limit {
		pos = pos[:limit]
	}
	picked = append(picked, pos...)
	if cfg.IncludeNegativeExamples {
		room := limit - len(pos)
		if len(neg) > room {
			neg = neg[:room]
		}
		picked = append(picked, neg...)
	} else {
		neg = nil
	}

	sort.Slice(picked, func(i, j int) bool { return picked[i].pos < picked[j].pos })
	return picked, len(pos), len(neg)
}

// Collect scores the interactions of userID in the configured window and
// writes the selected samples as a chat-format JSONL corpus.
func (c *Collector) Collect(ctx context.Context, userID string, cfg Config) (Result, error) {
	if userID == "" {
		return Result{}, errors.New("user id is required")
	}
	samples, from, to, err := c.score(ctx, userID, cfg.TimeRangeDays)
	if err != nil {
		return Result{}, err
	}

	stats, err := c.graphs.GraphStatistics(ctx, userID)
	if err != nil {
		return Result{}, fmt.Errorf("failed to load graph statistics: %w", err)
	}

	picked, positives, negatives := selectSamples(samples, cfg)
	res := Result{
		UserID:           userID,
		SampleCount:      len(picked),
		HighQualityCount: positives,
		NegativeCount:    negatives,
		Candidates:       len(samples),
		GraphStats:       stats,
		CollectedAt:      to,
		From:             from,
		To:               to,
	}
	if len(picked) == 0 {
		logger.Info("[Training] No samples qualified", "user_id", userID, "candidates", len(samples))
		return res, nil
	}

	body, err := encodeCorpus(picked)
	if err != nil {
		return Result{}, err
	}
	key := CorpusKey(userID, to, c.newID())
	if err := c.artifacts.Put(ctx, key, body, "application/jsonl"); err != nil {
		return Result{}, fmt.Errorf("failed to store corpus: %w", err)
	}
	res.CorpusKey = key

	logger.Info("[Training] Corpus collected", "user_id", userID, "key", key, "samples", res.SampleCount, "high_quality", positives, "negative", negatives)
	return res, nil
}

// HeldOutSet returns the n most recent high-quality samples in the default
// window, oldest first. They are the tail of the corpus, which is also
// where the validation split is taken from.
func (c *Collector) HeldOutSet(ctx context.Context, userID string, n int) ([]ai.EvaluationSample, error) {
	samples, _, _, err := c.score(ctx, userID, c.defaults.TimeRangeDays)
	if err != nil {
		return nil, err
	}
	var out []ai.EvaluationSample
	for i := len(samples) - 1; i >= 0 && len(out) < n; i-- {
		s := samples[i]
		if s.corrected() || s.Score < c.defaults.MinQualityScore {
			continue
		}
		out = append(out, ai.EvaluationSample{Prompt: userContent(s.Interaction), Expected: s.Interaction.Response})
	}
	for i, j := 0, len(out)-1; i < j; i, j = i+1, j-1 {
		out[i], out[j] = out[j], out[i]
	}
	return out, nil
}

// CorpusKey builds the artifact key of a corpus collected at t.
func CorpusKey(userID string, t time.Time, id string) string {
	return fmt.Sprintf("%s%s/%s-%s.jsonl", CorpusPrefix, userID, t.UTC().Format("20060102T150405Z"), id)
}

type chatMessage struct {
	Role    string `json:"role"`
	Content string `json:"content"`
	Weight  *int   `json:"weight,omitempty"`
}

type chatLine struct {
	Messages []chatMessage `json:"messages"`
}

func userContent(in common.Interaction) string {
	if in.Context == "" {
		return in.Prompt
	}
	return fmt.Sprintf("%s\n\nCustomer context:\n%s", in.Prompt, in.Context)
}

func encodeCorpus(picked []selected) ([]byte, error) {
	var buf bytes.Buffer
	enc := json.NewEncoder(&buf)
	for _, p := range picked {
		weight := p.weight
		line := chatLine{Messages: []chatMessage{
			{Role: "system", Content: ai.CorpusSystemPrompt},
			{Role: "user", Content: userContent(p.sample.Interaction)},
			{Role: "assistant", Content: p.target, Weight: &weight},
		}}
		if err := enc.Encode(line); err != nil {
			return nil, fmt.Errorf("failed to encode sample %s: %w", p.sample.Interaction.ID, err)
		}
	}
	return buf.Bytes(), nil
}
