// Package training turns recorded sales interactions into a fine-tuning
// corpus.
package training

import (
	"strings"

	"github.com/OFFIS-RIT/kgops/pkg/common"
)

var outcomeScores = map[common.InteractionOutcome]float64{
	common.OutcomeWon:      0.9,
	common.OutcomeAdvanced: 0.75,
	common.OutcomeNeutral:  0.5,
	common.OutcomeLost:     0.2,
}

const unknownOutcomeScore = 0.4

// ScoreInteraction rates an interaction in [0,1]. The outcome sets the base
// score, a seller rating is averaged in with equal weight, and a correction
// halves the result. Interactions without a response score 0.
func ScoreInteraction(in common.Interaction) float64 {
	if strings.TrimSpace(in.Response) == "" {
		return 0
	}
	score, ok := outcomeScores[in.Outcome]
	if !ok {
		score = unknownOutcomeScore
	}
	if in.Rating >= 1 && in.Rating <= 5 {
		score = (score + float64(in.Rating-1)/4) / 2
	}
	if strings.TrimSpace(in.CorrectedResponse) != "" {
		score /= 2
	}
	return min(max(score, 0), 1)
}

// Sample is a scored interaction.
type Sample struct {
	Interaction common.Interaction
	Score       float64
}

func (s Sample) corrected() bool {
	return strings.TrimSpace(s.Interaction.CorrectedResponse) != ""
}

func (s Sample) target() string {
	if s.corrected() {
		return s.Interaction.CorrectedResponse
	}
	return s.Interaction.Response
}

// FilterByQuality keeps samples scoring at least minScore, in input order.
func FilterByQuality(samples []Sample, minScore float64) []Sample {
	out := make([]Sample, 0, len(samples))
	for _, s := range samples {
		if s.Score >= minScore {
			out = append(out, s)
		}
	}
	return out
}
