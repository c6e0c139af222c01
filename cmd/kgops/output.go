package main

import (
	"fmt"
	"io"
	"time"

	"github.com/OFFIS-RIT/kgops/pkg/analytics"
	"github.com/OFFIS-RIT/kgops/pkg/finetune"
	"github.com/OFFIS-RIT/kgops/pkg/migration"
	"github.com/OFFIS-RIT/kgops/pkg/training"
	"github.com/OFFIS-RIT/kgops/pkg/transfer"
	"github.com/OFFIS-RIT/kgops/pkg/validation"
)

func printSummary(w io.Writer, s migration.Summary) {
	scope := s.UserID
	if scope == "" {
		scope = "all users"
	}
	fmt.Fprintf(w, "%s (%s)\n", s.Operation, scope)
	fmt.Fprintf(w, "  total:       %d\n", s.Total)
	fmt.Fprintf(w, "  succeeded:   %d\n", s.Succeeded)
	fmt.Fprintf(w, "  failed:      %d\n", s.Failed)
	fmt.Fprintf(w, "  skipped:     %d\n", s.Skipped)
	fmt.Fprintf(w, "  success:     %.1f%%\n", s.SuccessRate)
	fmt.Fprintf(w, "  duration:    %s\n", s.Duration.Round(time.Millisecond))
	if s.ResetStale > 0 {
		fmt.Fprintf(w, "  re-queued:   %d stale documents\n", s.ResetStale)
	}
	if s.Interrupted {
		fmt.Fprintln(w, "  interrupted before all documents were processed")
	}
	for _, f := range s.Failures {
		fmt.Fprintf(w, "  ! %s (%s): %s\n", f.DocumentID, f.SourceID, f.Error)
	}
}

func printValidation(w io.Writer, r validation.Report) {
	fmt.Fprintf(w, "Validation (%s)\n", r.UserID)
	fmt.Fprintf(w, "  documents:   %d (completed %d, failed %d, pending %d, processing %d)\n",
		r.Counts.Total, r.Counts.Completed, r.Counts.Failed, r.Counts.Pending, r.Counts.Processing)
	fmt.Fprintf(w, "  graphs:      %d (%d entities, %d terms, %d concepts)\n",
		r.GraphStats.Documents, r.GraphStats.Entities, r.GraphStats.Terms, r.GraphStats.Concepts)
	if r.Consistent() {
		fmt.Fprintln(w, "  consistent")
		return
	}
	for _, is := range r.Issues {
		fmt.Fprintf(w, "  [%s] %s\n", is.Severity, is.Message)
	}
}

func printAnalytics(w io.Writer, userID string, r analytics.Report) {
	fmt.Fprintf(w, "Relationship graph (%s)\n", userID)
	if !r.HasNodes {
		fmt.Fprintln(w, "  no customers")
		return
	}
	fmt.Fprintf(w, "  nodes:          %d\n", r.NodeCount)
	fmt.Fprintf(w, "  edges:          %d (%d dropped)\n", r.EdgeCount, r.DroppedEdges)
	fmt.Fprintf(w, "  average degree: %.2f\n", r.AverageDegree)
	if r.MostConnected != nil {
		fmt.Fprintf(w, "  most connected: %s (%d)\n", r.MostConnected.NodeID, r.MostConnected.Degree)
	}
	fmt.Fprintf(w, "  isolated:       %d\n", r.Isolated)
}

func printCollection(w io.Writer, r training.Result) {
	fmt.Fprintf(w, "Training data (%s)\n", r.UserID)
	fmt.Fprintf(w, "  candidates:  %d\n", r.Candidates)
	fmt.Fprintf(w, "  samples:     %d (%d high quality, %d negative)\n", r.SampleCount, r.HighQualityCount, r.NegativeCount)
	if r.CorpusKey != "" {
		fmt.Fprintf(w, "  corpus:      %s\n", r.CorpusKey)
	} else {
		fmt.Fprintln(w, "  no corpus written")
	}
}

func printPipeline(w io.Writer, r finetune.PipelineResult) {
	fmt.Fprintf(w, "Pipeline (%s): %s\n", r.UserID, r.Outcome)
	fmt.Fprintf(w, "  interactions: %d\n", r.Interactions)
	if r.Collection != nil {
		fmt.Fprintf(w, "  samples:      %d high quality\n", r.Collection.HighQualityCount)
	}
	if r.Job != nil {
		fmt.Fprintf(w, "  job:          %s (%s)\n", r.Job.ID, r.Job.ModelName)
	}
}

func printImport(w io.Writer, r transfer.ImportResult) {
	fmt.Fprintln(w, "Import")
	fmt.Fprintf(w, "  total:          %d\n", r.Total)
	fmt.Fprintf(w, "  already stored: %d\n", r.Skipped)
	fmt.Fprintf(w, "  not restorable: %d\n", r.NotRestorable)
	for _, e := range r.Errors {
		fmt.Fprintf(w, "  ! %s\n", e)
	}
}
