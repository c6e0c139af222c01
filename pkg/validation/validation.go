// Package validation audits document and knowledge-graph consistency.
package validation

import (
	"context"
	"fmt"
	"time"

	"github.com/OFFIS-RIT/kgops/pkg/common"
	"github.com/OFFIS-RIT/kgops/pkg/store"
)

type Severity string

const (
	SeverityError   Severity = "error"
	SeverityWarning Severity = "warning"
	SeverityInfo    Severity = "info"
)

const (
	IssueMissingGraph       = "missing_graph"
	IssueFailedDocuments    = "failed_documents"
	IssueProcessing         = "processing_documents"
	IssuePending            = "pending_documents"
	IssueGraphCountMismatch = "graph_count_mismatch"
)

type Issue struct {
	Code     string   `json:"code"`
	Severity Severity `json:"severity"`
	Count    int      `json:"count"`
	Message  string   `json:"message"`
}

type Report struct {
	UserID     string                 `json:"userId"`
	Counts     store.StatusCounts     `json:"counts"`
	GraphStats common.GraphStatistics `json:"graphStats"`
	Issues     []Issue                `json:"issues"`
	CheckedAt  time.Time              `json:"checkedAt"`
}

// Consistent reports whether the audit found nothing to act on.
func (r Report) Consistent() bool {
	return len(r.Issues) == 0
}

// GraphStats reports what is stored in a user's knowledge graphs.
type GraphStats interface {
	GraphStatistics(ctx context.Context, userID string) (common.GraphStatistics, error)
}

// Reporter only reads, so it is safe to run while a migration is active.
type Reporter struct {
	docs   store.DocumentStore
	graphs GraphStats
	now    func() time.Time
}

func NewReporter(docs store.DocumentStore, graphs GraphStats) *Reporter {
	return &Reporter{docs: docs, graphs: graphs, now: time.Now}
}

func plural(n int, one, many string) string {
	if n == 1 {
		return one
	}
	return many
}

func (r *Reporter) Validate(ctx context.Context, userID string) (Report, error) {
	counts, err := r.docs.CountByStatus(ctx, userID)
	if err != nil {
		return Report{}, fmt.Errorf("failed to count documents: %w", err)
	}
	stats, err := r.graphs.GraphStatistics(ctx, userID)
	if err != nil {
		return Report{}, fmt.Errorf("failed to load graph statistics: %w", err)
	}

	rep := Report{
		UserID:     userID,
		Counts:     counts,
		GraphStats: stats,
		Issues:     []Issue{},
		CheckedAt:  r.now().UTC(),
	}
	add := func(code string, sev Severity, n int, msg string) {
		if n > 0 {
			rep.Issues = append(rep.Issues, Issue{Code: code, Severity: sev, Count: n, Message: msg})
		}
	}

	add(IssueMissingGraph, SeverityError, counts.WithoutGraph,
		fmt.Sprintf("%d %s missing knowledge graph", counts.WithoutGraph, plural(counts.WithoutGraph, "document", "documents")))
	add(IssueFailedDocuments, SeverityWarning, counts.Failed,
		fmt.Sprintf("%d %s failed processing", counts.Failed, plural(counts.Failed, "document", "documents")))
	add(IssueProcessing, SeverityWarning, counts.Processing,
		fmt.Sprintf("%d %s still processing", counts.Processing, plural(counts.Processing, "document is", "documents are")))
	add(IssuePending, SeverityInfo, counts.Pending,
		fmt.Sprintf("%d %s waiting for migration", counts.Pending, plural(counts.Pending, "document is", "documents are")))

	withGraph := counts.Completed - counts.WithoutGraph
	if diff := withGraph - stats.Documents; diff != 0 {
		n := diff
		if n < 0 {
			n = -n
		}
		add(IssueGraphCountMismatch, SeverityWarning, n,
			fmt.Sprintf("%d completed documents reference a graph but %d graphs are stored", withGraph, stats.Documents))
	}
	return rep, nil
}
