// Package migration walks stored documents through knowledge-graph
// construction.
package migration

import (
	"context"
	"errors"
	"time"

	"github.com/OFFIS-RIT/kgops/pkg/common"
	"github.com/OFFIS-RIT/kgops/pkg/store"
)

var ErrMissingUser = errors.New("user id is required")

// Extractor builds and stores the knowledge graph of one document.
type Extractor interface {
	CreateKnowledgeGraph(ctx context.Context, raw, sourceID, userID string) (*common.KnowledgeGraphResult, error)
	GetGraphStatistics(ctx context.Context, userID string) (common.GraphStatistics, error)
	Close() error
}

type Operation string

const (
	OperationMigrate Operation = "migrate"
	OperationRebuild Operation = "rebuild"
)

// Failure records why one document did not complete.
type Failure struct {
	DocumentID string `json:"documentId"`
	SourceID   string `json:"sourceId"`
	Error      string `json:"error"`
}

// Summary accounts for every document in scope exactly once:
// Total = Succeeded + Failed + Skipped. SuccessRate is the percentage of
// processed documents (Succeeded + Failed) that succeeded, 0 when none were
// processed.
type Summary struct {
	Operation   Operation     `json:"operation"`
	UserID      string        `json:"userId,omitempty"`
	Total       int           `json:"total"`
	Succeeded   int           `json:"succeeded"`
	Failed      int           `json:"failed"`
	Skipped     int           `json:"skipped"`
	SuccessRate float64       `json:"successRate"`
	Interrupted bool          `json:"interrupted"`
	ResetStale  int           `json:"resetStale"`
	Failures    []Failure     `json:"failures,omitempty"`
	Duration    time.Duration `json:"duration"`
}

func (s *Summary) finish(started time.Time, now time.Time) {
	if processed := s.Succeeded + s.Failed; processed > 0 {
		s.SuccessRate = float64(s.Succeeded) * 100 / float64(processed)
	}
	s.Duration = now.Sub(started)
}

type Engine struct {
	docs        store.DocumentStore
	extractor   Extractor
	parallel    int
	staleAfter  time.Duration
	itemTimeout time.Duration
	now         func() time.Time
}

// NewEngineParams configures an Engine.
//
// Parallel above 1 processes documents concurrently. StaleAfter is how long
// a document may sit in processing before a run resets it; zero resets every
// processing document found at run start. ItemTimeout bounds one extraction,
// zero means no bound.
type NewEngineParams struct {
	Documents   store.DocumentStore
	Extractor   Extractor
	Parallel    int
	StaleAfter  time.Duration
	ItemTimeout time.Duration
	Now         func() time.Time
}

func NewEngine(params NewEngineParams) *Engine {
	e := &Engine{
		docs:        params.Documents,
		extractor:   params.Extractor,
		parallel:    params.Parallel,
		staleAfter:  params.StaleAfter,
		itemTimeout: params.ItemTimeout,
		now:         params.Now,
	}
	if e.parallel < 1 {
		e.parallel = 1
	}
	if e.now == nil {
		e.now = time.Now
	}
	return e
}
