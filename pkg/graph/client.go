package graph

import (
	"context"
	"errors"
	"sync"
	"sync/atomic"

	"github.com/OFFIS-RIT/kgops/pkg/ai"
	"github.com/OFFIS-RIT/kgops/pkg/common"
	"github.com/OFFIS-RIT/kgops/pkg/store"
)

var (
	ErrEmptyDocument = errors.New("document has no text")
	ErrClosed        = errors.New("graph client is closed")
)

// GraphClient extracts knowledge graphs from raw document text and stores
// them through a store.GraphStore.
//
// A GraphClient should be created using NewGraphClient.
type GraphClient struct {
	tokenEncoder       string
	maxTokens          int
	parallelAiRequests int
	maxRetries         int
	entityTypes        []string
	summarize          bool

	aiClient ai.GraphAIClient
	store    store.GraphStore

	counterOnce sync.Once
	counter     tokenCounter
	counterErr  error

	closed atomic.Bool
}

// NewGraphClientParams configures a GraphClient.
//
// MaxTokens bounds the size of a text unit sent to the model.
// ParallelAiRequests controls how many units are extracted concurrently.
// SummarizeDescriptions merges multi-source descriptions with an extra
// model call per entity.
type NewGraphClientParams struct {
	TokenEncoder          string
	MaxTokens             int
	ParallelAiRequests    int
	MaxRetries            int
	EntityTypes           []string
	SummarizeDescriptions bool

	AIClient ai.GraphAIClient
	Store    store.GraphStore
}

var defaultEntityTypes = []string{"ORGANIZATION", "PERSON", "PRODUCT", "LOCATION", "CONCEPT", "EVENT", "DATE"}

// NewGraphClient creates a GraphClient.
//
// Example:
//
//	client, err := graph.NewGraphClient(graph.NewGraphClientParams{
//		TokenEncoder:       "o200k_base",
//		MaxTokens:          1500,
//		ParallelAiRequests: 8,
//		AIClient:           aiClient,
//		Store:              storage,
//	})
func NewGraphClient(params NewGraphClientParams) (*GraphClient, error) {
	if params.AIClient == nil {
		return nil, errors.New("graph client needs an ai client")
	}
	if params.Store == nil {
		return nil, errors.New("graph client needs a graph store")
	}

	g := &GraphClient{
		tokenEncoder:       params.TokenEncoder,
		maxTokens:          params.MaxTokens,
		parallelAiRequests: params.ParallelAiRequests,
		maxRetries:         params.MaxRetries,
		entityTypes:        params.EntityTypes,
		summarize:          params.SummarizeDescriptions,
		aiClient:           params.AIClient,
		store:              params.Store,
	}
	if g.tokenEncoder == "" {
		g.tokenEncoder = "o200k_base"
	}
	if g.maxTokens <= 0 {
		g.maxTokens = 1500
	}
	if g.parallelAiRequests <= 0 {
		g.parallelAiRequests = 4
	}
	if g.maxRetries <= 0 {
		g.maxRetries = 3
	}
	if len(g.entityTypes) == 0 {
		g.entityTypes = defaultEntityTypes
	}
	return g, nil
}

// GetGraphStatistics returns aggregate counts of what is stored for userID.
func (g *GraphClient) GetGraphStatistics(ctx context.Context, userID string) (common.GraphStatistics, error) {
	if g.closed.Load() {
		return common.GraphStatistics{}, ErrClosed
	}
	return g.store.GraphStatistics(ctx, userID)
}

// Close stops the client from accepting new work. It is safe to call more
// than once.
func (g *GraphClient) Close() error {
	g.closed.Store(true)
	return nil
}

func (g *GraphClient) counterFunc() (tokenCounter, error) {
	g.counterOnce.Do(func() {
		if g.counter == nil {
			g.counter, g.counterErr = tiktokenCounter(g.tokenEncoder)
		}
	})
	return g.counter, g.counterErr
}
