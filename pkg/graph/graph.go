package graph

import (
	"context"
	"fmt"
	"strings"

	"github.com/OFFIS-RIT/kgops/internal/util"
	"github.com/OFFIS-RIT/kgops/pkg/common"
	"github.com/OFFIS-RIT/kgops/pkg/logger"

	gonanoid "github.com/matoous/go-nanoid/v2"
	"golang.org/x/sync/errgroup"
)

type unitResult struct {
	unit      *common.Unit
	entities  []common.Entity
	relations []common.Relationship
}

// CreateKnowledgeGraph splits raw into token-limited units, extracts
// entities and relationships from each unit, merges them and stores the
// graph, replacing any earlier graph of the same source.
func (g *GraphClient) CreateKnowledgeGraph(
	ctx context.Context,
	raw string,
	sourceID string,
	userID string,
) (*common.KnowledgeGraphResult, error) {
	if g.closed.Load() {
		return nil, ErrClosed
	}
	text := strings.TrimSpace(raw)
	if text == "" {
		return nil, ErrEmptyDocument
	}

	count, err := g.counterFunc()
	if err != nil {
		return nil, fmt.Errorf("failed to load token encoder: %w", err)
	}
	units, err := chunkSentences(splitIntoSentences(text), sourceID, count, g.maxTokens)
	if err != nil {
		return nil, fmt.Errorf("failed to split document into units: %w", err)
	}
	logger.Debug("[Graph] Extracting", "source_id", sourceID, "units", len(units))

	results := make([]unitResult, len(units))
	eg, gCtx := errgroup.WithContext(ctx)
	eg.SetLimit(g.parallelAiRequests)
	for i, u := range units {
		eg.Go(func() error {
			res, err := util.RetryWithContext(gCtx, g.maxRetries, func(ctx context.Context) (unitResult, error) {
				return g.extractFromUnit(ctx, u, sourceID)
			})
			if err != nil {
				return fmt.Errorf("failed to extract unit %d: %w", i, err)
			}
			results[i] = res
			return nil
		})
	}
	if err := eg.Wait(); err != nil {
		return nil, err
	}

	// Merge in unit order so the result does not depend on scheduling.
	var entities []common.Entity
	var relations []common.Relationship
	graphUnits := make([]*common.Unit, 0, len(results))
	for _, r := range results {
		graphUnits = append(graphUnits, r.unit)
		entities, relations = mergeEntitiesAndRelations(entities, r.entities, relations, r.relations)
	}

	if g.summarize {
		if err := g.summarizeDescriptions(ctx, entities, relations); err != nil {
			return nil, err
		}
	}

	graphID, err := gonanoid.New()
	if err != nil {
		return nil, fmt.Errorf("failed to generate graph id: %w", err)
	}
	terms := importantTerms(text, maxImportantTerms)
	kg := &common.Graph{
		ID:            graphID,
		Entities:      entities,
		Relationships: relations,
		Units:         graphUnits,
	}

	storedID, err := g.store.ReplaceGraph(ctx, userID, sourceID, kg, terms)
	if err != nil {
		return nil, fmt.Errorf("failed to store graph: %w", err)
	}

	logger.Info("[Graph] Graph built", "source_id", sourceID, "entities", len(entities), "relationships", len(relations))

	return &common.KnowledgeGraphResult{
		GraphID: storedID,
		Metadata: &common.TextStats{
			WordCount:     len(strings.Fields(text)),
			SentenceCount: len(splitIntoSentences(text)),
		},
		Entities:       entities,
		ImportantTerms: terms,
		Relationships:  relations,
	}, nil
}
