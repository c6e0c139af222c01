package pgx

import (
	"context"
	"fmt"

	"github.com/OFFIS-RIT/kgops/internal/util"
	"github.com/OFFIS-RIT/kgops/pkg/common"
	"github.com/OFFIS-RIT/kgops/pkg/logger"
	"github.com/OFFIS-RIT/kgops/pkg/store"

	pgxv5 "github.com/jackc/pgx/v5"
	gonanoid "github.com/matoous/go-nanoid/v2"
)

// ReplaceGraph writes g in one transaction. Any graph previously stored for
// the same user and source is deleted first, so graphs are never merged.
func (s *Storage) ReplaceGraph(
	ctx context.Context,
	userID string,
	sourceID string,
	g *common.Graph,
	importantTerms []string,
) (string, error) {
	if g == nil {
		return "", fmt.Errorf("graph is nil")
	}
	graphID := g.ID
	if graphID == "" {
		id, err := gonanoid.New()
		if err != nil {
			return "", err
		}
		graphID = id
	}

	tx, err := s.conn.Begin(ctx)
	if err != nil {
		return "", fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer rollback(ctx, tx)

	tag, err := tx.Exec(ctx, `DELETE FROM knowledge_graphs WHERE user_id = $1 AND source_id = $2`, userID, sourceID)
	if err != nil {
		return "", fmt.Errorf("failed to delete previous graph: %w", err)
	}
	if tag.RowsAffected() > 0 {
		logger.Debug("[Store] Replaced previous graph", "user_id", userID, "source_id", sourceID)
	}

	_, err = tx.Exec(ctx, `INSERT INTO knowledge_graphs (id, user_id, source_id) VALUES ($1, $2, $3)`, graphID, userID, sourceID)
	if err != nil {
		return "", fmt.Errorf("failed to insert graph: %w", err)
	}

	err = store.ChunkRange(len(g.Entities), s.batchSize, func(start, end int) error {
		batch := &pgxv5.Batch{}
		for _, e := range g.Entities[start:end] {
			batch.Queue(
				`INSERT INTO graph_entities (id, graph_id, name, type, description) VALUES ($1, $2, $3, $4, $5)`,
				e.ID, graphID, util.SanitizePostgresText(e.Name), e.Type, util.SanitizePostgresText(entityDescription(e)),
			)
		}
		return sendBatch(ctx, tx, batch)
	})
	if err != nil {
		return "", fmt.Errorf("failed to insert entities: %w", err)
	}

	rels := make([]common.Relationship, 0, len(g.Relationships))
	for _, r := range g.Relationships {
		if r.Source == nil || r.Target == nil {
			continue
		}
		rels = append(rels, r)
	}
	err = store.ChunkRange(len(rels), s.batchSize, func(start, end int) error {
		batch := &pgxv5.Batch{}
		for _, r := range rels[start:end] {
			batch.Queue(
				`INSERT INTO graph_relationships (id, graph_id, source_entity_id, target_entity_id, description, strength)
				 VALUES ($1, $2, $3, $4, $5, $6)`,
				r.ID, graphID, r.Source.ID, r.Target.ID, util.SanitizePostgresText(relationshipDescription(r)), r.Strength,
			)
		}
		return sendBatch(ctx, tx, batch)
	})
	if err != nil {
		return "", fmt.Errorf("failed to insert relationships: %w", err)
	}

	terms := store.DedupeStrings(importantTerms)
	err = store.ChunkRange(len(terms), s.batchSize, func(start, end int) error {
		batch := &pgxv5.Batch{}
		for _, term := range terms[start:end] {
			batch.Queue(
				`INSERT INTO graph_terms (graph_id, term) VALUES ($1, $2) ON CONFLICT DO NOTHING`,
				graphID, util.SanitizePostgresText(term),
			)
		}
		return sendBatch(ctx, tx, batch)
	})
	if err != nil {
		return "", fmt.Errorf("failed to insert terms: %w", err)
	}

	if err := tx.Commit(ctx); err != nil {
		return "", fmt.Errorf("failed to commit graph: %w", err)
	}
	return graphID, nil
}

func (s *Storage) GraphStatistics(ctx context.Context, userID string) (common.GraphStatistics, error) {
	var st common.GraphStatistics
	err := s.conn.QueryRow(ctx, graphStatisticsSQL, userID).Scan(
		&st.Documents,
		&st.Entities,
		&st.Terms,
		&st.Concepts,
		&st.Interactions,
	)
	if err != nil {
		return common.GraphStatistics{}, fmt.Errorf("failed to load graph statistics: %w", err)
	}
	return st, nil
}

func sendBatch(ctx context.Context, tx pgxv5.Tx, batch *pgxv5.Batch) error {
	br := tx.SendBatch(ctx, batch)
	for range batch.Len() {
		if _, err := br.Exec(); err != nil {
			_ = br.Close()
			return err
		}
	}
	return br.Close()
}

func entityDescription(e common.Entity) string {
	if e.Description != "" {
		return e.Description
	}
	return joinSourceDescriptions(e.Sources)
}

func relationshipDescription(r common.Relationship) string {
	if r.Description != "" {
		return r.Description
	}
	return joinSourceDescriptions(r.Sources)
}

func joinSourceDescriptions(sources []common.Source) string {
	out := ""
	for _, s := range sources {
		if s.Description == "" {
			continue
		}
		if out != "" {
			out += "\n"
		}
		out += s.Description
	}
	return out
}

const graphStatisticsSQL = `
SELECT
    (SELECT count(*) FROM knowledge_graphs WHERE user_id = $1),
    (SELECT count(*) FROM graph_entities e JOIN knowledge_graphs g ON g.id = e.graph_id WHERE g.user_id = $1),
    (SELECT count(DISTINCT t.term) FROM graph_terms t JOIN knowledge_graphs g ON g.id = t.graph_id WHERE g.user_id = $1),
    (SELECT count(*) FROM graph_entities e JOIN knowledge_graphs g ON g.id = e.graph_id
      WHERE g.user_id = $1 AND e.type = 'CONCEPT'),
    (SELECT count(*) FROM interactions WHERE user_id = $1);
`
