package pgx

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/OFFIS-RIT/kgops/internal/util"
	"github.com/OFFIS-RIT/kgops/pkg/common"
	"github.com/OFFIS-RIT/kgops/pkg/store"

	pgxv5 "github.com/jackc/pgx/v5"
	gonanoid "github.com/matoous/go-nanoid/v2"
)

const maxProcessingErrorLen = 2000

const documentColumns = `id, user_id, source_id, title, raw_payload, processing_status,
       COALESCE(processing_error, ''), COALESCE(knowledge_graph_id, ''),
       metadata, version, created_at, updated_at`

func buildDocumentQuery(q store.DocumentQuery) (string, []any) {
	var where []string
	var args []any
	if q.Status != "" {
		args = append(args, string(q.Status))
		where = append(where, fmt.Sprintf("processing_status = $%d", len(args)))
	}
	if q.UserID != "" {
		args = append(args, q.UserID)
		where = append(where, fmt.Sprintf("user_id = $%d", len(args)))
	}

	var sb strings.Builder
	sb.WriteString("SELECT ")
	sb.WriteString(documentColumns)
	sb.WriteString("\nFROM documents")
	if len(where) > 0 {
		sb.WriteString("\nWHERE ")
		sb.WriteString(strings.Join(where, " AND "))
	}
	sb.WriteString("\nORDER BY created_at, id")
	return sb.String(), args
}

func scanDocument(row pgxv5.Row) (common.Document, error) {
	var (
		doc    common.Document
		status string
	)
	err := row.Scan(
		&doc.ID,
		&doc.UserID,
		&doc.SourceID,
		&doc.Title,
		&doc.RawPayload,
		&status,
		&doc.ProcessingError,
		&doc.KnowledgeGraphID,
		&doc.Metadata,
		&doc.Version,
		&doc.CreatedAt,
		&doc.UpdatedAt,
	)
	doc.ProcessingStatus = common.DocumentStatus(status)
	return doc, err
}

func (s *Storage) QueryDocuments(ctx context.Context, q store.DocumentQuery) ([]common.Document, error) {
	sql, args := buildDocumentQuery(q)
	rows, err := s.conn.Query(ctx, sql, args...)
	if err != nil {
		return nil, fmt.Errorf("failed to query documents: %w", err)
	}
	defer rows.Close()

	var docs []common.Document
	for rows.Next() {
		doc, err := scanDocument(rows)
		if err != nil {
			return nil, fmt.Errorf("failed to scan document: %w", err)
		}
		docs = append(docs, doc)
	}
	return docs, rows.Err()
}

func (s *Storage) GetDocument(ctx context.Context, id string) (common.Document, error) {
	doc, err := scanDocument(s.conn.QueryRow(ctx, "SELECT "+documentColumns+"\nFROM documents WHERE id = $1", id))
	if errors.Is(err, pgxv5.ErrNoRows) {
		return common.Document{}, store.ErrNotFound
	}
	return doc, err
}

func (s *Storage) FindBySource(ctx context.Context, userID, sourceID string) (common.Document, bool, error) {
	doc, err := scanDocument(s.conn.QueryRow(
		ctx,
		"SELECT "+documentColumns+"\nFROM documents WHERE user_id = $1 AND source_id = $2",
		userID, sourceID,
	))
	if errors.Is(err, pgxv5.ErrNoRows) {
		return common.Document{}, false, nil
	}
	if err != nil {
		return common.Document{}, false, err
	}
	return doc, true, nil
}

func (s *Storage) SaveDocument(ctx context.Context, doc *common.Document) error {
	var updatedAt time.Time
	err := s.conn.QueryRow(
		ctx,
		saveDocumentSQL,
		doc.ID,
		util.SanitizePostgresText(doc.Title),
		string(doc.ProcessingStatus),
		util.TruncateRunes(util.SanitizePostgresText(doc.ProcessingError), maxProcessingErrorLen),
		doc.KnowledgeGraphID,
		doc.Metadata,
		doc.Version,
		doc.UpdatedAt,
	).Scan(&updatedAt)
	if errors.Is(err, pgxv5.ErrNoRows) {
		if _, getErr := s.GetDocument(ctx, doc.ID); errors.Is(getErr, store.ErrNotFound) {
			return store.ErrNotFound
		}
		return store.ErrConflict
	}
	if err != nil {
		return fmt.Errorf("failed to save document %s: %w", doc.ID, err)
	}
	doc.UpdatedAt = updatedAt
	return nil
}

func (s *Storage) InsertDocument(ctx context.Context, doc *common.Document) error {
	if doc.ID == "" {
		id, err := gonanoid.New()
		if err != nil {
			return err
		}
		doc.ID = id
	}
	if doc.ProcessingStatus == "" {
		doc.ProcessingStatus = common.StatusPending
	}
	if doc.Version <= 0 {
		doc.Version = 1
	}

	err := s.conn.QueryRow(
		ctx,
		insertDocumentSQL,
		doc.ID,
		doc.UserID,
		doc.SourceID,
		util.SanitizePostgresText(doc.Title),
		util.SanitizePostgresText(doc.RawPayload),
		string(doc.ProcessingStatus),
		doc.Metadata,
		doc.Version,
	).Scan(&doc.CreatedAt, &doc.UpdatedAt)
	if err != nil {
		return fmt.Errorf("failed to insert document: %w", err)
	}
	return nil
}

func (s *Storage) ResetStaleProcessing(ctx context.Context, userID string, olderThan time.Time) (int, error) {
	tag, err := s.conn.Exec(ctx, resetStaleSQL, olderThan, userID)
	if err != nil {
		return 0, fmt.Errorf("failed to reset stale documents: %w", err)
	}
	return int(tag.RowsAffected()), nil
}

func (s *Storage) CountByStatus(ctx context.Context, userID string) (store.StatusCounts, error) {
	var c store.StatusCounts
	err := s.conn.QueryRow(ctx, countByStatusSQL, userID).Scan(
		&c.Total,
		&c.Pending,
		&c.Processing,
		&c.Completed,
		&c.Failed,
		&c.WithoutGraph,
	)
	if err != nil {
		return store.StatusCounts{}, fmt.Errorf("failed to count documents: %w", err)
	}
	return c, nil
}

func (s *Storage) ListUserIDs(ctx context.Context) ([]string, error) {
	rows, err := s.conn.Query(ctx, `SELECT DISTINCT user_id FROM documents ORDER BY user_id`)
	if err != nil {
		return nil, err
	}
	return pgxv5.CollectRows(rows, pgxv5.RowTo[string])
}

const saveDocumentSQL = `
UPDATE documents
SET title              = $2,
    processing_status  = $3,
    processing_error   = NULLIF($4, ''),
    knowledge_graph_id = NULLIF($5, ''),
    metadata           = $6,
    version            = $7,
    updated_at         = clock_timestamp()
WHERE id = $1 AND updated_at = $8
RETURNING updated_at;
`

const insertDocumentSQL = `
INSERT INTO documents (id, user_id, source_id, title, raw_payload, processing_status, metadata, version)
VALUES ($1, $2, $3, $4, $5, $6, $7, $8)
RETURNING created_at, updated_at;
`

const resetStaleSQL = `
UPDATE documents
SET processing_status = 'pending',
    processing_error  = NULL,
    updated_at        = clock_timestamp()
WHERE processing_status = 'processing'
  AND updated_at <= $1
  AND ($2 = '' OR user_id = $2);
`

const countByStatusSQL = `
SELECT count(*),
       count(*) FILTER (WHERE processing_status = 'pending'),
       count(*) FILTER (WHERE processing_status = 'processing'),
       count(*) FILTER (WHERE processing_status = 'completed'),
       count(*) FILTER (WHERE processing_status = 'failed'),
       count(*) FILTER (WHERE processing_status = 'completed' AND knowledge_graph_id IS NULL)
FROM documents
WHERE user_id = $1;
`
