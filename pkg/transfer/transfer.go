// Package transfer exports a user's document set with graph statistics
// and imports it back where possible.
package transfer

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"time"

	"github.com/OFFIS-RIT/kgops/pkg/common"
	"github.com/OFFIS-RIT/kgops/pkg/logger"
	"github.com/OFFIS-RIT/kgops/pkg/store"
)

const FormatVersion = "1.0"

var (
	ErrMissingUser   = errors.New("user id is required")
	ErrUserMismatch  = errors.New("export belongs to a different user")
	ErrInvalidExport = errors.New("invalid export file")
)

// ExportedDocument carries everything but the raw payload, which is why an
// export cannot be fully restored.
type ExportedDocument struct {
	ID               string                  `json:"id"`
	SourceID         string                  `json:"sourceId"`
	Title            string                  `json:"title"`
	KnowledgeGraphID string                  `json:"knowledgeGraphId"`
	Metadata         common.DocumentMetadata `json:"metadata"`
	CreatedAt        time.Time               `json:"createdAt"`
}

type ExportMetadata struct {
	TotalDocuments int    `json:"totalDocuments"`
	Version        string `json:"version"`
}

type ExportFile struct {
	ExportedAt time.Time              `json:"exportedAt"`
	UserID     string                 `json:"userId"`
	Statistics common.GraphStatistics `json:"statistics"`
	Documents  []ExportedDocument     `json:"documents"`
	Metadata   ExportMetadata         `json:"metadata"`
}

type ImportResult struct {
	Total         int      `json:"total"`
	Skipped       int      `json:"skipped"`
	NotRestorable int      `json:"notRestorable"`
	Errors        []string `json:"errors,omitempty"`
}

// GraphStats reports what is stored in a user's knowledge graphs.
type GraphStats interface {
	GraphStatistics(ctx context.Context, userID string) (common.GraphStatistics, error)
}

type Service struct {
	docs   store.DocumentStore
	graphs GraphStats
	now    func() time.Time
}

func NewService(docs store.DocumentStore, graphs GraphStats) *Service {
	return &Service{docs: docs, graphs: graphs, now: time.Now}
}

// Export collects every document of userID regardless of status.
func (s *Service) Export(ctx context.Context, userID string) (*ExportFile, error) {
	if userID == "" {
		return nil, ErrMissingUser
	}
	docs, err := s.docs.QueryDocuments(ctx, store.DocumentQuery{UserID: userID})
	if err != nil {
		return nil, fmt.Errorf("failed to list documents: %w", err)
	}
	stats, err := s.graphs.GraphStatistics(ctx, userID)
	if err != nil {
		return nil, fmt.Errorf("failed to load graph statistics: %w", err)
	}

	out := &ExportFile{
		ExportedAt: s.now().UTC(),
		UserID:     userID,
		Statistics: stats,
		Documents:  make([]ExportedDocument, 0, len(docs)),
		Metadata:   ExportMetadata{TotalDocuments: len(docs), Version: FormatVersion},
	}
	for _, d := range docs {
		out.Documents = append(out.Documents, ExportedDocument{
			ID:               d.ID,
			SourceID:         d.SourceID,
			Title:            d.Title,
			KnowledgeGraphID: d.KnowledgeGraphID,
			Metadata:         d.Metadata,
			CreatedAt:        d.CreatedAt,
		})
	}
	logger.Info("[Transfer] Exported documents", "user_id", userID, "documents", len(docs))
	return out, nil
}

func WriteExport(w io.Writer, f *ExportFile) error {
	enc := json.NewEncoder(w)
	enc.SetIndent("", "  ")
	return enc.Encode(f)
}

func ReadExport(r io.Reader) (*ExportFile, error) {
	var f ExportFile
	if err := json.NewDecoder(r).Decode(&f); err != nil {
		return nil, fmt.Errorf("%w: %w", ErrInvalidExport, err)
	}
	if f.Metadata.Version != FormatVersion {
		return nil, fmt.Errorf("%w: unsupported version %q", ErrInvalidExport, f.Metadata.Version)
	}
	return &f, nil
}

// Import reads an export and reconciles it against the store. Documents
// already present for (userID, sourceID) are skipped. The rest are counted
// as not restorable since the export holds no raw content to rebuild from.
func (s *Service) Import(ctx context.Context, userID string, r io.Reader) (ImportResult, error) {
	if userID == "" {
		return ImportResult{}, ErrMissingUser
	}
	f, err := ReadExport(r)
	if err != nil {
		return ImportResult{}, err
	}
	if f.UserID != "" && f.UserID != userID {
		return ImportResult{}, fmt.Errorf("%w: %s", ErrUserMismatch, f.UserID)
	}

	res := ImportResult{Total: len(f.Documents)}
	for _, d := range f.Documents {
		if d.SourceID == "" {
			res.Errors = append(res.Errors, fmt.Sprintf("document %s: missing source id", d.ID))
			continue
		}
		_, found, err := s.docs.FindBySource(ctx, userID, d.SourceID)
		if err != nil {
			return res, fmt.Errorf("failed to look up source %s: %w", d.SourceID, err)
		}
		if found {
			res.Skipped++
			continue
		}
		res.NotRestorable++
	}
	logger.Info("[Transfer] Imported export", "user_id", userID, "total", res.Total, "skipped", res.Skipped, "not_restorable", res.NotRestorable)
	return res, nil
}
