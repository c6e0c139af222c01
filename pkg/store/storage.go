package store

import (
	"context"
	"errors"
	"time"

	"github.com/OFFIS-RIT/kgops/pkg/common"
)

var (
	ErrNotFound = errors.New("record not found")
	// ErrConflict is returned when a document changed between read and write.
	ErrConflict = errors.New("document was modified concurrently")
)

// DocumentQuery scopes a document listing. Empty fields match everything.
// Results are ordered by creation time, then ID.
type DocumentQuery struct {
	Status common.DocumentStatus
	UserID string
}

// StatusCounts tabulates one user's documents. WithoutGraph counts
// completed documents that carry no knowledge graph reference.
type StatusCounts struct {
	Total        int `json:"total"`
	Pending      int `json:"pending"`
	Processing   int `json:"processing"`
	Completed    int `json:"completed"`
	Failed       int `json:"failed"`
	WithoutGraph int `json:"withoutGraph"`
}

// DocumentStore is the single source of truth for processing status.
type DocumentStore interface {
	QueryDocuments(ctx context.Context, q DocumentQuery) ([]common.Document, error)
	GetDocument(ctx context.Context, id string) (common.Document, error)
	// SaveDocument writes doc if its UpdatedAt still matches the stored row
	// and refreshes doc.UpdatedAt. It returns ErrConflict otherwise.
	SaveDocument(ctx context.Context, doc *common.Document) error
	InsertDocument(ctx context.Context, doc *common.Document) error
	FindBySource(ctx context.Context, userID, sourceID string) (common.Document, bool, error)
	// ResetStaleProcessing moves processing documents last touched before
	// olderThan back to pending. An empty userID matches all users.
	ResetStaleProcessing(ctx context.Context, userID string, olderThan time.Time) (int, error)
	CountByStatus(ctx context.Context, userID string) (StatusCounts, error)
	ListUserIDs(ctx context.Context) ([]string, error)
}

// GraphStore persists extracted knowledge graphs.
type GraphStore interface {
	// ReplaceGraph stores g for (userID, sourceID) and removes any graph
	// previously stored for the same pair. It returns the new graph ID.
	ReplaceGraph(ctx context.Context, userID, sourceID string, g *common.Graph, importantTerms []string) (string, error)
	GraphStatistics(ctx context.Context, userID string) (common.GraphStatistics, error)
}

type InteractionStore interface {
	// ListInteractions returns interactions with from <= created_at <= to,
	// ordered by creation time, then ID.
	ListInteractions(ctx context.Context, userID string, from, to time.Time) ([]common.Interaction, error)
	CountInteractions(ctx context.Context, userID string, since time.Time) (int, error)
}

type RelationshipStore interface {
	ListCustomers(ctx context.Context, userID string) ([]common.Customer, error)
	ListCustomerRelationships(ctx context.Context, userID string) ([]common.CustomerRelationship, error)
}

type JobStore interface {
	SaveJob(ctx context.Context, job common.FineTuneJob) error
	ListJobs(ctx context.Context, userID string) ([]common.FineTuneJob, error)
	// DeleteFinishedJobsBefore removes jobs that finished before the cutoff.
	DeleteFinishedJobsBefore(ctx context.Context, before time.Time) (int, error)
}

// ArtifactStore holds corpus files and other blobs.
type ArtifactStore interface {
	Put(ctx context.Context, key string, body []byte, contentType string) error
	Get(ctx context.Context, key string) ([]byte, error)
	List(ctx context.Context, prefix string) ([]common.Artifact, error)
	Delete(ctx context.Context, key string) error
}
