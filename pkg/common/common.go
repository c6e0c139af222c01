package common

import "time"

// Graph is the entity/relationship structure extracted from one document.
// Units keep the text segments the entities were derived from.
type Graph struct {
	ID            string         `json:"id"`
	Entities      []Entity       `json:"entities"`
	Relationships []Relationship `json:"relationships"`
	Units         []*Unit        `json:"units"`
}

// Entity is a node of a knowledge graph (person, organization, product...).
type Entity struct {
	ID          string   `json:"id"`
	Name        string   `json:"name"`
	Description string   `json:"description"`
	Type        string   `json:"type"`
	Sources     []Source `json:"sources"`
}

// Source links a description back to the unit it was extracted from.
type Source struct {
	ID          string `json:"id"`
	Unit        *Unit  `json:"unit"`
	Description string `json:"description"`
}

// Relationship is an edge between two entities of a knowledge graph.
type Relationship struct {
	ID          string   `json:"id"`
	Source      *Entity  `json:"source"`
	Target      *Entity  `json:"target"`
	Description string   `json:"description"`
	Strength    float64  `json:"strength"`
	Sources     []Source `json:"sources"`
}

// Unit is a token-limited chunk of a document's text.
type Unit struct {
	ID       string `json:"id"`
	SourceID string `json:"source_id"`
	Start    int    `json:"start"`
	End      int    `json:"end"`
	Text     string `json:"text"`
}

// TextStats holds counts computed over a document's raw text.
type TextStats struct {
	WordCount     int `json:"wordCount"`
	SentenceCount int `json:"sentenceCount"`
}

// KnowledgeGraphResult is what the extraction service returns for one
// document. Metadata and the slices are optional and may be nil.
type KnowledgeGraphResult struct {
	GraphID        string
	Metadata       *TextStats
	Entities       []Entity
	ImportantTerms []string
	Relationships  []Relationship
}

// GraphStatistics summarizes everything stored for one user.
type GraphStatistics struct {
	Documents    int `json:"documents"`
	Entities     int `json:"entities"`
	Terms        int `json:"terms"`
	Concepts     int `json:"concepts"`
	Interactions int `json:"interactions"`
}

type DocumentStatus string

const (
	StatusPending    DocumentStatus = "pending"
	StatusProcessing DocumentStatus = "processing"
	StatusCompleted  DocumentStatus = "completed"
	StatusFailed     DocumentStatus = "failed"
)

func (s DocumentStatus) Valid() bool {
	switch s {
	case StatusPending, StatusProcessing, StatusCompleted, StatusFailed:
		return true
	}
	return false
}

type MetadataEntity struct {
	Name string `json:"name"`
	Type string `json:"type"`
}

type MetadataRelationship struct {
	Source   string  `json:"source"`
	Target   string  `json:"target"`
	Strength float64 `json:"strength"`
}

// DocumentMetadata holds the fields derived from a successful extraction.
// Collections are never nil once written by the migration engine.
type DocumentMetadata struct {
	WordCount      int                    `json:"wordCount"`
	SentenceCount  int                    `json:"sentenceCount"`
	Entities       []MetadataEntity       `json:"entities"`
	ImportantTerms []string               `json:"importantTerms"`
	Relationships  []MetadataRelationship `json:"relationships"`
}

// Document is a source item that goes through knowledge-graph construction.
// UpdatedAt doubles as the optimistic concurrency token of the store.
type Document struct {
	ID               string           `json:"id"`
	UserID           string           `json:"userId"`
	SourceID         string           `json:"sourceId"`
	Title            string           `json:"title"`
	RawPayload       string           `json:"-"`
	ProcessingStatus DocumentStatus   `json:"processingStatus"`
	ProcessingError  string           `json:"processingError,omitempty"`
	KnowledgeGraphID string           `json:"knowledgeGraphId,omitempty"`
	Metadata         DocumentMetadata `json:"metadata"`
	Version          int              `json:"version"`
	CreatedAt        time.Time        `json:"createdAt"`
	UpdatedAt        time.Time        `json:"updatedAt"`
}

// Customer is a node of the relationship graph used for analytics.
type Customer struct {
	ID         string            `json:"id"`
	UserID     string            `json:"userId"`
	Name       string            `json:"name"`
	Company    string            `json:"company"`
	Attributes map[string]string `json:"attributes,omitempty"`
}

// CustomerRelationship is an undirected edge between two customers.
// Strength is an ordinal between 1 and 5.
type CustomerRelationship struct {
	ID       string `json:"id"`
	SourceID string `json:"sourceId"`
	TargetID string `json:"targetId"`
	Type     string `json:"type"`
	Strength int    `json:"strength"`
}

type InteractionOutcome string

const (
	OutcomeWon      InteractionOutcome = "won"
	OutcomeAdvanced InteractionOutcome = "advanced"
	OutcomeNeutral  InteractionOutcome = "neutral"
	OutcomeLost     InteractionOutcome = "lost"
)

// Interaction is one recorded sales conversation turn. Rating is 0 when the
// seller did not rate the suggestion, otherwise 1 to 5.
type Interaction struct {
	ID                string             `json:"id"`
	UserID            string             `json:"userId"`
	CustomerID        string             `json:"customerId,omitempty"`
	Prompt            string             `json:"prompt"`
	Context           string             `json:"context,omitempty"`
	Response          string             `json:"response"`
	Outcome           InteractionOutcome `json:"outcome"`
	Rating            int                `json:"rating,omitempty"`
	CorrectedResponse string             `json:"correctedResponse,omitempty"`
	CreatedAt         time.Time          `json:"createdAt"`
}

// FineTuneJob is the local record of a job submitted to the training provider.
// Status is provider defined and treated as opaque.
type FineTuneJob struct {
	ID             string     `json:"id"`
	UserID         string     `json:"userId"`
	ModelName      string     `json:"modelName"`
	BaseModel      string     `json:"baseModel"`
	Status         string     `json:"status"`
	FineTunedModel string     `json:"fineTunedModel,omitempty"`
	TrainingSize   int        `json:"trainingSize"`
	ValidationSize int        `json:"validationSize"`
	CorpusKey      string     `json:"corpusKey"`
	CreatedAt      time.Time  `json:"createdAt"`
	FinishedAt     *time.Time `json:"finishedAt,omitempty"`
}

// Artifact is an object in the artifact bucket.
type Artifact struct {
	Key          string    `json:"key"`
	Size         int64     `json:"size"`
	LastModified time.Time `json:"lastModified"`
}
