package analytics

import (
	"context"
	"fmt"

	"github.com/OFFIS-RIT/kgops/pkg/common"
	"github.com/OFFIS-RIT/kgops/pkg/store"
)

// Report summarizes one relationship graph. AverageDegree is 0 and
// MostConnected nil when HasNodes is false.
type Report struct {
	NodeCount         int            `json:"nodeCount"`
	EdgeCount         int            `json:"edgeCount"`
	DroppedEdges      int            `json:"droppedEdges"`
	HasNodes          bool           `json:"hasNodes"`
	AverageDegree     float64        `json:"averageDegree"`
	MostConnected     *NodeDegree    `json:"mostConnected,omitempty"`
	Isolated          int            `json:"isolated"`
	RelationshipTypes map[string]int `json:"relationshipTypes"`
	AverageStrength   float64        `json:"averageStrength"`
}

// Analyze builds a fresh adjacency index and derives the report from it.
func Analyze(nodes []common.Customer, edges []common.CustomerRelationship) Report {
	idx := BuildAdjacency(nodes, edges)
	r := Report{
		NodeCount:         len(idx.order),
		EdgeCount:         idx.Edges(),
		DroppedEdges:      idx.Dropped(),
		HasNodes:          len(idx.order) > 0,
		RelationshipTypes: map[string]int{},
	}
	if avg, err := AverageDegree(idx); err == nil {
		r.AverageDegree = avg
	}
	if mc, err := MostConnected(idx); err == nil {
		r.MostConnected = &mc
	}
	for _, id := range idx.order {
		if idx.Degree(id) == 0 {
			r.Isolated++
		}
	}

	strength := 0
	for _, e := range idx.edges {
		t := e.Type
		if t == "" {
			t = "unspecified"
		}
		r.RelationshipTypes[t]++
		strength += e.Strength
	}
	if r.EdgeCount > 0 {
		r.AverageStrength = float64(strength) / float64(r.EdgeCount)
	}
	return r
}

// Service loads a user's relationship graph and analyzes it.
type Service struct {
	store store.RelationshipStore
}

func NewService(s store.RelationshipStore) *Service {
	return &Service{store: s}
}

func (s *Service) ForUser(ctx context.Context, userID string) (Report, error) {
	nodes, err := s.store.ListCustomers(ctx, userID)
	if err != nil {
		return Report{}, fmt.Errorf("failed to load customers: %w", err)
	}
	edges, err := s.store.ListCustomerRelationships(ctx, userID)
	if err != nil {
		return Report{}, fmt.Errorf("failed to load relationships: %w", err)
	}
	return Analyze(nodes, edges), nil
}
