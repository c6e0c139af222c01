// Package analytics computes connectivity metrics over a customer
// relationship graph.
package analytics

import (
	"errors"

	"github.com/OFFIS-RIT/kgops/pkg/common"
)

// ErrNoNodes is returned when a metric is undefined for an empty graph.
var ErrNoNodes = errors.New("graph has no nodes")

// AdjacencyIndex maps every node to its neighbors. Node order follows the
// input and neighbor lists keep first-seen order without duplicates.
type AdjacencyIndex struct {
	order     []string
	neighbors map[string][]string
	seen      map[string]map[string]struct{}
	edges     []common.CustomerRelationship
	dropped   int
}

// BuildAdjacency indexes nodes and edges. Each valid edge is added in both
// directions and a repeated pair, in either direction, is kept once. Edges
// with an endpoint missing from nodes are dropped and counted. Inputs are
// not modified.
func BuildAdjacency(nodes []common.Customer, edges []common.CustomerRelationship) *AdjacencyIndex {
	idx := &AdjacencyIndex{
		order:     make([]string, 0, len(nodes)),
		neighbors: make(map[string][]string, len(nodes)),
		seen:      make(map[string]map[string]struct{}, len(nodes)),
	}
	for _, n := range nodes {
		if _, ok := idx.neighbors[n.ID]; ok {
			continue
		}
		idx.order = append(idx.order, n.ID)
		idx.neighbors[n.ID] = []string{}
		idx.seen[n.ID] = map[string]struct{}{}
	}

	for _, e := range edges {
		if !idx.Has(e.SourceID) || !idx.Has(e.TargetID) {
			idx.dropped++
			continue
		}
		if !idx.link(e.SourceID, e.TargetID) {
			continue
		}
		idx.link(e.TargetID, e.SourceID)
		idx.edges = append(idx.edges, e)
	}
	return idx
}

func (idx *AdjacencyIndex) link(from, to string) bool {
	if _, ok := idx.seen[from][to]; ok {
		return false
	}
	idx.seen[from][to] = struct{}{}
	idx.neighbors[from] = append(idx.neighbors[from], to)
	return true
}

func (idx *AdjacencyIndex) Has(id string) bool {
	_, ok := idx.neighbors[id]
	return ok
}

// Neighbors returns a copy of the neighbor list of id, or nil for an
// unknown node.
func (idx *AdjacencyIndex) Neighbors(id string) []string {
	n, ok := idx.neighbors[id]
	if !ok {
		return nil
	}
	return append([]string{}, n...)
}

func (idx *AdjacencyIndex) Degree(id string) int {
	return len(idx.neighbors[id])
}

// Nodes returns node IDs in input order.
func (idx *AdjacencyIndex) Nodes() []string {
	return append([]string{}, idx.order...)
}

// Edges is the number of distinct node pairs linked by a valid edge.
func (idx *AdjacencyIndex) Edges() int { return len(idx.edges) }

func (idx *AdjacencyIndex) Dropped() int { return idx.dropped }

// AverageDegree is the sum of all neighbor list lengths divided by the
// node count.
func AverageDegree(idx *AdjacencyIndex) (float64, error) {
	if len(idx.order) == 0 {
		return 0, ErrNoNodes
	}
	total := 0
	for _, id := range idx.order {
		total += len(idx.neighbors[id])
	}
	return float64(total) / float64(len(idx.order)), nil
}

type NodeDegree struct {
	NodeID string `json:"nodeId"`
	Degree int    `json:"degree"`
}

// MostConnected returns the node with the highest degree. On equal degree
// the node that comes first in input order wins.
func MostConnected(idx *AdjacencyIndex) (NodeDegree, error) {
	if len(idx.order) == 0 {
		return NodeDegree{}, ErrNoNodes
	}
	best := NodeDegree{NodeID: idx.order[0], Degree: idx.Degree(idx.order[0])}
	for _, id := range idx.order[1:] {
		if d := idx.Degree(id); d > best.Degree {
			best = NodeDegree{NodeID: id, Degree: d}
		}
	}
	return best, nil
}
