// Package testutil holds in-memory implementations of the store and
// provider interfaces for tests.
package testutil

import (
	"context"
	"fmt"
	"slices"
	"sort"
	"strings"
	"sync"
	"time"

	"github.com/OFFIS-RIT/kgops/pkg/common"
	"github.com/OFFIS-RIT/kgops/pkg/store"
)

// MemStore implements every store interface except ArtifactStore.
type MemStore struct {
	mu sync.Mutex

	clock time.Time

	docs         map[string]common.Document
	graphs       map[string]storedGraph
	interactions []common.Interaction
	customers    []common.Customer
	customerRels []common.CustomerRelationship
	jobs         map[string]common.FineTuneJob

	// SaveHook runs before a document is saved. A non-nil error is returned
	// from SaveDocument and the write is skipped.
	SaveHook func(doc common.Document) error
	// QueryErr is returned from QueryDocuments when set.
	QueryErr error

	Saves int
}

type storedGraph struct {
	userID   string
	sourceID string
	graph    common.Graph
	terms    []string
}

func NewMemStore() *MemStore {
	return &MemStore{
		clock:  time.Date(2025, 1, 1, 0, 0, 0, 0, time.UTC),
		docs:   make(map[string]common.Document),
		graphs: make(map[string]storedGraph),
		jobs:   make(map[string]common.FineTuneJob),
	}
}

// tick advances the store clock so UpdatedAt values are strictly increasing.
func (m *MemStore) tick() time.Time {
	m.clock = m.clock.Add(time.Millisecond)
	return m.clock
}

// Now returns the current store clock.
func (m *MemStore) Now() time.Time {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.clock
}

// AddDocument inserts doc as is, filling ID, Version and timestamps when
// unset, and returns the stored copy.
func (m *MemStore) AddDocument(doc common.Document) common.Document {
	m.mu.Lock()
	defer m.mu.Unlock()
	if doc.ID == "" {
		doc.ID = fmt.Sprintf("doc-%03d", len(m.docs)+1)
	}
	if doc.Version == 0 {
		doc.Version = 1
	}
	if doc.ProcessingStatus == "" {
		doc.ProcessingStatus = common.StatusPending
	}
	now := m.tick()
	if doc.CreatedAt.IsZero() {
		doc.CreatedAt = now
	}
	if doc.UpdatedAt.IsZero() {
		doc.UpdatedAt = now
	}
	m.docs[doc.ID] = doc
	return doc
}

// Document returns the stored copy of id or panics.
func (m *MemStore) Document(id string) common.Document {
	m.mu.Lock()
	defer m.mu.Unlock()
	d, ok := m.docs[id]
	if !ok {
		panic("testutil: unknown document " + id)
	}
	return d
}

// TouchDocument bumps UpdatedAt of id, simulating a concurrent writer.
func (m *MemStore) TouchDocument(id string) {
	m.mu.Lock()
	defer m.mu.Unlock()
	d := m.docs[id]
	d.UpdatedAt = m.tick()
	m.docs[id] = d
}

func (m *MemStore) sortedDocs() []common.Document {
	out := make([]common.Document, 0, len(m.docs))
	for _, d := range m.docs {
		out = append(out, d)
	}
	sort.Slice(out, func(i, j int) bool {
		if !out[i].CreatedAt.Equal(out[j].CreatedAt) {
			return out[i].CreatedAt.Before(out[j].CreatedAt)
		}
		return out[i].ID < out[j].ID
	})
	return out
}

func (m *MemStore) QueryDocuments(_ context.Context, q store.DocumentQuery) ([]common.Document, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.QueryErr != nil {
		return nil, m.QueryErr
	}
	var out []common.Document
	for _, d := range m.sortedDocs() {
		if q.Status != "" && d.ProcessingStatus != q.Status {
			continue
		}
		if q.UserID != "" && d.UserID != q.UserID {
			continue
		}
		out = append(out, d)
	}
	return out, nil
}

func (m *MemStore) GetDocument(_ context.Context, id string) (common.Document, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	d, ok := m.docs[id]
	if !ok {
		return common.Document{}, store.ErrNotFound
	}
	return d, nil
}

func (m *MemStore) SaveDocument(_ context.Context, doc *common.Document) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.SaveHook != nil {
		if err := m.SaveHook(*doc); err != nil {
			return err
		}
	}
	cur, ok := m.docs[doc.ID]
	if !ok {
		return store.ErrNotFound
	}
	if !cur.UpdatedAt.Equal(doc.UpdatedAt) {
		return store.ErrConflict
	}
	doc.UpdatedAt = m.tick()
	m.docs[doc.ID] = *doc
	m.Saves++
	return nil
}

func (m *MemStore) InsertDocument(_ context.Context, doc *common.Document) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	for _, d := range m.docs {
		if d.UserID == doc.UserID && d.SourceID == doc.SourceID {
			return store.ErrConflict
		}
	}
	if doc.ID == "" {
		doc.ID = fmt.Sprintf("doc-%03d", len(m.docs)+1)
	}
	if doc.ProcessingStatus == "" {
		doc.ProcessingStatus = common.StatusPending
	}
	if doc.Version <= 0 {
		doc.Version = 1
	}
	now := m.tick()
	doc.CreatedAt, doc.UpdatedAt = now, now
	m.docs[doc.ID] = *doc
	return nil
}

func (m *MemStore) FindBySource(_ context.Context, userID, sourceID string) (common.Document, bool, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	for _, d := range m.docs {
		if d.UserID == userID && d.SourceID == sourceID {
			return d, true, nil
		}
	}
	return common.Document{}, false, nil
}

func (m *MemStore) ResetStaleProcessing(_ context.Context, userID string, olderThan time.Time) (int, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	n := 0
	for id, d := range m.docs {
		if d.ProcessingStatus != common.StatusProcessing || d.UpdatedAt.After(olderThan) {
			continue
		}
		if userID != "" && d.UserID != userID {
			continue
		}
		d.ProcessingStatus = common.StatusPending
		d.ProcessingError = ""
		d.UpdatedAt = m.tick()
		m.docs[id] = d
		n++
	}
	return n, nil
}

func (m *MemStore) CountByStatus(_ context.Context, userID string) (store.StatusCounts, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	var c store.StatusCounts
	for _, d := range m.docs {
		if d.UserID != userID {
			continue
		}
		c.Total++
		switch d.ProcessingStatus {
		case common.StatusPending:
			c.Pending++
		case common.StatusProcessing:
			c.Processing++
		case common.StatusCompleted:
			c.Completed++
			if d.KnowledgeGraphID == "" {
				c.WithoutGraph++
			}
		case common.StatusFailed:
			c.Failed++
		}
	}
	return c, nil
}

func (m *MemStore) ListUserIDs(context.Context) ([]string, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	var ids []string
	for _, d := range m.docs {
		if !slices.Contains(ids, d.UserID) {
			ids = append(ids, d.UserID)
		}
	}
	slices.Sort(ids)
	return ids, nil
}

func (m *MemStore) ReplaceGraph(_ context.Context, userID, sourceID string, g *common.Graph, importantTerms []string) (string, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	for id, sg := range m.graphs {
		if sg.userID == userID && sg.sourceID == sourceID {
			delete(m.graphs, id)
		}
	}
	id := g.ID
	if id == "" {
		id = fmt.Sprintf("graph-%03d", len(m.graphs)+1)
	}
	m.graphs[id] = storedGraph{userID: userID, sourceID: sourceID, graph: *g, terms: importantTerms}
	return id, nil
}

// GraphCount returns the number of graphs stored for userID.
func (m *MemStore) GraphCount(userID string) int {
	m.mu.Lock()
	defer m.mu.Unlock()
	n := 0
	for _, sg := range m.graphs {
		if sg.userID == userID {
			n++
		}
	}
	return n
}

func (m *MemStore) GraphStatistics(_ context.Context, userID string) (common.GraphStatistics, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	var st common.GraphStatistics
	terms := map[string]struct{}{}
	for _, sg := range m.graphs {
		if sg.userID != userID {
			continue
		}
		st.Documents++
		st.Entities += len(sg.graph.Entities)
		for _, e := range sg.graph.Entities {
			if strings.EqualFold(e.Type, "CONCEPT") {
				st.Concepts++
			}
		}
		for _, t := range sg.terms {
			terms[t] = struct{}{}
		}
	}
	st.Terms = len(terms)
	for _, in := range m.interactions {
		if in.UserID == userID {
			st.Interactions++
		}
	}
	return st, nil
}

// AddInteractions appends interactions to the store.
func (m *MemStore) AddInteractions(in ...common.Interaction) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.interactions = append(m.interactions, in...)
}

func (m *MemStore) ListInteractions(_ context.Context, userID string, from, to time.Time) ([]common.Interaction, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	var out []common.Interaction
	for _, in := range m.interactions {
		if in.UserID != userID || in.CreatedAt.Before(from) || in.CreatedAt.After(to) {
			continue
		}
		out = append(out, in)
	}
	sort.SliceStable(out, func(i, j int) bool {
		if !out[i].CreatedAt.Equal(out[j].CreatedAt) {
			return out[i].CreatedAt.Before(out[j].CreatedAt)
		}
		return out[i].ID < out[j].ID
	})
	return out, nil
}

func (m *MemStore) CountInteractions(_ context.Context, userID string, since time.Time) (int, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	n := 0
	for _, in := range m.interactions {
		if in.UserID == userID && !in.CreatedAt.Before(since) {
			n++
		}
	}
	return n, nil
}

// SetRelationshipGraph replaces the customer graph.
func (m *MemStore) SetRelationshipGraph(customers []common.Customer, rels []common.CustomerRelationship) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.customers = customers
	m.customerRels = rels
}

func (m *MemStore) ListCustomers(_ context.Context, userID string) ([]common.Customer, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	var out []common.Customer
	for _, c := range m.customers {
		if c.UserID == userID {
			out = append(out, c)
		}
	}
	return out, nil
}

func (m *MemStore) ListCustomerRelationships(_ context.Context, userID string) ([]common.CustomerRelationship, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	owned := map[string]struct{}{}
	for _, c := range m.customers {
		if c.UserID == userID {
			owned[c.ID] = struct{}{}
		}
	}
	var out []common.CustomerRelationship
	for _, r := range m.customerRels {
		_, s := owned[r.SourceID]
		_, t := owned[r.TargetID]
		if s || t {
			out = append(out, r)
		}
	}
	return out, nil
}

func (m *MemStore) SaveJob(_ context.Context, job common.FineTuneJob) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if prev, ok := m.jobs[job.ID]; ok && job.CreatedAt.IsZero() {
		job.CreatedAt = prev.CreatedAt
	}
	m.jobs[job.ID] = job
	return nil
}

func (m *MemStore) ListJobs(_ context.Context, userID string) ([]common.FineTuneJob, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	var out []common.FineTuneJob
	for _, j := range m.jobs {
		if j.UserID == userID {
			out = append(out, j)
		}
	}
	sort.Slice(out, func(i, k int) bool {
		if !out[i].CreatedAt.Equal(out[k].CreatedAt) {
			return out[i].CreatedAt.After(out[k].CreatedAt)
		}
		return out[i].ID < out[k].ID
	})
	return out, nil
}

func (m *MemStore) DeleteFinishedJobsBefore(_ context.Context, before time.Time) (int, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	n := 0
	for id, j := range m.jobs {
		if j.FinishedAt != nil && j.FinishedAt.Before(before) {
			delete(m.jobs, id)
			n++
		}
	}
	return n, nil
}

var (
	_ store.DocumentStore     = (*MemStore)(nil)
	_ store.GraphStore        = (*MemStore)(nil)
	_ store.InteractionStore  = (*MemStore)(nil)
	_ store.RelationshipStore = (*MemStore)(nil)
	_ store.JobStore          = (*MemStore)(nil)
)
