package migration

import (
	"context"
	"errors"
	"fmt"
	"testing"
	"time"

	"github.com/OFFIS-RIT/kgops/internal/testutil"
	"github.com/OFFIS-RIT/kgops/pkg/common"
	"github.com/OFFIS-RIT/kgops/pkg/store"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func seed(st *testutil.MemStore, user string, status common.DocumentStatus, payloads ...string) []common.Document {
	docs := make([]common.Document, 0, len(payloads))
	for i, p := range payloads {
		docs = append(docs, st.AddDocument(common.Document{
			UserID:           user,
			SourceID:         fmt.Sprintf("%s-src-%d", user, i),
			RawPayload:       p,
			ProcessingStatus: status,
		}))
	}
	return docs
}

func newEngine(st *testutil.MemStore, ex *testutil.FakeExtractor, parallel int) *Engine {
	return NewEngine(NewEngineParams{
		Documents: st,
		Extractor: ex,
		Parallel:  parallel,
		Now:       st.Now,
	})
}

func TestMigrateCompletesPendingDocuments(t *testing.T) {
	st := testutil.NewMemStore()
	docs := seed(st, "u1", common.StatusPending, "alpha", "beta", "gamma")
	seed(st, "u1", common.StatusCompleted, "done")
	ex := &testutil.FakeExtractor{}

	sum, err := newEngine(st, ex, 1).Migrate(context.Background(), "u1")
	require.NoError(t, err)

	assert.Equal(t, 3, sum.Total)
	assert.Equal(t, 3, sum.Succeeded)
	assert.Equal(t, 0, sum.Failed)
	assert.Equal(t, 100.0, sum.SuccessRate)
	assert.False(t, sum.Interrupted)
	assert.Equal(t, []string{"u1-src-0", "u1-src-1", "u1-src-2"}, ex.Calls)

	for _, d := range docs {
		got := st.Document(d.ID)
		assert.Equal(t, common.StatusCompleted, got.ProcessingStatus)
		assert.NotEmpty(t, got.KnowledgeGraphID)
		assert.Empty(t, got.ProcessingError)
		assert.Equal(t, 1, got.Version)
		assert.NotNil(t, got.Metadata.ImportantTerms)
		assert.NotNil(t, got.Metadata.Relationships)
		assert.Len(t, got.Metadata.Entities, 1)
	}
}

func TestMigrateIsolatesFailures(t *testing.T) {
	st := testutil.NewMemStore()
	docs := seed(st, "u1", common.StatusPending, "ok-1", "broken", "ok-2")
	ex := &testutil.FakeExtractor{Fail: map[string]error{"broken": errors.New("extraction timed out")}}

	sum, err := newEngine(st, ex, 1).Migrate(context.Background(), "u1")
	require.NoError(t, err)

	assert.Equal(t, 3, sum.Total)
	assert.Equal(t, 2, sum.Succeeded)
	assert.Equal(t, 1, sum.Failed)
	assert.InDelta(t, 66.67, sum.SuccessRate, 0.01)
	require.Len(t, sum.Failures, 1)
	assert.Equal(t, docs[1].ID, sum.Failures[0].DocumentID)

	failed := st.Document(docs[1].ID)
	assert.Equal(t, common.StatusFailed, failed.ProcessingStatus)
	assert.Equal(t, "extraction timed out", failed.ProcessingError)
	assert.Empty(t, failed.KnowledgeGraphID)
	assert.Equal(t, common.StatusCompleted, st.Document(docs[2].ID).ProcessingStatus)
}

func TestMigrateIsIdempotent(t *testing.T) {
	st := testutil.NewMemStore()
	seed(st, "u1", common.StatusPending, "a", "b")
	ex := &testutil.FakeExtractor{}
	engine := newEngine(st, ex, 1)

	_, err := engine.Migrate(context.Background(), "u1")
	require.NoError(t, err)
	second, err := engine.Migrate(context.Background(), "u1")
	require.NoError(t, err)

	assert.Equal(t, 0, second.Total)
	assert.Equal(t, 0.0, second.SuccessRate)
	assert.Equal(t, 2, ex.CallCount())
}

func TestMigrateAllUsers(t *testing.T) {
	st := testutil.NewMemStore()
	seed(st, "u1", common.StatusPending, "a")
	seed(st, "u2", common.StatusPending, "b")
	ex := &testutil.FakeExtractor{}

	sum, err := newEngine(st, ex, 1).Migrate(context.Background(), "")
	require.NoError(t, err)
	assert.Equal(t, 2, sum.Succeeded)
}

func TestMigrateResetsStaleProcessing(t *testing.T) {
	st := testutil.NewMemStore()
	stuck := seed(st, "u1", common.StatusProcessing, "stuck")
	ex := &testutil.FakeExtractor{}

	sum, err := newEngine(st, ex, 1).Migrate(context.Background(), "u1")
	require.NoError(t, err)

	assert.Equal(t, 1, sum.ResetStale)
	assert.Equal(t, 1, sum.Succeeded)
	assert.Equal(t, common.StatusCompleted, st.Document(stuck[0].ID).ProcessingStatus)
}

func TestMigrateHonoursStalenessWindow(t *testing.T) {
	st := testutil.NewMemStore()
	seed(st, "u1", common.StatusProcessing, "fresh")
	ex := &testutil.FakeExtractor{}

	engine := NewEngine(NewEngineParams{Documents: st, Extractor: ex, StaleAfter: time.Hour, Now: st.Now})
	sum, err := engine.Migrate(context.Background(), "u1")
	require.NoError(t, err)

	assert.Equal(t, 0, sum.ResetStale)
	assert.Equal(t, 0, sum.Total)
}

func TestMigrateConflictCountsAsFailure(t *testing.T) {
	st := testutil.NewMemStore()
	docs := seed(st, "u1", common.StatusPending, "contended", "calm")
	ex := &testutil.FakeExtractor{
		OnExtract: func(_ context.Context, raw string) {
			if raw == "contended" {
				st.TouchDocument(docs[0].ID)
			}
		},
	}

	sum, err := newEngine(st, ex, 1).Migrate(context.Background(), "u1")
	require.NoError(t, err)

	assert.Equal(t, 1, sum.Succeeded)
	assert.Equal(t, 1, sum.Failed)
	assert.Contains(t, sum.Failures[0].Error, store.ErrConflict.Error())
}

func TestMigrateInfrastructureErrors(t *testing.T) {
	t.Run("query fails", func(t *testing.T) {
		st := testutil.NewMemStore()
		st.QueryErr = errors.New("connection refused")
		_, err := newEngine(st, &testutil.FakeExtractor{}, 1).Migrate(context.Background(), "u1")
		require.Error(t, err)
		assert.ErrorIs(t, err, st.QueryErr)
	})

	t.Run("status write fails", func(t *testing.T) {
		st := testutil.NewMemStore()
		seed(st, "u1", common.StatusPending, "a", "b")
		down := errors.New("database unavailable")
		st.SaveHook = func(common.Document) error { return down }
		ex := &testutil.FakeExtractor{}

		sum, err := newEngine(st, ex, 1).Migrate(context.Background(), "u1")
		require.ErrorIs(t, err, down)
		assert.Equal(t, 2, sum.Total)
		assert.Equal(t, 2, sum.Skipped)
		assert.Equal(t, 0, ex.CallCount())
	})
}

func TestMigrateCancellationFinishesInFlightDocument(t *testing.T) {
	st := testutil.NewMemStore()
	docs := seed(st, "u1", common.StatusPending, "first", "second", "third")
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	ex := &testutil.FakeExtractor{
		OnExtract: func(context.Context, string) { cancel() },
	}

	sum, err := newEngine(st, ex, 1).Migrate(ctx, "u1")
	require.NoError(t, err)

	assert.True(t, sum.Interrupted)
	assert.Equal(t, 1, sum.Succeeded)
	assert.Equal(t, 2, sum.Skipped)
	assert.Equal(t, 100.0, sum.SuccessRate)
	assert.Equal(t, common.StatusCompleted, st.Document(docs[0].ID).ProcessingStatus)
	assert.Equal(t, common.StatusPending, st.Document(docs[1].ID).ProcessingStatus)
}

func TestMigrateParallelAccountsForEveryDocument(t *testing.T) {
	st := testutil.NewMemStore()
	payloads := make([]string, 12)
	for i := range payloads {
		payloads[i] = fmt.Sprintf("doc-%d", i)
	}
	seed(st, "u1", common.StatusPending, payloads...)
	ex := &testutil.FakeExtractor{Fail: map[string]error{
		"doc-3": errors.New("bad input"),
		"doc-8": errors.New("bad input"),
	}}

	sum, err := newEngine(st, ex, 4).Migrate(context.Background(), "u1")
	require.NoError(t, err)

	assert.Equal(t, 12, sum.Total)
	assert.Equal(t, 10, sum.Succeeded)
	assert.Equal(t, 2, sum.Failed)
	assert.Equal(t, sum.Total, sum.Succeeded+sum.Failed+sum.Skipped)
	assert.Equal(t, 12, ex.CallCount())
}

func TestRebuildVersioning(t *testing.T) {
	st := testutil.NewMemStore()
	docs := seed(st, "u1", common.StatusCompleted, "good", "bad")
	seed(st, "u2", common.StatusCompleted, "other user")
	ex := &testutil.FakeExtractor{Fail: map[string]error{"bad": errors.New("model refused")}}

	sum, err := newEngine(st, ex, 1).Rebuild(context.Background(), "u1")
	require.NoError(t, err)

	assert.Equal(t, OperationRebuild, sum.Operation)
	assert.Equal(t, 2, sum.Total)
	assert.Equal(t, 1, sum.Succeeded)
	assert.Equal(t, 1, sum.Failed)

	good := st.Document(docs[0].ID)
	assert.Equal(t, 2, good.Version)
	assert.Equal(t, common.StatusCompleted, good.ProcessingStatus)

	bad := st.Document(docs[1].ID)
	assert.Equal(t, 1, bad.Version)
	assert.Equal(t, common.StatusFailed, bad.ProcessingStatus)
	assert.Equal(t, "model refused", bad.ProcessingError)
}

func TestRebuildRequiresUser(t *testing.T) {
	st := testutil.NewMemStore()
	_, err := newEngine(st, &testutil.FakeExtractor{}, 1).Rebuild(context.Background(), "")
	assert.ErrorIs(t, err, ErrMissingUser)
}

func TestMetadataFromDefaultsCollections(t *testing.T) {
	meta := metadataFrom(&common.KnowledgeGraphResult{
		GraphID:       "g1",
		Relationships: []common.Relationship{{Strength: 1}},
	})
	assert.Equal(t, 0, meta.WordCount)
	assert.NotNil(t, meta.Entities)
	assert.NotNil(t, meta.ImportantTerms)
	assert.Empty(t, meta.Relationships)
}
