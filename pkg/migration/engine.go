package migration

import (
	"context"
	"errors"
	"fmt"

	"github.com/OFFIS-RIT/kgops/pkg/common"
	"github.com/OFFIS-RIT/kgops/pkg/logger"
	"github.com/OFFIS-RIT/kgops/pkg/store"

	"golang.org/x/sync/errgroup"
)

type outcome int

const (
	outcomeSkipped outcome = iota
	outcomeSucceeded
	outcomeFailed
)

type itemResult struct {
	outcome outcome
	failure Failure
}

// Migrate builds graphs for pending documents. An empty userID covers all
// users. Documents left in processing by an earlier run are reset to
// pending first, subject to the staleness window.
func (e *Engine) Migrate(ctx context.Context, userID string) (Summary, error) {
	started := e.now()
	reset, err := e.docs.ResetStaleProcessing(ctx, userID, started.Add(-e.staleAfter))
	if err != nil {
		return Summary{Operation: OperationMigrate, UserID: userID}, fmt.Errorf("failed to reset stale documents: %w", err)
	}
	if reset > 0 {
		logger.Warn("[Migration] Re-queued documents left in processing", "count", reset, "user_id", userID)
	}

	docs, err := e.docs.QueryDocuments(ctx, store.DocumentQuery{Status: common.StatusPending, UserID: userID})
	if err != nil {
		return Summary{Operation: OperationMigrate, UserID: userID, ResetStale: reset}, fmt.Errorf("failed to query pending documents: %w", err)
	}

	sum, err := e.run(ctx, OperationMigrate, docs)
	sum.UserID = userID
	sum.ResetStale = reset
	sum.finish(started, e.now())
	return sum, err
}

// Rebuild re-extracts every completed document of userID and bumps the
// version of each document that succeeds.
func (e *Engine) Rebuild(ctx context.Context, userID string) (Summary, error) {
	if userID == "" {
		return Summary{Operation: OperationRebuild}, ErrMissingUser
	}
	started := e.now()

	docs, err := e.docs.QueryDocuments(ctx, store.DocumentQuery{Status: common.StatusCompleted, UserID: userID})
	if err != nil {
		return Summary{Operation: OperationRebuild, UserID: userID}, fmt.Errorf("failed to query completed documents: %w", err)
	}

	sum, err := e.run(ctx, OperationRebuild, docs)
	sum.UserID = userID
	sum.finish(started, e.now())
	return sum, err
}

func (e *Engine) run(ctx context.Context, op Operation, docs []common.Document) (Summary, error) {
	logger.Info("[Migration] Starting", "operation", op, "documents", len(docs), "parallel", e.parallel)

	results := make([]itemResult, len(docs))
	var runErr error

	if e.parallel == 1 {
		for i := range docs {
			res, err := e.processDocument(ctx, op, docs[i])
			if err != nil {
				runErr = err
				break
			}
			results[i] = res
		}
	} else {
		g, gctx := errgroup.WithContext(ctx)
		g.SetLimit(e.parallel)
		for i := range docs {
			g.Go(func() error {
				res, err := e.processDocument(gctx, op, docs[i])
				if err != nil {
					return err
				}
				results[i] = res
				return nil
			})
		}
		runErr = g.Wait()
	}

	sum := Summary{Operation: op, Total: len(docs)}
	for _, r := range results {
		switch r.outcome {
		case outcomeSucceeded:
			sum.Succeeded++
		case outcomeFailed:
			sum.Failed++
			sum.Failures = append(sum.Failures, r.failure)
		default:
			sum.Skipped++
		}
	}
	sum.Interrupted = sum.Skipped > 0 && ctx.Err() != nil

	if runErr != nil {
		logger.Error("[Migration] Aborted", "operation", op, "err", runErr)
		return sum, runErr
	}
	logger.Info("[Migration] Finished", "operation", op, "succeeded", sum.Succeeded, "failed", sum.Failed, "skipped", sum.Skipped)
	return sum, nil
}

// processDocument owns doc for the duration of the call. Once started, the
// document is finished on a context detached from ctx so cancellation never
// leaves it half written. The returned error is reserved for store failures
// that are not specific to this document.
func (e *Engine) processDocument(ctx context.Context, op Operation, doc common.Document) (itemResult, error) {
	if ctx.Err() != nil {
		return itemResult{outcome: outcomeSkipped}, nil
	}
	workCtx := context.WithoutCancel(ctx)

	fail := func(reason string) itemResult {
		logger.Warn("[Migration] Document failed", "document_id", doc.ID, "source_id", doc.SourceID, "err", reason)
		return itemResult{
			outcome: outcomeFailed,
			failure: Failure{DocumentID: doc.ID, SourceID: doc.SourceID, Error: reason},
		}
	}

	doc.ProcessingStatus = common.StatusProcessing
	doc.ProcessingError = ""
	if err := e.docs.SaveDocument(workCtx, &doc); err != nil {
		if isDocumentError(err) {
			return fail(err.Error()), nil
		}
		return itemResult{}, fmt.Errorf("failed to mark document %s processing: %w", doc.ID, err)
	}

	res, err := e.extract(workCtx, doc)
	if err != nil {
		doc.ProcessingStatus = common.StatusFailed
		doc.ProcessingError = err.Error()
		if serr := e.docs.SaveDocument(workCtx, &doc); serr != nil && !isDocumentError(serr) {
			return itemResult{}, fmt.Errorf("failed to mark document %s failed: %w", doc.ID, serr)
		}
		return fail(err.Error()), nil
	}

	doc.KnowledgeGraphID = res.GraphID
	doc.Metadata = metadataFrom(res)
	doc.ProcessingError = ""
	doc.ProcessingStatus = common.StatusCompleted
	if op == OperationRebuild {
		doc.Version++
	}
	if err := e.docs.SaveDocument(workCtx, &doc); err != nil {
		if isDocumentError(err) {
			return fail(err.Error()), nil
		}
		return itemResult{}, fmt.Errorf("failed to mark document %s completed: %w", doc.ID, err)
	}

	logger.Debug("[Migration] Document completed", "document_id", doc.ID, "graph_id", doc.KnowledgeGraphID, "version", doc.Version)
	return itemResult{outcome: outcomeSucceeded}, nil
}

func (e *Engine) extract(ctx context.Context, doc common.Document) (*common.KnowledgeGraphResult, error) {
	if e.itemTimeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, e.itemTimeout)
		defer cancel()
	}
	res, err := e.extractor.CreateKnowledgeGraph(ctx, doc.RawPayload, doc.SourceID, doc.UserID)
	if err != nil {
		return nil, err
	}
	if res == nil || res.GraphID == "" {
		return nil, errors.New("extraction returned no knowledge graph")
	}
	return res, nil
}

// isDocumentError reports store errors that concern only the document
// being written.
func isDocumentError(err error) bool {
	return errors.Is(err, store.ErrConflict) || errors.Is(err, store.ErrNotFound)
}

func metadataFrom(res *common.KnowledgeGraphResult) common.DocumentMetadata {
	meta := common.DocumentMetadata{
		Entities:       make([]common.MetadataEntity, 0, len(res.Entities)),
		ImportantTerms: make([]string, 0, len(res.ImportantTerms)),
		Relationships:  make([]common.MetadataRelationship, 0, len(res.Relationships)),
	}
	if res.Metadata != nil {
		meta.WordCount = res.Metadata.WordCount
		meta.SentenceCount = res.Metadata.SentenceCount
	}
	for _, ent := range res.Entities {
		meta.Entities = append(meta.Entities, common.MetadataEntity{Name: ent.Name, Type: ent.Type})
	}
	meta.ImportantTerms = append(meta.ImportantTerms, res.ImportantTerms...)
	for _, r := range res.Relationships {
		if r.Source == nil || r.Target == nil {
			continue
		}
		meta.Relationships = append(meta.Relationships, common.MetadataRelationship{
			Source:   r.Source.Name,
			Target:   r.Target.Name,
			Strength: r.Strength,
		})
	}
	return meta
}
