package queue

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/OFFIS-RIT/kgops/pkg/finetune"
	"github.com/OFFIS-RIT/kgops/pkg/leaselock"
	"github.com/OFFIS-RIT/kgops/pkg/logger"
	"github.com/OFFIS-RIT/kgops/pkg/migration"
)

type Migrator interface {
	Migrate(ctx context.Context, userID string) (migration.Summary, error)
	Rebuild(ctx context.Context, userID string) (migration.Summary, error)
}

type PipelineRunner interface {
	RunPipeline(ctx context.Context, userID string, cfg finetune.PipelineConfig) (finetune.PipelineResult, error)
}

type UserLister interface {
	ListUserIDs(ctx context.Context) ([]string, error)
}

// Locker is satisfied by *leaselock.Client.
type Locker interface {
	WithLease(ctx context.Context, key string, opts leaselock.Options, fn func(ctx context.Context) error) error
}

// Handler executes work messages. Migrate and rebuild runs hold the user's
// document lease so they never overlap for the same documents.
type Handler struct {
	migrator Migrator
	pipeline PipelineRunner
	users    UserLister
	locks    Locker
	cfg      func() finetune.PipelineConfig
	lease    leaselock.Options
}

type NewHandlerParams struct {
	Migrator       Migrator
	Pipeline       PipelineRunner
	Users          UserLister
	Locks          Locker
	PipelineConfig func() finetune.PipelineConfig
}

func NewHandler(params NewHandlerParams) *Handler {
	cfg := params.PipelineConfig
	if cfg == nil {
		cfg = finetune.DefaultPipelineConfig
	}
	return &Handler{
		migrator: params.Migrator,
		pipeline: params.Pipeline,
		users:    params.Users,
		locks:    params.Locks,
		cfg:      cfg,
		lease:    leaselock.Options{TTL: 5 * time.Minute, Wait: false},
	}
}

func decode(body []byte) (JobMsg, error) {
	var msg JobMsg
	if err := json.Unmarshal(body, &msg); err != nil {
		return msg, fmt.Errorf("%w: %w", ErrInvalidMessage, err)
	}
	return msg, nil
}

// Handle processes one message body from queueName.
func (h *Handler) Handle(ctx context.Context, queueName string, body []byte) error {
	msg, err := decode(body)
	if err != nil {
		return err
	}

	switch queueName {
	case MigrateQueue:
		if msg.UserID != "" {
			return h.withDocumentLease(ctx, msg, migration.OperationMigrate, msg.UserID)
		}
		users, err := h.users.ListUserIDs(ctx)
		if err != nil {
			return fmt.Errorf("failed to list users: %w", err)
		}
		for _, u := range users {
			if err := ctx.Err(); err != nil {
				return fmt.Errorf("%w: stopped before user %s: %w", ErrInterrupted, u, err)
			}
			if err := h.withDocumentLease(ctx, msg, migration.OperationMigrate, u); err != nil {
				return err
			}
		}
		return nil
	case RebuildQueue:
		if msg.UserID == "" {
			return fmt.Errorf("%w: rebuild needs a user id", ErrInvalidMessage)
		}
		return h.withDocumentLease(ctx, msg, migration.OperationRebuild, msg.UserID)
	case TrainingQueue:
		if msg.UserID == "" {
			return fmt.Errorf("%w: training needs a user id", ErrInvalidMessage)
		}
		res, err := h.pipeline.RunPipeline(ctx, msg.UserID, h.cfg())
		if err != nil {
			return err
		}
		logger.Info("[Queue] Pipeline finished", "user_id", msg.UserID, "correlation_id", msg.CorrelationID, "outcome", res.Outcome)
		return nil
	}
	return fmt.Errorf("%w: unknown queue %s", ErrInvalidMessage, queueName)
}

func (h *Handler) withDocumentLease(ctx context.Context, msg JobMsg, op migration.Operation, userID string) error {
	key := leaselock.UserKey("documents", userID)
	return h.locks.WithLease(ctx, key, h.lease, func(ctx context.Context) error {
		var (
			sum migration.Summary
			err error
		)
		if op == migration.OperationRebuild {
			sum, err = h.migrator.Rebuild(ctx, userID)
		} else {
			sum, err = h.migrator.Migrate(ctx, userID)
		}
		if err != nil {
			return err
		}
		logger.Info(
			"[Queue] Documents processed",
			"operation", op,
			"user_id", userID,
			"correlation_id", msg.CorrelationID,
			"succeeded", sum.Succeeded,
			"failed", sum.Failed,
			"skipped", sum.Skipped,
		)
		if sum.Interrupted {
			return fmt.Errorf("%w: %s for user %s skipped %d documents", ErrInterrupted, op, userID, sum.Skipped)
		}
		return nil
	})
}
