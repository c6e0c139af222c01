package pgx

import (
	"context"
	"fmt"
	"time"

	"github.com/OFFIS-RIT/kgops/pkg/common"

	pgxv5 "github.com/jackc/pgx/v5"
)

// SaveJob upserts a job record keyed by the provider job ID.
func (s *Storage) SaveJob(ctx context.Context, job common.FineTuneJob) error {
	createdAt := job.CreatedAt
	if createdAt.IsZero() {
		createdAt = time.Now().UTC()
	}
	_, err := s.conn.Exec(
		ctx,
		saveJobSQL,
		job.ID,
		job.UserID,
		job.ModelName,
		job.BaseModel,
		job.Status,
		job.FineTunedModel,
		job.TrainingSize,
		job.ValidationSize,
		job.CorpusKey,
		createdAt,
		job.FinishedAt,
	)
	if err != nil {
		return fmt.Errorf("failed to save job %s: %w", job.ID, err)
	}
	return nil
}

func (s *Storage) ListJobs(ctx context.Context, userID string) ([]common.FineTuneJob, error) {
	rows, err := s.conn.Query(ctx, `
SELECT id, user_id, model_name, base_model, status, fine_tuned_model,
       training_size, validation_size, corpus_key, created_at, finished_at
FROM fine_tune_jobs
WHERE user_id = $1
ORDER BY created_at DESC, id`, userID)
	if err != nil {
		return nil, fmt.Errorf("failed to query jobs: %w", err)
	}
	return pgxv5.CollectRows(rows, func(row pgxv5.CollectableRow) (common.FineTuneJob, error) {
		var j common.FineTuneJob
		err := row.Scan(
			&j.ID,
			&j.UserID,
			&j.ModelName,
			&j.BaseModel,
			&j.Status,
			&j.FineTunedModel,
			&j.TrainingSize,
			&j.ValidationSize,
			&j.CorpusKey,
			&j.CreatedAt,
			&j.FinishedAt,
		)
		return j, err
	})
}

func (s *Storage) DeleteFinishedJobsBefore(ctx context.Context, before time.Time) (int, error) {
	tag, err := s.conn.Exec(
		ctx,
		`DELETE FROM fine_tune_jobs WHERE finished_at IS NOT NULL AND finished_at < $1`,
		before,
	)
	if err != nil {
		return 0, fmt.Errorf("failed to delete finished jobs: %w", err)
	}
	return int(tag.RowsAffected()), nil
}

const saveJobSQL = `
INSERT INTO fine_tune_jobs (id, user_id, model_name, base_model, status, fine_tuned_model,
                            training_size, validation_size, corpus_key, created_at, finished_at)
VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11)
ON CONFLICT (id) DO UPDATE
SET status           = EXCLUDED.status,
    fine_tuned_model = EXCLUDED.fine_tuned_model,
    finished_at      = EXCLUDED.finished_at;
`
