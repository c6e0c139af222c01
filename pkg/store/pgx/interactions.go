package pgx

import (
	"context"
	"fmt"
	"time"

	"github.com/OFFIS-RIT/kgops/pkg/common"
)

func (s *Storage) ListInteractions(ctx context.Context, userID string, from, to time.Time) ([]common.Interaction, error) {
	rows, err := s.conn.Query(ctx, listInteractionsSQL, userID, from, to)
	if err != nil {
		return nil, fmt.Errorf("failed to query interactions: %w", err)
	}
	defer rows.Close()

	var out []common.Interaction
	for rows.Next() {
		var (
			in      common.Interaction
			outcome string
		)
		if err := rows.Scan(
			&in.ID,
			&in.UserID,
			&in.CustomerID,
			&in.Prompt,
			&in.Context,
			&in.Response,
			&outcome,
			&in.Rating,
			&in.CorrectedResponse,
			&in.CreatedAt,
		); err != nil {
			return nil, fmt.Errorf("failed to scan interaction: %w", err)
		}
		in.Outcome = common.InteractionOutcome(outcome)
		out = append(out, in)
	}
	return out, rows.Err()
}

func (s *Storage) CountInteractions(ctx context.Context, userID string, since time.Time) (int, error) {
	var n int
	err := s.conn.QueryRow(
		ctx,
		`SELECT count(*) FROM interactions WHERE user_id = $1 AND created_at >= $2`,
		userID, since,
	).Scan(&n)
	if err != nil {
		return 0, fmt.Errorf("failed to count interactions: %w", err)
	}
	return n, nil
}

const listInteractionsSQL = `
SELECT id, user_id, COALESCE(customer_id, ''), prompt, context, response,
       outcome, rating, corrected_response, created_at
FROM interactions
WHERE user_id = $1 AND created_at >= $2 AND created_at <= $3
ORDER BY created_at, id;
`
