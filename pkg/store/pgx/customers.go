package pgx

import (
	"context"
	"fmt"

	"github.com/OFFIS-RIT/kgops/pkg/common"

	pgxv5 "github.com/jackc/pgx/v5"
)

// ListCustomers returns the user's customers in insertion order, which is
// the node order analytics uses for tie-breaking.
func (s *Storage) ListCustomers(ctx context.Context, userID string) ([]common.Customer, error) {
	rows, err := s.conn.Query(ctx, `
SELECT id, user_id, name, company, attributes
FROM customers
WHERE user_id = $1
ORDER BY created_at, id`, userID)
	if err != nil {
		return nil, fmt.Errorf("failed to query customers: %w", err)
	}
	return pgxv5.CollectRows(rows, func(row pgxv5.CollectableRow) (common.Customer, error) {
		var c common.Customer
		err := row.Scan(&c.ID, &c.UserID, &c.Name, &c.Company, &c.Attributes)
		return c, err
	})
}

func (s *Storage) ListCustomerRelationships(ctx context.Context, userID string) ([]common.CustomerRelationship, error) {
	rows, err := s.conn.Query(ctx, `
SELECT id, source_customer_id, target_customer_id, relationship_type, strength
FROM customer_relationships
WHERE user_id = $1
ORDER BY created_at, id`, userID)
	if err != nil {
		return nil, fmt.Errorf("failed to query customer relationships: %w", err)
	}
	return pgxv5.CollectRows(rows, func(row pgxv5.CollectableRow) (common.CustomerRelationship, error) {
		var r common.CustomerRelationship
		err := row.Scan(&r.ID, &r.SourceID, &r.TargetID, &r.Type, &r.Strength)
		return r, err
	})
}
