package pgx

import (
	"context"

	"github.com/OFFIS-RIT/kgops/pkg/store"

	pgxv5 "github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
)

type pgxIConn interface {
	Exec(ctx context.Context, sql string, arguments ...any) (pgconn.CommandTag, error)
	Query(ctx context.Context, sql string, optionsAndArgs ...any) (pgxv5.Rows, error)
	QueryRow(ctx context.Context, sql string, optionsAndArgs ...any) pgxv5.Row
	Begin(ctx context.Context) (pgxv5.Tx, error)
}

// Storage implements every store interface on top of a single Postgres
// connection or pool.
type Storage struct {
	conn      pgxIConn
	batchSize int
}

var (
	_ store.DocumentStore     = (*Storage)(nil)
	_ store.GraphStore        = (*Storage)(nil)
	_ store.InteractionStore  = (*Storage)(nil)
	_ store.RelationshipStore = (*Storage)(nil)
	_ store.JobStore          = (*Storage)(nil)
)

type StorageOption func(*Storage)

// WithBatchSize limits how many rows are sent per pgx batch when a graph is
// written. Defaults to 500.
func WithBatchSize(n int) StorageOption {
	return func(s *Storage) {
		if n > 0 {
			s.batchSize = n
		}
	}
}

// NewStorage wraps an existing connection, typically a *pgxpool.Pool.
func NewStorage(conn pgxIConn, opts ...StorageOption) *Storage {
	s := &Storage{conn: conn, batchSize: 500}
	for _, opt := range opts {
		if opt == nil {
			continue
		}
		opt(s)
	}
	return s
}

func rollback(ctx context.Context, tx pgxv5.Tx) {
	_ = tx.Rollback(context.WithoutCancel(ctx))
}
