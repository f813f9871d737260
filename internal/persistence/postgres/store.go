// Package postgres provides pgx-backed persistence for the godlife core.
// One transaction wraps each inbound operation; entity writes and outbox
// appends commit or roll back together.
package postgres

import (
	"context"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"example.com/godlife/internal/domain"
)

// Store implements domain.Store on a pgx connection pool.
type Store struct {
	pool *pgxpool.Pool
}

// NewStore constructs a Store.
func NewStore(pool *pgxpool.Pool) *Store {
	return &Store{pool: pool}
}

// WithinTx opens a transaction, binds the repositories to it, and commits
// only if fn succeeds.
func (s *Store) WithinTx(ctx context.Context, fn func(ctx context.Context, r domain.Repositories) error) error {
	tx, err := s.pool.BeginTx(ctx, pgx.TxOptions{})
	if err != nil {
		return err
	}
	defer tx.Rollback(ctx)

	repos := domain.Repositories{
		Users:         &userRepo{tx: tx},
		Plans:         &planRepo{tx: tx},
		Sessions:      &sessionRepo{tx: tx},
		SetStates:     &setStateRepo{tx: tx},
		ReadingPlans:  &readingPlanRepo{tx: tx},
		ReadingLogs:   &readingLogRepo{tx: tx},
		Notifications: &notificationRepo{tx: tx},
		Webhooks:      &webhookRepo{tx: tx},
		Outbox:        &outboxRepo{tx: tx},
		Summaries:     &summaryRepo{tx: tx},
	}
	if err := fn(ctx, repos); err != nil {
		return err
	}
	return tx.Commit(ctx)
}

// Outbox returns a pool-scoped outbox repository for the dispatcher, which
// manages its own lease transactions.
func (s *Store) Outbox() *PoolOutboxRepo {
	return &PoolOutboxRepo{pool: s.pool}
}
