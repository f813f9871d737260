//go:build integration

package postgres

import (
	"context"
	"encoding/json"
	"os"
	"path/filepath"
	"runtime"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/stretchr/testify/require"
	postgrescontainer "github.com/testcontainers/testcontainers-go/modules/postgres"

	"example.com/godlife/internal/domain"
)

func TestStoreEnforcesUniquenessAndOutboxFlow(t *testing.T) {
	ctx := context.Background()

	pg, err := postgrescontainer.RunContainer(ctx,
		postgrescontainer.WithDatabase("godlife"),
		postgrescontainer.WithUsername("godlife"),
		postgrescontainer.WithPassword("godlife"),
	)
	require.NoError(t, err)
	t.Cleanup(func() { _ = pg.Terminate(ctx) })

	connStr, err := pg.ConnectionString(ctx, "sslmode=disable")
	require.NoError(t, err)

	require.NoError(t, waitForDatabase(ctx, connStr))
	runMigrations(t, ctx, connStr)

	pool, err := pgxpool.New(ctx, connStr)
	require.NoError(t, err)
	t.Cleanup(func() { pool.Close() })

	store := NewStore(pool)
	userID := seedUser(t, ctx, store)
	targetDate := time.Date(2025, time.March, 10, 0, 0, 0, 0, time.UTC)

	// The ACTIVE-plan partial unique index arbitrates concurrent generation.
	require.NoError(t, store.WithinTx(ctx, func(ctx context.Context, r domain.Repositories) error {
		return r.Plans.Create(ctx, newPlan(userID, targetDate))
	}))
	err = store.WithinTx(ctx, func(ctx context.Context, r domain.Repositories) error {
		return r.Plans.Create(ctx, newPlan(userID, targetDate))
	})
	require.ErrorIs(t, err, domain.ErrPlanConflict)

	// Idempotency-key collisions surface as ErrIdempotencyConflict.
	notif := &domain.Notification{
		ID:             uuid.New(),
		UserID:         userID,
		Kind:           domain.KindReadingReminder,
		Status:         domain.NotificationStatusScheduled,
		ScheduleAt:     time.Now().UTC(),
		IdempotencyKey: "reading:reminder:it:2025-03-10",
		CreatedAt:      time.Now().UTC(),
		UpdatedAt:      time.Now().UTC(),
	}
	require.NoError(t, store.WithinTx(ctx, func(ctx context.Context, r domain.Repositories) error {
		return r.Notifications.Create(ctx, notif)
	}))
	err = store.WithinTx(ctx, func(ctx context.Context, r domain.Repositories) error {
		duplicate := *notif
		duplicate.ID = uuid.New()
		return r.Notifications.Create(ctx, &duplicate)
	})
	require.ErrorIs(t, err, domain.ErrIdempotencyConflict)

	// Outbox: append in-tx, lease from the pool, fail with a merged reason.
	event, err := domain.NewOutboxEvent(domain.AggregateNotification, notif.ID,
		domain.EventNotificationScheduled, map[string]string{"kind": notif.Kind})
	require.NoError(t, err)
	require.NoError(t, store.WithinTx(ctx, func(ctx context.Context, r domain.Repositories) error {
		return r.Outbox.Append(ctx, event)
	}))

	outbox := store.Outbox()
	leased, err := outbox.LeasePending(ctx, 10)
	require.NoError(t, err)
	require.Len(t, leased, 1)
	require.Equal(t, domain.OutboxStatusInFlight, leased[0].Status)

	// A second lease sees nothing PENDING.
	again, err := outbox.LeasePending(ctx, 10)
	require.NoError(t, err)
	require.Empty(t, again)

	require.NoError(t, outbox.MarkFailed(ctx, event.ID, "broker unavailable"))
	var (
		status  string
		retries int
		payload []byte
	)
	require.NoError(t, pool.QueryRow(ctx,
		`SELECT status, retry_count, payload FROM outbox_events WHERE id=$1`, event.ID).
		Scan(&status, &retries, &payload))
	require.Equal(t, "FAILED", status)
	require.Equal(t, 1, retries)

	var merged map[string]any
	require.NoError(t, json.Unmarshal(payload, &merged))
	require.Equal(t, "broker unavailable", merged["failure_reason"])
	require.Equal(t, notif.Kind, merged["kind"])
}

func TestWithinTxRollsBackOnError(t *testing.T) {
	ctx := context.Background()

	pg, err := postgrescontainer.RunContainer(ctx,
		postgrescontainer.WithDatabase("godlife"),
		postgrescontainer.WithUsername("godlife"),
		postgrescontainer.WithPassword("godlife"),
	)
	require.NoError(t, err)
	t.Cleanup(func() { _ = pg.Terminate(ctx) })

	connStr, err := pg.ConnectionString(ctx, "sslmode=disable")
	require.NoError(t, err)

	require.NoError(t, waitForDatabase(ctx, connStr))
	runMigrations(t, ctx, connStr)

	pool, err := pgxpool.New(ctx, connStr)
	require.NoError(t, err)
	t.Cleanup(func() { pool.Close() })

	store := NewStore(pool)
	userID := seedUser(t, ctx, store)

	planID := uuid.New()
	err = store.WithinTx(ctx, func(ctx context.Context, r domain.Repositories) error {
		plan := newPlan(userID, time.Date(2025, time.March, 11, 0, 0, 0, 0, time.UTC))
		plan.ID = planID
		if err := r.Plans.Create(ctx, plan); err != nil {
			return err
		}
		return domain.ErrValidation
	})
	require.ErrorIs(t, err, domain.ErrValidation)

	require.NoError(t, store.WithinTx(ctx, func(ctx context.Context, r domain.Repositories) error {
		stored, err := r.Plans.GetByID(ctx, planID)
		require.NoError(t, err)
		require.Nil(t, stored, "rolled-back plan must not persist")
		return nil
	}))
}

func newPlan(userID uuid.UUID, targetDate time.Time) *domain.ExercisePlan {
	now := time.Now().UTC()
	return &domain.ExercisePlan{
		ID:         uuid.New(),
		UserID:     userID,
		TargetDate: targetDate,
		Source:     "rule",
		Status:     domain.PlanStatusActive,
		CreatedAt:  now,
		UpdatedAt:  now,
	}
}

func seedUser(t *testing.T, ctx context.Context, store *Store) uuid.UUID {
	t.Helper()
	id := uuid.New()
	require.NoError(t, store.WithinTx(ctx, func(ctx context.Context, r domain.Repositories) error {
		now := time.Now().UTC()
		return r.Users.Save(ctx, &domain.User{
			ID:         id,
			ExternalID: "ext-" + id.String(),
			Name:       "Integration Tester",
			Timezone:   "Asia/Seoul",
			Status:     domain.UserStatusActive,
			CreatedAt:  now,
			UpdatedAt:  now,
		})
	}))
	return id
}

func runMigrations(t *testing.T, ctx context.Context, connStr string) {
	files := []string{
		"../../../db/postgres/migrations/0001_init.up.sql",
	}

	pool, err := pgxpool.New(ctx, connStr)
	require.NoError(t, err)
	defer pool.Close()

	for _, rel := range files {
		path := resolvePath(t, rel)
		contents, readErr := os.ReadFile(path)
		require.NoError(t, readErr)

		_, execErr := pool.Exec(ctx, string(contents))
		require.NoError(t, execErr)
	}
}

func resolvePath(t *testing.T, rel string) string {
	t.Helper()
	_, file, _, ok := runtime.Caller(0)
	require.True(t, ok)
	return filepath.Join(filepath.Dir(file), rel)
}

func waitForDatabase(ctx context.Context, connStr string) error {
	deadline := time.Now().Add(30 * time.Second)
	for {
		pool, err := pgxpool.New(ctx, connStr)
		if err == nil {
			err = pool.Ping(ctx)
			pool.Close()
			if err == nil {
				return nil
			}
		}
		if time.Now().After(deadline) {
			return err
		}
		time.Sleep(time.Second)
	}
}
