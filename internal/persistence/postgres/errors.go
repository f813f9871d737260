package postgres

import (
	"errors"
	"strings"

	"github.com/jackc/pgx/v5/pgconn"

	"example.com/godlife/internal/domain"
)

const (
	uniqueViolation      = "23505"
	activePlanConstraint = "uq_exercise_plans_user_target_date_active"
	setStateConstraint   = "uq_exercise_set_states_session_set_no"
	notificationKeyIndex = "notifications_idempotency_key_key"
	webhookKeyConstraint = "uq_webhook_events_provider_idempotency"
	webhookEventIDIndex  = "uq_webhook_events_provider_event_id"
)

// translateUnique maps uniqueness violations onto domain errors: the
// ACTIVE-plan partial index becomes PlanConflict, idempotency-key and
// set-slot collisions become ErrIdempotencyConflict so callers can re-read
// the winning row. Other integrity errors propagate untouched.
func translateUnique(err error) error {
	if err == nil {
		return nil
	}
	var pgErr *pgconn.PgError
	if !errors.As(err, &pgErr) || pgErr.Code != uniqueViolation {
		return err
	}
	switch {
	case matchesConstraint(pgErr, activePlanConstraint):
		return domain.ErrPlanConflict
	case matchesConstraint(pgErr, setStateConstraint),
		matchesConstraint(pgErr, notificationKeyIndex),
		matchesConstraint(pgErr, webhookKeyConstraint),
		matchesConstraint(pgErr, webhookEventIDIndex):
		return domain.ErrIdempotencyConflict
	}
	return err
}

func matchesConstraint(pgErr *pgconn.PgError, name string) bool {
	return pgErr.ConstraintName == name || strings.Contains(pgErr.Message, name)
}
