package postgres

import (
	"context"
	"errors"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"

	"example.com/godlife/internal/domain"
)

type userRepo struct {
	tx pgx.Tx
}

const userColumns = `id, external_id, name, timezone, status, created_at, updated_at`

func scanUser(row pgx.Row) (*domain.User, error) {
	var u domain.User
	err := row.Scan(&u.ID, &u.ExternalID, &u.Name, &u.Timezone, &u.Status, &u.CreatedAt, &u.UpdatedAt)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	return &u, nil
}

func (r *userRepo) GetByID(ctx context.Context, id uuid.UUID) (*domain.User, error) {
	row := r.tx.QueryRow(ctx, `SELECT `+userColumns+` FROM users WHERE id=$1`, id)
	return scanUser(row)
}

func (r *userRepo) GetByExternalID(ctx context.Context, externalID string) (*domain.User, error) {
	row := r.tx.QueryRow(ctx, `SELECT `+userColumns+` FROM users WHERE external_id=$1`, externalID)
	return scanUser(row)
}

func (r *userRepo) Save(ctx context.Context, user *domain.User) error {
	_, err := r.tx.Exec(ctx, `INSERT INTO users (id, external_id, name, timezone, status, created_at, updated_at)
        VALUES ($1,$2,$3,$4,$5,$6,$7)
        ON CONFLICT (id) DO UPDATE SET
            external_id=EXCLUDED.external_id,
            name=EXCLUDED.name,
            timezone=EXCLUDED.timezone,
            status=EXCLUDED.status,
            updated_at=EXCLUDED.updated_at`,
		user.ID, user.ExternalID, user.Name, user.Timezone, user.Status, user.CreatedAt, user.UpdatedAt)
	return err
}
