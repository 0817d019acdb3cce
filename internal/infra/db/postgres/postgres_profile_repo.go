package postgres

import (
	"context"
	"errors"

	"github.com/jackc/pgx/v4"
	"github.com/jackc/pgx/v4/pgxpool"

	"habit-ai-billing/internal/domain"
	"habit-ai-billing/internal/domain/model"
	"habit-ai-billing/internal/domain/ports/repository"
)

var _ repository.ProfileRepository = (*profileRepo)(nil)

type profileRepo struct{ pool *pgxpool.Pool }

func NewProfileRepo(pool *pgxpool.Pool) *profileRepo {
	return &profileRepo{pool: pool}
}

func (r *profileRepo) FindByUserID(ctx context.Context, tx repository.Tx, userID string) (*model.Profile, error) {
	const q = `SELECT user_id, subscription_tier, updated_at FROM profiles WHERE user_id=$1;`
	row, err := pickRow(ctx, r.pool, tx, q, userID)
	if err != nil {
		return nil, err
	}
	p := &model.Profile{}
	if err := row.Scan(&p.UserID, &p.SubscriptionTier, &p.UpdatedAt); err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, domain.ErrNotFound
		}
		return nil, domain.ErrReadDatabaseRow
	}
	return p, nil
}

func (r *profileRepo) UpdateTier(ctx context.Context, tx repository.Tx, userID, tier string) error {
	const q = `UPDATE profiles SET subscription_tier=$2, updated_at=NOW() WHERE user_id=$1;`
	tag, err := execSQL(ctx, r.pool, tx, q, userID, tier)
	if err != nil {
		if err == domain.ErrInvalidArgument || err == domain.ErrInvalidExecContext {
			return err
		}
		return domain.ErrOperationFailed
	}
	if tag.RowsAffected() == 0 {
		return domain.ErrNotFound
	}
	return nil
}
