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

var _ repository.SubscriptionRepository = (*subscriptionRepo)(nil)

type subscriptionRepo struct{ pool *pgxpool.Pool }

func NewSubscriptionRepo(pool *pgxpool.Pool) *subscriptionRepo {
	return &subscriptionRepo{pool: pool}
}

func (r *subscriptionRepo) Save(ctx context.Context, tx repository.Tx, s *model.SubscriptionRecord) error {
	const q = `
INSERT INTO subscriptions (id, user_id, type, status, start_date, created_at)
VALUES ($1,$2,$3,$4,$5,$6)
ON CONFLICT (id) DO UPDATE SET user_id=$2, type=$3, status=$4, start_date=$5;`

	_, err := execSQL(ctx, r.pool, tx, q, s.ID, s.UserID, s.Type, s.Status, s.StartDate, s.CreatedAt)
	if err != nil {
		if err == domain.ErrInvalidArgument || err == domain.ErrInvalidExecContext {
			return err
		}
		return domain.ErrOperationFailed
	}
	return nil
}

func (r *subscriptionRepo) FindActiveByUserAndType(ctx context.Context, tx repository.Tx, userID, subType string) ([]*model.SubscriptionRecord, error) {
	const q = `SELECT id, user_id, type, status, start_date, created_at FROM subscriptions WHERE user_id=$1 AND type=$2 AND status='active' ORDER BY start_date ASC;`
	rows, err := queryRows(ctx, r.pool, tx, q, userID, subType)
	if err != nil {
		switch err {
		case domain.ErrInvalidArgument, domain.ErrInvalidExecContext:
			return nil, err
		default:
			return nil, domain.ErrOperationFailed
		}
	}
	defer rows.Close()

	var out []*model.SubscriptionRecord
	for rows.Next() {
		s := new(model.SubscriptionRecord)
		if err := rows.Scan(&s.ID, &s.UserID, &s.Type, &s.Status, &s.StartDate, &s.CreatedAt); err != nil {
			if errors.Is(err, pgx.ErrNoRows) {
				return nil, domain.ErrNotFound
			}
			return nil, domain.ErrReadDatabaseRow
		}
		out = append(out, s)
	}
	return out, nil
}

func (r *subscriptionRepo) CountActiveByUserAndType(ctx context.Context, tx repository.Tx, userID, subType string) (int, error) {
	const q = `SELECT COUNT(*) FROM subscriptions WHERE user_id=$1 AND type=$2 AND status='active';`
	row, err := pickRow(ctx, r.pool, tx, q, userID, subType)
	if err != nil {
		return 0, err
	}
	var n int
	if err := row.Scan(&n); err != nil {
		return 0, domain.ErrReadDatabaseRow
	}
	return n, nil
}

func (r *subscriptionRepo) Cancel(ctx context.Context, tx repository.Tx, id string) error {
	const q = `UPDATE subscriptions SET status='cancelled' WHERE id=$1;`
	tag, err := execSQL(ctx, r.pool, tx, q, id)
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

func (r *subscriptionRepo) Delete(ctx context.Context, tx repository.Tx, id string) error {
	const q = `DELETE FROM subscriptions WHERE id=$1;`
	tag, err := execSQL(ctx, r.pool, tx, q, id)
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
