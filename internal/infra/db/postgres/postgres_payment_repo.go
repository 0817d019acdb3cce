package postgres

import (
	"context"
	"errors"
	"time"

	"github.com/jackc/pgx/v4"
	"github.com/jackc/pgx/v4/pgxpool"

	"habit-ai-billing/internal/domain"
	"habit-ai-billing/internal/domain/model"
	"habit-ai-billing/internal/domain/ports/repository"
)

var _ repository.PaymentRepository = (*paymentRepo)(nil)

type paymentRepo struct{ pool *pgxpool.Pool }

func NewPaymentRepo(pool *pgxpool.Pool) *paymentRepo {
	return &paymentRepo{pool: pool}
}

const paymentColumns = `id, user_id, imp_uid, payment_id, merchant_uid, plan_type, status, coverage_start_date, cancelled_at, created_at, updated_at`

func (r *paymentRepo) Save(ctx context.Context, tx repository.Tx, p *model.PaymentRecord) error {
	const q = `
INSERT INTO payments (
  id, user_id, imp_uid, payment_id, merchant_uid, plan_type, status, coverage_start_date, cancelled_at, created_at, updated_at
) VALUES (
  $1,$2,$3,$4,$5,$6,$7,$8,$9,$10,$11
) ON CONFLICT (id) DO UPDATE SET
  user_id=$2, imp_uid=$3, payment_id=$4, merchant_uid=$5, plan_type=$6, status=$7, coverage_start_date=$8, cancelled_at=$9, updated_at=$11;`

	_, err := execSQL(ctx, r.pool, tx, q, p.ID, p.UserID, p.ImpUID, p.PaymentID, p.MerchantUID, p.PlanType, p.Status, p.CoverageStartDate, p.CancelledAt, p.CreatedAt, p.UpdatedAt)
	if err != nil {
		if err == domain.ErrInvalidArgument || err == domain.ErrInvalidExecContext {
			return err
		}
		return domain.ErrOperationFailed
	}
	return nil
}

func (r *paymentRepo) FindByID(ctx context.Context, tx repository.Tx, id string) (*model.PaymentRecord, error) {
	const q = `SELECT ` + paymentColumns + ` FROM payments WHERE id=$1;`
	return r.findOne(ctx, tx, q, id)
}

func (r *paymentRepo) FindByGatewayRef(ctx context.Context, tx repository.Tx, ref string) (*model.PaymentRecord, error) {
	const q = `SELECT ` + paymentColumns + ` FROM payments WHERE imp_uid=$1 OR payment_id=$1 LIMIT 1;`
	return r.findOne(ctx, tx, q, ref)
}

func (r *paymentRepo) FindByMerchantUID(ctx context.Context, tx repository.Tx, merchantUID string) (*model.PaymentRecord, error) {
	const q = `SELECT ` + paymentColumns + ` FROM payments WHERE merchant_uid=$1 LIMIT 1;`
	return r.findOne(ctx, tx, q, merchantUID)
}

// MarkCancelled flips status and records the first cancellation timestamp.
// Running it again against an already-cancelled row changes nothing.
func (r *paymentRepo) MarkCancelled(ctx context.Context, tx repository.Tx, id string, at time.Time) error {
	const q = `UPDATE payments SET status='cancelled', cancelled_at=COALESCE(cancelled_at, $2), updated_at=NOW() WHERE id=$1;`
	tag, err := execSQL(ctx, r.pool, tx, q, id, at)
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

func (r *paymentRepo) ListCancelledSince(ctx context.Context, tx repository.Tx, since time.Time, limit int) ([]*model.PaymentRecord, error) {
	if limit <= 0 {
		limit = 100
	}
	const q = `SELECT ` + paymentColumns + ` FROM payments WHERE status='cancelled' AND cancelled_at >= $1 ORDER BY cancelled_at ASC LIMIT $2;`
	rows, err := queryRows(ctx, r.pool, tx, q, since, limit)
	if err != nil {
		switch err {
		case domain.ErrInvalidArgument, domain.ErrInvalidExecContext:
			return nil, err
		default:
			return nil, domain.ErrOperationFailed
		}
	}
	defer rows.Close()

	var out []*model.PaymentRecord
	for rows.Next() {
		p := new(model.PaymentRecord)
		if err := scanPayment(rows, p); err != nil {
			return nil, err
		}
		out = append(out, p)
	}
	return out, nil
}

func (r *paymentRepo) findOne(ctx context.Context, tx repository.Tx, q string, arg any) (*model.PaymentRecord, error) {
	row, err := pickRow(ctx, r.pool, tx, q, arg)
	if err != nil {
		return nil, err
	}
	p := &model.PaymentRecord{}
	if err := scanPayment(row, p); err != nil {
		return nil, err
	}
	return p, nil
}

func scanPayment(row pgx.Row, p *model.PaymentRecord) error {
	err := row.Scan(&p.ID, &p.UserID, &p.ImpUID, &p.PaymentID, &p.MerchantUID, &p.PlanType, &p.Status, &p.CoverageStartDate, &p.CancelledAt, &p.CreatedAt, &p.UpdatedAt)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return domain.ErrNotFound
		}
		return domain.ErrReadDatabaseRow
	}
	return nil
}
