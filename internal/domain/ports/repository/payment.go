package repository

import (
	"context"
	"time"

	"habit-ai-billing/internal/domain/model"
)

// -----------------------------
// Payments
// -----------------------------

type PaymentRepository interface {
	Save(ctx context.Context, tx Tx, p *model.PaymentRecord) error
	FindByID(ctx context.Context, tx Tx, id string) (*model.PaymentRecord, error)
	// FindByGatewayRef matches either the V1 imp_uid or the V2 payment_id column.
	FindByGatewayRef(ctx context.Context, tx Tx, ref string) (*model.PaymentRecord, error)
	FindByMerchantUID(ctx context.Context, tx Tx, merchantUID string) (*model.PaymentRecord, error)
	// MarkCancelled sets status to cancelled and records the timestamp.
	// Re-marking an already-cancelled payment is a no-op, not an error.
	MarkCancelled(ctx context.Context, tx Tx, id string, at time.Time) error
	// ListCancelledSince returns payments cancelled after the cutoff, used by
	// the reconciliation sweep to re-check derived subscription state.
	ListCancelledSince(ctx context.Context, tx Tx, since time.Time, limit int) ([]*model.PaymentRecord, error)
}
