package usecase

import (
	"context"
	"fmt"
	"time"

	"github.com/rs/zerolog"

	"habit-ai-billing/internal/domain"
	"habit-ai-billing/internal/domain/model"
	"habit-ai-billing/internal/domain/ports/repository"
	"habit-ai-billing/internal/infra/logging"
	"habit-ai-billing/internal/infra/metrics"
)

// Compile-time check
var _ LedgerReconciler = (*ledgerUC)(nil)

// CancellationMatch identifies the payment record a cancellation applies to.
// Identifiers are tried in preference order: gateway ref, merchant ref,
// internal id.
type CancellationMatch struct {
	GatewayRef  string // V1 imp_uid or V2 payment_id
	MerchantUID string
	InternalID  string
	Forced      bool
	At          time.Time
}

// LedgerReconciler applies gateway outcomes to the internal ledger.
//
// The payment-status update is the only must-succeed step; subscription
// matching and the entitlement downgrade are best-effort and merely logged
// on failure. The three writes are independent (no wrapping transaction), so
// a crash mid-way can leave a cancelled payment with a still-active
// subscription; the periodic reconciliation sweep repairs that window.
type LedgerReconciler interface {
	// ApplyCancellation marks the matched payment cancelled and retires the
	// derived subscription/entitlement state.
	ApplyCancellation(ctx context.Context, m CancellationMatch) error
	// ReconcileCancelled re-derives subscription and entitlement state for an
	// already-cancelled payment. Idempotent; used by the periodic sweep.
	ReconcileCancelled(ctx context.Context, p *model.PaymentRecord) error
}

type ledgerUC struct {
	payments repository.PaymentRepository
	subs     repository.SubscriptionRepository
	profiles repository.ProfileRepository
	log      *zerolog.Logger
}

func NewLedgerReconciler(
	payments repository.PaymentRepository,
	subs repository.SubscriptionRepository,
	profiles repository.ProfileRepository,
	logger *zerolog.Logger,
) *ledgerUC {
	return &ledgerUC{payments: payments, subs: subs, profiles: profiles, log: logger}
}

func (u *ledgerUC) ApplyCancellation(ctx context.Context, m CancellationMatch) error {
	p, err := u.locate(ctx, m)
	if err != nil {
		return err
	}

	at := m.At
	if at.IsZero() {
		at = time.Now()
	}
	if err := u.payments.MarkCancelled(ctx, nil, p.ID, at); err != nil {
		return fmt.Errorf("%w: mark payment cancelled: %v", domain.ErrLedger, err)
	}
	p.Status = model.PaymentStatusCancelled
	p.CancelledAt = &at

	u.retireSubscriptions(ctx, p, m.Forced, "request")
	return nil
}

func (u *ledgerUC) ReconcileCancelled(ctx context.Context, p *model.PaymentRecord) error {
	if p.Status != model.PaymentStatusCancelled {
		return fmt.Errorf("%w: payment %s is not cancelled", domain.ErrInvalidArgument, p.ID)
	}
	u.retireSubscriptions(ctx, p, false, "reconciler")
	return nil
}

// locate finds the payment record by the strongest available identifier.
func (u *ledgerUC) locate(ctx context.Context, m CancellationMatch) (*model.PaymentRecord, error) {
	if m.GatewayRef != "" {
		if p, err := u.payments.FindByGatewayRef(ctx, nil, m.GatewayRef); err == nil {
			return p, nil
		}
	}
	if m.MerchantUID != "" {
		if p, err := u.payments.FindByMerchantUID(ctx, nil, m.MerchantUID); err == nil {
			return p, nil
		}
	}
	if m.InternalID != "" {
		if p, err := u.payments.FindByID(ctx, nil, m.InternalID); err == nil {
			return p, nil
		}
	}
	return nil, fmt.Errorf("%w: no payment record matched the supplied identifiers", domain.ErrNotFound)
}

// retireSubscriptions cancels the subscriptions the payment granted and
// downgrades the profile tier when the last active "all" subscription is
// gone. Failures here never abort the caller's flow.
func (u *ledgerUC) retireSubscriptions(ctx context.Context, p *model.PaymentRecord, forced bool, origin string) {
	log := logging.With(ctx, u.log)
	subType := p.SubscriptionType()

	active, err := u.subs.FindActiveByUserAndType(ctx, nil, p.UserID, subType)
	if err != nil {
		log.Warn().Err(err).Str("payment_id", p.ID).Msg("subscription lookup failed; skipping retire step")
		return
	}

	for _, s := range active {
		// Forced cancellations retire everything of the type; otherwise only
		// subscriptions created alongside this payment (start-date proximity).
		if !forced && !s.MatchesPayment(p) {
			continue
		}
		if err := u.subs.Cancel(ctx, nil, s.ID); err != nil {
			log.Warn().Err(err).Str("subscription_id", s.ID).Msg("subscription cancel failed")
		}
	}

	if subType != model.TierAll {
		return
	}
	n, err := u.subs.CountActiveByUserAndType(ctx, nil, p.UserID, subType)
	if err != nil {
		log.Warn().Err(err).Str("user_id", p.UserID).Msg("active subscription count failed; tier left as-is")
		return
	}
	if n > 0 {
		return
	}
	if err := u.profiles.UpdateTier(ctx, nil, p.UserID, model.TierFree); err != nil {
		log.Warn().Err(err).Str("user_id", p.UserID).Msg("tier downgrade failed")
		return
	}
	metrics.TierDowngradeTotal.WithLabelValues(origin).Inc()
	log.Info().Str("user_id", p.UserID).Msg("entitlement tier downgraded to free")
}
