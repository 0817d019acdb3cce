package usecase

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/rs/zerolog"

	"habit-ai-billing/internal/domain"
	"habit-ai-billing/internal/domain/model"
	"habit-ai-billing/internal/domain/ports/adapter"
	"habit-ai-billing/internal/domain/ports/repository"
	"habit-ai-billing/internal/infra/logging"
	"habit-ai-billing/internal/infra/metrics"
)

// Compile-time check
var _ CancelUseCase = (*cancelUC)(nil)

const (
	ActionDeleteSubscription = "delete_subscription"
	ActionForceCancel        = "force_cancel"
)

// CancelInput carries everything the cancel endpoint accepts. PaymentID may
// be a V2 gateway payment id ("pay_" prefixed) or an internal payment record
// id; the prefix decides which.
type CancelInput struct {
	ImpUID         string
	MerchantUID    string
	PaymentID      string
	SubscriptionID string
	Reason         string
	Action         string
	CancelAmount   int64
}

// forced reports whether this cancellation runs under the administrative
// force policy. The reason-text sniff predates the explicit action field and
// is kept because old admin tooling still sends only the text.
func (in CancelInput) forced() bool {
	return in.Action == ActionForceCancel || strings.Contains(in.Reason, "Force")
}

// hasGatewayIdentifier reports whether anything can address the transaction
// on the provider side (merchant_uid counts: the V1 cancel API accepts it alone).
func (in CancelInput) hasGatewayIdentifier() bool {
	return in.ImpUID != "" || in.MerchantUID != "" || isV2PaymentID(in.PaymentID)
}

type CancelUseCase interface {
	// Cancel refunds the payment at the gateway (unless forced past a
	// failure) and rolls the ledger back. Returns the gateway result payload
	// or a synthesized one for forced flows.
	Cancel(ctx context.Context, in CancelInput) (adapter.GatewayPayload, error)
}

type cancelUC struct {
	gateway adapter.PaymentGateway
	ledger  LedgerReconciler
	subs    repository.SubscriptionRepository
	log     *zerolog.Logger
}

func NewCancelUseCase(
	gateway adapter.PaymentGateway,
	ledger LedgerReconciler,
	subs repository.SubscriptionRepository,
	logger *zerolog.Logger,
) *cancelUC {
	return &cancelUC{gateway: gateway, ledger: ledger, subs: subs, log: logger}
}

func (u *cancelUC) Cancel(ctx context.Context, in CancelInput) (adapter.GatewayPayload, error) {
	defer logging.TraceDuration(u.log, "CancelUC.Cancel")()
	log := logging.With(ctx, u.log)

	// Administrative short-circuit: drop a subscription row directly, no
	// gateway involvement.
	if in.Action == ActionDeleteSubscription {
		if in.SubscriptionID == "" {
			return nil, fmt.Errorf("%w: subscription_id is required for delete_subscription", domain.ErrInvalidArgument)
		}
		if err := u.subs.Delete(ctx, nil, in.SubscriptionID); err != nil {
			return nil, fmt.Errorf("%w: delete subscription %s: %v", domain.ErrLedger, in.SubscriptionID, err)
		}
		log.Info().Str("subscription_id", in.SubscriptionID).Msg("subscription deleted")
		return adapter.GatewayPayload{"success": true, "deleted_subscription_id": in.SubscriptionID}, nil
	}

	forced := in.forced()
	if in.ImpUID == "" && in.MerchantUID == "" && in.PaymentID == "" && !forced {
		return nil, fmt.Errorf("%w: at least one of imp_uid, merchant_uid or payment_id is required", domain.ErrInvalidArgument)
	}

	var result adapter.CancelResult
	if in.hasGatewayIdentifier() {
		ref, err := model.NewTransactionRef(in.ImpUID, v2PaymentID(in.PaymentID))
		if err != nil {
			// merchant_uid only: go down the V1 path, the adapter sends the
			// merchant ref from CancelOptions.
			ref = model.TransactionRef{Kind: model.RefKindV1}
		}
		result, err = u.gateway.Cancel(ctx, ref, adapter.CancelOptions{
			Reason:      in.Reason,
			MerchantUID: in.MerchantUID,
			Amount:      in.CancelAmount,
		})
		if err != nil {
			if !forced {
				return nil, err
			}
			// Administrative cleanup must never be blocked by upstream
			// gateway inconsistency.
			log.Warn().Err(err).Msg("forced cancel: swallowing gateway failure")
			metrics.ForcedCancelTotal.WithLabelValues("gateway").Inc()
			result = forcedResult("gateway cancel failed; cancellation forced")
		}
	} else if forced {
		metrics.ForcedCancelTotal.WithLabelValues("no_identifier").Inc()
		result = forcedResult("no gateway identifier supplied; ledger cleanup only")
	} else {
		// internal payment id only: nothing to tell the gateway
		result = adapter.CancelResult{Payload: adapter.GatewayPayload{"success": true}}
	}

	gatewayRef, internalID := splitPaymentID(in.ImpUID, in.PaymentID)
	err := u.ledger.ApplyCancellation(ctx, CancellationMatch{
		GatewayRef:  gatewayRef,
		MerchantUID: in.MerchantUID,
		InternalID:  internalID,
		Forced:      forced,
		At:          time.Now(),
	})
	if err != nil {
		if !forced {
			return nil, err
		}
		// Forced cleanup succeeds even when there is nothing left to clean.
		log.Warn().Err(err).Msg("forced cancel: ledger update incomplete")
	}

	return result.Payload, nil
}

func forcedResult(msg string) adapter.CancelResult {
	return adapter.CancelResult{
		Forced: true,
		Payload: adapter.GatewayPayload{
			"success": true,
			"forced":  true,
			"message": msg,
		},
	}
}

// splitPaymentID separates the overloaded payment_id field into a gateway
// ref and an internal record id.
func splitPaymentID(impUID, paymentID string) (gatewayRef, internalID string) {
	if isV2PaymentID(paymentID) {
		return paymentID, ""
	}
	return impUID, paymentID
}

func isV2PaymentID(id string) bool { return strings.HasPrefix(id, "pay_") }

func v2PaymentID(id string) string {
	if isV2PaymentID(id) {
		return id
	}
	return ""
}
