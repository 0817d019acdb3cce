//go:build !integration

package usecase

import (
	"context"
	"errors"
	"testing"
	"time"

	"habit-ai-billing/internal/domain"
	"habit-ai-billing/internal/domain/model"
	"habit-ai-billing/internal/domain/ports/adapter"
)

// newCancelFixture wires a cancel use case over in-memory state.
func newCancelFixture(gw *MockPaymentGateway) (*cancelUC, *memPaymentRepo, *memSubscriptionRepo, *memProfileRepo) {
	payments := newMemPaymentRepo()
	subs := newMemSubscriptionRepo()
	profiles := newMemProfileRepo()
	ledger := NewLedgerReconciler(payments, subs, profiles, newTestLogger())
	uc := NewCancelUseCase(gw, ledger, subs, newTestLogger())
	return uc, payments, subs, profiles
}

func TestCancelUC_DeleteSubscription(t *testing.T) {
	t.Run("requires a subscription_id", func(t *testing.T) {
		// Arrange
		gw := &MockPaymentGateway{}
		uc, _, _, _ := newCancelFixture(gw)

		// Act
		_, err := uc.Cancel(context.Background(), CancelInput{Action: ActionDeleteSubscription})

		// Assert
		if !errors.Is(err, domain.ErrInvalidArgument) {
			t.Fatalf("expected ErrInvalidArgument, got %v", err)
		}
	})

	t.Run("deletes the row without calling the gateway", func(t *testing.T) {
		// Arrange
		gw := &MockPaymentGateway{}
		uc, _, subs, _ := newCancelFixture(gw)
		seedSubscription(t, subs, &model.SubscriptionRecord{ID: "sub-1", UserID: "u1", StartDate: time.Now()})

		// Act
		payload, err := uc.Cancel(context.Background(), CancelInput{
			Action:         ActionDeleteSubscription,
			SubscriptionID: "sub-1",
		})

		// Assert
		if err != nil {
			t.Fatalf("unexpected error: %v", err)
		}
		if payload["deleted_subscription_id"] != "sub-1" {
			t.Fatalf("payload = %v, want deleted_subscription_id sub-1", payload)
		}
		if gw.CancelCalls != 0 {
			t.Fatalf("gateway called %d times, want 0", gw.CancelCalls)
		}
		if subs.get("sub-1") != nil {
			t.Fatal("subscription row still present after delete")
		}
	})

	t.Run("wraps a failed delete in ErrLedger", func(t *testing.T) {
		// Arrange
		gw := &MockPaymentGateway{}
		uc, _, _, _ := newCancelFixture(gw)

		// Act: sub-missing does not exist
		_, err := uc.Cancel(context.Background(), CancelInput{
			Action:         ActionDeleteSubscription,
			SubscriptionID: "sub-missing",
		})

		// Assert
		if !errors.Is(err, domain.ErrLedger) {
			t.Fatalf("expected ErrLedger, got %v", err)
		}
	})
}

func TestCancelUC_Cancel(t *testing.T) {
	now := time.Now()

	t.Run("rejects a request with no identifiers unless forced", func(t *testing.T) {
		// Arrange
		gw := &MockPaymentGateway{}
		uc, _, _, _ := newCancelFixture(gw)

		// Act
		_, err := uc.Cancel(context.Background(), CancelInput{Reason: "changed my mind"})

		// Assert
		if !errors.Is(err, domain.ErrInvalidArgument) {
			t.Fatalf("expected ErrInvalidArgument, got %v", err)
		}
		if gw.CancelCalls != 0 {
			t.Fatalf("gateway called %d times, want 0", gw.CancelCalls)
		}
	})

	t.Run("forced cancel with no identifiers still succeeds", func(t *testing.T) {
		// Arrange
		gw := &MockPaymentGateway{}
		uc, _, _, _ := newCancelFixture(gw)

		// Act
		payload, err := uc.Cancel(context.Background(), CancelInput{Action: ActionForceCancel})

		// Assert
		if err != nil {
			t.Fatalf("unexpected error: %v", err)
		}
		if payload["success"] != true || payload["forced"] != true {
			t.Fatalf("payload = %v, want forced success", payload)
		}
		if gw.CancelCalls != 0 {
			t.Fatalf("gateway called %d times, want 0", gw.CancelCalls)
		}
	})

	t.Run("cancels at the gateway and rolls the ledger back", func(t *testing.T) {
		// Arrange
		gw := &MockPaymentGateway{
			CancelFunc: func(ctx context.Context, ref model.TransactionRef, opts adapter.CancelOptions) (adapter.CancelResult, error) {
				if ref.Kind != model.RefKindV1 || ref.ID != "imp_1" {
					t.Fatalf("ref = %+v, want V1 imp_1", ref)
				}
				if opts.Reason != "duplicate charge" {
					t.Fatalf("reason = %q", opts.Reason)
				}
				return adapter.CancelResult{Payload: adapter.GatewayPayload{"status": "cancelled"}}, nil
			},
		}
		uc, payments, subs, profiles := newCancelFixture(gw)
		profiles.store["u1"] = &model.Profile{UserID: "u1", SubscriptionTier: model.TierAll}
		seedPayment(t, payments, &model.PaymentRecord{ID: "pmt-1", UserID: "u1", ImpUID: "imp_1", PlanType: "all_monthly", CoverageStartDate: now})
		seedSubscription(t, subs, &model.SubscriptionRecord{ID: "sub-1", UserID: "u1", StartDate: now})

		// Act
		payload, err := uc.Cancel(context.Background(), CancelInput{ImpUID: "imp_1", Reason: "duplicate charge"})

		// Assert
		if err != nil {
			t.Fatalf("unexpected error: %v", err)
		}
		if payload["status"] != "cancelled" {
			t.Fatalf("payload = %v", payload)
		}
		p, _ := payments.FindByID(context.Background(), nil, "pmt-1")
		if p.Status != model.PaymentStatusCancelled {
			t.Fatalf("payment status = %s, want cancelled", p.Status)
		}
		if got := subs.get("sub-1"); got.Status != model.SubscriptionStatusCancelled {
			t.Fatalf("subscription status = %s, want cancelled", got.Status)
		}
		prof, _ := profiles.FindByUserID(context.Background(), nil, "u1")
		if prof.SubscriptionTier != model.TierFree {
			t.Fatalf("tier = %s, want free", prof.SubscriptionTier)
		}
	})

	t.Run("a gateway failure aborts a normal cancellation", func(t *testing.T) {
		// Arrange
		gw := &MockPaymentGateway{
			CancelFunc: func(ctx context.Context, ref model.TransactionRef, opts adapter.CancelOptions) (adapter.CancelResult, error) {
				return adapter.CancelResult{}, domain.ErrGateway
			},
		}
		uc, payments, _, _ := newCancelFixture(gw)
		seedPayment(t, payments, &model.PaymentRecord{ID: "pmt-1", UserID: "u1", ImpUID: "imp_1", PlanType: "all_monthly", CoverageStartDate: now})

		// Act
		_, err := uc.Cancel(context.Background(), CancelInput{ImpUID: "imp_1"})

		// Assert
		if !errors.Is(err, domain.ErrGateway) {
			t.Fatalf("expected ErrGateway, got %v", err)
		}
		p, _ := payments.FindByID(context.Background(), nil, "pmt-1")
		if p.Status != model.PaymentStatusPaid {
			t.Fatalf("payment status = %s, want paid (ledger untouched)", p.Status)
		}
	})

	t.Run("forced cancel swallows the gateway failure and cleans the ledger", func(t *testing.T) {
		// Arrange
		gw := &MockPaymentGateway{
			CancelFunc: func(ctx context.Context, ref model.TransactionRef, opts adapter.CancelOptions) (adapter.CancelResult, error) {
				return adapter.CancelResult{}, domain.ErrGateway
			},
		}
		uc, payments, subs, profiles := newCancelFixture(gw)
		profiles.store["u1"] = &model.Profile{UserID: "u1", SubscriptionTier: model.TierAll}
		seedPayment(t, payments, &model.PaymentRecord{ID: "pmt-1", UserID: "u1", ImpUID: "imp_1", PlanType: "all_monthly", CoverageStartDate: now})
		seedSubscription(t, subs, &model.SubscriptionRecord{ID: "sub-1", UserID: "u1", StartDate: now})

		// Act
		payload, err := uc.Cancel(context.Background(), CancelInput{ImpUID: "imp_1", Action: ActionForceCancel})

		// Assert
		if err != nil {
			t.Fatalf("unexpected error: %v", err)
		}
		if payload["forced"] != true {
			t.Fatalf("payload = %v, want forced", payload)
		}
		p, _ := payments.FindByID(context.Background(), nil, "pmt-1")
		if p.Status != model.PaymentStatusCancelled {
			t.Fatalf("payment status = %s, want cancelled", p.Status)
		}
	})

	t.Run("a Force marker in the reason text triggers the force policy", func(t *testing.T) {
		// Arrange
		gw := &MockPaymentGateway{
			CancelFunc: func(ctx context.Context, ref model.TransactionRef, opts adapter.CancelOptions) (adapter.CancelResult, error) {
				return adapter.CancelResult{}, domain.ErrGateway
			},
		}
		uc, payments, _, _ := newCancelFixture(gw)
		seedPayment(t, payments, &model.PaymentRecord{ID: "pmt-1", UserID: "u1", ImpUID: "imp_1", PlanType: "all_monthly", CoverageStartDate: now})

		// Act
		payload, err := uc.Cancel(context.Background(), CancelInput{ImpUID: "imp_1", Reason: "Force cancel by admin"})

		// Assert
		if err != nil {
			t.Fatalf("unexpected error: %v", err)
		}
		if payload["forced"] != true {
			t.Fatalf("payload = %v, want forced", payload)
		}
	})

	t.Run("forced cancel succeeds even with no matching payment record", func(t *testing.T) {
		// Arrange
		gw := &MockPaymentGateway{}
		uc, _, _, _ := newCancelFixture(gw)

		// Act
		payload, err := uc.Cancel(context.Background(), CancelInput{ImpUID: "imp_ghost", Action: ActionForceCancel})

		// Assert
		if err != nil {
			t.Fatalf("unexpected error: %v", err)
		}
		if payload["success"] != true {
			t.Fatalf("payload = %v, want success", payload)
		}
	})

	t.Run("an unmatched payment record fails a normal cancellation", func(t *testing.T) {
		// Arrange
		gw := &MockPaymentGateway{}
		uc, _, _, _ := newCancelFixture(gw)

		// Act: gateway accepts but the ledger has no such payment
		_, err := uc.Cancel(context.Background(), CancelInput{ImpUID: "imp_ghost"})

		// Assert
		if !errors.Is(err, domain.ErrNotFound) {
			t.Fatalf("expected ErrNotFound, got %v", err)
		}
	})

	t.Run("merchant_uid alone goes down the V1 path with the merchant ref in options", func(t *testing.T) {
		// Arrange
		var seenRef model.TransactionRef
		var seenOpts adapter.CancelOptions
		gw := &MockPaymentGateway{
			CancelFunc: func(ctx context.Context, ref model.TransactionRef, opts adapter.CancelOptions) (adapter.CancelResult, error) {
				seenRef, seenOpts = ref, opts
				return adapter.CancelResult{Payload: adapter.GatewayPayload{"status": "cancelled"}}, nil
			},
		}
		uc, payments, _, _ := newCancelFixture(gw)
		seedPayment(t, payments, &model.PaymentRecord{ID: "pmt-1", UserID: "u1", MerchantUID: "order_1", PlanType: "all_monthly", CoverageStartDate: now})

		// Act
		if _, err := uc.Cancel(context.Background(), CancelInput{MerchantUID: "order_1", CancelAmount: 9900}); err != nil {
			t.Fatalf("unexpected error: %v", err)
		}

		// Assert
		if seenRef.Kind != model.RefKindV1 || seenRef.ID != "" {
			t.Fatalf("ref = %+v, want empty V1", seenRef)
		}
		if seenOpts.MerchantUID != "order_1" || seenOpts.Amount != 9900 {
			t.Fatalf("opts = %+v", seenOpts)
		}
	})

	t.Run("a pay_-prefixed payment_id is treated as a V2 gateway ref", func(t *testing.T) {
		// Arrange
		var seenRef model.TransactionRef
		gw := &MockPaymentGateway{
			CancelFunc: func(ctx context.Context, ref model.TransactionRef, opts adapter.CancelOptions) (adapter.CancelResult, error) {
				seenRef = ref
				return adapter.CancelResult{Payload: adapter.GatewayPayload{"status": "CANCELLED"}}, nil
			},
		}
		uc, payments, _, _ := newCancelFixture(gw)
		seedPayment(t, payments, &model.PaymentRecord{ID: "pmt-1", UserID: "u1", PaymentID: "pay_77", PlanType: "all_monthly", CoverageStartDate: now})

		// Act
		if _, err := uc.Cancel(context.Background(), CancelInput{PaymentID: "pay_77"}); err != nil {
			t.Fatalf("unexpected error: %v", err)
		}

		// Assert
		if seenRef.Kind != model.RefKindV2 || seenRef.ID != "pay_77" {
			t.Fatalf("ref = %+v, want V2 pay_77", seenRef)
		}
		p, _ := payments.FindByID(context.Background(), nil, "pmt-1")
		if p.Status != model.PaymentStatusCancelled {
			t.Fatalf("payment status = %s, want cancelled", p.Status)
		}
	})

	t.Run("an unprefixed payment_id is an internal record id and skips the gateway", func(t *testing.T) {
		// Arrange
		gw := &MockPaymentGateway{}
		uc, payments, _, _ := newCancelFixture(gw)
		seedPayment(t, payments, &model.PaymentRecord{ID: "pmt-1", UserID: "u1", PlanType: "all_monthly", CoverageStartDate: now})

		// Act
		payload, err := uc.Cancel(context.Background(), CancelInput{PaymentID: "pmt-1"})

		// Assert
		if err != nil {
			t.Fatalf("unexpected error: %v", err)
		}
		if gw.CancelCalls != 0 {
			t.Fatalf("gateway called %d times, want 0", gw.CancelCalls)
		}
		if payload["success"] != true {
			t.Fatalf("payload = %v, want success", payload)
		}
		p, _ := payments.FindByID(context.Background(), nil, "pmt-1")
		if p.Status != model.PaymentStatusCancelled {
			t.Fatalf("payment status = %s, want cancelled", p.Status)
		}
	})
}
