package adapter

import (
	"context"

	"habit-ai-billing/internal/domain/model"
)

// GatewayPayload is the raw payment object returned by the provider.
// It is passed through to the caller unshaped; field sets differ between
// the V1 and V2 APIs.
type GatewayPayload map[string]any

// CancelOptions carries the optional cancel parameters the two API
// generations accept.
type CancelOptions struct {
	Reason      string
	MerchantUID string // V1 cancel may identify the transaction by merchant ref
	Amount      int64  // partial cancel amount; 0 means full
}

// CancelResult is the provider's cancellation response, or a synthesized one
// when a forced cancellation proceeds despite gateway failure.
type CancelResult struct {
	Forced  bool // true when the result was synthesized under the force policy
	Payload GatewayPayload
}

// PaymentGateway is the hex port hiding both payment-provider API
// generations behind one call shape.
type PaymentGateway interface {
	Name() string

	// Verify confirms the transaction is in the provider's paid state and
	// returns the raw payment payload. V1 requires status "paid", V2
	// requires "PAID"; the casing asymmetry is the provider's contract.
	Verify(ctx context.Context, ref model.TransactionRef) (GatewayPayload, error)

	// Cancel refunds/cancels the transaction. A provider response meaning
	// "already cancelled" is success, not an error.
	Cancel(ctx context.Context, ref model.TransactionRef, opts CancelOptions) (CancelResult, error)
}
