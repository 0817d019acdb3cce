package usecase

import (
	"context"
	"fmt"

	"github.com/rs/zerolog"

	"habit-ai-billing/internal/domain"
	"habit-ai-billing/internal/domain/model"
	"habit-ai-billing/internal/domain/ports/adapter"
	"habit-ai-billing/internal/infra/logging"
)

// Compile-time check
var _ VerifyUseCase = (*verifyUC)(nil)

type VerifyUseCase interface {
	// Verify confirms a client-reported payment against the gateway of
	// record and returns the raw gateway payload for the caller to persist.
	Verify(ctx context.Context, impUID, paymentID string) (adapter.GatewayPayload, error)
}

type verifyUC struct {
	gateway adapter.PaymentGateway
	log     *zerolog.Logger
}

func NewVerifyUseCase(gateway adapter.PaymentGateway, logger *zerolog.Logger) *verifyUC {
	return &verifyUC{gateway: gateway, log: logger}
}

func (u *verifyUC) Verify(ctx context.Context, impUID, paymentID string) (adapter.GatewayPayload, error) {
	defer logging.TraceDuration(u.log, "VerifyUC.Verify")()

	ref, err := model.NewTransactionRef(impUID, paymentID)
	if err != nil {
		return nil, fmt.Errorf("%w: at least one of imp_uid or payment_id is required", domain.ErrInvalidArgument)
	}

	payload, err := u.gateway.Verify(ctx, ref)
	if err != nil {
		logging.With(ctx, u.log).Warn().
			Str("ref_kind", string(ref.Kind)).
			Str("ref", ref.ID).
			Err(err).
			Msg("gateway verification failed")
		return nil, err
	}

	logging.With(ctx, u.log).Info().
		Str("ref_kind", string(ref.Kind)).
		Str("ref", ref.ID).
		Msg("payment verified")
	return payload, nil
}
