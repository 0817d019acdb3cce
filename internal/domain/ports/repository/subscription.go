package repository

import (
	"context"

	"habit-ai-billing/internal/domain/model"
)

// SubscriptionRepository is the port for granted subscription records.
type SubscriptionRepository interface {
	Save(ctx context.Context, tx Tx, s *model.SubscriptionRecord) error
	FindActiveByUserAndType(ctx context.Context, tx Tx, userID, subType string) ([]*model.SubscriptionRecord, error)
	CountActiveByUserAndType(ctx context.Context, tx Tx, userID, subType string) (int, error)
	Cancel(ctx context.Context, tx Tx, id string) error
	// Delete removes a record outright; only the administrative
	// delete_subscription action uses this (normal flows keep the row and
	// flip status).
	Delete(ctx context.Context, tx Tx, id string) error
}
