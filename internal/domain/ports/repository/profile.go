package repository

import (
	"context"

	"habit-ai-billing/internal/domain/model"
)

// ProfileRepository is the port for the entitlement slice of user profiles.
type ProfileRepository interface {
	FindByUserID(ctx context.Context, tx Tx, userID string) (*model.Profile, error)
	UpdateTier(ctx context.Context, tx Tx, userID, tier string) error
}
