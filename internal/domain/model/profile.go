package model

import "time"

const (
	TierFree = "free"
	TierAll  = "all"
)

// Profile is the slice of the user profile the billing core owns:
// the entitlement tier derived from active subscriptions.
type Profile struct {
	UserID           string // UUID
	SubscriptionTier string // "free" when no active "all" subscription remains
	UpdatedAt        time.Time
}
