package model

import (
	"time"

	"habit-ai-billing/internal/domain"
)

type SubscriptionStatus string

const (
	SubscriptionStatusActive    SubscriptionStatus = "active"
	SubscriptionStatusCancelled SubscriptionStatus = "cancelled"
)

// SubscriptionRecord is one granted subscription instance. It is matched back
// to the payment that created it by user, type and start-date proximity
// rather than a foreign key (the client creates both records independently).
type SubscriptionRecord struct {
	ID        string // UUID
	UserID    string // UUID of user
	Type      string // derived from PaymentRecord.PlanType prefix, e.g. "all"
	Status    SubscriptionStatus
	StartDate time.Time
	CreatedAt time.Time
}

// MatchWindow is how far a subscription's start date may drift from the
// payment's coverage start date and still be considered the same purchase.
const MatchWindow = 60 * time.Second

// MatchesPayment reports whether this subscription was created by the given
// payment, using the start-date proximity heuristic.
func (s *SubscriptionRecord) MatchesPayment(p *PaymentRecord) bool {
	d := s.StartDate.Sub(p.CoverageStartDate)
	if d < 0 {
		d = -d
	}
	return d <= MatchWindow
}

// NewSubscriptionRecord creates an active subscription for a user.
func NewSubscriptionRecord(id, userID, subType string, startDate time.Time) (*SubscriptionRecord, error) {
	if id == "" || userID == "" {
		return nil, domain.ErrInvalidArgument
	}
	if subType == "" {
		subType = "all"
	}
	return &SubscriptionRecord{
		ID:        id,
		UserID:    userID,
		Type:      subType,
		Status:    SubscriptionStatusActive,
		StartDate: startDate,
		CreatedAt: time.Now(),
	}, nil
}
