package model

import (
	"strings"
	"time"
)

type PaymentStatus string

const (
	PaymentStatusPaid      PaymentStatus = "paid"      // verified at the gateway of record
	PaymentStatusCancelled PaymentStatus = "cancelled" // refunded/cancelled at gateway or by admin
	PaymentStatusFailed    PaymentStatus = "failed"    // verification failed
	PaymentStatusUnknown   PaymentStatus = "unknown"   // created client-side, not yet confirmed
)

// PaymentRecord is the internal record of a purchase confirmed through the
// payment gateway. Rows are never deleted; cancellation only flips status.
type PaymentRecord struct {
	ID          string // UUID, internal
	UserID      string // UUID of the owning user
	ImpUID      string // V1 gateway transaction id (legacy, opaque)
	PaymentID   string // V2 gateway payment id ("pay_" prefixed)
	MerchantUID string // merchant-assigned order reference

	// PlanType is a composite "type_tier" string, e.g. "all_monthly".
	// The substring before the first underscore names the subscription
	// type the payment grants.
	PlanType string

	Status            PaymentStatus
	CoverageStartDate time.Time
	CancelledAt       *time.Time
	CreatedAt         time.Time
	UpdatedAt         time.Time
}

// SubscriptionType derives the subscription type from PlanType.
// Empty or separator-less plan types default to "all".
func (p *PaymentRecord) SubscriptionType() string {
	t, _, _ := strings.Cut(p.PlanType, "_")
	if t == "" {
		return "all"
	}
	return t
}

// GatewayRef returns whichever gateway-side identifier the record carries,
// preferring the V2 payment id.
func (p *PaymentRecord) GatewayRef() string {
	if p.PaymentID != "" {
		return p.PaymentID
	}
	return p.ImpUID
}
