package model

import (
	"strings"

	"habit-ai-billing/internal/domain"
)

// RefKind tags which gateway API generation a transaction reference belongs to.
type RefKind string

const (
	RefKindV1 RefKind = "v1" // legacy opaque transaction id
	RefKindV2 RefKind = "v2" // "pay_" prefixed payment id
)

// v2RefPrefix marks current-generation payment ids on the wire.
const v2RefPrefix = "pay_"

// TransactionRef is a gateway transaction reference resolved to its API
// generation once at the boundary, so downstream code branches on Kind
// instead of re-sniffing string prefixes.
type TransactionRef struct {
	Kind RefKind
	ID   string
}

// NewTransactionRef classifies the identifiers a client may send.
// An explicit paymentID always selects V2; otherwise impUID is classified
// by prefix. Returns ErrInvalidArgument when neither is present.
func NewTransactionRef(impUID, paymentID string) (TransactionRef, error) {
	switch {
	case paymentID != "":
		return TransactionRef{Kind: RefKindV2, ID: paymentID}, nil
	case strings.HasPrefix(impUID, v2RefPrefix):
		return TransactionRef{Kind: RefKindV2, ID: impUID}, nil
	case impUID != "":
		return TransactionRef{Kind: RefKindV1, ID: impUID}, nil
	default:
		return TransactionRef{}, domain.ErrInvalidArgument
	}
}
