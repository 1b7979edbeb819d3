package paylink

import (
	"context"
	"time"
)

// LinkStatus is the processor-side state of a payment link.
type LinkStatus string

const (
	LinkStatusPending LinkStatus = "pending"
	LinkStatusPaid    LinkStatus = "paid"
	LinkStatusFailed  LinkStatus = "failed"
)

// Link is the processor-agnostic view of a hosted payment link.
type Link struct {
	ID        string
	OrderID   string
	URL       string
	CreatedAt time.Time
}

// CreateLinkParams describes the payment link to mint.
type CreateLinkParams struct {
	AmountCents    int64
	Currency       string
	Description    string
	ReferenceID    string
	IdempotencyKey string
}

// Gateway is the payment-link surface consumed by the booking and
// negotiation services. The rest of the codebase never touches the
// processor SDK directly.
type Gateway interface {
	CreateLink(ctx context.Context, params CreateLinkParams) (*Link, error)
	PollStatus(ctx context.Context, linkID string) (LinkStatus, error)
	DeleteLink(ctx context.Context, linkID string) error
	SigningSecret() string
	NewIdempotencyKey(prefix string) string
}
