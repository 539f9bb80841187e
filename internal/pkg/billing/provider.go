package billing

import "context"

// CheckoutProvider creates hosted checkout links for redirect-based payment.
type CheckoutProvider interface {
	CreateCheckout(ctx context.Context, req CheckoutRequest) (*CheckoutResult, error)
}

// ChargeProvider creates direct charges and exposes the canonical payment
// lookup the webhook resolver relies on instead of trusting webhook bodies.
type ChargeProvider interface {
	CreatePixCharge(ctx context.Context, req PixChargeRequest) (*ProviderPayment, error)
	FetchPayment(ctx context.Context, paymentID string) (*ProviderPayment, error)
}
