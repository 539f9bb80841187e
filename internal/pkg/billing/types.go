package billing

import (
	"errors"
	"fmt"
)

// PlanDefinition is one entry of the static plan catalog. Amounts are in
// minor currency units (centavos).
type PlanDefinition struct {
	ID                string `json:"id"`
	Title             string `json:"title"`
	AmountCents       int64  `json:"amount_cents"`
	Currency          string `json:"currency"`
	MaxEvents         int    `json:"max_events"`
	MaxGuestsPerEvent int    `json:"max_guests_per_event"`
	AISuggestions     bool   `json:"ai_suggestions"`
}

// CheckoutRequest is the provider-neutral input for a redirect-checkout link.
type CheckoutRequest struct {
	OrderNSU    string
	Description string
	AmountCents int64
	PayerEmail  string
	RedirectURL string
	WebhookURL  string
}

// CheckoutResult is what a redirect-checkout provider hands back.
type CheckoutResult struct {
	CheckoutURL string
	InvoiceSlug string
}

// PixChargeRequest is the provider-neutral input for a direct PIX charge.
type PixChargeRequest struct {
	AmountCents       int64
	Description       string
	PayerEmail        string
	ExternalReference string
	UserID            string
	PlanID            string
	NotificationURL   string
}

// ProviderPayment is the canonical payment state as reported by the
// direct-charge provider, either synchronously on creation or via a
// payment-lookup fetch. RawJSON keeps the verbatim provider body for audit.
type ProviderPayment struct {
	ID                string
	Status            string
	StatusDetail      string
	ExternalReference string
	PaymentMethodID   string
	PaymentTypeID     string
	TransactionAmount float64
	CurrencyID        string
	PayerEmail        string
	MetadataUserID    string
	MetadataPlanID    string
	QRCode            string
	QRCodeBase64      string
	TicketURL         string
	RawJSON           string
}

// CheckoutStart is returned to the caller of the checkout initiator.
type CheckoutStart struct {
	Provider    string
	CheckoutURL string
	OrderNSU    string
	InvoiceSlug string
	PlanID      string
	AmountCents int64
}

// PixStart is returned to the caller of the PIX initiator.
type PixStart struct {
	PaymentID    string
	Status       string
	QRCode       string
	QRCodeBase64 string
	TicketURL    string
	PlanID       string
	AmountCents  int64
}

// WebhookDelivery is one inbound provider notification, query and body kept
// verbatim because providers vary the shape between delivery modes.
type WebhookDelivery struct {
	Query   map[string]string
	Body    []byte
	EventID string
}

// WebhookOutcome describes what the resolver did with a delivery.
type WebhookOutcome struct {
	Skipped            string
	PaymentID          string
	PaymentStatus      string
	SubscriptionStatus string
	Attributed         bool
	UserID             string
	PlanID             string
}

var (
	// ErrPlanNotFound rejects unknown plan identifiers at the boundary.
	ErrPlanNotFound = errors.New("plan not found in catalog")
	// ErrNotConfigured signals a missing required secret or endpoint setting.
	ErrNotConfigured = errors.New("billing provider is not configured")
	// ErrInvalidCheckoutPayload means the checkout provider answered 2xx but
	// no URL-shaped string was found anywhere in the response.
	ErrInvalidCheckoutPayload = errors.New("checkout response contains no checkout url")
	// ErrPaymentFetch wraps a failed canonical-state lookup; no local
	// mutation happens when it is returned.
	ErrPaymentFetch = errors.New("payment lookup failed")
)

// ProviderError carries a non-2xx provider response so the HTTP layer can
// decide between a 400 (request-attributable) and 502 (provider fault).
type ProviderError struct {
	Provider   string
	StatusCode int
	Body       string
}

func (e *ProviderError) Error() string {
	return fmt.Sprintf("%s request failed: status=%d body=%s", e.Provider, e.StatusCode, e.Body)
}
