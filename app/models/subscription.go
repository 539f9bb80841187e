package models

import "time"

// Billing provider constants used across billing-related models.
const (
	ProviderInfinitePay = "infinitepay"
	ProviderMercadoPago = "mercadopago"
)

const (
	SubscriptionStatusActive          = "active"
	SubscriptionStatusPendingCheckout = "pending_checkout"
	SubscriptionStatusPendingPix      = "pending_pix"
	SubscriptionStatusPendingPayment  = "pending_payment"
	SubscriptionStatusPaymentFailed   = "payment_failed"
)

// Subscription is the single billing relationship a user can hold. Initiating a
// new checkout or PIX charge overwrites the previous row; webhook deliveries
// mutate it as authoritative provider state arrives. user_id is the upsert
// conflict key, so there is never more than one row per user.
type Subscription struct {
	ID                uint       `gorm:"primaryKey" json:"id"`
	UserID            string     `gorm:"type:varchar(64);not null;uniqueIndex:ux_subscriptions_user" json:"user_id"`
	Provider          string     `gorm:"type:varchar(20);not null;index" json:"provider"`
	Status            string     `gorm:"type:varchar(32);not null;default:'pending_payment';index" json:"status"`
	PlanID            string     `gorm:"type:varchar(50);not null" json:"plan_id"`
	PlanName          string     `gorm:"type:varchar(100);not null;default:''" json:"plan_name"`
	AmountCents       int64      `gorm:"not null;default:0" json:"amount_cents"`
	Currency          string     `gorm:"type:varchar(8);not null;default:'BRL'" json:"currency"`
	ExternalReference string     `gorm:"type:varchar(191);not null;default:'';index" json:"external_reference"`
	CheckoutSlug      string     `gorm:"type:varchar(191);not null;default:''" json:"checkout_slug"`
	LastPaymentID     string     `gorm:"type:varchar(64);not null;default:''" json:"last_payment_id"`
	LastPaymentStatus string     `gorm:"type:varchar(32);not null;default:''" json:"last_payment_status"`
	LastPaymentAt     *time.Time `gorm:"type:timestamptz;default:null" json:"last_payment_at,omitempty"`
	CreatedAt         time.Time  `gorm:"autoCreateTime" json:"created_at"`
	UpdatedAt         time.Time  `gorm:"autoUpdateTime" json:"updated_at"`
}
