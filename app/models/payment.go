package models

import "time"

// Payment records one provider payment. (provider, provider_payment_id) is the
// natural key that makes webhook delivery idempotent: repeated deliveries of
// the same payment converge onto one row. UserID is empty when a delivery
// could not be attributed to a local user; the row is still kept for audit.
type Payment struct {
	ID                uint       `gorm:"primaryKey" json:"id"`
	Provider          string     `gorm:"type:varchar(20);not null;index:ux_payments_provider_payment,unique,priority:1" json:"provider"`
	ProviderPaymentID string     `gorm:"type:varchar(64);not null;index:ux_payments_provider_payment,unique,priority:2" json:"provider_payment_id"`
	UserID            *string    `gorm:"type:varchar(64);index" json:"user_id,omitempty"`
	ExternalReference string     `gorm:"type:varchar(191);not null;default:''" json:"external_reference"`
	Status            string     `gorm:"type:varchar(32);not null;default:''" json:"status"`
	StatusDetail      string     `gorm:"type:varchar(64);not null;default:''" json:"status_detail"`
	PaymentMethodID   string     `gorm:"type:varchar(32);not null;default:''" json:"payment_method_id"`
	PaymentTypeID     string     `gorm:"type:varchar(32);not null;default:''" json:"payment_type_id"`
	AmountCents       int64      `gorm:"not null;default:0" json:"amount_cents"`
	Currency          string     `gorm:"type:varchar(8);not null;default:'BRL'" json:"currency"`
	PayerEmail        string     `gorm:"type:varchar(200);not null;default:''" json:"payer_email"`
	RawPayload        string     `gorm:"type:text" json:"raw_payload"`
	ProcessedAt       *time.Time `gorm:"type:timestamptz;default:null" json:"processed_at,omitempty"`
	CreatedAt         time.Time  `gorm:"autoCreateTime" json:"created_at"`
	UpdatedAt         time.Time  `gorm:"autoUpdateTime" json:"updated_at"`
}
