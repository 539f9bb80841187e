package billing

import (
	"time"

	"gorm.io/gorm"
	"gorm.io/gorm/clause"

	"github.com/theproject93/planejar-pro-sub001/app/models"
)

// Repository provides DB operations used by the billing service. All writes
// are conflict-key upserts, which is the only cross-request serialization
// point the subsystem has: concurrent deliveries race at the store and
// last-write-wins.
type Repository interface {
	UpsertSubscription(sub *models.Subscription) error
	UpsertPayment(payment *models.Payment) error
	GetSubscriptionByUserID(userID string) (*models.Subscription, error)
	CreateWebhookEventIfNotExists(event *models.WebhookEvent) (bool, *models.WebhookEvent, error)
	MarkWebhookProcessed(id uint, processingError string) error
}

type gormRepository struct {
	db *gorm.DB
}

// NewRepository creates a billing repository backed by GORM.
func NewRepository(db *gorm.DB) Repository {
	return &gormRepository{db: db}
}

func (r *gormRepository) UpsertSubscription(sub *models.Subscription) error {
	return r.db.Clauses(clause.OnConflict{
		Columns: []clause.Column{
			{Name: "user_id"},
		},
		DoUpdates: clause.AssignmentColumns([]string{
			"provider",
			"status",
			"plan_id",
			"plan_name",
			"amount_cents",
			"currency",
			"external_reference",
			"checkout_slug",
			"last_payment_id",
			"last_payment_status",
			"last_payment_at",
			"updated_at",
		}),
	}).Create(sub).Error
}

func (r *gormRepository) UpsertPayment(payment *models.Payment) error {
	return r.db.Clauses(clause.OnConflict{
		Columns: []clause.Column{
			{Name: "provider"},
			{Name: "provider_payment_id"},
		},
		DoUpdates: clause.AssignmentColumns([]string{
			"user_id",
			"external_reference",
			"status",
			"status_detail",
			"payment_method_id",
			"payment_type_id",
			"amount_cents",
			"currency",
			"payer_email",
			"raw_payload",
			"processed_at",
			"updated_at",
		}),
	}).Create(payment).Error
}

func (r *gormRepository) GetSubscriptionByUserID(userID string) (*models.Subscription, error) {
	var sub models.Subscription
	if err := r.db.Where("user_id = ?", userID).First(&sub).Error; err != nil {
		return nil, err
	}
	return &sub, nil
}

func (r *gormRepository) CreateWebhookEventIfNotExists(event *models.WebhookEvent) (bool, *models.WebhookEvent, error) {
	tx := r.db.Clauses(clause.OnConflict{
		Columns: []clause.Column{
			{Name: "provider"},
			{Name: "provider_event_id"},
		},
		DoNothing: true,
	}).Create(event)
	if tx.Error != nil {
		return false, nil, tx.Error
	}

	created := tx.RowsAffected > 0
	var stored models.WebhookEvent
	if err := r.db.Where("provider = ? AND provider_event_id = ?", event.Provider, event.ProviderEventID).
		First(&stored).Error; err != nil {
		return false, nil, err
	}
	return created, &stored, nil
}

func (r *gormRepository) MarkWebhookProcessed(id uint, processingError string) error {
	now := time.Now()
	updates := map[string]interface{}{
		"processed_at":     &now,
		"processing_error": processingError,
	}
	return r.db.Model(&models.WebhookEvent{}).Where("id = ?", id).Updates(updates).Error
}
