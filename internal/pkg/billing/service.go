package billing

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"errors"
	"math"
	"strings"
	"time"

	"gorm.io/gorm"

	"github.com/theproject93/planejar-pro-sub001/app/models"
	"github.com/theproject93/planejar-pro-sub001/internal/pkg/env"
	"github.com/theproject93/planejar-pro-sub001/internal/pkg/logging"
)

// Config carries the callback endpoints handed to the payment providers.
type Config struct {
	WebhookURL  string
	RedirectURL string
}

// Service implements the billing reconciliation core: checkout and PIX
// initiation plus the webhook resolver. Handlers are stateless; everything
// that must survive a request lives behind the repository.
type Service struct {
	repo     Repository
	catalog  Catalog
	checkout CheckoutProvider
	charge   ChargeProvider
	cfg      Config
	now      func() time.Time
}

// NewService wires a service from injected collaborators.
func NewService(repo Repository, catalog Catalog, checkout CheckoutProvider, charge ChargeProvider, cfg Config) *Service {
	return &Service{
		repo:     repo,
		catalog:  catalog,
		checkout: checkout,
		charge:   charge,
		cfg:      cfg,
		now:      time.Now,
	}
}

// NewServiceFromDB builds the production service: env-configured provider
// clients, the default plan catalog and a GORM repository.
func NewServiceFromDB(db *gorm.DB) *Service {
	return NewService(
		NewRepository(db),
		DefaultCatalog(),
		NewInfinitePayClientFromEnv(),
		NewMercadoPagoClientFromEnv(),
		Config{
			WebhookURL:  strings.TrimSpace(env.GetEnv("BILLING_WEBHOOK_URL", "")),
			RedirectURL: strings.TrimSpace(env.GetEnv("BILLING_REDIRECT_URL", "")),
		},
	)
}

// Catalog exposes the injected plan catalog for read endpoints.
func (s *Service) Catalog() Catalog {
	return s.catalog
}

// Subscription returns the caller's current subscription row.
func (s *Service) Subscription(userID string) (*models.Subscription, error) {
	return s.repo.GetSubscriptionByUserID(userID)
}

// StartCheckout runs the synchronous checkout flow: validate the plan, build
// the order reference, ask the redirect provider for a checkout link and
// persist a pending subscription snapshot. Provider failures are surfaced
// directly; no retries are attempted.
func (s *Service) StartCheckout(ctx context.Context, userID, email, planID string) (*CheckoutStart, error) {
	if userID == "" || email == "" {
		return nil, errors.New("user_id and email are required")
	}
	plan, ok := s.catalog.Lookup(planID)
	if !ok {
		return nil, ErrPlanNotFound
	}
	if s.cfg.WebhookURL == "" || s.cfg.RedirectURL == "" {
		return nil, ErrNotConfigured
	}

	reference := EncodeReference(userID, plan.ID, s.now())
	result, err := s.checkout.CreateCheckout(ctx, CheckoutRequest{
		OrderNSU:    reference,
		Description: plan.Title,
		AmountCents: plan.AmountCents,
		PayerEmail:  email,
		RedirectURL: s.cfg.RedirectURL,
		WebhookURL:  s.cfg.WebhookURL,
	})
	if err != nil {
		return nil, err
	}

	sub := &models.Subscription{
		UserID:            userID,
		Provider:          models.ProviderInfinitePay,
		Status:            models.SubscriptionStatusPendingCheckout,
		PlanID:            plan.ID,
		PlanName:          plan.Title,
		AmountCents:       plan.AmountCents,
		Currency:          plan.Currency,
		ExternalReference: reference,
		CheckoutSlug:      result.InvoiceSlug,
	}
	if err := s.repo.UpsertSubscription(sub); err != nil {
		return nil, err
	}

	return &CheckoutStart{
		Provider:    models.ProviderInfinitePay,
		CheckoutURL: result.CheckoutURL,
		OrderNSU:    reference,
		InvoiceSlug: result.InvoiceSlug,
		PlanID:      plan.ID,
		AmountCents: plan.AmountCents,
	}, nil
}

// StartPixCharge runs the synchronous PIX flow against the direct-charge
// provider and persists the pending snapshot. When the provider already
// reports the charge approved the subscription activates immediately.
func (s *Service) StartPixCharge(ctx context.Context, userID, email, planID string) (*PixStart, error) {
	if userID == "" || email == "" {
		return nil, errors.New("user_id and email are required")
	}
	plan, ok := s.catalog.Lookup(planID)
	if !ok {
		return nil, ErrPlanNotFound
	}

	reference := EncodeReference(userID, plan.ID, s.now())
	payment, err := s.charge.CreatePixCharge(ctx, PixChargeRequest{
		AmountCents:       plan.AmountCents,
		Description:       plan.Title,
		PayerEmail:        email,
		ExternalReference: reference,
		UserID:            userID,
		PlanID:            plan.ID,
		NotificationURL:   s.cfg.WebhookURL,
	})
	if err != nil {
		return nil, err
	}

	status := models.SubscriptionStatusPendingPix
	if payment.Status == "approved" {
		status = models.SubscriptionStatusActive
	}

	now := s.now()
	sub := &models.Subscription{
		UserID:            userID,
		Provider:          models.ProviderMercadoPago,
		Status:            status,
		PlanID:            plan.ID,
		PlanName:          plan.Title,
		AmountCents:       plan.AmountCents,
		Currency:          plan.Currency,
		ExternalReference: reference,
		LastPaymentID:     payment.ID,
		LastPaymentStatus: payment.Status,
		LastPaymentAt:     &now,
	}
	if err := s.repo.UpsertSubscription(sub); err != nil {
		return nil, err
	}

	if payment.ID != "" {
		row := paymentRow(payment, &userID, now)
		if err := s.repo.UpsertPayment(row); err != nil {
			return nil, err
		}
	}

	return &PixStart{
		PaymentID:    payment.ID,
		Status:       payment.Status,
		QRCode:       payment.QRCode,
		QRCodeBase64: payment.QRCodeBase64,
		TicketURL:    payment.TicketURL,
		PlanID:       plan.ID,
		AmountCents:  plan.AmountCents,
	}, nil
}

// ResolveWebhook turns one at-least-once, possibly reordered provider
// notification into an idempotent state transition. Deliveries without an
// extractable payment id are acknowledged and skipped: providers retire
// endpoints that keep failing, so malformed deliveries must not error.
func (s *Service) ResolveWebhook(ctx context.Context, delivery WebhookDelivery) (*WebhookOutcome, error) {
	paymentID := ExtractPaymentID(delivery.Query, delivery.Body)
	if paymentID == "" {
		return &WebhookOutcome{Skipped: "missing_payment_id"}, nil
	}

	event := s.recordDelivery(delivery, paymentID)

	payment, err := s.charge.FetchPayment(ctx, paymentID)
	if err != nil {
		s.markProcessed(event, err)
		return nil, err
	}

	userID, planID := s.attribute(payment)
	attributed := userID != ""
	now := s.now()

	var userRef *string
	if attributed {
		userRef = &userID
	}
	if err := s.repo.UpsertPayment(paymentRow(payment, userRef, now)); err != nil {
		s.markProcessed(event, err)
		return nil, err
	}

	outcome := &WebhookOutcome{
		PaymentID:     payment.ID,
		PaymentStatus: payment.Status,
		Attributed:    attributed,
		UserID:        userID,
		PlanID:        planID,
	}

	if attributed {
		mapped := MapPaymentStatus(payment.Status)
		planName := ""
		if plan, ok := s.catalog.Lookup(planID); ok {
			planName = plan.Title
		}
		sub := &models.Subscription{
			UserID:            userID,
			Provider:          models.ProviderMercadoPago,
			Status:            mapped,
			PlanID:            planID,
			PlanName:          planName,
			AmountCents:       toCents(payment.TransactionAmount),
			Currency:          currencyOrDefault(payment.CurrencyID),
			ExternalReference: payment.ExternalReference,
			LastPaymentID:     payment.ID,
			LastPaymentStatus: payment.Status,
			LastPaymentAt:     &now,
		}
		if err := s.repo.UpsertSubscription(sub); err != nil {
			s.markProcessed(event, err)
			return nil, err
		}
		outcome.SubscriptionStatus = mapped
	}

	s.markProcessed(event, nil)
	return outcome, nil
}

// attribute ties a canonical payment to a local user. The parsed external
// reference wins; the metadata pair embedded at creation time is the fallback
// for providers that truncate or re-encode the reference. Either way the
// plan must exist in the catalog or attribution fails.
func (s *Service) attribute(payment *ProviderPayment) (userID, planID string) {
	if refUser, refPlan, ok := DecodeReference(payment.ExternalReference); ok {
		if _, known := s.catalog.Lookup(refPlan); known {
			return refUser, refPlan
		}
	}
	if payment.MetadataUserID != "" && payment.MetadataPlanID != "" {
		if _, known := s.catalog.Lookup(payment.MetadataPlanID); known {
			return payment.MetadataUserID, payment.MetadataPlanID
		}
	}
	return "", ""
}

// recordDelivery persists the delivery for audit/replay. Failures here are
// logged but never block reconciliation; processing is driven by the
// canonical provider fetch, not by the stored event.
func (s *Service) recordDelivery(delivery WebhookDelivery, paymentID string) *models.WebhookEvent {
	eventID := strings.TrimSpace(delivery.EventID)
	if eventID == "" {
		sum := sha256.Sum256(delivery.Body)
		eventID = "hash:" + hex.EncodeToString(sum[:])
	}

	_, stored, err := s.repo.CreateWebhookEventIfNotExists(&models.WebhookEvent{
		Provider:        models.ProviderMercadoPago,
		ProviderEventID: eventID,
		PaymentID:       paymentID,
		PayloadJSON:     string(delivery.Body),
	})
	if err != nil {
		logging.Error(err, "failed to record webhook delivery", nil)
		return nil
	}
	return stored
}

func (s *Service) markProcessed(event *models.WebhookEvent, processingErr error) {
	if event == nil {
		return
	}
	msg := ""
	if processingErr != nil {
		msg = processingErr.Error()
	}
	if err := s.repo.MarkWebhookProcessed(event.ID, msg); err != nil {
		logging.Error(err, "failed to mark webhook event processed", nil)
	}
}

func paymentRow(payment *ProviderPayment, userID *string, processedAt time.Time) *models.Payment {
	return &models.Payment{
		Provider:          models.ProviderMercadoPago,
		ProviderPaymentID: payment.ID,
		UserID:            userID,
		ExternalReference: payment.ExternalReference,
		Status:            payment.Status,
		StatusDetail:      payment.StatusDetail,
		PaymentMethodID:   payment.PaymentMethodID,
		PaymentTypeID:     payment.PaymentTypeID,
		AmountCents:       toCents(payment.TransactionAmount),
		Currency:          currencyOrDefault(payment.CurrencyID),
		PayerEmail:        payment.PayerEmail,
		RawPayload:        payment.RawJSON,
		ProcessedAt:       &processedAt,
	}
}

func toCents(amount float64) int64 {
	return int64(math.Round(amount * 100))
}

func currencyOrDefault(currency string) string {
	if strings.TrimSpace(currency) == "" {
		return "BRL"
	}
	return currency
}
