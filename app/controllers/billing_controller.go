package controllers

import (
	"context"
	"encoding/json"
	"errors"
	"time"

	"github.com/go-playground/validator/v10"
	"github.com/gofiber/fiber/v2"
	"github.com/sirupsen/logrus"
	"gorm.io/gorm"

	"github.com/theproject93/planejar-pro-sub001/internal/pkg/billing"
	"github.com/theproject93/planejar-pro-sub001/internal/pkg/cache"
	"github.com/theproject93/planejar-pro-sub001/internal/pkg/database"
	"github.com/theproject93/planejar-pro-sub001/internal/pkg/logging"
	"github.com/theproject93/planejar-pro-sub001/internal/pkg/usercontext"
)

var validate = validator.New()

const subscriptionCacheTTL = 60 * time.Second

func subscriptionCacheKey(userID string) string {
	return "billing:subscription:" + userID
}

type planRequest struct {
	PlanID string `json:"planId" validate:"required"`
}

// HandleCreateCheckout starts a redirect-checkout flow with InfinitePay and
// stores a pending subscription snapshot for the authenticated user.
func HandleCreateCheckout(c *fiber.Ctx) error {
	userCtx := usercontext.GetUserContext(c)
	if !userCtx.IsLoggedIn {
		return c.Status(fiber.StatusUnauthorized).JSON(fiber.Map{"error": "unauthorized", "message": "Authentication required"})
	}
	if userCtx.Email == "" {
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{"error": "missing_user_email", "message": "Account has no verified email"})
	}

	var req planRequest
	if err := c.BodyParser(&req); err != nil {
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{"error": "invalid_plan", "message": "Request body must carry a planId"})
	}
	if err := validate.Struct(req); err != nil {
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{"error": "invalid_plan", "message": "planId is required"})
	}

	svc := billing.NewServiceFromDB(database.GetDB())
	ctx, cancel := context.WithTimeout(c.Context(), 25*time.Second)
	defer cancel()

	start, err := svc.StartCheckout(ctx, userCtx.UserID, userCtx.Email, req.PlanID)
	if err != nil {
		return checkoutError(c, userCtx.UserID, err)
	}
	cache.Delete(subscriptionCacheKey(userCtx.UserID))

	return c.Status(fiber.StatusOK).JSON(fiber.Map{
		"ok":          true,
		"provider":    start.Provider,
		"checkoutUrl": start.CheckoutURL,
		"orderNsu":    start.OrderNSU,
		"invoiceSlug": start.InvoiceSlug,
		"planId":      start.PlanID,
		"amountCents": start.AmountCents,
	})
}

func checkoutError(c *fiber.Ctx, userID string, err error) error {
	switch {
	case errors.Is(err, billing.ErrPlanNotFound):
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{"error": "invalid_plan", "message": "Unknown plan identifier"})
	case errors.Is(err, billing.ErrNotConfigured):
		logging.Error(err, "checkout provider not configured", logrus.Fields{"user_id": userID})
		return c.Status(fiber.StatusInternalServerError).JSON(fiber.Map{"error": "server_misconfigured", "message": "Billing is not configured"})
	case errors.Is(err, billing.ErrInvalidCheckoutPayload):
		logging.Error(err, "checkout provider returned no checkout url", logrus.Fields{"user_id": userID})
		return c.Status(fiber.StatusBadGateway).JSON(fiber.Map{"error": "infinitepay_invalid_checkout_payload", "message": "Checkout provider returned an unusable response"})
	}

	var pe *billing.ProviderError
	if errors.As(err, &pe) {
		logging.Error(err, "checkout provider call failed", logrus.Fields{"user_id": userID, "provider_status": pe.StatusCode})
		status := fiber.StatusBadGateway
		if pe.StatusCode >= 400 && pe.StatusCode < 500 {
			status = fiber.StatusBadRequest
		}
		return c.Status(status).JSON(fiber.Map{"error": "infinitepay_checkout_failed", "message": pe.Body})
	}

	logging.Error(err, "checkout failed", logrus.Fields{"user_id": userID})
	return c.Status(fiber.StatusInternalServerError).JSON(fiber.Map{"error": "internal_error", "message": "Checkout could not be completed"})
}

// HandleCreatePixCharge starts a direct PIX charge with MercadoPago and
// stores a pending (or, when already approved, active) subscription snapshot.
func HandleCreatePixCharge(c *fiber.Ctx) error {
	userCtx := usercontext.GetUserContext(c)
	if !userCtx.IsLoggedIn {
		return c.Status(fiber.StatusUnauthorized).JSON(fiber.Map{"error": "unauthorized", "message": "Authentication required"})
	}
	if userCtx.Email == "" {
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{"error": "missing_user_email", "message": "Account has no verified email"})
	}

	var req planRequest
	if err := c.BodyParser(&req); err != nil {
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{"error": "invalid_plan", "message": "Request body must carry a planId"})
	}
	if err := validate.Struct(req); err != nil {
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{"error": "invalid_plan", "message": "planId is required"})
	}

	svc := billing.NewServiceFromDB(database.GetDB())
	ctx, cancel := context.WithTimeout(c.Context(), 25*time.Second)
	defer cancel()

	start, err := svc.StartPixCharge(ctx, userCtx.UserID, userCtx.Email, req.PlanID)
	if err != nil {
		return pixError(c, userCtx.UserID, err)
	}
	cache.Delete(subscriptionCacheKey(userCtx.UserID))

	return c.Status(fiber.StatusOK).JSON(fiber.Map{
		"ok":           true,
		"paymentId":    start.PaymentID,
		"status":       start.Status,
		"qrCode":       nullable(start.QRCode),
		"qrCodeBase64": nullable(start.QRCodeBase64),
		"ticketUrl":    nullable(start.TicketURL),
		"planId":       start.PlanID,
		"amountCents":  start.AmountCents,
	})
}

func pixError(c *fiber.Ctx, userID string, err error) error {
	switch {
	case errors.Is(err, billing.ErrPlanNotFound):
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{"error": "invalid_plan", "message": "Unknown plan identifier"})
	case errors.Is(err, billing.ErrNotConfigured):
		logging.Error(err, "pix provider not configured", logrus.Fields{"user_id": userID})
		return c.Status(fiber.StatusInternalServerError).JSON(fiber.Map{"error": "server_misconfigured", "message": "Billing is not configured"})
	}

	var pe *billing.ProviderError
	if errors.As(err, &pe) {
		logging.Error(err, "pix provider call failed", logrus.Fields{"user_id": userID, "provider_status": pe.StatusCode})
		status := fiber.StatusBadGateway
		if pe.StatusCode >= 400 && pe.StatusCode < 500 {
			status = fiber.StatusBadRequest
		}
		return c.Status(status).JSON(fiber.Map{"error": "mercadopago_pix_failed", "message": pe.Body})
	}

	logging.Error(err, "pix charge failed", logrus.Fields{"user_id": userID})
	return c.Status(fiber.StatusInternalServerError).JSON(fiber.Map{"error": "internal_error", "message": "PIX charge could not be completed"})
}

// HandlePaymentWebhook receives MercadoPago notifications. Deliveries are
// at-least-once and unordered; the resolver re-fetches canonical state and
// persists idempotently. Malformed deliveries are acknowledged with 200 so
// the provider does not retire the endpoint.
func HandlePaymentWebhook(c *fiber.Ctx) error {
	rawBody := append([]byte(nil), c.BodyRaw()...)

	query := map[string]string{}
	c.Context().QueryArgs().VisitAll(func(key, value []byte) {
		query[string(key)] = string(value)
	})

	delivery := billing.WebhookDelivery{
		Query:   query,
		Body:    rawBody,
		EventID: c.Get("X-Request-Id"),
	}

	svc := billing.NewServiceFromDB(database.GetDB())
	ctx, cancel := context.WithTimeout(c.Context(), 25*time.Second)
	defer cancel()

	outcome, err := svc.ResolveWebhook(ctx, delivery)
	if err != nil {
		if errors.Is(err, billing.ErrPaymentFetch) {
			logging.Error(err, "canonical payment fetch failed", logrus.Fields{"payload": string(rawBody)})
			return c.Status(fiber.StatusBadGateway).JSON(fiber.Map{"error": "mercadopago_payment_fetch_failed", "message": "Could not fetch payment state"})
		}
		logging.Error(err, "webhook processing failed", logrus.Fields{"payload": string(rawBody)})
		return c.Status(fiber.StatusInternalServerError).JSON(fiber.Map{"error": "internal_error", "message": "Webhook could not be processed"})
	}

	if outcome.Skipped != "" {
		return c.Status(fiber.StatusOK).JSON(fiber.Map{"ok": true, "skipped": outcome.Skipped})
	}
	if outcome.Attributed {
		cache.Delete(subscriptionCacheKey(outcome.UserID))
	}
	return c.Status(fiber.StatusOK).JSON(fiber.Map{
		"ok":        true,
		"paymentId": outcome.PaymentID,
		"status":    outcome.PaymentStatus,
	})
}

// HandleListPlans returns the static plan catalog.
func HandleListPlans(c *fiber.Ctx) error {
	svc := billing.NewServiceFromDB(database.GetDB())
	return c.Status(fiber.StatusOK).JSON(fiber.Map{"plans": svc.Catalog().List()})
}

// HandleGetSubscription returns the caller's current subscription row, the
// single source of truth the rest of the application reads. Rows are served
// from a short-lived redis cache that billing writes invalidate.
func HandleGetSubscription(c *fiber.Ctx) error {
	userCtx := usercontext.GetUserContext(c)
	if !userCtx.IsLoggedIn {
		return c.Status(fiber.StatusUnauthorized).JSON(fiber.Map{"error": "unauthorized", "message": "Authentication required"})
	}

	if cached, err := cache.Get(subscriptionCacheKey(userCtx.UserID)); err == nil && cached != "" {
		c.Set(fiber.HeaderContentType, fiber.MIMEApplicationJSON)
		return c.Status(fiber.StatusOK).SendString(cached)
	}

	svc := billing.NewServiceFromDB(database.GetDB())
	sub, err := svc.Subscription(userCtx.UserID)
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return c.Status(fiber.StatusNotFound).JSON(fiber.Map{"error": "not_found", "message": "No subscription for this user"})
		}
		logging.Error(err, "failed to load subscription", logrus.Fields{"user_id": userCtx.UserID})
		return c.Status(fiber.StatusInternalServerError).JSON(fiber.Map{"error": "internal_error", "message": "Failed to load subscription"})
	}

	if raw, err := json.Marshal(sub); err == nil {
		cache.Set(subscriptionCacheKey(userCtx.UserID), string(raw), subscriptionCacheTTL)
	}
	return c.Status(fiber.StatusOK).JSON(sub)
}

func nullable(s string) interface{} {
	if s == "" {
		return nil
	}
	return s
}
