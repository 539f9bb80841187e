package controllers_test

import (
	"bytes"
	"encoding/json"
	"io"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/DATA-DOG/go-sqlmock"
	"github.com/gofiber/fiber/v2"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/theproject93/planejar-pro-sub001/app/controllers"
	"github.com/theproject93/planejar-pro-sub001/internal/pkg/middleware"
	"github.com/theproject93/planejar-pro-sub001/internal/pkg/testutils"
)

const testJWTSecret = "test-secret"

func setupApp() *fiber.App {
	app := fiber.New()
	api := app.Group("/api/v1/billing")
	api.Get("/plans", controllers.HandleListPlans)
	api.Post("/webhook/mercadopago", controllers.HandlePaymentWebhook)
	api.Get("/subscription", middleware.BearerAuthMiddleware(), controllers.HandleGetSubscription)
	api.Post("/checkout", middleware.BearerAuthMiddleware(), controllers.HandleCreateCheckout)
	api.Post("/pix", middleware.BearerAuthMiddleware(), controllers.HandleCreatePixCharge)
	return app
}

func authedRequest(t *testing.T, method, target string, body []byte) *http.Request {
	return authedRequestAs(t, method, target, body, "user-1")
}

func authedRequestAs(t *testing.T, method, target string, body []byte, userID string) *http.Request {
	t.Helper()
	req := httptest.NewRequest(method, target, bytes.NewReader(body))
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("Authorization", "Bearer "+testutils.MakeToken(t, testJWTSecret, userID, "noiva@example.com"))
	return req
}

func decodeBody(t *testing.T, resp *http.Response) map[string]interface{} {
	t.Helper()
	raw, err := io.ReadAll(resp.Body)
	require.NoError(t, err)
	var body map[string]interface{}
	require.NoError(t, json.Unmarshal(raw, &body))
	return body
}

func TestListPlans(t *testing.T) {
	app := setupApp()

	resp, err := app.Test(httptest.NewRequest(http.MethodGet, "/api/v1/billing/plans", nil), -1)
	require.NoError(t, err)
	assert.Equal(t, http.StatusOK, resp.StatusCode)

	body := decodeBody(t, resp)
	plans, ok := body["plans"].([]interface{})
	require.True(t, ok)
	require.Len(t, plans, 3)
	first := plans[0].(map[string]interface{})
	assert.Equal(t, "essencial", first["id"])
	assert.Equal(t, float64(3900), first["amount_cents"])
}

func TestCheckoutRequiresAuth(t *testing.T) {
	app := setupApp()

	req := httptest.NewRequest(http.MethodPost, "/api/v1/billing/checkout", bytes.NewReader([]byte(`{"planId":"essencial"}`)))
	req.Header.Set("Content-Type", "application/json")

	resp, err := app.Test(req, -1)
	require.NoError(t, err)
	assert.Equal(t, http.StatusUnauthorized, resp.StatusCode)
	assert.Equal(t, "unauthorized", decodeBody(t, resp)["error"])
}

func TestCheckoutRejectsUnknownPlan(t *testing.T) {
	t.Setenv("JWT_SECRET", testJWTSecret)
	mock := testutils.SetupTestDB(t)
	app := setupApp()

	resp, err := app.Test(authedRequest(t, http.MethodPost, "/api/v1/billing/checkout", []byte(`{"planId":"enterprise"}`)), -1)
	require.NoError(t, err)
	assert.Equal(t, http.StatusBadRequest, resp.StatusCode)
	assert.Equal(t, "invalid_plan", decodeBody(t, resp)["error"])

	// unknown plan must not touch the store
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestCheckoutRejectsMissingPlan(t *testing.T) {
	t.Setenv("JWT_SECRET", testJWTSecret)
	testutils.SetupTestDB(t)
	app := setupApp()

	resp, err := app.Test(authedRequest(t, http.MethodPost, "/api/v1/billing/checkout", []byte(`{}`)), -1)
	require.NoError(t, err)
	assert.Equal(t, http.StatusBadRequest, resp.StatusCode)
	assert.Equal(t, "invalid_plan", decodeBody(t, resp)["error"])
}

func TestCheckoutSuccess(t *testing.T) {
	provider := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		require.Equal(t, "/invoices/public/checkout/links", r.URL.Path)
		w.Write([]byte(`{"data": {"url": "https://checkout.infinitepay.io/planejarpro/abc", "slug": "abc"}}`))
	}))
	defer provider.Close()

	t.Setenv("JWT_SECRET", testJWTSecret)
	t.Setenv("INFINITEPAY_API_URL", provider.URL)
	t.Setenv("INFINITEPAY_HANDLE", "planejarpro")
	t.Setenv("BILLING_WEBHOOK_URL", "https://app.example.com/api/v1/billing/webhook/mercadopago")
	t.Setenv("BILLING_REDIRECT_URL", "https://app.example.com/billing/return")

	mock := testutils.SetupTestDB(t)
	mock.ExpectQuery(`INSERT INTO "subscriptions"`).
		WillReturnRows(sqlmock.NewRows([]string{"id"}).AddRow(1))

	app := setupApp()
	resp, err := app.Test(authedRequest(t, http.MethodPost, "/api/v1/billing/checkout", []byte(`{"planId":"essencial"}`)), -1)
	require.NoError(t, err)
	assert.Equal(t, http.StatusOK, resp.StatusCode)

	body := decodeBody(t, resp)
	assert.Equal(t, true, body["ok"])
	assert.Equal(t, "infinitepay", body["provider"])
	assert.Equal(t, "https://checkout.infinitepay.io/planejarpro/abc", body["checkoutUrl"])
	assert.Equal(t, "abc", body["invoiceSlug"])
	assert.Equal(t, "essencial", body["planId"])
	assert.Equal(t, float64(3900), body["amountCents"])
	assert.Contains(t, body["orderNsu"], "user-1:essencial:")

	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestCheckoutProviderRejection(t *testing.T) {
	provider := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusUnprocessableEntity)
		w.Write([]byte(`{"error": "invalid handle"}`))
	}))
	defer provider.Close()

	t.Setenv("JWT_SECRET", testJWTSecret)
	t.Setenv("INFINITEPAY_API_URL", provider.URL)
	t.Setenv("INFINITEPAY_HANDLE", "planejarpro")
	t.Setenv("BILLING_WEBHOOK_URL", "https://app.example.com/hook")
	t.Setenv("BILLING_REDIRECT_URL", "https://app.example.com/return")

	mock := testutils.SetupTestDB(t)
	app := setupApp()

	resp, err := app.Test(authedRequest(t, http.MethodPost, "/api/v1/billing/checkout", []byte(`{"planId":"essencial"}`)), -1)
	require.NoError(t, err)
	// provider 4xx is attributable to the request, not a gateway fault
	assert.Equal(t, http.StatusBadRequest, resp.StatusCode)
	assert.Equal(t, "infinitepay_checkout_failed", decodeBody(t, resp)["error"])

	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestCheckoutMisconfigured(t *testing.T) {
	t.Setenv("JWT_SECRET", testJWTSecret)
	t.Setenv("BILLING_WEBHOOK_URL", "")
	t.Setenv("BILLING_REDIRECT_URL", "")
	testutils.SetupTestDB(t)
	app := setupApp()

	resp, err := app.Test(authedRequest(t, http.MethodPost, "/api/v1/billing/checkout", []byte(`{"planId":"essencial"}`)), -1)
	require.NoError(t, err)
	assert.Equal(t, http.StatusInternalServerError, resp.StatusCode)
	assert.Equal(t, "server_misconfigured", decodeBody(t, resp)["error"])
}

func TestPixChargeSuccess(t *testing.T) {
	provider := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		require.Equal(t, "/v1/payments", r.URL.Path)
		require.NotEmpty(t, r.Header.Get("X-Idempotency-Key"))
		w.Write([]byte(`{
			"id": 123456,
			"status": "pending",
			"transaction_amount": 39.0,
			"currency_id": "BRL",
			"point_of_interaction": {
				"transaction_data": {"qr_code": "00020126pix-code", "qr_code_base64": "aW1hZ2U="}
			}
		}`))
	}))
	defer provider.Close()

	t.Setenv("JWT_SECRET", testJWTSecret)
	t.Setenv("MERCADOPAGO_API_URL", provider.URL)
	t.Setenv("MERCADOPAGO_ACCESS_TOKEN", "TEST-TOKEN")
	t.Setenv("BILLING_WEBHOOK_URL", "https://app.example.com/hook")

	mock := testutils.SetupTestDB(t)
	mock.ExpectQuery(`INSERT INTO "subscriptions"`).
		WillReturnRows(sqlmock.NewRows([]string{"id"}).AddRow(1))
	mock.ExpectQuery(`INSERT INTO "payments"`).
		WillReturnRows(sqlmock.NewRows([]string{"id"}).AddRow(1))

	app := setupApp()
	resp, err := app.Test(authedRequest(t, http.MethodPost, "/api/v1/billing/pix", []byte(`{"planId":"essencial"}`)), -1)
	require.NoError(t, err)
	assert.Equal(t, http.StatusOK, resp.StatusCode)

	body := decodeBody(t, resp)
	assert.Equal(t, true, body["ok"])
	assert.Equal(t, "123456", body["paymentId"])
	assert.Equal(t, "pending", body["status"])
	assert.Equal(t, "00020126pix-code", body["qrCode"])
	assert.Nil(t, body["ticketUrl"])

	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestPixChargeProviderDown(t *testing.T) {
	provider := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusInternalServerError)
		w.Write([]byte(`{"message": "gateway exploded"}`))
	}))
	defer provider.Close()

	t.Setenv("JWT_SECRET", testJWTSecret)
	t.Setenv("MERCADOPAGO_API_URL", provider.URL)
	t.Setenv("MERCADOPAGO_ACCESS_TOKEN", "TEST-TOKEN")

	testutils.SetupTestDB(t)
	app := setupApp()

	resp, err := app.Test(authedRequest(t, http.MethodPost, "/api/v1/billing/pix", []byte(`{"planId":"essencial"}`)), -1)
	require.NoError(t, err)
	assert.Equal(t, http.StatusBadGateway, resp.StatusCode)
	assert.Equal(t, "mercadopago_pix_failed", decodeBody(t, resp)["error"])
}

func TestWebhookMissingPaymentID(t *testing.T) {
	mock := testutils.SetupTestDB(t)
	app := setupApp()

	req := httptest.NewRequest(http.MethodPost, "/api/v1/billing/webhook/mercadopago", bytes.NewReader([]byte(`{"action":"payment.updated","type":"payment"}`)))
	req.Header.Set("Content-Type", "application/json")

	resp, err := app.Test(req, -1)
	require.NoError(t, err)
	assert.Equal(t, http.StatusOK, resp.StatusCode)

	body := decodeBody(t, resp)
	assert.Equal(t, true, body["ok"])
	assert.Equal(t, "missing_payment_id", body["skipped"])

	// a skipped delivery leaves the store untouched
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestWebhookApprovedPayment(t *testing.T) {
	provider := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		require.Equal(t, "/v1/payments/555", r.URL.Path)
		w.Write([]byte(`{
			"id": 555,
			"status": "approved",
			"status_detail": "accredited",
			"external_reference": "user-1:essencial:1700000000000",
			"transaction_amount": 39.0,
			"currency_id": "BRL",
			"payer": {"email": "noiva@example.com"}
		}`))
	}))
	defer provider.Close()

	t.Setenv("MERCADOPAGO_API_URL", provider.URL)
	t.Setenv("MERCADOPAGO_ACCESS_TOKEN", "TEST-TOKEN")

	mock := testutils.SetupTestDB(t)
	mock.ExpectQuery(`INSERT INTO "webhook_events"`).
		WillReturnRows(sqlmock.NewRows([]string{"id"}).AddRow(1))
	mock.ExpectQuery(`SELECT .* FROM "webhook_events"`).
		WillReturnRows(sqlmock.NewRows([]string{"id", "provider", "provider_event_id"}).AddRow(1, "mercadopago", "evt-1"))
	mock.ExpectQuery(`INSERT INTO "payments"`).
		WillReturnRows(sqlmock.NewRows([]string{"id"}).AddRow(1))
	mock.ExpectQuery(`INSERT INTO "subscriptions"`).
		WillReturnRows(sqlmock.NewRows([]string{"id"}).AddRow(1))
	mock.ExpectExec(`UPDATE "webhook_events"`).
		WillReturnResult(sqlmock.NewResult(0, 1))

	app := setupApp()
	req := httptest.NewRequest(http.MethodPost, "/api/v1/billing/webhook/mercadopago?data.id=555", nil)
	req.Header.Set("X-Request-Id", "evt-1")

	resp, err := app.Test(req, -1)
	require.NoError(t, err)
	assert.Equal(t, http.StatusOK, resp.StatusCode)

	body := decodeBody(t, resp)
	assert.Equal(t, true, body["ok"])
	assert.Equal(t, "555", body["paymentId"])
	assert.Equal(t, "approved", body["status"])

	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestWebhookFetchFailure(t *testing.T) {
	provider := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusInternalServerError)
		w.Write([]byte(`{"message": "downstream unavailable"}`))
	}))
	defer provider.Close()

	t.Setenv("MERCADOPAGO_API_URL", provider.URL)
	t.Setenv("MERCADOPAGO_ACCESS_TOKEN", "TEST-TOKEN")

	mock := testutils.SetupTestDB(t)
	mock.ExpectQuery(`INSERT INTO "webhook_events"`).
		WillReturnRows(sqlmock.NewRows([]string{"id"}).AddRow(1))
	mock.ExpectQuery(`SELECT .* FROM "webhook_events"`).
		WillReturnRows(sqlmock.NewRows([]string{"id"}).AddRow(1))
	mock.ExpectExec(`UPDATE "webhook_events"`).
		WillReturnResult(sqlmock.NewResult(0, 1))

	app := setupApp()
	req := httptest.NewRequest(http.MethodPost, "/api/v1/billing/webhook/mercadopago?data.id=555", nil)
	req.Header.Set("X-Request-Id", "evt-2")

	resp, err := app.Test(req, -1)
	require.NoError(t, err)
	assert.Equal(t, http.StatusBadGateway, resp.StatusCode)
	assert.Equal(t, "mercadopago_payment_fetch_failed", decodeBody(t, resp)["error"])

	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestGetSubscription(t *testing.T) {
	t.Setenv("JWT_SECRET", testJWTSecret)
	mock := testutils.SetupTestDB(t)
	mock.ExpectQuery(`SELECT .* FROM "subscriptions"`).
		WillReturnRows(sqlmock.NewRows([]string{"id", "user_id", "provider", "status", "plan_id", "amount_cents"}).
			AddRow(1, "user-sub-ok", "mercadopago", "active", "essencial", 3900))

	app := setupApp()
	resp, err := app.Test(authedRequestAs(t, http.MethodGet, "/api/v1/billing/subscription", nil, "user-sub-ok"), -1)
	require.NoError(t, err)
	assert.Equal(t, http.StatusOK, resp.StatusCode)

	body := decodeBody(t, resp)
	assert.Equal(t, "user-sub-ok", body["user_id"])
	assert.Equal(t, "active", body["status"])
	assert.Equal(t, float64(3900), body["amount_cents"])

	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestGetSubscriptionNotFound(t *testing.T) {
	t.Setenv("JWT_SECRET", testJWTSecret)
	mock := testutils.SetupTestDB(t)
	mock.ExpectQuery(`SELECT .* FROM "subscriptions"`).
		WillReturnRows(sqlmock.NewRows([]string{"id"}))

	app := setupApp()
	resp, err := app.Test(authedRequestAs(t, http.MethodGet, "/api/v1/billing/subscription", nil, "user-sub-missing"), -1)
	require.NoError(t, err)
	assert.Equal(t, http.StatusNotFound, resp.StatusCode)
	assert.Equal(t, "not_found", decodeBody(t, resp)["error"])

	assert.NoError(t, mock.ExpectationsWereMet())
}
