package billing

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/google/uuid"

	"github.com/theproject93/planejar-pro-sub001/app/models"
	"github.com/theproject93/planejar-pro-sub001/internal/pkg/env"
)

const defaultMercadoPagoAPIBaseURL = "https://api.mercadopago.com"

// MercadoPagoClient talks to the direct-charge provider.
type MercadoPagoClient struct {
	BaseURL     string
	AccessToken string

	HTTPClient *http.Client
}

func NewMercadoPagoClientFromEnv() *MercadoPagoClient {
	return &MercadoPagoClient{
		BaseURL:     strings.TrimRight(env.GetEnv("MERCADOPAGO_API_URL", defaultMercadoPagoAPIBaseURL), "/"),
		AccessToken: strings.TrimSpace(env.GetEnv("MERCADOPAGO_ACCESS_TOKEN", "")),
		HTTPClient: &http.Client{
			Timeout: 20 * time.Second,
		},
	}
}

// CreatePixCharge creates a PIX payment. The idempotency key is a fresh
// random token per call: a retried client request deliberately opens a second
// charge attempt (PIX charges are cheap to cancel, the UI debounces).
func (c *MercadoPagoClient) CreatePixCharge(ctx context.Context, req PixChargeRequest) (*ProviderPayment, error) {
	if c.AccessToken == "" {
		return nil, ErrNotConfigured
	}

	payload := map[string]interface{}{
		"transaction_amount": float64(req.AmountCents) / 100,
		"description":        req.Description,
		"payment_method_id":  "pix",
		"external_reference": req.ExternalReference,
		"payer": map[string]interface{}{
			"email": req.PayerEmail,
		},
		"metadata": map[string]interface{}{
			"user_id": req.UserID,
			"plan_id": req.PlanID,
		},
	}
	if req.NotificationURL != "" {
		payload["notification_url"] = req.NotificationURL
	}
	body, err := json.Marshal(payload)
	if err != nil {
		return nil, err
	}

	httpReq, err := http.NewRequestWithContext(ctx, http.MethodPost, c.BaseURL+"/v1/payments", bytes.NewReader(body))
	if err != nil {
		return nil, err
	}
	httpReq.Header.Set("Content-Type", "application/json")
	httpReq.Header.Set("Accept", "application/json")
	httpReq.Header.Set("Authorization", "Bearer "+c.AccessToken)
	httpReq.Header.Set("X-Idempotency-Key", uuid.NewString())

	resp, err := c.HTTPClient.Do(httpReq)
	if err != nil {
		return nil, err
	}
	defer resp.Body.Close()

	respBody, _ := io.ReadAll(io.LimitReader(resp.Body, 1<<20))
	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return nil, &ProviderError{Provider: models.ProviderMercadoPago, StatusCode: resp.StatusCode, Body: string(respBody)}
	}

	return parseProviderPayment(respBody)
}

// FetchPayment loads the canonical payment state. The webhook resolver never
// trusts status fields in webhook bodies, only this lookup.
func (c *MercadoPagoClient) FetchPayment(ctx context.Context, paymentID string) (*ProviderPayment, error) {
	if c.AccessToken == "" {
		return nil, fmt.Errorf("%w: access token missing", ErrPaymentFetch)
	}

	endpoint := c.BaseURL + "/v1/payments/" + url.PathEscape(paymentID)
	httpReq, err := http.NewRequestWithContext(ctx, http.MethodGet, endpoint, nil)
	if err != nil {
		return nil, err
	}
	httpReq.Header.Set("Accept", "application/json")
	httpReq.Header.Set("Authorization", "Bearer "+c.AccessToken)

	resp, err := c.HTTPClient.Do(httpReq)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrPaymentFetch, err)
	}
	defer resp.Body.Close()

	respBody, _ := io.ReadAll(io.LimitReader(resp.Body, 1<<20))
	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return nil, fmt.Errorf("%w: status=%d body=%s", ErrPaymentFetch, resp.StatusCode, string(respBody))
	}

	payment, err := parseProviderPayment(respBody)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrPaymentFetch, err)
	}
	return payment, nil
}

type mercadoPagoPaymentPayload struct {
	ID                json.Number `json:"id"`
	Status            string      `json:"status"`
	StatusDetail      string      `json:"status_detail"`
	ExternalReference string      `json:"external_reference"`
	PaymentMethodID   string      `json:"payment_method_id"`
	PaymentTypeID     string      `json:"payment_type_id"`
	TransactionAmount float64     `json:"transaction_amount"`
	CurrencyID        string      `json:"currency_id"`
	Payer             struct {
		Email string `json:"email"`
	} `json:"payer"`
	Metadata struct {
		UserID string `json:"user_id"`
		PlanID string `json:"plan_id"`
	} `json:"metadata"`
	PointOfInteraction struct {
		TransactionData struct {
			QRCode       string `json:"qr_code"`
			QRCodeBase64 string `json:"qr_code_base64"`
			TicketURL    string `json:"ticket_url"`
		} `json:"transaction_data"`
	} `json:"point_of_interaction"`
}

func parseProviderPayment(body []byte) (*ProviderPayment, error) {
	var raw mercadoPagoPaymentPayload
	if err := json.Unmarshal(body, &raw); err != nil {
		return nil, err
	}

	return &ProviderPayment{
		ID:                raw.ID.String(),
		Status:            raw.Status,
		StatusDetail:      raw.StatusDetail,
		ExternalReference: raw.ExternalReference,
		PaymentMethodID:   raw.PaymentMethodID,
		PaymentTypeID:     raw.PaymentTypeID,
		TransactionAmount: raw.TransactionAmount,
		CurrencyID:        raw.CurrencyID,
		PayerEmail:        strings.TrimSpace(raw.Payer.Email),
		MetadataUserID:    strings.TrimSpace(raw.Metadata.UserID),
		MetadataPlanID:    strings.TrimSpace(raw.Metadata.PlanID),
		QRCode:            raw.PointOfInteraction.TransactionData.QRCode,
		QRCodeBase64:      raw.PointOfInteraction.TransactionData.QRCodeBase64,
		TicketURL:         raw.PointOfInteraction.TransactionData.TicketURL,
		RawJSON:           string(body),
	}, nil
}
