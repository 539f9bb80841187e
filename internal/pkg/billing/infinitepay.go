package billing

import (
	"bytes"
	"context"
	"encoding/json"
	"io"
	"net/http"
	"sort"
	"strings"
	"time"

	"github.com/theproject93/planejar-pro-sub001/app/models"
	"github.com/theproject93/planejar-pro-sub001/internal/pkg/env"
)

const defaultInfinitePayAPIBaseURL = "https://api.infinitepay.io"

// checkoutURLSearchDepth bounds the tree walk over the provider response so
// adversarial payloads cannot recurse without limit.
const checkoutURLSearchDepth = 8

var checkoutURLKeys = []string{
	"checkout_url",
	"payment_url",
	"url",
	"link",
	"invoice_url",
	"invoice_link",
}

var invoiceSlugKeys = []string{"invoice_slug", "slug"}

// InfinitePayClient talks to the redirect-checkout provider.
type InfinitePayClient struct {
	BaseURL string
	Handle  string

	HTTPClient *http.Client
}

func NewInfinitePayClientFromEnv() *InfinitePayClient {
	return &InfinitePayClient{
		BaseURL: strings.TrimRight(env.GetEnv("INFINITEPAY_API_URL", defaultInfinitePayAPIBaseURL), "/"),
		Handle:  strings.TrimSpace(env.GetEnv("INFINITEPAY_HANDLE", "")),
		HTTPClient: &http.Client{
			Timeout: 20 * time.Second,
		},
	}
}

// CreateCheckout requests a hosted checkout link. The provider nests the link
// at varying depths depending on account settings, so the response is probed
// rather than bound to a fixed schema.
func (c *InfinitePayClient) CreateCheckout(ctx context.Context, req CheckoutRequest) (*CheckoutResult, error) {
	if strings.TrimSpace(c.Handle) == "" {
		return nil, ErrNotConfigured
	}

	payload := map[string]interface{}{
		"handle":       c.Handle,
		"order_nsu":    req.OrderNSU,
		"redirect_url": req.RedirectURL,
		"webhook_url":  req.WebhookURL,
		"customer": map[string]interface{}{
			"email": req.PayerEmail,
		},
		"items": []map[string]interface{}{
			{
				"quantity":    1,
				"price":       req.AmountCents,
				"description": req.Description,
			},
		},
	}
	body, err := json.Marshal(payload)
	if err != nil {
		return nil, err
	}

	httpReq, err := http.NewRequestWithContext(ctx, http.MethodPost, c.BaseURL+"/invoices/public/checkout/links", bytes.NewReader(body))
	if err != nil {
		return nil, err
	}
	httpReq.Header.Set("Content-Type", "application/json")
	httpReq.Header.Set("Accept", "application/json")

	resp, err := c.HTTPClient.Do(httpReq)
	if err != nil {
		return nil, err
	}
	defer resp.Body.Close()

	respBody, _ := io.ReadAll(io.LimitReader(resp.Body, 1<<20))
	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return nil, &ProviderError{Provider: models.ProviderInfinitePay, StatusCode: resp.StatusCode, Body: string(respBody)}
	}

	var decoded interface{}
	if err := json.Unmarshal(respBody, &decoded); err != nil {
		return nil, ErrInvalidCheckoutPayload
	}

	checkoutURL := findFirstString(decoded, checkoutURLKeys, isURLLike, 0)
	if checkoutURL == "" {
		return nil, ErrInvalidCheckoutPayload
	}

	slug := findFirstString(decoded, invoiceSlugKeys, nonEmpty, 0)
	return &CheckoutResult{CheckoutURL: checkoutURL, InvoiceSlug: slug}, nil
}

// findFirstString walks the decoded JSON depth-first looking for one of the
// candidate keys holding a string accepted by the filter. Direct keys at a
// node win over nested matches; sibling keys are visited in sorted order so
// the search is deterministic.
func findFirstString(v interface{}, keys []string, accept func(string) bool, depth int) string {
	if depth > checkoutURLSearchDepth {
		return ""
	}
	switch node := v.(type) {
	case map[string]interface{}:
		for _, k := range keys {
			if s, ok := node[k].(string); ok && accept(s) {
				return s
			}
		}
		childKeys := make([]string, 0, len(node))
		for k := range node {
			childKeys = append(childKeys, k)
		}
		sort.Strings(childKeys)
		for _, k := range childKeys {
			if s := findFirstString(node[k], keys, accept, depth+1); s != "" {
				return s
			}
		}
	case []interface{}:
		for _, item := range node {
			if s := findFirstString(item, keys, accept, depth+1); s != "" {
				return s
			}
		}
	}
	return ""
}

func isURLLike(s string) bool {
	return strings.HasPrefix(s, "https://") || strings.HasPrefix(s, "http://")
}

func nonEmpty(s string) bool {
	return strings.TrimSpace(s) != ""
}
