package billing

import (
	"bytes"
	"encoding/json"
	"regexp"
	"strings"
)

var paymentPathPattern = regexp.MustCompile(`/payments/(\d+)`)

// ExtractPaymentID pulls a provider payment id out of a webhook delivery.
// Providers notify in several shapes: query parameters (data.id, id), JSON
// bodies with id or resource fields, nested data objects, and bodies that use
// the literal "data.id" key. Candidates are tried in that order; a candidate
// shaped like a "/payments/<digits>" path yields the digits, anything else is
// used verbatim. Returns "" when nothing usable is found.
func ExtractPaymentID(query map[string]string, body []byte) string {
	for _, key := range []string{"data.id", "id"} {
		if id := normalizePaymentID(query[key]); id != "" {
			return id
		}
	}

	if len(bytes.TrimSpace(body)) == 0 {
		return ""
	}
	decoder := json.NewDecoder(bytes.NewReader(body))
	decoder.UseNumber()
	var decoded map[string]interface{}
	if err := decoder.Decode(&decoded); err != nil {
		return ""
	}

	candidates := []interface{}{
		decoded["id"],
		decoded["resource"],
	}
	if data, ok := decoded["data"].(map[string]interface{}); ok {
		candidates = append(candidates, data["id"])
	}
	candidates = append(candidates, decoded["data.id"])

	for _, candidate := range candidates {
		if id := normalizePaymentID(candidateString(candidate)); id != "" {
			return id
		}
	}
	return ""
}

func candidateString(v interface{}) string {
	switch s := v.(type) {
	case string:
		return s
	case json.Number:
		return s.String()
	default:
		return ""
	}
}

func normalizePaymentID(raw string) string {
	raw = strings.TrimSpace(raw)
	if raw == "" {
		return ""
	}
	if m := paymentPathPattern.FindStringSubmatch(raw); m != nil {
		return m[1]
	}
	return raw
}
