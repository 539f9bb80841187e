package billing

import (
	"strings"

	"github.com/theproject93/planejar-pro-sub001/app/models"
)

// MapPaymentStatus maps a provider payment status onto the subscription state
// machine. The function is total: every input, including unrecognized and
// empty ones, maps to exactly one internal status. It carries no ordering
// guard, so a stale "pending" delivered after an "approved" rewinds the
// subscription; downstream billing is expected to tolerate that.
func MapPaymentStatus(providerStatus string) string {
	switch strings.ToLower(strings.TrimSpace(providerStatus)) {
	case "approved":
		return models.SubscriptionStatusActive
	case "rejected", "cancelled":
		return models.SubscriptionStatusPaymentFailed
	default:
		// pending, in_process, anything else or absent
		return models.SubscriptionStatusPendingPayment
	}
}
