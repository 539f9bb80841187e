package billing

import (
	"testing"

	"github.com/theproject93/planejar-pro-sub001/app/models"
)

func TestMapPaymentStatus(t *testing.T) {
	tests := []struct {
		status string
		want   string
	}{
		{"approved", models.SubscriptionStatusActive},
		{"APPROVED", models.SubscriptionStatusActive},
		{"  approved  ", models.SubscriptionStatusActive},
		{"rejected", models.SubscriptionStatusPaymentFailed},
		{"cancelled", models.SubscriptionStatusPaymentFailed},
		{"pending", models.SubscriptionStatusPendingPayment},
		{"in_process", models.SubscriptionStatusPendingPayment},
		{"refunded", models.SubscriptionStatusPendingPayment},
		{"charged_back", models.SubscriptionStatusPendingPayment},
		{"something-new", models.SubscriptionStatusPendingPayment},
		{"", models.SubscriptionStatusPendingPayment},
	}
	for _, tt := range tests {
		if got := MapPaymentStatus(tt.status); got != tt.want {
			t.Fatalf("MapPaymentStatus(%q) = %q, want %q", tt.status, got, tt.want)
		}
	}
}
