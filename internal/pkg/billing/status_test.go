package billing

import (
	"testing"

	"github.com/naturesense/naturesense/app/models"
)

func TestNormalizeStatus(t *testing.T) {
	tests := []struct {
		in   string
		want string
	}{
		{in: "active", want: models.SubscriptionStatusActive},
		{in: "ACTIVE", want: models.SubscriptionStatusActive},
		{in: "trialing", want: models.SubscriptionStatusTrialing},
		{in: "past_due", want: models.SubscriptionStatusPastDue},
		{in: "unpaid", want: models.SubscriptionStatusPastDue},
		{in: "canceled", want: models.SubscriptionStatusCanceled},
		{in: "incomplete", want: models.SubscriptionStatusInactive},
		{in: "incomplete_expired", want: models.SubscriptionStatusInactive},
		{in: "paused", want: models.SubscriptionStatusInactive},
		{in: "", want: models.SubscriptionStatusInactive},
	}

	for _, tt := range tests {
		if got := NormalizeStatus(tt.in); got != tt.want {
			t.Fatalf("NormalizeStatus(%q) = %q, want %q", tt.in, got, tt.want)
		}
	}
}
