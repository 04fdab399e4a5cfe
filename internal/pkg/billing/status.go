package billing

import (
	"strings"

	"github.com/naturesense/naturesense/app/models"
)

// NormalizeStatus maps a provider subscription status onto the closed local
// enum. Provider statuses with no local counterpart collapse onto inactive
// (not yet paying) or past_due (payment trouble).
func NormalizeStatus(providerStatus string) string {
	switch strings.ToLower(strings.TrimSpace(providerStatus)) {
	case "active":
		return models.SubscriptionStatusActive
	case "trialing":
		return models.SubscriptionStatusTrialing
	case "past_due", "unpaid":
		return models.SubscriptionStatusPastDue
	case "canceled":
		return models.SubscriptionStatusCanceled
	default:
		// incomplete, incomplete_expired, paused, empty
		return models.SubscriptionStatusInactive
	}
}
