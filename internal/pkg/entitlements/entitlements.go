package entitlements

import (
	"github.com/naturesense/naturesense/app/models"
)

// Feature is a paid capability gated on subscription state.
type Feature string

const (
	FeatureFieldAnalytics Feature = "field_analytics"
	FeatureFieldStats     Feature = "field_stats"
)

// IsEntitled reports whether the user may use a paid feature. Admins are
// always entitled; everyone else needs an active or trialing subscription.
func IsEntitled(u *models.User, f Feature) bool {
	if u == nil {
		return false
	}
	if u.IsAdmin() {
		return true
	}
	switch f {
	case FeatureFieldAnalytics:
		return u.HasActiveSubscription()
	case FeatureFieldStats:
		return true
	default:
		return false
	}
}
