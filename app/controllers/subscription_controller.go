package controllers

import (
	"errors"

	"github.com/gofiber/fiber/v2"
	"gorm.io/gorm"

	"github.com/naturesense/naturesense/app/repository"
	"github.com/naturesense/naturesense/internal/pkg/usercontext"
)

// HandleGetSubscription returns the authenticated user's subscription state.
func HandleGetSubscription(c *fiber.Ctx) error {
	userCtx := usercontext.GetUserContext(c)

	repo := repository.GetGlobalFactory().GetUserRepository()
	user, err := repo.GetByID(userCtx.UserID)
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return jsonError(c, fiber.StatusNotFound, "User not found")
		}
		return internalError(c, "Error fetching subscription data")
	}

	return c.JSON(fiber.Map{
		"subscriptionStatus": user.SubscriptionStatus,
		"subscriptionPlanId": user.SubscriptionPlanID,
		"subscriptionStart":  user.SubscriptionStart,
		"subscriptionEnd":    user.SubscriptionEnd,
		"trialEnd":           user.TrialEnd,
		"cancelAtPeriodEnd":  user.CancelAtPeriodEnd,
		"stripeCustomerId":   user.StripeCustomerID,
		"clientReferenceId":  user.ClientReferenceID,
	})
}
