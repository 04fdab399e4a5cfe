package middleware

import (
	"errors"
	"log"
	"strings"

	"github.com/gofiber/fiber/v2"
	"gorm.io/gorm"

	"github.com/naturesense/naturesense/app/repository"
	"github.com/naturesense/naturesense/internal/pkg/token"
	"github.com/naturesense/naturesense/internal/pkg/usercontext"
)

// Protect authenticates requests carrying a Bearer token and loads the user
// into the request context. Revoked tokens are rejected via the logout
// denylist.
func Protect() fiber.Handler {
	return func(c *fiber.Ctx) error {
		tokenString := extractBearerToken(c)
		if tokenString == "" {
			return unauthorized(c, "Missing authentication token")
		}

		claims, err := token.Verify(tokenString)
		if err != nil {
			return unauthorized(c, "Invalid or expired token")
		}

		if revoked, err := token.IsRevoked(c.Context(), claims.ID); err != nil {
			log.Printf("token revocation check failed: %v", err)
		} else if revoked {
			return unauthorized(c, "Token has been revoked")
		}

		userID, err := claims.UserID()
		if err != nil {
			return unauthorized(c, "Invalid token subject")
		}

		repo := repository.GetGlobalFactory().GetUserRepository()
		user, err := repo.GetByID(userID)
		if err != nil {
			if errors.Is(err, gorm.ErrRecordNotFound) {
				return unauthorized(c, "User no longer exists")
			}
			log.Printf("user lookup failed: %v", err)
			return c.Status(fiber.StatusInternalServerError).JSON(fiber.Map{
				"error":   "internal_server_error",
				"message": "Authentication lookup failed",
			})
		}

		usercontext.SetUserContext(c, usercontext.UserContext{
			UserID:     user.ID,
			Name:       user.Name,
			Email:      user.Email,
			Role:       user.Role,
			IsLoggedIn: true,
			IsAdmin:    user.IsAdmin(),
			TokenID:    claims.ID,
		})

		return c.Next()
	}
}

// RequireAdmin ensures the authenticated user has the admin role. Must run
// after Protect.
func RequireAdmin(c *fiber.Ctx) error {
	userCtx := usercontext.GetUserContext(c)
	if !userCtx.IsLoggedIn {
		return unauthorized(c, "Login required")
	}
	if !userCtx.IsAdmin {
		return c.Status(fiber.StatusForbidden).JSON(fiber.Map{
			"error":   "forbidden",
			"message": "Admin access required",
		})
	}
	return c.Next()
}

func unauthorized(c *fiber.Ctx, message string) error {
	return c.Status(fiber.StatusUnauthorized).JSON(fiber.Map{
		"error":   "unauthorized",
		"message": message,
	})
}

func extractBearerToken(c *fiber.Ctx) string {
	auth := strings.TrimSpace(c.Get(fiber.HeaderAuthorization))
	if strings.HasPrefix(strings.ToLower(auth), "bearer ") {
		return strings.TrimSpace(auth[7:])
	}
	return ""
}
