package controllers

import (
	"errors"
	"log"
	"time"

	"github.com/gofiber/fiber/v2"
	"gorm.io/gorm"

	"github.com/naturesense/naturesense/app/models"
	"github.com/naturesense/naturesense/app/repository"
	"github.com/naturesense/naturesense/internal/pkg/token"
	"github.com/naturesense/naturesense/internal/pkg/usercontext"
)

type registerRequest struct {
	Name     string `json:"name"`
	Email    string `json:"email"`
	Password string `json:"password"`
	Role     string `json:"role"`
}

type loginRequest struct {
	Email    string `json:"email"`
	Password string `json:"password"`
}

// authResponse mirrors the original login/register contract.
func authResponse(user *models.User, signed string) fiber.Map {
	return fiber.Map{
		"id":    user.ID,
		"name":  user.Name,
		"email": user.Email,
		"role":  user.Role,
		"token": signed,
	}
}

// HandleRegister creates a user account and returns a fresh token.
func HandleRegister(c *fiber.Ctx) error {
	var req registerRequest
	if err := c.BodyParser(&req); err != nil {
		return jsonError(c, fiber.StatusBadRequest, "Invalid request body")
	}

	repo := repository.GetGlobalFactory().GetUserRepository()
	if _, err := repo.GetByEmail(req.Email); err == nil {
		return jsonError(c, fiber.StatusBadRequest, "User already exists")
	} else if !errors.Is(err, gorm.ErrRecordNotFound) {
		log.Printf("register: email lookup failed: %v", err)
		return internalError(c, "Registration failed")
	}

	user, err := models.CreateUser(req.Name, req.Email, req.Password, req.Role)
	if err != nil {
		return jsonError(c, fiber.StatusBadRequest, err.Error())
	}
	if err := repo.Create(user); err != nil {
		log.Printf("register: create failed: %v", err)
		return internalError(c, "Registration failed")
	}

	signed, err := token.Issue(user.ID, user.Role)
	if err != nil {
		log.Printf("register: token issue failed: %v", err)
		return internalError(c, "Registration failed")
	}
	return c.JSON(authResponse(user, signed))
}

// HandleLogin authenticates by email and password.
func HandleLogin(c *fiber.Ctx) error {
	return login(c, false)
}

// HandleAdminLogin authenticates like HandleLogin but rejects non-admins
// before checking the password.
func HandleAdminLogin(c *fiber.Ctx) error {
	return login(c, true)
}

func login(c *fiber.Ctx, adminOnly bool) error {
	var req loginRequest
	if err := c.BodyParser(&req); err != nil {
		return jsonError(c, fiber.StatusBadRequest, "Invalid request body")
	}

	repo := repository.GetGlobalFactory().GetUserRepository()
	user, err := repo.GetByEmail(req.Email)
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return jsonError(c, fiber.StatusUnauthorized, "Invalid credentials")
		}
		log.Printf("login: lookup failed: %v", err)
		return internalError(c, "Login failed")
	}

	if adminOnly && !user.IsAdmin() {
		return jsonError(c, fiber.StatusForbidden, "Access denied. Admins only.")
	}

	if !user.CheckPassword(req.Password) {
		return jsonError(c, fiber.StatusUnauthorized, "Invalid credentials")
	}

	now := time.Now()
	user.LastLoginAt = &now
	if err := repo.Update(user); err != nil {
		log.Printf("login: last login update failed for user %d: %v", user.ID, err)
	}

	signed, err := token.Issue(user.ID, user.Role)
	if err != nil {
		log.Printf("login: token issue failed: %v", err)
		return internalError(c, "Login failed")
	}
	return c.JSON(authResponse(user, signed))
}

// HandleVerifyToken confirms the presented token is valid.
func HandleVerifyToken(c *fiber.Ctx) error {
	userCtx := usercontext.GetUserContext(c)
	return c.JSON(fiber.Map{
		"message": "Token is valid",
		"user":    fiber.Map{"id": userCtx.UserID},
	})
}

// HandleGetProfile returns the authenticated user's account.
func HandleGetProfile(c *fiber.Ctx) error {
	userCtx := usercontext.GetUserContext(c)
	repo := repository.GetGlobalFactory().GetUserRepository()
	user, err := repo.GetByID(userCtx.UserID)
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return jsonError(c, fiber.StatusNotFound, "User not found")
		}
		return internalError(c, "Failed to load user")
	}
	return c.JSON(user)
}

// HandleLogout revokes the presented token for its remaining lifetime.
func HandleLogout(c *fiber.Ctx) error {
	userCtx := usercontext.GetUserContext(c)
	claims, err := token.Verify(extractBearer(c))
	if err == nil {
		if err := token.Revoke(c.Context(), claims.ID, claims.RemainingTTL()); err != nil {
			log.Printf("logout: revoke failed for user %d: %v", userCtx.UserID, err)
		}
	}
	return c.JSON(fiber.Map{"message": "Logged out successfully"})
}

func extractBearer(c *fiber.Ctx) string {
	auth := c.Get(fiber.HeaderAuthorization)
	if len(auth) > 7 && (auth[:7] == "Bearer " || auth[:7] == "bearer ") {
		return auth[7:]
	}
	return ""
}
