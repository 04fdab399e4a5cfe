package controllers

import (
	"errors"
	"log"
	"time"

	"github.com/gofiber/fiber/v2"
	"gorm.io/gorm"

	"github.com/naturesense/naturesense/app/models"
	"github.com/naturesense/naturesense/app/repository"
	"github.com/naturesense/naturesense/internal/pkg/analytics"
	"github.com/naturesense/naturesense/internal/pkg/entitlements"
	"github.com/naturesense/naturesense/internal/pkg/usercontext"
)

type fieldRequest struct {
	Name      string  `json:"name"`
	Latitude  float64 `json:"latitude"`
	Longitude float64 `json:"longitude"`
	CropType  string  `json:"crop_type"`
	AreaSize  float64 `json:"area_size"`
}

// HandleGetFields lists the authenticated user's fields with pagination,
// optional crop type filtering and sorting.
func HandleGetFields(c *fiber.Ctx) error {
	userCtx := usercontext.GetUserContext(c)
	page, limit, offset := pageParams(c)

	opts := repository.ListOptions{
		Offset:   offset,
		Limit:    limit,
		CropType: c.Query("cropType"),
		Sort:     c.Query("sort"),
	}

	repo := repository.GetGlobalFactory().GetFieldRepository()
	fields, err := repo.ListByUserID(userCtx.UserID, opts)
	if err != nil {
		log.Printf("list fields failed for user %d: %v", userCtx.UserID, err)
		return internalError(c, "Error fetching fields")
	}
	total, err := repo.CountByUserID(userCtx.UserID, opts.CropType)
	if err != nil {
		return internalError(c, "Error fetching fields")
	}

	return c.JSON(fiber.Map{
		"fields":     fields,
		"pagination": paginationEnvelope("totalFields", total, page, limit),
	})
}

// HandleGetField returns one field owned by the authenticated user.
func HandleGetField(c *fiber.Ctx) error {
	userCtx := usercontext.GetUserContext(c)
	id, err := c.ParamsInt("id")
	if err != nil || id < 1 {
		return jsonError(c, fiber.StatusBadRequest, "Invalid field id")
	}

	repo := repository.GetGlobalFactory().GetFieldRepository()
	field, err := repo.GetByIDForUser(uint(id), userCtx.UserID)
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return jsonError(c, fiber.StatusNotFound, "Field not found")
		}
		return internalError(c, "Error fetching field")
	}
	return c.JSON(field)
}

// HandleCreateField creates a field owned by the authenticated user.
func HandleCreateField(c *fiber.Ctx) error {
	userCtx := usercontext.GetUserContext(c)

	var req fieldRequest
	if err := c.BodyParser(&req); err != nil {
		return jsonError(c, fiber.StatusBadRequest, "Invalid request body")
	}

	field := &models.Field{
		Name:       req.Name,
		Latitude:   req.Latitude,
		Longitude:  req.Longitude,
		CropType:   req.CropType,
		AreaSize:   req.AreaSize,
		SoilHealth: models.HealthUnknown,
		CropHealth: models.HealthUnknown,
		UserID:     userCtx.UserID,
	}
	if err := field.Validate(); err != nil {
		return jsonError(c, fiber.StatusBadRequest, err.Error())
	}

	repo := repository.GetGlobalFactory().GetFieldRepository()
	if err := repo.Create(field); err != nil {
		log.Printf("create field failed for user %d: %v", userCtx.UserID, err)
		return internalError(c, "Error adding field")
	}
	return c.Status(fiber.StatusCreated).JSON(field)
}

// HandleUpdateField updates a field owned by the authenticated user.
func HandleUpdateField(c *fiber.Ctx) error {
	userCtx := usercontext.GetUserContext(c)
	id, err := c.ParamsInt("id")
	if err != nil || id < 1 {
		return jsonError(c, fiber.StatusBadRequest, "Invalid field id")
	}

	var req fieldRequest
	if err := c.BodyParser(&req); err != nil {
		return jsonError(c, fiber.StatusBadRequest, "Invalid request body")
	}

	repo := repository.GetGlobalFactory().GetFieldRepository()
	field, err := repo.GetByIDForUser(uint(id), userCtx.UserID)
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return jsonError(c, fiber.StatusNotFound, "Field not found")
		}
		return internalError(c, "Error updating field")
	}

	if req.Name != "" {
		field.Name = req.Name
	}
	if req.CropType != "" {
		field.CropType = req.CropType
	}
	if req.AreaSize > 0 {
		field.AreaSize = req.AreaSize
	}
	if req.Latitude != 0 || req.Longitude != 0 {
		field.Latitude = req.Latitude
		field.Longitude = req.Longitude
	}
	if err := field.Validate(); err != nil {
		return jsonError(c, fiber.StatusBadRequest, err.Error())
	}

	if err := repo.Update(field); err != nil {
		log.Printf("update field %d failed: %v", field.ID, err)
		return internalError(c, "Error updating field")
	}
	return c.JSON(field)
}

// HandleDeleteField deletes a field owned by the authenticated user.
func HandleDeleteField(c *fiber.Ctx) error {
	userCtx := usercontext.GetUserContext(c)
	id, err := c.ParamsInt("id")
	if err != nil || id < 1 {
		return jsonError(c, fiber.StatusBadRequest, "Invalid field id")
	}

	repo := repository.GetGlobalFactory().GetFieldRepository()
	if _, err := repo.GetByIDForUser(uint(id), userCtx.UserID); err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return jsonError(c, fiber.StatusNotFound, "Field not found")
		}
		return internalError(c, "Error deleting field")
	}
	if err := repo.Delete(uint(id)); err != nil {
		log.Printf("delete field %d failed: %v", id, err)
		return internalError(c, "Error deleting field")
	}
	return c.JSON(fiber.Map{"message": "Field deleted successfully"})
}

// HandleGetFieldStats returns aggregate statistics over the user's fields.
func HandleGetFieldStats(c *fiber.Ctx) error {
	userCtx := usercontext.GetUserContext(c)

	repo := repository.GetGlobalFactory().GetFieldRepository()
	stats, err := repo.StatsByUserID(userCtx.UserID)
	if err != nil {
		log.Printf("field stats failed for user %d: %v", userCtx.UserID, err)
		return internalError(c, "Error fetching field stats")
	}
	return c.JSON(stats)
}

// HandleAnalyzeField runs a health assessment on one of the user's fields.
// Requires an active or trialing subscription.
func HandleAnalyzeField(c *fiber.Ctx) error {
	userCtx := usercontext.GetUserContext(c)
	id, err := c.ParamsInt("id")
	if err != nil || id < 1 {
		return jsonError(c, fiber.StatusBadRequest, "Invalid field id")
	}

	userRepo := repository.GetGlobalFactory().GetUserRepository()
	user, err := userRepo.GetByID(userCtx.UserID)
	if err != nil {
		return internalError(c, "Error analyzing field")
	}
	if !entitlements.IsEntitled(user, entitlements.FeatureFieldAnalytics) {
		return jsonError(c, fiber.StatusPaymentRequired, "Active subscription required")
	}

	repo := repository.GetGlobalFactory().GetFieldRepository()
	field, err := repo.GetByIDForUser(uint(id), userCtx.UserID)
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return jsonError(c, fiber.StatusNotFound, "Field not found")
		}
		return internalError(c, "Error analyzing field")
	}

	engine := analytics.NewEngine(time.Now().UnixNano())
	assessment := engine.Analyze(field)
	analytics.ApplyAssessment(field, assessment)

	if err := repo.Update(field); err != nil {
		log.Printf("persist analysis for field %d failed: %v", field.ID, err)
		return internalError(c, "Error analyzing field")
	}

	return c.JSON(fiber.Map{
		"soilHealth":      field.SoilHealth,
		"cropHealth":      field.CropHealth,
		"yieldTrends":     field.YieldTrends,
		"recommendations": field.Recommendations,
	})
}
