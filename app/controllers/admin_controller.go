package controllers

import (
	"encoding/json"
	"errors"
	"log"
	"math"
	"time"

	"github.com/gofiber/fiber/v2"
	"gorm.io/gorm"

	"github.com/naturesense/naturesense/app/models"
	"github.com/naturesense/naturesense/app/repository"
	"github.com/naturesense/naturesense/internal/pkg/analytics"
	"github.com/naturesense/naturesense/internal/pkg/cache"
)

const (
	applicationStatsCacheKey = "admin:application_stats"
	applicationStatsCacheTTL = 60 * time.Second
)

// HandleAdminGetUsers lists all users with pagination.
func HandleAdminGetUsers(c *fiber.Ctx) error {
	page, limit, offset := pageParams(c)

	repo := repository.GetGlobalFactory().GetUserRepository()
	users, err := repo.List(offset, limit)
	if err != nil {
		log.Printf("admin list users failed: %v", err)
		return internalError(c, "Server error")
	}
	total, err := repo.Count()
	if err != nil {
		return internalError(c, "Server error")
	}

	return c.JSON(fiber.Map{
		"users":      users,
		"pagination": paginationEnvelope("totalUsers", total, page, limit),
	})
}

// HandleAdminGetFarmers lists farmer accounts with pagination.
func HandleAdminGetFarmers(c *fiber.Ctx) error {
	page, limit, offset := pageParams(c)

	repo := repository.GetGlobalFactory().GetUserRepository()
	farmers, err := repo.ListByRole(models.ROLE_FARMER, offset, limit)
	if err != nil {
		log.Printf("admin list farmers failed: %v", err)
		return internalError(c, "Server error")
	}
	total, err := repo.CountByRole(models.ROLE_FARMER)
	if err != nil {
		return internalError(c, "Server error")
	}

	return c.JSON(fiber.Map{
		"users":      farmers,
		"pagination": paginationEnvelope("totalFarmers", total, page, limit),
	})
}

// HandleAdminApproveFarmer sets the approval flag on a farmer account.
func HandleAdminApproveFarmer(c *fiber.Ctx) error {
	id, err := c.ParamsInt("id")
	if err != nil || id < 1 {
		return jsonError(c, fiber.StatusBadRequest, "Invalid user id")
	}

	var req struct {
		IsApproved bool `json:"isApproved"`
	}
	if err := c.BodyParser(&req); err != nil {
		return jsonError(c, fiber.StatusBadRequest, "Invalid request body")
	}

	repo := repository.GetGlobalFactory().GetUserRepository()
	farmer, err := repo.GetByID(uint(id))
	if err != nil || farmer.Role != models.ROLE_FARMER {
		if err != nil && !errors.Is(err, gorm.ErrRecordNotFound) {
			log.Printf("admin approve farmer %d failed: %v", id, err)
			return internalError(c, "Server error")
		}
		return jsonError(c, fiber.StatusNotFound, "Farmer not found")
	}

	farmer.IsApproved = req.IsApproved
	if err := repo.Update(farmer); err != nil {
		log.Printf("admin approve farmer %d failed: %v", id, err)
		return internalError(c, "Server error")
	}
	return c.JSON(farmer)
}

// HandleAdminDeleteUser removes a farmer account.
func HandleAdminDeleteUser(c *fiber.Ctx) error {
	id, err := c.ParamsInt("id")
	if err != nil || id < 1 {
		return jsonError(c, fiber.StatusBadRequest, "Invalid user id")
	}

	repo := repository.GetGlobalFactory().GetUserRepository()
	farmer, err := repo.GetByID(uint(id))
	if err != nil || farmer.Role != models.ROLE_FARMER {
		if err != nil && !errors.Is(err, gorm.ErrRecordNotFound) {
			log.Printf("admin delete farmer %d failed: %v", id, err)
			return internalError(c, "Server error")
		}
		return jsonError(c, fiber.StatusNotFound, "Farmer not found")
	}

	if err := repo.Delete(farmer.ID); err != nil {
		log.Printf("admin delete farmer %d failed: %v", id, err)
		return internalError(c, "Server error")
	}
	return c.JSON(fiber.Map{"message": "Farmer deleted successfully"})
}

// HandleAdminGetFields lists all fields with their owners.
func HandleAdminGetFields(c *fiber.Ctx) error {
	page, limit, offset := pageParams(c)

	repo := repository.GetGlobalFactory().GetFieldRepository()
	fields, err := repo.List(offset, limit)
	if err != nil {
		log.Printf("admin list fields failed: %v", err)
		return internalError(c, "Server error")
	}
	total, err := repo.Count()
	if err != nil {
		return internalError(c, "Server error")
	}

	return c.JSON(fiber.Map{
		"fields":     fields,
		"pagination": paginationEnvelope("totalFields", total, page, limit),
	})
}

// HandleAdminGetField returns any field by ID, including its owner.
func HandleAdminGetField(c *fiber.Ctx) error {
	id, err := c.ParamsInt("id")
	if err != nil || id < 1 {
		return jsonError(c, fiber.StatusBadRequest, "Invalid field id")
	}

	repo := repository.GetGlobalFactory().GetFieldRepository()
	field, err := repo.GetByIDWithOwner(uint(id))
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return jsonError(c, fiber.StatusNotFound, "Field not found")
		}
		return internalError(c, "Server error")
	}
	return c.JSON(field)
}

// HandleAdminFieldAnalytics runs an assessment on any field, bypassing the
// subscription gate.
func HandleAdminFieldAnalytics(c *fiber.Ctx) error {
	id, err := c.ParamsInt("id")
	if err != nil || id < 1 {
		return jsonError(c, fiber.StatusBadRequest, "Invalid field id")
	}

	repo := repository.GetGlobalFactory().GetFieldRepository()
	field, err := repo.GetByID(uint(id))
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return jsonError(c, fiber.StatusNotFound, "Field not found")
		}
		return internalError(c, "Server error")
	}

	engine := analytics.NewEngine(time.Now().UnixNano())
	analytics.ApplyAssessment(field, engine.Analyze(field))
	if err := repo.Update(field); err != nil {
		log.Printf("admin analytics for field %d failed: %v", field.ID, err)
		return internalError(c, "Server error")
	}

	return c.JSON(fiber.Map{
		"soilHealth":      field.SoilHealth,
		"cropHealth":      field.CropHealth,
		"yieldTrends":     field.YieldTrends,
		"recommendations": field.Recommendations,
	})
}

type applicationStats struct {
	TotalUsers                     int64                     `json:"totalUsers"`
	TotalSubscribedUsers           int64                     `json:"totalSubscribedUsers"`
	TotalFarmers                   int64                     `json:"totalFarmers"`
	ApprovedFarmers                int64                     `json:"approvedFarmers"`
	TotalFields                    int64                     `json:"totalFields"`
	AverageYield                   int64                     `json:"averageYield"`
	SoilHealthDistribution         []repository.Distribution `json:"soilHealthDistribution"`
	CropHealthDistribution         []repository.Distribution `json:"cropHealthDistribution"`
	SubscriptionStatusDistribution []repository.Distribution `json:"subscriptionStatusDistribution"`
}

// HandleAdminApplicationStats aggregates application-wide statistics. The
// result is cached briefly since the dashboard polls it.
func HandleAdminApplicationStats(c *fiber.Ctx) error {
	if cached, err := cache.Get(applicationStatsCacheKey); err == nil && cached != "" {
		var stats applicationStats
		if err := json.Unmarshal([]byte(cached), &stats); err == nil {
			return c.JSON(stats)
		}
	}

	stats, err := collectApplicationStats()
	if err != nil {
		log.Printf("application stats failed: %v", err)
		return internalError(c, "Server error")
	}

	if raw, err := json.Marshal(stats); err == nil {
		if err := cache.Set(applicationStatsCacheKey, string(raw), applicationStatsCacheTTL); err != nil {
			log.Printf("application stats cache write failed: %v", err)
		}
	}
	return c.JSON(stats)
}

func collectApplicationStats() (*applicationStats, error) {
	factory := repository.GetGlobalFactory()
	users := factory.GetUserRepository()
	fields := factory.GetFieldRepository()

	stats := &applicationStats{}
	var err error

	if stats.TotalUsers, err = users.Count(); err != nil {
		return nil, err
	}
	if stats.TotalSubscribedUsers, err = users.CountBySubscriptionStatus(
		models.SubscriptionStatusActive, models.SubscriptionStatusTrialing,
	); err != nil {
		return nil, err
	}
	if stats.TotalFarmers, err = users.CountByRole(models.ROLE_FARMER); err != nil {
		return nil, err
	}
	if stats.ApprovedFarmers, err = users.CountApproved(models.ROLE_FARMER); err != nil {
		return nil, err
	}
	if stats.TotalFields, err = fields.Count(); err != nil {
		return nil, err
	}

	avgYield, err := fields.AverageYield()
	if err != nil {
		return nil, err
	}
	stats.AverageYield = int64(math.Round(avgYield))

	if stats.SoilHealthDistribution, err = fields.SoilHealthDistribution(); err != nil {
		return nil, err
	}
	if stats.CropHealthDistribution, err = fields.CropHealthDistribution(); err != nil {
		return nil, err
	}
	if stats.SubscriptionStatusDistribution, err = users.SubscriptionStatusDistribution(); err != nil {
		return nil, err
	}
	return stats, nil
}
