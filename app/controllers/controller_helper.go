package controllers

import (
	"github.com/gofiber/fiber/v2"
)

const (
	defaultPageSize = 10
	maxPageSize     = 100
)

// pageParams reads page/limit query parameters with the original API defaults.
func pageParams(c *fiber.Ctx) (page, limit, offset int) {
	page = c.QueryInt("page", 1)
	if page < 1 {
		page = 1
	}
	limit = c.QueryInt("limit", defaultPageSize)
	if limit < 1 {
		limit = defaultPageSize
	}
	if limit > maxPageSize {
		limit = maxPageSize
	}
	return page, limit, (page - 1) * limit
}

// paginationEnvelope builds the pagination metadata object. totalKey varies by
// endpoint ("totalFields", "totalUsers", "totalFarmers").
func paginationEnvelope(totalKey string, total int64, page, limit int) fiber.Map {
	totalPages := int((total + int64(limit) - 1) / int64(limit))
	return fiber.Map{
		totalKey:      total,
		"currentPage": page,
		"totalPages":  totalPages,
		"hasNextPage": int64(page*limit) < total,
		"hasPrevPage": page > 1,
	}
}

func jsonError(c *fiber.Ctx, status int, message string) error {
	return c.Status(status).JSON(fiber.Map{"message": message})
}

func internalError(c *fiber.Ctx, message string) error {
	return jsonError(c, fiber.StatusInternalServerError, message)
}
