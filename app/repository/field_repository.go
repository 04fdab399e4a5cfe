package repository

import (
	"fmt"

	"github.com/naturesense/naturesense/app/models"
	"gorm.io/gorm"
)

// fieldRepository implements the FieldRepository interface
type fieldRepository struct {
	db *gorm.DB
}

// NewFieldRepository creates a new field repository instance
func NewFieldRepository(db *gorm.DB) FieldRepository {
	return &fieldRepository{db: db}
}

// Create creates a new field in the database
func (r *fieldRepository) Create(field *models.Field) error {
	return r.db.Create(field).Error
}

// GetByID retrieves a field by its ID
func (r *fieldRepository) GetByID(id uint) (*models.Field, error) {
	var field models.Field
	err := r.db.First(&field, id).Error
	if err != nil {
		return nil, err
	}
	return &field, nil
}

// GetByIDWithOwner retrieves a field with its owning user preloaded
func (r *fieldRepository) GetByIDWithOwner(id uint) (*models.Field, error) {
	var field models.Field
	err := r.db.Preload("User").First(&field, id).Error
	if err != nil {
		return nil, err
	}
	return &field, nil
}

// GetByIDForUser retrieves a field only if it belongs to the given user
func (r *fieldRepository) GetByIDForUser(id, userID uint) (*models.Field, error) {
	var field models.Field
	err := r.db.Where("id = ? AND user_id = ?", id, userID).First(&field).Error
	if err != nil {
		return nil, err
	}
	return &field, nil
}

// sortColumns whitelists client-supplied sort keys.
var sortColumns = map[string]string{
	"name":      "name",
	"cropType":  "crop_type",
	"areaSize":  "area_size",
	"createdAt": "created_at",
}

// ListByUserID retrieves a paginated, optionally filtered and sorted list of
// one owner's fields.
func (r *fieldRepository) ListByUserID(userID uint, opts ListOptions) ([]models.Field, error) {
	q := r.db.Where("user_id = ?", userID)
	if opts.CropType != "" {
		q = q.Where("crop_type = ?", opts.CropType)
	}
	order := "created_at DESC"
	if col, ok := sortColumns[opts.Sort]; ok {
		order = col + " ASC"
	}
	var fields []models.Field
	err := q.Order(order).Offset(opts.Offset).Limit(opts.Limit).Find(&fields).Error
	return fields, err
}

// CountByUserID returns the number of fields owned by the user, honoring the
// same crop type filter as ListByUserID.
func (r *fieldRepository) CountByUserID(userID uint, cropType string) (int64, error) {
	q := r.db.Model(&models.Field{}).Where("user_id = ?", userID)
	if cropType != "" {
		q = q.Where("crop_type = ?", cropType)
	}
	var count int64
	err := q.Count(&count).Error
	return count, err
}

// List retrieves a paginated list of all fields with owners preloaded
func (r *fieldRepository) List(offset, limit int) ([]models.Field, error) {
	var fields []models.Field
	err := r.db.Preload("User").
		Order("created_at DESC").Offset(offset).Limit(limit).Find(&fields).Error
	return fields, err
}

// Update updates an existing field in the database
func (r *fieldRepository) Update(field *models.Field) error {
	return r.db.Save(field).Error
}

// Delete deletes a field by its ID
func (r *fieldRepository) Delete(id uint) error {
	return r.db.Delete(&models.Field{}, id).Error
}

// Count returns the total number of fields
func (r *fieldRepository) Count() (int64, error) {
	var count int64
	err := r.db.Model(&models.Field{}).Count(&count).Error
	return count, err
}

// StatsByUserID returns area aggregates over one owner's fields
func (r *fieldRepository) StatsByUserID(userID uint) (*FieldStats, error) {
	var stats FieldStats
	err := r.db.Model(&models.Field{}).
		Select("COUNT(*) AS total_fields, COALESCE(SUM(area_size), 0) AS total_area, COALESCE(AVG(area_size), 0) AS average_area, COALESCE(MIN(area_size), 0) AS min_area, COALESCE(MAX(area_size), 0) AS max_area").
		Where("user_id = ?", userID).
		Scan(&stats).Error
	if err != nil {
		return nil, fmt.Errorf("failed to aggregate field stats: %w", err)
	}
	return &stats, nil
}

// AverageYield computes the mean over every recorded yield trend value.
// Yield trends live in a JSON column, so the averaging happens in Go.
func (r *fieldRepository) AverageYield() (float64, error) {
	var fields []models.Field
	if err := r.db.Select("yield_trends").Find(&fields).Error; err != nil {
		return 0, err
	}
	sum, n := 0, 0
	for _, f := range fields {
		for _, y := range f.YieldTrends {
			sum += y
			n++
		}
	}
	if n == 0 {
		return 0, nil
	}
	return float64(sum) / float64(n), nil
}

// SoilHealthDistribution returns field counts grouped by soil health grade
func (r *fieldRepository) SoilHealthDistribution() ([]Distribution, error) {
	return r.healthDistribution("soil_health")
}

// CropHealthDistribution returns field counts grouped by crop health grade
func (r *fieldRepository) CropHealthDistribution() ([]Distribution, error) {
	return r.healthDistribution("crop_health")
}

func (r *fieldRepository) healthDistribution(column string) ([]Distribution, error) {
	var dist []Distribution
	err := r.db.Model(&models.Field{}).
		Select(column + " AS value, COUNT(*) AS count").
		Group(column).
		Order("count DESC").
		Find(&dist).Error
	return dist, err
}
