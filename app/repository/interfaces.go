package repository

import (
	"github.com/naturesense/naturesense/app/models"
	"gorm.io/gorm"
)

// UserRepository defines the interface for user-related database operations
type UserRepository interface {
	Create(user *models.User) error
	GetByID(id uint) (*models.User, error)
	GetByEmail(email string) (*models.User, error)
	GetByStripeCustomerID(customerID string) (*models.User, error)
	Update(user *models.User) error
	Delete(id uint) error
	List(offset, limit int) ([]models.User, error)
	ListByRole(role string, offset, limit int) ([]models.User, error)
	Count() (int64, error)
	CountByRole(role string) (int64, error)
	CountApproved(role string) (int64, error)
	CountBySubscriptionStatus(statuses ...string) (int64, error)
	SubscriptionStatusDistribution() ([]Distribution, error)
}

// FieldRepository defines the interface for field-related database operations
type FieldRepository interface {
	Create(field *models.Field) error
	GetByID(id uint) (*models.Field, error)
	GetByIDWithOwner(id uint) (*models.Field, error)
	GetByIDForUser(id, userID uint) (*models.Field, error)
	ListByUserID(userID uint, opts ListOptions) ([]models.Field, error)
	CountByUserID(userID uint, cropType string) (int64, error)
	List(offset, limit int) ([]models.Field, error)
	Update(field *models.Field) error
	Delete(id uint) error
	Count() (int64, error)
	StatsByUserID(userID uint) (*FieldStats, error)
	AverageYield() (float64, error)
	SoilHealthDistribution() ([]Distribution, error)
	CropHealthDistribution() ([]Distribution, error)
}

// ListOptions carries pagination, filtering and sorting for field listings.
type ListOptions struct {
	Offset   int
	Limit    int
	CropType string
	Sort     string
}

// FieldStats is an aggregate over one owner's fields.
type FieldStats struct {
	TotalFields int64   `json:"totalFields"`
	TotalArea   float64 `json:"totalArea"`
	AverageArea float64 `json:"averageArea"`
	MinArea     float64 `json:"minArea"`
	MaxArea     float64 `json:"maxArea"`
}

// Distribution is one bucket of a group-by count aggregation.
type Distribution struct {
	Value string `gorm:"column:value" json:"_id"`
	Count int64  `gorm:"column:count" json:"count"`
}

// Repositories struct holds all repository instances
type Repositories struct {
	User  UserRepository
	Field FieldRepository
}

// NewRepositories creates a new instance of all repositories
func NewRepositories(db *gorm.DB) *Repositories {
	return &Repositories{
		User:  NewUserRepository(db),
		Field: NewFieldRepository(db),
	}
}
