package repository

import (
	"strings"

	"github.com/naturesense/naturesense/app/models"
	"gorm.io/gorm"
)

// userRepository implements the UserRepository interface
type userRepository struct {
	db *gorm.DB
}

// NewUserRepository creates a new user repository instance
func NewUserRepository(db *gorm.DB) UserRepository {
	return &userRepository{db: db}
}

// Create creates a new user in the database
func (r *userRepository) Create(user *models.User) error {
	return r.db.Create(user).Error
}

// GetByID retrieves a user by their ID
func (r *userRepository) GetByID(id uint) (*models.User, error) {
	var user models.User
	err := r.db.First(&user, id).Error
	if err != nil {
		return nil, err
	}
	return &user, nil
}

// GetByEmail retrieves a user by their email address
func (r *userRepository) GetByEmail(email string) (*models.User, error) {
	var user models.User
	err := r.db.Where("email = ?", email).First(&user).Error
	if err != nil {
		return nil, err
	}
	return &user, nil
}

// GetByStripeCustomerID retrieves a user by their billing customer reference
func (r *userRepository) GetByStripeCustomerID(customerID string) (*models.User, error) {
	trimmed := strings.TrimSpace(customerID)
	if trimmed == "" {
		return nil, gorm.ErrRecordNotFound
	}
	var user models.User
	err := r.db.Where("stripe_customer_id = ?", trimmed).First(&user).Error
	if err != nil {
		return nil, err
	}
	return &user, nil
}

// Update updates an existing user in the database
func (r *userRepository) Update(user *models.User) error {
	return r.db.Save(user).Error
}

// Delete soft deletes a user by their ID
func (r *userRepository) Delete(id uint) error {
	return r.db.Delete(&models.User{}, id).Error
}

// List retrieves a paginated list of users
func (r *userRepository) List(offset, limit int) ([]models.User, error) {
	var users []models.User
	err := r.db.Order("created_at DESC").Offset(offset).Limit(limit).Find(&users).Error
	return users, err
}

// ListByRole retrieves a paginated list of users with the given role
func (r *userRepository) ListByRole(role string, offset, limit int) ([]models.User, error) {
	var users []models.User
	err := r.db.Where("role = ?", role).
		Order("created_at DESC").Offset(offset).Limit(limit).Find(&users).Error
	return users, err
}

// Count returns the total number of users
func (r *userRepository) Count() (int64, error) {
	var count int64
	err := r.db.Model(&models.User{}).Count(&count).Error
	return count, err
}

// CountByRole returns the number of users with the given role
func (r *userRepository) CountByRole(role string) (int64, error) {
	var count int64
	err := r.db.Model(&models.User{}).Where("role = ?", role).Count(&count).Error
	return count, err
}

// CountApproved returns the number of approved users with the given role
func (r *userRepository) CountApproved(role string) (int64, error) {
	var count int64
	err := r.db.Model(&models.User{}).
		Where("role = ? AND is_approved = ?", role, true).Count(&count).Error
	return count, err
}

// CountBySubscriptionStatus returns the number of users in any of the given statuses
func (r *userRepository) CountBySubscriptionStatus(statuses ...string) (int64, error) {
	var count int64
	err := r.db.Model(&models.User{}).
		Where("subscription_status IN ?", statuses).Count(&count).Error
	return count, err
}

// SubscriptionStatusDistribution returns user counts grouped by subscription status
func (r *userRepository) SubscriptionStatusDistribution() ([]Distribution, error) {
	var dist []Distribution
	err := r.db.Model(&models.User{}).
		Select("subscription_status AS value, COUNT(*) AS count").
		Group("subscription_status").
		Order("count DESC").
		Find(&dist).Error
	return dist, err
}
