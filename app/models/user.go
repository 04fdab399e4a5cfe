package models

import (
	"time"

	"github.com/go-playground/validator/v10"
	"github.com/google/uuid"
	"golang.org/x/crypto/bcrypt"
	"gorm.io/gorm"
)

const (
	ROLE_FARMER = "farmer"
	ROLE_ADMIN  = "admin"
)

// Subscription statuses form a closed enum; every provider status is
// normalized into one of these before it reaches a user record.
const (
	SubscriptionStatusActive   = "active"
	SubscriptionStatusInactive = "inactive"
	SubscriptionStatusPastDue  = "past_due"
	SubscriptionStatusCanceled = "canceled"
	SubscriptionStatusTrialing = "trialing"
)

type User struct {
	ID                uint   `gorm:"primaryKey" json:"id"`
	Name              string `gorm:"type:varchar(150)" json:"name" validate:"required,min=2,max=150"`
	Email             string `gorm:"uniqueIndex;type:varchar(200)" json:"email" validate:"required,email,min=5,max=200"`
	Password          string `gorm:"type:text" json:"-" validate:"required,min=6"`
	Role              string `gorm:"type:varchar(50);default:'farmer'" json:"role" validate:"oneof=farmer admin"`
	IsApproved        bool   `gorm:"default:false" json:"is_approved"`
	ClientReferenceID string `gorm:"type:varchar(100);index;default:null" json:"client_reference_id"`

	// Billing fields mirrored from the external provider. StripeCustomerID is
	// the sole join key between webhook events and local users; it is set once
	// and never reassigned.
	StripeCustomerID   string     `gorm:"type:varchar(191);uniqueIndex;default:null" json:"stripe_customer_id"`
	SubscriptionStatus string     `gorm:"type:varchar(32);not null;default:'inactive';index" json:"subscription_status" validate:"oneof=active inactive past_due canceled trialing"`
	SubscriptionPlanID string     `gorm:"type:varchar(191);default:null" json:"subscription_plan_id"`
	SubscriptionStart  *time.Time `gorm:"type:timestamp;default:null" json:"subscription_start,omitempty"`
	SubscriptionEnd    *time.Time `gorm:"type:timestamp;default:null" json:"subscription_end,omitempty"`
	TrialEnd           *time.Time `gorm:"type:timestamp;default:null" json:"trial_end,omitempty"`
	CancelAtPeriodEnd  bool       `gorm:"default:false" json:"cancel_at_period_end"`

	LastLoginAt *time.Time     `gorm:"type:timestamp;default:null" json:"last_login_at"`
	CreatedAt   time.Time      `gorm:"autoCreateTime" json:"created_at"`
	UpdatedAt   time.Time      `gorm:"autoUpdateTime" json:"updated_at"`
	DeletedAt   gorm.DeletedAt `gorm:"index" json:"-"`
}

func (u *User) Validate() error {
	v := validator.New()

	return v.Struct(u)
}

func CreateUser(name string, email string, password string, role string) (*User, error) {
	pw, err := HashPassword(password)
	if err != nil {
		return nil, err
	}

	if role != ROLE_ADMIN {
		role = ROLE_FARMER
	}

	u := &User{
		Name:               name,
		Email:              email,
		Password:           pw,
		Role:               role,
		SubscriptionStatus: SubscriptionStatusInactive,
		ClientReferenceID:  uuid.NewString(),
	}

	err = u.Validate()
	if err != nil {
		return nil, err
	}

	return u, nil
}

func HashPassword(password string) (string, error) {
	bytes, err := bcrypt.GenerateFromPassword([]byte(password), bcrypt.DefaultCost)

	return string(bytes), err
}

// CheckPasswordHash compares the given password with the stored hash.
func CheckPasswordHash(password, hash string) bool {
	err := bcrypt.CompareHashAndPassword([]byte(hash), []byte(password))

	return err == nil
}

// CheckPassword verifies if the provided password matches the user's stored password
func (u *User) CheckPassword(password string) bool {
	return CheckPasswordHash(password, u.Password)
}

// SetPassword hashes and sets a new password for the user
func (u *User) SetPassword(password string) error {
	hashedPassword, err := HashPassword(password)
	if err != nil {
		return err
	}
	u.Password = hashedPassword
	return nil
}

// IsAdmin reports whether the user carries the admin role
func (u *User) IsAdmin() bool {
	return u.Role == ROLE_ADMIN
}

// HasActiveSubscription reports whether the user is entitled to paid features.
// Trialing counts as active, past_due does not.
func (u *User) HasActiveSubscription() bool {
	return u.SubscriptionStatus == SubscriptionStatusActive ||
		u.SubscriptionStatus == SubscriptionStatusTrialing
}

// IsSubscriptionExpiringSoon reports whether the subscription ends within the
// given number of days. Users without a period end never expire "soon".
func (u *User) IsSubscriptionExpiringSoon(daysThreshold int) bool {
	if u.SubscriptionEnd == nil {
		return false
	}
	return time.Until(*u.SubscriptionEnd) <= time.Duration(daysThreshold)*24*time.Hour
}
