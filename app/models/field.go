package models

import (
	"time"

	"github.com/go-playground/validator/v10"
)

// Health grades used for soil and crop health assessments.
const (
	HealthUnknown   = "Unknown"
	HealthPoor      = "Poor"
	HealthFair      = "Fair"
	HealthGood      = "Good"
	HealthExcellent = "Excellent"
)

// Field is an agricultural field owned by a farmer.
type Field struct {
	ID              uint      `gorm:"primaryKey" json:"id"`
	Name            string    `gorm:"type:varchar(150);not null" json:"name" validate:"required,min=2,max=150"`
	Latitude        float64   `gorm:"not null" json:"latitude" validate:"min=-90,max=90"`
	Longitude       float64   `gorm:"not null" json:"longitude" validate:"min=-180,max=180"`
	CropType        string    `gorm:"type:varchar(100);not null;index" json:"crop_type" validate:"required,min=2,max=100"`
	AreaSize        float64   `gorm:"not null" json:"area_size" validate:"gt=0"`
	SoilHealth      string    `gorm:"type:varchar(32);not null;default:'Unknown'" json:"soil_health"`
	CropHealth      string    `gorm:"type:varchar(32);not null;default:'Unknown'" json:"crop_health"`
	YieldTrends     []int     `gorm:"serializer:json;type:json" json:"yield_trends"`
	Recommendations []string  `gorm:"serializer:json;type:json" json:"recommendations"`
	UserID          uint      `gorm:"not null;index" json:"user_id"`
	User            *User     `gorm:"foreignKey:UserID" json:"user,omitempty"`
	CreatedAt       time.Time `gorm:"autoCreateTime" json:"created_at"`
	UpdatedAt       time.Time `gorm:"autoUpdateTime" json:"updated_at"`
}

func (f *Field) Validate() error {
	v := validator.New()

	return v.Struct(f)
}

// AverageYield returns the mean of the recorded yield trend values, 0 when empty.
func (f *Field) AverageYield() float64 {
	if len(f.YieldTrends) == 0 {
		return 0
	}
	sum := 0
	for _, y := range f.YieldTrends {
		sum += y
	}
	return float64(sum) / float64(len(f.YieldTrends))
}
