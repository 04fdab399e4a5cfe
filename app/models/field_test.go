package models

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestFieldValidate(t *testing.T) {
	f := Field{
		Name:     "North Paddock",
		Latitude: 52.52, Longitude: 13.405,
		CropType: "Wheat",
		AreaSize: 12.5,
		UserID:   1,
	}
	assert.NoError(t, f.Validate())

	f.Latitude = 123.0
	assert.Error(t, f.Validate())

	f.Latitude = 52.52
	f.AreaSize = 0
	assert.Error(t, f.Validate())
}

func TestAverageYield(t *testing.T) {
	f := Field{}
	assert.Equal(t, 0.0, f.AverageYield())

	f.YieldTrends = []int{40, 60}
	assert.Equal(t, 50.0, f.AverageYield())
}
