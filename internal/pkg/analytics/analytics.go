// Package analytics produces field health assessments. The current engine is
// a pseudo-random stand-in with the same output shape a model-backed engine
// would produce.
package analytics

import (
	"math/rand"

	"github.com/naturesense/naturesense/app/models"
)

const yieldHistoryLimit = 12

var healthGrades = []string{
	models.HealthPoor,
	models.HealthFair,
	models.HealthGood,
	models.HealthExcellent,
}

var recommendationPool = []string{
	"Increase irrigation",
	"Add fertilizers",
	"Reduce pesticide use",
	"Monitor soil moisture",
	"Rotate crops",
}

// Assessment is one analysis result for a field.
type Assessment struct {
	SoilHealth      string   `json:"soil_health"`
	CropHealth      string   `json:"crop_health"`
	YieldEstimate   int      `json:"yield_estimate"`
	Recommendations []string `json:"recommendations"`
}

// Engine generates assessments. The random source is injected so tests can
// pin the output.
type Engine struct {
	rng *rand.Rand
}

// NewEngine creates an engine seeded from the given source.
func NewEngine(seed int64) *Engine {
	return &Engine{rng: rand.New(rand.NewSource(seed))}
}

// Analyze produces a fresh assessment for the field.
func (e *Engine) Analyze(field *models.Field) Assessment {
	return Assessment{
		SoilHealth:      healthGrades[e.rng.Intn(len(healthGrades))],
		CropHealth:      healthGrades[e.rng.Intn(len(healthGrades))],
		YieldEstimate:   10 + e.rng.Intn(91),
		Recommendations: e.pickRecommendations(),
	}
}

// ApplyAssessment stamps the assessment onto the field and appends the yield
// estimate to the trend history, keeping the most recent entries.
func ApplyAssessment(field *models.Field, a Assessment) {
	field.SoilHealth = a.SoilHealth
	field.CropHealth = a.CropHealth
	field.Recommendations = a.Recommendations
	field.YieldTrends = append(field.YieldTrends, a.YieldEstimate)
	if len(field.YieldTrends) > yieldHistoryLimit {
		field.YieldTrends = field.YieldTrends[len(field.YieldTrends)-yieldHistoryLimit:]
	}
}

// pickRecommendations returns a non-empty random subset of the pool.
func (e *Engine) pickRecommendations() []string {
	n := 1 + e.rng.Intn(len(recommendationPool))
	picked := make([]string, len(recommendationPool))
	copy(picked, recommendationPool)
	e.rng.Shuffle(len(picked), func(i, j int) {
		picked[i], picked[j] = picked[j], picked[i]
	})
	return picked[:n]
}
