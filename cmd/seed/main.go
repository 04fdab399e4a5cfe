package main

import (
	"fmt"
	"log"
	"math/rand"
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"

	"github.com/naturesense/naturesense/app/models"
	"github.com/naturesense/naturesense/internal/pkg/database"
	"github.com/naturesense/naturesense/internal/pkg/env"
)

const seedPassword = "password123"

var firstNames = []string{"Anna", "Lars", "Maria", "Jonas", "Elena", "Peter", "Sofia", "Mark", "Laura", "Tom"}
var lastNames = []string{"Fischer", "Weber", "Mendez", "Okafor", "Larsen", "Novak", "Silva", "Haas", "Lindt", "Berg"}

var cropTypes = []string{"Wheat", "Corn", "Rice", "Soybean", "Barley"}

var fieldWords = []string{"North", "South", "East", "West", "Upper", "Lower", "River", "Hill", "Sunny", "Old"}

var subscriptionStatuses = []string{
	models.SubscriptionStatusActive,
	models.SubscriptionStatusInactive,
	models.SubscriptionStatusPastDue,
	models.SubscriptionStatusCanceled,
	models.SubscriptionStatusTrialing,
}

func main() {
	env.SetupEnvFile()
	database.SetupDatabase()
	db := database.GetDB()

	rng := rand.New(rand.NewSource(time.Now().UnixNano()))

	log.Println("Clearing existing data...")
	if err := db.Session(&gorm.Session{AllowGlobalUpdate: true}).Unscoped().Delete(&models.Field{}).Error; err != nil {
		log.Fatalf("Failed to clear fields: %v", err)
	}
	if err := db.Session(&gorm.Session{AllowGlobalUpdate: true}).Unscoped().Delete(&models.User{}).Error; err != nil {
		log.Fatalf("Failed to clear users: %v", err)
	}

	log.Println("Seeding users...")
	var farmers []models.User
	for i := 0; i < 2; i++ {
		admin := fakeUser(rng, models.ROLE_ADMIN, i)
		if err := db.Create(&admin).Error; err != nil {
			log.Fatalf("Failed to seed admin: %v", err)
		}
	}
	for i := 0; i < 10; i++ {
		f := fakeUser(rng, models.ROLE_FARMER, i)
		if err := db.Create(&f).Error; err != nil {
			log.Fatalf("Failed to seed farmer: %v", err)
		}
		farmers = append(farmers, f)
	}
	log.Println("Added 2 admin users and 10 farmer users")

	log.Println("Seeding fields...")
	count := 0
	for _, f := range farmers {
		for i := 0; i < 2+rng.Intn(4); i++ {
			field := fakeField(rng, f.ID)
			if err := db.Create(&field).Error; err != nil {
				log.Fatalf("Failed to seed field: %v", err)
			}
			count++
		}
	}
	log.Printf("Added %d fields", count)
	log.Println("Database seeded successfully")
}

func fakeUser(rng *rand.Rand, role string, n int) models.User {
	first := firstNames[rng.Intn(len(firstNames))]
	last := lastNames[rng.Intn(len(lastNames))]
	name := first + " " + last

	domain := "example.com"
	if role == models.ROLE_ADMIN {
		domain = "naturesense.com"
	}
	email := fmt.Sprintf("%s.%s.%d@%s", first, last, n, domain)

	hashed, err := models.HashPassword(seedPassword)
	if err != nil {
		log.Fatalf("Failed to hash seed password: %v", err)
	}

	status := subscriptionStatuses[rng.Intn(len(subscriptionStatuses))]
	u := models.User{
		Name:               name,
		Email:              email,
		Password:           hashed,
		Role:               role,
		IsApproved:         role == models.ROLE_ADMIN || rng.Intn(2) == 0,
		ClientReferenceID:  uuid.NewString(),
		SubscriptionStatus: status,
	}

	if status != models.SubscriptionStatusInactive {
		start := time.Now().AddDate(0, -rng.Intn(6)-1, 0)
		end := time.Now().AddDate(0, rng.Intn(6)+1, 0)
		u.SubscriptionPlanID = "price_" + uuid.NewString()[:14]
		u.SubscriptionStart = &start
		u.SubscriptionEnd = &end
	}
	if status == models.SubscriptionStatusTrialing {
		trialEnd := time.Now().AddDate(0, 0, rng.Intn(14)+1)
		u.TrialEnd = &trialEnd
	}
	if status == models.SubscriptionStatusActive {
		u.CancelAtPeriodEnd = rng.Intn(2) == 0
	}
	return u
}

func fakeField(rng *rand.Rand, userID uint) models.Field {
	yields := make([]int, 5)
	for i := range yields {
		yields[i] = 10 + rng.Intn(91)
	}

	grades := []string{models.HealthPoor, models.HealthFair, models.HealthGood, models.HealthExcellent}

	return models.Field{
		Name:            fieldWords[rng.Intn(len(fieldWords))] + " " + fieldWords[rng.Intn(len(fieldWords))] + " Field",
		Latitude:        rng.Float64()*180 - 90,
		Longitude:       rng.Float64()*360 - 180,
		CropType:        cropTypes[rng.Intn(len(cropTypes))],
		AreaSize:        1 + rng.Float64()*99,
		SoilHealth:      grades[rng.Intn(len(grades))],
		CropHealth:      grades[rng.Intn(len(grades))],
		YieldTrends:     yields,
		Recommendations: []string{"Monitor soil moisture", "Rotate crops"},
		UserID:          userID,
	}
}
