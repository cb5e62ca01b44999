package services

import (
	"fmt"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/require"
	"gorm.io/driver/sqlite"
	"gorm.io/gorm"
	"gorm.io/gorm/logger"

	"rental-backend/models"
)

// setupTestDB opens a throwaway sqlite database under the test's temp dir
// and migrates the full schema.
func setupTestDB(t *testing.T) *gorm.DB {
	t.Helper()

	dsn := filepath.Join(t.TempDir(), "test.db") + "?_busy_timeout=5000"
	db, err := gorm.Open(sqlite.Open(dsn), &gorm.Config{
		Logger: logger.Default.LogMode(logger.Silent),
	})
	require.NoError(t, err)

	require.NoError(t, db.AutoMigrate(
		&models.User{},
		&models.Listing{},
		&models.Booking{},
		&models.Review{},
		&models.ListingViewStat{},
	))
	return db
}

var userSeq int

func createUser(t *testing.T, db *gorm.DB, role string) *models.User {
	t.Helper()

	userSeq++
	user := &models.User{
		FullName: fmt.Sprintf("Test User %d", userSeq),
		Email:    fmt.Sprintf("user%d@example.com", userSeq),
		Password: "not-a-real-hash",
		Role:     role,
	}
	require.NoError(t, db.Create(user).Error)
	return user
}

func createListing(t *testing.T, db *gorm.DB, owner *models.User) *models.Listing {
	t.Helper()

	listing := &models.Listing{
		OwnerID:     owner.ID,
		Title:       "Bright two-room flat",
		Description: "Close to the center",
		Country:     "Poland",
		City:        "Warsaw",
		Street:      "Nowy Swiat",
		HouseNumber: "12",
		Price:       1200,
		Currency:    "USD",
		Rooms:       2,
		HousingType: models.HousingApartment,
		ParkingType: models.ParkingNone,
		IsActive:    true,
	}
	require.NoError(t, db.Create(listing).Error)
	return listing
}

// daysAhead returns today plus n days at UTC midnight, for tests that need
// ranges relative to the current date.
func daysAhead(n int) time.Time {
	y, m, d := time.Now().UTC().Date()
	return time.Date(y, m, d, 0, 0, 0, 0, time.UTC).AddDate(0, 0, n)
}
