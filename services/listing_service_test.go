package services

import (
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"rental-backend/models"
)

// listingEventRecorder captures enqueued listing events.
type listingEventRecorder struct {
	mu     sync.Mutex
	events []ListingEvent
}

func (r *listingEventRecorder) EnqueueListing(ev ListingEvent) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.events = append(r.events, ev)
}

func (r *listingEventRecorder) all() []ListingEvent {
	r.mu.Lock()
	defer r.mu.Unlock()
	return append([]ListingEvent(nil), r.events...)
}

func TestListingValidation(t *testing.T) {
	db := setupTestDB(t)
	svc := NewListingService(db, nil)
	owner := createUser(t, db, models.RoleLandlord)

	base := func() *models.Listing {
		return &models.Listing{
			Title:       "Test flat",
			Price:       900,
			Rooms:       1,
			HousingType: models.HousingApartment,
		}
	}

	t.Run("defaults fill in", func(t *testing.T) {
		l := base()
		require.NoError(t, svc.Create(owner, l))
		assert.Equal(t, "USD", l.Currency)
		assert.Equal(t, models.ParkingNone, l.ParkingType)
		assert.Equal(t, owner.ID, l.OwnerID)
		assert.True(t, l.IsActive)
	})

	t.Run("title required", func(t *testing.T) {
		l := base()
		l.Title = "   "
		assert.ErrorIs(t, svc.Create(owner, l), ErrValidation)
	})

	t.Run("negative price rejected", func(t *testing.T) {
		l := base()
		l.Price = -1
		assert.ErrorIs(t, svc.Create(owner, l), ErrValidation)
	})

	t.Run("unknown housing type rejected", func(t *testing.T) {
		l := base()
		l.HousingType = "castle"
		assert.ErrorIs(t, svc.Create(owner, l), ErrValidation)
	})
}

func TestListingUpdateAndDelete(t *testing.T) {
	db := setupTestDB(t)
	svc := NewListingService(db, nil)

	owner := createUser(t, db, models.RoleLandlord)
	other := createUser(t, db, models.RoleLandlord)
	admin := createUser(t, db, models.RoleAdmin)
	listing := createListing(t, db, owner)

	t.Run("only the owner updates", func(t *testing.T) {
		_, err := svc.Update(other, listing.ID, &models.Listing{Title: "hijacked"})
		assert.ErrorIs(t, err, ErrForbidden)
	})

	t.Run("owner updates title and price", func(t *testing.T) {
		updated, err := svc.Update(owner, listing.ID, &models.Listing{
			Title:       "Renovated flat",
			Price:       1500,
			Rooms:       listing.Rooms,
			HousingType: listing.HousingType,
		})
		require.NoError(t, err)
		assert.Equal(t, "Renovated flat", updated.Title)
		assert.Equal(t, float64(1500), updated.Price)
	})

	t.Run("stranger cannot delete", func(t *testing.T) {
		assert.ErrorIs(t, svc.Delete(other, listing.ID), ErrForbidden)
	})

	t.Run("admin deletes and the listing disappears", func(t *testing.T) {
		require.NoError(t, svc.Delete(admin, listing.ID))

		_, err := svc.Get(listing.ID)
		assert.ErrorIs(t, err, ErrNotFound)
	})
}

func TestListingSearch(t *testing.T) {
	db := setupTestDB(t)
	svc := NewListingService(db, nil)
	owner := createUser(t, db, models.RoleLandlord)

	seed := []models.Listing{
		{Title: "Cozy studio", City: "Warsaw", Price: 700, Rooms: 1, HousingType: models.HousingApartment, Currency: "USD", IsActive: true},
		{Title: "Family house", City: "Krakow", Price: 2000, Rooms: 4, HousingType: models.HousingHouse, Currency: "USD", IsActive: true},
		{Title: "Shared room", City: "Warsaw", Price: 300, Rooms: 1, HousingType: models.HousingRoom, Currency: "USD", IsActive: true},
	}
	for i := range seed {
		seed[i].OwnerID = owner.ID
		require.NoError(t, db.Create(&seed[i]).Error)
	}
	inactive := models.Listing{Title: "Hidden flat", OwnerID: owner.ID, City: "Warsaw", Price: 100, Rooms: 1, HousingType: models.HousingApartment, IsActive: false}
	require.NoError(t, db.Create(&inactive).Error)

	t.Run("inactive flag persists through struct create", func(t *testing.T) {
		var reloaded models.Listing
		require.NoError(t, db.First(&reloaded, inactive.ID).Error)
		assert.False(t, reloaded.IsActive)
	})

	t.Run("inactive listings are invisible", func(t *testing.T) {
		page, err := svc.Search(ListingSearchParams{})
		require.NoError(t, err)
		assert.Equal(t, int64(3), page.Count)
	})

	t.Run("city filter", func(t *testing.T) {
		page, err := svc.Search(ListingSearchParams{City: "Warsaw"})
		require.NoError(t, err)
		assert.Equal(t, int64(2), page.Count)
	})

	t.Run("price range", func(t *testing.T) {
		min, max := 500.0, 1000.0
		page, err := svc.Search(ListingSearchParams{PriceMin: &min, PriceMax: &max})
		require.NoError(t, err)
		require.Len(t, page.Results, 1)
		assert.Equal(t, "Cozy studio", page.Results[0].Title)
	})

	t.Run("text query", func(t *testing.T) {
		page, err := svc.Search(ListingSearchParams{Query: "house"})
		require.NoError(t, err)
		require.Len(t, page.Results, 1)
		assert.Equal(t, "Family house", page.Results[0].Title)
	})

	t.Run("price ascending sort", func(t *testing.T) {
		page, err := svc.Search(ListingSearchParams{Sort: "price_asc"})
		require.NoError(t, err)
		require.Len(t, page.Results, 3)
		assert.Equal(t, "Shared room", page.Results[0].Title)
		assert.Equal(t, "Family house", page.Results[2].Title)
	})

	t.Run("pagination", func(t *testing.T) {
		first, err := svc.Search(ListingSearchParams{Sort: "price_asc", Page: 1, PageSize: 2})
		require.NoError(t, err)
		assert.Equal(t, int64(3), first.Count)
		require.Len(t, first.Results, 2)

		second, err := svc.Search(ListingSearchParams{Sort: "price_asc", Page: 2, PageSize: 2})
		require.NoError(t, err)
		assert.Equal(t, int64(3), second.Count)
		require.Len(t, second.Results, 1)
		assert.Equal(t, "Family house", second.Results[0].Title)
	})
}

func TestListingDuplicateDetection(t *testing.T) {
	db := setupTestDB(t)
	recorder := &listingEventRecorder{}
	svc := NewListingService(db, recorder)
	svc.DuplicateGrace = 0 // no background cleanup in this test
	owner := createUser(t, db, models.RoleLandlord)

	copyOf := func() *models.Listing {
		return &models.Listing{
			Title:       "Canal-side loft",
			Description: "Top floor",
			City:        "Gdansk",
			Street:      "Dluga",
			HouseNumber: "4",
			Price:       1800,
			Rooms:       3,
			HousingType: models.HousingApartment,
		}
	}

	first := copyOf()
	require.NoError(t, svc.Create(owner, first))

	second := copyOf()
	require.NoError(t, svc.Create(owner, second))

	events := recorder.all()
	require.Len(t, events, 2)
	assert.Empty(t, events[0].DuplicateIDs, "first copy has nothing to collide with")
	assert.Equal(t, []uint{first.ID}, events[1].DuplicateIDs)

	t.Run("edited copy is no longer a duplicate", func(t *testing.T) {
		edited := copyOf()
		edited.Title = "Canal-side loft, renovated"
		require.NoError(t, svc.Create(owner, edited))

		events := recorder.all()
		assert.Empty(t, events[len(events)-1].DuplicateIDs)
	})

	t.Run("cleanup removes a standing duplicate", func(t *testing.T) {
		deleted, err := svc.DeleteIfStillDuplicate(second.ID)
		require.NoError(t, err)
		assert.True(t, deleted)

		_, err = svc.Get(second.ID)
		assert.ErrorIs(t, err, ErrNotFound)
	})

	t.Run("cleanup leaves a resolved duplicate alone", func(t *testing.T) {
		deleted, err := svc.DeleteIfStillDuplicate(first.ID)
		require.NoError(t, err)
		assert.False(t, deleted)

		_, err = svc.Get(first.ID)
		assert.NoError(t, err)
	})

	t.Run("cleanup tolerates a vanished listing", func(t *testing.T) {
		deleted, err := svc.DeleteIfStillDuplicate(9999)
		require.NoError(t, err)
		assert.False(t, deleted)
	})
}

func TestListingDuplicateCleanupScheduled(t *testing.T) {
	db := setupTestDB(t)
	svc := NewListingService(db, nil)
	svc.DuplicateGrace = 10 * time.Millisecond
	owner := createUser(t, db, models.RoleLandlord)

	twin := func() *models.Listing {
		return &models.Listing{
			Title:       "Twin flat",
			City:        "Lodz",
			Price:       950,
			Rooms:       2,
			HousingType: models.HousingApartment,
		}
	}
	original := twin()
	require.NoError(t, svc.Create(owner, original))
	duplicate := twin()
	require.NoError(t, svc.Create(owner, duplicate))

	assert.Eventually(t, func() bool {
		_, err := svc.Get(duplicate.ID)
		return errors.Is(err, ErrNotFound)
	}, 2*time.Second, 10*time.Millisecond, "standing duplicate should be soft-deleted after the grace period")

	_, err := svc.Get(original.ID)
	assert.NoError(t, err, "the original listing survives")
}

func TestAuthRegister(t *testing.T) {
	db := setupTestDB(t)
	svc := NewAuthService(db, nil)

	t.Run("password is hashed", func(t *testing.T) {
		u, err := svc.Register("Anna", "Anna@Example.com", "supersecret", models.RoleLandlord)
		require.NoError(t, err)
		assert.Equal(t, "anna@example.com", u.Email)
		assert.NotEqual(t, "supersecret", u.Password)
	})

	t.Run("duplicate email rejected", func(t *testing.T) {
		_, err := svc.Register("Anna Again", "anna@example.com", "supersecret", "")
		assert.ErrorIs(t, err, ErrValidation)
	})

	t.Run("short password rejected", func(t *testing.T) {
		_, err := svc.Register("Bob", "bob@example.com", "short", "")
		assert.ErrorIs(t, err, ErrValidation)
	})

	t.Run("admin cannot self-register", func(t *testing.T) {
		_, err := svc.Register("Eve", "eve@example.com", "supersecret", models.RoleAdmin)
		assert.ErrorIs(t, err, ErrValidation)
	})
}
