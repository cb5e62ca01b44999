package services

import (
	"errors"
	"fmt"
	"strings"

	"gorm.io/gorm"

	"rental-backend/models"
)

type ReviewService struct {
	DB *gorm.DB
}

func NewReviewService(db *gorm.DB) *ReviewService {
	return &ReviewService{DB: db}
}

// Create stores the tenant's review of a completed or approved stay.
// One review per booking, enforced by the unique index on booking_id, so
// a concurrent duplicate surfaces as a constraint violation rather than a
// lost check.
func (s *ReviewService) Create(author *models.User, listingID, bookingID uint, rating int, text string) (*models.Review, error) {
	if rating < 1 || rating > 5 {
		return nil, fmt.Errorf("%w: rating must be between 1 and 5", ErrValidation)
	}

	var booking models.Booking
	if err := s.DB.Preload("Listing").First(&booking, bookingID).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, fmt.Errorf("%w: booking %d", ErrNotFound, bookingID)
		}
		return nil, fmt.Errorf("load booking: %w", err)
	}

	if booking.ListingID != listingID {
		return nil, fmt.Errorf("%w: booking does not belong to this listing", ErrValidation)
	}
	if booking.TenantID != author.ID {
		return nil, fmt.Errorf("%w: only the tenant of the booking can review it", ErrForbidden)
	}
	if booking.Listing.OwnerID == author.ID {
		return nil, fmt.Errorf("%w: cannot review your own listing", ErrValidation)
	}
	if booking.Status != models.BookingApproved && booking.Status != models.BookingCompleted {
		return nil, fmt.Errorf("%w: only approved or completed stays can be reviewed", ErrValidation)
	}

	review := &models.Review{
		ListingID: booking.ListingID,
		BookingID: booking.ID,
		AuthorID:  author.ID,
		Rating:    rating,
		Text:      strings.TrimSpace(text),
	}

	if err := s.DB.Create(review).Error; err != nil {
		if isDuplicateKey(err) {
			return nil, fmt.Errorf("%w: booking %d already has a review", ErrAlreadyReviewed, booking.ID)
		}
		return nil, fmt.Errorf("create review: %w", err)
	}
	return review, nil
}

// ListForListing returns a listing's reviews, newest first.
func (s *ReviewService) ListForListing(listingID uint) ([]models.Review, error) {
	var reviews []models.Review
	if err := s.DB.Where("listing_id = ?", listingID).Order("created_at DESC").Find(&reviews).Error; err != nil {
		return nil, fmt.Errorf("list reviews: %w", err)
	}
	return reviews, nil
}

// isDuplicateKey recognizes unique-constraint violations across the MySQL
// production driver and the sqlite test driver.
func isDuplicateKey(err error) bool {
	if errors.Is(err, gorm.ErrDuplicatedKey) {
		return true
	}
	msg := strings.ToLower(err.Error())
	return strings.Contains(msg, "duplicate entry") || strings.Contains(msg, "unique constraint")
}
