package services

import (
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"

	"rental-backend/models"
)

// BookingService is the booking ledger: it owns the overlap invariant and
// the status state machine. All mutations go through here.
type BookingService struct {
	DB       *gorm.DB
	Notifier Notifier

	locks sync.Map // listing id -> *sync.Mutex
}

func NewBookingService(db *gorm.DB, notifier Notifier) *BookingService {
	return &BookingService{DB: db, Notifier: notifier}
}

// listingLock returns the per-listing mutex serializing check-and-insert.
// The overlap query and the insert are two statements; without this lock
// two concurrent creates for overlapping ranges could both pass the check.
func (s *BookingService) listingLock(listingID uint) *sync.Mutex {
	mu, _ := s.locks.LoadOrStore(listingID, &sync.Mutex{})
	return mu.(*sync.Mutex)
}

func (s *BookingService) notify(ev BookingEvent) {
	if s.Notifier != nil {
		s.Notifier.Enqueue(ev)
	}
}

func today() time.Time {
	y, m, d := time.Now().Date()
	return time.Date(y, m, d, 0, 0, 0, 0, time.UTC)
}

func validateRange(dateFrom, dateTo time.Time) error {
	if !dateFrom.Before(dateTo) {
		return fmt.Errorf("%w: date_to must be after date_from", ErrValidation)
	}
	from := time.Date(dateFrom.Year(), dateFrom.Month(), dateFrom.Day(), 0, 0, 0, 0, time.UTC)
	if from.Before(today()) {
		return fmt.Errorf("%w: date_from is in the past", ErrValidation)
	}
	return nil
}

// overlapExists reports whether any pending or approved booking on the
// listing overlaps [dateFrom, dateTo) under the half-open rule. excludeID
// skips the booking being re-dated.
func overlapExists(tx *gorm.DB, listingID uint, dateFrom, dateTo time.Time, excludeID uint) (bool, error) {
	q := tx.Model(&models.Booking{}).
		Where("listing_id = ? AND status IN ?", listingID, []string{models.BookingPending, models.BookingApproved}).
		Where("date_from < ? AND date_to > ?", dateTo, dateFrom)
	if excludeID != 0 {
		q = q.Where("id <> ?", excludeID)
	}
	var count int64
	if err := q.Count(&count).Error; err != nil {
		return false, err
	}
	return count > 0, nil
}

// Create validates and persists a new pending booking for the tenant.
func (s *BookingService) Create(tenant *models.User, listingID uint, dateFrom, dateTo time.Time) (*models.Booking, error) {
	if err := validateRange(dateFrom, dateTo); err != nil {
		return nil, err
	}

	var listing models.Listing
	if err := s.DB.First(&listing, listingID).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, fmt.Errorf("%w: listing %d", ErrNotFound, listingID)
		}
		return nil, fmt.Errorf("load listing: %w", err)
	}
	if !listing.IsActive {
		return nil, fmt.Errorf("%w: listing is not active", ErrValidation)
	}
	if listing.OwnerID == tenant.ID {
		return nil, fmt.Errorf("%w: cannot book your own listing", ErrValidation)
	}

	booking := &models.Booking{
		ListingID:     listing.ID,
		TenantID:      tenant.ID,
		ReferenceCode: uuid.NewString(),
		DateFrom:      dateFrom,
		DateTo:        dateTo,
		Status:        models.BookingPending,
	}

	mu := s.listingLock(listing.ID)
	mu.Lock()
	defer mu.Unlock()

	err := s.DB.Transaction(func(tx *gorm.DB) error {
		conflict, err := overlapExists(tx, listing.ID, dateFrom, dateTo, 0)
		if err != nil {
			return err
		}
		if conflict {
			return fmt.Errorf("%w: requested dates overlap an existing booking", ErrOverlap)
		}
		return tx.Create(booking).Error
	})
	if err != nil {
		return nil, err
	}

	s.notify(BookingEvent{Kind: EventBookingCreated, BookingID: booking.ID, ActorID: &tenant.ID})
	return booking, nil
}

// UpdateDates re-dates a booking that is still pending, re-running the
// overlap check against everything but the booking itself.
func (s *BookingService) UpdateDates(actor *models.User, bookingID uint, dateFrom, dateTo time.Time) (*models.Booking, error) {
	if err := validateRange(dateFrom, dateTo); err != nil {
		return nil, err
	}

	booking, err := s.Get(actor, bookingID)
	if err != nil {
		return nil, err
	}
	if booking.TenantID != actor.ID {
		return nil, fmt.Errorf("%w: only the tenant can change booking dates", ErrForbidden)
	}
	if booking.Status != models.BookingPending {
		return nil, fmt.Errorf("%w: dates can only change while pending", ErrInvalidTransition)
	}

	mu := s.listingLock(booking.ListingID)
	mu.Lock()
	defer mu.Unlock()

	err = s.DB.Transaction(func(tx *gorm.DB) error {
		conflict, err := overlapExists(tx, booking.ListingID, dateFrom, dateTo, booking.ID)
		if err != nil {
			return err
		}
		if conflict {
			return fmt.Errorf("%w: requested dates overlap an existing booking", ErrOverlap)
		}
		// Conditional on status so a transition landing between the
		// precondition read and this write cannot be overwritten.
		res := tx.Model(&models.Booking{}).
			Where("id = ? AND status = ?", booking.ID, models.BookingPending).
			Updates(map[string]interface{}{
				"date_from": dateFrom,
				"date_to":   dateTo,
			})
		if res.Error != nil {
			return res.Error
		}
		if res.RowsAffected == 0 {
			return fmt.Errorf("%w: dates can only change while pending", ErrInvalidTransition)
		}
		return nil
	})
	if err != nil {
		return nil, err
	}

	booking.DateFrom = dateFrom
	booking.DateTo = dateTo
	return booking, nil
}

// Approve confirms a pending booking. Only the listing owner may approve,
// and never over an already approved overlapping stay.
func (s *BookingService) Approve(actor *models.User, bookingID uint) (*models.Booking, error) {
	booking, err := s.Get(actor, bookingID)
	if err != nil {
		return nil, err
	}
	if booking.Listing.OwnerID != actor.ID {
		return nil, fmt.Errorf("%w: only the listing owner can approve", ErrForbidden)
	}
	if booking.Status != models.BookingPending {
		return nil, fmt.Errorf("%w: only pending bookings can be approved", ErrInvalidTransition)
	}

	mu := s.listingLock(booking.ListingID)
	mu.Lock()
	defer mu.Unlock()

	now := time.Now()
	err = s.DB.Transaction(func(tx *gorm.DB) error {
		var count int64
		if err := tx.Model(&models.Booking{}).
			Where("listing_id = ? AND status = ? AND id <> ?", booking.ListingID, models.BookingApproved, booking.ID).
			Where("date_from < ? AND date_to > ?", booking.DateTo, booking.DateFrom).
			Count(&count).Error; err != nil {
			return err
		}
		if count > 0 {
			return fmt.Errorf("%w: an approved booking already covers these dates", ErrOverlap)
		}
		// The pending check above read a snapshot; condition the write on
		// it so a concurrent transition cannot be overwritten.
		res := tx.Model(&models.Booking{}).
			Where("id = ? AND status = ?", booking.ID, models.BookingPending).
			Updates(map[string]interface{}{
				"status":        models.BookingApproved,
				"decided_at":    now,
				"decided_by_id": actor.ID,
			})
		if res.Error != nil {
			return res.Error
		}
		if res.RowsAffected == 0 {
			return fmt.Errorf("%w: only pending bookings can be approved", ErrInvalidTransition)
		}
		return nil
	})
	if err != nil {
		return nil, err
	}

	booking.Status = models.BookingApproved
	booking.DecidedAt = &now
	booking.DecidedByID = &actor.ID

	s.notify(BookingEvent{Kind: EventBookingApproved, BookingID: booking.ID, ActorID: &actor.ID})
	return booking, nil
}

// Reject declines a pending booking. Listing owner only.
func (s *BookingService) Reject(actor *models.User, bookingID uint) (*models.Booking, error) {
	booking, err := s.Get(actor, bookingID)
	if err != nil {
		return nil, err
	}
	if booking.Listing.OwnerID != actor.ID {
		return nil, fmt.Errorf("%w: only the listing owner can reject", ErrForbidden)
	}
	if booking.Status != models.BookingPending {
		return nil, fmt.Errorf("%w: only pending bookings can be rejected", ErrInvalidTransition)
	}

	now := time.Now()
	res := s.DB.Model(&models.Booking{}).
		Where("id = ? AND status = ?", booking.ID, models.BookingPending).
		Updates(map[string]interface{}{
			"status":        models.BookingRejected,
			"decided_at":    now,
			"decided_by_id": actor.ID,
		})
	if res.Error != nil {
		return nil, res.Error
	}
	if res.RowsAffected == 0 {
		return nil, fmt.Errorf("%w: only pending bookings can be rejected", ErrInvalidTransition)
	}

	booking.Status = models.BookingRejected
	booking.DecidedAt = &now
	booking.DecidedByID = &actor.ID

	s.notify(BookingEvent{Kind: EventBookingRejected, BookingID: booking.ID, ActorID: &actor.ID})
	return booking, nil
}

// Cancel withdraws a booking before the stay starts. Tenant, listing
// owner or admin; the cancel window is re-checked here regardless of what
// the client believes.
func (s *BookingService) Cancel(actor *models.User, bookingID uint) (*models.Booking, error) {
	booking, err := s.Get(actor, bookingID)
	if err != nil {
		return nil, err
	}

	allowed := booking.TenantID == actor.ID ||
		booking.Listing.OwnerID == actor.ID ||
		actor.IsAdmin()
	if !allowed {
		return nil, fmt.Errorf("%w: not a participant of this booking", ErrForbidden)
	}
	if !booking.CanCancel(time.Now()) {
		return nil, fmt.Errorf("%w: booking can no longer be canceled", ErrInvalidTransition)
	}

	now := time.Now()
	res := s.DB.Model(&models.Booking{}).
		Where("id = ? AND status IN ?", booking.ID, []string{models.BookingPending, models.BookingApproved}).
		Updates(map[string]interface{}{
			"status":      models.BookingCanceled,
			"canceled_at": now,
		})
	if res.Error != nil {
		return nil, res.Error
	}
	if res.RowsAffected == 0 {
		return nil, fmt.Errorf("%w: booking can no longer be canceled", ErrInvalidTransition)
	}

	booking.Status = models.BookingCanceled
	booking.CanceledAt = &now

	s.notify(BookingEvent{Kind: EventBookingCanceled, BookingID: booking.ID, ActorID: &actor.ID})
	return booking, nil
}

// CompleteElapsed moves approved bookings whose stay has ended into the
// completed terminal state. Run by the background scheduler.
func (s *BookingService) CompleteElapsed() (int64, error) {
	res := s.DB.Model(&models.Booking{}).
		Where("status = ? AND date_to <= ?", models.BookingApproved, today()).
		Updates(map[string]interface{}{"status": models.BookingCompleted})
	return res.RowsAffected, res.Error
}

// Get loads a booking visible to the actor: its tenant, the listing owner
// or an admin. Anyone else gets not-found, not forbidden, so existence is
// not leaked.
func (s *BookingService) Get(actor *models.User, bookingID uint) (*models.Booking, error) {
	var booking models.Booking
	if err := s.DB.Preload("Listing").First(&booking, bookingID).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, fmt.Errorf("%w: booking %d", ErrNotFound, bookingID)
		}
		return nil, fmt.Errorf("load booking: %w", err)
	}

	visible := booking.TenantID == actor.ID ||
		booking.Listing.OwnerID == actor.ID ||
		actor.IsAdmin()
	if !visible {
		return nil, fmt.Errorf("%w: booking %d", ErrNotFound, bookingID)
	}
	return &booking, nil
}

// ListForUser returns the actor's bookings as tenant plus bookings made
// against the actor's listings, newest first.
func (s *BookingService) ListForUser(actor *models.User) ([]models.Booking, error) {
	var bookings []models.Booking
	err := s.DB.
		Joins("JOIN listings ON listings.id = bookings.listing_id").
		Where("bookings.tenant_id = ? OR listings.owner_id = ?", actor.ID, actor.ID).
		Preload("Listing").
		Order("bookings.created_at DESC").
		Find(&bookings).Error
	if err != nil {
		return nil, fmt.Errorf("list bookings: %w", err)
	}
	return bookings, nil
}
