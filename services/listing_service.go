package services

import (
	"errors"
	"fmt"
	"log"
	"strings"
	"time"

	"gorm.io/gorm"

	"rental-backend/models"
)

// ListingSearchParams mirrors the public search filters. Zero values mean
// "no filter".
type ListingSearchParams struct {
	Query       string
	Country     string
	City        string
	District    string
	HousingType string
	Currency    string
	PriceMin    *float64
	PriceMax    *float64
	RoomsMin    *int
	RoomsMax    *int
	Sort        string
	Page        int
	PageSize    int
}

// ListingPage is one page of search results.
type ListingPage struct {
	Count    int64            `json:"count"`
	Page     int              `json:"page"`
	PageSize int              `json:"page_size"`
	Results  []models.Listing `json:"results"`
}

type ListingService struct {
	DB       *gorm.DB
	Notifier ListingNotifier

	// DuplicateGrace is how long an exact copy of a live listing may
	// stand before the cleanup soft-deletes it. Zero disables cleanup.
	DuplicateGrace time.Duration
}

func NewListingService(db *gorm.DB, notifier ListingNotifier) *ListingService {
	return &ListingService{
		DB:             db,
		Notifier:       notifier,
		DuplicateGrace: 24 * time.Hour,
	}
}

func validHousingType(t string) bool {
	switch t {
	case models.HousingApartment, models.HousingHouse, models.HousingRoom:
		return true
	}
	return false
}

func validParkingType(t string) bool {
	switch t {
	case models.ParkingNone, models.ParkingSpace, models.ParkingGarage:
		return true
	}
	return false
}

func validCurrency(c string) bool {
	switch c {
	case "USD", "EUR", "RUB", "UAH":
		return true
	}
	return false
}

func (s *ListingService) validate(l *models.Listing) error {
	if strings.TrimSpace(l.Title) == "" {
		return fmt.Errorf("%w: title is required", ErrValidation)
	}
	if l.Price < 0 {
		return fmt.Errorf("%w: price must not be negative", ErrValidation)
	}
	if l.Rooms <= 0 {
		return fmt.Errorf("%w: rooms must be positive", ErrValidation)
	}
	if !validHousingType(l.HousingType) {
		return fmt.Errorf("%w: unknown housing_type %q", ErrValidation, l.HousingType)
	}
	if l.ParkingType == "" {
		l.ParkingType = models.ParkingNone
	}
	if !validParkingType(l.ParkingType) {
		return fmt.Errorf("%w: unknown parking_type %q", ErrValidation, l.ParkingType)
	}
	if l.Currency == "" {
		l.Currency = "USD"
	}
	if !validCurrency(l.Currency) {
		return fmt.Errorf("%w: unknown currency %q", ErrValidation, l.Currency)
	}
	return nil
}

// duplicateIDs returns other live listings whose content matches field
// for field, at most ten of them.
func (s *ListingService) duplicateIDs(l *models.Listing) ([]uint, error) {
	var ids []uint
	err := s.DB.Model(&models.Listing{}).
		Where(map[string]interface{}{
			"owner_id":         l.OwnerID,
			"title":            l.Title,
			"description":      l.Description,
			"country":          l.Country,
			"city":             l.City,
			"postal_code":      l.PostalCode,
			"street":           l.Street,
			"house_number":     l.HouseNumber,
			"floor":            l.Floor,
			"apartment_number": l.ApartmentNumber,
			"price":            l.Price,
			"currency":         l.Currency,
			"rooms":            l.Rooms,
			"housing_type":     l.HousingType,
			"parking_type":     l.ParkingType,
			"is_active":        l.IsActive,
		}).
		Where("id <> ?", l.ID).
		Order("id").
		Limit(10).
		Pluck("id", &ids).Error
	if err != nil {
		return nil, fmt.Errorf("find duplicates: %w", err)
	}
	return ids, nil
}

// Create publishes a new listing owned by the actor. The admin is
// notified of every new listing; when the listing is an exact copy of a
// live one the duplicate is flagged and, after a grace period, removed
// if still unchanged.
func (s *ListingService) Create(owner *models.User, listing *models.Listing) error {
	listing.ID = 0
	listing.OwnerID = owner.ID
	listing.IsActive = true
	if err := s.validate(listing); err != nil {
		return err
	}
	if err := s.DB.Create(listing).Error; err != nil {
		return fmt.Errorf("create listing: %w", err)
	}

	dups, err := s.duplicateIDs(listing)
	if err != nil {
		log.Printf("⚠️  duplicate check failed for listing %d: %v", listing.ID, err)
		dups = nil
	}
	if s.Notifier != nil {
		s.Notifier.EnqueueListing(ListingEvent{ListingID: listing.ID, DuplicateIDs: dups})
	}
	if len(dups) > 0 && s.DuplicateGrace > 0 {
		id := listing.ID
		time.AfterFunc(s.DuplicateGrace, func() {
			if deleted, err := s.DeleteIfStillDuplicate(id); err != nil {
				log.Printf("⚠️  duplicate cleanup failed for listing %d: %v", id, err)
			} else if deleted {
				log.Printf("🧹 removed duplicate listing %d", id)
			}
		})
	}
	return nil
}

// DeleteIfStillDuplicate soft-deletes a listing that is still an exact
// copy of another live listing. Run after the grace period so an owner
// who edits one of the copies keeps both.
func (s *ListingService) DeleteIfStillDuplicate(id uint) (bool, error) {
	var listing models.Listing
	if err := s.DB.First(&listing, id).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return false, nil
		}
		return false, fmt.Errorf("load listing: %w", err)
	}

	dups, err := s.duplicateIDs(&listing)
	if err != nil {
		return false, err
	}
	if len(dups) == 0 {
		return false, nil
	}
	if err := s.DB.Delete(&listing).Error; err != nil {
		return false, fmt.Errorf("delete duplicate listing: %w", err)
	}
	return true, nil
}

// Get returns a live listing by id.
func (s *ListingService) Get(id uint) (*models.Listing, error) {
	var listing models.Listing
	if err := s.DB.First(&listing, id).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, fmt.Errorf("%w: listing %d", ErrNotFound, id)
		}
		return nil, fmt.Errorf("load listing: %w", err)
	}
	return &listing, nil
}

// Update applies owner edits. Ownership is checked here, not trusted from
// the payload.
func (s *ListingService) Update(actor *models.User, id uint, updated *models.Listing) (*models.Listing, error) {
	listing, err := s.Get(id)
	if err != nil {
		return nil, err
	}
	if listing.OwnerID != actor.ID {
		return nil, fmt.Errorf("%w: only the owner can edit a listing", ErrForbidden)
	}

	updated.ID = listing.ID
	updated.OwnerID = listing.OwnerID
	updated.CreatedAt = listing.CreatedAt
	if err := s.validate(updated); err != nil {
		return nil, err
	}

	if err := s.DB.Model(listing).Updates(map[string]interface{}{
		"title":            updated.Title,
		"description":      updated.Description,
		"country":          updated.Country,
		"city":             updated.City,
		"postal_code":      updated.PostalCode,
		"street":           updated.Street,
		"house_number":     updated.HouseNumber,
		"floor":            updated.Floor,
		"apartment_number": updated.ApartmentNumber,
		"price":            updated.Price,
		"currency":         updated.Currency,
		"rooms":            updated.Rooms,
		"housing_type":     updated.HousingType,
		"parking_type":     updated.ParkingType,
		"amenities":        updated.Amenities,
		"is_active":        updated.IsActive,
	}).Error; err != nil {
		return nil, fmt.Errorf("update listing: %w", err)
	}
	return s.Get(id)
}

// Delete soft-deletes a listing. Owner or admin. Bookings and reviews
// keep their rows; the listing just disappears from queries.
func (s *ListingService) Delete(actor *models.User, id uint) error {
	listing, err := s.Get(id)
	if err != nil {
		return err
	}
	if listing.OwnerID != actor.ID && !actor.IsAdmin() {
		return fmt.Errorf("%w: only the owner or an admin can delete a listing", ErrForbidden)
	}
	if err := s.DB.Delete(listing).Error; err != nil {
		return fmt.Errorf("delete listing: %w", err)
	}
	return nil
}

// Search filters, sorts and paginates active listings.
func (s *ListingService) Search(p ListingSearchParams) (*ListingPage, error) {
	q := s.DB.Model(&models.Listing{}).Where("is_active = ?", true)

	if term := strings.TrimSpace(p.Query); term != "" {
		like := "%" + term + "%"
		q = q.Where("title LIKE ? OR description LIKE ?", like, like)
	}
	if p.Country != "" {
		q = q.Where("country LIKE ?", "%"+p.Country+"%")
	}
	if p.City != "" {
		q = q.Where("city LIKE ?", "%"+p.City+"%")
	}
	if p.District != "" {
		like := "%" + p.District + "%"
		q = q.Where("street LIKE ? OR postal_code LIKE ?", like, like)
	}
	if p.HousingType != "" {
		q = q.Where("housing_type = ?", p.HousingType)
	}
	if p.Currency != "" {
		q = q.Where("currency = ?", p.Currency)
	}
	if p.PriceMin != nil {
		q = q.Where("price >= ?", *p.PriceMin)
	}
	if p.PriceMax != nil {
		q = q.Where("price <= ?", *p.PriceMax)
	}
	if p.RoomsMin != nil {
		q = q.Where("rooms >= ?", *p.RoomsMin)
	}
	if p.RoomsMax != nil {
		q = q.Where("rooms <= ?", *p.RoomsMax)
	}

	// Count on a session clone: executing a finisher poisons the chain
	// for the paginated Find below.
	var count int64
	if err := q.Session(&gorm.Session{}).Count(&count).Error; err != nil {
		return nil, fmt.Errorf("count listings: %w", err)
	}

	switch p.Sort {
	case "price_asc":
		q = q.Order("price ASC, created_at DESC")
	case "price_desc":
		q = q.Order("price DESC, created_at DESC")
	case "date_old":
		q = q.Order("created_at ASC")
	default:
		q = q.Order("created_at DESC")
	}

	page := p.Page
	if page < 1 {
		page = 1
	}
	size := p.PageSize
	if size < 1 {
		size = 10
	}
	if size > 100 {
		size = 100
	}

	var results []models.Listing
	if err := q.Offset((page - 1) * size).Limit(size).Find(&results).Error; err != nil {
		return nil, fmt.Errorf("search listings: %w", err)
	}

	return &ListingPage{Count: count, Page: page, PageSize: size, Results: results}, nil
}
