package models

import (
	"strings"
	"time"

	"gorm.io/datatypes"
	"gorm.io/gorm"
)

const (
	HousingApartment = "apartment"
	HousingHouse     = "house"
	HousingRoom      = "room"

	ParkingNone  = "none"
	ParkingSpace = "parking_space"
	ParkingGarage = "garage"
)

// Listing is a published rental unit. Soft-deleted listings stay in the
// table for booking/review linkage but are filtered out of every query.
type Listing struct {
	ID      uint `gorm:"primaryKey" json:"id"`
	OwnerID uint `gorm:"index;column:owner_id" json:"owner_id"`

	Title       string `gorm:"size:255" json:"title"`
	Description string `gorm:"type:text" json:"description"`

	Country         string `gorm:"size:100" json:"country,omitempty"`
	City            string `gorm:"size:100;index" json:"city,omitempty"`
	PostalCode      string `gorm:"size:20" json:"postal_code,omitempty"`
	Street          string `gorm:"size:255" json:"street,omitempty"`
	HouseNumber     string `gorm:"size:20" json:"house_number,omitempty"`
	Floor           string `gorm:"size:20" json:"floor,omitempty"`
	ApartmentNumber string `gorm:"size:20" json:"apartment_number,omitempty"`

	Price    float64 `gorm:"type:decimal(10,2)" json:"price"`
	Currency string  `gorm:"size:3;default:USD" json:"currency"`

	Rooms       int    `gorm:"column:rooms" json:"rooms"`
	HousingType string `gorm:"size:20" json:"housing_type"`
	ParkingType string `gorm:"size:20;default:none" json:"parking_type"`

	Amenities datatypes.JSON `gorm:"column:amenities" json:"amenities,omitempty"`

	// No column default: gorm skips zero-value fields that have one, so
	// a default here would silently persist false as true on create.
	IsActive bool `json:"is_active"`

	CreatedAt time.Time      `json:"created_at"`
	UpdatedAt time.Time      `json:"updated_at"`
	DeletedAt gorm.DeletedAt `gorm:"index" json:"-"`

	Owner User `gorm:"foreignKey:OwnerID;references:ID" json:"-"`
}

// FullAddress joins the address parts into a single display line.
func (l *Listing) FullAddress() string {
	parts := []string{}
	for _, p := range []string{l.Country, l.City, l.PostalCode, l.Street, l.HouseNumber} {
		if strings.TrimSpace(p) != "" {
			parts = append(parts, strings.TrimSpace(p))
		}
	}
	base := strings.Join(parts, ", ")

	extra := []string{}
	if l.Floor != "" {
		extra = append(extra, "floor "+l.Floor)
	}
	if l.ApartmentNumber != "" {
		extra = append(extra, "apt. "+l.ApartmentNumber)
	}

	if len(extra) > 0 && base != "" {
		return base + ", " + strings.Join(extra, ", ")
	}
	if base != "" {
		return base
	}
	return strings.Join(extra, ", ")
}
