package models

import "time"

// Review is a tenant's rating of a stay. The unique index on BookingID is
// the "one review per booking" rule: existence is checked against the
// constraint, not by probing relations.
type Review struct {
	ID uint `gorm:"primaryKey" json:"id"`

	ListingID uint `gorm:"index;column:listing_id" json:"listing_id"`
	BookingID uint `gorm:"uniqueIndex;column:booking_id" json:"booking_id"`
	AuthorID  uint `gorm:"index;column:author_id" json:"author_id"`

	Rating int    `gorm:"column:rating" json:"rating"`
	Text   string `gorm:"type:text" json:"text,omitempty"`

	CreatedAt time.Time `json:"created_at"`

	Listing Listing `gorm:"foreignKey:ListingID;references:ID" json:"-"`
	Booking Booking `gorm:"foreignKey:BookingID;references:ID" json:"-"`
	Author  User    `gorm:"foreignKey:AuthorID;references:ID" json:"-"`
}
