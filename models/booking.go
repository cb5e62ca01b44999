package models

import (
	"time"

	"gorm.io/gorm"
)

const (
	BookingPending   = "pending"
	BookingApproved  = "approved"
	BookingRejected  = "rejected"
	BookingCanceled  = "canceled"
	BookingCompleted = "completed"
)

// Booking is a tenant's reservation request against a listing for a
// half-open date range [DateFrom, DateTo). Bookings are never hard
// deleted; terminal rows stay for audit and review linkage.
type Booking struct {
	ID uint `gorm:"primaryKey" json:"id"`

	ListingID uint `gorm:"index:idx_bookings_listing_status,priority:1;column:listing_id" json:"listing_id"`
	TenantID  uint `gorm:"index;column:tenant_id" json:"tenant_id"`

	ReferenceCode string `gorm:"column:reference_code;size:64;uniqueIndex" json:"reference_code"`

	DateFrom time.Time `gorm:"column:date_from;type:date;index:idx_bookings_listing_status,priority:3" json:"date_from"`
	DateTo   time.Time `gorm:"column:date_to;type:date" json:"date_to"`

	Status string `gorm:"size:20;default:pending;index:idx_bookings_listing_status,priority:2" json:"status"`

	DecidedAt   *time.Time `gorm:"column:decided_at" json:"decided_at,omitempty"`
	DecidedByID *uint      `gorm:"column:decided_by_id" json:"decided_by_id,omitempty"`
	CanceledAt  *time.Time `gorm:"column:canceled_at" json:"canceled_at,omitempty"`

	CreatedAt time.Time      `json:"created_at"`
	UpdatedAt time.Time      `json:"updated_at"`
	DeletedAt gorm.DeletedAt `gorm:"index" json:"-"`

	Listing   Listing `gorm:"foreignKey:ListingID;references:ID" json:"-"`
	Tenant    User    `gorm:"foreignKey:TenantID;references:ID" json:"-"`
	DecidedBy *User   `gorm:"foreignKey:DecidedByID;references:ID" json:"-"`
}

// IsTerminal reports whether no further transition is permitted.
func (b *Booking) IsTerminal() bool {
	switch b.Status {
	case BookingRejected, BookingCanceled, BookingCompleted:
		return true
	}
	return false
}

// CanCancel gates the cancel transition: strictly before the stay starts
// and not already decided into a terminal state. Re-evaluated server-side
// at transition time.
func (b *Booking) CanCancel(today time.Time) bool {
	if b.Status != BookingPending && b.Status != BookingApproved {
		return false
	}
	y, m, d := today.Date()
	localDate := time.Date(y, m, d, 0, 0, 0, 0, time.UTC)
	from := time.Date(b.DateFrom.Year(), b.DateFrom.Month(), b.DateFrom.Day(), 0, 0, 0, 0, time.UTC)
	return localDate.Before(from)
}

// Overlaps reports half-open interval overlap with [from, to):
// ranges touching only at a boundary date do not overlap.
func (b *Booking) Overlaps(from, to time.Time) bool {
	return b.DateFrom.Before(to) && from.Before(b.DateTo)
}
