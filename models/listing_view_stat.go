package models

import "time"

// ListingViewStat is the durable per-listing view total. Rows are created
// lazily on the first aggregation flush and mutated only through an atomic
// increment, never by read-modify-write from application memory.
type ListingViewStat struct {
	ID         uint      `gorm:"primaryKey" json:"id"`
	ListingID  uint      `gorm:"uniqueIndex;column:listing_id" json:"listing_id"`
	ViewsTotal int64     `gorm:"column:views_total;default:0" json:"views_total"`
	UpdatedAt  time.Time `json:"updated_at"`
}
