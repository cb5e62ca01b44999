package services

import (
	"context"
	"errors"
	"log"
	"regexp"
	"strconv"
	"time"

	"gorm.io/gorm"
	"gorm.io/gorm/clause"

	"rental-backend/models"
)

// viewKeyPattern matches all-time counter keys only; day buckets carry a
// date suffix and are left to their TTL.
var viewKeyPattern = regexp.MustCompile(`^listing:(\d+):views$`)

// FlushSummary reports one aggregation pass.
type FlushSummary struct {
	KeysFound       int   `json:"keys_found"`
	ListingsUpdated int   `json:"listings_updated"`
	TotalIncrement  int64 `json:"total_increment"`
}

// Aggregator drains buffered view counters into the durable per-listing
// stats table. Safe to run concurrently with itself: each key's drain is
// atomic, so a retried pass sees zero and applies a zero delta.
type Aggregator struct {
	DB    *gorm.DB
	Store CounterStore
}

func NewAggregator(db *gorm.DB, store CounterStore) *Aggregator {
	return &Aggregator{DB: db, Store: store}
}

// Flush scans all-time counter keys page by page, drains each one and
// adds the delta to the durable total. batchSize only tunes the scan page
// size. Keys that do not look like listing counters are skipped and left
// in place.
func (a *Aggregator) Flush(ctx context.Context, batchSize int64) (FlushSummary, error) {
	if batchSize <= 0 {
		batchSize = 100
	}

	var summary FlushSummary
	var cursor uint64

	for {
		keys, next, err := a.Store.Scan(ctx, "listing:*:views", cursor, batchSize)
		if err != nil {
			return summary, err
		}

		for _, key := range keys {
			m := viewKeyPattern.FindStringSubmatch(key)
			if m == nil {
				continue
			}
			listingID, err := strconv.ParseUint(m[1], 10, 64)
			if err != nil {
				continue
			}
			summary.KeysFound++

			delta, err := a.Store.Drain(ctx, key)
			if err != nil {
				log.Printf("⚠️  drain failed for %s: %v", key, err)
				continue
			}
			if delta <= 0 {
				continue
			}

			if err := a.applyDelta(ctx, uint(listingID), delta); err != nil {
				// Put the drained delta back so the next pass retries it.
				if reErr := a.Store.IncrBy(ctx, key, delta); reErr != nil {
					log.Printf("❌ lost %d views for listing %d: apply: %v, restore: %v", delta, listingID, err, reErr)
				} else {
					log.Printf("⚠️  apply failed for %s, %d views returned to the store: %v", key, delta, err)
				}
				continue
			}

			summary.ListingsUpdated++
			summary.TotalIncrement += delta
		}

		cursor = next
		if cursor == 0 {
			break
		}
	}

	return summary, nil
}

// applyDelta adds the drained count to the durable total with a single
// upsert, never a read-modify-write from memory.
func (a *Aggregator) applyDelta(ctx context.Context, listingID uint, delta int64) error {
	stat := models.ListingViewStat{
		ListingID:  listingID,
		ViewsTotal: delta,
		UpdatedAt:  time.Now(),
	}
	return a.DB.WithContext(ctx).Clauses(clause.OnConflict{
		Columns: []clause.Column{{Name: "listing_id"}},
		DoUpdates: clause.Assignments(map[string]interface{}{
			"views_total": gorm.Expr("views_total + ?", delta),
			"updated_at":  time.Now(),
		}),
	}).Create(&stat).Error
}

// StatFor returns the durable total for a listing; a listing with no
// flushed views yet reads as zero.
func (a *Aggregator) StatFor(ctx context.Context, listingID uint) (models.ListingViewStat, error) {
	var stat models.ListingViewStat
	err := a.DB.WithContext(ctx).Where("listing_id = ?", listingID).First(&stat).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return models.ListingViewStat{ListingID: listingID}, nil
	}
	return stat, err
}
