package services

import (
	"context"
	"fmt"
	"log"
	"sync"
	"time"
)

const (
	viewKeyFormat    = "listing:%d:views"
	viewDayKeyFormat = "listing:%d:views:%s"
	dayCounterTTL    = 7 * 24 * time.Hour
)

// ViewService records listing views into the fast store. Recording is
// fire-and-forget: the caller returns immediately and failures never
// reach the request that served the listing.
type ViewService struct {
	Store CounterStore

	retries int
	backoff time.Duration
	wg      sync.WaitGroup
}

func NewViewService(store CounterStore) *ViewService {
	return &ViewService{
		Store:   store,
		retries: 3,
		backoff: 200 * time.Millisecond,
	}
}

// RecordView counts one view of a listing. Owners looking at their own
// listing are not counted. viewerID zero means anonymous.
func (s *ViewService) RecordView(listingID, viewerID, ownerID uint) {
	if viewerID != 0 && viewerID == ownerID {
		return
	}

	s.wg.Add(1)
	go func() {
		defer s.wg.Done()
		s.recordWithRetry(listingID)
	}()
}

func (s *ViewService) recordWithRetry(listingID uint) {
	totalKey := fmt.Sprintf(viewKeyFormat, listingID)
	dayKey := fmt.Sprintf(viewDayKeyFormat, listingID, time.Now().Format("2006-01-02"))

	// Each key is incremented at most once: a retry re-runs only the
	// increment that failed, never the one that already landed.
	totalDone := false
	delay := s.backoff
	for attempt := 0; attempt <= s.retries; attempt++ {
		if attempt > 0 {
			time.Sleep(delay)
			delay *= 2
		}

		ctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
		var err error
		if !totalDone {
			if err = s.Store.IncrBy(ctx, totalKey, 1); err == nil {
				totalDone = true
			}
		}
		if err == nil {
			err = s.Store.IncrByWithTTL(ctx, dayKey, 1, dayCounterTTL)
		}
		cancel()
		if err == nil {
			return
		}
		if attempt == s.retries {
			log.Printf("⚠️  view increment dropped for listing %d after %d attempts: %v", listingID, attempt+1, err)
		}
	}
}

// ViewsToday reads the current day bucket without draining it.
func (s *ViewService) ViewsToday(ctx context.Context, listingID uint) (int64, error) {
	key := fmt.Sprintf(viewDayKeyFormat, listingID, time.Now().Format("2006-01-02"))
	return s.Store.Get(ctx, key)
}

// Wait blocks until every in-flight recording goroutine has finished.
// Called on shutdown so buffered increments are not lost mid-write.
func (s *ViewService) Wait() {
	s.wg.Wait()
}
