package services

import (
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gorm.io/gorm"

	"rental-backend/models"
)

// recordingSender captures outgoing mail and can fail a configured number
// of times before succeeding.
type recordingSender struct {
	mu        sync.Mutex
	failFirst int
	calls     int
	sent      [][]string
	subjects  []string
	bodies    []string
}

func (s *recordingSender) Send(to []string, subject, body string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.calls++
	if s.calls <= s.failFirst {
		return errors.New("smtp unavailable")
	}
	s.sent = append(s.sent, to)
	s.subjects = append(s.subjects, subject)
	s.bodies = append(s.bodies, body)
	return nil
}

func (s *recordingSender) callCount() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.calls
}

func (s *recordingSender) sentCount() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.sent)
}

func seedBooking(t *testing.T, db *gorm.DB) (*models.User, *models.User, *models.Booking) {
	t.Helper()
	owner := createUser(t, db, models.RoleLandlord)
	tenant := createUser(t, db, models.RoleTenant)
	listing := createListing(t, db, owner)
	booking := &models.Booking{
		ListingID:     listing.ID,
		TenantID:      tenant.ID,
		ReferenceCode: "ref-" + t.Name(),
		DateFrom:      daysAhead(10),
		DateTo:        daysAhead(15),
		Status:        models.BookingPending,
	}
	require.NoError(t, db.Create(booking).Error)
	return owner, tenant, booking
}

func newTestDispatcher(db *gorm.DB, sender EmailSender) *Dispatcher {
	d := NewDispatcher(db, sender, 16)
	d.backoff = time.Millisecond
	return d
}

func TestDispatcherDelivers(t *testing.T) {
	db := setupTestDB(t)
	owner, tenant, booking := seedBooking(t, db)

	sender := &recordingSender{}
	d := newTestDispatcher(db, sender)
	d.Start()

	d.Enqueue(BookingEvent{Kind: EventBookingCreated, BookingID: booking.ID, ActorID: &tenant.ID})
	d.Stop()

	require.Equal(t, 1, sender.sentCount())
	assert.ElementsMatch(t, []string{tenant.Email, owner.Email}, sender.sent[0])
	assert.Contains(t, sender.subjects[0], "New booking request")
}

func TestDispatcherRetriesUntilSuccess(t *testing.T) {
	db := setupTestDB(t)
	_, tenant, booking := seedBooking(t, db)

	sender := &recordingSender{failFirst: 2}
	d := newTestDispatcher(db, sender)
	d.Start()

	d.Enqueue(BookingEvent{Kind: EventBookingCreated, BookingID: booking.ID, ActorID: &tenant.ID})
	d.Stop()

	assert.Equal(t, 3, sender.callCount())
	assert.Equal(t, 1, sender.sentCount())
}

func TestDispatcherDropsAfterExhaustion(t *testing.T) {
	db := setupTestDB(t)
	_, tenant, booking := seedBooking(t, db)

	sender := &recordingSender{failFirst: 100}
	d := newTestDispatcher(db, sender)
	d.Start()

	d.Enqueue(BookingEvent{Kind: EventBookingCreated, BookingID: booking.ID, ActorID: &tenant.ID})
	d.Stop()

	assert.Equal(t, d.maxAttempts, sender.callCount())
	assert.Zero(t, sender.sentCount())
}

func TestDispatcherAdminCopy(t *testing.T) {
	db := setupTestDB(t)
	owner, tenant, booking := seedBooking(t, db)

	sender := &recordingSender{}
	d := newTestDispatcher(db, sender)
	d.AdminCopy = "admin@example.com"
	d.Start()

	// Admin gets a copy of approvals and cancellations, not of requests.
	d.Enqueue(BookingEvent{Kind: EventBookingCreated, BookingID: booking.ID, ActorID: &tenant.ID})
	d.Enqueue(BookingEvent{Kind: EventBookingApproved, BookingID: booking.ID, ActorID: &owner.ID})
	d.Enqueue(BookingEvent{Kind: EventBookingCanceled, BookingID: booking.ID, ActorID: &tenant.ID})
	d.Stop()

	require.Equal(t, 3, sender.sentCount())
	assert.NotContains(t, sender.sent[0], "admin@example.com")
	assert.Contains(t, sender.sent[1], "admin@example.com")
	assert.Contains(t, sender.sent[2], "admin@example.com")
}

func TestDispatcherCancellationWording(t *testing.T) {
	db := setupTestDB(t)
	owner, tenant, booking := seedBooking(t, db)

	sender := &recordingSender{}
	d := newTestDispatcher(db, sender)
	d.Start()

	d.Enqueue(BookingEvent{Kind: EventBookingCanceled, BookingID: booking.ID, ActorID: &tenant.ID})
	d.Enqueue(BookingEvent{Kind: EventBookingCanceled, BookingID: booking.ID, ActorID: &owner.ID})
	d.Stop()

	require.Equal(t, 2, sender.sentCount())
	assert.Contains(t, sender.bodies[0], "canceled by the tenant")
	assert.Contains(t, sender.bodies[1], "canceled by the landlord")
}

func TestDispatcherListingEmails(t *testing.T) {
	db := setupTestDB(t)
	owner := createUser(t, db, models.RoleLandlord)
	listing := createListing(t, db, owner)

	sender := &recordingSender{}
	d := newTestDispatcher(db, sender)
	d.AdminCopy = "admin@example.com"
	d.Start()

	d.EnqueueListing(ListingEvent{ListingID: listing.ID})
	d.EnqueueListing(ListingEvent{ListingID: listing.ID, DuplicateIDs: []uint{42}})
	d.Stop()

	require.Equal(t, 3, sender.sentCount(), "a flagged duplicate sends a second message")
	assert.Equal(t, []string{"admin@example.com"}, sender.sent[0])
	assert.Contains(t, sender.subjects[0], "New listing created")
	assert.Contains(t, sender.subjects[1], "New listing created")
	assert.Contains(t, sender.subjects[2], "Duplicate listing detected")
	assert.Contains(t, sender.bodies[2], "42")
}

func TestDispatcherListingEmailsSkippedWithoutAdmin(t *testing.T) {
	db := setupTestDB(t)
	owner := createUser(t, db, models.RoleLandlord)
	listing := createListing(t, db, owner)

	sender := &recordingSender{}
	d := newTestDispatcher(db, sender)
	d.Start()

	d.EnqueueListing(ListingEvent{ListingID: listing.ID})
	d.Stop()

	assert.Zero(t, sender.sentCount())
}

func TestDispatcherFullQueueDropsWithoutBlocking(t *testing.T) {
	db := setupTestDB(t)

	d := NewDispatcher(db, &recordingSender{}, 1)
	// Worker never started, so the second enqueue finds the buffer full.
	done := make(chan struct{})
	go func() {
		d.Enqueue(BookingEvent{Kind: EventBookingCreated, BookingID: 1})
		d.Enqueue(BookingEvent{Kind: EventBookingCreated, BookingID: 2})
		close(done)
	}()

	select {
	case <-done:
	case <-time.After(time.Second):
		t.Fatal("Enqueue blocked on a full queue")
	}
}
