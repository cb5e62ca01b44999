package services

import (
	"fmt"
	"log"
	"sync"
	"time"

	"gorm.io/gorm"

	"rental-backend/models"
)

const (
	EventBookingCreated  = "created"
	EventBookingApproved = "approved"
	EventBookingRejected = "rejected"
	EventBookingCanceled = "canceled"
)

// BookingEvent is the fire-and-forget contract between the transition
// path and notification delivery. The core enqueues and moves on; it
// never inspects the delivery result.
type BookingEvent struct {
	Kind      string
	BookingID uint
	ActorID   *uint
}

// Notifier is what the booking ledger needs from the notification side.
type Notifier interface {
	Enqueue(ev BookingEvent)
}

// ListingEvent announces a newly published listing, with the IDs of any
// live listings that are exact copies of it.
type ListingEvent struct {
	ListingID    uint
	DuplicateIDs []uint
}

// ListingNotifier is the listing side of the same contract.
type ListingNotifier interface {
	EnqueueListing(ev ListingEvent)
}

// envelope is the worker's queue element: exactly one of the two event
// kinds is set.
type envelope struct {
	booking *BookingEvent
	listing *ListingEvent
}

func (e envelope) describe() string {
	if e.listing != nil {
		return fmt.Sprintf("listing %d created", e.listing.ListingID)
	}
	return fmt.Sprintf("%s for booking %d", e.booking.Kind, e.booking.BookingID)
}

// EmailSender delivers one message. utils.SMTPSender is the production
// implementation; tests substitute a recorder.
type EmailSender interface {
	Send(to []string, subject, body string) error
}

// Dispatcher drains booking events off a buffered channel on a single
// worker goroutine, with bounded exponential backoff per event. A failed
// event is logged and dropped after the last attempt; it never rolls back
// the transition that produced it.
type Dispatcher struct {
	DB     *gorm.DB
	Sender EmailSender

	AdminCopy string // optional extra recipient for approved/canceled

	maxAttempts int
	backoff     time.Duration

	queue chan envelope
	wg    sync.WaitGroup
	once  sync.Once
}

func NewDispatcher(db *gorm.DB, sender EmailSender, buffer int) *Dispatcher {
	if buffer <= 0 {
		buffer = 256
	}
	return &Dispatcher{
		DB:          db,
		Sender:      sender,
		maxAttempts: 5,
		backoff:     500 * time.Millisecond,
		queue:       make(chan envelope, buffer),
	}
}

// Start launches the worker goroutine.
func (d *Dispatcher) Start() {
	d.wg.Add(1)
	go func() {
		defer d.wg.Done()
		for ev := range d.queue {
			d.deliverWithRetry(ev)
		}
	}()
}

// Stop closes the queue and waits for in-flight deliveries.
func (d *Dispatcher) Stop() {
	d.once.Do(func() { close(d.queue) })
	d.wg.Wait()
}

// Enqueue hands a booking event to the worker without blocking. A full
// queue drops the event with a log line; notification is best-effort.
func (d *Dispatcher) Enqueue(ev BookingEvent) {
	d.enqueue(envelope{booking: &ev})
}

// EnqueueListing hands a listing event to the same worker.
func (d *Dispatcher) EnqueueListing(ev ListingEvent) {
	d.enqueue(envelope{listing: &ev})
}

func (d *Dispatcher) enqueue(env envelope) {
	select {
	case d.queue <- env:
	default:
		log.Printf("⚠️  notification queue full, dropping %s", env.describe())
	}
}

func (d *Dispatcher) deliverWithRetry(env envelope) {
	delay := d.backoff
	for attempt := 1; attempt <= d.maxAttempts; attempt++ {
		if attempt > 1 {
			time.Sleep(delay)
			delay *= 2
		}
		if err := d.deliver(env); err != nil {
			if attempt == d.maxAttempts {
				log.Printf("❌ notification %s dropped after %d attempts: %v", env.describe(), attempt, err)
			}
			continue
		}
		return
	}
}

func (d *Dispatcher) deliver(env envelope) error {
	if env.listing != nil {
		return d.deliverListing(*env.listing)
	}
	return d.deliverBooking(*env.booking)
}

// deliverListing mails the admin about a new listing, with a second
// message when exact copies of it already exist.
func (d *Dispatcher) deliverListing(ev ListingEvent) error {
	if d.AdminCopy == "" {
		return nil
	}

	var listing models.Listing
	if err := d.DB.Unscoped().First(&listing, ev.ListingID).Error; err != nil {
		return fmt.Errorf("load listing %d: %w", ev.ListingID, err)
	}

	details := fmt.Sprintf(
		"Listing ID: %d\nOwner ID: %d\nTitle: %s\nAddress: %s\nPrice: %.2f %s\nHousing type: %s\nRooms: %d\nActive: %t\n",
		listing.ID, listing.OwnerID, listing.Title, listing.FullAddress(),
		listing.Price, listing.Currency, listing.HousingType, listing.Rooms, listing.IsActive,
	)

	subject := fmt.Sprintf("New listing created (ID %d)", listing.ID)
	body := "A new listing has been published.\n\n" + details
	if err := d.Sender.Send([]string{d.AdminCopy}, subject, body); err != nil {
		return err
	}

	if len(ev.DuplicateIDs) > 0 {
		subject = fmt.Sprintf("Duplicate listing detected (ID %d)", listing.ID)
		body = fmt.Sprintf("An identical live listing already exists.\n\nDuplicate IDs: %v\n\n%s", ev.DuplicateIDs, details)
		return d.Sender.Send([]string{d.AdminCopy}, subject, body)
	}
	return nil
}

func (d *Dispatcher) deliverBooking(ev BookingEvent) error {
	var booking models.Booking
	if err := d.DB.Preload("Listing").Preload("Listing.Owner").Preload("Tenant").
		First(&booking, ev.BookingID).Error; err != nil {
		return fmt.Errorf("load booking %d: %w", ev.BookingID, err)
	}

	subject, body := d.compose(ev, &booking)

	recipients := []string{}
	if booking.Tenant.Email != "" {
		recipients = append(recipients, booking.Tenant.Email)
	}
	if booking.Listing.Owner.Email != "" {
		recipients = append(recipients, booking.Listing.Owner.Email)
	}
	if d.AdminCopy != "" && (ev.Kind == EventBookingApproved || ev.Kind == EventBookingCanceled) {
		recipients = append(recipients, d.AdminCopy)
	}
	recipients = dedupe(recipients)
	if len(recipients) == 0 {
		return nil
	}

	return d.Sender.Send(recipients, subject, body)
}

func (d *Dispatcher) compose(ev BookingEvent, booking *models.Booking) (string, string) {
	details := fmt.Sprintf(
		"Listing: %s\nTenant: %s\nCheck-in: %s\nCheck-out: %s\nStatus: %s\n",
		booking.Listing.Title,
		booking.Tenant.Email,
		booking.DateFrom.Format("2006-01-02"),
		booking.DateTo.Format("2006-01-02"),
		booking.Status,
	)

	switch ev.Kind {
	case EventBookingApproved:
		return fmt.Sprintf("Booking approved (ID %d)", booking.ID),
			"The booking has been approved.\n\n" + details
	case EventBookingRejected:
		return fmt.Sprintf("Booking rejected (ID %d)", booking.ID),
			"The booking has been rejected.\n\n" + details
	case EventBookingCanceled:
		by := "the landlord"
		if ev.ActorID != nil && *ev.ActorID == booking.TenantID {
			by = "the tenant"
		}
		return fmt.Sprintf("Booking canceled (ID %d)", booking.ID),
			fmt.Sprintf("The booking has been canceled by %s.\n\n%s", by, details)
	default:
		return fmt.Sprintf("New booking request (ID %d)", booking.ID),
			"A new booking has been created.\n\n" + details
	}
}

func dedupe(in []string) []string {
	seen := make(map[string]struct{}, len(in))
	out := make([]string, 0, len(in))
	for _, s := range in {
		if _, ok := seen[s]; ok {
			continue
		}
		seen[s] = struct{}{}
		out = append(out, s)
	}
	return out
}
