package controllers

import (
	"net/http"
	"strconv"
	"time"

	"github.com/gin-gonic/gin"

	"rental-backend/middleware"
	"rental-backend/models"
	"rental-backend/services"
	"rental-backend/utils"
)

const dateLayout = "2006-01-02"

type CreateBookingRequest struct {
	ListingID uint   `json:"listing_id" binding:"required"`
	DateFrom  string `json:"date_from" binding:"required"`
	DateTo    string `json:"date_to" binding:"required"`
}

type UpdateBookingDatesRequest struct {
	DateFrom string `json:"date_from" binding:"required"`
	DateTo   string `json:"date_to" binding:"required"`
}

type bookingResponse struct {
	ID            uint       `json:"id"`
	ListingID     uint       `json:"listing_id"`
	ListingTitle  string     `json:"listing_title,omitempty"`
	TenantID      uint       `json:"tenant_id"`
	ReferenceCode string     `json:"reference_code"`
	DateFrom      string     `json:"date_from"`
	DateTo        string     `json:"date_to"`
	Status        string     `json:"status"`
	DecidedAt     *time.Time `json:"decided_at,omitempty"`
	DecidedByID   *uint      `json:"decided_by_id,omitempty"`
	CanceledAt    *time.Time `json:"canceled_at,omitempty"`
	CanCancel     bool       `json:"can_cancel"`
	CreatedAt     time.Time  `json:"created_at"`
	UpdatedAt     time.Time  `json:"updated_at"`
}

func toBookingResponse(b *models.Booking) bookingResponse {
	return bookingResponse{
		ID:            b.ID,
		ListingID:     b.ListingID,
		ListingTitle:  b.Listing.Title,
		TenantID:      b.TenantID,
		ReferenceCode: b.ReferenceCode,
		DateFrom:      b.DateFrom.Format(dateLayout),
		DateTo:        b.DateTo.Format(dateLayout),
		Status:        b.Status,
		DecidedAt:     b.DecidedAt,
		DecidedByID:   b.DecidedByID,
		CanceledAt:    b.CanceledAt,
		CanCancel:     b.CanCancel(time.Now()),
		CreatedAt:     b.CreatedAt,
		UpdatedAt:     b.UpdatedAt,
	}
}

func parseDateField(c *gin.Context, name, value string) (time.Time, bool) {
	t, err := time.Parse(dateLayout, value)
	if err != nil {
		utils.JSONError(c, http.StatusBadRequest, name+" must be a YYYY-MM-DD date")
		return time.Time{}, false
	}
	return t, true
}

func bookingIDParam(c *gin.Context) (uint, bool) {
	id, err := strconv.ParseUint(c.Param("id"), 10, 64)
	if err != nil || id == 0 {
		utils.JSONError(c, http.StatusBadRequest, "invalid booking id")
		return 0, false
	}
	return uint(id), true
}

type BookingController struct {
	Bookings *services.BookingService
}

func NewBookingController(svc *services.BookingService) *BookingController {
	return &BookingController{Bookings: svc}
}

// CreateBooking handles POST /api/bookings. The authenticated caller
// becomes the tenant.
func (ctrl *BookingController) CreateBooking(c *gin.Context) {
	var req CreateBookingRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		utils.JSONError(c, http.StatusBadRequest, "listing_id, date_from and date_to are required")
		return
	}

	dateFrom, ok := parseDateField(c, "date_from", req.DateFrom)
	if !ok {
		return
	}
	dateTo, ok := parseDateField(c, "date_to", req.DateTo)
	if !ok {
		return
	}

	user := middleware.CurrentUser(c)
	booking, err := ctrl.Bookings.Create(user, req.ListingID, dateFrom, dateTo)
	if err != nil {
		respondServiceError(c, err)
		return
	}

	// reload with the listing for the response payload
	if full, err := ctrl.Bookings.Get(user, booking.ID); err == nil {
		booking = full
	}
	utils.JSONSuccess(c, http.StatusCreated, toBookingResponse(booking))
}

// GetBookings handles GET /api/bookings: the caller's bookings as tenant
// plus bookings against the caller's listings.
func (ctrl *BookingController) GetBookings(c *gin.Context) {
	user := middleware.CurrentUser(c)
	bookings, err := ctrl.Bookings.ListForUser(user)
	if err != nil {
		respondServiceError(c, err)
		return
	}

	out := make([]bookingResponse, 0, len(bookings))
	for i := range bookings {
		out = append(out, toBookingResponse(&bookings[i]))
	}
	utils.JSONSuccess(c, http.StatusOK, out)
}

// GetBooking handles GET /api/bookings/:id.
func (ctrl *BookingController) GetBooking(c *gin.Context) {
	id, ok := bookingIDParam(c)
	if !ok {
		return
	}
	booking, err := ctrl.Bookings.Get(middleware.CurrentUser(c), id)
	if err != nil {
		respondServiceError(c, err)
		return
	}
	utils.JSONSuccess(c, http.StatusOK, toBookingResponse(booking))
}

// UpdateDates handles PATCH /api/bookings/:id/dates while the booking is
// still pending.
func (ctrl *BookingController) UpdateDates(c *gin.Context) {
	id, ok := bookingIDParam(c)
	if !ok {
		return
	}

	var req UpdateBookingDatesRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		utils.JSONError(c, http.StatusBadRequest, "date_from and date_to are required")
		return
	}
	dateFrom, ok := parseDateField(c, "date_from", req.DateFrom)
	if !ok {
		return
	}
	dateTo, ok := parseDateField(c, "date_to", req.DateTo)
	if !ok {
		return
	}

	booking, err := ctrl.Bookings.UpdateDates(middleware.CurrentUser(c), id, dateFrom, dateTo)
	if err != nil {
		respondServiceError(c, err)
		return
	}
	utils.JSONSuccess(c, http.StatusOK, toBookingResponse(booking))
}

// CancelBooking handles POST /api/bookings/:id/cancel.
func (ctrl *BookingController) CancelBooking(c *gin.Context) {
	id, ok := bookingIDParam(c)
	if !ok {
		return
	}
	if _, err := ctrl.Bookings.Cancel(middleware.CurrentUser(c), id); err != nil {
		respondServiceError(c, err)
		return
	}
	utils.JSONMessage(c, http.StatusOK, "booking canceled")
}

// ApproveBooking handles POST /api/bookings/:id/approve.
func (ctrl *BookingController) ApproveBooking(c *gin.Context) {
	id, ok := bookingIDParam(c)
	if !ok {
		return
	}
	if _, err := ctrl.Bookings.Approve(middleware.CurrentUser(c), id); err != nil {
		respondServiceError(c, err)
		return
	}
	utils.JSONMessage(c, http.StatusOK, "booking approved")
}

// RejectBooking handles POST /api/bookings/:id/reject.
func (ctrl *BookingController) RejectBooking(c *gin.Context) {
	id, ok := bookingIDParam(c)
	if !ok {
		return
	}
	if _, err := ctrl.Bookings.Reject(middleware.CurrentUser(c), id); err != nil {
		respondServiceError(c, err)
		return
	}
	utils.JSONMessage(c, http.StatusOK, "booking rejected")
}
