package controllers

import (
	"net/http"
	"strconv"

	"github.com/gin-gonic/gin"

	"rental-backend/middleware"
	"rental-backend/models"
	"rental-backend/services"
	"rental-backend/utils"
)

type ListingController struct {
	Listings *services.ListingService
	Views    *services.ViewService
}

func NewListingController(listings *services.ListingService, views *services.ViewService) *ListingController {
	return &ListingController{Listings: listings, Views: views}
}

func listingIDParam(c *gin.Context) (uint, bool) {
	id, err := strconv.ParseUint(c.Param("id"), 10, 64)
	if err != nil || id == 0 {
		utils.JSONError(c, http.StatusBadRequest, "invalid listing id")
		return 0, false
	}
	return uint(id), true
}

func listingPayload(l *models.Listing) gin.H {
	return gin.H{
		"id":               l.ID,
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
		"full_address":     l.FullAddress(),
		"price":            l.Price,
		"currency":         l.Currency,
		"rooms":            l.Rooms,
		"housing_type":     l.HousingType,
		"parking_type":     l.ParkingType,
		"amenities":        l.Amenities,
		"is_active":        l.IsActive,
		"created_at":       l.CreatedAt,
		"updated_at":       l.UpdatedAt,
	}
}

// CreateListing handles POST /api/listings; the caller becomes the owner.
func (ctrl *ListingController) CreateListing(c *gin.Context) {
	var listing models.Listing
	if err := c.ShouldBindJSON(&listing); err != nil {
		utils.JSONError(c, http.StatusBadRequest, "invalid listing payload")
		return
	}

	if err := ctrl.Listings.Create(middleware.CurrentUser(c), &listing); err != nil {
		respondServiceError(c, err)
		return
	}
	utils.JSONSuccess(c, http.StatusCreated, listingPayload(&listing))
}

// GetListing handles GET /api/listings/:id. Serving the detail also
// records a view, off the request path: an owner viewing their own
// listing is not counted, and a slow or down counter store never delays
// this response.
func (ctrl *ListingController) GetListing(c *gin.Context) {
	id, ok := listingIDParam(c)
	if !ok {
		return
	}
	listing, err := ctrl.Listings.Get(id)
	if err != nil {
		respondServiceError(c, err)
		return
	}

	var viewerID uint
	if viewer := middleware.CurrentUser(c); viewer != nil {
		viewerID = viewer.ID
	}
	ctrl.Views.RecordView(listing.ID, viewerID, listing.OwnerID)

	utils.JSONSuccess(c, http.StatusOK, listingPayload(listing))
}

// UpdateListing handles PUT /api/listings/:id (owner only).
func (ctrl *ListingController) UpdateListing(c *gin.Context) {
	id, ok := listingIDParam(c)
	if !ok {
		return
	}

	var updated models.Listing
	if err := c.ShouldBindJSON(&updated); err != nil {
		utils.JSONError(c, http.StatusBadRequest, "invalid listing payload")
		return
	}

	listing, err := ctrl.Listings.Update(middleware.CurrentUser(c), id, &updated)
	if err != nil {
		respondServiceError(c, err)
		return
	}
	utils.JSONSuccess(c, http.StatusOK, listingPayload(listing))
}

// DeleteListing handles DELETE /api/listings/:id (owner or admin, soft).
func (ctrl *ListingController) DeleteListing(c *gin.Context) {
	id, ok := listingIDParam(c)
	if !ok {
		return
	}
	if err := ctrl.Listings.Delete(middleware.CurrentUser(c), id); err != nil {
		respondServiceError(c, err)
		return
	}
	utils.JSONMessage(c, http.StatusOK, "listing deleted")
}

func queryFloat(c *gin.Context, name string) *float64 {
	if raw := c.Query(name); raw != "" {
		if v, err := strconv.ParseFloat(raw, 64); err == nil {
			return &v
		}
	}
	return nil
}

func queryInt(c *gin.Context, name string) *int {
	if raw := c.Query(name); raw != "" {
		if v, err := strconv.Atoi(raw); err == nil {
			return &v
		}
	}
	return nil
}

// SearchListings handles GET /api/listings with the public filter set.
func (ctrl *ListingController) SearchListings(c *gin.Context) {
	params := services.ListingSearchParams{
		Query:       c.Query("q"),
		Country:     c.Query("country"),
		City:        c.Query("city"),
		District:    c.Query("district"),
		HousingType: c.Query("housing_type"),
		Currency:    c.Query("currency"),
		PriceMin:    queryFloat(c, "price_min"),
		PriceMax:    queryFloat(c, "price_max"),
		RoomsMin:    queryInt(c, "rooms_min"),
		RoomsMax:    queryInt(c, "rooms_max"),
		Sort:        c.DefaultQuery("sort", "date_new"),
	}
	if p := queryInt(c, "page"); p != nil {
		params.Page = *p
	}
	if s := queryInt(c, "page_size"); s != nil {
		params.PageSize = *s
	}

	page, err := ctrl.Listings.Search(params)
	if err != nil {
		respondServiceError(c, err)
		return
	}

	results := make([]gin.H, 0, len(page.Results))
	for i := range page.Results {
		results = append(results, listingPayload(&page.Results[i]))
	}
	utils.JSONSuccess(c, http.StatusOK, gin.H{
		"count":     page.Count,
		"page":      page.Page,
		"page_size": page.PageSize,
		"results":   results,
	})
}
