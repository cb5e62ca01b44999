package controllers

import (
	"net/http"

	"github.com/gin-gonic/gin"

	"rental-backend/middleware"
	"rental-backend/services"
	"rental-backend/utils"
)

type CreateReviewRequest struct {
	BookingID uint   `json:"booking_id" binding:"required"`
	Rating    int    `json:"rating" binding:"required"`
	Text      string `json:"text"`
}

type ReviewController struct {
	Reviews *services.ReviewService
}

func NewReviewController(svc *services.ReviewService) *ReviewController {
	return &ReviewController{Reviews: svc}
}

// CreateReview handles POST /api/listings/:id/reviews.
func (ctrl *ReviewController) CreateReview(c *gin.Context) {
	listingID, ok := listingIDParam(c)
	if !ok {
		return
	}

	var req CreateReviewRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		utils.JSONError(c, http.StatusBadRequest, "booking_id and rating are required")
		return
	}

	review, err := ctrl.Reviews.Create(middleware.CurrentUser(c), listingID, req.BookingID, req.Rating, req.Text)
	if err != nil {
		respondServiceError(c, err)
		return
	}
	utils.JSONSuccess(c, http.StatusCreated, review)
}

// ListReviews handles GET /api/listings/:id/reviews.
func (ctrl *ReviewController) ListReviews(c *gin.Context) {
	listingID, ok := listingIDParam(c)
	if !ok {
		return
	}
	reviews, err := ctrl.Reviews.ListForListing(listingID)
	if err != nil {
		respondServiceError(c, err)
		return
	}
	utils.JSONSuccess(c, http.StatusOK, reviews)
}
