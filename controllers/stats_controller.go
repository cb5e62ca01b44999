package controllers

import (
	"net/http"
	"strconv"

	"github.com/gin-gonic/gin"

	"rental-backend/services"
	"rental-backend/utils"
)

type StatsController struct {
	Aggregator *services.Aggregator
	Views      *services.ViewService
}

func NewStatsController(agg *services.Aggregator, views *services.ViewService) *StatsController {
	return &StatsController{Aggregator: agg, Views: views}
}

// GetListingStats handles GET /api/listings/:id/stats: the durable total
// plus today's still-buffered bucket.
func (ctrl *StatsController) GetListingStats(c *gin.Context) {
	id, ok := listingIDParam(c)
	if !ok {
		return
	}

	stat, err := ctrl.Aggregator.StatFor(c.Request.Context(), id)
	if err != nil {
		respondServiceError(c, err)
		return
	}
	today, err := ctrl.Views.ViewsToday(c.Request.Context(), id)
	if err != nil {
		respondServiceError(c, err)
		return
	}

	utils.JSONSuccess(c, http.StatusOK, gin.H{
		"listing_id":  id,
		"views_total": stat.ViewsTotal,
		"views_today": today,
		"updated_at":  stat.UpdatedAt,
	})
}

// FlushViews handles POST /api/admin/stats/flush: the on-demand variant
// of the scheduled aggregation pass. batch_size only tunes the scan page.
func (ctrl *StatsController) FlushViews(c *gin.Context) {
	batchSize := int64(100)
	if raw := c.Query("batch_size"); raw != "" {
		n, err := strconv.ParseInt(raw, 10, 64)
		if err != nil || n <= 0 {
			utils.JSONError(c, http.StatusBadRequest, "batch_size must be a positive integer")
			return
		}
		batchSize = n
	}

	summary, err := ctrl.Aggregator.Flush(c.Request.Context(), batchSize)
	if err != nil {
		respondServiceError(c, err)
		return
	}
	utils.JSONSuccess(c, http.StatusOK, summary)
}
