package routes

import (
	"net/http"
	"os"
	"strings"
	"time"

	"github.com/gin-contrib/cors"
	"github.com/gin-gonic/gin"

	"rental-backend/controllers"
	"rental-backend/middleware"
	"rental-backend/services"
)

func parseCorsOrigins() []string {
	raw := strings.TrimSpace(os.Getenv("CORS_ORIGINS"))
	if raw == "" {
		return []string{"*"}
	}

	parts := strings.Split(raw, ",")
	origins := make([]string, 0, len(parts))
	for _, part := range parts {
		origin := strings.TrimSpace(part)
		if origin != "" {
			origins = append(origins, origin)
		}
	}
	if len(origins) == 0 {
		return []string{"*"}
	}
	return origins
}

// SetupRouter wires controllers into the public surface.
func SetupRouter(
	auth *services.AuthService,
	ac *controllers.AuthController,
	lc *controllers.ListingController,
	bc *controllers.BookingController,
	rc *controllers.ReviewController,
	sc *controllers.StatsController,
) *gin.Engine {
	r := gin.New()
	r.Use(gin.Recovery())
	r.Use(middleware.Logger())

	origins := parseCorsOrigins()
	allowCredentials := true
	for _, origin := range origins {
		if origin == "*" {
			allowCredentials = false
			break
		}
	}

	r.Use(cors.New(cors.Config{
		AllowOrigins:     origins,
		AllowMethods:     []string{"GET", "POST", "PUT", "PATCH", "DELETE", "OPTIONS"},
		AllowHeaders:     []string{"Origin", "Content-Type", "Accept", "Authorization", "X-Requested-With"},
		ExposeHeaders:    []string{"Content-Length"},
		AllowCredentials: allowCredentials,
		MaxAge:           12 * time.Hour,
	}))

	r.GET("/health", func(c *gin.Context) {
		c.JSON(http.StatusOK, gin.H{"status": "ok"})
	})

	api := r.Group("/api")
	{
		authRoutes := api.Group("/auth")
		{
			authRoutes.POST("/register", ac.Register)
			authRoutes.POST("/login", ac.Login)
			authRoutes.POST("/logout", middleware.RequireAuth(auth), ac.Logout)
		}

		listings := api.Group("/listings")
		{
			listings.GET("", lc.SearchListings)
			listings.GET("/:id", middleware.OptionalAuth(auth), lc.GetListing)
			listings.GET("/:id/reviews", rc.ListReviews)
			listings.GET("/:id/stats", sc.GetListingStats)

			listings.POST("", middleware.RequireAuth(auth), lc.CreateListing)
			listings.PUT("/:id", middleware.RequireAuth(auth), lc.UpdateListing)
			listings.DELETE("/:id", middleware.RequireAuth(auth), lc.DeleteListing)
			listings.POST("/:id/reviews", middleware.RequireAuth(auth), rc.CreateReview)
		}

		bookings := api.Group("/bookings", middleware.RequireAuth(auth))
		{
			bookings.GET("", bc.GetBookings)
			bookings.POST("", bc.CreateBooking)
			bookings.GET("/:id", bc.GetBooking)
			bookings.PATCH("/:id/dates", bc.UpdateDates)
			bookings.POST("/:id/cancel", bc.CancelBooking)
			bookings.POST("/:id/approve", bc.ApproveBooking)
			bookings.POST("/:id/reject", bc.RejectBooking)
		}

		admin := api.Group("/admin", middleware.RequireAuth(auth), middleware.RequireAdmin())
		{
			admin.POST("/stats/flush", sc.FlushViews)
		}
	}

	return r
}
