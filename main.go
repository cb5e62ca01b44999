package main

import (
	"context"
	"log"
	"net/http"
	"os"
	"os/signal"
	"strconv"
	"syscall"
	"time"

	"github.com/joho/godotenv"

	"rental-backend/config"
	"rental-backend/controllers"
	"rental-backend/routes"
	"rental-backend/services"
	"rental-backend/utils"
)

func flushInterval() time.Duration {
	raw := os.Getenv("VIEW_FLUSH_INTERVAL")
	if raw == "" {
		return 60 * time.Second
	}
	secs, err := strconv.Atoi(raw)
	if err != nil || secs <= 0 {
		log.Printf("⚠️ Invalid VIEW_FLUSH_INTERVAL %q, using 60s", raw)
		return 60 * time.Second
	}
	return time.Duration(secs) * time.Second
}

func main() {
	if err := godotenv.Load(); err != nil {
		log.Println("⚠️ No .env file found, using system environment")
	}

	if err := config.ConnectDatabase(); err != nil {
		log.Fatal("❌ Database connection failed: ", err)
	}

	var store services.CounterStore
	if err := config.ConnectRedis(); err != nil {
		log.Println("⚠️ Redis unavailable, falling back to in-memory counters:", err)
		store = services.NewMemoryCounterStore()
	} else {
		store = services.NewRedisCounterStore(config.Redis)
	}

	dispatcher := services.NewDispatcher(config.DB, utils.SMTPSender{}, 256)
	dispatcher.AdminCopy = os.Getenv("ADMIN_NOTIFY_EMAIL")
	dispatcher.Start()

	authService := services.NewAuthService(config.DB, config.Redis)
	listingService := services.NewListingService(config.DB, dispatcher)
	if raw := os.Getenv("LISTING_DUPLICATE_GRACE"); raw != "" {
		if secs, err := strconv.Atoi(raw); err == nil && secs > 0 {
			listingService.DuplicateGrace = time.Duration(secs) * time.Second
		} else {
			log.Printf("⚠️ Invalid LISTING_DUPLICATE_GRACE %q, keeping default", raw)
		}
	}
	bookingService := services.NewBookingService(config.DB, dispatcher)
	reviewService := services.NewReviewService(config.DB)
	viewService := services.NewViewService(store)
	aggregator := services.NewAggregator(config.DB, store)

	r := routes.SetupRouter(
		authService,
		controllers.NewAuthController(authService),
		controllers.NewListingController(listingService, viewService),
		controllers.NewBookingController(bookingService),
		controllers.NewReviewController(reviewService),
		controllers.NewStatsController(aggregator, viewService),
	)

	// Periodic maintenance: push buffered view counts into MySQL and
	// sweep approved bookings whose stay has ended.
	flushCtx, stopFlush := context.WithCancel(context.Background())
	go func() {
		ticker := time.NewTicker(flushInterval())
		defer ticker.Stop()
		for {
			select {
			case <-flushCtx.Done():
				return
			case <-ticker.C:
				summary, err := aggregator.Flush(flushCtx, 100)
				if err != nil {
					log.Println("⚠️ View flush failed:", err)
				} else if summary.ListingsUpdated > 0 {
					log.Printf("📊 Flushed %d views across %d listings", summary.TotalIncrement, summary.ListingsUpdated)
				}
				if n, err := bookingService.CompleteElapsed(); err != nil {
					log.Println("⚠️ Booking completion sweep failed:", err)
				} else if n > 0 {
					log.Printf("🏁 Marked %d bookings completed", n)
				}
			}
		}
	}()

	port := utils.EnvOrDefault("PORT", "8080")
	srv := &http.Server{
		Addr:         ":" + port,
		Handler:      r,
		ReadTimeout:  15 * time.Second,
		WriteTimeout: 15 * time.Second,
		IdleTimeout:  60 * time.Second,
	}

	go func() {
		log.Println("🚀 Server running on port", port)
		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			log.Fatal("❌ Server failed: ", err)
		}
	}()

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit
	log.Println("🛑 Shutting down server...")

	stopFlush()

	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	if err := srv.Shutdown(ctx); err != nil {
		log.Println("⚠️ Forced shutdown:", err)
	}

	viewService.Wait()
	if summary, err := aggregator.Flush(context.Background(), 100); err == nil && summary.TotalIncrement > 0 {
		log.Printf("📊 Final flush wrote %d views", summary.TotalIncrement)
	}
	dispatcher.Stop()

	log.Println("👋 Server stopped")
}
