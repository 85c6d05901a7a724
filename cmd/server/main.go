package main

import (
	"log"
	"os"

	"github.com/joho/godotenv"
	"github.com/labstack/echo/v4"

	"github.com/okabe/storefront-booking/internal/config"
	"github.com/okabe/storefront-booking/internal/database"
	"github.com/okabe/storefront-booking/internal/handler"
	"github.com/okabe/storefront-booking/internal/ledger"
	"github.com/okabe/storefront-booking/internal/middleware"
	"github.com/okabe/storefront-booking/internal/queue"
	"github.com/okabe/storefront-booking/internal/repository"
	"github.com/okabe/storefront-booking/internal/reservation"
	"github.com/okabe/storefront-booking/internal/router"
	queue_publisher "github.com/okabe/storefront-booking/internal/service"
)

func main() {
	_ = godotenv.Load() // .env is optional; real env wins

	cfg := config.Load()

	db, err := database.Open(cfg.DBUser, cfg.DBPass, cfg.DBHost, cfg.DBPort, cfg.DBName)
	if err != nil {
		log.Fatalf("db: %v", err)
	}
	defer db.Close()

	// Repositories.
	users := repository.NewUserRepo(db)
	tokens := repository.NewTokenRepo(db)
	reservations := repository.NewReservationRepo(db)
	orders := repository.NewOrderRepo(db)
	stores := repository.NewStoreRepo(db)
	ledgers := repository.NewLedgerRepo(db)
	credits := repository.NewCreditRepo(db)

	// Domain services.
	publisher := &queue_publisher.Publisher{}
	chain := ledger.NewChain(ledgers)
	topups := ledger.NewTopUpProcessor(credits, orders, chain, ledger.DefaultBonusRule())
	payments := ledger.NewProcessor(orders, reservations, stores, chain, topups, publisher)
	lifecycle := reservation.NewService(db, reservations, orders, stores, publisher)

	// Notification consumer drains reservation events into the log
	// sink. It reconnects on its own; a hard failure only loses the
	// sink, never bookings.
	go func() {
		if err := queue.StartReservationConsumer(); err != nil {
			log.Printf("consumer stopped: %v", err)
		}
	}()

	e := echo.New()
	e.HideBanner = true

	// Redis-backed limiter and response cache degrade to no-ops when
	// Redis is unreachable.
	rdb := config.NewRedisClient()
	if rdb == nil {
		log.Println("redis unavailable, rate limiting and caching disabled")
	}
	e.Use(middleware.NewTokenBucket(config.LoadRateLimitConfig(), rdb))
	cacheMW := middleware.NewRedisCache(config.LoadCacheConfig(), rdb)

	h := router.Handlers{
		Auth:    handler.NewAuthHandler(cfg, users, tokens),
		Booking: handler.NewBookingHandler(lifecycle, reservations, stores),
		Staff:   handler.NewStaffHandler(lifecycle, reservations),
		Ledger:  handler.NewLedgerHandler(ledgers, credits, stores),
		Payment: handler.NewPaymentHandler(orders, stores, payments, os.Getenv("PAYMENT_WEBHOOK_SECRET")),
	}
	router.Register(e, h, cfg.JWTSecret, cacheMW)

	addr := ":" + cfg.Port
	log.Printf("listening on %s (env=%s)", addr, cfg.Env)
	if err := e.Start(addr); err != nil {
		log.Fatal(err)
	}
}
