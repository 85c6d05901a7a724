package router

import (
	"github.com/labstack/echo/v4"

	"github.com/okabe/storefront-booking/internal/handler"
	"github.com/okabe/storefront-booking/internal/middleware"
)

// Handlers bundles everything the route table needs.
type Handlers struct {
	Auth    *handler.AuthHandler
	Booking *handler.BookingHandler
	Staff   *handler.StaffHandler
	Ledger  *handler.LedgerHandler
	Payment *handler.PaymentHandler
}

// Register wires the full route table. publicMW (rate limiter,
// response cache) wraps the unauthenticated GET surface.
func Register(e *echo.Echo, h Handlers, jwtSecret string, publicMW ...echo.MiddlewareFunc) {
	e.GET("/healthz", handler.Health)

	// Session endpoints. Logout works with either a refresh token in
	// the body or a bearer token, so it stays outside the JWT group.
	auth := e.Group("/v1/auth")
	auth.POST("/register", h.Auth.Register)
	auth.POST("/login", h.Auth.Login)
	auth.POST("/refresh", h.Auth.Refresh)
	auth.POST("/logout", h.Auth.Logout)

	// Public surface. Guests can probe availability and book without
	// an account; the claim token in the booking response is their
	// handle for later changes.
	public := e.Group("/v1", publicMW...)
	public.GET("/stores/:store_id/availability", h.Booking.Availability)
	optJWT := middleware.OptionalJWT(jwtSecret)
	e.POST("/v1/stores/:store_id/reservations", h.Booking.Create, optJWT)
	e.GET("/v1/reservations/:id", h.Booking.Get, optJWT)
	e.PATCH("/v1/reservations/:id", h.Booking.Update, optJWT)
	e.DELETE("/v1/reservations/:id", h.Booking.Delete, optJWT)
	e.POST("/v1/reservations/:id/cancel", h.Booking.Cancel, optJWT)

	// Gateway callbacks and order creation. Orders can be opened by
	// guests too; the webhook authenticates with its HMAC signature.
	e.POST("/v1/orders", h.Payment.CreateOrder)
	e.POST("/v1/payments/confirm", h.Payment.Confirm)

	// Authenticated customer surface.
	me := e.Group("/v1/me")
	me.Use(middleware.JWTAuth(jwtSecret))
	me.GET("", h.Auth.Me)
	me.GET("/reservations", h.Booking.ListMine)
	me.GET("/credit", h.Ledger.CreditBalance)
	me.POST("/recharges", h.Payment.CreateRecharge)

	// Staff surface, scoped to the store in the token.
	staff := e.Group("/v1/staff")
	staff.Use(middleware.JWTAuth(jwtSecret))
	staff.Use(middleware.RequireRole("STAFF"))
	staff.POST("/reservations", h.Staff.Create)
	staff.GET("/reservations", h.Staff.List)
	staff.POST("/reservations/check-in", h.Staff.CheckIn)
	staff.POST("/reservations/:id/no-show", h.Staff.NoShow)
	staff.POST("/reservations/:id/cancel", h.Staff.Cancel)
	staff.POST("/reservations/:id/complete", h.Staff.Complete)
	staff.GET("/ledger", h.Ledger.Entries)
	staff.GET("/ledger/balance", h.Ledger.Balance)
}
