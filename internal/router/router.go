// Package router wires handlers and middleware onto the echo instance.
package router

import (
	"github.com/labstack/echo/v4"

	"github.com/iliyamo/salon-appointment-scheduler/internal/handler"
	"github.com/iliyamo/salon-appointment-scheduler/internal/middleware"
	"github.com/iliyamo/salon-appointment-scheduler/internal/model"
)

// Handlers groups everything the routes dispatch to.
type Handlers struct {
	Health        *handler.HealthHandler
	Auth          *handler.AuthHandler
	Public        *handler.PublicHandler
	Bookings      *handler.BookingHandler
	AdminServices *handler.AdminServiceHandler
	AdminBookings *handler.AdminBookingHandler
}

// Options carries the route-specific middleware. Nil entries are skipped.
type Options struct {
	JWTSecret string
	Cache     echo.MiddlewareFunc
	RateLimit echo.MiddlewareFunc
}

func optional(mw ...echo.MiddlewareFunc) []echo.MiddlewareFunc {
	out := make([]echo.MiddlewareFunc, 0, len(mw))
	for _, m := range mw {
		if m != nil {
			out = append(out, m)
		}
	}
	return out
}

// Register mounts every route.
func Register(e *echo.Echo, h Handlers, opts Options) {
	RegisterRoutes(e, h.Health)
	RegisterAuth(e, h.Auth, opts)
	RegisterPublic(e, h.Public, h.Bookings, opts)
	RegisterCustomer(e, h.Bookings, opts.JWTSecret)
	RegisterAdmin(e, h.AdminServices, h.AdminBookings, h.Bookings, opts.JWTSecret)
}

// RegisterRoutes registers the unauthenticated operational endpoints.
func RegisterRoutes(e *echo.Echo, health *handler.HealthHandler) {
	e.GET("/healthz", health.Health)
}

// RegisterAuth registers sign-up, sign-in and token endpoints. Register and
// login share the booking rate limit.
func RegisterAuth(e *echo.Echo, a *handler.AuthHandler, opts Options) {
	limited := optional(opts.RateLimit)
	g := e.Group("/v1/auth")
	g.POST("/register", a.Register, limited...)
	g.POST("/login", a.Login, limited...)
	g.POST("/refresh", a.Refresh)
	g.POST("/logout", a.Logout)

	e.GET("/v1/me", a.Me,
		middleware.JWTAuth(opts.JWTSecret),
		middleware.RequireRole(model.RoleAdmin, model.RoleCustomer))
}

// RegisterPublic registers the catalog, slot search and booking creation.
// Only the catalog reads are cached; slots always reflect current bookings.
func RegisterPublic(e *echo.Echo, p *handler.PublicHandler, b *handler.BookingHandler, opts Options) {
	cached := optional(opts.Cache)
	e.GET("/v1/services", p.ListServices, cached...)
	e.GET("/v1/services/:id", p.GetService, cached...)
	e.GET("/v1/services/:id/slots", p.ListSlots)

	create := append([]echo.MiddlewareFunc{middleware.OptionalJWT(opts.JWTSecret)}, optional(opts.RateLimit)...)
	e.POST("/v1/bookings", b.Create, create...)
}

// RegisterCustomer registers the self-service booking endpoints.
func RegisterCustomer(e *echo.Echo, b *handler.BookingHandler, jwtSecret string) {
	g := e.Group("/v1",
		middleware.JWTAuth(jwtSecret),
		middleware.RequireRole(model.RoleCustomer, model.RoleAdmin),
	)
	g.GET("/my-bookings", b.Mine)
	g.GET("/bookings/:id", b.Get)
	g.PUT("/bookings/:id/schedule", b.Reschedule)
	g.POST("/bookings/:id/cancel", b.Cancel)
	g.POST("/bookings/:id/feedback", b.Feedback)
}

// RegisterAdmin registers catalog management and booking administration.
func RegisterAdmin(e *echo.Echo, s *handler.AdminServiceHandler, ab *handler.AdminBookingHandler, b *handler.BookingHandler, jwtSecret string) {
	g := e.Group("/v1/admin",
		middleware.JWTAuth(jwtSecret),
		middleware.RequireRole(model.RoleAdmin),
	)
	g.GET("/services", s.ListAll)
	g.POST("/services", s.Create)
	g.PUT("/services/:id", s.Update)
	g.PATCH("/services/:id/active", s.SetActive)
	g.GET("/services/:id/blackouts", s.ListBlackouts)
	g.POST("/services/:id/blackouts", s.AddBlackout)
	g.DELETE("/blackouts/:id", s.RemoveBlackout)

	g.GET("/bookings", ab.List)
	g.GET("/bookings/:id", b.Get)
	g.PUT("/bookings/:id/status", ab.ChangeStatus)
	g.PUT("/bookings/:id/schedule", b.Reschedule)
	g.POST("/bookings/:id/cancel", b.Cancel)
}
