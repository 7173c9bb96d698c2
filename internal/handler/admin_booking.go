package handler

import (
	"net/http"
	"strconv"
	"strings"

	"github.com/labstack/echo/v4"

	"github.com/iliyamo/salon-appointment-scheduler/internal/model"
	"github.com/iliyamo/salon-appointment-scheduler/internal/scheduling"
	"github.com/iliyamo/salon-appointment-scheduler/pkg/logging"
)

// AdminBookingHandler lists bookings across customers and drives the
// status lifecycle. Get, reschedule and cancel reuse BookingHandler, which
// lets admins act on any booking.
type AdminBookingHandler struct {
	Scheduler *scheduling.Scheduler
	Logger    *logging.Logger
}

func NewAdminBookingHandler(s *scheduling.Scheduler, logger *logging.Logger) *AdminBookingHandler {
	if logger == nil {
		logger = logging.Default()
	}
	return &AdminBookingHandler{Scheduler: s, Logger: logger}
}

// List handles GET /v1/admin/bookings with optional service_id, status,
// from, to (RFC 3339) and limit query parameters.
func (h *AdminBookingHandler) List(c echo.Context) error {
	f := model.BookingFilter{
		ServiceID: strings.TrimSpace(c.QueryParam("service_id")),
		Status:    model.BookingStatus(strings.TrimSpace(c.QueryParam("status"))),
		Limit:     100,
	}
	if f.Status != "" && !f.Status.Valid() {
		return badRequest(c, "unknown status")
	}
	if v := c.QueryParam("from"); v != "" {
		t, err := parseTime("from", v)
		if err != nil {
			return writeError(c, h.Logger, err)
		}
		f.From = t
	}
	if v := c.QueryParam("to"); v != "" {
		t, err := parseTime("to", v)
		if err != nil {
			return writeError(c, h.Logger, err)
		}
		f.To = t
	}
	if v := c.QueryParam("limit"); v != "" {
		n, err := strconv.Atoi(v)
		if err != nil || n < 1 || n > 500 {
			return badRequest(c, "limit must be between 1 and 500")
		}
		f.Limit = n
	}

	ctx, cancel := requestContext(c)
	defer cancel()
	bookings, err := h.Scheduler.ListBookings(ctx, f)
	if err != nil {
		return writeError(c, h.Logger, err)
	}
	if bookings == nil {
		bookings = []model.Booking{}
	}
	return c.JSON(http.StatusOK, echo.Map{"bookings": bookings})
}

type statusReq struct {
	Status string `json:"status"`
}

// ChangeStatus handles PUT /v1/admin/bookings/:id/status.
func (h *AdminBookingHandler) ChangeStatus(c echo.Context) error {
	var req statusReq
	if err := c.Bind(&req); err != nil || strings.TrimSpace(req.Status) == "" {
		return badRequest(c, "status required")
	}
	to := model.BookingStatus(strings.TrimSpace(req.Status))
	if !to.Valid() {
		return badRequest(c, "unknown status")
	}
	ctx, cancel := requestContext(c)
	defer cancel()
	b, err := h.Scheduler.ChangeStatus(ctx, c.Param("id"), to, actorFrom(c))
	if err != nil {
		return writeError(c, h.Logger, err)
	}
	return c.JSON(http.StatusOK, b)
}
