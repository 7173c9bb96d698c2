package handler

import (
	"context"
	"database/sql"
	"errors"
	"net/http"
	"strings"
	"time"

	"github.com/labstack/echo/v4"

	"github.com/iliyamo/salon-appointment-scheduler/internal/middleware"
	"github.com/iliyamo/salon-appointment-scheduler/internal/model"
	"github.com/iliyamo/salon-appointment-scheduler/internal/scheduling"
	"github.com/iliyamo/salon-appointment-scheduler/pkg/logging"
)

// BookingHandler serves booking creation to guests and the self-service
// booking endpoints to signed-in customers.
type BookingHandler struct {
	Scheduler *scheduling.Scheduler
	Customers CustomerDirectory
	Accounts  AccountDirectory
	Logger    *logging.Logger
}

func NewBookingHandler(s *scheduling.Scheduler, customers CustomerDirectory, accounts AccountDirectory, logger *logging.Logger) *BookingHandler {
	if logger == nil {
		logger = logging.Default()
	}
	return &BookingHandler{Scheduler: s, Customers: customers, Accounts: accounts, Logger: logger}
}

type createBookingReq struct {
	ServiceID     string             `json:"service_id"`
	StartTime     string             `json:"start_time"`
	Customer      model.CustomerInfo `json:"customer"`
	Source        string             `json:"source"`
	DiscountCents int64              `json:"discount_cents"`
}

type rescheduleReq struct {
	StartTime string `json:"start_time"`
	ServiceID string `json:"service_id"`
}

type cancelReq struct {
	Reason string `json:"reason"`
}

type feedbackReq struct {
	Rating  int    `json:"rating"`
	Comment string `json:"comment"`
}

// Create handles POST /v1/bookings. Guests book with contact details only;
// a signed-in customer's booking is linked to their account. Only admins
// may set a source other than website or grant a discount.
func (h *BookingHandler) Create(c echo.Context) error {
	var req createBookingReq
	if err := c.Bind(&req); err != nil {
		return badRequest(c, "invalid body")
	}
	if strings.TrimSpace(req.ServiceID) == "" {
		return badRequest(c, "service_id required")
	}
	start, err := parseTime("start_time", req.StartTime)
	if err != nil {
		return writeError(c, h.Logger, err)
	}

	in := scheduling.CreateBookingRequest{
		ServiceID: strings.TrimSpace(req.ServiceID),
		StartTime: start,
		Customer:  req.Customer,
		Source:    model.SourceWebsite,
	}
	if isAdmin(c) {
		in.DiscountCents = req.DiscountCents
		in.Source = model.SourceAdmin
		if req.Source != "" {
			in.Source = model.BookingSource(req.Source)
		}
	} else if req.DiscountCents != 0 {
		return c.JSON(http.StatusForbidden, echo.Map{"error": "discounts can only be applied by an admin"})
	}

	ctx, cancel := requestContext(c)
	defer cancel()

	if uid, ok := middleware.UserID(c); ok && !isAdmin(c) && h.Customers != nil && h.Accounts != nil {
		account, err := h.Accounts.GetByID(ctx, uid)
		if errors.Is(err, sql.ErrNoRows) || (err == nil && !account.IsActive) {
			return c.JSON(http.StatusUnauthorized, echo.Map{"error": "account not found"})
		}
		if err != nil {
			return writeError(c, h.Logger, err)
		}
		cust, err := h.Customers.CustomerForUser(ctx, uid, account.Email, req.Customer)
		if err != nil {
			return writeError(c, h.Logger, err)
		}
		in.CustomerID = cust.ID
	}

	b, err := h.Scheduler.CreateBooking(ctx, in)
	if err != nil {
		return writeError(c, h.Logger, err)
	}
	return c.JSON(http.StatusCreated, b)
}

// load fetches a booking the caller may act on. Admins see everything;
// customers only bookings linked to their account.
func (h *BookingHandler) load(ctx context.Context, c echo.Context) (*model.Booking, error) {
	b, err := h.Scheduler.GetBooking(ctx, c.Param("id"))
	if err != nil {
		return nil, err
	}
	if isAdmin(c) {
		return b, nil
	}
	uid, ok := middleware.UserID(c)
	if !ok || h.Customers == nil {
		return nil, scheduling.ErrForbidden
	}
	cust, err := h.Customers.FindCustomerByUserID(ctx, uid)
	if errors.Is(err, scheduling.ErrNotFound) {
		return nil, scheduling.ErrForbidden
	}
	if err != nil {
		return nil, err
	}
	if cust.ID != b.CustomerID {
		return nil, scheduling.ErrForbidden
	}
	return b, nil
}

// Mine handles GET /v1/my-bookings?status=.
func (h *BookingHandler) Mine(c echo.Context) error {
	uid, ok := middleware.UserID(c)
	if !ok {
		return c.JSON(http.StatusUnauthorized, echo.Map{"error": "unauthorized"})
	}
	ctx, cancel := requestContext(c)
	defer cancel()

	cust, err := h.Customers.FindCustomerByUserID(ctx, uid)
	if errors.Is(err, scheduling.ErrNotFound) {
		return c.JSON(http.StatusOK, echo.Map{"bookings": []model.Booking{}})
	}
	if err != nil {
		return writeError(c, h.Logger, err)
	}
	f := model.BookingFilter{CustomerID: cust.ID, Status: model.BookingStatus(c.QueryParam("status")), Limit: 200}
	if f.Status != "" && !f.Status.Valid() {
		return badRequest(c, "unknown status")
	}
	bookings, err := h.Scheduler.ListBookings(ctx, f)
	if err != nil {
		return writeError(c, h.Logger, err)
	}
	if bookings == nil {
		bookings = []model.Booking{}
	}
	return c.JSON(http.StatusOK, echo.Map{"bookings": bookings})
}

// Get handles GET /v1/bookings/:id.
func (h *BookingHandler) Get(c echo.Context) error {
	ctx, cancel := requestContext(c)
	defer cancel()
	b, err := h.load(ctx, c)
	if err != nil {
		return writeError(c, h.Logger, err)
	}
	return c.JSON(http.StatusOK, b)
}

// Reschedule handles PUT /v1/bookings/:id/schedule.
func (h *BookingHandler) Reschedule(c echo.Context) error {
	var req rescheduleReq
	if err := c.Bind(&req); err != nil {
		return badRequest(c, "invalid body")
	}
	var (
		start     *time.Time
		serviceID *string
	)
	if strings.TrimSpace(req.StartTime) != "" {
		t, err := parseTime("start_time", req.StartTime)
		if err != nil {
			return writeError(c, h.Logger, err)
		}
		start = &t
	}
	if id := strings.TrimSpace(req.ServiceID); id != "" {
		serviceID = &id
	}
	if start == nil && serviceID == nil {
		return badRequest(c, "start_time or service_id required")
	}

	ctx, cancel := requestContext(c)
	defer cancel()
	b, err := h.load(ctx, c)
	if err != nil {
		return writeError(c, h.Logger, err)
	}
	b, err = h.Scheduler.UpdateBookingSchedule(ctx, b.ID, start, serviceID)
	if err != nil {
		return writeError(c, h.Logger, err)
	}
	return c.JSON(http.StatusOK, b)
}

// Cancel handles POST /v1/bookings/:id/cancel.
func (h *BookingHandler) Cancel(c echo.Context) error {
	var req cancelReq
	_ = c.Bind(&req)
	ctx, cancel := requestContext(c)
	defer cancel()
	b, err := h.load(ctx, c)
	if err != nil {
		return writeError(c, h.Logger, err)
	}
	b, err = h.Scheduler.CancelBooking(ctx, b.ID, req.Reason, actorFrom(c))
	if err != nil {
		return writeError(c, h.Logger, err)
	}
	return c.JSON(http.StatusOK, b)
}

// Feedback handles POST /v1/bookings/:id/feedback.
func (h *BookingHandler) Feedback(c echo.Context) error {
	var req feedbackReq
	if err := c.Bind(&req); err != nil {
		return badRequest(c, "invalid body")
	}
	ctx, cancel := requestContext(c)
	defer cancel()
	b, err := h.load(ctx, c)
	if err != nil {
		return writeError(c, h.Logger, err)
	}
	b, err = h.Scheduler.SubmitFeedback(ctx, b.ID, req.Rating, req.Comment)
	if err != nil {
		return writeError(c, h.Logger, err)
	}
	return c.JSON(http.StatusOK, b)
}
