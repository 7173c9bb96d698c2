package handler

import (
	"net/http"
	"time"

	"github.com/labstack/echo/v4"

	"github.com/iliyamo/salon-appointment-scheduler/internal/model"
	"github.com/iliyamo/salon-appointment-scheduler/internal/scheduling"
	"github.com/iliyamo/salon-appointment-scheduler/pkg/logging"
)

// PublicHandler serves the catalog and slot search to guests.
type PublicHandler struct {
	Scheduler *scheduling.Scheduler
	Logger    *logging.Logger
	Now       func() time.Time
}

func NewPublicHandler(s *scheduling.Scheduler, logger *logging.Logger) *PublicHandler {
	if logger == nil {
		logger = logging.Default()
	}
	return &PublicHandler{Scheduler: s, Logger: logger, Now: time.Now}
}

// serviceView adds the advertised price to a service.
type serviceView struct {
	model.Service
	DisplayPriceCents int64 `json:"display_price_cents"`
}

func viewService(s model.Service, now time.Time) serviceView {
	return serviceView{Service: s, DisplayPriceCents: s.DisplayPriceCents(now)}
}

// ListServices handles GET /v1/services.
func (h *PublicHandler) ListServices(c echo.Context) error {
	ctx, cancel := requestContext(c)
	defer cancel()
	services, err := h.Scheduler.ListServices(ctx, true)
	if err != nil {
		return writeError(c, h.Logger, err)
	}
	now := h.Now()
	out := make([]serviceView, 0, len(services))
	for _, s := range services {
		out = append(out, viewService(s, now))
	}
	return c.JSON(http.StatusOK, echo.Map{"services": out})
}

// GetService handles GET /v1/services/:id. Inactive services read as missing.
func (h *PublicHandler) GetService(c echo.Context) error {
	ctx, cancel := requestContext(c)
	defer cancel()
	svc, err := h.Scheduler.GetService(ctx, c.Param("id"))
	if err != nil {
		return writeError(c, h.Logger, err)
	}
	if !svc.IsActive {
		return writeError(c, h.Logger, &scheduling.NotFoundError{Kind: "service", ID: svc.ID})
	}
	return c.JSON(http.StatusOK, viewService(*svc, h.Now()))
}

// ListSlots handles GET /v1/services/:id/slots?date=YYYY-MM-DD.
func (h *PublicHandler) ListSlots(c echo.Context) error {
	date := c.QueryParam("date")
	if date == "" {
		return badRequest(c, "date query parameter required (YYYY-MM-DD)")
	}
	ctx, cancel := requestContext(c)
	defer cancel()
	slots, err := h.Scheduler.ListAvailableSlots(ctx, c.Param("id"), date)
	if err != nil {
		return writeError(c, h.Logger, err)
	}
	return c.JSON(http.StatusOK, echo.Map{
		"service_id": c.Param("id"),
		"date":       date,
		"timezone":   h.Scheduler.Location().String(),
		"slots":      slots,
	})
}
