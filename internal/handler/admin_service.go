package handler

import (
	"context"
	"net/http"
	"strings"

	"github.com/labstack/echo/v4"

	"github.com/iliyamo/salon-appointment-scheduler/internal/model"
	"github.com/iliyamo/salon-appointment-scheduler/internal/scheduling"
	"github.com/iliyamo/salon-appointment-scheduler/pkg/logging"
)

// AdminServiceHandler manages the service catalog and blackout dates.
type AdminServiceHandler struct {
	Scheduler *scheduling.Scheduler
	Logger    *logging.Logger
	// OnCatalogChange runs after every successful write, e.g. to purge the
	// response cache. Optional.
	OnCatalogChange func(ctx context.Context)
}

func NewAdminServiceHandler(s *scheduling.Scheduler, logger *logging.Logger) *AdminServiceHandler {
	if logger == nil {
		logger = logging.Default()
	}
	return &AdminServiceHandler{Scheduler: s, Logger: logger}
}

func (h *AdminServiceHandler) changed(ctx context.Context) {
	if h.OnCatalogChange != nil {
		h.OnCatalogChange(ctx)
	}
}

// Create handles POST /v1/admin/services. Omitted fields take the catalog
// defaults.
func (h *AdminServiceHandler) Create(c echo.Context) error {
	svc := h.Scheduler.NewServiceDefaults()
	if err := c.Bind(&svc); err != nil {
		return badRequest(c, "invalid body")
	}
	ctx, cancel := requestContext(c)
	defer cancel()
	created, err := h.Scheduler.CreateService(ctx, svc)
	if err != nil {
		return writeError(c, h.Logger, err)
	}
	h.changed(ctx)
	return c.JSON(http.StatusCreated, created)
}

// Update handles PUT /v1/admin/services/:id. The body is laid over the
// stored service, so omitted fields keep their values.
func (h *AdminServiceHandler) Update(c echo.Context) error {
	ctx, cancel := requestContext(c)
	defer cancel()
	id := c.Param("id")
	svc, err := h.Scheduler.GetService(ctx, id)
	if err != nil {
		return writeError(c, h.Logger, err)
	}
	if err := c.Bind(svc); err != nil {
		return badRequest(c, "invalid body")
	}
	svc.ID = id
	updated, err := h.Scheduler.UpdateService(ctx, *svc)
	if err != nil {
		return writeError(c, h.Logger, err)
	}
	h.changed(ctx)
	return c.JSON(http.StatusOK, updated)
}

type activeReq struct {
	IsActive *bool `json:"is_active"`
}

// SetActive handles PATCH /v1/admin/services/:id/active.
func (h *AdminServiceHandler) SetActive(c echo.Context) error {
	var req activeReq
	if err := c.Bind(&req); err != nil || req.IsActive == nil {
		return badRequest(c, "is_active required")
	}
	ctx, cancel := requestContext(c)
	defer cancel()
	svc, err := h.Scheduler.SetServiceActive(ctx, c.Param("id"), *req.IsActive)
	if err != nil {
		return writeError(c, h.Logger, err)
	}
	h.changed(ctx)
	return c.JSON(http.StatusOK, svc)
}

// ListAll handles GET /v1/admin/services, inactive services included.
func (h *AdminServiceHandler) ListAll(c echo.Context) error {
	ctx, cancel := requestContext(c)
	defer cancel()
	services, err := h.Scheduler.ListServices(ctx, false)
	if err != nil {
		return writeError(c, h.Logger, err)
	}
	if services == nil {
		services = []model.Service{}
	}
	return c.JSON(http.StatusOK, echo.Map{"services": services})
}

// ListBlackouts handles GET /v1/admin/services/:id/blackouts?from=&to=.
func (h *AdminServiceHandler) ListBlackouts(c echo.Context) error {
	ctx, cancel := requestContext(c)
	defer cancel()
	blackouts, err := h.Scheduler.ListBlackouts(ctx, c.Param("id"),
		strings.TrimSpace(c.QueryParam("from")), strings.TrimSpace(c.QueryParam("to")))
	if err != nil {
		return writeError(c, h.Logger, err)
	}
	if blackouts == nil {
		blackouts = []model.Blackout{}
	}
	return c.JSON(http.StatusOK, echo.Map{"blackouts": blackouts})
}

type blackoutReq struct {
	StartDate string `json:"start_date"`
	EndDate   string `json:"end_date"`
	Reason    string `json:"reason"`
}

// AddBlackout handles POST /v1/admin/services/:id/blackouts.
func (h *AdminServiceHandler) AddBlackout(c echo.Context) error {
	var req blackoutReq
	if err := c.Bind(&req); err != nil {
		return badRequest(c, "invalid body")
	}
	ctx, cancel := requestContext(c)
	defer cancel()
	b, err := h.Scheduler.AddBlackout(ctx, model.Blackout{
		ServiceID: c.Param("id"),
		StartDate: req.StartDate,
		EndDate:   req.EndDate,
		Reason:    req.Reason,
	})
	if err != nil {
		return writeError(c, h.Logger, err)
	}
	return c.JSON(http.StatusCreated, b)
}

// RemoveBlackout handles DELETE /v1/admin/blackouts/:id.
func (h *AdminServiceHandler) RemoveBlackout(c echo.Context) error {
	ctx, cancel := requestContext(c)
	defer cancel()
	if err := h.Scheduler.RemoveBlackout(ctx, c.Param("id")); err != nil {
		return writeError(c, h.Logger, err)
	}
	return c.NoContent(http.StatusNoContent)
}
