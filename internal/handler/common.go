// Package handler holds the echo HTTP handlers. Handlers translate JSON to
// scheduling calls and scheduling errors to status codes; they hold no
// business rules beyond ownership checks.
package handler

import (
	"context"
	"errors"
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/labstack/echo/v4"

	"github.com/iliyamo/salon-appointment-scheduler/internal/middleware"
	"github.com/iliyamo/salon-appointment-scheduler/internal/model"
	"github.com/iliyamo/salon-appointment-scheduler/internal/scheduling"
	"github.com/iliyamo/salon-appointment-scheduler/pkg/logging"
)

const requestTimeout = 5 * time.Second

// CustomerDirectory links accounts to customer records.
type CustomerDirectory interface {
	CustomerForUser(ctx context.Context, userID uint64, accountEmail string, info model.CustomerInfo) (*model.Customer, error)
	FindCustomerByUserID(ctx context.Context, userID uint64) (*model.Customer, error)
}

// AccountDirectory loads the signed-in account. Implemented by
// repository.UserRepo.
type AccountDirectory interface {
	GetByID(ctx context.Context, id uint64) (model.User, error)
}

func requestContext(c echo.Context) (context.Context, context.CancelFunc) {
	return context.WithTimeout(c.Request().Context(), requestTimeout)
}

// writeError maps scheduling errors to HTTP responses. Anything unknown is
// logged and reported as 500 without details.
func writeError(c echo.Context, logger *logging.Logger, err error) error {
	var (
		ve *scheduling.ValidationError
		te *scheduling.TransitionError
	)
	switch {
	case errors.As(err, &ve):
		body := echo.Map{"error": ve.Error()}
		if ve.Field != "" {
			body["field"] = ve.Field
		}
		return c.JSON(http.StatusBadRequest, body)
	case errors.As(err, &te):
		return c.JSON(http.StatusConflict, echo.Map{"error": te.Error(), "from": te.From, "to": te.To})
	case errors.Is(err, scheduling.ErrSlotUnavailable),
		errors.Is(err, scheduling.ErrFeedbackAlreadySubmitted),
		errors.Is(err, scheduling.ErrInvalidState):
		return c.JSON(http.StatusConflict, echo.Map{"error": err.Error()})
	case errors.Is(err, scheduling.ErrNotCancellable):
		return c.JSON(http.StatusBadRequest, echo.Map{"error": err.Error()})
	case errors.Is(err, scheduling.ErrNotFound):
		return c.JSON(http.StatusNotFound, echo.Map{"error": err.Error()})
	case errors.Is(err, scheduling.ErrForbidden):
		return c.JSON(http.StatusForbidden, echo.Map{"error": "forbidden"})
	case errors.Is(err, context.DeadlineExceeded):
		return c.JSON(http.StatusServiceUnavailable, echo.Map{"error": "request timed out"})
	}
	logger.Error("request failed", "method", c.Request().Method, "path", c.Path(), "error", err)
	return c.JSON(http.StatusInternalServerError, echo.Map{"error": "internal error"})
}

func badRequest(c echo.Context, msg string) error {
	return c.JSON(http.StatusBadRequest, echo.Map{"error": msg})
}

// actorFrom builds the lifecycle actor of the authenticated caller.
func actorFrom(c echo.Context) scheduling.Actor {
	uid, _ := middleware.UserID(c)
	id := ""
	if uid != 0 {
		id = "user:" + strconv.FormatUint(uid, 10)
	}
	if middleware.Role(c) == model.RoleAdmin {
		return scheduling.Actor{Role: scheduling.ActorAdmin, ID: id}
	}
	return scheduling.Actor{Role: scheduling.ActorCustomer, ID: id}
}

func isAdmin(c echo.Context) bool {
	return middleware.Role(c) == model.RoleAdmin
}

// parseTime accepts RFC 3339 timestamps.
func parseTime(field, v string) (time.Time, error) {
	t, err := time.Parse(time.RFC3339, strings.TrimSpace(v))
	if err != nil {
		return time.Time{}, &scheduling.ValidationError{Field: field, Message: "must be an RFC 3339 timestamp"}
	}
	return t, nil
}
