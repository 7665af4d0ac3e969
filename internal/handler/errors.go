package handler

import (
	"encoding/json"
	"errors"
	"net/http"
	"strconv"
	"strings"

	"github.com/labstack/echo/v4"
	"go.uber.org/zap"

	"github.com/iliyamo/ticket-booking/internal/middleware"
	"github.com/iliyamo/ticket-booking/internal/service"
)

// errorBody is the JSON shape of every failed API call.
type errorBody struct {
	Message string `json:"message"`
	Code    string `json:"code"`
}

// statusFor maps a domain error kind to its HTTP status.
func statusFor(kind service.Kind) int {
	switch kind {
	case service.KindNotFound:
		return http.StatusNotFound
	case service.KindForbidden:
		return http.StatusForbidden
	case service.KindInvalidArgument, service.KindLimitExceeded:
		return http.StatusUnprocessableEntity
	case service.KindCapacityExceeded, service.KindVersionConflict, service.KindAlreadyCancelled:
		return http.StatusConflict
	}
	return http.StatusInternalServerError
}

// respondError writes err. Domain errors keep their message; anything
// else is logged and hidden behind a generic 500.
func respondError(c echo.Context, log *zap.Logger, err error) error {
	if kind, ok := service.KindOf(err); ok {
		return c.JSON(statusFor(kind), errorBody{Message: err.Error(), Code: kind.String()})
	}
	var he *echo.HTTPError
	if errors.As(err, &he) {
		return err
	}
	log.Error("request failed",
		zap.String("request_id", middleware.GetRequestID(c)),
		zap.String("route", c.Path()),
		zap.Error(err))
	return c.JSON(http.StatusInternalServerError, errorBody{Message: "Internal server error", Code: "INTERNAL"})
}

func unauthorized(c echo.Context) error {
	return c.JSON(http.StatusUnauthorized, errorBody{Message: "Unauthenticated", Code: "UNAUTHENTICATED"})
}

func badRequest(c echo.Context, msg string) error {
	return c.JSON(http.StatusBadRequest, errorBody{Message: msg, Code: "BAD_REQUEST"})
}

// validationErrors collects field messages in the order they were
// found.
type validationErrors map[string][]string

func (v validationErrors) add(field, msg string) { v[field] = append(v[field], msg) }

func (v validationErrors) respond(c echo.Context) error {
	return c.JSON(http.StatusUnprocessableEntity, echo.Map{
		"message": "Validation failed",
		"errors":  v,
	})
}

// intField reads an integer from a raw JSON value. Numeric strings are
// accepted. present is false for a missing or null value.
func intField(raw json.RawMessage) (n int64, present, ok bool) {
	s := strings.TrimSpace(string(raw))
	if s == "" || s == "null" {
		return 0, false, false
	}
	s = strings.Trim(s, `"`)
	n, err := strconv.ParseInt(s, 10, 64)
	return n, true, err == nil
}

// pathID parses the :id parameter.
func pathID(c echo.Context) (uint64, bool) {
	id, err := strconv.ParseUint(c.Param("id"), 10, 64)
	return id, err == nil && id != 0
}

// queryInt returns the query parameter as int, or 0 when missing or
// malformed so the pagination defaults apply.
func queryInt(c echo.Context, name string) int {
	n, err := strconv.Atoi(c.QueryParam(name))
	if err != nil {
		return 0
	}
	return n
}

// absoluteURL is the request URL without its query, used as the base of
// pagination links.
func absoluteURL(c echo.Context) string {
	return c.Scheme() + "://" + c.Request().Host + c.Request().URL.Path
}
