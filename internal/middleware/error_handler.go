package middleware

import (
	"errors"
	"net/http"

	"myMarketplace/domain"
	"myMarketplace/pkg/logger"
	jsonres "myMarketplace/pkg/response"

	"github.com/labstack/echo/v4"
)

// StatusFor maps domain errors onto HTTP status codes and response codes.
func StatusFor(err error) (int, string) {
	switch {
	case errors.Is(err, domain.ErrValidation):
		return http.StatusBadRequest, "VALIDATION_ERROR"
	case errors.Is(err, domain.ErrNotFound):
		return http.StatusNotFound, "NOT_FOUND"
	case errors.Is(err, domain.ErrForbidden):
		return http.StatusForbidden, "FORBIDDEN"
	case errors.Is(err, domain.ErrCounterInvariant):
		return http.StatusConflict, "COUNTER_INVARIANT"
	case errors.Is(err, domain.ErrQueueFull):
		return http.StatusServiceUnavailable, "BUSY"
	default:
		return http.StatusInternalServerError, "INTERNAL_ERROR"
	}
}

// ErrorHandler is installed as echo's HTTPErrorHandler.
func ErrorHandler(err error, c echo.Context) {
	if c.Response().Committed {
		return
	}

	var he *echo.HTTPError
	if errors.As(err, &he) {
		msg := http.StatusText(he.Code)
		if m, ok := he.Message.(string); ok {
			msg = m
		}
		writeError(c, he.Code, "HTTP_ERROR", msg)
		return
	}

	status, code := StatusFor(err)
	msg := err.Error()
	if status == http.StatusInternalServerError {
		logger.Error("Unhandled request error",
			"error", err,
			"path", c.Path(),
			"trace_id", logger.TraceIDFromContext(c.Request().Context()),
		)
		msg = "Internal server error"
	}
	writeError(c, status, code, msg)
}

func writeError(c echo.Context, status int, code, msg string) {
	var err error
	if c.Request().Method == http.MethodHead {
		err = c.NoContent(status)
	} else {
		err = c.JSON(status, jsonres.Error(code, msg, nil))
	}
	if err != nil {
		logger.Error("Failed to write error response", "error", err)
	}
}
