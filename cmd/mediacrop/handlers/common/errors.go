package common

import (
	"net/http"

	"github.com/labstack/echo/v4"
)

// ErrBadRequest returns a 400 Bad Request error.
func ErrBadRequest(msg string) *echo.HTTPError {
	return echo.NewHTTPError(http.StatusBadRequest, msg)
}

// ErrNotFound returns a 404 Not Found error.
func ErrNotFound(msg string) *echo.HTTPError {
	return echo.NewHTTPError(http.StatusNotFound, msg)
}

// ErrConflict returns a 409 Conflict error.
func ErrConflict(msg string) *echo.HTTPError {
	return echo.NewHTTPError(http.StatusConflict, msg)
}

// ErrTooLarge returns a 413 Request Entity Too Large error.
func ErrTooLarge(msg string) *echo.HTTPError {
	return echo.NewHTTPError(http.StatusRequestEntityTooLarge, msg)
}

// ErrUnsupportedMedia returns a 415 Unsupported Media Type error.
func ErrUnsupportedMedia(msg string) *echo.HTTPError {
	return echo.NewHTTPError(http.StatusUnsupportedMediaType, msg)
}

// ErrUnprocessable returns a 422 Unprocessable Entity error.
func ErrUnprocessable(msg string) *echo.HTTPError {
	return echo.NewHTTPError(http.StatusUnprocessableEntity, msg)
}

// ErrUnavailable returns a 503 Service Unavailable error.
func ErrUnavailable(msg string) *echo.HTTPError {
	return echo.NewHTTPError(http.StatusServiceUnavailable, msg)
}

// ErrInternal returns a 500 Internal Server Error.
func ErrInternal(msg string) *echo.HTTPError {
	return echo.NewHTTPError(http.StatusInternalServerError, msg)
}
