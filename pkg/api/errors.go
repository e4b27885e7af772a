package api

import (
	"errors"
	"log/slog"
	"net/http"

	echo "github.com/labstack/echo/v5"

	"github.com/codeready-toolchain/workbench/pkg/services"
	"github.com/codeready-toolchain/workbench/pkg/toolexec"
)

// mapServiceError maps service-layer errors to HTTP error responses.
func mapServiceError(err error) *echo.HTTPError {
	var validErr *services.ValidationError
	if errors.As(err, &validErr) {
		return echo.NewHTTPError(http.StatusBadRequest, validErr.Error())
	}
	if errors.Is(err, services.ErrInvalidInput) || errors.Is(err, toolexec.ErrInvalidInput) {
		return echo.NewHTTPError(http.StatusBadRequest, "invalid input")
	}
	if errors.Is(err, services.ErrNotFound) || errors.Is(err, toolexec.ErrNotFound) {
		return echo.NewHTTPError(http.StatusNotFound, "resource not found")
	}
	var transErr *toolexec.IllegalTransitionError
	if errors.As(err, &transErr) {
		return echo.NewHTTPError(http.StatusConflict, transErr.Error())
	}
	if errors.Is(err, toolexec.ErrAlreadyResolved) {
		return echo.NewHTTPError(http.StatusConflict, "permission request already resolved")
	}

	// Unexpected error
	slog.Error("Unexpected service error", "error", err)
	return echo.NewHTTPError(http.StatusInternalServerError, "internal server error")
}
