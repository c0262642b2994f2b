package main

import (
	"errors"
	"net/http"

	"github.com/twelve20/pir-planet-new/internal/apperr"

	"github.com/labstack/echo/v4"
)

// errorJSON maps service errors onto HTTP responses. Internal errors
// are logged and never leak storage detail to the client.
func errorJSON(c echo.Context, err error) error {
	switch {
	case apperr.IsValidation(err):
		return c.JSON(http.StatusBadRequest, map[string]string{"error": err.Error()})
	case errors.Is(err, apperr.ErrNotFound):
		return c.JSON(http.StatusNotFound, map[string]string{"error": "not found"})
	case errors.Is(err, apperr.ErrForbidden):
		return c.JSON(http.StatusForbidden, map[string]string{"error": "forbidden"})
	default:
		c.Logger().Error(err)
		return c.JSON(http.StatusInternalServerError, map[string]string{"error": "internal error"})
	}
}
