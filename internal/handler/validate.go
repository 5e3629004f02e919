package handler

import (
	"net/http"

	"github.com/go-playground/validator/v10"
	"github.com/labstack/echo/v4"
)

// bindAndValidate decodes the request body into dst and checks its
// validate tags.  On failure it writes the 400 response itself and
// returns false.
func bindAndValidate(c echo.Context, v *validator.Validate, dst any) (bool, error) {
	if err := c.Bind(dst); err != nil {
		return false, c.JSON(http.StatusBadRequest, echo.Map{"error": "invalid request body"})
	}
	if err := v.Struct(dst); err != nil {
		return false, c.JSON(http.StatusBadRequest, echo.Map{"error": "validation failed", "detail": err.Error()})
	}
	return true, nil
}
