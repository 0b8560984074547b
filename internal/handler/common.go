package handler // handler defines the HTTP handlers of the raffle API

import (
	"errors"
	"net/http"
	"strconv"

	"github.com/google/logger"
	"github.com/labstack/echo/v4"

	"github.com/iliyamo/event-raffle/internal/raffle"
)

// parseID reads a positive numeric path parameter.
func parseID(c echo.Context, name string) (uint64, bool) {
	id, err := strconv.ParseUint(c.Param(name), 10, 64)
	if err != nil || id == 0 {
		return 0, false
	}
	return id, true
}

func badParam(c echo.Context, name string) error {
	return c.JSON(http.StatusBadRequest, echo.Map{"error": "invalid " + name})
}

// fail maps engine errors onto HTTP responses.  Anything the engine does
// not classify is logged and reported as 500 without details.
func fail(c echo.Context, err error) error {
	var ve *raffle.ValidationError
	var ce *raffle.ConflictError
	var nf *raffle.NotFoundError
	switch {
	case errors.As(err, &ve):
		return c.JSON(http.StatusUnprocessableEntity, echo.Map{"error": ve.Reason})
	case errors.As(err, &ce):
		return c.JSON(http.StatusConflict, echo.Map{"error": "concurrent modification, retry", "retryable": true})
	case errors.As(err, &nf):
		return c.JSON(http.StatusNotFound, echo.Map{"error": nf.Resource + " not found"})
	}
	logger.Errorf("handler: %s %s: %v", c.Request().Method, c.Request().URL.Path, err)
	return c.JSON(http.StatusInternalServerError, echo.Map{"error": "internal error"})
}
