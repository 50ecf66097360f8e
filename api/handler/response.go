package handler

import (
	"errors"
	"math"
	"net/http"
	"strconv"
	"strings"

	"sims/internal/dto"
	"sims/internal/service"
	"sims/internal/utils"

	"github.com/go-playground/validator/v10"
	"github.com/labstack/echo/v4"
)

func writeError(c echo.Context, status int, err error) error {
	return c.JSON(status, dto.ErrorResponse{Error: err.Error()})
}

func writeServiceError(c echo.Context, err error) error {
	var validationErr *service.ValidationError
	if errors.As(err, &validationErr) {
		return c.JSON(http.StatusBadRequest, dto.ErrorResponse{
			Error:   validationErr.Message,
			Details: validationErr.Details,
		})
	}
	var rateErr *service.RateLimitError
	if errors.As(err, &rateErr) {
		if rateErr.RetryAfter > 0 {
			c.Response().Header().Set("Retry-After", strconv.Itoa(int(math.Ceil(rateErr.RetryAfter.Seconds()))))
		}
		return writeError(c, http.StatusTooManyRequests, err)
	}

	status := http.StatusInternalServerError
	switch {
	case errors.Is(err, service.ErrInvalidOtp), errors.Is(err, service.ErrWrongPassword):
		status = http.StatusBadRequest
	case errors.Is(err, service.ErrInvalidCredentials), errors.Is(err, service.ErrUnauthorized):
		status = http.StatusUnauthorized
	case errors.Is(err, service.ErrForbidden):
		status = http.StatusForbidden
	case errors.Is(err, service.ErrNotFound):
		status = http.StatusNotFound
	case errors.Is(err, service.ErrConflict):
		status = http.StatusConflict
	case errors.Is(err, service.ErrUnavailable):
		status = http.StatusServiceUnavailable
	}
	if status == http.StatusInternalServerError {
		// Returned to echo so the request logger records the cause.
		return &echo.HTTPError{
			Code:     status,
			Message:  dto.ErrorResponse{Error: "Internal server error"},
			Internal: err,
		}
	}
	return writeError(c, status, err)
}

// validatePayload reports the first failing field as a readable message.
func validatePayload(validate *validator.Validate, payload any) error {
	if validate == nil {
		return nil
	}
	if err := validate.Struct(payload); err != nil {
		return errors.New(utils.ValidationMessages(err)[0])
	}
	return nil
}

func parseLimitOffset(c echo.Context) (int, int) {
	limit, _ := strconv.Atoi(c.QueryParam("limit"))
	offset, _ := strconv.Atoi(c.QueryParam("offset"))
	return limit, offset
}

func stringPtr(value string) *string {
	if strings.TrimSpace(value) == "" {
		return nil
	}
	return &value
}
