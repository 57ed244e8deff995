package api

import (
	"context"
	"errors"

	"PriceCast/internal/domain/errs"
	xhttp "PriceCast/pkg/http"
)

// toAppError maps core error kinds onto HTTP statuses.
func toAppError(err error) *xhttp.AppError {
	var appErr *xhttp.AppError
	if errors.As(err, &appErr) {
		return appErr
	}
	switch {
	case errors.Is(err, errs.ErrInvalidInput):
		return xhttp.BadRequestError(err.Error()).WithError(err)
	case errors.Is(err, errs.ErrModelNotFound):
		return xhttp.NotFoundError(err.Error()).WithError(err)
	case errors.Is(err, errs.ErrInsufficientData):
		return xhttp.UnprocessableError(err.Error()).WithError(err)
	case errors.Is(err, errs.ErrDataUnavailable):
		// the cause may quote upstream responses; keep it out of the body
		return xhttp.BadGatewayError("market data unavailable").WithError(err)
	case errors.Is(err, context.DeadlineExceeded):
		return xhttp.NewAppError("ERR_TIMEOUT", "", "request timed out", 504).WithError(err)
	default:
		return xhttp.InternalError("internal error").WithError(err)
	}
}
