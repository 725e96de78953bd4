package handler

import (
	"errors"
	"log/slog"
	"net/url"

	"github.com/gofiber/fiber/v3"

	"github.com/Alijeyrad/wellness_intake/internal/api/http/middleware"
	"github.com/Alijeyrad/wellness_intake/internal/intake"
	"github.com/Alijeyrad/wellness_intake/internal/portal"
	"github.com/Alijeyrad/wellness_intake/internal/service/booking"
	"github.com/Alijeyrad/wellness_intake/pkg/roster"
)

// conflictErrors are workflow-state errors: the request is fine but the
// session is not in a state that allows it.
var conflictErrors = []error{
	intake.ErrAlreadyAuthenticated,
	intake.ErrWrongStep,
	intake.ErrTerminal,
	intake.ErrSubmitRequired,
	intake.ErrJumpNotAllowed,
	intake.ErrNoDraft,
	intake.ErrRosterNotExpected,
	intake.ErrSubmissionInFlight,
}

// fieldErrors are input errors that are not wrapped in a ValidationError.
var fieldErrors = []error{
	intake.ErrOfficeNotPermitted,
	intake.ErrOfficeRequired,
	intake.ErrModeNotSupported,
	intake.ErrModeLocked,
	intake.ErrDateTooEarly,
	intake.ErrInvalidDate,
	intake.ErrUnknownBookingMode,
	intake.ErrTailIncomplete,
	intake.ErrDependentsPresent,
	intake.ErrDependentsDisabled,
	roster.ErrUnsupportedFormat,
	roster.ErrMissingColumns,
	roster.ErrNoRows,
}

func mapIntakeError(c fiber.Ctx, logger *slog.Logger, err error) error {
	var ve *intake.ValidationError
	if errors.As(err, &ve) {
		body := fiber.Map{
			"error": ve.Message,
			"step":  ve.Step,
			"field": ve.Field,
		}
		if ve.Index >= 0 {
			body["index"] = ve.Index
		}
		if ve.DependentIndex >= 0 {
			body["dependent_index"] = ve.DependentIndex
		}
		return unprocessable(c, body)
	}

	var ae *portal.AuthError
	if errors.As(err, &ae) {
		return unauthorized(c, ae.Message)
	}

	switch {
	case errors.Is(err, booking.ErrMissingSession):
		return badRequest(c, err.Error())
	case errors.Is(err, intake.ErrNotAuthenticated):
		return unauthorized(c, err.Error())
	case errors.Is(err, booking.ErrNoCompany):
		return forbidden(c, err.Error())
	case errors.Is(err, intake.ErrCaptchaMismatch):
		return unprocessable(c, fiber.Map{"error": err.Error(), "field": "captcha_input"})
	case errors.Is(err, intake.ErrIndexOutOfRange),
		errors.Is(err, booking.ErrSummaryNotFound),
		errors.Is(err, booking.ErrNoFailure):
		return notFound(c, err.Error())
	case errors.Is(err, roster.ErrTooLarge):
		return payloadTooLarge(c, roster.ErrTooLarge.Error())
	}

	for _, target := range conflictErrors {
		if errors.Is(err, target) {
			return conflict(c, err.Error())
		}
	}
	for _, target := range fieldErrors {
		if errors.Is(err, target) {
			return unprocessable(c, fiber.Map{"error": target.Error()})
		}
	}

	var se *portal.StatusError
	var ue *url.Error
	if errors.As(err, &se) || errors.As(err, &ue) || errors.Is(err, portal.ErrCompanyNotFound) || errors.Is(err, portal.ErrUnexpectedResponse) {
		logger.Error("portal request failed", "path", c.Path(), "request_id", requestID(c), "error", err)
		return badGateway(c, "a portal service is unavailable, please try again")
	}

	logger.Error("intake request failed", "path", c.Path(), "request_id", requestID(c), "error", err)
	return internalError(c)
}

func requestID(c fiber.Ctx) string {
	rid, _ := middleware.RequestIDFromFiber(c)
	return rid
}
