package handler

import (
	"context"
	"errors"
	"io"
	"log/slog"
	"strconv"

	"github.com/gofiber/fiber/v3"

	"github.com/Alijeyrad/wellness_intake/internal/api/http/middleware"
	"github.com/Alijeyrad/wellness_intake/internal/intake"
	"github.com/Alijeyrad/wellness_intake/internal/service/booking"
)

var errBadIndex = errors.New("invalid index")

type IntakeHandler struct {
	svc    booking.Service
	logger *slog.Logger
}

func NewIntakeHandler(svc booking.Service, logger *slog.Logger) *IntakeHandler {
	return &IntakeHandler{svc: svc, logger: logger}
}

// ---------------------------------------------------------------------------
// Request bodies
// ---------------------------------------------------------------------------

type loginRequest struct {
	Email    string `json:"email" validate:"required,email"`
	Password string `json:"password" validate:"required"`
}

type bookingModeRequest struct {
	BookingMode string `json:"booking_mode" validate:"required,oneof=online_form csv_upload"`
}

type detailsRequest struct {
	OfficeSelection *string `json:"office_selection"`
	CollectionMode  *string `json:"collection_mode"`
	AppointmentDate *string `json:"appointment_date"`
	Notes           *string `json:"notes" validate:"omitempty,max=2000"`
}

type hasDependentsRequest struct {
	HasDependents *bool `json:"has_dependents" validate:"required"`
}

type jumpRequest struct {
	Step string `json:"step" validate:"required"`
}

type submitRequest struct {
	CaptchaInput string `json:"captcha_input"`
}

type backRequest struct {
	Confirm bool `json:"confirm"`
}

type submitResponse struct {
	*intake.Outcome
	RedirectAfterMS int64 `json:"redirect_after_ms"`
}

// ---------------------------------------------------------------------------
// Session
// ---------------------------------------------------------------------------

// POST /intake/login
func (h *IntakeHandler) Login(c fiber.Ctx) error {
	var req loginRequest
	if err := c.Bind().Body(&req); err != nil {
		return badRequest(c, bindError(err))
	}

	st, err := h.svc.Login(c.Context(), middleware.SessionIDFromFiber(c), intake.Credentials{
		Email:    req.Email,
		Password: req.Password,
	})
	if err != nil {
		return mapIntakeError(c, h.logger, err)
	}
	return ok(c, st)
}

// GET /intake/state
func (h *IntakeHandler) State(c fiber.Ctx) error {
	st, err := h.svc.State(c.Context(), middleware.SessionIDFromFiber(c))
	if err != nil {
		return mapIntakeError(c, h.logger, err)
	}
	return ok(c, st)
}

// POST /intake/new
func (h *IntakeHandler) StartNew(c fiber.Ctx) error {
	return h.respond(c, h.svc.StartNew)
}

// ---------------------------------------------------------------------------
// Draft
// ---------------------------------------------------------------------------

// PUT /intake/booking-mode
func (h *IntakeHandler) SetBookingMode(c fiber.Ctx) error {
	var req bookingModeRequest
	if err := c.Bind().Body(&req); err != nil {
		return badRequest(c, bindError(err))
	}
	st, err := h.svc.SetBookingMode(c.Context(), middleware.SessionIDFromFiber(c), intake.BookingMode(req.BookingMode))
	if err != nil {
		return mapIntakeError(c, h.logger, err)
	}
	return ok(c, st)
}

// PATCH /intake/details
func (h *IntakeHandler) UpdateDetails(c fiber.Ctx) error {
	var req detailsRequest
	if err := c.Bind().Body(&req); err != nil {
		return badRequest(c, bindError(err))
	}
	st, err := h.svc.UpdateDetails(c.Context(), middleware.SessionIDFromFiber(c), intake.DetailsUpdate{
		OfficeSelection: req.OfficeSelection,
		CollectionMode:  req.CollectionMode,
		AppointmentDate: req.AppointmentDate,
		Notes:           req.Notes,
	})
	if err != nil {
		return mapIntakeError(c, h.logger, err)
	}
	return ok(c, st)
}

// POST /intake/employees
func (h *IntakeHandler) AddEmployee(c fiber.Ctx) error {
	var e intake.Employee
	if err := c.Bind().Body(&e); err != nil {
		return badRequest(c, bindError(err))
	}
	st, err := h.svc.AddEmployee(c.Context(), middleware.SessionIDFromFiber(c), e)
	if err != nil {
		return mapIntakeError(c, h.logger, err)
	}
	return created(c, st)
}

// PUT /intake/employees/:idx
func (h *IntakeHandler) UpdateEmployee(c fiber.Ctx) error {
	i, err := index(c, "idx")
	if err != nil {
		return badRequest(c, "invalid employee index")
	}
	var e intake.Employee
	if err := c.Bind().Body(&e); err != nil {
		return badRequest(c, bindError(err))
	}
	st, err := h.svc.UpdateEmployee(c.Context(), middleware.SessionIDFromFiber(c), i, e)
	if err != nil {
		return mapIntakeError(c, h.logger, err)
	}
	return ok(c, st)
}

// DELETE /intake/employees/:idx
func (h *IntakeHandler) RemoveEmployee(c fiber.Ctx) error {
	i, err := index(c, "idx")
	if err != nil {
		return badRequest(c, "invalid employee index")
	}
	st, err := h.svc.RemoveEmployee(c.Context(), middleware.SessionIDFromFiber(c), i)
	if err != nil {
		return mapIntakeError(c, h.logger, err)
	}
	return ok(c, st)
}

// PUT /intake/employees/:idx/has-dependents
func (h *IntakeHandler) SetHasDependents(c fiber.Ctx) error {
	i, err := index(c, "idx")
	if err != nil {
		return badRequest(c, "invalid employee index")
	}
	var req hasDependentsRequest
	if err := c.Bind().Body(&req); err != nil {
		return badRequest(c, bindError(err))
	}
	st, err := h.svc.SetHasDependents(c.Context(), middleware.SessionIDFromFiber(c), i, *req.HasDependents)
	if err != nil {
		return mapIntakeError(c, h.logger, err)
	}
	return ok(c, st)
}

// POST /intake/employees/:idx/dependents
func (h *IntakeHandler) AddDependent(c fiber.Ctx) error {
	i, err := index(c, "idx")
	if err != nil {
		return badRequest(c, "invalid employee index")
	}
	var d intake.Dependent
	if err := c.Bind().Body(&d); err != nil {
		return badRequest(c, bindError(err))
	}
	st, err := h.svc.AddDependent(c.Context(), middleware.SessionIDFromFiber(c), i, d)
	if err != nil {
		return mapIntakeError(c, h.logger, err)
	}
	return created(c, st)
}

// PUT /intake/employees/:idx/dependents/:didx
func (h *IntakeHandler) UpdateDependent(c fiber.Ctx) error {
	i, j, err := indexes(c)
	if err != nil {
		return badRequest(c, "invalid employee or dependent index")
	}
	var d intake.Dependent
	if err := c.Bind().Body(&d); err != nil {
		return badRequest(c, bindError(err))
	}
	st, err := h.svc.UpdateDependent(c.Context(), middleware.SessionIDFromFiber(c), i, j, d)
	if err != nil {
		return mapIntakeError(c, h.logger, err)
	}
	return ok(c, st)
}

// DELETE /intake/employees/:idx/dependents/:didx
func (h *IntakeHandler) RemoveDependent(c fiber.Ctx) error {
	i, j, err := indexes(c)
	if err != nil {
		return badRequest(c, "invalid employee or dependent index")
	}
	st, err := h.svc.RemoveDependent(c.Context(), middleware.SessionIDFromFiber(c), i, j)
	if err != nil {
		return mapIntakeError(c, h.logger, err)
	}
	return ok(c, st)
}

// POST /intake/roster (multipart, field "file")
func (h *IntakeHandler) UploadRoster(c fiber.Ctx) error {
	fh, err := c.FormFile("file")
	if err != nil {
		return badRequest(c, "roster file is required")
	}
	f, err := fh.Open()
	if err != nil {
		return badRequest(c, "could not read roster file")
	}
	defer f.Close()

	data, err := io.ReadAll(f)
	if err != nil {
		return badRequest(c, "could not read roster file")
	}

	st, err := h.svc.UploadRoster(c.Context(), middleware.SessionIDFromFiber(c), fh.Filename, data)
	if err != nil {
		return mapIntakeError(c, h.logger, err)
	}
	return ok(c, st)
}

// ---------------------------------------------------------------------------
// Steps
// ---------------------------------------------------------------------------

// POST /intake/advance
func (h *IntakeHandler) Advance(c fiber.Ctx) error {
	return h.respond(c, h.svc.Advance)
}

// POST /intake/retreat
func (h *IntakeHandler) Retreat(c fiber.Ctx) error {
	return h.respond(c, h.svc.Retreat)
}

// POST /intake/jump
func (h *IntakeHandler) JumpTo(c fiber.Ctx) error {
	var req jumpRequest
	if err := c.Bind().Body(&req); err != nil {
		return badRequest(c, bindError(err))
	}
	step, found := intake.ParseStep(req.Step)
	if !found {
		return badRequest(c, "unknown step")
	}
	st, err := h.svc.JumpTo(c.Context(), middleware.SessionIDFromFiber(c), step)
	if err != nil {
		return mapIntakeError(c, h.logger, err)
	}
	return ok(c, st)
}

// POST /intake/captcha/refresh
func (h *IntakeHandler) RefreshCaptcha(c fiber.Ctx) error {
	return h.respond(c, h.svc.RefreshCaptcha)
}

// POST /intake/submit
func (h *IntakeHandler) Submit(c fiber.Ctx) error {
	var req submitRequest
	if err := c.Bind().Body(&req); err != nil {
		return badRequest(c, bindError(err))
	}
	out, err := h.svc.Submit(c.Context(), middleware.SessionIDFromFiber(c), req.CaptchaInput)
	if err != nil {
		return mapIntakeError(c, h.logger, err)
	}
	return ok(c, submitResponse{Outcome: out, RedirectAfterMS: out.RedirectAfter.Milliseconds()})
}

// POST /intake/retry
func (h *IntakeHandler) Retry(c fiber.Ctx) error {
	return h.respond(c, h.svc.Retry)
}

// ---------------------------------------------------------------------------
// Navigation guard
// ---------------------------------------------------------------------------

// POST /intake/navigation/back
func (h *IntakeHandler) NavigateBack(c fiber.Ctx) error {
	var req backRequest
	if len(c.Body()) > 0 {
		if err := c.Bind().Body(&req); err != nil {
			return badRequest(c, bindError(err))
		}
	}
	res, err := h.svc.NavigateBack(c.Context(), middleware.SessionIDFromFiber(c), req.Confirm)
	if err != nil {
		return mapIntakeError(c, h.logger, err)
	}
	return ok(c, res)
}

// GET /intake/navigation/unload
func (h *IntakeHandler) Unload(c fiber.Ctx) error {
	warn, err := h.svc.Unload(c.Context(), middleware.SessionIDFromFiber(c))
	if err != nil {
		return mapIntakeError(c, h.logger, err)
	}
	return ok(c, fiber.Map{"prompt": warn})
}

// ---------------------------------------------------------------------------
// Helpers
// ---------------------------------------------------------------------------

func (h *IntakeHandler) respond(c fiber.Ctx, op func(ctx context.Context, sessionID string) (*booking.State, error)) error {
	st, err := op(c.Context(), middleware.SessionIDFromFiber(c))
	if err != nil {
		return mapIntakeError(c, h.logger, err)
	}
	return ok(c, st)
}

func index(c fiber.Ctx, param string) (int, error) {
	i, err := strconv.Atoi(c.Params(param))
	if err != nil || i < 0 {
		return 0, errBadIndex
	}
	return i, nil
}

func indexes(c fiber.Ctx) (int, int, error) {
	i, err := index(c, "idx")
	if err != nil {
		return 0, 0, err
	}
	j, err := index(c, "didx")
	if err != nil {
		return 0, 0, err
	}
	return i, j, nil
}
