package handler

import (
	"strings"

	"github.com/gofiber/fiber/v3"

	"github.com/Alijeyrad/wellness_intake/internal/api/http/middleware"
)

// GET /intake/outcome/summary?brn=
func (h *IntakeHandler) Summary(c fiber.Ctx) error {
	brn := strings.TrimSpace(c.Query("brn"))
	if brn == "" {
		return badRequest(c, "brn is required")
	}
	sum, err := h.svc.Summary(c.Context(), middleware.SessionIDFromFiber(c), brn)
	if err != nil {
		return mapIntakeError(c, h.logger, err)
	}
	return ok(c, sum)
}

// GET /intake/outcome/failure
func (h *IntakeHandler) Failure(c fiber.Ctx) error {
	snap, err := h.svc.Failure(c.Context(), middleware.SessionIDFromFiber(c))
	if err != nil {
		return mapIntakeError(c, h.logger, err)
	}
	return ok(c, snap)
}
