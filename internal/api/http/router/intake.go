package router

import (
	"github.com/gofiber/fiber/v3"

	"github.com/Alijeyrad/wellness_intake/internal/api/http/handler"
)

func (r *Router) registerIntakeRoutes(api fiber.Router, h *handler.IntakeHandler, session fiber.Handler) {
	group := api.Group("/intake", session)

	group.Post("/login", h.Login)
	group.Get("/state", h.State)
	group.Post("/new", h.StartNew)

	group.Put("/booking-mode", h.SetBookingMode)
	group.Patch("/details", h.UpdateDetails)
	group.Post("/roster", h.UploadRoster)

	employees := group.Group("/employees")
	employees.Post("/", h.AddEmployee)
	employees.Put("/:idx", h.UpdateEmployee)
	employees.Delete("/:idx", h.RemoveEmployee)
	employees.Put("/:idx/has-dependents", h.SetHasDependents)
	employees.Post("/:idx/dependents", h.AddDependent)
	employees.Put("/:idx/dependents/:didx", h.UpdateDependent)
	employees.Delete("/:idx/dependents/:didx", h.RemoveDependent)

	group.Post("/advance", h.Advance)
	group.Post("/retreat", h.Retreat)
	group.Post("/jump", h.JumpTo)
	group.Post("/captcha/refresh", h.RefreshCaptcha)
	group.Post("/submit", h.Submit)
	group.Post("/retry", h.Retry)

	group.Post("/navigation/back", h.NavigateBack)
	group.Get("/navigation/unload", h.Unload)

	group.Get("/outcome/summary", h.Summary)
	group.Get("/outcome/failure", h.Failure)
}
