package middleware

import (
	"github.com/gofiber/fiber/v3"
	"github.com/google/uuid"

	"github.com/Alijeyrad/wellness_intake/pkg/observability"
	"github.com/Alijeyrad/wellness_intake/pkg/reqctx"
)

const (
	HeaderClientSession = observability.SessionHeader
	LocalSessionID      = "client_session_id"
)

// ClientSession binds a request to an intake session. A browser without a
// session gets a new one in the response header; a malformed id is rejected.
func ClientSession() fiber.Handler {
	return func(c fiber.Ctx) error {
		sid := c.Get(HeaderClientSession)
		if sid == "" {
			sid = uuid.NewString()
		} else if _, err := uuid.Parse(sid); err != nil {
			return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{"error": "invalid client session id"})
		}

		c.Locals(LocalSessionID, sid)
		c.Set(HeaderClientSession, sid)
		c.SetContext(reqctx.WithSessionID(c.Context(), sid))

		return c.Next()
	}
}

// SessionIDFromFiber returns the session id set by ClientSession.
func SessionIDFromFiber(c fiber.Ctx) string {
	sid, _ := c.Locals(LocalSessionID).(string)
	return sid
}
