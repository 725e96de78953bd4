package middleware

import (
	"time"

	"github.com/gofiber/fiber/v3"
	"github.com/gofiber/fiber/v3/middleware/limiter"
	fiberredis "github.com/gofiber/storage/redis/v3"
	"github.com/redis/go-redis/v9"
)

// DefaultRequestsPerMinute applies when the config leaves the limit unset.
const DefaultRequestsPerMinute = 120

// NewLimiterWithRedis rate limits per client session, falling back to the
// client IP for requests without one.
func NewLimiterWithRedis(rdb redis.UniversalClient, perMinute int) fiber.Handler {
	if perMinute <= 0 {
		perMinute = DefaultRequestsPerMinute
	}
	storage := fiberredis.NewFromConnection(rdb)
	return limiter.New(limiter.Config{
		Storage: storage,

		// sliding window
		Max:               perMinute,
		Expiration:        time.Minute,
		LimiterMiddleware: limiter.SlidingWindow{},
		KeyGenerator: func(c fiber.Ctx) string {
			if sid := c.Get(HeaderClientSession); sid != "" {
				return "session:" + sid
			}
			return "ip:" + c.IP()
		},
		LimitReached: func(c fiber.Ctx) error {
			return c.Status(fiber.StatusTooManyRequests).JSON(fiber.Map{"error": "too many requests, slow down"})
		},
	})
}
