package http

import (
	"context"
	"fmt"
	"log/slog"
	"slices"
	"time"

	"github.com/gofiber/fiber/v3"
	"github.com/gofiber/fiber/v3/middleware/cors"
	"github.com/gofiber/fiber/v3/middleware/healthcheck"
	"github.com/gofiber/fiber/v3/middleware/helmet"
	"github.com/gofiber/fiber/v3/middleware/logger"
	recoverer "github.com/gofiber/fiber/v3/middleware/recover"
	"github.com/redis/go-redis/v9"
	"go.uber.org/fx"

	"github.com/Alijeyrad/wellness_intake/config"
	"github.com/Alijeyrad/wellness_intake/internal/api/http/handler"
	"github.com/Alijeyrad/wellness_intake/internal/api/http/middleware"
	"github.com/Alijeyrad/wellness_intake/internal/api/http/router"
	"github.com/Alijeyrad/wellness_intake/pkg/observability"
)

// Module provides the HTTP Server to the fx graph.
var Module = fx.Module("http", fx.Provide(NewServer))

type Params struct {
	fx.In

	Lifecycle fx.Lifecycle
	Cfg       *config.Config
	Redis     *redis.Client
	Router    *router.Router
	Logger    *slog.Logger
	OTel      *observability.Provider `optional:"true"`
}

func NewServer(p Params) *fiber.App {
	timeout := time.Duration(p.Cfg.Server.TimeoutSeconds) * time.Second
	app := fiber.New(fiber.Config{
		AppName:         p.Cfg.Observability.ServiceName,
		ReadTimeout:     timeout,
		WriteTimeout:    timeout,
		StructValidator: handler.NewStructValidator(),
	})

	if p.OTel != nil {
		app.Use(observability.FiberMiddleware(
			healthcheck.LivenessEndpoint,
			healthcheck.ReadinessEndpoint,
			healthcheck.StartupEndpoint,
			p.Cfg.Observability.Metrics.Path,
		))
	}

	configureGlobalMiddleware(app, p.Cfg, p.Redis)

	p.Router.Register(app)

	p.Lifecycle.Append(fx.Hook{
		OnStart: func(ctx context.Context) error {
			addr := fmt.Sprintf(":%d", p.Cfg.Server.Port)
			go func() {
				if err := app.Listen(addr); err != nil {
					p.Logger.Error("HTTP server error", "error", err)
				}
			}()
			p.Logger.Info("HTTP server listening", "addr", addr)
			return nil
		},
		OnStop: func(ctx context.Context) error {
			return app.ShutdownWithContext(ctx)
		},
	})

	return app
}

func configureGlobalMiddleware(app *fiber.App, cfg *config.Config, rdb *redis.Client) {
	app.Use(middleware.RequestID())
	app.Use(recoverer.New())

	if cfg.Server.CORS.Enabled {
		app.Use(cors.New(corsConfig(cfg.Server.CORS)))
	}

	if cfg.Server.Environment == "production" {
		app.Use(helmet.New())
		app.Use(middleware.NewLimiterWithRedis(rdb, cfg.Server.RateLimit.RequestsPerMinute))
	}

	app.Use(logger.New(logger.Config{
		Format: "${ip} - [${time}] [req_id=${respHeader:X-Request-Id}] ${method} ${url} ${status}\n",
	}))
}

// corsConfig always lets browsers send and read the client session header.
func corsConfig(c config.CORSConfig) cors.Config {
	allow := c.AllowHeaders
	if len(allow) == 0 {
		allow = []string{fiber.HeaderOrigin, fiber.HeaderContentType, fiber.HeaderAccept}
	}
	expose := c.ExposeHeaders
	for _, h := range []string{middleware.HeaderClientSession, middleware.HeaderRequestID} {
		if !slices.Contains(allow, h) {
			allow = append(allow, h)
		}
		if !slices.Contains(expose, h) {
			expose = append(expose, h)
		}
	}
	return cors.Config{
		AllowOrigins:     c.AllowOrigins,
		AllowHeaders:     allow,
		ExposeHeaders:    expose,
		AllowCredentials: c.AllowCredentials,
	}
}
