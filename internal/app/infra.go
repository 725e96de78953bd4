package app

import (
	"context"
	"log/slog"
	"net/http"

	"github.com/nats-io/nats.go"
	"github.com/redis/go-redis/v9"
	"go.uber.org/fx"

	"github.com/Alijeyrad/wellness_intake/config"
	"github.com/Alijeyrad/wellness_intake/internal/intake"
	"github.com/Alijeyrad/wellness_intake/internal/portal"
	"github.com/Alijeyrad/wellness_intake/internal/service/booking"
	"github.com/Alijeyrad/wellness_intake/pkg/email"
	"github.com/Alijeyrad/wellness_intake/pkg/logs"
	"github.com/Alijeyrad/wellness_intake/pkg/observability"
	redispkg "github.com/Alijeyrad/wellness_intake/pkg/redis"
	s3pkg "github.com/Alijeyrad/wellness_intake/pkg/s3"
	"github.com/Alijeyrad/wellness_intake/pkg/sessionstore"
	"github.com/Alijeyrad/wellness_intake/pkg/sms"
)

// InfraModule provides all infrastructure dependencies.
var InfraModule = fx.Module("infra",
	fx.Provide(ProvideLogger),
	fx.Provide(ProvideRedis),
	fx.Provide(ProvideSessionStore),
	fx.Provide(ProvideEmailClient),
	fx.Provide(ProvideSMSClient),
	fx.Provide(ProvideOTel),
	fx.Provide(ProvideNatsClient),
	fx.Provide(ProvidePortalClients),
	fx.Provide(ProvideScheduler),
	fx.Provide(ProvideRosterArchive),
)

func ProvideLogger(cfg *config.Config) *slog.Logger {
	return logs.New(cfg)
}

func ProvideRedis(lc fx.Lifecycle, cfg *config.Config) (*redis.Client, error) {
	rdb, err := redispkg.NewRedisFromCentral(cfg.Redis)
	if err != nil {
		return nil, err
	}
	lc.Append(fx.Hook{
		OnStop: func(ctx context.Context) error {
			slog.Debug("closing Redis connection")
			return rdb.Close()
		},
	})
	return rdb, nil
}

func ProvideSessionStore(cfg *config.Config, rdb *redis.Client) (*sessionstore.Provider, error) {
	return sessionstore.New(sessionstore.FromCentralConfig(cfg.SessionStore), rdb)
}

func ProvideEmailClient(cfg *config.Config) (*email.Client, error) {
	return email.NewFromCentral(cfg.Email)
}

func ProvideSMSClient(cfg *config.Config) (*sms.Client, error) {
	return sms.NewFromConfig(cfg.SMS)
}

// ProvideNatsClient returns nil when no broker URL is configured; events are
// then only logged and no outcome notifications are sent.
func ProvideNatsClient(lc fx.Lifecycle, cfg *config.Config) (*nats.Conn, error) {
	if cfg.Nats.URL == "" {
		slog.Warn("nats url not configured, intake events will only be logged")
		return nil, nil
	}
	nc, err := nats.Connect(cfg.Nats.URL, nats.Name(cfg.Observability.ServiceName))
	if err != nil {
		return nil, err
	}
	lc.Append(fx.Hook{
		OnStop: func(ctx context.Context) error {
			slog.Debug("draining NATS connection")
			return nc.Drain()
		},
	})
	return nc, nil
}

func ProvideOTel(lc fx.Lifecycle, cfg *config.Config) (*observability.Provider, error) {
	if !cfg.Observability.Enabled {
		return nil, nil
	}
	provider, err := observability.InitTelemetry(context.Background(), observability.FromCentralConfig(cfg))
	if err != nil {
		return nil, err
	}
	slog.Info("observability initialized",
		"tracing", cfg.Observability.Tracing.Enabled,
		"metrics", cfg.Observability.Metrics.Enabled,
	)
	lc.Append(fx.Hook{
		OnStop: func(ctx context.Context) error {
			slog.Debug("shutting down observability providers")
			return provider.Shutdown(ctx)
		},
	})
	return provider, nil
}

// PortalClients are the company portal services the intake flow calls.
type PortalClients struct {
	fx.Out

	Auth     *portal.AuthClient
	Settings *portal.SettingsClient
	Booking  *portal.BookingClient
}

func ProvidePortalClients(cfg *config.Config, rdb *redis.Client, logger *slog.Logger) PortalClients {
	pcfg := portal.FromCentralConfig(cfg)
	httpClient := &http.Client{Timeout: pcfg.Timeout}
	return PortalClients{
		Auth:     portal.NewAuthClient(pcfg, httpClient),
		Settings: portal.NewSettingsClient(pcfg, httpClient, rdb, logger),
		Booking:  portal.NewBookingClient(pcfg, httpClient),
	}
}

func ProvideScheduler(lc fx.Lifecycle) *intake.Scheduler {
	s := intake.NewScheduler()
	lc.Append(fx.Hook{
		OnStop: func(ctx context.Context) error {
			s.Close()
			return nil
		},
	})
	return s
}

// ProvideRosterArchive returns a nil archive unless roster archiving is on.
func ProvideRosterArchive(cfg *config.Config) (booking.RosterArchive, error) {
	if !cfg.RosterArchive.Enabled {
		return nil, nil
	}
	client, err := s3pkg.New(context.Background(), cfg.RosterArchive)
	if err != nil {
		return nil, err
	}
	return client, nil
}
