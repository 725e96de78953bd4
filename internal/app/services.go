package app

import (
	"log/slog"

	"github.com/nats-io/nats.go"
	"go.uber.org/fx"

	"github.com/Alijeyrad/wellness_intake/config"
	"github.com/Alijeyrad/wellness_intake/internal/intake"
	"github.com/Alijeyrad/wellness_intake/internal/portal"
	"github.com/Alijeyrad/wellness_intake/internal/service/booking"
	"github.com/Alijeyrad/wellness_intake/internal/service/notification"
	"github.com/Alijeyrad/wellness_intake/pkg/email"
	"github.com/Alijeyrad/wellness_intake/pkg/sessionstore"
	"github.com/Alijeyrad/wellness_intake/pkg/sms"
	"github.com/Alijeyrad/wellness_intake/pkg/util/codes"
)

// ServiceModule provides all application service dependencies.
var ServiceModule = fx.Module("services",
	fx.Provide(
		ProvideEventSink,
		ProvideCaptchaGate,
		ProvideCoordinator,
		ProvideBookingService,
		ProvideNotificationService,
	),
)

func ProvideEventSink(cfg *config.Config, nc *nats.Conn, logger *slog.Logger) intake.EventSink {
	if nc == nil {
		return booking.NewLogEvents(logger)
	}
	return booking.NewNatsEvents(nc, cfg.Nats.SubjectPrefix)
}

func ProvideCaptchaGate(cfg *config.Config) *intake.CaptchaGate {
	return intake.NewCaptchaGate(codes.New(codes.FromCentralConfig(cfg.Intake)))
}

func ProvideCoordinator(
	cfg *config.Config,
	bookingClient *portal.BookingClient,
	events intake.EventSink,
	scheduler *intake.Scheduler,
	logger *slog.Logger,
) *intake.Coordinator {
	return intake.NewCoordinator(bookingClient, events, scheduler, logger, intake.CoordinatorConfig{
		RedirectDelay: cfg.Intake.OutcomeRedirectDelay(),
		SuccessPath:   cfg.Intake.SuccessPath,
		FailurePath:   cfg.Intake.FailurePath,
	})
}

type BookingParams struct {
	fx.In

	Cfg         *config.Config
	Sessions    *sessionstore.Provider
	Auth        *portal.AuthClient
	Settings    *portal.SettingsClient
	Booking     *portal.BookingClient
	Archive     booking.RosterArchive
	Coordinator *intake.Coordinator
	Captcha     *intake.CaptchaGate
	Events      intake.EventSink
	Logger      *slog.Logger
}

func ProvideBookingService(p BookingParams) booking.Service {
	return booking.New(booking.Deps{
		Sessions:    p.Sessions,
		Auth:        p.Auth,
		Settings:    p.Settings,
		Summaries:   p.Booking,
		Archive:     p.Archive,
		Coordinator: p.Coordinator,
		Captcha:     p.Captcha,
		Events:      p.Events,
		Logger:      p.Logger,
		Config:      booking.Config{MaxRosterBytes: p.Cfg.Intake.MaxRosterSizeKB * 1024},
	})
}

func ProvideNotificationService(cfg *config.Config, mail *email.Client, smsCli *sms.Client, logger *slog.Logger) notification.Service {
	return notification.New(mail, mail.Config(), smsCli, notification.Config{BaseURL: cfg.Server.Domain}, logger)
}
