package app

import (
	"context"
	"errors"
	"log/slog"
	"time"

	"github.com/nats-io/nats.go"
	"go.uber.org/fx"

	"github.com/Alijeyrad/wellness_intake/config"
	"github.com/Alijeyrad/wellness_intake/internal/service/booking"
	"github.com/Alijeyrad/wellness_intake/internal/service/notification"
)

// WorkerModule registers all NATS event workers.
var WorkerModule = fx.Module("workers",
	fx.Invoke(RegisterWorkers),
)

type WorkerParams struct {
	fx.In

	Lc       fx.Lifecycle
	Cfg      *config.Config
	NC       *nats.Conn
	NotifSvc notification.Service
	Logger   *slog.Logger
}

func RegisterWorkers(p WorkerParams) {
	if p.NC == nil {
		return
	}

	var sub *nats.Subscription
	p.Lc.Append(fx.Hook{
		OnStart: func(ctx context.Context) error {
			var err error
			sub, err = startOutcomeWorker(p.NC, p.Cfg.Nats.SubjectPrefix, p.NotifSvc, p.Logger)
			return err
		},
		OnStop: func(ctx context.Context) error {
			// Connection drain is handled by ProvideNatsClient
			if sub == nil {
				return nil
			}
			return sub.Unsubscribe()
		},
	})
}

// ---------------------------------------------------------------------------
// outcome_worker
// ---------------------------------------------------------------------------

func startOutcomeWorker(nc *nats.Conn, prefix string, notifSvc notification.Service, logger *slog.Logger) (*nats.Subscription, error) {
	subject := booking.OutcomeSubjects(prefix)

	// Queue group so only one replica notifies per outcome.
	sub, err := nc.QueueSubscribe(subject, "outcome-notifier", func(msg *nats.Msg) {
		ctx, cancel := context.WithTimeout(context.Background(), time.Minute)
		defer cancel()

		err := notifSvc.HandleMessage(ctx, msg.Data)
		switch {
		case err == nil:
			logger.Debug("outcome_worker: notified", "subject", msg.Subject)
		case errors.Is(err, notification.ErrNoRecipient):
			logger.Debug("outcome_worker: no recipient", "subject", msg.Subject)
		default:
			logger.Warn("outcome_worker: notify failed", "subject", msg.Subject, "err", err)
		}
	})
	if err != nil {
		logger.Error("outcome_worker: subscribe failed", "subject", subject, "err", err)
		return nil, err
	}

	logger.Info("outcome_worker: started", "subject", subject)
	return sub, nil
}
