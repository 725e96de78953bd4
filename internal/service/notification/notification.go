// Package notification tells the booking user how their submission went,
// by email and, when a phone number is on file, by SMS.
package notification

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"strings"

	"github.com/Alijeyrad/wellness_intake/internal/intake"
	"github.com/Alijeyrad/wellness_intake/pkg/email"
)

// ---------------------------------------------------------------------------
// Collaborators
// ---------------------------------------------------------------------------

type SMSSender interface {
	SendBookingNotice(ctx context.Context, phone, status, ref string) error
	IsEnabled() bool
}

// ---------------------------------------------------------------------------
// Interface
// ---------------------------------------------------------------------------

type Service interface {
	// HandleMessage decodes a published outcome event and notifies its
	// recipient.
	HandleMessage(ctx context.Context, data []byte) error
	Notify(ctx context.Context, e intake.Event) error
}

type Config struct {
	// BaseURL prefixes the event's relative redirect path in message links.
	BaseURL string
}

// ---------------------------------------------------------------------------
// Implementation
// ---------------------------------------------------------------------------

type notificationService struct {
	mail    email.Sender
	mailCfg email.Config
	sms     SMSSender
	cfg     Config
	logger  *slog.Logger
}

func New(mail email.Sender, mailCfg email.Config, sms SMSSender, cfg Config, logger *slog.Logger) Service {
	return &notificationService{
		mail:    mail,
		mailCfg: mailCfg,
		sms:     sms,
		cfg:     cfg,
		logger:  logger,
	}
}

func (s *notificationService) HandleMessage(ctx context.Context, data []byte) error {
	var e intake.Event
	if err := json.Unmarshal(data, &e); err != nil {
		return fmt.Errorf("decode outcome event: %w", err)
	}
	return s.Notify(ctx, e)
}

func (s *notificationService) Notify(ctx context.Context, e intake.Event) error {
	if e.Type != intake.EventNavigatedToSuccess && e.Type != intake.EventNavigatedToFailure {
		return ErrUnknownEvent
	}
	if e.Recipient == nil || (e.Recipient.Email == "" && e.Recipient.Phone == "") {
		return ErrNoRecipient
	}

	var errs []error
	if e.Recipient.Email != "" {
		if err := s.sendEmail(ctx, e); err != nil {
			errs = append(errs, err)
		}
	}
	if e.Recipient.Phone != "" && s.sms != nil && s.sms.IsEnabled() {
		if err := s.sendSMS(ctx, e); err != nil {
			errs = append(errs, err)
		}
	}
	return errors.Join(errs...)
}

func (s *notificationService) sendEmail(ctx context.Context, e intake.Event) error {
	data := email.BookingEmailData{
		RecipientName:     e.Recipient.Name,
		RecipientEmail:    e.Recipient.Email,
		BookingRef:        e.BookingRef,
		CompanyName:       e.CompanyName,
		OfficeName:        e.OfficeName,
		AppointmentDate:   e.AppointmentDate,
		FailureKind:       string(e.FailureKind),
		ExportArtifactURL: e.ExportArtifactURL,
		Link:              s.link(e.RedirectURL),
	}

	var msg email.Message
	if e.Type == intake.EventNavigatedToSuccess {
		msg = email.BuildBookingConfirmedEmail(s.mailCfg, data)
	} else {
		msg = email.BuildBookingFailedEmail(s.mailCfg, data)
	}

	err := s.mail.Send(ctx, msg)
	var disabled email.ErrDisabled
	if errors.As(err, &disabled) {
		s.logger.DebugContext(ctx, "email disabled, skipping outcome notice", "session_id", e.SessionID)
		return nil
	}
	if err != nil {
		return fmt.Errorf("send outcome email: %w", err)
	}
	return nil
}

func (s *notificationService) sendSMS(ctx context.Context, e intake.Event) error {
	status := "submitted"
	if e.Type == intake.EventNavigatedToFailure {
		status = "failed"
	}
	if err := s.sms.SendBookingNotice(ctx, e.Recipient.Phone, status, e.BookingRef); err != nil {
		return fmt.Errorf("send outcome sms: %w", err)
	}
	return nil
}

func (s *notificationService) link(redirect string) string {
	if redirect == "" || s.cfg.BaseURL == "" || strings.Contains(redirect, "://") {
		return redirect
	}
	return strings.TrimSuffix(s.cfg.BaseURL, "/") + "/" + strings.TrimPrefix(redirect, "/")
}
