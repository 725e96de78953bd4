package email

import (
	"context"
	"crypto/tls"
	"net/mail"
	"strings"
	"time"

	"gopkg.in/gomail.v2"

	"github.com/Alijeyrad/wellness_intake/config"
)

// Sender is what the outcome notifier needs from an email client.
type Sender interface {
	Send(ctx context.Context, m Message) error
}

type Client struct {
	cfg Config
	d   *gomail.Dialer
}

// NewFromCentral creates a new email client from central config
func NewFromCentral(cfg config.EmailConfig) (*Client, error) {
	return New(FromCentralConfig(cfg))
}

func New(cfg Config) (*Client, error) {
	if cfg.Enabled && strings.TrimSpace(cfg.SMTPHost) == "" {
		return nil, ErrInvalidMessage{Reason: "smtp host is required when email is enabled"}
	}
	d := gomail.NewDialer(cfg.SMTPHost, cfg.SMTPPort, cfg.SMTPUsername, cfg.SMTPPassword)
	return &Client{cfg: cfg, d: d}, nil
}

// Config exposes the template settings used to render messages.
func (c *Client) Config() Config { return c.cfg }

func (c *Client) Send(ctx context.Context, m Message) error {
	if !c.cfg.Enabled {
		return ErrDisabled{}
	}

	msg, err := buildMessage(c.cfg.From, m)
	if err != nil {
		return err
	}

	d := c.newDialer()

	done := make(chan error, 1)
	go func() {
		done <- d.DialAndSend(msg)
	}()

	// Respect ctx deadline if it's sooner than our config timeout.
	wait := c.cfg.SMTPTimeout()
	if dl, ok := ctx.Deadline(); ok {
		if d := time.Until(dl); d > 0 && d < wait {
			wait = d
		}
	}

	select {
	case err := <-done:
		if err != nil {
			return ErrSend{Provider: "gomail/smtp", Err: err}
		}
		return nil
	case <-ctx.Done():
		return ctx.Err()
	case <-time.After(wait):
		return context.DeadlineExceeded
	}
}

func (c *Client) newDialer() *gomail.Dialer {
	d := gomail.NewDialer(c.cfg.SMTPHost, c.cfg.SMTPPort, c.cfg.SMTPUsername, c.cfg.SMTPPassword)

	d.SSL = c.cfg.SMTPUseTLS

	if c.cfg.SMTPUseTLS {
		d.TLSConfig = &tls.Config{ServerName: c.cfg.SMTPHost, MinVersion: tls.VersionTLS12}
	}

	return d
}

// Header carrying the booking reference, so support can search the mail log.
const HeaderBookingRef = "X-Booking-Ref"

func buildMessage(from string, m Message) (*gomail.Message, error) {
	msg := gomail.NewMessage()

	sender, err := mail.ParseAddress(strings.TrimSpace(from))
	if err != nil {
		return nil, ErrInvalidMessage{Reason: "from is required"}
	}
	msg.SetAddressHeader("From", sender.Address, sender.Name)

	to, err := parseAddrs(m.To)
	if err != nil {
		return nil, err
	}
	if len(to) == 0 {
		return nil, ErrNoRecipients
	}
	msg.SetHeader("To", to...)

	if r := strings.TrimSpace(m.ReplyTo); r != "" {
		if _, err := mail.ParseAddress(r); err == nil {
			msg.SetHeader("Reply-To", r)
		}
	}

	subj := strings.TrimSpace(m.Subject)
	if subj == "" {
		return nil, ErrInvalidMessage{Reason: "subject is required"}
	}
	msg.SetHeader("Subject", subj)

	if ref := strings.TrimSpace(m.BookingRef); ref != "" {
		msg.SetHeader(HeaderBookingRef, ref)
	}

	hasText := strings.TrimSpace(m.TextBody) != ""
	hasHTML := strings.TrimSpace(m.HTMLBody) != ""

	switch {
	case hasText && hasHTML:
		msg.SetBody("text/plain", m.TextBody)
		msg.AddAlternative("text/html", m.HTMLBody)
	case hasHTML:
		msg.SetBody("text/html", m.HTMLBody)
	case hasText:
		msg.SetBody("text/plain", m.TextBody)
	default:
		return nil, ErrInvalidMessage{Reason: "either TextBody or HTMLBody is required"}
	}

	return msg, nil
}

// parseAddrs skips blank entries and rejects malformed ones.
func parseAddrs(in []string) ([]string, error) {
	out := make([]string, 0, len(in))
	for _, s := range in {
		s = strings.TrimSpace(s)
		if s == "" {
			continue
		}
		a, err := mail.ParseAddress(s)
		if err != nil {
			return nil, ErrInvalidMessage{Reason: "invalid recipient " + s}
		}
		out = append(out, a.Address)
	}
	return out, nil
}
