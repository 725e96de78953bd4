package sms

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/arsmn/go-smsir/smsir"
	"github.com/nyaruka/phonenumbers"

	"github.com/Alijeyrad/wellness_intake/config"
)

var (
	ErrInvalidNumber = errors.New("sms: invalid phone number")
	ErrNoTemplate    = errors.New("sms: template ID is required")
)

// DefaultRegion is used for numbers written without a country code.
const DefaultRegion = "IN"

// Client provides SMS sending functionality via sms.ir.
type Client struct {
	client     *smsir.Client
	enabled    bool
	region     string
	templateID string
}

// NewFromConfig creates a new SMS client from the application configuration.
// If SMS is disabled, returns a client that no-ops on all operations.
func NewFromConfig(cfg config.SMSConfig) (*Client, error) {
	region := strings.ToUpper(strings.TrimSpace(cfg.DefaultRegion))
	if region == "" {
		region = DefaultRegion
	}

	if !cfg.Enabled {
		return &Client{enabled: false, region: region}, nil
	}

	if cfg.SMSIR.APIKey == "" {
		return nil, fmt.Errorf("sms.ir API key required when SMS enabled")
	}

	client := smsir.NewClient().WithAuthentication(cfg.SMSIR.APIKey, cfg.SMSIR.SecretKey)

	return &Client{
		client:     client,
		enabled:    true,
		region:     region,
		templateID: cfg.SMSIR.TemplateID,
	}, nil
}

// NormalizeE164 parses a phone number in the given default region and returns
// it in E.164 form, e.g. "9876543210" in IN becomes "+919876543210".
func NormalizeE164(phone, region string) (string, error) {
	phone = strings.TrimSpace(phone)
	if phone == "" {
		return "", ErrInvalidNumber
	}
	num, err := phonenumbers.Parse(phone, strings.ToUpper(region))
	if err != nil {
		return "", fmt.Errorf("%w: %v", ErrInvalidNumber, err)
	}
	if !phonenumbers.IsValidNumber(num) {
		return "", ErrInvalidNumber
	}
	return phonenumbers.Format(num, phonenumbers.E164), nil
}

// SendBookingNotice sends a templated booking outcome message. The template
// is expected to take "status" and "ref" parameters.
// If SMS is disabled, this is a no-op and returns nil.
func (c *Client) SendBookingNotice(ctx context.Context, phoneNumber, status, ref string) error {
	if !c.enabled {
		return nil
	}
	if c.templateID == "" {
		return ErrNoTemplate
	}

	mobile, err := NormalizeE164(phoneNumber, c.region)
	if err != nil {
		return err
	}

	params := []smsir.UltraFastParameter{{Key: "status", Value: status}}
	if ref != "" {
		params = append(params, smsir.UltraFastParameter{Key: "ref", Value: ref})
	}

	req := &smsir.UltraFastSendRequest{
		Mobile:     mobile,
		TemplateID: c.templateID,
		Parameters: params,
	}

	if _, err := c.client.Verification.UltraFastSend(ctx, req); err != nil {
		return fmt.Errorf("sms.ir send failed: %w", err)
	}
	return nil
}

// IsEnabled returns whether SMS sending is enabled.
func (c *Client) IsEnabled() bool {
	return c.enabled
}

// Region returns the default region numbers are parsed in.
func (c *Client) Region() string {
	return c.region
}
