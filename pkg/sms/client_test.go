package sms

import (
	"context"
	"errors"
	"testing"

	"github.com/Alijeyrad/wellness_intake/config"
)

func TestNewFromConfig_Disabled(t *testing.T) {
	client, err := NewFromConfig(config.SMSConfig{Enabled: false})
	if err != nil {
		t.Fatalf("NewFromConfig failed: %v", err)
	}
	if client.IsEnabled() {
		t.Error("Expected client to be disabled")
	}
	if client.Region() != DefaultRegion {
		t.Errorf("Region() = %q, want %q", client.Region(), DefaultRegion)
	}
}

func TestNewFromConfig_EnabledWithoutAPIKey(t *testing.T) {
	cfg := config.SMSConfig{
		Enabled: true,
		SMSIR:   config.SMSIRConfig{TemplateID: "test-template"},
	}
	if _, err := NewFromConfig(cfg); err == nil {
		t.Error("Expected error when API key is missing")
	}
}

func TestNewFromConfig_EnabledWithAPIKey(t *testing.T) {
	cfg := config.SMSConfig{
		Enabled:       true,
		DefaultRegion: "us",
		SMSIR: config.SMSIRConfig{
			APIKey:     "test-api-key",
			SecretKey:  "test-secret-key",
			TemplateID: "test-template",
		},
	}

	client, err := NewFromConfig(cfg)
	if err != nil {
		t.Fatalf("NewFromConfig failed: %v", err)
	}
	if !client.IsEnabled() {
		t.Error("Expected client to be enabled")
	}
	if client.Region() != "US" {
		t.Errorf("Region() = %q, want US", client.Region())
	}
}

func TestSendBookingNotice_DisabledClient(t *testing.T) {
	client := &Client{enabled: false}
	if err := client.SendBookingNotice(context.Background(), "9876543210", "success", "BRN-1"); err != nil {
		t.Errorf("Expected no error for disabled client, got: %v", err)
	}
}

func TestSendBookingNotice_Validation(t *testing.T) {
	tests := []struct {
		name    string
		client  *Client
		phone   string
		wantErr error
	}{
		{"missing template", &Client{enabled: true, region: "IN"}, "9876543210", ErrNoTemplate},
		{"empty phone", &Client{enabled: true, region: "IN", templateID: "t"}, "", ErrInvalidNumber},
		{"garbage phone", &Client{enabled: true, region: "IN", templateID: "t"}, "12", ErrInvalidNumber},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := tt.client.SendBookingNotice(context.Background(), tt.phone, "success", "BRN-1")
			if !errors.Is(err, tt.wantErr) {
				t.Errorf("expected %v, got %v", tt.wantErr, err)
			}
		})
	}
}

func TestNormalizeE164(t *testing.T) {
	tests := []struct {
		phone   string
		region  string
		want    string
		wantErr bool
	}{
		{"9876543210", "IN", "+919876543210", false},
		{"+91 98765 43210", "US", "+919876543210", false},
		{"(202) 555-0143", "us", "+12025550143", false},
		{"", "IN", "", true},
		{"12345", "IN", "", true},
		{"not a number", "IN", "", true},
	}

	for _, tt := range tests {
		t.Run(tt.phone, func(t *testing.T) {
			got, err := NormalizeE164(tt.phone, tt.region)
			if tt.wantErr {
				if err == nil {
					t.Fatalf("expected error, got %q", got)
				}
				return
			}
			if err != nil {
				t.Fatalf("NormalizeE164: %v", err)
			}
			if got != tt.want {
				t.Errorf("NormalizeE164(%q, %q) = %q, want %q", tt.phone, tt.region, got, tt.want)
			}
		})
	}
}
