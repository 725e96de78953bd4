package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const sampleConfig = `
server:
  port: 9090
  environment: production
session_store:
  driver: memory
portal:
  auth_base_url: http://auth.local
  booking_base_url: http://booking.local
intake:
  outcome_redirect_delay_seconds: 5
`

func TestReadConfig(t *testing.T) {
	dir := t.TempDir()
	require.NoError(t, os.WriteFile(filepath.Join(dir, "config.yaml"), []byte(sampleConfig), 0o600))

	cfg, err := ReadConfig(dir)
	require.NoError(t, err)

	assert.Equal(t, 9090, cfg.Server.Port)
	assert.Equal(t, "memory", cfg.SessionStore.Driver)
	assert.Equal(t, 6, cfg.Intake.CaptchaLength, "default captcha length")
	assert.Equal(t, 5*time.Second, cfg.Intake.OutcomeRedirectDelay())
	assert.Equal(t, "/booking/thank-you", cfg.Intake.SuccessPath)
	assert.Equal(t, 12*time.Hour, cfg.SessionStore.SessionTTL())
}

func TestValidate(t *testing.T) {
	valid := func() Config {
		return Config{
			SessionStore: SessionStoreConfig{Driver: "redis"},
			Portal:       PortalConfig{AuthBaseURL: "http://a", BookingBaseURL: "http://b"},
			Intake:       IntakeConfig{CaptchaLength: 6},
		}
	}

	tests := []struct {
		name    string
		mutate  func(c *Config)
		wantErr bool
	}{
		{name: "valid", mutate: func(c *Config) {}},
		{name: "unknown driver", mutate: func(c *Config) { c.SessionStore.Driver = "etcd" }, wantErr: true},
		{name: "missing booking url", mutate: func(c *Config) { c.Portal.BookingBaseURL = "" }, wantErr: true},
		{name: "captcha too short", mutate: func(c *Config) { c.Intake.CaptchaLength = 2 }, wantErr: true},
		{name: "negative delay", mutate: func(c *Config) { c.Intake.OutcomeRedirectDelaySeconds = -1 }, wantErr: true},
		{name: "email without sender", mutate: func(c *Config) { c.Email.Enabled = true }, wantErr: true},
		{name: "archive without bucket", mutate: func(c *Config) { c.RosterArchive.Enabled = true }, wantErr: true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := valid()
			tt.mutate(&cfg)
			err := cfg.Validate()
			if tt.wantErr {
				assert.Error(t, err)
			} else {
				assert.NoError(t, err)
			}
		})
	}
}
