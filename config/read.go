package config

import (
	"errors"
	"fmt"
	"os"
	"strings"
	"time"

	"github.com/spf13/viper"

	"github.com/Alijeyrad/wellness_intake/pkg/constants"
)

var GlobalConf *Config

func ReadConfig(configPath string) (*Config, error) {
	v := viper.New()
	v.SetConfigName(constants.ConfigName)
	v.SetConfigType(constants.ConfigFormat)
	v.AddConfigPath(configPath)

	// Allow env vars to override config values.
	// e.g. WELLNESS_REDIS_ADDR overrides redis.addr
	v.SetEnvPrefix(constants.EnvPrefix)
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	setDefaults(v)

	// The config file is optional in container environments.
	if err := v.ReadInConfig(); err != nil {
		if _, ok := err.(viper.ConfigFileNotFoundError); !ok {
			if os.Getenv(constants.EnvPrefix+"_PORTAL_BOOKING_BASE_URL") == "" {
				return nil, fmt.Errorf("error reading config file: %v", err)
			}
		}
	}

	var config Config
	if err := v.Unmarshal(&config); err != nil {
		return nil, fmt.Errorf("unable to decode into struct: %v", err)
	}

	if err := config.Validate(); err != nil {
		return nil, fmt.Errorf("configuration validation failed: %w", err)
	}

	return &config, nil
}

func MustReadConfig(path string) *Config {
	config, err := ReadConfig(path)
	if err != nil {
		panic(err)
	}

	GlobalConf = config

	return config
}

func setDefaults(v *viper.Viper) {
	v.SetDefault("server.port", 8080)
	v.SetDefault("server.environment", "development")
	v.SetDefault("server.rate_limit.requests_per_minute", 40)

	v.SetDefault("redis.addr", "localhost:6379")

	v.SetDefault("session_store.driver", "redis")
	v.SetDefault("session_store.key_prefix", "wellness")
	v.SetDefault("session_store.ttl_minutes", 12*60)

	v.SetDefault("intake.captcha_length", 6)
	v.SetDefault("intake.outcome_redirect_delay_seconds", 3)
	v.SetDefault("intake.success_path", "/booking/thank-you")
	v.SetDefault("intake.failure_path", "/booking/failed")
	v.SetDefault("intake.max_roster_size_kb", 2048)
	v.SetDefault("intake.default_booking_open_offset_days", 2)

	v.SetDefault("portal.timeout_seconds", 30)
	v.SetDefault("portal.settings_cache_minutes", 5)

	v.SetDefault("sms.default_region", "IN")
	v.SetDefault("nats.subject_prefix", "wellness")
	v.SetDefault("roster_archive.region", "us-east-1")
	v.SetDefault("roster_archive.key_prefix", "rosters")

	v.SetDefault("observability.service_name", constants.AppName)
	v.SetDefault("logging.level", "info")
	v.SetDefault("logging.output.stdout", true)
}

func (c *Config) Validate() error {
	var errs []error

	switch c.SessionStore.Driver {
	case "redis", "memory":
	default:
		errs = append(errs, fmt.Errorf("session_store.driver must be redis or memory, got %q", c.SessionStore.Driver))
	}
	if c.Portal.AuthBaseURL == "" {
		errs = append(errs, errors.New("portal.auth_base_url is required"))
	}
	if c.Portal.BookingBaseURL == "" {
		errs = append(errs, errors.New("portal.booking_base_url is required"))
	}
	if c.Intake.CaptchaLength < 4 || c.Intake.CaptchaLength > 10 {
		errs = append(errs, fmt.Errorf("intake.captcha_length must be between 4 and 10, got %d", c.Intake.CaptchaLength))
	}
	if c.Intake.OutcomeRedirectDelaySeconds < 0 {
		errs = append(errs, errors.New("intake.outcome_redirect_delay_seconds must not be negative"))
	}
	if c.Email.Enabled && c.Email.From == "" {
		errs = append(errs, errors.New("email.from is required when email is enabled"))
	}

	if c.RosterArchive.Enabled && c.RosterArchive.Bucket == "" {
		errs = append(errs, errors.New("roster_archive.bucket is required when the archive is enabled"))
	}

	return errors.Join(errs...)
}

// SessionTTL returns how long an idle browser session's state is retained.
func (c SessionStoreConfig) SessionTTL() time.Duration {
	if c.TTLMinutes <= 0 {
		return 12 * time.Hour
	}
	return time.Duration(c.TTLMinutes) * time.Minute
}

// OutcomeRedirectDelay returns the pause between an outcome banner and navigation.
func (c IntakeConfig) OutcomeRedirectDelay() time.Duration {
	return time.Duration(c.OutcomeRedirectDelaySeconds) * time.Second
}

// PortalTimeout returns the HTTP timeout used for the external services.
func (c PortalConfig) PortalTimeout() time.Duration {
	if c.TimeoutSeconds <= 0 {
		return 30 * time.Second
	}
	return time.Duration(c.TimeoutSeconds) * time.Second
}

// SettingsCacheTTL returns how long settings responses are cached in Redis.
func (c PortalConfig) SettingsCacheTTL() time.Duration {
	if c.SettingsCacheMinutes <= 0 {
		return 5 * time.Minute
	}
	return time.Duration(c.SettingsCacheMinutes) * time.Minute
}
