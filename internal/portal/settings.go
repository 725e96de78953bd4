package portal

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"net/url"

	goredis "github.com/redis/go-redis/v9"

	"github.com/Alijeyrad/wellness_intake/internal/intake"
)

const settingsCachePrefix = "wellness:settings:"

// SettingsClient fetches per-company intake settings, caching them in Redis
// when a client is supplied.
type SettingsClient struct {
	c      client
	cache  goredis.UniversalClient
	cfg    Config
	logger *slog.Logger
}

func NewSettingsClient(cfg Config, httpClient *http.Client, cache goredis.UniversalClient, logger *slog.Logger) *SettingsClient {
	if httpClient == nil {
		httpClient = &http.Client{Timeout: cfg.Timeout}
	}
	if logger == nil {
		logger = slog.Default()
	}
	return &SettingsClient{
		c:      newClient(cfg.SettingsBaseURL, httpClient),
		cache:  cache,
		cfg:    cfg,
		logger: logger,
	}
}

type settingsResponse struct {
	BookingOpenOffsetDays *int                               `json:"booking_open_offset_days"`
	OfficeModes           map[string][]intake.CollectionMode `json:"office_modes"`
}

func (s *SettingsClient) Get(ctx context.Context, companyID string) (intake.Settings, error) {
	if cached, ok := s.fromCache(ctx, companyID); ok {
		return cached, nil
	}

	var resp settingsResponse
	err := s.c.get(ctx, "/settings/companies/"+url.PathEscape(companyID), &resp)
	var se *StatusError
	if errors.As(err, &se) && se.StatusCode == http.StatusNotFound {
		return intake.Settings{}, ErrCompanyNotFound
	}
	if err != nil {
		return intake.Settings{}, fmt.Errorf("portal settings: %w", err)
	}

	settings := intake.Settings{
		BookingOpenOffsetDays: s.cfg.DefaultOffsetDays,
		OfficeModes:           resp.OfficeModes,
	}
	if resp.BookingOpenOffsetDays != nil && *resp.BookingOpenOffsetDays >= 0 {
		settings.BookingOpenOffsetDays = *resp.BookingOpenOffsetDays
	}

	s.toCache(ctx, companyID, settings)
	return settings, nil
}

// Invalidate drops the cached settings of a company.
func (s *SettingsClient) Invalidate(ctx context.Context, companyID string) error {
	if s.cache == nil {
		return nil
	}
	return s.cache.Del(ctx, settingsCachePrefix+companyID).Err()
}

func (s *SettingsClient) fromCache(ctx context.Context, companyID string) (intake.Settings, bool) {
	if s.cache == nil || s.cfg.SettingsCacheTTL <= 0 {
		return intake.Settings{}, false
	}
	raw, err := s.cache.Get(ctx, settingsCachePrefix+companyID).Bytes()
	if err != nil {
		if !errors.Is(err, goredis.Nil) {
			s.logger.Warn("settings cache read failed", "company_id", companyID, "error", err)
		}
		return intake.Settings{}, false
	}
	var settings intake.Settings
	if err := json.Unmarshal(raw, &settings); err != nil {
		return intake.Settings{}, false
	}
	return settings, true
}

func (s *SettingsClient) toCache(ctx context.Context, companyID string, settings intake.Settings) {
	if s.cache == nil || s.cfg.SettingsCacheTTL <= 0 {
		return
	}
	raw, err := json.Marshal(settings)
	if err != nil {
		return
	}
	if err := s.cache.Set(ctx, settingsCachePrefix+companyID, raw, s.cfg.SettingsCacheTTL).Err(); err != nil {
		s.logger.Warn("settings cache write failed", "company_id", companyID, "error", err)
	}
}
