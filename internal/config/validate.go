package config

import (
	"errors"
	"fmt"
	"net/url"
	"regexp"
	"strings"
	"time"
	_ "time/tzdata" // scheduler.timezone must resolve on hosts without zoneinfo
)

// Defaults for a config that only sets the token.
const (
	DefaultStoragePath = "./data/jobtracker.db"
	DefaultSourceURL   = "https://www.init7.net/de/init7/jobs/"
	DefaultLinkPattern = `/de/init7/jobs/[^/]+/$`
	DefaultDailyAt     = "09:00"
	DefaultTimezone    = "Europe/Zurich"
	DefaultNotifyRate  = 25
)

// ApplyDefaults fills empty fields in place.
func ApplyDefaults(cfg *Config) {
	if cfg == nil {
		return
	}
	if strings.TrimSpace(cfg.Logging.Level) == "" {
		cfg.Logging.Level = "info"
	}
	if strings.TrimSpace(cfg.Storage.Path) == "" {
		cfg.Storage.Path = DefaultStoragePath
	}
	if strings.TrimSpace(cfg.Source.URL) == "" {
		cfg.Source.URL = DefaultSourceURL
	}
	if strings.TrimSpace(cfg.Source.LinkPattern) == "" {
		cfg.Source.LinkPattern = DefaultLinkPattern
	}
	if cfg.Source.Exclude == nil {
		cfg.Source.Exclude = []string{"benefits"}
	}
	if strings.TrimSpace(cfg.Scheduler.DailyAt) == "" {
		cfg.Scheduler.DailyAt = DefaultDailyAt
	}
	if strings.TrimSpace(cfg.Scheduler.Timezone) == "" {
		cfg.Scheduler.Timezone = DefaultTimezone
	}
	if cfg.Notifier.RatePerSec == 0 {
		cfg.Notifier.RatePerSec = DefaultNotifyRate
	}
}

// Validate checks everything that can be checked without other packages.
// Schedule syntax is validated by the scheduler through the app's validator.
func Validate(cfg *Config) error {
	if cfg == nil {
		return errors.New("config is nil")
	}
	if strings.TrimSpace(cfg.Telegram.Token) == "" {
		return fmt.Errorf("telegram.token is required (or set %s)", TokenEnv)
	}
	for path, raw := range map[string]string{
		"telegram.poll_timeout": cfg.Telegram.PollTimeout,
		"storage.busy_timeout":  cfg.Storage.BusyTimeout,
		"source.timeout":        cfg.Source.Timeout,
	} {
		if _, err := ParseDurationField(path, raw); err != nil {
			return err
		}
	}
	if cfg.Logging.Telegram.RatePerSec < 0 {
		return errors.New("logging.telegram.rate_per_sec must be >= 0")
	}
	if err := validateURL("source.url", cfg.Source.URL); err != nil {
		return err
	}
	if b := strings.TrimSpace(cfg.Source.BaseURL); b != "" {
		if err := validateURL("source.base_url", b); err != nil {
			return err
		}
	}
	if _, err := regexp.Compile(cfg.Source.LinkPattern); err != nil {
		return fmt.Errorf("source.link_pattern: %w", err)
	}
	if tz := strings.TrimSpace(cfg.Scheduler.Timezone); tz != "" {
		if _, err := time.LoadLocation(tz); err != nil {
			return fmt.Errorf("scheduler.timezone: invalid %q: %w", tz, err)
		}
	}
	return nil
}

func validateURL(path, raw string) error {
	u, err := url.Parse(strings.TrimSpace(raw))
	if err != nil {
		return fmt.Errorf("%s: %w", path, err)
	}
	if (u.Scheme != "http" && u.Scheme != "https") || u.Host == "" {
		return fmt.Errorf("%s: want an absolute http(s) URL, got %q", path, raw)
	}
	return nil
}
