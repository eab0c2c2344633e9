package app

import (
	"context"
	"fmt"
	"strconv"
	"strings"
	"time"

	"jobtracker/internal/config"
	"jobtracker/internal/notifier"
	"jobtracker/internal/source"
	"jobtracker/internal/storage"
	"jobtracker/internal/task/scheduler"
	telegram "jobtracker/internal/transport/telegram/adapter"
	logx "jobtracker/pkg/logx"
)

func mapAdapterConfig(cfg *config.Config) (telegram.Config, error) {
	poll, err := config.ParseDurationOrDefault("telegram.poll_timeout", cfg.Telegram.PollTimeout, 10*time.Second)
	if err != nil {
		return telegram.Config{}, err
	}
	return telegram.Config{
		Token:       cfg.Telegram.Token,
		PollTimeout: poll,
		SendTimeout: 15 * time.Second,
	}, nil
}

func mapLoggingConfig(cfg *config.Config) logx.Config {
	return logx.Config{
		Level:   cfg.Logging.Level,
		Console: cfg.Logging.Console,
		File: logx.FileConfig{
			Enabled: cfg.Logging.File.Enabled,
			Path:    cfg.Logging.File.Path,
		},
		Telegram: logx.TelegramConfig{
			Enabled:    cfg.Logging.Telegram.Enabled,
			ThreadID:   cfg.Logging.Telegram.ThreadID,
			MinLevel:   cfg.Logging.Telegram.MinLevel,
			RatePerSec: cfg.Logging.Telegram.RatePerSec,
		},
	}
}

// logChat parses telegram.group_log. An empty or non-numeric value means
// no Telegram log target.
func logChat(cfg *config.Config) (int64, bool) {
	raw := strings.TrimSpace(cfg.Telegram.GroupLog)
	if raw == "" {
		return 0, false
	}
	id, err := strconv.ParseInt(raw, 10, 64)
	if err != nil {
		return 0, false
	}
	return id, true
}

func mapStorageConfig(cfg *config.Config) (storage.Config, error) {
	busy, err := config.ParseDurationOrDefault("storage.busy_timeout", cfg.Storage.BusyTimeout, 5*time.Second)
	if err != nil {
		return storage.Config{}, err
	}
	return storage.Config{Path: strings.TrimSpace(cfg.Storage.Path), BusyTimeout: busy}, nil
}

func mapSourceConfig(cfg *config.Config) (source.Config, error) {
	timeout, err := config.ParseDurationField("source.timeout", cfg.Source.Timeout)
	if err != nil {
		return source.Config{}, err
	}
	return source.Config{
		URL:           cfg.Source.URL,
		BaseURL:       cfg.Source.BaseURL,
		LinkPattern:   cfg.Source.LinkPattern,
		Exclude:       cfg.Source.Exclude,
		UserAgent:     cfg.Source.UserAgent,
		Timeout:       timeout,
		RetryAttempts: cfg.Source.RetryAttempts,
	}, nil
}

func mapSchedulerConfig(cfg *config.Config) scheduler.Config {
	return scheduler.Config{
		Enabled:  cfg.Scheduler.Enabled,
		DailyAt:  strings.TrimSpace(cfg.Scheduler.DailyAt),
		Timezone: strings.TrimSpace(cfg.Scheduler.Timezone),
	}
}

func mapNotifierConfig(cfg *config.Config) notifier.Config {
	return notifier.Config{
		RatePerSec:     cfg.Notifier.RatePerSec,
		DisablePreview: cfg.Notifier.DisablePreview,
	}
}

// validateConfig runs the checks that need other packages. It is used for
// the initial load and as the hot-reload validator.
func validateConfig(_ context.Context, cfg *config.Config) error {
	if _, err := mapAdapterConfig(cfg); err != nil {
		return err
	}
	if _, err := mapStorageConfig(cfg); err != nil {
		return err
	}
	if _, err := scheduler.DailySpec(cfg.Scheduler.DailyAt); err != nil {
		return fmt.Errorf("scheduler.daily_at: %w", err)
	}
	if cfg.Notifier.RatePerSec < 0 {
		return fmt.Errorf("notifier.rate_per_sec must be >= 0")
	}
	sc, err := mapSourceConfig(cfg)
	if err != nil {
		return err
	}
	if _, err := source.New(sc, logx.Nop()); err != nil {
		return err
	}
	return nil
}
