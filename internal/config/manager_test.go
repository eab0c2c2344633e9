package config

import (
	"context"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"
)

const sampleYAML = `
telegram:
  token: "123:abc"
  owner_user_ids: [42]
logging:
  level: debug
  console: true
scheduler:
  enabled: true
  daily_at: "08:30"
  timezone: Europe/Zurich
`

func writeFile(t *testing.T, name, body string) string {
	t.Helper()
	p := filepath.Join(t.TempDir(), name)
	if err := os.WriteFile(p, []byte(body), 0o644); err != nil {
		t.Fatalf("write: %v", err)
	}
	return p
}

func TestLoadYAMLAppliesDefaults(t *testing.T) {
	t.Setenv(TokenEnv, "")
	m := NewConfigManager(writeFile(t, "config.yaml", sampleYAML))
	cfg, err := m.Load()
	if err != nil {
		t.Fatalf("Load: %v", err)
	}
	if cfg.Telegram.Token != "123:abc" || len(cfg.Telegram.OwnerUserIDs) != 1 || cfg.Telegram.OwnerUserIDs[0] != 42 {
		t.Fatalf("telegram section: %+v", cfg.Telegram)
	}
	if cfg.Scheduler.DailyAt != "08:30" || !cfg.Scheduler.Enabled {
		t.Fatalf("scheduler section: %+v", cfg.Scheduler)
	}
	if cfg.Source.URL != DefaultSourceURL || cfg.Source.LinkPattern != DefaultLinkPattern {
		t.Fatalf("source defaults not applied: %+v", cfg.Source)
	}
	if len(cfg.Source.Exclude) != 1 || cfg.Source.Exclude[0] != "benefits" {
		t.Fatalf("exclude default: %v", cfg.Source.Exclude)
	}
	if cfg.Storage.Path != DefaultStoragePath || cfg.Notifier.RatePerSec != DefaultNotifyRate {
		t.Fatalf("storage/notifier defaults: %+v %+v", cfg.Storage, cfg.Notifier)
	}
	if m.Get() != cfg {
		t.Fatalf("Load should commit the config")
	}
}

func TestTokenFromEnvironment(t *testing.T) {
	t.Setenv(TokenEnv, "env-token")
	m := NewConfigManager(writeFile(t, "config.json", `{"telegram":{"token":""}}`))
	cfg, err := m.Load()
	if err != nil {
		t.Fatalf("Load: %v", err)
	}
	if cfg.Telegram.Token != "env-token" {
		t.Fatalf("token = %q", cfg.Telegram.Token)
	}
}

func TestParseRejects(t *testing.T) {
	t.Setenv(TokenEnv, "")
	cases := []struct {
		name string
		file string
		body string
		want string
	}{
		{"unknown key", "c.json", `{"telegram":{"token":"x"},"plugins":{}}`, "unknown field"},
		{"trailing data", "c.json", `{"telegram":{"token":"x"}}{}`, "trailing data"},
		{"missing token", "c.json", `{}`, "telegram.token is required"},
		{"bad timezone", "c.yaml", "telegram: {token: x}\nscheduler: {timezone: Mars/Base}", "scheduler.timezone"},
		{"bad duration", "c.json", `{"telegram":{"token":"x","poll_timeout":"soon"}}`, "telegram.poll_timeout"},
		{"bad pattern", "c.json", `{"telegram":{"token":"x"},"source":{"link_pattern":"("}}`, "source.link_pattern"},
		{"relative url", "c.json", `{"telegram":{"token":"x"},"source":{"url":"/jobs"}}`, "source.url"},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			_, err := NewConfigManager(writeFile(t, tc.file, tc.body)).Parse()
			if err == nil || !strings.Contains(err.Error(), tc.want) {
				t.Fatalf("Parse() err = %v, want containing %q", err, tc.want)
			}
		})
	}
}

func TestReloadPublishesOnlyChanges(t *testing.T) {
	t.Setenv(TokenEnv, "")
	path := writeFile(t, "config.yaml", sampleYAML)
	m := NewConfigManager(path)
	if _, err := m.Load(); err != nil {
		t.Fatalf("Load: %v", err)
	}
	sub := m.Subscribe(1)
	defer m.Unsubscribe(sub)

	ctx := context.Background()
	if m.reload(ctx) {
		t.Fatalf("unchanged file should not publish")
	}

	updated := strings.Replace(sampleYAML, `"08:30"`, `"07:15"`, 1)
	if err := os.WriteFile(path, []byte(updated), 0o644); err != nil {
		t.Fatalf("write: %v", err)
	}
	m.SetValidator(func(ctx context.Context, cfg *Config) error { return nil })
	if !m.reload(ctx) {
		t.Fatalf("changed file should publish")
	}
	select {
	case cfg := <-sub:
		if cfg.Scheduler.DailyAt != "07:15" {
			t.Fatalf("published daily_at = %q", cfg.Scheduler.DailyAt)
		}
	case <-time.After(time.Second):
		t.Fatalf("no config published")
	}
}

func TestSummarizeConfigChange(t *testing.T) {
	t.Parallel()
	a := &Config{Telegram: TelegramConfig{Token: "a"}, Scheduler: SchedulerConfig{DailyAt: "09:00"}}
	b := &Config{Telegram: TelegramConfig{Token: "b"}, Scheduler: SchedulerConfig{DailyAt: "10:00"}}
	sections, _ := SummarizeConfigChange(a, b)
	if strings.Join(sections, ",") != "telegram.token,scheduler" {
		t.Fatalf("sections = %v", sections)
	}
	if !NeedsRestart(sections) {
		t.Fatalf("token change needs restart")
	}
	if NeedsRestart([]string{"scheduler", "logging"}) {
		t.Fatalf("scheduler/logging apply live")
	}
}
