package config

// Config is the on-disk configuration (JSON or YAML).
//
// Unknown keys are rejected on load and on every hot reload.
type Config struct {
	Telegram  TelegramConfig  `json:"telegram"`
	Logging   LoggingConfig   `json:"logging"`
	Storage   StorageConfig   `json:"storage"`
	Source    SourceConfig    `json:"source"`
	Scheduler SchedulerConfig `json:"scheduler"`
	Notifier  NotifierConfig  `json:"notifier"`
}

type TelegramConfig struct {
	// Token may be left empty when JOBTRACKER_TELEGRAM_TOKEN is set.
	Token        string  `json:"token"`
	OwnerUserIDs []int64 `json:"owner_user_ids"`
	GroupLog     string  `json:"group_log"`
	// PollTimeout is a Go duration string (e.g. "10s").
	PollTimeout string `json:"poll_timeout"`
}

type LoggingConfig struct {
	Level    string          `json:"level"`
	Console  bool            `json:"console"`
	File     LoggingFile     `json:"file"`
	Telegram LoggingTelegram `json:"telegram"`
}

type LoggingFile struct {
	Enabled bool   `json:"enabled"`
	Path    string `json:"path"`
}

type LoggingTelegram struct {
	Enabled    bool   `json:"enabled"`
	ThreadID   int    `json:"thread_id"`
	MinLevel   string `json:"min_level"`
	RatePerSec int    `json:"rate_per_sec"`
}

// StorageConfig points at the SQLite database file.
//
//	"storage": { "path": "./data/jobtracker.db", "busy_timeout": "5s" }
type StorageConfig struct {
	Path        string `json:"path"`
	BusyTimeout string `json:"busy_timeout,omitempty"`
}

// SourceConfig describes the listing page and which links count as postings.
type SourceConfig struct {
	URL string `json:"url"`
	// BaseURL resolves relative hrefs. Defaults to the scheme+host of URL.
	BaseURL string `json:"base_url,omitempty"`
	// LinkPattern is a regexp matched against each anchor's href.
	LinkPattern string `json:"link_pattern"`
	// Exclude drops links whose resolved URL contains any of these substrings.
	Exclude       []string `json:"exclude,omitempty"`
	UserAgent     string   `json:"user_agent,omitempty"`
	Timeout       string   `json:"timeout,omitempty"`
	RetryAttempts uint     `json:"retry_attempts,omitempty"`
}

// SchedulerConfig controls the daily discovery trigger.
type SchedulerConfig struct {
	Enabled bool `json:"enabled"`
	// DailyAt is local wall-clock time "HH:MM" in Timezone.
	DailyAt  string `json:"daily_at"`
	Timezone string `json:"timezone,omitempty"`
	// RunOnStart runs one cycle right after startup.
	RunOnStart bool `json:"run_on_start,omitempty"`
}

// NotifierConfig paces subscriber fan-out. RatePerSec <= 0 disables pacing.
type NotifierConfig struct {
	RatePerSec     int  `json:"rate_per_sec"`
	DisablePreview bool `json:"disable_preview,omitempty"`
}
