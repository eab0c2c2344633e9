package scheduler

import (
	"context"
	"sync"
	"time"

	"github.com/robfig/cron/v3"

	"jobtracker/internal/eventbus"
	logx "jobtracker/pkg/logx"
)

// Config controls the daily trigger.
type Config struct {
	Enabled  bool
	DailyAt  string // "HH:MM"
	Timezone string // IANA TZ, e.g. "Europe/Zurich"
}

// Job is the work fired on each tick.
type Job func(ctx context.Context) error

type Service struct {
	mu sync.Mutex

	log logx.Logger
	cfg Config
	loc *time.Location
	bus eventbus.Bus
	job Job

	parser  cron.Parser
	c       *cron.Cron
	entryID cron.EntryID

	started bool
	runCtx  context.Context

	lastRun  time.Time
	lastErr  error
	lastTook time.Duration
}

// Snapshot is a point-in-time view for status reporting.
type Snapshot struct {
	Enabled  bool
	DailyAt  string
	Timezone string
	Next     time.Time
	Prev     time.Time
	LastRun  time.Time
	LastTook time.Duration
	LastErr  string
}

// Rescheduled is published when the trigger time or zone changes.
type Rescheduled struct {
	Spec     string
	Timezone string
	Next     time.Time
}
