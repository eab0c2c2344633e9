package commands

import (
	"context"
	"time"

	"jobtracker/internal/eventbus"
	"jobtracker/internal/runtime/supervisor"
	"jobtracker/internal/storage"
	"jobtracker/internal/task/scheduler"
	"jobtracker/internal/tracker"
	"jobtracker/internal/transport/telegram/router"
	logx "jobtracker/pkg/logx"
)

// Store is the store surface the commands use.
type Store interface {
	ListActive(ctx context.Context) ([]storage.Posting, error)
	ListNewToday(ctx context.Context, today time.Time) ([]storage.Posting, error)
	ListAll(ctx context.Context) ([]storage.Posting, error)
	CountActive(ctx context.Context) (int, error)
	CorrectDiscoveryDate(ctx context.Context, url string, date time.Time) error

	Subscribe(ctx context.Context, id int64, displayName string, since time.Time) (storage.SubscribeResult, error)
	Unsubscribe(ctx context.Context, id int64) (storage.UnsubscribeResult, error)
	ListSubscribers(ctx context.Context) ([]int64, error)
}

// Cycles runs and reports discovery cycles.
type Cycles interface {
	RunCycle(ctx context.Context, trigger tracker.Trigger) (tracker.Summary, error)
	Last() (tracker.Summary, bool)
	Today() time.Time
	Running() bool
}

// Schedule reports the daily trigger.
type Schedule interface {
	Snapshot() scheduler.Snapshot
}

type Deps struct {
	Store     Store
	Cycles    Cycles
	Schedule  Schedule
	Log       logx.Logger
	Bus       eventbus.Bus
	StartedAt time.Time

	// Goroutines reports supervised goroutines for /status. Optional.
	Goroutines func() supervisor.Counters
}

type Set struct {
	d Deps
}

func New(d Deps) *Set {
	if d.Log.IsZero() {
		d.Log = logx.Nop()
	}
	if d.StartedAt.IsZero() {
		d.StartedAt = time.Now()
	}
	return &Set{d: d}
}

func (s *Set) Commands() []router.Command {
	return []router.Command{
		{
			Name:        "start",
			Description: "introduction",
			Usage:       "/start",
			Access:      router.AccessEveryone,
			Hidden:      true,
			Timeout:     10 * time.Second,
			Handle:      s.cmdStart,
		},
		{
			Name:        "new",
			Description: "jobs first seen today",
			Usage:       "/new",
			Access:      router.AccessEveryone,
			Timeout:     10 * time.Second,
			Handle:      s.cmdNew,
		},
		{
			Name:        "active",
			Description: "all currently listed jobs",
			Usage:       "/active",
			Access:      router.AccessEveryone,
			Timeout:     10 * time.Second,
			Handle:      s.cmdActive,
		},
		{
			Name:        "subscribe",
			Aliases:     []string{"sub"},
			Description: "get the daily update in this chat",
			Usage:       "/subscribe",
			Access:      router.AccessEveryone,
			Timeout:     10 * time.Second,
			Handle:      s.cmdSubscribe,
		},
		{
			Name:        "unsubscribe",
			Aliases:     []string{"unsub", "stop"},
			Description: "stop the daily update",
			Usage:       "/unsubscribe",
			Access:      router.AccessEveryone,
			Timeout:     10 * time.Second,
			Handle:      s.cmdUnsubscribe,
		},
		{
			Name:        "check",
			Description: "run a discovery cycle now",
			Usage:       "/check",
			Access:      router.AccessOwnerOnly,
			Handle:      s.cmdCheck,
		},
		{
			Name:        "setdate",
			Description: "correct when a posting was first seen",
			Usage:       "/setdate <url> <date>",
			Access:      router.AccessOwnerOnly,
			Timeout:     10 * time.Second,
			Handle:      s.cmdSetDate,
		},
		{
			Name:        "history",
			Description: "all postings, closed ones included",
			Usage:       "/history [--limit N]",
			Access:      router.AccessOwnerOnly,
			Timeout:     10 * time.Second,
			Handle:      s.cmdHistory,
		},
		{
			Name:        "status",
			Description: "schedule, counts and last cycle",
			Usage:       "/status",
			Access:      router.AccessOwnerOnly,
			Timeout:     10 * time.Second,
			Handle:      s.cmdStatus,
		},
	}
}
