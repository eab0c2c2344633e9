package tracker

import (
	"context"
	"errors"
	"time"

	"jobtracker/internal/notifier"
	"jobtracker/internal/storage"
)

var ErrCycleRunning = errors.New("tracker: cycle already running")

// Fetcher returns the full current snapshot of the listing.
type Fetcher interface {
	Fetch(ctx context.Context) ([]storage.Candidate, error)
}

// Store is the posting-store surface a cycle needs.
type Store interface {
	Reconcile(ctx context.Context, today time.Time, candidates []storage.Candidate) (storage.Counts, error)
	CountActive(ctx context.Context) (int, error)
}

// Broadcaster delivers one message to every subscriber.
type Broadcaster interface {
	Broadcast(ctx context.Context, m notifier.Message) (notifier.BulkResult, error)
}

type Trigger string

const (
	TriggerSchedule Trigger = "schedule"
	TriggerManual   Trigger = "manual"
	TriggerStartup  Trigger = "startup"
)

// Stage names where a cycle failed.
const (
	StageFetch     = "fetch"
	StageReconcile = "reconcile"
	StageQuery     = "query"
)

// Summary is the in-memory record of one cycle.
type Summary struct {
	ID      string
	Trigger Trigger
	Started time.Time
	Took    time.Duration
	Date    string

	Candidates  int
	New         int
	Updated     int
	TotalActive int

	Err   error
	Stage string

	Template notifier.Template
	Delivery notifier.BulkResult
}

func (s Summary) HadError() bool { return s.Err != nil }

// Started is published when a cycle begins.
type Started struct {
	ID      string
	Trigger Trigger
}

// Skipped is published when a trigger arrives during a running cycle.
type Skipped struct {
	Trigger Trigger
}
