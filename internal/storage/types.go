package storage

import (
	"errors"
	"time"
)

// DateLayout is the persisted date format.
const DateLayout = "2006-01-02"

var (
	// ErrNotFound is returned when an operation targets an unknown posting.
	ErrNotFound = errors.New("storage: not found")
	ErrClosed   = errors.New("storage: closed")
)

// Config configures the SQLite store.
type Config struct {
	Path        string
	BusyTimeout time.Duration // 0 keeps the driver default
}

// Posting is one tracked listing, identified by URL.
type Posting struct {
	URL       string `db:"url"`
	Name      string `db:"name"`
	FirstSeen string `db:"first_seen"`
	LastSeen  string `db:"last_seen"`
	IsActive  bool   `db:"is_active"`
}

// Candidate is a posting as seen on the source page during one fetch.
type Candidate struct {
	Name string
	URL  string
}

// Counts is the outcome of one reconciliation. Inserted holds the rows
// created by this call, in candidate order, so len(Inserted) == New.
type Counts struct {
	New      int
	Updated  int
	Inserted []Posting
}

// Subscriber is one registered recipient.
type Subscriber struct {
	ID              int64  `db:"id"`
	DisplayName     string `db:"display_name"`
	SubscribedSince string `db:"subscribed_since"`
}

type SubscribeResult int

const (
	Added SubscribeResult = iota + 1
	AlreadyPresent
)

func (r SubscribeResult) String() string {
	switch r {
	case Added:
		return "added"
	case AlreadyPresent:
		return "already_present"
	default:
		return "unknown"
	}
}

type UnsubscribeResult int

const (
	Removed UnsubscribeResult = iota + 1
	NotPresent
)

func (r UnsubscribeResult) String() string {
	switch r {
	case Removed:
		return "removed"
	case NotPresent:
		return "not_present"
	default:
		return "unknown"
	}
}

// Date formats t as a persisted calendar date in t's own location.
func Date(t time.Time) string { return t.Format(DateLayout) }
