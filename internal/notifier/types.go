package notifier

import (
	"context"
	"time"

	"jobtracker/internal/storage"
)

// Registry is the subset of the subscriber registry the notifier needs.
type Registry interface {
	ListSubscribers(ctx context.Context) ([]int64, error)
	Unsubscribe(ctx context.Context, id int64) (storage.UnsubscribeResult, error)
}

type Config struct {
	// RatePerSec caps sends per second across a fan-out. <= 0 means unpaced.
	RatePerSec     int
	DisablePreview bool
}

// Message is a rendered, ready-to-send text.
type Message struct {
	Text           string
	ParseMode      string
	DisablePreview bool
}

type Outcome int

const (
	Delivered Outcome = iota + 1
	Failed
)

func (o Outcome) String() string {
	switch o {
	case Delivered:
		return "delivered"
	case Failed:
		return "failed"
	default:
		return "unknown"
	}
}

// Result is the outcome of one SendOne call. Err is set when Outcome is
// Failed; Unsubscribed reports that the failure removed the recipient.
type Result struct {
	ChatID       int64
	Outcome      Outcome
	Err          error
	Unsubscribed bool
}

// BulkResult aggregates a fan-out.
type BulkResult struct {
	Delivered    int
	Failed       int
	Unsubscribed int
	Took         time.Duration
}

// Template identifies which cycle message was rendered.
type Template int

const (
	TemplateNew Template = iota + 1
	TemplateNoNew
	TemplateEmpty
	TemplateError
)

func (t Template) String() string {
	switch t {
	case TemplateNew:
		return "new"
	case TemplateNoNew:
		return "no_new"
	case TemplateEmpty:
		return "empty"
	case TemplateError:
		return "error"
	default:
		return "unknown"
	}
}

// CycleReport is everything the cycle message is rendered from. Inserted
// holds the postings this cycle created; the New message lists exactly these.
type CycleReport struct {
	New         int
	Updated     int
	Err         error
	Inserted    []storage.Posting
	TotalActive int
}
