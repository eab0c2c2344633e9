package tracker

import (
	"context"
	"sync"
	"sync/atomic"
	"time"

	"github.com/google/uuid"

	"jobtracker/internal/eventbus"
	"jobtracker/internal/notifier"
	"jobtracker/internal/storage"
	logx "jobtracker/pkg/logx"
)

// Pipeline owns the fetch -> reconcile -> notify cycle.
type Pipeline struct {
	fetcher Fetcher
	store   Store
	out     Broadcaster
	log     logx.Logger
	bus     eventbus.Bus

	now      func() time.Time
	location func() *time.Location

	running atomic.Bool

	mu   sync.Mutex
	last *Summary
}

type Option func(*Pipeline)

// WithClock overrides time.Now.
func WithClock(now func() time.Time) Option {
	return func(p *Pipeline) {
		if now != nil {
			p.now = now
		}
	}
}

// WithLocation sets the zone "today" is computed in. The func is consulted on
// every cycle so a reloaded timezone applies without a restart.
func WithLocation(loc func() *time.Location) Option {
	return func(p *Pipeline) {
		if loc != nil {
			p.location = loc
		}
	}
}

func New(f Fetcher, st Store, out Broadcaster, log logx.Logger, bus eventbus.Bus, opts ...Option) *Pipeline {
	if log.IsZero() {
		log = logx.Nop()
	}
	p := &Pipeline{
		fetcher:  f,
		store:    st,
		out:      out,
		log:      log,
		bus:      bus,
		now:      time.Now,
		location: func() *time.Location { return time.Local },
	}
	for _, o := range opts {
		o(p)
	}
	return p
}

// Today is the current calendar day in the pipeline's zone.
func (p *Pipeline) Today() time.Time {
	loc := p.location()
	if loc == nil {
		loc = time.Local
	}
	return p.now().In(loc)
}

func (p *Pipeline) Running() bool { return p.running.Load() }

// Last returns the most recent finished cycle.
func (p *Pipeline) Last() (Summary, bool) {
	p.mu.Lock()
	defer p.mu.Unlock()
	if p.last == nil {
		return Summary{}, false
	}
	return *p.last, true
}

// RunCycle runs one cycle. It returns ErrCycleRunning when another cycle is
// in flight. Fetch and storage failures do not make RunCycle fail; they are
// recorded in the Summary and reported to subscribers.
func (p *Pipeline) RunCycle(ctx context.Context, trigger Trigger) (Summary, error) {
	if !p.running.CompareAndSwap(false, true) {
		p.log.Debug("cycle skipped; already running", logx.String("trigger", string(trigger)))
		eventbus.Publish(p.bus, eventbus.CycleSkipped, Skipped{Trigger: trigger})
		return Summary{}, ErrCycleRunning
	}
	defer p.running.Store(false)

	today := p.Today()
	sum := Summary{
		ID:      uuid.NewString(),
		Trigger: trigger,
		Started: time.Now(),
		Date:    storage.Date(today),
	}
	log := p.log.With(logx.String("cycle", sum.ID), logx.String("trigger", string(trigger)))
	log.Info("cycle started", logx.String("date", sum.Date))
	eventbus.Publish(p.bus, eventbus.CycleStarted, Started{ID: sum.ID, Trigger: trigger})

	report := p.collect(ctx, log, today, &sum)

	tpl, msg := notifier.Render(report)
	sum.Template = tpl
	if p.out != nil {
		res, err := p.out.Broadcast(ctx, msg)
		if err != nil {
			log.Error("listing subscribers failed; nobody notified", logx.Err(err))
		}
		sum.Delivery = res
	}

	sum.Took = time.Since(sum.Started)
	fields := []logx.Field{
		logx.String("template", tpl.String()),
		logx.Int("candidates", sum.Candidates),
		logx.Int("new", sum.New),
		logx.Int("updated", sum.Updated),
		logx.Int("active", sum.TotalActive),
		logx.Int("delivered", sum.Delivery.Delivered),
		logx.Int("failed", sum.Delivery.Failed),
		logx.Duration("took", sum.Took),
	}
	if sum.Err != nil {
		log.Warn("cycle finished with error", append(fields, logx.String("stage", sum.Stage), logx.Err(sum.Err))...)
	} else {
		log.Info("cycle finished", fields...)
	}

	p.mu.Lock()
	last := sum
	p.last = &last
	p.mu.Unlock()
	eventbus.Publish(p.bus, eventbus.CycleFinished, sum)
	return sum, nil
}

// collect runs fetch and reconcile and gathers what the message needs. A
// failed fetch returns before any store access.
func (p *Pipeline) collect(ctx context.Context, log logx.Logger, today time.Time, sum *Summary) notifier.CycleReport {
	cands, err := p.fetcher.Fetch(ctx)
	if err != nil {
		sum.Err, sum.Stage = err, StageFetch
		return notifier.CycleReport{Err: err}
	}
	sum.Candidates = len(cands)

	counts, err := p.store.Reconcile(ctx, today, cands)
	if err != nil {
		sum.Err, sum.Stage = err, StageReconcile
		return notifier.CycleReport{Err: err}
	}
	sum.New, sum.Updated = counts.New, counts.Updated

	active, err := p.store.CountActive(ctx)
	if err != nil {
		sum.Err, sum.Stage = err, StageQuery
		return notifier.CycleReport{Err: err}
	}
	sum.TotalActive = active

	log.Debug("reconciled", logx.Int("new", counts.New), logx.Int("updated", counts.Updated), logx.Int("active", active))

	return notifier.CycleReport{
		New:         counts.New,
		Updated:     counts.Updated,
		Inserted:    counts.Inserted,
		TotalActive: active,
	}
}
