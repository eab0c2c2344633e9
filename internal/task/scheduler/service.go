package scheduler

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/robfig/cron/v3"

	"jobtracker/internal/eventbus"
	logx "jobtracker/pkg/logx"
)

func New(cfg Config, job Job, log logx.Logger, bus eventbus.Bus) *Service {
	if log.IsZero() {
		log = logx.Nop()
	}
	return &Service{
		cfg:    cfg,
		job:    job,
		log:    log,
		bus:    bus,
		parser: cron.NewParser(cron.Minute | cron.Hour | cron.Dom | cron.Month | cron.Dow),
	}
}

// Enabled reports the current config flag. (Thread-safe; Apply() may run concurrently.)
func (s *Service) Enabled() bool {
	s.mu.Lock()
	en := s.cfg.Enabled
	s.mu.Unlock()
	return en
}

// Start begins triggering. Runs get a context that keeps ctx's values but is
// never canceled, so a cycle in flight runs to completion.
func (s *Service) Start(ctx context.Context) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.started {
		return nil
	}
	s.started = true
	s.runCtx = context.WithoutCancel(ctx)
	s.log.Debug("start requested", logx.Bool("enabled", s.cfg.Enabled), logx.String("daily_at", s.cfg.DailyAt), logx.String("tz", s.cfg.Timezone))
	return s.startCronLocked()
}

// Stop stops new ticks and waits for a running job until ctx ends.
func (s *Service) Stop(ctx context.Context) {
	start := time.Now()
	s.mu.Lock()
	c := s.c
	s.c = nil
	s.entryID = 0
	s.started = false
	s.mu.Unlock()

	if c != nil {
		select {
		case <-c.Stop().Done():
		case <-ctx.Done():
			s.log.Warn("stop timed out waiting for running job", logx.Err(ctx.Err()))
		}
	}
	s.log.Info("service stopped", logx.Duration("took", time.Since(start)))
}

// Apply swaps the config, rebuilding the trigger when time, zone or the
// enabled flag changed. Invalid configs leave the current schedule in place.
func (s *Service) Apply(cfg Config) error {
	if cfg.Enabled {
		if _, err := DailySpec(cfg.DailyAt); err != nil {
			return err
		}
		if _, err := LoadLocation(cfg.Timezone); err != nil {
			return fmt.Errorf("timezone: %w", err)
		}
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	old := s.cfg
	s.cfg = cfg
	if !s.started {
		return nil
	}
	if old.Enabled == cfg.Enabled &&
		strings.TrimSpace(old.DailyAt) == strings.TrimSpace(cfg.DailyAt) &&
		strings.TrimSpace(old.Timezone) == strings.TrimSpace(cfg.Timezone) {
		return nil
	}
	s.stopCronLocked()
	return s.startCronLocked()
}

// Reschedule moves the daily trigger to dailyAt in tz.
func (s *Service) Reschedule(dailyAt, tz string) error {
	s.mu.Lock()
	cfg := s.cfg
	s.mu.Unlock()
	cfg.DailyAt = dailyAt
	cfg.Timezone = tz
	return s.Apply(cfg)
}

// Next returns the next trigger time, zero when not scheduled.
func (s *Service) Next() time.Time {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.c == nil || s.entryID == 0 {
		return time.Time{}
	}
	return s.c.Entry(s.entryID).Next
}

// Location returns the zone ticks are computed in.
func (s *Service) Location() *time.Location {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.loc != nil {
		return s.loc
	}
	loc, err := LoadLocation(s.cfg.Timezone)
	if err != nil {
		return time.Local
	}
	return loc
}

func (s *Service) Snapshot() Snapshot {
	s.mu.Lock()
	defer s.mu.Unlock()
	snap := Snapshot{
		Enabled:  s.cfg.Enabled,
		DailyAt:  s.cfg.DailyAt,
		Timezone: s.cfg.Timezone,
		LastRun:  s.lastRun,
		LastTook: s.lastTook,
	}
	if s.loc != nil {
		snap.Timezone = s.loc.String()
	}
	if s.lastErr != nil {
		snap.LastErr = s.lastErr.Error()
	}
	if s.c != nil && s.entryID != 0 {
		e := s.c.Entry(s.entryID)
		snap.Next, snap.Prev = e.Next, e.Prev
	}
	return snap
}

// Call with s.mu held.
func (s *Service) startCronLocked() error {
	if !s.cfg.Enabled {
		s.log.Info("daily trigger disabled")
		return nil
	}
	spec, err := DailySpec(s.cfg.DailyAt)
	if err != nil {
		return err
	}
	s.loc = s.loadLocationLocked()

	cl := cronLogger{log: s.log}
	c := cron.New(
		cron.WithParser(s.parser),
		cron.WithLocation(s.loc),
		cron.WithLogger(cl),
		cron.WithChain(cron.Recover(cl), cron.SkipIfStillRunning(cl)),
	)
	id, err := c.AddFunc(spec, s.run)
	if err != nil {
		return fmt.Errorf("schedule %q: %w", spec, err)
	}
	c.Start()
	s.c, s.entryID = c, id

	next := c.Entry(id).Next
	s.log.Info("service started", logx.String("spec", spec), logx.String("tz", s.loc.String()), logx.Time("next", next))
	eventbus.Publish(s.bus, eventbus.ScheduleChanged, Rescheduled{Spec: spec, Timezone: s.loc.String(), Next: next})
	return nil
}

// Call with s.mu held. A job already running on the old cron keeps going.
func (s *Service) stopCronLocked() {
	if s.c == nil {
		return
	}
	s.c.Stop()
	s.c, s.entryID = nil, 0
}

func (s *Service) run() {
	s.mu.Lock()
	ctx := s.runCtx
	job := s.job
	s.mu.Unlock()
	if job == nil {
		return
	}
	if ctx == nil {
		ctx = context.Background()
	}

	start := time.Now()
	err := job(ctx)
	took := time.Since(start)

	s.mu.Lock()
	s.lastRun, s.lastTook, s.lastErr = start, took, err
	s.mu.Unlock()

	if err != nil && !errors.Is(err, context.Canceled) {
		s.log.Warn("scheduled run failed", logx.Duration("took", took), logx.Err(err))
		return
	}
	s.log.Debug("scheduled run done", logx.Duration("took", took))
}

func (s *Service) loadLocationLocked() *time.Location {
	loc, err := LoadLocation(s.cfg.Timezone)
	if err != nil {
		s.log.Warn("invalid timezone; falling back to Local", logx.String("tz", s.cfg.Timezone), logx.Err(err))
		return time.Local
	}
	return loc
}

// cronLogger routes cron's own diagnostics into logx.
type cronLogger struct{ log logx.Logger }

func (l cronLogger) Info(msg string, keysAndValues ...interface{}) {
	l.log.Debug("cron: "+msg, kvFields(keysAndValues)...)
}

func (l cronLogger) Error(err error, msg string, keysAndValues ...interface{}) {
	l.log.Error("cron: "+msg, append(kvFields(keysAndValues), logx.Err(err))...)
}

func kvFields(kv []interface{}) []logx.Field {
	out := make([]logx.Field, 0, len(kv)/2)
	for i := 0; i+1 < len(kv); i += 2 {
		k, ok := kv[i].(string)
		if !ok {
			k = fmt.Sprint(kv[i])
		}
		out = append(out, logx.Any(k, kv[i+1]))
	}
	return out
}
