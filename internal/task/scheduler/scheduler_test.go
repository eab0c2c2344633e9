package scheduler

import (
	"context"
	"errors"
	"testing"
	"time"
	_ "time/tzdata"

	"jobtracker/internal/eventbus"
	logx "jobtracker/pkg/logx"
)

func TestParseHHMM(t *testing.T) {
	t.Parallel()

	cases := []struct {
		in      string
		h, m    int
		wantErr bool
	}{
		{in: "09:00", h: 9, m: 0},
		{in: "9:05", h: 9, m: 5},
		{in: " 23:59 ", h: 23, m: 59},
		{in: "00:00", h: 0, m: 0},
		{in: "24:00", wantErr: true},
		{in: "12:60", wantErr: true},
		{in: "1200", wantErr: true},
		{in: "", wantErr: true},
		{in: "12:5", wantErr: true},
	}
	for _, tc := range cases {
		t.Run(tc.in, func(t *testing.T) {
			t.Parallel()
			h, m, err := ParseHHMM(tc.in)
			if tc.wantErr {
				if err == nil {
					t.Fatalf("expected error, got %d:%d", h, m)
				}
				return
			}
			if err != nil {
				t.Fatalf("unexpected error: %v", err)
			}
			if h != tc.h || m != tc.m {
				t.Fatalf("got %d:%d want %d:%d", h, m, tc.h, tc.m)
			}
		})
	}
}

func TestDailySpec(t *testing.T) {
	t.Parallel()

	got, err := DailySpec("07:30")
	if err != nil {
		t.Fatalf("daily spec: %v", err)
	}
	if got != "30 7 * * *" {
		t.Fatalf("got %q", got)
	}
}

func TestNextFiresAtLocalWallClock(t *testing.T) {
	t.Parallel()

	bus := eventbus.New()
	events, unsub := bus.Subscribe(4)
	defer unsub()

	s := New(Config{Enabled: true, DailyAt: "09:15", Timezone: "Europe/Zurich"}, func(context.Context) error { return nil }, logx.Nop(), bus)
	if err := s.Start(context.Background()); err != nil {
		t.Fatalf("start: %v", err)
	}
	defer s.Stop(context.Background())

	next := s.Next()
	if next.IsZero() {
		t.Fatalf("next is zero")
	}
	zurich, _ := time.LoadLocation("Europe/Zurich")
	local := next.In(zurich)
	if local.Hour() != 9 || local.Minute() != 15 {
		t.Fatalf("next fires at %s", local)
	}
	if !next.After(time.Now()) || next.Sub(time.Now()) > 25*time.Hour {
		t.Fatalf("next out of range: %s", next)
	}

	select {
	case e := <-events:
		if e.Type != eventbus.ScheduleChanged {
			t.Fatalf("unexpected event %q", e.Type)
		}
	default:
		t.Fatalf("no schedule event")
	}
}

func TestReschedule(t *testing.T) {
	t.Parallel()

	s := New(Config{Enabled: true, DailyAt: "09:00", Timezone: "UTC"}, func(context.Context) error { return nil }, logx.Nop(), nil)
	if err := s.Start(context.Background()); err != nil {
		t.Fatalf("start: %v", err)
	}
	defer s.Stop(context.Background())

	if err := s.Reschedule("18:45", "Asia/Tokyo"); err != nil {
		t.Fatalf("reschedule: %v", err)
	}
	tokyo, _ := time.LoadLocation("Asia/Tokyo")
	if n := s.Next().In(tokyo); n.Hour() != 18 || n.Minute() != 45 {
		t.Fatalf("next after reschedule: %s", n)
	}

	before := s.Next()
	if err := s.Reschedule("25:00", "Asia/Tokyo"); err == nil {
		t.Fatalf("expected error for invalid time")
	}
	if err := s.Reschedule("10:00", "Mars/Olympus"); err == nil {
		t.Fatalf("expected error for invalid zone")
	}
	if !s.Next().Equal(before) {
		t.Fatalf("invalid reschedule changed the trigger")
	}
}

func TestDisabledHasNoTrigger(t *testing.T) {
	t.Parallel()

	s := New(Config{Enabled: false, DailyAt: "09:00"}, nil, logx.Nop(), nil)
	if err := s.Start(context.Background()); err != nil {
		t.Fatalf("start: %v", err)
	}
	defer s.Stop(context.Background())
	if !s.Next().IsZero() {
		t.Fatalf("disabled scheduler has a next run")
	}

	if err := s.Apply(Config{Enabled: true, DailyAt: "06:00", Timezone: "UTC"}); err != nil {
		t.Fatalf("apply: %v", err)
	}
	if s.Next().IsZero() {
		t.Fatalf("enabling did not schedule")
	}
}

func TestRunRecordsOutcome(t *testing.T) {
	t.Parallel()

	boom := errors.New("boom")
	s := New(Config{}, func(context.Context) error { return boom }, logx.Nop(), nil)
	s.run()

	snap := s.Snapshot()
	if snap.LastRun.IsZero() || snap.LastErr != "boom" {
		t.Fatalf("unexpected snapshot: %+v", snap)
	}
}

func TestStopWaitsBoundedByContext(t *testing.T) {
	t.Parallel()

	s := New(Config{Enabled: true, DailyAt: "03:00", Timezone: "UTC"}, nil, logx.Nop(), nil)
	if err := s.Start(context.Background()); err != nil {
		t.Fatalf("start: %v", err)
	}
	ctx, cancel := context.WithTimeout(context.Background(), time.Second)
	defer cancel()
	s.Stop(ctx)
	if !s.Next().IsZero() {
		t.Fatalf("stopped scheduler still has a trigger")
	}
}
