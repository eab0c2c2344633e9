package commands

import (
	"context"
	"errors"
	"fmt"
	"strconv"
	"strings"
	"time"

	"github.com/araddon/dateparse"

	"jobtracker/internal/notifier"
	"jobtracker/internal/storage"
	"jobtracker/internal/tracker"
	"jobtracker/internal/transport/telegram/router"
	logx "jobtracker/pkg/logx"
	"jobtracker/pkg/tgui"
)

const defaultHistoryLimit = 50

func (s *Set) cmdCheck(ctx context.Context, req *router.Request) error {
	if s.d.Cycles.Running() {
		return req.Reply(ctx, "A check is already running.")
	}
	_ = req.Reply(ctx, "Checking the job board...")

	// The cycle runs to completion even if this request is abandoned.
	sum, err := s.d.Cycles.RunCycle(context.WithoutCancel(ctx), tracker.TriggerManual)
	if errors.Is(err, tracker.ErrCycleRunning) {
		return req.Reply(ctx, "A check is already running.")
	}
	if err != nil {
		return err
	}
	return req.ReplyHTML(context.WithoutCancel(ctx), summaryHTML(sum))
}

func (s *Set) cmdSetDate(ctx context.Context, req *router.Request) error {
	if len(req.Args) < 2 {
		return req.Reply(ctx, "Usage: /setdate <url> <date>")
	}
	url := req.Args[0]
	raw := strings.Join(req.Args[1:], " ")

	loc := s.d.Cycles.Today().Location()
	date, err := dateparse.ParseIn(raw, loc)
	if err != nil {
		return req.Reply(ctx, fmt.Sprintf("Could not read %q as a date.", raw))
	}

	err = s.d.Store.CorrectDiscoveryDate(ctx, url, date)
	if errors.Is(err, storage.ErrNotFound) {
		req.Logger.Debug("setdate on unknown posting", logx.String("url", url))
		return req.Reply(ctx, "Posting not found.")
	}
	if err != nil {
		return err
	}
	req.Logger.Info("discovery date corrected", logx.String("url", url), logx.String("first_seen", storage.Date(date)))
	return req.Reply(ctx, "First seen date set to "+storage.Date(date)+".")
}

func (s *Set) cmdHistory(ctx context.Context, req *router.Request) error {
	limit := defaultHistoryLimit
	if v := req.Flag("limit", ""); v != "" {
		n, err := strconv.Atoi(v)
		if err != nil || n <= 0 {
			return req.Reply(ctx, "--limit must be a positive number.")
		}
		limit = n
	}

	ps, err := s.d.Store.ListAll(ctx)
	if err != nil {
		return err
	}
	title := fmt.Sprintf("All postings (%d):", len(ps))
	if len(ps) > limit {
		title = fmt.Sprintf("Latest %d of %d postings:", limit, len(ps))
		ps = ps[:limit]
	}
	return req.ReplyHTML(ctx, notifier.Listing(title, "No postings recorded yet.", ps).Text)
}

func (s *Set) cmdStatus(ctx context.Context, req *router.Request) error {
	active, err := s.d.Store.CountActive(ctx)
	if err != nil {
		return err
	}
	subs, err := s.d.Store.ListSubscribers(ctx)
	if err != nil {
		return err
	}

	lines := []string{
		tgui.B("Status").String(),
		kv("uptime", time.Since(s.d.StartedAt).Truncate(time.Second).String()),
		kv("active postings", strconv.Itoa(active)),
		kv("subscribers", strconv.Itoa(len(subs))),
	}
	if s.d.Goroutines != nil {
		g := s.d.Goroutines()
		lines = append(lines, kv("goroutines", fmt.Sprintf("%d running / %d started", g.Active, g.Started)))
	}

	if s.d.Schedule != nil {
		snap := s.d.Schedule.Snapshot()
		switch {
		case !snap.Enabled:
			lines = append(lines, kv("schedule", "disabled"))
		case snap.Next.IsZero():
			lines = append(lines, kv("schedule", snap.DailyAt+" "+snap.Timezone))
		default:
			lines = append(lines, kv("schedule", snap.DailyAt+" "+snap.Timezone),
				kv("next run", snap.Next.Format("2006-01-02 15:04 MST")))
		}
	}

	if s.d.Cycles.Running() {
		lines = append(lines, kv("cycle", "running"))
	}
	if last, ok := s.d.Cycles.Last(); ok {
		lines = append(lines, "", summaryHTML(last))
	} else {
		lines = append(lines, "", tgui.I("No cycle has run since startup.").String())
	}
	return req.ReplyHTML(ctx, strings.Join(lines, "\n"))
}

func summaryHTML(sum tracker.Summary) string {
	lines := []string{
		tgui.B("Last cycle").String() + " " + tgui.Code(sum.ID[:min(8, len(sum.ID))]).String(),
		kv("trigger", string(sum.Trigger)),
		kv("started", sum.Started.Format("2006-01-02 15:04:05")),
		kv("took", sum.Took.Truncate(time.Millisecond).String()),
		kv("result", sum.Template.String()),
	}
	if sum.HadError() {
		lines = append(lines, kv("error", sum.Stage+": "+tgui.TruncRunes(sum.Err.Error(), 200)))
	} else {
		lines = append(lines, kv("listed", strconv.Itoa(sum.Candidates)),
			kv("new / updated", fmt.Sprintf("%d / %d", sum.New, sum.Updated)),
			kv("active", strconv.Itoa(sum.TotalActive)))
	}
	lines = append(lines, kv("delivered / failed", fmt.Sprintf("%d / %d", sum.Delivery.Delivered, sum.Delivery.Failed)))
	if sum.Delivery.Unsubscribed > 0 {
		lines = append(lines, kv("auto-unsubscribed", strconv.Itoa(sum.Delivery.Unsubscribed)))
	}
	return strings.Join(lines, "\n")
}

func kv(k, v string) string {
	return tgui.Esc(k).String() + ": " + tgui.Code(v).String()
}
