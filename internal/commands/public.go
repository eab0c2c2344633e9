package commands

import (
	"context"
	"fmt"
	"strings"

	"jobtracker/internal/eventbus"
	"jobtracker/internal/notifier"
	"jobtracker/internal/storage"
	"jobtracker/internal/transport/telegram/router"
	"jobtracker/pkg/tgui"
)

// Subscription is published when a chat subscribes or unsubscribes itself.
type Subscription struct {
	ChatID int64
	Name   string
}

func (s *Set) cmdStart(ctx context.Context, req *router.Request) error {
	name := req.FromFirstName
	if name == "" {
		name = "there"
	}
	lines := []string{
		"Hi " + tgui.Esc(name).String() + ", nice to meet you!",
		"This bot tracks the Init7 job board and tells you when something new shows up.",
		"",
		"/new - jobs first seen today",
		"/active - all currently listed jobs",
		"/subscribe - get the daily update in this chat",
		"/unsubscribe - stop the daily update",
		"/help - all commands",
		"",
		"Good luck!",
	}
	return req.ReplyHTML(ctx, strings.Join(lines, "\n"))
}

func (s *Set) cmdNew(ctx context.Context, req *router.Request) error {
	ps, err := s.d.Store.ListNewToday(ctx, s.d.Cycles.Today())
	if err != nil {
		return err
	}
	return req.ReplyHTML(ctx, notifier.Listing("New jobs today:", "No new jobs today", ps).Text)
}

func (s *Set) cmdActive(ctx context.Context, req *router.Request) error {
	ps, err := s.d.Store.ListActive(ctx)
	if err != nil {
		return err
	}
	return req.ReplyHTML(ctx, notifier.Listing("Active jobs:", "No active jobs", ps).Text)
}

func (s *Set) cmdSubscribe(ctx context.Context, req *router.Request) error {
	name := displayName(req)
	res, err := s.d.Store.Subscribe(ctx, req.Chat.ChatID, name, s.d.Cycles.Today())
	if err != nil {
		return err
	}
	if res == storage.AlreadyPresent {
		return req.Reply(ctx, "This chat is already subscribed.")
	}
	eventbus.Publish(s.d.Bus, eventbus.SubscriberAdded, Subscription{ChatID: req.Chat.ChatID, Name: name})

	msg := "Subscribed. You will get an update every day"
	if s.d.Schedule != nil {
		if snap := s.d.Schedule.Snapshot(); snap.Enabled && snap.DailyAt != "" {
			msg += fmt.Sprintf(" at %s (%s)", snap.DailyAt, snap.Timezone)
		}
	}
	return req.Reply(ctx, msg+".")
}

func (s *Set) cmdUnsubscribe(ctx context.Context, req *router.Request) error {
	res, err := s.d.Store.Unsubscribe(ctx, req.Chat.ChatID)
	if err != nil {
		return err
	}
	if res == storage.NotPresent {
		return req.Reply(ctx, "This chat was not subscribed.")
	}
	eventbus.Publish(s.d.Bus, eventbus.SubscriberRemoved, Subscription{ChatID: req.Chat.ChatID, Name: displayName(req)})
	return req.Reply(ctx, "Unsubscribed. Use /subscribe to come back.")
}

func displayName(req *router.Request) string {
	switch {
	case req.FromUsername != "":
		return "@" + req.FromUsername
	case req.FromFirstName != "":
		return req.FromFirstName
	default:
		return fmt.Sprintf("%d", req.FromID)
	}
}
