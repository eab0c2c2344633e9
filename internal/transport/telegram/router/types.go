package router

import (
	"context"
	"time"

	kit "jobtracker/internal/transport"
	logx "jobtracker/pkg/logx"
)

type Access int

const (
	AccessEveryone Access = iota
	AccessOwnerOnly
)

type HandlerFunc func(ctx context.Context, req *Request) error

type Command struct {
	// Name is the command word without the slash, e.g. "active".
	Name        string
	Aliases     []string
	Description string
	Usage       string
	Access      Access
	// Hidden commands work but are left out of /help and the menu.
	Hidden  bool
	Timeout time.Duration // 0 = no per-command deadline
	Handle  HandlerFunc
}

type Request struct {
	Update kit.Update
	Chat   kit.ChatTarget

	FromID        int64
	FromUsername  string
	FromFirstName string
	IsOwner       bool

	Command string
	Args    []string // positionals after flag parsing

	RawArgs   []string
	Flags     map[string]string
	BoolFlags map[string]bool
	ReqID     string

	Sender kit.Sender
	Logger logx.Logger
}

// Reply sends plain text back to the originating chat.
func (r *Request) Reply(ctx context.Context, text string) error {
	_, err := r.Sender.SendText(ctx, r.Chat, text, &kit.SendOptions{DisablePreview: true})
	return err
}

// ReplyHTML sends HTML-formatted text back to the originating chat.
func (r *Request) ReplyHTML(ctx context.Context, text string) error {
	_, err := r.Sender.SendText(ctx, r.Chat, text, &kit.SendOptions{ParseMode: "HTML", DisablePreview: true})
	return err
}

// Flag returns a string flag or def.
func (r *Request) Flag(name, def string) string {
	if v, ok := r.Flags[name]; ok {
		return v
	}
	return def
}
