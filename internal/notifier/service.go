package notifier

import (
	"context"
	"errors"
	"sync"
	"time"

	"golang.org/x/time/rate"

	"jobtracker/internal/eventbus"
	kit "jobtracker/internal/transport"
	logx "jobtracker/pkg/logx"
)

var ErrNoSender = errors.New("notifier: no sender")

// AutoRemoved is published when a permanent delivery failure unsubscribes a
// recipient.
type AutoRemoved struct {
	ChatID int64
	Reason string
}

// Service fans messages out to subscribers.
//
// It is safe for concurrent use; Apply may run while a fan-out is in flight.
type Service struct {
	mu      sync.Mutex
	cfg     Config
	limiter *rate.Limiter

	sender kit.Sender
	reg    Registry
	log    logx.Logger
	bus    eventbus.Bus
}

func New(cfg Config, sender kit.Sender, reg Registry, log logx.Logger, bus eventbus.Bus) *Service {
	if log.IsZero() {
		log = logx.Nop()
	}
	s := &Service{sender: sender, reg: reg, log: log, bus: bus}
	s.applyLocked(cfg)
	return s
}

// Apply swaps pacing and preview settings.
func (s *Service) Apply(cfg Config) {
	s.mu.Lock()
	s.applyLocked(cfg)
	s.mu.Unlock()
}

func (s *Service) applyLocked(cfg Config) {
	s.cfg = cfg
	if cfg.RatePerSec <= 0 {
		s.limiter = rate.NewLimiter(rate.Inf, 0)
		return
	}
	// Burst = rate so a short fan-out goes out immediately.
	s.limiter = rate.NewLimiter(rate.Limit(cfg.RatePerSec), cfg.RatePerSec)
}

func (s *Service) snapshot() (Config, *rate.Limiter) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.cfg, s.limiter
}

// SendOne delivers m to one chat. A permanent failure unsubscribes the chat
// before returning. Nothing is retried.
func (s *Service) SendOne(ctx context.Context, id int64, m Message) Result {
	cfg, _ := s.snapshot()
	return s.sendOne(ctx, cfg, id, m)
}

func (s *Service) sendOne(ctx context.Context, cfg Config, id int64, m Message) Result {
	res := Result{ChatID: id, Outcome: Failed}
	if s.sender == nil {
		res.Err = ErrNoSender
		return res
	}

	opt := &kit.SendOptions{ParseMode: m.ParseMode, DisablePreview: m.DisablePreview || cfg.DisablePreview}
	_, err := s.sender.SendText(ctx, kit.ChatTarget{ChatID: id}, m.Text, opt)
	if err == nil {
		res.Outcome = Delivered
		return res
	}
	res.Err = err

	if !kit.IsPermanent(err) {
		s.log.Debug("send failed (transient)", logx.Int64("chat_id", id), logx.Err(err))
		return res
	}

	if s.reg == nil {
		return res
	}
	// The registry write must not be skipped because the caller's ctx ended.
	uctx, cancel := context.WithTimeout(context.WithoutCancel(ctx), 5*time.Second)
	defer cancel()
	r, uerr := s.reg.Unsubscribe(uctx, id)
	if uerr != nil {
		s.log.Warn("auto-unsubscribe failed", logx.Int64("chat_id", id), logx.Err(uerr))
		return res
	}
	res.Unsubscribed = true
	s.log.Info("recipient unreachable; unsubscribed", logx.Int64("chat_id", id), logx.String("result", r.String()), logx.Err(err))
	eventbus.Publish(s.bus, eventbus.SubscriberAutoRemoved, AutoRemoved{ChatID: id, Reason: err.Error()})
	return res
}

// SendBulk delivers m to every id independently and returns aggregate
// counts. Partial failure is not an error.
func (s *Service) SendBulk(ctx context.Context, ids []int64, m Message) BulkResult {
	start := time.Now()
	cfg, lim := s.snapshot()

	var out BulkResult
	for _, id := range ids {
		if err := lim.Wait(ctx); err != nil {
			// Cancellation still accounts for the recipient.
			out.Failed++
			s.log.Debug("send skipped", logx.Int64("chat_id", id), logx.Err(err))
			continue
		}
		r := s.sendOne(ctx, cfg, id, m)
		switch r.Outcome {
		case Delivered:
			out.Delivered++
		default:
			out.Failed++
			if r.Unsubscribed {
				out.Unsubscribed++
			}
		}
	}
	out.Took = time.Since(start)

	fields := []logx.Field{
		logx.Int("total", len(ids)),
		logx.Int("delivered", out.Delivered),
		logx.Int("failed", out.Failed),
		logx.Int("unsubscribed", out.Unsubscribed),
		logx.Duration("took", out.Took),
	}
	if out.Failed > 0 {
		s.log.Warn("fan-out finished with failures", fields...)
	} else {
		s.log.Info("fan-out finished", fields...)
	}
	return out
}

// Broadcast sends m to every current subscriber.
func (s *Service) Broadcast(ctx context.Context, m Message) (BulkResult, error) {
	if s.reg == nil {
		return BulkResult{}, nil
	}
	ids, err := s.reg.ListSubscribers(ctx)
	if err != nil {
		return BulkResult{}, err
	}
	return s.SendBulk(ctx, ids, m), nil
}
