package notifier

import (
	"context"
	"errors"
	"path/filepath"
	"sync"
	"testing"
	"time"

	"jobtracker/internal/eventbus"
	"jobtracker/internal/storage"
	kit "jobtracker/internal/transport"
	logx "jobtracker/pkg/logx"
)

type fakeSender struct {
	mu    sync.Mutex
	fail  map[int64]error
	sent  map[int64][]string
	calls int
}

func newFakeSender(fail map[int64]error) *fakeSender {
	return &fakeSender{fail: fail, sent: map[int64][]string{}}
}

func (f *fakeSender) SendText(_ context.Context, to kit.ChatTarget, text string, _ *kit.SendOptions) (kit.MessageRef, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.calls++
	if err := f.fail[to.ChatID]; err != nil {
		return kit.MessageRef{}, err
	}
	f.sent[to.ChatID] = append(f.sent[to.ChatID], text)
	return kit.MessageRef{ChatID: to.ChatID, MessageID: f.calls}, nil
}

func (f *fakeSender) got(id int64) []string {
	f.mu.Lock()
	defer f.mu.Unlock()
	return append([]string(nil), f.sent[id]...)
}

func openStore(t *testing.T, ids ...int64) *storage.Store {
	t.Helper()
	st, err := storage.Open(storage.Config{Path: filepath.Join(t.TempDir(), "n.db")}, logx.Nop())
	if err != nil {
		t.Fatalf("open store: %v", err)
	}
	t.Cleanup(func() { _ = st.Close() })
	for _, id := range ids {
		if _, err := st.Subscribe(context.Background(), id, "user", time.Now()); err != nil {
			t.Fatalf("subscribe %d: %v", id, err)
		}
	}
	return st
}

func permanent(id int64) error {
	return &kit.DeliveryError{ChatID: id, Permanent: true, Err: errors.New("Forbidden: bot was blocked by the user")}
}

func transient(id int64) error {
	return &kit.DeliveryError{ChatID: id, Err: errors.New("Too Many Requests: retry after 3")}
}

func TestSendBulkIsolatesPermanentFailure(t *testing.T) {
	t.Parallel()

	const a, b, c = 1, 2, 3
	st := openStore(t, a, b, c)
	snd := newFakeSender(map[int64]error{b: permanent(b)})
	bus := eventbus.New()
	events, unsub := bus.Subscribe(4)
	defer unsub()

	svc := New(Config{}, snd, st, logx.Nop(), bus)
	res := svc.SendBulk(context.Background(), []int64{a, b, c}, Message{Text: "hello"})

	if res.Delivered != 2 || res.Failed != 1 || res.Unsubscribed != 1 {
		t.Fatalf("unexpected result: %+v", res)
	}
	for _, id := range []int64{a, c} {
		if got := snd.got(id); len(got) != 1 || got[0] != "hello" {
			t.Fatalf("chat %d got %v", id, got)
		}
	}

	ok, err := st.IsSubscribed(context.Background(), b)
	if err != nil {
		t.Fatalf("is subscribed: %v", err)
	}
	if ok {
		t.Fatalf("permanently failing recipient is still subscribed")
	}
	for _, id := range []int64{a, c} {
		if ok, _ := st.IsSubscribed(context.Background(), id); !ok {
			t.Fatalf("chat %d lost its subscription", id)
		}
	}

	select {
	case e := <-events:
		if e.Type != eventbus.SubscriberAutoRemoved {
			t.Fatalf("unexpected event %q", e.Type)
		}
		if d, _ := e.Data.(AutoRemoved); d.ChatID != b {
			t.Fatalf("unexpected event data %+v", e.Data)
		}
	default:
		t.Fatalf("no auto-removal event published")
	}
}

func TestSendOneTransientKeepsSubscription(t *testing.T) {
	t.Parallel()

	cases := []struct {
		name string
		err  error
	}{
		{name: "classified transient", err: transient(7)},
		{name: "unclassified error", err: errors.New("Forbidden: bot was blocked by the user")},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			t.Parallel()

			st := openStore(t, 7)
			snd := newFakeSender(map[int64]error{7: tc.err})
			svc := New(Config{}, snd, st, logx.Nop(), nil)

			r := svc.SendOne(context.Background(), 7, Message{Text: "x"})
			if r.Outcome != Failed || r.Unsubscribed || r.Err == nil {
				t.Fatalf("unexpected result: %+v", r)
			}
			if snd.calls != 1 {
				t.Fatalf("expected exactly one attempt, got %d", snd.calls)
			}
			if ok, _ := st.IsSubscribed(context.Background(), 7); !ok {
				t.Fatalf("transient failure removed the subscription")
			}
		})
	}
}

func TestSendOneDelivered(t *testing.T) {
	t.Parallel()

	snd := newFakeSender(nil)
	svc := New(Config{DisablePreview: true}, snd, nil, logx.Nop(), nil)
	r := svc.SendOne(context.Background(), 42, Message{Text: "hi", ParseMode: ParseModeHTML})
	if r.Outcome != Delivered || r.Err != nil {
		t.Fatalf("unexpected result: %+v", r)
	}
}

func TestBroadcastUsesRegistry(t *testing.T) {
	t.Parallel()

	st := openStore(t, 10, 11)
	snd := newFakeSender(nil)
	svc := New(Config{RatePerSec: 100}, snd, st, logx.Nop(), nil)

	res, err := svc.Broadcast(context.Background(), Message{Text: "x"})
	if err != nil {
		t.Fatalf("broadcast: %v", err)
	}
	if res.Delivered != 2 || res.Failed != 0 {
		t.Fatalf("unexpected result: %+v", res)
	}
}

func TestSendBulkCanceledCountsEveryRecipient(t *testing.T) {
	t.Parallel()

	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	snd := newFakeSender(nil)
	svc := New(Config{RatePerSec: 1}, snd, nil, logx.Nop(), nil)
	res := svc.SendBulk(ctx, []int64{1, 2, 3}, Message{Text: "x"})
	if res.Delivered+res.Failed != 3 {
		t.Fatalf("every recipient must be accounted for: %+v", res)
	}
}
