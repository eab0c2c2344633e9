package storage

import (
	"context"
	"errors"
	"path/filepath"
	"testing"
	"time"

	logx "jobtracker/pkg/logx"
)

func openTestStore(t *testing.T) *Store {
	t.Helper()
	st, err := Open(Config{Path: filepath.Join(t.TempDir(), "test.db"), BusyTimeout: time.Second}, logx.Nop())
	if err != nil {
		t.Fatalf("Open: %v", err)
	}
	t.Cleanup(func() { _ = st.Close() })
	return st
}

func day(n int) time.Time {
	return time.Date(2024, time.March, n, 9, 0, 0, 0, time.UTC)
}

func activeURLs(t *testing.T, st *Store) []string {
	t.Helper()
	ps, err := st.ListActive(context.Background())
	if err != nil {
		t.Fatalf("ListActive: %v", err)
	}
	out := make([]string, 0, len(ps))
	for _, p := range ps {
		out = append(out, p.URL)
	}
	return out
}

func TestReconcileThreeDayScenario(t *testing.T) {
	ctx := context.Background()
	st := openTestStore(t)
	both := []Candidate{{Name: "Engineer", URL: "/a"}, {Name: "Analyst", URL: "/b"}}

	c, err := st.Reconcile(ctx, day(1), both)
	if err != nil {
		t.Fatalf("day 1: %v", err)
	}
	if c.New != 2 || c.Updated != 0 {
		t.Fatalf("day 1 counts = %+v", c)
	}

	c, err = st.Reconcile(ctx, day(2), both)
	if err != nil {
		t.Fatalf("day 2: %v", err)
	}
	if c.New != 0 || c.Updated != 2 {
		t.Fatalf("day 2 counts = %+v", c)
	}
	p, err := st.GetPosting(ctx, "/b")
	if err != nil {
		t.Fatalf("GetPosting: %v", err)
	}
	if p.FirstSeen != "2024-03-01" || p.LastSeen != "2024-03-02" || !p.IsActive {
		t.Fatalf("day 2 /b = %+v", p)
	}

	c, err = st.Reconcile(ctx, day(3), both[:1])
	if err != nil {
		t.Fatalf("day 3: %v", err)
	}
	if c.New != 0 || c.Updated != 1 {
		t.Fatalf("day 3 counts = %+v", c)
	}
	if got := activeURLs(t, st); len(got) != 1 || got[0] != "/a" {
		t.Fatalf("active after day 3 = %v", got)
	}
	p, _ = st.GetPosting(ctx, "/b")
	if p.IsActive || p.LastSeen != "2024-03-02" {
		t.Fatalf("expired /b = %+v", p)
	}
}

func TestReconcileInsertedOnlyThisCall(t *testing.T) {
	ctx := context.Background()
	st := openTestStore(t)

	c, err := st.Reconcile(ctx, day(1), []Candidate{{Name: "A", URL: "/a"}})
	if err != nil {
		t.Fatalf("morning: %v", err)
	}
	if len(c.Inserted) != 1 || c.Inserted[0].URL != "/a" {
		t.Fatalf("morning inserted = %+v", c.Inserted)
	}

	c, err = st.Reconcile(ctx, day(1), []Candidate{{Name: "A", URL: "/a"}, {Name: "B", URL: "/b"}})
	if err != nil {
		t.Fatalf("evening: %v", err)
	}
	if c.New != 1 || c.Updated != 1 {
		t.Fatalf("evening counts = %+v", c)
	}
	want := Posting{URL: "/b", Name: "B", FirstSeen: "2024-03-01", LastSeen: "2024-03-01", IsActive: true}
	if len(c.Inserted) != 1 || c.Inserted[0] != want {
		t.Fatalf("evening inserted = %+v", c.Inserted)
	}
}

func TestReconcileIdempotent(t *testing.T) {
	ctx := context.Background()
	st := openTestStore(t)
	cands := []Candidate{{Name: "A", URL: "/a"}, {Name: "B", URL: "/b"}, {Name: "C", URL: "/c"}}
	if _, err := st.Reconcile(ctx, day(1), cands); err != nil {
		t.Fatalf("first: %v", err)
	}
	before := activeURLs(t, st)
	c, err := st.Reconcile(ctx, day(1), cands)
	if err != nil {
		t.Fatalf("second: %v", err)
	}
	if c.New != 0 || c.Updated != 3 || len(c.Inserted) != 0 {
		t.Fatalf("second counts = %+v", c)
	}
	after := activeURLs(t, st)
	if len(before) != len(after) {
		t.Fatalf("active set changed: %v -> %v", before, after)
	}
}

func TestReconcileEmptyDeactivatesEverything(t *testing.T) {
	ctx := context.Background()
	st := openTestStore(t)
	if _, err := st.Reconcile(ctx, day(1), []Candidate{{Name: "A", URL: "/a"}}); err != nil {
		t.Fatalf("seed: %v", err)
	}
	c, err := st.Reconcile(ctx, day(2), nil)
	if err != nil {
		t.Fatalf("empty: %v", err)
	}
	if c.New != 0 || c.Updated != 0 {
		t.Fatalf("counts = %+v", c)
	}
	if n, _ := st.CountActive(ctx); n != 0 {
		t.Fatalf("active = %d, want 0", n)
	}
	all, _ := st.ListAll(ctx)
	if len(all) != 1 {
		t.Fatalf("postings must never be deleted, got %d", len(all))
	}
}

func TestReconcileReappearanceKeepsFirstSeen(t *testing.T) {
	ctx := context.Background()
	st := openTestStore(t)
	a := []Candidate{{Name: "A", URL: "/a"}}
	_, _ = st.Reconcile(ctx, day(1), a)
	_, _ = st.Reconcile(ctx, day(2), nil)
	c, err := st.Reconcile(ctx, day(5), []Candidate{{Name: "A renamed", URL: "/a"}})
	if err != nil {
		t.Fatalf("reappear: %v", err)
	}
	if c.New != 0 || c.Updated != 1 {
		t.Fatalf("counts = %+v", c)
	}
	p, _ := st.GetPosting(ctx, "/a")
	if p.FirstSeen != "2024-03-01" || p.LastSeen != "2024-03-05" || p.Name != "A renamed" || !p.IsActive {
		t.Fatalf("reappeared = %+v", p)
	}
	all, _ := st.ListAll(ctx)
	if len(all) != 1 {
		t.Fatalf("double-created: %d rows", len(all))
	}
}

func TestReconcileDuplicateURLLastNameWins(t *testing.T) {
	ctx := context.Background()
	st := openTestStore(t)
	c, err := st.Reconcile(ctx, day(1), []Candidate{{Name: "first", URL: "/x"}, {Name: "second", URL: "/x"}, {Name: "", URL: " "}})
	if err != nil {
		t.Fatalf("Reconcile: %v", err)
	}
	if c.New != 1 || c.Updated != 1 {
		t.Fatalf("counts = %+v", c)
	}
	if len(c.Inserted) != 1 || c.Inserted[0].Name != "second" {
		t.Fatalf("inserted = %+v", c.Inserted)
	}
	p, _ := st.GetPosting(ctx, "/x")
	if p.Name != "second" {
		t.Fatalf("name = %q", p.Name)
	}
}

func TestReconcileCanceledLeavesStoreUnchanged(t *testing.T) {
	st := openTestStore(t)
	if _, err := st.Reconcile(context.Background(), day(1), []Candidate{{Name: "A", URL: "/a"}}); err != nil {
		t.Fatalf("seed: %v", err)
	}
	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	if _, err := st.Reconcile(ctx, day(2), nil); err == nil {
		t.Fatalf("expected error on canceled context")
	}
	if got := activeURLs(t, st); len(got) != 1 {
		t.Fatalf("active after failed reconcile = %v", got)
	}
}

func TestListOrdering(t *testing.T) {
	ctx := context.Background()
	st := openTestStore(t)
	_, _ = st.Reconcile(ctx, day(1), []Candidate{{Name: "Old", URL: "/old"}})
	_, _ = st.Reconcile(ctx, day(2), []Candidate{{Name: "Old", URL: "/old"}, {Name: "New", URL: "/new"}})

	if got := activeURLs(t, st); len(got) != 2 || got[0] != "/new" || got[1] != "/old" {
		t.Fatalf("ListActive order = %v", got)
	}
	today, err := st.ListNewToday(ctx, day(2))
	if err != nil {
		t.Fatalf("ListNewToday: %v", err)
	}
	if len(today) != 1 || today[0].URL != "/new" {
		t.Fatalf("ListNewToday = %+v", today)
	}
	if none, _ := st.ListNewToday(ctx, day(3)); len(none) != 0 {
		t.Fatalf("ListNewToday(day 3) = %+v", none)
	}
}

func TestCorrectDiscoveryDate(t *testing.T) {
	ctx := context.Background()
	st := openTestStore(t)
	_, _ = st.Reconcile(ctx, day(10), []Candidate{{Name: "A", URL: "/a"}})

	if err := st.CorrectDiscoveryDate(ctx, "/a", day(4)); err != nil {
		t.Fatalf("CorrectDiscoveryDate: %v", err)
	}
	p, _ := st.GetPosting(ctx, "/a")
	if p.FirstSeen != "2024-03-04" || p.LastSeen != "2024-03-10" {
		t.Fatalf("after correction = %+v", p)
	}
	if err := st.CorrectDiscoveryDate(ctx, "/missing", day(4)); !errors.Is(err, ErrNotFound) {
		t.Fatalf("unknown url err = %v, want ErrNotFound", err)
	}
}

func TestSubscriberRegistry(t *testing.T) {
	ctx := context.Background()
	st := openTestStore(t)

	if r, err := st.Subscribe(ctx, 10, "Ann", day(1)); err != nil || r != Added {
		t.Fatalf("Subscribe = %v, %v", r, err)
	}
	if r, err := st.Subscribe(ctx, 10, "Ann", day(2)); err != nil || r != AlreadyPresent {
		t.Fatalf("second Subscribe = %v, %v", r, err)
	}
	_, _ = st.Subscribe(ctx, 5, "", day(2))

	ids, err := st.ListSubscribers(ctx)
	if err != nil || len(ids) != 2 || ids[0] != 5 || ids[1] != 10 {
		t.Fatalf("ListSubscribers = %v, %v", ids, err)
	}
	if ok, _ := st.IsSubscribed(ctx, 10); !ok {
		t.Fatalf("IsSubscribed(10) = false")
	}
	if r, err := st.Unsubscribe(ctx, 10); err != nil || r != Removed {
		t.Fatalf("Unsubscribe = %v, %v", r, err)
	}
	if r, err := st.Unsubscribe(ctx, 10); err != nil || r != NotPresent {
		t.Fatalf("second Unsubscribe = %v, %v", r, err)
	}
	if ok, _ := st.IsSubscribed(ctx, 10); ok {
		t.Fatalf("IsSubscribed(10) = true after unsubscribe")
	}
	subs, _ := st.Subscribers(ctx)
	if len(subs) != 1 || subs[0].ID != 5 || subs[0].SubscribedSince != "2024-03-02" {
		t.Fatalf("Subscribers = %+v", subs)
	}
}

func TestClosedStore(t *testing.T) {
	st := openTestStore(t)
	_ = st.Close()
	if _, err := st.ListActive(context.Background()); !errors.Is(err, ErrClosed) {
		t.Fatalf("err = %v, want ErrClosed", err)
	}
	if err := st.Close(); err != nil {
		t.Fatalf("second Close: %v", err)
	}
}
