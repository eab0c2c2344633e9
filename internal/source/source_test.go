package source

import (
	"context"
	"errors"
	"net/http"
	"net/http/httptest"
	"net/url"
	"regexp"
	"strings"
	"sync/atomic"
	"testing"
	"time"

	"jobtracker/internal/storage"
	logx "jobtracker/pkg/logx"
)

const listingHTML = `<!doctype html>
<html><body>
<nav><a href="/de/init7/">Home</a></nav>
<ul>
  <li><a href="/de/init7/jobs/network-engineer/"><img src="x.png"></a>
      <a href="/de/init7/jobs/network-engineer/">  Network
        Engineer </a></li>
  <li><a href="https://www.init7.net/de/init7/jobs/backend-dev/">Backend Developer</a></li>
  <li><a href="/de/init7/jobs/benefits/">Benefits</a></li>
  <li><a href="/de/init7/jobs/apprentice/details">Not a posting</a></li>
  <li><a href="/de/init7/jobs/support-agent/"></a></li>
</ul>
</body></html>`

func testRules(t *testing.T) Rules {
	t.Helper()
	base, err := url.Parse("https://www.init7.net")
	if err != nil {
		t.Fatal(err)
	}
	return Rules{
		Base:    base,
		Pattern: regexp.MustCompile(`/de/init7/jobs/[^/]+/$`),
		Exclude: []string{"benefits"},
	}
}

func TestParse(t *testing.T) {
	t.Parallel()

	got, err := Parse(strings.NewReader(listingHTML), testRules(t))
	if err != nil {
		t.Fatalf("parse: %v", err)
	}
	want := []storage.Candidate{
		{Name: "Network Engineer", URL: "https://www.init7.net/de/init7/jobs/network-engineer/"},
		{Name: "Backend Developer", URL: "https://www.init7.net/de/init7/jobs/backend-dev/"},
		{Name: "support agent", URL: "https://www.init7.net/de/init7/jobs/support-agent/"},
	}
	if len(got) != len(want) {
		t.Fatalf("got %d candidates, want %d: %+v", len(got), len(want), got)
	}
	for i := range want {
		if got[i] != want[i] {
			t.Fatalf("candidate %d: got %+v want %+v", i, got[i], want[i])
		}
	}
}

func TestParseExcludeIgnoresCase(t *testing.T) {
	t.Parallel()

	page := `<a href="/de/init7/jobs/Benefits/">Perks</a>
<a href="/de/init7/jobs/BENEFITS-2024/">More perks</a>
<a href="/de/init7/jobs/devops/">DevOps</a>`
	rules := testRules(t)
	rules.Exclude = []string{" Benefits "}
	got, err := Parse(strings.NewReader(page), rules)
	if err != nil {
		t.Fatalf("parse: %v", err)
	}
	if len(got) != 1 || got[0].Name != "DevOps" {
		t.Fatalf("got %+v, want only DevOps", got)
	}
}

func TestParseEmptyPage(t *testing.T) {
	t.Parallel()

	got, err := Parse(strings.NewReader("<html><body><p>nothing</p></body></html>"), testRules(t))
	if err != nil {
		t.Fatalf("parse: %v", err)
	}
	if len(got) != 0 {
		t.Fatalf("expected no candidates, got %+v", got)
	}
}

func newFetcher(t *testing.T, srvURL string, attempts uint) *Fetcher {
	t.Helper()
	f, err := New(Config{
		URL:           srvURL + "/de/init7/jobs/",
		LinkPattern:   `/de/init7/jobs/[^/]+/$`,
		Exclude:       []string{"benefits"},
		Timeout:       2 * time.Second,
		RetryAttempts: attempts,
		RetryDelay:    time.Millisecond,
	}, logx.Nop())
	if err != nil {
		t.Fatalf("new fetcher: %v", err)
	}
	return f
}

func TestFetchSuccess(t *testing.T) {
	t.Parallel()

	var ua atomic.Value
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		ua.Store(r.UserAgent())
		_, _ = w.Write([]byte(listingHTML))
	}))
	defer srv.Close()

	got, err := newFetcher(t, srv.URL, 1).Fetch(context.Background())
	if err != nil {
		t.Fatalf("fetch: %v", err)
	}
	if len(got) != 3 {
		t.Fatalf("got %d candidates, want 3", len(got))
	}
	if !strings.HasPrefix(got[0].URL, srv.URL) {
		t.Fatalf("relative href should resolve against page host, got %q", got[0].URL)
	}
	if s, _ := ua.Load().(string); s != defaultUserAgent {
		t.Fatalf("user agent: got %q", s)
	}
}

func TestFetchRetriesServerErrors(t *testing.T) {
	t.Parallel()

	var calls atomic.Int32
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		if calls.Add(1) < 3 {
			w.WriteHeader(http.StatusBadGateway)
			return
		}
		_, _ = w.Write([]byte(listingHTML))
	}))
	defer srv.Close()

	got, err := newFetcher(t, srv.URL, 3).Fetch(context.Background())
	if err != nil {
		t.Fatalf("fetch: %v", err)
	}
	if len(got) != 3 || calls.Load() != 3 {
		t.Fatalf("got %d candidates after %d calls", len(got), calls.Load())
	}
}

func TestFetchErrors(t *testing.T) {
	t.Parallel()

	cases := []struct {
		name      string
		status    int
		attempts  uint
		wantCalls int32
	}{
		{name: "client error is not retried", status: http.StatusNotFound, attempts: 3, wantCalls: 1},
		{name: "server error exhausts attempts", status: http.StatusInternalServerError, attempts: 2, wantCalls: 2},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			t.Parallel()

			var calls atomic.Int32
			srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
				calls.Add(1)
				w.WriteHeader(tc.status)
			}))
			defer srv.Close()

			got, err := newFetcher(t, srv.URL, tc.attempts).Fetch(context.Background())
			if err == nil {
				t.Fatalf("expected error, got %+v", got)
			}
			var fe *FetchError
			if !errors.As(err, &fe) {
				t.Fatalf("expected *FetchError, got %T: %v", err, err)
			}
			if fe.Stage != StageStatus || fe.StatusCode != tc.status {
				t.Fatalf("unexpected fetch error: %+v", fe)
			}
			if got != nil {
				t.Fatalf("partial result returned: %+v", got)
			}
			if calls.Load() != tc.wantCalls {
				t.Fatalf("calls: got %d want %d", calls.Load(), tc.wantCalls)
			}
		})
	}
}

func TestFetchUnreachable(t *testing.T) {
	t.Parallel()

	srv := httptest.NewServer(http.NotFoundHandler())
	addr := srv.URL
	srv.Close()

	_, err := newFetcher(t, addr, 1).Fetch(context.Background())
	if !IsFetchError(err) {
		t.Fatalf("expected fetch error, got %v", err)
	}
}

func TestNewRejectsBadConfig(t *testing.T) {
	t.Parallel()

	cases := []Config{
		{URL: ""},
		{URL: "not a url"},
		{URL: "https://example.com/jobs", LinkPattern: "("},
	}
	for _, cfg := range cases {
		if _, err := New(cfg, logx.Nop()); err == nil {
			t.Fatalf("expected error for %+v", cfg)
		}
	}
}
