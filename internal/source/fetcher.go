package source

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"net/url"
	"regexp"
	"strings"
	"time"

	"github.com/codeGROOVE-dev/retry"

	"jobtracker/internal/storage"
	logx "jobtracker/pkg/logx"
)

const defaultUserAgent = "Mozilla/5.0 (compatible; jobtracker/1.0; +https://github.com/jobtracker)"

type Config struct {
	URL           string
	BaseURL       string
	LinkPattern   string
	Exclude       []string
	UserAgent     string
	Timeout       time.Duration
	RetryAttempts uint
	RetryDelay    time.Duration
}

// Fetcher downloads the listing page and parses it into candidates.
type Fetcher struct {
	cfg    Config
	rules  Rules
	client *http.Client
	log    logx.Logger
}

func New(cfg Config, log logx.Logger) (*Fetcher, error) {
	if log.IsZero() {
		log = logx.Nop()
	}
	page, err := url.Parse(strings.TrimSpace(cfg.URL))
	if err != nil || page.Host == "" {
		return nil, fmt.Errorf("source: invalid url %q", cfg.URL)
	}
	base := &url.URL{Scheme: page.Scheme, Host: page.Host}
	if b := strings.TrimSpace(cfg.BaseURL); b != "" {
		if base, err = url.Parse(b); err != nil {
			return nil, fmt.Errorf("source: invalid base url: %w", err)
		}
	}
	var pattern *regexp.Regexp
	if p := strings.TrimSpace(cfg.LinkPattern); p != "" {
		if pattern, err = regexp.Compile(p); err != nil {
			return nil, fmt.Errorf("source: link pattern: %w", err)
		}
	}
	if cfg.Timeout <= 0 {
		cfg.Timeout = 30 * time.Second
	}
	if cfg.RetryAttempts == 0 {
		cfg.RetryAttempts = 3
	}
	if cfg.RetryDelay <= 0 {
		cfg.RetryDelay = 2 * time.Second
	}
	if strings.TrimSpace(cfg.UserAgent) == "" {
		cfg.UserAgent = defaultUserAgent
	}
	return &Fetcher{
		cfg:    cfg,
		rules:  Rules{Base: base, Pattern: pattern, Exclude: cfg.Exclude},
		client: &http.Client{Timeout: cfg.Timeout},
		log:    log,
	}, nil
}

// Fetch returns the current snapshot of postings. Network errors and 5xx
// responses are retried; 4xx responses and parse failures are not. Any
// failure is returned as *FetchError.
func (f *Fetcher) Fetch(ctx context.Context) ([]storage.Candidate, error) {
	var out []storage.Candidate
	start := time.Now()

	err := retry.Do(
		func() error {
			cands, err := f.fetchOnce(ctx)
			if err != nil {
				return err
			}
			out = cands
			return nil
		},
		retry.Attempts(f.cfg.RetryAttempts),
		retry.Delay(f.cfg.RetryDelay),
		retry.MaxDelay(30*time.Second),
		retry.MaxJitter(f.cfg.RetryDelay/2),
		retry.Context(ctx),
		retry.OnRetry(func(n uint, err error) {
			f.log.Warn("fetch failed; retrying", logx.Int("attempt", int(n)+1), logx.Err(err))
		}),
		retry.RetryIf(retryable),
	)
	if err != nil {
		var fe *FetchError
		if errors.As(err, &fe) {
			return nil, fe
		}
		return nil, &FetchError{URL: f.cfg.URL, Stage: StageRequest, Err: err}
	}

	f.log.Debug("page fetched", logx.String("url", f.cfg.URL), logx.Int("candidates", len(out)), logx.Duration("took", time.Since(start)))
	return out, nil
}

func (f *Fetcher) fetchOnce(ctx context.Context) ([]storage.Candidate, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, f.cfg.URL, http.NoBody)
	if err != nil {
		return nil, retry.Unrecoverable(&FetchError{URL: f.cfg.URL, Stage: StageRequest, Err: err})
	}
	req.Header.Set("User-Agent", f.cfg.UserAgent)
	req.Header.Set("Accept", "text/html,application/xhtml+xml;q=0.9,*/*;q=0.8")

	resp, err := f.client.Do(req)
	if err != nil {
		return nil, &FetchError{URL: f.cfg.URL, Stage: StageRequest, Err: err}
	}
	defer func() { _ = resp.Body.Close() }()

	if resp.StatusCode != http.StatusOK {
		fe := &FetchError{URL: f.cfg.URL, Stage: StageStatus, StatusCode: resp.StatusCode, Err: fmt.Errorf("HTTP %d", resp.StatusCode)}
		if resp.StatusCode < 500 && resp.StatusCode != http.StatusTooManyRequests {
			return nil, retry.Unrecoverable(fe)
		}
		return nil, fe
	}

	cands, err := Parse(resp.Body, f.rules)
	if err != nil {
		return nil, retry.Unrecoverable(&FetchError{URL: f.cfg.URL, Stage: StageParse, Err: err})
	}
	return cands, nil
}

func retryable(err error) bool {
	if errors.Is(err, context.Canceled) || errors.Is(err, context.DeadlineExceeded) {
		return false
	}
	var fe *FetchError
	if !errors.As(err, &fe) {
		return true
	}
	switch fe.Stage {
	case StageParse:
		return false
	case StageStatus:
		return fe.StatusCode >= 500 || fe.StatusCode == http.StatusTooManyRequests
	}
	return true
}
