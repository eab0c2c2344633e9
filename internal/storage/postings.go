package storage

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/jmoiron/sqlx"

	logx "jobtracker/pkg/logx"
)

// Reconcile applies a full fetch snapshot as of today, in one transaction.
//
// Every active posting is first deactivated; each candidate then either
// reactivates its row (name and last_seen refreshed, Updated) or inserts a
// new one (first_seen = last_seen = today, New). Postings not in the
// snapshot stay inactive with their dates untouched. An empty snapshot
// deactivates everything.
//
// Candidates are applied in order, so a URL repeated within one batch keeps
// the last name and counts once as new (or updated) plus once as updated per
// repeat. Candidates with an empty URL are skipped. Counts.Inserted lists
// only rows created by this call; postings inserted by an earlier cycle the
// same day are not repeated.
func (s *Store) Reconcile(ctx context.Context, today time.Time, candidates []Candidate) (Counts, error) {
	if err := s.check(); err != nil {
		return Counts{}, err
	}
	day := Date(today)
	var c Counts
	inserted := map[string]int{}
	err := s.withTx(ctx, func(tx *sqlx.Tx) error {
		if _, err := tx.ExecContext(ctx, `UPDATE postings SET is_active = 0 WHERE is_active = 1`); err != nil {
			return fmt.Errorf("deactivate: %w", err)
		}
		for _, cand := range candidates {
			url := strings.TrimSpace(cand.URL)
			if url == "" {
				s.log.Debug("skipping candidate without url", logx.String("name", cand.Name))
				continue
			}
			name := strings.TrimSpace(cand.Name)
			res, err := tx.ExecContext(ctx,
				`UPDATE postings SET name = ?, last_seen = ?, is_active = 1 WHERE url = ?`,
				name, day, url)
			if err != nil {
				return fmt.Errorf("refresh %s: %w", url, err)
			}
			if n, _ := res.RowsAffected(); n > 0 {
				c.Updated++
				if i, ok := inserted[url]; ok {
					c.Inserted[i].Name = name
				}
				continue
			}
			if _, err := tx.ExecContext(ctx,
				`INSERT INTO postings(url, name, first_seen, last_seen, is_active) VALUES(?, ?, ?, ?, 1)`,
				url, name, day, day); err != nil {
				return fmt.Errorf("insert %s: %w", url, err)
			}
			c.New++
			inserted[url] = len(c.Inserted)
			c.Inserted = append(c.Inserted, Posting{URL: url, Name: name, FirstSeen: day, LastSeen: day, IsActive: true})
		}
		return nil
	})
	if err != nil {
		return Counts{}, fmt.Errorf("storage: reconcile: %w", err)
	}
	return c, nil
}

// ListActive returns active postings, newest first_seen first.
func (s *Store) ListActive(ctx context.Context) ([]Posting, error) {
	return s.selectPostings(ctx, `SELECT url, name, first_seen, last_seen, is_active FROM postings
		WHERE is_active = 1 ORDER BY first_seen DESC, name ASC`)
}

// ListNewToday returns active postings first seen on today.
func (s *Store) ListNewToday(ctx context.Context, today time.Time) ([]Posting, error) {
	return s.selectPostings(ctx, `SELECT url, name, first_seen, last_seen, is_active FROM postings
		WHERE is_active = 1 AND first_seen = ? ORDER BY name ASC`, Date(today))
}

// ListAll returns every posting ever seen, active ones first.
func (s *Store) ListAll(ctx context.Context) ([]Posting, error) {
	return s.selectPostings(ctx, `SELECT url, name, first_seen, last_seen, is_active FROM postings
		ORDER BY is_active DESC, first_seen DESC, name ASC`)
}

func (s *Store) CountActive(ctx context.Context) (int, error) {
	if err := s.check(); err != nil {
		return 0, err
	}
	var n int
	if err := s.db.GetContext(ctx, &n, `SELECT COUNT(*) FROM postings WHERE is_active = 1`); err != nil {
		return 0, fmt.Errorf("storage: count active: %w", err)
	}
	return n, nil
}

// GetPosting returns the posting stored under url or ErrNotFound.
func (s *Store) GetPosting(ctx context.Context, url string) (Posting, error) {
	if err := s.check(); err != nil {
		return Posting{}, err
	}
	var p []Posting
	if err := s.db.SelectContext(ctx, &p, `SELECT url, name, first_seen, last_seen, is_active FROM postings WHERE url = ?`, strings.TrimSpace(url)); err != nil {
		return Posting{}, fmt.Errorf("storage: get posting: %w", err)
	}
	if len(p) == 0 {
		return Posting{}, ErrNotFound
	}
	return p[0], nil
}

// CorrectDiscoveryDate overwrites first_seen for url. It returns
// ErrNotFound when no posting has that url.
func (s *Store) CorrectDiscoveryDate(ctx context.Context, url string, date time.Time) error {
	if err := s.check(); err != nil {
		return err
	}
	res, err := s.db.ExecContext(ctx, `UPDATE postings SET first_seen = ? WHERE url = ?`, Date(date), strings.TrimSpace(url))
	if err != nil {
		return fmt.Errorf("storage: correct date: %w", err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return fmt.Errorf("storage: correct date: %w", err)
	}
	if n == 0 {
		return ErrNotFound
	}
	return nil
}

func (s *Store) selectPostings(ctx context.Context, query string, args ...any) ([]Posting, error) {
	if err := s.check(); err != nil {
		return nil, err
	}
	var out []Posting
	if err := s.db.SelectContext(ctx, &out, query, args...); err != nil {
		return nil, fmt.Errorf("storage: list postings: %w", err)
	}
	return out, nil
}
