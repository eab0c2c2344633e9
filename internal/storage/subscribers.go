package storage

import (
	"context"
	"fmt"
	"time"
)

// Subscribe registers id. Subscribing twice is not an error.
func (s *Store) Subscribe(ctx context.Context, id int64, displayName string, since time.Time) (SubscribeResult, error) {
	if err := s.check(); err != nil {
		return 0, err
	}
	res, err := s.db.ExecContext(ctx,
		`INSERT INTO subscribers(id, display_name, subscribed_since) VALUES(?, ?, ?)
		 ON CONFLICT(id) DO NOTHING`,
		id, displayName, Date(since))
	if err != nil {
		return 0, fmt.Errorf("storage: subscribe: %w", err)
	}
	if n, _ := res.RowsAffected(); n == 0 {
		return AlreadyPresent, nil
	}
	return Added, nil
}

// Unsubscribe removes id. Removing an absent id is not an error.
func (s *Store) Unsubscribe(ctx context.Context, id int64) (UnsubscribeResult, error) {
	if err := s.check(); err != nil {
		return 0, err
	}
	res, err := s.db.ExecContext(ctx, `DELETE FROM subscribers WHERE id = ?`, id)
	if err != nil {
		return 0, fmt.Errorf("storage: unsubscribe: %w", err)
	}
	if n, _ := res.RowsAffected(); n == 0 {
		return NotPresent, nil
	}
	return Removed, nil
}

// ListSubscribers returns every registered id in ascending order.
func (s *Store) ListSubscribers(ctx context.Context) ([]int64, error) {
	if err := s.check(); err != nil {
		return nil, err
	}
	var ids []int64
	if err := s.db.SelectContext(ctx, &ids, `SELECT id FROM subscribers ORDER BY id`); err != nil {
		return nil, fmt.Errorf("storage: list subscribers: %w", err)
	}
	return ids, nil
}

func (s *Store) IsSubscribed(ctx context.Context, id int64) (bool, error) {
	if err := s.check(); err != nil {
		return false, err
	}
	var n int
	if err := s.db.GetContext(ctx, &n, `SELECT COUNT(*) FROM subscribers WHERE id = ?`, id); err != nil {
		return false, fmt.Errorf("storage: is subscribed: %w", err)
	}
	return n > 0, nil
}

// Subscribers returns the full registry rows, oldest subscription first.
func (s *Store) Subscribers(ctx context.Context) ([]Subscriber, error) {
	if err := s.check(); err != nil {
		return nil, err
	}
	var out []Subscriber
	if err := s.db.SelectContext(ctx, &out, `SELECT id, display_name, subscribed_since FROM subscribers ORDER BY subscribed_since, id`); err != nil {
		return nil, fmt.Errorf("storage: subscribers: %w", err)
	}
	return out, nil
}
