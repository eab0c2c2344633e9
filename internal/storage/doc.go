// Package storage is the SQLite persistence layer of jobtracker.
//
// It holds two independent tables:
//   - postings, keyed by URL, with first/last seen dates and an active flag
//   - subscribers, keyed by Telegram chat id
//
// Dates are calendar dates stored as "YYYY-MM-DD" text. Callers pass
// time.Time values already converted to the tracker's time zone.
package storage
