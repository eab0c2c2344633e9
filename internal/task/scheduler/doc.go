// Package scheduler fires the discovery job once per calendar day at a fixed
// wall-clock time in a named time zone.
//
// Triggering is backed by robfig/cron. Missed ticks (process down at the
// scheduled minute) are not backfilled, and a tick that fires while the
// previous run is still going is skipped rather than queued.
package scheduler
