// Package tracker runs discovery cycles: fetch the listing, reconcile it into
// the posting store, and notify every subscriber once with the outcome.
//
// A Pipeline is either idle or running one cycle. A second trigger while a
// cycle is in flight is rejected with ErrCycleRunning instead of queued.
package tracker
