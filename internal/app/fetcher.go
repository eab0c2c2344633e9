package app

import (
	"context"
	"sync/atomic"

	"jobtracker/internal/source"
	"jobtracker/internal/storage"
)

// swapFetcher lets a reloaded source section replace the fetcher between
// cycles. A cycle keeps the fetcher it started with.
type swapFetcher struct {
	cur atomic.Pointer[source.Fetcher]
}

func newSwapFetcher(f *source.Fetcher) *swapFetcher {
	s := &swapFetcher{}
	s.cur.Store(f)
	return s
}

func (s *swapFetcher) Fetch(ctx context.Context) ([]storage.Candidate, error) {
	return s.cur.Load().Fetch(ctx)
}

func (s *swapFetcher) Swap(f *source.Fetcher) {
	if f != nil {
		s.cur.Store(f)
	}
}
