// Package source fetches the listing page and extracts candidate postings.
//
// A fetch either returns the full current snapshot (possibly empty) or a
// *FetchError; a partial result is never returned.
package source
