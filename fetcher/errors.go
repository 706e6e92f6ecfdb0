package fetcher

import "errors"

// Run-level failures. Each one aborts the run before any file is written.
var (
	ErrPageFetch       = errors.New("listing page could not be fetched")
	ErrNoListingItems  = errors.New("no listing items found on page")
	ErrNoDownloadLinks = errors.New("listing items found but no ODS download links")
)

// ErrBodyTooLarge is returned when a response reaches the configured size limit.
// The body would be truncated, so it is never handed to the caller.
var ErrBodyTooLarge = errors.New("response body exceeds size limit")

// IsFatal reports whether err aborts a fetch run
func IsFatal(err error) bool {
	return errors.Is(err, ErrPageFetch) || errors.Is(err, ErrNoListingItems) || errors.Is(err, ErrNoDownloadLinks)
}
