package snapshot

import "errors"

var (
	// ErrNotFound means a locator did not resolve to a live node. It is an
	// expected outcome: the element was removed or moved since the snapshot.
	ErrNotFound = errors.New("pagemap: locator not found")

	// ErrMalformedLocator is always joined with ErrNotFound.
	ErrMalformedLocator = errors.New("pagemap: malformed locator")

	// ErrConfiguration is returned for an invalid Config.
	ErrConfiguration = errors.New("pagemap: invalid configuration")

	// ErrUnsupported is returned when a command cannot run on a page kind.
	ErrUnsupported = errors.New("pagemap: unsupported on this page")

	// ErrUnknownPage is returned for a page ID the engine does not know.
	ErrUnknownPage = errors.New("pagemap: unknown page")
)
