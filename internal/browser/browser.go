// Package browser owns the headless browser sessions used for crawling and
// exposes the small set of DOM capabilities the crawler needs.
package browser

import (
	"context"
	"errors"
	"time"
)

var (
	// ErrTimeout means a wait for an element ran out of time.
	ErrTimeout = errors.New("timed out waiting for element")
	// ErrStale means an element handle no longer belongs to the document.
	ErrStale = errors.New("stale element")
	// ErrIntercepted means another element covered the click target.
	ErrIntercepted = errors.New("click intercepted")
	// ErrNoFrame means the start page has no embedded content frame.
	ErrNoFrame = errors.New("no content frame")
)

// Element is a handle on one DOM element. Handles go stale once the page
// re-renders, so they should not be kept across clicks.
type Element interface {
	Text() (string, error)
	ScrollIntoView() error
	Click() error
}

// Page locates elements by XPath inside the content frame.
type Page interface {
	// WaitElement waits until xpath matches an element.
	WaitElement(ctx context.Context, xpath string, timeout time.Duration) (Element, error)
	// WaitElements waits until xpath matches at least one element and
	// returns all matches.
	WaitElements(ctx context.Context, xpath string, timeout time.Duration) ([]Element, error)
	// WaitClickable waits until xpath matches a visible, enabled element.
	WaitClickable(ctx context.Context, xpath string, timeout time.Duration) (Element, error)
	// Has reports whether xpath matches right now, without waiting.
	Has(ctx context.Context, xpath string) (bool, error)
	// HTML returns the rendered document of the content frame.
	HTML(ctx context.Context) (string, error)
}

// Session is a running browser owned by a single section job.
type Session interface {
	Page
	// Open loads the start page and readies the content frame.
	Open(ctx context.Context) error
	// Close releases the browser process. It is safe to call more than once.
	Close() error
}

// Launcher starts browser sessions.
type Launcher interface {
	Launch(ctx context.Context) (Session, error)
}

// Transient reports whether err is worth retrying.
func Transient(err error) bool {
	return errors.Is(err, ErrTimeout) || errors.Is(err, ErrStale) || errors.Is(err, ErrIntercepted)
}
