package repository

import (
	"context"
	"time"
)

// SessionOptions configures one isolated browser session.
type SessionOptions struct {
	Headless               bool
	UserAgent              string
	WindowWidth            int
	WindowHeight           int
	DisableWebRTC          bool
	DisablePasswordManager bool
	AcceptLanguage         string
	NavigationTimeout      time.Duration
}

// SessionFactory opens browser sessions. Every session it returns must be
// closed by the caller.
type SessionFactory interface {
	// NewSession starts a fresh, isolated browser session.
	NewSession(ctx context.Context, opts SessionOptions) (Session, error)
}

// Session is a single browser instance used for exactly one task's page visit.
type Session interface {
	// Navigate loads url in the session's page.
	Navigate(ctx context.Context, url string) error
	// WaitVisible waits up to timeout for the element matched by locator to be visible.
	WaitVisible(ctx context.Context, locator string, timeout time.Duration) (Element, error)
	// Eval runs script in the page and discards its result.
	Eval(ctx context.Context, script string) error
	// HTML returns the current document markup.
	HTML(ctx context.Context) (string, error)
	// Close tears the session down. It is safe to call more than once.
	Close() error
}

// Element is a node found on the page.
type Element interface {
	// Text returns the rendered text of the element.
	Text(ctx context.Context) (string, error)
}
