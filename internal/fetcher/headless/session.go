// Package headless drives the harvest statistics page in headless Chrome.
package headless

import (
	"context"
	"fmt"

	"github.com/chromedp/chromedp"
)

// SessionConfig controls how an owned browser is launched.
type SessionConfig struct {
	UserAgent string
	// Headful disables headless mode, useful when debugging selectors.
	Headful bool
}

// Session is a running browser. A session created by NewSession owns the
// browser process and Close shuts it down. A session created by Borrow wraps
// a browser context owned by someone else and Close leaves it running.
type Session struct {
	browserCtx context.Context
	release    func()
	owned      bool
}

// NewSession launches a browser owned by the returned session.
func NewSession(cfg SessionConfig) (*Session, error) {
	opts := append(chromedp.DefaultExecAllocatorOptions[:],
		chromedp.Flag("headless", !cfg.Headful),
		chromedp.Flag("disable-gpu", true),
		chromedp.Flag("hide-scrollbars", true),
		chromedp.Flag("enable-automation", false),
	)
	if cfg.UserAgent != "" {
		opts = append(opts, chromedp.UserAgent(cfg.UserAgent))
	}
	allocCtx, allocCancel := chromedp.NewExecAllocator(context.Background(), opts...)
	browserCtx, browserCancel := chromedp.NewContext(allocCtx)
	// The first Run allocates the browser; it must not be bound to a
	// short-lived context or the browser dies with it.
	if err := chromedp.Run(browserCtx); err != nil {
		browserCancel()
		allocCancel()
		return nil, fmt.Errorf("start browser: %w", err)
	}
	return &Session{
		browserCtx: browserCtx,
		release: func() {
			browserCancel()
			allocCancel()
		},
		owned: true,
	}, nil
}

// Borrow wraps an already running chromedp browser context.
func Borrow(browserCtx context.Context) *Session {
	return &Session{browserCtx: browserCtx}
}

// Owned reports whether Close shuts the browser down.
func (s *Session) Owned() bool {
	return s != nil && s.owned
}

// Close releases the browser if the session owns it. It is safe to call more
// than once.
func (s *Session) Close() {
	if s == nil || !s.owned || s.release == nil {
		return
	}
	s.release()
	s.release = nil
}

// newTab opens a fresh tab in the session's browser. The returned cancel
// closes only the tab.
func (s *Session) newTab() (context.Context, context.CancelFunc, error) {
	if s == nil || s.browserCtx == nil {
		return nil, nil, fmt.Errorf("browser session is not open")
	}
	tabCtx, cancel := chromedp.NewContext(s.browserCtx)
	if err := chromedp.Run(tabCtx); err != nil {
		cancel()
		return nil, nil, fmt.Errorf("open tab: %w", err)
	}
	return tabCtx, cancel, nil
}
