package headless

import (
	"context"
	"fmt"
	"time"

	"github.com/chromedp/cdproto/emulation"
	"github.com/chromedp/cdproto/network"
	"github.com/chromedp/chromedp"
)

// page is the small set of browser operations the extraction protocol needs.
type page interface {
	Navigate(ctx context.Context, url string) error
	WaitPresent(ctx context.Context, selector string) error
	SetValue(ctx context.Context, selector, value string) error
	Click(ctx context.Context, selector string) error
	MarkActivity()
	WaitIdle(ctx context.Context, quiet time.Duration) error
	HTML(ctx context.Context) (string, error)
}

// chromedpPage implements page on a single browser tab.
type chromedpPage struct {
	tabCtx context.Context
	idle   *idleWatcher
}

// openChromedpPage opens a tab in session with network tracking enabled.
// The returned close function closes the tab.
func openChromedpPage(session *Session, userAgent string) (page, func(), error) {
	tabCtx, cancel, err := session.newTab()
	if err != nil {
		return nil, nil, err
	}
	idle := newIdleWatcher()
	chromedp.ListenTarget(tabCtx, idle.handle)

	setup := chromedp.ActionFunc(func(ctx context.Context) error {
		if err := network.Enable().Do(ctx); err != nil {
			return fmt.Errorf("enable network domain: %w", err)
		}
		if userAgent != "" {
			if err := emulation.SetUserAgentOverride(userAgent).Do(ctx); err != nil {
				return fmt.Errorf("set user-agent: %w", err)
			}
		}
		return nil
	})
	if err := chromedp.Run(tabCtx, setup); err != nil {
		cancel()
		return nil, nil, fmt.Errorf("prepare tab: %w", err)
	}
	return &chromedpPage{tabCtx: tabCtx, idle: idle}, cancel, nil
}

// run executes actions on the tab bounded by ctx's deadline and cancellation.
func (p *chromedpPage) run(ctx context.Context, actions ...chromedp.Action) error {
	runCtx, cancel := p.scoped(ctx)
	defer cancel()
	return chromedp.Run(runCtx, actions...)
}

// scoped derives a context from the tab that also ends when ctx ends.
func (p *chromedpPage) scoped(ctx context.Context) (context.Context, context.CancelFunc) {
	var (
		runCtx context.Context
		cancel context.CancelFunc
	)
	if deadline, ok := ctx.Deadline(); ok {
		runCtx, cancel = context.WithDeadline(p.tabCtx, deadline)
	} else {
		runCtx, cancel = context.WithCancel(p.tabCtx)
	}
	stop := forwardCancel(ctx, cancel)
	return runCtx, func() {
		stop()
		cancel()
	}
}

func (p *chromedpPage) Navigate(ctx context.Context, url string) error {
	p.idle.touch()
	return p.run(ctx, chromedp.Navigate(url))
}

func (p *chromedpPage) WaitPresent(ctx context.Context, selector string) error {
	return p.run(ctx, chromedp.WaitReady(selector, chromedp.ByQuery))
}

func (p *chromedpPage) SetValue(ctx context.Context, selector, value string) error {
	return p.run(ctx, chromedp.SetValue(selector, value, chromedp.ByQuery))
}

func (p *chromedpPage) Click(ctx context.Context, selector string) error {
	return p.run(ctx, chromedp.Click(selector, chromedp.ByQuery))
}

func (p *chromedpPage) MarkActivity() {
	p.idle.touch()
}

func (p *chromedpPage) WaitIdle(ctx context.Context, quiet time.Duration) error {
	return p.idle.wait(ctx, quiet)
}

func (p *chromedpPage) HTML(ctx context.Context) (string, error) {
	var html string
	if err := p.run(ctx, chromedp.OuterHTML("html", &html, chromedp.ByQuery)); err != nil {
		return "", err
	}
	return html, nil
}

func forwardCancel(parent context.Context, cancel context.CancelFunc) func() {
	if parent == nil {
		return func() {}
	}
	done := make(chan struct{})
	go func() {
		select {
		case <-parent.Done():
			cancel()
		case <-done:
		}
	}()
	return func() { close(done) }
}
