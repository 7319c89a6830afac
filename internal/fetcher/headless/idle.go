package headless

import (
	"context"
	"sync"
	"time"

	"github.com/chromedp/cdproto/network"
)

const idlePollInterval = 50 * time.Millisecond

// idleWatcher tracks in-flight requests of a tab so callers can wait until the
// network has been quiet for a while.
type idleWatcher struct {
	mu       sync.Mutex
	inflight map[network.RequestID]struct{}
	lastSeen time.Time
	now      func() time.Time
}

func newIdleWatcher() *idleWatcher {
	return &idleWatcher{
		inflight: make(map[network.RequestID]struct{}),
		lastSeen: time.Now(),
		now:      time.Now,
	}
}

// handle is registered with chromedp.ListenTarget. It must not block.
func (w *idleWatcher) handle(ev any) {
	switch e := ev.(type) {
	case *network.EventRequestWillBeSent:
		w.started(e.RequestID)
	case *network.EventLoadingFinished:
		w.finished(e.RequestID)
	case *network.EventLoadingFailed:
		w.finished(e.RequestID)
	}
}

func (w *idleWatcher) started(id network.RequestID) {
	w.mu.Lock()
	w.inflight[id] = struct{}{}
	w.lastSeen = w.now()
	w.mu.Unlock()
}

func (w *idleWatcher) finished(id network.RequestID) {
	w.mu.Lock()
	delete(w.inflight, id)
	w.lastSeen = w.now()
	w.mu.Unlock()
}

// touch marks activity now, so a wait that starts together with a form submit
// cannot succeed before the submit's own requests show up.
func (w *idleWatcher) touch() {
	w.mu.Lock()
	w.lastSeen = w.now()
	w.mu.Unlock()
}

func (w *idleWatcher) idleFor(quiet time.Duration) bool {
	w.mu.Lock()
	defer w.mu.Unlock()
	return len(w.inflight) == 0 && w.now().Sub(w.lastSeen) >= quiet
}

// wait blocks until no request has been in flight for quiet, or ctx ends.
func (w *idleWatcher) wait(ctx context.Context, quiet time.Duration) error {
	ticker := time.NewTicker(idlePollInterval)
	defer ticker.Stop()
	for {
		if w.idleFor(quiet) {
			return nil
		}
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-ticker.C:
		}
	}
}
