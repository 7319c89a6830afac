package headless

import (
	"context"
	"testing"
	"time"

	"github.com/chromedp/cdproto/network"
	"github.com/stretchr/testify/require"
)

func TestIdleWatcherTracksInflightRequests(t *testing.T) {
	t.Parallel()

	now := time.Unix(1000, 0)
	w := newIdleWatcher()
	w.now = func() time.Time { return now }
	w.touch()

	w.handle(&network.EventRequestWillBeSent{RequestID: "a"})
	w.handle(&network.EventRequestWillBeSent{RequestID: "b"})
	now = now.Add(time.Second)
	require.False(t, w.idleFor(500*time.Millisecond), "requests still in flight")

	w.handle(&network.EventLoadingFinished{RequestID: "a"})
	w.handle(&network.EventLoadingFailed{RequestID: "b"})
	require.False(t, w.idleFor(500*time.Millisecond), "quiet period not yet elapsed")

	now = now.Add(600 * time.Millisecond)
	require.True(t, w.idleFor(500*time.Millisecond))

	w.handle("unrelated event")
	require.True(t, w.idleFor(500*time.Millisecond))
}

func TestIdleWatcherWaitHonoursContext(t *testing.T) {
	t.Parallel()

	w := newIdleWatcher()
	w.handle(&network.EventRequestWillBeSent{RequestID: "stuck"})

	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Millisecond)
	defer cancel()
	require.ErrorIs(t, w.wait(ctx, time.Millisecond), context.DeadlineExceeded)
}

func TestIdleWatcherWaitReturnsWhenQuiet(t *testing.T) {
	t.Parallel()

	w := newIdleWatcher()
	ctx, cancel := context.WithTimeout(context.Background(), time.Second)
	defer cancel()
	require.NoError(t, w.wait(ctx, 10*time.Millisecond))
}
