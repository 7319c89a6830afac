package schedule

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
	"go.uber.org/zap/zaptest/observer"
)

func TestAddRejectsBadSpec(t *testing.T) {
	t.Parallel()
	s := New(time.UTC, nil)
	err := s.Add(context.Background(), "scrape", "not a spec", func(context.Context) error { return nil })
	require.ErrorContains(t, err, "schedule scrape")
}

func TestRunFiresJobsUntilCanceled(t *testing.T) {
	t.Parallel()
	s := New(time.UTC, nil)
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	fired := make(chan struct{}, 4)
	require.NoError(t, s.Add(ctx, "tick", "@every 1s", func(context.Context) error {
		select {
		case fired <- struct{}{}:
		default:
		}
		return nil
	}))

	done := make(chan struct{})
	go func() {
		s.Run(ctx)
		close(done)
	}()

	select {
	case <-fired:
	case <-time.After(3 * time.Second):
		t.Fatal("job never fired")
	}
	cancel()
	select {
	case <-done:
	case <-time.After(3 * time.Second):
		t.Fatal("Run did not return after cancel")
	}
}

func TestCronLoggerForwardsToZap(t *testing.T) {
	t.Parallel()
	core, logs := observer.New(zap.DebugLevel)
	l := cronLogger{logger: zap.New(core)}

	l.Info("schedule", "entry", 1, "next", "soon")
	l.Error(errors.New("boom"), "panic", "job", "scrape")

	entries := logs.All()
	require.Len(t, entries, 2)
	require.Equal(t, "schedule", entries[0].Message)
	require.Equal(t, map[string]any{"entry": int64(1), "next": "soon"}, entries[0].ContextMap())
	require.Equal(t, "boom", entries[1].ContextMap()["error"])
}
