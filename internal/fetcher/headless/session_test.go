package headless

import (
	"context"
	"testing"

	"github.com/stretchr/testify/require"
)

func TestOwnedSessionCloseIsIdempotent(t *testing.T) {
	t.Parallel()

	released := 0
	s := &Session{owned: true, release: func() { released++ }}
	require.True(t, s.Owned())
	s.Close()
	s.Close()
	require.Equal(t, 1, released)
}

func TestBorrowedSessionNeverReleases(t *testing.T) {
	t.Parallel()

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	s := Borrow(ctx)
	require.False(t, s.Owned())
	s.Close()
	require.NoError(t, ctx.Err(), "borrowed browser context must stay alive")
}

func TestNewTabWithoutBrowser(t *testing.T) {
	t.Parallel()

	var s *Session
	_, _, err := s.newTab()
	require.ErrorContains(t, err, "not open")
}
