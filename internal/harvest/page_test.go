package harvest

import (
	"testing"
	"time"

	"github.com/stretchr/testify/require"
)

func TestPageKey(t *testing.T) {
	t.Parallel()
	rec := NewRecord(time.Date(2024, time.June, 18, 0, 0, 0, 0, time.UTC), time.Now())

	key, err := PageKey("pages", rec)
	require.NoError(t, err)
	require.Equal(t, "pages/2024/06-18-2024.html", key)

	key, err = PageKey("", rec)
	require.NoError(t, err)
	require.Equal(t, "2024/06-18-2024.html", key)

	rec.RunDate = "../06-18-2024"
	_, err = PageKey("pages", rec)
	require.Error(t, err)

	rec = NewRecord(time.Date(2024, time.June, 18, 0, 0, 0, 0, time.UTC), time.Now())
	rec.Season = 2023
	_, err = PageKey("pages", rec)
	require.ErrorIs(t, err, ErrSeasonMismatch)
}
