package memory

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"github.com/JakeFAU/salmon-harvest-scraper/internal/harvest"
)

func TestBlobStoreReplacesPageOnRescrape(t *testing.T) {
	t.Parallel()
	store := NewBlobStore("pages")
	rec := harvest.NewRecord(time.Date(2024, time.June, 18, 0, 0, 0, 0, time.UTC), time.Now())

	uri, err := store.PutPage(context.Background(), rec, "<html>first</html>")
	require.NoError(t, err)
	require.Equal(t, "memory://pages/2024/06-18-2024.html", uri)
	_, err = store.PutPage(context.Background(), rec, "<html>second</html>")
	require.NoError(t, err)

	got, ok := store.Get("pages/2024/06-18-2024.html")
	require.True(t, ok)
	require.Equal(t, "<html>second</html>", string(got))
	require.Equal(t, []string{"pages/2024/06-18-2024.html"}, store.Paths())

	rec.RunDate = "bad"
	_, err = store.PutPage(context.Background(), rec, "<html></html>")
	require.Error(t, err)
	require.Len(t, store.Paths(), 1)
}
