package harvest

import (
	"errors"
	"fmt"
	"testing"
	"time"

	"github.com/stretchr/testify/require"
)

func TestRecordPinOverridesIdentity(t *testing.T) {
	t.Parallel()

	rec := NewRecord(time.Date(2024, time.June, 1, 0, 0, 0, 0, time.UTC), time.Now())
	rec.Pin(time.Date(2023, time.July, 2, 15, 30, 0, 0, time.UTC))

	require.Equal(t, "07-02-2023", rec.RunDate)
	require.Equal(t, 2023, rec.Season)
	day, err := rec.Day()
	require.NoError(t, err)
	require.Equal(t, 2023, day.Year())
}

func TestRecordAddDistrictRejectsDuplicates(t *testing.T) {
	t.Parallel()

	rec := NewRecord(time.Now(), time.Now())
	require.True(t, rec.AddDistrict(DistrictObservation{ID: "egegik", CatchDaily: 1}))
	require.False(t, rec.AddDistrict(DistrictObservation{ID: "egegik", CatchDaily: 2}))
	require.Len(t, rec.Districts, 1)
	require.Equal(t, float64(1), rec.Districts[0].CatchDaily)

	require.True(t, rec.AddRiver(RiverObservation{Name: "Kvichak"}))
	require.False(t, rec.AddRiver(RiverObservation{Name: "Kvichak"}))
}

func TestExtractErrorUnwraps(t *testing.T) {
	t.Parallel()

	err := fmt.Errorf("fetch: %w", &ExtractError{RunDate: "06-18-2024", Step: StepLocateControl, Err: ErrControlNotFound})
	require.True(t, errors.Is(err, ErrControlNotFound))

	var extractErr *ExtractError
	require.True(t, errors.As(err, &extractErr))
	require.Equal(t, StepLocateControl, extractErr.Step)
	require.Contains(t, err.Error(), "locate_control")
}

func TestCheckedDayRejectsSeasonMismatch(t *testing.T) {
	t.Parallel()

	rec := NewRecord(time.Date(2024, time.June, 18, 0, 0, 0, 0, time.UTC), time.Now())
	day, err := rec.CheckedDay()
	require.NoError(t, err)
	require.Equal(t, 2024, day.Year())

	rec.Season = 2023
	_, err = rec.CheckedDay()
	require.ErrorIs(t, err, ErrSeasonMismatch)
	require.Contains(t, err.Error(), "06-18-2024")
}
