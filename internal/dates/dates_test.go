package dates_test

import (
	"testing"
	"time"

	"github.com/rpggio/blossom/internal/dates"
	"github.com/rpggio/blossom/internal/errs"
	"github.com/stretchr/testify/require"
)

func TestParse_Valid(t *testing.T) {
	got, err := dates.Parse("2030-01-01")
	require.NoError(t, err)
	require.Equal(t, time.Date(2030, 1, 1, 0, 0, 0, 0, time.UTC), got)
}

func TestParse_Invalid(t *testing.T) {
	for _, in := range []string{"", "2030-1-01", "01/01/2030", "2030-13-01", "2030-02-30", "2030-01-01T00:00:00Z"} {
		_, err := dates.Parse(in)
		require.ErrorIs(t, err, errs.ErrInvalidArgument, in)
	}
}

func TestFormat_UsesUTC(t *testing.T) {
	loc := time.FixedZone("east", 10*60*60)
	ts := time.Date(2024, 3, 1, 5, 0, 0, 0, loc)
	require.Equal(t, "2024-02-29", dates.Format(ts))
}

func TestAddYears(t *testing.T) {
	ts := time.Date(2024, 6, 15, 12, 30, 0, 0, time.UTC)
	require.Equal(t, "2025-06-15", dates.Format(dates.AddYears(ts, 1)))

	leap := time.Date(2024, 2, 29, 0, 0, 0, 0, time.UTC)
	require.Equal(t, "2025-02-28", dates.Format(dates.AddYears(leap, 1)))
	require.Equal(t, "2028-02-29", dates.Format(dates.AddYears(leap, 4)))

	noon := time.Date(2024, 2, 29, 12, 30, 0, 0, time.UTC)
	require.Equal(t, time.Date(2027, 2, 28, 12, 30, 0, 0, time.UTC), dates.AddYears(noon, 3))
}

func TestExpired(t *testing.T) {
	now := time.Date(2025, 6, 15, 9, 0, 0, 0, time.UTC)

	expired, err := dates.Expired("2025-06-14", now)
	require.NoError(t, err)
	require.True(t, expired)

	expired, err = dates.Expired("2025-06-15", now)
	require.NoError(t, err)
	require.False(t, expired)

	_, err = dates.Expired("soon", now)
	require.ErrorIs(t, err, errs.ErrInvalidArgument)
}
