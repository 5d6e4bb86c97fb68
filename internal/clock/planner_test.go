package clock

import (
	"testing"
	"time"

	"github.com/stretchr/testify/require"
)

func TestPlanLength(t *testing.T) {
	now := time.Date(2026, 7, 30, 12, 7, 0, 0, time.UTC)
	w, err := Plan(now, 2, 56, 15)
	require.NoError(t, err)
	require.Equal(t, 56*96, len(w.Instants))
}

func TestPlanBoundaries(t *testing.T) {
	now := time.Date(2026, 7, 30, 12, 7, 0, 0, time.UTC)
	w, err := Plan(now, 2, 2, 15)
	require.NoError(t, err)
	require.Equal(t, w.Start, w.Instants[0].UTCTime)
	require.Equal(t, w.End, w.Instants[len(w.Instants)-1].UTCTime)
	// windowEnd must be quantized to a 15-minute boundary.
	require.Equal(t, 0, w.End.Minute()%15)
	require.Equal(t, 0, w.End.Second())
	// safeDelay of 2 days means windowEnd <= now-48h.
	require.True(t, !w.End.After(now.Add(-48*time.Hour)))
}

func TestPlanOldestFirst(t *testing.T) {
	now := time.Date(2026, 7, 30, 0, 0, 0, 0, time.UTC)
	w, err := Plan(now, 2, 2, 15)
	require.NoError(t, err)
	for i := 1; i < len(w.Instants); i++ {
		require.True(t, w.Instants[i].UTCTime.After(w.Instants[i-1].UTCTime))
		require.Equal(t, i, w.Instants[i].WindowIndex)
	}
}

func TestPlanInvalidInterval(t *testing.T) {
	_, err := Plan(time.Now(), 2, 2, 13)
	require.Error(t, err)
}

func TestPlanIdempotentKeys(t *testing.T) {
	now := time.Date(2026, 7, 30, 12, 7, 0, 0, time.UTC)
	w1, err := Plan(now, 2, 2, 15)
	require.NoError(t, err)
	w2, err := Plan(now.Add(3*time.Minute), 2, 2, 15)
	require.NoError(t, err)
	require.Equal(t, w1.End, w2.End)
}
