package ingest

import (
	"math"
	"testing"
	"time"

	"github.com/stretchr/testify/require"
	"github.com/tormoder/fit"
)

func TestFITSentinelsMapToMissing(t *testing.T) {
	rec := &fit.RecordMsg{
		HeartRate: math.MaxUint8,
		Power:     250,
		Cadence:   80,
	}

	_, ok := fitHeartRate(rec)
	require.False(t, ok, "all-ones heart rate is a dropout, not 255 bpm")

	power, ok := fitPower(rec)
	require.True(t, ok)
	require.Equal(t, 250.0, power)

	cadence, ok := fitCadence(rec)
	require.True(t, ok)
	require.Equal(t, 80.0, cadence)
}

func TestValueOrNaN(t *testing.T) {
	require.True(t, math.IsNaN(valueOrNaN(0, false)))
	require.Equal(t, 42.0, valueOrNaN(42, true))
}

func TestSampleIndexAt(t *testing.T) {
	base := time.Date(2024, 3, 1, 22, 30, 0, 0, time.UTC)
	timestamps := []time.Time{base, base.Add(time.Second), base.Add(2 * time.Second)}

	idx, ok := sampleIndexAt(timestamps, base.Add(1500*time.Millisecond))
	require.True(t, ok)
	require.Equal(t, 2, idx)

	_, ok = sampleIndexAt(timestamps, base.Add(time.Minute))
	require.False(t, ok)
}
