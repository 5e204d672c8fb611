package ingest

import (
	"math"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/require"
)

func TestEDFRoundTrip(t *testing.T) {
	f, err := os.OpenFile(filepath.Join(t.TempDir(), "night1.edf"), os.O_RDWR|os.O_CREATE, 0o644)
	require.NoError(t, err)
	t.Cleanup(func() {
		require.NoError(t, f.Close())
	})

	const rate = 10.0
	const n = 30 // whole seconds so the record grid divides evenly
	start := time.Date(2024, 3, 1, 22, 30, 0, 0, time.UTC)

	rec := &Recording{
		Name:          "night1",
		Rate:          rate,
		ChannelLabels: []string{"EEG Fpz-Cz", "EEG Pz-Oz"},
		Data:          [][]float64{make([]float64, n), make([]float64, n)},
		Timestamps:    make([]time.Time, n),
	}
	for i := 0; i < n; i++ {
		rec.Data[0][i] = 50 * math.Sin(float64(i)/5)
		rec.Data[1][i] = float64(i) - 15
		rec.Timestamps[i] = start.Add(time.Duration(i) * 100 * time.Millisecond)
	}

	require.NoError(t, WriteEDF(f, rec))

	got, err := ReadEDF(f, "night1")
	require.NoError(t, err)

	require.Equal(t, rate, got.Rate)
	require.Equal(t, rec.ChannelLabels, got.ChannelLabels)
	require.Equal(t, n, got.SampleCount())
	require.True(t, got.Timestamps[0].Equal(start))
	require.True(t, got.Timestamps[10].Equal(start.Add(time.Second)))

	// 16-bit quantization over the observed physical range.
	for c := range rec.Data {
		for i := range rec.Data[c] {
			require.InDelta(t, rec.Data[c][i], got.Data[c][i], 0.01, "channel %d sample %d", c, i)
		}
	}
}

func TestWriteEDFRejectsFractionalRate(t *testing.T) {
	f, err := os.OpenFile(filepath.Join(t.TempDir(), "bad.edf"), os.O_RDWR|os.O_CREATE, 0o644)
	require.NoError(t, err)
	t.Cleanup(func() {
		require.NoError(t, f.Close())
	})

	rec := &Recording{
		Name: "bad",
		Rate: 10.5,
		Data: [][]float64{make([]float64, 21)},
	}
	require.Error(t, WriteEDF(f, rec))
}

func TestChannelExtrema(t *testing.T) {
	pmin, pmax := channelExtrema([]float64{3, math.NaN(), -2, 7})
	require.Equal(t, -2.0, pmin)
	require.Equal(t, 7.0, pmax)

	// Flat channel gets an artificial slope.
	pmin, pmax = channelExtrema([]float64{5, 5, 5})
	require.Less(t, pmin, pmax)

	// All-NaN channel falls back to a unit range.
	pmin, pmax = channelExtrema([]float64{math.NaN()})
	require.Equal(t, -1.0, pmin)
	require.Equal(t, 1.0, pmax)
}
