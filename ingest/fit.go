package ingest

import (
	"fmt"
	"io"
	"math"
	"time"

	"github.com/sleepmetrics/eegprune"
	"github.com/tormoder/fit"
)

// FIT channel order in the Recording matrix.
var fitChannelLabels = []string{"heart_rate", "power", "cadence"}

// ReadFIT adapts an activity FIT file to the pipeline's shape contract:
// heart rate, power and cadence become channels at the device's nominal 1 Hz,
// with the FIT sentinel values (all-ones unsigned fields) mapped to NaN so
// the invalid-span detector treats dropouts the same way it treats EEG
// artifacts. Lap boundaries become generic markers.
func ReadFIT(r io.Reader, name string) (*Recording, error) {
	decoded, err := fit.Decode(r)
	if err != nil {
		return nil, fmt.Errorf("decode FIT file: %w", err)
	}
	activity, err := decoded.Activity()
	if err != nil {
		return nil, fmt.Errorf("activity FIT expected: %w", err)
	}

	var timestamps []time.Time
	data := make([][]float64, len(fitChannelLabels))
	for _, rec := range activity.Records {
		ts := rec.Timestamp
		if ts.IsZero() || fit.IsBaseTime(ts) {
			continue
		}
		if n := len(timestamps); n > 0 && !ts.After(timestamps[n-1]) {
			// Devices occasionally repeat a second; keep the first.
			continue
		}
		timestamps = append(timestamps, ts)

		hr, hasHR := fitHeartRate(rec)
		power, hasPower := fitPower(rec)
		cadence, hasCadence := fitCadence(rec)
		data[0] = append(data[0], valueOrNaN(hr, hasHR))
		data[1] = append(data[1], valueOrNaN(power, hasPower))
		data[2] = append(data[2], valueOrNaN(cadence, hasCadence))
	}
	if len(timestamps) == 0 {
		return nil, fmt.Errorf("FIT file has no timestamped records")
	}

	events := make([]eegprune.Event, 0, len(activity.Laps))
	for _, lap := range activity.Laps {
		start := lap.StartTime
		if start.IsZero() || fit.IsBaseTime(start) {
			continue
		}
		if idx, ok := sampleIndexAt(timestamps, start); ok {
			events = append(events, eegprune.Event{
				Type:    eegprune.EventGeneric,
				Latency: idx,
				Stage:   eegprune.StageUnknown,
			})
		}
	}

	return &Recording{
		Name:          name,
		Rate:          1, // FIT record messages are nominally once per second
		ChannelLabels: fitChannelLabels,
		Data:          data,
		Timestamps:    timestamps,
		Events:        events,
	}, nil
}

func fitHeartRate(rec *fit.RecordMsg) (float64, bool) {
	if rec.HeartRate == math.MaxUint8 {
		return 0, false
	}
	return float64(rec.HeartRate), true
}

func fitPower(rec *fit.RecordMsg) (float64, bool) {
	if rec.Power == math.MaxUint16 {
		return 0, false
	}
	return float64(rec.Power), true
}

func fitCadence(rec *fit.RecordMsg) (float64, bool) {
	cad256 := rec.GetCadence256Scaled()
	if !math.IsNaN(cad256) && cad256 > 0 {
		return cad256, true
	}
	if rec.Cadence == math.MaxUint8 {
		return 0, false
	}
	return float64(rec.Cadence), true
}

func valueOrNaN(v float64, ok bool) float64 {
	if !ok {
		return math.NaN()
	}
	return v
}

// sampleIndexAt finds the first sample at or after t.
func sampleIndexAt(timestamps []time.Time, t time.Time) (int, bool) {
	for i, ts := range timestamps {
		if !ts.Before(t) {
			return i, true
		}
	}
	return 0, false
}
