package ingest

import (
	"bytes"
	"strings"
	"testing"

	"github.com/sleepmetrics/eegprune"
	"github.com/stretchr/testify/require"
)

func TestEventSidecarRoundTrip(t *testing.T) {
	events := []eegprune.Event{
		{Type: eegprune.EventSleepStage, Latency: 0, Stage: 2},
		{Type: eegprune.EventStimStart, Latency: 450, ProtoType: 1, Stage: eegprune.StageUnknown},
		{Type: eegprune.EventStimEnd, Latency: 600, ProtoType: 1, Stage: eegprune.StageUnknown},
	}

	var buf bytes.Buffer
	require.NoError(t, WriteEvents(&buf, events))

	got, err := ReadEvents(&buf, 1000)
	require.NoError(t, err)
	require.Len(t, got, 3)
	require.Equal(t, eegprune.EventSleepStage, got[0].Type)
	require.Equal(t, 2, got[0].Stage)
	require.Equal(t, 450, got[1].Latency)
	require.Equal(t, 1, got[1].ProtoType)
}

func TestReadEventsRejectsUnknownType(t *testing.T) {
	_, err := ReadEvents(strings.NewReader(`[{"type":"espresso","latency":3}]`), 100)
	require.ErrorContains(t, err, "unknown type")
}

func TestReadEventsRejectsOutOfRangeLatency(t *testing.T) {
	_, err := ReadEvents(strings.NewReader(`[{"type":"marker","latency":100}]`), 100)
	require.ErrorContains(t, err, "outside recording")
}

func TestReadEventsUnparseableStageScoresUnknown(t *testing.T) {
	got, err := ReadEvents(strings.NewReader(`[{"type":"sleep stage","latency":0,"code":"REM?"}]`), 100)
	require.NoError(t, err)
	require.Len(t, got, 1)
	require.Equal(t, eegprune.StageUnknown, got[0].Stage)
}
