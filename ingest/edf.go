package ingest

import (
	"fmt"
	"io"
	"math"
	"strconv"
	"strings"
	"time"

	"github.com/OpenPSG/edf"
)

// edfMeta holds the header fields the ingest layer needs up front. The edf
// package parses the full header but does not export it, so these are read
// directly from the fixed-layout header before the stream is handed back to
// the library for sample decoding.
type edfMeta struct {
	start            time.Time
	dataRecords      int
	recordDuration   time.Duration
	labels           []string
	samplesPerRecord []int
}

func readEDFMeta(r io.ReadSeeker) (*edfMeta, error) {
	if _, err := r.Seek(0, io.SeekStart); err != nil {
		return nil, err
	}
	fixed := make([]byte, 256)
	if _, err := io.ReadFull(r, fixed); err != nil {
		return nil, fmt.Errorf("read fixed header: %w", err)
	}

	field := func(lo, hi int) string { return strings.TrimSpace(string(fixed[lo:hi])) }

	startDate, err := time.Parse("02.01.06", field(168, 176))
	if err != nil {
		return nil, fmt.Errorf("parse start date: %w", err)
	}
	startClock, err := time.Parse("15.04.05", field(176, 184))
	if err != nil {
		return nil, fmt.Errorf("parse start time: %w", err)
	}
	meta := &edfMeta{
		start: time.Date(startDate.Year(), startDate.Month(), startDate.Day(),
			startClock.Hour(), startClock.Minute(), startClock.Second(), 0, time.UTC),
	}

	if meta.dataRecords, err = strconv.Atoi(field(236, 244)); err != nil {
		return nil, fmt.Errorf("parse record count: %w", err)
	}
	if meta.recordDuration, err = time.ParseDuration(field(244, 252) + "s"); err != nil {
		return nil, fmt.Errorf("parse record duration: %w", err)
	}
	signalCount, err := strconv.Atoi(field(252, 256))
	if err != nil {
		return nil, fmt.Errorf("parse signal count: %w", err)
	}
	if signalCount <= 0 {
		return nil, fmt.Errorf("header declares %d signals", signalCount)
	}

	// Per-signal fields are stored column-major after the fixed header:
	// 16-byte labels first, then the calibration blocks, with the 8-byte
	// samples-per-record column at offset 216 per signal.
	labels := make([]byte, 16*signalCount)
	if _, err := io.ReadFull(r, labels); err != nil {
		return nil, fmt.Errorf("read signal labels: %w", err)
	}
	meta.labels = make([]string, signalCount)
	for i := range meta.labels {
		meta.labels[i] = strings.TrimSpace(string(labels[i*16 : (i+1)*16]))
	}

	if _, err := r.Seek(int64(256+216*signalCount), io.SeekStart); err != nil {
		return nil, err
	}
	spr := make([]byte, 8*signalCount)
	if _, err := io.ReadFull(r, spr); err != nil {
		return nil, fmt.Errorf("read samples-per-record column: %w", err)
	}
	meta.samplesPerRecord = make([]int, signalCount)
	for i := range meta.samplesPerRecord {
		v, err := strconv.Atoi(strings.TrimSpace(string(spr[i*8 : (i+1)*8])))
		if err != nil {
			return nil, fmt.Errorf("parse samples-per-record for signal %d: %w", i, err)
		}
		meta.samplesPerRecord[i] = v
	}
	return meta, nil
}

// ReadEDF loads an EDF recording into the pipeline's shape contract. All
// signals must share one sample rate; mixed-rate recordings are not supported
// by the pruning pipeline. The timestamp table is derived from the header
// start time at the common rate. Events live in a sidecar (see ReadEvents);
// EDF+ annotation channels are not consumed here.
func ReadEDF(r io.ReadSeeker, name string) (*Recording, error) {
	meta, err := readEDFMeta(r)
	if err != nil {
		return nil, fmt.Errorf("EDF header: %w", err)
	}
	if meta.dataRecords < 0 {
		return nil, fmt.Errorf("EDF header does not declare its record count")
	}
	recordSec := meta.recordDuration.Seconds()
	if recordSec <= 0 {
		return nil, fmt.Errorf("non-positive data record duration %s", meta.recordDuration)
	}
	rate := float64(meta.samplesPerRecord[0]) / recordSec
	for i, spr := range meta.samplesPerRecord {
		if got := float64(spr) / recordSec; got != rate {
			return nil, fmt.Errorf("signal %d (%s) runs at %g Hz, signal 0 at %g Hz: mixed rates unsupported", i, meta.labels[i], got, rate)
		}
	}

	if _, err := r.Seek(0, io.SeekStart); err != nil {
		return nil, err
	}
	er, err := edf.Open(r)
	if err != nil {
		return nil, fmt.Errorf("open EDF: %w", err)
	}

	n := meta.dataRecords * meta.samplesPerRecord[0]
	data := make([][]float64, len(meta.labels))
	for i := range meta.labels {
		sr, err := er.Signal(i)
		if err != nil {
			return nil, fmt.Errorf("signal %d (%s): %w", i, meta.labels[i], err)
		}
		buf := make([]float64, n)
		if read, err := sr.Read(buf); err != nil {
			return nil, fmt.Errorf("read signal %d (%s) after %d samples: %w", i, meta.labels[i], read, err)
		}
		data[i] = buf
	}

	timestamps := make([]time.Time, n)
	for i := range timestamps {
		timestamps[i] = meta.start.Add(time.Duration(float64(i) / rate * float64(time.Second)))
	}

	return &Recording{
		Name:          name,
		Rate:          rate,
		ChannelLabels: meta.labels,
		Data:          data,
		Timestamps:    timestamps,
	}, nil
}

// WriteEDF persists a pruned recording as a plain EDF file. One data record
// per second; a trailing partial record is zero-padded so the fixed record
// size holds. Physical calibration ranges are taken from the observed channel
// extrema.
func WriteEDF(w io.WriteSeeker, rec *Recording) error {
	samplesPerRecord := int(math.Round(rec.Rate))
	if samplesPerRecord <= 0 || float64(samplesPerRecord) != rec.Rate {
		return fmt.Errorf("sample rate %g Hz cannot form one-second records", rec.Rate)
	}

	signals := make([]edf.Signal, len(rec.Data))
	for i := range rec.Data {
		label := fmt.Sprintf("ch%d", i)
		if i < len(rec.ChannelLabels) && rec.ChannelLabels[i] != "" {
			label = rec.ChannelLabels[i]
		}
		pmin, pmax := channelExtrema(rec.Data[i])
		signals[i] = edf.Signal{
			Label:             label,
			PhysicalDimension: "uV",
			PhysicalMin:       pmin,
			PhysicalMax:       pmax,
			DigitalMin:        -32768,
			DigitalMax:        32767,
			SamplesPerRecord:  samplesPerRecord,
		}
	}

	start := time.Now().UTC()
	if len(rec.Timestamps) > 0 {
		start = rec.Timestamps[0]
	}
	hdr := edf.Header{
		Version:            edf.Version0,
		RecordingID:        rec.Name,
		StartTime:          start,
		DataRecordDuration: time.Second,
		SignalCount:        len(signals),
		Signals:            signals,
	}

	ew, err := edf.Create(w, hdr)
	if err != nil {
		return fmt.Errorf("create EDF: %w", err)
	}

	n := rec.SampleCount()
	for off := 0; off < n; off += samplesPerRecord {
		record := make([][]float64, len(rec.Data))
		for c := range rec.Data {
			chunk := make([]float64, samplesPerRecord)
			copy(chunk, rec.Data[c][off:min(off+samplesPerRecord, n)])
			record[c] = chunk
		}
		if err := ew.WriteRecord(record); err != nil {
			return fmt.Errorf("write record at sample %d: %w", off, err)
		}
	}

	if err := ew.Close(); err != nil {
		return fmt.Errorf("finalize EDF: %w", err)
	}
	return nil
}

func channelExtrema(samples []float64) (float64, float64) {
	pmin, pmax := math.Inf(1), math.Inf(-1)
	for _, v := range samples {
		if math.IsNaN(v) {
			continue
		}
		if v < pmin {
			pmin = v
		}
		if v > pmax {
			pmax = v
		}
	}
	if pmin > pmax {
		return -1, 1
	}
	if pmin == pmax {
		// Flat channel; widen so the calibration slope is nonzero.
		return pmin - 1, pmax + 1
	}
	return pmin, pmax
}
