package cnc

import (
	"encoding/csv"
	"errors"
	"fmt"
	"io"
	"os"
	"strconv"
	"strings"
)

// LoadWaveformCSV reads one column of a CSV file as waveform samples.
// Column is zero based. Rows whose cell does not parse as a number, such
// as a header row, are skipped.
func LoadWaveformCSV(path string, column int) ([]float32, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrMalformedParameters, err)
	}
	defer f.Close()
	return ReadWaveformCSV(f, column)
}

// ReadWaveformCSV is LoadWaveformCSV over a reader.
func ReadWaveformCSV(r io.Reader, column int) ([]float32, error) {
	if column < 0 {
		return nil, fmt.Errorf("%w: negative column %d", ErrMalformedParameters, column)
	}
	cr := csv.NewReader(r)
	cr.FieldsPerRecord = -1
	cr.TrimLeadingSpace = true

	var samples []float32
	for line := 1; ; line++ {
		rec, err := cr.Read()
		if errors.Is(err, io.EOF) {
			break
		}
		if err != nil {
			return nil, fmt.Errorf("%w: %v", ErrMalformedParameters, err)
		}
		if column >= len(rec) {
			return nil, fmt.Errorf("%w: line %d has no column %d", ErrMalformedParameters, line, column)
		}
		v, err := strconv.ParseFloat(strings.TrimSpace(rec[column]), 32)
		if err != nil {
			continue
		}
		samples = append(samples, float32(v))
	}
	if len(samples) == 0 {
		return nil, fmt.Errorf("%w: no samples in column %d", ErrMalformedParameters, column)
	}
	return samples, nil
}
