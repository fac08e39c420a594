package trace

import (
	"encoding/csv"
	"errors"
	"fmt"
	"io"
	"os"
	"strconv"
	"time"
)

// ErrMissingTraceID is returned when the input lacks a trace_id column.
var ErrMissingTraceID = errors.New("input does not have field trace_id")

// Raw is the raw ping set of one trace_id, in file order.
type Raw struct {
	ID    int64
	Pings []RawPing
}

// LoadCSV reads GPS traces from a CSV file with columns trace_id,
// timestamp, longitude, latitude (order free, extra columns ignored).
// Timestamps are unix seconds or RFC 3339. Coordinates are WGS84 degrees.
// Traces are returned in order of first appearance.
func LoadCSV(path string) ([]Raw, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("failed to open traces file: %w", err)
	}
	defer f.Close()
	return ReadCSV(f)
}

func ReadCSV(r io.Reader) ([]Raw, error) {
	cr := csv.NewReader(r)
	cr.TrimLeadingSpace = true

	header, err := cr.Read()
	if err != nil {
		return nil, fmt.Errorf("failed to read header: %w", err)
	}
	col := map[string]int{}
	for i, name := range header {
		col[name] = i
	}
	if _, ok := col["trace_id"]; !ok {
		return nil, ErrMissingTraceID
	}
	for _, required := range []string{"timestamp", "longitude", "latitude"} {
		if _, ok := col[required]; !ok {
			return nil, fmt.Errorf("input does not have field %s", required)
		}
	}

	byID := map[int64]int{}
	var out []Raw
	line := 1
	for {
		record, err := cr.Read()
		if errors.Is(err, io.EOF) {
			break
		}
		if err != nil {
			return nil, fmt.Errorf("failed to read record: %w", err)
		}
		line++

		traceID, err := strconv.ParseInt(record[col["trace_id"]], 10, 64)
		if err != nil {
			return nil, fmt.Errorf("line %d: bad trace_id %q", line, record[col["trace_id"]])
		}
		ts, err := parseTimestamp(record[col["timestamp"]])
		if err != nil {
			return nil, fmt.Errorf("line %d: %w", line, err)
		}
		lon, err := strconv.ParseFloat(record[col["longitude"]], 64)
		if err != nil {
			return nil, fmt.Errorf("line %d: bad longitude %q", line, record[col["longitude"]])
		}
		lat, err := strconv.ParseFloat(record[col["latitude"]], 64)
		if err != nil {
			return nil, fmt.Errorf("line %d: bad latitude %q", line, record[col["latitude"]])
		}

		idx, ok := byID[traceID]
		if !ok {
			idx = len(out)
			byID[traceID] = idx
			out = append(out, Raw{ID: traceID})
		}
		out[idx].Pings = append(out[idx].Pings, RawPing{
			TraceID:   traceID,
			Timestamp: ts,
			Lon:       lon,
			Lat:       lat,
		})
	}
	return out, nil
}

func parseTimestamp(s string) (time.Time, error) {
	if secs, err := strconv.ParseInt(s, 10, 64); err == nil {
		return time.Unix(secs, 0).UTC(), nil
	}
	if t, err := time.Parse(time.RFC3339, s); err == nil {
		return t.UTC(), nil
	}
	return time.Time{}, fmt.Errorf("bad timestamp %q", s)
}
