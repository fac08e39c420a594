package main

import (
	"encoding/csv"
	"fmt"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"time"

	"github.com/malbeclabs/roadmatch/pkg/matcher"
)

// writeResults emits the matched-links file, the per-trace summary, and
// the unmatchable-ping report when ping classification is enabled.
func writeResults(dir string, params matcher.Parameters, results []*matcher.Result) error {
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return fmt.Errorf("failed to create output dir: %w", err)
	}

	if err := writeLinks(filepath.Join(dir, "matched_links.csv"), results); err != nil {
		return err
	}
	if err := writeSummary(filepath.Join(dir, "summary.csv"), results); err != nil {
		return err
	}
	if params.MapMatching.KeepPingClassification {
		if err := writeUnmatchable(filepath.Join(dir, "unmatchable_pings.csv"), results); err != nil {
			return err
		}
	}
	return nil
}

func writeLinks(path string, results []*matcher.Result) error {
	return writeCSV(path, []string{"trace_id", "seq", "link_id", "direction", "milepost"}, func(w *csv.Writer) error {
		for _, r := range results {
			for i, link := range r.Links {
				record := []string{
					strconv.FormatInt(r.TraceID, 10),
					strconv.Itoa(i + 1),
					strconv.FormatInt(link, 10),
					strconv.Itoa(int(r.Directions[i])),
					strconv.FormatFloat(r.Mileposts[i], 'f', 2, 64),
				}
				if err := w.Write(record); err != nil {
					return err
				}
			}
		}
		return nil
	})
}

func writeSummary(path string, results []*matcher.Result) error {
	header := []string{
		"trace_id", "success", "state", "match_quality", "match_quality_raw",
		"waypoints_added", "match_seconds", "errors",
	}
	return writeCSV(path, header, func(w *csv.Writer) error {
		for _, r := range results {
			record := []string{
				strconv.FormatInt(r.TraceID, 10),
				strconv.Itoa(r.Success),
				r.State.String(),
				strconv.FormatFloat(r.MatchQuality, 'f', 4, 64),
				strconv.FormatFloat(r.MatchQualityRaw, 'f', 4, 64),
				strconv.Itoa(r.WaypointsAdded),
				strconv.FormatFloat(r.MatchSeconds, 'f', 3, 64),
				strings.Join(r.Errors, "; "),
			}
			if err := w.Write(record); err != nil {
				return err
			}
		}
		return nil
	})
}

func writeUnmatchable(path string, results []*matcher.Result) error {
	return writeCSV(path, []string{"trace_id", "ping_id", "timestamp", "position"}, func(w *csv.Writer) error {
		for _, r := range results {
			for _, u := range r.Unmatchable {
				record := []string{
					strconv.FormatInt(u.TraceID, 10),
					strconv.Itoa(u.PingID),
					u.Timestamp.UTC().Format(time.RFC3339),
					u.Position,
				}
				if err := w.Write(record); err != nil {
					return err
				}
			}
		}
		return nil
	})
}

func writeCSV(path string, header []string, body func(w *csv.Writer) error) error {
	f, err := os.Create(path)
	if err != nil {
		return fmt.Errorf("failed to create %s: %w", path, err)
	}
	defer f.Close()

	w := csv.NewWriter(f)
	if err := w.Write(header); err != nil {
		return err
	}
	if err := body(w); err != nil {
		return err
	}
	w.Flush()
	return w.Error()
}
