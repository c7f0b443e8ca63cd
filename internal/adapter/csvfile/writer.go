// Package csvfile writes per-station tables as delimited files plus a
// plain-text run summary, the layout the downstream analysis notebooks read.
package csvfile

import (
	"encoding/csv"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"strconv"

	"github.com/fjordsol/metharvest/internal/domain"
	"github.com/fjordsol/metharvest/internal/pipeline"
)

// timestampLayout is the fixed textual timestamp format of output files.
const timestampLayout = "2006-01-02 15:04:05"

// Writer persists station tables under a single output directory.
type Writer struct {
	dir       string
	delimiter rune
	logger    *slog.Logger
}

// NewWriter creates a writer rooted at dir. The directory is created on
// first write.
func NewWriter(dir string, delimiter rune, logger *slog.Logger) *Writer {
	return &Writer{
		dir:       dir,
		delimiter: delimiter,
		logger:    logger,
	}
}

// WriteStation writes one delimited file named <station>_hourly_data.csv:
// a timestamp column followed by one column per element. Absent values
// become empty cells, never zeros.
func (w *Writer) WriteStation(station domain.Station, columns []string, records []domain.MergedRecord) (string, error) {
	if err := os.MkdirAll(w.dir, 0o755); err != nil {
		return "", fmt.Errorf("create output dir: %w", err)
	}

	path := filepath.Join(w.dir, station.SafeName()+"_hourly_data.csv")
	f, err := os.Create(path)
	if err != nil {
		return "", fmt.Errorf("create %s: %w", path, err)
	}
	defer f.Close()

	cw := csv.NewWriter(f)
	cw.Comma = w.delimiter

	header := append([]string{"timestamp"}, columns...)
	if err := cw.Write(header); err != nil {
		return "", fmt.Errorf("write header: %w", err)
	}

	row := make([]string, len(header))
	for _, rec := range records {
		row[0] = rec.Timestamp.UTC().Format(timestampLayout)
		for i, col := range columns {
			if v, ok := rec.Values[col]; ok {
				row[i+1] = strconv.FormatFloat(v, 'f', -1, 64)
			} else {
				row[i+1] = ""
			}
		}
		if err := cw.Write(row); err != nil {
			return "", fmt.Errorf("write row: %w", err)
		}
	}

	cw.Flush()
	if err := cw.Error(); err != nil {
		return "", fmt.Errorf("flush %s: %w", path, err)
	}
	if err := f.Close(); err != nil {
		return "", fmt.Errorf("close %s: %w", path, err)
	}

	w.logger.Info("station file written", "file", path, "rows", len(records))
	return path, nil
}

// WriteSummary writes the run-level summary as summary.txt in the output
// directory.
func (w *Writer) WriteSummary(result pipeline.RunResult) (string, error) {
	if err := os.MkdirAll(w.dir, 0o755); err != nil {
		return "", fmt.Errorf("create output dir: %w", err)
	}

	path := filepath.Join(w.dir, "summary.txt")
	f, err := os.Create(path)
	if err != nil {
		return "", fmt.Errorf("create %s: %w", path, err)
	}
	defer f.Close()

	fmt.Fprintf(f, "harvest run %s\n", result.StartedAt.UTC().Format(timestampLayout))
	fmt.Fprintf(f, "stations succeeded: %d\n", result.StationsSucceeded)
	fmt.Fprintf(f, "stations failed:    %d\n", result.StationsFailed)
	fmt.Fprintf(f, "total rows:         %d\n", result.TotalRows)
	fmt.Fprintf(f, "window failures:    %d\n", result.WindowFailures)
	fmt.Fprintf(f, "elapsed:            %s\n", result.Elapsed())
	fmt.Fprintln(f)

	for _, sr := range result.Stations {
		if sr.Failed {
			fmt.Fprintf(f, "FAIL %s (%s): %s\n", sr.Station.Name, sr.Station.ID, sr.Reason)
			continue
		}
		fmt.Fprintf(f, "OK   %s (%s): %d rows, %d window failures -> %s\n",
			sr.Station.Name, sr.Station.ID, sr.Rows, sr.WindowFailures, sr.File)
	}

	if err := f.Close(); err != nil {
		return "", fmt.Errorf("close %s: %w", path, err)
	}
	return path, nil
}
