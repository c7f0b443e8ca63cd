// Command validate checks the integrity of harvested station files: header
// shape, timestamp parsing, uniqueness, ordering, hour alignment, and
// numeric cells. It exits non-zero if any file fails.
//
// Usage:
//
//	go run ./cmd/validate -dir met_norway_data
package main

import (
	"encoding/csv"
	"flag"
	"fmt"
	"os"
	"path/filepath"
	"strconv"
	"time"
)

const timestampLayout = "2006-01-02 15:04:05"

// report tracks pass/fail for one file.
type report struct {
	file   string
	rows   int
	errors []string
}

func (r *report) errorf(format string, args ...any) {
	r.errors = append(r.errors, fmt.Sprintf(format, args...))
}

func main() {
	if err := run(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}

func run() error {
	dir := flag.String("dir", "met_norway_data", "directory containing *_hourly_data.csv files")
	flag.Parse()

	files, err := filepath.Glob(filepath.Join(*dir, "*_hourly_data.csv"))
	if err != nil {
		return err
	}
	if len(files) == 0 {
		return fmt.Errorf("no *_hourly_data.csv files in %s", *dir)
	}

	failed := 0
	for _, file := range files {
		rep := checkFile(file)
		if len(rep.errors) == 0 {
			fmt.Printf("OK   %s (%d rows)\n", rep.file, rep.rows)
			continue
		}
		failed++
		fmt.Printf("FAIL %s (%d rows)\n", rep.file, rep.rows)
		for _, e := range rep.errors {
			fmt.Printf("     %s\n", e)
		}
	}

	if failed > 0 {
		return fmt.Errorf("%d of %d files failed validation", failed, len(files))
	}
	fmt.Printf("all %d files passed\n", len(files))
	return nil
}

func checkFile(path string) *report {
	rep := &report{file: filepath.Base(path)}

	f, err := os.Open(path)
	if err != nil {
		rep.errorf("open: %v", err)
		return rep
	}
	defer f.Close()

	records, err := csv.NewReader(f).ReadAll()
	if err != nil {
		rep.errorf("parse csv: %v", err)
		return rep
	}
	if len(records) == 0 {
		rep.errorf("empty file")
		return rep
	}

	header := records[0]
	if len(header) < 2 || header[0] != "timestamp" {
		rep.errorf("header must start with timestamp and carry at least one element column")
		return rep
	}

	var prev time.Time
	seen := make(map[time.Time]bool, len(records))
	for i, row := range records[1:] {
		line := i + 2
		rep.rows++

		if len(row) != len(header) {
			rep.errorf("line %d: %d cells, want %d", line, len(row), len(header))
			continue
		}

		ts, err := time.ParseInLocation(timestampLayout, row[0], time.UTC)
		if err != nil {
			rep.errorf("line %d: bad timestamp %q", line, row[0])
			continue
		}
		if ts.Minute() != 0 || ts.Second() != 0 {
			rep.errorf("line %d: timestamp %q is not hour-aligned", line, row[0])
		}
		if seen[ts] {
			rep.errorf("line %d: duplicate timestamp %q", line, row[0])
		}
		seen[ts] = true
		if !prev.IsZero() && !prev.Before(ts) {
			rep.errorf("line %d: timestamp %q not after previous", line, row[0])
		}
		prev = ts

		for c, cell := range row[1:] {
			if cell == "" {
				continue // absent value, legitimate
			}
			if _, err := strconv.ParseFloat(cell, 64); err != nil {
				rep.errorf("line %d: column %s: non-numeric %q", line, header[c+1], cell)
			}
		}
	}
	return rep
}
