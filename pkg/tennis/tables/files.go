// Package tables reads and writes the dated CSV files exchanged with the
// source adapters and the reporting step.
package tables

import (
	"encoding/csv"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"strconv"
	"strings"
	"time"

	"github.com/phenomenon0/tennis-edge/pkg/tennis/odds"
)

// ErrNoDatedFile is returned by FindLatest when no file matches the source.
var ErrNoDatedFile = errors.New("no dated file for source")

// DatedName returns "{source}_{YYYYMMDD}.csv".
func DatedName(source string, date time.Time) string {
	return source + "_" + date.Format(odds.FileDateLayout) + ".csv"
}

// DatedPath joins dir and DatedName.
func DatedPath(dir, source string, date time.Time) string {
	return filepath.Join(dir, DatedName(source, date))
}

// DateFromName extracts the date of a "{source}_{YYYYMMDD}.csv" file name.
func DateFromName(path, source string) (time.Time, bool) {
	base := filepath.Base(path)
	prefix := source + "_"
	if !strings.HasPrefix(base, prefix) || !strings.HasSuffix(base, ".csv") {
		return time.Time{}, false
	}
	stamp := strings.TrimSuffix(strings.TrimPrefix(base, prefix), ".csv")
	d, err := time.Parse(odds.FileDateLayout, stamp)
	if err != nil {
		return time.Time{}, false
	}
	return d, true
}

// FindLatest returns the most recent dated file for source in dir.
func FindLatest(dir, source string) (string, time.Time, error) {
	entries, err := os.ReadDir(dir)
	if err != nil {
		return "", time.Time{}, fmt.Errorf("reading data dir: %w", err)
	}

	var best string
	var bestDate time.Time
	for _, e := range entries {
		if e.IsDir() {
			continue
		}
		d, ok := DateFromName(e.Name(), source)
		if !ok {
			continue
		}
		if best == "" || d.After(bestDate) {
			best, bestDate = filepath.Join(dir, e.Name()), d
		}
	}
	if best == "" {
		return "", time.Time{}, fmt.Errorf("%w %q in %s", ErrNoDatedFile, source, dir)
	}
	return best, bestDate, nil
}

// ListDated returns every dated file for source in dir, oldest first.
func ListDated(dir, source string) ([]string, error) {
	entries, err := os.ReadDir(dir)
	if err != nil {
		return nil, fmt.Errorf("reading data dir: %w", err)
	}

	type dated struct {
		path string
		date time.Time
	}
	var files []dated
	for _, e := range entries {
		if e.IsDir() {
			continue
		}
		if d, ok := DateFromName(e.Name(), source); ok {
			files = append(files, dated{filepath.Join(dir, e.Name()), d})
		}
	}
	sort.Slice(files, func(i, j int) bool { return files[i].date.Before(files[j].date) })

	paths := make([]string, len(files))
	for i, f := range files {
		paths[i] = f.path
	}
	return paths, nil
}

// header maps lowercased column names to their index.
type header map[string]int

func newHeader(cols []string) header {
	h := make(header, len(cols))
	for i, c := range cols {
		c = strings.ToLower(strings.TrimSpace(strings.TrimPrefix(c, "\ufeff")))
		if _, exists := h[c]; !exists {
			h[c] = i
		}
	}
	return h
}

// has reports whether any of names is a column.
func (h header) has(names ...string) bool {
	for _, n := range names {
		if _, ok := h[strings.ToLower(n)]; ok {
			return true
		}
	}
	return false
}

// get returns the first non-empty value among the named columns.
func (h header) get(record []string, names ...string) string {
	for _, n := range names {
		if idx, ok := h[strings.ToLower(n)]; ok && idx < len(record) {
			if v := strings.TrimSpace(record[idx]); v != "" {
				return v
			}
		}
	}
	return ""
}

// parseDecimalOdds accepts "1.65" and "1,65".
func parseDecimalOdds(s string) (float64, error) {
	s = strings.ReplaceAll(strings.TrimSpace(s), ",", ".")
	if s == "" {
		return 0, odds.ErrMissingField
	}
	return strconv.ParseFloat(s, 64)
}

// parsePercent accepts "65.3" and "65.3%".
func parsePercent(s string) (float64, error) {
	s = strings.TrimSuffix(strings.TrimSpace(s), "%")
	s = strings.ReplaceAll(s, ",", ".")
	if s == "" {
		return 0, odds.ErrMissingField
	}
	return strconv.ParseFloat(s, 64)
}

// parseDate accepts YYYY-MM-DD and YYYYMMDD.
func parseDate(s string) (time.Time, error) {
	s = strings.TrimSpace(s)
	if d, err := time.Parse(odds.DateLayout, s); err == nil {
		return d, nil
	}
	return time.Parse(odds.FileDateLayout, s)
}

func formatFloat(p *float64, prec int) string {
	if p == nil {
		return ""
	}
	return strconv.FormatFloat(*p, 'f', prec, 64)
}

func readAll(path string) ([][]string, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, err
	}
	defer f.Close()

	reader := csv.NewReader(f)
	reader.FieldsPerRecord = -1
	records, err := reader.ReadAll()
	if err != nil {
		return nil, fmt.Errorf("reading CSV %s: %w", path, err)
	}
	return records, nil
}

// writeAtomic writes a CSV file through a temporary file in the same
// directory and renames it into place.
func writeAtomic(path string, records [][]string) error {
	dir := filepath.Dir(path)
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return fmt.Errorf("creating output dir: %w", err)
	}
	tmp, err := os.CreateTemp(dir, "."+filepath.Base(path)+".*")
	if err != nil {
		return fmt.Errorf("creating temp file: %w", err)
	}
	defer os.Remove(tmp.Name())
	if err := tmp.Chmod(0o644); err != nil {
		tmp.Close()
		return fmt.Errorf("setting file mode: %w", err)
	}

	w := csv.NewWriter(tmp)
	if err := w.WriteAll(records); err != nil {
		tmp.Close()
		return fmt.Errorf("writing %s: %w", path, err)
	}
	if err := tmp.Close(); err != nil {
		return fmt.Errorf("closing temp file: %w", err)
	}
	if err := os.Rename(tmp.Name(), path); err != nil {
		return fmt.Errorf("replacing %s: %w", path, err)
	}
	return nil
}
