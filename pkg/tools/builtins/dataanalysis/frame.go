package dataanalysis

import (
	"encoding/csv"
	"fmt"
	"math"
	"os"
	"path/filepath"
	"sort"
	"strconv"
	"strings"

	"github.com/xuri/excelize/v2"
)

// frame is an in-memory table: a header row plus raw cell strings. Cells
// are typed lazily; a column counts as numeric when every non-empty cell
// parses as a number.
type frame struct {
	columns []string
	rows    [][]string
}

// loadFrame reads a tabular file by extension, keeping at most maxRows
// data rows.
func loadFrame(path string, maxRows int) (*frame, error) {
	switch ext := strings.ToLower(filepath.Ext(path)); ext {
	case ".csv":
		return loadCSV(path, maxRows)
	case ".xls", ".xlsx":
		return loadXLSX(path, maxRows)
	default:
		return nil, fmt.Errorf("unsupported file format: %s", ext)
	}
}

func loadCSV(path string, maxRows int) (*frame, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("opening data file: %w", err)
	}
	defer f.Close()

	r := csv.NewReader(f)
	r.FieldsPerRecord = -1

	header, err := r.Read()
	if err != nil {
		return nil, fmt.Errorf("reading CSV header: %w", err)
	}

	fr := &frame{columns: header}
	for len(fr.rows) < maxRows {
		record, err := r.Read()
		if err != nil {
			break
		}
		fr.rows = append(fr.rows, padRow(record, len(header)))
	}
	return fr, nil
}

func loadXLSX(path string, maxRows int) (*frame, error) {
	wb, err := excelize.OpenFile(path)
	if err != nil {
		return nil, fmt.Errorf("opening workbook: %w", err)
	}
	defer wb.Close()

	sheets := wb.GetSheetList()
	if len(sheets) == 0 {
		return nil, fmt.Errorf("workbook has no sheets")
	}

	rows, err := wb.GetRows(sheets[0])
	if err != nil {
		return nil, fmt.Errorf("reading sheet %q: %w", sheets[0], err)
	}
	if len(rows) == 0 {
		return nil, fmt.Errorf("sheet %q is empty", sheets[0])
	}

	fr := &frame{columns: rows[0]}
	for _, row := range rows[1:] {
		if len(fr.rows) >= maxRows {
			break
		}
		fr.rows = append(fr.rows, padRow(row, len(fr.columns)))
	}
	return fr, nil
}

// padRow right-pads or truncates a record to the header width.
func padRow(record []string, width int) []string {
	row := make([]string, width)
	copy(row, record)
	return row
}

func (f *frame) shape() [2]int {
	return [2]int{len(f.rows), len(f.columns)}
}

func (f *frame) colIndex(name string) int {
	for i, c := range f.columns {
		if c == name {
			return i
		}
	}
	return -1
}

// project keeps only the named columns that exist, in the given order.
// When none of them exist the frame is returned unchanged.
func (f *frame) project(columns []string) *frame {
	var keep []int
	var names []string
	for _, name := range columns {
		if i := f.colIndex(name); i >= 0 {
			keep = append(keep, i)
			names = append(names, name)
		}
	}
	if len(keep) == 0 {
		return f
	}

	out := &frame{columns: names, rows: make([][]string, len(f.rows))}
	for r, row := range f.rows {
		projected := make([]string, len(keep))
		for j, i := range keep {
			projected[j] = row[i]
		}
		out.rows[r] = projected
	}
	return out
}

// isNumeric reports whether every non-empty cell of the column parses as
// a number. A column with no values at all is not numeric.
func (f *frame) isNumeric(col int) bool {
	any := false
	for _, row := range f.rows {
		cell := strings.TrimSpace(row[col])
		if cell == "" {
			continue
		}
		if _, err := strconv.ParseFloat(cell, 64); err != nil {
			return false
		}
		any = true
	}
	return any
}

func (f *frame) numericColumns() []string {
	var cols []string
	for i, name := range f.columns {
		if f.isNumeric(i) {
			cols = append(cols, name)
		}
	}
	return cols
}

// dtypes maps each column to "number" or "string".
func (f *frame) dtypes() map[string]string {
	types := make(map[string]string, len(f.columns))
	for i, name := range f.columns {
		if f.isNumeric(i) {
			types[name] = "number"
		} else {
			types[name] = "string"
		}
	}
	return types
}

// columnValues returns the parsed numeric cells of a column.
func (f *frame) columnValues(col int) []float64 {
	var vals []float64
	for _, row := range f.rows {
		cell := strings.TrimSpace(row[col])
		if cell == "" {
			continue
		}
		v, err := strconv.ParseFloat(cell, 64)
		if err != nil {
			continue
		}
		vals = append(vals, v)
	}
	return vals
}

// describe computes count/mean/std/min/max for every numeric column.
func (f *frame) describe() map[string]map[string]float64 {
	stats := make(map[string]map[string]float64)
	for i, name := range f.columns {
		if !f.isNumeric(i) {
			continue
		}
		stats[name] = describeValues(f.columnValues(i))
	}
	return stats
}

func describeValues(vals []float64) map[string]float64 {
	n := len(vals)
	if n == 0 {
		return map[string]float64{"count": 0}
	}

	sum := 0.0
	lo, hi := vals[0], vals[0]
	for _, v := range vals {
		sum += v
		lo = math.Min(lo, v)
		hi = math.Max(hi, v)
	}
	mean := sum / float64(n)

	std := 0.0
	if n > 1 {
		var sq float64
		for _, v := range vals {
			sq += (v - mean) * (v - mean)
		}
		std = math.Sqrt(sq / float64(n-1))
	}

	return map[string]float64{
		"count": float64(n),
		"mean":  mean,
		"std":   std,
		"min":   lo,
		"max":   hi,
	}
}

// records renders up to limit rows as JSON-friendly maps. Numeric-column
// cells become float64s; empty cells become nil.
func (f *frame) records(limit int) []map[string]any {
	numeric := make([]bool, len(f.columns))
	for i := range f.columns {
		numeric[i] = f.isNumeric(i)
	}

	n := min(len(f.rows), limit)
	out := make([]map[string]any, 0, n)
	for _, row := range f.rows[:n] {
		rec := make(map[string]any, len(f.columns))
		for i, name := range f.columns {
			cell := row[i]
			switch {
			case strings.TrimSpace(cell) == "":
				rec[name] = nil
			case numeric[i]:
				v, _ := strconv.ParseFloat(strings.TrimSpace(cell), 64)
				rec[name] = v
			default:
				rec[name] = cell
			}
		}
		out = append(out, rec)
	}
	return out
}

// valueCounts tallies the distinct values of a column, most frequent
// first; ties break alphabetically for stable output.
func (f *frame) valueCounts(col int) []map[string]any {
	counts := make(map[string]int)
	for _, row := range f.rows {
		counts[row[col]]++
	}

	values := make([]string, 0, len(counts))
	for v := range counts {
		values = append(values, v)
	}
	sort.Slice(values, func(i, j int) bool {
		if counts[values[i]] != counts[values[j]] {
			return counts[values[i]] > counts[values[j]]
		}
		return values[i] < values[j]
	})

	name := f.columns[col]
	out := make([]map[string]any, 0, len(values))
	for _, v := range values {
		out = append(out, map[string]any{name: v, "count": counts[v]})
	}
	return out
}
