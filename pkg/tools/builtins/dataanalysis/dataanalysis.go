// Package dataanalysis implements the data_analysis capability: summary
// statistics, filtering, aggregation, and chart-ready value counts over
// CSV and Excel files.
//
// Operation-level misuse (a missing group_by, an unknown aggregation)
// yields a successful result carrying an "error" field, mirroring how
// downstream synthesis expects to see such problems; only source and
// parse failures fail the invocation itself.
package dataanalysis

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"os"
	"path/filepath"
	"strings"

	"github.com/werkbank-dev/werkbank/pkg/tools"
)

const toolName = "data_analysis"

const (
	defaultMaxRows   = 10000
	maxDownloadBytes = 32 << 20
	sampleRows       = 5
	filterRows       = 50
)

// Config tunes analysis limits.
type Config struct {
	// MaxRows caps how many data rows are loaded. Zero selects 10000.
	MaxRows int
}

// Tool implements the data_analysis capability.
type Tool struct {
	maxRows int
	client  *http.Client
}

var _ tools.Capability = (*Tool)(nil)

// New creates the data_analysis capability.
func New(cfg Config) *Tool {
	maxRows := cfg.MaxRows
	if maxRows <= 0 {
		maxRows = defaultMaxRows
	}
	return &Tool{maxRows: maxRows, client: http.DefaultClient}
}

// Spec returns the capability declaration.
func (t *Tool) Spec() tools.CapabilitySpec {
	return tools.CapabilitySpec{
		Name:        toolName,
		Description: "Analyzes data files and returns insights",
		Parameters: map[string]tools.ParameterSpec{
			"file_path": {
				Type:        tools.TypeString,
				Description: "Path to csv or excel file",
			},
			"url": {
				Type:        tools.TypeString,
				Description: "URL to csv or excel file",
			},
			"operation": {
				Type:        tools.TypeString,
				Description: "Analysis operation to perform",
				Required:    true,
				Enum:        []any{"summary", "filter", "visualize", "aggregate"},
			},
			"columns": {
				Type:        tools.TypeArray,
				Description: "Columns to include in the analysis",
			},
			"filter_query": {
				Type:        tools.TypeString,
				Description: "Row filter like \"age > 30 and city == 'Berlin'\"",
			},
			"group_by": {
				Type:        tools.TypeString,
				Description: "Column to group by for aggregation",
			},
			"aggregation": {
				Type:        tools.TypeString,
				Description: "Aggregation function to apply (sum, mean, count, min, max)",
				Default:     "sum",
			},
		},
	}
}

// Execute loads the data source and runs the requested operation.
func (t *Tool) Execute(ctx context.Context, params map[string]any, _ *tools.RunContext) tools.Result {
	url := tools.StringParam(params, "url")
	filePath := tools.StringParam(params, "file_path")

	switch {
	case url == "" && filePath == "":
		return tools.Fail(toolName, "either url or file_path is required")
	case url != "" && filePath != "":
		return tools.Fail(toolName, "url and file_path are mutually exclusive")
	}

	path := filePath
	if url != "" {
		tmp, err := t.download(ctx, url)
		if err != nil {
			slog.Warn("data download failed", "url", url, "error", err)
			return tools.FailErr(toolName, err)
		}
		defer os.Remove(tmp)
		path = tmp
	}

	fr, err := loadFrame(path, t.maxRows)
	if err != nil {
		slog.Warn("loading data failed", "path", path, "error", err)
		return tools.FailErr(toolName, err)
	}

	if cols := stringSlice(params["columns"]); len(cols) > 0 {
		fr = fr.project(cols)
	}

	if query := tools.StringParam(params, "filter_query"); query != "" {
		fr = applyFilter(fr, query)
	}

	operation := tools.StringParam(params, "operation")
	groupBy := tools.StringParam(params, "group_by")
	aggregation := tools.StringParam(params, "aggregation")
	if aggregation == "" {
		aggregation = "sum"
	}

	var result map[string]any
	switch operation {
	case "summary":
		result = summarize(fr)
	case "filter":
		result = map[string]any{
			"filtered_shape": fr.shape(),
			"data":           fr.records(filterRows),
		}
	case "aggregate":
		result = aggregate(fr, groupBy, aggregation)
	case "visualize":
		result = visualize(fr, groupBy)
	default:
		result = map[string]any{"error": fmt.Sprintf("Unsupported operation: %s", operation)}
	}

	return tools.OK(toolName, result)
}

// applyFilter runs the filter query, falling back to the unfiltered frame
// when the query is unparsable or names unknown columns.
func applyFilter(fr *frame, query string) *frame {
	conds, err := parseFilter(query)
	if err != nil {
		slog.Warn("invalid filter query, leaving data unfiltered",
			"query", query,
			"error", err,
		)
		return fr
	}
	filtered, err := fr.filter(conds)
	if err != nil {
		slog.Warn("invalid filter query, leaving data unfiltered",
			"query", query,
			"error", err,
		)
		return fr
	}
	return filtered
}

func summarize(fr *frame) map[string]any {
	return map[string]any{
		"shape":   fr.shape(),
		"columns": fr.columns,
		"dtypes":  fr.dtypes(),
		"summary": fr.describe(),
		"sample":  fr.records(sampleRows),
	}
}

func aggregate(fr *frame, groupBy, aggregation string) map[string]any {
	if groupBy == "" {
		return map[string]any{"error": "group_by parameter is required for aggregation"}
	}
	groupCol := fr.colIndex(groupBy)
	if groupCol < 0 {
		return map[string]any{"error": fmt.Sprintf("Column %s not found in data", groupBy)}
	}

	switch aggregation {
	case "sum", "mean", "count", "min", "max":
	default:
		return map[string]any{"error": fmt.Sprintf("Unsupported aggregation: %s", aggregation)}
	}

	var numericCols []string
	for _, name := range fr.numericColumns() {
		if name != groupBy {
			numericCols = append(numericCols, name)
		}
	}
	if len(numericCols) == 0 {
		return map[string]any{"error": "No numeric columns found for aggregation"}
	}

	// Partition rows by group value, then fold each numeric column.
	groups := make(map[string][][]string)
	for _, row := range fr.rows {
		key := row[groupCol]
		groups[key] = append(groups[key], row)
	}

	data := make(map[string]map[string]float64, len(groups))
	for key, rows := range groups {
		sub := &frame{columns: fr.columns, rows: rows}
		agg := make(map[string]float64, len(numericCols))
		for _, name := range numericCols {
			agg[name] = foldValues(sub.columnValues(sub.colIndex(name)), aggregation)
		}
		data[key] = agg
	}

	return map[string]any{
		"aggregation": aggregation,
		"group_by":    groupBy,
		"shape":       [2]int{len(data), len(numericCols)},
		"data":        data,
	}
}

func foldValues(vals []float64, aggregation string) float64 {
	if aggregation == "count" {
		return float64(len(vals))
	}
	if len(vals) == 0 {
		return 0
	}

	switch aggregation {
	case "sum", "mean":
		sum := 0.0
		for _, v := range vals {
			sum += v
		}
		if aggregation == "mean" {
			return sum / float64(len(vals))
		}
		return sum
	case "min":
		lo := vals[0]
		for _, v := range vals[1:] {
			if v < lo {
				lo = v
			}
		}
		return lo
	case "max":
		hi := vals[0]
		for _, v := range vals[1:] {
			if v > hi {
				hi = v
			}
		}
		return hi
	}
	return 0
}

func visualize(fr *frame, groupBy string) map[string]any {
	if groupBy != "" {
		if col := fr.colIndex(groupBy); col >= 0 {
			return map[string]any{
				"visualization_type": "bar",
				"x_axis":             groupBy,
				"y_axis":             "count",
				"data":               fr.valueCounts(col),
			}
		}
	}

	if stats := fr.describe(); len(stats) > 0 {
		return map[string]any{
			"visualization_type": "stats",
			"data":               stats,
		}
	}
	return map[string]any{"error": "No valid columns found for visualization"}
}

// download fetches the data file into a temp file carrying the URL's
// extension so format detection still works.
func (t *Tool) download(ctx context.Context, url string) (string, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
	if err != nil {
		return "", fmt.Errorf("creating request: %w", err)
	}

	resp, err := t.client.Do(req)
	if err != nil {
		return "", fmt.Errorf("downloading file: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return "", fmt.Errorf("failed to download file: HTTP %d", resp.StatusCode)
	}

	base, _, _ := strings.Cut(url, "?")
	ext := strings.ToLower(filepath.Ext(base))
	if ext == "" {
		ext = ".csv"
	}

	tmp, err := os.CreateTemp("", "werkbank-data-*"+ext)
	if err != nil {
		return "", fmt.Errorf("creating temp file: %w", err)
	}

	n, err := io.Copy(tmp, io.LimitReader(resp.Body, maxDownloadBytes+1))
	if cerr := tmp.Close(); err == nil {
		err = cerr
	}
	if err != nil {
		os.Remove(tmp.Name())
		return "", fmt.Errorf("writing file: %w", err)
	}
	if n > maxDownloadBytes {
		os.Remove(tmp.Name())
		return "", fmt.Errorf("file exceeds maximum download size of %d bytes", maxDownloadBytes)
	}

	return tmp.Name(), nil
}

// stringSlice coerces a decoded JSON array parameter to strings.
func stringSlice(v any) []string {
	switch vals := v.(type) {
	case []string:
		return vals
	case []any:
		out := make([]string, 0, len(vals))
		for _, item := range vals {
			if s, ok := item.(string); ok {
				out = append(out, s)
			}
		}
		return out
	}
	return nil
}
