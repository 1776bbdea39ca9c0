// Package pdfparser implements the pdf_parser capability: text extraction
// from PDF documents fetched by URL or read from an uploaded file. It is
// also the chaining target when search results carry PDF links.
package pdfparser

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"os"
	"strings"

	"github.com/werkbank-dev/werkbank/pkg/tools"
)

const toolName = "pdf_parser"

const (
	defaultMaxPages      = 50
	defaultMaxDownload   = 32 << 20
	downloadBufferPrefix = "werkbank-pdf-"
)

// Config tunes extraction limits.
type Config struct {
	// MaxPages caps how many pages one invocation extracts. Zero
	// selects 50.
	MaxPages int

	// MaxDownloadBytes caps the size of a downloaded document. Zero
	// selects 32 MiB.
	MaxDownloadBytes int64
}

// Tool implements the pdf_parser capability.
type Tool struct {
	maxPages    int
	maxDownload int64
	client      *http.Client
}

var _ tools.Capability = (*Tool)(nil)

// New creates the pdf_parser capability.
func New(cfg Config) *Tool {
	maxPages := cfg.MaxPages
	if maxPages <= 0 {
		maxPages = defaultMaxPages
	}
	maxDownload := cfg.MaxDownloadBytes
	if maxDownload <= 0 {
		maxDownload = defaultMaxDownload
	}
	return &Tool{
		maxPages:    maxPages,
		maxDownload: maxDownload,
		client:      http.DefaultClient,
	}
}

// Spec returns the capability declaration.
func (t *Tool) Spec() tools.CapabilitySpec {
	return tools.CapabilitySpec{
		Name:        toolName,
		Description: "Extracts text and data from PDF documents",
		Parameters: map[string]tools.ParameterSpec{
			"url": {
				Type:        tools.TypeString,
				Description: "URL to PDF file",
			},
			"file_path": {
				Type:        tools.TypeString,
				Description: "Local path to PDF",
			},
			"pages": {
				Type:        tools.TypeString,
				Description: "Pages to extract (e.g. '1-5' or '1,3,5')",
			},
		},
	}
}

// Execute extracts text from the document named by exactly one of the
// url/file_path parameters.
func (t *Tool) Execute(ctx context.Context, params map[string]any, _ *tools.RunContext) tools.Result {
	url := tools.StringParam(params, "url")
	filePath := tools.StringParam(params, "file_path")

	// The declared parameters are individually optional; the
	// one-source rule spans both and is checked here.
	switch {
	case url == "" && filePath == "":
		return tools.Fail(toolName, "either url or file_path is required")
	case url != "" && filePath != "":
		return tools.Fail(toolName, "url and file_path are mutually exclusive")
	}

	pageNumbers := ParsePageRange(tools.StringParam(params, "pages"), t.maxPages)

	path := filePath
	if url != "" {
		tmp, err := t.download(ctx, url)
		if err != nil {
			slog.Warn("PDF download failed", "url", url, "error", err)
			return tools.FailErr(toolName, err)
		}
		defer os.Remove(tmp)
		path = tmp
	}

	payload, err := extract(path, pageNumbers, t.maxPages)
	if err != nil {
		slog.Warn("PDF extraction failed", "path", path, "error", err)
		return tools.FailErr(toolName, err)
	}

	return tools.OK(toolName, payload)
}

// download fetches the document into a temp file and returns its path.
// The caller removes the file.
func (t *Tool) download(ctx context.Context, url string) (string, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
	if err != nil {
		return "", fmt.Errorf("creating request: %w", err)
	}

	resp, err := t.client.Do(req)
	if err != nil {
		return "", fmt.Errorf("downloading PDF: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return "", fmt.Errorf("failed to download PDF: HTTP %d", resp.StatusCode)
	}

	contentType := resp.Header.Get("Content-Type")
	if !strings.Contains(contentType, "application/pdf") && !strings.HasSuffix(strings.ToLower(url), ".pdf") {
		return "", fmt.Errorf("URL does not point to a PDF document")
	}

	tmp, err := os.CreateTemp("", downloadBufferPrefix+"*.pdf")
	if err != nil {
		return "", fmt.Errorf("creating temp file: %w", err)
	}

	n, err := io.Copy(tmp, io.LimitReader(resp.Body, t.maxDownload+1))
	if cerr := tmp.Close(); err == nil {
		err = cerr
	}
	if err != nil {
		os.Remove(tmp.Name())
		return "", fmt.Errorf("writing PDF: %w", err)
	}
	if n > t.maxDownload {
		os.Remove(tmp.Name())
		return "", fmt.Errorf("PDF exceeds maximum download size of %d bytes", t.maxDownload)
	}

	return tmp.Name(), nil
}
