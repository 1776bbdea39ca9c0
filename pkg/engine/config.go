package engine

// Config holds tuning knobs for the pipeline. The zero value selects the
// documented defaults.
type Config struct {
	// OracleTemperature is the sampling temperature for tool selection.
	// Zero or negative means the default of 0.2.
	OracleTemperature float64

	// SynthesizerTemperature is the sampling temperature for answer
	// synthesis. Zero or negative means the default of 0.7.
	SynthesizerTemperature float64

	// MaxSelections caps how many invocations one oracle response may
	// yield. Zero or negative means the default of 10.
	MaxSelections int

	// SearchTool names the capability treated as the search class. It
	// receives the raw query when the oracle omits one, serves as the
	// oracle-failure fallback, and triggers extraction chaining.
	// Empty means "web_search".
	SearchTool string

	// ExtractionTool names the capability invoked on document links found
	// in search results. Empty means "pdf_parser".
	ExtractionTool string

	// DocumentExtensions lists the link suffixes (compared lowercase) that
	// trigger extraction chaining. Empty means [".pdf"].
	DocumentExtensions []string
}

func (c Config) oracleTemperature() float64 {
	if c.OracleTemperature <= 0 {
		return 0.2
	}
	return c.OracleTemperature
}

func (c Config) synthesizerTemperature() float64 {
	if c.SynthesizerTemperature <= 0 {
		return 0.7
	}
	return c.SynthesizerTemperature
}

func (c Config) maxSelections() int {
	if c.MaxSelections <= 0 {
		return 10
	}
	return c.MaxSelections
}

func (c Config) searchTool() string {
	if c.SearchTool == "" {
		return "web_search"
	}
	return c.SearchTool
}

func (c Config) extractionTool() string {
	if c.ExtractionTool == "" {
		return "pdf_parser"
	}
	return c.ExtractionTool
}

func (c Config) documentExtensions() []string {
	if len(c.DocumentExtensions) == 0 {
		return []string{".pdf"}
	}
	return c.DocumentExtensions
}
