package report

import (
	"encoding/json"
	"io"
)

// JSONWriter outputs reports in JSON format for tool integration.
// Every document is wrapped in a JSONReport carrying the a11yscan version.
type JSONWriter struct {
	baseWriter

	// version is written into every document.
	version string

	// indent enables pretty-printed JSON output.
	// When false, output is compact (no extra whitespace).
	indent bool

	// indentPrefix is the prefix for each line in indented output.
	indentPrefix string

	// indentString is the indentation string (typically "  " or "\t").
	indentString string
}

// JSONWriterOption configures a JSONWriter.
type JSONWriterOption func(*JSONWriter)

// WithIndent enables pretty-printed JSON output.
// The prefix is prepended to each line, and indent is used for each level.
func WithIndent(prefix, indent string) JSONWriterOption {
	return func(w *JSONWriter) {
		w.indent = true
		w.indentPrefix = prefix
		w.indentString = indent
	}
}

// WithPrettyPrint enables pretty-printed JSON with default indentation.
func WithPrettyPrint() JSONWriterOption {
	return WithIndent("", "  ")
}

// WithVersion sets the version written into every document.
func WithVersion(version string) JSONWriterOption {
	return func(w *JSONWriter) {
		w.version = version
	}
}

// NewJSONWriter creates a JSONWriter that outputs to the given writer.
func NewJSONWriter(output io.Writer, opts ...JSONWriterOption) *JSONWriter {
	w := &JSONWriter{
		baseWriter: newBaseWriter(output),
	}
	for _, opt := range opts {
		opt(w)
	}
	return w
}

// JSONReport is the document written by JSONWriter. Exactly one of the
// payload fields is set.
type JSONReport struct {
	// Version is the a11yscan version that generated this report.
	Version string `json:"version"`

	Scan       *ScanSummary      `json:"scan,omitempty"`
	Discovery  *DiscoverySummary `json:"discovery,omitempty"`
	Comparison *Comparison       `json:"comparison,omitempty"`
}

// WriteScan outputs the scan summary in JSON format.
func (w *JSONWriter) WriteScan(summary *ScanSummary) (int, error) {
	return w.writeJSON(&JSONReport{Version: w.version, Scan: summary})
}

// WriteDiscovery outputs the discovery summary in JSON format.
func (w *JSONWriter) WriteDiscovery(summary *DiscoverySummary) (int, error) {
	return w.writeJSON(&JSONReport{Version: w.version, Discovery: summary})
}

// WriteComparison outputs the comparison in JSON format.
func (w *JSONWriter) WriteComparison(c *Comparison) (int, error) {
	return w.writeJSON(&JSONReport{Version: w.version, Comparison: c})
}

// writeJSON marshals the given value to JSON and writes it to the output.
func (w *JSONWriter) writeJSON(v any) (int, error) {
	var data []byte
	var err error

	if w.indent {
		data, err = json.MarshalIndent(v, w.indentPrefix, w.indentString)
	} else {
		data, err = json.Marshal(v)
	}
	if err != nil {
		return 0, err
	}

	// Trailing newline for terminal output.
	data = append(data, '\n')
	return w.output.Write(data)
}
