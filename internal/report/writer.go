package report

import (
	"io"
)

// Writer defines the interface for report output.
type Writer interface {
	// WriteScan outputs the summary of a scan session.
	WriteScan(summary *ScanSummary) (int, error)

	// WriteDiscovery outputs the pages, template groups and selection of a
	// discovery session.
	WriteDiscovery(summary *DiscoverySummary) (int, error)

	// WriteComparison outputs the difference between two scans.
	WriteComparison(c *Comparison) (int, error)
}

// MultiWriter writes to multiple Writers in order and stops on the first
// error.
type MultiWriter struct {
	writers []Writer
}

// NewMultiWriter creates a Writer that writes to all provided Writers.
func NewMultiWriter(writers ...Writer) *MultiWriter {
	return &MultiWriter{writers: writers}
}

// WriteScan outputs the scan summary to all configured Writers.
func (m *MultiWriter) WriteScan(summary *ScanSummary) (int, error) {
	return m.each(func(w Writer) (int, error) { return w.WriteScan(summary) })
}

// WriteDiscovery outputs the discovery summary to all configured Writers.
func (m *MultiWriter) WriteDiscovery(summary *DiscoverySummary) (int, error) {
	return m.each(func(w Writer) (int, error) { return w.WriteDiscovery(summary) })
}

// WriteComparison outputs the comparison to all configured Writers.
func (m *MultiWriter) WriteComparison(c *Comparison) (int, error) {
	return m.each(func(w Writer) (int, error) { return w.WriteComparison(c) })
}

func (m *MultiWriter) each(write func(Writer) (int, error)) (int, error) {
	var total int
	for _, w := range m.writers {
		n, err := write(w)
		total += n
		if err != nil {
			return total, err
		}
	}
	return total, nil
}

// baseWriter provides common functionality for report writers.
type baseWriter struct {
	output io.Writer
}

// newBaseWriter creates a baseWriter with the given output destination.
func newBaseWriter(output io.Writer) baseWriter {
	return baseWriter{output: output}
}
