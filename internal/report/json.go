package report

import (
	"encoding/json"
	"io"

	"github.com/nao1215/dast/internal/model"
)

// JSONWriter outputs reports in JSON format.
// This is the format of the report files and of --json.
type JSONWriter struct {
	baseWriter

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
// This is a convenience wrapper for WithIndent("", "  ").
func WithPrettyPrint() JSONWriterOption {
	return WithIndent("", "  ")
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

// Write outputs the full report in JSON format.
func (w *JSONWriter) Write(report *model.ScanReport) (int, error) {
	return w.writeJSON(report)
}

// WriteAll outputs several reports as one JSON array.
func (w *JSONWriter) WriteAll(reports []*model.ScanReport) (int, error) {
	return w.writeJSON(reports)
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

	// Add trailing newline for better terminal output
	data = append(data, '\n')

	return w.output.Write(data)
}

// DecodeJSON reads one report in the JSON format written by JSONWriter.
// Result lists missing from the input are replaced by empty lists.
func DecodeJSON(r io.Reader) (*model.ScanReport, error) {
	report := model.NewScanReport("")
	if err := json.NewDecoder(r).Decode(report); err != nil {
		return nil, err
	}
	if report.ErrorMessage != "" {
		report.Error = errorString(report.ErrorMessage)
	}
	fillNil(&report.Results)
	return report, nil
}

// errorString restores a serialized error.
type errorString string

func (e errorString) Error() string {
	return string(e)
}

func fillNil(r *model.Results) {
	if r.Subdomains == nil {
		r.Subdomains = []string{}
	}
	if r.LiveHosts == nil {
		r.LiveHosts = []string{}
	}
	if r.URLs == nil {
		r.URLs = []string{}
	}
	if r.ExtendedURLs == nil {
		r.ExtendedURLs = []string{}
	}
	if r.Vulnerabilities == nil {
		r.Vulnerabilities = []model.Vulnerability{}
	}
}
