// Package report renders scan reports.
//
// This package contains writers for different output formats:
//   - SimpleWriter: human-readable text for terminal display
//   - JSONWriter: the JSON report format, also used for report files
//   - MarkdownWriter: Markdown with tables and a mermaid severity chart
//
// Writers implement the Writer interface, allowing them to be used
// interchangeably and composed for multi-format output. WriteFile and
// ReadFile store and load the JSON report files of a scan.
package report
