package workspace

import (
	"bufio"
	"errors"
	"fmt"
	"os"
	"strings"
)

// maxLine bounds a single artifact line. Crawlers occasionally emit very
// long URLs with embedded payloads.
const maxLine = 1024 * 1024

// ReadLines returns the trimmed, non-empty lines of path.
// A missing file yields no lines and no error.
func ReadLines(path string) ([]string, error) {
	f, err := os.Open(path) //nolint:gosec // artifact paths are built by Workspace
	if err != nil {
		if errors.Is(err, os.ErrNotExist) {
			return []string{}, nil
		}
		return nil, err
	}
	defer f.Close()

	lines := make([]string, 0)
	scanner := bufio.NewScanner(f)
	scanner.Buffer(make([]byte, 64*1024), maxLine)
	for scanner.Scan() {
		if line := strings.TrimSpace(scanner.Text()); line != "" {
			lines = append(lines, line)
		}
	}
	if err := scanner.Err(); err != nil {
		return lines, fmt.Errorf("failed to read %s: %w", path, err)
	}
	return lines, nil
}

// WriteLines replaces path with one line per element.
func WriteLines(path string, lines []string) error {
	f, err := os.OpenFile(path, os.O_CREATE|os.O_WRONLY|os.O_TRUNC, 0o600) //nolint:gosec // artifact paths are built by Workspace
	if err != nil {
		return err
	}

	w := bufio.NewWriter(f)
	for _, line := range lines {
		if _, err := w.WriteString(line + "\n"); err != nil {
			_ = f.Close()
			return err
		}
	}
	if err := w.Flush(); err != nil {
		_ = f.Close()
		return err
	}
	return f.Close()
}

// Exists reports whether path exists.
func Exists(path string) bool {
	_, err := os.Stat(path)
	return err == nil
}
