package batch

import (
	"bufio"
	"fmt"
	"io"
	"net/url"
	"path"
	"path/filepath"
	"strings"
)

const fallbackName = "download"

// Entry is one line of a download list.
type Entry struct {
	Source      string
	Destination string
}

// ParseList reads "URL [DEST]" pairs, one per line. Blank lines and lines
// starting with # are ignored. A missing or relative DEST is resolved
// against dir.
func ParseList(r io.Reader, dir string) ([]Entry, error) {
	var entries []Entry

	scanner := bufio.NewScanner(r)
	lineNo := 0

	for scanner.Scan() {
		lineNo++

		line := strings.TrimSpace(scanner.Text())
		if line == "" || strings.HasPrefix(line, "#") {
			continue
		}

		fields := strings.Fields(line)
		if len(fields) > 2 {
			return nil, fmt.Errorf("line %d: expected \"URL [DEST]\", got %d fields", lineNo, len(fields))
		}

		dest := ""
		if len(fields) == 2 {
			dest = fields[1]
		}

		entries = append(entries, Entry{
			Source:      fields[0],
			Destination: Destination(fields[0], dest, dir),
		})
	}

	if err := scanner.Err(); err != nil {
		return nil, fmt.Errorf("failed to read download list: %w", err)
	}

	return entries, nil
}

// Destination resolves where source is stored. An empty dest falls back to
// the last path segment of the URL.
func Destination(source, dest, dir string) string {
	if dest == "" {
		dest = nameFromURL(source)
	}

	if filepath.IsAbs(dest) {
		return dest
	}

	return filepath.Join(dir, dest)
}

func nameFromURL(source string) string {
	u, err := url.Parse(source)
	if err != nil {
		return fallbackName
	}

	name := path.Base(u.Path)
	if name == "." || name == "/" || name == "" {
		return fallbackName
	}

	return name
}
