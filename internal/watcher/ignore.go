package watcher

import (
	"bufio"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"
)

// IgnoreFile lists glob patterns, one per line, for files in the watched
// directory that must not be ingested. Patterns match the base name.
const IgnoreFile = ".verticaldignore"

// ignoreList holds the patterns read from IgnoreFile.
type ignoreList []string

// loadIgnore reads dir/IgnoreFile. A missing file yields an empty list.
func loadIgnore(dir string) (ignoreList, error) {
	f, err := os.Open(filepath.Join(dir, IgnoreFile))
	if errors.Is(err, os.ErrNotExist) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("reading %s: %w", IgnoreFile, err)
	}
	defer f.Close()

	var (
		patterns ignoreList
		seen     = make(map[string]bool)
		line     int
	)
	scanner := bufio.NewScanner(f)
	for scanner.Scan() {
		line++
		pattern := parseIgnoreLine(scanner.Text())
		if pattern == "" || seen[pattern] {
			continue
		}
		if _, err := filepath.Match(pattern, ""); err != nil {
			return nil, fmt.Errorf("%s:%d: bad pattern %q: %w", IgnoreFile, line, pattern, err)
		}
		seen[pattern] = true
		patterns = append(patterns, pattern)
	}
	if err := scanner.Err(); err != nil {
		return nil, fmt.Errorf("reading %s: %w", IgnoreFile, err)
	}
	return patterns, nil
}

// parseIgnoreLine returns the pattern on line, or "" for blanks, comments
// and negations, which are not supported.
func parseIgnoreLine(line string) string {
	line = strings.TrimRight(line, " \t\r")
	if line == "" || strings.HasPrefix(line, "#") || strings.HasPrefix(line, "!") {
		return ""
	}
	// the directory is watched flat, so a leading slash adds nothing
	return strings.TrimPrefix(line, "/")
}

// match reports whether the base name of path matches any pattern.
func (l ignoreList) match(path string) bool {
	base := filepath.Base(path)
	for _, pattern := range l {
		if ok, _ := filepath.Match(pattern, base); ok {
			return true
		}
	}
	return false
}
