package retriever

import (
	"strconv"
	"strings"
	"unicode/utf8"

	"github.com/fyrsmithlabs/verticald/internal/corpus"
)

// NoContextPrefix starts every "nothing relevant" sentinel.
const NoContextPrefix = "no information found"

// MinContextChars is the smallest budget RenderContext can honour: the bare
// sentinel. Smaller budgets still get the bare sentinel.
const MinContextChars = len(NoContextPrefix)

// NoContext returns the sentinel rendered when no chunk is available.
func NoContext(verticals []string) string {
	if len(verticals) == 0 {
		return NoContextPrefix + " for (none)"
	}
	return NoContextPrefix + " for " + strings.Join(verticals, ", ")
}

// fitNoContext returns the longest sentinel within maxChars, dropping
// trailing verticals behind a "+n more" marker, then the list entirely.
func fitNoContext(verticals []string, maxChars int) string {
	if full := NoContext(verticals); utf8.RuneCountInString(full) <= maxChars {
		return full
	}
	for keep := len(verticals) - 1; keep > 0; keep-- {
		s := NoContext(verticals[:keep]) + " (+" + strconv.Itoa(len(verticals)-keep) + " more)"
		if utf8.RuneCountInString(s) <= maxChars {
			return s
		}
	}
	return NoContextPrefix
}

// IsNoContext reports whether s is a NoContext sentinel.
func IsNoContext(s string) bool {
	return strings.HasPrefix(s, NoContextPrefix)
}

// FormatLine renders one chunk as "[VERTICAL] page n: content".
func FormatLine(c corpus.ScoredChunk) string {
	return "[" + strings.ToUpper(c.Vertical) + "] page " + strconv.Itoa(c.PageNumber) + ": " + c.Content
}

// RenderContext joins chunk lines with newlines in the given order. It stops
// before the first line that would take the total past maxChars (counted in
// characters, separators included); lines are never cut. When nothing is
// rendered the NoContext sentinel for verticals is returned, shortened to
// fit maxChars when maxChars is at least MinContextChars.
func RenderContext(chunks []corpus.ScoredChunk, maxChars int, verticals []string) string {
	var b strings.Builder
	total := 0
	for _, c := range chunks {
		line := FormatLine(c)
		n := utf8.RuneCountInString(line)
		if total > 0 {
			n++ // newline
		}
		if total+n > maxChars {
			break
		}
		if total > 0 {
			b.WriteByte('\n')
		}
		b.WriteString(line)
		total += n
	}
	if total == 0 {
		return fitNoContext(verticals, maxChars)
	}
	return b.String()
}
