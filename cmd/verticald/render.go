package main

import (
	"encoding/json"
	"fmt"
	"io"
	"sort"
	"strconv"

	"github.com/charmbracelet/lipgloss"
	"github.com/charmbracelet/lipgloss/table"

	"github.com/fyrsmithlabs/verticald/internal/engine"
)

var (
	titleStyle = lipgloss.NewStyle().
			Bold(true).
			Foreground(lipgloss.Color("51"))

	labelStyle = lipgloss.NewStyle().
			Foreground(lipgloss.Color("245"))

	healthyStyle = lipgloss.NewStyle().
			Foreground(lipgloss.Color("46"))

	warningStyle = lipgloss.NewStyle().
			Foreground(lipgloss.Color("226"))

	errorStyle = lipgloss.NewStyle().
			Foreground(lipgloss.Color("196"))

	headerStyle = lipgloss.NewStyle().
			Bold(true).
			Padding(0, 1)

	cellStyle = lipgloss.NewStyle().Padding(0, 1)
)

func writeJSON(w io.Writer, v any) error {
	enc := json.NewEncoder(w)
	enc.SetIndent("", "  ")
	return enc.Encode(v)
}

// stateStyle colours an ingest state or health status.
func stateStyle(s string) lipgloss.Style {
	switch s {
	case string(engine.StateIndexed), string(engine.StatusHealthy), engine.Available:
		return healthyStyle
	case string(engine.StateFailed), string(engine.StatusUnhealthy), engine.Unavailable:
		return errorStyle
	default:
		return warningStyle
	}
}

func newTable(headers ...string) *table.Table {
	return table.New().
		Border(lipgloss.NormalBorder()).
		BorderStyle(labelStyle).
		Headers(headers...).
		StyleFunc(func(row, _ int) lipgloss.Style {
			if row == table.HeaderRow {
				return headerStyle
			}
			return cellStyle
		})
}

func sortedKeys[V any](m map[string]V) []string {
	keys := make([]string, 0, len(m))
	for k := range m {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	return keys
}

func renderIngest(w io.Writer, r *engine.IngestReport) {
	doc := r.DocumentID
	if doc == "" {
		doc = "(unnamed)"
	}
	fmt.Fprintln(w, titleStyle.Render("Ingest "+doc))
	fmt.Fprintf(w, "%s %s\n", labelStyle.Render("State:   "), stateStyle(string(r.State)).Render(string(r.State)))
	fmt.Fprintf(w, "%s %d\n", labelStyle.Render("Pages:   "), r.Pages)
	fmt.Fprintf(w, "%s %d\n", labelStyle.Render("Stored:  "), r.Stored())
	fmt.Fprintf(w, "%s %s\n", labelStyle.Render("Duration:"), r.Duration)
	if r.Error != "" {
		fmt.Fprintf(w, "%s %s\n", labelStyle.Render("Error:   "), errorStyle.Render(r.Error))
	}
	if len(r.Verticals) == 0 {
		return
	}

	t := newTable("VERTICAL", "STATE", "CHUNKS", "ERROR")
	for _, name := range sortedKeys(r.Verticals) {
		v := r.Verticals[name]
		t.Row(name, string(v.State), strconv.Itoa(v.ChunkCount), v.Error)
	}
	fmt.Fprintln(w, t.Render())
}

func renderPreview(w io.Writer, r *engine.PreviewReport) {
	fmt.Fprintln(w, titleStyle.Render("Preview"))
	fmt.Fprintf(w, "%s %d\n", labelStyle.Render("Pages:    "), r.Pages)
	fmt.Fprintf(w, "%s %.2f\n", labelStyle.Render("Threshold:"), r.Threshold)
	if len(r.Verticals) == 0 {
		fmt.Fprintln(w, warningStyle.Render("no vertical passed the threshold"))
		return
	}

	t := newTable("VERTICAL", "PAGES")
	for _, v := range r.Verticals {
		t.Row(v, strconv.Itoa(r.PageCounts[v]))
	}
	fmt.Fprintln(w, t.Render())
}

func renderHealth(w io.Writer, r healthOutput) {
	fmt.Fprintln(w, titleStyle.Render("verticald health"))
	fmt.Fprintf(w, "%s %s\n", labelStyle.Render("Status:    "), stateStyle(string(r.Status)).Render(string(r.Status)))
	fmt.Fprintf(w, "%s %s\n", labelStyle.Render("Backend:   "), r.Backend)
	if r.BackendError != "" {
		fmt.Fprintf(w, "%s %s\n", labelStyle.Render("           "), errorStyle.Render(r.BackendError))
	}
	fmt.Fprintf(w, "%s %s (%d dims)\n", labelStyle.Render("Embeddings:"), r.EmbeddingProvider, r.EmbeddingDimension)
	telemetry := r.Telemetry
	if r.TelemetryError != "" {
		telemetry += ": " + r.TelemetryError
	}
	fmt.Fprintf(w, "%s %s\n", labelStyle.Render("Telemetry: "), telemetry)

	t := newTable("VERTICAL", "STATUS", "CHUNKS", "ERROR")
	for _, name := range sortedKeys(r.Verticals) {
		v := r.Verticals[name]
		t.Row(name, v.Status, strconv.Itoa(v.Count), v.Error)
	}
	fmt.Fprintln(w, t.Render())
}

func renderStatistics(w io.Writer, s *engine.Statistics) {
	fmt.Fprintln(w, titleStyle.Render("Vertical "+s.Vertical))
	fmt.Fprintf(w, "%s %s\n", labelStyle.Render("Collection:"), s.Collection)
	fmt.Fprintf(w, "%s %d\n", labelStyle.Render("Chunks:    "), s.ChunkCount)
	fmt.Fprintf(w, "%s %s\n", labelStyle.Render("Status:    "), stateStyle(s.Status).Render(s.Status))
}
