package render

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"strings"

	"github.com/krzemienski/awesome-researcher/internal/budget"
	"github.com/krzemienski/awesome-researcher/internal/model"
)

// RenderReport renders a markdown summary of the research run: totals and a
// category-by-category breakdown of the new links
func RenderReport(categorized map[string][]model.Resource) string {
	var lines []string

	lines = append(lines, "# Awesome List Research Report", "")

	total := 0
	for _, links := range categorized {
		total += len(links)
	}

	lines = append(lines, "## Summary", "")
	lines = append(lines, fmt.Sprintf("* **Total new links:** %d", total))
	lines = append(lines, fmt.Sprintf("* **Categories with new links:** %d", len(categorized)))
	lines = append(lines, "", "## Categories", "")

	names := make([]string, 0, len(categorized))
	for name := range categorized {
		names = append(names, name)
	}
	sort.Strings(names)

	for _, name := range names {
		links := categorized[name]
		lines = append(lines, "### "+name, "")
		lines = append(lines, fmt.Sprintf("**Added %d new links:**", len(links)), "")
		for _, link := range links {
			lines = append(lines, formatItem(link))
		}
		lines = append(lines, "")
	}

	out := strings.Join(lines, "\n")
	if !strings.HasSuffix(out, "\n") {
		out += "\n"
	}
	return out
}

// ArtifactWriter persists run outputs under a single directory
type ArtifactWriter struct {
	dir string
}

// NewArtifactWriter creates the output directory if needed
func NewArtifactWriter(dir string) (*ArtifactWriter, error) {
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return nil, fmt.Errorf("create output dir: %w", err)
	}
	return &ArtifactWriter{dir: dir}, nil
}

// Dir returns the output directory
func (w *ArtifactWriter) Dir() string { return w.dir }

// WriteMarkdown writes a markdown artifact
func (w *ArtifactWriter) WriteMarkdown(name, content string) (string, error) {
	path := filepath.Join(w.dir, name)
	if err := os.WriteFile(path, []byte(content), 0o644); err != nil {
		return "", fmt.Errorf("write %s: %w", name, err)
	}
	return path, nil
}

// WriteJSON writes an indented JSON artifact
func (w *ArtifactWriter) WriteJSON(name string, v interface{}) (string, error) {
	data, err := json.MarshalIndent(v, "", "  ")
	if err != nil {
		return "", fmt.Errorf("marshal %s: %w", name, err)
	}
	path := filepath.Join(w.dir, name)
	if err := os.WriteFile(path, append(data, '\n'), 0o644); err != nil {
		return "", fmt.Errorf("write %s: %w", name, err)
	}
	return path, nil
}

// RunArtifacts bundles everything a research run produces
type RunArtifacts struct {
	UpdatedList string
	Report      string
	NewLinks    []model.Resource
	DedupStats  model.DedupStats
	Validation  model.ValidationStats
	CostReport  budget.Report
}

// WriteAll persists the full artifact set and returns the written paths
func (w *ArtifactWriter) WriteAll(a RunArtifacts) ([]string, error) {
	var paths []string

	writes := []struct {
		name string
		fn   func() (string, error)
	}{
		{"updated_list.md", func() (string, error) { return w.WriteMarkdown("updated_list.md", a.UpdatedList) }},
		{"research_report.md", func() (string, error) { return w.WriteMarkdown("research_report.md", a.Report) }},
		{"new_links.json", func() (string, error) { return w.WriteJSON("new_links.json", a.NewLinks) }},
		{"dedup_stats.json", func() (string, error) { return w.WriteJSON("dedup_stats.json", a.DedupStats) }},
		{"validation_stats.json", func() (string, error) { return w.WriteJSON("validation_stats.json", a.Validation) }},
		{"cost_report.json", func() (string, error) { return w.WriteJSON("cost_report.json", a.CostReport) }},
	}

	for _, write := range writes {
		path, err := write.fn()
		if err != nil {
			return paths, err
		}
		paths = append(paths, path)
	}

	return paths, nil
}
