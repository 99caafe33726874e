package render

import (
	"fmt"
	"os"
	"regexp"
	"sort"
	"strings"

	"github.com/krzemienski/awesome-researcher/internal/model"
)

var (
	dashBulletPattern  = regexp.MustCompile(`(?m)^- `)
	badSeparatorRegexp = regexp.MustCompile(`(?m)^\* \[([^\]]+)\]\(([^)]+)\) ([^-])`)
)

// Renderer merges discovered resources into an awesome list and renders the
// updated markdown
type Renderer struct {
	verbose bool
}

// NewRenderer creates a renderer
func NewRenderer(verbose bool) *Renderer {
	return &Renderer{verbose: verbose}
}

// Categorize groups new resources by target section. Resources carrying a
// category matching an existing section keep it; the rest are matched by
// name and description, falling back to the best general section.
func (r *Renderer) Categorize(list *model.AwesomeList, newLinks []model.Resource) map[string][]model.Resource {
	categorized := make(map[string][]model.Resource)
	var uncategorized []model.Resource

	sectionNames := make(map[string]bool, len(list.Sections))
	for _, section := range list.Sections {
		sectionNames[section.Name] = true
	}

	for _, link := range newLinks {
		if link.Category != "" && sectionNames[link.Category] {
			categorized[link.Category] = append(categorized[link.Category], link)
			continue
		}

		name := strings.ToLower(link.Name)
		desc := strings.ToLower(link.Description)
		assigned := false
		for _, section := range list.Sections {
			lower := strings.ToLower(section.Name)
			if strings.Contains(name, lower) || strings.Contains(desc, lower) {
				categorized[section.Name] = append(categorized[section.Name], link)
				assigned = true
				break
			}
		}
		if !assigned {
			uncategorized = append(uncategorized, link)
		}
	}

	if len(uncategorized) > 0 {
		best := bestFallbackSection(list)
		categorized[best] = append(categorized[best], uncategorized...)
		r.logf("assigned %d uncategorized links to %q", len(uncategorized), best)
	}

	return categorized
}

// bestFallbackSection picks the section for links that match nothing:
// a general-purpose section when one exists, otherwise the largest
func bestFallbackSection(list *model.AwesomeList) string {
	if len(list.Sections) == 0 {
		return "Miscellaneous"
	}

	for _, section := range list.Sections {
		switch section.Name {
		case "Miscellaneous", "Other", "Resources":
			return section.Name
		}
	}

	best := list.Sections[0].Name
	maxItems := 0
	for _, section := range list.Sections {
		if len(section.Items) > maxItems {
			maxItems = len(section.Items)
			best = section.Name
		}
	}
	return best
}

// Merge returns a copy of the list with the categorized links added and
// every touched section re-sorted alphabetically. The input list is not
// modified.
func (r *Renderer) Merge(list *model.AwesomeList, categorized map[string][]model.Resource) *model.AwesomeList {
	merged := &model.AwesomeList{
		Title:    list.Title,
		Tagline:  list.Tagline,
		Sections: make([]model.Section, len(list.Sections)),
	}

	for i, section := range list.Sections {
		items := make([]model.Resource, len(section.Items))
		copy(items, section.Items)

		if newLinks, ok := categorized[section.Name]; ok {
			items = append(items, newLinks...)
			sort.SliceStable(items, func(a, b int) bool {
				return sortKey(items[a].Name) < sortKey(items[b].Name)
			})
			r.logf("added %d new links to section %q", len(newLinks), section.Name)
		}

		merged.Sections[i] = model.Section{Name: section.Name, Items: items}
	}

	return merged
}

// sortKey lowercases a title and strips a leading article for ordering
func sortKey(title string) string {
	lower := strings.ToLower(title)
	for _, article := range []string{"a ", "an ", "the "} {
		if strings.HasPrefix(lower, article) {
			return lower[len(article):]
		}
	}
	return lower
}

// RenderList renders the list as awesome-list markdown. Lists over 40 items
// get a table of contents, and a Contributing section is appended when the
// list has none.
func (r *Renderer) RenderList(list *model.AwesomeList) string {
	var lines []string

	lines = append(lines, "# Awesome "+list.Title)
	if list.Tagline != "" {
		lines = append(lines, "", "> "+list.Tagline)
	}

	if list.ItemCount() > 40 {
		lines = append(lines, "", "## Contents", "")
		for _, section := range list.Sections {
			anchor := strings.ReplaceAll(strings.ToLower(section.Name), " ", "-")
			lines = append(lines, fmt.Sprintf("* [%s](#%s)", section.Name, anchor))
		}
	}

	for _, section := range list.Sections {
		lines = append(lines, "", "## "+section.Name, "")
		for _, item := range section.Items {
			lines = append(lines, formatItem(item))
		}
	}

	hasContributing := false
	for _, section := range list.Sections {
		if strings.EqualFold(section.Name, "Contributing") {
			hasContributing = true
			break
		}
	}
	if !hasContributing {
		lines = append(lines, "", "## Contributing", "",
			"Contributions welcome! Read the [contribution guidelines](contributing.md) first.")
	}

	return FixLint(strings.Join(lines, "\n"))
}

func formatItem(item model.Resource) string {
	if item.Description != "" {
		return fmt.Sprintf("* [%s](%s) - %s", item.Name, item.URL, item.Description)
	}
	return fmt.Sprintf("* [%s](%s)", item.Name, item.URL)
}

// FixLint repairs the issues awesome-lint most often flags: dash bullets,
// missing description separators and a missing trailing newline
func FixLint(content string) string {
	content = dashBulletPattern.ReplaceAllString(content, "* ")
	content = badSeparatorRegexp.ReplaceAllString(content, "* [$1]($2) - $3")
	if !strings.HasSuffix(content, "\n") {
		content += "\n"
	}
	return content
}

func (r *Renderer) logf(format string, args ...interface{}) {
	if r.verbose {
		fmt.Fprintf(os.Stderr, "[render] "+format+"\n", args...)
	}
}
