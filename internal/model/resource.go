package model

import "strings"

// Resource is a single awesome-list entry, either one already present in the
// document or a newly discovered candidate
type Resource struct {
	Name        string `json:"name"`                  // Display title
	URL         string `json:"url"`                   // Absolute URL, identity key
	Description string `json:"description,omitempty"` // Free text, may be empty
	Category    string `json:"category,omitempty"`    // Section the resource belongs to
}

// EmbeddingText returns the text fed to the embedding provider for this
// resource: title and description joined by a space
func (r Resource) EmbeddingText() string {
	return strings.TrimSpace(r.Name + " " + r.Description)
}

// Section is a named group of resources within an awesome list
type Section struct {
	Name  string     `json:"name"`
	Items []Resource `json:"items"`
}

// AwesomeList is the parsed structure of an awesome-list README
type AwesomeList struct {
	Title    string    `json:"title"`
	Tagline  string    `json:"tagline,omitempty"`
	Sections []Section `json:"sections"`
}

// KnownURLs returns the flat set of URLs already present in the list,
// lowercased with trailing slashes stripped. This is the reference set the
// dedup engine filters candidates against.
func (l *AwesomeList) KnownURLs() []string {
	var urls []string
	seen := make(map[string]bool)
	for _, section := range l.Sections {
		for _, item := range section.Items {
			u := strings.TrimRight(strings.ToLower(item.URL), "/")
			if u == "" || seen[u] {
				continue
			}
			seen[u] = true
			urls = append(urls, u)
		}
	}
	return urls
}

// ItemCount returns the total number of resources across all sections
func (l *AwesomeList) ItemCount() int {
	count := 0
	for _, section := range l.Sections {
		count += len(section.Items)
	}
	return count
}

// DedupStats records how many candidates each deduplication layer removed.
// Built once per run and immutable afterwards; the duplicate ratio is the
// quality signal surfaced to operators.
type DedupStats struct {
	Candidates       int     `json:"candidates"`        // Candidates entering the pipeline
	CaseFiltered     int     `json:"case_filtered"`     // Removed by case-insensitive title match
	FuzzyFiltered    int     `json:"fuzzy_filtered"`    // Removed by Levenshtein title distance
	DomainFiltered   int     `json:"domain_filtered"`   // Removed by canonical URL / host+title match
	OriginalFiltered int     `json:"original_filtered"` // Already present in the source list
	SemanticFiltered int     `json:"semantic_filtered"` // Removed by embedding similarity
	Final            int     `json:"final"`             // Survivors
	DuplicateRatio   float64 `json:"duplicate_ratio"`   // (candidates - final) / candidates
}

// NewDedupStats computes the derived duplicate ratio; zero candidates yields
// a ratio of zero rather than a division by zero
func NewDedupStats(candidates, caseF, fuzzyF, domainF, originalF, semanticF, final int) DedupStats {
	stats := DedupStats{
		Candidates:       candidates,
		CaseFiltered:     caseF,
		FuzzyFiltered:    fuzzyF,
		DomainFiltered:   domainF,
		OriginalFiltered: originalF,
		SemanticFiltered: semanticF,
		Final:            final,
	}
	if candidates > 0 {
		stats.DuplicateRatio = float64(candidates-final) / float64(candidates)
	}
	return stats
}

// ValidationStats summarizes a validation pass over discovered resources
type ValidationStats struct {
	Checked  int `json:"checked"`
	Valid    int `json:"valid"`
	Invalid  int `json:"invalid"`
	Trimmed  int `json:"trimmed"`   // Descriptions shortened to fit the length limit
	LowStars int `json:"low_stars"` // GitHub repos below the star threshold
}
