package validate

import (
	"net/url"
	"regexp"
	"strings"
)

// SourceKind classifies what a resource URL points at
type SourceKind string

const (
	KindRepository    SourceKind = "repository"
	KindDocumentation SourceKind = "documentation"
	KindArticle       SourceKind = "article"
	KindVideo         SourceKind = "video"
	KindOther         SourceKind = "other"
)

// SourceClassifier maps resource URLs to source kinds. Repositories get a
// star-count check during validation; other kinds skip it.
type SourceClassifier struct {
	repoHosts  map[string]bool
	videoHosts map[string]bool
	docPattern *regexp.Regexp
}

// NewSourceClassifier creates a classifier with the default host sets
func NewSourceClassifier() *SourceClassifier {
	return &SourceClassifier{
		repoHosts: map[string]bool{
			"github.com":    true,
			"gitlab.com":    true,
			"bitbucket.org": true,
			"codeberg.org":  true,
		},
		videoHosts: map[string]bool{
			"youtube.com": true,
			"youtu.be":    true,
			"vimeo.com":   true,
		},
		docPattern: regexp.MustCompile(`(?i)^/(docs?|documentation|reference|manual|api)(/|$)`),
	}
}

// Classify returns the source kind for a URL
func (c *SourceClassifier) Classify(rawURL string) SourceKind {
	parsed, err := url.Parse(rawURL)
	if err != nil {
		return KindOther
	}

	host := strings.TrimPrefix(strings.ToLower(parsed.Hostname()), "www.")

	if c.repoHosts[host] {
		return KindRepository
	}
	if c.videoHosts[host] {
		return KindVideo
	}
	if strings.HasPrefix(host, "docs.") || c.docPattern.MatchString(parsed.Path) {
		return KindDocumentation
	}
	if strings.Contains(host, "medium.com") || strings.HasPrefix(host, "blog.") ||
		strings.Contains(parsed.Path, "/blog/") {
		return KindArticle
	}

	return KindOther
}

// IsRepository reports whether the URL points at a source repository root
func (c *SourceClassifier) IsRepository(rawURL string) bool {
	return c.Classify(rawURL) == KindRepository
}
