package parser

import (
	"context"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"regexp"
	"strings"
	"time"

	"github.com/krzemienski/awesome-researcher/internal/cache"
	"github.com/krzemienski/awesome-researcher/internal/model"
)

// Branch suffixes tried in order when fetching a repository README
var readmePaths = []string{
	"%s/%s/refs/heads/master/README.md",
	"%s/%s/refs/heads/main/README.md",
	"%s/%s/HEAD/README.md",
}

// DefaultRawBaseURL serves raw GitHub file content
const DefaultRawBaseURL = "https://raw.githubusercontent.com"

var (
	titlePattern   = regexp.MustCompile(`^#\s+(?:Awesome\s+)?(.+?)\s*$`)
	sectionPattern = regexp.MustCompile(`^(#{2,3})\s+(.+?)\s*$`)
	itemPattern    = regexp.MustCompile(`^\s*[*+-]\s+\[([^\]]+)\]\(([^)]+)\)(?:\s*[-–—:]\s*(.*))?$`)
)

// Sections that structure the document rather than list resources
var structuralSections = map[string]bool{
	"contents":          true,
	"table of contents": true,
	"contributing":      true,
	"license":           true,
	"footnotes":         true,
}

// Parser fetches and parses awesome-list READMEs into structured data
type Parser struct {
	httpClient *http.Client
	userAgent  string
	maxBytes   int64
	cache      cache.Cache // nil disables caching
	baseURL    string
}

// NewParser creates a parser. A nil cache disables README caching.
func NewParser(timeout time.Duration, userAgent string, maxBytes int64, c cache.Cache) *Parser {
	return &Parser{
		httpClient: &http.Client{
			Timeout: timeout,
			CheckRedirect: func(req *http.Request, via []*http.Request) error {
				if len(via) >= 3 {
					return fmt.Errorf("stopped after 3 redirects")
				}
				return nil
			},
		},
		userAgent: userAgent,
		maxBytes:  maxBytes,
		cache:     c,
		baseURL:   DefaultRawBaseURL,
	}
}

// SetBaseURL overrides the raw-content base URL (used in tests)
func (p *Parser) SetBaseURL(base string) {
	p.baseURL = strings.TrimSuffix(base, "/")
}

// FetchReadme retrieves the raw README markdown for a GitHub repository URL,
// trying the master, main and HEAD branches in order
func (p *Parser) FetchReadme(ctx context.Context, repoURL string) (string, error) {
	owner, repo, err := splitRepoURL(repoURL)
	if err != nil {
		return "", err
	}

	cacheKey := cache.Key("readme:" + owner + "/" + repo)
	if p.cache != nil {
		if data, found := p.cache.Get(cacheKey); found {
			return string(data), nil
		}
	}

	var lastErr error
	for _, pathTemplate := range readmePaths {
		rawURL := p.baseURL + "/" + fmt.Sprintf(pathTemplate, owner, repo)

		body, err := p.fetch(ctx, rawURL)
		if err != nil {
			lastErr = err
			continue
		}

		if p.cache != nil {
			_ = p.cache.Set(cacheKey, []byte(body), 0)
		}
		return body, nil
	}

	return "", fmt.Errorf("fetch README for %s/%s: %w", owner, repo, lastErr)
}

func (p *Parser) fetch(ctx context.Context, rawURL string) (string, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, rawURL, nil)
	if err != nil {
		return "", fmt.Errorf("create request: %w", err)
	}
	req.Header.Set("User-Agent", p.userAgent)

	resp, err := p.httpClient.Do(req)
	if err != nil {
		return "", fmt.Errorf("fetch: %w", err)
	}
	defer func() { _ = resp.Body.Close() }()

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return "", fmt.Errorf("unexpected status: %d %s", resp.StatusCode, resp.Status)
	}

	body, err := io.ReadAll(io.LimitReader(resp.Body, p.maxBytes))
	if err != nil {
		return "", fmt.Errorf("read body: %w", err)
	}

	return string(body), nil
}

// splitRepoURL extracts owner and repo from a GitHub repository URL
func splitRepoURL(repoURL string) (string, string, error) {
	parsed, err := url.Parse(repoURL)
	if err != nil {
		return "", "", fmt.Errorf("parse repo URL: %w", err)
	}

	if !strings.Contains(parsed.Host, "github.com") {
		return "", "", fmt.Errorf("not a GitHub repository URL: %s", repoURL)
	}

	parts := strings.Split(strings.Trim(parsed.Path, "/"), "/")
	if len(parts) < 2 || parts[0] == "" || parts[1] == "" {
		return "", "", fmt.Errorf("invalid GitHub repository URL: %s", repoURL)
	}

	return parts[0], strings.TrimSuffix(parts[1], ".git"), nil
}

// Parse converts awesome-list markdown into structured sections and items.
// Structural sections (Contents, Contributing, License) carry no resources
// and are skipped.
func Parse(markdown string) (*model.AwesomeList, error) {
	list := &model.AwesomeList{}

	var current *model.Section
	seenTitle := false

	for _, line := range strings.Split(markdown, "\n") {
		trimmed := strings.TrimRight(line, " \t")

		if !seenTitle {
			if m := titlePattern.FindStringSubmatch(trimmed); m != nil && strings.HasPrefix(trimmed, "# ") {
				list.Title = m[1]
				seenTitle = true
				continue
			}
		}

		if m := sectionPattern.FindStringSubmatch(trimmed); m != nil {
			name := m[2]
			if structuralSections[strings.ToLower(name)] {
				current = nil
				continue
			}
			list.Sections = append(list.Sections, model.Section{Name: name})
			current = &list.Sections[len(list.Sections)-1]
			continue
		}

		if m := itemPattern.FindStringSubmatch(trimmed); m != nil && current != nil {
			current.Items = append(current.Items, model.Resource{
				Name:        m[1],
				URL:         m[2],
				Description: strings.TrimSpace(m[3]),
				Category:    current.Name,
			})
			continue
		}

		// First plain or blockquote line between the title and the first
		// section is the tagline
		if seenTitle && len(list.Sections) == 0 && list.Tagline == "" {
			text := strings.TrimSpace(strings.TrimPrefix(strings.TrimSpace(trimmed), ">"))
			if text != "" && !strings.HasPrefix(text, "#") && !strings.HasPrefix(text, "[!") {
				list.Tagline = text
			}
		}
	}

	if !seenTitle {
		return nil, fmt.Errorf("no list title found")
	}
	if len(list.Sections) == 0 {
		return nil, fmt.Errorf("no sections found in %q", list.Title)
	}

	return list, nil
}

// FetchAndParse is the one-call path used by the pipeline
func (p *Parser) FetchAndParse(ctx context.Context, repoURL string) (*model.AwesomeList, error) {
	markdown, err := p.FetchReadme(ctx, repoURL)
	if err != nil {
		return nil, err
	}
	return Parse(markdown)
}
