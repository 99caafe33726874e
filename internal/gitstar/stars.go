package gitstar

import (
	"context"
	"fmt"
	"net/url"
	"strconv"
	"strings"
	"time"

	"github.com/google/go-github/v57/github"

	"github.com/krzemienski/awesome-researcher/internal/cache"
)

const starTTL = 24 * time.Hour

// Client looks up GitHub repository star counts. Counts are cached so a
// repository appearing under multiple candidates costs one API call.
type Client struct {
	gh    *github.Client
	cache cache.Cache // nil disables caching
}

// NewClient creates a star lookup client. An empty token uses unauthenticated
// access, which GitHub rate-limits to 60 requests per hour.
func NewClient(token string, c cache.Cache) *Client {
	gh := github.NewClient(nil)
	if token != "" {
		gh = gh.WithAuthToken(token)
	}
	return &Client{gh: gh, cache: c}
}

// SetBaseURL points the client at a different API endpoint (used in tests)
func (c *Client) SetBaseURL(base string) error {
	if !strings.HasSuffix(base, "/") {
		base += "/"
	}
	parsed, err := url.Parse(base)
	if err != nil {
		return fmt.Errorf("parse base URL: %w", err)
	}
	c.gh.BaseURL = parsed
	return nil
}

// ParseRepoURL extracts owner and repo from a GitHub repository URL.
// Returns false for non-GitHub URLs and URLs pointing below the repository
// root (issues, wikis, raw files).
func ParseRepoURL(rawURL string) (string, string, bool) {
	parsed, err := url.Parse(strings.TrimSpace(rawURL))
	if err != nil {
		return "", "", false
	}

	host := strings.TrimPrefix(strings.ToLower(parsed.Hostname()), "www.")
	if host != "github.com" {
		return "", "", false
	}

	parts := strings.Split(strings.Trim(parsed.Path, "/"), "/")
	if len(parts) != 2 || parts[0] == "" || parts[1] == "" {
		return "", "", false
	}

	return parts[0], strings.TrimSuffix(parts[1], ".git"), true
}

// Stars returns the stargazer count for a GitHub repository URL
func (c *Client) Stars(ctx context.Context, rawURL string) (int, error) {
	owner, repo, ok := ParseRepoURL(rawURL)
	if !ok {
		return 0, fmt.Errorf("not a GitHub repository URL: %s", rawURL)
	}

	key := cache.Key("stars:" + owner + "/" + repo)
	if c.cache != nil {
		if data, found := c.cache.Get(key); found {
			if n, err := strconv.Atoi(string(data)); err == nil {
				return n, nil
			}
		}
	}

	repository, _, err := c.gh.Repositories.Get(ctx, owner, repo)
	if err != nil {
		return 0, fmt.Errorf("get repository %s/%s: %w", owner, repo, err)
	}

	stars := repository.GetStargazersCount()
	if c.cache != nil {
		_ = c.cache.Set(key, []byte(strconv.Itoa(stars)), starTTL)
	}
	return stars, nil
}
