package dedup

import (
	"net/url"
	"strings"
)

// CanonicalURL returns the normalized identity form of a URL: lowercase,
// scheme dropped, leading "www." stripped from the host, trailing slash
// stripped from the path. Two URLs that canonicalize identically are treated
// as the same resource.
//
// Unparseable URLs fall back to their raw lowercased form so they still
// participate in exact-match comparison.
func CanonicalURL(rawURL string) string {
	lowered := strings.ToLower(strings.TrimSpace(rawURL))

	parsed, err := url.Parse(lowered)
	if err != nil || parsed.Host == "" {
		return strings.TrimRight(lowered, "/")
	}

	host := strings.TrimPrefix(parsed.Host, "www.")
	path := strings.TrimRight(parsed.Path, "/")

	return host + path
}

// Hostname returns the canonical host component of a URL, without the
// "www." prefix. Empty string when the URL has no parseable host.
func Hostname(rawURL string) string {
	parsed, err := url.Parse(strings.ToLower(strings.TrimSpace(rawURL)))
	if err != nil || parsed.Host == "" {
		return ""
	}
	return strings.TrimPrefix(parsed.Host, "www.")
}
