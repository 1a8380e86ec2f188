package policy

import (
	"fmt"
	"net/url"
	"strings"

	"golang.org/x/net/publicsuffix"

	"github.com/eliteGoblin/focusd/sub_mon/internal/domain"
)

const redditDomain = "reddit.com"

// IsRedditHost reports whether host is reddit.com or any subdomain of it.
func IsRedditHost(host string) bool {
	host = strings.TrimSuffix(strings.ToLower(host), ".")
	if host == "" {
		return false
	}
	site, err := publicsuffix.EffectiveTLDPlusOne(host)
	return err == nil && site == redditDomain
}

// IsRedditURL reports whether rawURL is an absolute URL on a reddit host.
func IsRedditURL(rawURL string) bool {
	u, err := url.Parse(rawURL)
	if err != nil {
		return false
	}
	return IsRedditHost(u.Hostname())
}

// ExtractSubreddit returns the canonical identifier of the subreddit a
// navigated URL points at, using the same path match as URLPathStrategy.
func ExtractSubreddit(rawURL string) (string, bool) {
	return URLPathStrategy{}.Match(strings.TrimSpace(rawURL))
}

// HostPattern is a browser extension match pattern such as "*://*.reddit.com/*".
type HostPattern struct {
	raw        string
	scheme     string // "*" matches http and https
	host       string // "" matches any host
	subdomains bool   // "*.host" also matches host itself
	path       string // glob with "*" wildcards
}

// ParseHostPattern parses "<scheme>://<host><path>".
func ParseHostPattern(pattern string) (HostPattern, error) {
	scheme, rest, ok := strings.Cut(pattern, "://")
	if !ok {
		return HostPattern{}, fmt.Errorf("invalid match pattern %q: missing scheme separator", pattern)
	}
	switch scheme {
	case "*", "http", "https":
	default:
		return HostPattern{}, fmt.Errorf("invalid match pattern %q: unsupported scheme %q", pattern, scheme)
	}

	slash := strings.IndexByte(rest, '/')
	if slash < 0 {
		return HostPattern{}, fmt.Errorf("invalid match pattern %q: missing path", pattern)
	}
	host, path := strings.ToLower(rest[:slash]), rest[slash:]

	p := HostPattern{raw: pattern, scheme: scheme, path: path}
	switch {
	case host == "*":
	case strings.HasPrefix(host, "*."):
		p.host = host[2:]
		p.subdomains = true
	case strings.Contains(host, "*"):
		return HostPattern{}, fmt.Errorf("invalid match pattern %q: wildcard must be a leading label", pattern)
	case host == "":
		return HostPattern{}, fmt.Errorf("invalid match pattern %q: empty host", pattern)
	default:
		p.host = host
	}
	return p, nil
}

// MustParseHostPatterns parses patterns and panics on error. Used for the
// built-in pattern list.
func MustParseHostPatterns(patterns []string) []HostPattern {
	out := make([]HostPattern, 0, len(patterns))
	for _, s := range patterns {
		p, err := ParseHostPattern(s)
		if err != nil {
			panic(err)
		}
		out = append(out, p)
	}
	return out
}

// RedditPatterns returns the compiled reddit host patterns.
func RedditPatterns() []HostPattern {
	return MustParseHostPatterns(domain.RedditHostPatterns)
}

// String returns the original pattern.
func (p HostPattern) String() string {
	return p.raw
}

// MatchURL reports whether u matches the pattern.
func (p HostPattern) MatchURL(u *url.URL) bool {
	switch u.Scheme {
	case "http", "https":
		if p.scheme != "*" && p.scheme != u.Scheme {
			return false
		}
	default:
		return false
	}

	host := strings.ToLower(u.Hostname())
	if p.host != "" && host != p.host && !(p.subdomains && strings.HasSuffix(host, "."+p.host)) {
		return false
	}

	target := u.EscapedPath()
	if target == "" {
		target = "/"
	}
	if u.RawQuery != "" {
		target += "?" + u.RawQuery
	}
	return matchGlob(p.path, target)
}

// Match parses rawURL and reports whether it matches the pattern.
func (p HostPattern) Match(rawURL string) bool {
	u, err := url.Parse(rawURL)
	if err != nil {
		return false
	}
	return p.MatchURL(u)
}

// MatchAny reports whether rawURL matches any of the patterns.
func MatchAny(patterns []HostPattern, rawURL string) bool {
	u, err := url.Parse(rawURL)
	if err != nil {
		return false
	}
	for _, p := range patterns {
		if p.MatchURL(u) {
			return true
		}
	}
	return false
}

// matchGlob matches s against a pattern where "*" matches any run of
// characters, including "/".
func matchGlob(pattern, s string) bool {
	parts := strings.Split(pattern, "*")
	if len(parts) == 1 {
		return pattern == s
	}
	if !strings.HasPrefix(s, parts[0]) {
		return false
	}
	s = s[len(parts[0]):]

	last := parts[len(parts)-1]
	for _, part := range parts[1 : len(parts)-1] {
		i := strings.Index(s, part)
		if i < 0 {
			return false
		}
		s = s[i+len(part):]
	}
	return strings.HasSuffix(s, last)
}
