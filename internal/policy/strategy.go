package policy

import (
	"net/url"
	"strings"
)

// redditBase resolves relative input such as "r/foo" or "/r/foo".
var redditBase = &url.URL{Scheme: "https", Host: "www.reddit.com", Path: "/"}

// URLPathStrategy parses the input as an absolute or relative URL and
// matches a path that starts with "/r/<token>".
type URLPathStrategy struct{}

func (URLPathStrategy) Name() string {
	return "url-path"
}

func (URLPathStrategy) Match(raw string) (string, bool) {
	u, err := url.Parse(raw)
	if err != nil {
		return "", false
	}
	return SubredditFromPath(redditBase.ResolveReference(u).Path)
}

// SchemelessURLStrategy handles "reddit.com/r/foo" and "old.reddit.com/r/foo",
// which would otherwise parse as a relative path.
type SchemelessURLStrategy struct{}

func (SchemelessURLStrategy) Name() string {
	return "schemeless-url"
}

func (SchemelessURLStrategy) Match(raw string) (string, bool) {
	host, _, found := strings.Cut(raw, "/")
	if !found || !IsRedditHost(host) {
		return "", false
	}
	u, err := url.Parse("https://" + raw)
	if err != nil {
		return "", false
	}
	return SubredditFromPath(u.Path)
}

// PrefixStrategy strips an optional leading "/" and then an optional "r/"
// and takes the rest up to the next "/" or whitespace. The token must start
// right after the stripped prefixes, so "/ r/x" yields nothing.
type PrefixStrategy struct{}

func (PrefixStrategy) Name() string {
	return "prefix"
}

func (PrefixStrategy) Match(raw string) (string, bool) {
	// A real URL that did not point at a subreddit is not a bare name.
	if u, err := url.Parse(raw); err == nil && u.Scheme != "" && u.Host != "" {
		return "", false
	}

	s := strings.TrimPrefix(raw, "/")
	if len(s) >= 2 && (s[0] == 'r' || s[0] == 'R') && s[1] == '/' {
		s = s[2:]
	}
	return canonical(s)
}

// SubredditFromPath matches "/r/<token>" at the start of a URL path only;
// "/user/x/r/y" names no subreddit. The "r" is matched case-insensitively.
func SubredditFromPath(p string) (string, bool) {
	if len(p) < 3 || p[0] != '/' || (p[1] != 'r' && p[1] != 'R') || p[2] != '/' {
		return "", false
	}
	return canonical(p[3:])
}

// Ensure strategies implement MatchStrategy.
var (
	_ MatchStrategy = URLPathStrategy{}
	_ MatchStrategy = SchemelessURLStrategy{}
	_ MatchStrategy = PrefixStrategy{}
)
