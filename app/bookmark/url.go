package bookmark

import (
	"net/url"
	"regexp"
	"strings"
)

var schemePattern = regexp.MustCompile(`^[a-zA-Z][a-zA-Z0-9+.-]*://`)

// NormalizeURL canonicalizes a URL for duplicate comparison: the scheme
// defaults to https, scheme and host are lower-cased and the trailing slash
// of a bare origin is dropped. NormalizeURL(NormalizeURL(u)) == NormalizeURL(u).
func NormalizeURL(raw string) string {
	s := strings.TrimSpace(raw)
	if s == "" {
		return ""
	}
	if !schemePattern.MatchString(s) {
		s = "https://" + strings.TrimPrefix(s, "//")
	}

	u, err := url.Parse(s)
	if err != nil {
		return s
	}

	u.Scheme = strings.ToLower(u.Scheme)
	u.Host = strings.ToLower(u.Host)
	if u.Path == "/" {
		u.Path = ""
		u.RawPath = ""
	}

	return u.String()
}

// IsValidURL reports whether raw is a non-empty, minimally well-formed
// http(s) URL once the scheme is defaulted.
func IsValidURL(raw string) bool {
	s := strings.TrimSpace(raw)
	if s == "" || strings.ContainsAny(s, " \t\n") {
		return false
	}

	u, err := url.Parse(NormalizeURL(s))
	if err != nil {
		return false
	}
	if u.Scheme != "http" && u.Scheme != "https" {
		return false
	}
	return u.Hostname() != ""
}
