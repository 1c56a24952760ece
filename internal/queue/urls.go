package queue

import (
	"fmt"
	"net/url"
	"strings"
)

// CanonicalURL normalizes an Instagram post/reel URL so that cosmetic
// variants of the same post collapse to one ledger entry. Scheme and host
// are lower-cased, a leading "www." is removed, query parameters and
// fragments are dropped, and any trailing slash is trimmed.
func CanonicalURL(raw string) (string, error) {
	trimmed := strings.TrimSpace(raw)
	if trimmed == "" {
		return "", fmt.Errorf("empty url")
	}
	parsed, err := url.Parse(trimmed)
	if err != nil {
		return "", fmt.Errorf("parse url %q: %w", trimmed, err)
	}
	if parsed.Scheme == "" || parsed.Host == "" {
		return "", fmt.Errorf("url %q missing scheme or host", trimmed)
	}

	scheme := strings.ToLower(parsed.Scheme)
	host := strings.ToLower(parsed.Host)
	host = strings.TrimPrefix(host, "www.")

	path := parsed.EscapedPath()
	if len(path) > 1 {
		path = strings.TrimRight(path, "/")
	}

	return scheme + "://" + host + path, nil
}

// Shortcode extracts the post identifier from a canonical Instagram URL,
// e.g. "DEf-GH_ij" from "https://instagram.com/reel/DEf-GH_ij". Returns
// an empty string when the URL does not follow the reel/post layout.
func Shortcode(canonical string) string {
	parsed, err := url.Parse(canonical)
	if err != nil {
		return ""
	}
	parts := strings.Split(strings.Trim(parsed.Path, "/"), "/")
	if len(parts) != 2 {
		return ""
	}
	switch parts[0] {
	case "reel", "p", "reels":
		return parts[1]
	}
	return ""
}
