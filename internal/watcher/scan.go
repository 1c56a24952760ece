package watcher

import (
	"regexp"
)

// The shortcode is what matters; an optional trailing slash and query
// string are kept so markback can find the line exactly as pasted.
var urlPattern = regexp.MustCompile(`https?://(?:www\.)?instagram\.com/(?:reels?|p)/[\w-]+/?(?:\?\S*)?`)

// ExtractURLs returns the Instagram post and reel URLs found in the queue
// document, in document order with later duplicates dropped.
func ExtractURLs(content string) []string {
	matches := urlPattern.FindAllString(content, -1)
	if len(matches) == 0 {
		return nil
	}
	seen := make(map[string]struct{}, len(matches))
	urls := make([]string, 0, len(matches))
	for _, match := range matches {
		if _, ok := seen[match]; ok {
			continue
		}
		seen[match] = struct{}{}
		urls = append(urls, match)
	}
	return urls
}
