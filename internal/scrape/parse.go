package scrape

import (
	"regexp"
	"strings"
)

// ParsedDescription is the structured form of Instagram's packed
// og:description line.
type ParsedDescription struct {
	Likes    string
	Comments string
	Author   string
	PostedAt string
	Text     string
}

// Matches: `724 likes, 6 comments - alexgori.tech on December 23, 2025: "Not because ..."`
var descriptionPattern = regexp.MustCompile(`(?s)^([\d,]+)\s+likes?,\s*([\d,]+)\s+comments?\s*-\s*(.+?):\s*["\x{201c}\x{201d}]?(.*)$`)

var statsPattern = regexp.MustCompile(`^([\d,]+)\s+likes?,\s*([\d,]+)\s+comments?`)

// ParseDescription splits the description line into likes, comments,
// author, posting date, and caption text. Unparseable input yields the
// whole string back as Text so nothing is lost.
func ParseDescription(description string) ParsedDescription {
	description = strings.TrimSpace(description)
	if description == "" {
		return ParsedDescription{}
	}

	if match := descriptionPattern.FindStringSubmatch(description); match != nil {
		parsed := ParsedDescription{
			Likes:    strings.ReplaceAll(match[1], ",", ""),
			Comments: strings.ReplaceAll(match[2], ",", ""),
			Text:     trimQuotes(match[4]),
		}
		parsed.Author, parsed.PostedAt = splitAuthorDate(strings.TrimSpace(match[3]))
		return parsed
	}

	if strings.Contains(description, " - ") && strings.Contains(description, ": ") {
		return parseFallback(description)
	}

	return ParsedDescription{Text: description}
}

// parseFallback handles descriptions that almost match the usual layout,
// mirroring the looser split-based path.
func parseFallback(description string) ParsedDescription {
	var parsed ParsedDescription

	parts := strings.SplitN(description, " - ", 2)
	if len(parts) != 2 {
		return parsed
	}

	if match := statsPattern.FindStringSubmatch(parts[0]); match != nil {
		parsed.Likes = strings.ReplaceAll(match[1], ",", "")
		parsed.Comments = strings.ReplaceAll(match[2], ",", "")
	}

	metaDesc := strings.SplitN(parts[1], ": ", 2)
	if len(metaDesc) == 2 {
		parsed.Author, parsed.PostedAt = splitAuthorDate(strings.TrimSpace(metaDesc[0]))
		parsed.Text = trimQuotes(strings.TrimSpace(metaDesc[1]))
	}

	return parsed
}

// splitAuthorDate separates `alexgori.tech on December 23, 2025` into the
// username and the posting date. Usernames never contain spaces, so the
// first " on " is the boundary.
func splitAuthorDate(meta string) (author, postedAt string) {
	if idx := strings.Index(meta, " on "); idx > 0 {
		return strings.TrimSpace(meta[:idx]), strings.TrimSpace(meta[idx+len(" on "):])
	}
	return meta, ""
}

func trimQuotes(text string) string {
	text = strings.TrimSpace(text)
	for _, quote := range []string{`"`, "“", "”"} {
		text = strings.TrimPrefix(text, quote)
		text = strings.TrimSuffix(text, quote)
	}
	return strings.TrimSpace(text)
}
