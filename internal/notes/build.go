package notes

import (
	"fmt"
	"strings"
	"time"

	"golang.org/x/text/unicode/norm"

	"reelnotes/internal/scrape"
)

// BuildInput carries everything needed to render the initial note.
type BuildInput struct {
	Meta      scrape.Metadata
	SourceURL string
	// MediaFile is the attachment filename for the wikilink embed. Empty
	// when no media could be fetched.
	MediaFile string
}

// Build renders the initial, unenhanced note document.
func Build(input BuildInput) *Document {
	parsed := scrape.ParseDescription(input.Meta.Description)

	title := strings.TrimSpace(input.Meta.Title)
	if title == "" {
		title = "Instagram Post"
	}
	author := strings.TrimSpace(input.Meta.Author)
	if author == "" {
		author = parsed.Author
	}
	likes := NormalizeCount(firstValue(input.Meta.Likes, parsed.Likes))
	comments := NormalizeCount(firstValue(input.Meta.Comments, parsed.Comments))
	date := strings.TrimSpace(firstValue(input.Meta.PostedAt, parsed.PostedAt))
	if date == "" {
		date = time.Now().Format("2006-01-02")
	}

	doc := &Document{
		Front: Frontmatter{
			Title:    title,
			Source:   input.SourceURL,
			Author:   author,
			Date:     date,
			Likes:    likes,
			Comments: comments,
		},
	}

	description := strings.TrimSpace(parsed.Text)
	if description == "" {
		description = strings.TrimSpace(input.Meta.Description)
	}
	if description != "" {
		doc.SetSection(SectionDescription, description)
	}
	if input.MediaFile != "" {
		doc.SetSection(SectionVideo, fmt.Sprintf("![[%s]]", input.MediaFile))
	}
	if input.Meta.ThumbnailURL != "" {
		doc.SetSection(SectionThumbnail, fmt.Sprintf("![](%s)", input.Meta.ThumbnailURL))
	}
	return doc
}

// NormalizeCount strips thousands separators from scraped like and comment
// counts ("1,234" becomes "1234").
func NormalizeCount(value string) string {
	return strings.ReplaceAll(strings.TrimSpace(value), ",", "")
}

func firstValue(values ...string) string {
	for _, value := range values {
		if trimmed := strings.TrimSpace(value); trimmed != "" {
			return trimmed
		}
	}
	return ""
}

// forbidden covers filesystem separators plus characters Obsidian rejects
// in note names.
const forbiddenFilenameRunes = `/\:*?"<>|#^[]`

// Filename sanitizes a note title into a filesystem and vault safe
// markdown filename.
func Filename(title string) string {
	normalized := norm.NFC.String(strings.TrimSpace(title))
	var b strings.Builder
	for _, r := range normalized {
		if strings.ContainsRune(forbiddenFilenameRunes, r) || r < 0x20 {
			continue
		}
		b.WriteRune(r)
	}
	name := strings.Join(strings.Fields(b.String()), " ")
	runes := []rune(name)
	if len(runes) > 80 {
		name = strings.TrimSpace(string(runes[:80]))
	}
	name = strings.Trim(name, ". ")
	if name == "" {
		name = "Untitled Reel"
	}
	return name + ".md"
}
