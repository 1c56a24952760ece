package notes

import (
	"fmt"
	"strings"

	"reelnotes/internal/services/gemini"
)

// Amend merges enhancement output into an existing document. AI sections
// are rewritten, preserved sections are left alone, and tags accumulate
// without duplicates.
func Amend(doc *Document, content *gemini.EnhancedContent, model string) {
	if doc == nil || content == nil {
		return
	}
	if content.Title != "" {
		doc.Front.Title = content.Title
	}
	doc.Front.Tags = mergeTags(doc.Front.Tags, content.Tags)
	doc.Front.AIEnhanced = true
	doc.Front.AIModel = strings.TrimSpace(model)

	if content.Summary != "" {
		doc.SetSection(SectionSummary, content.Summary)
	}
	if len(content.KeyPoints) > 0 {
		doc.SetSection(SectionKeyPoints, bulletList(content.KeyPoints))
	} else {
		doc.RemoveSection(SectionKeyPoints)
	}
	if len(content.References) > 0 {
		doc.SetSection(SectionReferences, referenceList(content.References))
	} else {
		doc.RemoveSection(SectionReferences)
	}
	if content.Transcript != "" {
		doc.SetSection(SectionTranscript, content.Transcript)
	} else {
		doc.RemoveSection(SectionTranscript)
	}
}

// referenceList renders references as markdown links, one bullet per
// resource. A reference without a URL falls back to its bare title.
func referenceList(refs []gemini.Reference) string {
	var b strings.Builder
	for i, ref := range refs {
		if i > 0 {
			b.WriteString("\n")
		}
		b.WriteString("- ")
		switch {
		case ref.URL != "" && ref.Title != "":
			fmt.Fprintf(&b, "[%s](%s)", ref.Title, ref.URL)
		case ref.URL != "":
			b.WriteString(ref.URL)
		default:
			b.WriteString(ref.Title)
		}
		if ref.Description != "" {
			b.WriteString(" - ")
			b.WriteString(ref.Description)
		}
	}
	return b.String()
}

func bulletList(items []string) string {
	var b strings.Builder
	for i, item := range items {
		if i > 0 {
			b.WriteString("\n")
		}
		b.WriteString("- ")
		b.WriteString(strings.TrimSpace(item))
	}
	return b.String()
}

func mergeTags(existing []string, tags gemini.Tags) []string {
	seen := make(map[string]bool, len(existing))
	merged := make([]string, 0, len(existing))
	add := func(values []string) {
		for _, value := range values {
			tag := normalizeTag(value)
			if tag == "" || seen[tag] {
				continue
			}
			seen[tag] = true
			merged = append(merged, tag)
		}
	}
	add(existing)
	add(tags.Topic)
	add(tags.Type)
	add(tags.Action)
	return merged
}

// normalizeTag lowercases and hyphenates a tag so vault tag search stays
// consistent across enhancement runs.
func normalizeTag(value string) string {
	value = strings.ToLower(strings.TrimSpace(value))
	value = strings.Join(strings.Fields(value), "-")
	return strings.Trim(value, "-#")
}
