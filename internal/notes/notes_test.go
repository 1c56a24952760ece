package notes_test

import (
	"strings"
	"testing"

	"reelnotes/internal/notes"
	"reelnotes/internal/scrape"
	"reelnotes/internal/services/gemini"
)

func TestBuildRendersInitialNote(t *testing.T) {
	doc := notes.Build(notes.BuildInput{
		Meta: scrape.Metadata{
			Title:        "Hand Pulled Noodles",
			Author:       "noodle_master",
			Likes:        "12,345",
			Comments:     "678",
			Description:  "Resting the dough is the secret.",
			ThumbnailURL: "https://cdn.example.com/thumb.jpg",
		},
		SourceURL: "https://instagram.com/reel/ABC123",
		MediaFile: "Hand Pulled Noodles.mp4",
	})

	rendered, err := doc.Render()
	if err != nil {
		t.Fatalf("Render returned error: %v", err)
	}
	for _, want := range []string{
		"title: Hand Pulled Noodles",
		"source: https://instagram.com/reel/ABC123",
		"likes: \"12345\"",
		"ai_enhanced: false",
		"## Original Description",
		"Resting the dough is the secret.",
		"## Video",
		"![[Hand Pulled Noodles.mp4]]",
		"## Thumbnail",
		"![](https://cdn.example.com/thumb.jpg)",
	} {
		if !strings.Contains(rendered, want) {
			t.Fatalf("rendered note missing %q:\n%s", want, rendered)
		}
	}
}

func TestBuildFallsBackToParsedDescription(t *testing.T) {
	doc := notes.Build(notes.BuildInput{
		Meta: scrape.Metadata{
			Description: `1,200 likes, 34 comments - chef_anna: "Quick pickled onions in ten minutes"`,
		},
		SourceURL: "https://instagram.com/reel/XYZ",
	})
	if doc.Front.Author != "chef_anna" {
		t.Fatalf("expected author from parsed description, got %q", doc.Front.Author)
	}
	if doc.Front.Likes != "1200" {
		t.Fatalf("expected normalized likes, got %q", doc.Front.Likes)
	}
	body, ok := doc.Section(notes.SectionDescription)
	if !ok || !strings.Contains(body, "Quick pickled onions") {
		t.Fatalf("expected caption text in description section, got %q", body)
	}
}

func TestParseRenderRoundTrip(t *testing.T) {
	original := `---
title: Knife Care
source: https://instagram.com/reel/KNIFE
author: sharp_and_co
ai_enhanced: false
---

## Original Description

Hone before every use.

## Video

![[Knife Care.mp4]]
`
	doc, err := notes.Parse(original)
	if err != nil {
		t.Fatalf("Parse returned error: %v", err)
	}
	if doc.Front.Title != "Knife Care" {
		t.Fatalf("unexpected title %q", doc.Front.Title)
	}
	body, ok := doc.Section(notes.SectionVideo)
	if !ok || body != "![[Knife Care.mp4]]" {
		t.Fatalf("unexpected video section %q", body)
	}
	rendered, err := doc.Render()
	if err != nil {
		t.Fatalf("Render returned error: %v", err)
	}
	reparsed, err := notes.Parse(rendered)
	if err != nil {
		t.Fatalf("reparse returned error: %v", err)
	}
	if len(reparsed.Sections) != len(doc.Sections) {
		t.Fatalf("round trip changed section count: %d vs %d", len(reparsed.Sections), len(doc.Sections))
	}
}

func TestAmendMergesAndPreservesSourceSections(t *testing.T) {
	doc := notes.Build(notes.BuildInput{
		Meta:      scrape.Metadata{Title: "Sourdough Basics", Description: "Starter feeding schedule inside."},
		SourceURL: "https://instagram.com/reel/BREAD",
		MediaFile: "Sourdough Basics.mp4",
	})
	// Simulate a manual edit to a preserved section.
	doc.SetSection(notes.SectionDescription, "Starter feeding schedule inside.\n\nMy note: feed at 8am.")

	notes.Amend(doc, &gemini.EnhancedContent{
		Title:     "Sourdough Starter Feeding Schedule",
		Summary:   "Explains a twice-daily starter feeding routine.",
		KeyPoints: []string{"Feed at a 1:1:1 ratio", "Keep the starter at room temperature"},
		Tags: gemini.Tags{
			Topic:  []string{"Baking", "baking"},
			Type:   []string{"Tutorial"},
			Action: []string{"Try This"},
		},
		References: []gemini.Reference{
			{Title: "The Bread Code", URL: "https://the-bread-code.io", Description: "Sourdough guides"},
			{Title: "Starter jar"},
		},
	}, "gemini-2.5-pro")

	if !doc.Front.AIEnhanced {
		t.Fatal("expected ai_enhanced to be set")
	}
	if doc.Front.Title != "Sourdough Starter Feeding Schedule" {
		t.Fatalf("expected enhanced title, got %q", doc.Front.Title)
	}
	wantTags := []string{"baking", "tutorial", "try-this"}
	if len(doc.Front.Tags) != len(wantTags) {
		t.Fatalf("expected tags %v, got %v", wantTags, doc.Front.Tags)
	}
	for i, tag := range wantTags {
		if doc.Front.Tags[i] != tag {
			t.Fatalf("expected tags %v, got %v", wantTags, doc.Front.Tags)
		}
	}

	body, _ := doc.Section(notes.SectionDescription)
	if !strings.Contains(body, "feed at 8am") {
		t.Fatalf("manual edit in preserved section lost: %q", body)
	}

	refs, _ := doc.Section(notes.SectionReferences)
	if !strings.Contains(refs, "- [The Bread Code](https://the-bread-code.io) - Sourdough guides") {
		t.Fatalf("expected linked reference, got %q", refs)
	}
	if !strings.Contains(refs, "- Starter jar") {
		t.Fatalf("expected bare title for reference without url, got %q", refs)
	}

	rendered, err := doc.Render()
	if err != nil {
		t.Fatalf("Render returned error: %v", err)
	}
	summaryIdx := strings.Index(rendered, "## Summary")
	descIdx := strings.Index(rendered, "## Original Description")
	if summaryIdx < 0 || descIdx < 0 || summaryIdx > descIdx {
		t.Fatalf("expected AI sections ahead of source sections:\n%s", rendered)
	}
}

func TestAmendTwiceReplacesAISections(t *testing.T) {
	doc := notes.Build(notes.BuildInput{
		Meta:      scrape.Metadata{Title: "Stretching Routine", Description: "Morning mobility flow."},
		SourceURL: "https://instagram.com/reel/STRETCH",
	})
	notes.Amend(doc, &gemini.EnhancedContent{
		Summary:    "First pass summary.",
		KeyPoints:  []string{"Old point"},
		Transcript: "old transcript",
	}, "gemini-2.5-pro")
	notes.Amend(doc, &gemini.EnhancedContent{
		Summary:   "Second pass summary.",
		KeyPoints: []string{"New point"},
	}, "gemini-2.5-pro")

	summary, _ := doc.Section(notes.SectionSummary)
	if summary != "Second pass summary." {
		t.Fatalf("expected summary replaced, got %q", summary)
	}
	points, _ := doc.Section(notes.SectionKeyPoints)
	if strings.Contains(points, "Old point") {
		t.Fatalf("expected key points replaced, got %q", points)
	}
	if _, ok := doc.Section(notes.SectionTranscript); ok {
		t.Fatal("expected empty transcript to remove the section")
	}
}

func TestFilenameSanitizes(t *testing.T) {
	cases := []struct {
		in   string
		want string
	}{
		{"Hand Pulled Noodles", "Hand Pulled Noodles.md"},
		{"What: a \"great\" recipe?", "What a great recipe.md"},
		{"path/to\\nowhere", "pathtonowhere.md"},
		{"  spaced   out  ", "spaced out.md"},
		{"###", "Untitled Reel.md"},
		{"", "Untitled Reel.md"},
	}
	for _, tc := range cases {
		if got := notes.Filename(tc.in); got != tc.want {
			t.Fatalf("Filename(%q) = %q, want %q", tc.in, got, tc.want)
		}
	}
	long := notes.Filename(strings.Repeat("a", 200))
	if len(long) != 83 {
		t.Fatalf("expected long title truncated to 80 runes plus extension, got %d", len(long))
	}
}

func TestNormalizeCount(t *testing.T) {
	if got := notes.NormalizeCount(" 1,234,567 "); got != "1234567" {
		t.Fatalf("unexpected normalized count %q", got)
	}
	if got := notes.NormalizeCount(""); got != "" {
		t.Fatalf("expected empty passthrough, got %q", got)
	}
}
